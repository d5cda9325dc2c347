package scheduler

import "sync"

// noCopy may be embedded into structs which must not be copied
// after the first use. go vet's copylocks check reports copies.
type noCopy struct{}

func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}

// Condition pairs one mutex with one wait/notify signal. A Condition is shared
// by pointer between a goroutine and whoever instructs it; it is never copied.
//
// State that a waiter depends on must be stored in fields guarded by the mutex.
// The signal alone carries no information, so a notify that happens before the
// wait is never lost: the waiter re-checks its predicate first.
type Condition struct {
	noCopy noCopy

	mu   sync.Mutex
	cond *sync.Cond
}

// NewCondition returns a ready to use Condition.
func NewCondition() *Condition {
	c := &Condition{}
	c.cond = sync.NewCond(&c.mu)
	return c
}

// Lock is a scoped hold on a Condition's mutex. Release it with
// defer so it is dropped on every exit path, including panics.
type Lock struct {
	c        *Condition
	released bool
}

// Acquire locks the Condition's mutex and returns the scoped Lock.
func (c *Condition) Acquire() *Lock {
	c.mu.Lock()
	return &Lock{c: c}
}

// Release unlocks the mutex. Calling it more than once is a no-op.
func (l *Lock) Release() {
	if l == nil || l.released {
		return
	}
	l.released = true
	l.c.mu.Unlock()
}

// Wait atomically releases the mutex and suspends the caller until NotifyAll,
// then reacquires the mutex. Wakeups may be spurious; prefer WaitUntil.
func (c *Condition) Wait(l *Lock) {
	if l == nil || l.c != c || l.released {
		panic("scheduler: Wait called without holding the condition lock")
	}
	c.cond.Wait()
}

// WaitUntil waits while pred reports false. pred is evaluated with the mutex held.
func (c *Condition) WaitUntil(l *Lock, pred func() bool) {
	for !pred() {
		c.Wait(l)
	}
}

// NotifyAll wakes every goroutine blocked in Wait. It is a no-op when nobody waits.
func (c *Condition) NotifyAll() {
	c.cond.Broadcast()
}
