package scheduler

import (
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// ctrlC is the byte a terminal in raw mode delivers for Ctrl-C.
const ctrlC = 0x03

// KeyCommand maps an operator key to a Command. ok is false for keys that
// have no meaning.
func KeyCommand(key rune) (cmd Command, ok bool) {
	switch key {
	case 'q', 'Q', ctrlC:
		return CommandQuit, true
	case 's', 'S':
		return CommandStatus, true
	case 'h', 'H', '?':
		return CommandHelp, true
	}
	return "", false
}

// Keyboard polls a KeySource at a fixed interval and forwards recognized keys
// to a Notifier. It never blocks the workers: the only thing it touches is
// Notify.
type Keyboard struct {
	source   KeySource
	target   Notifier
	interval time.Duration
	logger   *slog.Logger

	mu      sync.Mutex
	started bool
	stop    atomic.Bool
	done    chan struct{}
}

// NewKeyboard creates a Keyboard. A non-positive interval falls back to
// DefaultPollInterval.
func NewKeyboard(source KeySource, target Notifier, interval time.Duration, handler slog.Handler) (*Keyboard, error) {
	if source == nil {
		return nil, fmt.Errorf("%w: keyboard has no key source", ErrConfigValidation)
	}
	if target == nil {
		return nil, fmt.Errorf("%w: keyboard has no notifier", ErrConfigValidation)
	}
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Keyboard{
		source:   source,
		target:   target,
		interval: interval,
		logger:   slog.New(handler).With(slog.String("component", "keyboard")),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the polling goroutine. A second call returns ErrAlreadyStarted.
func (k *Keyboard) Start() error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.started {
		return ErrAlreadyStarted
	}
	k.started = true
	go k.run()
	return nil
}

// Stop asks the polling goroutine to exit. It returns within one interval.
func (k *Keyboard) Stop() {
	k.stop.Store(true)
}

// Join waits for the polling goroutine to exit. It returns immediately if the
// keyboard was never started.
func (k *Keyboard) Join() {
	k.mu.Lock()
	started := k.started
	k.mu.Unlock()
	if started {
		<-k.done
	}
}

func (k *Keyboard) run() {
	defer close(k.done)
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()

	for !k.stop.Load() {
		k.drain()
		<-ticker.C
	}
	k.logger.Debug("Keyboard polling stopped")
}

// drain forwards every key the source has buffered.
func (k *Keyboard) drain() {
	for !k.stop.Load() {
		key, ok := k.source.Poll()
		if !ok {
			return
		}
		cmd, known := KeyCommand(key)
		if !known {
			k.logger.Debug("Ignoring key", slog.String("key", fmt.Sprintf("%q", key)))
			continue
		}
		k.logger.Debug("Operator command", slog.String("command", string(cmd)))
		k.target.Notify(cmd)
	}
}
