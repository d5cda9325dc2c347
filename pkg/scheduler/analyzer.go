// Package scheduler runs an Analyzer over many event files in parallel.
//
// A Controller owns the FIFO queue of input files and a fixed pool of Workers.
// Every Worker owns a private clone of the Analyzer prototype, streams the
// events of the file it was given through it, reports back, and waits for the
// next file or a stop instruction. A Keyboard goroutine translates operator key
// presses into Controller commands. When the last Worker retires the clones are
// merged into a single result.
//
// All coordination uses Condition (mutex + condition variable) with
// predicate-checked waits; no state is carried by signals alone.
package scheduler

import "io"

// Event is one decoded collision record. The scheduler never inspects it;
// Reader and Analyzer implementations agree on the concrete type.
type Event = any

// Analyzer is the unit of work applied to every event.
//
// Each Worker gets its own Clone and is the only goroutine that calls Process
// on it. Merge must be commutative and associative so the aggregate does not
// depend on which worker processed which file.
type Analyzer interface {
	// Process consumes one event.
	Process(evt Event)
	// Clone returns an analyzer with the same configuration and no
	// accumulated state. It shares no mutable state with the receiver.
	Clone() Analyzer
	// Merge adds other's accumulated state into the receiver.
	Merge(other Analyzer) error
	// Print writes a human readable summary.
	Print(w io.Writer) error
}

// Reader streams events out of a single file. One Reader is used by exactly
// one goroutine and is never shared.
type Reader interface {
	// Open prepares path for reading.
	Open(path string) error
	// Next advances to the next event and reports whether one is available.
	Next() bool
	// Event returns the event Next advanced to.
	Event() Event
	// Err returns the first non end-of-input error encountered, if any.
	Err() error
	// Close releases the underlying file.
	Close() error
}

// ReaderFactory creates a fresh Reader for every file a Worker processes.
type ReaderFactory func() Reader

// KeySource yields operator key presses. Poll must not block for long and is
// called repeatedly from a single goroutine.
type KeySource interface {
	Poll() (key rune, ok bool)
}

// Notifier accepts operator commands. Controller implements it.
type Notifier interface {
	Notify(cmd Command)
}
