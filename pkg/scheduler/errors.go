package scheduler

import "errors"

// --- Exported Error Variables ---
// These errors classify the outcomes a caller can observe from the Controller,
// its Workers, and the per-file results collected in a Report. Callers can
// check against them using errors.Is.

var (
	// ErrNoFiles indicates that a run was requested with an empty input queue.
	// The Report returned alongside it carries an empty clone of the prototype.
	ErrNoFiles = errors.New("no input files queued")

	// ErrNoAnalyzer indicates that a run was requested before an Analyzer
	// prototype was installed with Use, or that Use was called with nil.
	ErrNoAnalyzer = errors.New("analyzer prototype not installed")

	// ErrAlreadyRunning indicates that Run, Push, or Use was called while a run
	// is active on the same Controller.
	ErrAlreadyRunning = errors.New("controller run already active")

	// ErrAlreadyStarted indicates that Start was called on a Worker or Keyboard
	// whose goroutine is already running. The call has no effect.
	ErrAlreadyStarted = errors.New("already started")

	// ErrWorkerBusy indicates that Configure was called on a Worker that still
	// has an unconsumed file or is in the middle of processing one.
	ErrWorkerBusy = errors.New("worker busy")

	// ErrWorkerStopped indicates that Configure was called after Stop.
	ErrWorkerStopped = errors.New("worker stopped")

	// ErrInvalidPath indicates an empty input path was pushed.
	ErrInvalidPath = errors.New("invalid input path")

	// ErrOpenFailed indicates the Reader could not open an input file.
	// Recorded in Report.Errors; the file counts as complete with zero events.
	ErrOpenFailed = errors.New("failed to open input file")

	// ErrReadFailed indicates the Reader failed part way through a file.
	// Events read before the failure stay in the analyzer.
	ErrReadFailed = errors.New("failed to read input file")

	// ErrAnalyzerPanic indicates an Analyzer panicked while processing an event.
	// The remaining events of that file are skipped.
	ErrAnalyzerPanic = errors.New("analyzer panicked")

	// ErrMergeMismatch indicates Merge was given an Analyzer of another type.
	ErrMergeMismatch = errors.New("cannot merge analyzers of different types")

	// ErrConfigValidation indicates invalid Options were provided.
	ErrConfigValidation = errors.New("invalid configuration options provided")
)
