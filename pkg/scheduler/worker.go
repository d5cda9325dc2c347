package scheduler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"
)

// IdleReporter receives a Worker that finished its current file and is about
// to wait for instructions. Controller implements it.
type IdleReporter interface {
	ReportIdle(w *Worker)
}

// WorkerConfig holds the dependencies of a single Worker.
type WorkerConfig struct {
	ID         uint64
	Analyzer   Analyzer      // Private clone; only this worker calls Process on it
	NewReader  ReaderFactory // One Reader per file
	Reporter   IdleReporter  // Receives the worker after every file
	Logger     slog.Handler
	OnFileDone func(info FileInfo, err error) // Optional; called on the worker goroutine
}

// Worker streams the events of one file at a time through its Analyzer.
//
// Lifecycle: Idle -> Running -> Waiting -> (Running | Stopped). After every
// file the worker reports itself idle and blocks on its own Condition until it
// is configured with a new file or stopped.
type Worker struct {
	id         uint64
	cond       *Condition
	analyzer   Analyzer
	newReader  ReaderFactory
	reporter   IdleReporter
	onFileDone func(FileInfo, error)
	logger     *slog.Logger

	// Guarded by cond.
	file    string
	pending bool
	stop    bool
	started bool
	state   WorkerState

	// Guarded by the reporter's lock.
	queued bool

	stopRequested atomic.Bool // mirror of stop, read once per event
	fileEvents    atomic.Int64
	totalEvents   atomic.Int64
	filesDone     atomic.Int64
	done          chan struct{}
}

// NewWorker validates cfg and returns a Worker in the Idle state.
func NewWorker(cfg WorkerConfig) (*Worker, error) {
	if cfg.Analyzer == nil {
		return nil, fmt.Errorf("%w: worker %d has no analyzer", ErrConfigValidation, cfg.ID)
	}
	if cfg.NewReader == nil {
		return nil, fmt.Errorf("%w: worker %d has no reader factory", ErrConfigValidation, cfg.ID)
	}
	if cfg.Reporter == nil {
		return nil, fmt.Errorf("%w: worker %d has no idle reporter", ErrConfigValidation, cfg.ID)
	}
	handler := cfg.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	return &Worker{
		id:         cfg.ID,
		cond:       NewCondition(),
		analyzer:   cfg.Analyzer,
		newReader:  cfg.NewReader,
		reporter:   cfg.Reporter,
		onFileDone: cfg.OnFileDone,
		logger:     slog.New(handler).With(slog.String("component", "worker"), slog.Uint64("workerID", cfg.ID)),
		state:      WorkerIdle,
		done:       make(chan struct{}),
	}, nil
}

// ID returns the worker's identity.
func (w *Worker) ID() uint64 { return w.id }

// Analyzer returns the worker's private clone. Only read it after Join.
func (w *Worker) Analyzer() Analyzer { return w.analyzer }

// FileEvents returns the number of events processed from the current (or last) file.
func (w *Worker) FileEvents() int64 { return w.fileEvents.Load() }

// TotalEvents returns the number of events processed across all files.
func (w *Worker) TotalEvents() int64 { return w.totalEvents.Load() }

// FilesProcessed returns the number of files this worker has read.
func (w *Worker) FilesProcessed() int64 { return w.filesDone.Load() }

// State returns the current lifecycle state.
func (w *Worker) State() WorkerState {
	lock := w.cond.Acquire()
	defer lock.Release()
	return w.state
}

// Configure queues path as the next file. It fails with ErrWorkerBusy when a
// file is already queued or being read, and with ErrWorkerStopped after Stop.
func (w *Worker) Configure(path string) error {
	lock := w.cond.Acquire()
	defer lock.Release()

	if w.stop {
		return ErrWorkerStopped
	}
	if w.pending || w.state == WorkerRunning {
		return fmt.Errorf("%w: worker %d cannot take %q", ErrWorkerBusy, w.id, path)
	}
	w.file = path
	w.pending = true
	w.fileEvents.Store(0)
	w.cond.NotifyAll()
	return nil
}

// Start launches the worker goroutine. A second call returns ErrAlreadyStarted.
func (w *Worker) Start() error {
	lock := w.cond.Acquire()
	defer lock.Release()

	if w.started {
		return ErrAlreadyStarted
	}
	w.started = true
	go w.run()
	return nil
}

// Stop asks the worker to finish. A file in progress is abandoned after the
// current event; a waiting worker exits without taking new work.
func (w *Worker) Stop() {
	lock := w.cond.Acquire()
	defer lock.Release()

	w.stop = true
	w.stopRequested.Store(true)
	w.cond.NotifyAll()
}

// Join blocks until the worker goroutine has exited. It returns immediately if
// the worker was never started.
func (w *Worker) Join() {
	lock := w.cond.Acquire()
	started := w.started
	lock.Release()

	if !started {
		return
	}
	<-w.done
}

func (w *Worker) run() {
	defer close(w.done)
	w.logger.Debug("Worker started")

	for w.awaitInstructions() {
		if path, ok := w.takeFile(); ok {
			w.processFile(path)
		} else {
			w.skipFile(path)
		}

		w.setState(WorkerWaiting)
		w.reporter.ReportIdle(w)
	}

	w.setState(WorkerStopped)
	w.logger.Debug("Worker stopped",
		slog.Int64("files", w.filesDone.Load()),
		slog.Int64("events", w.totalEvents.Load()),
	)
}

// takeFile consumes the configured file. ok is false when Stop arrived before
// the file could be read.
func (w *Worker) takeFile() (path string, ok bool) {
	lock := w.cond.Acquire()
	defer lock.Release()

	path = w.file
	w.pending = false
	if w.stop {
		return path, false
	}
	w.state = WorkerRunning
	return path, true
}

// awaitInstructions blocks until a file is configured or stop is asserted. It
// returns false when the worker should exit. A file configured before Stop is
// still returned so that its turn is reported.
func (w *Worker) awaitInstructions() bool {
	lock := w.cond.Acquire()
	defer lock.Release()

	w.cond.WaitUntil(lock, func() bool { return w.pending || w.stop })
	return w.pending
}

func (w *Worker) setState(s WorkerState) {
	lock := w.cond.Acquire()
	w.state = s
	lock.Release()
}

func (w *Worker) processFile(path string) {
	start := time.Now()
	w.logger.Debug("Processing file", slog.String("path", path))

	events, interrupted, err := w.readFile(path)
	w.filesDone.Add(1)

	status := FileCompleted
	switch {
	case err != nil:
		status = FileFailed
		w.logger.Warn("File processing failed", slog.String("path", path), slog.Int64("events", events), slog.String("error", err.Error()))
	case interrupted:
		status = FileInterrupted
		w.logger.Info("File processing interrupted", slog.String("path", path), slog.Int64("events", events))
	default:
		w.logger.Debug("File processed", slog.String("path", path), slog.Int64("events", events), slog.Duration("duration", time.Since(start)))
	}

	w.finish(FileInfo{
		Path:       path,
		WorkerID:   w.id,
		Status:     status,
		Events:     events,
		DurationMs: time.Since(start).Milliseconds(),
	}, err)
}

func (w *Worker) skipFile(path string) {
	w.logger.Debug("Skipping file after stop", slog.String("path", path))
	w.finish(FileInfo{Path: path, WorkerID: w.id, Status: FileSkipped}, nil)
}

func (w *Worker) finish(info FileInfo, err error) {
	if w.onFileDone != nil {
		w.onFileDone(info, err)
	}
}

// readFile streams every event of path through the analyzer. interrupted is
// true only when the stop flag ended the loop before the reader ran out of
// events. Errors are returned, never propagated as panics.
func (w *Worker) readFile(path string) (events int64, interrupted bool, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("%w: %s: event %d: %v", ErrAnalyzerPanic, path, events, rec)
		}
	}()

	r := w.newReader()
	if r == nil {
		return 0, false, fmt.Errorf("%w: %s: reader factory returned nil", ErrOpenFailed, path)
	}
	if openErr := r.Open(path); openErr != nil {
		return 0, false, fmt.Errorf("%w: %s: %w", ErrOpenFailed, path, openErr)
	}
	defer func() {
		if closeErr := r.Close(); closeErr != nil {
			w.logger.Debug("Error closing reader", slog.String("path", path), slog.String("error", closeErr.Error()))
		}
	}()

	for {
		if w.stopRequested.Load() {
			interrupted = true
			break
		}
		if !r.Next() {
			break
		}
		w.analyzer.Process(r.Event())
		events++
		w.fileEvents.Store(events)
		w.totalEvents.Add(1)
	}

	if readErr := r.Err(); readErr != nil && !errors.Is(readErr, io.EOF) {
		return events, interrupted, fmt.Errorf("%w: %s: %w", ErrReadFailed, path, readErr)
	}
	return events, interrupted, nil
}
