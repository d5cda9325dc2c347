package scheduler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/google/uuid"
)

// --- Status Rendering ---

var (
	statusTitleStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	statusLabelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	statusValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("255"))
	statusQuitStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
)

// Progress is a snapshot of the current run.
type Progress struct {
	Active         bool
	TotalFiles     int
	Dispatched     int
	FilesCompleted int // finished files, skipped ones excluded
	FilesSkipped   int
	RunningWorkers int
	Events         int64
	Quit           bool
}

// String renders the snapshot on one line.
func (p Progress) String() string {
	line := fmt.Sprintf("%s %s  %s %s  %s %s",
		statusLabelStyle.Render("files"), statusValueStyle.Render(fmt.Sprintf("%d/%d", p.FilesCompleted, p.TotalFiles)),
		statusLabelStyle.Render("workers"), statusValueStyle.Render(fmt.Sprintf("%d", p.RunningWorkers)),
		statusLabelStyle.Render("events"), statusValueStyle.Render(fmt.Sprintf("%d", p.Events)),
	)
	if p.FilesSkipped > 0 {
		line += "  " + statusLabelStyle.Render("skipped") + " " + statusValueStyle.Render(fmt.Sprintf("%d", p.FilesSkipped))
	}
	if p.Quit {
		line += "  " + statusQuitStyle.Render("quitting")
	}
	return statusTitleStyle.Render("status") + " " + line
}

// --- Controller ---

// Controller coordinates a pool of Workers over a FIFO queue of input files.
//
// Files and the Analyzer prototype are installed with Push and Use before a
// run. Run blocks the caller until every worker has retired and returns the
// merged result. A Controller is reusable: its queue and counters are reset
// when a run ends.
type Controller struct {
	opts    Options
	logger  *slog.Logger
	handler slog.Handler
	hooks   Hooks
	metrics *Metrics
	out     io.Writer
	ids     IDSource
	cond    *Condition

	// Guarded by cond.
	prototype      Analyzer
	files          []string
	cursor         int
	completed      []*Worker
	workers        map[uint64]*Worker
	order          []uint64
	runningThreads int
	active         bool
	quit           bool

	filesDone    atomic.Int64
	filesSkipped atomic.Int64
}

// assignment is a dispatch recorded under the lock and announced to the hooks
// after it is released.
type assignment struct {
	path     string
	workerID uint64
}

// NewController validates opts and returns an idle Controller.
func NewController(opts Options) (*Controller, error) {
	if opts.NewReader == nil {
		return nil, fmt.Errorf("%w: a reader factory is required", ErrConfigValidation)
	}
	if opts.Concurrency < 0 {
		return nil, fmt.Errorf("%w: concurrency must be >= 0, got %d", ErrConfigValidation, opts.Concurrency)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = DefaultPollInterval
	}
	handler := opts.Logger
	if handler == nil {
		handler = slog.NewTextHandler(io.Discard, nil)
	}
	hooks := opts.Hooks
	if hooks == nil {
		hooks = &NoOpHooks{}
	}
	out := opts.Output
	if out == nil {
		out = os.Stdout
	}
	return &Controller{
		opts:    opts,
		logger:  slog.New(handler).With(slog.String("component", "controller")),
		handler: handler,
		hooks:   hooks,
		metrics: opts.Metrics,
		out:     out,
		cond:    NewCondition(),
	}, nil
}

// Push appends path to the input queue.
func (c *Controller) Push(path string) error {
	lock := c.cond.Acquire()
	defer lock.Release()
	return c.pushLocked(path)
}

func (c *Controller) pushLocked(paths ...string) error {
	if c.active {
		return ErrAlreadyRunning
	}
	for _, p := range paths {
		if p == "" {
			return ErrInvalidPath
		}
	}
	c.files = append(c.files, paths...)
	return nil
}

// Use installs the Analyzer prototype cloned by every worker.
func (c *Controller) Use(prototype Analyzer) error {
	if prototype == nil {
		return ErrNoAnalyzer
	}
	lock := c.cond.Acquire()
	defer lock.Release()
	if c.active {
		return ErrAlreadyRunning
	}
	c.prototype = prototype
	return nil
}

// Process pushes files and runs. The queue is left untouched if any path is invalid.
func (c *Controller) Process(ctx context.Context, files []string) (Report, error) {
	lock := c.cond.Acquire()
	err := c.pushLocked(files...)
	lock.Release()
	if err != nil {
		return Report{}, err
	}
	return c.Run(ctx)
}

// Run processes every queued file and blocks until all workers have retired.
//
// With an empty queue it returns ErrNoFiles together with a Report whose
// Analyzer is an empty clone of the prototype. Cancelling ctx has the same
// effect as CommandQuit. Per-file failures never fail the run; they are listed
// in Report.Errors.
func (c *Controller) Run(ctx context.Context) (Report, error) {
	lock := c.cond.Acquire()
	if c.active {
		lock.Release()
		return Report{}, ErrAlreadyRunning
	}
	if c.prototype == nil {
		lock.Release()
		return Report{}, ErrNoAnalyzer
	}
	prototype := c.prototype
	if len(c.files) == 0 {
		lock.Release()
		return Report{
			Summary:  ReportSummary{Timestamp: time.Now().UTC(), SchemaVersion: ReportSchemaVersion},
			Files:    []FileInfo{},
			Errors:   []ErrorInfo{},
			Analyzer: prototype.Clone(),
		}, ErrNoFiles
	}
	c.active = true
	files := c.files
	lock.Release()

	startTime := time.Now()
	runID := uuid.NewString()
	agg := newReportAggregator()
	c.filesDone.Store(0)
	c.filesSkipped.Store(0)

	size := poolSize(c.opts.Concurrency, len(files))
	workers, err := c.buildWorkers(size, prototype, agg)
	if err != nil {
		c.reset()
		return Report{}, err
	}

	var keyboard *Keyboard
	if c.opts.KeySource != nil {
		keyboard, err = NewKeyboard(c.opts.KeySource, c, c.opts.PollInterval, c.handler)
		if err != nil {
			c.reset()
			return Report{}, err
		}
	}

	c.logger.Info("Starting run",
		slog.String("runID", runID),
		slog.Int("files", len(files)),
		slog.Int("workers", size),
	)

	lock = c.cond.Acquire()
	c.workers = make(map[uint64]*Worker, size)
	c.order = make([]uint64, 0, size)
	for _, w := range workers {
		c.workers[w.ID()] = w
		c.order = append(c.order, w.ID())
		if startErr := w.Start(); startErr != nil {
			c.logger.Error("Failed to start worker", slog.Uint64("workerID", w.ID()), slog.String("error", startErr.Error()))
		}
	}
	c.runningThreads = size
	var assigned []assignment
	for _, w := range workers {
		if a, ok := c.dispatchLocked(w); ok {
			assigned = append(assigned, a)
			continue
		}
		w.Stop()
		c.runningThreads--
	}
	c.metrics.setRunning(c.runningThreads)
	lock.Release()
	c.announce(assigned)

	if keyboard != nil {
		if startErr := keyboard.Start(); startErr != nil {
			c.logger.Warn("Keyboard not started", slog.String("error", startErr.Error()))
		}
	}
	stopCancel := context.AfterFunc(ctx, func() {
		c.logger.Info("Context cancelled, stopping workers")
		c.Notify(CommandQuit)
	})
	defer stopCancel()

	c.await()

	if keyboard != nil {
		keyboard.Stop()
		keyboard.Join()
	}
	for _, w := range workers {
		w.Join()
	}

	lock = c.cond.Acquire()
	quit := c.quit
	undispatched := files[c.cursor:]
	lock.Release()
	for _, path := range undispatched {
		agg.add(FileInfo{Path: path, Status: FileSkipped}, nil)
	}

	result, mergeErr := mergeWorkers(prototype, workers)
	report := agg.getReport(runID, inputOrder(files), len(files), size, quit, startTime)
	report.Analyzer = result

	c.logger.Info("Run finished",
		slog.String("runID", runID),
		slog.Int("completed", report.Summary.CompletedCount),
		slog.Int("failed", report.Summary.FailedCount),
		slog.Int64("events", report.Summary.EventsProcessed),
		slog.Bool("quit", quit),
		slog.Duration("duration", time.Since(startTime)),
	)
	if hookErr := c.hooks.OnRunComplete(report); hookErr != nil {
		c.logger.Warn("Hook OnRunComplete failed", slog.String("error", hookErr.Error()))
	}

	c.reset()
	return report, mergeErr
}

// await blocks until the running-thread count drops to zero, redispatching or
// retiring every worker that reports in.
func (c *Controller) await() {
	for {
		lock := c.cond.Acquire()
		if c.runningThreads == 0 {
			lock.Release()
			return
		}
		c.cond.WaitUntil(lock, func() bool { return len(c.completed) > 0 })

		batch := c.completed
		c.completed = nil
		var assigned []assignment
		for _, w := range batch {
			w.queued = false
			if a, ok := c.dispatchLocked(w); ok {
				assigned = append(assigned, a)
				continue
			}
			w.Stop()
			c.runningThreads--
			c.metrics.setRunning(c.runningThreads)
			c.logger.Debug("Worker retired", slog.Uint64("workerID", w.ID()), slog.Int("running", c.runningThreads))
		}
		lock.Release()
		c.announce(assigned)
	}
}

// dispatchLocked hands the next queued file to w. It reports false when the
// queue is exhausted or a quit was requested.
func (c *Controller) dispatchLocked(w *Worker) (assignment, bool) {
	if c.quit || c.cursor >= len(c.files) {
		return assignment{}, false
	}
	path := c.files[c.cursor]
	if err := w.Configure(path); err != nil {
		c.logger.Warn("Worker rejected file", slog.Uint64("workerID", w.ID()), slog.String("path", path), slog.String("error", err.Error()))
		return assignment{}, false
	}
	c.cursor++
	c.metrics.fileDispatched(w.ID())
	return assignment{path: path, workerID: w.ID()}, true
}

// announce calls OnFileAssigned for each dispatch. It must run without the
// lock held so hooks may call Status or Notify.
func (c *Controller) announce(assigned []assignment) {
	for _, a := range assigned {
		if err := c.hooks.OnFileAssigned(a.path, a.workerID); err != nil {
			c.logger.Warn("Hook OnFileAssigned failed", slog.String("path", a.path), slog.String("error", err.Error()))
		}
	}
}

// ReportIdle puts w on the completion queue and wakes the controller. A worker
// already on the queue is not added twice.
func (c *Controller) ReportIdle(w *Worker) {
	lock := c.cond.Acquire()
	defer lock.Release()
	if !w.queued {
		w.queued = true
		c.completed = append(c.completed, w)
	}
	c.cond.NotifyAll()
}

// Notify executes an operator command. It is safe to call from any goroutine.
func (c *Controller) Notify(cmd Command) {
	switch cmd {
	case CommandQuit:
		c.requestQuit()
	case CommandStatus:
		fmt.Fprintln(c.out, c.Status().String())
	case CommandHelp:
		fmt.Fprintln(c.out, helpText)
	default:
		c.logger.Warn("Unknown command", slog.String("command", string(cmd)))
	}
}

func (c *Controller) requestQuit() {
	lock := c.cond.Acquire()
	defer lock.Release()
	if !c.active || c.quit {
		return
	}
	c.quit = true
	c.logger.Info("Quit requested", slog.Int("undispatched", len(c.files)-c.cursor))
	for _, id := range c.order {
		c.workers[id].Stop()
	}
	c.cond.NotifyAll()
}

// Status returns a snapshot of the current run.
func (c *Controller) Status() Progress {
	lock := c.cond.Acquire()
	defer lock.Release()

	p := Progress{
		Active:         c.active,
		TotalFiles:     len(c.files),
		Dispatched:     c.cursor,
		FilesCompleted: int(c.filesDone.Load()),
		FilesSkipped:   int(c.filesSkipped.Load()),
		RunningWorkers: c.runningThreads,
		Quit:           c.quit,
	}
	for _, id := range c.order {
		p.Events += c.workers[id].TotalEvents()
	}
	return p
}

// --- Internals ---

func (c *Controller) buildWorkers(size int, prototype Analyzer, agg *reportAggregator) ([]*Worker, error) {
	workers := make([]*Worker, 0, size)
	for i := 0; i < size; i++ {
		clone := prototype.Clone()
		if clone == nil {
			return nil, fmt.Errorf("%w: prototype clone returned nil", ErrNoAnalyzer)
		}
		w, err := NewWorker(WorkerConfig{
			ID:        c.ids.Next(),
			Analyzer:  clone,
			NewReader: c.opts.NewReader,
			Reporter:  c,
			Logger:    c.handler,
			OnFileDone: func(info FileInfo, err error) {
				c.fileDone(agg, info, err)
			},
		})
		if err != nil {
			return nil, err
		}
		workers = append(workers, w)
	}
	return workers, nil
}

// fileDone runs on worker goroutines.
func (c *Controller) fileDone(agg *reportAggregator, info FileInfo, err error) {
	agg.add(info, err)
	if info.Status == FileSkipped {
		c.filesSkipped.Add(1)
	} else {
		c.filesDone.Add(1)
	}
	duration := time.Duration(info.DurationMs) * time.Millisecond
	c.metrics.fileFinished(info.Status, info.Events, duration.Seconds())

	message := fmt.Sprintf("%d events", info.Events)
	if err != nil {
		message = err.Error()
	}
	if hookErr := c.hooks.OnFileStatusUpdate(info.Path, info.Status, message, duration); hookErr != nil {
		c.logger.Warn("Hook OnFileStatusUpdate failed", slog.String("path", info.Path), slog.String("error", hookErr.Error()))
	}
}

func (c *Controller) reset() {
	lock := c.cond.Acquire()
	defer lock.Release()
	c.files = nil
	c.cursor = 0
	c.completed = nil
	c.workers = nil
	c.order = nil
	c.runningThreads = 0
	c.active = false
	c.quit = false
	c.metrics.setRunning(0)
}

// mergeWorkers folds the worker clones, in ascending id order, into a fresh
// clone of the prototype.
func mergeWorkers(prototype Analyzer, workers []*Worker) (Analyzer, error) {
	result := prototype.Clone()
	var errs []error
	for _, w := range workers {
		if err := result.Merge(w.Analyzer()); err != nil {
			errs = append(errs, fmt.Errorf("merge worker %d: %w", w.ID(), err))
		}
	}
	return result, errors.Join(errs...)
}

// poolSize returns min(parallelism, files), where a non-positive parallelism
// means runtime.NumCPU(). The result is at least 1.
func poolSize(parallelism, files int) int {
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}
	return max(1, min(parallelism, files))
}

func inputOrder(files []string) map[string]int {
	order := make(map[string]int, len(files))
	for i := len(files) - 1; i >= 0; i-- {
		order[files[i]] = i
	}
	return order
}
