package scheduler

import (
	"sort"
	"sync"
	"time"
)

// Report summarizes the result of a single Controller run.
type Report struct {
	Summary  ReportSummary `json:"summary"`
	Files    []FileInfo    `json:"files"`
	Errors   []ErrorInfo   `json:"errors"`
	Analyzer Analyzer      `json:"-"` // Merged result of every worker's clone
}

// ReportSummary contains aggregated statistics for a run.
type ReportSummary struct {
	RunID            string    `json:"runId"`
	TotalFiles       int       `json:"totalFiles"`
	CompletedCount   int       `json:"completedCount"`
	FailedCount      int       `json:"failedCount"`
	InterruptedCount int       `json:"interruptedCount"`
	SkippedCount     int       `json:"skippedCount"`
	EventsProcessed  int64     `json:"eventsProcessed"`
	PoolSize         int       `json:"poolSize"`
	Quit             bool      `json:"quit"`
	DurationSeconds  float64   `json:"durationSeconds"`
	Timestamp        time.Time `json:"timestamp"`
	SchemaVersion    string    `json:"schemaVersion,omitempty"`
}

// FileInfo details one input file handed to a worker.
type FileInfo struct {
	Path       string     `json:"path"`
	WorkerID   uint64     `json:"workerId"`
	Status     FileStatus `json:"status"`
	Events     int64      `json:"events"`
	DurationMs int64      `json:"durationMs"`
}

// ErrorInfo details a per-file error. Such errors never abort the run.
type ErrorInfo struct {
	Path     string `json:"path"`
	WorkerID uint64 `json:"workerId"`
	Error    string `json:"error"`
}

// --- reportAggregator ---

// reportAggregator collects file results from workers during a run.
type reportAggregator struct {
	mu     sync.Mutex
	files  []FileInfo
	errors []ErrorInfo
}

func newReportAggregator() *reportAggregator {
	return &reportAggregator{
		files:  make([]FileInfo, 0, 64),
		errors: make([]ErrorInfo, 0, 8),
	}
}

// add records one file result (thread-safe).
func (a *reportAggregator) add(info FileInfo, err error) {
	a.mu.Lock()
	a.files = append(a.files, info)
	if err != nil {
		a.errors = append(a.errors, ErrorInfo{Path: info.Path, WorkerID: info.WorkerID, Error: err.Error()})
	}
	a.mu.Unlock()
}

// getReport compiles the final Report. Files are ordered by input position so
// the report does not depend on completion order.
func (a *reportAggregator) getReport(runID string, order map[string]int, total, poolSize int, quit bool, startTime time.Time) Report {
	a.mu.Lock()
	files := make([]FileInfo, len(a.files))
	copy(files, a.files)
	errs := make([]ErrorInfo, len(a.errors))
	copy(errs, a.errors)
	a.mu.Unlock()

	sort.SliceStable(files, func(i, j int) bool { return order[files[i].Path] < order[files[j].Path] })
	sort.SliceStable(errs, func(i, j int) bool { return order[errs[i].Path] < order[errs[j].Path] })

	summary := ReportSummary{
		RunID:           runID,
		TotalFiles:      total,
		PoolSize:        poolSize,
		Quit:            quit,
		DurationSeconds: time.Since(startTime).Seconds(),
		Timestamp:       time.Now().UTC(),
		SchemaVersion:   ReportSchemaVersion,
	}
	for _, f := range files {
		switch f.Status {
		case FileCompleted:
			summary.CompletedCount++
		case FileFailed:
			summary.FailedCount++
		case FileInterrupted:
			summary.InterruptedCount++
		case FileSkipped:
			summary.SkippedCount++
		}
		summary.EventsProcessed += f.Events
	}
	return Report{Summary: summary, Files: files, Errors: errs}
}
