package scheduler

import (
	"io"
	"log/slog"
	"time"
)

// SelectionConfig holds the particle selection cuts used by the kinematics analyzer.
type SelectionConfig struct {
	Collection     string  `mapstructure:"collection"`
	MinPT          float64 `mapstructure:"minPT"`
	EtaLimit       float64 `mapstructure:"etaLimit"`
	NBins          int     `mapstructure:"nBins"`
	RequireCharged bool    `mapstructure:"requireCharged"`
}

// Hooks defines callbacks for progress updates during a run.
// Implementations MUST be thread-safe as methods are called from worker goroutines.
// No controller lock is held during a call, so hooks may call Controller.Status
// or Controller.Notify. OnFileAssigned may arrive after the worker has started
// on the file.
type Hooks interface {
	OnFileAssigned(path string, workerID uint64) error
	OnFileStatusUpdate(path string, status FileStatus, message string, duration time.Duration) error
	OnRunComplete(report Report) error
}

// NoOpHooks provides a default, do-nothing implementation of the Hooks interface.
type NoOpHooks struct{}

// OnFileAssigned implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileAssigned(path string, workerID uint64) error { return nil }

// OnFileStatusUpdate implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnFileStatusUpdate(path string, status FileStatus, message string, duration time.Duration) error {
	return nil
}

// OnRunComplete implements the Hooks interface. It performs no action.
func (h *NoOpHooks) OnRunComplete(report Report) error { return nil }

// Options holds all configuration for a bsm-analyze run.
type Options struct {
	// --- Inputs ---
	Inputs         []string `mapstructure:"-"`      // Positional file or directory arguments
	IgnorePatterns []string `mapstructure:"ignore"` // Glob patterns skipped while expanding directories
	Extensions     []string `mapstructure:"ext"`    // File extensions accepted from directories (empty = all)
	MaxFiles       int      `mapstructure:"maxFiles"`

	// --- Behavior & Control ---
	ConfigFilePath  string        `mapstructure:"-"` // Path to the loaded config file (for reporting)
	ProfileName     string        `mapstructure:"-"` // Name of the profile used (for reporting)
	Verbose         bool          `mapstructure:"verbose"`
	KeyboardEnabled bool          `mapstructure:"keyboard"`
	PollInterval    time.Duration `mapstructure:"-"` // Derived from PollIntervalCfg
	PollIntervalCfg string        `mapstructure:"pollInterval"`

	// --- Performance ---
	Concurrency int `mapstructure:"concurrency"` // Worker ceiling (0=auto)

	// --- Analysis & Output ---
	AnalyzerName string          `mapstructure:"analyzer"`
	Selection    SelectionConfig `mapstructure:"selection"`
	OutputFormat OutputFormat    `mapstructure:"outputFormat"`
	PlotPath     string          `mapstructure:"plot"`
	MetricsFile  string          `mapstructure:"metricsFile"`

	// --- Injected Dependencies ---
	Logger    slog.Handler  `mapstructure:"-"` // Required: Logging backend
	Hooks     Hooks         `mapstructure:"-"` // Optional: progress callbacks
	NewReader ReaderFactory `mapstructure:"-"` // Required: one Reader per file
	KeySource KeySource     `mapstructure:"-"` // Optional: nil disables the keyboard goroutine
	Output    io.Writer     `mapstructure:"-"` // Optional: status/help sink (default os.Stdout)
	Metrics   *Metrics      `mapstructure:"-"` // Optional: prometheus instrumentation
}
