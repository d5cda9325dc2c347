package hooks

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// CLIHooks implements scheduler.Hooks, bridging controller events to the
// CLI's logger and progress line.
type CLIHooks struct {
	logger         *slog.Logger
	verboseEnabled bool
	progressBar    ProgressBar
	mu             sync.Mutex // Protects progressBar
}

// ProgressBar defines the interface needed to report finished files.
type ProgressBar interface {
	Add(num int) error
	Describe(description string) error
	Close() error
}

// NoOpProgressBar provides a default null implementation.
type NoOpProgressBar struct{}

// Add implements ProgressBar.
func (n *NoOpProgressBar) Add(num int) error { return nil }

// Describe implements ProgressBar.
func (n *NoOpProgressBar) Describe(description string) error { return nil }

// Close implements ProgressBar.
func (n *NoOpProgressBar) Close() error { return nil }

// NewCLIHooks creates a new CLIHooks instance. Pass nil for progBar when no
// progress line is shown.
func NewCLIHooks(logger *slog.Logger, verboseEnabled bool, progBar ProgressBar) *CLIHooks {
	if progBar == nil {
		progBar = &NoOpProgressBar{}
	}
	return &CLIHooks{
		logger:         logger,
		verboseEnabled: verboseEnabled,
		progressBar:    progBar,
	}
}

var _ scheduler.Hooks = (*CLIHooks)(nil)

// OnFileAssigned logs the hand-over of a file to a worker in verbose mode.
func (h *CLIHooks) OnFileAssigned(path string, workerID uint64) error {
	if h.verboseEnabled {
		h.logger.Debug("File assigned", slog.String("path", path), slog.Uint64("worker", workerID))
	}
	return nil
}

// OnFileStatusUpdate handles the final status of one file.
// This method MUST be thread-safe.
func (h *CLIHooks) OnFileStatusUpdate(path string, status scheduler.FileStatus, message string, duration time.Duration) error {
	attrs := []slog.Attr{
		slog.String("path", path),
		slog.String("status", string(status)),
	}
	if duration > 0 {
		attrs = append(attrs, slog.Duration("duration", duration))
	}

	switch status {
	case scheduler.FileFailed:
		h.logger.LogAttrs(context.Background(), slog.LevelError, "File processing failed", append(attrs, slog.String("error", message))...)
	case scheduler.FileInterrupted:
		h.logger.LogAttrs(context.Background(), slog.LevelWarn, "File processing interrupted", append(attrs, slog.String("message", message))...)
	default:
		if h.verboseEnabled {
			if message != "" {
				attrs = append(attrs, slog.String("message", message))
			}
			h.logger.LogAttrs(context.Background(), slog.LevelInfo, "File status updated", attrs...)
		}
	}

	h.mu.Lock()
	_ = h.progressBar.Add(1)
	h.mu.Unlock()
	return nil
}

// OnRunComplete finalizes the progress bar. The summary itself is printed by
// the CLI after Run returns.
func (h *CLIHooks) OnRunComplete(report scheduler.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if report.Summary.Quit {
		_ = h.progressBar.Describe("quit")
	}
	_ = h.progressBar.Close()
	return nil
}
