package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/stackvity/bsm-analyze/internal/cli/config"
	"github.com/stackvity/bsm-analyze/internal/cli/hooks"
	"github.com/stackvity/bsm-analyze/internal/cli/keyboard"
	"github.com/stackvity/bsm-analyze/pkg/analysis"
	"github.com/stackvity/bsm-analyze/pkg/inputs"
	"github.com/stackvity/bsm-analyze/pkg/reader"
	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// Streams are the process streams a run talks to. In may be nil, which
// disables keyboard commands.
type Streams struct {
	In  *os.File
	Out io.Writer // analyzer result
	Err io.Writer // logs, status, progress and summary
}

// jsonReport is the document printed with --output-format json.
type jsonReport struct {
	scheduler.Report
	Analyzer string `json:"analyzer"`
	Result   string `json:"result"`
}

// Run orchestrates one analysis after configuration loading: it expands the
// inputs, runs the controller over them and prints the merged result.
func Run(ctx context.Context, opts scheduler.Options, logger *slog.Logger, streams Streams) error {
	if streams.Out == nil {
		streams.Out = io.Discard
	}
	if streams.Err == nil {
		streams.Err = io.Discard
	}

	files, err := inputs.Collect(ctx, opts.Inputs, inputs.Options{
		IgnorePatterns: opts.IgnorePatterns,
		Extensions:     opts.Extensions,
		MaxFiles:       opts.MaxFiles,
		Logger:         opts.Logger,
	})
	if err != nil {
		return err
	}
	if len(files) == 0 {
		logger.Warn("No input files matched", slog.Any("inputs", opts.Inputs), slog.Any("extensions", opts.Extensions))
		return fmt.Errorf("%w: nothing matched %v", scheduler.ErrNoFiles, opts.Inputs)
	}

	prototype, err := analysis.New(opts.AnalyzerName, opts.Selection)
	if err != nil {
		return err
	}

	registry := prometheus.NewRegistry()
	metrics, err := scheduler.NewMetrics(registry)
	if err != nil {
		return fmt.Errorf("could not register metrics: %w", err)
	}

	// --- Keyboard ---
	var terminal *keyboard.Terminal
	var bar hooks.ProgressBar
	if opts.KeyboardEnabled && streams.In != nil {
		terminal, err = keyboard.OpenTerminal(streams.In)
		if err != nil {
			logger.Debug("Keyboard commands disabled", slog.String("reason", err.Error()))
			terminal = nil
		}
	}
	if terminal != nil {
		defer func() { _ = terminal.Restore() }()
		streams.Err = keyboard.CRLF(streams.Err)
		opts.Logger = config.NewLogHandler(streams.Err, opts.Verbose)
		logger = slog.New(opts.Logger)
		opts.KeySource = terminal
		if !opts.Verbose {
			bar = newProgressLine(streams.Err, len(files))
		}
		fmt.Fprintln(streams.Err, helpStyle.Render("press h for help, q to stop"))
	}
	opts.Output = streams.Err

	opts.Hooks = hooks.NewCLIHooks(logger, opts.Verbose, bar)
	opts.NewReader = reader.NewLCIOReader
	opts.Metrics = metrics

	controller, err := scheduler.NewController(opts)
	if err != nil {
		return err
	}
	if err := controller.Use(prototype); err != nil {
		return err
	}

	logger.Info("Starting analysis",
		slog.String("analyzer", opts.AnalyzerName),
		slog.Int("files", len(files)),
		slog.Int("concurrency", opts.Concurrency),
	)
	report, runErr := controller.Process(ctx, files)
	if terminal != nil {
		if err := terminal.Restore(); err != nil {
			logger.Warn("Could not restore terminal", slog.String("error", err.Error()))
		}
	}
	if runErr != nil {
		logger.Error("Analysis run failed", slog.Any("error", runErr))
		return runErr
	}

	if err := writeResult(streams.Out, opts.OutputFormat, opts.AnalyzerName, report); err != nil {
		return err
	}
	printSummary(streams.Err, report.Summary)

	if opts.PlotPath != "" {
		written, err := analysis.SavePlots(report.Analyzer, opts.PlotPath)
		switch {
		case errors.Is(err, analysis.ErrNotPlottable):
			logger.Warn("Analyzer has nothing to plot", slog.String("analyzer", opts.AnalyzerName))
		case err != nil:
			return err
		default:
			logger.Info("Plots written", slog.Any("files", written))
		}
	}
	if opts.MetricsFile != "" {
		if err := prometheus.WriteToTextfile(opts.MetricsFile, registry); err != nil {
			return fmt.Errorf("could not write metrics to %s: %w", opts.MetricsFile, err)
		}
		logger.Debug("Metrics written", slog.String("path", opts.MetricsFile))
	}

	if n := report.Summary.FailedCount; n > 0 {
		logger.Warn("Some files could not be analyzed", slog.Int("failed", n))
	}
	return nil
}

func writeResult(w io.Writer, format scheduler.OutputFormat, name string, report scheduler.Report) error {
	var result bytes.Buffer
	if err := report.Analyzer.Print(&result); err != nil {
		return fmt.Errorf("could not print analyzer result: %w", err)
	}
	if format != scheduler.OutputFormatJSON {
		_, err := w.Write(result.Bytes())
		return err
	}

	data, err := json.MarshalIndent(jsonReport{Report: report, Analyzer: name, Result: result.String()}, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
