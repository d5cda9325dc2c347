package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stackvity/bsm-analyze/pkg/analysis"
	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

// Helper function to create a temporary config file
func createTempConfigFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "bsm-analyze.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

// defineAllFlags mimics the flag definitions of cmd/bsm-analyze.
func defineAllFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Config file")
	flags.String("profile", "", "Config profile")
	flags.BoolP("verbose", "v", false, "Verbose logging")

	flags.IntP("concurrency", "j", scheduler.DefaultConcurrency, "Worker ceiling")
	flags.StringP("analyzer", "a", analysis.DefaultName, "Analyzer")
	flags.String("poll-interval", scheduler.DefaultPollIntervalString, "Keyboard poll interval")
	flags.Bool("no-keyboard", false, "Disable keyboard commands")
	flags.String("output-format", string(scheduler.DefaultOutputFormat), "Output format")
	flags.String("plot", "", "Plot output path")
	flags.String("metrics-file", "", "Metrics textfile")
	flags.StringArray("ignore", []string{}, "Ignore patterns")
	flags.StringSlice("ext", DefaultExtensions, "Extensions")
	flags.Int("max-files", 0, "Max files")
	flags.String("collection", analysis.DefaultCollection, "Collection")
	flags.Float64("min-pt", analysis.DefaultMinPT, "Min pT")
	flags.Float64("eta-limit", analysis.DefaultEtaLimit, "Eta limit")
	flags.Int("n-bins", analysis.DefaultNBins, "Bins")
	flags.Bool("require-charged", false, "Charged only")
}

func newFlags(t *testing.T) *pflag.FlagSet {
	t.Helper()
	t.Setenv("HOME", t.TempDir()) // keep the user's config files out of the test
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	defineAllFlags(flags)
	return flags
}

func TestLoadAndValidate_Defaults(t *testing.T) {
	flags := newFlags(t)

	opts, logger, err := LoadAndValidate("", "", []string{"a.slcio"}, flags)
	require.NoError(t, err)
	require.NotNil(t, logger)
	require.NotNil(t, opts.Logger)

	assert.Equal(t, []string{"a.slcio"}, opts.Inputs)
	assert.Equal(t, analysis.DefaultName, opts.AnalyzerName)
	assert.Equal(t, scheduler.DefaultConcurrency, opts.Concurrency)
	assert.Equal(t, scheduler.DefaultPollInterval, opts.PollInterval)
	assert.Equal(t, scheduler.OutputFormatText, opts.OutputFormat)
	assert.True(t, opts.KeyboardEnabled)
	assert.False(t, opts.Verbose)
	assert.Equal(t, DefaultExtensions, opts.Extensions)
	assert.Equal(t, analysis.DefaultSelection(), opts.Selection)
	assert.Empty(t, opts.ConfigFilePath)
}

func TestLoadAndValidate_ConfigFile(t *testing.T) {
	flags := newFlags(t)
	cfg := createTempConfigFile(t, `
concurrency: 4
analyzer: kinematics
pollInterval: 250ms
keyboard: false
ignore: ["tmp/"]
ext: [".slcio", ".lcio"]
maxFiles: 12
selection:
  minPT: 1.5
  requireCharged: true
`)

	opts, _, err := LoadAndValidate(cfg, "", []string{"runs"}, flags)
	require.NoError(t, err)

	assert.Equal(t, cfg, opts.ConfigFilePath)
	assert.Equal(t, 4, opts.Concurrency)
	assert.Equal(t, analysis.NameKinematics, opts.AnalyzerName)
	assert.Equal(t, 250*time.Millisecond, opts.PollInterval)
	assert.False(t, opts.KeyboardEnabled)
	assert.Equal(t, []string{"tmp/"}, opts.IgnorePatterns)
	assert.Equal(t, []string{".slcio", ".lcio"}, opts.Extensions)
	assert.Equal(t, 12, opts.MaxFiles)
	assert.InDelta(t, 1.5, opts.Selection.MinPT, 1e-9)
	assert.True(t, opts.Selection.RequireCharged)
	assert.Equal(t, analysis.DefaultNBins, opts.Selection.NBins, "unset keys keep their defaults")
}

func TestLoadAndValidate_Profile(t *testing.T) {
	flags := newFlags(t)
	cfg := createTempConfigFile(t, `
concurrency: 2
profiles:
  physics:
    analyzer: kinematics
    selection:
      etaLimit: 2.5
`)

	opts, _, err := LoadAndValidate(cfg, "physics", []string{"a.slcio"}, flags)
	require.NoError(t, err)
	assert.Equal(t, "physics", opts.ProfileName)
	assert.Equal(t, 2, opts.Concurrency)
	assert.Equal(t, analysis.NameKinematics, opts.AnalyzerName)
	assert.InDelta(t, 2.5, opts.Selection.EtaLimit, 1e-9)

	_, _, err = LoadAndValidate(cfg, "missing", []string{"a.slcio"}, newFlags(t))
	assert.ErrorIs(t, err, scheduler.ErrConfigValidation)
}

func TestLoadAndValidate_Precedence(t *testing.T) {
	cfg := createTempConfigFile(t, "concurrency: 4\noutputFormat: json\n")

	t.Run("env overrides file", func(t *testing.T) {
		flags := newFlags(t)
		t.Setenv("BSMANALYZE_CONCURRENCY", "6")
		t.Setenv("BSMANALYZE_SELECTION_NBINS", "20")

		opts, _, err := LoadAndValidate(cfg, "", []string{"a.slcio"}, flags)
		require.NoError(t, err)
		assert.Equal(t, 6, opts.Concurrency)
		assert.Equal(t, 20, opts.Selection.NBins)
		assert.Equal(t, scheduler.OutputFormatJSON, opts.OutputFormat)
	})

	t.Run("flags override env and file", func(t *testing.T) {
		flags := newFlags(t)
		t.Setenv("BSMANALYZE_CONCURRENCY", "6")
		require.NoError(t, flags.Set("concurrency", "3"))
		require.NoError(t, flags.Set("output-format", "text"))
		require.NoError(t, flags.Set("no-keyboard", "true"))
		require.NoError(t, flags.Set("verbose", "true"))
		require.NoError(t, flags.Set("min-pt", "2"))

		opts, _, err := LoadAndValidate(cfg, "", []string{"a.slcio"}, flags)
		require.NoError(t, err)
		assert.Equal(t, 3, opts.Concurrency)
		assert.Equal(t, scheduler.OutputFormatText, opts.OutputFormat)
		assert.False(t, opts.KeyboardEnabled)
		assert.True(t, opts.Verbose)
		assert.InDelta(t, 2.0, opts.Selection.MinPT, 1e-9)
	})
}

func TestLoadAndValidate_InvalidValues(t *testing.T) {
	tests := []struct {
		name string
		flag string
		val  string
	}{
		{"negative concurrency", "concurrency", "-1"},
		{"unknown analyzer", "analyzer", "fft"},
		{"unknown output format", "output-format", "xml"},
		{"unparsable poll interval", "poll-interval", "soon"},
		{"zero poll interval", "poll-interval", "0s"},
		{"zero bins", "n-bins", "0"},
		{"zero eta limit", "eta-limit", "0"},
		{"negative min pt", "min-pt", "-0.5"},
		{"negative max files", "max-files", "-2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flags := newFlags(t)
			require.NoError(t, flags.Set(tt.flag, tt.val))
			_, _, err := LoadAndValidate("", "", []string{"a.slcio"}, flags)
			assert.ErrorIs(t, err, scheduler.ErrConfigValidation)
		})
	}
}

func TestLoadAndValidate_Errors(t *testing.T) {
	_, _, err := LoadAndValidate("", "", nil, newFlags(t))
	assert.ErrorIs(t, err, scheduler.ErrConfigValidation, "inputs are required")

	_, _, err = LoadAndValidate(filepath.Join(t.TempDir(), "absent.yaml"), "", []string{"a.slcio"}, newFlags(t))
	assert.Error(t, err, "an explicit config file must exist")

	bad := createTempConfigFile(t, "concurrency: [1, 2\n")
	_, _, err = LoadAndValidate(bad, "", []string{"a.slcio"}, newFlags(t))
	assert.Error(t, err)
}

func TestLoadAndValidate_CreatesOutputDirectories(t *testing.T) {
	flags := newFlags(t)
	dir := t.TempDir()
	plot := filepath.Join(dir, "plots", "kin.png")
	metrics := filepath.Join(dir, "metrics", "run.prom")
	require.NoError(t, flags.Set("plot", plot))
	require.NoError(t, flags.Set("metrics-file", metrics))

	opts, _, err := LoadAndValidate("", "", []string{"a.slcio"}, flags)
	require.NoError(t, err)
	assert.Equal(t, plot, opts.PlotPath)
	assert.DirExists(t, filepath.Dir(plot))
	assert.DirExists(t, filepath.Dir(metrics))
}
