package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/stackvity/bsm-analyze/pkg/analysis"
	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

const (
	EnvPrefix         = "BSMANALYZE"
	DefaultConfigName = "bsm-analyze"
)

// DefaultExtensions are the file extensions accepted when expanding directories.
var DefaultExtensions = []string{".slcio"}

// flagKeys maps viper keys to the command line flags that override them.
var flagKeys = map[string]string{
	"verbose":                  "verbose",
	"concurrency":              "concurrency",
	"analyzer":                 "analyzer",
	"pollInterval":             "poll-interval",
	"outputFormat":             "output-format",
	"plot":                     "plot",
	"metricsFile":              "metrics-file",
	"ignore":                   "ignore",
	"ext":                      "ext",
	"maxFiles":                 "max-files",
	"selection.collection":     "collection",
	"selection.minPT":          "min-pt",
	"selection.etaLimit":       "eta-limit",
	"selection.nBins":          "n-bins",
	"selection.requireCharged": "require-charged",
}

// LoadAndValidate loads configuration from all sources (defaults, file,
// profile, env, flags), validates the merged result and sets up the logger.
// args are the positional inputs of the command.
func LoadAndValidate(cfgFile, profileName string, args []string, flags *pflag.FlagSet) (scheduler.Options, *slog.Logger, error) {
	var opts scheduler.Options
	v := viper.New()

	tempLogger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelInfo}))

	setDefaults(v)

	// --- Load Config File ---
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			tempLogger.Error("Failed to get user home directory", slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("failed to get user home directory: %w", err)
		}
		v.SetConfigName(DefaultConfigName)
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join(home, ".config", DefaultConfigName))
		v.AddConfigPath(filepath.Join(home, "."+DefaultConfigName))
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) && cfgFile == "" {
			tempLogger.Debug("No configuration file found, using defaults/env/flags.")
		} else {
			used := cfgFile
			if used == "" {
				used = fmt.Sprintf("searched locations for %s.yaml", DefaultConfigName)
			}
			tempLogger.Error("Error reading configuration file", slog.String("path", used), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error reading config file '%s': %w", used, err)
		}
	} else {
		opts.ConfigFilePath = v.ConfigFileUsed()
	}

	// --- Apply Profile ---
	opts.ProfileName = profileName
	if profileName != "" {
		profileKey := "profiles." + profileName
		if !v.IsSet(profileKey) {
			configPath := v.ConfigFileUsed()
			if configPath == "" {
				configPath = "(no config file found)"
			}
			err := fmt.Errorf("%w: profile '%s' not found in config file '%s'", scheduler.ErrConfigValidation, profileName, configPath)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		profile := v.Sub(profileKey)
		if profile == nil {
			err := fmt.Errorf("%w: profile '%s' is not a map", scheduler.ErrConfigValidation, profileName)
			tempLogger.Error(err.Error())
			return opts, tempLogger, err
		}
		if err := v.MergeConfigMap(profile.AllSettings()); err != nil {
			tempLogger.Error("Error merging profile", slog.String("profile", profileName), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error merging profile '%s': %w", profileName, err)
		}
	}

	// --- Bind Environment Variables ---
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// --- Bind Flags (Highest Priority) ---
	for key, name := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			tempLogger.Debug("Flag lookup failed during binding", slog.String("flag", name))
			continue
		}
		if err := v.BindPFlag(key, flag); err != nil {
			tempLogger.Error("Error binding flag", slog.String("flag", name), slog.Any("error", err))
			return opts, tempLogger, fmt.Errorf("error binding flag '--%s': %w", name, err)
		}
	}

	if err := v.Unmarshal(&opts); err != nil {
		tempLogger.Error("Error unmarshalling configuration", slog.Any("error", err))
		return opts, tempLogger, fmt.Errorf("%w: error unmarshalling configuration: %w", scheduler.ErrConfigValidation, err)
	}

	// --- Explicitly Handle Flag Overrides for Booleans ---
	if flags.Changed("verbose") {
		opts.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("no-keyboard") {
		if noKeyboard, _ := flags.GetBool("no-keyboard"); noKeyboard {
			opts.KeyboardEnabled = false
		}
	}
	opts.Inputs = args

	// --- Setup Final Logger ---
	logHandler := NewLogHandler(os.Stderr, opts.Verbose)
	logger := slog.New(logHandler)
	opts.Logger = logHandler

	if err := validateAndDeriveOptions(&opts, logger); err != nil {
		return opts, logger, err
	}

	logger.Debug("Configuration loading and validation complete",
		slog.String("configFile", opts.ConfigFilePath),
		slog.String("profile", opts.ProfileName),
		slog.String("analyzer", opts.AnalyzerName),
		slog.Int("concurrency", opts.Concurrency),
		slog.Duration("pollInterval", opts.PollInterval),
		slog.Int("inputs", len(opts.Inputs)),
	)
	return opts, logger, nil
}

// NewLogHandler returns the CLI's text handler writing to w, at debug level
// when verbose is set.
func NewLogHandler(w io.Writer, verbose bool) slog.Handler {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	return slog.NewTextHandler(w, &slog.HandlerOptions{Level: logLevel})
}

// setDefaults establishes the default values for configuration options in Viper.
func setDefaults(v *viper.Viper) {
	// --- Behavior & Control ---
	v.SetDefault("verbose", scheduler.DefaultVerbose)
	v.SetDefault("keyboard", scheduler.DefaultKeyboardEnabled)
	v.SetDefault("pollInterval", scheduler.DefaultPollIntervalString)

	// --- Performance ---
	v.SetDefault("concurrency", scheduler.DefaultConcurrency)

	// --- Inputs ---
	v.SetDefault("ignore", []string{})
	v.SetDefault("ext", DefaultExtensions)
	v.SetDefault("maxFiles", 0)

	// --- Analysis & Output ---
	sel := analysis.DefaultSelection()
	v.SetDefault("analyzer", analysis.DefaultName)
	v.SetDefault("selection.collection", sel.Collection)
	v.SetDefault("selection.minPT", sel.MinPT)
	v.SetDefault("selection.etaLimit", sel.EtaLimit)
	v.SetDefault("selection.nBins", sel.NBins)
	v.SetDefault("selection.requireCharged", sel.RequireCharged)
	v.SetDefault("outputFormat", string(scheduler.DefaultOutputFormat))
	v.SetDefault("plot", "")
	v.SetDefault("metricsFile", "")
}

// isValidEnumValue checks if value is present in allowedValues (case-sensitive).
func isValidEnumValue[T ~string](value T, allowedValues []T) bool {
	return slices.Contains(allowedValues, value)
}

// validateAndDeriveOptions performs semantic validation on the populated
// Options and derives PollInterval. Errors wrap scheduler.ErrConfigValidation.
func validateAndDeriveOptions(opts *scheduler.Options, logger *slog.Logger) error {
	fail := func(key string, err error) error {
		logger.Error(err.Error(), slog.String("key", key))
		return err
	}

	if len(opts.Inputs) == 0 {
		return fail("inputs", fmt.Errorf("%w: at least one input file or directory is required", scheduler.ErrConfigValidation))
	}

	// === Enum String Validations ===
	if !isValidEnumValue(opts.AnalyzerName, analysis.Names()) {
		return fail("analyzer", fmt.Errorf("%w: invalid value '%s' for key 'analyzer' (flag --analyzer). Allowed: %v",
			scheduler.ErrConfigValidation, opts.AnalyzerName, analysis.Names()))
	}
	allowedOutputFormat := []scheduler.OutputFormat{scheduler.OutputFormatText, scheduler.OutputFormatJSON}
	if !isValidEnumValue(opts.OutputFormat, allowedOutputFormat) {
		return fail("outputFormat", fmt.Errorf("%w: invalid value '%s' for key 'outputFormat' (flag --output-format). Allowed: %v",
			scheduler.ErrConfigValidation, opts.OutputFormat, allowedOutputFormat))
	}

	// === Numeric Range Validations ===
	if opts.Concurrency < 0 {
		return fail("concurrency", fmt.Errorf("%w: invalid value '%d' for key 'concurrency' (flag --concurrency). Must be >= 0",
			scheduler.ErrConfigValidation, opts.Concurrency))
	}
	if opts.MaxFiles < 0 {
		return fail("maxFiles", fmt.Errorf("%w: invalid value '%d' for key 'maxFiles' (flag --max-files). Must be >= 0",
			scheduler.ErrConfigValidation, opts.MaxFiles))
	}
	if opts.Selection.NBins <= 0 {
		return fail("selection.nBins", fmt.Errorf("%w: invalid value '%d' for key 'selection.nBins' (flag --n-bins). Must be > 0",
			scheduler.ErrConfigValidation, opts.Selection.NBins))
	}
	if opts.Selection.EtaLimit <= 0 {
		return fail("selection.etaLimit", fmt.Errorf("%w: invalid value '%g' for key 'selection.etaLimit' (flag --eta-limit). Must be > 0",
			scheduler.ErrConfigValidation, opts.Selection.EtaLimit))
	}
	if opts.Selection.MinPT < 0 {
		return fail("selection.minPT", fmt.Errorf("%w: invalid value '%g' for key 'selection.minPT' (flag --min-pt). Must be >= 0",
			scheduler.ErrConfigValidation, opts.Selection.MinPT))
	}

	// === Durations ===
	interval, err := time.ParseDuration(opts.PollIntervalCfg)
	if err != nil {
		return fail("pollInterval", fmt.Errorf("%w: invalid poll interval '%s' for key 'pollInterval' (flag --poll-interval): %w",
			scheduler.ErrConfigValidation, opts.PollIntervalCfg, err))
	}
	if interval <= 0 {
		return fail("pollInterval", fmt.Errorf("%w: invalid poll interval '%s' for key 'pollInterval' (flag --poll-interval). Must be > 0",
			scheduler.ErrConfigValidation, opts.PollIntervalCfg))
	}
	opts.PollInterval = interval

	// === Paths ===
	if opts.PlotPath != "" {
		if err := ensureParentDir(opts.PlotPath); err != nil {
			return fail("plot", fmt.Errorf("%w: cannot create directory for plot output '%s': %w", scheduler.ErrConfigValidation, opts.PlotPath, err))
		}
	}
	if opts.MetricsFile != "" {
		if err := ensureParentDir(opts.MetricsFile); err != nil {
			return fail("metricsFile", fmt.Errorf("%w: cannot create directory for metrics file '%s': %w", scheduler.ErrConfigValidation, opts.MetricsFile, err))
		}
	}

	if opts.Concurrency == 0 {
		logger.Debug("Concurrency not set, the pool is sized from the CPU count")
	}
	return nil
}

func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0755)
}
