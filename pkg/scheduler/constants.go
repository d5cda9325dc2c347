package scheduler

import "time"

// Constants defining default values for configuration options.
// These are used when setting up Viper defaults in the configuration loading process.
const (
	// DefaultConcurrency determines the default worker ceiling. 0 means runtime.NumCPU().
	DefaultConcurrency = 0
	// DefaultPollInterval is how often the keyboard goroutine polls its KeySource.
	DefaultPollInterval = 100 * time.Millisecond
	// DefaultPollIntervalString is DefaultPollInterval in configuration syntax.
	DefaultPollIntervalString = "100ms"
	// DefaultKeyboardEnabled enables operator commands when stdin is a terminal.
	DefaultKeyboardEnabled = true
	// DefaultOutputFormat is the default format for the final result.
	DefaultOutputFormat = OutputFormatText
	// DefaultVerbose is the default state for verbose logging.
	DefaultVerbose = false
)

// Constants related to report schema.
const (
	// ReportSchemaVersion indicates the version of the JSON report structure.
	ReportSchemaVersion = "1.0"
)

// helpText is written by CommandHelp.
const helpText = `Commands:
  s  print status (files completed / total)
  h  print this help
  q  stop all workers and finish the run`
