package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/stackvity/bsm-analyze/internal/cli"
	"github.com/stackvity/bsm-analyze/internal/cli/config"
	"github.com/stackvity/bsm-analyze/pkg/analysis"
	"github.com/stackvity/bsm-analyze/pkg/scheduler"
)

var (
	// These are set during build time using -ldflags
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// newRootCmd builds the bsm-analyze command. Flag names match the keys bound
// in internal/cli/config.
func newRootCmd() *cobra.Command {
	var (
		cfgFile     string
		profileName string
		verbose     bool
	)

	rootCmd := &cobra.Command{
		Use:   "bsm-analyze [flags] <file|dir>...",
		Short: "Runs an event analysis over many LCIO files in parallel.",
		Long: `bsm-analyze streams the events of every input file through an analyzer,
one worker per file, and merges the per-worker results when all files are done.

Directories are expanded to the event files they contain. While a run is in
progress, keys typed on the terminal control it:
  s  print status
  h  print help
  q  stop all workers and finish with what was read so far`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return cmd.Help()
			}

			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			opts, logger, err := config.LoadAndValidate(cfgFile, profileName, args, cmd.Flags())
			if err != nil {
				return err
			}
			return cli.Run(ctx, opts, logger, cli.Streams{
				In:  os.Stdin,
				Out: cmd.OutOrStdout(),
				Err: cmd.ErrOrStderr(),
			})
		},
	}
	rootCmd.SetVersionTemplate(`{{.Name}} version {{.Version}}` + "\n")

	// Persistent flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Configuration file path (default is search ., $HOME/.config/bsm-analyze/, $HOME/.bsm-analyze/)")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "Name of configuration profile to use")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose (debug) logging output")

	// Scheduling flags
	rootCmd.Flags().IntP("concurrency", "j", scheduler.DefaultConcurrency, "Maximum number of workers (0 for one per CPU)")
	rootCmd.Flags().String("poll-interval", scheduler.DefaultPollIntervalString, "How often the keyboard is polled for commands")
	rootCmd.Flags().Bool("no-keyboard", false, "Do not read operator commands from the terminal")

	// Input flags
	rootCmd.Flags().StringArray("ignore", []string{}, "Glob patterns for files/directories to skip when expanding directories (can be repeated)")
	rootCmd.Flags().StringSlice("ext", config.DefaultExtensions, "File extensions accepted when expanding directories")
	rootCmd.Flags().Int("max-files", 0, "Stop collecting inputs after this many files (0 for no limit)")

	// Analysis flags
	rootCmd.Flags().StringP("analyzer", "a", analysis.DefaultName, fmt.Sprintf("Analyzer to run %v", analysis.Names()))
	rootCmd.Flags().String("collection", analysis.DefaultCollection, "MC particle collection read by the kinematics analyzer")
	rootCmd.Flags().Float64("min-pt", analysis.DefaultMinPT, "Minimum transverse momentum of selected particles")
	rootCmd.Flags().Float64("eta-limit", analysis.DefaultEtaLimit, "Maximum |eta| of selected particles")
	rootCmd.Flags().Int("n-bins", analysis.DefaultNBins, "Number of histogram bins")
	rootCmd.Flags().Bool("require-charged", false, "Select charged particles only")

	// Output flags
	rootCmd.Flags().String("output-format", string(scheduler.DefaultOutputFormat), `Result format ("text", "json")`)
	rootCmd.Flags().String("plot", "", "Write histograms to this image path (suffixed with the histogram name)")
	rootCmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")

	return rootCmd
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	return execute(context.Background(), os.Args[1:])
}

func execute(ctx context.Context, args []string) int {
	rootCmd := newRootCmd()
	rootCmd.SetArgs(args)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		return 1
	}
	return 0
}
