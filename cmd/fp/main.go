// Package main provides the entry point for the fp CLI.
//
// fp records interactive shell sessions and single command runs into
// Fiberplane notebooks.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/fiberplane/fp-sub000/internal/telemetry"
	"github.com/fiberplane/fp-sub000/internal/ui"
)

// Version information set at build time via ldflags.
var (
	version = "dev"
	commit  = "none"
)

var (
	// logFile receives log output when --log-file is set.
	logFile *os.File

	// shutdownTracing flushes the trace file written for --trace-file.
	shutdownTracing = func(context.Context) error { return nil }
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "fp",
	Short:         "Record terminal sessions into Fiberplane notebooks",
	Long:          ui.GetHelpText(),
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		debug, _ := cmd.Flags().GetBool("debug")
		if debug {
			log.SetLevel(log.DebugLevel)
		}

		path, _ := cmd.Flags().GetString("log-file")
		if path != "" {
			f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				return fmt.Errorf("open log file: %w", err)
			}
			logFile = f
			log.SetOutput(f)
		}
		log.Debug("Debug logging enabled")

		quiet, _ := cmd.Flags().GetBool("quiet")
		ui.SetQuietMode(quiet)

		tracePath, _ := cmd.Flags().GetString("trace-file")
		shutdown, err := telemetry.Setup(tracePath, version)
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	},
}

// Execute runs the root command and exits with the code matching its error.
func Execute() {
	err := rootCmd.Execute()

	if shutdownErr := shutdownTracing(context.Background()); shutdownErr != nil {
		log.Warn("Failed to write trace file", "err", shutdownErr)
	}
	if logFile != nil {
		log.SetOutput(os.Stderr)
		_ = logFile.Close()
	}

	if err != nil {
		if code := exitCode(err); code != exitInterrupted {
			ui.PrintError("%v", err)
		}
		if isUsageError(err) {
			fmt.Fprintln(os.Stderr, "Run 'fp --help' for usage.")
		}
		os.Exit(exitCode(err))
	}
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress non-essential output")
	rootCmd.PersistentFlags().String("log-file", "", "Write logs to this file")
	rootCmd.PersistentFlags().String("trace-file", "", "Append OTLP/JSON traces to this file")
	rootCmd.PersistentFlags().String("base-url", "", "API base URL (env FP_BASE_URL)")
	rootCmd.PersistentFlags().String("profile", "", "Profile to use (env FP_PROFILE)")
	rootCmd.PersistentFlags().String("token", "", "Token to use instead of the profile's (env FP_TOKEN)")

	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError{err: err}
	})

	// Add subcommands
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(authCmd)
	rootCmd.AddCommand(shellCmd)
	rootCmd.AddCommand(runCmd)
}

// versionCmd shows version information.
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Run: func(cmd *cobra.Command, args []string) {
		ui.PrintVersion(version, commit)
	},
}

// withLogOutput points the logger at w unless --log-file is set, and
// returns a function restoring stderr. Used while the terminal is raw.
func withLogOutput(w io.Writer) func() {
	if logFile != nil {
		return func() {}
	}
	log.SetOutput(w)
	return func() { log.SetOutput(os.Stderr) }
}

func main() {
	Execute()
}
