// Package cli implements the Cobra command hierarchy for the indexd
// binary: a root command plus "index" and "serve" subcommands wiring
// the walker, identifier pipeline, and media gateway together (spec §5,
// §6). Grounded on the teacher's internal/cli/root.go for the
// PersistentPreRunE logging-init shape and error-to-exit-code
// extraction.
package cli

import (
	"errors"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nonlocal/indexd/internal/catalogmodel"
	"github.com/nonlocal/indexd/internal/config"
)

// Exit codes indexd returns, the direct replacement for the teacher's
// pipeline.ExitCode (that package's relevance/redaction-specific codes
// have no equivalent here; only success/error survive).
const (
	ExitSuccess = 0
	ExitError   = 1
)

var (
	configPath string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:           "indexd",
	Short:         "A rule-driven file indexer with resumable identification and a local media gateway.",
	Long:          `indexd walks registered locations under a configurable rule set, fingerprints and classifies newly discovered files in resumable chunks, and serves their bytes back over a local, range-capable HTTP gateway.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		level := config.ResolveLogLevel(verbose, quiet)
		format := config.ResolveLogFormat()
		config.SetupLogging(level, format)
		slog.Debug("logging initialized", "level", level, "format", format)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to an indexd.toml config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")
}

// Execute runs the root command and returns a process exit code.
func Execute() int {
	if err := rootCmd.Execute(); err != nil {
		slog.Error(err.Error())
		return extractExitCode(err)
	}
	return ExitSuccess
}

// extractExitCode returns ExitError for any non-nil error, CoreError or
// not; no CoreError Kind has an exit code of its own.
func extractExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var coreErr *catalogmodel.CoreError
	if errors.As(err, &coreErr) {
		return ExitError
	}
	return ExitError
}

// RootCmd returns the root cobra.Command, for testing and subcommand
// registration.
func RootCmd() *cobra.Command {
	return rootCmd
}
