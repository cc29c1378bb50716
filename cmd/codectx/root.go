package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Set at build time via -ldflags.
var (
	version   = "dev"
	buildTime = "unknown"
)

// rootFlags are shared by every subcommand.
type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "codectx",
		Short:         "Project-scoped semantic code context engine",
		Long:          "codectx indexes source trees into searchable collections and serves hybrid lexical + semantic context queries.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&flags.configPath, "config", "", "config file path (default: CODECTX_CONFIG, then built-in defaults)")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(
		newIndexCmd(flags),
		newSearchCmd(flags),
		newCollectionsCmd(flags),
		newAdminCmd(flags),
		newServeCmd(flags),
		newVersionCmd(),
	)
	return cmd
}

// newLogger builds the process logger. Structured JSON on stderr:
// stdout is reserved for command output and the MCP channel.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
