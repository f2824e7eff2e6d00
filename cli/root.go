// Package cli implements the ldm command line.
package cli

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Config  string
}

// NewRootCommand creates the root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "ldm",
		Short: "LDM - tournament registration review bot",
		Long: `Mirrors registration submissions from the website into Discord review
channels, applies approve/reject decisions and provisions team roles and channels.`,
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Config, "config", "", "path to config file (default ./config.yaml)")

	cmd.AddCommand(NewRunCommand(opts))
	cmd.AddCommand(NewDevSourceCommand(opts))

	return cmd
}

// logger configures the default slog logger from the verbose flag.
func (o *RootOptions) logger() *slog.Logger {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	l := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(l)
	return l
}
