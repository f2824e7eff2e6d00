package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/cancetinn/ldm-discord/bot"
	"github.com/cancetinn/ldm-discord/config"
)

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the bot",
		Long: `Start the bot: poll the submission source, serve review buttons and the
/reconcile command, and run the periodic reconciler.

Example:
  ldm run --config ./config.yaml
  CLIENT_BOT_TOKEN=... GUILD_ID=... ldm run -v`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBot(cmd.Context(), rootOpts)
		},
	}
}

func runBot(parent context.Context, opts *RootOptions) error {
	logger := opts.logger()

	cfg, err := config.Load(opts.Config)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b, err := bot.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	return b.Run(ctx)
}
