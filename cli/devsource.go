package cli

import (
	"context"
	"fmt"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/cancetinn/ldm-discord/db"
	"github.com/cancetinn/ldm-discord/devsource"
	"github.com/cancetinn/ldm-discord/model"
)

// DevSourceOptions holds flags shared by the devsource subcommands.
type DevSourceOptions struct {
	*RootOptions
	Database string
}

// NewDevSourceCommand creates the devsource command group.
func NewDevSourceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &DevSourceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "devsource",
		Short: "Local stand-in for the website's form-data API",
	}
	cmd.PersistentFlags().StringVar(&opts.Database, "db", db.DefaultPath, "path to SQLite database")

	cmd.AddCommand(newDevSourceServeCommand(opts))
	cmd.AddCommand(newDevSourceAddCommand(opts))
	return cmd
}

func newDevSourceServeCommand(opts *DevSourceOptions) *cobra.Command {
	var addr, credential string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve /form-data and /update-form from the local database",
		Example: `  ldm devsource serve --addr :8080
  ldm devsource serve --db /tmp/dev.db --credential secret`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := opts.logger()
			store, err := db.Open(opts.Database)
			if err != nil {
				return err
			}
			defer store.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return devsource.NewServer(store, credential, logger).ListenAndServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":8080", "listen address")
	cmd.Flags().StringVar(&credential, "credential", "", "bearer credential clients must send")
	return cmd
}

func newDevSourceAddCommand(opts *DevSourceOptions) *cobra.Command {
	var (
		team    string
		members []string
		fields  []string
		status  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Insert a submission into the local database",
		Example: `  ldm devsource add --team Alpha --member ana --member ben#1234 --field email=a@b.c
  ldm devsource add --team Beta --status approved`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			opts.logger()
			st, err := model.ParseStatus(status)
			if err != nil {
				return err
			}
			kv, err := parseFields(fields)
			if err != nil {
				return err
			}
			return addSubmission(cmd.Context(), opts.Database, model.Submission{
				SubmittedAt: time.Now().UTC().Truncate(time.Second),
				Status:      st,
				TeamName:    team,
				Members:     members,
				Fields:      kv,
			}, cmd)
		},
	}

	cmd.Flags().StringVar(&team, "team", "", "team name")
	cmd.Flags().StringArrayVar(&members, "member", nil, "member identity, repeatable")
	cmd.Flags().StringArrayVar(&fields, "field", nil, "extra key=value field, repeatable")
	cmd.Flags().StringVar(&status, "status", string(model.StatusPending), "initial status")
	_ = cmd.MarkFlagRequired("team")
	return cmd
}

func addSubmission(ctx context.Context, path string, sub model.Submission, cmd *cobra.Command) error {
	store, err := db.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	added, err := store.AddSubmission(ctx, sub)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "added submission %s (%s)\n", added.ID, added.Status)
	return nil
}

func parseFields(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid field %q: want key=value", p)
		}
		out[k] = v
	}
	return out, nil
}
