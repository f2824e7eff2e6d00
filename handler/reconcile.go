package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/reconcile"
	"github.com/cancetinn/ldm-discord/utils"
)

const (
	reconcileTimeout = 5 * time.Minute
	// Discord rejects message content above 2000 characters.
	maxContentLen = 2000
)

// ReconcileRunner is implemented by reconcile.Reconciler.
type ReconcileRunner interface {
	RunOnce(ctx context.Context, dryRun bool) (reconcile.Report, error)
}

// ReconcileHandler handles the /reconcile command.
type ReconcileHandler struct {
	runner ReconcileRunner
	auth   model.Auth
	logger *slog.Logger
}

// NewReconcileHandler creates a ReconcileHandler restricted to auth.
func NewReconcileHandler(runner ReconcileRunner, auth model.Auth, logger *slog.Logger) *ReconcileHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReconcileHandler{runner: runner, auth: auth, logger: logger}
}

// Handle runs one reconcile pass on demand.
func (h *ReconcileHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("deferring reconcile command failed", "error", err)
		return
	}

	go func() {
		content := h.run(context.Background(), i)
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: utils.StringPtr(content),
		}); err != nil {
			h.logger.Error("editing reconcile response failed", "error", err)
		}
	}()
}

func (h *ReconcileHandler) run(ctx context.Context, i *discordgo.InteractionCreate) string {
	if i.Member == nil || i.Member.User == nil || !utils.CheckAuth(h.auth, i.Member.User.ID, i.Member.Roles) {
		return "❌ You are not allowed to run this command."
	}

	var dryRun bool
	for _, option := range i.ApplicationCommandData().Options {
		switch option.Name {
		case "dry_run":
			dryRun = option.BoolValue()
		}
	}

	ctx, cancel := context.WithTimeout(ctx, reconcileTimeout)
	defer cancel()

	report, err := h.runner.RunOnce(ctx, dryRun)
	if err != nil {
		h.logger.Error("manual reconcile failed", "user", i.Member.User.ID, "error", err)
		return fmt.Sprintf("❌ Reconcile failed: %v", err)
	}
	h.logger.Info("manual reconcile finished", "user", i.Member.User.ID, "dry_run", dryRun,
		"actions", len(report.Actions))
	return clip(report.Summary())
}

func clip(content string) string {
	runes := []rune(content)
	if len(runes) <= maxContentLen {
		return content
	}
	return string(runes[:maxContentLen-1]) + "…"
}
