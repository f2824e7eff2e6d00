package handler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/discord"
	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/review"
	"github.com/cancetinn/ldm-discord/utils"
)

// Provisioning several members can take a while; the interaction token lasts 15 minutes.
const decideTimeout = 2 * time.Minute

const ackBadControl = "Required fields not found in the message."

// Decider is implemented by review.Workflow.
type Decider interface {
	Decide(ctx context.Context, c review.Control) review.Result
}

// SpaceResolver maps a channel to its review space.
type SpaceResolver interface {
	SpaceOf(channelID string) (chat.Space, bool)
}

// ReviewHandler handles the approve and reject buttons.
type ReviewHandler struct {
	decider Decider
	spaces  SpaceResolver
	logger  *slog.Logger
}

// NewReviewHandler creates a ReviewHandler.
func NewReviewHandler(decider Decider, spaces SpaceResolver, logger *slog.Logger) *ReviewHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReviewHandler{decider: decider, spaces: spaces, logger: logger}
}

// Handle acknowledges the click ephemerally and answers once the decision is applied.
func (h *ReviewHandler) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Flags: discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		h.logger.Error("deferring review interaction failed", "error", err)
		return
	}

	go func() {
		content := h.decide(context.Background(), i)
		if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
			Content: utils.StringPtr(content),
		}); err != nil {
			h.logger.Error("editing review response failed", "error", err)
		}
	}()
}

// decide runs the workflow and returns the acknowledgement text.
func (h *ReviewHandler) decide(ctx context.Context, i *discordgo.InteractionCreate) string {
	actionID := uuid.NewString()
	log := h.logger.With("action", actionID, "reviewer", reviewerID(i))

	ctl, err := h.Control(i)
	if err != nil {
		log.Warn("unusable review control", "error", err)
		return ackBadControl
	}
	log = log.With("submission", ctl.SubmissionID, "outcome", ctl.Outcome)

	ctx, cancel := context.WithTimeout(ctx, decideTimeout)
	defer cancel()

	res := h.decider.Decide(ctx, ctl)
	if res.Err != nil && res.Kind != review.AlreadyDecided {
		log.Error("review finished with errors", "result", res.Kind, "error", res.Err)
	} else {
		log.Info("review finished", "result", res.Kind)
	}
	return res.Message()
}

// Control builds the workflow input from a button interaction.
func (h *ReviewHandler) Control(i *discordgo.InteractionCreate) (review.Control, error) {
	if i.Type != discordgo.InteractionMessageComponent {
		return review.Control{}, fmt.Errorf("interaction type %v is not a component", i.Type)
	}
	id, outcome, ok := discord.ParseCustomID(i.MessageComponentData().CustomID)
	if !ok {
		return review.Control{}, fmt.Errorf("unknown custom id %q", i.MessageComponentData().CustomID)
	}

	ctl := review.Control{SubmissionID: id, Outcome: outcome, Displayed: model.StatusPending}
	if i.Message == nil {
		return ctl, nil
	}

	space := chat.SpacePending
	if h.spaces != nil {
		if sp, ok := h.spaces.SpaceOf(i.Message.ChannelID); ok {
			space = sp
		}
	}
	posted, ok := discord.ParseMessage(i.Message, space)
	if !ok {
		return ctl, nil
	}
	if posted.SubmissionID != id {
		return review.Control{}, fmt.Errorf("button for %s on representation of %s", id, posted.SubmissionID)
	}
	ctl.Displayed = posted.Status
	ctl.Origin = &posted
	return ctl, nil
}

func reviewerID(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}
