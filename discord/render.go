package discord

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/presenter"
)

// Custom ID layout for review buttons: review:<action>:<submission id>.
const (
	ReviewPrefix  = "review"
	ActionApprove = "approve"
	ActionReject  = "reject"
)

// Discord allows at most 25 fields per embed.
const maxEmbedFields = 25

var footerID = regexp.MustCompile(`Submission ID: (\S+)$`)

// CustomID builds the button id for outcome on submission id.
func CustomID(outcome model.Status, id string) string {
	action := ActionReject
	if outcome == model.StatusApproved {
		action = ActionApprove
	}
	return ReviewPrefix + ":" + action + ":" + id
}

// ParseCustomID splits a review button id into submission id and outcome.
func ParseCustomID(customID string) (id string, outcome model.Status, ok bool) {
	parts := strings.SplitN(customID, ":", 3)
	if len(parts) != 3 || parts[0] != ReviewPrefix || parts[2] == "" {
		return "", "", false
	}
	switch parts[1] {
	case ActionApprove:
		return parts[2], model.StatusApproved, true
	case ActionReject:
		return parts[2], model.StatusRejected, true
	}
	return "", "", false
}

// Footer returns the footer text carrying the submission id.
func Footer(brand, id string) string {
	if brand == "" {
		return "Submission ID: " + id
	}
	return fmt.Sprintf("%s • Submission ID: %s", brand, id)
}

// RenderEmbed converts a summary into a Discord embed.
func RenderEmbed(s presenter.Summary, brand string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:  s.Title,
		Color:  s.Badge.Color,
		Footer: &discordgo.MessageEmbedFooter{Text: Footer(brand, s.SubmissionID)},
	}
	if !s.SubmittedAt.IsZero() {
		embed.Timestamp = s.SubmittedAt.Format(time.RFC3339)
	}

	var fields []*discordgo.MessageEmbedField
	for i, g := range s.Groups {
		if i > 0 {
			fields = append(fields, &discordgo.MessageEmbedField{Name: g.Name, Value: "\u200b"})
		}
		for _, f := range g.Fields {
			fields = append(fields, &discordgo.MessageEmbedField{Name: f.Label, Value: f.Value, Inline: f.Inline})
		}
	}
	if len(fields) > maxEmbedFields {
		omitted := len(fields) - (maxEmbedFields - 1)
		fields = append(fields[:maxEmbedFields-1], &discordgo.MessageEmbedField{
			Name:  "…",
			Value: fmt.Sprintf("%d more fields omitted", omitted),
		})
	}
	embed.Fields = fields
	return embed
}

// Controls returns the approve and reject buttons for id.
func Controls(id string) []discordgo.MessageComponent {
	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.Button{
					Label:    "Approve",
					Style:    discordgo.SuccessButton,
					CustomID: CustomID(model.StatusApproved, id),
					Emoji:    &discordgo.ComponentEmoji{Name: "✅"},
				},
				discordgo.Button{
					Label:    "Reject",
					Style:    discordgo.DangerButton,
					CustomID: CustomID(model.StatusRejected, id),
					Emoji:    &discordgo.ComponentEmoji{Name: "❌"},
				},
			},
		},
	}
}

// RenderMessage builds the message posted for rep.
func RenderMessage(rep chat.Representation, brand string) *discordgo.MessageSend {
	msg := &discordgo.MessageSend{
		Embeds: []*discordgo.MessageEmbed{RenderEmbed(rep.Summary, brand)},
	}
	if rep.Controls {
		msg.Components = Controls(rep.Summary.SubmissionID)
	}
	return msg
}

// ParseMessage reads a representation back from a posted message. ok is false
// for messages this bot did not post as a representation.
func ParseMessage(m *discordgo.Message, space chat.Space) (chat.Posted, bool) {
	if m == nil || len(m.Embeds) == 0 {
		return chat.Posted{}, false
	}
	embed := m.Embeds[0]
	if embed.Footer == nil {
		return chat.Posted{}, false
	}
	match := footerID.FindStringSubmatch(embed.Footer.Text)
	if match == nil {
		return chat.Posted{}, false
	}

	p := chat.Posted{
		Ref:          chat.MessageRef{ChannelID: m.ChannelID, MessageID: m.ID},
		Space:        space,
		SubmissionID: match[1],
		Status:       model.StatusPending,
	}
	for _, f := range embed.Fields {
		if f.Name != presenter.StatusLabel {
			continue
		}
		if status, err := model.ParseStatus(f.Value); err == nil {
			p.Status = status
		}
		break
	}
	p.Controls = hasReviewButtons(m.Components)
	return p, true
}

func hasReviewButtons(components []discordgo.MessageComponent) bool {
	for _, c := range components {
		var children []discordgo.MessageComponent
		switch row := c.(type) {
		case *discordgo.ActionsRow:
			children = row.Components
		case discordgo.ActionsRow:
			children = row.Components
		}
		for _, child := range children {
			var customID string
			switch b := child.(type) {
			case *discordgo.Button:
				customID = b.CustomID
			case discordgo.Button:
				customID = b.CustomID
			}
			if _, _, ok := ParseCustomID(customID); ok {
				return true
			}
		}
	}
	return false
}
