// Package discord implements the chat interfaces on top of discordgo.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/model"
)

// Discord returns at most 100 messages per history request.
const pageSize = 100

// Transport posts representations to the three review channels.
type Transport struct {
	session  *discordgo.Session
	channels map[chat.Space]string
	brand    string
	timeout  time.Duration
}

// NewTransport creates a Transport for the configured review channels.
func NewTransport(s *discordgo.Session, channels model.Channels, brand string, timeout time.Duration) *Transport {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Transport{
		session: s,
		channels: map[chat.Space]string{
			chat.SpacePending:  channels.Pending,
			chat.SpaceApproved: channels.Approved,
			chat.SpaceRejected: channels.Rejected,
		},
		brand:   brand,
		timeout: timeout,
	}
}

// SpaceOf returns the space whose channel is channelID.
func (t *Transport) SpaceOf(channelID string) (chat.Space, bool) {
	for space, id := range t.channels {
		if id == channelID {
			return space, true
		}
	}
	return 0, false
}

func (t *Transport) channel(space chat.Space) (string, error) {
	id := t.channels[space]
	if id == "" {
		return "", fmt.Errorf("no channel configured for %s", space)
	}
	return id, nil
}

func (t *Transport) Post(ctx context.Context, space chat.Space, rep chat.Representation) (chat.Posted, error) {
	channelID, err := t.channel(space)
	if err != nil {
		return chat.Posted{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	m, err := t.session.ChannelMessageSendComplex(channelID, RenderMessage(rep, t.brand), discordgo.WithContext(ctx))
	if err != nil {
		return chat.Posted{}, wrapREST(err)
	}
	return chat.Posted{
		Ref:          chat.MessageRef{ChannelID: channelID, MessageID: m.ID},
		Space:        space,
		SubmissionID: rep.Summary.SubmissionID,
		Status:       rep.Summary.Status,
		Controls:     rep.Controls,
	}, nil
}

func (t *Transport) Remove(ctx context.Context, p chat.Posted) error {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	if err := t.session.ChannelMessageDelete(p.Ref.ChannelID, p.Ref.MessageID, discordgo.WithContext(ctx)); err != nil {
		return wrapREST(err)
	}
	return nil
}

func (t *Transport) Lookup(ctx context.Context, ref chat.MessageRef) (chat.Posted, bool, error) {
	space, ok := t.SpaceOf(ref.ChannelID)
	if !ok {
		return chat.Posted{}, false, nil
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	m, err := t.session.ChannelMessage(ref.ChannelID, ref.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		err = wrapREST(err)
		if errors.Is(err, chat.ErrNotFound) {
			return chat.Posted{}, false, nil
		}
		return chat.Posted{}, false, err
	}
	p, ok := ParseMessage(m, space)
	return p, ok, nil
}

// Scan pages backwards through the channel history, reading at most limit messages.
func (t *Transport) Scan(ctx context.Context, space chat.Space, limit int) ([]chat.Posted, error) {
	channelID, err := t.channel(space)
	if err != nil {
		return nil, err
	}

	var (
		out    []chat.Posted
		before string
		read   int
	)
	for read < limit {
		batch := min(pageSize, limit-read)
		msgs, err := t.page(ctx, channelID, batch, before)
		if err != nil {
			return out, fmt.Errorf("read %s history: %w", space, err)
		}
		read += len(msgs)
		for _, m := range msgs {
			if p, ok := ParseMessage(m, space); ok {
				out = append(out, p)
			}
		}
		if len(msgs) < batch {
			break
		}
		before = msgs[len(msgs)-1].ID
	}
	return out, nil
}

func (t *Transport) page(ctx context.Context, channelID string, limit int, before string) ([]*discordgo.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	msgs, err := t.session.ChannelMessages(channelID, limit, before, "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, wrapREST(err)
	}
	return msgs, nil
}

// wrapREST maps Discord's 404 onto chat.ErrNotFound.
func wrapREST(err error) error {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %w", chat.ErrNotFound, err)
	}
	return err
}
