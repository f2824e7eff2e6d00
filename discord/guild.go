package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/cancetinn/ldm-discord/chat"
)

// Member search returns at most 1000 results per request.
const memberSearchLimit = 1000

// Guild implements chat.Guild for one Discord server.
type Guild struct {
	session *discordgo.Session
	guildID string
	timeout time.Duration
}

// NewGuild creates a Guild bound to guildID.
func NewGuild(s *discordgo.Session, guildID string, timeout time.Duration) *Guild {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Guild{session: s, guildID: guildID, timeout: timeout}
}

func (g *Guild) opt(ctx context.Context) (discordgo.RequestOption, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	return discordgo.WithContext(ctx), cancel
}

func (g *Guild) Roles(ctx context.Context) ([]chat.Role, error) {
	opt, cancel := g.opt(ctx)
	defer cancel()

	roles, err := g.session.GuildRoles(g.guildID, opt)
	if err != nil {
		return nil, wrapREST(err)
	}
	out := make([]chat.Role, 0, len(roles))
	for _, r := range roles {
		out = append(out, chat.Role{ID: r.ID, Name: r.Name})
	}
	return out, nil
}

func (g *Guild) CreateRole(ctx context.Context, name string) (chat.Role, error) {
	opt, cancel := g.opt(ctx)
	defer cancel()

	r, err := g.session.GuildRoleCreate(g.guildID, &discordgo.RoleParams{Name: name}, opt)
	if err != nil {
		return chat.Role{}, wrapREST(err)
	}
	return chat.Role{ID: r.ID, Name: r.Name}, nil
}

func (g *Guild) Channels(ctx context.Context) ([]chat.Channel, error) {
	opt, cancel := g.opt(ctx)
	defer cancel()

	channels, err := g.session.GuildChannels(g.guildID, opt)
	if err != nil {
		return nil, wrapREST(err)
	}
	out := make([]chat.Channel, 0, len(channels))
	for _, c := range channels {
		kind, ok := kindOf(c.Type)
		if !ok {
			continue
		}
		out = append(out, chat.Channel{ID: c.ID, Name: c.Name, Kind: kind, ParentID: c.ParentID})
	}
	return out, nil
}

func (g *Guild) CreateChannel(ctx context.Context, spec chat.ChannelSpec) (chat.Channel, error) {
	opt, cancel := g.opt(ctx)
	defer cancel()

	data := discordgo.GuildChannelCreateData{
		Name:     spec.Name,
		Type:     channelType(spec.Kind),
		ParentID: spec.ParentID,
	}
	if spec.VisibleTo != "" {
		data.PermissionOverwrites = PrivateOverwrites(g.guildID, spec.VisibleTo)
	}

	c, err := g.session.GuildChannelCreateComplex(g.guildID, data, opt)
	if err != nil {
		return chat.Channel{}, wrapREST(err)
	}
	return chat.Channel{ID: c.ID, Name: c.Name, Kind: spec.Kind, ParentID: c.ParentID}, nil
}

// PrivateOverwrites hides a channel from @everyone (whose role id is the
// guild id) and shows it to roleID.
func PrivateOverwrites(guildID, roleID string) []*discordgo.PermissionOverwrite {
	return []*discordgo.PermissionOverwrite{
		{ID: guildID, Type: discordgo.PermissionOverwriteTypeRole, Deny: discordgo.PermissionViewChannel},
		{ID: roleID, Type: discordgo.PermissionOverwriteTypeRole, Allow: discordgo.PermissionViewChannel},
	}
}

func (g *Guild) SearchMembers(ctx context.Context, query string) ([]chat.Member, error) {
	opt, cancel := g.opt(ctx)
	defer cancel()

	members, err := g.session.GuildMembersSearch(g.guildID, query, memberSearchLimit, opt)
	if err != nil {
		return nil, wrapREST(err)
	}
	out := make([]chat.Member, 0, len(members))
	for _, m := range members {
		if m.User == nil {
			continue
		}
		out = append(out, chat.Member{
			UserID:        m.User.ID,
			Username:      m.User.Username,
			Discriminator: m.User.Discriminator,
			RoleIDs:       m.Roles,
		})
	}
	return out, nil
}

func (g *Guild) AddMemberRole(ctx context.Context, userID, roleID string) error {
	opt, cancel := g.opt(ctx)
	defer cancel()

	if err := g.session.GuildMemberRoleAdd(g.guildID, userID, roleID, opt); err != nil {
		return wrapREST(err)
	}
	return nil
}

func channelType(kind chat.ChannelKind) discordgo.ChannelType {
	switch kind {
	case chat.ChannelCategory:
		return discordgo.ChannelTypeGuildCategory
	case chat.ChannelVoice:
		return discordgo.ChannelTypeGuildVoice
	}
	return discordgo.ChannelTypeGuildText
}

func kindOf(t discordgo.ChannelType) (chat.ChannelKind, bool) {
	switch t {
	case discordgo.ChannelTypeGuildCategory:
		return chat.ChannelCategory, true
	case discordgo.ChannelTypeGuildText:
		return chat.ChannelText, true
	case discordgo.ChannelTypeGuildVoice:
		return chat.ChannelVoice, true
	}
	return 0, false
}
