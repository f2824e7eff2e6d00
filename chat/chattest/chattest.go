// Package chattest provides in-memory chat.Transport and chat.Guild
// implementations for tests.
package chattest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/cancetinn/ldm-discord/chat"
)

// Transport keeps messages per space in posting order.
type Transport struct {
	mu       sync.Mutex
	seq      int
	messages map[chat.Space][]Message

	// PostErr, when set for a space, fails every Post to it.
	PostErr map[chat.Space]error
	// RemoveErr fails every Remove.
	RemoveErr error

	Posts   int
	Removes int
}

// Message is a stored representation.
type Message struct {
	Posted chat.Posted
	Rep    chat.Representation
}

// NewTransport creates an empty transport.
func NewTransport() *Transport {
	return &Transport{
		messages: make(map[chat.Space][]Message),
		PostErr:  make(map[chat.Space]error),
	}
}

func channelID(space chat.Space) string {
	return "chan-" + space.String()
}

// Post stores rep in space.
func (t *Transport) Post(_ context.Context, space chat.Space, rep chat.Representation) (chat.Posted, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.PostErr[space]; err != nil {
		return chat.Posted{}, err
	}
	t.seq++
	t.Posts++
	p := chat.Posted{
		Ref:          chat.MessageRef{ChannelID: channelID(space), MessageID: fmt.Sprintf("msg-%d", t.seq)},
		Space:        space,
		SubmissionID: rep.Summary.SubmissionID,
		Status:       rep.Summary.Status,
		Controls:     rep.Controls,
	}
	t.messages[space] = append(t.messages[space], Message{Posted: p, Rep: rep})
	return p, nil
}

// Remove deletes the message p points at.
func (t *Transport) Remove(_ context.Context, p chat.Posted) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.RemoveErr != nil {
		return t.RemoveErr
	}
	msgs := t.messages[p.Space]
	for i, m := range msgs {
		if m.Posted.Ref == p.Ref {
			t.messages[p.Space] = append(msgs[:i:i], msgs[i+1:]...)
			t.Removes++
			return nil
		}
	}
	return chat.ErrNotFound
}

// Lookup finds a message by reference.
func (t *Transport) Lookup(_ context.Context, ref chat.MessageRef) (chat.Posted, bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, msgs := range t.messages {
		for _, m := range msgs {
			if m.Posted.Ref == ref {
				return m.Posted, true, nil
			}
		}
	}
	return chat.Posted{}, false, nil
}

// Scan returns up to limit of the newest messages in space, newest first.
func (t *Transport) Scan(_ context.Context, space chat.Space, limit int) ([]chat.Posted, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	msgs := t.messages[space]
	var out []chat.Posted
	for i := len(msgs) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, msgs[i].Posted)
	}
	return out, nil
}

// In returns the messages currently in space, oldest first.
func (t *Transport) In(space chat.Space) []Message {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Message(nil), t.messages[space]...)
}

// Guild is an in-memory guild. Members are matched by username prefix on search.
type Guild struct {
	mu       sync.Mutex
	seq      int
	roles    []chat.Role
	channels []chat.Channel
	members  []chat.Member

	// Fail makes the named operation return an error (e.g. "CreateRole").
	Fail map[string]error

	RoleCreates    int
	ChannelCreates int
	RoleAdds       int
	Searches       int
}

// NewGuild creates a guild with the given members.
func NewGuild(members ...chat.Member) *Guild {
	return &Guild{members: members, Fail: make(map[string]error)}
}

func (g *Guild) fail(op string) error {
	return g.Fail[op]
}

func (g *Guild) nextID(prefix string) string {
	g.seq++
	return fmt.Sprintf("%s-%d", prefix, g.seq)
}

func (g *Guild) Roles(context.Context) ([]chat.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("Roles"); err != nil {
		return nil, err
	}
	return append([]chat.Role(nil), g.roles...), nil
}

func (g *Guild) CreateRole(_ context.Context, name string) (chat.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("CreateRole"); err != nil {
		return chat.Role{}, err
	}
	g.RoleCreates++
	r := chat.Role{ID: g.nextID("role"), Name: name}
	g.roles = append(g.roles, r)
	return r, nil
}

func (g *Guild) Channels(context.Context) ([]chat.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("Channels"); err != nil {
		return nil, err
	}
	return append([]chat.Channel(nil), g.channels...), nil
}

func (g *Guild) CreateChannel(_ context.Context, spec chat.ChannelSpec) (chat.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("CreateChannel"); err != nil {
		return chat.Channel{}, err
	}
	g.ChannelCreates++
	c := chat.Channel{ID: g.nextID("channel"), Name: spec.Name, Kind: spec.Kind, ParentID: spec.ParentID}
	g.channels = append(g.channels, c)
	return c, nil
}

func (g *Guild) SearchMembers(_ context.Context, query string) ([]chat.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("SearchMembers"); err != nil {
		return nil, err
	}
	g.Searches++
	var out []chat.Member
	for _, m := range g.members {
		if strings.HasPrefix(strings.ToLower(m.Username), strings.ToLower(query)) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (g *Guild) AddMemberRole(_ context.Context, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.fail("AddMemberRole"); err != nil {
		return err
	}
	if !g.hasRole(roleID) {
		return chat.ErrNotFound
	}
	for i := range g.members {
		if g.members[i].UserID == userID {
			g.members[i].RoleIDs = append(g.members[i].RoleIDs, roleID)
			g.RoleAdds++
			return nil
		}
	}
	return chat.ErrNotFound
}

func (g *Guild) hasRole(id string) bool {
	for _, r := range g.roles {
		if r.ID == id {
			return true
		}
	}
	return false
}

// DeleteRole removes a role, as an admin cleaning up by hand would.
func (g *Guild) DeleteRole(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, r := range g.roles {
		if r.ID == id {
			g.roles = append(g.roles[:i], g.roles[i+1:]...)
			return
		}
	}
}

// DeleteChannel removes a channel.
func (g *Guild) DeleteChannel(id string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for i, c := range g.channels {
		if c.ID == id {
			g.channels = append(g.channels[:i], g.channels[i+1:]...)
			return
		}
	}
}

// RolesNamed returns the roles called name.
func (g *Guild) RolesNamed(name string) []chat.Role {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []chat.Role
	for _, r := range g.roles {
		if r.Name == name {
			out = append(out, r)
		}
	}
	return out
}

// ChannelsNamed returns the channels of kind called name.
func (g *Guild) ChannelsNamed(name string, kind chat.ChannelKind) []chat.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []chat.Channel
	for _, c := range g.channels {
		if c.Name == name && c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// ChildrenOf returns the channels parented to id.
func (g *Guild) ChildrenOf(id string) []chat.Channel {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []chat.Channel
	for _, c := range g.channels {
		if c.ParentID == id {
			out = append(out, c)
		}
	}
	return out
}

// Member returns the member with userID.
func (g *Guild) Member(userID string) (chat.Member, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, m := range g.members {
		if m.UserID == userID {
			return m, true
		}
	}
	return chat.Member{}, false
}

// Join adds a member after construction, e.g. a player who joined late.
func (g *Guild) Join(m chat.Member) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.members = append(g.members, m)
}
