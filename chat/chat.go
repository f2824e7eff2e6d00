// Package chat describes what the synchronization engine needs from the chat
// workspace. The discord package provides the production implementation.
package chat

import (
	"context"
	"errors"
	"fmt"

	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/presenter"
)

// ErrNotFound is returned when a message, space or member no longer exists.
var ErrNotFound = errors.New("chat object not found")

// Space is one of the three review locations.
type Space int

const (
	SpacePending Space = iota
	SpaceApproved
	SpaceRejected
)

func (s Space) String() string {
	switch s {
	case SpacePending:
		return "pending"
	case SpaceApproved:
		return "approved"
	case SpaceRejected:
		return "rejected"
	}
	return fmt.Sprintf("space(%d)", int(s))
}

// Spaces lists every space in scan order.
var Spaces = []Space{SpacePending, SpaceApproved, SpaceRejected}

// SpaceFor returns the space a submission in the given status belongs in.
func SpaceFor(status model.Status) Space {
	switch status {
	case model.StatusApproved:
		return SpaceApproved
	case model.StatusRejected:
		return SpaceRejected
	}
	return SpacePending
}

// Representation is what gets posted for a submission.
type Representation struct {
	Summary presenter.Summary
	// Controls adds the approve and reject buttons.
	Controls bool
}

// MessageRef points at a posted message.
type MessageRef struct {
	ChannelID string
	MessageID string
}

// Posted is a representation found in (or just written to) a space.
type Posted struct {
	Ref          MessageRef
	Space        Space
	SubmissionID string
	Status       model.Status
	Controls     bool
}

// Consistent reports whether p shows status in the space status belongs in.
func (p Posted) Consistent(status model.Status) bool {
	return p.Space == SpaceFor(status) && p.Status == status
}

// Transport posts, removes and scans representations.
type Transport interface {
	Post(ctx context.Context, space Space, rep Representation) (Posted, error)
	Remove(ctx context.Context, p Posted) error
	// Lookup re-reads a single representation. found is false when it is gone.
	Lookup(ctx context.Context, ref MessageRef) (p Posted, found bool, err error)
	// Scan returns up to limit of the most recent representations in space.
	Scan(ctx context.Context, space Space, limit int) ([]Posted, error)
}

// ChannelKind distinguishes category, text and voice channels.
type ChannelKind int

const (
	ChannelCategory ChannelKind = iota
	ChannelText
	ChannelVoice
)

// Role is a guild role.
type Role struct {
	ID   string
	Name string
}

// Channel is a guild channel.
type Channel struct {
	ID       string
	Name     string
	Kind     ChannelKind
	ParentID string
}

// ChannelSpec describes a channel to create. VisibleTo, when set, is the only
// role allowed to view it; the default role is denied.
type ChannelSpec struct {
	Name      string
	Kind      ChannelKind
	ParentID  string
	VisibleTo string
}

// Member is a guild member.
type Member struct {
	UserID        string
	Username      string
	Discriminator string
	RoleIDs       []string
}

// HasRole reports whether the member already holds roleID.
func (m Member) HasRole(roleID string) bool {
	for _, id := range m.RoleIDs {
		if id == roleID {
			return true
		}
	}
	return false
}

// Guild is the workspace-level API the provisioner drives.
type Guild interface {
	Roles(ctx context.Context) ([]Role, error)
	CreateRole(ctx context.Context, name string) (Role, error)
	Channels(ctx context.Context) ([]Channel, error)
	CreateChannel(ctx context.Context, spec ChannelSpec) (Channel, error)
	SearchMembers(ctx context.Context, query string) ([]Member, error)
	AddMemberRole(ctx context.Context, userID, roleID string) error
}
