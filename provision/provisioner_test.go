package provision

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/chat/chattest"
)

func newGuild() *chattest.Guild {
	return chattest.NewGuild(
		chat.Member{UserID: "u1", Username: "ana", Discriminator: "0"},
		chat.Member{UserID: "u2", Username: "ben", Discriminator: "0420"},
		chat.Member{UserID: "u3", Username: "anatoly", Discriminator: "0"},
	)
}

func TestEnsureTeam_CreatesStructureAndAssigns(t *testing.T) {
	g := newGuild()
	p := New(g, nil, nil)

	report, err := p.EnsureTeam(context.Background(), "Red Foxes", []string{"ana", "ben#0420", "ghost"})
	require.NoError(t, err)

	assert.True(t, report.CreatedRole)
	assert.True(t, report.CreatedCategory)
	assert.Len(t, report.CreatedChannels, 2)
	assert.Equal(t, []string{"ana", "ben#0420"}, report.Assigned)
	assert.Equal(t, []string{"ghost"}, report.Unresolved)
	assert.False(t, report.Complete())
	assert.True(t, p.NeedsRetry("red foxes"))

	require.Len(t, g.RolesNamed("Red Foxes"), 1)
	categories := g.ChannelsNamed("Red Foxes", chat.ChannelCategory)
	require.Len(t, categories, 1)
	children := g.ChildrenOf(categories[0].ID)
	require.Len(t, children, 2)
	assert.Len(t, g.ChannelsNamed("red-foxes", chat.ChannelText), 1)
	assert.Len(t, g.ChannelsNamed("Red Foxes", chat.ChannelVoice), 1)

	ana, _ := g.Member("u1")
	assert.True(t, ana.HasRole(report.RoleID))
	anatoly, _ := g.Member("u3")
	assert.False(t, anatoly.HasRole(report.RoleID), "prefix matches must not be assigned")
}

func TestEnsureTeam_Idempotent(t *testing.T) {
	g := newGuild()
	p := New(g, nil, nil)
	ctx := context.Background()

	first, err := p.EnsureTeam(ctx, "Alpha", []string{"ana"})
	require.NoError(t, err)
	second, err := p.EnsureTeam(ctx, "Alpha", []string{"ana"})
	require.NoError(t, err)

	assert.Equal(t, first.RoleID, second.RoleID)
	assert.Equal(t, first.CategoryID, second.CategoryID)
	assert.False(t, second.CreatedRole)
	assert.False(t, second.CreatedCategory)
	assert.Equal(t, []string{"ana"}, second.AlreadyMember)
	assert.Equal(t, 1, g.RoleCreates)
	assert.Equal(t, 3, g.ChannelCreates)
	assert.Equal(t, 1, g.RoleAdds)
	assert.False(t, p.NeedsRetry("Alpha"))
}

func TestEnsureTeam_ConcurrentSameTeam(t *testing.T) {
	g := newGuild()
	p := New(g, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			team := "Alpha"
			if i%2 == 1 {
				team = "alpha"
			}
			_, err := p.EnsureTeam(context.Background(), team, []string{"ana"})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, g.RoleCreates)
	assert.Equal(t, 3, g.ChannelCreates)
	assert.Equal(t, 1, g.RoleAdds)
}

func TestEnsureTeam_ReusesExistingStructureWithoutCache(t *testing.T) {
	g := newGuild()
	ctx := context.Background()

	_, err := New(g, nil, nil).EnsureTeam(ctx, "Alpha", nil)
	require.NoError(t, err)

	// A fresh process has an empty cache but must still find what exists.
	report, err := New(g, nil, nil).EnsureTeam(ctx, "Alpha", nil)
	require.NoError(t, err)
	assert.False(t, report.CreatedRole)
	assert.False(t, report.CreatedCategory)
	assert.Empty(t, report.CreatedChannels)
	assert.Equal(t, 1, g.RoleCreates)
}

func TestEnsureTeam_RepairsMissingChildAfterFailure(t *testing.T) {
	g := newGuild()
	p := New(g, nil, nil)
	ctx := context.Background()

	_, err := p.EnsureTeam(ctx, "Alpha", nil)
	require.NoError(t, err)
	before := g.ChannelCreates

	p2 := New(g, NewMemoryCache(0), nil)
	g.Fail["CreateChannel"] = errors.New("boom")
	_, err = p2.EnsureTeam(ctx, "Beta", nil)
	require.ErrorIs(t, err, ErrProvisioning)
	assert.True(t, p2.NeedsRetry("Beta"))

	delete(g.Fail, "CreateChannel")
	report, err := p2.EnsureTeam(ctx, "Beta", nil)
	require.NoError(t, err)
	assert.False(t, report.CreatedRole)
	assert.True(t, report.CreatedCategory)
	assert.Equal(t, before+3, g.ChannelCreates)
	assert.False(t, p2.NeedsRetry("Beta"))
}

func TestEnsureTeam_PendingTeamRechecksCachedStructure(t *testing.T) {
	g := newGuild()
	p := New(g, NewMemoryCache(0), nil)
	ctx := context.Background()

	first, err := p.EnsureTeam(ctx, "Alpha", []string{"cara"})
	require.NoError(t, err)
	require.True(t, p.NeedsRetry("Alpha"))

	text := g.ChannelsNamed("alpha", chat.ChannelText)
	require.Len(t, text, 1)
	g.DeleteChannel(text[0].ID)

	report, err := p.EnsureTeam(ctx, "Alpha", []string{"cara"})
	require.NoError(t, err)
	assert.Equal(t, first.RoleID, report.RoleID)
	assert.Equal(t, first.CategoryID, report.CategoryID)
	assert.Len(t, report.CreatedChannels, 1)
	assert.Len(t, g.ChannelsNamed("alpha", chat.ChannelText), 1)
	assert.Equal(t, 1, g.RoleCreates)
}

func TestEnsureTeam_CompleteTeamTrustsCache(t *testing.T) {
	g := newGuild()
	p := New(g, NewMemoryCache(0), nil)
	ctx := context.Background()

	_, err := p.EnsureTeam(ctx, "Alpha", []string{"ana"})
	require.NoError(t, err)
	g.Fail["Channels"] = errors.New("should not list channels")

	report, err := p.EnsureTeam(ctx, "Alpha", []string{"ana"})
	require.NoError(t, err)
	assert.Empty(t, report.CreatedChannels)
}

func TestEnsureTeam_LateJoinerResolvedOnRetry(t *testing.T) {
	g := newGuild()
	p := New(g, nil, nil)
	ctx := context.Background()

	report, err := p.EnsureTeam(ctx, "Alpha", []string{"cara"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cara"}, report.Unresolved)
	assert.True(t, p.NeedsRetry("Alpha"))

	g.Join(chat.Member{UserID: "u4", Username: "cara"})
	report, err = p.EnsureTeam(ctx, "Alpha", []string{"cara"})
	require.NoError(t, err)
	assert.Equal(t, []string{"cara"}, report.Assigned)
	assert.False(t, p.NeedsRetry("Alpha"))
}

func TestEnsureTeam_AssignFailureIsReported(t *testing.T) {
	g := newGuild()
	g.Fail["AddMemberRole"] = errors.New("missing permissions")
	p := New(g, nil, nil)

	report, err := p.EnsureTeam(context.Background(), "Alpha", []string{"ana"})
	require.ErrorIs(t, err, ErrProvisioning)
	assert.NotEmpty(t, report.RoleID)
	assert.Equal(t, []string{"ana"}, report.Failed)
	assert.True(t, p.NeedsRetry("Alpha"))
}

func TestEnsureTeam_StaleCachedRoleIsRebuilt(t *testing.T) {
	g := newGuild()
	cache := NewMemoryCache(0)
	p := New(g, cache, nil)
	ctx := context.Background()

	first, err := p.EnsureTeam(ctx, "Alpha", []string{"ana"})
	require.NoError(t, err)
	g.DeleteRole(first.RoleID)

	_, err = p.EnsureTeam(ctx, "Alpha", []string{"ben#0420"})
	require.ErrorIs(t, err, ErrProvisioning)
	_, hit, err := cache.Get(ctx, "Alpha")
	require.NoError(t, err)
	assert.False(t, hit)

	third, err := p.EnsureTeam(ctx, "Alpha", []string{"ben#0420"})
	require.NoError(t, err)
	assert.True(t, third.CreatedRole)
	assert.False(t, third.CreatedCategory)
	assert.NotEqual(t, first.RoleID, third.RoleID)
	assert.Equal(t, []string{"ben#0420"}, third.Assigned)
}

func TestEnsureTeam_RoleFailure(t *testing.T) {
	g := newGuild()
	g.Fail["CreateRole"] = errors.New("rate limited")
	p := New(g, nil, nil)

	_, err := p.EnsureTeam(context.Background(), "Alpha", []string{"ana"})
	require.ErrorIs(t, err, ErrProvisioning)
	assert.Zero(t, g.ChannelCreates)
	assert.Zero(t, g.RoleAdds)
}

func TestEnsureTeam_EmptyTeam(t *testing.T) {
	_, err := New(newGuild(), nil, nil).EnsureTeam(context.Background(), "  ", []string{"ana"})
	require.ErrorIs(t, err, ErrNoTeam)
	require.ErrorIs(t, err, ErrProvisioning)
}

func TestEnsureTeam_LegacyDiscriminator(t *testing.T) {
	g := newGuild()
	p := New(g, nil, nil)

	report, err := p.EnsureTeam(context.Background(), "Alpha", []string{"ben#9999", "ana#1234"})
	require.NoError(t, err)
	// ben still carries a discriminator that does not match; ana migrated to "0".
	assert.Equal(t, []string{"ana#1234"}, report.Assigned)
	assert.Equal(t, []string{"ben#9999"}, report.Unresolved)
}

func TestSplitIdentity(t *testing.T) {
	cases := []struct {
		in, name, disc string
	}{
		{"ana", "ana", ""},
		{"@ana", "ana", ""},
		{"ben#0420", "ben", "0420"},
		{" weird#name#0001 ", "weird#name", "0001"},
		{"#0001", "#0001", ""},
	}
	for _, c := range cases {
		name, disc := SplitIdentity(c.in)
		assert.Equal(t, c.name, name, c.in)
		assert.Equal(t, c.disc, disc, c.in)
	}
}

func TestTextChannelName(t *testing.T) {
	assert.Equal(t, "red-foxes", TextChannelName("Red Foxes"))
	assert.Equal(t, "a-b", TextChannelName("  A   B "))
}
