package provision

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancetinn/ldm-discord/chat/chattest"
)

func TestMemoryCache_TTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, "Alpha", Entry{RoleID: "r1", CategoryID: "c1"}))

	e, ok, err := c.Get(ctx, "alpha")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "r1", e.RoleID)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, "Alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryCache_Forget(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(0)
	require.NoError(t, c.Set(ctx, "Alpha", Entry{RoleID: "r1"}))
	require.NoError(t, c.Forget(ctx, "ALPHA"))

	_, ok, err := c.Get(ctx, "Alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func newRedisCache(t *testing.T) (*RedisCache, *miniredis.Miniredis) {
	t.Helper()
	s := miniredis.RunT(t)
	c, err := NewRedisCache(context.Background(), "redis://"+s.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	return c, s
}

func TestRedisCache_RoundTrip(t *testing.T) {
	ctx := context.Background()
	c, s := newRedisCache(t)

	_, ok, err := c.Get(ctx, "Alpha")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "Alpha", Entry{RoleID: "r1", CategoryID: "c1"}))
	assert.True(t, s.Exists("ldm:team:alpha"))
	assert.Equal(t, time.Hour, s.TTL("ldm:team:alpha"))

	e, ok, err := c.Get(ctx, "alpha ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, Entry{RoleID: "r1", CategoryID: "c1"}, e)

	s.FastForward(2 * time.Hour)
	_, ok, err = c.Get(ctx, "Alpha")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	c, s := newRedisCache(t)
	require.NoError(t, s.Set("ldm:team:alpha", "{not json"))

	_, _, err := c.Get(context.Background(), "Alpha")
	assert.Error(t, err)
}

func TestNewRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache(context.Background(), "not-a-url", time.Hour)
	assert.Error(t, err)
}

func TestProvisioner_SharedRedisCache(t *testing.T) {
	ctx := context.Background()
	c, _ := newRedisCache(t)
	g := newGuild()

	first, err := New(g, c, nil).EnsureTeam(ctx, "Alpha", nil)
	require.NoError(t, err)

	searchesBefore := g.Searches
	second, err := New(g, c, nil).EnsureTeam(ctx, "Alpha", nil)
	require.NoError(t, err)
	assert.Equal(t, first.RoleID, second.RoleID)
	assert.Equal(t, first.CategoryID, second.CategoryID)
	assert.Equal(t, 1, g.RoleCreates)
	assert.Equal(t, searchesBefore, g.Searches)
}

func TestProvisioner_BrokenCacheFallsBackToGuild(t *testing.T) {
	ctx := context.Background()
	c, s := newRedisCache(t)
	g := chattest.NewGuild()
	p := New(g, c, nil)

	s.Close()
	report, err := p.EnsureTeam(ctx, "Alpha", nil)
	require.NoError(t, err)
	assert.True(t, report.CreatedRole)
}
