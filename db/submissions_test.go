package db

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancetinn/ldm-discord/model"
)

func openStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "data", "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStore_AddAndGet(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	at := time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

	added, err := s.AddSubmission(ctx, model.Submission{
		SubmittedAt: at,
		TeamName:    "Alpha",
		Members:     []string{"ana", "ben"},
		Fields:      map[string]string{"email": "a@b.c"},
	})
	require.NoError(t, err)
	assert.Equal(t, "1", added.ID)
	assert.Equal(t, model.StatusPending, added.Status)

	got, err := s.GetSubmission(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, added, got)
}

func TestStore_SequentialIDs(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)

	var wg sync.WaitGroup
	ids := make(chan string, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			sub, err := s.AddSubmission(ctx, model.Submission{TeamName: "T"})
			assert.NoError(t, err)
			ids <- sub.ID
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, 10)
}

func TestStore_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for _, offset := range []time.Duration{time.Hour, 3 * time.Hour, 2 * time.Hour} {
		_, err := s.AddSubmission(ctx, model.Submission{SubmittedAt: base.Add(offset)})
		require.NoError(t, err)
	}

	subs, err := s.ListSubmissions(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 3)
	assert.Equal(t, []string{"2", "3", "1"}, []string{subs[0].ID, subs[1].ID, subs[2].ID})
	assert.Equal(t, []string{}, subs[0].Members)
}

func TestStore_ListEmpty(t *testing.T) {
	subs, err := openStore(t).ListSubmissions(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, subs)
	assert.Empty(t, subs)
}

func TestStore_UpdateStatus(t *testing.T) {
	ctx := context.Background()
	s := openStore(t)
	_, err := s.AddSubmission(ctx, model.Submission{})
	require.NoError(t, err)

	require.NoError(t, s.UpdateSubmissionStatus(ctx, "1", model.StatusApproved))
	got, err := s.GetSubmission(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusApproved, got.Status)

	assert.ErrorIs(t, s.UpdateSubmissionStatus(ctx, "99", model.StatusApproved), ErrNotFound)
	assert.Error(t, s.UpdateSubmissionStatus(ctx, "1", "maybe"))
}

func TestStore_GetMissing(t *testing.T) {
	_, err := openStore(t).GetSubmission(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}
