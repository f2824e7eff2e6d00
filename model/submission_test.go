package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmissionUnmarshal_SourceRecord(t *testing.T) {
	raw := `{
		"id": 42,
		"time": "2023-11-08 14:32:10",
		"status": "approved",
		"team_name": " Alpha ",
		"username": "cancetin#1234",
		"members": ["bob", "carol", "bob"],
		"email": "captain@example.com",
		"age": 19
	}`

	var sub Submission
	require.NoError(t, json.Unmarshal([]byte(raw), &sub))

	assert.Equal(t, "42", sub.ID)
	assert.Equal(t, time.Date(2023, 11, 8, 14, 32, 10, 0, time.UTC), sub.SubmittedAt)
	assert.Equal(t, StatusApproved, sub.Status)
	assert.Equal(t, "Alpha", sub.TeamName)
	assert.Equal(t, []string{"cancetin#1234", "bob", "carol"}, sub.Members)
	assert.Equal(t, map[string]string{"email": "captain@example.com", "age": "19"}, sub.Fields)
}

func TestSubmissionUnmarshal_DefaultsAndMemberString(t *testing.T) {
	var sub Submission
	require.NoError(t, json.Unmarshal([]byte(`{"id":"7","time":"2024-01-02T03:04:05Z","members":"a, b;c\n"}`), &sub))

	assert.Equal(t, StatusPending, sub.Status)
	assert.Equal(t, []string{"a", "b", "c"}, sub.Members)
	assert.Empty(t, sub.Fields)
}

func TestSubmissionUnmarshal_Errors(t *testing.T) {
	var sub Submission
	assert.Error(t, json.Unmarshal([]byte(`{"time":"2024-01-02 03:04:05"}`), &sub), "missing id")
	assert.Error(t, json.Unmarshal([]byte(`{"id":"1","time":"yesterday"}`), &sub))
	assert.Error(t, json.Unmarshal([]byte(`{"id":"1","status":"archived"}`), &sub))
}

func TestSubmissionMarshal_KeepsSourceShape(t *testing.T) {
	sub := Submission{
		ID:          "3",
		SubmittedAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Status:      StatusRejected,
		TeamName:    "Beta",
		Members:     []string{"x"},
		Fields:      map[string]string{"email": "e@x"},
	}

	data, err := json.Marshal(sub)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "2024-05-01 10:00:00", raw["time"])
	assert.Equal(t, "rejected", raw["status"])
	assert.Equal(t, "Beta", raw["team_name"])
	assert.Equal(t, "e@x", raw["email"])
}

func TestSortBySubmittedAt(t *testing.T) {
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	subs := []Submission{
		{ID: "c", SubmittedAt: t0.Add(2 * time.Minute)},
		{ID: "b", SubmittedAt: t0},
		{ID: "a", SubmittedAt: t0},
		{ID: "d", SubmittedAt: t0.Add(time.Minute)},
	}

	SortBySubmittedAt(subs)

	ids := make([]string, len(subs))
	for i, s := range subs {
		ids[i] = s.ID
	}
	assert.Equal(t, []string{"a", "b", "d", "c"}, ids)
}

func TestStatusLifecycle(t *testing.T) {
	assert.True(t, CanTransition(StatusPending, StatusApproved))
	assert.True(t, CanTransition(StatusPending, StatusRejected))
	assert.False(t, CanTransition(StatusApproved, StatusRejected))
	assert.False(t, CanTransition(StatusRejected, StatusPending))
	assert.False(t, CanTransition(StatusApproved, StatusPending))

	assert.False(t, StatusPending.Terminal())
	assert.True(t, StatusApproved.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.False(t, Status("bogus").Terminal())
}

func TestParseStatus(t *testing.T) {
	for in, want := range map[string]Status{
		"":          StatusPending,
		"Pending":   StatusPending,
		"APPROVED":  StatusApproved,
		"rejected ": StatusRejected,
	} {
		got, err := ParseStatus(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}
