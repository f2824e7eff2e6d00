package presenter

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cancetinn/ldm-discord/model"
)

func TestPresent_GroupsAndBadge(t *testing.T) {
	sub := model.Submission{
		ID:          "1",
		SubmittedAt: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Status:      model.StatusPending,
		TeamName:    "Alpha",
		Members:     []string{"ana", "ben#0420"},
		Fields:      map[string]string{"email": "a@b.c", "discord_tag": "ana", "notes": "  "},
	}

	s := Present(sub)

	assert.Equal(t, "1", s.SubmissionID)
	assert.Equal(t, "Team Application: Alpha", s.Title)
	assert.Equal(t, Badge{Label: "Pending", Color: ColorPending}, s.Badge)
	require.Len(t, s.Groups, 3)

	assert.Equal(t, GroupSubmission, s.Groups[0].Name)
	assert.Equal(t, Field{Label: StatusLabel, Value: "Pending", Inline: true}, s.Groups[0].Fields[1])
	assert.Equal(t, "2024-03-01 12:00:00", s.Groups[0].Fields[2].Value)

	assert.Equal(t, GroupTeam, s.Groups[1].Name)
	assert.Equal(t, "Alpha", s.Groups[1].Fields[0].Value)
	assert.Equal(t, "ana\nben#0420", s.Groups[1].Fields[1].Value)

	details := s.Groups[2]
	assert.Equal(t, GroupDetails, details.Name)
	assert.Equal(t, []Field{
		{Label: "Discord Tag", Value: "ana"},
		{Label: "Email", Value: "a@b.c"},
		{Label: "Notes", Value: "-"},
	}, details.Fields)
}

func TestPresent_TerminalBadges(t *testing.T) {
	assert.Equal(t, Badge{Label: "Approved", Color: ColorApproved}, Present(model.Submission{ID: "1", Status: model.StatusApproved}).Badge)
	assert.Equal(t, Badge{Label: "Rejected", Color: ColorRejected}, Present(model.Submission{ID: "1", Status: model.StatusRejected}).Badge)
}

func TestPresent_NoTeamNoDetails(t *testing.T) {
	s := Present(model.Submission{ID: "9", Status: model.StatusPending})

	assert.Equal(t, "New Form Submission", s.Title)
	require.Len(t, s.Groups, 2)
	assert.Len(t, s.Groups[0].Fields, 2, "no timestamp field without a timestamp")
	assert.Equal(t, "-", s.Groups[1].Fields[1].Value)
}

func TestPresent_TruncatesLongValues(t *testing.T) {
	s := Present(model.Submission{ID: "1", Fields: map[string]string{"bio": strings.Repeat("ğ", 2000)}})

	value := s.Groups[2].Fields[0].Value
	assert.Len(t, []rune(value), maxValueLen)
	assert.True(t, strings.HasSuffix(value, "..."))
}

func TestDisplayLabel(t *testing.T) {
	cases := map[string]string{
		"team_name":    "Team Name",
		"discordTag":   "Discord Tag",
		"player-two":   "Player Two",
		"email":        "Email",
		"___":          "___",
		"phone.mobile": "Phone Mobile",
	}
	for in, want := range cases {
		assert.Equal(t, want, DisplayLabel(in), in)
	}
}
