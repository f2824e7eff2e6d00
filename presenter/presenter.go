// Package presenter turns submissions into render-ready summaries.
// Nothing here performs I/O.
package presenter

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/cancetinn/ldm-discord/model"
)

// Discord rejects embed field values above 1024 characters.
const maxValueLen = 1024

// Badge colors, matching the review channel conventions.
const (
	ColorPending  = 0xFFFF00
	ColorApproved = 0x2EA043
	ColorRejected = 0xFF0000
)

// Group names, in display order.
const (
	GroupSubmission = "Submission"
	GroupTeam       = "Team"
	GroupDetails    = "Details"
)

// Label of the field that carries the status badge.
const StatusLabel = "Status"

// Summary is the normalized, render-ready view of a submission.
type Summary struct {
	SubmissionID string
	Title        string
	SubmittedAt  time.Time
	Status       model.Status
	Badge        Badge
	Groups       []FieldGroup
}

// Badge is the status marker shown on a representation.
type Badge struct {
	Label string
	Color int
}

// FieldGroup is a titled block of fields.
type FieldGroup struct {
	Name   string
	Fields []Field
}

// Field is a single label/value pair.
type Field struct {
	Label  string
	Value  string
	Inline bool
}

// Present builds the summary for sub.
func Present(sub model.Submission) Summary {
	s := Summary{
		SubmissionID: sub.ID,
		Title:        title(sub),
		SubmittedAt:  sub.SubmittedAt,
		Status:       sub.Status,
		Badge:        BadgeFor(sub.Status),
	}

	info := FieldGroup{Name: GroupSubmission, Fields: []Field{
		{Label: "ID", Value: sub.ID, Inline: true},
		{Label: StatusLabel, Value: s.Badge.Label, Inline: true},
	}}
	if !sub.SubmittedAt.IsZero() {
		info.Fields = append(info.Fields, Field{
			Label:  "Submitted",
			Value:  sub.SubmittedAt.UTC().Format("2006-01-02 15:04:05"),
			Inline: true,
		})
	}
	s.Groups = append(s.Groups, info)

	team := FieldGroup{Name: GroupTeam, Fields: []Field{
		{Label: "Team Name", Value: orDash(sub.TeamName)},
		{Label: "Members", Value: members(sub.Members)},
	}}
	s.Groups = append(s.Groups, team)

	if len(sub.Fields) > 0 {
		details := FieldGroup{Name: GroupDetails}
		for _, key := range sub.FieldKeys() {
			details.Fields = append(details.Fields, Field{
				Label: DisplayLabel(key),
				Value: orDash(sub.Fields[key]),
			})
		}
		s.Groups = append(s.Groups, details)
	}

	return s
}

// BadgeFor returns the badge for a status.
func BadgeFor(status model.Status) Badge {
	switch status {
	case model.StatusApproved:
		return Badge{Label: status.Label(), Color: ColorApproved}
	case model.StatusRejected:
		return Badge{Label: status.Label(), Color: ColorRejected}
	}
	return Badge{Label: model.StatusPending.Label(), Color: ColorPending}
}

// DisplayLabel turns a record key such as "team_name" or "discordTag" into "Team Name" / "Discord Tag".
func DisplayLabel(key string) string {
	var words []string
	var current []rune
	flush := func() {
		if len(current) > 0 {
			words = append(words, string(current))
			current = current[:0]
		}
	}
	for i, r := range key {
		switch {
		case r == '_' || r == '-' || r == ' ' || r == '.':
			flush()
		case i > 0 && r >= 'A' && r <= 'Z' && len(current) > 0:
			flush()
			current = append(current, r)
		default:
			current = append(current, r)
		}
	}
	flush()
	if len(words) == 0 {
		return key
	}
	// Casers keep state between calls, so each call gets its own.
	return cases.Title(language.English).String(strings.Join(words, " "))
}

func title(sub model.Submission) string {
	if sub.TeamName != "" {
		return "Team Application: " + sub.TeamName
	}
	return "New Form Submission"
}

func members(names []string) string {
	if len(names) == 0 {
		return "-"
	}
	return truncate(strings.Join(names, "\n"))
}

func orDash(value string) string {
	if strings.TrimSpace(value) == "" {
		return "-"
	}
	return truncate(value)
}

func truncate(value string) string {
	runes := []rune(value)
	if len(runes) <= maxValueLen {
		return value
	}
	return string(runes[:maxValueLen-3]) + "..."
}
