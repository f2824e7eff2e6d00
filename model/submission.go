package model

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Submission is one form entry from the source, as returned by the form-data endpoint.
type Submission struct {
	ID          string
	SubmittedAt time.Time
	Status      Status
	TeamName    string
	Members     []string
	// Fields holds every other key of the record as display data.
	Fields map[string]string
}

// Keys with a meaning of their own; everything else lands in Fields.
const (
	keyID       = "id"
	keyTime     = "time"
	keyStatus   = "status"
	keyTeamName = "team_name"
	keyMembers  = "members"
	keyUsername = "username"
)

// timeLayouts are tried in order when parsing the source's "time" value.
var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ParseTime parses a submission timestamp in any layout the source is known to emit.
// Layouts without a zone are read as UTC.
func ParseTime(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q", value)
}

// UnmarshalJSON decodes a raw form record.
func (s *Submission) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := Submission{Status: StatusPending, Fields: make(map[string]string)}
	for key, value := range raw {
		switch strings.ToLower(key) {
		case keyID:
			out.ID = scalarString(value)
		case keyTime:
			text := scalarString(value)
			if text == "" {
				continue
			}
			t, err := ParseTime(text)
			if err != nil {
				return fmt.Errorf("submission time: %w", err)
			}
			out.SubmittedAt = t
		case keyStatus:
			status, err := ParseStatus(scalarString(value))
			if err != nil {
				return err
			}
			out.Status = status
		case keyTeamName:
			out.TeamName = strings.TrimSpace(scalarString(value))
		case keyMembers:
			out.Members = append(out.Members, memberList(value)...)
		case keyUsername:
			if name := strings.TrimSpace(scalarString(value)); name != "" {
				out.Members = append([]string{name}, out.Members...)
			}
		default:
			out.Fields[key] = scalarString(value)
		}
	}

	if out.ID == "" {
		return fmt.Errorf("submission without id")
	}
	out.Members = dedupe(out.Members)
	*s = out
	return nil
}

// MarshalJSON encodes the submission back into the source's record shape.
func (s Submission) MarshalJSON() ([]byte, error) {
	raw := make(map[string]any, len(s.Fields)+5)
	for key, value := range s.Fields {
		raw[key] = value
	}
	raw[keyID] = s.ID
	if !s.SubmittedAt.IsZero() {
		raw[keyTime] = s.SubmittedAt.UTC().Format("2006-01-02 15:04:05")
	}
	raw[keyStatus] = string(s.Status)
	raw[keyTeamName] = s.TeamName
	raw[keyMembers] = s.Members
	return json.Marshal(raw)
}

// FieldKeys returns the display field keys in a stable order.
func (s Submission) FieldKeys() []string {
	keys := make([]string, 0, len(s.Fields))
	for key := range s.Fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// SortBySubmittedAt orders submissions oldest first. Equal timestamps keep id order.
func SortBySubmittedAt(subs []Submission) {
	sort.SliceStable(subs, func(i, j int) bool {
		if subs[i].SubmittedAt.Equal(subs[j].SubmittedAt) {
			return subs[i].ID < subs[j].ID
		}
		return subs[i].SubmittedAt.Before(subs[j].SubmittedAt)
	})
}

func scalarString(value json.RawMessage) string {
	var text string
	if err := json.Unmarshal(value, &text); err == nil {
		return text
	}
	var number json.Number
	if err := json.Unmarshal(value, &number); err == nil {
		return number.String()
	}
	var flag bool
	if err := json.Unmarshal(value, &flag); err == nil {
		return strconv.FormatBool(flag)
	}
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "null" {
		return ""
	}
	return trimmed
}

// memberList accepts either a JSON array of names or a comma/newline separated string.
func memberList(value json.RawMessage) []string {
	var list []string
	if err := json.Unmarshal(value, &list); err != nil {
		list = strings.FieldsFunc(scalarString(value), func(r rune) bool {
			return r == ',' || r == '\n' || r == ';'
		})
	}

	out := make([]string, 0, len(list))
	for _, name := range list {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

func dedupe(names []string) []string {
	if len(names) == 0 {
		return nil
	}
	seen := make(map[string]bool, len(names))
	out := names[:0]
	for _, name := range names {
		if seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}
