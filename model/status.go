package model

import (
	"fmt"
	"strings"
)

// Status is the review state of a submission.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// transitions lists the legal moves out of each state. Terminal states have none.
var transitions = map[Status][]Status{
	StatusPending: {StatusApproved, StatusRejected},
}

// ParseStatus maps the source's status text onto a Status. Empty means pending.
func ParseStatus(value string) (Status, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "pending", "new":
		return StatusPending, nil
	case "approved", "approve", "accepted":
		return StatusApproved, nil
	case "rejected", "reject", "declined":
		return StatusRejected, nil
	}
	return "", fmt.Errorf("unknown submission status %q", value)
}

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0 && s.Valid()
}

// Valid reports whether s is one of the known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Label is the human readable badge text.
func (s Status) Label() string {
	switch s {
	case StatusApproved:
		return "Approved"
	case StatusRejected:
		return "Rejected"
	case StatusPending:
		return "Pending"
	}
	return string(s)
}

// CanTransition reports whether from → to is a legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}
