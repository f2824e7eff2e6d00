package poller

import (
	"time"

	"github.com/cancetinn/ldm-discord/model"
)

// Watermark is the newest submission time already handed off. It never moves
// backwards. Submissions sharing the watermark time are tracked by id so each
// one is handed off exactly once.
type Watermark struct {
	at   time.Time
	seen map[string]struct{}
}

// At returns the watermark time.
func (w *Watermark) At() time.Time {
	return w.at
}

// Admits reports whether sub has not been handed off yet.
func (w *Watermark) Admits(sub model.Submission) bool {
	if sub.SubmittedAt.After(w.at) {
		return true
	}
	if sub.SubmittedAt.Equal(w.at) {
		_, ok := w.seen[sub.ID]
		return !ok
	}
	return false
}

// Advance records sub as handed off.
func (w *Watermark) Advance(sub model.Submission) {
	switch {
	case sub.SubmittedAt.After(w.at):
		w.at = sub.SubmittedAt
		w.seen = map[string]struct{}{sub.ID: {}}
	case sub.SubmittedAt.Equal(w.at):
		if w.seen == nil {
			w.seen = make(map[string]struct{})
		}
		w.seen[sub.ID] = struct{}{}
	}
}
