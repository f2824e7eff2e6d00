// Package reconcile periodically compares the source with what the chat
// workspace shows and repairs representations a failed step left behind.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/review"
	"github.com/cancetinn/ldm-discord/utils"
)

const defaultLookback = 100

// Lister lists every submission the source knows about.
type Lister interface {
	List(ctx context.Context) ([]model.Submission, error)
}

// RetryChecker reports teams whose provisioning left work undone.
type RetryChecker interface {
	NeedsRetry(team string) bool
}

// Divergent reports whether posted needs to be moved or relabelled to match sub.
type Divergent func(posted chat.Posted, sub model.Submission) bool

// DefaultDivergent flags a representation in the wrong space, showing the
// wrong status, or with controls it should not have.
func DefaultDivergent(posted chat.Posted, sub model.Submission) bool {
	return !posted.Consistent(sub.Status) || posted.Controls == sub.Status.Terminal()
}

// ActionKind says what the reconciler will do with a representation.
type ActionKind int

const (
	ActionMove ActionKind = iota
	ActionRemoveDuplicate
	ActionReprovision
)

func (k ActionKind) String() string {
	switch k {
	case ActionMove:
		return "move"
	case ActionRemoveDuplicate:
		return "remove_duplicate"
	case ActionReprovision:
		return "reprovision"
	}
	return fmt.Sprintf("action(%d)", int(k))
}

// Action is one repair.
type Action struct {
	Kind       ActionKind
	Submission model.Submission
	Posted     chat.Posted
}

func (a Action) String() string {
	switch a.Kind {
	case ActionMove:
		return fmt.Sprintf("move %s from %s to %s", a.Submission.ID, a.Posted.Space, chat.SpaceFor(a.Submission.Status))
	case ActionRemoveDuplicate:
		return fmt.Sprintf("remove duplicate of %s in %s", a.Submission.ID, a.Posted.Space)
	}
	return fmt.Sprintf("re-provision team %q for %s", a.Submission.TeamName, a.Submission.ID)
}

// Report summarizes one pass.
type Report struct {
	DryRun  bool
	Scanned int
	Actions []Action
	Applied int
	// Skipped counts actions whose representation changed or vanished before they ran.
	Skipped int
	Errors  []error
}

// Summary renders the report for the /reconcile command.
func (r Report) Summary() string {
	var b strings.Builder
	mode := "applied"
	if r.DryRun {
		mode = "planned"
	}
	fmt.Fprintf(&b, "Scanned %d representations, %d repairs %s", r.Scanned, len(r.Actions), mode)
	if !r.DryRun {
		fmt.Fprintf(&b, " (%d done, %d skipped, %d failed)", r.Applied, r.Skipped, len(r.Errors))
	}
	b.WriteString(".")
	for _, a := range r.Actions {
		b.WriteString("\n- ")
		b.WriteString(a.String())
	}
	return b.String()
}

// Reconciler repairs divergence between the source and the chat workspace.
type Reconciler struct {
	lister    Lister
	transport chat.Transport
	applier   *review.Applier
	retry     RetryChecker
	locks     *utils.KeyedMutex
	cfg       model.Reconcile
	divergent Divergent
	logger    *slog.Logger
}

// New creates a Reconciler. locks must be the same KeyedMutex the review
// workflow uses. retry may be nil.
func New(lister Lister, transport chat.Transport, applier *review.Applier, retry RetryChecker,
	locks *utils.KeyedMutex, cfg model.Reconcile, logger *slog.Logger) *Reconciler {
	if cfg.Lookback <= 0 {
		cfg.Lookback = defaultLookback
	}
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if locks == nil {
		locks = utils.NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		lister:    lister,
		transport: transport,
		applier:   applier,
		retry:     retry,
		locks:     locks,
		cfg:       cfg,
		divergent: DefaultDivergent,
		logger:    logger,
	}
}

// WithDivergence replaces the divergence predicate.
func (r *Reconciler) WithDivergence(fn Divergent) *Reconciler {
	if fn != nil {
		r.divergent = fn
	}
	return r
}

// Run reconciles every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.logger.Info("reconciler started", "interval", r.cfg.Interval, "lookback", r.cfg.Lookback)
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("reconciler stopped")
			return nil
		case <-ticker.C:
			report, err := r.RunOnce(ctx, false)
			if err != nil {
				r.logger.Error("reconcile pass failed", "error", err)
				continue
			}
			if len(report.Actions) > 0 {
				r.logger.Info("reconcile pass finished", "actions", len(report.Actions),
					"applied", report.Applied, "skipped", report.Skipped, "failed", len(report.Errors))
			}
		}
	}
}

// RunOnce performs a single pass. With dryRun the repairs are only reported.
func (r *Reconciler) RunOnce(ctx context.Context, dryRun bool) (Report, error) {
	report := Report{DryRun: dryRun}

	index := make(map[string][]chat.Posted)
	for _, space := range chat.Spaces {
		posted, err := r.transport.Scan(ctx, space, r.cfg.Lookback)
		if err != nil {
			return report, fmt.Errorf("scan %s: %w", space, err)
		}
		report.Scanned += len(posted)
		for _, p := range posted {
			if p.SubmissionID == "" {
				continue
			}
			index[p.SubmissionID] = append(index[p.SubmissionID], p)
		}
	}

	subs, err := r.lister.List(ctx)
	if err != nil {
		return report, err
	}

	for _, sub := range subs {
		if !sub.Status.Terminal() {
			continue
		}
		report.Actions = append(report.Actions, r.plan(sub, index[sub.ID])...)
	}

	if dryRun {
		return report, nil
	}
	for _, action := range report.Actions {
		applied, err := r.apply(ctx, action)
		switch {
		case err != nil:
			r.logger.Warn("repair failed", "submission", action.Submission.ID, "action", action.Kind, "error", err)
			report.Errors = append(report.Errors, err)
		case applied:
			report.Applied++
		default:
			report.Skipped++
		}
	}
	return report, nil
}

func (r *Reconciler) plan(sub model.Submission, reps []chat.Posted) []Action {
	if len(reps) == 0 {
		return nil
	}

	keep := -1
	for i, p := range reps {
		if !r.divergent(p, sub) {
			keep = i
			break
		}
	}

	var actions []Action
	if keep < 0 {
		actions = append(actions, Action{Kind: ActionMove, Submission: sub, Posted: pickSource(reps)})
	} else {
		for i, p := range reps {
			if i != keep {
				actions = append(actions, Action{Kind: ActionRemoveDuplicate, Submission: sub, Posted: p})
			}
		}
		if sub.Status == model.StatusApproved && r.retry != nil && r.retry.NeedsRetry(sub.TeamName) {
			actions = append(actions, Action{Kind: ActionReprovision, Submission: sub, Posted: reps[keep]})
		}
	}
	return actions
}

// pickSource prefers the pending representation as the one to move.
func pickSource(reps []chat.Posted) chat.Posted {
	for _, p := range reps {
		if p.Space == chat.SpacePending {
			return p
		}
	}
	return reps[0]
}

func (r *Reconciler) apply(ctx context.Context, action Action) (bool, error) {
	sub := action.Submission
	unlock := r.locks.Lock(sub.ID)
	defer unlock()

	current, found, err := r.transport.Lookup(ctx, action.Posted.Ref)
	if err != nil {
		return false, fmt.Errorf("re-read %s: %w", sub.ID, err)
	}
	if !found {
		r.logger.Debug("representation vanished, skipping", "submission", sub.ID, "space", action.Posted.Space)
		return false, nil
	}

	switch action.Kind {
	case ActionMove:
		if !r.divergent(current, sub) {
			return false, nil
		}
		// A decision that landed after the scan may already have posted the
		// terminal copy; then current is only a leftover.
		sibling, found, err := r.consistentSibling(ctx, sub, current)
		if err != nil {
			return false, err
		}
		if found {
			r.logger.Debug("consistent copy already posted", "submission", sub.ID, "space", sibling.Space)
			return r.removeDuplicate(ctx, sub, current)
		}
		applied := r.applier.Apply(ctx, sub, &current)
		if err := errors.Join(applied.RepresentationErr, applied.ProvisionErr); err != nil {
			return applied.Moved, err
		}
		r.logger.Info("representation repaired", "submission", sub.ID, "from", current.Space, "to", applied.Posted.Space)
		return true, nil

	case ActionRemoveDuplicate:
		return r.removeDuplicate(ctx, sub, current)

	case ActionReprovision:
		if _, err := r.applier.Provision(ctx, sub); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, fmt.Errorf("unknown action %s", action.Kind)
}

func (r *Reconciler) removeDuplicate(ctx context.Context, sub model.Submission, p chat.Posted) (bool, error) {
	if err := r.transport.Remove(ctx, p); err != nil && !errors.Is(err, chat.ErrNotFound) {
		return false, fmt.Errorf("%w: remove duplicate of %s: %w", review.ErrRepresentation, sub.ID, err)
	}
	r.logger.Info("duplicate representation removed", "submission", sub.ID, "space", p.Space)
	return true, nil
}

// consistentSibling looks in sub's target space for another representation
// of sub that needs no repair.
func (r *Reconciler) consistentSibling(ctx context.Context, sub model.Submission, current chat.Posted) (chat.Posted, bool, error) {
	posted, err := r.transport.Scan(ctx, chat.SpaceFor(sub.Status), r.cfg.Lookback)
	if err != nil {
		return chat.Posted{}, false, fmt.Errorf("rescan %s: %w", chat.SpaceFor(sub.Status), err)
	}
	for _, p := range posted {
		if p.SubmissionID == sub.ID && p.Ref != current.Ref && !r.divergent(p, sub) {
			return p, true, nil
		}
	}
	return chat.Posted{}, false, nil
}
