// Package review turns reviewer decisions into persisted status changes,
// team provisioning and moved representations.
package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/presenter"
	"github.com/cancetinn/ldm-discord/utils"
)

// Source is the part of the submission source the workflow needs.
type Source interface {
	Get(ctx context.Context, id string) (model.Submission, error)
	UpdateStatus(ctx context.Context, id string, status model.Status) error
}

// Control is a reviewer pressing approve or reject on a representation.
type Control struct {
	SubmissionID string
	Outcome      model.Status
	// Displayed is the status shown on the representation that was clicked.
	Displayed model.Status
	// Origin is the clicked representation, if known.
	Origin *chat.Posted
}

// Workflow applies review decisions. Calls for the same submission are serialized.
type Workflow struct {
	source    Source
	transport chat.Transport
	applier   *Applier
	locks     *utils.KeyedMutex
	logger    *slog.Logger
}

// New creates a Workflow. locks must be shared with anything else that moves
// representations, such as the reconciler.
func New(source Source, transport chat.Transport, applier *Applier, locks *utils.KeyedMutex, logger *slog.Logger) *Workflow {
	if locks == nil {
		locks = utils.NewKeyedMutex()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Workflow{
		source:    source,
		transport: transport,
		applier:   applier,
		locks:     locks,
		logger:    logger,
	}
}

// Decide persists the reviewer's outcome, provisions approved teams and moves
// the representation. It always returns exactly one Result.
func (w *Workflow) Decide(ctx context.Context, c Control) Result {
	res := Result{SubmissionID: c.SubmissionID, Status: c.Displayed}
	log := w.logger.With("submission", c.SubmissionID, "outcome", c.Outcome)

	if !c.Outcome.Terminal() {
		res.Kind = RecoverableFailure
		res.Err = fmt.Errorf("%w: %q", ErrInvalidOutcome, c.Outcome)
		return res
	}

	unlock := w.locks.Lock(c.SubmissionID)
	defer unlock()

	if c.Displayed.Terminal() {
		log.Info("control on decided representation ignored", "displayed", c.Displayed)
		res.Kind = AlreadyDecided
		res.Err = ErrAlreadyDecided
		return res
	}

	sub, err := w.source.Get(ctx, c.SubmissionID)
	if err != nil {
		log.Error("could not re-read submission", "error", err)
		res.Kind = RecoverableFailure
		res.Err = err
		return res
	}
	res.Status = sub.Status
	if !model.CanTransition(sub.Status, c.Outcome) {
		log.Info("submission already decided in source", "status", sub.Status)
		res.Kind = AlreadyDecided
		res.Err = ErrAlreadyDecided
		return res
	}

	if err := w.source.UpdateStatus(ctx, c.SubmissionID, c.Outcome); err != nil {
		log.Error("status update failed", "error", err)
		res.Kind = RecoverableFailure
		res.Err = err
		return res
	}
	sub.Status = c.Outcome
	res.Status = c.Outcome
	log.Info("status persisted")

	applied := w.applier.Apply(ctx, sub, c.Origin)
	res.Provision = applied.Provision
	switch {
	case applied.ProvisionErr != nil:
		res.Kind = PartialSuccess
		res.Err = applied.ProvisionErr
	case applied.RepresentationErr != nil:
		res.Kind = PartialSuccess
		res.Err = applied.RepresentationErr
	case applied.Provision != nil && len(applied.Provision.Unresolved) > 0:
		res.Kind = PartialSuccess
	default:
		res.Kind = Decided
	}
	return res
}

// Surface posts a newly seen submission. Pending submissions get controls in
// the pending space; submissions already decided go straight to their
// terminal space, provisioning approved teams on the way.
func (w *Workflow) Surface(ctx context.Context, sub model.Submission) error {
	unlock := w.locks.Lock(sub.ID)
	defer unlock()

	if sub.Status.Terminal() {
		applied := w.applier.Apply(ctx, sub, nil)
		if applied.RepresentationErr != nil {
			return applied.RepresentationErr
		}
		w.logger.Info("decided submission surfaced", "submission", sub.ID, "status", sub.Status)
		return nil
	}

	rep := chat.Representation{Summary: presenter.Present(sub), Controls: true}
	posted, err := w.transport.Post(ctx, chat.SpacePending, rep)
	if err != nil {
		return fmt.Errorf("%w: post %s: %w", ErrRepresentation, sub.ID, err)
	}
	w.logger.Info("submission surfaced", "submission", sub.ID, "message", posted.Ref.MessageID)
	return nil
}
