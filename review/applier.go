package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cancetinn/ldm-discord/chat"
	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/presenter"
	"github.com/cancetinn/ldm-discord/provision"
)

// Provisioner is the part of provision.Provisioner the review flow uses.
type Provisioner interface {
	EnsureTeam(ctx context.Context, team string, identities []string) (provision.Report, error)
}

// ApplyReport records what Apply did.
type ApplyReport struct {
	Posted chat.Posted
	// Moved is false when the current representation was already consistent.
	Moved     bool
	Provision *provision.Report
	// ProvisionErr and RepresentationErr are set independently.
	ProvisionErr      error
	RepresentationErr error
	// StaleLeft is set when the new representation was posted but the old one
	// could not be deleted.
	StaleLeft bool
}

// Failed reports whether any step failed.
func (r ApplyReport) Failed() bool {
	return r.ProvisionErr != nil || r.RepresentationErr != nil
}

// Applier moves a representation to the space matching a submission's status
// and provisions approved teams. It is shared by the workflow and the reconciler.
type Applier struct {
	transport   chat.Transport
	provisioner Provisioner
	logger      *slog.Logger
}

// NewApplier creates an Applier. provisioner may be nil to skip team setup.
func NewApplier(transport chat.Transport, provisioner Provisioner, logger *slog.Logger) *Applier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Applier{transport: transport, provisioner: provisioner, logger: logger}
}

// Apply brings the chat workspace in line with sub. current is the existing
// representation, or nil when none has been posted.
func (a *Applier) Apply(ctx context.Context, sub model.Submission, current *chat.Posted) ApplyReport {
	var report ApplyReport

	if sub.Status == model.StatusApproved {
		report.Provision, report.ProvisionErr = a.provision(ctx, sub)
	}

	posted, moved, stale, err := a.move(ctx, sub, current)
	report.Posted = posted
	report.Moved = moved
	report.StaleLeft = stale
	report.RepresentationErr = err
	return report
}

// Provision runs team setup for an approved submission.
func (a *Applier) Provision(ctx context.Context, sub model.Submission) (*provision.Report, error) {
	return a.provision(ctx, sub)
}

func (a *Applier) provision(ctx context.Context, sub model.Submission) (*provision.Report, error) {
	if a.provisioner == nil || sub.TeamName == "" {
		return nil, nil
	}
	rep, err := a.provisioner.EnsureTeam(ctx, sub.TeamName, sub.Members)
	if err != nil {
		a.logger.Error("provisioning failed", "submission", sub.ID, "team", sub.TeamName, "error", err)
	} else if len(rep.Unresolved) > 0 {
		a.logger.Warn("some members were not found", "submission", sub.ID, "team", sub.TeamName,
			"unresolved", rep.Unresolved)
	}
	return &rep, err
}

func (a *Applier) move(ctx context.Context, sub model.Submission, current *chat.Posted) (chat.Posted, bool, bool, error) {
	wantControls := !sub.Status.Terminal()
	if current != nil && current.Consistent(sub.Status) && current.Controls == wantControls {
		return *current, false, false, nil
	}

	space := chat.SpaceFor(sub.Status)
	rep := chat.Representation{Summary: presenter.Present(sub), Controls: wantControls}

	posted, err := a.transport.Post(ctx, space, rep)
	if err != nil {
		return chat.Posted{}, false, false, fmt.Errorf("%w: post %s to %s: %w", ErrRepresentation, sub.ID, space, err)
	}
	a.logger.Info("representation posted", "submission", sub.ID, "space", space, "message", posted.Ref.MessageID)

	if current == nil {
		return posted, true, false, nil
	}
	if err := a.transport.Remove(ctx, *current); err != nil && !errors.Is(err, chat.ErrNotFound) {
		a.logger.Warn("old representation not removed", "submission", sub.ID,
			"space", current.Space, "message", current.Ref.MessageID, "error", err)
		return posted, true, true, nil
	}
	return posted, true, false, nil
}
