package review

import (
	"errors"
	"fmt"

	"github.com/cancetinn/ldm-discord/model"
	"github.com/cancetinn/ldm-discord/provision"
)

var (
	// ErrRepresentation marks a failed post, relabel or delete in the chat workspace.
	ErrRepresentation = errors.New("representation update failed")
	// ErrAlreadyDecided is informational: someone else decided first.
	ErrAlreadyDecided = errors.New("submission already decided")
	// ErrInvalidOutcome is returned for a control that is not approve or reject.
	ErrInvalidOutcome = errors.New("outcome must be approved or rejected")
)

// Kind classifies how a review action ended.
type Kind int

const (
	Decided Kind = iota
	// PartialSuccess means the status was persisted but a later step failed.
	PartialSuccess
	// RecoverableFailure means nothing changed and the reviewer may try again.
	RecoverableFailure
	AlreadyDecided
)

func (k Kind) String() string {
	switch k {
	case Decided:
		return "decided"
	case PartialSuccess:
		return "partial_success"
	case RecoverableFailure:
		return "recoverable_failure"
	case AlreadyDecided:
		return "already_decided"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Result is the single outcome of a Decide call.
type Result struct {
	Kind         Kind
	SubmissionID string
	// Status is the status the submission ends up with in the source.
	Status    model.Status
	Provision *provision.Report
	Err       error
}

// Message renders the acknowledgement shown to the reviewer.
func (r Result) Message() string {
	switch r.Kind {
	case Decided:
		if r.Status == model.StatusApproved {
			if r.Provision == nil {
				return "Form approved and moved to the approved channel."
			}
			return "Form approved, role created and assigned, and moved to the approved channel."
		}
		return "Form rejected and moved to the rejected channel."
	case PartialSuccess:
		msg := fmt.Sprintf("Form %s, but some follow-up steps failed.", r.Status)
		if r.Provision != nil && len(r.Provision.Unresolved) > 0 {
			msg += fmt.Sprintf(" Members not found: %d.", len(r.Provision.Unresolved))
		}
		return msg + " They will be retried automatically."
	case AlreadyDecided:
		if r.Status.Terminal() {
			return fmt.Sprintf("This application was already %s.", r.Status)
		}
		return "This application was already decided."
	}
	return "There was an error processing the form. Please try again later."
}
