package policy

import (
	dErrors "solace/pkg/domain-errors"
)

// Outcome classifies a validator's verdict on a command.
type Outcome string

const (
	// OutcomeAccepted: the command proceeds as-is.
	OutcomeAccepted Outcome = "accepted"
	// OutcomeAcceptedPendingApproval: the command proceeds but the resulting
	// record is flagged for managerial approval.
	OutcomeAcceptedPendingApproval Outcome = "accepted_pending_approval"
	// OutcomeRejected: the command must not touch storage.
	OutcomeRejected Outcome = "rejected"
)

// Violation names the command field a validator rejected and why.
type Violation struct {
	Field   string
	Message string
}

// Decision is a validator's verdict. Validators are pure functions: rejection
// is a first-class value here, never an error raised for control flow.
// Handlers translate Rejected decisions into coded validation errors.
type Decision struct {
	Outcome Outcome
	// Reason explains a pending-approval escalation (names the trigger).
	Reason string
	// Violation is set iff Outcome is OutcomeRejected.
	Violation *Violation
}

// Accepted returns the approving decision.
func Accepted() Decision {
	return Decision{Outcome: OutcomeAccepted}
}

// PendingApproval returns an approving decision flagged for approval.
func PendingApproval(reason string) Decision {
	return Decision{Outcome: OutcomeAcceptedPendingApproval, Reason: reason}
}

// Rejected returns a rejecting decision naming the offending field.
func Rejected(field, message string) Decision {
	return Decision{Outcome: OutcomeRejected, Violation: &Violation{Field: field, Message: message}}
}

// IsRejected reports whether the command must be refused.
func (d Decision) IsRejected() bool { return d.Outcome == OutcomeRejected }

// RequiresApproval reports whether the resulting record needs approval.
func (d Decision) RequiresApproval() bool { return d.Outcome == OutcomeAcceptedPendingApproval }

// Err converts a rejected decision into a coded validation error carrying the
// offending field. Returns nil for accepting decisions.
func (d Decision) Err() error {
	if !d.IsRejected() {
		return nil
	}
	return dErrors.NewValidation(d.Violation.Field, d.Violation.Message)
}
