// Package payment manages case payments as audit-tracked version lineages
// governed by the funeral home's payment policy.
package payment

import (
	"solace/internal/policy"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
)

// Table is the version table payments persist to.
const Table = "payment_versions"

// Status is the payment lifecycle state.
type Status string

const (
	StatusPending   Status = "pending"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusRefunded  Status = "refunded"
	StatusCancelled Status = "cancelled"
)

// terminal statuses admit no further transitions except succeeded → refunded.
func (s Status) terminal() bool {
	return s == StatusFailed || s == StatusRefunded || s == StatusCancelled
}

// Payment is the payload of a payment version row.
type Payment struct {
	CaseID      id.CaseID            `json:"case_id"`
	AmountCents int64                `json:"amount_cents"`
	Method      policy.PaymentMethod `json:"method"`
	Status      Status               `json:"status"`
	// RequiresApproval is stamped from the governing policy at record time
	// and never recomputed on later versions.
	RequiresApproval bool `json:"requires_approval"`
	// ApprovedBy is the actor who cleared an approval-required payment.
	ApprovedBy string `json:"approved_by,omitempty"`
	// RefundedCents is the amount returned when Status is refunded.
	RefundedCents int64 `json:"refunded_cents,omitempty"`
	// PolicyVersion is the version of the payment POLICY that governed the
	// recording decision, for historical re-evaluation.
	PolicyVersion int `json:"policy_version"`
}

func (Payment) Kind() string { return "payment" }

func (p Payment) guardTransition(to Status) error {
	if p.Status.terminal() {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "payment is %s and cannot transition to %s", p.Status, to)
	}
	if to == StatusRefunded && p.Status != StatusSucceeded {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "only a succeeded payment can be refunded, payment is %s", p.Status)
	}
	return nil
}
