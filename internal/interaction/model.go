// Package interaction manages logged staff-contact interactions (calls,
// visits, arrangement meetings) as audit-tracked version lineages governed by
// the funeral home's interaction policy.
package interaction

import (
	"time"

	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
)

// Table is the version table interactions persist to.
const Table = "interaction_versions"

// Status is the interaction lifecycle state.
type Status string

const (
	StatusOpen      Status = "open"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// Interaction is the payload of an interaction version row.
type Interaction struct {
	CaseID  id.CaseID  `json:"case_id"`
	StaffID id.StaffID `json:"staff_id"`
	// Type is one of the policy's allowed interaction types.
	Type     string        `json:"type"`
	Notes    string        `json:"notes,omitempty"`
	Duration time.Duration `json:"duration"`
	Status   Status        `json:"status"`
	// PolicyVersion is the version of the interaction POLICY that governed
	// the logging decision.
	PolicyVersion int `json:"policy_version"`
}

func (Interaction) Kind() string { return "interaction" }

func (i Interaction) guardOpen(to Status) error {
	if i.Status != StatusOpen {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "interaction is %s and cannot transition to %s", i.Status, to)
	}
	return nil
}
