// Package invitation manages family-portal invitations as audit-tracked
// version lineages. No policy domain governs invitations; their rules are
// fixed state-machine guards.
package invitation

import (
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
)

// Table is the version table invitations persist to.
const Table = "invitation_versions"

// Status is the invitation lifecycle state.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRevoked  Status = "revoked"
	StatusExpired  Status = "expired"
)

// Role is what the invitee may do on the case once they accept.
type Role string

const (
	RoleViewer  Role = "viewer"
	RolePlanner Role = "planner"
)

var validRoles = map[Role]bool{
	RoleViewer:  true,
	RolePlanner: true,
}

// Invitation is the payload of an invitation version row.
type Invitation struct {
	CaseID id.CaseID `json:"case_id"`
	Email  string    `json:"email"`
	Role   Role      `json:"role"`
	Status Status    `json:"status"`
}

func (Invitation) Kind() string { return "invitation" }

// guardPending rejects transitions out of any settled state. Only a pending
// invitation can be accepted, revoked, or expired.
func (i Invitation) guardPending(to Status) error {
	if i.Status != StatusPending {
		return dErrors.Newf(dErrors.CodeInvariantViolation, "invitation is %s and cannot transition to %s", i.Status, to)
	}
	return nil
}
