// Package audit defines the change-feed events emitted for every version
// transition, and the publishers that carry them to reporting systems.
//
// Emission is best-effort after the version row is committed: a publish
// failure is logged and never rolls back the superseded version. The version
// tables themselves remain the authoritative audit trail; the feed exists for
// downstream reporting and compliance consumers.
package audit

import (
	"time"

	"github.com/google/uuid"

	id "solace/pkg/domain"
)

// Event describes one version transition of one lineage.
type Event struct {
	ID          uuid.UUID `json:"id"`
	Scope       id.HomeID `json:"scope"`
	EntityKind  string    `json:"entity_kind"`
	BusinessKey uuid.UUID `json:"business_key"`
	// Action is the domain transition, e.g. "payment.recorded",
	// "invitation.revoked", "policy.configured".
	Action string `json:"action"`
	// Version is the version number of the row the transition produced.
	Version int `json:"version"`
	// PolicyVersion is the version of the POLICY that governed the decision
	// (not the entity's own version); zero when no policy applied.
	PolicyVersion int    `json:"policy_version,omitempty"`
	Actor         string `json:"actor"`
	Reason        string `json:"reason,omitempty"`
	RequestID     string `json:"request_id,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}
