// Package syncprofile manages per-staff email/calendar sync profiles as
// version lineages governed by the funeral home's sync policy.
package syncprofile

import (
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
)

// Table is the version table sync profiles persist to.
const Table = "sync_profile_versions"

// Status is the sync profile lifecycle state.
type Status string

const (
	StatusEnabled  Status = "enabled"
	StatusDisabled Status = "disabled"
)

// Profile is the payload of a sync profile version row.
type Profile struct {
	StaffID id.StaffID `json:"staff_id"`
	// Provider is one of the policy's enabled sync providers.
	Provider string `json:"provider"`
	Status   Status `json:"status"`
	// WindowDays is how far back the profile syncs, bounded by the policy.
	WindowDays int `json:"window_days"`
	// PolicyVersion is the version of the sync POLICY that governed the last
	// accepted configuration.
	PolicyVersion int `json:"policy_version"`
}

func (Profile) Kind() string { return "sync_profile" }

func (p Profile) guardEnabled() error {
	if p.Status != StatusEnabled {
		return dErrors.New(dErrors.CodeInvariantViolation, "sync profile is disabled; enable a new profile instead")
	}
	return nil
}
