// Package assignment manages transport assignments (driver, vehicle, case)
// as audit-tracked version lineages with fixed state-machine guards.
package assignment

import (
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
)

// Table is the version table assignments persist to.
const Table = "assignment_versions"

// Status is the assignment lifecycle state.
type Status string

const (
	StatusAssigned  Status = "assigned"
	StatusEnRoute   Status = "en_route"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
)

// transitions maps each status to the statuses reachable from it.
var transitions = map[Status][]Status{
	StatusAssigned: {StatusEnRoute, StatusCancelled},
	StatusEnRoute:  {StatusCompleted, StatusCancelled},
}

// Assignment is the payload of an assignment version row.
type Assignment struct {
	CaseID   id.CaseID   `json:"case_id"`
	DriverID id.DriverID `json:"driver_id"`
	// VehicleID is the fleet identifier of the assigned vehicle.
	VehicleID string `json:"vehicle_id"`
	Status    Status `json:"status"`
}

func (Assignment) Kind() string { return "assignment" }

func (a Assignment) guardTransition(to Status) error {
	for _, allowed := range transitions[a.Status] {
		if allowed == to {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeInvariantViolation, "assignment is %s and cannot transition to %s", a.Status, to)
}
