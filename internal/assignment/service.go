package assignment

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"solace/internal/lineage"
	"solace/internal/platform/metrics"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/platform/audit"
	"solace/pkg/platform/sentinel"
	"solace/pkg/requestcontext"
)

// Service executes transport assignment commands. Supersede conflicts
// surface to the caller: dispatch and the driver app both write assignments
// and each refreshes on conflict.
type Service struct {
	store   lineage.Store[Assignment]
	auditor *audit.Emitter
	metrics *metrics.Metrics
	log     *log.Logger
}

// Option configures a Service.
type Option func(*Service)

func WithAuditEmitter(e *audit.Emitter) Option {
	return func(s *Service) { s.auditor = e }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *Service) { s.log = logger }
}

func NewService(store lineage.Store[Assignment], opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AssignParams describe a new transport assignment.
type AssignParams struct {
	CaseID    id.CaseID
	DriverID  id.DriverID
	VehicleID string
}

// Assign creates version 1 of an assignment lineage.
func (s *Service) Assign(ctx context.Context, scope id.HomeID, params AssignParams) (lineage.Record[Assignment], error) {
	var zero lineage.Record[Assignment]
	if params.CaseID.IsNil() {
		return zero, dErrors.NewValidation("case_id", "case id is required")
	}
	if params.DriverID.IsNil() {
		return zero, dErrors.NewValidation("driver_id", "driver id is required")
	}
	if strings.TrimSpace(params.VehicleID) == "" {
		return zero, dErrors.NewValidation("vehicle_id", "vehicle id is required")
	}

	rec, err := s.store.Create(ctx, scope, lineage.CreateParams[Assignment]{
		Payload: Assignment{
			CaseID:    params.CaseID,
			DriverID:  params.DriverID,
			VehicleID: params.VehicleID,
			Status:    StatusAssigned,
		},
		CreatedBy: requestcontext.Actor(ctx),
	})
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "create assignment")
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, "assignment.created", "")
	return rec, nil
}

// Start marks the driver en route.
func (s *Service) Start(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Assignment], error) {
	return s.transition(ctx, scope, key, StatusEnRoute, "assignment.started", "")
}

// Complete marks the transport finished.
func (s *Service) Complete(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Assignment], error) {
	return s.transition(ctx, scope, key, StatusCompleted, "assignment.completed", "")
}

// Cancel abandons the assignment. Cancellation requires a reason.
func (s *Service) Cancel(ctx context.Context, scope id.HomeID, key uuid.UUID, reason string) (lineage.Record[Assignment], error) {
	if strings.TrimSpace(reason) == "" {
		return lineage.Record[Assignment]{}, dErrors.NewValidation("reason", "a reason is required to cancel an assignment")
	}
	return s.transition(ctx, scope, key, StatusCancelled, "assignment.cancelled", reason)
}

// Reassign moves an undeparted assignment to another driver and vehicle.
func (s *Service) Reassign(ctx context.Context, scope id.HomeID, key uuid.UUID, driverID id.DriverID, vehicleID string) (lineage.Record[Assignment], error) {
	var zero lineage.Record[Assignment]
	if driverID.IsNil() {
		return zero, dErrors.NewValidation("driver_id", "driver id is required")
	}
	return s.supersede(ctx, scope, key, "assignment.reassigned", "", func(a Assignment) (Assignment, error) {
		if a.Status != StatusAssigned {
			return a, dErrors.Newf(dErrors.CodeInvariantViolation, "assignment is %s and can no longer be reassigned", a.Status)
		}
		a.DriverID = driverID
		a.VehicleID = vehicleID
		return a, nil
	})
}

// Get returns the current version of an assignment.
func (s *Service) Get(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Assignment], error) {
	rec, err := s.store.FindCurrent(ctx, scope, key)
	if err != nil {
		return lineage.Record[Assignment]{}, s.translate(err, key)
	}
	return rec, nil
}

// History returns the full version lineage of an assignment, oldest first.
func (s *Service) History(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Lineage[Assignment], error) {
	history, err := s.store.FindLineage(ctx, scope, key)
	if err != nil {
		return nil, s.translate(err, key)
	}
	return history, nil
}

func (s *Service) transition(ctx context.Context, scope id.HomeID, key uuid.UUID, to Status, action, reason string) (lineage.Record[Assignment], error) {
	return s.supersede(ctx, scope, key, action, reason, func(a Assignment) (Assignment, error) {
		if err := a.guardTransition(to); err != nil {
			return a, err
		}
		a.Status = to
		return a, nil
	})
}

func (s *Service) supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, action, reason string, mutate func(Assignment) (Assignment, error)) (lineage.Record[Assignment], error) {
	rec, err := s.store.Supersede(ctx, scope, key, lineage.SupersedeParams[Assignment]{
		Mutate:    mutate,
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveSupersedeConflict("assignment")
		}
		return lineage.Record[Assignment]{}, s.translate(err, key)
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, action, reason)
	return rec, nil
}

func (s *Service) translate(err error, key uuid.UUID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "assignment %s not found", key)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "assignment was modified concurrently; re-read and retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "assignment store")
	}
}

func (s *Service) emit(ctx context.Context, rec lineage.Record[Assignment], action, reason string) {
	s.auditor.Emit(ctx, audit.Event{
		Scope:       rec.Scope,
		EntityKind:  rec.Payload.Kind(),
		BusinessKey: rec.BusinessKey,
		Action:      action,
		Version:     rec.Version,
		Reason:      reason,
	})
}
