package interaction

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"solace/internal/lineage"
	"solace/internal/platform/metrics"
	"solace/internal/policy"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/platform/audit"
	"solace/pkg/platform/sentinel"
	"solace/pkg/requestcontext"
)

// Service executes interaction commands. Interaction writers are staff
// editing in a UI; losing a supersede race usually means a colleague closed
// the same interaction, so the service retries once against the fresh
// version before surfacing the conflict.
type Service struct {
	store    lineage.Store[Interaction]
	policies *policy.Resolver
	auditor  *audit.Emitter
	metrics  *metrics.Metrics
	log      *log.Logger
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

func NewService(store lineage.Store[Interaction], policies *policy.Resolver, opts ...Option) *Service {
	s := &Service{store: store, policies: policies}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LogParams describe a new interaction on a case.
type LogParams struct {
	CaseID   id.CaseID
	StaffID  id.StaffID
	Type     string
	Notes    string
	Duration time.Duration
}

// Log validates the interaction against the current interaction policy and
// creates version 1 of its lineage.
func (s *Service) Log(ctx context.Context, scope id.HomeID, params LogParams) (lineage.Record[Interaction], error) {
	var zero lineage.Record[Interaction]
	if params.CaseID.IsNil() {
		return zero, dErrors.NewValidation("case_id", "case id is required")
	}
	if params.StaffID.IsNil() {
		return zero, dErrors.NewValidation("staff_id", "staff id is required")
	}

	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainInteraction)
	if err != nil {
		return zero, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return zero, err
	}

	in := Interaction{
		CaseID:        params.CaseID,
		StaffID:       params.StaffID,
		Type:          params.Type,
		Notes:         params.Notes,
		Duration:      params.Duration,
		Status:        StatusOpen,
		PolicyVersion: pol.Version,
	}

	decision := Evaluate(*pol.Payload.Interaction, in)
	s.metrics.ObserveDecision(policy.DomainInteraction.String(), string(decision.Outcome))
	if decision.IsRejected() {
		return zero, decision.Err()
	}

	rec, err := s.store.Create(ctx, scope, lineage.CreateParams[Interaction]{
		Payload:   in,
		CreatedBy: requestcontext.Actor(ctx),
	})
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "log interaction")
	}

	s.metrics.ObserveVersionCreated(in.Kind())
	s.emit(ctx, rec, "interaction.logged", "")
	return rec, nil
}

// AmendNotes replaces the notes of an open interaction, re-validated against
// the current interaction policy.
func (s *Service) AmendNotes(ctx context.Context, scope id.HomeID, key uuid.UUID, notes string) (lineage.Record[Interaction], error) {
	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainInteraction)
	if err != nil {
		return lineage.Record[Interaction]{}, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return lineage.Record[Interaction]{}, err
	}
	rules := *pol.Payload.Interaction

	return s.supersede(ctx, scope, key, "interaction.amended", "", func(in Interaction) (Interaction, error) {
		if in.Status != StatusOpen {
			return in, dErrors.Newf(dErrors.CodeInvariantViolation, "interaction is %s and can no longer be amended", in.Status)
		}
		in.Notes = notes
		decision := Evaluate(rules, in)
		if decision.IsRejected() {
			return in, decision.Err()
		}
		return in, nil
	})
}

// Complete closes an open interaction.
func (s *Service) Complete(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Interaction], error) {
	return s.supersede(ctx, scope, key, "interaction.completed", "", func(in Interaction) (Interaction, error) {
		if err := in.guardOpen(StatusCompleted); err != nil {
			return in, err
		}
		in.Status = StatusCompleted
		return in, nil
	})
}

// Cancel abandons an open interaction.
func (s *Service) Cancel(ctx context.Context, scope id.HomeID, key uuid.UUID, reason string) (lineage.Record[Interaction], error) {
	return s.supersede(ctx, scope, key, "interaction.cancelled", reason, func(in Interaction) (Interaction, error) {
		if err := in.guardOpen(StatusCancelled); err != nil {
			return in, err
		}
		in.Status = StatusCancelled
		return in, nil
	})
}

// Get returns the current version of an interaction.
func (s *Service) Get(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Interaction], error) {
	rec, err := s.store.FindCurrent(ctx, scope, key)
	if err != nil {
		return lineage.Record[Interaction]{}, s.translate(err, key)
	}
	return rec, nil
}

// History returns the full version lineage of an interaction, oldest first.
func (s *Service) History(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Lineage[Interaction], error) {
	history, err := s.store.FindLineage(ctx, scope, key)
	if err != nil {
		return nil, s.translate(err, key)
	}
	return history, nil
}

func (s *Service) supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, action, reason string, mutate func(Interaction) (Interaction, error)) (lineage.Record[Interaction], error) {
	params := lineage.SupersedeParams[Interaction]{
		Mutate:    mutate,
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    reason,
	}

	rec, err := s.store.Supersede(ctx, scope, key, params)
	if errors.Is(err, sentinel.ErrConflict) {
		// One retry against the fresh current version. The mutator re-runs
		// its state-machine guard, so a transition the race made illegal
		// fails there instead of double-applying.
		s.metrics.ObserveSupersedeConflict("interaction")
		if s.log != nil {
			s.log.Printf("interaction %s supersede conflict, retrying once", key)
		}
		rec, err = s.store.Supersede(ctx, scope, key, params)
	}
	if err != nil {
		return lineage.Record[Interaction]{}, s.translate(err, key)
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, action, reason)
	return rec, nil
}

func (s *Service) translate(err error, key uuid.UUID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "interaction %s not found", key)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "interaction was modified concurrently; re-read and retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "interaction store")
	}
}

func (s *Service) emit(ctx context.Context, rec lineage.Record[Interaction], action, reason string) {
	s.auditor.Emit(ctx, audit.Event{
		Scope:         rec.Scope,
		EntityKind:    rec.Payload.Kind(),
		BusinessKey:   rec.BusinessKey,
		Action:        action,
		Version:       rec.Version,
		PolicyVersion: rec.Payload.PolicyVersion,
		Reason:        reason,
	})
}
