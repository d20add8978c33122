package syncprofile

import (
	"context"
	"errors"
	"log"

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

// Service executes sync profile commands. Supersede conflicts surface to the
// caller: profile edits come from a settings screen where a reload is cheap.
type Service struct {
	store    lineage.Store[Profile]
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

func NewService(store lineage.Store[Profile], policies *policy.Resolver, opts ...Option) *Service {
	s := &Service{store: store, policies: policies}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// EnableParams describe a new sync profile for a staff member.
type EnableParams struct {
	StaffID    id.StaffID
	Provider   string
	WindowDays int
}

// Enable validates the profile against the current sync policy and creates
// version 1 of its lineage.
func (s *Service) Enable(ctx context.Context, scope id.HomeID, params EnableParams) (lineage.Record[Profile], error) {
	var zero lineage.Record[Profile]
	if params.StaffID.IsNil() {
		return zero, dErrors.NewValidation("staff_id", "staff id is required")
	}

	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainSync)
	if err != nil {
		return zero, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return zero, err
	}

	p := Profile{
		StaffID:       params.StaffID,
		Provider:      params.Provider,
		Status:        StatusEnabled,
		WindowDays:    params.WindowDays,
		PolicyVersion: pol.Version,
	}

	decision := Evaluate(*pol.Payload.Sync, p)
	s.metrics.ObserveDecision(policy.DomainSync.String(), string(decision.Outcome))
	if decision.IsRejected() {
		return zero, decision.Err()
	}

	rec, err := s.store.Create(ctx, scope, lineage.CreateParams[Profile]{
		Payload:   p,
		CreatedBy: requestcontext.Actor(ctx),
	})
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "enable sync profile")
	}

	s.metrics.ObserveVersionCreated(p.Kind())
	s.emit(ctx, rec, "sync_profile.enabled", "")
	return rec, nil
}

// ReconfigureParams change an enabled profile's provider or window.
type ReconfigureParams struct {
	Provider   string
	WindowDays int
}

// Reconfigure supersedes an enabled profile with a new configuration,
// re-validated against the current sync policy.
func (s *Service) Reconfigure(ctx context.Context, scope id.HomeID, key uuid.UUID, params ReconfigureParams) (lineage.Record[Profile], error) {
	var zero lineage.Record[Profile]

	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainSync)
	if err != nil {
		return zero, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return zero, err
	}
	rules := *pol.Payload.Sync
	policyVersion := pol.Version

	return s.supersede(ctx, scope, key, "sync_profile.reconfigured", "", func(p Profile) (Profile, error) {
		if err := p.guardEnabled(); err != nil {
			return p, err
		}
		p.Provider = params.Provider
		p.WindowDays = params.WindowDays
		p.PolicyVersion = policyVersion
		decision := Evaluate(rules, p)
		if decision.IsRejected() {
			return p, decision.Err()
		}
		return p, nil
	})
}

// Disable turns the profile off. The lineage remains; re-enabling is a new
// profile.
func (s *Service) Disable(ctx context.Context, scope id.HomeID, key uuid.UUID, reason string) (lineage.Record[Profile], error) {
	return s.supersede(ctx, scope, key, "sync_profile.disabled", reason, func(p Profile) (Profile, error) {
		if err := p.guardEnabled(); err != nil {
			return p, err
		}
		p.Status = StatusDisabled
		return p, nil
	})
}

// Get returns the current version of a sync profile.
func (s *Service) Get(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Profile], error) {
	rec, err := s.store.FindCurrent(ctx, scope, key)
	if err != nil {
		return lineage.Record[Profile]{}, s.translate(err, key)
	}
	return rec, nil
}

// History returns the full version lineage of a sync profile, oldest first.
func (s *Service) History(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Lineage[Profile], error) {
	history, err := s.store.FindLineage(ctx, scope, key)
	if err != nil {
		return nil, s.translate(err, key)
	}
	return history, nil
}

func (s *Service) supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, action, reason string, mutate func(Profile) (Profile, error)) (lineage.Record[Profile], error) {
	rec, err := s.store.Supersede(ctx, scope, key, lineage.SupersedeParams[Profile]{
		Mutate:    mutate,
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveSupersedeConflict("sync_profile")
		}
		return lineage.Record[Profile]{}, s.translate(err, key)
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, action, reason)
	return rec, nil
}

func (s *Service) translate(err error, key uuid.UUID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "sync profile %s not found", key)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "sync profile was modified concurrently; re-read and retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "sync profile store")
	}
}

func (s *Service) emit(ctx context.Context, rec lineage.Record[Profile], action, reason string) {
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
