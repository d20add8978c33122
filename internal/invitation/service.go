package invitation

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

// Service executes invitation commands. Supersede conflicts surface to the
// caller: they mean two staff members acted on the same invitation at once
// and the second actor should see the fresh state.
type Service struct {
	store   lineage.Store[Invitation]
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

func NewService(store lineage.Store[Invitation], opts ...Option) *Service {
	s := &Service{store: store}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueParams describe a new invitation to a case.
type IssueParams struct {
	CaseID id.CaseID
	Email  string
	Role   Role
}

// Issue creates version 1 of an invitation lineage in status pending.
func (s *Service) Issue(ctx context.Context, scope id.HomeID, params IssueParams) (lineage.Record[Invitation], error) {
	var zero lineage.Record[Invitation]
	if params.CaseID.IsNil() {
		return zero, dErrors.NewValidation("case_id", "case id is required")
	}
	if strings.TrimSpace(params.Email) == "" {
		return zero, dErrors.NewValidation("email", "invitee email is required")
	}
	if !validRoles[params.Role] {
		return zero, dErrors.NewValidation("role", "unknown invitation role")
	}

	rec, err := s.store.Create(ctx, scope, lineage.CreateParams[Invitation]{
		Payload: Invitation{
			CaseID: params.CaseID,
			Email:  params.Email,
			Role:   params.Role,
			Status: StatusPending,
		},
		CreatedBy: requestcontext.Actor(ctx),
	})
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "issue invitation")
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, "invitation.issued", "")
	return rec, nil
}

// Accept marks a pending invitation accepted.
func (s *Service) Accept(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Invitation], error) {
	return s.supersede(ctx, scope, key, "invitation.accepted", "", func(in Invitation) (Invitation, error) {
		if err := in.guardPending(StatusAccepted); err != nil {
			return in, err
		}
		in.Status = StatusAccepted
		return in, nil
	})
}

// Revoke withdraws a pending invitation. Revocation is a sensitive
// transition and requires a reason.
func (s *Service) Revoke(ctx context.Context, scope id.HomeID, key uuid.UUID, reason string) (lineage.Record[Invitation], error) {
	if strings.TrimSpace(reason) == "" {
		return lineage.Record[Invitation]{}, dErrors.NewValidation("reason", "a reason is required to revoke an invitation")
	}
	return s.supersede(ctx, scope, key, "invitation.revoked", reason, func(in Invitation) (Invitation, error) {
		if err := in.guardPending(StatusRevoked); err != nil {
			return in, err
		}
		in.Status = StatusRevoked
		return in, nil
	})
}

// Expire marks a pending invitation expired. Called by the scheduled sweep.
func (s *Service) Expire(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Invitation], error) {
	return s.supersede(ctx, scope, key, "invitation.expired", "", func(in Invitation) (Invitation, error) {
		if err := in.guardPending(StatusExpired); err != nil {
			return in, err
		}
		in.Status = StatusExpired
		return in, nil
	})
}

// Get returns the current version of an invitation.
func (s *Service) Get(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Invitation], error) {
	rec, err := s.store.FindCurrent(ctx, scope, key)
	if err != nil {
		return lineage.Record[Invitation]{}, s.translate(err, key)
	}
	return rec, nil
}

// History returns the full version lineage of an invitation, oldest first.
func (s *Service) History(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Lineage[Invitation], error) {
	history, err := s.store.FindLineage(ctx, scope, key)
	if err != nil {
		return nil, s.translate(err, key)
	}
	return history, nil
}

func (s *Service) supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, action, reason string, mutate func(Invitation) (Invitation, error)) (lineage.Record[Invitation], error) {
	rec, err := s.store.Supersede(ctx, scope, key, lineage.SupersedeParams[Invitation]{
		Mutate:    mutate,
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveSupersedeConflict("invitation")
		}
		return lineage.Record[Invitation]{}, s.translate(err, key)
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, action, reason)
	return rec, nil
}

func (s *Service) translate(err error, key uuid.UUID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "invitation %s not found", key)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "invitation was modified concurrently; re-read and retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "invitation store")
	}
}

func (s *Service) emit(ctx context.Context, rec lineage.Record[Invitation], action, reason string) {
	s.auditor.Emit(ctx, audit.Event{
		Scope:       rec.Scope,
		EntityKind:  rec.Payload.Kind(),
		BusinessKey: rec.BusinessKey,
		Action:      action,
		Version:     rec.Version,
		Reason:      reason,
	})
}
