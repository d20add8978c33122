package payment

import (
	"context"
	"errors"
	"log"
	"strings"

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

// Service executes payment commands. Supersede conflicts are surfaced to the
// caller unretried: payment writers are webhook deliveries with their own
// retry schedule, and an automatic retry here would double-apply transitions.
type Service struct {
	store    lineage.Store[Payment]
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

func NewService(store lineage.Store[Payment], policies *policy.Resolver, opts ...Option) *Service {
	s := &Service{store: store, policies: policies}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RecordParams describe a new payment against a case.
type RecordParams struct {
	CaseID      id.CaseID
	AmountCents int64
	Method      policy.PaymentMethod
}

// Record validates the payment against the current payment policy and creates
// version 1 of its lineage in status pending. A payment the policy escalates
// is created with RequiresApproval set and must be approved before it can
// succeed.
func (s *Service) Record(ctx context.Context, scope id.HomeID, params RecordParams) (lineage.Record[Payment], error) {
	var zero lineage.Record[Payment]
	if params.CaseID.IsNil() {
		return zero, dErrors.NewValidation("case_id", "case id is required")
	}

	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainPayment)
	if err != nil {
		return zero, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return zero, err
	}

	p := Payment{
		CaseID:        params.CaseID,
		AmountCents:   params.AmountCents,
		Method:        params.Method,
		Status:        StatusPending,
		PolicyVersion: pol.Version,
	}

	decision := Evaluate(*pol.Payload.Payment, p)
	s.metrics.ObserveDecision(policy.DomainPayment.String(), string(decision.Outcome))
	if decision.IsRejected() {
		return zero, decision.Err()
	}
	p.RequiresApproval = decision.RequiresApproval()

	rec, err := s.store.Create(ctx, scope, lineage.CreateParams[Payment]{
		Payload:   p,
		CreatedBy: requestcontext.Actor(ctx),
		Reason:    decision.Reason,
	})
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "record payment")
	}

	s.metrics.ObserveVersionCreated(p.Kind())
	s.emit(ctx, rec, "payment.recorded", pol.Version, decision.Reason)
	return rec, nil
}

// Approve clears the approval hold on a pending escalated payment. The
// approver is taken from the request context.
func (s *Service) Approve(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Payment], error) {
	approver := requestcontext.Actor(ctx)
	return s.supersede(ctx, scope, key, "payment.approved", "", func(p Payment) (Payment, error) {
		if p.Status != StatusPending {
			return p, dErrors.Newf(dErrors.CodeInvariantViolation, "only a pending payment can be approved, payment is %s", p.Status)
		}
		if !p.RequiresApproval {
			return p, dErrors.New(dErrors.CodeInvariantViolation, "payment does not require approval")
		}
		if p.ApprovedBy != "" {
			return p, dErrors.Newf(dErrors.CodeInvariantViolation, "payment was already approved by %s", p.ApprovedBy)
		}
		p.ApprovedBy = approver
		return p, nil
	})
}

// MarkSucceeded records that the payment settled. An escalated payment must
// be approved first.
func (s *Service) MarkSucceeded(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Payment], error) {
	return s.supersede(ctx, scope, key, "payment.succeeded", "", func(p Payment) (Payment, error) {
		if p.Status != StatusPending {
			return p, p.guardTransition(StatusSucceeded)
		}
		if p.RequiresApproval && p.ApprovedBy == "" {
			return p, dErrors.New(dErrors.CodeInvariantViolation, "payment is awaiting approval and cannot succeed")
		}
		p.Status = StatusSucceeded
		return p, nil
	})
}

// MarkFailed records that the payment did not settle.
func (s *Service) MarkFailed(ctx context.Context, scope id.HomeID, key uuid.UUID, reason string) (lineage.Record[Payment], error) {
	return s.supersede(ctx, scope, key, "payment.failed", reason, func(p Payment) (Payment, error) {
		if p.Status != StatusPending {
			return p, p.guardTransition(StatusFailed)
		}
		p.Status = StatusFailed
		return p, nil
	})
}

// RefundParams describe a refund of a succeeded payment.
type RefundParams struct {
	AmountCents int64
	// Reason is required: refunds are a sensitive transition.
	Reason string
}

// Refund returns money from a succeeded payment, bounded by the current
// payment policy's refund cap.
func (s *Service) Refund(ctx context.Context, scope id.HomeID, key uuid.UUID, params RefundParams) (lineage.Record[Payment], error) {
	var zero lineage.Record[Payment]
	if strings.TrimSpace(params.Reason) == "" {
		return zero, dErrors.NewValidation("reason", "a reason is required to refund a payment")
	}

	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainPayment)
	if err != nil {
		return zero, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return zero, err
	}
	rules := *pol.Payload.Payment

	rec, err := s.supersede(ctx, scope, key, "payment.refunded", params.Reason, func(p Payment) (Payment, error) {
		if err := p.guardTransition(StatusRefunded); err != nil {
			return p, err
		}
		decision := EvaluateRefund(rules, p, params.AmountCents)
		s.metrics.ObserveDecision(policy.DomainPayment.String(), string(decision.Outcome))
		if decision.IsRejected() {
			return p, decision.Err()
		}
		p.Status = StatusRefunded
		p.RefundedCents = params.AmountCents
		return p, nil
	})
	if err != nil {
		return zero, err
	}
	return rec, nil
}

// Cancel abandons a pending payment.
func (s *Service) Cancel(ctx context.Context, scope id.HomeID, key uuid.UUID, reason string) (lineage.Record[Payment], error) {
	return s.supersede(ctx, scope, key, "payment.cancelled", reason, func(p Payment) (Payment, error) {
		if p.Status != StatusPending {
			return p, p.guardTransition(StatusCancelled)
		}
		p.Status = StatusCancelled
		return p, nil
	})
}

// Get returns the current version of a payment.
func (s *Service) Get(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Payment], error) {
	rec, err := s.store.FindCurrent(ctx, scope, key)
	if err != nil {
		return lineage.Record[Payment]{}, s.translate(err, key)
	}
	return rec, nil
}

// History returns the full version lineage of a payment, oldest first.
func (s *Service) History(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Lineage[Payment], error) {
	history, err := s.store.FindLineage(ctx, scope, key)
	if err != nil {
		return nil, s.translate(err, key)
	}
	return history, nil
}

func (s *Service) supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, action, reason string, mutate func(Payment) (Payment, error)) (lineage.Record[Payment], error) {
	rec, err := s.store.Supersede(ctx, scope, key, lineage.SupersedeParams[Payment]{
		Mutate:    mutate,
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveSupersedeConflict("payment")
		}
		return lineage.Record[Payment]{}, s.translate(err, key)
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, action, rec.Payload.PolicyVersion, reason)
	return rec, nil
}

// translate maps store sentinels to coded domain errors. Mutator errors are
// already coded and pass through unchanged.
func (s *Service) translate(err error, key uuid.UUID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "payment %s not found", key)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "payment was modified concurrently; re-read and retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "payment store")
	}
}

func (s *Service) emit(ctx context.Context, rec lineage.Record[Payment], action string, policyVersion int, reason string) {
	s.auditor.Emit(ctx, audit.Event{
		Scope:         rec.Scope,
		EntityKind:    rec.Payload.Kind(),
		BusinessKey:   rec.BusinessKey,
		Action:        action,
		Version:       rec.Version,
		PolicyVersion: policyVersion,
		Reason:        reason,
	})
}
