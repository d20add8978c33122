package contact

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

// Service executes contact commands. A merge supersedes two lineages
// sequentially (survivor first, then duplicate) without cross-lineage
// atomicity: if the second supersede fails the survivor already carries the
// merged fields, which is harmless, and the merge can be re-run.
type Service struct {
	store    lineage.Store[Contact]
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

func NewService(store lineage.Store[Contact], policies *policy.Resolver, opts ...Option) *Service {
	s := &Service{store: store, policies: policies}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateParams describe a new contact.
type CreateParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Create starts a new contact lineage.
func (s *Service) Create(ctx context.Context, scope id.HomeID, params CreateParams) (lineage.Record[Contact], error) {
	var zero lineage.Record[Contact]
	if strings.TrimSpace(params.FirstName) == "" && strings.TrimSpace(params.LastName) == "" {
		return zero, dErrors.NewValidation("last_name", "a contact needs at least a first or last name")
	}

	rec, err := s.store.Create(ctx, scope, lineage.CreateParams[Contact]{
		Payload: Contact{
			FirstName: params.FirstName,
			LastName:  params.LastName,
			Email:     params.Email,
			Phone:     params.Phone,
			Status:    StatusActive,
		},
		CreatedBy: requestcontext.Actor(ctx),
	})
	if err != nil {
		return zero, dErrors.Wrap(err, dErrors.CodeInternal, "create contact")
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, "contact.created", 0, "")
	return rec, nil
}

// UpdateParams replace a contact's reachable fields. Zero-value fields are
// cleared, not kept: updates carry the full intended state.
type UpdateParams struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
}

// Update supersedes an active contact with new field values.
func (s *Service) Update(ctx context.Context, scope id.HomeID, key uuid.UUID, params UpdateParams) (lineage.Record[Contact], error) {
	return s.supersede(ctx, scope, key, "contact.updated", 0, "", func(c Contact) (Contact, error) {
		if c.Status == StatusMerged {
			return c, dErrors.New(dErrors.CodeInvariantViolation, "a merged contact accepts no further writes")
		}
		c.FirstName = params.FirstName
		c.LastName = params.LastName
		c.Email = params.Email
		c.Phone = params.Phone
		return c, nil
	})
}

// MergeParams describe folding a duplicate contact into a survivor.
type MergeParams struct {
	SurvivorKey  uuid.UUID
	DuplicateKey uuid.UUID
	Reason       string
}

// Merge folds the duplicate into the survivor under the current merge policy.
// The survivor is superseded with the combined fields per the policy's
// precedence strategy; the duplicate is superseded to status merged, pointing
// at the survivor. Both lineages stay fully queryable.
func (s *Service) Merge(ctx context.Context, scope id.HomeID, params MergeParams) (lineage.Record[Contact], error) {
	var zero lineage.Record[Contact]
	if params.SurvivorKey == params.DuplicateKey {
		return zero, dErrors.NewValidation("duplicate_key", "a contact cannot be merged into itself")
	}

	pol, err := s.policies.ResolveCurrent(ctx, scope, policy.DomainContactMerge)
	if err != nil {
		return zero, err
	}
	if err := s.policies.EnsureCurrent(ctx, pol); err != nil {
		return zero, err
	}
	rules := *pol.Payload.Merge

	decision := EvaluateMerge(rules, params.Reason)
	s.metrics.ObserveDecision(policy.DomainContactMerge.String(), string(decision.Outcome))
	if decision.IsRejected() {
		return zero, decision.Err()
	}

	survivor, err := s.store.FindCurrent(ctx, scope, params.SurvivorKey)
	if err != nil {
		return zero, s.translate(err, params.SurvivorKey)
	}
	duplicate, err := s.store.FindCurrent(ctx, scope, params.DuplicateKey)
	if err != nil {
		return zero, s.translate(err, params.DuplicateKey)
	}
	if survivor.Payload.Status == StatusMerged {
		return zero, dErrors.New(dErrors.CodeInvariantViolation, "survivor was already merged into another contact")
	}
	if duplicate.Payload.Status == StatusMerged {
		return zero, dErrors.New(dErrors.CodeInvariantViolation, "duplicate was already merged into another contact")
	}

	survivorNewer := !survivor.CreatedAt.Before(duplicate.CreatedAt)

	// The merged fields are derived inside the mutator from the payload the
	// store hands it, not from the snapshot above: Supersede re-reads the
	// current version and its optimistic check makes the close-and-insert
	// atomic, so a field update racing the merge either lands in the merged
	// result or surfaces as a conflict. The snapshot is only for validation
	// and recency comparison.
	next, err := s.supersede(ctx, scope, params.SurvivorKey, "contact.merge_absorbed", pol.Version, params.Reason, func(c Contact) (Contact, error) {
		if c.Status == StatusMerged {
			return c, dErrors.New(dErrors.CodeInvariantViolation, "survivor was merged concurrently")
		}
		merged := mergeFields(rules.FieldPrecedence, c, duplicate.Payload, survivorNewer)
		merged.Status = c.Status
		return merged, nil
	})
	if err != nil {
		return zero, err
	}

	_, err = s.supersede(ctx, scope, params.DuplicateKey, "contact.merged_away", pol.Version, params.Reason, func(c Contact) (Contact, error) {
		if c.Status == StatusMerged {
			return c, dErrors.New(dErrors.CodeInvariantViolation, "duplicate was merged concurrently")
		}
		c.Status = StatusMerged
		c.MergedIntoKey = params.SurvivorKey
		return c, nil
	})
	if err != nil {
		return zero, err
	}

	return next, nil
}

// Get returns the current version of a contact.
func (s *Service) Get(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Record[Contact], error) {
	rec, err := s.store.FindCurrent(ctx, scope, key)
	if err != nil {
		return lineage.Record[Contact]{}, s.translate(err, key)
	}
	return rec, nil
}

// History returns the full version lineage of a contact, oldest first.
func (s *Service) History(ctx context.Context, scope id.HomeID, key uuid.UUID) (lineage.Lineage[Contact], error) {
	history, err := s.store.FindLineage(ctx, scope, key)
	if err != nil {
		return nil, s.translate(err, key)
	}
	return history, nil
}

func (s *Service) supersede(ctx context.Context, scope id.HomeID, key uuid.UUID, action string, policyVersion int, reason string, mutate func(Contact) (Contact, error)) (lineage.Record[Contact], error) {
	rec, err := s.store.Supersede(ctx, scope, key, lineage.SupersedeParams[Contact]{
		Mutate:    mutate,
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.metrics.ObserveSupersedeConflict("contact")
		}
		return lineage.Record[Contact]{}, s.translate(err, key)
	}

	s.metrics.ObserveVersionCreated(rec.Payload.Kind())
	s.emit(ctx, rec, action, policyVersion, reason)
	return rec, nil
}

func (s *Service) translate(err error, key uuid.UUID) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Newf(dErrors.CodeNotFound, "contact %s not found", key)
	case errors.Is(err, sentinel.ErrConflict):
		return dErrors.Wrap(err, dErrors.CodeConflict, "contact was modified concurrently; re-read and retry")
	case dErrors.CodeOf(err) != dErrors.CodeInternal:
		return err
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "contact store")
	}
}

func (s *Service) emit(ctx context.Context, rec lineage.Record[Contact], action string, policyVersion int, reason string) {
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
