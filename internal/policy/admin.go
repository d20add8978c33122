package policy

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"

	"solace/internal/lineage"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/platform/audit"
	"solace/pkg/platform/sentinel"
	"solace/pkg/requestcontext"
)

// Admin configures policies. Configuring a domain for the first time starts
// a lineage at version 1; configuring it again supersedes the current version
// and requires a reason.
type Admin struct {
	store   lineage.Store[Document]
	cache   Cache
	auditor *audit.Emitter
	log     *log.Logger
}

// AdminOption configures an Admin.
type AdminOption func(*Admin)

func WithAdminCache(cache Cache) AdminOption {
	return func(a *Admin) { a.cache = cache }
}

func WithAuditEmitter(e *audit.Emitter) AdminOption {
	return func(a *Admin) { a.auditor = e }
}

func WithAdminLogger(logger *log.Logger) AdminOption {
	return func(a *Admin) { a.log = logger }
}

func NewAdmin(store lineage.Store[Document], opts ...AdminOption) *Admin {
	a := &Admin{store: store}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ConfigureParams carries a full replacement document. Partial updates are
// not supported: each version is a complete, independently valid document.
type ConfigureParams struct {
	Scope    id.HomeID
	Document Document
	// Reason is required when superseding an existing policy and ignored on
	// first configuration.
	Reason string
}

// Configure installs doc as the current policy for (scope, domain).
func (a *Admin) Configure(ctx context.Context, p ConfigureParams) (Policy, error) {
	if p.Scope.IsNil() {
		return Policy{}, dErrors.NewValidation("scope", "funeral home id is required")
	}
	if err := p.Document.Validate(); err != nil {
		return Policy{}, err
	}

	key := BusinessKey(p.Scope, p.Document.Domain)

	_, err := a.store.FindCurrent(ctx, p.Scope, key)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return a.create(ctx, p, key)
	case err != nil:
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "check existing policy")
	default:
		return a.supersede(ctx, p, key)
	}
}

func (a *Admin) create(ctx context.Context, p ConfigureParams, key uuid.UUID) (Policy, error) {
	created, err := a.store.Create(ctx, p.Scope, lineage.CreateParams[Document]{
		BusinessKey: key,
		Payload:     p.Document,
		CreatedBy:   requestcontext.Actor(ctx),
		Reason:      p.Reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost a first-configuration race; the other writer's document
			// is now current and this one must supersede it instead.
			return Policy{}, dErrors.Wrap(err, dErrors.CodeConflict, "policy was configured concurrently")
		}
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "create policy")
	}

	a.emit(ctx, created)
	return created, nil
}

func (a *Admin) supersede(ctx context.Context, p ConfigureParams, key uuid.UUID) (Policy, error) {
	if strings.TrimSpace(p.Reason) == "" {
		return Policy{}, dErrors.NewValidation("reason", "a reason is required when replacing an existing policy")
	}

	next, err := a.store.Supersede(ctx, p.Scope, key, lineage.SupersedeParams[Document]{
		Mutate:    func(Document) (Document, error) { return p.Document, nil },
		UpdatedBy: requestcontext.Actor(ctx),
		Reason:    p.Reason,
	})
	if err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return Policy{}, dErrors.Wrap(err, dErrors.CodeConflict, "policy was reconfigured concurrently; re-read and retry")
		}
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "supersede policy")
	}

	if a.cache != nil {
		a.cache.Invalidate(ctx, p.Scope, p.Document.Domain)
	}
	a.emit(ctx, next)
	return next, nil
}

func (a *Admin) emit(ctx context.Context, p Policy) {
	a.auditor.Emit(ctx, audit.Event{
		Scope:         p.Scope,
		EntityKind:    p.Payload.Kind(),
		BusinessKey:   p.BusinessKey,
		Action:        "policy.configured",
		Version:       p.Version,
		PolicyVersion: p.Version,
		Reason:        p.Reason,
	})
}

// History returns every version of the (scope, domain) policy, oldest first.
func (a *Admin) History(ctx context.Context, scope id.HomeID, domain Domain) (lineage.Lineage[Document], error) {
	history, err := a.store.FindLineage(ctx, scope, BusinessKey(scope, domain))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Newf(dErrors.CodeNotFound, "no %s policy has ever been configured for funeral home %s", domain, scope)
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load policy history")
	}
	return history, nil
}
