package policy

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"

	"solace/internal/lineage"
	"solace/internal/platform/metrics"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/platform/sentinel"
)

// Policy is one version of a rule document.
type Policy = lineage.Record[Document]

// businessKeyNamespace seeds the deterministic policy business keys. Fixed
// forever: changing it would orphan every existing policy lineage.
var businessKeyNamespace = uuid.MustParse("6f1ed2bd-31a7-4f6a-9d0a-4fb0c9f6c1de")

// BusinessKey derives the stable lineage key for a (funeral home, domain)
// pair. One pair, one lineage; resolution never needs a directory lookup.
func BusinessKey(scope id.HomeID, domain Domain) uuid.UUID {
	return uuid.NewSHA1(businessKeyNamespace, []byte(scope.String()+"/"+domain.String()))
}

// Cache is a read-through cache in front of ResolveCurrent. Implementations
// are best-effort: a miss or a cache failure just falls through to the store.
type Cache interface {
	Get(ctx context.Context, scope id.HomeID, domain Domain) (Policy, bool)
	Set(ctx context.Context, scope id.HomeID, domain Domain, p Policy)
	Invalidate(ctx context.Context, scope id.HomeID, domain Domain)
}

// Resolver loads the policy governing a scope and domain.
//
// Absence of a policy is a configuration error surfaced distinctly
// (CodeNotFound), never an implicit permissive default. A policy held across
// a cache or a long command must be re-checked with EnsureCurrent immediately
// before use, because policies can be superseded under concurrent
// administration.
type Resolver struct {
	store   lineage.Store[Document]
	cache   Cache
	metrics *metrics.Metrics
	log     *log.Logger
}

// ResolverOption configures a Resolver.
type ResolverOption func(*Resolver)

func WithCache(cache Cache) ResolverOption {
	return func(r *Resolver) { r.cache = cache }
}

func WithMetrics(m *metrics.Metrics) ResolverOption {
	return func(r *Resolver) { r.metrics = m }
}

func WithLogger(logger *log.Logger) ResolverOption {
	return func(r *Resolver) { r.log = logger }
}

func NewResolver(store lineage.Store[Document], opts ...ResolverOption) *Resolver {
	r := &Resolver{store: store}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// ResolveCurrent returns the active policy for the scope and domain.
func (r *Resolver) ResolveCurrent(ctx context.Context, scope id.HomeID, domain Domain) (Policy, error) {
	if r.cache != nil {
		if cached, ok := r.cache.Get(ctx, scope, domain); ok {
			r.metrics.ObservePolicyResolution(domain.String(), "hit")
			return cached, nil
		}
	}

	p, err := r.store.FindCurrent(ctx, scope, BusinessKey(scope, domain))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			r.metrics.ObservePolicyResolution(domain.String(), "not_configured")
			return Policy{}, dErrors.Newf(dErrors.CodeNotFound,
				"no active %s policy configured for funeral home %s; an administrator must configure one", domain, scope)
		}
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "load current policy")
	}

	r.metrics.ObservePolicyResolution(domain.String(), "miss")
	if r.cache != nil {
		r.cache.Set(ctx, scope, domain, p)
	}
	return p, nil
}

// ResolveAsOf returns the policy version that governed the scope and domain
// at a past instant, for re-evaluating or auditing historical decisions.
func (r *Resolver) ResolveAsOf(ctx context.Context, scope id.HomeID, domain Domain, at time.Time) (Policy, error) {
	p, err := r.store.FindAsOf(ctx, scope, BusinessKey(scope, domain), at)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return Policy{}, dErrors.Newf(dErrors.CodeNotFound,
				"no %s policy was in effect for funeral home %s at %s", domain, scope, at.Format(time.RFC3339))
		}
		return Policy{}, dErrors.Wrap(err, dErrors.CodeInternal, "load policy as of timestamp")
	}
	return p, nil
}

// EnsureCurrent re-checks against the store that the held policy version is
// still the current one. Must run immediately before a live decision is
// persisted; a superseded policy is never applied.
func (r *Resolver) EnsureCurrent(ctx context.Context, p Policy) error {
	current, err := r.store.FindCurrent(ctx, p.Scope, p.BusinessKey)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return dErrors.Newf(dErrors.CodeStalePolicy, "%s policy lineage no longer has a current version", p.Payload.Domain)
		}
		return dErrors.Wrap(err, dErrors.CodeInternal, "re-check policy currency")
	}
	if current.Version != p.Version {
		r.metrics.ObservePolicyResolution(p.Payload.Domain.String(), "stale")
		if r.cache != nil {
			r.cache.Invalidate(ctx, p.Scope, p.Payload.Domain)
		}
		return dErrors.Newf(dErrors.CodeStalePolicy,
			"%s policy version %d was superseded by version %d; re-resolve and retry", p.Payload.Domain, p.Version, current.Version)
	}
	return nil
}
