package policy

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"solace/internal/lineage"
	id "solace/pkg/domain"
	dErrors "solace/pkg/domain-errors"
	"solace/pkg/requestcontext"
)

// mapCache is a test double for the policy cache.
type mapCache struct {
	entries     map[string]Policy
	gets, sets  int
	invalidates int
}

func newMapCache() *mapCache {
	return &mapCache{entries: map[string]Policy{}}
}

func (c *mapCache) Get(_ context.Context, scope id.HomeID, domain Domain) (Policy, bool) {
	c.gets++
	p, ok := c.entries[cacheKey(scope, domain)]
	return p, ok
}

func (c *mapCache) Set(_ context.Context, scope id.HomeID, domain Domain, p Policy) {
	c.sets++
	c.entries[cacheKey(scope, domain)] = p
}

func (c *mapCache) Invalidate(_ context.Context, scope id.HomeID, domain Domain) {
	c.invalidates++
	delete(c.entries, cacheKey(scope, domain))
}

type ResolverSuite struct {
	suite.Suite

	store    *lineage.InMemory[Document]
	cache    *mapCache
	resolver *Resolver
	admin    *Admin
	scope    id.HomeID
}

func TestResolverSuite(t *testing.T) {
	suite.Run(t, new(ResolverSuite))
}

func (s *ResolverSuite) SetupTest() {
	s.store = lineage.NewInMemory[Document]()
	s.cache = newMapCache()
	s.resolver = NewResolver(s.store, WithCache(s.cache))
	s.admin = NewAdmin(s.store, WithAdminCache(s.cache))
	s.scope = id.HomeID(uuid.New())
}

func (s *ResolverSuite) ctx() context.Context {
	return requestcontext.WithActor(context.Background(), "staff:"+uuid.NewString())
}

func (s *ResolverSuite) configurePayment(ctx context.Context, rules PaymentRules, reason string) Policy {
	doc, err := NewPaymentDocument(rules)
	s.Require().NoError(err)
	p, err := s.admin.Configure(ctx, ConfigureParams{Scope: s.scope, Document: doc, Reason: reason})
	s.Require().NoError(err)
	return p
}

func (s *ResolverSuite) TestBusinessKeyIsDeterministic() {
	key := BusinessKey(s.scope, DomainPayment)
	s.Equal(key, BusinessKey(s.scope, DomainPayment))
	s.NotEqual(key, BusinessKey(s.scope, DomainInteraction))
	s.NotEqual(key, BusinessKey(id.HomeID(uuid.New()), DomainPayment))
}

func (s *ResolverSuite) TestResolveCurrentWithoutPolicy() {
	_, err := s.resolver.ResolveCurrent(s.ctx(), s.scope, DomainPayment)

	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	s.Contains(err.Error(), "no active payment policy configured")
}

func (s *ResolverSuite) TestResolveCurrentPopulatesCache() {
	ctx := s.ctx()
	configured := s.configurePayment(ctx, validPaymentRules(), "")

	first, err := s.resolver.ResolveCurrent(ctx, s.scope, DomainPayment)
	s.Require().NoError(err)
	s.Equal(configured.Version, first.Version)
	s.Equal(1, s.cache.sets)

	// Second resolve is served from the cache.
	second, err := s.resolver.ResolveCurrent(ctx, s.scope, DomainPayment)
	s.Require().NoError(err)
	s.Equal(first.ID, second.ID)
	s.Equal(1, s.cache.sets)
}

func (s *ResolverSuite) TestResolveCurrentWorksWithoutCache() {
	ctx := s.ctx()
	s.configurePayment(ctx, validPaymentRules(), "")

	bare := NewResolver(s.store)
	p, err := bare.ResolveCurrent(ctx, s.scope, DomainPayment)
	s.Require().NoError(err)
	s.Equal(1, p.Version)
}

func (s *ResolverSuite) TestEnsureCurrentPassesForLiveVersion() {
	ctx := s.ctx()
	p := s.configurePayment(ctx, validPaymentRules(), "")

	s.NoError(s.resolver.EnsureCurrent(ctx, p))
}

func (s *ResolverSuite) TestEnsureCurrentDetectsSupersededVersion() {
	ctx := s.ctx()
	held := s.configurePayment(ctx, validPaymentRules(), "")

	rules := validPaymentRules()
	rules.ApprovalThresholdCents = 25_000
	s.configurePayment(ctx, rules, "lower the approval threshold")

	err := s.resolver.EnsureCurrent(ctx, held)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeStalePolicy))
}

func (s *ResolverSuite) TestEnsureCurrentInvalidatesCacheOnStaleness() {
	ctx := s.ctx()
	held := s.configurePayment(ctx, validPaymentRules(), "")

	// Resolve once so the stale version is cached, then supersede behind the
	// cache's back via a cacheless admin.
	_, err := s.resolver.ResolveCurrent(ctx, s.scope, DomainPayment)
	s.Require().NoError(err)

	rules := validPaymentRules()
	rules.RequireApprovalForAllChecks = true
	doc, err := NewPaymentDocument(rules)
	s.Require().NoError(err)
	_, err = NewAdmin(s.store).Configure(ctx, ConfigureParams{Scope: s.scope, Document: doc, Reason: "escalate checks"})
	s.Require().NoError(err)

	err = s.resolver.EnsureCurrent(ctx, held)
	s.True(dErrors.HasCode(err, dErrors.CodeStalePolicy))
	s.Equal(1, s.cache.invalidates)

	// The next resolve misses the cache and observes version 2.
	fresh, err := s.resolver.ResolveCurrent(ctx, s.scope, DomainPayment)
	s.Require().NoError(err)
	s.Equal(2, fresh.Version)
}

func (s *ResolverSuite) TestResolveAsOf() {
	base := time.Date(2026, time.March, 1, 9, 0, 0, 0, time.UTC)
	at := func(t time.Time) context.Context {
		return requestcontext.WithTime(s.ctx(), t)
	}

	s.configurePayment(at(base), validPaymentRules(), "")

	rules := validPaymentRules()
	rules.ApprovalThresholdCents = 10_000
	s.configurePayment(at(base.Add(48*time.Hour)), rules, "tighten threshold")

	s.Run("instant within first version", func() {
		p, err := s.resolver.ResolveAsOf(s.ctx(), s.scope, DomainPayment, base.Add(time.Hour))
		s.Require().NoError(err)
		s.Equal(1, p.Version)
		s.Equal(int64(50_000), p.Payload.Payment.ApprovalThresholdCents)
	})

	s.Run("instant after supersession", func() {
		p, err := s.resolver.ResolveAsOf(s.ctx(), s.scope, DomainPayment, base.Add(72*time.Hour))
		s.Require().NoError(err)
		s.Equal(2, p.Version)
		s.Equal(int64(10_000), p.Payload.Payment.ApprovalThresholdCents)
	})

	s.Run("instant before any policy existed", func() {
		_, err := s.resolver.ResolveAsOf(s.ctx(), s.scope, DomainPayment, base.Add(-time.Hour))
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
