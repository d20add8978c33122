//go:build integration

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
	"solace/pkg/testutil/containers"
)

type RedisCacheSuite struct {
	suite.Suite

	redis    *containers.RedisContainer
	cache    *RedisCache
	store    *lineage.InMemory[Document]
	resolver *Resolver
	admin    *Admin
	scope    id.HomeID
}

func TestRedisCacheSuite(t *testing.T) {
	suite.Run(t, new(RedisCacheSuite))
}

func (s *RedisCacheSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisCacheSuite) SetupTest() {
	s.Require().NoError(s.redis.FlushAll(context.Background()))

	s.cache = NewRedisCache(s.redis.Client, time.Minute, nil)
	s.store = lineage.NewInMemory[Document]()
	s.resolver = NewResolver(s.store, WithCache(s.cache))
	s.admin = NewAdmin(s.store, WithAdminCache(s.cache))
	s.scope = id.HomeID(uuid.New())
}

func (s *RedisCacheSuite) ctx() context.Context {
	return requestcontext.WithActor(context.Background(), "staff:"+uuid.NewString())
}

func (s *RedisCacheSuite) configure(threshold int64, reason string) Policy {
	doc, err := NewPaymentDocument(PaymentRules{
		EnabledMethods:         []PaymentMethod{MethodCash, MethodCard},
		ApprovalThresholdCents: threshold,
	})
	s.Require().NoError(err)
	p, err := s.admin.Configure(s.ctx(), ConfigureParams{Scope: s.scope, Document: doc, Reason: reason})
	s.Require().NoError(err)
	return p
}

func (s *RedisCacheSuite) TestResolveRoundTripsThroughRedis() {
	s.configure(50_000, "")

	first, err := s.resolver.ResolveCurrent(s.ctx(), s.scope, DomainPayment)
	s.Require().NoError(err)

	cached, ok := s.cache.Get(s.ctx(), s.scope, DomainPayment)
	s.Require().True(ok)
	s.Equal(first.ID, cached.ID)
	s.Equal(first.Version, cached.Version)
	s.Require().NotNil(cached.Payload.Payment)
	s.Equal(int64(50_000), cached.Payload.Payment.ApprovalThresholdCents)
}

func (s *RedisCacheSuite) TestReconfigureInvalidatesCache() {
	s.configure(50_000, "")
	_, err := s.resolver.ResolveCurrent(s.ctx(), s.scope, DomainPayment)
	s.Require().NoError(err)

	s.configure(10_000, "tighten threshold")

	_, ok := s.cache.Get(s.ctx(), s.scope, DomainPayment)
	s.False(ok)

	fresh, err := s.resolver.ResolveCurrent(s.ctx(), s.scope, DomainPayment)
	s.Require().NoError(err)
	s.Equal(2, fresh.Version)
	s.Equal(int64(10_000), fresh.Payload.Payment.ApprovalThresholdCents)
}

func (s *RedisCacheSuite) TestCorruptEntryFallsThrough() {
	s.configure(50_000, "")

	key := "solace:policy:" + s.scope.String() + ":" + DomainPayment.String()
	s.Require().NoError(s.redis.Client.Set(context.Background(), key, "{not json", time.Minute).Err())

	p, err := s.resolver.ResolveCurrent(s.ctx(), s.scope, DomainPayment)
	s.Require().NoError(err)
	s.Equal(1, p.Version)
}

func (s *RedisCacheSuite) TestStaleCachedPolicyDetected() {
	s.configure(50_000, "")
	held, err := s.resolver.ResolveCurrent(s.ctx(), s.scope, DomainPayment)
	s.Require().NoError(err)

	// Supersede without touching the cache, as a second process would.
	doc, err := NewPaymentDocument(PaymentRules{
		EnabledMethods:         []PaymentMethod{MethodCash},
		ApprovalThresholdCents: 1,
	})
	s.Require().NoError(err)
	_, err = NewAdmin(s.store).Configure(s.ctx(), ConfigureParams{Scope: s.scope, Document: doc, Reason: "out of band"})
	s.Require().NoError(err)

	err = s.resolver.EnsureCurrent(s.ctx(), held)
	s.True(dErrors.HasCode(err, dErrors.CodeStalePolicy))

	// Staleness detection evicted the redis entry.
	_, ok := s.cache.Get(s.ctx(), s.scope, DomainPayment)
	s.False(ok)
}
