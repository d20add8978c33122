// Package app is the composition root for the versioned-record subsystem: it
// wires configuration, storage, the policy engine, the audit change-feed, and
// every domain service into one embeddable unit. The surrounding application
// constructs an App at startup and hands its services to whatever transport
// it exposes.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log"

	_ "github.com/lib/pq"

	"solace/internal/assignment"
	"solace/internal/contact"
	"solace/internal/interaction"
	"solace/internal/invitation"
	"solace/internal/lineage"
	"solace/internal/payment"
	"solace/internal/platform/config"
	"solace/internal/platform/logger"
	"solace/internal/platform/metrics"
	platformredis "solace/internal/platform/redis"
	"solace/internal/policy"
	"solace/internal/syncprofile"
	"solace/pkg/platform/audit"
	"solace/pkg/platform/audit/kafka"
	"solace/pkg/platform/audit/worker"
)

// policyTable is the version table policy documents persist to.
const policyTable = "policy_versions"

// App owns the subsystem's services and the infrastructure behind them.
type App struct {
	Policies     *policy.Resolver
	PolicyAdmin  *policy.Admin
	Payments     *payment.Service
	Interactions *interaction.Service
	Contacts     *contact.Service
	SyncProfiles *syncprofile.Service
	Invitations  *invitation.Service
	Assignments  *assignment.Service

	Metrics *metrics.Metrics

	db       *sql.DB
	redis    *platformredis.Client
	producer *kafka.Publisher
	feed     *worker.Worker
	feedStop context.CancelFunc
	log      *log.Logger
}

// New wires an App from configuration. Redis and Kafka are optional: an empty
// redis URL disables the policy cache, an empty broker list disables the
// change-feed, and the services degrade to direct store access and no-op
// auditing.
func New(cfg config.Config) (*App, error) {
	logg := logger.New()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	redisClient, err := platformredis.New(cfg.Redis)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	producer, err := kafka.New(cfg.Audit, logg)
	if err != nil {
		db.Close()
		if redisClient != nil {
			redisClient.Close()
		}
		return nil, fmt.Errorf("connect audit producer: %w", err)
	}

	a := &App{
		Metrics:  metrics.New(),
		db:       db,
		redis:    redisClient,
		producer: producer,
		log:      logg,
	}

	// The emitter writes through the worker so command latency never
	// includes a broker round-trip.
	var emitter *audit.Emitter
	if producer != nil {
		a.feed = worker.New(producer, 4, logg)
		feedCtx, stop := context.WithCancel(context.Background())
		a.feedStop = stop
		go a.feed.Run(feedCtx)
		emitter = audit.NewEmitter(a.feed, logg)
	}

	var cache policy.Cache
	if redisClient != nil {
		cache = policy.NewRedisCache(redisClient.Client, cfg.PolicyCacheTTL, logg)
	}

	policyStore := lineage.NewPostgres[policy.Document](db, policyTable)
	resolverOpts := []policy.ResolverOption{policy.WithMetrics(a.Metrics), policy.WithLogger(logg)}
	adminOpts := []policy.AdminOption{policy.WithAuditEmitter(emitter), policy.WithAdminLogger(logg)}
	if cache != nil {
		resolverOpts = append(resolverOpts, policy.WithCache(cache))
		adminOpts = append(adminOpts, policy.WithAdminCache(cache))
	}
	a.Policies = policy.NewResolver(policyStore, resolverOpts...)
	a.PolicyAdmin = policy.NewAdmin(policyStore, adminOpts...)

	a.Payments = payment.NewService(
		lineage.NewPostgres[payment.Payment](db, payment.Table), a.Policies,
		payment.WithAuditEmitter(emitter), payment.WithMetrics(a.Metrics), payment.WithLogger(logg),
	)
	a.Interactions = interaction.NewService(
		lineage.NewPostgres[interaction.Interaction](db, interaction.Table), a.Policies,
		interaction.WithAuditEmitter(emitter), interaction.WithMetrics(a.Metrics), interaction.WithLogger(logg),
	)
	a.Contacts = contact.NewService(
		lineage.NewPostgres[contact.Contact](db, contact.Table), a.Policies,
		contact.WithAuditEmitter(emitter), contact.WithMetrics(a.Metrics), contact.WithLogger(logg),
	)
	a.SyncProfiles = syncprofile.NewService(
		lineage.NewPostgres[syncprofile.Profile](db, syncprofile.Table), a.Policies,
		syncprofile.WithAuditEmitter(emitter), syncprofile.WithMetrics(a.Metrics), syncprofile.WithLogger(logg),
	)
	a.Invitations = invitation.NewService(
		lineage.NewPostgres[invitation.Invitation](db, invitation.Table),
		invitation.WithAuditEmitter(emitter), invitation.WithMetrics(a.Metrics), invitation.WithLogger(logg),
	)
	a.Assignments = assignment.NewService(
		lineage.NewPostgres[assignment.Assignment](db, assignment.Table),
		assignment.WithAuditEmitter(emitter), assignment.WithMetrics(a.Metrics), assignment.WithLogger(logg),
	)

	return a, nil
}

// EnsureSchema creates every version table if it does not exist. Production
// deployments run real migrations; this covers development and tests.
func (a *App) EnsureSchema(ctx context.Context) error {
	for _, table := range []string{
		policyTable,
		payment.Table,
		interaction.Table,
		contact.Table,
		syncprofile.Table,
		invitation.Table,
		assignment.Table,
	} {
		if err := lineage.EnsureTable(ctx, a.db, table); err != nil {
			return fmt.Errorf("ensure table %s: %w", table, err)
		}
	}
	return nil
}

// Health pings the backing stores.
func (a *App) Health(ctx context.Context) error {
	if err := a.db.PingContext(ctx); err != nil {
		return fmt.Errorf("postgres: %w", err)
	}
	if a.redis != nil {
		if err := a.redis.Health(ctx); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
	}
	return nil
}

// Close releases infrastructure in reverse dependency order.
func (a *App) Close() error {
	if a.feedStop != nil {
		a.feedStop()
	}
	if a.producer != nil {
		a.producer.Close()
	}
	if a.redis != nil {
		a.redis.Close()
	}
	return a.db.Close()
}
