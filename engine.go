// Package engine wires the compliance services onto shared infrastructure
// (postgres, redis, kafka) from a config.Engine. Business logic lives in the
// internal services packages; this file only composes them.
package engine

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/compliance"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/consent"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dncsync"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/optout"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/platform/config"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/platform/redisclient"
	"github.com/jaredmiller23/roofing-saas-sub003/migrations"
)

// Engine is the assembled compliance engine. Callers embed it in their own
// application and call the service methods directly.
type Engine struct {
	Compliance *compliance.Service
	Consent    *consent.Service
	OptOuts    *optout.Service
	DNC        *dnc.Service
	Sync       *dncsync.Tracker
	Audit      *audit.Publisher

	db    *sql.DB
	redis *redisclient.Client
	drain *audit.OutboxDrain
}

// Option customizes engine construction.
type Option func(*settings)

type settings struct {
	logger  *slog.Logger
	metrics bool
}

// WithLogger sets the logger shared by all services.
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) { s.logger = logger }
}

// WithoutMetrics skips prometheus registration. Needed when two engines share
// a process (the default registry rejects duplicate collectors).
func WithoutMetrics() Option {
	return func(s *settings) { s.metrics = false }
}

// New connects to the configured infrastructure, applies migrations, and
// wires the services. Redis and Kafka are optional: an empty RedisURL runs
// without the listing cache, an empty broker list runs without the outbox
// drain.
func New(ctx context.Context, cfg config.Engine, opts ...Option) (*Engine, error) {
	st := settings{logger: slog.Default(), metrics: true}
	for _, opt := range opts {
		opt(&st)
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := migrations.Apply(ctx, db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	e := &Engine{db: db}

	e.redis, err = redisclient.New(cfg.RedisURL)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}

	auditOpts := []audit.Option{audit.WithLogger(st.logger)}
	if st.metrics {
		auditOpts = append(auditOpts, audit.WithMetrics(audit.NewMetrics()))
	}
	e.Audit = audit.NewPublisher(audit.NewPostgresStore(db), auditOpts...)

	contacts := contact.NewPostgresStore(db)

	dncStore := dnc.NewPostgresStore(db)
	dncOpts := []dnc.ServiceOption{dnc.WithLogger(st.logger)}
	if e.redis != nil {
		dncOpts = append(dncOpts, dnc.WithCache(dnc.NewRedisListingCache(e.redis.Client)))
	}
	e.DNC = dnc.NewService(dncStore, contacts, e.Audit, dncOpts...)

	e.OptOuts = optout.NewService(optout.NewPostgresStore(db), e.DNC, contacts, e.Audit,
		optout.WithLogger(st.logger))
	e.Consent = consent.NewService(contacts, e.OptOuts, e.Audit,
		consent.WithLogger(st.logger))
	e.Sync = dncsync.NewTracker(dncsync.NewPostgresStore(db), dncStore, e.DNC, e.Audit, st.logger)

	complianceOpts := []compliance.ServiceOption{compliance.WithLogger(st.logger)}
	if st.metrics {
		complianceOpts = append(complianceOpts, compliance.WithMetrics(compliance.NewMetrics()))
	}
	e.Compliance = compliance.NewService(contacts, e.DNC, e.Audit, cfg.DefaultTimezone, complianceOpts...)

	if len(cfg.KafkaBrokers) > 0 {
		e.drain, err = audit.NewOutboxDrain(db, cfg.KafkaBrokers, cfg.AuditTopic,
			audit.WithDrainLogger(st.logger))
		if err != nil {
			e.Close()
			return nil, fmt.Errorf("create audit outbox drain: %w", err)
		}
	}

	return e, nil
}

// Run operates the background workers until the context is cancelled. It is a
// no-op when no workers are configured.
func (e *Engine) Run(ctx context.Context) error {
	if e.drain == nil {
		<-ctx.Done()
		return ctx.Err()
	}
	return e.drain.Run(ctx)
}

// Close releases all infrastructure connections.
func (e *Engine) Close() error {
	if e.drain != nil {
		e.drain.Close()
	}
	if e.redis != nil {
		e.redis.Close()
	}
	return e.db.Close()
}
