package audit

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks audit emission health. A rising failure count is itself a
// compliance gap and must page someone.
type Metrics struct {
	EventsEmitted   prometheus.Counter
	PersistFailures prometheus.Counter
	PersistDuration prometheus.Histogram
}

func NewMetrics() *Metrics {
	return &Metrics{
		EventsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_events_emitted_total",
			Help: "Total audit events successfully persisted",
		}),
		PersistFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "compliance_audit_persist_failures_total",
			Help: "Total audit events that failed to persist",
		}),
		PersistDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "compliance_audit_persist_duration_seconds",
			Help:    "Duration of audit event persistence",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),
	}
}

// Publisher emits audit events. Two modes:
//
//   - Emit is fail-closed: used by consent and opt-out mutations where a
//     missing audit record is itself a defect the caller must see.
//   - EmitBestEffort is for the decision path: the verdict has already been
//     computed from authoritative state, and a side-channel write failure
//     must not flip or block it. Failures are logged and counted instead.
type Publisher struct {
	store   Store
	logger  *slog.Logger
	metrics *Metrics
}

// Option configures the Publisher.
type Option func(*Publisher)

// WithLogger sets a logger for error reporting.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Publisher) { p.logger = logger }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *Metrics) Option {
	return func(p *Publisher) { p.metrics = m }
}

func NewPublisher(store Store, opts ...Option) *Publisher {
	p := &Publisher{store: store}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Emit synchronously persists an audit event. Returns an error when
// persistence fails; the caller decides whether its own state mutation has
// already taken effect (it is never rolled back on audit failure).
func (p *Publisher) Emit(ctx context.Context, event Event) error {
	start := time.Now()

	if event.Tenant == "" {
		return fmt.Errorf("audit event requires Tenant")
	}
	if event.Action == "" {
		return fmt.Errorf("audit event requires Action")
	}
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	if err := p.store.Append(ctx, event); err != nil {
		if p.metrics != nil {
			p.metrics.PersistFailures.Inc()
		}
		if p.logger != nil {
			p.logger.ErrorContext(ctx, "audit persistence failed",
				"action", event.Action,
				"tenant", event.Tenant,
				"error", err,
			)
		}
		return fmt.Errorf("audit persistence failed: %w", err)
	}

	if p.metrics != nil {
		p.metrics.PersistDuration.Observe(time.Since(start).Seconds())
		p.metrics.EventsEmitted.Inc()
	}
	return nil
}

// EmitBestEffort persists an audit event without propagating failure. The
// error is swallowed after logging and counting; use only where the primary
// decision must not be blocked by the audit channel.
func (p *Publisher) EmitBestEffort(ctx context.Context, event Event) {
	_ = p.Emit(ctx, event)
}

// List returns the audit trail for a contact, newest first.
func (p *Publisher) List(ctx context.Context, tenant, contactID string) ([]Event, error) {
	return p.store.ListByContact(ctx, tenant, contactID)
}
