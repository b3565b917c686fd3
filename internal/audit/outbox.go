package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/twmb/franz-go/pkg/kgo"
)

// OutboxDrain moves audit events from the audit_outbox table to a Kafka
// topic. It is an at-least-once side channel: the compliance_audit_log table
// is already durable before anything reaches here, so a broker outage delays
// downstream consumers but never blocks or loses an audit write.
type OutboxDrain struct {
	db       *sql.DB
	client   *kgo.Client
	topic    string
	logger   *slog.Logger
	interval time.Duration
	batch    int
}

// DrainOption configures the OutboxDrain.
type DrainOption func(*OutboxDrain)

// WithDrainInterval overrides the poll interval.
func WithDrainInterval(d time.Duration) DrainOption {
	return func(o *OutboxDrain) { o.interval = d }
}

// WithDrainLogger sets a logger.
func WithDrainLogger(logger *slog.Logger) DrainOption {
	return func(o *OutboxDrain) { o.logger = logger }
}

// NewOutboxDrain builds a drain worker. brokers may come straight from
// config.Engine.KafkaBrokers.
func NewOutboxDrain(db *sql.DB, brokers []string, topic string, opts ...DrainOption) (*OutboxDrain, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	drain := &OutboxDrain{
		db:       db,
		client:   client,
		topic:    topic,
		interval: 5 * time.Second,
		batch:    200,
	}
	for _, opt := range opts {
		opt(drain)
	}
	return drain, nil
}

// Run polls the outbox until the context is cancelled.
func (o *OutboxDrain) Run(ctx context.Context) error {
	ticker := time.NewTicker(o.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := o.drainOnce(ctx); err != nil {
				if o.logger != nil {
					o.logger.ErrorContext(ctx, "audit outbox drain failed", "error", err)
				}
			}
		}
	}
}

// drainOnce publishes one batch of unpublished outbox rows and marks them
// published. Marking happens only after the broker acknowledges, so a crash
// between produce and mark re-sends (at-least-once, consumers dedupe on id).
func (o *OutboxDrain) drainOnce(ctx context.Context) error {
	rows, err := o.db.QueryContext(ctx, `
		SELECT id, event_id, payload
		FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`, o.batch)
	if err != nil {
		return fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	type pending struct {
		id      uuid.UUID
		eventID uuid.UUID
		payload []byte
	}
	var batch []pending
	for rows.Next() {
		var p pending
		if err := rows.Scan(&p.id, &p.eventID, &p.payload); err != nil {
			return fmt.Errorf("scan outbox row: %w", err)
		}
		batch = append(batch, p)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate outbox rows: %w", err)
	}
	if len(batch) == 0 {
		return nil
	}

	for _, p := range batch {
		record := &kgo.Record{
			Topic: o.topic,
			Key:   []byte(p.eventID.String()),
			Value: p.payload,
		}
		if err := o.client.ProduceSync(ctx, record).FirstErr(); err != nil {
			return fmt.Errorf("produce audit event %s: %w", p.eventID, err)
		}
		if _, err := o.db.ExecContext(ctx, `
			UPDATE audit_outbox SET published_at = $2 WHERE id = $1`,
			p.id, time.Now()); err != nil {
			return fmt.Errorf("mark outbox entry published: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the Kafka client.
func (o *OutboxDrain) Close() {
	o.client.Close()
}
