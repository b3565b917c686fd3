package audit

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/tx"
)

// PostgresStore appends audit events to the compliance_audit_log table and,
// in the same statement batch, to the audit_outbox table that the Kafka drain
// worker reads. The log table is the source of truth; the outbox only feeds
// the side channel.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// outboxPayload is the JSON structure produced to Kafka.
type outboxPayload struct {
	ID               string `json:"id"`
	Timestamp        string `json:"timestamp"`
	Tenant           string `json:"tenant"`
	ContactID        string `json:"contact_id,omitempty"`
	Actor            string `json:"actor,omitempty"`
	Action           string `json:"action"`
	Channel          string `json:"channel,omitempty"`
	CheckType        string `json:"check_type,omitempty"`
	Result           string `json:"result"`
	Reason           string `json:"reason,omitempty"`
	Source           string `json:"source,omitempty"`
	Timezone         string `json:"timezone,omitempty"`
	Deadline         string `json:"deadline,omitempty"`
	PhoneFingerprint string `json:"phone_fingerprint,omitempty"`
	Detail           string `json:"detail,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}

// Append writes the log row and the outbox row atomically: both join the
// caller's transaction when the context carries one, otherwise a local
// transaction wraps them. A partial write would either lose the Kafka copy of
// a persisted event or report failure for a row that stuck.
func (s *PostgresStore) Append(ctx context.Context, event Event) error {
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}

	if tx, ok := txcontext.From(ctx); ok {
		return s.append(ctx, tx, event)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin audit append: %w", err)
	}
	if err := s.append(ctx, tx, event); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit audit append: %w", err)
	}
	return nil
}

func (s *PostgresStore) append(ctx context.Context, exec dbExecutor, event Event) error {
	query := `
		INSERT INTO compliance_audit_log (
			id, timestamp, tenant_id, contact_id, actor, action, channel,
			check_type, result, reason, source, timezone, deadline,
			phone_fingerprint, detail, request_id
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`
	_, err := exec.ExecContext(ctx, query,
		event.ID, event.Timestamp, event.Tenant,
		nullable(event.ContactID), event.Actor, string(event.Action), event.Channel,
		event.CheckType, string(event.Result), event.Reason, event.Source,
		event.Timezone, event.Deadline, event.PhoneFingerprint, event.Detail,
		event.RequestID,
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}

	payload := outboxPayload{
		ID:               event.ID.String(),
		Timestamp:        event.Timestamp.Format(time.RFC3339Nano),
		Tenant:           event.Tenant,
		ContactID:        event.ContactID,
		Actor:            event.Actor,
		Action:           string(event.Action),
		Channel:          event.Channel,
		CheckType:        event.CheckType,
		Result:           string(event.Result),
		Reason:           event.Reason,
		Source:           event.Source,
		Timezone:         event.Timezone,
		PhoneFingerprint: event.PhoneFingerprint,
		Detail:           event.Detail,
		RequestID:        event.RequestID,
	}
	if event.Deadline != nil {
		payload.Deadline = event.Deadline.Format(time.RFC3339)
	}
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	outboxQuery := `
		INSERT INTO audit_outbox (id, event_id, payload, created_at)
		VALUES ($1, $2, $3, $4)
	`
	if _, err := exec.ExecContext(ctx, outboxQuery,
		uuid.New(), event.ID, payloadBytes, time.Now()); err != nil {
		return fmt.Errorf("insert outbox entry: %w", err)
	}
	return nil
}

const eventColumns = `
	id, timestamp, tenant_id, contact_id, actor, action, channel,
	check_type, result, reason, source, timezone, deadline,
	phone_fingerprint, detail, request_id`

func (s *PostgresStore) ListByContact(ctx context.Context, tenant, contactID string) ([]Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM compliance_audit_log
		WHERE tenant_id = $1 AND contact_id = $2
		ORDER BY timestamp DESC`
	return s.query(ctx, query, tenant, contactID)
}

func (s *PostgresStore) ListByTenant(ctx context.Context, tenant string, limit int) ([]Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM compliance_audit_log
		WHERE tenant_id = $1
		ORDER BY timestamp DESC
		LIMIT $2`
	return s.query(ctx, query, tenant, limit)
}

func (s *PostgresStore) ListByAction(ctx context.Context, tenant string, action Action) ([]Event, error) {
	query := `SELECT ` + eventColumns + `
		FROM compliance_audit_log
		WHERE tenant_id = $1 AND action = $2
		ORDER BY timestamp DESC`
	return s.query(ctx, query, tenant, string(action))
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var (
			event     Event
			contactID sql.NullString
			deadline  sql.NullTime
		)
		err := rows.Scan(
			&event.ID, &event.Timestamp, &event.Tenant, &contactID,
			&event.Actor, &event.Action, &event.Channel, &event.CheckType,
			&event.Result, &event.Reason, &event.Source, &event.Timezone,
			&deadline, &event.PhoneFingerprint, &event.Detail, &event.RequestID,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.ContactID = contactID.String
		if deadline.Valid {
			d := deadline.Time
			event.Deadline = &d
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
