package optout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	txcontext "github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/tx"
)

// PostgresStore persists opt-out queue entries. The at-most-once follow-up
// guarantee rides on a conditional UPDATE (follow_up_sent_at IS NULL), not on
// anything held in memory, so racing processes resolve at the database.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Create(ctx context.Context, entry Entry) error {
	query := `
		INSERT INTO opt_out_queue (
			id, tenant_id, contact_id, phone_number, scope, source, reason,
			requested_at, deadline, status, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := s.execer(ctx).ExecContext(ctx, query,
		entry.ID, entry.Tenant, nullable(entry.ContactID), entry.Phone,
		string(entry.Scope), string(entry.Source), entry.Reason,
		entry.RequestedAt, entry.Deadline, string(entry.Status), entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("create opt-out entry: %w", err)
	}
	return nil
}

const entryColumns = `
	id, tenant_id, contact_id, phone_number, scope, source, reason,
	requested_at, deadline, follow_up_sent_at, follow_up_message,
	processed_at, processed_by, status, created_at`

func (s *PostgresStore) Get(ctx context.Context, entryID uuid.UUID) (*Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM opt_out_queue WHERE id = $1`
	entry, err := scanEntry(s.db.QueryRowContext(ctx, query, entryID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("opt-out entry %s: %w", entryID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get opt-out entry: %w", err)
	}
	return entry, nil
}

func (s *PostgresStore) MarkFollowUpSent(ctx context.Context, entryID uuid.UUID, message string, at time.Time) error {
	query := `
		UPDATE opt_out_queue SET
			follow_up_sent_at = $2, follow_up_message = $3, status = $4
		WHERE id = $1 AND follow_up_sent_at IS NULL AND status IN ($5, $6)
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		entryID, at, message, string(StatusFollowUpSent),
		string(StatusPending), string(StatusFollowUpSent))
	if err != nil {
		return fmt.Errorf("mark follow-up sent: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark follow-up sent: rows affected: %w", err)
	}
	if affected == 0 {
		return s.classifyConditionalFailure(ctx, entryID, true)
	}
	return nil
}

func (s *PostgresStore) MarkProcessed(ctx context.Context, entryID uuid.UUID, by string, at time.Time) error {
	query := `
		UPDATE opt_out_queue SET processed_at = $2, processed_by = $3, status = $4
		WHERE id = $1 AND status IN ($5, $6)
	`
	res, err := s.execer(ctx).ExecContext(ctx, query,
		entryID, at, by, string(StatusProcessed),
		string(StatusPending), string(StatusFollowUpSent))
	if err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark processed: rows affected: %w", err)
	}
	if affected == 0 {
		return s.classifyConditionalFailure(ctx, entryID, false)
	}
	return nil
}

// classifyConditionalFailure turns a zero-row conditional write into the
// right sentinel by inspecting the current row.
func (s *PostgresStore) classifyConditionalFailure(ctx context.Context, entryID uuid.UUID, followUp bool) error {
	entry, err := s.Get(ctx, entryID)
	if err != nil {
		return err
	}
	if followUp && entry.FollowUpSentAt != nil && !entry.Status.Terminal() {
		return fmt.Errorf("opt-out entry %s: %w", entryID, sentinel.ErrAlreadyUsed)
	}
	return fmt.Errorf("opt-out entry %s is %s: %w", entryID, entry.Status, sentinel.ErrInvalidState)
}

func (s *PostgresStore) CancelForChannel(ctx context.Context, tenant, contactID string, ch contact.Channel, includeBoth bool) ([]uuid.UUID, error) {
	scopes := []string{string(ScopeCall)}
	if ch == contact.ChannelSMS {
		scopes = []string{string(ScopeSMS)}
	}
	if includeBoth {
		scopes = append(scopes, string(ScopeBoth))
	}

	query := `
		UPDATE opt_out_queue SET status = $4
		WHERE tenant_id = $1 AND contact_id = $2 AND scope = ANY($3)
		  AND status IN ($5, $6)
		RETURNING id
	`
	rows, err := s.db.QueryContext(ctx, query,
		tenant, contactID, pq.Array(scopes), string(StatusCancelled),
		string(StatusPending), string(StatusFollowUpSent))
	if err != nil {
		return nil, fmt.Errorf("cancel opt-out entries: %w", err)
	}
	defer rows.Close()

	var cancelled []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan cancelled entry: %w", err)
		}
		cancelled = append(cancelled, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cancelled entries: %w", err)
	}
	return cancelled, nil
}

func (s *PostgresStore) ListPending(ctx context.Context, tenant string) ([]Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM opt_out_queue
		WHERE tenant_id = $1 AND status IN ($2, $3)
		ORDER BY requested_at`
	rows, err := s.db.QueryContext(ctx, query,
		tenant, string(StatusPending), string(StatusFollowUpSent))
	if err != nil {
		return nil, fmt.Errorf("query pending opt-outs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan opt-out entry: %w", err)
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate opt-out entries: %w", err)
	}
	return entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var (
		entry           Entry
		contactID       sql.NullString
		scope           string
		source          string
		status          string
		followUpSentAt  sql.NullTime
		followUpMessage sql.NullString
		processedAt     sql.NullTime
		processedBy     sql.NullString
	)
	err := row.Scan(&entry.ID, &entry.Tenant, &contactID, &entry.Phone,
		&scope, &source, &entry.Reason, &entry.RequestedAt, &entry.Deadline,
		&followUpSentAt, &followUpMessage, &processedAt, &processedBy,
		&status, &entry.CreatedAt)
	if err != nil {
		return nil, err
	}
	entry.ContactID = contactID.String
	entry.Scope = Scope(scope)
	entry.Source = Signal(source)
	entry.Status = Status(status)
	entry.FollowUpMessage = followUpMessage.String
	entry.ProcessedBy = processedBy.String
	if followUpSentAt.Valid {
		t := followUpSentAt.Time
		entry.FollowUpSentAt = &t
	}
	if processedAt.Valid {
		t := processedAt.Time
		entry.ProcessedAt = &t
	}
	return &entry, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
