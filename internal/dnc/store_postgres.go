package dnc

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	txcontext "github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/tx"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// PostgresStore persists registry entries. Idempotence under concurrent
// writers is enforced by the partial unique index on
// (tenant_id, fingerprint, source) WHERE deleted_at IS NULL and ON CONFLICT.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

func (s *PostgresStore) Upsert(ctx context.Context, entry Entry) (bool, error) {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	// xmax = 0 distinguishes a fresh insert from a conflict-update, so the
	// import path can report added vs skipped without a second query.
	query := `
		INSERT INTO dnc_registry (
			id, tenant_id, fingerprint, phone_number, area_code,
			source, reason, listed_at, expires_at, deleted_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, NULL)
		ON CONFLICT (tenant_id, fingerprint, source) WHERE deleted_at IS NULL
		DO UPDATE SET reason = dnc_registry.reason
		RETURNING (xmax = 0)
	`
	var inserted bool
	err := s.execer(ctx).QueryRowContext(ctx, query,
		entry.ID, entry.Tenant, entry.Fingerprint, entry.Phone, entry.AreaCode,
		string(entry.Source), entry.Reason, entry.ListedAt, entry.ExpiresAt,
	).Scan(&inserted)
	if err != nil {
		return false, fmt.Errorf("upsert dnc entry: %w", err)
	}
	return inserted, nil
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, tenant, fingerprint string) ([]Entry, error) {
	query := `
		SELECT id, tenant_id, fingerprint, phone_number, area_code,
		       source, reason, listed_at, expires_at, deleted_at
		FROM dnc_registry
		WHERE tenant_id = $1 AND fingerprint = $2 AND deleted_at IS NULL
		ORDER BY listed_at
	`
	rows, err := s.db.QueryContext(ctx, query, tenant, fingerprint)
	if err != nil {
		return nil, fmt.Errorf("query dnc entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			entry     Entry
			source    string
			reason    sql.NullString
			expiresAt sql.NullTime
			deletedAt sql.NullTime
		)
		err := rows.Scan(&entry.ID, &entry.Tenant, &entry.Fingerprint,
			&entry.Phone, &entry.AreaCode, &source, &reason,
			&entry.ListedAt, &expiresAt, &deletedAt)
		if err != nil {
			return nil, fmt.Errorf("scan dnc entry: %w", err)
		}
		entry.Source = Source(source)
		entry.Reason = reason.String
		if expiresAt.Valid {
			t := expiresAt.Time
			entry.ExpiresAt = &t
		}
		if deletedAt.Valid {
			t := deletedAt.Time
			entry.DeletedAt = &t
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dnc entries: %w", err)
	}
	return entries, nil
}

func (s *PostgresStore) SoftDelete(ctx context.Context, tenant, fingerprint string, source Source) error {
	query := `
		UPDATE dnc_registry SET deleted_at = $4
		WHERE tenant_id = $1 AND fingerprint = $2 AND source = $3 AND deleted_at IS NULL
	`
	if _, err := s.execer(ctx).ExecContext(ctx, query,
		tenant, fingerprint, string(source), requestcontext.Now(ctx)); err != nil {
		return fmt.Errorf("soft delete dnc entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) CountBySource(ctx context.Context, tenant string, now time.Time) (map[Source]int, error) {
	query := `
		SELECT source, COUNT(*)
		FROM dnc_registry
		WHERE tenant_id = $1 AND deleted_at IS NULL
		  AND (expires_at IS NULL OR expires_at > $2)
		GROUP BY source
	`
	rows, err := s.db.QueryContext(ctx, query, tenant, now)
	if err != nil {
		return nil, fmt.Errorf("count dnc entries: %w", err)
	}
	defer rows.Close()

	counts := make(map[Source]int)
	for rows.Next() {
		var (
			source string
			count  int
		)
		if err := rows.Scan(&source, &count); err != nil {
			return nil, fmt.Errorf("scan dnc count: %w", err)
		}
		counts[Source(source)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dnc counts: %w", err)
	}
	return counts, nil
}

func (s *PostgresStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM dnc_registry`)
	if err != nil {
		return nil, fmt.Errorf("query dnc tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scan dnc tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate dnc tenants: %w", err)
	}
	return tenants, nil
}
