package dncsync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// PostgresStore persists sync jobs. Status transitions are conditional
// UPDATEs keyed on the current status, so concurrent updaters cannot both
// complete the same job.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Create(ctx context.Context, job Job) error {
	query := `
		INSERT INTO dnc_sync_jobs (
			id, tenant_id, source, status, processed, added, removed,
			errors, error, created_at
		)
		VALUES ($1, $2, $3, $4, 0, 0, 0, 0, '', $5)
	`
	if _, err := s.db.ExecContext(ctx, query,
		job.ID, job.Tenant, string(job.Source), string(job.Status), job.CreatedAt); err != nil {
		return fmt.Errorf("create sync job: %w", err)
	}
	return nil
}

const jobColumns = `
	id, tenant_id, source, status, processed, added, removed,
	errors, error, created_at, started_at, completed_at`

func (s *PostgresStore) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	query := `SELECT ` + jobColumns + ` FROM dnc_sync_jobs WHERE id = $1`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, jobID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sync job %s: %w", jobID, sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("get sync job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, jobID uuid.UUID, to JobStatus, stats JobStats) error {
	// The WHERE clause restricts to statuses that may legally move to the
	// target, making the transition a conditional write.
	var from []JobStatus
	for status, nexts := range validTransitions {
		for _, next := range nexts {
			if next == to {
				from = append(from, status)
			}
		}
	}
	if len(from) == 0 {
		return fmt.Errorf("sync job transition to %s: %w", to, sentinel.ErrInvalidState)
	}

	fromStrings := make([]string, len(from))
	for i, f := range from {
		fromStrings[i] = string(f)
	}

	// Every legal target is either in_progress or terminal, so exactly one
	// timestamp column gets stamped.
	stampColumn := "completed_at"
	if to == JobInProgress {
		stampColumn = "started_at"
	}

	query := fmt.Sprintf(`
		UPDATE dnc_sync_jobs SET
			status = $2, processed = $3, added = $4, removed = $5,
			errors = $6, error = $7, %s = $8
		WHERE id = $1 AND status = ANY($9)`, stampColumn)

	res, err := s.db.ExecContext(ctx, query,
		jobID, string(to), stats.Processed, stats.Added,
		stats.Removed, stats.Errors, stats.Error,
		requestcontext.Now(ctx), pq.Array(fromStrings))
	if err != nil {
		return fmt.Errorf("update sync job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update sync job: rows affected: %w", err)
	}
	if affected == 0 {
		// Either the job is unknown or it is not in a status that may move
		// to the target; disambiguate for the caller.
		if _, getErr := s.Get(ctx, jobID); getErr != nil {
			return getErr
		}
		return fmt.Errorf("sync job transition to %s: %w", to, sentinel.ErrInvalidState)
	}
	return nil
}

func (s *PostgresStore) LastCompleted(ctx context.Context, tenant string, source dnc.Source) (*Job, error) {
	query := `SELECT ` + jobColumns + `
		FROM dnc_sync_jobs
		WHERE tenant_id = $1 AND source = $2 AND status = 'completed'
		ORDER BY completed_at DESC
		LIMIT 1`
	job, err := scanJob(s.db.QueryRowContext(ctx, query, tenant, string(source)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("last completed sync job: %w", err)
	}
	return job, nil
}

func (s *PostgresStore) Tenants(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT tenant_id FROM dnc_sync_jobs`)
	if err != nil {
		return nil, fmt.Errorf("query sync tenants: %w", err)
	}
	defer rows.Close()

	var tenants []string
	for rows.Next() {
		var tenant string
		if err := rows.Scan(&tenant); err != nil {
			return nil, fmt.Errorf("scan sync tenant: %w", err)
		}
		tenants = append(tenants, tenant)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync tenants: %w", err)
	}
	return tenants, nil
}

func (s *PostgresStore) Sources(ctx context.Context, tenant string) ([]dnc.Source, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT source FROM dnc_sync_jobs WHERE tenant_id = $1`, tenant)
	if err != nil {
		return nil, fmt.Errorf("query sync sources: %w", err)
	}
	defer rows.Close()

	var sources []dnc.Source
	for rows.Next() {
		var source string
		if err := rows.Scan(&source); err != nil {
			return nil, fmt.Errorf("scan sync source: %w", err)
		}
		sources = append(sources, dnc.Source(source))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sync sources: %w", err)
	}
	return sources, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	var (
		job         Job
		source      string
		status      string
		startedAt   sql.NullTime
		completedAt sql.NullTime
	)
	err := row.Scan(&job.ID, &job.Tenant, &source, &status,
		&job.Processed, &job.Added, &job.Removed, &job.Errors, &job.Error,
		&job.CreatedAt, &startedAt, &completedAt)
	if err != nil {
		return nil, err
	}
	job.Source = dnc.Source(source)
	job.Status = JobStatus(status)
	if startedAt.Valid {
		t := startedAt.Time
		job.StartedAt = &t
	}
	if completedAt.Valid {
		t := completedAt.Time
		job.CompletedAt = &t
	}
	return &job, nil
}
