package dncsync

import (
	"context"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
)

// Store persists sync jobs.
//
// Error contract: Get returns sentinel.ErrNotFound (wrapped) for unknown job
// IDs; UpdateStatus returns sentinel.ErrInvalidState (wrapped) for an illegal
// status transition, enforced at the storage layer so two racing updaters
// cannot both win.
type Store interface {
	Create(ctx context.Context, job Job) error
	Get(ctx context.Context, jobID uuid.UUID) (*Job, error)
	// UpdateStatus applies a conditional transition from the job's current
	// status to the given one, merging in stats.
	UpdateStatus(ctx context.Context, jobID uuid.UUID, to JobStatus, stats JobStats) error
	// LastCompleted returns the most recent completed job for the tenant and
	// source, or nil when none has completed.
	LastCompleted(ctx context.Context, tenant string, source dnc.Source) (*Job, error)
	// Tenants lists every tenant with at least one sync job.
	Tenants(ctx context.Context) ([]string, error)
	// Sources lists the sources with jobs recorded for the tenant.
	Sources(ctx context.Context, tenant string) ([]dnc.Source, error)
}
