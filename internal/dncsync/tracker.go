package dncsync

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// Tracker computes sync deadlines and runs batch imports. Overdue status is
// always recomputed from the last completed job; there is no stored flag to
// go stale when a cron run is missed.
type Tracker struct {
	jobs    Store
	entries dnc.Store
	dncSvc  *dnc.Service
	auditor *audit.Publisher
	logger  *slog.Logger
}

func NewTracker(jobs Store, entries dnc.Store, dncSvc *dnc.Service, auditor *audit.Publisher, logger *slog.Logger) *Tracker {
	return &Tracker{jobs: jobs, entries: entries, dncSvc: dncSvc, auditor: auditor, logger: logger}
}

// Status reports the deadline picture per source for a tenant. Sources come
// from the union of recorded jobs and registry rows so a source that has
// entries but no sync history still shows up (as overdue, if external).
func (t *Tracker) Status(ctx context.Context, tenant string) ([]SourceStatus, error) {
	now := requestcontext.Now(ctx)

	counts, err := t.entries.CountBySource(ctx, tenant, now)
	if err != nil {
		return nil, fmt.Errorf("sync status: %w", err)
	}
	jobSources, err := t.jobs.Sources(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("sync status: %w", err)
	}

	seen := make(map[dnc.Source]struct{})
	var sources []dnc.Source
	for _, source := range jobSources {
		if _, ok := seen[source]; !ok {
			seen[source] = struct{}{}
			sources = append(sources, source)
		}
	}
	for source := range counts {
		if _, ok := seen[source]; !ok {
			seen[source] = struct{}{}
			sources = append(sources, source)
		}
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i] < sources[j] })

	statuses := make([]SourceStatus, 0, len(sources))
	for _, source := range sources {
		status, err := t.sourceStatus(ctx, tenant, source, counts[source], now)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, status)
	}
	return statuses, nil
}

func (t *Tracker) sourceStatus(ctx context.Context, tenant string, source dnc.Source, recordCount int, now time.Time) (SourceStatus, error) {
	status := SourceStatus{
		Source:            source,
		DaysSinceLastSync: -1,
		RecordCount:       recordCount,
	}

	last, err := t.jobs.LastCompleted(ctx, tenant, source)
	if err != nil {
		return SourceStatus{}, fmt.Errorf("last completed sync for %s: %w", source, err)
	}

	if last != nil && last.CompletedAt != nil {
		syncedAt := *last.CompletedAt
		status.LastSyncAt = &syncedAt
		status.DaysSinceLastSync = int(now.Sub(syncedAt).Hours() / 24)
	}

	// The internal source is written continuously by opt-out processing; it
	// has no batch deadline and can never be overdue.
	if !source.External() {
		return status, nil
	}

	if status.LastSyncAt == nil {
		// An external source with no completed sync cannot demonstrate
		// compliance at all.
		status.Overdue = true
		return status, nil
	}

	deadline := status.LastSyncAt.Add(ExternalSyncInterval)
	status.NextDeadline = &deadline
	if !now.Before(deadline) {
		status.Overdue = true
	} else if deadline.Sub(now) <= WarningWindow {
		status.Approaching = true
	}
	return status, nil
}

// CreateJob records a new pending sync attempt.
func (t *Tracker) CreateJob(ctx context.Context, tenant string, source dnc.Source) (*Job, error) {
	job := Job{
		ID:        uuid.New(),
		Tenant:    tenant,
		Source:    source,
		Status:    JobPending,
		CreatedAt: requestcontext.Now(ctx),
	}
	if err := t.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create sync job: %w", err)
	}
	return &job, nil
}

// UpdateJob moves a job along pending → in_progress → completed|failed. The
// store rejects illegal edges, so a failed job can never masquerade as a
// completed one and reset the overdue countdown.
func (t *Tracker) UpdateJob(ctx context.Context, jobID uuid.UUID, to JobStatus, stats JobStats) error {
	if err := t.jobs.UpdateStatus(ctx, jobID, to, stats); err != nil {
		return err
	}
	if to == JobCompleted && t.auditor != nil {
		job, err := t.jobs.Get(ctx, jobID)
		if err != nil {
			return err
		}
		t.auditor.EmitBestEffort(ctx, audit.Event{
			Timestamp: requestcontext.Now(ctx),
			Tenant:    job.Tenant,
			Action:    audit.ActionDNCImport,
			Result:    audit.ResultPass,
			Source:    string(job.Source),
			Detail: fmt.Sprintf("sync completed: processed=%d added=%d removed=%d errors=%d",
				stats.Processed, stats.Added, stats.Removed, stats.Errors),
		})
	}
	return nil
}

// ImportBatch upserts a list of raw numbers for a source in fixed-size
// chunks. Duplicate fingerprints within a source are idempotently skipped.
// Failures are counted per chunk while prior chunks stay written; the import
// is resumable, not transactional.
func (t *Tracker) ImportBatch(ctx context.Context, tenant string, source dnc.Source, numbers []string) (ImportResult, error) {
	var result ImportResult
	now := requestcontext.Now(ctx)

	for start := 0; start < len(numbers); start += ImportChunkSize {
		end := start + ImportChunkSize
		if end > len(numbers) {
			end = len(numbers)
		}
		chunk := ChunkResult{Offset: start}
		for _, raw := range numbers[start:end] {
			created, err := t.dncSvc.ImportEntry(ctx, tenant, source, raw, now, nil)
			if err != nil {
				chunk.Errors++
				if t.logger != nil {
					t.logger.ErrorContext(ctx, "dnc import entry failed",
						"tenant", tenant, "source", source, "error", err)
				}
				continue
			}
			if created {
				chunk.Added++
			} else {
				chunk.Skipped++
			}
		}
		result.Added += chunk.Added
		result.Skipped += chunk.Skipped
		result.Errors += chunk.Errors
		result.Chunks = append(result.Chunks, chunk)
	}
	return result, nil
}

// OverdueTenants fans the status computation out across every known tenant
// and reports each overdue external source. Used by the scheduled sweep.
func (t *Tracker) OverdueTenants(ctx context.Context) ([]OverdueTenant, error) {
	tenants, err := t.allTenants(ctx)
	if err != nil {
		return nil, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	results := make([][]OverdueTenant, len(tenants))
	for i, tenant := range tenants {
		g.Go(func() error {
			statuses, err := t.Status(ctx, tenant)
			if err != nil {
				return fmt.Errorf("status for tenant %s: %w", tenant, err)
			}
			for _, status := range statuses {
				if status.Overdue {
					results[i] = append(results[i], OverdueTenant{
						Tenant:            tenant,
						Source:            status.Source,
						DaysSinceLastSync: status.DaysSinceLastSync,
					})
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var overdue []OverdueTenant
	for _, r := range results {
		overdue = append(overdue, r...)
	}
	return overdue, nil
}

func (t *Tracker) allTenants(ctx context.Context) ([]string, error) {
	jobTenants, err := t.jobs.Tenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("sync tenants: %w", err)
	}
	entryTenants, err := t.entries.Tenants(ctx)
	if err != nil {
		return nil, fmt.Errorf("registry tenants: %w", err)
	}
	seen := make(map[string]struct{})
	var tenants []string
	for _, list := range [][]string{jobTenants, entryTenants} {
		for _, tenant := range list {
			if _, ok := seen[tenant]; !ok {
				seen[tenant] = struct{}{}
				tenants = append(tenants, tenant)
			}
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}
