package dnc

import (
	"context"
	"time"
)

// Store persists registry entries. At most one active row may exist per
// (tenant, fingerprint, source); Upsert enforces this idempotently so
// concurrent duplicate adds neither error nor double-count.
type Store interface {
	// Upsert inserts the entry or revives/refreshes the existing row for the
	// same (tenant, fingerprint, source). Returns true when a new active row
	// came into existence, false when an active row was already present.
	Upsert(ctx context.Context, entry Entry) (created bool, err error)
	// FindByFingerprint returns all non-deleted rows for the fingerprint.
	// Expiration filtering is the service's job so "listed" semantics live in
	// one place.
	FindByFingerprint(ctx context.Context, tenant, fingerprint string) ([]Entry, error)
	// SoftDelete marks rows for the (tenant, fingerprint, source) deleted.
	// Zero matching rows is not an error.
	SoftDelete(ctx context.Context, tenant, fingerprint string, source Source) error
	// CountBySource returns active-row counts per source for a tenant, as of
	// the given instant.
	CountBySource(ctx context.Context, tenant string, now time.Time) (map[Source]int, error)
	// Tenants lists every tenant with at least one registry row.
	Tenants(ctx context.Context) ([]string, error)
}
