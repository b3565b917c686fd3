package dnc

import (
	"context"
	"sync"
	"time"

	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// InMemoryStore keeps registry entries in memory for tests/dev.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[string][]*Entry // key: tenant + "/" + fingerprint
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[string][]*Entry)}
}

func (s *InMemoryStore) Upsert(_ context.Context, entry Entry) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := entry.Tenant + "/" + entry.Fingerprint
	for _, existing := range s.entries[key] {
		if existing.Source != entry.Source {
			continue
		}
		if existing.DeletedAt == nil {
			// Already actively listed by this source; duplicate add is a no-op.
			return false, nil
		}
		// Revive the soft-deleted row with the fresh listing data.
		existing.DeletedAt = nil
		existing.Reason = entry.Reason
		existing.ListedAt = entry.ListedAt
		existing.ExpiresAt = entry.ExpiresAt
		return true, nil
	}
	clone := entry
	s.entries[key] = append(s.entries[key], &clone)
	return true, nil
}

func (s *InMemoryStore) FindByFingerprint(_ context.Context, tenant, fingerprint string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entry := range s.entries[tenant+"/"+fingerprint] {
		if entry.DeletedAt == nil {
			out = append(out, *entry)
		}
	}
	return out, nil
}

func (s *InMemoryStore) SoftDelete(ctx context.Context, tenant, fingerprint string, source Source) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := requestcontext.Now(ctx)
	for _, entry := range s.entries[tenant+"/"+fingerprint] {
		if entry.Source == source && entry.DeletedAt == nil {
			at := now
			entry.DeletedAt = &at
		}
	}
	return nil
}

func (s *InMemoryStore) CountBySource(_ context.Context, tenant string, now time.Time) (map[Source]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	counts := make(map[Source]int)
	for _, entries := range s.entries {
		for _, entry := range entries {
			if entry.Tenant == tenant && entry.ActiveAt(now) {
				counts[entry.Source]++
			}
		}
	}
	return counts, nil
}

func (s *InMemoryStore) Tenants(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	var tenants []string
	for _, entries := range s.entries {
		for _, entry := range entries {
			if _, ok := seen[entry.Tenant]; !ok {
				seen[entry.Tenant] = struct{}{}
				tenants = append(tenants, entry.Tenant)
			}
		}
	}
	return tenants, nil
}
