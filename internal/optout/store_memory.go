package optout

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
)

// InMemoryStore keeps queue entries in memory for tests/dev. The mutex makes
// the conditional writes atomic, mirroring what the SQL store gets from
// conditional UPDATEs.
type InMemoryStore struct {
	mu      sync.RWMutex
	entries map[uuid.UUID]*Entry
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{entries: make(map[uuid.UUID]*Entry)}
}

func (s *InMemoryStore) Create(_ context.Context, entry Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := entry
	s.entries[entry.ID] = &clone
	return nil
}

func (s *InMemoryStore) Get(_ context.Context, entryID uuid.UUID) (*Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return nil, fmt.Errorf("opt-out entry %s: %w", entryID, sentinel.ErrNotFound)
	}
	clone := *entry
	return &clone, nil
}

func (s *InMemoryStore) MarkFollowUpSent(_ context.Context, entryID uuid.UUID, message string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("opt-out entry %s: %w", entryID, sentinel.ErrNotFound)
	}
	if entry.Status.Terminal() {
		return fmt.Errorf("opt-out entry %s is %s: %w", entryID, entry.Status, sentinel.ErrInvalidState)
	}
	if entry.FollowUpSentAt != nil {
		return fmt.Errorf("opt-out entry %s: %w", entryID, sentinel.ErrAlreadyUsed)
	}
	stamp := at
	entry.FollowUpSentAt = &stamp
	entry.FollowUpMessage = message
	entry.Status = StatusFollowUpSent
	return nil
}

func (s *InMemoryStore) MarkProcessed(_ context.Context, entryID uuid.UUID, by string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[entryID]
	if !ok {
		return fmt.Errorf("opt-out entry %s: %w", entryID, sentinel.ErrNotFound)
	}
	if entry.Status.Terminal() {
		return fmt.Errorf("opt-out entry %s is %s: %w", entryID, entry.Status, sentinel.ErrInvalidState)
	}
	stamp := at
	entry.ProcessedAt = &stamp
	entry.ProcessedBy = by
	entry.Status = StatusProcessed
	return nil
}

func (s *InMemoryStore) CancelForChannel(_ context.Context, tenant, contactID string, ch contact.Channel, includeBoth bool) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var cancelled []uuid.UUID
	for _, entry := range s.entries {
		if entry.Tenant != tenant || entry.ContactID != contactID || entry.Status.Terminal() {
			continue
		}
		if !entry.Scope.Covers(ch) {
			continue
		}
		if entry.Scope == ScopeBoth && !includeBoth {
			continue
		}
		entry.Status = StatusCancelled
		cancelled = append(cancelled, entry.ID)
	}
	return cancelled, nil
}

func (s *InMemoryStore) ListPending(_ context.Context, tenant string) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, entry := range s.entries {
		if entry.Tenant == tenant && !entry.Status.Terminal() {
			out = append(out, *entry)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].RequestedAt.Before(out[j].RequestedAt)
	})
	return out, nil
}
