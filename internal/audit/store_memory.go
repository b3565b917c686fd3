package audit

import (
	"context"
	"sync"
)

// InMemoryStore keeps audit events in memory for tests/dev.
type InMemoryStore struct {
	mu     sync.RWMutex
	events []Event
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{}
}

func (s *InMemoryStore) Append(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *InMemoryStore) ListByContact(_ context.Context, tenant, contactID string) ([]Event, error) {
	return s.filter(func(e Event) bool {
		return e.Tenant == tenant && e.ContactID == contactID
	}, 0), nil
}

func (s *InMemoryStore) ListByTenant(_ context.Context, tenant string, limit int) ([]Event, error) {
	return s.filter(func(e Event) bool { return e.Tenant == tenant }, limit), nil
}

func (s *InMemoryStore) ListByAction(_ context.Context, tenant string, action Action) ([]Event, error) {
	return s.filter(func(e Event) bool {
		return e.Tenant == tenant && e.Action == action
	}, 0), nil
}

// All returns every stored event. Test helper.
func (s *InMemoryStore) All() []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Event{}, s.events...)
}

func (s *InMemoryStore) filter(keep func(Event) bool, limit int) []Event {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Event
	// Newest first, matching the postgres ORDER BY timestamp DESC.
	for i := len(s.events) - 1; i >= 0; i-- {
		if keep(s.events[i]) {
			out = append(out, s.events[i])
			if limit > 0 && len(out) == limit {
				break
			}
		}
	}
	return out
}
