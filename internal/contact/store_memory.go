package contact

import (
	"context"
	"fmt"
	"sync"

	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
)

// InMemoryStore holds contact projections in memory for tests/dev.
type InMemoryStore struct {
	mu       sync.RWMutex
	contacts map[string]*Record // key: tenant + "/" + id
}

func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{contacts: make(map[string]*Record)}
}

// Put seeds a contact record. Test helper, not part of the Store interface.
// The consent zero value normalizes to ConsentNone, matching what the
// postgres store reads back for a fresh row.
func (s *InMemoryStore) Put(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if record.Call.Consent == "" {
		record.Call.Consent = ConsentNone
	}
	if record.SMS.Consent == "" {
		record.SMS.Consent = ConsentNone
	}
	s.contacts[record.Tenant+"/"+record.ID] = record
}

func (s *InMemoryStore) Get(_ context.Context, tenant, contactID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.contacts[tenant+"/"+contactID]
	if !ok {
		return nil, fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
	}
	clone := *record
	return &clone, nil
}

func (s *InMemoryStore) FindByPhone(_ context.Context, tenant, canonicalPhone string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.contacts {
		if record.Tenant == tenant && record.Phone == canonicalPhone {
			clone := *record
			return &clone, nil
		}
	}
	return nil, fmt.Errorf("contact by phone: %w", sentinel.ErrNotFound)
}

func (s *InMemoryStore) SetChannelOptOut(_ context.Context, tenant, contactID string, ch Channel, update OptOutUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.contacts[tenant+"/"+contactID]
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
	}
	at := update.At
	state := ChannelState{
		OptedOut:     true,
		OptOutAt:     &at,
		OptOutReason: update.Reason,
		OptOutSource: update.Source,
		Consent:      ConsentNone,
		Proof:        nil,
	}
	setChannel(record, ch, state)
	return nil
}

func (s *InMemoryStore) SetChannelConsent(_ context.Context, tenant, contactID string, ch Channel, proof Proof) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.contacts[tenant+"/"+contactID]
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
	}
	p := proof
	state := ChannelState{
		Consent: ConsentExplicit,
		Proof:   &p,
	}
	setChannel(record, ch, state)
	return nil
}

func (s *InMemoryStore) SetDNCStatus(_ context.Context, tenant, contactID, status, source string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.contacts[tenant+"/"+contactID]
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
	}
	record.DNCStatus = status
	record.DNCSource = source
	return nil
}

func (s *InMemoryStore) ClearDNCStatusIf(_ context.Context, tenant, contactID, ifSource string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.contacts[tenant+"/"+contactID]
	if !ok {
		return fmt.Errorf("contact %s: %w", contactID, sentinel.ErrNotFound)
	}
	if record.DNCSource == ifSource {
		record.DNCStatus = ""
		record.DNCSource = ""
	}
	return nil
}

func setChannel(record *Record, ch Channel, state ChannelState) {
	if ch == ChannelSMS {
		record.SMS = state
		return
	}
	record.Call = state
}
