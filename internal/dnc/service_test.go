package dnc

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/phone"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// fakeCache is an in-process ListingCache with a switchable failure mode.
type fakeCache struct {
	entries map[string]Source
	fail    bool
	hits    int
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string]Source)}
}

func (c *fakeCache) Get(_ context.Context, tenant, fingerprint string) (Source, bool, error) {
	if c.fail {
		return "", false, errors.New("cache down")
	}
	source, ok := c.entries[tenant+":"+fingerprint]
	if ok {
		c.hits++
	}
	return source, ok, nil
}

func (c *fakeCache) Set(_ context.Context, tenant, fingerprint string, source Source) error {
	if c.fail {
		return errors.New("cache down")
	}
	c.entries[tenant+":"+fingerprint] = source
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, tenant, fingerprint string) error {
	if c.fail {
		return errors.New("cache down")
	}
	delete(c.entries, tenant+":"+fingerprint)
	return nil
}

type DNCServiceSuite struct {
	suite.Suite
	store      *InMemoryStore
	contacts   *contact.InMemoryStore
	auditStore *audit.InMemoryStore
	cache      *fakeCache
	svc        *Service
	ctx        context.Context
	now        time.Time
}

func (s *DNCServiceSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.contacts = contact.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	s.cache = newFakeCache()
	auditor := audit.NewPublisher(s.auditStore)
	s.svc = NewService(s.store, s.contacts, auditor, WithCache(s.cache))

	s.now = time.Date(2026, time.June, 2, 14, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestDNCServiceSuite(t *testing.T) {
	suite.Run(t, new(DNCServiceSuite))
}

func (s *DNCServiceSuite) addedEvents() []audit.Event {
	events, err := s.auditStore.ListByAction(s.ctx, "t1", audit.ActionDNCAdded)
	s.Require().NoError(err)
	return events
}

func (s *DNCServiceSuite) TestAddInternal() {
	s.Run("lists the number", func() {
		s.Require().NoError(s.svc.AddInternal(s.ctx, "(423) 555-0134", "t1", "opt-out"))

		listing, err := s.svc.IsListed(s.ctx, "4235550134", "t1")
		s.Require().NoError(err)
		s.True(listing.Listed)
		s.Equal(SourceInternal, listing.Source)
	})

	s.Run("is idempotent and audits once", func() {
		s.Require().NoError(s.svc.AddInternal(s.ctx, "4235550134", "t1", "opt-out"))
		s.Require().NoError(s.svc.AddInternal(s.ctx, "423-555-0134", "t1", "opt-out again"))

		s.Len(s.addedEvents(), 1, "duplicate add is a silent no-op")
	})

	s.Run("mirrors onto the matching contact", func() {
		s.contacts.Put(&contact.Record{ID: "c1", Tenant: "t1", Phone: "16155550100"})
		s.Require().NoError(s.svc.AddInternal(s.ctx, "6155550100", "t1", "opt-out"))

		record, err := s.contacts.Get(s.ctx, "t1", "c1")
		s.Require().NoError(err)
		s.Equal(MirrorStatusListed, record.DNCStatus)
		s.Equal(string(SourceInternal), record.DNCSource)
	})
}

func (s *DNCServiceSuite) TestRemoveInternal() {
	s.Run("delists and clears the mirror", func() {
		s.contacts.Put(&contact.Record{ID: "c1", Tenant: "t1", Phone: "14235550134"})
		s.Require().NoError(s.svc.AddInternal(s.ctx, "4235550134", "t1", "opt-out"))
		s.Require().NoError(s.svc.RemoveInternal(s.ctx, "4235550134", "t1"))

		listing, err := s.svc.IsListed(s.ctx, "4235550134", "t1")
		s.Require().NoError(err)
		s.False(listing.Listed)

		record, err := s.contacts.Get(s.ctx, "t1", "c1")
		s.Require().NoError(err)
		s.Empty(record.DNCStatus)
	})

	s.Run("leaves external listings alone", func() {
		fingerprint := phone.Fingerprint("14235550199")
		_, err := s.store.Upsert(s.ctx, Entry{
			Tenant: "t1", Fingerprint: fingerprint, Phone: "14235550199",
			Source: SourceFederal, ListedAt: s.now.Add(-time.Hour),
		})
		s.Require().NoError(err)

		s.Require().NoError(s.svc.RemoveInternal(s.ctx, "4235550199", "t1"))

		listing, err := s.svc.IsListed(s.ctx, "4235550199", "t1")
		s.Require().NoError(err)
		s.True(listing.Listed, "only internal rows are removable")
		s.Equal(SourceFederal, listing.Source)
	})

	s.Run("mirror set by a federal listing survives internal removal", func() {
		s.contacts.Put(&contact.Record{
			ID: "c2", Tenant: "t1", Phone: "19015550100",
			DNCStatus: MirrorStatusListed, DNCSource: "federal",
		})

		s.Require().NoError(s.svc.RemoveInternal(s.ctx, "9015550100", "t1"))

		record, err := s.contacts.Get(s.ctx, "t1", "c2")
		s.Require().NoError(err)
		s.Equal(MirrorStatusListed, record.DNCStatus)
	})
}

func (s *DNCServiceSuite) TestIsListed() {
	s.Run("expired entries do not block", func() {
		fingerprint := phone.Fingerprint("14235550150")
		expired := s.now.Add(-time.Hour)
		_, err := s.store.Upsert(s.ctx, Entry{
			Tenant: "t1", Fingerprint: fingerprint, Phone: "14235550150",
			Source: SourceFederal, ListedAt: s.now.Add(-48 * time.Hour), ExpiresAt: &expired,
		})
		s.Require().NoError(err)

		listing, err := s.svc.IsListed(s.ctx, "4235550150", "t1")
		s.Require().NoError(err)
		s.False(listing.Listed)
	})

	s.Run("serves repeat lookups from the cache", func() {
		s.Require().NoError(s.svc.AddInternal(s.ctx, "4235550134", "t1", "opt-out"))

		for range 3 {
			listing, err := s.svc.IsListed(s.ctx, "4235550134", "t1")
			s.Require().NoError(err)
			s.True(listing.Listed)
		}
		s.GreaterOrEqual(s.cache.hits, 2)
	})

	s.Run("cache failure degrades to the store", func() {
		s.Require().NoError(s.svc.AddInternal(s.ctx, "6155550177", "t1", "opt-out"))
		s.cache.fail = true
		defer func() { s.cache.fail = false }()

		listing, err := s.svc.IsListed(s.ctx, "6155550177", "t1")
		s.Require().NoError(err)
		s.True(listing.Listed)
	})

	s.Run("tenant isolation", func() {
		s.Require().NoError(s.svc.AddInternal(s.ctx, "4235550188", "t1", "opt-out"))

		listing, err := s.svc.IsListed(s.ctx, "4235550188", "t2")
		s.Require().NoError(err)
		s.False(listing.Listed)
	})
}

func (s *DNCServiceSuite) TestStats() {
	s.Require().NoError(s.svc.AddInternal(s.ctx, "4235550134", "t1", "a"))
	s.Require().NoError(s.svc.AddInternal(s.ctx, "4235550135", "t1", "b"))
	_, err := s.store.Upsert(s.ctx, Entry{
		Tenant: "t1", Fingerprint: phone.Fingerprint("16155550100"), Phone: "16155550100",
		Source: SourceFederal, ListedAt: s.now,
	})
	s.Require().NoError(err)

	counts, err := s.svc.Stats(s.ctx, "t1")
	s.Require().NoError(err)
	s.Equal(2, counts[SourceInternal])
	s.Equal(1, counts[SourceFederal])
}
