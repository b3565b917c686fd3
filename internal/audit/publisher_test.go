package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"
)

// failingStore simulates a broken audit backend.
type failingStore struct{ *InMemoryStore }

func newFailingStore() failingStore {
	return failingStore{NewInMemoryStore()}
}

func (failingStore) Append(context.Context, Event) error {
	return errors.New("disk full")
}

type PublisherSuite struct {
	suite.Suite
	store *InMemoryStore
	pub   *Publisher
	ctx   context.Context
}

func (s *PublisherSuite) SetupTest() {
	s.store = NewInMemoryStore()
	s.pub = NewPublisher(s.store)
	s.ctx = context.Background()
}

func TestPublisherSuite(t *testing.T) {
	suite.Run(t, new(PublisherSuite))
}

func (s *PublisherSuite) TestEmit() {
	s.Run("persists and fills defaults", func() {
		err := s.pub.Emit(s.ctx, Event{
			Tenant: "t1",
			Action: ActionConsentGranted,
			Result: ResultPass,
		})
		s.Require().NoError(err)

		events := s.store.All()
		s.Require().Len(events, 1)
		s.NotEqual(uuid.Nil, events[0].ID)
		s.False(events[0].Timestamp.IsZero())
	})

	s.Run("rejects events without a tenant", func() {
		before := len(s.store.All())
		err := s.pub.Emit(s.ctx, Event{Action: ActionComplianceCheck})
		s.Require().Error(err)
		s.Len(s.store.All(), before)
	})

	s.Run("rejects events without an action", func() {
		before := len(s.store.All())
		err := s.pub.Emit(s.ctx, Event{Tenant: "t1"})
		s.Require().Error(err)
		s.Len(s.store.All(), before)
	})

	s.Run("propagates persistence failure", func() {
		pub := NewPublisher(newFailingStore())
		err := pub.Emit(s.ctx, Event{Tenant: "t1", Action: ActionOptOutReceived})
		s.Require().Error(err)
	})
}

func (s *PublisherSuite) TestEmitBestEffort() {
	// Must not panic or propagate even when the store is down.
	pub := NewPublisher(newFailingStore())
	pub.EmitBestEffort(s.ctx, Event{Tenant: "t1", Action: ActionComplianceCheck})
}

func (s *PublisherSuite) TestListOrdering() {
	base := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		s.Require().NoError(s.pub.Emit(s.ctx, Event{
			Tenant:    "t1",
			ContactID: "c1",
			Action:    ActionComplianceCheck,
			Result:    ResultPass,
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	events, err := s.pub.List(s.ctx, "t1", "c1")
	s.Require().NoError(err)
	s.Require().Len(events, 3)
	s.True(events[0].Timestamp.After(events[2].Timestamp), "newest first")
}

func (s *PublisherSuite) TestListByTenantLimit() {
	for i := 0; i < 5; i++ {
		s.Require().NoError(s.pub.Emit(s.ctx, Event{Tenant: "t1", Action: ActionDNCAdded}))
	}
	events, err := s.store.ListByTenant(s.ctx, "t1", 2)
	s.Require().NoError(err)
	s.Len(events, 2)
}
