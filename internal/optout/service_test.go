package optout

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

type OptOutServiceSuite struct {
	suite.Suite
	contacts   *contact.InMemoryStore
	auditStore *audit.InMemoryStore
	dncSvc     *dnc.Service
	store      *InMemoryStore
	svc        *Service
	ctx        context.Context
	now        time.Time
}

func (s *OptOutServiceSuite) SetupTest() {
	s.contacts = contact.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore)
	s.dncSvc = dnc.NewService(dnc.NewInMemoryStore(), s.contacts, auditor)
	s.store = NewInMemoryStore()
	s.svc = NewService(s.store, s.dncSvc, s.contacts, auditor)

	// Tue Jun 2 2026, mid-window.
	s.now = time.Date(2026, time.June, 2, 14, 0, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
}

func TestOptOutServiceSuite(t *testing.T) {
	suite.Run(t, new(OptOutServiceSuite))
}

func (s *OptOutServiceSuite) seedContact() *contact.Record {
	record := &contact.Record{
		ID:       "c1",
		Tenant:   "t1",
		Phone:    "14235550134",
		Timezone: "America/New_York",
		Call:     contact.ChannelState{Consent: contact.ConsentExplicit, Proof: &contact.Proof{Method: contact.MethodWebForm}},
		SMS:      contact.ChannelState{Consent: contact.ConsentExplicit, Proof: &contact.Proof{Method: contact.MethodSMS}},
	}
	s.contacts.Put(record)
	return record
}

func (s *OptOutServiceSuite) process(scope Scope) *Entry {
	s.T().Helper()
	entry, err := s.svc.Process(s.ctx, Request{
		Tenant:    "t1",
		ContactID: "c1",
		Phone:     "(423) 555-0134",
		Scope:     scope,
		Source:    SignalSMSStop,
		Reason:    "STOP reply",
	})
	s.Require().NoError(err)
	return entry
}

// failingAuditStore simulates a broken audit backend.
type failingAuditStore struct{ *audit.InMemoryStore }

func newFailingAuditStore() failingAuditStore {
	return failingAuditStore{audit.NewInMemoryStore()}
}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit store down")
}

func (s *OptOutServiceSuite) auditActions() []audit.Action {
	var actions []audit.Action
	for _, e := range s.auditStore.All() {
		actions = append(actions, e.Action)
	}
	return actions
}

func (s *OptOutServiceSuite) TestProcess() {
	s.Run("blocks the number and queues the entry", func() {
		s.seedContact()
		entry := s.process(ScopeBoth)

		s.Equal(StatusPending, entry.Status)
		s.Equal("14235550134", entry.Phone)
		s.True(entry.Deadline.Equal(Deadline(s.now, ProcessingBusinessDays)))

		listing, err := s.dncSvc.IsListed(s.ctx, "4235550134", "t1")
		s.Require().NoError(err)
		s.True(listing.Listed)
		s.Equal(dnc.SourceInternal, listing.Source)

		s.Contains(s.auditActions(), audit.ActionOptOutReceived)
	})

	s.Run("clears consent on covered channels", func() {
		s.seedContact()
		s.process(ScopeSMS)

		record, err := s.contacts.Get(s.ctx, "t1", "c1")
		s.Require().NoError(err)
		s.True(record.SMS.OptedOut)
		s.Equal(contact.ConsentNone, record.SMS.Consent)
		s.Nil(record.SMS.Proof)
		// The call channel is untouched by an sms-scoped opt-out.
		s.False(record.Call.OptedOut)
		s.Equal(contact.ConsentExplicit, record.Call.Consent)
	})

	s.Run("audit failure is returned but the block stands", func() {
		s.seedContact()
		auditor := audit.NewPublisher(newFailingAuditStore())
		svc := NewService(s.store, s.dncSvc, s.contacts, auditor)

		before, err := s.store.ListPending(s.ctx, "t1")
		s.Require().NoError(err)

		_, err = svc.Process(s.ctx, Request{
			Tenant:    "t1",
			ContactID: "c1",
			Phone:     "(423) 555-0134",
			Scope:     ScopeBoth,
			Source:    SignalVerbal,
		})
		s.Require().Error(err)

		listing, err := s.dncSvc.IsListed(s.ctx, "4235550134", "t1")
		s.Require().NoError(err)
		s.True(listing.Listed)

		after, err := s.store.ListPending(s.ctx, "t1")
		s.Require().NoError(err)
		s.Len(after, len(before)+1, "queue entry created before the audit write")
	})

	s.Run("works without a contact record", func() {
		entry, err := s.svc.Process(s.ctx, Request{
			Tenant: "t1",
			Phone:  "6155550100",
			Scope:  ScopeCall,
			Source: SignalVerbal,
		})
		s.Require().NoError(err)
		s.Empty(entry.ContactID)

		listing, err := s.dncSvc.IsListed(s.ctx, "6155550100", "t1")
		s.Require().NoError(err)
		s.True(listing.Listed)
	})
}

func (s *OptOutServiceSuite) TestSendFollowUp() {
	s.Run("within window succeeds once", func() {
		s.seedContact()
		entry := s.process(ScopeSMS)

		ctx := requestcontext.WithTime(context.Background(), s.now.Add(5*time.Minute))
		s.Require().NoError(s.svc.SendFollowUp(ctx, entry.ID, "You have been opted out."))

		got, err := s.store.Get(ctx, entry.ID)
		s.Require().NoError(err)
		s.Equal(StatusFollowUpSent, got.Status)
		s.Equal("You have been opted out.", got.FollowUpMessage)

		err = s.svc.SendFollowUp(ctx, entry.ID, "again")
		s.Require().ErrorIs(err, ErrFollowUpAlreadySent)
	})

	s.Run("after the window is a distinct error", func() {
		s.seedContact()
		entry := s.process(ScopeSMS)

		ctx := requestcontext.WithTime(context.Background(), s.now.Add(11*time.Minute))
		err := s.svc.SendFollowUp(ctx, entry.ID, "too late")
		s.Require().ErrorIs(err, ErrFollowUpWindowExpired)

		got, getErr := s.store.Get(ctx, entry.ID)
		s.Require().NoError(getErr)
		s.Nil(got.FollowUpSentAt)
	})

	s.Run("terminal entry rejected", func() {
		s.seedContact()
		entry := s.process(ScopeSMS)
		s.Require().NoError(s.svc.MarkProcessed(s.ctx, entry.ID, "agent-1"))

		err := s.svc.SendFollowUp(s.ctx, entry.ID, "msg")
		s.Require().ErrorIs(err, ErrEntryTerminal)
	})
}

func (s *OptOutServiceSuite) TestMarkProcessed() {
	s.Run("on time passes", func() {
		s.seedContact()
		entry := s.process(ScopeCall)

		ctx := requestcontext.WithTime(context.Background(), s.now.Add(72*time.Hour))
		s.Require().NoError(s.svc.MarkProcessed(ctx, entry.ID, "agent-1"))

		events, err := s.auditStore.ListByAction(ctx, "t1", audit.ActionOptOutProcessed)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(audit.ResultPass, events[0].Result)
	})

	s.Run("late completion audited as warning", func() {
		s.seedContact()
		entry := s.process(ScopeCall)

		ctx := requestcontext.WithTime(context.Background(), entry.Deadline.Add(24*time.Hour))
		s.Require().NoError(s.svc.MarkProcessed(ctx, entry.ID, "agent-2"))

		// Newest first; the late completion is the most recent event.
		events, err := s.auditStore.ListByAction(ctx, "t1", audit.ActionOptOutProcessed)
		s.Require().NoError(err)
		s.Require().NotEmpty(events)
		s.Equal(audit.ResultWarning, events[0].Result)
	})

	s.Run("processed entries stay processed", func() {
		s.seedContact()
		entry := s.process(ScopeCall)
		s.Require().NoError(s.svc.MarkProcessed(s.ctx, entry.ID, "agent-1"))

		err := s.svc.MarkProcessed(s.ctx, entry.ID, "agent-2")
		s.Require().ErrorIs(err, ErrEntryTerminal)
	})
}

func (s *OptOutServiceSuite) TestPendingEntries() {
	s.seedContact()
	entry := s.process(ScopeBoth)

	s.Run("fresh entry is ok", func() {
		pending, err := s.svc.PendingEntries(s.ctx, "t1")
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(DeadlineOK, pending[0].DeadlineStatus)
	})

	s.Run("overdue computed at read time", func() {
		ctx := requestcontext.WithTime(context.Background(), entry.Deadline.Add(time.Hour))
		pending, err := s.svc.PendingEntries(ctx, "t1")
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(DeadlineOverdue, pending[0].DeadlineStatus)
	})

	s.Run("approaching inside the alert horizon", func() {
		ctx := requestcontext.WithTime(context.Background(), entry.Deadline.Add(-ApproachingWindow+time.Hour))
		pending, err := s.svc.PendingEntries(ctx, "t1")
		s.Require().NoError(err)
		s.Require().Len(pending, 1)
		s.Equal(DeadlineApproaching, pending[0].DeadlineStatus)
	})
}
