package consent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/optout"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

const disclosure = "By submitting this form you agree to receive marketing " +
	"calls and texts from Acme Roofing at the number provided. Consent is not " +
	"a condition of purchase. Msg & data rates may apply."

// failingAuditStore simulates a broken audit backend.
type failingAuditStore struct{ *audit.InMemoryStore }

func newFailingAuditStore() failingAuditStore {
	return failingAuditStore{audit.NewInMemoryStore()}
}

func (failingAuditStore) Append(context.Context, audit.Event) error {
	return errors.New("audit store down")
}

type ConsentServiceSuite struct {
	suite.Suite
	contacts    *contact.InMemoryStore
	auditStore  *audit.InMemoryStore
	optoutStore *optout.InMemoryStore
	optouts     *optout.Service
	svc         *Service
	ctx         context.Context
	now         time.Time
}

func (s *ConsentServiceSuite) SetupTest() {
	s.contacts = contact.NewInMemoryStore()
	s.auditStore = audit.NewInMemoryStore()
	auditor := audit.NewPublisher(s.auditStore)
	dncSvc := dnc.NewService(dnc.NewInMemoryStore(), s.contacts, auditor)
	s.optoutStore = optout.NewInMemoryStore()
	s.optouts = optout.NewService(s.optoutStore, dncSvc, s.contacts, auditor)
	s.svc = NewService(s.contacts, s.optouts, auditor)

	s.now = time.Date(2026, time.June, 2, 14, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithTime(context.Background(), s.now)
	ctx = requestcontext.WithClientMetadata(ctx, "203.0.113.9",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	s.ctx = requestcontext.WithActor(ctx, "agent-1")
}

func TestConsentServiceSuite(t *testing.T) {
	suite.Run(t, new(ConsentServiceSuite))
}

func (s *ConsentServiceSuite) seedContact() {
	s.contacts.Put(&contact.Record{
		ID:       "c1",
		Tenant:   "t1",
		Phone:    "14235550134",
		Timezone: "America/New_York",
	})
}

func (s *ConsentServiceSuite) capture(ch contact.Channel) *contact.Proof {
	s.T().Helper()
	proof, err := s.svc.Capture(s.ctx, CaptureRequest{
		Tenant:        "t1",
		ContactID:     "c1",
		Channel:       ch,
		Method:        contact.MethodWebForm,
		FormVersion:   "v3",
		DisclosedText: disclosure,
	})
	s.Require().NoError(err)
	return proof
}

func (s *ConsentServiceSuite) TestCapture() {
	s.Run("stores complete proof with client metadata", func() {
		s.seedContact()
		proof := s.capture(contact.ChannelSMS)

		s.Equal("203.0.113.9", proof.IPAddress)
		s.Contains(proof.UserAgentSummary, "Chrome")
		s.Equal(disclosure, proof.DisclosedText)
		s.Equal("agent-1", proof.CapturedBy)
		s.True(proof.CapturedAt.Equal(s.now))

		record, err := s.contacts.Get(s.ctx, "t1", "c1")
		s.Require().NoError(err)
		s.Equal(contact.ConsentExplicit, record.SMS.Consent)
		s.Require().NotNil(record.SMS.Proof)
		s.Equal(disclosure, record.SMS.Proof.DisclosedText)

		events, err := s.auditStore.ListByAction(s.ctx, "t1", audit.ActionConsentGranted)
		s.Require().NoError(err)
		s.Require().Len(events, 1)
		s.Equal(string(contact.ChannelSMS), events[0].Channel)
	})

	s.Run("rejects empty disclosed text", func() {
		s.seedContact()
		_, err := s.svc.Capture(s.ctx, CaptureRequest{
			Tenant:        "t1",
			ContactID:     "c1",
			Channel:       contact.ChannelCall,
			Method:        contact.MethodVerbal,
			DisclosedText: "   ",
		})
		s.Require().Error(err)
	})

	s.Run("clears a standing opt-out on the channel", func() {
		s.seedContact()
		_, err := s.optouts.Process(s.ctx, optout.Request{
			Tenant:    "t1",
			ContactID: "c1",
			Phone:     "4235550134",
			Scope:     optout.ScopeSMS,
			Source:    optout.SignalSMSStop,
		})
		s.Require().NoError(err)

		s.capture(contact.ChannelSMS)

		record, err := s.contacts.Get(s.ctx, "t1", "c1")
		s.Require().NoError(err)
		s.False(record.SMS.OptedOut)
		s.Equal(contact.ConsentExplicit, record.SMS.Consent)

		pending, err := s.optouts.PendingEntries(s.ctx, "t1")
		s.Require().NoError(err)
		s.Empty(pending, "covering queue entry cancelled")
	})

	s.Run("both-scope entry survives when the other channel stays opted out", func() {
		s.seedContact()
		_, err := s.optouts.Process(s.ctx, optout.Request{
			Tenant:    "t1",
			ContactID: "c1",
			Phone:     "4235550134",
			Scope:     optout.ScopeBoth,
			Source:    optout.SignalVerbal,
		})
		s.Require().NoError(err)

		s.capture(contact.ChannelSMS)

		pending, err := s.optouts.PendingEntries(s.ctx, "t1")
		s.Require().NoError(err)
		s.Len(pending, 1, "call channel is still opted out")
	})

	s.Run("unknown contact", func() {
		_, err := s.svc.Capture(s.ctx, CaptureRequest{
			Tenant:        "t1",
			ContactID:     "ghost",
			Channel:       contact.ChannelCall,
			Method:        contact.MethodWebForm,
			DisclosedText: disclosure,
		})
		s.Require().Error(err)
	})

	s.Run("audit failure is returned but the grant stands", func() {
		s.seedContact()
		auditor := audit.NewPublisher(newFailingAuditStore())
		svc := NewService(s.contacts, s.optouts, auditor)

		_, err := svc.Capture(s.ctx, CaptureRequest{
			Tenant:        "t1",
			ContactID:     "c1",
			Channel:       contact.ChannelSMS,
			Method:        contact.MethodWebForm,
			FormVersion:   "v3",
			DisclosedText: disclosure,
		})
		s.Require().Error(err)

		record, err := s.contacts.Get(s.ctx, "t1", "c1")
		s.Require().NoError(err)
		s.Equal(contact.ConsentExplicit, record.SMS.Consent)
	})
}

func (s *ConsentServiceSuite) TestRevoke() {
	s.seedContact()
	s.capture(contact.ChannelCall)

	s.Require().NoError(s.svc.Revoke(s.ctx, "t1", "c1", contact.ChannelCall, "customer request"))

	record, err := s.contacts.Get(s.ctx, "t1", "c1")
	s.Require().NoError(err)
	s.True(record.Call.OptedOut)
	s.Equal(contact.ConsentNone, record.Call.Consent)
	s.Nil(record.Call.Proof)

	events, err := s.auditStore.ListByAction(s.ctx, "t1", audit.ActionConsentRevoked)
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal("customer request", events[0].Reason)
}

func (s *ConsentServiceSuite) TestProofFor() {
	s.seedContact()
	s.capture(contact.ChannelSMS)

	records, err := s.svc.ProofFor(s.ctx, "t1", "c1")
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	byChannel := map[contact.Channel]ProofRecord{}
	for _, r := range records {
		byChannel[r.Channel] = r
	}
	s.Equal(contact.ConsentNone, byChannel[contact.ChannelCall].State)
	s.Nil(byChannel[contact.ChannelCall].Proof)
	s.Equal(contact.ConsentExplicit, byChannel[contact.ChannelSMS].State)
	s.Require().NotNil(byChannel[contact.ChannelSMS].Proof)
	s.Equal(disclosure, byChannel[contact.ChannelSMS].Proof.DisclosedText)
}
