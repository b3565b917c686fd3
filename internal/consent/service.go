// Package consent captures and revokes Prior Express Written Consent proof on
// contact channels. Proof is evidence, not configuration: the disclosed text
// is stored verbatim at capture time and returned verbatim ever after.
package consent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/mssola/useragent"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/optout"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// Service writes consent proof and keeps the opt-out side consistent: a new
// grant on a channel clears that channel's opt-out and cancels covering queue
// entries.
type Service struct {
	contacts contact.Store
	optouts  *optout.Service
	auditor  *audit.Publisher
	logger   *slog.Logger
}

func NewService(contacts contact.Store, optouts *optout.Service, auditor *audit.Publisher, opts ...ServiceOption) *Service {
	s := &Service{contacts: contacts, optouts: optouts, auditor: auditor}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// CaptureRequest carries the fields of one consent grant. DisclosedText is
// the exact wording shown to the person; it must not be empty.
type CaptureRequest struct {
	Tenant        string
	ContactID     string
	Channel       contact.Channel
	Method        contact.CaptureMethod
	FormVersion   string
	DisclosedText string
	CapturedBy    string
}

// Capture records a consent grant on a channel. Client IP and user agent are
// read from the request context; absent metadata is stored as "unknown"
// rather than omitted, so the proof row is always complete.
func (s *Service) Capture(ctx context.Context, req CaptureRequest) (*contact.Proof, error) {
	if !req.Channel.Valid() {
		return nil, fmt.Errorf("capture consent: invalid channel %q", req.Channel)
	}
	if strings.TrimSpace(req.DisclosedText) == "" {
		return nil, fmt.Errorf("capture consent: disclosed text is required")
	}

	record, err := s.contacts.Get(ctx, req.Tenant, req.ContactID)
	if err != nil {
		return nil, fmt.Errorf("capture consent: %w", err)
	}

	now := requestcontext.Now(ctx)
	ua := requestcontext.UserAgent(ctx)
	if ua == "" {
		ua = "unknown"
	}
	proof := contact.Proof{
		Method:           req.Method,
		CapturedAt:       now,
		CapturedBy:       req.CapturedBy,
		IPAddress:        requestcontext.ClientIP(ctx),
		UserAgent:        ua,
		UserAgentSummary: summarizeUserAgent(ua),
		FormVersion:      req.FormVersion,
		DisclosedText:    req.DisclosedText,
	}
	if proof.CapturedBy == "" {
		proof.CapturedBy = requestcontext.Actor(ctx)
	}

	if err := s.contacts.SetChannelConsent(ctx, req.Tenant, req.ContactID, req.Channel, proof); err != nil {
		return nil, fmt.Errorf("capture consent: %w", err)
	}

	// A "both"-scope queue entry may only be cancelled when the other channel
	// carries no standing opt-out; the grant we just wrote covers one channel.
	other := otherChannel(req.Channel)
	includeBoth := !record.ChannelState(other).OptedOut
	if _, err := s.optouts.CancelForContact(ctx, req.Tenant, req.ContactID, req.Channel, includeBoth); err != nil {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "cancel opt-out entries after consent grant failed",
				"tenant", req.Tenant, "contact_id", req.ContactID, "error", err)
		}
	}

	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp: now,
			Tenant:    req.Tenant,
			ContactID: req.ContactID,
			Actor:     proof.CapturedBy,
			Action:    audit.ActionConsentGranted,
			Channel:   string(req.Channel),
			Result:    audit.ResultPass,
			Source:    string(req.Method),
			Detail:    fmt.Sprintf("form_version=%s", req.FormVersion),
		})
		if err != nil {
			return nil, fmt.Errorf("record consent audit (grant applied): %w", err)
		}
	}
	return &proof, nil
}

// Revoke is the administrative inverse of Capture: it sets the channel's
// opt-out fields and clears consent in the same write. A revocation arriving
// through a person-facing surface should go through the opt-out service
// instead, which also adds the registry block.
func (s *Service) Revoke(ctx context.Context, tenant, contactID string, ch contact.Channel, reason string) error {
	if !ch.Valid() {
		return fmt.Errorf("revoke consent: invalid channel %q", ch)
	}
	now := requestcontext.Now(ctx)
	update := contact.OptOutUpdate{At: now, Reason: reason, Source: string(optout.SignalManual)}
	if err := s.contacts.SetChannelOptOut(ctx, tenant, contactID, ch, update); err != nil {
		return fmt.Errorf("revoke consent: %w", err)
	}

	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp: now,
			Tenant:    tenant,
			ContactID: contactID,
			Actor:     requestcontext.Actor(ctx),
			Action:    audit.ActionConsentRevoked,
			Channel:   string(ch),
			Result:    audit.ResultPass,
			Reason:    reason,
		})
		if err != nil {
			return fmt.Errorf("record revocation audit (opt-out applied): %w", err)
		}
	}
	return nil
}

// ProofRecord is the per-channel proof projection returned by ProofFor.
type ProofRecord struct {
	Channel contact.Channel
	State   contact.ConsentState
	Proof   *contact.Proof
}

// ProofFor returns the stored consent proof for both channels. DisclosedText
// comes back exactly as captured.
func (s *Service) ProofFor(ctx context.Context, tenant, contactID string) ([]ProofRecord, error) {
	record, err := s.contacts.Get(ctx, tenant, contactID)
	if err != nil {
		return nil, fmt.Errorf("consent proof: %w", err)
	}
	call := record.ChannelState(contact.ChannelCall)
	sms := record.ChannelState(contact.ChannelSMS)
	return []ProofRecord{
		{Channel: contact.ChannelCall, State: call.Consent, Proof: call.Proof},
		{Channel: contact.ChannelSMS, State: sms.Consent, Proof: sms.Proof},
	}, nil
}

func otherChannel(ch contact.Channel) contact.Channel {
	if ch == contact.ChannelCall {
		return contact.ChannelSMS
	}
	return contact.ChannelCall
}

// summarizeUserAgent condenses a raw UA string to "Browser ver (OS)" for
// display; the raw string is stored alongside it.
func summarizeUserAgent(raw string) string {
	if raw == "" {
		return "unknown"
	}
	parsed := useragent.New(raw)
	name, version := parsed.Browser()
	if name == "" {
		return "unknown"
	}
	summary := name
	if version != "" {
		summary += " " + version
	}
	if os := parsed.OS(); os != "" {
		summary += " (" + os + ")"
	}
	if parsed.Bot() {
		summary += " [bot]"
	}
	return summary
}
