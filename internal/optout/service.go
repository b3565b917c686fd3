package optout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/phone"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// Service applies opt-out signals. The ordering inside Process is load
// bearing: the do-not-call block lands first and stands on its own, so a later
// queue or contact failure can never leave a revoked number callable.
type Service struct {
	store    Store
	dnc      *dnc.Service
	contacts contact.Store
	auditor  *audit.Publisher
	logger   *slog.Logger
}

func NewService(store Store, dncSvc *dnc.Service, contacts contact.Store, auditor *audit.Publisher, opts ...ServiceOption) *Service {
	s := &Service{store: store, dnc: dncSvc, contacts: contacts, auditor: auditor}
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

// Request is an incoming opt-out signal.
type Request struct {
	Tenant    string
	ContactID string // optional; a bare number may opt out without a CRM record
	Phone     string // raw, canonicalized here
	Scope     Scope
	Source    Signal
	Reason    string
}

// Process applies an opt-out signal: immediate internal do-not-call block,
// contact channel flags, then a queue entry tracking the statutory processing
// deadline. If the queue write fails after the block applied, the error is
// returned but the number stays blocked.
func (s *Service) Process(ctx context.Context, req Request) (*Entry, error) {
	canonical := phone.Canonicalize(req.Phone)
	now := requestcontext.Now(ctx)

	if err := s.dnc.AddInternal(ctx, canonical, req.Tenant, req.Reason); err != nil {
		return nil, fmt.Errorf("apply opt-out block: %w", err)
	}

	if req.ContactID != "" {
		update := contact.OptOutUpdate{At: now, Reason: req.Reason, Source: string(req.Source)}
		for _, ch := range req.Scope.Channels() {
			if err := s.contacts.SetChannelOptOut(ctx, req.Tenant, req.ContactID, ch, update); err != nil {
				if errors.Is(err, sentinel.ErrNotFound) {
					if s.logger != nil {
						s.logger.WarnContext(ctx, "opt-out contact not found, block applied without flags",
							"tenant", req.Tenant, "contact_id", req.ContactID)
					}
					break
				}
				return nil, fmt.Errorf("flag contact channel %s: %w", ch, err)
			}
		}
	}

	entry := Entry{
		ID:          uuid.New(),
		Tenant:      req.Tenant,
		ContactID:   req.ContactID,
		Phone:       canonical,
		Scope:       req.Scope,
		Source:      req.Source,
		Reason:      req.Reason,
		RequestedAt: now,
		Deadline:    Deadline(now, ProcessingBusinessDays),
		Status:      StatusPending,
		CreatedAt:   now,
	}
	if err := s.store.Create(ctx, entry); err != nil {
		return nil, fmt.Errorf("enqueue opt-out (block already applied): %w", err)
	}

	if s.auditor != nil {
		deadline := entry.Deadline
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp:        now,
			Tenant:           req.Tenant,
			ContactID:        req.ContactID,
			Actor:            requestcontext.Actor(ctx),
			Action:           audit.ActionOptOutReceived,
			Channel:          string(req.Scope),
			Result:           audit.ResultPass,
			Reason:           req.Reason,
			Source:           string(req.Source),
			Deadline:         &deadline,
			PhoneFingerprint: phone.Fingerprint(canonical),
		})
		if err != nil {
			return nil, fmt.Errorf("record opt-out audit (block and queue entry applied): %w", err)
		}
	}
	return &entry, nil
}

// SendFollowUp records the single confirmation message allowed within the
// follow-up window. The checks here give callers precise rejections; the
// store's conditional write is what actually prevents a double send under
// racing requests.
func (s *Service) SendFollowUp(ctx context.Context, entryID uuid.UUID, message string) error {
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	if entry.Status.Terminal() {
		return ErrEntryTerminal
	}
	if entry.FollowUpSentAt != nil {
		return ErrFollowUpAlreadySent
	}
	if !WithinFollowUpWindow(now, entry.RequestedAt) {
		return ErrFollowUpWindowExpired
	}

	if err := s.store.MarkFollowUpSent(ctx, entryID, message, now); err != nil {
		switch {
		case errors.Is(err, sentinel.ErrAlreadyUsed):
			return ErrFollowUpAlreadySent
		case errors.Is(err, sentinel.ErrInvalidState):
			return ErrEntryTerminal
		}
		return fmt.Errorf("record follow-up: %w", err)
	}

	if s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp:        now,
			Tenant:           entry.Tenant,
			ContactID:        entry.ContactID,
			Actor:            requestcontext.Actor(ctx),
			Action:           audit.ActionOptOutFollowUp,
			Channel:          string(entry.Scope),
			Result:           audit.ResultPass,
			PhoneFingerprint: phone.Fingerprint(entry.Phone),
		})
		if err != nil {
			return fmt.Errorf("record follow-up audit (message recorded): %w", err)
		}
	}
	return nil
}

// MarkProcessed closes a queue entry once the opt-out has been worked through
// downstream systems. Completing after the deadline is recorded as a warning,
// not blocked; the obligation was to process, late beats never.
func (s *Service) MarkProcessed(ctx context.Context, entryID uuid.UUID, by string) error {
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return err
	}
	now := requestcontext.Now(ctx)

	if err := s.store.MarkProcessed(ctx, entryID, by, now); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return ErrEntryTerminal
		}
		return fmt.Errorf("mark opt-out processed: %w", err)
	}

	result := audit.ResultPass
	reason := ""
	if now.After(entry.Deadline) {
		result = audit.ResultWarning
		reason = "processed after statutory deadline"
	}
	if s.auditor != nil {
		deadline := entry.Deadline
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp:        now,
			Tenant:           entry.Tenant,
			ContactID:        entry.ContactID,
			Actor:            by,
			Action:           audit.ActionOptOutProcessed,
			Channel:          string(entry.Scope),
			Result:           result,
			Reason:           reason,
			Deadline:         &deadline,
			PhoneFingerprint: phone.Fingerprint(entry.Phone),
		})
		if err != nil {
			return fmt.Errorf("record processed audit (entry closed): %w", err)
		}
	}
	return nil
}

// CancelForContact cancels open queue entries covering the channel, used when
// a fresh consent grant supersedes a pending opt-out. Entries scoped to both
// channels are cancelled only when includeBoth is set, meaning the caller has
// confirmed the other channel carries no standing opt-out.
func (s *Service) CancelForContact(ctx context.Context, tenant, contactID string, ch contact.Channel, includeBoth bool) ([]uuid.UUID, error) {
	cancelled, err := s.store.CancelForChannel(ctx, tenant, contactID, ch, includeBoth)
	if err != nil {
		return nil, fmt.Errorf("cancel opt-out entries: %w", err)
	}
	if len(cancelled) > 0 && s.auditor != nil {
		err := s.auditor.Emit(ctx, audit.Event{
			Timestamp: requestcontext.Now(ctx),
			Tenant:    tenant,
			ContactID: contactID,
			Actor:     requestcontext.Actor(ctx),
			Action:    audit.ActionOptOutCancelled,
			Channel:   string(ch),
			Result:    audit.ResultPass,
			Reason:    "superseded by new consent grant",
			Detail:    fmt.Sprintf("cancelled %d queue entries", len(cancelled)),
		})
		if err != nil {
			return cancelled, fmt.Errorf("record cancellation audit (entries cancelled): %w", err)
		}
	}
	return cancelled, nil
}

// Entry returns one queue entry with its computed deadline label.
func (s *Service) Entry(ctx context.Context, entryID uuid.UUID) (*PendingEntry, error) {
	entry, err := s.store.Get(ctx, entryID)
	if err != nil {
		return nil, err
	}
	return &PendingEntry{
		Entry:          *entry,
		DeadlineStatus: entry.DeadlineStatusAt(requestcontext.Now(ctx)),
	}, nil
}

// PendingEntries lists open entries for the tenant, oldest first, each with a
// deadline label computed at read time.
func (s *Service) PendingEntries(ctx context.Context, tenant string) ([]PendingEntry, error) {
	entries, err := s.store.ListPending(ctx, tenant)
	if err != nil {
		return nil, fmt.Errorf("list pending opt-outs: %w", err)
	}
	now := requestcontext.Now(ctx)
	out := make([]PendingEntry, 0, len(entries))
	for _, entry := range entries {
		out = append(out, PendingEntry{
			Entry:          entry,
			DeadlineStatus: entry.DeadlineStatusAt(now),
		})
	}
	return out, nil
}
