package dnc

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/audit"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/phone"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/platform/sentinel"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

// MirrorStatusListed is the value mirrored onto a contact's DNC status field.
const MirrorStatusListed = "listed"

// Service answers listing queries and manages internal-source entries. The
// registry table is the source of truth; the contact mirror and the redis
// cache are derived conveniences.
type Service struct {
	store    Store
	cache    ListingCache // nil disables caching
	contacts contact.Store
	auditor  *audit.Publisher
	logger   *slog.Logger
}

func NewService(store Store, contacts contact.Store, auditor *audit.Publisher, opts ...ServiceOption) *Service {
	s := &Service{store: store, contacts: contacts, auditor: auditor}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ServiceOption configures the Service.
type ServiceOption func(*Service)

// WithCache enables the listing cache.
func WithCache(cache ListingCache) ServiceOption {
	return func(s *Service) { s.cache = cache }
}

// WithLogger sets a logger.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) { s.logger = logger }
}

// IsListed reports whether the number is currently listed by any source for
// the tenant. Cache errors degrade silently to a store read; store errors
// propagate so the orchestrator can fail closed.
func (s *Service) IsListed(ctx context.Context, phoneNumber, tenant string) (Listing, error) {
	fingerprint := phone.Fingerprint(phone.Canonicalize(phoneNumber))
	now := requestcontext.Now(ctx)

	if s.cache != nil {
		source, hit, err := s.cache.Get(ctx, tenant, fingerprint)
		if err != nil {
			if s.logger != nil {
				s.logger.DebugContext(ctx, "dnc cache read failed", "error", err)
			}
		} else if hit {
			return Listing{
				Listed: true,
				Source: source,
				Reason: fmt.Sprintf("number listed on the %s registry", source),
			}, nil
		}
	}

	entries, err := s.store.FindByFingerprint(ctx, tenant, fingerprint)
	if err != nil {
		return Listing{}, fmt.Errorf("dnc lookup: %w", err)
	}
	for _, entry := range entries {
		if !entry.ActiveAt(now) {
			continue
		}
		if s.cache != nil {
			if err := s.cache.Set(ctx, tenant, fingerprint, entry.Source); err != nil && s.logger != nil {
				s.logger.DebugContext(ctx, "dnc cache write failed", "error", err)
			}
		}
		listedAt := entry.ListedAt
		return Listing{
			Listed:   true,
			Source:   entry.Source,
			ListedAt: &listedAt,
			Reason:   fmt.Sprintf("number listed on the %s registry", entry.Source),
		}, nil
	}
	return Listing{}, nil
}

// AddInternal records an internally sourced do-not-call entry. Idempotent: a
// duplicate add is a successful no-op. The listing is also mirrored onto the
// matching contact record, if any, for display without a registry read.
func (s *Service) AddInternal(ctx context.Context, phoneNumber, tenant, reason string) error {
	canonical := phone.Canonicalize(phoneNumber)
	fingerprint := phone.Fingerprint(canonical)
	now := requestcontext.Now(ctx)

	created, err := s.store.Upsert(ctx, Entry{
		Tenant:      tenant,
		Fingerprint: fingerprint,
		Phone:       canonical,
		AreaCode:    phone.AreaCode(canonical),
		Source:      SourceInternal,
		Reason:      reason,
		ListedAt:    now,
	})
	if err != nil {
		return fmt.Errorf("add internal dnc entry: %w", err)
	}

	s.invalidateCache(ctx, tenant, fingerprint)
	s.mirrorListing(ctx, tenant, canonical)

	if created && s.auditor != nil {
		s.auditor.EmitBestEffort(ctx, audit.Event{
			Timestamp:        now,
			Tenant:           tenant,
			Actor:            requestcontext.Actor(ctx),
			Action:           audit.ActionDNCAdded,
			Result:           audit.ResultPass,
			Reason:           reason,
			Source:           string(SourceInternal),
			PhoneFingerprint: fingerprint,
		})
	}
	return nil
}

// RemoveInternal soft-deletes internal-source rows for the number. Federal
// and state rows are untouched; only the next authoritative sync import may
// remove those. The contact mirror is cleared only when it was set by the
// internal source.
func (s *Service) RemoveInternal(ctx context.Context, phoneNumber, tenant string) error {
	canonical := phone.Canonicalize(phoneNumber)
	fingerprint := phone.Fingerprint(canonical)

	if err := s.store.SoftDelete(ctx, tenant, fingerprint, SourceInternal); err != nil {
		return fmt.Errorf("remove internal dnc entry: %w", err)
	}

	s.invalidateCache(ctx, tenant, fingerprint)

	record, err := s.contacts.FindByPhone(ctx, tenant, canonical)
	if err == nil {
		if err := s.contacts.ClearDNCStatusIf(ctx, tenant, record.ID, string(SourceInternal)); err != nil && s.logger != nil {
			s.logger.ErrorContext(ctx, "clear contact dnc mirror failed",
				"tenant", tenant, "contact_id", record.ID, "error", err)
		}
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		if s.logger != nil {
			s.logger.ErrorContext(ctx, "contact lookup for dnc mirror failed",
				"tenant", tenant, "error", err)
		}
	}

	if s.auditor != nil {
		s.auditor.EmitBestEffort(ctx, audit.Event{
			Timestamp:        requestcontext.Now(ctx),
			Tenant:           tenant,
			Actor:            requestcontext.Actor(ctx),
			Action:           audit.ActionDNCRemoved,
			Result:           audit.ResultPass,
			Source:           string(SourceInternal),
			PhoneFingerprint: fingerprint,
		})
	}
	return nil
}

// Stats returns active-entry counts per source.
func (s *Service) Stats(ctx context.Context, tenant string) (map[Source]int, error) {
	counts, err := s.store.CountBySource(ctx, tenant, requestcontext.Now(ctx))
	if err != nil {
		return nil, fmt.Errorf("dnc stats: %w", err)
	}
	return counts, nil
}

func (s *Service) invalidateCache(ctx context.Context, tenant, fingerprint string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, tenant, fingerprint); err != nil && s.logger != nil {
		s.logger.DebugContext(ctx, "dnc cache invalidate failed", "error", err)
	}
}

func (s *Service) mirrorListing(ctx context.Context, tenant, canonical string) {
	record, err := s.contacts.FindByPhone(ctx, tenant, canonical)
	if err != nil {
		if !errors.Is(err, sentinel.ErrNotFound) && s.logger != nil {
			s.logger.ErrorContext(ctx, "contact lookup for dnc mirror failed",
				"tenant", tenant, "error", err)
		}
		return
	}
	if err := s.contacts.SetDNCStatus(ctx, tenant, record.ID, MirrorStatusListed, string(SourceInternal)); err != nil && s.logger != nil {
		s.logger.ErrorContext(ctx, "set contact dnc mirror failed",
			"tenant", tenant, "contact_id", record.ID, "error", err)
	}
}

// ImportEntry upserts one externally synced entry; used by the sync tracker's
// batch import. Returns whether a new active row was created.
func (s *Service) ImportEntry(ctx context.Context, tenant string, source Source, rawNumber string, listedAt time.Time, expiresAt *time.Time) (bool, error) {
	canonical := phone.Canonicalize(rawNumber)
	fingerprint := phone.Fingerprint(canonical)
	created, err := s.store.Upsert(ctx, Entry{
		Tenant:      tenant,
		Fingerprint: fingerprint,
		Phone:       canonical,
		AreaCode:    phone.AreaCode(canonical),
		Source:      source,
		ListedAt:    listedAt,
		ExpiresAt:   expiresAt,
	})
	if err != nil {
		return false, err
	}
	if created {
		s.invalidateCache(ctx, tenant, fingerprint)
	}
	return created, nil
}
