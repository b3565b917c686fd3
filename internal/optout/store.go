package optout

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
)

// Store persists opt-out queue entries.
//
// Error contract: Get returns sentinel.ErrNotFound (wrapped) for unknown IDs.
// MarkFollowUpSent and MarkProcessed are conditional writes enforced at the
// storage layer: two racing processes must not both succeed, so the condition
// lives in the write itself, never in an in-memory flag.
type Store interface {
	Create(ctx context.Context, entry Entry) error
	Get(ctx context.Context, entryID uuid.UUID) (*Entry, error)
	// MarkFollowUpSent stamps the follow-up exactly once. Returns
	// sentinel.ErrAlreadyUsed (wrapped) when a follow-up was already
	// recorded, sentinel.ErrInvalidState (wrapped) when the entry is
	// terminal.
	MarkFollowUpSent(ctx context.Context, entryID uuid.UUID, message string, at time.Time) error
	// MarkProcessed moves a non-terminal entry to processed. Returns
	// sentinel.ErrInvalidState (wrapped) when the entry is already terminal.
	MarkProcessed(ctx context.Context, entryID uuid.UUID, by string, at time.Time) error
	// CancelForChannel cancels non-terminal entries for the contact whose
	// scope covers the channel. When includeBoth is false, scope-"both"
	// entries are left alone (the other channel is still opted out). Returns
	// the IDs of the entries cancelled.
	CancelForChannel(ctx context.Context, tenant, contactID string, ch contact.Channel, includeBoth bool) ([]uuid.UUID, error)
	// ListPending returns non-terminal entries for the tenant, oldest first.
	ListPending(ctx context.Context, tenant string) ([]Entry, error)
}
