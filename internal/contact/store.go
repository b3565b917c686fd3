package contact

import "context"

// Store is the engine's window onto the contact record store. Implementations
// must scope every write to the compliance-owned columns.
//
// Error contract: methods return sentinel.ErrNotFound (wrapped) when the
// contact does not exist and wrapped infrastructure errors otherwise.
type Store interface {
	Get(ctx context.Context, tenant, contactID string) (*Record, error)
	// FindByPhone looks a contact up by canonical phone number.
	FindByPhone(ctx context.Context, tenant, canonicalPhone string) (*Record, error)

	// SetChannelOptOut sets the opt-out fields on a channel and clears any
	// consent grant on the same channel in the same write.
	SetChannelOptOut(ctx context.Context, tenant, contactID string, ch Channel, update OptOutUpdate) error
	// SetChannelConsent writes consent proof to a channel and clears any
	// opt-out flag and metadata on the same channel in the same write.
	SetChannelConsent(ctx context.Context, tenant, contactID string, ch Channel, proof Proof) error

	// SetDNCStatus mirrors a registry listing onto the contact.
	SetDNCStatus(ctx context.Context, tenant, contactID, status, source string) error
	// ClearDNCStatusIf clears the mirror only when its current source matches,
	// so an internal removal never clobbers a federal or state listing.
	ClearDNCStatusIf(ctx context.Context, tenant, contactID, ifSource string) error
}
