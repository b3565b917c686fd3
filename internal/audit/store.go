package audit

import "context"

// Store persists audit events. Append-only by contract: implementations
// expose no update or delete path.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListByContact(ctx context.Context, tenant, contactID string) ([]Event, error)
	ListByTenant(ctx context.Context, tenant string, limit int) ([]Event, error)
	ListByAction(ctx context.Context, tenant string, action Action) ([]Event, error)
}
