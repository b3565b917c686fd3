// Package dnc holds do-not-call registry entries from multiple sources and
// answers whether a number is currently listed.
package dnc

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Source identifies which registry listed a number.
type Source string

const (
	SourceFederal  Source = "federal"
	SourceInternal Source = "internal"
)

// StateSource builds the source label for a state registry, e.g. "state_tn".
func StateSource(state string) Source {
	return Source("state_" + strings.ToLower(state))
}

// External reports whether the source is refreshed by batch sync and thus
// subject to the 31-day staleness deadline. The internal source is written
// continuously by opt-out processing and is never stale by definition.
func (s Source) External() bool {
	return s != SourceInternal
}

// Entry is one tenant-scoped registry row. The canonical number is stored
// alongside its fingerprint because contact cross-referencing needs it, but
// the fingerprint is the primary lookup key.
type Entry struct {
	ID          uuid.UUID
	Tenant      string
	Fingerprint string
	Phone       string
	AreaCode    string
	Source      Source
	Reason      string
	ListedAt    time.Time
	ExpiresAt   *time.Time
	DeletedAt   *time.Time
}

// ActiveAt reports whether the entry still blocks contact at the given
// instant: not soft-deleted and not past its expiration.
func (e Entry) ActiveAt(now time.Time) bool {
	if e.DeletedAt != nil {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// Listing is the decision-facing answer to "is this number listed".
type Listing struct {
	Listed   bool
	Source   Source
	ListedAt *time.Time
	Reason   string
}
