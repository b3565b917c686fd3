// Package compliance orchestrates the pre-contact decision: may this tenant
// call or text this number right now. It runs an ordered chain of checks,
// short-circuits on the first hard failure, and writes exactly one audit
// entry per decision.
package compliance

import (
	"time"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
)

// Check names identify which rule produced a verdict; they appear in audit
// entries and metric labels.
const (
	CheckOptOut       = "opt_out"
	CheckDNC          = "dnc_registry"
	CheckCallingHours = "calling_hours"
	CheckConsent      = "consent"
	CheckInternal     = "internal_error"
)

// ReasonInternalError is the generic reason attached to fail-closed verdicts
// caused by infrastructure faults. The underlying error goes to logs, never
// into the decision a dialer might display.
const ReasonInternalError = "compliance check unavailable"

// Request asks whether one contact attempt is permitted.
type Request struct {
	Tenant    string
	Phone     string // raw; canonicalized internally
	ContactID string // optional; resolved by phone when empty
	Channel   contact.Channel
}

// Warning is a non-blocking finding attached to an allowed decision.
type Warning struct {
	Check  string
	Reason string
}

// Decision is the verdict for one contact attempt.
type Decision struct {
	Allowed   bool
	Check     string // failing check when blocked, empty when allowed
	Reason    string
	Warnings  []Warning
	Timezone  string // zone used for the calling-hours evaluation
	LocalTime string
	CheckedAt time.Time
}
