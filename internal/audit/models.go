// Package audit is the append-only compliance audit trail. One entry is
// written per check or state mutation, never updated and never deleted; the
// table is the artifact produced for legal defense.
package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action labels what the engine did.
type Action string

const (
	ActionComplianceCheck Action = "compliance_check"
	ActionConsentGranted  Action = "consent_granted"
	ActionConsentRevoked  Action = "consent_revoked"
	ActionOptOutReceived  Action = "opt_out_received"
	ActionOptOutFollowUp  Action = "opt_out_follow_up"
	ActionOptOutProcessed Action = "opt_out_processed"
	ActionOptOutCancelled Action = "opt_out_cancelled"
	ActionDNCAdded        Action = "dnc_added"
	ActionDNCRemoved      Action = "dnc_removed"
	ActionDNCImport       Action = "dnc_import"
)

// Result classifies the outcome recorded by an entry.
type Result string

const (
	ResultPass    Result = "pass"
	ResultFail    Result = "fail"
	ResultWarning Result = "warning"
)

// Event is one audit log entry. PhoneFingerprint carries the hashed number so
// entries are traceable without storing raw PII next to the verdict.
type Event struct {
	ID               uuid.UUID
	Timestamp        time.Time
	Tenant           string
	ContactID        string
	Actor            string
	Action           Action
	Channel          string
	CheckType        string
	Result           Result
	Reason           string
	Source           string
	Timezone         string
	Deadline         *time.Time
	PhoneFingerprint string
	Detail           string
	RequestID        string
}
