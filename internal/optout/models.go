// Package optout turns an opt-out signal into an immediate do-not-call block
// plus a tracked processing deadline with a bounded one-time follow-up
// window.
package optout

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
)

// Statutory values: opt-outs must be honored within 10 business days, and a
// single confirmation message may be sent within 10 minutes of the request.
const (
	ProcessingBusinessDays = 10
	FollowUpWindow         = 10 * time.Minute
	// ApproachingWindow is the internal alerting horizon before a deadline.
	ApproachingWindow = 48 * time.Hour
)

// Follow-up rejections are distinct compliance failure modes and must stay
// distinguishable in the audit trail.
var (
	ErrFollowUpAlreadySent   = errors.New("follow-up already sent for this opt-out")
	ErrFollowUpWindowExpired = errors.New("follow-up window has expired")
	ErrEntryTerminal         = errors.New("opt-out entry is already terminal")
)

// Scope selects which channels an opt-out covers.
type Scope string

const (
	ScopeCall Scope = "call"
	ScopeSMS  Scope = "sms"
	ScopeBoth Scope = "both"
)

// Channels expands the scope into concrete channels.
func (s Scope) Channels() []contact.Channel {
	switch s {
	case ScopeCall:
		return []contact.Channel{contact.ChannelCall}
	case ScopeSMS:
		return []contact.Channel{contact.ChannelSMS}
	default:
		return []contact.Channel{contact.ChannelCall, contact.ChannelSMS}
	}
}

// Covers reports whether the scope includes the channel.
func (s Scope) Covers(ch contact.Channel) bool {
	for _, c := range s.Channels() {
		if c == ch {
			return true
		}
	}
	return false
}

// Signal is where the opt-out came from.
type Signal string

const (
	SignalSMSStop Signal = "sms_stop"
	SignalVerbal  Signal = "verbal"
	SignalWebForm Signal = "web_form"
	SignalEmail   Signal = "email"
	SignalManual  Signal = "manual"
	SignalIVR     Signal = "ivr"
)

// Status is the persisted queue-entry state. "Overdue" is deliberately not a
// Status: it is a reporting label computed on read, so detection never
// depends on a sweep having run.
type Status string

const (
	StatusPending      Status = "pending"
	StatusFollowUpSent Status = "follow_up_sent"
	StatusProcessed    Status = "processed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether the status accepts no further transitions.
func (s Status) Terminal() bool {
	return s == StatusProcessed || s == StatusCancelled
}

// DeadlineStatus is the read-time deadline label.
type DeadlineStatus string

const (
	DeadlineOK          DeadlineStatus = "ok"
	DeadlineApproaching DeadlineStatus = "approaching"
	DeadlineOverdue     DeadlineStatus = "overdue"
)

// Entry is one opt-out queue record.
type Entry struct {
	ID              uuid.UUID
	Tenant          string
	ContactID       string
	Phone           string // canonical
	Scope           Scope
	Source          Signal
	Reason          string
	RequestedAt     time.Time
	Deadline        time.Time
	FollowUpSentAt  *time.Time
	FollowUpMessage string
	ProcessedAt     *time.Time
	ProcessedBy     string
	Status          Status
	CreatedAt       time.Time
}

// DeadlineStatusAt computes the deadline label for an instant. Terminal
// entries report OK; their deadline obligations are settled.
func (e Entry) DeadlineStatusAt(now time.Time) DeadlineStatus {
	if e.Status.Terminal() {
		return DeadlineOK
	}
	if now.After(e.Deadline) {
		return DeadlineOverdue
	}
	if e.Deadline.Sub(now) <= ApproachingWindow {
		return DeadlineApproaching
	}
	return DeadlineOK
}

// PendingEntry pairs an entry with its computed deadline label.
type PendingEntry struct {
	Entry
	DeadlineStatus DeadlineStatus
}
