// Package contact projects the externally owned CRM contact record down to
// the compliance attributes this engine is allowed to read and write. The
// engine never touches unrelated contact fields; the store interface exposes
// only field-scoped mutations for the columns it owns.
package contact

import "time"

// Channel identifies an outbound contact channel with independent consent and
// opt-out state.
type Channel string

const (
	ChannelCall Channel = "call"
	ChannelSMS  Channel = "sms"
)

// Valid reports whether the channel is one the engine manages.
func (c Channel) Valid() bool {
	return c == ChannelCall || c == ChannelSMS
}

// ConsentState is the live consent standing on a channel.
type ConsentState string

const (
	ConsentNone     ConsentState = "none"
	ConsentExplicit ConsentState = "explicit"
)

// CaptureMethod records how consent proof was collected.
type CaptureMethod string

const (
	MethodWebForm    CaptureMethod = "web_form"
	MethodVerbal     CaptureMethod = "verbal"
	MethodWritten    CaptureMethod = "written"
	MethodSMS        CaptureMethod = "sms"
	MethodESignature CaptureMethod = "e_signature"
)

// Proof is the Prior Express Written Consent evidence attached to a channel.
// DisclosedText is stored verbatim: the form version's wording may change
// later, and litigation response needs the exact text the person saw.
type Proof struct {
	Method           CaptureMethod
	CapturedAt       time.Time
	CapturedBy       string
	IPAddress        string
	UserAgent        string
	UserAgentSummary string
	FormVersion      string
	DisclosedText    string
}

// ChannelState holds the per-channel compliance attributes. Consent and
// opt-out are mutually exclusive live states; the store-level mutations
// enforce that granting one clears the other.
type ChannelState struct {
	OptedOut     bool
	OptOutAt     *time.Time
	OptOutReason string
	OptOutSource string
	Consent      ConsentState
	Proof        *Proof
}

// Record is the compliance projection of a contact.
type Record struct {
	ID       string
	Tenant   string
	Phone    string // canonical 11-digit form
	Timezone string // IANA name; empty means unknown
	Call     ChannelState
	SMS      ChannelState
	// DNCStatus mirrors the registry verdict for fast display. It is a
	// denormalized cache, never authoritative; the registry table is the
	// source of truth.
	DNCStatus string
	DNCSource string
}

// ChannelState returns the state for the given channel. A zero Consent field
// normalizes to ConsentNone so callers never see an empty state.
func (r *Record) ChannelState(ch Channel) ChannelState {
	state := r.Call
	if ch == ChannelSMS {
		state = r.SMS
	}
	if state.Consent == "" {
		state.Consent = ConsentNone
	}
	return state
}

// OptOutUpdate is the field set written when an opt-out lands on a channel.
type OptOutUpdate struct {
	At     time.Time
	Reason string
	Source string
}
