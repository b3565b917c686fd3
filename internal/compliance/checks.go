package compliance

import (
	"context"
	"fmt"

	"github.com/jaredmiller23/roofing-saas-sub003/internal/callwindow"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/contact"
	"github.com/jaredmiller23/roofing-saas-sub003/internal/dnc"
	"github.com/jaredmiller23/roofing-saas-sub003/pkg/requestcontext"
)

type outcomeStatus int

const (
	statusPass outcomeStatus = iota
	statusFail
	statusWarn
)

// checkOutcome is one rule's verdict. Detail carries audit-only context such
// as the mirror-staleness note; it never reaches the caller-facing reason.
type checkOutcome struct {
	status    outcomeStatus
	reason    string
	detail    string
	timezone  string
	localTime string
	source    string
}

// checkState is the shared evaluation context threaded through the chain.
// Contact is nil for numbers with no CRM record; checks must tolerate that.
type checkState struct {
	req       Request
	canonical string
	contact   *contact.Record
}

// namedCheck pairs a rule with its label for audit entries and metrics.
type namedCheck struct {
	name string
	run  func(ctx context.Context, st *checkState) (checkOutcome, error)
}

// checkChain returns the ordered rules. Order is mandated: the standing
// opt-out and registry checks come before time-of-day, so a revoked number is
// reported as revoked even outside calling hours.
func (s *Service) checkChain() []namedCheck {
	return []namedCheck{
		{CheckOptOut, s.checkOptOut},
		{CheckDNC, s.checkDNC},
		{CheckCallingHours, s.checkCallingHours},
		{CheckConsent, s.checkConsent},
	}
}

func (s *Service) checkOptOut(_ context.Context, st *checkState) (checkOutcome, error) {
	if st.contact == nil {
		return checkOutcome{status: statusPass}, nil
	}
	state := st.contact.ChannelState(st.req.Channel)
	if state.OptedOut {
		return checkOutcome{
			status: statusFail,
			reason: fmt.Sprintf("contact has opted out of %s", st.req.Channel),
			source: state.OptOutSource,
		}, nil
	}
	return checkOutcome{status: statusPass}, nil
}

// checkDNC blocks when either the registry or the contact's mirrored status
// says listed. The union is deliberate: when the two disagree one of them is
// stale, and a stale data path must widen blocking, never narrow it. The
// disagreement itself is recorded so the mirror can be repaired.
func (s *Service) checkDNC(ctx context.Context, st *checkState) (checkOutcome, error) {
	listing, err := s.dnc.IsListed(ctx, st.canonical, st.req.Tenant)
	if err != nil {
		return checkOutcome{}, fmt.Errorf("dnc registry lookup: %w", err)
	}

	mirrorListed := st.contact != nil && st.contact.DNCStatus == dnc.MirrorStatusListed
	detail := ""
	if listing.Listed != mirrorListed && st.contact != nil {
		detail = "mirror_stale"
	}

	switch {
	case listing.Listed:
		return checkOutcome{
			status: statusFail,
			reason: listing.Reason,
			detail: detail,
			source: string(listing.Source),
		}, nil
	case mirrorListed:
		return checkOutcome{
			status: statusFail,
			reason: "contact record marked do-not-call",
			detail: detail,
			source: st.contact.DNCSource,
		}, nil
	}
	return checkOutcome{status: statusPass, detail: detail}, nil
}

func (s *Service) checkCallingHours(ctx context.Context, st *checkState) (checkOutcome, error) {
	tz := s.defaultTimezone
	if st.contact != nil && st.contact.Timezone != "" {
		tz = st.contact.Timezone
	}
	result := callwindow.Check(requestcontext.Now(ctx), tz)
	outcome := checkOutcome{
		status:    statusPass,
		timezone:  result.Timezone,
		localTime: result.LocalTime,
	}
	if !result.Allowed {
		outcome.status = statusFail
		outcome.reason = result.Reason
	}
	return outcome, nil
}

// checkConsent is advisory only. Calls to numbers without Prior Express
// Written Consent may still be lawful (manual dials, established business
// relationship), so a missing grant warns rather than blocks.
func (s *Service) checkConsent(_ context.Context, st *checkState) (checkOutcome, error) {
	if st.contact == nil {
		return checkOutcome{
			status: statusWarn,
			reason: "no contact record, consent standing unknown",
		}, nil
	}
	if st.contact.ChannelState(st.req.Channel).Consent != contact.ConsentExplicit {
		return checkOutcome{
			status: statusWarn,
			reason: fmt.Sprintf("no prior express written consent on file for %s", st.req.Channel),
		}, nil
	}
	return checkOutcome{status: statusPass}, nil
}
