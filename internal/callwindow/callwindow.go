// Package callwindow validates the federally mandated calling-hours window.
// Pure domain logic - no I/O, no side effects; the instant under test is
// always injected.
package callwindow

import (
	"fmt"
	"time"
)

// The permitted local calling window is 9:00 inclusive to 20:00 exclusive.
// These are statutory values, not configuration.
const (
	StartHour = 9
	EndHour   = 20
)

// Reasons distinguish the two blocked cases in the audit trail.
const (
	ReasonWithinWindow    = "within permitted calling hours"
	ReasonOutsideWindow   = "outside permitted calling hours (9:00-20:00 local)"
	ReasonUnknownTimezone = "unknown or invalid timezone"
)

// Result reports the calling-hours verdict with the local-time context the
// audit log records.
type Result struct {
	Allowed   bool
	Reason    string
	Timezone  string
	LocalTime string
	LocalHour int
}

// Check converts the instant to wall-clock time in tz and tests it against
// the permitted window. An unparseable timezone fails closed: a bad zone
// must block the call, not silently default to a permissive one.
func Check(at time.Time, tz string) Result {
	loc, err := time.LoadLocation(tz)
	if err != nil || tz == "" {
		return Result{
			Allowed:   false,
			Reason:    ReasonUnknownTimezone,
			Timezone:  tz,
			LocalHour: -1,
		}
	}

	local := at.In(loc)
	hour := local.Hour()
	result := Result{
		Timezone:  tz,
		LocalTime: local.Format("15:04"),
		LocalHour: hour,
	}
	if hour >= StartHour && hour < EndHour {
		result.Allowed = true
		result.Reason = ReasonWithinWindow
		return result
	}
	result.Reason = fmt.Sprintf("%s, local time %s", ReasonOutsideWindow, result.LocalTime)
	return result
}
