package optout

import "time"

// Deadline walks forward one calendar day at a time, skipping Saturday and
// Sunday, until businessDays non-weekend days have passed. Calendar-day math
// would produce a too-early deadline; the walk is deliberately unoptimized
// because correctness at weekend boundaries matters more than speed here.
func Deadline(requestedAt time.Time, businessDays int) time.Time {
	deadline := requestedAt
	counted := 0
	for counted < businessDays {
		deadline = deadline.AddDate(0, 0, 1)
		if wd := deadline.Weekday(); wd != time.Saturday && wd != time.Sunday {
			counted++
		}
	}
	return deadline
}

// FollowUpWindowEnd is the last instant a confirmation message may be sent.
func FollowUpWindowEnd(requestedAt time.Time) time.Time {
	return requestedAt.Add(FollowUpWindow)
}

// WithinFollowUpWindow reports whether a follow-up may still be sent at now.
func WithinFollowUpWindow(now, requestedAt time.Time) bool {
	return !now.After(FollowUpWindowEnd(requestedAt))
}
