package optout

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDeadline(t *testing.T) {
	tests := []struct {
		name        string
		requestedAt time.Time
		days        int
		want        time.Time
	}{
		{
			// Mon Jun 1 2026 + 10 business days = Mon Jun 15 (two weekends in
			// between, 14 calendar days).
			name:        "monday request spans two weekends",
			requestedAt: time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC),
			days:        10,
			want:        time.Date(2026, time.June, 15, 10, 0, 0, 0, time.UTC),
		},
		{
			// Fri Jun 5 + 10 business days = Fri Jun 19.
			name:        "friday request",
			requestedAt: time.Date(2026, time.June, 5, 16, 30, 0, 0, time.UTC),
			days:        10,
			want:        time.Date(2026, time.June, 19, 16, 30, 0, 0, time.UTC),
		},
		{
			// Sat Jun 6: the count starts from the next business day.
			name:        "weekend request",
			requestedAt: time.Date(2026, time.June, 6, 9, 0, 0, 0, time.UTC),
			days:        10,
			want:        time.Date(2026, time.June, 19, 9, 0, 0, 0, time.UTC),
		},
		{
			name:        "single business day over a weekend",
			requestedAt: time.Date(2026, time.June, 5, 12, 0, 0, 0, time.UTC),
			days:        1,
			want:        time.Date(2026, time.June, 8, 12, 0, 0, 0, time.UTC),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Deadline(tt.requestedAt, tt.days)
			assert.True(t, got.Equal(tt.want), "got %s, want %s", got, tt.want)
			wd := got.Weekday()
			assert.NotEqual(t, time.Saturday, wd)
			assert.NotEqual(t, time.Sunday, wd)
		})
	}
}

func TestFollowUpWindow(t *testing.T) {
	requestedAt := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)

	assert.True(t, WithinFollowUpWindow(requestedAt.Add(9*time.Minute), requestedAt))
	assert.True(t, WithinFollowUpWindow(requestedAt.Add(10*time.Minute), requestedAt),
		"window end is inclusive")
	assert.False(t, WithinFollowUpWindow(requestedAt.Add(10*time.Minute+time.Second), requestedAt))

	assert.Equal(t, requestedAt.Add(FollowUpWindow), FollowUpWindowEnd(requestedAt))
}

func TestDeadlineStatusAt(t *testing.T) {
	requestedAt := time.Date(2026, time.June, 1, 10, 0, 0, 0, time.UTC)
	entry := Entry{
		Status:      StatusPending,
		RequestedAt: requestedAt,
		Deadline:    Deadline(requestedAt, ProcessingBusinessDays),
	}

	assert.Equal(t, DeadlineOK, entry.DeadlineStatusAt(requestedAt.Add(24*time.Hour)))
	assert.Equal(t, DeadlineApproaching, entry.DeadlineStatusAt(entry.Deadline.Add(-ApproachingWindow)))
	assert.Equal(t, DeadlineOverdue, entry.DeadlineStatusAt(entry.Deadline.Add(time.Minute)))

	entry.Status = StatusProcessed
	assert.Equal(t, DeadlineOK, entry.DeadlineStatusAt(entry.Deadline.Add(time.Hour)),
		"terminal entries have no open deadline")
}
