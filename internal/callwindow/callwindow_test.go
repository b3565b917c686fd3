package callwindow

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// instantAt builds a UTC instant that corresponds to the given wall-clock
// time in tz, so each case states the local time it is actually testing.
func instantAt(t *testing.T, tz string, hour, minute int) time.Time {
	t.Helper()
	loc, err := time.LoadLocation(tz)
	require.NoError(t, err)
	return time.Date(2026, time.March, 4, hour, minute, 0, 0, loc)
}

func TestCheckBoundaries(t *testing.T) {
	const tz = "America/New_York"
	tests := []struct {
		name    string
		hour    int
		minute  int
		allowed bool
	}{
		{"one minute before opening", 8, 59, false},
		{"exactly at opening", 9, 0, true},
		{"midday", 13, 30, true},
		{"last permitted minute", 19, 59, true},
		{"exactly at closing", 20, 0, false},
		{"late evening", 22, 15, false},
		{"early morning", 6, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := Check(instantAt(t, tz, tt.hour, tt.minute), tz)
			assert.Equal(t, tt.allowed, result.Allowed)
			assert.Equal(t, tz, result.Timezone)
			assert.Equal(t, tt.hour, result.LocalHour)
		})
	}
}

func TestCheckConvertsToLocalZone(t *testing.T) {
	// 23:30 UTC is 15:30 in Los Angeles (standard time): blocked by the naive
	// clock, permitted by the correct one.
	at := time.Date(2026, time.March, 4, 23, 30, 0, 0, time.UTC)
	result := Check(at, "America/Los_Angeles")
	assert.True(t, result.Allowed)
	assert.Equal(t, 15, result.LocalHour)
	assert.Equal(t, "15:30", result.LocalTime)
}

func TestCheckFailsClosedOnBadTimezone(t *testing.T) {
	noon := time.Date(2026, time.March, 4, 12, 0, 0, 0, time.UTC)

	for _, tz := range []string{"", "Not/AZone", "EST5EDTX"} {
		t.Run("tz "+tz, func(t *testing.T) {
			result := Check(noon, tz)
			assert.False(t, result.Allowed)
			assert.Equal(t, ReasonUnknownTimezone, result.Reason)
			assert.Equal(t, -1, result.LocalHour)
		})
	}
}
