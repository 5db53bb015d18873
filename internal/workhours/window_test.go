package workhours

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(day, hour, minute int) time.Time {
	return time.Date(2025, time.June, day, hour, minute, 0, 0, time.UTC)
}

func assertSameInstant(t *testing.T, want, got time.Time) {
	t.Helper()
	assert.Truef(t, want.Equal(got), "want %s, got %s", want, got)
}

func defaultWindow(t *testing.T) Window {
	t.Helper()
	w, err := NewWindow(7, 18, time.UTC)
	require.NoError(t, err)
	return w
}

func TestNewWindowRejectsBadHours(t *testing.T) {
	for _, hours := range [][2]int{{18, 7}, {9, 9}, {-1, 10}, {7, 25}} {
		_, err := NewWindow(hours[0], hours[1], time.UTC)
		assert.Error(t, err, "hours %v", hours)
	}
	w, err := NewWindow(0, 24, nil)
	require.NoError(t, err)
	assert.Equal(t, time.UTC, w.Location)
}

func TestIsWorkingInstant(t *testing.T) {
	w := defaultWindow(t)
	tests := []struct {
		name string
		at   time.Time
		want bool
	}{
		{"window start is inside", at(10, 7, 0), true},
		{"mid morning", at(10, 10, 30), true},
		{"last minute", at(10, 17, 59), true},
		{"window end is outside", at(10, 18, 0), false},
		{"before start", at(10, 6, 59), false},
		{"night", at(10, 23, 0), false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, w.IsWorkingInstant(tc.at))
		})
	}
}

func TestIsWorkingInstantUsesWindowLocation(t *testing.T) {
	ist := time.FixedZone("IST", 5*3600+1800)
	w, err := NewWindow(7, 18, ist)
	require.NoError(t, err)

	// 02:00 UTC is 07:30 IST.
	assert.True(t, w.IsWorkingInstant(time.Date(2025, time.June, 10, 2, 0, 0, 0, time.UTC)))
	// 13:00 UTC is 18:30 IST.
	assert.False(t, w.IsWorkingInstant(time.Date(2025, time.June, 10, 13, 0, 0, 0, time.UTC)))
}

func TestDayBoundaries(t *testing.T) {
	w := defaultWindow(t)
	ref := time.Date(2025, time.June, 10, 14, 23, 45, 99, time.UTC)

	assertSameInstant(t, at(10, 7, 0), w.DayStart(ref))
	assertSameInstant(t, at(10, 18, 0), w.DayEnd(ref))
	assertSameInstant(t, at(11, 7, 0), w.NextWorkingDayStart(ref))

	monthEnd := time.Date(2025, time.June, 30, 20, 0, 0, 0, time.UTC)
	assertSameInstant(t, time.Date(2025, time.July, 1, 7, 0, 0, 0, time.UTC), w.NextWorkingDayStart(monthEnd))
}

func TestAdvance(t *testing.T) {
	w := defaultWindow(t)
	tests := []struct {
		name     string
		from     time.Time
		duration time.Duration
		want     time.Time
	}{
		{"inside window", at(10, 10, 0), 2 * time.Hour, at(10, 12, 0)},
		{"lands exactly on window end", at(10, 16, 0), 2 * time.Hour, at(10, 18, 0)},
		{"crosses day boundary", at(10, 17, 0), 2 * time.Hour, at(11, 8, 0)},
		{"starts after window end", at(10, 20, 0), 2 * time.Hour, at(11, 9, 0)},
		{"starts before window start", at(10, 5, 0), 30 * time.Minute, at(10, 7, 30)},
		{"spans multiple days", at(10, 17, 0), 20 * time.Hour, at(12, 15, 0)},
		{"zero duration", at(10, 20, 0), 0, at(10, 20, 0)},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assertSameInstant(t, tc.want, w.Advance(tc.from, tc.duration))
		})
	}
}

func TestAdvanceTreatsWeekendsLikeWeekdays(t *testing.T) {
	w := defaultWindow(t)
	// 2025-06-13 is a Friday.
	friday := time.Date(2025, time.June, 13, 17, 30, 0, 0, time.UTC)
	assertSameInstant(t, time.Date(2025, time.June, 14, 8, 0, 0, 0, time.UTC), w.Advance(friday, 90*time.Minute))
}
