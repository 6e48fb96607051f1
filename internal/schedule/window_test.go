package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func TestNewWindowValidation(t *testing.T) {
	_, err := NewWindow("Not/AZone", 21, 9)
	assert.Error(t, err)

	_, err = NewWindow("America/New_York", 9, 21)
	assert.Error(t, err, "start must be after end for an overnight window")

	w, err := NewWindow("", 21, 9)
	require.NoError(t, err)
	assert.Equal(t, "America/New_York", w.Location.String())
}

func TestBlocked(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	cases := []struct {
		name    string
		hour    int
		blocked bool
	}{
		{"midnight", 0, true},
		{"early morning", 5, true},
		{"just before open", 8, true},
		{"opens at nine", 9, false},
		{"midday", 12, false},
		{"just before quiet", 20, false},
		{"quiet starts", 21, true},
		{"late evening", 23, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			now := time.Date(2026, 6, 15, tc.hour, 30, 0, 0, loc)
			assert.Equal(t, tc.blocked, w.Blocked(now))
		})
	}
}

func TestNextAllowedEveningRollsToNextDay(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	now := time.Date(2026, 6, 15, 22, 0, 0, 0, loc)
	next := w.NextAllowed(now)

	local := next.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 16, local.Day())
}

func TestNextAllowedMorningSameDay(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	now := time.Date(2026, 6, 15, 3, 0, 0, 0, loc)
	next := w.NextAllowed(now)

	local := next.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 15, local.Day())
}

func TestNextAllowedOpenReturnsNow(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	now := time.Date(2026, 6, 15, 14, 0, 0, 0, loc)
	assert.True(t, w.NextAllowed(now).Equal(now))
}

func TestNextAllowedAcrossSpringForward(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	// 2026-03-07 22:00 EST; DST begins overnight, so 09:00 on the 8th is EDT.
	now := time.Date(2026, 3, 7, 22, 0, 0, 0, loc)
	next := w.NextAllowed(now)

	local := next.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 8, local.Day())
	// 22:00 to 09:00 is 11 civil hours, but the skipped DST hour makes the
	// absolute gap 10h. A fixed-offset implementation would report 11h.
	assert.Equal(t, 10*time.Hour, next.Sub(now))
}

func TestNextAllowedAcrossFallBack(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	// 2026-10-31 22:00 EDT; clocks fall back overnight to EST.
	now := time.Date(2026, 10, 31, 22, 0, 0, 0, loc)
	next := w.NextAllowed(now)

	local := next.In(loc)
	assert.Equal(t, 9, local.Hour())
	assert.Equal(t, 1, local.Day())
	assert.Equal(t, time.November, local.Month())
	assert.Equal(t, 12*time.Hour, next.Sub(now))
}

func TestClamp(t *testing.T) {
	loc := newYork(t)
	w := MustWindow("America/New_York", 21, 9)

	open := time.Date(2026, 6, 15, 10, 0, 0, 0, loc)
	assert.True(t, w.Clamp(open).Equal(open))

	blocked := time.Date(2026, 6, 15, 23, 0, 0, 0, loc)
	clamped := w.Clamp(blocked).In(loc)
	assert.Equal(t, 9, clamped.Hour())
	assert.Equal(t, 16, clamped.Day())
}
