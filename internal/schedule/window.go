// Package schedule holds the quiet-hours policy: no automated send may go
// out between 21:00 and 09:00 in the tenant-facing zone. All math is done
// in zone-aware civil time so daylight-saving transitions land on the
// correct wall-clock hour.
package schedule

import (
	"fmt"
	"time"
)

// Window is the quiet-hours policy. Sending is blocked when the local hour
// is >= Start or < End; Start/End are wall-clock hours in Location.
type Window struct {
	Location *time.Location
	Start    int // quiet hours begin, inclusive (21)
	End      int // quiet hours end, exclusive (9)
}

// DefaultZone matches the product's customer base.
const DefaultZone = "America/New_York"

// NewWindow loads the zone and validates the hour bounds.
func NewWindow(zone string, start, end int) (*Window, error) {
	if zone == "" {
		zone = DefaultZone
	}
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return nil, fmt.Errorf("load quiet-hours zone %q: %w", zone, err)
	}
	if start < 0 || start > 23 || end < 0 || end > 23 || start <= end {
		return nil, fmt.Errorf("invalid quiet hours %d-%d", start, end)
	}
	return &Window{Location: loc, Start: start, End: end}, nil
}

// MustWindow is NewWindow for static defaults.
func MustWindow(zone string, start, end int) *Window {
	w, err := NewWindow(zone, start, end)
	if err != nil {
		panic(err)
	}
	return w
}

// Blocked reports whether now falls inside quiet hours.
func (w *Window) Blocked(now time.Time) bool {
	h := now.In(w.Location).Hour()
	return h >= w.Start || h < w.End
}

// NextAllowed returns the next instant at which sending is permitted. When
// now is already outside quiet hours it is returned unchanged. Inside quiet
// hours the result is End o'clock on the same civil day for the early-
// morning half, and End o'clock the following civil day for the late-night
// half. time.Date normalizes through DST gaps so the returned instant is
// always valid.
func (w *Window) NextAllowed(now time.Time) time.Time {
	local := now.In(w.Location)
	h := local.Hour()

	switch {
	case h < w.End:
		return time.Date(local.Year(), local.Month(), local.Day(), w.End, 0, 0, 0, w.Location)
	case h >= w.Start:
		next := local.AddDate(0, 0, 1)
		return time.Date(next.Year(), next.Month(), next.Day(), w.End, 0, 0, 0, w.Location)
	default:
		return now
	}
}

// Clamp pushes t to the next allowed instant when it falls inside quiet
// hours, used when a computed next fire time would land overnight.
func (w *Window) Clamp(t time.Time) time.Time {
	if w.Blocked(t) {
		return w.NextAllowed(t)
	}
	return t
}
