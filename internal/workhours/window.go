// Package workhours does working-window time arithmetic for SLA deadlines.
//
// Every calendar day has the same window. Weekends and holidays are not
// skipped, so a Saturday accrues SLA time exactly like a Monday.
package workhours

import (
	"fmt"
	"time"
)

// Window is the daily working range [StartHour, EndHour) in a fixed location.
type Window struct {
	StartHour int
	EndHour   int
	Location  *time.Location
}

// NewWindow validates the hours and returns a Window. A nil location means UTC.
func NewWindow(startHour, endHour int, loc *time.Location) (Window, error) {
	if startHour < 0 || endHour > 24 || startHour >= endHour {
		return Window{}, fmt.Errorf("invalid working window %d-%d", startHour, endHour)
	}
	if loc == nil {
		loc = time.UTC
	}
	return Window{StartHour: startHour, EndHour: endHour, Location: loc}, nil
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Zone returns the window's location.
func (w Window) Zone() *time.Location {
	return w.loc()
}

// In converts t to the window's location.
func (w Window) In(t time.Time) time.Time {
	return t.In(w.loc())
}

// IsWorkingInstant reports whether t's time of day falls inside the window.
func (w Window) IsWorkingInstant(t time.Time) bool {
	hour := t.In(w.loc()).Hour()
	return hour >= w.StartHour && hour < w.EndHour
}

// DayStart returns the window start on t's calendar day.
func (w Window) DayStart(t time.Time) time.Time {
	local := t.In(w.loc())
	return time.Date(local.Year(), local.Month(), local.Day(), w.StartHour, 0, 0, 0, w.loc())
}

// DayEnd returns the window end on t's calendar day.
func (w Window) DayEnd(t time.Time) time.Time {
	local := t.In(w.loc())
	return time.Date(local.Year(), local.Month(), local.Day(), w.EndHour, 0, 0, 0, w.loc())
}

// NextWorkingDayStart returns the window start on the calendar day after t.
func (w Window) NextWorkingDayStart(t time.Time) time.Time {
	local := t.In(w.loc())
	return time.Date(local.Year(), local.Month(), local.Day()+1, w.StartHour, 0, 0, 0, w.loc())
}

// Advance moves t forward by d, counting only time inside the window.
func (w Window) Advance(t time.Time, d time.Duration) time.Time {
	current := t.In(w.loc())
	remaining := d
	for remaining > 0 {
		end := w.DayEnd(current)
		if !current.Before(end) {
			current = w.NextWorkingDayStart(current)
			continue
		}
		start := w.DayStart(current)
		if current.Before(start) {
			current = start
			continue
		}
		available := end.Sub(current)
		if remaining <= available {
			return current.Add(remaining)
		}
		remaining -= available
		current = end
	}
	return current
}
