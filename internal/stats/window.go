// Package stats aggregates stored emission entries over inclusive calendar
// windows and derives trends and goal progress from the aggregates.
//
// Every function in the package is a pure computation over its arguments.
// Fetching the entries is the caller's job; nothing here blocks or keeps state,
// so independent windows can be summarised in parallel.
package stats

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidRange is returned when a window starts after it ends.
var ErrInvalidRange = errors.New("invalid range")

// Window is an inclusive range of instants, bucketed by day in Location.
type Window struct {
	Start    time.Time
	End      time.Time
	Location *time.Location
}

// NewWindow validates an inclusive [start, end] range.
func NewWindow(start, end time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	if start.After(end) {
		return Window{}, fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange,
			start.Format(time.RFC3339), end.Format(time.RFC3339))
	}
	return Window{Start: start.In(loc), End: end.In(loc), Location: loc}, nil
}

// DayRange spans the first instant of startDate's day through the last instant
// of endDate's day, both evaluated in loc.
func DayRange(startDate, endDate time.Time, loc *time.Location) (Window, error) {
	if loc == nil {
		loc = time.UTC
	}
	return NewWindow(startOfDay(startDate, loc), endOfDay(endDate, loc), loc)
}

// Contains reports whether t falls inside the window, bounds included.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.Start) && !t.After(w.End)
}

// Days is the number of calendar days the window touches.
func (w Window) Days() int {
	first := startOfDay(w.Start, w.loc())
	last := startOfDay(w.End, w.loc())
	days := 1
	for d := first; d.Before(last); d = d.AddDate(0, 0, 1) {
		days++
	}
	return days
}

func (w Window) loc() *time.Location {
	if w.Location == nil {
		return time.UTC
	}
	return w.Location
}

// Today covers the calendar day containing now.
func Today(now time.Time, loc *time.Location) Window {
	return mustDays(now, now, loc)
}

// Yesterday covers the calendar day before now.
func Yesterday(now time.Time, loc *time.Location) Window {
	day := now.In(locOrUTC(loc)).AddDate(0, 0, -1)
	return mustDays(day, day, loc)
}

// TrailingWeek covers today and the six days before it.
func TrailingWeek(now time.Time, loc *time.Location) Window {
	return TrailingDays(now, 7, loc)
}

// PreviousWeek covers the seven days immediately before TrailingWeek.
func PreviousWeek(now time.Time, loc *time.Location) Window {
	end := now.In(locOrUTC(loc)).AddDate(0, 0, -7)
	return TrailingDays(end, 7, loc)
}

// TrailingDays covers the n calendar days ending with the day containing now.
// n below one is treated as one.
func TrailingDays(now time.Time, n int, loc *time.Location) Window {
	if n < 1 {
		n = 1
	}
	local := now.In(locOrUTC(loc))
	return mustDays(local.AddDate(0, 0, -(n-1)), local, loc)
}

// CalendarMonth covers the whole calendar month containing now.
func CalendarMonth(now time.Time, loc *time.Location) Window {
	local := now.In(locOrUTC(loc))
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
	last := first.AddDate(0, 1, -1)
	return mustDays(first, last, loc)
}

// PreviousMonth covers the calendar month before the one containing now.
func PreviousMonth(now time.Time, loc *time.Location) Window {
	local := now.In(locOrUTC(loc))
	first := time.Date(local.Year(), local.Month(), 1, 0, 0, 0, 0, local.Location())
	return CalendarMonth(first.AddDate(0, 0, -1), loc)
}

func mustDays(start, end time.Time, loc *time.Location) Window {
	w, err := DayRange(start, end, loc)
	if err != nil {
		panic(err)
	}
	return w
}

// EndOfDay is the last instant of the calendar day containing t in loc.
func EndOfDay(t time.Time, loc *time.Location) time.Time {
	return endOfDay(t, locOrUTC(loc))
}

func startOfDay(t time.Time, loc *time.Location) time.Time {
	local := t.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
}

func endOfDay(t time.Time, loc *time.Location) time.Time {
	return startOfDay(t, loc).AddDate(0, 0, 1).Add(-time.Nanosecond)
}

func locOrUTC(loc *time.Location) *time.Location {
	if loc == nil {
		return time.UTC
	}
	return loc
}
