package core

import "time"

// DayLayout is the calendar day format used in requests and filenames.
const DayLayout = "2006-01-02"

// WeekLength is the number of days returned by Last7Days.
const WeekLength = 7

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

// Contains reports whether t falls inside the interval.
func (i Interval) Contains(t time.Time) bool {
	return !t.Before(i.Start) && t.Before(i.End)
}

// StartOfDay returns midnight of t's calendar day in t's location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// DayInterval spans t's calendar day. End is the next day's midnight,
// so the interval lasts 23 or 25 hours across DST changes.
func DayInterval(t time.Time) Interval {
	y, m, d := t.Date()
	loc := t.Location()
	return Interval{
		Start: time.Date(y, m, d, 0, 0, 0, 0, loc),
		End:   time.Date(y, m, d+1, 0, 0, 0, 0, loc),
	}
}

// Last7Days returns the start of each of the seven calendar days
// ending on end's day, oldest first.
func Last7Days(end time.Time) []time.Time {
	y, m, d := end.Date()
	loc := end.Location()
	days := make([]time.Time, WeekLength)
	for i := range days {
		days[i] = time.Date(y, m, d-(WeekLength-1-i), 0, 0, 0, 0, loc)
	}
	return days
}

// ParseDay parses a YYYY-MM-DD string as midnight in loc.
func ParseDay(s string, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation(DayLayout, s, loc)
}
