package types

import (
	"fmt"
	"time"
)

// DateFormat is the wire format for calendar dates (ISO-8601).
const DateFormat = "2006-01-02"

// Date is a calendar day with no time component. Snapshot rows are keyed by
// the Date computed in the fund's trading timezone, never UTC, so a
// late-evening save cannot land on the wrong day.
type Date struct {
	y int
	m time.Month
	d int
}

// NewDate returns a normalized Date for the given year, month, and day.
func NewDate(year int, month time.Month, day int) Date {
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	y, m, d := t.Date()
	return Date{y, m, d}
}

// DateOf returns the calendar day of t observed in loc.
func DateOf(t time.Time, loc *time.Location) Date {
	y, m, d := t.In(loc).Date()
	return Date{y, m, d}
}

// ParseDate parses an ISO-8601 date string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateFormat, s)
	if err != nil {
		return Date{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	y, m, d := t.Date()
	return Date{y, m, d}, nil
}

func (d Date) Year() int { return d.y }
func (d Date) Month() time.Month { return d.m }
func (d Date) Day() int { return d.d }
func (d Date) IsZero() bool { return d.y == 0 && d.m == 0 && d.d == 0 }
func (d Date) String() string { return d.Time(time.UTC).Format(DateFormat) }

// Time returns midnight of the day in loc.
func (d Date) Time(loc *time.Location) time.Time {
	return time.Date(d.y, d.m, d.d, 0, 0, 0, 0, loc)
}

// At returns the instant hour:minute of the day in loc.
func (d Date) At(hour, minute int, loc *time.Location) time.Time {
	return time.Date(d.y, d.m, d.d, hour, minute, 0, 0, loc)
}

func (d Date) Weekday() time.Weekday { return d.Time(time.UTC).Weekday() }

func (d Date) Before(x Date) bool { return d.Time(time.UTC).Before(x.Time(time.UTC)) }
func (d Date) After(x Date) bool { return d.Time(time.UTC).After(x.Time(time.UTC)) }

// Add returns the date i days later (or earlier for negative i).
func (d Date) Add(i int) Date { return NewDate(d.y, d.m, d.d+i) }

// DateRange bounds a query by calendar day, inclusive. A zero From or To
// leaves that end unbounded.
type DateRange struct {
	From Date
	To   Date
}

// Contains reports whether d falls inside the range.
func (r DateRange) Contains(d Date) bool {
	if !r.From.IsZero() && d.Before(r.From) {
		return false
	}
	if !r.To.IsZero() && d.After(r.To) {
		return false
	}
	return true
}
