package calendar

import (
	"time"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// isHoliday reports whether d is an exchange holiday for market m. The rules
// are the published NYSE/Nasdaq and TSX closure schedules; weekends are
// handled by the caller.
func isHoliday(d types.Date, m Market) bool {
	for _, h := range holidays(d.Year(), m) {
		if h == d {
			return true
		}
	}
	return false
}

func holidays(year int, m Market) []types.Date {
	switch m {
	case MarketCA:
		return caHolidays(year)
	default:
		return usHolidays(year)
	}
}

func usHolidays(year int) []types.Date {
	return []types.Date{
		// New Year's Day, MLK Day, Presidents' Day
		observed(types.NewDate(year, time.January, 1)),
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		goodFriday(year),
		// Memorial Day, Juneteenth, Independence Day
		lastWeekday(year, time.May, time.Monday),
		observed(types.NewDate(year, time.June, 19)),
		observed(types.NewDate(year, time.July, 4)),
		// Labor Day, Thanksgiving, Christmas
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		observed(types.NewDate(year, time.December, 25)),
	}
}

func caHolidays(year int) []types.Date {
	return []types.Date{
		// New Year's Day, Family Day
		observed(types.NewDate(year, time.January, 1)),
		nthWeekday(year, time.February, time.Monday, 3),
		goodFriday(year),
		victoriaDay(year),
		// Canada Day, Civic Holiday, Labour Day
		observed(types.NewDate(year, time.July, 1)),
		nthWeekday(year, time.August, time.Monday, 1),
		nthWeekday(year, time.September, time.Monday, 1),
		// Canadian Thanksgiving
		nthWeekday(year, time.October, time.Monday, 2),
		// Christmas and Boxing Day
		observed(types.NewDate(year, time.December, 25)),
		boxingDay(year),
	}
}

// observed shifts a fixed-date holiday falling on a weekend to the closest
// weekday, matching exchange practice.
func observed(d types.Date) types.Date {
	switch d.Weekday() {
	case time.Saturday:
		return d.Add(-1)
	case time.Sunday:
		return d.Add(1)
	}
	return d
}

// boxingDay is December 26, rolled forward past the weekend and past the
// observed Christmas holiday.
func boxingDay(year int) types.Date {
	d := types.NewDate(year, time.December, 26)
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday || d == observed(types.NewDate(year, time.December, 25)) {
		d = d.Add(1)
	}
	return d
}

// victoriaDay is the Monday on or before May 24.
func victoriaDay(year int) types.Date {
	d := types.NewDate(year, time.May, 24)
	for d.Weekday() != time.Monday {
		d = d.Add(-1)
	}
	return d
}

func nthWeekday(year int, month time.Month, day time.Weekday, n int) types.Date {
	d := types.NewDate(year, month, 1)
	for d.Weekday() != day {
		d = d.Add(1)
	}
	return d.Add(7 * (n - 1))
}

func lastWeekday(year int, month time.Month, day time.Weekday) types.Date {
	d := types.NewDate(year, month+1, 1).Add(-1)
	for d.Weekday() != day {
		d = d.Add(-1)
	}
	return d
}

// goodFriday is two days before Easter Sunday, computed with the anonymous
// Gregorian algorithm.
func goodFriday(year int) types.Date {
	a := year % 19
	b := year / 100
	c := year % 100
	dd := b / 4
	e := b % 4
	f := (b + 8) / 25
	g := (b - f + 1) / 3
	h := (19*a + b - dd - g + 15) % 30
	i := c / 4
	k := c % 4
	l := (32 + 2*e + 2*i - h - k) % 7
	mm := (a + 11*h + 22*l) / 451
	month := (h + l - 7*mm + 114) / 31
	day := (h+l-7*mm+114)%31 + 1
	return types.NewDate(year, time.Month(month), day).Add(-2)
}
