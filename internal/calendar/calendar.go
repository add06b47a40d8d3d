// Package calendar answers "was this market open on this day" for the US and
// Canadian equity exchanges. Each ticker is classified to one market; a
// rebuild skips a day only when no held ticker's market was open.
package calendar

import (
	"strings"
	"time"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

type Market string

const (
	MarketUS Market = "US"
	MarketCA Market = "CA"
)

// MarketFor classifies a ticker by its exchange suffix. TSX and TSX-V symbols
// carry .TO / .V suffixes; everything else trades on a US exchange.
func MarketFor(ticker string) Market {
	upper := strings.ToUpper(ticker)
	if strings.HasSuffix(upper, ".TO") || strings.HasSuffix(upper, ".V") || strings.HasSuffix(upper, ".CN") {
		return MarketCA
	}
	return MarketUS
}

// Calendar resolves trading days in the fund's trading timezone.
type Calendar struct {
	loc         *time.Location
	closeHour   int
	closeMinute int
}

// New returns a calendar anchored to the trading timezone and the configured
// market close time.
func New(loc *time.Location, closeHour, closeMinute int) *Calendar {
	return &Calendar{loc: loc, closeHour: closeHour, closeMinute: closeMinute}
}

// IsTradingDay reports whether the market was open on d: a weekday that is
// not one of the market's holidays.
func (c *Calendar) IsTradingDay(d types.Date, m Market) bool {
	switch d.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	return !isHoliday(d, m)
}

// AnyOpen reports whether at least one of the markets was open on d.
func (c *Calendar) AnyOpen(d types.Date, markets []Market) bool {
	for _, m := range markets {
		if c.IsTradingDay(d, m) {
			return true
		}
	}
	return false
}

// LastTradingDate returns the most recent day, at or before now, whose market
// session has already closed. Before the close bell "today" is not yet a
// finished trading day and the previous trading day is returned instead.
func (c *Calendar) LastTradingDate(now time.Time, m Market) types.Date {
	d := types.DateOf(now, c.loc)
	if now.Before(d.At(c.closeHour, c.closeMinute, c.loc)) {
		d = d.Add(-1)
	}
	for !c.IsTradingDay(d, m) {
		d = d.Add(-1)
	}
	return d
}

// CloseTime returns the canonical market-close instant for d.
func (c *Calendar) CloseTime(d types.Date) time.Time {
	return d.At(c.closeHour, c.closeMinute, c.loc)
}

// Location returns the trading timezone the calendar is anchored to.
func (c *Calendar) Location() *time.Location { return c.loc }
