package types

import (
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Snapshot is the complete set of held positions and their valuation for one
// fund at one point in time. At most one snapshot exists per trading day in
// each store; intraday saves update the day's rows in place.
type Snapshot struct {
	Timestamp     time.Time
	Positions     []Position // ticker-unique, sorted by ticker
	TotalValue    decimal.Decimal
	IsMarketClose bool
}

// NewSnapshot builds a snapshot from positions, sorting them by ticker and
// deriving the total value. Ticker order is fixed so that rebuilding the same
// history twice yields identical snapshots.
func NewSnapshot(ts time.Time, positions []Position, marketClose bool) Snapshot {
	s := Snapshot{
		Timestamp:     ts,
		Positions:     positions,
		IsMarketClose: marketClose,
	}
	s.Recalculate()
	return s
}

// Recalculate restores the snapshot's derived fields: ticker sort order and
// the total market value.
func (s *Snapshot) Recalculate() {
	sort.Slice(s.Positions, func(i, j int) bool {
		return s.Positions[i].Ticker < s.Positions[j].Ticker
	})
	total := decimal.Zero
	for _, p := range s.Positions {
		total = total.Add(p.MarketValue)
	}
	s.TotalValue = total
}

// Position returns the row for ticker, if held in this snapshot.
func (s Snapshot) Position(ticker string) (Position, bool) {
	for _, p := range s.Positions {
		if p.Ticker == ticker {
			return p, true
		}
	}
	return Position{}, false
}

// Date returns the trading day the snapshot belongs to, observed in loc.
func (s Snapshot) Date(loc *time.Location) Date {
	return DateOf(s.Timestamp, loc)
}

// CashBalance is the fund's cash position in one currency at a point in time.
type CashBalance struct {
	Currency  string
	Amount    decimal.Decimal
	Timestamp time.Time
}

func (c CashBalance) Validate() error {
	if c.Currency == "" {
		return MissingCurrencyErr
	}
	if c.Timestamp.IsZero() {
		return fmt.Errorf("cash balance %s: %w", c.Currency, MissingTimestampErr)
	}
	return nil
}
