package engine

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

var (
	InvalidLotErr       = errors.New("lot shares must be positive")
	CurrencyMismatchErr = errors.New("lot currency differs from tracker currency")
)

// InsufficientLotsError reports a sell that exceeds tracked holdings. The
// tracker is left untouched; the caller decides whether to clamp, skip, or
// abort.
type InsufficientLotsError struct {
	Ticker    string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientLotsError) Error() string {
	return fmt.Sprintf("sell %s %s exceeds tracked holdings %s", e.Ticker, e.Requested, e.Available)
}

// lot is one open purchase: shares still held from a single BUY and the cost
// attributable to them.
type lot struct {
	shares   decimal.Decimal
	cost     decimal.Decimal // total cost of the remaining shares
	acquired time.Time
}

// LotTracker keeps a ticker's open purchase lots in acquisition order and
// consumes them FIFO on sells. All arithmetic is exact decimal; cost basis
// must not drift across thousands of trades.
type LotTracker struct {
	ticker   string
	currency string
	lots     []lot
}

func NewLotTracker(ticker string) *LotTracker {
	return &LotTracker{ticker: ticker}
}

// AddLot appends a purchase to the queue.
func (t *LotTracker) AddLot(shares, price decimal.Decimal, ts time.Time, currency string) error {
	if !shares.IsPositive() {
		return fmt.Errorf("%s %s: %w", t.ticker, shares, InvalidLotErr)
	}
	if currency == "" {
		return fmt.Errorf("%s: lot currency is required", t.ticker)
	}
	if t.currency == "" {
		t.currency = currency
	} else if t.currency != currency {
		return fmt.Errorf("%s: %s vs %s: %w", t.ticker, currency, t.currency, CurrencyMismatchErr)
	}
	t.lots = append(t.lots, lot{shares: shares, cost: shares.Mul(price), acquired: ts})
	return nil
}

// SellResult reports one FIFO sale: proceeds, the exact cost consumed from
// the queue, and the realized P&L (proceeds minus consumed cost).
type SellResult struct {
	Proceeds    decimal.Decimal
	CostOfSold  decimal.Decimal
	RealizedPnL decimal.Decimal
}

// SellFIFO consumes sharesToSell oldest-first. The earliest lots are removed
// in full; a lot larger than the remainder is split, leaving its unsold
// shares (and proportional cost) in place.
func (t *LotTracker) SellFIFO(sharesToSell, sellPrice decimal.Decimal, _ time.Time) (SellResult, error) {
	if !sharesToSell.IsPositive() {
		return SellResult{}, fmt.Errorf("%s %s: %w", t.ticker, sharesToSell, InvalidLotErr)
	}
	if available := t.Shares(); sharesToSell.GreaterThan(available) {
		return SellResult{}, &InsufficientLotsError{
			Ticker:    t.ticker,
			Requested: sharesToSell,
			Available: available,
		}
	}

	remaining := sharesToSell
	costOfSold := decimal.Zero
	for len(t.lots) > 0 && remaining.IsPositive() {
		head := t.lots[0]
		if head.shares.GreaterThan(remaining) {
			soldCost := head.cost.Mul(remaining).Div(head.shares)
			costOfSold = costOfSold.Add(soldCost)
			t.lots[0].shares = head.shares.Sub(remaining)
			t.lots[0].cost = head.cost.Sub(soldCost)
			remaining = decimal.Zero
			break
		}
		costOfSold = costOfSold.Add(head.cost)
		remaining = remaining.Sub(head.shares)
		t.lots = t.lots[1:]
	}

	proceeds := sellPrice.Mul(sharesToSell)
	return SellResult{
		Proceeds:    proceeds,
		CostOfSold:  costOfSold,
		RealizedPnL: proceeds.Sub(costOfSold),
	}, nil
}

// Shares returns the running position size: the sum of open lot shares.
func (t *LotTracker) Shares() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.lots {
		total = total.Add(l.shares)
	}
	return total
}

// CostBasis returns the total cost of the open lots.
func (t *LotTracker) CostBasis() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.lots {
		total = total.Add(l.cost)
	}
	return total
}

// AvgCost returns cost basis per share, zero when nothing is held.
func (t *LotTracker) AvgCost() decimal.Decimal {
	shares := t.Shares()
	if shares.IsZero() {
		return decimal.Zero
	}
	return t.CostBasis().Div(shares)
}

func (t *LotTracker) Holding() bool { return t.Shares().IsPositive() }
func (t *LotTracker) Ticker() string { return t.ticker }
func (t *LotTracker) Currency() string { return t.currency }
func (t *LotTracker) OpenLots() int { return len(t.lots) }
