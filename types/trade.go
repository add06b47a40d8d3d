package types

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Side string

const (
	SideTypeBuy  Side = "BUY"
	SideTypeSell Side = "SELL"
)

// Validation errors. Malformed trades are rejected at the boundary, never
// coerced into something storable.
var (
	UnknownSideErr       = errors.New("unknown trade side")
	NonPositiveSharesErr = errors.New("shares must be positive")
	NegativePriceErr     = errors.New("price must not be negative")
	MissingCurrencyErr   = errors.New("currency is required")
	MissingTickerErr     = errors.New("ticker is required")
	MissingTimestampErr  = errors.New("timestamp is required")
)

// ParseSide maps a stored side string to a Side. The side must be recorded
// explicitly; a free-text reason is never used to guess BUY vs SELL.
func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case SideTypeBuy:
		return SideTypeBuy, nil
	case SideTypeSell:
		return SideTypeSell, nil
	default:
		return "", fmt.Errorf("%q: %w", s, UnknownSideErr)
	}
}

// Trade is one immutable row of the append-only trade log, the sole source of
// truth for reconstructing positions.
type Trade struct {
	Ticker      string
	Side        Side
	Shares      decimal.Decimal
	Price       decimal.Decimal
	Currency    string
	Timestamp   time.Time
	RealizedPnL decimal.Decimal // zero until backfilled for SELL trades
	Reason      string
}

func (t Trade) Validate() error {
	if t.Ticker == "" {
		return MissingTickerErr
	}
	if t.Side != SideTypeBuy && t.Side != SideTypeSell {
		return fmt.Errorf("%s: %w", t.Ticker, UnknownSideErr)
	}
	if !t.Shares.IsPositive() {
		return fmt.Errorf("%s %s shares: %w", t.Ticker, t.Shares, NonPositiveSharesErr)
	}
	if t.Price.IsNegative() {
		return fmt.Errorf("%s price %s: %w", t.Ticker, t.Price, NegativePriceErr)
	}
	if t.Currency == "" {
		return fmt.Errorf("%s: %w", t.Ticker, MissingCurrencyErr)
	}
	if t.Timestamp.IsZero() {
		return fmt.Errorf("%s: %w", t.Ticker, MissingTimestampErr)
	}
	return nil
}

// TradeKey identifies a trade for duplicate detection on re-import. The
// timestamp component is whole seconds; writers truncate Trade.Timestamp to
// second precision so stored rows always match their key.
type TradeKey struct {
	Ticker    string
	Timestamp int64
	Shares    string
	Price     string
}

func (t Trade) Key() TradeKey {
	return TradeKey{
		Ticker:    t.Ticker,
		Timestamp: t.Timestamp.Unix(),
		Shares:    t.Shares.String(),
		Price:     t.Price.String(),
	}
}

// Date returns the trading day the trade belongs to, observed in loc.
func (t Trade) Date(loc *time.Location) Date {
	return DateOf(t.Timestamp, loc)
}
