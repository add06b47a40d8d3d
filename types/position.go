package types

import (
	"github.com/shopspring/decimal"
)

// PriceSource records how a position's current price was obtained, so
// fallback-priced rows stay auditable after the fact.
type PriceSource string

const (
	PriceSourceClose       PriceSource = "close"
	PriceSourceForwardFill PriceSource = "forward_fill"
	PriceSourceCostBasis   PriceSource = "cost_basis"
	PriceSourceLive        PriceSource = "live"
)

// Position is a derived view of one ticker's holdings. It is never
// authoritative: it is always recomputable from the lot set plus a resolved
// current price.
type Position struct {
	Ticker        string
	Shares        decimal.Decimal
	AvgPrice      decimal.Decimal
	CostBasis     decimal.Decimal
	Currency      string
	CurrentPrice  decimal.Decimal
	MarketValue   decimal.Decimal
	UnrealizedPnL decimal.Decimal
	PriceSource   PriceSource
}

// WithPrice returns a copy repriced at price, recomputing market value and
// unrealized P&L.
func (p Position) WithPrice(price decimal.Decimal, source PriceSource) Position {
	p.CurrentPrice = price
	p.MarketValue = p.Shares.Mul(price)
	p.UnrealizedPnL = p.MarketValue.Sub(p.CostBasis)
	p.PriceSource = source
	return p
}
