// Package marketdata defines the price-resolution contract consumed by the
// rebuild engine, plus the caching and throttling decorators wrapped around
// any concrete provider. Retrieval itself (which vendor, which API) lives
// behind the Source interface.
package marketdata

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// Source resolves prices for a ticker. Missing data (holidays, unknown
// tickers, gaps) is reported as ok=false with a nil error; an error means the
// lookup itself failed.
type Source interface {
	// ClosePrice returns the observed market close for the exact day.
	ClosePrice(ctx context.Context, ticker string, date types.Date) (decimal.Decimal, bool, error)
	// CurrentPrice returns a live quote.
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, bool, error)
}
