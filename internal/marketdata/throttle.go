package marketdata

import (
	"context"

	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// ThrottledSource rate-limits calls to the underlying provider. Third-party
// price APIs meter requests per second; the rebuild engine fans out fetches
// across workers, so the limiter sits below the pool and gates them all.
type ThrottledSource struct {
	src     Source
	limiter *rate.Limiter
}

func NewThrottledSource(src Source, requestsPerSecond float64) *ThrottledSource {
	return &ThrottledSource{
		src:     src,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
	}
}

func (t *ThrottledSource) ClosePrice(ctx context.Context, ticker string, date types.Date) (decimal.Decimal, bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return decimal.Zero, false, err
	}
	return t.src.ClosePrice(ctx, ticker, date)
}

func (t *ThrottledSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, bool, error) {
	if err := t.limiter.Wait(ctx); err != nil {
		return decimal.Zero, false, err
	}
	return t.src.CurrentPrice(ctx, ticker)
}
