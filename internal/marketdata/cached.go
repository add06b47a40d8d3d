package marketdata

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// absentMarker is cached for confirmed no-data days so holidays are not
// re-fetched on every replayed year.
const absentMarker = "-"

// CachedSource decorates a Source with the injected cache. Historical closes
// are immutable so they take a long TTL; live quotes stay fresh for only the
// configured liveTTL.
type CachedSource struct {
	src      Source
	cache    Cache
	closeTTL time.Duration
	liveTTL  time.Duration
}

func NewCachedSource(src Source, cache Cache, closeTTL, liveTTL time.Duration) *CachedSource {
	return &CachedSource{src: src, cache: cache, closeTTL: closeTTL, liveTTL: liveTTL}
}

func (c *CachedSource) ClosePrice(ctx context.Context, ticker string, date types.Date) (decimal.Decimal, bool, error) {
	key := closeKey(ticker, date)
	if b, ok := c.cache.Get(ctx, key); ok {
		return decodePrice(b)
	}

	price, ok, err := c.src.ClosePrice(ctx, ticker, date)
	if err != nil {
		return decimal.Zero, false, err
	}
	c.cache.Set(ctx, key, encodePrice(price, ok), c.closeTTL)
	return price, ok, nil
}

func (c *CachedSource) CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, bool, error) {
	key := liveKey(ticker)
	if b, ok := c.cache.Get(ctx, key); ok {
		return decodePrice(b)
	}

	price, ok, err := c.src.CurrentPrice(ctx, ticker)
	if err != nil {
		return decimal.Zero, false, err
	}
	c.cache.Set(ctx, key, encodePrice(price, ok), c.liveTTL)
	return price, ok, nil
}

// InvalidateLive drops the cached live quote for ticker, forcing the next
// CurrentPrice call through to the provider.
func (c *CachedSource) InvalidateLive(ctx context.Context, ticker string) {
	c.cache.Invalidate(ctx, liveKey(ticker))
}

func closeKey(ticker string, date types.Date) string {
	return fmt.Sprintf("price:close:%s:%s", ticker, date)
}

func liveKey(ticker string) string {
	return fmt.Sprintf("price:live:%s", ticker)
}

func encodePrice(price decimal.Decimal, ok bool) []byte {
	if !ok {
		return []byte(absentMarker)
	}
	return []byte(price.String())
}

func decodePrice(b []byte) (decimal.Decimal, bool, error) {
	if string(b) == absentMarker {
		return decimal.Zero, false, nil
	}
	price, err := decimal.NewFromString(string(b))
	if err != nil {
		return decimal.Zero, false, fmt.Errorf("corrupt cached price %q: %w", b, err)
	}
	return price, true, nil
}
