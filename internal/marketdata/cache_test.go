package marketdata

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

func TestMemoryCacheTTL(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()

	c.Set(ctx, "k", []byte("v"), 10*time.Millisecond)
	got, ok := c.Get(ctx, "k")
	require.True(t, ok)
	assert.Equal(t, []byte("v"), got)

	time.Sleep(20 * time.Millisecond)
	_, ok = c.Get(ctx, "k")
	assert.False(t, ok)
}

func TestMemoryCacheInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache()
	c.Set(ctx, "k", []byte("v"), 0) // no expiry
	c.Invalidate(ctx, "k")
	_, ok := c.Get(ctx, "k")
	assert.False(t, ok)
}

// countingSource records how many calls reach the underlying provider.
type countingSource struct {
	closes     map[string]decimal.Decimal
	closeCalls int
	liveCalls  int
}

func (s *countingSource) ClosePrice(_ context.Context, ticker string, _ types.Date) (decimal.Decimal, bool, error) {
	s.closeCalls++
	p, ok := s.closes[ticker]
	return p, ok, nil
}

func (s *countingSource) CurrentPrice(_ context.Context, ticker string) (decimal.Decimal, bool, error) {
	s.liveCalls++
	p, ok := s.closes[ticker]
	return p, ok, nil
}

func TestCachedSourceHitsProviderOnce(t *testing.T) {
	src := &countingSource{closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(170)}}
	cached := NewCachedSource(src, NewMemoryCache(), time.Hour, time.Minute)

	day := types.NewDate(2024, time.March, 6)
	for i := 0; i < 3; i++ {
		p, ok, err := cached.ClosePrice(context.Background(), "AAPL", day)
		require.NoError(t, err)
		require.True(t, ok)
		assert.True(t, p.Equal(decimal.NewFromInt(170)))
	}
	assert.Equal(t, 1, src.closeCalls)
}

func TestCachedSourceCachesAbsence(t *testing.T) {
	src := &countingSource{closes: map[string]decimal.Decimal{}}
	cached := NewCachedSource(src, NewMemoryCache(), time.Hour, time.Minute)

	day := types.NewDate(2024, time.December, 25)
	for i := 0; i < 2; i++ {
		_, ok, err := cached.ClosePrice(context.Background(), "AAPL", day)
		require.NoError(t, err)
		assert.False(t, ok)
	}
	assert.Equal(t, 1, src.closeCalls)
}

type ctxMarker struct{}

// ctxRecordingCache captures the context each cache call receives.
type ctxRecordingCache struct {
	inner Cache
	seen  []context.Context
}

func (c *ctxRecordingCache) Get(ctx context.Context, key string) ([]byte, bool) {
	c.seen = append(c.seen, ctx)
	return c.inner.Get(ctx, key)
}

func (c *ctxRecordingCache) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	c.seen = append(c.seen, ctx)
	c.inner.Set(ctx, key, val, ttl)
}

func (c *ctxRecordingCache) Invalidate(ctx context.Context, key string) {
	c.seen = append(c.seen, ctx)
	c.inner.Invalidate(ctx, key)
}

func TestCachedSourceThreadsCallerContext(t *testing.T) {
	src := &countingSource{closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(170)}}
	rec := &ctxRecordingCache{inner: NewMemoryCache()}
	cached := NewCachedSource(src, rec, time.Hour, time.Hour)

	ctx := context.WithValue(context.Background(), ctxMarker{}, "caller")
	_, _, err := cached.CurrentPrice(ctx, "AAPL")
	require.NoError(t, err)
	cached.InvalidateLive(ctx, "AAPL")

	require.Len(t, rec.seen, 3) // miss, fill, invalidate
	for _, got := range rec.seen {
		assert.Equal(t, "caller", got.Value(ctxMarker{}))
	}
}

func TestCachedSourceInvalidateLive(t *testing.T) {
	src := &countingSource{closes: map[string]decimal.Decimal{"AAPL": decimal.NewFromInt(170)}}
	cached := NewCachedSource(src, NewMemoryCache(), time.Hour, time.Hour)

	_, _, err := cached.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	_, _, err = cached.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 1, src.liveCalls)

	cached.InvalidateLive(context.Background(), "AAPL")
	_, _, err = cached.CurrentPrice(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, 2, src.liveCalls)
}
