package engine

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

func newTestConsolidator(t *testing.T) (*Consolidator, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	return NewConsolidator(loc, 16, 0, zerolog.Nop()), loc
}

func testPosition(ticker string, shares, price string) types.Position {
	p := types.Position{
		Ticker:    ticker,
		Shares:    decimal.RequireFromString(shares),
		AvgPrice:  decimal.RequireFromString(price),
		CostBasis: decimal.RequireFromString(shares).Mul(decimal.RequireFromString(price)),
		Currency:  "USD",
	}
	return p.WithPrice(decimal.RequireFromString(price), types.PriceSourceClose)
}

func TestIsMarketCloseUsesTradingTimezone(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	assert.True(t, cons.IsMarketClose(time.Date(2024, 3, 6, 16, 0, 0, 0, loc)))
	assert.False(t, cons.IsMarketClose(time.Date(2024, 3, 6, 10, 30, 0, 0, loc)))

	// 21:00 UTC is 16:00 in Toronto during winter time.
	assert.True(t, cons.IsMarketClose(time.Date(2024, 3, 6, 21, 0, 0, 0, time.UTC)))
}

func TestMergeFirstSave(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	intraday := types.NewSnapshot(
		time.Date(2024, 3, 6, 10, 30, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "170")},
		false,
	)
	merged, save := cons.Merge(nil, intraday, false)
	require.True(t, save)
	assert.False(t, merged.IsMarketClose)

	atClose := intraday
	atClose.Timestamp = time.Date(2024, 3, 6, 16, 0, 0, 0, loc)
	merged, save = cons.Merge(nil, atClose, false)
	require.True(t, save)
	assert.True(t, merged.IsMarketClose)
}

func TestMergeIntradayRefresh(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	first := types.NewSnapshot(
		time.Date(2024, 3, 6, 10, 30, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "170")},
		false,
	)
	second := types.NewSnapshot(
		time.Date(2024, 3, 6, 13, 0, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "172"), testPosition("MSFT", "5", "410")},
		false,
	)

	merged, save := cons.Merge(&first, second, false)
	require.True(t, save)
	assert.False(t, merged.IsMarketClose)
	assert.Equal(t, second.Timestamp, merged.Timestamp)

	// Refreshed price and the newly held ticker are both present, exactly once.
	require.Len(t, merged.Positions, 2)
	got, ok := merged.Position("AAPL")
	require.True(t, ok)
	assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString("172")))
}

func TestMergeCloseOverwritesIntraday(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	intraday := types.NewSnapshot(
		time.Date(2024, 3, 6, 10, 30, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "170")},
		false,
	)
	closeSnap := types.NewSnapshot(
		time.Date(2024, 3, 6, 16, 0, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "171.5")},
		false,
	)

	merged, save := cons.Merge(&intraday, closeSnap, false)
	require.True(t, save)
	assert.True(t, merged.IsMarketClose)
	assert.Equal(t, closeSnap.Timestamp, merged.Timestamp)
}

func TestMergeMarketCloseProtected(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	closeSnap := types.NewSnapshot(
		time.Date(2024, 3, 6, 16, 0, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "171.5")},
		true,
	)
	lateIntraday := types.NewSnapshot(
		time.Date(2024, 3, 6, 17, 45, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "169")},
		false,
	)

	merged, save := cons.Merge(&closeSnap, lateIntraday, false)
	assert.False(t, save)

	// The close snapshot survives untouched.
	got, ok := merged.Position("AAPL")
	require.True(t, ok)
	assert.True(t, got.CurrentPrice.Equal(decimal.RequireFromString("171.5")))
	assert.True(t, merged.IsMarketClose)
}

func TestMergeTradeExecutionBypassesCloseProtection(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	closeSnap := types.NewSnapshot(
		time.Date(2024, 3, 6, 16, 0, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "171.5")},
		true,
	)
	afterHoursTrade := types.NewSnapshot(
		time.Date(2024, 3, 6, 17, 45, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "15", "170")},
		false,
	)

	merged, save := cons.Merge(&closeSnap, afterHoursTrade, true)
	require.True(t, save)

	// New share count is reflected; the day keeps its close identity.
	got, ok := merged.Position("AAPL")
	require.True(t, ok)
	assert.True(t, got.Shares.Equal(decimal.RequireFromString("15")))
	assert.True(t, merged.IsMarketClose)
	assert.Equal(t, closeSnap.Timestamp, merged.Timestamp)
}

func TestMergeCloseResaveIsIdempotent(t *testing.T) {
	cons, loc := newTestConsolidator(t)

	closeSnap := types.NewSnapshot(
		time.Date(2024, 3, 6, 16, 0, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "171.5")},
		true,
	)
	resave := types.NewSnapshot(
		time.Date(2024, 3, 6, 16, 0, 0, 0, loc),
		[]types.Position{testPosition("AAPL", "10", "171.6")},
		false,
	)

	merged, save := cons.Merge(&closeSnap, resave, false)
	require.True(t, save)
	assert.True(t, merged.IsMarketClose)
	assert.Equal(t, closeSnap.Timestamp, merged.Timestamp)
	require.Len(t, merged.Positions, 1)
	assert.True(t, merged.Positions[0].CurrentPrice.Equal(decimal.RequireFromString("171.6")))
}
