package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

func newTestFileStore(t *testing.T) (*FileStore, *time.Location) {
	t.Helper()
	loc, err := time.LoadLocation("America/Toronto")
	require.NoError(t, err)
	store, err := NewFileStore(t.TempDir(), loc)
	require.NoError(t, err)
	return store, loc
}

func fileTrade(ticker, shares, price string, ts time.Time) types.Trade {
	return types.Trade{
		Ticker:    ticker,
		Side:      types.SideTypeBuy,
		Shares:    decimal.RequireFromString(shares),
		Price:     decimal.RequireFromString(price),
		Currency:  "USD",
		Timestamp: ts,
	}
}

func fileSnapshot(ts time.Time, marketClose bool, positions ...types.Position) types.Snapshot {
	return types.NewSnapshot(ts, positions, marketClose)
}

func filePosition(ticker, shares, price string) types.Position {
	p := types.Position{
		Ticker:    ticker,
		Shares:    decimal.RequireFromString(shares),
		AvgPrice:  decimal.RequireFromString(price),
		CostBasis: decimal.RequireFromString(shares).Mul(decimal.RequireFromString(price)),
		Currency:  "USD",
	}
	return p.WithPrice(decimal.RequireFromString(price), types.PriceSourceClose)
}

func TestFileStoreTradeRoundTrip(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	second := fileTrade("MSFT", "5", "400.25", time.Date(2024, 3, 6, 11, 0, 0, 0, loc))
	second.Reason = "rebalance"
	require.NoError(t, store.SaveTrade(ctx, fileTrade("AAPL", "10.5", "100.01", time.Date(2024, 3, 6, 10, 0, 0, 0, loc))))
	require.NoError(t, store.SaveTrade(ctx, second))

	// Reload from disk through a fresh store handle.
	reloaded, err := NewFileStore(store.dir, loc)
	require.NoError(t, err)

	trades, err := reloaded.TradeHistory(ctx, "", types.DateRange{})
	require.NoError(t, err)
	require.Len(t, trades, 2)
	assert.Equal(t, "AAPL", trades[0].Ticker)
	assert.True(t, trades[0].Shares.Equal(decimal.RequireFromString("10.5")))
	assert.True(t, trades[0].Price.Equal(decimal.RequireFromString("100.01")))
	assert.Equal(t, "rebalance", trades[1].Reason)
	assert.True(t, trades[0].Timestamp.Equal(time.Date(2024, 3, 6, 10, 0, 0, 0, loc)))

	n, err := reloaded.TradeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestFileStoreRejectsDuplicateTrade(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	tr := fileTrade("AAPL", "10", "100", time.Date(2024, 3, 6, 10, 0, 0, 0, loc))
	require.NoError(t, store.SaveTrade(ctx, tr))
	err := store.SaveTrade(ctx, tr)
	require.ErrorIs(t, err, ErrDuplicateTrade)

	n, err := store.TradeCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestFileStoreTradeHistoryFilters(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveTrade(ctx, fileTrade("AAPL", "1", "100", time.Date(2024, 3, 4, 10, 0, 0, 0, loc))))
	require.NoError(t, store.SaveTrade(ctx, fileTrade("MSFT", "1", "400", time.Date(2024, 3, 5, 10, 0, 0, 0, loc))))
	require.NoError(t, store.SaveTrade(ctx, fileTrade("AAPL", "2", "101", time.Date(2024, 3, 6, 10, 0, 0, 0, loc))))

	byTicker, err := store.TradeHistory(ctx, "AAPL", types.DateRange{})
	require.NoError(t, err)
	require.Len(t, byTicker, 2)

	byRange, err := store.TradeHistory(ctx, "", types.DateRange{
		From: types.NewDate(2024, time.March, 5),
		To:   types.NewDate(2024, time.March, 5),
	})
	require.NoError(t, err)
	require.Len(t, byRange, 1)
	assert.Equal(t, "MSFT", byRange[0].Ticker)
}

func TestFileStoreUpdateTradePnL(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	tr := fileTrade("AAPL", "7", "30", time.Date(2024, 3, 5, 10, 0, 0, 0, loc))
	tr.Side = types.SideTypeSell
	require.NoError(t, store.SaveTrade(ctx, tr))

	require.NoError(t, store.UpdateTradePnL(ctx, tr.Key(), decimal.RequireFromString("120")))

	trades, err := store.TradeHistory(ctx, "AAPL", types.DateRange{})
	require.NoError(t, err)
	require.Len(t, trades, 1)
	assert.True(t, trades[0].RealizedPnL.Equal(decimal.RequireFromString("120")))

	missing := tr.Key()
	missing.Ticker = "MSFT"
	err = store.UpdateTradePnL(ctx, missing, decimal.RequireFromString("5"))
	require.ErrorIs(t, err, ErrTradeNotFound)
}

func TestFileStoreSnapshotDayIsUnique(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	morning := fileSnapshot(time.Date(2024, 3, 6, 10, 30, 0, 0, loc), false, filePosition("AAPL", "10", "101"))
	evening := fileSnapshot(time.Date(2024, 3, 6, 16, 0, 0, 0, loc), true,
		filePosition("AAPL", "10", "103"), filePosition("MSFT", "5", "400"))

	require.NoError(t, store.ReplaceSnapshot(ctx, morning))
	require.NoError(t, store.ReplaceSnapshot(ctx, evening))

	day := types.NewDate(2024, time.March, 6)
	snap, err := store.SnapshotOn(ctx, day)
	require.NoError(t, err)
	require.NotNil(t, snap)

	// The evening save replaced the morning rows instead of stacking a
	// second snapshot for the same day.
	require.Len(t, snap.Positions, 2)
	assert.True(t, snap.IsMarketClose)
	pos, ok := snap.Position("AAPL")
	require.True(t, ok)
	assert.True(t, pos.CurrentPrice.Equal(decimal.RequireFromString("103")))

	all, err := store.Snapshots(ctx, types.DateRange{})
	require.NoError(t, err)
	require.Len(t, all, 1)
}

func TestFileStoreSnapshotsRangeAndLatest(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	for day := 4; day <= 6; day++ {
		snap := fileSnapshot(time.Date(2024, 3, day, 16, 0, 0, 0, loc), true, filePosition("AAPL", "10", "100"))
		require.NoError(t, store.ReplaceSnapshot(ctx, snap))
	}

	got, err := store.Snapshots(ctx, types.DateRange{
		From: types.NewDate(2024, time.March, 5),
	})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, types.NewDate(2024, time.March, 5), got[0].Date(loc))
	assert.Equal(t, types.NewDate(2024, time.March, 6), got[1].Date(loc))

	latest, ok, err := store.LatestSnapshotDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, types.NewDate(2024, time.March, 6), latest)

	none, _ := newTestFileStore(t)
	_, ok, err = none.LatestSnapshotDate(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestFileStoreSnapshotSurvivesReload(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 6, 16, 0, 0, 0, loc)
	snap := fileSnapshot(ts, true, filePosition("AAPL", "10.123456", "101.99"))
	require.NoError(t, store.ReplaceSnapshot(ctx, snap))

	reloaded, err := NewFileStore(store.dir, loc)
	require.NoError(t, err)
	got, err := reloaded.SnapshotOn(ctx, types.NewDate(2024, time.March, 6))
	require.NoError(t, err)
	require.NotNil(t, got)

	assert.True(t, got.Timestamp.Equal(ts))
	assert.True(t, got.IsMarketClose)
	pos, ok := got.Position("AAPL")
	require.True(t, ok)
	assert.True(t, pos.Shares.Equal(decimal.RequireFromString("10.123456")))
	assert.Equal(t, types.PriceSourceClose, pos.PriceSource)
	assert.True(t, got.TotalValue.Equal(snap.TotalValue))
}

func TestFileStoreCashBalances(t *testing.T) {
	store, loc := newTestFileStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveCashBalance(ctx, types.CashBalance{
		Currency:  "CAD",
		Amount:    decimal.RequireFromString("2500.75"),
		Timestamp: time.Date(2024, 3, 6, 16, 0, 0, 0, loc),
	}))
	require.NoError(t, store.SaveCashBalance(ctx, types.CashBalance{
		Currency:  "USD",
		Amount:    decimal.RequireFromString("100"),
		Timestamp: time.Date(2024, 3, 7, 16, 0, 0, 0, loc),
	}))

	got, err := store.CashBalances(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "CAD", got[0].Currency)
	assert.True(t, got[0].Amount.Equal(decimal.RequireFromString("2500.75")))
}
