package repository

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// Global error declarations.
var (
	ErrSnapshotNotFound = errors.New("snapshot not found in datasource")
	ErrTradeNotFound    = errors.New("trade not found in datasource")
	ErrDuplicateTrade   = errors.New("trade already recorded")
)

// Backend is one persistence target for the ledger. The flat-file store and
// the Postgres store both implement it, and the dual coordinator fans writes
// out to a pair of them.
type Backend interface {
	Name() string

	SaveTrade(ctx context.Context, trade types.Trade) error
	UpdateTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) error
	// TradeHistory returns trades ordered by execution time. An empty ticker
	// selects all tickers; a zero range selects all time.
	TradeHistory(ctx context.Context, ticker string, r types.DateRange) ([]types.Trade, error)
	TradeCount(ctx context.Context) (int, error)

	// SnapshotOn returns the day's snapshot, or nil when the day has none.
	SnapshotOn(ctx context.Context, date types.Date) (*types.Snapshot, error)
	// ReplaceSnapshot upserts the snapshot for its day, replacing any rows
	// already stored for that day.
	ReplaceSnapshot(ctx context.Context, snap types.Snapshot) error
	Snapshots(ctx context.Context, r types.DateRange) ([]types.Snapshot, error)
	LatestSnapshotDate(ctx context.Context) (types.Date, bool, error)

	SaveCashBalance(ctx context.Context, balance types.CashBalance) error

	Close() error
}
