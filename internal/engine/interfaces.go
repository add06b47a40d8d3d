package engine

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// ledgerStore is the slice of the repository the engine consumes. The dual
// store coordinator satisfies it; tests substitute a mock.
type ledgerStore interface {
	SaveTrade(ctx context.Context, trade types.Trade) error
	TradeHistory(ctx context.Context, ticker string, r types.DateRange) ([]types.Trade, error)
	SaveSnapshot(ctx context.Context, snap types.Snapshot, tradeExecution bool) error
	UpdateTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) error
}

// priceSource mirrors marketdata.Source on the consumer side.
type priceSource interface {
	ClosePrice(ctx context.Context, ticker string, date types.Date) (decimal.Decimal, bool, error)
	CurrentPrice(ctx context.Context, ticker string) (decimal.Decimal, bool, error)
}
