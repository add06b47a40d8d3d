package repository

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// Single wraps one backend with the same snapshot merge rules the dual
// coordinator applies, for funds running without a secondary store.
type Single struct {
	backend Backend
	merger  SnapshotMerger
	loc     *time.Location
	log     zerolog.Logger
}

func NewSingle(backend Backend, merger SnapshotMerger, loc *time.Location, log zerolog.Logger) *Single {
	return &Single{backend: backend, merger: merger, loc: loc, log: log}
}

func (s *Single) SaveTrade(ctx context.Context, trade types.Trade) error {
	return s.backend.SaveTrade(ctx, trade)
}

func (s *Single) UpdateTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) error {
	return s.backend.UpdateTradePnL(ctx, key, pnl)
}

func (s *Single) TradeHistory(ctx context.Context, ticker string, r types.DateRange) ([]types.Trade, error) {
	return s.backend.TradeHistory(ctx, ticker, r)
}

func (s *Single) SaveSnapshot(ctx context.Context, snap types.Snapshot, tradeExecution bool) error {
	date := snap.Date(s.loc)
	existing, err := s.backend.SnapshotOn(ctx, date)
	if err != nil {
		return err
	}
	merged, save := s.merger.Merge(existing, snap, tradeExecution)
	if !save {
		s.log.Debug().Stringer("date", date).Msg("market-close snapshot protected, save skipped")
		return nil
	}
	return s.backend.ReplaceSnapshot(ctx, merged)
}

func (s *Single) Snapshots(ctx context.Context, r types.DateRange) ([]types.Snapshot, error) {
	return s.backend.Snapshots(ctx, r)
}

func (s *Single) SaveCashBalance(ctx context.Context, balance types.CashBalance) error {
	return s.backend.SaveCashBalance(ctx, balance)
}

func (s *Single) Close() error { return s.backend.Close() }
