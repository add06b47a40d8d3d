package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/calendar"
	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// Ledger is the interactive write surface: recording new trades and saving
// on-demand snapshots outside a full rebuild.
type Ledger struct {
	store   ledgerStore
	prices  priceSource
	cal     *calendar.Calendar
	workers int
	log     zerolog.Logger
	now     func() time.Time
}

func NewLedger(store ledgerStore, prices priceSource, cal *calendar.Calendar, workers int, log zerolog.Logger) *Ledger {
	return &Ledger{
		store:   store,
		prices:  prices,
		cal:     cal,
		workers: workers,
		log:     log,
		now:     time.Now,
	}
}

// RecordTrade validates and persists a trade, then refreshes the day's
// snapshot flagged as trade-execution so the change lands even after the
// market-close snapshot was written.
func (l *Ledger) RecordTrade(ctx context.Context, trade types.Trade) (types.Snapshot, error) {
	// Trade identity is second-granular across both stores; sub-second
	// precision would break duplicate detection and P&L key matching.
	trade.Timestamp = trade.Timestamp.Truncate(time.Second)
	if err := trade.Validate(); err != nil {
		return types.Snapshot{}, err
	}
	if trade.Side == types.SideTypeSell && trade.RealizedPnL.IsZero() {
		pnl, err := l.realizeSell(ctx, trade)
		if err != nil {
			return types.Snapshot{}, err
		}
		trade.RealizedPnL = pnl
	}
	if err := l.store.SaveTrade(ctx, trade); err != nil {
		return types.Snapshot{}, fmt.Errorf("save trade: %w", err)
	}

	snap, err := l.buildLiveSnapshot(ctx, l.now())
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("trade recorded, snapshot refresh failed: %w", err)
	}
	if err := l.store.SaveSnapshot(ctx, snap, true); err != nil {
		return types.Snapshot{}, fmt.Errorf("trade recorded, snapshot save failed: %w", err)
	}
	return snap, nil
}

// realizeSell replays the ticker's history and books the sell against its
// lots. Unlike a rebuild replay, an interactive sell that exceeds the tracked
// holdings is rejected outright.
func (l *Ledger) realizeSell(ctx context.Context, trade types.Trade) (decimal.Decimal, error) {
	history, err := l.store.TradeHistory(ctx, trade.Ticker, types.DateRange{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("load trade history: %w", err)
	}
	sort.SliceStable(history, func(i, j int) bool {
		return history[i].Timestamp.Before(history[j].Timestamp)
	})

	lt := NewLotTracker(trade.Ticker)
	for _, tr := range history {
		if tr.Ticker != trade.Ticker {
			continue
		}
		switch tr.Side {
		case types.SideTypeBuy:
			if err := lt.AddLot(tr.Shares, tr.Price, tr.Timestamp, tr.Currency); err != nil {
				return decimal.Zero, err
			}
		case types.SideTypeSell:
			if _, err := lt.SellFIFO(tr.Shares, tr.Price, tr.Timestamp); err != nil {
				return decimal.Zero, fmt.Errorf("trade log entry %s@%s: %w", tr.Ticker, tr.Timestamp, err)
			}
		}
	}

	res, err := lt.SellFIFO(trade.Shares, trade.Price, trade.Timestamp)
	if err != nil {
		return decimal.Zero, err
	}
	return res.RealizedPnL, nil
}

// SnapshotNow prices the current holdings and saves the day's snapshot.
// With atClose the snapshot is stamped at the canonical market-close time and
// becomes the day's protected close snapshot; otherwise it is an intraday
// refresh.
func (l *Ledger) SnapshotNow(ctx context.Context, atClose bool) (types.Snapshot, error) {
	ts := l.now()
	if atClose {
		ts = l.cal.CloseTime(types.DateOf(ts, l.cal.Location()))
	}
	snap, err := l.buildLiveSnapshot(ctx, ts)
	if err != nil {
		return types.Snapshot{}, err
	}
	snap.IsMarketClose = atClose
	if err := l.store.SaveSnapshot(ctx, snap, false); err != nil {
		return types.Snapshot{}, fmt.Errorf("save snapshot: %w", err)
	}
	return snap, nil
}

// buildLiveSnapshot replays the full trade log into fresh lot trackers and
// prices the held positions strictly live. The live path shares the terminal
// rebuild rule: no fallbacks, any missing quote is an error.
func (l *Ledger) buildLiveSnapshot(ctx context.Context, ts time.Time) (types.Snapshot, error) {
	trades, err := l.store.TradeHistory(ctx, "", types.DateRange{})
	if err != nil {
		return types.Snapshot{}, fmt.Errorf("load trade history: %w", err)
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})

	trackers := make(map[string]*LotTracker)
	for _, tr := range trades {
		if err := tr.Validate(); err != nil {
			return types.Snapshot{}, fmt.Errorf("trade log entry %s@%s: %w", tr.Ticker, tr.Timestamp, err)
		}
		lt, ok := trackers[tr.Ticker]
		if !ok {
			lt = NewLotTracker(tr.Ticker)
			trackers[tr.Ticker] = lt
		}
		switch tr.Side {
		case types.SideTypeBuy:
			if err := lt.AddLot(tr.Shares, tr.Price, tr.Timestamp, tr.Currency); err != nil {
				return types.Snapshot{}, err
			}
		case types.SideTypeSell:
			_, err := lt.SellFIFO(tr.Shares, tr.Price, tr.Timestamp)
			var insufficient *InsufficientLotsError
			if errors.As(err, &insufficient) {
				l.log.Error().
					Str("ticker", tr.Ticker).
					Stringer("requested", insufficient.Requested).
					Stringer("available", insufficient.Available).
					Msg("sell exceeds tracked lots, trade skipped")
				continue
			}
			if err != nil {
				return types.Snapshot{}, err
			}
		}
	}

	held := heldTrackers(trackers)
	live, err := fetchLive(ctx, l.prices, tickersOf(held), l.workers)
	if err != nil {
		return types.Snapshot{}, err
	}

	positions := make([]types.Position, 0, len(held))
	for _, lt := range held {
		got := live[lt.Ticker()]
		if got.err != nil {
			return types.Snapshot{}, fmt.Errorf("live price for %s: %w", lt.Ticker(), got.err)
		}
		if !got.ok {
			return types.Snapshot{}, &PriceUnavailableError{
				Ticker: lt.Ticker(),
				Date:   types.DateOf(ts, l.cal.Location()),
			}
		}
		p := types.Position{
			Ticker:    lt.Ticker(),
			Shares:    lt.Shares(),
			AvgPrice:  lt.AvgCost(),
			CostBasis: lt.CostBasis(),
			Currency:  lt.Currency(),
		}
		positions = append(positions, p.WithPrice(got.price, types.PriceSourceLive))
	}

	return types.NewSnapshot(ts, positions, false), nil
}
