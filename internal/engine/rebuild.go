package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/calendar"
	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// Rebuilder regenerates the full snapshot history from the trade log. One
// rebuild runs at a time per fund; nothing here locks.
type Rebuilder struct {
	store        ledgerStore
	prices       priceSource
	cal          *calendar.Calendar
	workers      int
	showProgress bool
	log          zerolog.Logger
	now          func() time.Time
}

func NewRebuilder(store ledgerStore, prices priceSource, cal *calendar.Calendar, workers int, showProgress bool, log zerolog.Logger) *Rebuilder {
	return &Rebuilder{
		store:        store,
		prices:       prices,
		cal:          cal,
		workers:      workers,
		showProgress: showProgress,
		log:          log,
		now:          time.Now,
	}
}

// Report summarizes one rebuild run.
type Report struct {
	DaysWritten   int
	DaysSkipped   int
	TradesApplied int
	SkippedSells  int
	PnLBackfills  int
	Fallbacks     int
	Gaps          []PriceGap
}

// Rebuild walks trading days from the first trade to the last finished
// trading day, carrying running positions forward day to day, and emits one
// snapshot per retained day. Historical pricing tolerates flagged fallbacks;
// the terminal day is priced strictly live and any miss aborts the run with
// nothing written for that day.
func (r *Rebuilder) Rebuild(ctx context.Context) (Report, error) {
	var report Report

	trades, err := r.store.TradeHistory(ctx, "", types.DateRange{})
	if err != nil {
		return report, fmt.Errorf("load trade history: %w", err)
	}
	if len(trades) == 0 {
		r.log.Info().Msg("trade log is empty, nothing to rebuild")
		return report, nil
	}
	sort.SliceStable(trades, func(i, j int) bool {
		return trades[i].Timestamp.Before(trades[j].Timestamp)
	})

	loc := r.cal.Location()
	first := trades[0].Date(loc)
	last := r.lastTradingDate()
	if last.Before(first) {
		last = first
	}

	trackers := make(map[string]*LotTracker)
	book := newPriceBook()
	bar := r.initProgressBar(first, last)

	next := 0 // index of the first unapplied trade
	for day := first; !day.After(last); day = day.Add(1) {
		bar.Add(1)

		next, err = r.applyTradesOn(ctx, day, trades, next, trackers, &report)
		if err != nil {
			return report, err
		}

		held := heldTrackers(trackers)
		if len(held) == 0 {
			continue
		}
		if !r.cal.AnyOpen(day, heldMarkets(held)) {
			// Weekend, or a holiday on every held ticker's exchange.
			report.DaysSkipped++
			continue
		}

		var positions []types.Position
		if day == last {
			positions, err = r.terminalPositions(ctx, held)
			if err != nil {
				return report, err
			}
		} else {
			positions = r.historicalPositions(ctx, day, held, book, &report)
			if len(positions) == 0 {
				r.log.Warn().Stringer("date", day).Msg("no position could be priced, day dropped")
				report.DaysSkipped++
				continue
			}
		}

		snap := types.NewSnapshot(r.cal.CloseTime(day), positions, true)
		if err := r.store.SaveSnapshot(ctx, snap, false); err != nil {
			return report, fmt.Errorf("save snapshot for %s: %w", day, err)
		}
		report.DaysWritten++
	}

	return report, nil
}

// applyTradesOn feeds day's trades into the lot trackers and backfills
// realized P&L onto SELL rows still carrying the zero placeholder.
func (r *Rebuilder) applyTradesOn(ctx context.Context, day types.Date, trades []types.Trade, next int, trackers map[string]*LotTracker, report *Report) (int, error) {
	loc := r.cal.Location()
	for next < len(trades) && trades[next].Date(loc) == day {
		tr := trades[next]
		next++

		if err := tr.Validate(); err != nil {
			return next, fmt.Errorf("trade log entry %s@%s: %w", tr.Ticker, tr.Timestamp, err)
		}

		lt, ok := trackers[tr.Ticker]
		if !ok {
			lt = NewLotTracker(tr.Ticker)
			trackers[tr.Ticker] = lt
		}

		switch tr.Side {
		case types.SideTypeBuy:
			if err := lt.AddLot(tr.Shares, tr.Price, tr.Timestamp, tr.Currency); err != nil {
				return next, err
			}
		case types.SideTypeSell:
			res, err := lt.SellFIFO(tr.Shares, tr.Price, tr.Timestamp)
			var insufficient *InsufficientLotsError
			if errors.As(err, &insufficient) {
				r.log.Error().
					Str("ticker", tr.Ticker).
					Stringer("requested", insufficient.Requested).
					Stringer("available", insufficient.Available).
					Time("at", tr.Timestamp).
					Msg("sell exceeds tracked lots, trade skipped")
				report.SkippedSells++
				continue
			}
			if err != nil {
				return next, err
			}
			if tr.RealizedPnL.IsZero() {
				if err := r.store.UpdateTradePnL(ctx, tr.Key(), res.RealizedPnL); err != nil {
					return next, fmt.Errorf("backfill realized pnl for %s: %w", tr.Ticker, err)
				}
				report.PnLBackfills++
			}
		}
		report.TradesApplied++
	}
	return next, nil
}

// historicalPositions prices held positions for a past day: direct close,
// then forward-fill, then average cost, each fallback flagged. Tickers with
// no price at any level are dropped and recorded; the day itself survives.
func (r *Rebuilder) historicalPositions(ctx context.Context, day types.Date, held []*LotTracker, book *priceBook, report *Report) []types.Position {
	closes, _ := fetchCloses(ctx, r.prices, tickersOf(held), day, r.workers)

	positions := make([]types.Position, 0, len(held))
	for _, lt := range held {
		got := closes[lt.Ticker()]
		if got.err != nil {
			r.log.Warn().Err(got.err).Str("ticker", lt.Ticker()).Stringer("date", day).
				Msg("close price fetch failed, falling back")
		}

		switch {
		case got.ok:
			book.observe(lt.Ticker(), day, got.price)
			positions = append(positions, r.position(lt, got.price, types.PriceSourceClose))
		default:
			if entry, ok := book.lastKnown(lt.Ticker()); ok {
				r.log.Warn().
					Str("ticker", lt.Ticker()).
					Stringer("date", day).
					Stringer("from", entry.date).
					Msg("forward-filled price")
				report.Fallbacks++
				positions = append(positions, r.position(lt, entry.price, types.PriceSourceForwardFill))
				continue
			}
			if avg := lt.AvgCost(); avg.IsPositive() {
				r.log.Warn().
					Str("ticker", lt.Ticker()).
					Stringer("date", day).
					Msg("no market price known, using average cost basis")
				report.Fallbacks++
				positions = append(positions, r.position(lt, avg, types.PriceSourceCostBasis))
				continue
			}
			r.log.Warn().
				Str("ticker", lt.Ticker()).
				Stringer("date", day).
				Msg("price gap, ticker dropped from day")
			report.Gaps = append(report.Gaps, PriceGap{Ticker: lt.Ticker(), Date: day})
		}
	}
	return positions
}

// terminalPositions prices the final snapshot with live quotes only. Any
// missing price fails the whole rebuild: a partially-priced terminal
// snapshot is worse than none.
func (r *Rebuilder) terminalPositions(ctx context.Context, held []*LotTracker) ([]types.Position, error) {
	live, err := fetchLive(ctx, r.prices, tickersOf(held), r.workers)
	if err != nil {
		return nil, err
	}

	positions := make([]types.Position, 0, len(held))
	for _, lt := range held {
		got := live[lt.Ticker()]
		if got.err != nil {
			return nil, fmt.Errorf("terminal snapshot: %s: %w", lt.Ticker(), got.err)
		}
		if !got.ok {
			return nil, &PriceUnavailableError{Ticker: lt.Ticker(), Date: r.lastTradingDate()}
		}
		positions = append(positions, r.position(lt, got.price, types.PriceSourceLive))
	}
	return positions, nil
}

func (r *Rebuilder) position(lt *LotTracker, price decimal.Decimal, source types.PriceSource) types.Position {
	p := types.Position{
		Ticker:    lt.Ticker(),
		Shares:    lt.Shares(),
		AvgPrice:  lt.AvgCost(),
		CostBasis: lt.CostBasis(),
		Currency:  lt.Currency(),
	}
	return p.WithPrice(price, source)
}

// lastTradingDate is the terminal day of the walk: the most recent finished
// session on either market.
func (r *Rebuilder) lastTradingDate() types.Date {
	now := r.now()
	us := r.cal.LastTradingDate(now, calendar.MarketUS)
	ca := r.cal.LastTradingDate(now, calendar.MarketCA)
	if ca.After(us) {
		return ca
	}
	return us
}

func (r *Rebuilder) initProgressBar(first, last types.Date) *progressbar.ProgressBar {
	days := 0
	for d := first; !d.After(last); d = d.Add(1) {
		days++
	}
	if !r.showProgress {
		return progressbar.DefaultSilent(int64(days))
	}
	return progressbar.NewOptions(days,
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetElapsedTime(true),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetDescription("Rebuilding portfolio history..."),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "[green]=[reset]",
			SaucerHead:    "[green]>[reset]",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}))
}

func heldTrackers(trackers map[string]*LotTracker) []*LotTracker {
	var held []*LotTracker
	for _, lt := range trackers {
		if lt.Holding() {
			held = append(held, lt)
		}
	}
	sort.Slice(held, func(i, j int) bool { return held[i].Ticker() < held[j].Ticker() })
	return held
}

func heldMarkets(held []*LotTracker) []calendar.Market {
	seen := make(map[calendar.Market]bool)
	var markets []calendar.Market
	for _, lt := range held {
		m := calendar.MarketFor(lt.Ticker())
		if !seen[m] {
			seen[m] = true
			markets = append(markets, m)
		}
	}
	return markets
}

func tickersOf(held []*LotTracker) []string {
	tickers := make([]string, len(held))
	for i, lt := range held {
		tickers[i] = lt.Ticker()
	}
	return tickers
}
