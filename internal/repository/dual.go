package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// SnapshotMerger decides how an incoming snapshot combines with the day's
// stored snapshot, enforcing the market-close protection rules.
type SnapshotMerger interface {
	Merge(existing *types.Snapshot, incoming types.Snapshot, tradeExecution bool) (types.Snapshot, bool)
}

// BackendResult is the outcome of one backend's part of a dual write.
type BackendResult struct {
	Backend string
	Err     error
}

// WriteResult collects the per-backend outcomes of a dual write. There is no
// rollback between backends; a partial failure leaves the successful side
// written and is reported here.
type WriteResult struct {
	Op      string
	Results []BackendResult
}

func (r WriteResult) AllSuccessful() bool {
	for _, br := range r.Results {
		if br.Err != nil {
			return false
		}
	}
	return true
}

func (r WriteResult) AnySuccessful() bool {
	for _, br := range r.Results {
		if br.Err == nil {
			return true
		}
	}
	return false
}

// FailureDetail renders the failed backends, or "" when all succeeded.
func (r WriteResult) FailureDetail() string {
	var parts []string
	for _, br := range r.Results {
		if br.Err != nil {
			parts = append(parts, fmt.Sprintf("%s: %v", br.Backend, br.Err))
		}
	}
	return strings.Join(parts, "; ")
}

// Dual fans every write out to a primary and a secondary backend. A primary
// failure is escalated to the caller; a secondary failure is logged and the
// write still counts as accepted. Reads are served from the primary.
type Dual struct {
	primary   Backend
	secondary Backend
	merger    SnapshotMerger
	loc       *time.Location
	log       zerolog.Logger
}

func NewDual(primary, secondary Backend, merger SnapshotMerger, loc *time.Location, log zerolog.Logger) *Dual {
	return &Dual{
		primary:   primary,
		secondary: secondary,
		merger:    merger,
		loc:       loc,
		log:       log,
	}
}

// WriteTrade writes the trade to both backends and reports each outcome.
func (d *Dual) WriteTrade(ctx context.Context, trade types.Trade) WriteResult {
	return d.writeBoth(ctx, "save trade", func(b Backend) error {
		return b.SaveTrade(ctx, trade)
	})
}

// SaveTrade applies the escalation policy over WriteTrade.
func (d *Dual) SaveTrade(ctx context.Context, trade types.Trade) error {
	return d.escalate(d.WriteTrade(ctx, trade))
}

// WriteTradePnL updates the trade's realized P&L on both backends.
func (d *Dual) WriteTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) WriteResult {
	return d.writeBoth(ctx, "update trade pnl", func(b Backend) error {
		return b.UpdateTradePnL(ctx, key, pnl)
	})
}

func (d *Dual) UpdateTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) error {
	return d.escalate(d.WriteTradePnL(ctx, key, pnl))
}

// WriteSnapshot runs the merge rules against each backend's stored day
// independently and reports each outcome. The two backends can disagree on
// what the day already holds; each converges on its own merge decision.
func (d *Dual) WriteSnapshot(ctx context.Context, snap types.Snapshot, tradeExecution bool) WriteResult {
	date := snap.Date(d.loc)
	return d.writeBoth(ctx, "save snapshot", func(b Backend) error {
		existing, err := b.SnapshotOn(ctx, date)
		if err != nil {
			return fmt.Errorf("load existing snapshot: %w", err)
		}
		merged, save := d.merger.Merge(existing, snap, tradeExecution)
		if !save {
			d.log.Debug().
				Str("backend", b.Name()).
				Stringer("date", date).
				Msg("market-close snapshot protected, save skipped")
			return nil
		}
		return b.ReplaceSnapshot(ctx, merged)
	})
}

func (d *Dual) SaveSnapshot(ctx context.Context, snap types.Snapshot, tradeExecution bool) error {
	return d.escalate(d.WriteSnapshot(ctx, snap, tradeExecution))
}

// WriteCashBalance records the cash row on both backends.
func (d *Dual) WriteCashBalance(ctx context.Context, balance types.CashBalance) WriteResult {
	return d.writeBoth(ctx, "save cash balance", func(b Backend) error {
		return b.SaveCashBalance(ctx, balance)
	})
}

func (d *Dual) SaveCashBalance(ctx context.Context, balance types.CashBalance) error {
	return d.escalate(d.WriteCashBalance(ctx, balance))
}

func (d *Dual) TradeHistory(ctx context.Context, ticker string, r types.DateRange) ([]types.Trade, error) {
	return d.primary.TradeHistory(ctx, ticker, r)
}

func (d *Dual) Snapshots(ctx context.Context, r types.DateRange) ([]types.Snapshot, error) {
	return d.primary.Snapshots(ctx, r)
}

func (d *Dual) Close() error {
	perr := d.primary.Close()
	if serr := d.secondary.Close(); serr != nil && perr == nil {
		perr = serr
	}
	return perr
}

func (d *Dual) writeBoth(ctx context.Context, op string, write func(Backend) error) WriteResult {
	res := WriteResult{Op: op}
	for _, b := range []Backend{d.primary, d.secondary} {
		res.Results = append(res.Results, BackendResult{Backend: b.Name(), Err: write(b)})
	}
	return res
}

// escalate turns a WriteResult into the caller-facing error. Primary failure
// is the caller's problem; secondary failure is logged and swallowed so the
// ledger stays usable while the secondary is down.
func (d *Dual) escalate(res WriteResult) error {
	primary := res.Results[0]
	secondary := res.Results[1]
	if secondary.Err != nil {
		d.log.Warn().
			Err(secondary.Err).
			Str("backend", secondary.Backend).
			Str("op", res.Op).
			Msg("secondary store write failed")
	}
	if primary.Err != nil {
		return fmt.Errorf("%s on %s: %w", res.Op, primary.Backend, primary.Err)
	}
	return nil
}

// SyncReport is the outcome of comparing the two backends.
type SyncReport struct {
	TradeCounts     map[string]int
	LatestSnapshots map[string]string
	Issues          []string
}

func (r SyncReport) InSync() bool { return len(r.Issues) == 0 }

// ValidateSync compares cheap aggregates across the backends: trade counts
// and the latest snapshot day. It detects drift after partial write failures
// without replaying either store.
func (d *Dual) ValidateSync(ctx context.Context) (SyncReport, error) {
	report := SyncReport{
		TradeCounts:     make(map[string]int),
		LatestSnapshots: make(map[string]string),
	}

	for _, b := range []Backend{d.primary, d.secondary} {
		n, err := b.TradeCount(ctx)
		if err != nil {
			return report, fmt.Errorf("trade count on %s: %w", b.Name(), err)
		}
		report.TradeCounts[b.Name()] = n

		latest, ok, err := b.LatestSnapshotDate(ctx)
		if err != nil {
			return report, fmt.Errorf("latest snapshot on %s: %w", b.Name(), err)
		}
		if ok {
			report.LatestSnapshots[b.Name()] = latest.String()
		} else {
			report.LatestSnapshots[b.Name()] = "none"
		}
	}

	pName, sName := d.primary.Name(), d.secondary.Name()
	if report.TradeCounts[pName] != report.TradeCounts[sName] {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"trade counts differ: %s has %d, %s has %d",
			pName, report.TradeCounts[pName], sName, report.TradeCounts[sName]))
	}
	if report.LatestSnapshots[pName] != report.LatestSnapshots[sName] {
		report.Issues = append(report.Issues, fmt.Sprintf(
			"latest snapshots differ: %s at %s, %s at %s",
			pName, report.LatestSnapshots[pName], sName, report.LatestSnapshots[sName]))
	}
	return report, nil
}
