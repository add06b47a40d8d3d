package repository

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

const (
	tradesFile    = "trades.csv"
	snapshotsFile = "snapshots.csv"
	cashFile      = "cash_balances.csv"
)

var tradeHeader = []string{"ticker", "side", "shares", "price", "currency", "executed_at", "realized_pnl", "reason"}

var snapshotHeader = []string{
	"snapshot_date", "taken_at", "is_market_close", "ticker", "shares",
	"avg_price", "cost_basis", "currency", "current_price", "market_value",
	"unrealized_pnl", "price_source",
}

var cashHeader = []string{"currency", "amount", "recorded_at"}

// FileStore persists the ledger as CSV files in a local directory. The trade
// log is append-only; the snapshot file is rewritten whole through a
// temp-file rename so a crash never leaves it half-written.
type FileStore struct {
	dir string
	loc *time.Location

	mu   sync.Mutex
	keys map[types.TradeKey]struct{}
}

func NewFileStore(dir string, loc *time.Location) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	s := &FileStore{dir: dir, loc: loc, keys: make(map[types.TradeKey]struct{})}
	trades, err := s.readTrades()
	if err != nil {
		return nil, err
	}
	for _, tr := range trades {
		s.keys[tr.Key()] = struct{}{}
	}
	return s, nil
}

func (s *FileStore) Name() string { return "file" }

func (s *FileStore) Close() error { return nil }

func (s *FileStore) SaveTrade(_ context.Context, trade types.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := trade.Key()
	if _, ok := s.keys[key]; ok {
		return fmt.Errorf("%s at %s: %w", trade.Ticker, trade.Timestamp.Format(time.RFC3339), ErrDuplicateTrade)
	}
	if err := s.appendRow(tradesFile, tradeHeader, tradeRow(trade)); err != nil {
		return err
	}
	s.keys[key] = struct{}{}
	return nil
}

func (s *FileStore) UpdateTradePnL(_ context.Context, key types.TradeKey, pnl decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	trades, err := s.readTrades()
	if err != nil {
		return err
	}
	found := false
	for i := range trades {
		if trades[i].Key() == key {
			trades[i].RealizedPnL = pnl
			found = true
		}
	}
	if !found {
		return fmt.Errorf("%s: %w", key.Ticker, ErrTradeNotFound)
	}

	rows := make([][]string, 0, len(trades))
	for _, tr := range trades {
		rows = append(rows, tradeRow(tr))
	}
	return s.rewrite(tradesFile, tradeHeader, rows)
}

func (s *FileStore) TradeHistory(_ context.Context, ticker string, r types.DateRange) ([]types.Trade, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all, err := s.readTrades()
	if err != nil {
		return nil, err
	}
	var out []types.Trade
	for _, tr := range all {
		if ticker != "" && tr.Ticker != ticker {
			continue
		}
		if !r.Contains(tr.Date(s.loc)) {
			continue
		}
		out = append(out, tr)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})
	return out, nil
}

func (s *FileStore) TradeCount(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.keys), nil
}

func (s *FileStore) SnapshotOn(_ context.Context, date types.Date) (*types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay, err := s.readSnapshots()
	if err != nil {
		return nil, err
	}
	snap, ok := byDay[date]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

func (s *FileStore) ReplaceSnapshot(_ context.Context, snap types.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay, err := s.readSnapshots()
	if err != nil {
		return err
	}
	byDay[snap.Date(s.loc)] = snap

	days := make([]types.Date, 0, len(byDay))
	for d := range byDay {
		days = append(days, d)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	var rows [][]string
	for _, d := range days {
		sn := byDay[d]
		for _, p := range sn.Positions {
			rows = append(rows, snapshotRow(d, sn, p))
		}
	}
	return s.rewrite(snapshotsFile, snapshotHeader, rows)
}

func (s *FileStore) Snapshots(_ context.Context, r types.DateRange) ([]types.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay, err := s.readSnapshots()
	if err != nil {
		return nil, err
	}
	days := make([]types.Date, 0, len(byDay))
	for d := range byDay {
		if r.Contains(d) {
			days = append(days, d)
		}
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	out := make([]types.Snapshot, 0, len(days))
	for _, d := range days {
		out = append(out, byDay[d])
	}
	return out, nil
}

func (s *FileStore) LatestSnapshotDate(_ context.Context) (types.Date, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	byDay, err := s.readSnapshots()
	if err != nil {
		return types.Date{}, false, err
	}
	var latest types.Date
	found := false
	for d := range byDay {
		if !found || latest.Before(d) {
			latest = d
			found = true
		}
	}
	return latest, found, nil
}

func (s *FileStore) SaveCashBalance(_ context.Context, balance types.CashBalance) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := []string{
		balance.Currency,
		balance.Amount.String(),
		balance.Timestamp.Format(time.RFC3339),
	}
	return s.appendRow(cashFile, cashHeader, row)
}

// CashBalances returns every recorded cash row in file order.
func (s *FileStore) CashBalances(_ context.Context) ([]types.CashBalance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.readFile(cashFile)
	if err != nil {
		return nil, err
	}
	out := make([]types.CashBalance, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(cashHeader) {
			return nil, fmt.Errorf("%s: malformed row %q", cashFile, row)
		}
		amount, err := decimal.NewFromString(row[1])
		if err != nil {
			return nil, fmt.Errorf("%s amount: %w", cashFile, err)
		}
		ts, err := time.Parse(time.RFC3339, row[2])
		if err != nil {
			return nil, fmt.Errorf("%s recorded_at: %w", cashFile, err)
		}
		out = append(out, types.CashBalance{Currency: row[0], Amount: amount, Timestamp: ts.In(s.loc)})
	}
	return out, nil
}

func tradeRow(tr types.Trade) []string {
	return []string{
		tr.Ticker,
		string(tr.Side),
		tr.Shares.String(),
		tr.Price.String(),
		tr.Currency,
		tr.Timestamp.Format(time.RFC3339),
		tr.RealizedPnL.String(),
		tr.Reason,
	}
}

func snapshotRow(d types.Date, sn types.Snapshot, p types.Position) []string {
	return []string{
		d.String(),
		sn.Timestamp.Format(time.RFC3339),
		strconv.FormatBool(sn.IsMarketClose),
		p.Ticker,
		p.Shares.String(),
		p.AvgPrice.String(),
		p.CostBasis.String(),
		p.Currency,
		p.CurrentPrice.String(),
		p.MarketValue.String(),
		p.UnrealizedPnL.String(),
		string(p.PriceSource),
	}
}

func (s *FileStore) readTrades() ([]types.Trade, error) {
	rows, err := s.readFile(tradesFile)
	if err != nil {
		return nil, err
	}
	out := make([]types.Trade, 0, len(rows))
	for _, row := range rows {
		if len(row) != len(tradeHeader) {
			return nil, fmt.Errorf("%s: malformed row %q", tradesFile, row)
		}
		tr, err := parseTradeRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", tradesFile, err)
		}
		out = append(out, tr)
	}
	return out, nil
}

func parseTradeRow(row []string) (types.Trade, error) {
	side, err := types.ParseSide(row[1])
	if err != nil {
		return types.Trade{}, err
	}
	shares, err := decimal.NewFromString(row[2])
	if err != nil {
		return types.Trade{}, fmt.Errorf("shares: %w", err)
	}
	price, err := decimal.NewFromString(row[3])
	if err != nil {
		return types.Trade{}, fmt.Errorf("price: %w", err)
	}
	ts, err := time.Parse(time.RFC3339, row[5])
	if err != nil {
		return types.Trade{}, fmt.Errorf("executed_at: %w", err)
	}
	pnl, err := decimal.NewFromString(row[6])
	if err != nil {
		return types.Trade{}, fmt.Errorf("realized_pnl: %w", err)
	}
	return types.Trade{
		Ticker:      row[0],
		Side:        side,
		Shares:      shares,
		Price:       price,
		Currency:    row[4],
		Timestamp:   ts,
		RealizedPnL: pnl,
		Reason:      row[7],
	}, nil
}

func (s *FileStore) readSnapshots() (map[types.Date]types.Snapshot, error) {
	rows, err := s.readFile(snapshotsFile)
	if err != nil {
		return nil, err
	}
	byDay := make(map[types.Date]types.Snapshot)
	for _, row := range rows {
		if len(row) != len(snapshotHeader) {
			return nil, fmt.Errorf("%s: malformed row %q", snapshotsFile, row)
		}
		d, sn, p, err := parseSnapshotRow(row)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", snapshotsFile, err)
		}
		existing, ok := byDay[d]
		if !ok {
			existing = types.Snapshot{Timestamp: sn.Timestamp, IsMarketClose: sn.IsMarketClose}
		}
		existing.Positions = append(existing.Positions, p)
		byDay[d] = existing
	}
	for d, sn := range byDay {
		sn.Timestamp = sn.Timestamp.In(s.loc)
		sn.Recalculate()
		byDay[d] = sn
	}
	return byDay, nil
}

func parseSnapshotRow(row []string) (types.Date, types.Snapshot, types.Position, error) {
	d, err := types.ParseDate(row[0])
	if err != nil {
		return types.Date{}, types.Snapshot{}, types.Position{}, err
	}
	ts, err := time.Parse(time.RFC3339, row[1])
	if err != nil {
		return types.Date{}, types.Snapshot{}, types.Position{}, fmt.Errorf("taken_at: %w", err)
	}
	isClose, err := strconv.ParseBool(row[2])
	if err != nil {
		return types.Date{}, types.Snapshot{}, types.Position{}, fmt.Errorf("is_market_close: %w", err)
	}

	nums := make([]decimal.Decimal, 6)
	for i, col := range []int{4, 5, 6, 8, 9, 10} {
		nums[i], err = decimal.NewFromString(row[col])
		if err != nil {
			return types.Date{}, types.Snapshot{}, types.Position{}, fmt.Errorf("%s: %w", snapshotHeader[col], err)
		}
	}
	p := types.Position{
		Ticker:        row[3],
		Shares:        nums[0],
		AvgPrice:      nums[1],
		CostBasis:     nums[2],
		Currency:      row[7],
		CurrentPrice:  nums[3],
		MarketValue:   nums[4],
		UnrealizedPnL: nums[5],
		PriceSource:   types.PriceSource(row[11]),
	}
	return d, types.Snapshot{Timestamp: ts, IsMarketClose: isClose}, p, nil
}

// readFile returns the data rows of one CSV file, skipping its header. A
// missing file reads as empty.
func (s *FileStore) readFile(name string) ([][]string, error) {
	f, err := os.Open(filepath.Join(s.dir, name))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[1:], nil
}

func (s *FileStore) appendRow(name string, header, row []string) error {
	path := filepath.Join(s.dir, name)
	_, statErr := os.Stat(path)
	fresh := errors.Is(statErr, fs.ErrNotExist)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if fresh {
		if err := w.Write(header); err != nil {
			return fmt.Errorf("write %s header: %w", name, err)
		}
	}
	if err := w.Write(row); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.Flush()
	return w.Error()
}

func (s *FileStore) rewrite(name string, header []string, rows [][]string) error {
	path := filepath.Join(s.dir, name)
	tmp, err := os.CreateTemp(s.dir, name+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())

	w := csv.NewWriter(tmp)
	if err := w.Write(header); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s header: %w", name, err)
	}
	if err := w.WriteAll(rows); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", name, err)
	}
	return os.Rename(tmp.Name(), path)
}
