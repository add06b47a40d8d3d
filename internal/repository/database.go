package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

// pageSize caps every read against the remote store. History and snapshot
// queries page through their result sets instead of selecting unbounded rows.
const pageSize = 1000

const schema = `
CREATE TABLE IF NOT EXISTS trades (
	id            BIGSERIAL PRIMARY KEY,
	ticker        TEXT        NOT NULL,
	side          TEXT        NOT NULL,
	shares        NUMERIC     NOT NULL,
	price         NUMERIC     NOT NULL,
	currency      TEXT        NOT NULL,
	executed_at   TIMESTAMPTZ NOT NULL,
	realized_pnl  NUMERIC     NOT NULL DEFAULT 0,
	reason        TEXT        NOT NULL DEFAULT '',
	UNIQUE (ticker, executed_at, shares, price)
);

CREATE TABLE IF NOT EXISTS snapshot_positions (
	id              BIGSERIAL PRIMARY KEY,
	snapshot_date   DATE        NOT NULL,
	taken_at        TIMESTAMPTZ NOT NULL,
	is_market_close BOOLEAN     NOT NULL,
	ticker          TEXT        NOT NULL,
	shares          NUMERIC     NOT NULL,
	avg_price       NUMERIC     NOT NULL,
	cost_basis      NUMERIC     NOT NULL,
	currency        TEXT        NOT NULL,
	current_price   NUMERIC     NOT NULL,
	market_value    NUMERIC     NOT NULL,
	unrealized_pnl  NUMERIC     NOT NULL,
	price_source    TEXT        NOT NULL,
	UNIQUE (snapshot_date, ticker)
);

CREATE TABLE IF NOT EXISTS cash_balances (
	id          BIGSERIAL PRIMARY KEY,
	currency    TEXT        NOT NULL,
	amount      NUMERIC     NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL
);
`

// querier is the slice of pgxpool.Pool the queries run against; tests
// substitute a mock.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Database persists the ledger in Postgres. It is the remote half of the
// dual-store pair.
type Database struct {
	conn querier
	pool *pgxpool.Pool
	loc  *time.Location
}

// NewDatabase connects, registers the decimal codec, and ensures the schema
// exists.
func NewDatabase(ctx context.Context, dbURL string, loc *time.Location) (*Database, error) {
	config, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// Register shopspring decimal
	config.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	conn, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, err
	}
	// Ensure the connection is established.
	if err := conn.Ping(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if _, err := conn.Exec(ctx, schema); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return &Database{conn: conn, pool: conn, loc: loc}, nil
}

func (db *Database) Name() string { return "postgres" }

func (db *Database) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

func (db *Database) SaveTrade(ctx context.Context, trade types.Trade) error {
	// Stored at whole seconds so the row matches its TradeKey and the
	// dedupe key agrees with the file store's RFC 3339 precision.
	executedAt := trade.Timestamp.Truncate(time.Second)
	tag, err := db.conn.Exec(ctx, `
		INSERT INTO trades (ticker, side, shares, price, currency, executed_at, realized_pnl, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (ticker, executed_at, shares, price) DO NOTHING`,
		trade.Ticker, string(trade.Side), trade.Shares, trade.Price,
		trade.Currency, executedAt, trade.RealizedPnL, trade.Reason,
	)
	if err != nil {
		return fmt.Errorf("insert trade: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s at %s: %w", trade.Ticker, trade.Timestamp.Format(time.RFC3339), ErrDuplicateTrade)
	}
	return nil
}

func (db *Database) UpdateTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) error {
	shares, err := decimal.NewFromString(key.Shares)
	if err != nil {
		return fmt.Errorf("trade key shares: %w", err)
	}
	price, err := decimal.NewFromString(key.Price)
	if err != nil {
		return fmt.Errorf("trade key price: %w", err)
	}
	tag, err := db.conn.Exec(ctx, `
		UPDATE trades SET realized_pnl = $1
		WHERE ticker = $2 AND executed_at = $3 AND shares = $4 AND price = $5`,
		pnl, key.Ticker, time.Unix(key.Timestamp, 0).UTC(), shares, price,
	)
	if err != nil {
		return fmt.Errorf("update trade pnl: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", key.Ticker, ErrTradeNotFound)
	}
	return nil
}

func (db *Database) TradeHistory(ctx context.Context, ticker string, r types.DateRange) ([]types.Trade, error) {
	var out []types.Trade
	for offset := 0; ; offset += pageSize {
		rows, err := db.conn.Query(ctx, `
			SELECT ticker, side, shares, price, currency, executed_at, realized_pnl, reason
			FROM trades
			WHERE ($1 = '' OR ticker = $1)
			ORDER BY executed_at, id
			LIMIT $2 OFFSET $3`,
			ticker, pageSize, offset,
		)
		if err != nil {
			return nil, fmt.Errorf("query trades: %w", err)
		}
		page, err := scanTrades(rows)
		if err != nil {
			return nil, err
		}
		for _, tr := range page {
			if r.Contains(tr.Date(db.loc)) {
				out = append(out, tr)
			}
		}
		if len(page) < pageSize {
			return out, nil
		}
	}
}

func scanTrades(rows pgx.Rows) ([]types.Trade, error) {
	defer rows.Close()
	var out []types.Trade
	for rows.Next() {
		var (
			tr   types.Trade
			side string
		)
		if err := rows.Scan(&tr.Ticker, &side, &tr.Shares, &tr.Price,
			&tr.Currency, &tr.Timestamp, &tr.RealizedPnL, &tr.Reason); err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		tr.Side = types.Side(side)
		out = append(out, tr)
	}
	return out, rows.Err()
}

func (db *Database) TradeCount(ctx context.Context) (int, error) {
	var n int
	if err := db.conn.QueryRow(ctx, `SELECT count(*) FROM trades`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return n, nil
}

func (db *Database) SnapshotOn(ctx context.Context, date types.Date) (*types.Snapshot, error) {
	rows, err := db.conn.Query(ctx, `
		SELECT taken_at, is_market_close, ticker, shares, avg_price, cost_basis,
		       currency, current_price, market_value, unrealized_pnl, price_source
		FROM snapshot_positions
		WHERE snapshot_date = $1
		ORDER BY ticker`,
		date.Time(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("query snapshot: %w", err)
	}
	snap, err := db.scanSnapshot(rows)
	if err != nil {
		return nil, err
	}
	if snap == nil {
		return nil, nil
	}
	return snap, nil
}

func (db *Database) scanSnapshot(rows pgx.Rows) (*types.Snapshot, error) {
	defer rows.Close()
	var snap *types.Snapshot
	for rows.Next() {
		var (
			takenAt time.Time
			isClose bool
			p       types.Position
			source  string
		)
		if err := rows.Scan(&takenAt, &isClose, &p.Ticker, &p.Shares, &p.AvgPrice,
			&p.CostBasis, &p.Currency, &p.CurrentPrice, &p.MarketValue,
			&p.UnrealizedPnL, &source); err != nil {
			return nil, fmt.Errorf("scan snapshot position: %w", err)
		}
		p.PriceSource = types.PriceSource(source)
		if snap == nil {
			snap = &types.Snapshot{Timestamp: takenAt.In(db.loc), IsMarketClose: isClose}
		}
		snap.Positions = append(snap.Positions, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if snap != nil {
		snap.Recalculate()
	}
	return snap, nil
}

func (db *Database) ReplaceSnapshot(ctx context.Context, snap types.Snapshot) error {
	date := snap.Date(db.loc)
	tx, err := db.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM snapshot_positions WHERE snapshot_date = $1`, date.Time(time.UTC)); err != nil {
		return fmt.Errorf("clear snapshot day: %w", err)
	}
	for _, p := range snap.Positions {
		if _, err := tx.Exec(ctx, `
			INSERT INTO snapshot_positions
				(snapshot_date, taken_at, is_market_close, ticker, shares, avg_price,
				 cost_basis, currency, current_price, market_value, unrealized_pnl, price_source)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
			date.Time(time.UTC), snap.Timestamp, snap.IsMarketClose, p.Ticker,
			p.Shares, p.AvgPrice, p.CostBasis, p.Currency, p.CurrentPrice,
			p.MarketValue, p.UnrealizedPnL, string(p.PriceSource),
		); err != nil {
			return fmt.Errorf("insert snapshot position %s: %w", p.Ticker, err)
		}
	}
	return tx.Commit(ctx)
}

func (db *Database) Snapshots(ctx context.Context, r types.DateRange) ([]types.Snapshot, error) {
	var (
		out     []types.Snapshot
		current *types.Snapshot
		curDay  types.Date
	)
	flush := func() {
		if current != nil {
			current.Recalculate()
			out = append(out, *current)
			current = nil
		}
	}
	for offset := 0; ; offset += pageSize {
		rows, err := db.conn.Query(ctx, `
			SELECT snapshot_date, taken_at, is_market_close, ticker, shares, avg_price,
			       cost_basis, currency, current_price, market_value, unrealized_pnl, price_source
			FROM snapshot_positions
			ORDER BY snapshot_date, ticker
			LIMIT $1 OFFSET $2`,
			pageSize, offset,
		)
		if err != nil {
			return nil, fmt.Errorf("query snapshots: %w", err)
		}
		n := 0
		for rows.Next() {
			n++
			var (
				day     time.Time
				takenAt time.Time
				isClose bool
				p       types.Position
				source  string
			)
			if err := rows.Scan(&day, &takenAt, &isClose, &p.Ticker, &p.Shares,
				&p.AvgPrice, &p.CostBasis, &p.Currency, &p.CurrentPrice,
				&p.MarketValue, &p.UnrealizedPnL, &source); err != nil {
				rows.Close()
				return nil, fmt.Errorf("scan snapshot position: %w", err)
			}
			d := types.NewDate(day.Year(), day.Month(), day.Day())
			if !r.Contains(d) {
				continue
			}
			if current == nil || d != curDay {
				flush()
				curDay = d
				current = &types.Snapshot{Timestamp: takenAt.In(db.loc), IsMarketClose: isClose}
			}
			p.PriceSource = types.PriceSource(source)
			current.Positions = append(current.Positions, p)
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, err
		}
		rows.Close()
		if n < pageSize {
			flush()
			return out, nil
		}
	}
}

func (db *Database) LatestSnapshotDate(ctx context.Context) (types.Date, bool, error) {
	var day *time.Time
	err := db.conn.QueryRow(ctx, `SELECT max(snapshot_date) FROM snapshot_positions`).Scan(&day)
	if err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return types.Date{}, false, fmt.Errorf("latest snapshot date: %w", err)
	}
	if day == nil {
		return types.Date{}, false, nil
	}
	return types.NewDate(day.Year(), day.Month(), day.Day()), true, nil
}

func (db *Database) SaveCashBalance(ctx context.Context, balance types.CashBalance) error {
	if _, err := db.conn.Exec(ctx, `
		INSERT INTO cash_balances (currency, amount, recorded_at)
		VALUES ($1, $2, $3)`,
		balance.Currency, balance.Amount, balance.Timestamp,
	); err != nil {
		return fmt.Errorf("insert cash balance: %w", err)
	}
	return nil
}
