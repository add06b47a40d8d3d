package cmd

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/calendar"
	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/config"
	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/engine"
	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/marketdata"
	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/repository"
	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "fundledger",
	Short: "Portfolio ledger with FIFO lot tracking and daily snapshots",
	Long: `Fundledger maintains a fund's trade log and daily portfolio snapshots.

It provides tools for:
  - Recording trades with FIFO lot matching and realized P&L
  - Saving intraday and protected market-close snapshots
  - Rebuilding the full snapshot history from the trade log
  - Importing broker CSV exports with duplicate detection
  - Verifying that the file and Postgres stores agree`,
	SilenceUsage:  true,
	SilenceErrors: false,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "fundledger.yaml", "path to fund config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// ledgerStore is what the commands need from a write coordinator; both the
// dual and the single-backend coordinator satisfy it.
type ledgerStore interface {
	SaveTrade(ctx context.Context, trade types.Trade) error
	UpdateTradePnL(ctx context.Context, key types.TradeKey, pnl decimal.Decimal) error
	TradeHistory(ctx context.Context, ticker string, r types.DateRange) ([]types.Trade, error)
	SaveSnapshot(ctx context.Context, snap types.Snapshot, tradeExecution bool) error
	Snapshots(ctx context.Context, r types.DateRange) ([]types.Snapshot, error)
	SaveCashBalance(ctx context.Context, balance types.CashBalance) error
	Close() error
}

// app is the wired-up application: config, stores, calendar and prices.
type app struct {
	cfg    *config.Config
	log    zerolog.Logger
	loc    *time.Location
	cal    *calendar.Calendar
	store  ledgerStore
	dual   *repository.Dual // nil when no secondary store is configured
	prices marketdata.Source
}

func (a *app) Close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.log.Warn().Err(err).Msg("closing stores")
		}
	}
}

func newLogger() zerolog.Logger {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	return zerolog.New(writer).Level(level).With().Timestamp().Logger()
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err == nil {
		return cfg, nil
	}
	// The default config path is allowed to be absent; an explicit one is not.
	if errors.Is(err, fs.ErrNotExist) && !rootCmd.PersistentFlags().Changed("config") {
		return config.Default(), nil
	}
	return nil, err
}

// openApp loads config and wires the calendar, stores and price pipeline.
// Commands that never touch prices pass withPrices false so a missing price
// file does not block them.
func openApp(ctx context.Context, withPrices bool) (*app, error) {
	log := newLogger()
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	loc := cfg.Location()
	a := &app{
		cfg: cfg,
		log: log,
		loc: loc,
		cal: calendar.New(loc, cfg.Fund.CloseHour, cfg.Fund.CloseMinute),
	}

	merger := engine.NewConsolidator(loc, cfg.Fund.CloseHour, cfg.Fund.CloseMinute, log)
	primary, err := repository.NewFileStore(cfg.Stores.DataDir, loc)
	if err != nil {
		return nil, err
	}
	if cfg.Stores.PostgresDSN != "" {
		secondary, err := repository.NewDatabase(ctx, cfg.Stores.PostgresDSN, loc)
		if err != nil {
			primary.Close()
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		a.dual = repository.NewDual(primary, secondary, merger, loc, log)
		a.store = a.dual
	} else {
		a.store = repository.NewSingle(primary, merger, loc, log)
	}

	if withPrices {
		src, err := buildPriceSource(cfg)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.prices = src
	}
	return a, nil
}

// buildPriceSource stacks the price pipeline: file table, provider rate
// limit, then cache.
func buildPriceSource(cfg *config.Config) (marketdata.Source, error) {
	if cfg.MarketData.PriceFile == "" {
		return nil, fmt.Errorf("market_data price_file is required for this command")
	}
	base, err := marketdata.NewFileSource(cfg.MarketData.PriceFile)
	if err != nil {
		return nil, err
	}
	var src marketdata.Source = base
	if cfg.MarketData.RequestsPerSecond > 0 {
		src = marketdata.NewThrottledSource(src, cfg.MarketData.RequestsPerSecond)
	}
	cache := marketdata.NewCache(cfg.MarketData.RedisAddr)
	return marketdata.NewCachedSource(src, cache, 24*time.Hour, cfg.MarketData.CacheTTL.Std()), nil
}
