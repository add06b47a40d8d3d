package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/engine"
	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

var (
	tradeTicker   string
	tradeShares   string
	tradePrice    string
	tradeCurrency string
	tradeReason   string
	tradeAt       string
)

var tradeCmd = &cobra.Command{
	Use:   "trade <buy|sell>",
	Short: "Record a trade and refresh today's snapshot",
	Long: `Trade records a buy or sell in both stores and immediately refreshes the
day's snapshot, flagged as a trade execution so it lands even after the
market-close snapshot was written.

Sells are matched against the oldest lots first and rejected when they exceed
the tracked holdings. The currency is required; there is no default.

Example:
  fundledger trade buy --ticker AAPL --shares 10 --price 187.32 --currency USD`,
	Args: cobra.ExactArgs(1),
	RunE: runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().StringVar(&tradeTicker, "ticker", "", "ticker symbol (required)")
	tradeCmd.Flags().StringVar(&tradeShares, "shares", "", "share count, fractional allowed (required)")
	tradeCmd.Flags().StringVar(&tradePrice, "price", "", "execution price per share (required)")
	tradeCmd.Flags().StringVar(&tradeCurrency, "currency", "", "trade currency, e.g. CAD or USD (required)")
	tradeCmd.Flags().StringVar(&tradeReason, "reason", "", "free-form note for the trade log")
	tradeCmd.Flags().StringVar(&tradeAt, "time", "", "execution time (RFC 3339), defaults to now")
	tradeCmd.MarkFlagRequired("ticker")
	tradeCmd.MarkFlagRequired("shares")
	tradeCmd.MarkFlagRequired("price")
	tradeCmd.MarkFlagRequired("currency")
}

func runTrade(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	side, err := types.ParseSide(args[0])
	if err != nil {
		return err
	}
	shares, err := decimal.NewFromString(tradeShares)
	if err != nil {
		return fmt.Errorf("invalid shares %q: %w", tradeShares, err)
	}
	price, err := decimal.NewFromString(tradePrice)
	if err != nil {
		return fmt.Errorf("invalid price %q: %w", tradePrice, err)
	}

	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ts := time.Now().In(a.loc)
	if tradeAt != "" {
		ts, err = time.Parse(time.RFC3339, tradeAt)
		if err != nil {
			return fmt.Errorf("invalid time %q: %w", tradeAt, err)
		}
		ts = ts.In(a.loc)
	}

	trade := types.Trade{
		Ticker:    tradeTicker,
		Side:      side,
		Shares:    shares,
		Price:     price,
		Currency:  tradeCurrency,
		Timestamp: ts,
		Reason:    tradeReason,
	}

	ledger := engine.NewLedger(a.store, a.prices, a.cal, a.cfg.MarketData.Workers, a.log)
	snap, err := ledger.RecordTrade(ctx, trade)
	if err != nil {
		return err
	}

	fmt.Printf("recorded %s %s %s @ %s %s\n", side, shares, tradeTicker, price, tradeCurrency)
	fmt.Printf("snapshot refreshed: %d positions, total %s\n", len(snap.Positions), snap.TotalValue.StringFixed(2))
	return nil
}
