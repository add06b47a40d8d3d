package cmd

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/repository"
	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Import trades from a broker CSV export",
	Long: `Import reads trades from a CSV file and records them in the stores.

Expected columns: ticker, side, shares, price, currency, executed_at[, reason]
with executed_at in RFC 3339. The side must be an explicit BUY or SELL; rows
with an ambiguous side are rejected. Trades already recorded (same ticker,
time, shares and price) are skipped, so re-importing the same file is safe.

Run "fundledger rebuild" afterwards to regenerate the snapshot history.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	// Header row.
	if _, err := r.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%s: empty file", args[0])
		}
		return err
	}

	imported, skipped := 0, 0
	for line := 2; ; line++ {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		trade, err := parseImportRow(row, a.loc)
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if err := trade.Validate(); err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		switch err := a.store.SaveTrade(ctx, trade); {
		case errors.Is(err, repository.ErrDuplicateTrade):
			skipped++
		case err != nil:
			return fmt.Errorf("line %d: %w", line, err)
		default:
			imported++
		}
	}

	fmt.Printf("imported %d trades, skipped %d duplicates\n", imported, skipped)
	if imported > 0 {
		fmt.Println("run \"fundledger rebuild\" to regenerate the snapshot history")
	}
	return nil
}

func parseImportRow(row []string, loc *time.Location) (types.Trade, error) {
	if len(row) < 6 {
		return types.Trade{}, fmt.Errorf("expected at least 6 columns, got %d", len(row))
	}
	side, err := types.ParseSide(row[1])
	if err != nil {
		return types.Trade{}, err
	}
	shares, err := decimal.NewFromString(row[2])
	if err != nil {
		return types.Trade{}, fmt.Errorf("shares %q: %w", row[2], err)
	}
	price, err := decimal.NewFromString(row[3])
	if err != nil {
		return types.Trade{}, fmt.Errorf("price %q: %w", row[3], err)
	}
	ts, err := time.Parse(time.RFC3339, row[5])
	if err != nil {
		return types.Trade{}, fmt.Errorf("executed_at %q: %w", row[5], err)
	}
	trade := types.Trade{
		Ticker:    row[0],
		Side:      side,
		Shares:    shares,
		Price:     price,
		Currency:  row[4],
		Timestamp: ts.In(loc).Truncate(time.Second),
	}
	if len(row) > 6 {
		trade.Reason = row[6]
	}
	return trade, nil
}
