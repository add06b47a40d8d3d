package cmd

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

var (
	cashCurrency string
	cashAmount   string
)

var cashCmd = &cobra.Command{
	Use:   "cash",
	Short: "Record the fund's cash balance",
	Long: `Cash records the fund's current cash balance in one currency. Balances are
kept per currency; record each held currency separately.

Example:
  fundledger cash --currency CAD --amount 2500.75`,
	Args: cobra.NoArgs,
	RunE: runCash,
}

func init() {
	rootCmd.AddCommand(cashCmd)
	cashCmd.Flags().StringVar(&cashCurrency, "currency", "", "balance currency (required)")
	cashCmd.Flags().StringVar(&cashAmount, "amount", "", "balance amount (required)")
	cashCmd.MarkFlagRequired("currency")
	cashCmd.MarkFlagRequired("amount")
}

func runCash(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	amount, err := decimal.NewFromString(cashAmount)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", cashAmount, err)
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	balance := types.CashBalance{
		Currency:  cashCurrency,
		Amount:    amount,
		Timestamp: time.Now().In(a.loc),
	}
	if err := balance.Validate(); err != nil {
		return err
	}
	if err := a.store.SaveCashBalance(ctx, balance); err != nil {
		return err
	}
	fmt.Printf("recorded cash balance %s %s\n", amount.StringFixed(2), cashCurrency)
	return nil
}
