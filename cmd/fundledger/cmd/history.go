package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/types"
)

var (
	historyFrom string
	historyTo   string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List stored daily snapshots",
	Long: `History lists the stored snapshots, one line per trading day, with the
total portfolio value and whether the day holds its market-close snapshot.

Example:
  fundledger history --from 2024-01-01 --to 2024-03-31`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyFrom, "from", "", "first day to list (YYYY-MM-DD)")
	historyCmd.Flags().StringVar(&historyTo, "to", "", "last day to list (YYYY-MM-DD)")
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	var r types.DateRange
	var err error
	if historyFrom != "" {
		if r.From, err = types.ParseDate(historyFrom); err != nil {
			return err
		}
	}
	if historyTo != "" {
		if r.To, err = types.ParseDate(historyTo); err != nil {
			return err
		}
	}

	a, err := openApp(ctx, false)
	if err != nil {
		return err
	}
	defer a.Close()

	snaps, err := a.store.Snapshots(ctx, r)
	if err != nil {
		return err
	}
	if len(snaps) == 0 {
		fmt.Println("no snapshots stored")
		return nil
	}
	for _, s := range snaps {
		kind := "intraday"
		if s.IsMarketClose {
			kind = "close"
		}
		fmt.Printf("%s  %-8s %2d positions  total %14s\n",
			s.Date(a.loc), kind, len(s.Positions), s.TotalValue.StringFixed(2))
	}
	return nil
}
