package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/engine"
)

var snapshotAtClose bool

var snapshotCmd = &cobra.Command{
	Use:   "snapshot",
	Short: "Price current holdings and save today's snapshot",
	Long: `Snapshot replays the trade log, prices every held position live and saves
the result as today's snapshot.

Without --close the save is an intraday refresh and will not touch a day that
already has its market-close snapshot. With --close the snapshot is stamped at
the configured close time and becomes the day's protected close.`,
	Args: cobra.NoArgs,
	RunE: runSnapshot,
}

func init() {
	rootCmd.AddCommand(snapshotCmd)
	snapshotCmd.Flags().BoolVar(&snapshotAtClose, "close", false, "save as the day's market-close snapshot")
}

func runSnapshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	ledger := engine.NewLedger(a.store, a.prices, a.cal, a.cfg.MarketData.Workers, a.log)
	snap, err := ledger.SnapshotNow(ctx, snapshotAtClose)
	if err != nil {
		return err
	}

	fmt.Printf("snapshot %s: %d positions, total %s\n",
		snap.Date(a.loc), len(snap.Positions), snap.TotalValue.StringFixed(2))
	for _, p := range snap.Positions {
		fmt.Printf("  %-8s %12s @ %-10s value %12s  pnl %12s\n",
			p.Ticker, p.Shares, p.CurrentPrice, p.MarketValue.StringFixed(2), p.UnrealizedPnL.StringFixed(2))
	}
	return nil
}
