package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/CreamyG31337/Portfolio-AI-sub000/internal/engine"
)

var rebuildProgress bool

var rebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild the full snapshot history from the trade log",
	Long: `Rebuild replays every recorded trade in order and rewrites one snapshot
per trading day, from the first trade up to today.

Historical days are priced from stored closes, falling back to the last known
close and finally to cost basis, with every fallback flagged in the snapshot.
Today's snapshot is priced strictly live: if any held ticker has no quote the
rebuild stops without writing it.

Example:
  fundledger rebuild --progress`,
	Args: cobra.NoArgs,
	RunE: runRebuild,
}

func init() {
	rootCmd.AddCommand(rebuildCmd)
	rebuildCmd.Flags().BoolVar(&rebuildProgress, "progress", false, "show a progress bar")
}

func runRebuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := openApp(ctx, true)
	if err != nil {
		return err
	}
	defer a.Close()

	rb := engine.NewRebuilder(a.store, a.prices, a.cal, a.cfg.MarketData.Workers, rebuildProgress, a.log)
	report, err := rb.Rebuild(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("rebuild complete: %d days written, %d skipped\n", report.DaysWritten, report.DaysSkipped)
	fmt.Printf("  trades applied:   %d\n", report.TradesApplied)
	fmt.Printf("  pnl backfills:    %d\n", report.PnLBackfills)
	fmt.Printf("  price fallbacks:  %d\n", report.Fallbacks)
	if report.SkippedSells > 0 {
		fmt.Printf("  skipped sells:    %d (exceeded tracked lots)\n", report.SkippedSells)
	}
	for _, gap := range report.Gaps {
		fmt.Printf("  gap: %s on %s\n", gap.Ticker, gap.Date)
	}
	return nil
}
