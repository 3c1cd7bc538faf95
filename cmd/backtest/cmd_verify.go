package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/verification"
)

// errVerificationFailed makes the command exit non-zero on divergence.
var errVerificationFailed = errors.New("verification failed")

// verifyCmd replays a stored run and diffs the ledger
var verifyCmd = &cobra.Command{
	Use:   "verify RUN_ID",
	Short: "Replay a stored run and compare its ledger trade by trade",
	Long: `Re-execute a stored run with its recorded strategy config over the
current bar store and compare every trade field against the stored ledger.
Pass the same --start/--end as the original run; symbols default to the
run's own universe.

Examples:
  backtest verify 7Hq2... --backend sqlite
  backtest verify 7Hq2... --start 2024-03-01 --end 2024-03-29`,
	Args: cobra.ExactArgs(1),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}

func runVerify(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.stores.Close()

	report, err := verification.NewReplayVerifier(verification.Options{
		BarStore:     e.stores.Bars,
		ProfileStore: e.stores.Profiles,
		TradeStore:   e.stores.Trades,
		RunStore:     e.stores.Runs,
		Symbols:      e.cfg.Backtest.Symbols,
		Start:        e.start,
		End:          e.end,
		Concurrency:  e.cfg.Backtest.Concurrency,
		Logger:       &e.log,
	}).VerifyRun(ctx, args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Run %s: %d stored, %d replayed, %d matched, %d divergent\n",
		report.RunID, report.StoredTrades, report.ReplayedTrades, report.Matched, report.Divergent)
	if !report.InputsMatch {
		fmt.Printf("  inputs changed: replay hashes to %s\n", report.ReplayedRunID)
	}
	for _, r := range report.Results {
		for _, d := range r.Divergences {
			fmt.Printf("  %s %s %s: stored %v, replayed %v\n", r.Symbol, r.TradeID, d.Field, d.Expected, d.Actual)
		}
	}
	for _, k := range report.Missing {
		fmt.Printf("  missing from replay: %s %s %s\n", k.Symbol, k.EntryTime.In(e.loc).Format("2006-01-02 15:04"), k.ExitReason)
	}
	for _, k := range report.Extra {
		fmt.Printf("  not in stored ledger: %s %s %s\n", k.Symbol, k.EntryTime.In(e.loc).Format("2006-01-02 15:04"), k.ExitReason)
	}
	if !report.OK() {
		return errVerificationFailed
	}
	fmt.Println("  OK")
	return nil
}
