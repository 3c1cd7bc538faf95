package main

import (
	"fmt"
	"os"
	"sync/atomic"

	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/orchestrator"
	"hod-momentum-lab/internal/sweep"
)

// sweepCmd grid-searches the exit parameters
var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Grid-search stop, target, scale-out and trailing parameters",
	Long: `Run one backtest per combination of the sweep grid (config section
"sweep") over the same universe. Combinations whose scale-out target is not
below the take profit, or whose trailing stop is wider than the stop loss,
are skipped. Entry and screen parameters stay fixed.

Writes sweep_results.csv (every combination) and SWEEP.md (top N by total
P&L, win rate, profit factor and expectancy) to --output-dir.

Examples:
  backtest sweep --demo
  backtest sweep --config lab.yaml --workers 8 --top 5`,
	RunE: runSweep,
}

var (
	sweepWorkers int
	sweepTopN    int
)

func init() {
	rootCmd.AddCommand(sweepCmd)
	sweepCmd.Flags().IntVar(&sweepWorkers, "workers", 0, "Concurrent backtests (default: sweep.workers or GOMAXPROCS)")
	sweepCmd.Flags().IntVar(&sweepTopN, "top", 0, "Rows per ranking (default: sweep.top_n)")
}

func runSweep(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.stores.Close()

	in, err := orchestrator.New(e.orchestratorOptions(e.strategy)).LoadInput(ctx)
	if err != nil {
		return err
	}

	grid := sweep.Grid{
		StopLoss:      e.cfg.Sweep.StopLoss,
		TakeProfit:    e.cfg.Sweep.TakeProfit,
		ScaleFraction: e.cfg.Sweep.ScaleFraction,
		ScaleTarget:   e.cfg.Sweep.ScaleTarget,
		TrailingStop:  e.cfg.Sweep.TrailingStop,
	}
	workers := e.cfg.Sweep.Workers
	if cmd.Flags().Changed("workers") {
		workers = sweepWorkers
	}
	topN := e.cfg.Sweep.TopN
	if cmd.Flags().Changed("top") {
		topN = sweepTopN
	}

	total := len(grid.Combos())
	var done atomic.Int32
	e.log.Info().Int("combinations", total).Int("symbols", len(in.Symbols)).Msg("sweep started")

	results, err := sweep.NewRunner(sweep.Options{
		Base:    e.strategy,
		Workers: workers,
		Logger:  &e.log,
		OnResult: func(r sweep.Result) {
			n := done.Add(1)
			e.log.Debug().
				Int32("done", n).
				Str("strategy_id", r.StrategyID).
				Float64("total_pnl", r.Summary.TotalPnL).
				Msg("combination finished")
		},
	}).Run(ctx, grid, in)
	if err != nil {
		return err
	}

	csvPath, err := writeFile("sweep_results.csv", func(f *os.File) error {
		return sweep.WriteCSV(f, results)
	})
	if err != nil {
		return err
	}
	mdPath, err := writeFile("SWEEP.md", func(f *os.File) error {
		_, err := f.WriteString(sweep.RenderMarkdown(results, topN))
		return err
	})
	if err != nil {
		return err
	}

	fmt.Printf("Sweep: %d combinations, %d with trades\n", total, len(results))
	for i, r := range sweep.Top(results, sweep.ByTotalPnL, topN) {
		c := r.Combo
		fmt.Printf("  %2d. sl=%.3f tp=%.3f scale=%.2f@%.3f trail=%.3f  trades=%d pnl=%.2f win=%.1f%%\n",
			i+1, c.StopLoss, c.TakeProfit, c.ScaleFraction, c.ScaleTarget, c.TrailingStop,
			r.Summary.TotalTrades, r.Summary.TotalPnL, r.Summary.WinRate*100)
	}
	fmt.Printf("Wrote:\n  - %s\n  - %s\n", csvPath, mdPath)
	return nil
}
