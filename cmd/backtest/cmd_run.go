package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/orchestrator"
	"hod-momentum-lab/internal/reporting"
)

// runCmd runs one backtest with the configured strategy
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one backtest and write the ledger and report",
	Long: `Run one backtest with the configured strategy parameters.

The run is persisted to the result backend (an identical earlier run is
reused) and the following files are written to --output-dir:
  ledger_<run>.csv        closed trades in ledger order
  eligibility_<run>.csv   daily screen decisions
  REPORT_<run>.md         quant summary and decision gate

Examples:
  backtest run --demo
  backtest run --data-dir ./data --symbols ABCD,EFGH --start 2024-03-01`,
	RunE: runBacktest,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runBacktest(cmd *cobra.Command, _ []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.stores.Close()

	result, err := orchestrator.New(e.orchestratorOptions(e.strategy)).Run(ctx)
	if err != nil {
		return err
	}
	res := result.Backtest

	ledger, err := writeFile("ledger_"+res.RunID+".csv", func(f *os.File) error {
		return reporting.WriteLedgerCSV(f, res.Trades, e.loc)
	})
	if err != nil {
		return err
	}
	elig, err := writeFile("eligibility_"+res.RunID+".csv", func(f *os.File) error {
		return reporting.WriteEligibilityCSV(f, res.Eligibility.All())
	})
	if err != nil {
		return err
	}

	report, err := reporting.NewGenerator(e.stores.Runs, e.stores.Trades, e.stores.Eligibility).Generate(ctx, res.RunID)
	if err != nil {
		return err
	}
	md, err := writeFile("REPORT_"+res.RunID+".md", func(f *os.File) error {
		_, err := f.WriteString(reporting.RenderMarkdown(report))
		return err
	})
	if err != nil {
		return err
	}

	s := result.Summary
	fmt.Printf("Run %s (strategy %s)\n", res.RunID, res.StrategyID)
	fmt.Printf("  symbols: %d  excluded: %d  bars: %d\n", res.Stats.Symbols, res.Stats.SymbolsExcluded, res.Stats.BarsProcessed)
	fmt.Printf("  trades: %d  win rate: %.1f%%  total P&L: %.2f  expectancy: %.2f\n",
		s.TotalTrades, s.WinRate*100, s.TotalPnL, s.Expectancy)
	if result.Decision != nil {
		fmt.Printf("  decision: %s\n", result.Decision.Decision)
	} else {
		fmt.Printf("  decision: %s (no trades)\n", decision.DecisionNOGO)
	}
	if !result.Persisted {
		fmt.Println("  identical run already stored; results reused")
	}
	for _, ex := range res.Exclusions {
		fmt.Printf("  excluded %s: %s\n", ex.Symbol, ex.Reason)
	}
	fmt.Printf("Wrote:\n  - %s\n  - %s\n  - %s\n", ledger, elig, md)
	return nil
}
