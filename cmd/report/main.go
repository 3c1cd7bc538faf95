// Command report renders stored backtest runs as markdown and CSV.
package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/app"
	"hod-momentum-lab/internal/config"
	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/logger"
	"hod-momentum-lab/internal/metrics"
	"hod-momentum-lab/internal/reporting"
	"hod-momentum-lab/internal/storage"
)

var (
	configPath  string
	backendFlag string
	sqlitePath  string
	runID       string
	symbol      string
	outputDir   string
	listRuns    bool
	fixedClock  string
)

var rootCmd = &cobra.Command{
	Use:   "report",
	Short: "Render a stored run as markdown and CSV",
	Long: `report reads a persisted run from the result backend and writes
  REPORT_<run>.md          quant summary, breakdowns and decision gate
  DECISION_<run>.md        decision gate checklist
  ledger_<run>.csv         closed trades in ledger order
  eligibility_<run>.csv    daily screen decisions

Without --run-id the most recent run is used.

Examples:
  report --list
  report --run-id 7Hq2... --output-dir docs
  report --symbol ABCD`,
	SilenceUsage: true,
	RunE:         runReport,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&configPath, "config", "", "Path to YAML config")
	f.StringVar(&backendFlag, "backend", "", "Result backend: postgres, sqlite")
	f.StringVar(&sqlitePath, "sqlite-path", "", "SQLite database file")
	f.StringVar(&runID, "run-id", "", "Run to report (default: most recent)")
	f.StringVar(&symbol, "symbol", "", "Print the cross-run summary of one symbol instead")
	f.StringVar(&outputDir, "output-dir", "output", "Directory for generated files")
	f.BoolVar(&listRuns, "list", false, "List stored runs and exit")
	f.StringVar(&fixedClock, "generated-at", "", "Fixed RFC3339 generation time for reproducible output")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runReport(cmd *cobra.Command, _ []string) error {
	ctx := context.Background()

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("backend") {
		cfg.Storage.Backend = backendFlag
	}
	if cmd.Flags().Changed("sqlite-path") {
		cfg.Storage.SQLitePath = sqlitePath
	}
	// Reports never read bars.
	cfg.Storage.Bars = config.BarsCSV
	if err := cfg.Validate(); err != nil {
		return err
	}
	log := logger.Init(cfg.Logging.Level, cfg.Logging.Format)

	stores, err := app.OpenStores(ctx, cfg.Storage, log)
	if err != nil {
		return err
	}
	defer stores.Close()

	switch {
	case listRuns:
		return printRuns(ctx, stores.Runs)
	case symbol != "":
		return printSymbol(ctx, stores, symbol)
	}

	if runID == "" {
		runs, err := stores.Runs.List(ctx)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			return fmt.Errorf("no stored runs")
		}
		runID = runs[0].RunID
	}

	gen := reporting.NewGenerator(stores.Runs, stores.Trades, stores.Eligibility)
	if fixedClock != "" {
		at, err := time.Parse(time.RFC3339, fixedClock)
		if err != nil {
			return fmt.Errorf("--generated-at: %w", err)
		}
		gen = gen.WithClock(func() time.Time { return at })
	}
	report, err := gen.Generate(ctx, runID)
	if err != nil {
		return err
	}
	loc, err := report.Config.Location()
	if err != nil {
		return err
	}
	days, err := stores.Eligibility.GetByRunID(ctx, runID)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	written := []string{}
	write := func(name string, fn func(f *os.File) error) error {
		path := filepath.Join(outputDir, name)
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := fn(f); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
		written = append(written, path)
		return f.Close()
	}

	if err := write("REPORT_"+runID+".md", func(f *os.File) error {
		_, err := f.WriteString(reporting.RenderMarkdown(report))
		return err
	}); err != nil {
		return err
	}
	if report.Decision != nil {
		if err := write("DECISION_"+runID+".md", func(f *os.File) error {
			_, err := f.WriteString(decision.RenderMarkdown(report.Decision))
			return err
		}); err != nil {
			return err
		}
	}
	if err := write("ledger_"+runID+".csv", func(f *os.File) error {
		return reporting.WriteLedgerCSV(f, report.Trades, loc)
	}); err != nil {
		return err
	}
	if err := write("eligibility_"+runID+".csv", func(f *os.File) error {
		return reporting.WriteEligibilityCSV(f, days)
	}); err != nil {
		return err
	}

	fmt.Printf("Report for run %s generated:\n", runID)
	for _, p := range written {
		fmt.Printf("  - %s\n", p)
	}
	return nil
}

func printRuns(ctx context.Context, runs storage.RunStore) error {
	list, err := runs.List(ctx)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTRATEGY\tFINISHED\tSYMBOLS\tTRADES\tTOTAL P&L")
	for _, r := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%.2f\n",
			r.RunID, r.StrategyID, r.FinishedAt.UTC().Format(time.RFC3339), len(r.Symbols), r.TradeCount, r.TotalPnL)
	}
	return tw.Flush()
}

func printSymbol(ctx context.Context, stores *app.Stores, sym string) error {
	s, err := metrics.NewAggregator(stores.Trades, stores.Runs).ForSymbol(ctx, sym)
	if err != nil {
		return err
	}
	fmt.Printf("%s across all stored runs\n", sym)
	fmt.Printf("  trades: %d  wins: %d  losses: %d  win rate: %.1f%%\n", s.TotalTrades, s.Wins, s.Losses, s.WinRate*100)
	fmt.Printf("  total P&L: %.2f  expectancy: %.2f  largest win: %.2f  largest loss: %.2f\n",
		s.TotalPnL, s.Expectancy, s.LargestWin, s.LargestLoss)
	return nil
}
