package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/orchestrator"
)

// traceCmd prints the entry decision for every bar of one symbol
var traceCmd = &cobra.Command{
	Use:   "trace SYMBOL",
	Short: "Print indicators and the entry decision for every bar of a symbol",
	Long: `Evaluate the entry rules on every minute bar of one symbol without
opening positions, and print the indicator snapshot, bounce state and the
first rule that rejected the bar.

Examples:
  backtest trace ABCD --demo --date 2024-03-05
  backtest trace ABCD --fires-only`,
	Args: cobra.ExactArgs(1),
	RunE: runTrace,
}

var (
	traceDate      string
	traceFiresOnly bool
)

func init() {
	rootCmd.AddCommand(traceCmd)
	traceCmd.Flags().StringVar(&traceDate, "date", "", "Only print this session, YYYY-MM-DD")
	traceCmd.Flags().BoolVar(&traceFiresOnly, "fires-only", false, "Only print bars where every entry condition held")
}

func runTrace(cmd *cobra.Command, args []string) error {
	ctx, cancel := signalContext()
	defer cancel()

	e, err := openEnv(ctx, cmd)
	if err != nil {
		return err
	}
	defer e.stores.Close()

	var session domain.Date
	if traceDate != "" {
		if session, err = domain.ParseDate(traceDate); err != nil {
			return err
		}
	}

	symbol := strings.ToUpper(args[0])
	opts := e.orchestratorOptions(e.strategy)
	opts.Symbols = []string{symbol}
	in, err := orchestrator.New(opts).LoadInput(ctx)
	if err != nil {
		return err
	}

	driver, err := backtest.NewDriver(backtest.DriverOptions{Config: e.strategy, Logger: &e.log})
	if err != nil {
		return err
	}
	rows, err := driver.Trace(in.Symbols[0])
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIME\tCLOSE\tVOLUME\tELIG\tSCAN\tEMA9\tVWAP\tRSI\tHIST\tRVOL\tHOD\tABOVE\tFIRE\tREJECT")
	printed := 0
	for _, r := range rows {
		if session != 0 && r.Snapshot.Session != session {
			continue
		}
		if traceFiresOnly && !r.Fire {
			continue
		}
		s := r.Snapshot
		fmt.Fprintf(tw, "%s\t%.4f\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%.4f\t%d\t%s\t%s\n",
			r.Timestamp.In(e.loc).Format("2006-01-02 15:04"),
			r.Close, r.Volume,
			yesNo(r.Eligible), yesNo(r.InScanWindow),
			opt(s.EMA9, 4), opt(s.VWAP, 4), opt(s.RSI14, 1), opt(s.MACDHist, 4), opt(s.RelativeVolume, 2),
			s.DayHigh, r.Bounce.ConsecutiveAbove,
			yesNo(r.Fire), string(r.Reason))
		printed++
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Printf("%d of %d bars\n", printed, len(rows))
	return nil
}

func yesNo(b bool) string {
	if b {
		return "y"
	}
	return "-"
}

func opt(v *float64, places int) string {
	if v == nil {
		return "n/a"
	}
	return strconv.FormatFloat(*v, 'f', places, 64)
}
