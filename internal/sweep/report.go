package sweep

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

var csvHeader = []string{
	"stop_loss", "take_profit", "scale_fraction", "scale_target", "trailing_stop",
	"total_trades", "wins", "losses", "win_rate", "total_pnl", "avg_win", "avg_loss",
	"largest_win", "largest_loss", "profit_factor", "expectancy", "max_drawdown",
}

// WriteCSV writes one row per result in the given order.
func WriteCSV(w io.Writer, results []Result) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range results {
		s := r.Summary
		pf := ""
		if s.ProfitFactor != nil {
			pf = ff(*s.ProfitFactor)
		}
		row := []string{
			ff(r.Combo.StopLoss), ff(r.Combo.TakeProfit), ff(r.Combo.ScaleFraction),
			ff(r.Combo.ScaleTarget), ff(r.Combo.TrailingStop),
			strconv.Itoa(s.TotalTrades), strconv.Itoa(s.Wins), strconv.Itoa(s.Losses),
			ff(s.WinRate), ff(s.TotalPnL), ff(s.AvgWin), ff(s.AvgLoss),
			ff(s.LargestWin), ff(s.LargestLoss), pf, ff(s.Expectancy), ff(s.MaxDrawdown),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ff(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// RenderMarkdown renders the top n results for every objective.
func RenderMarkdown(results []Result, n int) string {
	var sb strings.Builder
	sb.WriteString("# Exit Parameter Sweep\n\n")
	fmt.Fprintf(&sb, "Combinations with trades: %d\n", len(results))

	for _, obj := range Objectives {
		fmt.Fprintf(&sb, "\n## Top %d by %s\n\n", n, obj)
		sb.WriteString("| # | SL | TP | Scale | Target | Trail | Trades | Win rate | Total P&L | PF | Expectancy |\n")
		sb.WriteString("|---|---|---|---|---|---|---|---|---|---|---|\n")
		for i, r := range Top(results, obj, n) {
			s := r.Summary
			pf := "n/a"
			if s.ProfitFactor != nil {
				pf = fmt.Sprintf("%.2f", *s.ProfitFactor)
			}
			fmt.Fprintf(&sb, "| %d | %.1f%% | %.1f%% | %.0f%% | %.1f%% | %.1f%% | %d | %.1f%% | %.2f | %s | %.2f |\n",
				i+1,
				r.Combo.StopLoss*100, r.Combo.TakeProfit*100, r.Combo.ScaleFraction*100,
				r.Combo.ScaleTarget*100, r.Combo.TrailingStop*100,
				s.TotalTrades, s.WinRate*100, s.TotalPnL, pf, s.Expectancy)
		}
	}
	return sb.String()
}
