package reporting

import (
	"fmt"
	"strings"
	"time"

	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/metrics"
)

// RenderMarkdown renders the quant report. Trade times are shown in the
// run's exchange timezone.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	loc, err := r.Config.Location()
	if err != nil {
		loc = time.UTC
	}

	sb.WriteString("# HOD Momentum Backtest Report\n\n")
	fmt.Fprintf(&sb, "Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339))

	sb.WriteString("## Run\n\n")
	sb.WriteString("| Field | Value |\n")
	sb.WriteString("|-------|-------|\n")
	fmt.Fprintf(&sb, "| Run ID | %s |\n", r.Run.RunID)
	fmt.Fprintf(&sb, "| Strategy | %s |\n", r.Run.StrategyID)
	fmt.Fprintf(&sb, "| Symbols | %s |\n", strings.Join(r.Run.Symbols, ", "))
	fmt.Fprintf(&sb, "| Started | %s |\n", r.Run.StartedAt.Format(time.RFC3339))
	fmt.Fprintf(&sb, "| Stop / Target | %.1f%% / %.1f%% |\n", r.Config.StopLossPct*100, r.Config.TakeProfitPct*100)
	fmt.Fprintf(&sb, "| Scale-out | %.0f%% at +%.1f%% |\n", r.Config.ScaleOutFraction*100, r.Config.ScaleOutTarget*100)
	fmt.Fprintf(&sb, "| Trailing stop | %.1f%% |\n", r.Config.TrailingStopPct*100)
	fmt.Fprintf(&sb, "| Position size | $%.2f |\n", r.Config.PositionNotional)
	fmt.Fprintf(&sb, "| Scan window | %s to %s, cutoff %s |\n", r.Config.ScanStart, r.Config.ScanEnd, r.Config.SessionCutoff)
	sb.WriteString("\n")

	sb.WriteString("## Daily Screen\n\n")
	fmt.Fprintf(&sb, "%d symbol-days over %d symbols, %d eligible.\n\n",
		r.Eligibility.SymbolDays, r.Eligibility.Symbols, r.Eligibility.EligibleDays)
	if len(r.Eligibility.ByReason) > 0 {
		sb.WriteString("| Reason | Days |\n")
		sb.WriteString("|--------|------|\n")
		for _, rc := range r.Eligibility.ByReason {
			fmt.Fprintf(&sb, "| %s | %d |\n", rc.Reason, rc.Count)
		}
		sb.WriteString("\n")
	}

	if r.Summary == nil {
		sb.WriteString("## Performance\n\nNo trades were closed in this run.\n")
		return sb.String()
	}
	writePerformance(&sb, r.Summary)
	writeGroups(&sb, "Exit Reasons", "Reason", r.Summary.ByExitReason)
	writeGroups(&sb, "Symbols", "Symbol", r.Summary.BySymbol)

	if r.Decision != nil {
		sb.WriteString(decision.RenderMarkdown(r.Decision))
		sb.WriteString("\n")
	}

	sb.WriteString("## Trade Ledger\n\n")
	sb.WriteString("| # | Symbol | Entry | Exit | Entry $ | Exit $ | Shares | P&L $ | P&L % | Reason |\n")
	sb.WriteString("|---|--------|-------|------|---------|--------|--------|-------|-------|--------|\n")
	for i, t := range r.Trades {
		reason := string(t.ExitReason)
		if t.Partial {
			reason += " (partial)"
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %.4f | %.4f | %d | %.2f | %.2f | %s |\n",
			i+1, t.Symbol,
			t.EntryTime.In(loc).Format("2006-01-02 15:04"),
			t.ExitTime.In(loc).Format("2006-01-02 15:04"),
			t.EntryPrice, t.ExitPrice, t.Shares, t.PnLAbs, t.PnLPct, reason)
	}

	return sb.String()
}

func writePerformance(sb *strings.Builder, s *metrics.Summary) {
	sb.WriteString("## Performance\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	fmt.Fprintf(sb, "| Trades | %d (%d positions) |\n", s.TotalTrades, s.Positions)
	fmt.Fprintf(sb, "| Wins / Losses / Flat | %d / %d / %d |\n", s.Wins, s.Losses, s.Flats)
	fmt.Fprintf(sb, "| Win Rate | %.2f%% |\n", s.WinRate*100)
	fmt.Fprintf(sb, "| Total P&L | $%.2f |\n", s.TotalPnL)
	fmt.Fprintf(sb, "| Expectancy | $%.2f per trade |\n", s.Expectancy)
	fmt.Fprintf(sb, "| Average Win | $%.2f |\n", s.AvgWin)
	fmt.Fprintf(sb, "| Average Loss | $%.2f |\n", s.AvgLoss)
	fmt.Fprintf(sb, "| Largest Win | $%.2f |\n", s.LargestWin)
	fmt.Fprintf(sb, "| Largest Loss | $%.2f |\n", s.LargestLoss)
	fmt.Fprintf(sb, "| Profit Factor | %s |\n", optional(s.ProfitFactor))
	fmt.Fprintf(sb, "| Sharpe (per trade) | %s |\n", optional(s.Sharpe))
	fmt.Fprintf(sb, "| Max Drawdown | $%.2f |\n", s.MaxDrawdown)
	fmt.Fprintf(sb, "| Max Consecutive Losses | %d |\n", s.MaxConsecutiveLosses)
	fmt.Fprintf(sb, "| Avg Hold | %.1f min |\n", s.AvgHoldMinutes)
	sb.WriteString("\n")

	sb.WriteString("### Return Distribution (%)\n\n")
	sb.WriteString("| Mean | P10 | P25 | Median | P75 | P90 | Stddev |\n")
	sb.WriteString("|------|-----|-----|--------|-----|-----|--------|\n")
	fmt.Fprintf(sb, "| %.2f | %.2f | %.2f | %.2f | %.2f | %.2f | %.2f |\n\n",
		s.PctMean, s.PctP10, s.PctP25, s.PctMedian, s.PctP75, s.PctP90, s.PctStddev)
}

func writeGroups(sb *strings.Builder, title, keyName string, groups []metrics.GroupStats) {
	fmt.Fprintf(sb, "## %s\n\n", title)
	fmt.Fprintf(sb, "| %s | Trades | Wins | Win Rate | P&L $ | Avg %% |\n", keyName)
	sb.WriteString("|---|--------|------|----------|-------|-------|\n")
	for _, g := range groups {
		fmt.Fprintf(sb, "| %s | %d | %d | %.1f%% | %.2f | %.2f |\n",
			g.Key, g.Trades, g.Wins, g.WinRate*100, g.TotalPnL, g.AvgPnLPct)
	}
	sb.WriteString("\n")
}

func optional(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.2f", *v)
}
