package decision

import "fmt"

// Evaluator evaluates decision criteria against fixed thresholds.
type Evaluator struct {
	th Thresholds
}

// NewEvaluator creates a new decision evaluator.
func NewEvaluator(th Thresholds) *Evaluator {
	return &Evaluator{th: th}
}

// Evaluate returns GO only if every criterion passes and no trigger fires.
func (e *Evaluator) Evaluate(input DecisionInput) *DecisionResult {
	goCriteria := e.evaluateGOCriteria(input)
	nogoChecks := e.evaluateNOGOTriggers(input)

	decision := DecisionGO
	for _, c := range append(append([]CriterionResult(nil), goCriteria...), nogoChecks...) {
		if !c.Pass {
			decision = DecisionNOGO
			break
		}
	}

	return &DecisionResult{
		Decision:   decision,
		GOCriteria: goCriteria,
		NOGOChecks: nogoChecks,
	}
}

func (e *Evaluator) evaluateGOCriteria(in DecisionInput) []CriterionResult {
	pfActual := "n/a (no losses)"
	pfPass := in.GrossProfit > 0
	if in.ProfitFactor != nil {
		pfActual = fmt.Sprintf("%.2f", *in.ProfitFactor)
		pfPass = *in.ProfitFactor >= e.th.MinProfitFactor
	}

	return []CriterionResult{
		{
			Name:      "Sample size",
			Threshold: fmt.Sprintf(">= %d trades", e.th.MinTrades),
			Actual:    fmt.Sprintf("%d", in.Trades),
			Pass:      in.Trades >= e.th.MinTrades,
		},
		{
			Name:      "Win rate",
			Threshold: fmt.Sprintf(">= %.0f%%", e.th.MinWinRate*100),
			Actual:    fmt.Sprintf("%.2f%%", in.WinRate*100),
			Pass:      in.WinRate >= e.th.MinWinRate,
		},
		{
			Name:      "Profit factor",
			Threshold: fmt.Sprintf(">= %.2f", e.th.MinProfitFactor),
			Actual:    pfActual,
			Pass:      pfPass,
		},
		{
			Name:      "Positive expectancy",
			Threshold: "> $0 per trade",
			Actual:    fmt.Sprintf("$%.2f", in.Expectancy),
			Pass:      in.Expectancy > 0,
		},
		{
			Name:      "Not dominated by outliers",
			Threshold: "P&L without largest win > 0",
			Actual:    fmt.Sprintf("$%.2f", in.PnLExLargestWin),
			Pass:      in.PnLExLargestWin > 0,
		},
	}
}

func (e *Evaluator) evaluateNOGOTriggers(in DecisionInput) []CriterionResult {
	return []CriterionResult{
		{
			Name:      "Negative expectancy",
			Threshold: "<= $0 per trade",
			Actual:    fmt.Sprintf("$%.2f", in.Expectancy),
			Pass:      in.Expectancy > 0,
		},
		{
			Name:      "Drawdown beyond limit",
			Threshold: fmt.Sprintf("> $%.2f", in.DrawdownLimit),
			Actual:    fmt.Sprintf("$%.2f", in.MaxDrawdown),
			Pass:      in.MaxDrawdown <= in.DrawdownLimit,
		},
		{
			Name:      "Losing streak",
			Threshold: fmt.Sprintf(">= %d in a row", e.th.MaxConsecutiveLosses),
			Actual:    fmt.Sprintf("%d", in.MaxConsecutiveLosses),
			Pass:      in.MaxConsecutiveLosses < e.th.MaxConsecutiveLosses,
		},
		{
			Name:      "Edge from a single symbol",
			Threshold: "P&L without best symbol <= 0",
			Actual:    fmt.Sprintf("$%.2f without %s", in.PnLExBestSymbol, in.BestSymbol),
			Pass:      in.PnLExBestSymbol > 0,
		},
	}
}
