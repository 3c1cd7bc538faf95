package decision

// Decision represents the final GO/NO-GO result.
type Decision string

const (
	DecisionGO   Decision = "GO"
	DecisionNOGO Decision = "NO-GO"
)

// Thresholds are the gate limits. Ratios are fractions, not percents.
type Thresholds struct {
	MinTrades            int     `json:"min_trades"`
	MinWinRate           float64 `json:"min_win_rate"`
	MinProfitFactor      float64 `json:"min_profit_factor"`
	MaxDrawdownNotional  float64 `json:"max_drawdown_notional"` // drawdown limit as a multiple of position notional
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
}

// DefaultThresholds returns the gate used by the CLI and the report.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinTrades:            30,
		MinWinRate:           0.40,
		MinProfitFactor:      1.2,
		MaxDrawdownNotional:  0.5,
		MaxConsecutiveLosses: 8,
	}
}

// DecisionInput contains the ledger figures the gate looks at.
type DecisionInput struct {
	RunID      string
	StrategyID string

	Trades       int
	WinRate      float64
	GrossProfit  float64
	ProfitFactor *float64 // nil when there are no losing trades
	Expectancy   float64

	// P&L with the single largest winning trade removed.
	PnLExLargestWin float64
	// P&L with the best symbol's trades removed.
	PnLExBestSymbol float64
	BestSymbol      string

	MaxDrawdown          float64
	DrawdownLimit        float64 // dollars
	MaxConsecutiveLosses int
}

// CriterionResult represents pass/fail for one criterion.
type CriterionResult struct {
	Name      string `json:"name"`
	Threshold string `json:"threshold"`
	Actual    string `json:"actual"`
	Pass      bool   `json:"pass"`
}

// DecisionResult contains the final decision with checklist.
type DecisionResult struct {
	Decision   Decision          `json:"decision"`
	GOCriteria []CriterionResult `json:"go_criteria"`
	NOGOChecks []CriterionResult `json:"nogo_checks"` // Pass=false means triggered
}
