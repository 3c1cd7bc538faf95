package decision

import (
	"errors"

	"hod-momentum-lab/internal/metrics"
)

// ErrEmptySummary is returned when the summary has no trades to judge.
var ErrEmptySummary = errors.New("summary has no trades")

// Builder constructs DecisionInput from a ledger summary.
type Builder struct {
	th Thresholds
}

// NewBuilder creates a new decision input builder.
func NewBuilder(th Thresholds) *Builder {
	return &Builder{th: th}
}

// Build derives DecisionInput from s. notional is the per-position dollar
// size the drawdown limit scales with.
func (b *Builder) Build(s *metrics.Summary, notional float64) (*DecisionInput, error) {
	if s == nil || s.TotalTrades == 0 {
		return nil, ErrEmptySummary
	}

	in := &DecisionInput{
		RunID:                s.RunID,
		StrategyID:           s.StrategyID,
		Trades:               s.TotalTrades,
		WinRate:              s.WinRate,
		GrossProfit:          s.GrossProfit,
		ProfitFactor:         s.ProfitFactor,
		Expectancy:           s.Expectancy,
		PnLExLargestWin:      s.TotalPnL,
		MaxDrawdown:          s.MaxDrawdown,
		DrawdownLimit:        b.th.MaxDrawdownNotional * notional,
		MaxConsecutiveLosses: s.MaxConsecutiveLosses,
	}
	if s.LargestWin > 0 {
		in.PnLExLargestWin = s.TotalPnL - s.LargestWin
	}

	// BySymbol is key-sorted, so ties resolve to the first symbol.
	in.PnLExBestSymbol = s.TotalPnL
	for i, g := range s.BySymbol {
		if i == 0 || g.TotalPnL > s.TotalPnL-in.PnLExBestSymbol {
			in.BestSymbol = g.Key
			in.PnLExBestSymbol = s.TotalPnL - g.TotalPnL
		}
	}

	return in, nil
}
