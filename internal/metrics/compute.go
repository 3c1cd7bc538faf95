package metrics

import (
	"math"
	"sort"

	"hod-momentum-lab/internal/domain"
)

// Summary aggregates a trade ledger. Dollar figures use PnLAbs, distribution
// figures use PnLPct. Scale-out tranches count as separate trades.
type Summary struct {
	RunID      string `json:"run_id"`
	StrategyID string `json:"strategy_id"`

	TotalTrades int     `json:"total_trades"`
	Positions   int     `json:"positions"`
	Symbols     int     `json:"symbols"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
	Flats       int     `json:"flats"`
	WinRate     float64 `json:"win_rate"` // wins / total trades

	TotalPnL     float64  `json:"total_pnl"`
	GrossProfit  float64  `json:"gross_profit"`
	GrossLoss    float64  `json:"gross_loss"`    // positive magnitude
	ProfitFactor *float64 `json:"profit_factor"` // nil without losing trades
	Expectancy   float64  `json:"expectancy"`    // mean PnLAbs per trade
	AvgWin       float64  `json:"avg_win"`
	AvgLoss      float64  `json:"avg_loss"`
	LargestWin   float64  `json:"largest_win"`
	LargestLoss  float64  `json:"largest_loss"` // minimum trade P&L
	Sharpe       *float64 `json:"sharpe"`       // per-trade mean / stddev of PnLAbs

	PctMean   float64 `json:"pct_mean"`
	PctMedian float64 `json:"pct_median"`
	PctP10    float64 `json:"pct_p10"`
	PctP25    float64 `json:"pct_p25"`
	PctP75    float64 `json:"pct_p75"`
	PctP90    float64 `json:"pct_p90"`
	PctStddev float64 `json:"pct_stddev"`

	MaxDrawdown          float64 `json:"max_drawdown"` // dollars, peak to trough of cumulative PnLAbs
	MaxConsecutiveLosses int     `json:"max_consecutive_losses"`
	AvgHoldMinutes       float64 `json:"avg_hold_minutes"`

	ByExitReason []GroupStats `json:"by_exit_reason"`
	BySymbol     []GroupStats `json:"by_symbol"`
}

// GroupStats is a per-key slice of the ledger.
type GroupStats struct {
	Key       string  `json:"key"`
	Trades    int     `json:"trades"`
	Wins      int     `json:"wins"`
	WinRate   float64 `json:"win_rate"`
	TotalPnL  float64 `json:"total_pnl"`
	AvgPnLPct float64 `json:"avg_pnl_pct"`
}

// Compute builds a Summary. Trades are ordered by (ExitTime, TradeID) before
// order-dependent figures (drawdown, loss streaks) are taken.
func Compute(trades []domain.Trade) *Summary {
	s := &Summary{}
	n := len(trades)
	if n == 0 {
		return s
	}
	s.RunID = trades[0].RunID
	s.StrategyID = trades[0].StrategyID

	ordered := make([]domain.Trade, n)
	copy(ordered, trades)
	sort.SliceStable(ordered, func(i, j int) bool {
		if !ordered[i].ExitTime.Equal(ordered[j].ExitTime) {
			return ordered[i].ExitTime.Before(ordered[j].ExitTime)
		}
		return ordered[i].TradeID < ordered[j].TradeID
	})

	pnl := make([]float64, n)
	pct := make([]float64, n)
	positions := make(map[string]struct{})
	symbols := make(map[string]struct{})
	holdMinutes := 0.0

	s.LargestWin = math.Inf(-1)
	s.LargestLoss = math.Inf(1)
	for i, t := range ordered {
		pnl[i] = t.PnLAbs
		pct[i] = t.PnLPct
		positions[t.PositionID] = struct{}{}
		symbols[t.Symbol] = struct{}{}
		holdMinutes += t.ExitTime.Sub(t.EntryTime).Minutes()

		s.TotalPnL += t.PnLAbs
		s.LargestWin = math.Max(s.LargestWin, t.PnLAbs)
		s.LargestLoss = math.Min(s.LargestLoss, t.PnLAbs)
		switch {
		case t.PnLAbs > 0:
			s.Wins++
			s.GrossProfit += t.PnLAbs
		case t.PnLAbs < 0:
			s.Losses++
			s.GrossLoss -= t.PnLAbs
		default:
			s.Flats++
		}
	}

	s.TotalTrades = n
	s.Positions = len(positions)
	s.Symbols = len(symbols)
	s.WinRate = ratio(s.Wins, n)
	s.Expectancy = s.TotalPnL / float64(n)
	s.AvgHoldMinutes = holdMinutes / float64(n)
	if s.Wins > 0 {
		s.AvgWin = s.GrossProfit / float64(s.Wins)
	}
	if s.Losses > 0 {
		s.AvgLoss = -s.GrossLoss / float64(s.Losses)
		pf := s.GrossProfit / s.GrossLoss
		s.ProfitFactor = &pf
	}
	if sd := stddev(pnl, s.Expectancy); sd > 0 {
		sharpe := s.Expectancy / sd
		s.Sharpe = &sharpe
	}

	sortedPct := make([]float64, n)
	copy(sortedPct, pct)
	sort.Float64s(sortedPct)
	s.PctMean = mean(pct)
	s.PctMedian = percentile(sortedPct, 0.50)
	s.PctP10 = percentile(sortedPct, 0.10)
	s.PctP25 = percentile(sortedPct, 0.25)
	s.PctP75 = percentile(sortedPct, 0.75)
	s.PctP90 = percentile(sortedPct, 0.90)
	s.PctStddev = stddev(pct, s.PctMean)

	s.MaxDrawdown = maxDrawdown(pnl)
	s.MaxConsecutiveLosses = maxConsecutiveLosses(pnl)

	s.ByExitReason = groupBy(ordered, func(t domain.Trade) string { return string(t.ExitReason) })
	s.BySymbol = groupBy(ordered, func(t domain.Trade) string { return t.Symbol })

	return s
}

// groupBy returns per-key stats sorted by key.
func groupBy(trades []domain.Trade, key func(domain.Trade) string) []GroupStats {
	idx := make(map[string]int)
	var groups []GroupStats
	pctSum := make(map[string]float64)

	for _, t := range trades {
		k := key(t)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, GroupStats{Key: k})
		}
		g := &groups[i]
		g.Trades++
		g.TotalPnL += t.PnLAbs
		if t.PnLAbs > 0 {
			g.Wins++
		}
		pctSum[k] += t.PnLPct
	}

	for i := range groups {
		g := &groups[i]
		g.WinRate = ratio(g.Wins, g.Trades)
		g.AvgPnLPct = pctSum[g.Key] / float64(g.Trades)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}

func ratio(a, b int) float64 {
	if b == 0 {
		return 0
	}
	return float64(a) / float64(b)
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// stddev is the sample standard deviation (n-1 denominator).
func stddev(xs []float64, m float64) float64 {
	n := len(xs)
	if n < 2 {
		return 0
	}
	sumSq := 0.0
	for _, x := range xs {
		d := x - m
		sumSq += d * d
	}
	return math.Sqrt(sumSq / float64(n-1))
}

// percentile interpolates linearly over a pre-sorted slice. p is in [0,1].
func percentile(sorted []float64, p float64) float64 {
	n := len(sorted)
	if n == 0 {
		return 0
	}
	if n == 1 {
		return sorted[0]
	}

	idx := p * float64(n-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= n {
		return sorted[n-1]
	}
	frac := idx - float64(lower)
	return sorted[lower] + frac*(sorted[upper]-sorted[lower])
}

// maxDrawdown is the worst peak-to-trough of the cumulative series, starting from 0.
func maxDrawdown(pnl []float64) float64 {
	cumulative, peak, worst := 0.0, 0.0, 0.0
	for _, p := range pnl {
		cumulative += p
		if cumulative > peak {
			peak = cumulative
		}
		if dd := peak - cumulative; dd > worst {
			worst = dd
		}
	}
	return worst
}

// maxConsecutiveLosses is the longest run of strictly negative P&L.
func maxConsecutiveLosses(pnl []float64) int {
	longest, current := 0, 0
	for _, p := range pnl {
		if p < 0 {
			current++
			longest = max(longest, current)
		} else {
			current = 0
		}
	}
	return longest
}
