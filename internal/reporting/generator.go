package reporting

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/metrics"
	"hod-momentum-lab/internal/storage"
)

// Generator produces reports from stored run outputs.
type Generator struct {
	runs        storage.RunStore
	trades      storage.TradeStore
	eligibility storage.EligibilityStore
	thresholds  decision.Thresholds
	now         func() time.Time // injectable for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(runs storage.RunStore, trades storage.TradeStore, eligibility storage.EligibilityStore) *Generator {
	return &Generator{
		runs:        runs,
		trades:      trades,
		eligibility: eligibility,
		thresholds:  decision.DefaultThresholds(),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// WithThresholds replaces the decision gate limits.
func (g *Generator) WithThresholds(th decision.Thresholds) *Generator {
	g.thresholds = th
	return g
}

// Generate builds the report for runID.
func (g *Generator) Generate(ctx context.Context, runID string) (*Report, error) {
	run, err := g.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	var cfg domain.StrategyConfig
	if err := json.Unmarshal([]byte(run.ConfigJSON), &cfg); err != nil {
		return nil, fmt.Errorf("decode config of run %s: %w", runID, err)
	}

	trades, err := g.trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades: %w", err)
	}
	days, err := g.eligibility.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load eligibility: %w", err)
	}

	r := &Report{
		GeneratedAt: g.now(),
		Run:         *run,
		Config:      cfg,
		Eligibility: SummarizeEligibility(days),
		Trades:      trades,
	}

	if len(trades) == 0 {
		return r, nil
	}

	r.Summary = metrics.Compute(trades)
	r.Summary.RunID = run.RunID
	r.Summary.StrategyID = run.StrategyID

	in, err := decision.NewBuilder(g.thresholds).Build(r.Summary, cfg.PositionNotional)
	if err != nil && !errors.Is(err, decision.ErrEmptySummary) {
		return nil, fmt.Errorf("build decision input: %w", err)
	}
	if in != nil {
		r.Decision = decision.NewEvaluator(g.thresholds).Evaluate(*in)
	}
	return r, nil
}

// SummarizeEligibility counts symbol-days by outcome and reason.
func SummarizeEligibility(days []domain.EligibilityDay) EligibilitySummary {
	s := EligibilitySummary{SymbolDays: len(days)}
	symbols := make(map[string]struct{})
	reasons := make(map[string]int)
	for _, d := range days {
		symbols[d.Symbol] = struct{}{}
		reasons[d.Reason]++
		if d.Eligible {
			s.EligibleDays++
		}
	}
	s.Symbols = len(symbols)
	for reason, n := range reasons {
		s.ByReason = append(s.ByReason, ReasonCount{Reason: reason, Count: n})
	}
	sort.Slice(s.ByReason, func(i, j int) bool { return s.ByReason[i].Reason < s.ByReason[j].Reason })
	return s
}

// LedgerRecords converts trades to their external form with times in loc.
func LedgerRecords(trades []domain.Trade, loc *time.Location) []LedgerRecord {
	out := make([]LedgerRecord, len(trades))
	for i, t := range trades {
		out[i] = LedgerRecord{
			Symbol:     t.Symbol,
			EntryTime:  t.EntryTime.In(loc).Format(time.RFC3339),
			ExitTime:   t.ExitTime.In(loc).Format(time.RFC3339),
			EntryPrice: t.EntryPrice,
			ExitPrice:  t.ExitPrice,
			Shares:     t.Shares,
			PnLAbs:     t.PnLAbs,
			PnLPct:     t.PnLPct,
			ExitReason: string(t.ExitReason),
			Partial:    t.Partial,
		}
	}
	return out
}
