package metrics

import (
	"context"
	"errors"
	"fmt"

	"hod-momentum-lab/internal/storage"
)

// ErrNoTrades is returned when no trades are available for aggregation.
var ErrNoTrades = errors.New("no trades available for aggregation")

// Aggregator builds summaries from persisted ledgers.
type Aggregator struct {
	trades storage.TradeStore
	runs   storage.RunStore
}

// NewAggregator creates a new metrics aggregator.
func NewAggregator(trades storage.TradeStore, runs storage.RunStore) *Aggregator {
	return &Aggregator{trades: trades, runs: runs}
}

// ForRun summarizes one run's ledger. Returns storage.ErrNotFound for an
// unknown run and ErrNoTrades for a run that closed nothing.
func (a *Aggregator) ForRun(ctx context.Context, runID string) (*Summary, error) {
	run, err := a.runs.GetByID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	trades, err := a.trades.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load trades for run %s: %w", runID, err)
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	s := Compute(trades)
	s.RunID = run.RunID
	s.StrategyID = run.StrategyID
	return s, nil
}

// ForSymbol summarizes every stored trade of a symbol across runs.
func (a *Aggregator) ForSymbol(ctx context.Context, symbol string) (*Summary, error) {
	trades, err := a.trades.GetBySymbol(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("load trades for %s: %w", symbol, err)
	}
	if len(trades) == 0 {
		return nil, ErrNoTrades
	}

	s := Compute(trades)
	s.RunID = ""
	return s, nil
}
