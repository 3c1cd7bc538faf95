package metrics

import (
	"context"
	"errors"
	"testing"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
	"hod-momentum-lab/internal/storage/memory"
)

func TestAggregator_ForRun(t *testing.T) {
	ctx := context.Background()
	trades := memory.NewTradeStore()
	runs := memory.NewRunStore()

	if err := runs.Insert(ctx, &domain.RunRecord{RunID: "run", StrategyID: "strat"}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := runs.Insert(ctx, &domain.RunRecord{RunID: "empty", StrategyID: "strat"}); err != nil {
		t.Fatalf("insert run: %v", err)
	}
	if err := trades.InsertBulk(ctx, []domain.Trade{
		trade("a", "ABCD", 1, 10, 2, domain.ExitReasonTakeProfit),
		trade("b", "ABCD", 2, -4, -1, domain.ExitReasonStopLoss),
	}); err != nil {
		t.Fatalf("insert trades: %v", err)
	}

	agg := NewAggregator(trades, runs)

	s, err := agg.ForRun(ctx, "run")
	if err != nil {
		t.Fatalf("ForRun: %v", err)
	}
	if s.TotalTrades != 2 || s.StrategyID != "strat" {
		t.Errorf("unexpected summary: %+v", s)
	}

	if _, err := agg.ForRun(ctx, "empty"); !errors.Is(err, ErrNoTrades) {
		t.Errorf("expected ErrNoTrades, got %v", err)
	}
	if _, err := agg.ForRun(ctx, "missing"); !errors.Is(err, storage.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	bySym, err := agg.ForSymbol(ctx, "ABCD")
	if err != nil {
		t.Fatalf("ForSymbol: %v", err)
	}
	if bySym.TotalTrades != 2 || bySym.RunID != "" {
		t.Errorf("unexpected symbol summary: %+v", bySym)
	}
}
