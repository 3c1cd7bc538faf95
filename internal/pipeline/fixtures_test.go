package pipeline

import (
	"context"
	"testing"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage/memory"
)

func TestDemoInput_ProducesEveryScenario(t *testing.T) {
	loc := newYork(t)
	d, err := backtest.NewDriver(backtest.DriverOptions{Config: domain.DefaultStrategyConfig()})
	if err != nil {
		t.Fatalf("NewDriver: %v", err)
	}

	res, err := d.Run(context.Background(), DemoInput(loc, DefaultFixtures))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	reasons := make(map[string][]domain.ExitReason)
	for _, tr := range res.Trades {
		reasons[tr.Symbol] = append(reasons[tr.Symbol], tr.ExitReason)
	}

	want := map[string][]domain.ExitReason{
		"ABCD": {domain.ExitReasonScaleOut, domain.ExitReasonTrailingStop},
		"EFGH": {domain.ExitReasonStopLoss},
		"IJKL": {domain.ExitReasonEndOfDay},
		"MNOP": {domain.ExitReasonScaleOut, domain.ExitReasonTrailingStop},
	}
	if len(reasons) != len(want) {
		t.Fatalf("expected trades for %d symbols, got %v", len(want), reasons)
	}
	for sym, exp := range want {
		got := reasons[sym]
		if len(got) != len(exp) {
			t.Errorf("%s: expected %v, got %v", sym, exp, got)
			continue
		}
		for i := range exp {
			if got[i] != exp[i] {
				t.Errorf("%s trade %d: expected %s, got %s", sym, i, exp[i], got[i])
			}
		}
	}
	if _, ok := reasons["WIDE"]; ok {
		t.Error("WIDE has a float above the limit and must not trade")
	}
}

func TestLoadFixtures(t *testing.T) {
	ctx := context.Background()
	loc := newYork(t)
	bars := memory.NewBarStore()
	profiles := memory.NewSymbolProfileStore()
	in := DemoInput(loc, DefaultFixtures)

	if err := LoadFixtures(ctx, bars, profiles, in); err != nil {
		t.Fatalf("LoadFixtures: %v", err)
	}

	symbols, err := bars.Symbols(ctx, domain.ResolutionMinute)
	if err != nil {
		t.Fatalf("Symbols: %v", err)
	}
	if len(symbols) != len(DefaultFixtures) {
		t.Errorf("expected %d symbols, got %v", len(DefaultFixtures), symbols)
	}

	minute, err := bars.GetBySymbol(ctx, "ABCD", domain.ResolutionMinute)
	if err != nil {
		t.Fatalf("GetBySymbol: %v", err)
	}
	if len(minute) != len(in.Symbols[0].Minute) {
		t.Errorf("expected %d minute bars, got %d", len(in.Symbols[0].Minute), len(minute))
	}

	p, err := profiles.Get(ctx, "WIDE")
	if err != nil {
		t.Fatalf("Get profile: %v", err)
	}
	if p.FloatShares == nil || *p.FloatShares != 80_000_000 {
		t.Errorf("unexpected WIDE float: %+v", p)
	}

	// Loading twice is a duplicate batch.
	if err := LoadFixtures(ctx, bars, profiles, in); err == nil {
		t.Error("expected duplicate error on second load")
	}
}
