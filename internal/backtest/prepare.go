package backtest

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/indicators"
	"hod-momentum-lab/internal/replay"
)

// prepared holds the read-only per-symbol state built before replay.
type prepared struct {
	symbol    string
	minute    []domain.Bar
	snapshots []indicators.Snapshot
	days      []domain.EligibilityDay
	excluded  error
}

// prepare validates and precomputes every symbol. Symbols are independent,
// so the work fans out across a bounded errgroup; each goroutine owns one slot.
func (d *Driver) prepare(ctx context.Context, symbols []SymbolData) ([]prepared, error) {
	out := make([]prepared, len(symbols))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)
	for i := range symbols {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			out[i] = d.prepareSymbol(symbols[i])
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("precompute: %w", err)
	}
	return out, nil
}

func (d *Driver) prepareSymbol(sd SymbolData) prepared {
	p := prepared{symbol: sd.Symbol}

	if err := replay.ValidateSeries(sd.Symbol, sd.Minute); err != nil {
		p.excluded = fmt.Errorf("minute series: %w", err)
		return p
	}

	days, err := d.validator.Evaluate(sd.Symbol, sd.Daily, sd.Profile)
	if err != nil {
		p.excluded = err
		return p
	}
	p.days = days

	// Events address bars by symbol, so stamp it on every bar.
	p.minute = make([]domain.Bar, len(sd.Minute))
	for i, b := range sd.Minute {
		b.Symbol = sd.Symbol
		p.minute[i] = b
	}

	baseline := indicators.BuildIntradayBaseline(p.minute, d.loc, d.cfg.BaselineDays)
	p.snapshots = d.engine.Compute(p.minute, baseline)
	return p
}
