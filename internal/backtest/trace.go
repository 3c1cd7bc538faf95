package backtest

import (
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/indicators"
	"hod-momentum-lab/internal/strategy"
)

// TraceRow is the entry-rule view of one bar for a symbol assumed flat.
type TraceRow struct {
	Timestamp    time.Time
	Close        float64
	Volume       int64
	Eligible     bool
	InScanWindow bool
	Snapshot     indicators.Snapshot
	Bounce       strategy.BounceState
	Fire         bool
	Reason       strategy.RejectReason
}

// Trace evaluates the entry rules on every bar of one symbol without
// opening positions. It is a debugging aid for tuning parameters.
func (d *Driver) Trace(sd SymbolData) ([]TraceRow, error) {
	p := d.prepareSymbol(sd)
	if p.excluded != nil {
		return nil, p.excluded
	}

	elig := domain.NewEligibilityMap(p.days)
	evaluator := strategy.NewEntryEvaluator(d.cfg)
	probe := &Engine{cfg: d.cfg}

	rows := make([]TraceRow, 0, len(p.minute))
	var (
		bounce  strategy.BounceState
		session domain.Date
	)
	for i, bar := range p.minute {
		snap := p.snapshots[i]
		if snap.Session != session {
			session = snap.Session
			bounce = strategy.BounceState{}
		}
		decision := evaluator.Evaluate(bar, snap, bounce)
		bounce = decision.Bounce

		rows = append(rows, TraceRow{
			Timestamp:    bar.Timestamp,
			Close:        bar.Close,
			Volume:       bar.Volume,
			Eligible:     elig.IsEligible(sd.Symbol, snap.Session),
			InScanWindow: probe.inScanWindow(snap.Clock),
			Snapshot:     snap,
			Bounce:       decision.Bounce,
			Fire:         decision.Fire,
			Reason:       decision.Reason,
		})
	}
	return rows, nil
}
