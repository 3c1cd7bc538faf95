package backtest

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/indicators"
	"hod-momentum-lab/internal/position"
	"hod-momentum-lab/internal/replay"
	"hod-momentum-lab/internal/strategy"
)

// Engine replays the merged bar stream through the entry rules and the
// position machines. It is single-threaded and owns all mutable run state.
// Implements replay.ReplayEngine.
type Engine struct {
	cfg      domain.StrategyConfig
	loc      *time.Location
	runID    string
	log      zerolog.Logger
	observer Observer

	evaluator   *strategy.EntryEvaluator
	watchlist   *strategy.Watchlist
	eligibility *domain.EligibilityMap
	snapshots   map[string][]indicators.Snapshot
	lastDate    domain.Date

	current  domain.Date
	started  bool
	machines map[string]*position.Machine
	bounce   map[string]strategy.BounceState

	ledger Ledger
	stats  Stats
}

// OnEvent processes one bar.
// Implements replay.ReplayEngine.
func (e *Engine) OnEvent(_ context.Context, event *replay.Event) error {
	e.stats.BarsProcessed++

	bar := event.Bar
	snap := e.snapshots[event.Symbol][event.Index]
	date := snap.Session

	if !e.started || date != e.current {
		e.rollover(date)
	}

	if m, ok := e.machines[event.Symbol]; ok {
		stage, trade := m.Advance(bar)
		if trade != nil {
			e.record(*trade)
		}
		if stage == position.StageClosed {
			delete(e.machines, event.Symbol)
		}
		return nil
	}

	if !e.eligibility.IsEligible(event.Symbol, date) {
		e.stats.BarsIneligible++
		return nil
	}
	// No entries on the final session: there is no next session to exit into.
	if date == e.lastDate {
		return nil
	}

	decision := e.evaluator.Evaluate(bar, snap, e.bounce[event.Symbol])
	e.bounce[event.Symbol] = decision.Bounce

	watched := true
	if e.watchlist.Enabled() {
		watched = e.watchlist.Observe(event.Symbol, bar, snap)
	}

	if !decision.Fire {
		e.stats.Rejections[decision.Reason]++
		return nil
	}
	e.stats.EntrySignals++
	if !e.inScanWindow(snap.Clock) || !watched {
		e.stats.SignalsSuppressed++
		return nil
	}

	m, err := position.Open(e.cfg, e.loc, e.runID, bar)
	if errors.Is(err, position.ErrZeroShares) {
		e.stats.ZeroShareSignals++
		e.log.Debug().Str("symbol", event.Symbol).Float64("price", bar.Close).Msg("entry skipped: zero shares")
		return nil
	}
	if err != nil {
		return err
	}

	e.machines[event.Symbol] = m
	e.bounce[event.Symbol] = strategy.BounceState{}
	e.stats.PositionsOpened++
	p := m.Position()
	e.log.Debug().
		Str("symbol", p.Symbol).
		Time("entry_time", p.EntryTime).
		Float64("entry_price", p.EntryPrice).
		Int64("shares", p.Shares).
		Msg("position opened")
	e.observer.OnPositionOpened(p)
	return nil
}

// inScanWindow reports whether new entries are allowed at clock.
func (e *Engine) inScanWindow(clock domain.ClockTime) bool {
	return clock >= e.cfg.ScanStart && clock <= e.cfg.ScanEnd && clock < e.cfg.SessionCutoff
}

// rollover starts a new session: positions from earlier sessions that never
// saw a cutoff bar are flattened at their last bar, and bounce tracking restarts.
func (e *Engine) rollover(date domain.Date) {
	for _, sym := range e.openSymbols() {
		m := e.machines[sym]
		if m.Position().EntryDate < date {
			if trade := m.Flatten(domain.ExitReasonEndOfDay); trade != nil {
				e.record(*trade)
			}
			delete(e.machines, sym)
		}
	}
	e.bounce = make(map[string]strategy.BounceState)
	e.current = date
	e.started = true
}

// finish flattens every surviving position at the end of data.
func (e *Engine) finish() {
	for _, sym := range e.openSymbols() {
		if trade := e.machines[sym].Flatten(domain.ExitReasonEndOfData); trade != nil {
			e.record(*trade)
		}
		delete(e.machines, sym)
	}
}

func (e *Engine) openSymbols() []string {
	syms := make([]string, 0, len(e.machines))
	for sym := range e.machines {
		syms = append(syms, sym)
	}
	sort.Strings(syms)
	return syms
}

func (e *Engine) record(t domain.Trade) {
	e.ledger.Append(t)
	e.stats.TradesClosed++
	e.stats.TradesByExitReason[t.ExitReason]++
	e.log.Debug().
		Str("symbol", t.Symbol).
		Str("exit_reason", string(t.ExitReason)).
		Int64("shares", t.Shares).
		Float64("pnl", t.PnLAbs).
		Msg("trade closed")
	e.observer.OnTrade(t)
}

// Ensure Engine implements replay.ReplayEngine
var _ replay.ReplayEngine = (*Engine)(nil)
