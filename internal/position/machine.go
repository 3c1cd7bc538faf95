package position

import (
	"errors"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/idhash"
)

// ErrZeroShares is returned by Open when the notional buys no whole share.
var ErrZeroShares = errors.New("position size rounds to zero shares")

// Stage is the lifecycle stage of a position.
type Stage string

// Stage constants.
const (
	StageFlat   Stage = "FLAT"
	StageOpen   Stage = "OPEN"
	StageScaled Stage = "SCALED"
	StageClosed Stage = "CLOSED"
)

// Position is the state of one long position.
type Position struct {
	ID         string
	Symbol     string
	EntryTime  time.Time
	EntryDate  domain.Date
	EntryPrice float64
	Shares     int64 // shares bought
	Remaining  int64 // shares still held

	HighestPrice   float64
	ScaledOut      bool
	TrailingActive bool
	Stage          Stage

	StopPrice       float64
	TakeProfitPrice float64
	ScaleOutPrice   float64

	LastBar domain.Bar // most recent bar applied
}

// Machine drives one position through its lifecycle.
// Trades it returns carry deterministic ids derived from the run and entry.
type Machine struct {
	cfg        domain.StrategyConfig
	loc        *time.Location
	runID      string
	strategyID string
	pos        Position
}

// Open enters a long position at the close of bar.
// Returns ErrZeroShares when the configured notional buys no share.
func Open(cfg domain.StrategyConfig, loc *time.Location, runID string, bar domain.Bar) (*Machine, error) {
	shares := sizeShares(cfg.PositionNotional, bar.Close)
	if shares <= 0 {
		return nil, ErrZeroShares
	}

	price := bar.Close
	return &Machine{
		cfg:        cfg,
		loc:        loc,
		runID:      runID,
		strategyID: cfg.ID(),
		pos: Position{
			ID:              idhash.ComputePositionID(runID, bar.Symbol, bar.Timestamp.UnixMilli()),
			Symbol:          bar.Symbol,
			EntryTime:       bar.Timestamp,
			EntryDate:       domain.DateOf(bar.Timestamp, loc),
			EntryPrice:      price,
			Shares:          shares,
			Remaining:       shares,
			HighestPrice:    price,
			Stage:           StageOpen,
			StopPrice:       levelBelow(price, cfg.StopLossPct),
			TakeProfitPrice: levelAbove(price, cfg.TakeProfitPct),
			ScaleOutPrice:   levelAbove(price, cfg.ScaleOutTarget),
			LastBar:         bar,
		},
	}, nil
}

// Position returns a copy of the current state.
func (m *Machine) Position() Position {
	return m.pos
}

// Stage returns the current stage.
func (m *Machine) Stage() Stage {
	return m.pos.Stage
}

// Advance applies one bar after the entry bar. Rules are checked in priority
// order and the first that applies decides the bar:
//  1. session cutoff closes the remainder at the bar close
//  2. stop loss (before scale-out) closes everything at the stop price
//  3. scale-out target sells the scale fraction at the target price
//  4. after scale-out, the trailing stop closes the remainder
//  5. take profit (before scale-out) closes everything at the target price
//  6. otherwise the high-water mark is updated
//
// Stops trigger when low <= level, targets when high >= level; fills occur
// at exactly the level.
func (m *Machine) Advance(bar domain.Bar) (Stage, *domain.Trade) {
	if m.pos.Stage == StageClosed {
		return StageClosed, nil
	}
	m.pos.LastBar = bar

	if domain.ClockOf(bar.Timestamp, m.loc) >= m.cfg.SessionCutoff {
		return m.closeRemaining(bar.Timestamp, bar.Close, domain.ExitReasonEndOfDay)
	}

	if !m.pos.ScaledOut {
		if bar.Low <= m.pos.StopPrice {
			return m.closeRemaining(bar.Timestamp, m.pos.StopPrice, domain.ExitReasonStopLoss)
		}
		if bar.High >= m.pos.ScaleOutPrice {
			if stage, trade, ok := m.scaleOut(bar); ok {
				return stage, trade
			}
		}
	}

	if m.pos.ScaledOut {
		if bar.High > m.pos.HighestPrice {
			m.pos.HighestPrice = bar.High
		}
		trail := levelBelow(m.pos.HighestPrice, m.cfg.TrailingStopPct)
		if bar.Low <= trail {
			return m.closeRemaining(bar.Timestamp, trail, domain.ExitReasonTrailingStop)
		}
		return m.pos.Stage, nil
	}

	if bar.High >= m.pos.TakeProfitPrice {
		return m.closeRemaining(bar.Timestamp, m.pos.TakeProfitPrice, domain.ExitReasonTakeProfit)
	}

	if bar.High > m.pos.HighestPrice {
		m.pos.HighestPrice = bar.High
	}
	return m.pos.Stage, nil
}

// scaleOut sells floor(shares * fraction) at the scale-out price.
// ok is false when that quantity is zero, leaving the bar to later rules.
func (m *Machine) scaleOut(bar domain.Bar) (Stage, *domain.Trade, bool) {
	qty := scaleQuantity(m.pos.Shares, m.cfg.ScaleOutFraction)
	if qty <= 0 {
		return m.pos.Stage, nil, false
	}
	if qty >= m.pos.Remaining {
		stage, trade := m.closeRemaining(bar.Timestamp, m.pos.ScaleOutPrice, domain.ExitReasonScaleOut)
		return stage, trade, true
	}

	trade := m.buildTrade(bar.Timestamp, m.pos.ScaleOutPrice, qty, domain.ExitReasonScaleOut, true)
	m.pos.Remaining -= qty
	m.pos.ScaledOut = true
	m.pos.TrailingActive = true
	m.pos.HighestPrice = m.pos.ScaleOutPrice
	m.pos.Stage = StageScaled
	return m.pos.Stage, trade, true
}

// Flatten closes the remainder at the close of the last applied bar.
// If that is the entry bar, the exit is stamped one minute after entry so
// exit time stays strictly after entry time. Returns nil when already closed.
func (m *Machine) Flatten(reason domain.ExitReason) *domain.Trade {
	if m.pos.Stage == StageClosed {
		return nil
	}
	last := m.pos.LastBar
	exitTime := last.Timestamp
	if !exitTime.After(m.pos.EntryTime) {
		exitTime = m.pos.EntryTime.Add(time.Minute)
	}
	_, trade := m.closeRemaining(exitTime, last.Close, reason)
	return trade
}

func (m *Machine) closeRemaining(at time.Time, price float64, reason domain.ExitReason) (Stage, *domain.Trade) {
	trade := m.buildTrade(at, price, m.pos.Remaining, reason, false)
	m.pos.Remaining = 0
	m.pos.Stage = StageClosed
	return StageClosed, trade
}
