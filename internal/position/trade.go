package position

import (
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/idhash"
)

// buildTrade constructs a Trade for shares leaving the position.
func (m *Machine) buildTrade(exitTime time.Time, exitPrice float64, shares int64, reason domain.ExitReason, partial bool) *domain.Trade {
	abs, pct := pnl(m.pos.EntryPrice, exitPrice, shares)

	return &domain.Trade{
		TradeID:    idhash.ComputeTradeID(m.pos.ID, string(reason), exitTime.UnixMilli()),
		PositionID: m.pos.ID,
		RunID:      m.runID,
		StrategyID: m.strategyID,
		Symbol:     m.pos.Symbol,

		EntryTime:  m.pos.EntryTime,
		EntryPrice: m.pos.EntryPrice,
		ExitTime:   exitTime,
		ExitPrice:  exitPrice,
		Shares:     shares,

		PnLAbs:       abs,
		PnLPct:       pct,
		ExitReason:   reason,
		Partial:      partial,
		OutcomeClass: domain.OutcomeClassFor(abs),
	}
}
