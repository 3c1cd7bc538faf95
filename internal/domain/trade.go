package domain

import "time"

// ExitReason tags why shares left a position.
type ExitReason string

// Exit reason codes.
const (
	ExitReasonEndOfDay     ExitReason = "END_OF_DAY"
	ExitReasonStopLoss     ExitReason = "STOP_LOSS"
	ExitReasonScaleOut     ExitReason = "SCALE_OUT"
	ExitReasonTrailingStop ExitReason = "TRAILING_STOP"
	ExitReasonTakeProfit   ExitReason = "TAKE_PROFIT"
	ExitReasonEndOfData    ExitReason = "END_OF_DATA"
)

// AllExitReasons lists every exit reason in reporting order.
var AllExitReasons = []ExitReason{
	ExitReasonStopLoss,
	ExitReasonScaleOut,
	ExitReasonTrailingStop,
	ExitReasonTakeProfit,
	ExitReasonEndOfDay,
	ExitReasonEndOfData,
}

// Outcome class constants.
const (
	OutcomeClassWin  = "WIN"
	OutcomeClassLoss = "LOSS"
	OutcomeClassFlat = "FLAT"
)

// Trade is one completed exit from a position. A position that scales out
// produces two trades sharing a PositionID.
type Trade struct {
	TradeID    string // deterministic hash
	PositionID string // deterministic hash of the entry
	RunID      string
	StrategyID string
	Symbol     string

	EntryTime  time.Time
	EntryPrice float64
	ExitTime   time.Time // strictly after EntryTime
	ExitPrice  float64
	Shares     int64

	PnLAbs       float64 // (exit - entry) * shares
	PnLPct       float64 // (exit / entry - 1) * 100
	ExitReason   ExitReason
	Partial      bool   // scale-out tranche
	OutcomeClass string // WIN | LOSS | FLAT
}

// OutcomeClassFor classifies an absolute P&L.
func OutcomeClassFor(pnl float64) string {
	switch {
	case pnl > 0:
		return OutcomeClassWin
	case pnl < 0:
		return OutcomeClassLoss
	default:
		return OutcomeClassFlat
	}
}

// RunRecord describes one persisted backtest run.
type RunRecord struct {
	RunID      string
	StrategyID string
	ConfigJSON string
	Symbols    []string
	StartedAt  time.Time
	FinishedAt time.Time
	TradeCount int
	TotalPnL   float64
}
