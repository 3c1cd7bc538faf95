package reporting

import (
	"time"

	"hod-momentum-lab/internal/decision"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/metrics"
)

// Report is the complete quant report for one stored run.
type Report struct {
	GeneratedAt time.Time
	Run         domain.RunRecord
	Config      domain.StrategyConfig
	Summary     *metrics.Summary // nil when the run closed no trades
	Decision    *decision.DecisionResult
	Eligibility EligibilitySummary
	Trades      []domain.Trade
}

// EligibilitySummary condenses the daily screen audit trail.
type EligibilitySummary struct {
	SymbolDays   int
	EligibleDays int
	Symbols      int
	ByReason     []ReasonCount // sorted by reason
}

// ReasonCount is the number of symbol-days that got a reason code.
type ReasonCount struct {
	Reason string
	Count  int
}

// LedgerRecord is the external form of one trade.
type LedgerRecord struct {
	Symbol     string  `json:"symbol"`
	EntryTime  string  `json:"entry_time"`
	ExitTime   string  `json:"exit_time"`
	EntryPrice float64 `json:"entry_price"`
	ExitPrice  float64 `json:"exit_price"`
	Shares     int64   `json:"shares"`
	PnLAbs     float64 `json:"pnl_abs"`
	PnLPct     float64 `json:"pnl_pct"`
	ExitReason string  `json:"exit_reason"`
	Partial    bool    `json:"partial"`
}
