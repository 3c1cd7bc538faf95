// Package verification re-executes stored runs and checks that the
// replayed ledger matches the persisted one.
package verification

import (
	"math"
	"time"

	"hod-momentum-lab/internal/domain"
)

// FloatTolerance is the tolerance for price and P&L comparisons.
const FloatTolerance = 1e-7

// FieldDivergence is one mismatch between a stored and a replayed trade.
type FieldDivergence struct {
	Field    string
	Expected any // stored
	Actual   any // replayed
}

// TradeResult is the comparison of one stored trade.
type TradeResult struct {
	TradeID     string
	Symbol      string
	Match       bool
	Divergences []FieldDivergence
}

// Report is the outcome of verifying one run.
type Report struct {
	RunID         string
	ReplayedRunID string
	// InputsMatch is false when bars, profiles or config no longer hash
	// to the stored run id.
	InputsMatch    bool
	StoredTrades   int
	ReplayedTrades int
	Matched        int
	Divergent      int
	Missing        []TradeKey // stored but not replayed
	Extra          []TradeKey // replayed but not stored
	Results        []TradeResult
}

// OK reports whether the replay reproduced the stored run exactly.
func (r *Report) OK() bool {
	return r.InputsMatch && r.Divergent == 0 && len(r.Missing) == 0 && len(r.Extra) == 0
}

// TradeKey identifies a trade independently of run-derived ids.
type TradeKey struct {
	Symbol     string
	EntryTime  time.Time
	ExitReason domain.ExitReason
}

// KeyOf returns the natural key of t.
func KeyOf(t domain.Trade) TradeKey {
	return TradeKey{Symbol: t.Symbol, EntryTime: t.EntryTime.UTC(), ExitReason: t.ExitReason}
}

// CompareTrades lists the fields where replayed differs from stored.
func CompareTrades(stored, replayed domain.Trade) []FieldDivergence {
	var out []FieldDivergence
	add := func(field string, expected, actual any) {
		out = append(out, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}

	if stored.TradeID != replayed.TradeID {
		add("TradeID", stored.TradeID, replayed.TradeID)
	}
	if stored.PositionID != replayed.PositionID {
		add("PositionID", stored.PositionID, replayed.PositionID)
	}
	if stored.StrategyID != replayed.StrategyID {
		add("StrategyID", stored.StrategyID, replayed.StrategyID)
	}
	if stored.Symbol != replayed.Symbol {
		add("Symbol", stored.Symbol, replayed.Symbol)
	}
	if !stored.EntryTime.Equal(replayed.EntryTime) {
		add("EntryTime", stored.EntryTime, replayed.EntryTime)
	}
	if !stored.ExitTime.Equal(replayed.ExitTime) {
		add("ExitTime", stored.ExitTime, replayed.ExitTime)
	}
	if !floatEquals(stored.EntryPrice, replayed.EntryPrice) {
		add("EntryPrice", stored.EntryPrice, replayed.EntryPrice)
	}
	if !floatEquals(stored.ExitPrice, replayed.ExitPrice) {
		add("ExitPrice", stored.ExitPrice, replayed.ExitPrice)
	}
	if stored.Shares != replayed.Shares {
		add("Shares", stored.Shares, replayed.Shares)
	}
	if !floatEquals(stored.PnLAbs, replayed.PnLAbs) {
		add("PnLAbs", stored.PnLAbs, replayed.PnLAbs)
	}
	if !floatEquals(stored.PnLPct, replayed.PnLPct) {
		add("PnLPct", stored.PnLPct, replayed.PnLPct)
	}
	if stored.ExitReason != replayed.ExitReason {
		add("ExitReason", stored.ExitReason, replayed.ExitReason)
	}
	if stored.Partial != replayed.Partial {
		add("Partial", stored.Partial, replayed.Partial)
	}
	if stored.OutcomeClass != replayed.OutcomeClass {
		add("OutcomeClass", stored.OutcomeClass, replayed.OutcomeClass)
	}
	return out
}

func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
