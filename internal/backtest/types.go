package backtest

import (
	"errors"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/position"
	"hod-momentum-lab/internal/strategy"
)

var (
	// ErrDuplicateSymbol is returned when the input lists a symbol twice.
	ErrDuplicateSymbol = errors.New("duplicate symbol in backtest input")

	// ErrEmptySymbol is returned when an input series has no symbol name.
	ErrEmptySymbol = errors.New("symbol name is empty")
)

// SymbolData is the complete input for one symbol.
type SymbolData struct {
	Symbol  string
	Minute  []domain.Bar // intraday series, strictly increasing
	Daily   []domain.Bar // daily series stamped at local midnight
	Profile *domain.SymbolProfile
}

// Input is the universe of a backtest run.
type Input struct {
	Symbols []SymbolData
}

// Exclusion records a symbol dropped before replay and why.
type Exclusion struct {
	Symbol string
	Reason string
}

// Stats counts what happened during a run.
type Stats struct {
	Symbols            int
	SymbolsExcluded    int
	BarsProcessed      int
	BarsIneligible     int
	EntrySignals       int // bars where every entry condition held
	SignalsSuppressed  int // signals outside the scan window or off the watchlist
	ZeroShareSignals   int
	PositionsOpened    int
	TradesClosed       int
	Rejections         map[strategy.RejectReason]int
	TradesByExitReason map[domain.ExitReason]int
}

func newStats() Stats {
	return Stats{
		Rejections:         make(map[strategy.RejectReason]int),
		TradesByExitReason: make(map[domain.ExitReason]int),
	}
}

// Result is the output of one run.
type Result struct {
	RunID       string
	StrategyID  string
	Config      domain.StrategyConfig
	Trades      []domain.Trade
	Eligibility *domain.EligibilityMap
	Exclusions  []Exclusion
	Stats       Stats
	StartedAt   time.Time
	FinishedAt  time.Time
}

// Symbols returns the symbols that took part in replay, sorted.
func (r *Result) Symbols() []string {
	return r.Eligibility.Symbols()
}

// Observer receives run events as they happen.
type Observer interface {
	OnPositionOpened(p position.Position)
	OnTrade(t domain.Trade)
	OnSymbolExcluded(symbol, reason string)
}

// NopObserver ignores every event.
type NopObserver struct{}

func (NopObserver) OnPositionOpened(position.Position) {}
func (NopObserver) OnTrade(domain.Trade)               {}
func (NopObserver) OnSymbolExcluded(string, string)    {}

// MultiObserver fans events out to several observers in order.
type MultiObserver []Observer

func (m MultiObserver) OnPositionOpened(p position.Position) {
	for _, o := range m {
		o.OnPositionOpened(p)
	}
}

func (m MultiObserver) OnTrade(t domain.Trade) {
	for _, o := range m {
		o.OnTrade(t)
	}
}

func (m MultiObserver) OnSymbolExcluded(symbol, reason string) {
	for _, o := range m {
		o.OnSymbolExcluded(symbol, reason)
	}
}

var (
	_ Observer = NopObserver{}
	_ Observer = MultiObserver(nil)
)
