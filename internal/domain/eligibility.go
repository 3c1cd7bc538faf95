package domain

import "sort"

// Eligibility reason codes. An eligible day carries EligibilityReasonOK.
const (
	EligibilityReasonOK                  = "OK"
	EligibilityReasonInsufficientHistory = "INSUFFICIENT_HISTORY"
	EligibilityReasonFloatUnknown        = "FLOAT_UNKNOWN"
	EligibilityReasonFloatTooHigh        = "FLOAT_TOO_HIGH"
	EligibilityReasonPriceOutOfRange     = "PRICE_OUT_OF_RANGE"
	EligibilityReasonLowRelativeVolume   = "LOW_RELATIVE_VOLUME"
)

// EligibilityDay is the audit record for one (symbol, date) eligibility decision.
type EligibilityDay struct {
	Symbol         string
	Date           Date
	Eligible       bool
	Close          float64
	Volume         int64
	AvgVolume      *float64 // mean daily volume of prior sessions (nullable)
	RelativeVolume *float64 // Volume / AvgVolume (nullable)
	Reason         string
}

// EligibilityKey is the composite key of an eligibility decision.
type EligibilityKey struct {
	Symbol string
	Date   Date
}

// EligibilityMap is the read-only result of the daily screen.
// It has no exported mutators; build it once with NewEligibilityMap.
type EligibilityMap struct {
	days    map[EligibilityKey]EligibilityDay
	bySym   map[string][]Date
	symbols []string
}

// NewEligibilityMap indexes days. Later entries for the same key win.
func NewEligibilityMap(days []EligibilityDay) *EligibilityMap {
	m := &EligibilityMap{
		days:  make(map[EligibilityKey]EligibilityDay, len(days)),
		bySym: make(map[string][]Date),
	}
	for _, d := range days {
		key := EligibilityKey{Symbol: d.Symbol, Date: d.Date}
		if _, seen := m.days[key]; !seen {
			m.bySym[d.Symbol] = append(m.bySym[d.Symbol], d.Date)
		}
		m.days[key] = d
	}
	for sym, dates := range m.bySym {
		sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
		m.symbols = append(m.symbols, sym)
	}
	sort.Strings(m.symbols)
	return m
}

// Lookup returns the decision for (symbol, date).
func (m *EligibilityMap) Lookup(symbol string, date Date) (EligibilityDay, bool) {
	if m == nil {
		return EligibilityDay{}, false
	}
	d, ok := m.days[EligibilityKey{Symbol: symbol, Date: date}]
	return d, ok
}

// IsEligible reports whether symbol may trade on date.
// Absent keys are ineligible.
func (m *EligibilityMap) IsEligible(symbol string, date Date) bool {
	d, ok := m.Lookup(symbol, date)
	return ok && d.Eligible
}

// Symbols returns all symbols with at least one decision, sorted.
func (m *EligibilityMap) Symbols() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.symbols))
	copy(out, m.symbols)
	return out
}

// Days returns the decisions for symbol ordered by date.
func (m *EligibilityMap) Days(symbol string) []EligibilityDay {
	if m == nil {
		return nil
	}
	dates := m.bySym[symbol]
	out := make([]EligibilityDay, 0, len(dates))
	for _, d := range dates {
		out = append(out, m.days[EligibilityKey{Symbol: symbol, Date: d}])
	}
	return out
}

// All returns every decision ordered by (symbol, date).
func (m *EligibilityMap) All() []EligibilityDay {
	var out []EligibilityDay
	for _, sym := range m.Symbols() {
		out = append(out, m.Days(sym)...)
	}
	return out
}

// Len returns the number of decisions.
func (m *EligibilityMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.days)
}

// Nested returns the {symbol: {date: eligible}} view.
func (m *EligibilityMap) Nested() map[string]map[Date]bool {
	out := make(map[string]map[Date]bool)
	if m == nil {
		return out
	}
	for key, d := range m.days {
		inner, ok := out[key.Symbol]
		if !ok {
			inner = make(map[Date]bool)
			out[key.Symbol] = inner
		}
		inner[key.Date] = d.Eligible
	}
	return out
}
