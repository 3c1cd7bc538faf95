package domain

import "time"

// SymbolProfile holds static per-symbol reference data.
type SymbolProfile struct {
	Symbol      string
	FloatShares *int64 // tradable float; nil when unknown
	UpdatedAt   time.Time
}
