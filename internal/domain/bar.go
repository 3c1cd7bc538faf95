package domain

import "time"

// Resolution identifies the bar interval of a series.
type Resolution string

// Resolution constants.
const (
	ResolutionMinute Resolution = "1m"
	ResolutionDaily  Resolution = "1d"
)

// Bar is one OHLCV interval for a symbol.
// Bars are values: components never mutate a bar after construction.
type Bar struct {
	Symbol     string
	Resolution Resolution
	Timestamp  time.Time // interval start
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64 // shares traded in the interval
}

// IsRed reports whether the bar closed below its open.
func (b Bar) IsRed() bool {
	return b.Close < b.Open
}

// TypicalPrice returns (high + low + close) / 3.
func (b Bar) TypicalPrice() float64 {
	return (b.High + b.Low + b.Close) / 3
}
