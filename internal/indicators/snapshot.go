package indicators

import (
	"time"

	"hod-momentum-lab/internal/domain"
)

// Snapshot is the indicator state as of the close of one bar.
// Nil pointers mean the indicator is not yet available; they are never zero-filled.
type Snapshot struct {
	Timestamp time.Time
	Session   domain.Date
	Clock     domain.ClockTime

	EMA9   *float64
	EMA50  *float64
	EMA100 *float64

	MACD       *float64 // EMA12 - EMA26
	MACDSignal *float64 // EMA9 of MACD
	MACDHist   *float64 // MACD - signal

	RSI14 *float64
	VWAP  *float64 // session VWAP on typical price

	SessionVolume  int64    // cumulative volume of the session through this bar
	AvgVolume      *float64 // trailing mean bar volume, current bar included
	RelativeVolume *float64 // SessionVolume / expected cumulative volume
	DayHigh        float64  // session high through this bar
}

// Ready reports whether every indicator the entry rules read is available.
func (s Snapshot) Ready() bool {
	return s.EMA9 != nil && s.MACD != nil && s.MACDSignal != nil &&
		s.RSI14 != nil && s.AvgVolume != nil
}

func ptr(v float64) *float64 {
	return &v
}
