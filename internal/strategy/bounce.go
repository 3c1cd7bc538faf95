package strategy

import (
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/indicators"
)

// BounceState tracks a pullback to EMA9 and the closes above it since.
// It is a value; Advance returns the next state.
type BounceState struct {
	ConsecutiveAbove int       // closes above EMA9 since the last touch
	Touched          bool      // price has touched EMA9 since the state was reset
	LastTouch        time.Time // bar of the most recent touch
}

// Advance folds one bar into the state.
// A close at or below EMA9 is a touch and zeroes the count. A bar that trades
// down to EMA9 and closes above it is also a touch, but its close counts: it
// starts the count at 1, or extends an armed count. Without EMA9 the state resets.
func (s BounceState) Advance(bar domain.Bar, snap indicators.Snapshot) BounceState {
	if snap.EMA9 == nil {
		return BounceState{}
	}
	ema9 := *snap.EMA9
	switch {
	case bar.Close <= ema9:
		return BounceState{Touched: true, LastTouch: bar.Timestamp}
	case bar.Low <= ema9:
		if !s.Touched {
			s.ConsecutiveAbove = 0
		}
		s.ConsecutiveAbove++
		s.Touched = true
		s.LastTouch = bar.Timestamp
		return s
	}
	s.ConsecutiveAbove++
	return s
}

// Confirmed reports whether a touch was followed by at least n closes above.
func (s BounceState) Confirmed(n int) bool {
	return s.Touched && s.ConsecutiveAbove >= n
}
