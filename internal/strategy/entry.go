package strategy

import (
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/indicators"
)

// RejectReason names the first entry condition a bar failed.
type RejectReason string

// Entry rejection reasons, in evaluation order.
const (
	RejectNone             RejectReason = ""
	RejectWarmup           RejectReason = "WARMUP"
	RejectBelowEMA9        RejectReason = "BELOW_EMA9"
	RejectNoBounce         RejectReason = "NO_BOUNCE"
	RejectLowSessionVolume RejectReason = "LOW_SESSION_VOLUME"
	RejectNoVolumeSurge    RejectReason = "NO_VOLUME_SURGE"
	RejectRSITooHigh       RejectReason = "RSI_TOO_HIGH"
	RejectMACDBearish      RejectReason = "MACD_BEARISH"
	RejectFarFromHOD       RejectReason = "FAR_FROM_HOD"
	RejectRedVolume        RejectReason = "RED_VOLUME"
)

// EntryDecision is the result of evaluating one bar.
type EntryDecision struct {
	Fire   bool
	Reason RejectReason // empty when Fire
	Bounce BounceState  // state after this bar
}

// EntryEvaluator decides whether a flat, eligible symbol enters on a bar.
type EntryEvaluator struct {
	cfg domain.StrategyConfig
}

// NewEntryEvaluator creates an evaluator for the given parameters.
func NewEntryEvaluator(cfg domain.StrategyConfig) *EntryEvaluator {
	return &EntryEvaluator{cfg: cfg}
}

// Evaluate advances the bounce state with bar and checks every entry
// condition against the bar's snapshot. The day high is read from the snapshot.
func (e *EntryEvaluator) Evaluate(bar domain.Bar, snap indicators.Snapshot, bounce BounceState) EntryDecision {
	next := bounce.Advance(bar, snap)
	reason := e.check(bar, snap, next)
	return EntryDecision{
		Fire:   reason == RejectNone,
		Reason: reason,
		Bounce: next,
	}
}

func (e *EntryEvaluator) check(bar domain.Bar, snap indicators.Snapshot, bounce BounceState) RejectReason {
	if !snap.Ready() {
		return RejectWarmup
	}
	avgVol := *snap.AvgVolume
	vol := float64(bar.Volume)

	switch {
	case bar.Close <= *snap.EMA9:
		return RejectBelowEMA9
	case !bounce.Confirmed(e.cfg.BounceConfirmBars):
		return RejectNoBounce
	case snap.SessionVolume < e.cfg.MinSessionVolume:
		return RejectLowSessionVolume
	case vol < e.cfg.VolumeSurgeMultiple*avgVol:
		return RejectNoVolumeSurge
	case *snap.RSI14 >= e.cfg.RSIMax:
		return RejectRSITooHigh
	case *snap.MACD <= *snap.MACDSignal:
		return RejectMACDBearish
	case !NearHighOfDay(bar.Close, snap.DayHigh, e.cfg.HODProximityPct):
		return RejectFarFromHOD
	case bar.IsRed() && vol >= avgVol:
		return RejectRedVolume
	}
	return RejectNone
}

// NearHighOfDay reports whether price is within pct of the session high,
// measured as (high - price) / high.
func NearHighOfDay(price, dayHigh, pct float64) bool {
	if dayHigh <= 0 {
		return false
	}
	return (dayHigh-price)/dayHigh <= pct
}
