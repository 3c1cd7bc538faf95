package indicators

import (
	"time"

	"hod-momentum-lab/internal/domain"
)

// Indicator periods.
const (
	PeriodEMAFast  = 9
	PeriodEMAMid   = 50
	PeriodEMASlow  = 100
	PeriodMACDFast = 12
	PeriodMACDSlow = 26
	PeriodMACDSig  = 9
	PeriodRSI      = 14
	DefaultAvgVol  = 20
)

// VolumeBaseline supplies the expected cumulative session volume at a
// time of day. Implementations must only use sessions before the one asked about.
type VolumeBaseline interface {
	ExpectedCumulative(session domain.Date, clock domain.ClockTime) (float64, bool)
}

// Calculator folds bars in one at a time. Each Snapshot it returns depends
// only on the bars passed so far, so a snapshot is never revised.
type Calculator struct {
	loc      *time.Location
	baseline VolumeBaseline

	ema9, ema50, ema100 *ema
	macdFast, macdSlow  *ema
	macdSignal          *ema
	rsi                 *rsi
	avgVolume           *rollingMean

	session    domain.Date
	started    bool
	sessionVol int64
	pvSum      float64 // sum of typical price * volume
	dayHigh    float64
}

// NewCalculator creates a calculator for one symbol series.
// baseline may be nil, in which case RelativeVolume stays unavailable.
func NewCalculator(loc *time.Location, avgVolumeBars int, baseline VolumeBaseline) *Calculator {
	if avgVolumeBars <= 0 {
		avgVolumeBars = DefaultAvgVol
	}
	return &Calculator{
		loc:        loc,
		baseline:   baseline,
		ema9:       newEMA(PeriodEMAFast),
		ema50:      newEMA(PeriodEMAMid),
		ema100:     newEMA(PeriodEMASlow),
		macdFast:   newEMA(PeriodMACDFast),
		macdSlow:   newEMA(PeriodMACDSlow),
		macdSignal: newEMA(PeriodMACDSig),
		rsi:        newRSI(PeriodRSI),
		avgVolume:  newRollingMean(avgVolumeBars),
	}
}

// Next folds bar in and returns the snapshot as of its close.
func (c *Calculator) Next(bar domain.Bar) Snapshot {
	session := domain.DateOf(bar.Timestamp, c.loc)
	clock := domain.ClockOf(bar.Timestamp, c.loc)

	if !c.started || session != c.session {
		c.session = session
		c.started = true
		c.sessionVol = 0
		c.pvSum = 0
		c.dayHigh = bar.High
	}
	if bar.High > c.dayHigh {
		c.dayHigh = bar.High
	}
	c.sessionVol += bar.Volume
	c.pvSum += bar.TypicalPrice() * float64(bar.Volume)

	snap := Snapshot{
		Timestamp:     bar.Timestamp,
		Session:       session,
		Clock:         clock,
		SessionVolume: c.sessionVol,
		DayHigh:       c.dayHigh,
	}

	if v, ok := c.ema9.next(bar.Close); ok {
		snap.EMA9 = ptr(v)
	}
	if v, ok := c.ema50.next(bar.Close); ok {
		snap.EMA50 = ptr(v)
	}
	if v, ok := c.ema100.next(bar.Close); ok {
		snap.EMA100 = ptr(v)
	}

	fast, fastOK := c.macdFast.next(bar.Close)
	slow, slowOK := c.macdSlow.next(bar.Close)
	if fastOK && slowOK {
		macd := fast - slow
		snap.MACD = ptr(macd)
		if sig, ok := c.macdSignal.next(macd); ok {
			snap.MACDSignal = ptr(sig)
			snap.MACDHist = ptr(macd - sig)
		}
	}

	if v, ok := c.rsi.next(bar.Close); ok {
		snap.RSI14 = ptr(v)
	}

	if c.sessionVol > 0 {
		snap.VWAP = ptr(c.pvSum / float64(c.sessionVol))
	}

	if v, ok := c.avgVolume.next(float64(bar.Volume)); ok {
		snap.AvgVolume = ptr(v)
	}

	if c.baseline != nil {
		if expected, ok := c.baseline.ExpectedCumulative(session, clock); ok && expected > 0 {
			snap.RelativeVolume = ptr(float64(c.sessionVol) / expected)
		}
	}

	return snap
}

// Engine computes snapshots for whole series.
type Engine struct {
	loc           *time.Location
	avgVolumeBars int
}

// NewEngine creates an indicator engine for the exchange location.
func NewEngine(loc *time.Location, avgVolumeBars int) *Engine {
	return &Engine{loc: loc, avgVolumeBars: avgVolumeBars}
}

// Compute returns one snapshot per bar, same length and order as bars.
// Snapshot i is exactly what Compute(bars[:i+1]) would return at index i.
func (e *Engine) Compute(bars []domain.Bar, baseline VolumeBaseline) []Snapshot {
	calc := NewCalculator(e.loc, e.avgVolumeBars, baseline)
	out := make([]Snapshot, len(bars))
	for i, b := range bars {
		out[i] = calc.Next(b)
	}
	return out
}
