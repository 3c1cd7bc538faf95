package strategy

import (
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/indicators"
)

// Watchlist holds symbols that showed momentum earlier in the current session.
// When enabled, only watchlisted symbols are evaluated for entry.
type Watchlist struct {
	cfg     domain.StrategyConfig
	session map[string]domain.Date
}

// NewWatchlist creates an empty watchlist.
func NewWatchlist(cfg domain.StrategyConfig) *Watchlist {
	return &Watchlist{cfg: cfg, session: make(map[string]domain.Date)}
}

// Enabled reports whether the gate is active.
func (w *Watchlist) Enabled() bool {
	return w.cfg.Watchlist.Enabled
}

// Observe adds symbol for the session when the bar shows momentum near the
// high of day, and reports whether symbol is watchlisted for the bar's session.
func (w *Watchlist) Observe(symbol string, bar domain.Bar, snap indicators.Snapshot) bool {
	if d, ok := w.session[symbol]; ok && d == snap.Session {
		return true
	}
	if !w.qualifies(bar, snap) {
		return false
	}
	w.session[symbol] = snap.Session
	return true
}

// Contains reports whether symbol is watchlisted for session.
func (w *Watchlist) Contains(symbol string, session domain.Date) bool {
	d, ok := w.session[symbol]
	return ok && d == session
}

func (w *Watchlist) qualifies(bar domain.Bar, snap indicators.Snapshot) bool {
	if !snap.Ready() || snap.RelativeVolume == nil {
		return false
	}
	if bar.Close < w.cfg.MinPrice || bar.Close > w.cfg.MaxPrice {
		return false
	}
	if snap.Clock < w.cfg.ScanStart || snap.Clock > w.cfg.ScanEnd {
		return false
	}
	return bar.Close > *snap.EMA9 &&
		*snap.MACD > *snap.MACDSignal &&
		float64(bar.Volume) >= w.cfg.Watchlist.MinVolumeRatio*(*snap.AvgVolume) &&
		*snap.RelativeVolume >= w.cfg.MinRelativeVolume &&
		NearHighOfDay(bar.Close, snap.DayHigh, w.cfg.HODProximityPct)
}
