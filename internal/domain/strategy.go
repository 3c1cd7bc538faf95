package domain

import (
	"errors"
	"fmt"
	"time"
)

// Strategy config validation errors.
var (
	ErrInvalidPriceRange  = errors.New("min_price must be positive and not above max_price")
	ErrInvalidPercent     = errors.New("percentage parameter out of range")
	ErrInvalidWindow      = errors.New("invalid lookback window")
	ErrInvalidScanWindow  = errors.New("scan window must start before it ends and before session cutoff")
	ErrInvalidNotional    = errors.New("position_notional must be positive")
	ErrInvalidTimezone    = errors.New("invalid timezone")
	ErrInvalidScaleTarget = errors.New("scale_out_target must be below take_profit_pct")
)

// WatchlistConfig gates entries behind a per-session momentum watchlist.
type WatchlistConfig struct {
	Enabled        bool    `json:"enabled"`
	MinVolumeRatio float64 `json:"min_volume_ratio"` // bar volume vs trailing average
}

// StrategyConfig is the full parameter set of the momentum strategy.
// It is a value: components receive a copy at construction and never mutate it.
type StrategyConfig struct {
	// Daily screen
	MinPrice           float64 `json:"min_price"`
	MaxPrice           float64 `json:"max_price"`
	MaxFloat           int64   `json:"max_float"`
	MinRelativeVolume  float64 `json:"min_relative_volume"`
	EligibilityDays    int     `json:"eligibility_days"`
	VolumeBaselineDays int     `json:"volume_baseline_days"`

	// Entry
	MinSessionVolume    int64           `json:"min_session_volume"`
	VolumeSurgeMultiple float64         `json:"volume_surge_multiple"`
	AvgVolumeBars       int             `json:"avg_volume_bars"`
	RSIMax              float64         `json:"rsi_max"`
	HODProximityPct     float64         `json:"hod_proximity_pct"`
	BounceConfirmBars   int             `json:"bounce_confirm_bars"`
	Watchlist           WatchlistConfig `json:"watchlist"`

	// Exits
	StopLossPct      float64 `json:"stop_loss_pct"`
	TakeProfitPct    float64 `json:"take_profit_pct"`
	ScaleOutFraction float64 `json:"scale_out_fraction"`
	ScaleOutTarget   float64 `json:"scale_out_target"`
	TrailingStopPct  float64 `json:"trailing_stop_pct"`
	PositionNotional float64 `json:"position_notional"`

	// Session
	ScanStart     ClockTime `json:"scan_start_time"`
	ScanEnd       ClockTime `json:"scan_end_time"`
	SessionCutoff ClockTime `json:"session_cutoff_time"`
	Timezone      string    `json:"timezone"`
	BaselineDays  int       `json:"intraday_baseline_days"` // prior sessions in the intraday volume baseline
}

// DefaultStrategyConfig returns the reference parameter set.
func DefaultStrategyConfig() StrategyConfig {
	return StrategyConfig{
		MinPrice:           1.0,
		MaxPrice:           10.0,
		MaxFloat:           30_000_000,
		MinRelativeVolume:  2.0,
		EligibilityDays:    10,
		VolumeBaselineDays: 20,

		MinSessionVolume:    5_000_000,
		VolumeSurgeMultiple: 1.5,
		AvgVolumeBars:       20,
		RSIMax:              60,
		HODProximityPct:     0.10,
		BounceConfirmBars:   2,
		Watchlist: WatchlistConfig{
			Enabled:        false,
			MinVolumeRatio: 0.8,
		},

		StopLossPct:      0.05,
		TakeProfitPct:    0.10,
		ScaleOutFraction: 0.67,
		ScaleOutTarget:   0.08,
		TrailingStopPct:  0.05,
		PositionNotional: 1000,

		ScanStart:     NewClock(10, 0),
		ScanEnd:       NewClock(14, 0),
		SessionCutoff: NewClock(15, 55),
		Timezone:      DefaultTimezone,
		BaselineDays:  20,
	}
}

// Validate checks parameter ranges.
func (c StrategyConfig) Validate() error {
	if c.MinPrice <= 0 || c.MinPrice > c.MaxPrice {
		return ErrInvalidPriceRange
	}
	for name, v := range map[string]float64{
		"stop_loss_pct":      c.StopLossPct,
		"take_profit_pct":    c.TakeProfitPct,
		"scale_out_fraction": c.ScaleOutFraction,
		"scale_out_target":   c.ScaleOutTarget,
		"trailing_stop_pct":  c.TrailingStopPct,
		"hod_proximity_pct":  c.HODProximityPct,
	} {
		if v <= 0 || v >= 1 {
			return fmt.Errorf("%w: %s=%v", ErrInvalidPercent, name, v)
		}
	}
	if c.ScaleOutTarget >= c.TakeProfitPct {
		return ErrInvalidScaleTarget
	}
	if c.RSIMax <= 0 || c.RSIMax > 100 {
		return fmt.Errorf("%w: rsi_max=%v", ErrInvalidPercent, c.RSIMax)
	}
	if c.EligibilityDays <= 0 || c.VolumeBaselineDays <= 0 || c.AvgVolumeBars <= 0 ||
		c.BounceConfirmBars <= 0 || c.BaselineDays <= 0 {
		return ErrInvalidWindow
	}
	if c.MinRelativeVolume < 0 || c.VolumeSurgeMultiple < 0 || c.MaxFloat <= 0 {
		return fmt.Errorf("%w: negative threshold", ErrInvalidPercent)
	}
	if c.PositionNotional <= 0 {
		return ErrInvalidNotional
	}
	if c.ScanStart > c.ScanEnd || c.ScanEnd > c.SessionCutoff {
		return ErrInvalidScanWindow
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location resolves the exchange timezone.
func (c StrategyConfig) Location() (*time.Location, error) {
	tz := c.Timezone
	if tz == "" {
		tz = DefaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidTimezone, tz, err)
	}
	return loc, nil
}

// ID returns a stable identifier built from the exit parameters.
func (c StrategyConfig) ID() string {
	id := fmt.Sprintf("HOD_MOMENTUM_sl%.4g_tp%.4g_so%.4g@%.4g_tr%.4g",
		c.StopLossPct, c.TakeProfitPct, c.ScaleOutFraction, c.ScaleOutTarget, c.TrailingStopPct)
	if c.Watchlist.Enabled {
		id += "_wl"
	}
	return id
}
