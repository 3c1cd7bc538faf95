package eligibility

import (
	"fmt"
	"time"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/replay"
)

// Validator applies the daily screen (price band, relative volume, float)
// to the trailing days of a daily series.
type Validator struct {
	cfg domain.StrategyConfig
	loc *time.Location
}

// NewValidator creates a validator for the given strategy parameters.
func NewValidator(cfg domain.StrategyConfig, loc *time.Location) *Validator {
	return &Validator{cfg: cfg, loc: loc}
}

// Evaluate returns one decision per evaluated day, ordered by date.
// The last EligibilityDays bars of daily are evaluated; each uses only bars
// strictly before it for the volume baseline. An invalid series is an error.
func (v *Validator) Evaluate(symbol string, daily []domain.Bar, profile *domain.SymbolProfile) ([]domain.EligibilityDay, error) {
	if err := replay.ValidateSeries(symbol, daily); err != nil {
		return nil, fmt.Errorf("daily series: %w", err)
	}

	var float *int64
	if profile != nil {
		float = profile.FloatShares
	}

	start := len(daily) - v.cfg.EligibilityDays
	if start < 0 {
		start = 0
	}

	days := make([]domain.EligibilityDay, 0, len(daily)-start)
	for i := start; i < len(daily); i++ {
		bar := daily[i]
		day := domain.EligibilityDay{
			Symbol: symbol,
			Date:   domain.DateOf(bar.Timestamp, v.loc),
			Close:  bar.Close,
			Volume: bar.Volume,
		}

		if avg, ok := priorMeanVolume(daily, i, v.cfg.VolumeBaselineDays); ok {
			day.AvgVolume = &avg
			if avg > 0 {
				rv := float64(bar.Volume) / avg
				day.RelativeVolume = &rv
			}
		}

		day.Reason = v.reason(day, float)
		day.Eligible = day.Reason == domain.EligibilityReasonOK
		days = append(days, day)
	}
	return days, nil
}

// reason returns the first failed criterion, or OK.
func (v *Validator) reason(day domain.EligibilityDay, float *int64) string {
	switch {
	case float == nil:
		return domain.EligibilityReasonFloatUnknown
	case *float > v.cfg.MaxFloat:
		return domain.EligibilityReasonFloatTooHigh
	case day.AvgVolume == nil:
		return domain.EligibilityReasonInsufficientHistory
	case day.Close < v.cfg.MinPrice || day.Close > v.cfg.MaxPrice:
		return domain.EligibilityReasonPriceOutOfRange
	case day.RelativeVolume == nil || *day.RelativeVolume < v.cfg.MinRelativeVolume:
		return domain.EligibilityReasonLowRelativeVolume
	default:
		return domain.EligibilityReasonOK
	}
}

// priorMeanVolume is the mean volume of the n bars before index i.
func priorMeanVolume(daily []domain.Bar, i, n int) (float64, bool) {
	if n <= 0 || i < n {
		return 0, false
	}
	var sum float64
	for _, b := range daily[i-n : i] {
		sum += float64(b.Volume)
	}
	return sum / float64(n), true
}

// BuildMap validates every symbol and assembles the eligibility map.
// Symbols whose series fail validation are reported in the returned error map
// and have no entries, so they are never eligible.
func (v *Validator) BuildMap(daily map[string][]domain.Bar, profiles map[string]*domain.SymbolProfile) (*domain.EligibilityMap, map[string]error) {
	var all []domain.EligibilityDay
	failed := make(map[string]error)
	for symbol, bars := range daily {
		days, err := v.Evaluate(symbol, bars, profiles[symbol])
		if err != nil {
			failed[symbol] = err
			continue
		}
		all = append(all, days...)
	}
	return domain.NewEligibilityMap(all), failed
}
