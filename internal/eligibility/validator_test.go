package eligibility

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/replay"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

// dailyBars returns n consecutive daily bars at local midnight, all with the
// given close and volume; the last bar is overridden by lastClose/lastVolume.
func dailyBars(loc *time.Location, n int, close float64, volume int64, lastClose float64, lastVolume int64) []domain.Bar {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, loc)
	bars := make([]domain.Bar, n)
	for i := range bars {
		bars[i] = domain.Bar{
			Symbol:     "ABCD",
			Resolution: domain.ResolutionDaily,
			Timestamp:  start.AddDate(0, 0, i),
			Open:       close, High: close, Low: close, Close: close,
			Volume: volume,
		}
	}
	last := &bars[n-1]
	last.Open, last.High, last.Low, last.Close = lastClose, lastClose, lastClose, lastClose
	last.Volume = lastVolume
	return bars
}

func floatProfile(shares int64) *domain.SymbolProfile {
	return &domain.SymbolProfile{Symbol: "ABCD", FloatShares: &shares}
}

func TestEvaluate_EligibleDay(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	// Day 25 closes at 5.00 with volume 3x the prior 20-day mean.
	days, err := v.Evaluate("ABCD", dailyBars(loc, 25, 4, 1_000_000, 5, 3_000_000), floatProfile(20_000_000))
	require.NoError(t, err)
	require.Len(t, days, 10)

	last := days[len(days)-1]
	assert.True(t, last.Eligible)
	assert.Equal(t, domain.EligibilityReasonOK, last.Reason)
	assert.Equal(t, domain.NewDate(2024, 1, 25), last.Date)
	require.NotNil(t, last.RelativeVolume)
	assert.InDelta(t, 3.0, *last.RelativeVolume, 1e-12)

	// The first evaluated day has only 15 prior bars.
	assert.False(t, days[0].Eligible)
	assert.Equal(t, domain.EligibilityReasonInsufficientHistory, days[0].Reason)
	assert.Nil(t, days[0].RelativeVolume)

	// From day 21 on there is a full baseline; average volume is not enough.
	full := days[5]
	assert.Equal(t, domain.NewDate(2024, 1, 21), full.Date)
	assert.False(t, full.Eligible)
	assert.Equal(t, domain.EligibilityReasonLowRelativeVolume, full.Reason)
	require.NotNil(t, full.RelativeVolume)
	assert.InDelta(t, 1.0, *full.RelativeVolume, 1e-12)
}

func TestEvaluate_FloatTooHighBlocksEveryDay(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	days, err := v.Evaluate("ABCD", dailyBars(loc, 25, 4, 1_000_000, 5, 3_000_000), floatProfile(35_000_000))
	require.NoError(t, err)
	for _, d := range days {
		assert.False(t, d.Eligible)
		assert.Equal(t, domain.EligibilityReasonFloatTooHigh, d.Reason)
	}
}

func TestEvaluate_UnknownFloatIsIneligible(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	days, err := v.Evaluate("ABCD", dailyBars(loc, 25, 4, 1_000_000, 5, 3_000_000), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.EligibilityReasonFloatUnknown, days[len(days)-1].Reason)
}

func TestEvaluate_InsufficientHistory(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	// 15 bars: every evaluated day has fewer than 20 prior bars.
	days, err := v.Evaluate("ABCD", dailyBars(loc, 15, 4, 1_000_000, 5, 9_000_000), floatProfile(10_000_000))
	require.NoError(t, err)
	require.Len(t, days, 10)
	for _, d := range days {
		assert.False(t, d.Eligible)
		assert.Nil(t, d.AvgVolume)
		assert.Nil(t, d.RelativeVolume)
		assert.Equal(t, domain.EligibilityReasonInsufficientHistory, d.Reason)
	}
}

func TestEvaluate_PriceBand(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	tests := []struct {
		close    float64
		eligible bool
	}{
		{0.99, false},
		{1.00, true},
		{10.00, true},
		{10.01, false},
	}
	for _, tt := range tests {
		days, err := v.Evaluate("ABCD", dailyBars(loc, 21, 4, 1_000_000, tt.close, 2_000_000), floatProfile(1))
		require.NoError(t, err)
		last := days[len(days)-1]
		assert.Equal(t, tt.eligible, last.Eligible, "close %.2f", tt.close)
		if !tt.eligible {
			assert.Equal(t, domain.EligibilityReasonPriceOutOfRange, last.Reason)
		}
	}
}

func TestEvaluate_RelativeVolumeBoundary(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	days, err := v.Evaluate("ABCD", dailyBars(loc, 21, 4, 1_000_000, 4, 2_000_000), floatProfile(1))
	require.NoError(t, err)
	assert.True(t, days[len(days)-1].Eligible, "rvol exactly at threshold qualifies")

	days, err = v.Evaluate("ABCD", dailyBars(loc, 21, 4, 1_000_000, 4, 1_999_999), floatProfile(1))
	require.NoError(t, err)
	assert.False(t, days[len(days)-1].Eligible)
}

func TestEvaluate_NoLookahead(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	bars := dailyBars(loc, 30, 4, 1_000_000, 4, 1_000_000)
	bars[24].Volume = 3_000_000

	full, err := v.Evaluate("ABCD", bars, floatProfile(1))
	require.NoError(t, err)

	// Mutate everything after day 25; its decision must not move.
	mutated := make([]domain.Bar, len(bars))
	copy(mutated, bars)
	for i := 25; i < len(mutated); i++ {
		mutated[i].Volume = 50_000_000
		mutated[i].Close = 50
	}
	again, err := v.Evaluate("ABCD", mutated, floatProfile(1))
	require.NoError(t, err)

	target := domain.NewDate(2024, 1, 25)
	find := func(days []domain.EligibilityDay) domain.EligibilityDay {
		for _, d := range days {
			if d.Date == target {
				return d
			}
		}
		t.Fatalf("no decision for %s", target)
		return domain.EligibilityDay{}
	}
	assert.Equal(t, find(full), find(again))
	assert.True(t, find(full).Eligible)
}

func TestEvaluate_InvalidSeries(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	bars := dailyBars(loc, 25, 4, 1_000_000, 5, 3_000_000)
	bars[10].Timestamp = bars[9].Timestamp

	_, err := v.Evaluate("ABCD", bars, floatProfile(1))
	assert.ErrorIs(t, err, replay.ErrInvalidOrdering)
}

func TestBuildMap(t *testing.T) {
	loc := newYork(t)
	v := NewValidator(domain.DefaultStrategyConfig(), loc)

	bad := dailyBars(loc, 25, 4, 1_000_000, 5, 3_000_000)
	for i := range bad {
		bad[i].Symbol = "BAD"
	}
	bad[3].Timestamp = time.Time{}

	m, failed := v.BuildMap(
		map[string][]domain.Bar{
			"ABCD": dailyBars(loc, 25, 4, 1_000_000, 5, 3_000_000),
			"BAD":  bad,
		},
		map[string]*domain.SymbolProfile{"ABCD": floatProfile(1), "BAD": floatProfile(1)},
	)
	require.Contains(t, failed, "BAD")
	assert.ErrorIs(t, failed["BAD"], replay.ErrMissingTimestamp)
	assert.True(t, m.IsEligible("ABCD", domain.NewDate(2024, 1, 25)))
	assert.Equal(t, []string{"ABCD"}, m.Symbols())
}
