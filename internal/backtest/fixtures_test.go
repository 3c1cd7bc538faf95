package backtest

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hod-momentum-lab/internal/domain"
)

// The fixture universe spans three sessions in March 2024:
//   - Mar 4: warm-up session, ineligible (ordinary daily volume)
//   - Mar 5: eligible (3x daily volume); a pullback to EMA9 at 10:30 is
//     followed by two closes above it and a volume surge at 10:32
//   - Mar 6: final session, entries suppressed
//
// Minute closes zigzag between base and base+0.02 so RSI sits near 50 and
// MACD hugs its signal line until the bounce.
const (
	dipIndex   = 60 // 10:30 local
	entryIndex = dipIndex + 2
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	require.NoError(t, err)
	return loc
}

func localDay(loc *time.Location, day int) time.Time {
	return time.Date(2024, 3, day, 0, 0, 0, 0, loc)
}

// zigzagBars returns n minute bars from 09:30 with closes alternating hi, lo.
func zigzagBars(loc *time.Location, day int, lo, hi float64, n int) []domain.Bar {
	open := localDay(loc, day).Add(9*time.Hour + 30*time.Minute)
	bars := make([]domain.Bar, n)
	for i := range bars {
		c := lo
		if i%2 == 0 {
			c = hi
		}
		o := c
		if i > 0 {
			o = bars[i-1].Close
		}
		bars[i] = domain.Bar{
			Resolution: domain.ResolutionMinute,
			Timestamp:  open.Add(time.Duration(i) * time.Minute),
			Open:       o,
			High:       math.Max(o, c) + 0.01,
			Low:        math.Min(o, c) - 0.01,
			Close:      c,
			Volume:     100_000,
		}
	}
	return bars
}

// setBar overrides the prices and volume of bars[i].
func setBar(bars []domain.Bar, i int, o, h, l, c float64, vol int64) {
	bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = o, h, l, c
	bars[i].Volume = vol
}

// eligibleDayBars is the Mar 5 session with the bounce-and-surge pattern.
func eligibleDayBars(loc *time.Location) []domain.Bar {
	bars := zigzagBars(loc, 5, 5.00, 5.02, 390)
	setBar(bars, dipIndex, 5.00, 5.01, 4.95, 4.96, 50_000)
	setBar(bars, dipIndex+1, 5.04, 5.06, 5.04, 5.05, 100_000)
	setBar(bars, entryIndex, 5.05, 5.07, 5.05, 5.06, 400_000)
	return bars
}

// minuteSeries returns Mar 4 (full), Mar 5 (first n bars) and Mar 6 (10 bars).
func minuteSeries(loc *time.Location, day5 []domain.Bar) []domain.Bar {
	var out []domain.Bar
	out = append(out, zigzagBars(loc, 4, 4.00, 4.02, 390)...)
	out = append(out, day5...)
	out = append(out, zigzagBars(loc, 6, 5.00, 5.02, 10)...)
	return out
}

// dailySeries is 25 daily bars ending Mar 6; only Mar 5 has heavy volume.
func dailySeries(loc *time.Location) []domain.Bar {
	end := localDay(loc, 6)
	bars := make([]domain.Bar, 25)
	for i := range bars {
		ts := end.AddDate(0, 0, i-24)
		vol := int64(1_000_000)
		if ts.Day() == 5 && ts.Month() == time.March {
			vol = 3_000_000
		}
		bars[i] = domain.Bar{
			Resolution: domain.ResolutionDaily,
			Timestamp:  ts,
			Open:       5, High: 5.1, Low: 4.9, Close: 5,
			Volume: vol,
		}
	}
	return bars
}

func smallFloat(symbol string) *domain.SymbolProfile {
	shares := int64(10_000_000)
	return &domain.SymbolProfile{Symbol: symbol, FloatShares: &shares}
}

func symbolData(loc *time.Location, symbol string, day5 []domain.Bar) SymbolData {
	return SymbolData{
		Symbol:  symbol,
		Minute:  minuteSeries(loc, day5),
		Daily:   dailySeries(loc),
		Profile: smallFloat(symbol),
	}
}

func newDriver(t *testing.T, cfg domain.StrategyConfig) *Driver {
	t.Helper()
	d, err := NewDriver(DriverOptions{Config: cfg, Concurrency: 2})
	require.NoError(t, err)
	return d
}
