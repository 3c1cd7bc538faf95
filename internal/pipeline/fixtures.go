package pipeline

import (
	"context"
	"fmt"
	"math"
	"time"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/storage"
)

// Demo universe layout. Three sessions in March 2024:
//   - Mar 4: warm-up, ordinary daily volume, never eligible
//   - Mar 5: heavy daily volume; a pullback to EMA9 at 10:30 is followed by
//     two closes above it and a volume surge at 10:32
//   - Mar 6: final session, entries suppressed
//
// Minute closes zigzag by two cents so RSI stays near 50 and MACD hugs its
// signal line until the bounce. Scenarios differ only after the entry bar.
const (
	fixtureYear  = 2024
	fixtureMonth = time.March
	warmupDay    = 4
	tradeDay     = 5
	lastDay      = 6

	dipIndex   = 60
	entryIndex = dipIndex + 2
)

// Scenario selects what happens after the entry bar.
type Scenario string

// Fixture scenarios.
const (
	ScenarioHold     Scenario = "hold"      // no follow-through, closed at session cutoff
	ScenarioScaleOut Scenario = "scale_out" // scale-out, then trailing stop
	ScenarioStop     Scenario = "stop"      // immediate stop loss
	ScenarioSpike    Scenario = "spike"     // one bar through both profit levels
	ScenarioWide     Scenario = "wide"      // float too large, never eligible
)

// FixtureSymbol describes one demo symbol.
type FixtureSymbol struct {
	Symbol   string
	Scenario Scenario
}

// DefaultFixtures is the demo universe used by CLIs and tests.
var DefaultFixtures = []FixtureSymbol{
	{Symbol: "ABCD", Scenario: ScenarioScaleOut},
	{Symbol: "EFGH", Scenario: ScenarioStop},
	{Symbol: "IJKL", Scenario: ScenarioHold},
	{Symbol: "MNOP", Scenario: ScenarioSpike},
	{Symbol: "WIDE", Scenario: ScenarioWide},
}

// DemoInput builds a deterministic backtest universe from fixtures.
func DemoInput(loc *time.Location, fixtures []FixtureSymbol) backtest.Input {
	in := backtest.Input{Symbols: make([]backtest.SymbolData, 0, len(fixtures))}
	for _, f := range fixtures {
		float := int64(10_000_000)
		if f.Scenario == ScenarioWide {
			float = 80_000_000
		}
		in.Symbols = append(in.Symbols, backtest.SymbolData{
			Symbol:  f.Symbol,
			Minute:  stamp(f.Symbol, minuteFixture(loc, f.Scenario)),
			Daily:   stamp(f.Symbol, dailyFixture(loc)),
			Profile: &domain.SymbolProfile{Symbol: f.Symbol, FloatShares: &float},
		})
	}
	return in
}

// LoadFixtures writes a demo universe into stores.
func LoadFixtures(ctx context.Context, bars storage.BarStore, profiles storage.SymbolProfileStore, in backtest.Input) error {
	for _, sd := range in.Symbols {
		all := make([]domain.Bar, 0, len(sd.Minute)+len(sd.Daily))
		all = append(all, sd.Minute...)
		all = append(all, sd.Daily...)
		if err := bars.InsertBulk(ctx, all); err != nil {
			return fmt.Errorf("load bars %s: %w", sd.Symbol, err)
		}
		if sd.Profile != nil {
			if err := profiles.Upsert(ctx, sd.Profile); err != nil {
				return fmt.Errorf("load profile %s: %w", sd.Symbol, err)
			}
		}
	}
	return nil
}

func sessionStart(loc *time.Location, day int) time.Time {
	return time.Date(fixtureYear, fixtureMonth, day, 9, 30, 0, 0, loc)
}

// zigzag returns n minute bars from 09:30 with closes alternating hi, lo.
func zigzag(loc *time.Location, day int, lo, hi float64, n int) []domain.Bar {
	open := sessionStart(loc, day)
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

func set(bars []domain.Bar, i int, o, h, l, c float64, vol int64) {
	bars[i].Open, bars[i].High, bars[i].Low, bars[i].Close = o, h, l, c
	bars[i].Volume = vol
}

func minuteFixture(loc *time.Location, sc Scenario) []domain.Bar {
	day := zigzag(loc, tradeDay, 5.00, 5.02, 390)
	set(day, dipIndex, 5.00, 5.01, 4.95, 4.96, 50_000)
	set(day, dipIndex+1, 5.04, 5.06, 5.04, 5.05, 100_000)
	set(day, entryIndex, 5.05, 5.07, 5.05, 5.06, 400_000)

	switch sc {
	case ScenarioScaleOut:
		set(day, entryIndex+1, 5.10, 5.47, 5.09, 5.45, 100_000)
		set(day, entryIndex+2, 5.45, 5.60, 5.50, 5.55, 100_000)
		set(day, entryIndex+3, 5.50, 5.51, 5.30, 5.31, 100_000)
	case ScenarioStop:
		set(day, entryIndex+1, 5.05, 5.06, 4.78, 4.80, 150_000)
	case ScenarioSpike:
		set(day, entryIndex+1, 5.06, 5.62, 5.40, 5.60, 300_000)
	}

	var out []domain.Bar
	out = append(out, zigzag(loc, warmupDay, 4.00, 4.02, 390)...)
	out = append(out, day...)
	out = append(out, zigzag(loc, lastDay, 5.00, 5.02, 10)...)
	return out
}

// dailyFixture is 40 calendar-daily bars ending on the last session; only
// the trade day carries heavy volume.
func dailyFixture(loc *time.Location) []domain.Bar {
	end := time.Date(fixtureYear, fixtureMonth, lastDay, 0, 0, 0, 0, loc)
	bars := make([]domain.Bar, 40)
	for i := range bars {
		ts := end.AddDate(0, 0, i-len(bars)+1)
		vol := int64(1_000_000)
		if ts.Month() == fixtureMonth && ts.Day() == tradeDay {
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

// stamp sets the symbol on every bar.
func stamp(symbol string, bars []domain.Bar) []domain.Bar {
	for i := range bars {
		bars[i].Symbol = symbol
	}
	return bars
}
