package pipeline

import (
	"fmt"
	"sort"
	"time"

	"hod-momentum-lab/internal/backtest"
	"hod-momentum-lab/internal/domain"
	"hod-momentum-lab/internal/replay"
)

// MinDailyLookbackDays is the calendar span of daily history required before
// the first intraday session.
const MinDailyLookbackDays = 30

// SufficiencyCheck represents one data sufficiency criterion.
type SufficiencyCheck struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// SufficiencyResult contains every check plus per-symbol findings.
type SufficiencyResult struct {
	Checks  []SufficiencyCheck
	AllPass bool
	Errors  []string // per-symbol data problems, sorted
}

// SufficiencyChecker validates a backtest universe before it is run.
// Failing checks do not block a run: invalid symbols are excluded by the
// driver. The result tells the operator how much of the universe is usable.
type SufficiencyChecker struct {
	cfg domain.StrategyConfig
	loc *time.Location
}

// NewSufficiencyChecker creates a checker for the given strategy parameters.
func NewSufficiencyChecker(cfg domain.StrategyConfig, loc *time.Location) *SufficiencyChecker {
	return &SufficiencyChecker{cfg: cfg, loc: loc}
}

// Check performs all checks over in.
func (c *SufficiencyChecker) Check(in backtest.Input) *SufficiencyResult {
	result := &SufficiencyResult{AllPass: true}
	add := func(check SufficiencyCheck, errs []string) {
		result.Checks = append(result.Checks, check)
		if !check.Pass {
			result.AllPass = false
		}
		result.Errors = append(result.Errors, errs...)
	}

	add(c.checkUniverse(in), nil)
	add(c.checkSeriesValid(in))
	add(c.checkDailyLookback(in))
	add(c.checkFloatKnown(in))
	add(c.checkSessions(in), nil)

	sort.Strings(result.Errors)
	return result
}

// checkUniverse: at least one symbol with intraday bars.
func (c *SufficiencyChecker) checkUniverse(in backtest.Input) SufficiencyCheck {
	n := 0
	for _, sd := range in.Symbols {
		if len(sd.Minute) > 0 {
			n++
		}
	}
	return SufficiencyCheck{
		Name:      "Symbols with intraday bars",
		Threshold: ">= 1",
		Actual:    fmt.Sprintf("%d of %d", n, len(in.Symbols)),
		Pass:      n >= 1,
	}
}

// checkSeriesValid: every minute and daily series is ordered and sane.
func (c *SufficiencyChecker) checkSeriesValid(in backtest.Input) (SufficiencyCheck, []string) {
	var errs []string
	for _, sd := range in.Symbols {
		if err := replay.ValidateSeries(sd.Symbol, sd.Minute); err != nil {
			errs = append(errs, fmt.Sprintf("minute: %v", err))
		}
		if err := replay.ValidateSeries(sd.Symbol, sd.Daily); err != nil {
			errs = append(errs, fmt.Sprintf("daily: %v", err))
		}
	}
	return SufficiencyCheck{
		Name:      "Invalid series",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", len(errs)),
		Pass:      len(errs) == 0,
	}, errs
}

// checkDailyLookback: daily history reaches MinDailyLookbackDays calendar
// days before the first intraday session and holds enough bars for the
// volume baseline.
func (c *SufficiencyChecker) checkDailyLookback(in backtest.Input) (SufficiencyCheck, []string) {
	var errs []string
	short := 0
	for _, sd := range in.Symbols {
		if len(sd.Minute) == 0 {
			continue
		}
		first := domain.DateOf(sd.Minute[0].Timestamp, c.loc).Time(c.loc)
		var prior []domain.Bar
		for _, b := range sd.Daily {
			if b.Timestamp.Before(first) {
				prior = append(prior, b)
			}
		}

		span := 0
		if len(prior) > 0 {
			span = int(first.Sub(prior[0].Timestamp).Hours() / 24)
		}
		if span < MinDailyLookbackDays || len(prior) < c.cfg.VolumeBaselineDays {
			short++
			errs = append(errs, fmt.Sprintf("%s: %d daily bars over %d days before %s",
				sd.Symbol, len(prior), span, first.Format("2006-01-02")))
		}
	}
	return SufficiencyCheck{
		Name:      "Symbols with short daily history",
		Threshold: fmt.Sprintf("== 0 (>= %d days, >= %d bars)", MinDailyLookbackDays, c.cfg.VolumeBaselineDays),
		Actual:    fmt.Sprintf("%d", short),
		Pass:      short == 0,
	}, errs
}

// checkFloatKnown: every symbol has a float; unknown floats are never eligible.
func (c *SufficiencyChecker) checkFloatKnown(in backtest.Input) (SufficiencyCheck, []string) {
	var errs []string
	for _, sd := range in.Symbols {
		if sd.Profile == nil || sd.Profile.FloatShares == nil {
			errs = append(errs, fmt.Sprintf("%s: float unknown", sd.Symbol))
		}
	}
	return SufficiencyCheck{
		Name:      "Symbols with unknown float",
		Threshold: "== 0",
		Actual:    fmt.Sprintf("%d", len(errs)),
		Pass:      len(errs) == 0,
	}, errs
}

// checkSessions: at least two distinct sessions, since the final session
// never opens positions.
func (c *SufficiencyChecker) checkSessions(in backtest.Input) SufficiencyCheck {
	sessions := make(map[domain.Date]bool)
	for _, sd := range in.Symbols {
		for _, b := range sd.Minute {
			sessions[domain.DateOf(b.Timestamp, c.loc)] = true
		}
	}
	return SufficiencyCheck{
		Name:      "Intraday sessions",
		Threshold: ">= 2",
		Actual:    fmt.Sprintf("%d", len(sessions)),
		Pass:      len(sessions) >= 2,
	}
}
