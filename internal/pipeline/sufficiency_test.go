package pipeline

import (
	"strings"
	"testing"
	"time"

	"hod-momentum-lab/internal/domain"
)

func newYork(t *testing.T) *time.Location {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	return loc
}

func TestSufficiencyChecker_AllPass(t *testing.T) {
	loc := newYork(t)
	checker := NewSufficiencyChecker(domain.DefaultStrategyConfig(), loc)

	result := checker.Check(DemoInput(loc, DefaultFixtures))

	if !result.AllPass {
		for _, c := range result.Checks {
			t.Logf("%s: %s (threshold %s) pass=%v", c.Name, c.Actual, c.Threshold, c.Pass)
		}
		t.Fatalf("expected all checks to pass, errors: %v", result.Errors)
	}
	if len(result.Checks) != 5 {
		t.Errorf("expected 5 checks, got %d", len(result.Checks))
	}
	if len(result.Errors) != 0 {
		t.Errorf("expected no errors, got %v", result.Errors)
	}
}

func TestSufficiencyChecker_ShortDailyHistory(t *testing.T) {
	loc := newYork(t)
	in := DemoInput(loc, []FixtureSymbol{{Symbol: "ABCD", Scenario: ScenarioHold}})
	in.Symbols[0].Daily = in.Symbols[0].Daily[30:]

	result := NewSufficiencyChecker(domain.DefaultStrategyConfig(), loc).Check(in)

	if result.AllPass {
		t.Fatal("expected failure for short daily history")
	}
	check := findCheck(t, result, "Symbols with short daily history")
	if check.Pass || check.Actual != "1" {
		t.Errorf("unexpected check: %+v", check)
	}
	if len(result.Errors) != 1 || !strings.HasPrefix(result.Errors[0], "ABCD:") {
		t.Errorf("unexpected errors: %v", result.Errors)
	}
}

func TestSufficiencyChecker_UnknownFloatAndBadSeries(t *testing.T) {
	loc := newYork(t)
	in := DemoInput(loc, []FixtureSymbol{
		{Symbol: "ABCD", Scenario: ScenarioHold},
		{Symbol: "EFGH", Scenario: ScenarioHold},
	})
	in.Symbols[0].Profile = nil
	in.Symbols[1].Minute[5].Timestamp = in.Symbols[1].Minute[4].Timestamp

	result := NewSufficiencyChecker(domain.DefaultStrategyConfig(), loc).Check(in)

	if result.AllPass {
		t.Fatal("expected failures")
	}
	if c := findCheck(t, result, "Symbols with unknown float"); c.Pass {
		t.Errorf("float check should fail: %+v", c)
	}
	if c := findCheck(t, result, "Invalid series"); c.Pass || c.Actual != "1" {
		t.Errorf("series check should fail once: %+v", c)
	}
	if c := findCheck(t, result, "Intraday sessions"); !c.Pass {
		t.Errorf("sessions check should pass: %+v", c)
	}
	if len(result.Errors) != 2 {
		t.Errorf("expected 2 errors, got %v", result.Errors)
	}
}

func TestSufficiencyChecker_EmptyUniverse(t *testing.T) {
	loc := newYork(t)
	result := NewSufficiencyChecker(domain.DefaultStrategyConfig(), loc).Check(DemoInput(loc, nil))

	if result.AllPass {
		t.Fatal("empty universe must not pass")
	}
	if c := findCheck(t, result, "Symbols with intraday bars"); c.Pass {
		t.Errorf("universe check should fail: %+v", c)
	}
	if c := findCheck(t, result, "Intraday sessions"); c.Pass {
		t.Errorf("sessions check should fail: %+v", c)
	}
}

func findCheck(t *testing.T, r *SufficiencyResult, name string) SufficiencyCheck {
	t.Helper()
	for _, c := range r.Checks {
		if c.Name == name {
			return c
		}
	}
	t.Fatalf("check %q not found", name)
	return SufficiencyCheck{}
}
