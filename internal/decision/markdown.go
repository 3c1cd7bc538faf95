package decision

import (
	"fmt"
	"strings"
)

// RenderMarkdown renders a DecisionResult as a Markdown section.
func RenderMarkdown(result *DecisionResult) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "## Strategy Gate: %s\n\n", result.Decision)

	sb.WriteString("### GO Criteria\n\n")
	sb.WriteString("| # | Criterion | Threshold | Actual | Pass |\n")
	sb.WriteString("|---|-----------|-----------|--------|------|\n")
	passed := 0
	for i, c := range result.GOCriteria {
		status := "FAIL"
		if c.Pass {
			status = "PASS"
			passed++
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n", i+1, c.Name, c.Threshold, c.Actual, status)
	}
	fmt.Fprintf(&sb, "\nGO Criteria: %d/%d passed\n\n", passed, len(result.GOCriteria))

	sb.WriteString("### NO-GO Triggers\n\n")
	sb.WriteString("| # | Trigger | Condition | Actual | Status |\n")
	sb.WriteString("|---|---------|-----------|--------|--------|\n")
	triggered := 0
	for i, c := range result.NOGOChecks {
		status := "NOT TRIGGERED"
		if !c.Pass {
			status = "TRIGGERED"
			triggered++
		}
		fmt.Fprintf(&sb, "| %d | %s | %s | %s | %s |\n", i+1, c.Name, c.Threshold, c.Actual, status)
	}
	fmt.Fprintf(&sb, "\nNO-GO Triggers: %d/%d triggered\n\n", triggered, len(result.NOGOChecks))

	if result.Decision == DecisionGO {
		sb.WriteString("All GO criteria passed and no NO-GO triggers fired.\n")
		return sb.String()
	}

	sb.WriteString("Decision is NO-GO due to:\n")
	for _, c := range result.GOCriteria {
		if !c.Pass {
			fmt.Fprintf(&sb, "- GO criterion failed: %s (actual: %s)\n", c.Name, c.Actual)
		}
	}
	for _, c := range result.NOGOChecks {
		if !c.Pass {
			fmt.Fprintf(&sb, "- NO-GO trigger fired: %s (actual: %s)\n", c.Name, c.Actual)
		}
	}
	return sb.String()
}
