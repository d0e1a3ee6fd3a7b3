package pipeline

import (
	"fmt"
	"strings"

	"github.com/The-Batman-Code/literate-happiness/internal/ranking"
)

// FormatReport renders the run outcome as a markdown document suitable
// for the report side-artifact.
func FormatReport(result *Result, criteria ranking.FilterCriteria) string {
	var b strings.Builder

	b.WriteString("# Job research report\n\n")
	fmt.Fprintf(&b, "Session: `%s`\n\n", result.SessionID)

	b.WriteString("## Shortlist\n\n")
	if len(result.Shortlist) == 0 {
		b.WriteString("No openings survived the company filters.\n\n")
	} else {
		b.WriteString("| # | Title | Company | Location | Score |\n")
		b.WriteString("|---|-------|---------|----------|-------|\n")
		for _, record := range result.Shortlist {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %.2f |\n",
				record.Rank, record.Title, record.Company, record.Location, record.Score)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Company criteria\n\n")
	if criteria.MinRevenueUSD > 0 {
		fmt.Fprintf(&b, "- Minimum revenue: $%.0f\n", criteria.MinRevenueUSD)
	}
	if criteria.MinEmployees > 0 {
		fmt.Fprintf(&b, "- Minimum employees: %d\n", criteria.MinEmployees)
	}
	if !criteria.FundedAfter.IsZero() {
		fmt.Fprintf(&b, "- Funded after: %s\n", criteria.FundedAfter.Format("2006-01-02"))
	}
	b.WriteString("\n")

	diag := result.Diagnostics
	if len(diag.SkippedCompanies) > 0 {
		b.WriteString("## Skipped companies\n\n")
		b.WriteString("Research failed for these companies; they were excluded, not defaulted:\n\n")
		for _, key := range diag.SkippedCompanies {
			fmt.Fprintf(&b, "- %s\n", key)
		}
		b.WriteString("\n")
	}

	if len(diag.TaskFailures) > 0 {
		b.WriteString("## Task failures\n\n")
		for _, failure := range diag.TaskFailures {
			fmt.Fprintf(&b, "- `%s` (%s): %s\n", failure.TaskID, failure.Kind, failure.Reason)
		}
		b.WriteString("\n")
	}

	return b.String()
}
