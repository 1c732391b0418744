package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/verdict/internal/aggregate"
	"github.com/unbound-force/verdict/internal/execution"
)

// outcomeOrder is the display order of outcomes in summaries.
var outcomeOrder = []execution.Outcome{
	execution.OutcomePassed,
	execution.OutcomeFailed,
	execution.OutcomeError,
	execution.OutcomeInconclusive,
	execution.OutcomeUnspecified,
}

// WriteText writes the report as a styled table of test cases followed
// by an outcome summary. Test cases are listed by ID.
func WriteText(w io.Writer, doc Document) error {
	s := DefaultStyles()

	fmt.Fprintln(w, s.Header.Render(fmt.Sprintf("=== %s ===", doc.TestPlanName)))
	fmt.Fprintln(w, s.SubHeader.Render("    "+doc.TestSuiteName))

	if len(doc.TestResults) == 0 {
		fmt.Fprintln(w, s.Muted.Render("    No test results recorded."))
		fmt.Fprintf(w, "\n%s\n", s.Header.Render("0 test case(s) reported"))
		return nil
	}
	fmt.Fprintln(w)

	// 80 columns: borders and padding take 14, leaving ID=16,
	// OUTCOME=12, RUNS=4, DURATION=10 and 24 for the comment.
	const maxID, maxComment = 16, 24
	ids := aggregate.SortedIDs(doc.TestResults)
	rows := make([][]string, 0, len(ids))
	for _, id := range ids {
		r := doc.TestResults[id]
		rows = append(rows, []string{
			Truncate(id, maxID),
			string(r.Outcome),
			fmt.Sprintf("%d", len(r.IterationDetails)),
			FormatDuration(r.DurationInMs),
			Truncate(r.Comment, maxComment),
		})
	}

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(s.Border).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return s.TableHeader
			}
			if col == 1 && row >= 0 && row < len(rows) {
				return s.OutcomeStyle(rows[row][1])
			}
			return s.TableCell
		}).
		Headers("TEST CASE", "OUTCOME", "RUNS", "DURATION", "COMMENT").
		Rows(rows...)

	fmt.Fprintln(w, t)

	counts := aggregate.CountOutcomes(doc.TestResults)
	var parts []string
	for _, o := range outcomeOrder {
		if c, ok := counts[o]; ok {
			parts = append(parts, s.OutcomeStyle(string(o)).Render(fmt.Sprintf("%s: %d", o, c)))
		}
	}

	iterations := 0
	for _, r := range doc.TestResults {
		iterations += len(r.IterationDetails)
	}
	fmt.Fprintf(w, "\n%s\n", s.Header.Render(fmt.Sprintf(
		"%d test case(s) reported, %d iteration(s)", len(doc.TestResults), iterations)))
	fmt.Fprintf(w, "    Summary: %s\n", strings.Join(parts, ", "))

	return nil
}

// WriteErrors writes the accumulated error text of every test case
// that has one. Nothing is written when no test case recorded errors.
func WriteErrors(w io.Writer, doc Document) {
	s := DefaultStyles()
	for _, id := range aggregate.SortedIDs(doc.TestResults) {
		r := doc.TestResults[id]
		if r.ErrorMessage == "" {
			continue
		}
		fmt.Fprintln(w, s.OutcomeStyle(string(r.Outcome)).Render("--- "+id+" ---"))
		for _, line := range strings.Split(strings.TrimRight(r.ErrorMessage, "\n"), "\n") {
			fmt.Fprintln(w, "    "+line)
		}
	}
}

// FormatDuration renders milliseconds as "850ms" or "1.2s".
func FormatDuration(ms int64) string {
	if ms < 1000 {
		return fmt.Sprintf("%dms", ms)
	}
	return fmt.Sprintf("%.1fs", float64(ms)/1000)
}

// Truncate shortens s to at most n runes, ending in "..." when cut.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}
