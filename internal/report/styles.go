package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/unbound-force/verdict/internal/execution"
)

// Styles defines the visual theme for terminal report output.
// Lipgloss automatically degrades to no-color when output is not a TTY.
type Styles struct {
	// Header is used for section headers.
	Header lipgloss.Style

	// SubHeader is used for secondary information lines.
	SubHeader lipgloss.Style

	// Passed through Unspecified color-code outcomes.
	Passed       lipgloss.Style
	Failed       lipgloss.Style
	Error        lipgloss.Style
	Inconclusive lipgloss.Style
	Unspecified  lipgloss.Style

	// TableHeader styles the header row of tables.
	TableHeader lipgloss.Style

	// TableCell styles regular table cells.
	TableCell lipgloss.Style

	// SummaryLabel styles summary line labels.
	SummaryLabel lipgloss.Style

	// Border is used for table borders.
	Border lipgloss.Style

	// Muted is used for de-emphasized text.
	Muted lipgloss.Style
}

// DefaultStyles returns the default color scheme for terminal reports.
func DefaultStyles() Styles {
	return Styles{
		Header:    lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		SubHeader: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),

		Passed:       lipgloss.NewStyle().Foreground(lipgloss.Color("40")).Bold(true),
		Failed:       lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true),
		Error:        lipgloss.NewStyle().Foreground(lipgloss.Color("208")),
		Inconclusive: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		Unspecified:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),

		TableHeader: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63")),
		TableCell:   lipgloss.NewStyle().PaddingRight(1),

		SummaryLabel: lipgloss.NewStyle().Bold(true).Width(20),

		Border: lipgloss.NewStyle().Foreground(lipgloss.Color("63")),

		Muted: lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// OutcomeStyle returns the style for an outcome string.
func (s Styles) OutcomeStyle(outcome string) lipgloss.Style {
	switch execution.Outcome(outcome) {
	case execution.OutcomePassed:
		return s.Passed
	case execution.OutcomeFailed:
		return s.Failed
	case execution.OutcomeError:
		return s.Error
	case execution.OutcomeInconclusive:
		return s.Inconclusive
	default:
		return s.Unspecified
	}
}
