package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/unbound-force/verdict/internal/aggregate"
	"github.com/unbound-force/verdict/internal/report"
)

// keyMap defines keybindings for the interactive TUI.
type keyMap struct {
	Up       key.Binding
	Down     key.Binding
	PageUp   key.Binding
	PageDown key.Binding
	Errors   key.Binding
	Quit     key.Binding
	Help     key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Up, k.Down, k.Errors, k.Quit, k.Help}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.PageUp, k.PageDown},
		{k.Errors, k.Quit, k.Help},
	}
}

var defaultKeyMap = keyMap{
	Up:       key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("^/k", "up")),
	Down:     key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("v/j", "down")),
	PageUp:   key.NewBinding(key.WithKeys("pgup", "ctrl+u"), key.WithHelp("pgup", "page up")),
	PageDown: key.NewBinding(key.WithKeys("pgdown", "ctrl+d"), key.WithHelp("pgdn", "page down")),
	Errors:   key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "errors only")),
	Quit:     key.NewBinding(key.WithKeys("q", "ctrl+c", "esc"), key.WithHelp("q", "quit")),
	Help:     key.NewBinding(key.WithKeys("?"), key.WithHelp("?", "help")),
}

// Styles for the TUI.
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63")).
			MarginBottom(1)

	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	tuiHeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("63"))

	tuiBorderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("63"))
)

// maxCommentWidth bounds the iteration comment column.
const maxCommentWidth = 50

// reportModel is the Bubble Tea model for browsing a report.
type reportModel struct {
	doc        report.Document
	viewport   viewport.Model
	help       help.Model
	keys       keyMap
	ready      bool
	errorsOnly bool
	content    string
}

func newReportModel(doc report.Document) reportModel {
	return reportModel{
		doc:     doc,
		help:    help.New(),
		keys:    defaultKeyMap,
		content: renderReportContent(doc, false),
	}
}

// renderReportContent renders every test case with its iterations.
// With errorsOnly, test cases without an error message are left out.
func renderReportContent(doc report.Document, errorsOnly bool) string {
	var sb strings.Builder
	styles := report.DefaultStyles()

	iterations := 0
	for _, r := range doc.TestResults {
		iterations += len(r.IterationDetails)
	}

	sb.WriteString(titleStyle.Render(
		fmt.Sprintf("%s / %s: %d test case(s), %d iteration(s)",
			doc.TestPlanName, doc.TestSuiteName, len(doc.TestResults), iterations)))
	sb.WriteString("\n\n")

	shown := 0
	for _, id := range aggregate.SortedIDs(doc.TestResults) {
		r := doc.TestResults[id]
		if errorsOnly && r.ErrorMessage == "" {
			continue
		}
		shown++

		sb.WriteString(tuiHeaderStyle.Render(fmt.Sprintf("=== %s ", id)))
		sb.WriteString(styles.OutcomeStyle(string(r.Outcome)).Render(string(r.Outcome)))
		sb.WriteString(tuiHeaderStyle.Render(" ==="))
		sb.WriteString("\n")
		sb.WriteString(statusStyle.Render(fmt.Sprintf("    %s, %s",
			r.Comment, report.FormatDuration(r.DurationInMs))))
		sb.WriteString("\n")

		rows := make([][]string, 0, len(r.IterationDetails))
		for _, it := range r.IterationDetails {
			comment := report.Truncate(it.Comment, maxCommentWidth)
			rows = append(rows, []string{
				fmt.Sprintf("%d", it.ID),
				string(it.Outcome),
				report.FormatDuration(it.DurationInMs),
				comment,
			})
		}

		t := table.New().
			Border(lipgloss.RoundedBorder()).
			BorderStyle(tuiBorderStyle).
			StyleFunc(func(row, col int) lipgloss.Style {
				if row == table.HeaderRow {
					return tuiHeaderStyle
				}
				if col == 1 && row >= 0 && row < len(rows) {
					return styles.OutcomeStyle(rows[row][1])
				}
				return lipgloss.NewStyle()
			}).
			Headers("#", "OUTCOME", "DURATION", "COMMENT").
			Rows(rows...)

		sb.WriteString(t.String())
		sb.WriteString("\n")

		if r.ErrorMessage != "" {
			for _, line := range strings.Split(strings.TrimRight(r.ErrorMessage, "\n"), "\n") {
				sb.WriteString(styles.Failed.Render("    " + line))
				sb.WriteString("\n")
			}
		}
		sb.WriteString("\n")
	}

	if shown == 0 {
		msg := "    No test results recorded."
		if errorsOnly && len(doc.TestResults) > 0 {
			msg = "    No errors recorded."
		}
		sb.WriteString(statusStyle.Render(msg))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m reportModel) Init() tea.Cmd {
	return nil
}

func (m reportModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		headerHeight := 0
		footerHeight := 2
		verticalMargin := headerHeight + footerHeight

		if !m.ready {
			m.viewport = viewport.New(msg.Width, msg.Height-verticalMargin)
			m.viewport.SetContent(m.content)
			m.ready = true
		} else {
			m.viewport.Width = msg.Width
			m.viewport.Height = msg.Height - verticalMargin
		}

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Help):
			m.help.ShowAll = !m.help.ShowAll
		case key.Matches(msg, m.keys.Errors):
			m.errorsOnly = !m.errorsOnly
			m.content = renderReportContent(m.doc, m.errorsOnly)
			if m.ready {
				m.viewport.SetContent(m.content)
				m.viewport.GotoTop()
			}
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m reportModel) View() string {
	if !m.ready {
		return "Initializing..."
	}

	footer := statusStyle.Render(
		fmt.Sprintf(" %3.f%% ", m.viewport.ScrollPercent()*100)) +
		" " + m.help.View(m.keys)

	return m.viewport.View() + "\n" + footer
}

// runInteractiveView launches the Bubble Tea TUI for browsing a
// report.
func runInteractiveView(doc report.Document) error {
	model := newReportModel(doc)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	_, err := p.Run()
	return err
}
