package cli

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	wberrors "github.com/matzehuels/wheelbench/pkg/errors"
	"github.com/matzehuels/wheelbench/pkg/scenario"
)

// List styles
var (
	listDimStyle    = lipgloss.NewStyle().Foreground(colorDim)
	listHeaderStyle = lipgloss.NewStyle().Foreground(colorGray).Bold(true)
)

// =============================================================================
// Scenario summaries
// =============================================================================

// scenarioSummary is one row of the scenario table.
type scenarioSummary struct {
	Name          string
	Requirements  []string
	Packages      int
	Distributions int
	Timestamp     time.Time
	Err           error // set when the scenario could not be loaded
}

// summarizeScenarios loads every stored scenario. Scenarios that fail to
// load are kept with Err set, so they still show up.
func summarizeScenarios(ctx context.Context, store scenario.Store) ([]scenarioSummary, error) {
	names, err := store.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]scenarioSummary, 0, len(names))
	for _, name := range names {
		sum := scenarioSummary{Name: name}
		s, err := store.Load(ctx, name)
		if err != nil {
			sum.Err = err
		} else {
			sum.Requirements = s.Input.Requirements
			sum.Packages = len(s.Packages)
			sum.Distributions = s.DistributionCount()
			sum.Timestamp = s.Input.Timestamp.Time
		}
		out = append(out, sum)
	}
	return out, nil
}

func (s scenarioSummary) row(cursor string) []string {
	if s.Err != nil {
		return []string{cursor, s.Name, "—", "—", "invalid", "—"}
	}
	return []string{
		cursor,
		s.Name,
		fmt.Sprint(s.Packages),
		fmt.Sprint(s.Distributions),
		formatRelativeTime(s.Timestamp),
		strings.Join(s.Requirements, " "),
	}
}

// renderScenarioTable renders summaries as a table. highlight is the index
// of the selected row, or -1.
func renderScenarioTable(summaries []scenarioSummary, offset, highlight int) string {
	rows := make([][]string, len(summaries))
	for i, s := range summaries {
		cursor := "  "
		if offset+i == highlight {
			cursor = "▸ "
		}
		rows[i] = s.row(cursor)
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Scenario", "Packages", "Dists", "Crawled", "Requirements").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return listHeaderStyle
			}
			if row < 0 || row >= len(summaries) {
				return lipgloss.NewStyle()
			}
			s := summaries[row]
			base := lipgloss.NewStyle()
			if col == 4 || col == 5 {
				base = base.Foreground(colorGray)
			}
			switch {
			case s.Err != nil:
				return base.Foreground(colorRed)
			case offset+row == highlight:
				return base.Foreground(colorGreen).Bold(true)
			}
			return base
		})
	return t.Render()
}

// =============================================================================
// ScenarioListModel - Interactive scenario selection
// =============================================================================

// ScenarioListModel is the bubbletea model for interactive scenario selection.
type ScenarioListModel struct {
	Scenarios []scenarioSummary
	Cursor    int
	Selected  string
	Height    int
	Offset    int
}

// NewScenarioListModel creates a new scenario list model.
func NewScenarioListModel(scenarios []scenarioSummary) ScenarioListModel {
	return ScenarioListModel{
		Scenarios: scenarios,
		Height:    15,
	}
}

func (m ScenarioListModel) Init() tea.Cmd {
	return nil
}

func (m ScenarioListModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Scenarios)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Scenarios) == 0 || m.Scenarios[m.Cursor].Err != nil {
				return m, nil
			}
			m.Selected = m.Scenarios[m.Cursor].Name
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-8, 5)
	}
	return m, nil
}

func (m ScenarioListModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Scenario"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ select  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Scenarios))
	b.WriteString(renderScenarioTable(m.Scenarios[m.Offset:end], m.Offset, m.Cursor))
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Scenarios))))

	return b.String()
}

// pickScenario lets the user choose a stored scenario. It needs a terminal.
func pickScenario(ctx context.Context, store scenario.Store) (string, error) {
	if !isTerminal(os.Stdin) || !isTerminal(os.Stdout) {
		return "", wberrors.New(wberrors.ErrCodeInvalidInput, "a scenario argument is required when not running in a terminal")
	}
	summaries, err := summarizeScenarios(ctx, store)
	if err != nil {
		return "", err
	}
	if len(summaries) == 0 {
		return "", wberrors.New(wberrors.ErrCodeNotFound, "no scenarios found; run '%s crawl' first", appName)
	}

	final, err := tea.NewProgram(NewScenarioListModel(summaries), tea.WithContext(ctx)).Run()
	if err != nil {
		return "", err
	}
	if m, ok := final.(ScenarioListModel); ok && m.Selected != "" {
		return m.Selected, nil
	}
	return "", context.Canceled
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}

	diff := time.Since(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
