package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/pithecene-io/svgswap/runtime"
)

// SummaryModel is a Bubble Tea model showing a batch report: stat boxes
// on top and a scrollable candidate list below.
type SummaryModel struct {
	report   *runtime.BatchReport
	list     viewport.Model
	ready    bool
	quitting bool
}

// NewSummaryModel creates a summary model. data must be a *runtime.BatchReport.
func NewSummaryModel(data any) (SummaryModel, error) {
	report, ok := data.(*runtime.BatchReport)
	if !ok || report == nil {
		return SummaryModel{}, fmt.Errorf("invalid data type for %s: %T", ViewSummaryBatch, data)
	}
	return SummaryModel{report: report}, nil
}

// Init implements tea.Model.
func (m SummaryModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m SummaryModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - lipgloss.Height(m.header()) - 3
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.list = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.list.Width = msg.Width
			m.list.Height = height
		}
		m.list.SetContent(m.candidateLines())
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View implements tea.Model.
func (m SummaryModel) View() string {
	if m.quitting {
		return ""
	}
	body := m.candidateLines()
	if m.ready {
		body = m.list.View()
	}
	return m.header() + "\n" + body + "\n" + m.help()
}

func (m SummaryModel) header() string {
	r := m.report
	var b strings.Builder
	title := fmt.Sprintf("Batch %s", r.RunID)
	if r.DryRun {
		title += " (dry run)"
	}
	b.WriteString(TitleStyle.Render(title))
	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Status:"), StateStyle(string(r.Status)).Render(string(r.Status))))
	b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render("Root:"), ValueStyle.Render(r.Root)))
	b.WriteString(fmt.Sprintf("%s %s\n\n", LabelStyle.Render("Message:"), ValueStyle.Render(r.Message)))

	var t runtime.ReportTotals
	if r.Totals != nil {
		t = *r.Totals
	}
	boxes := []string{
		renderStatBox("Candidates", fmt.Sprintf("%d", t.Candidates), highlightColor),
		renderStatBox("Converted", fmt.Sprintf("%d", t.Converted), successColor),
		renderStatBox("Kept Original", fmt.Sprintf("%d", t.Kept), warningColor),
		renderStatBox("Failed", fmt.Sprintf("%d", t.Failed), errorColor),
		renderStatBox("Saved", FormatBytes(t.BytesSaved), primaryColor),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	return b.String()
}

func (m SummaryModel) candidateLines() string {
	if len(m.report.Candidates) == 0 {
		return HelpStyle.Render("(no candidates)")
	}
	lines := make([]string, 0, len(m.report.Candidates))
	for _, c := range m.report.Candidates {
		line := fmt.Sprintf("%-14s %-40s %8s -> %-8s",
			StateStyle(string(c.Status)).Render(string(c.Status)),
			c.Path,
			FormatBytes(c.SourceBytes),
			FormatBytes(c.ArtifactBytes),
		)
		if c.Error != "" {
			line += " " + ErrorStyle.Render(c.Error)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m SummaryModel) help() string {
	return HelpStyle.Render(fmt.Sprintf("%s %s • %s %s • %s %s",
		keys.Up.Help().Key, keys.Up.Help().Desc,
		keys.Down.Help().Key, keys.Down.Help().Desc,
		keys.Quit.Help().Key, keys.Quit.Help().Desc))
}

func renderStatBox(label, value string, color lipgloss.TerminalColor) string {
	boxStyle := StatBoxStyle.BorderForeground(color)
	valueStr := StatValueStyle.Foreground(color).Render(value)
	labelStr := StatLabelStyle.Render(label)
	return boxStyle.Render(lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr))
}

// RenderSummaryStatic renders the summary without starting a program.
func RenderSummaryStatic(report *runtime.BatchReport) string {
	m := SummaryModel{report: report}
	return lipgloss.NewStyle().Padding(1, 2).Render(m.View())
}

// FormatBytes renders a byte count with a binary unit.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
