package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("255")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	okStyle = lipgloss.NewStyle().
		Foreground(lipgloss.Color("42"))

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	dimmedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("244"))

	barDoneStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205"))
)

// View renders the dashboard
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	var b strings.Builder

	header := fmt.Sprintf(" Vulnfix Orchestrator │ %s │ model: %s ", m.descriptor, m.model)
	b.WriteString(headerStyle.Width(m.width).Render(header))
	b.WriteString("\n")

	progress := m.renderProgress()
	b.WriteString(sectionStyle.Width(m.width - 2).Render(progress))
	b.WriteString("\n")

	outcomes := m.renderOutcomes()
	b.WriteString(sectionStyle.Width(m.width - 2).Render(outcomes))
	b.WriteString("\n")

	if m.done {
		b.WriteString(okStyle.Render(" Run finished"))
	} else {
		b.WriteString(dimmedStyle.Render(" q: quit"))
	}
	b.WriteString("\n")

	return b.String()
}

func (m Model) renderProgress() string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Cells: %d/%d", m.completed, m.total))
	if m.failures > 0 {
		b.WriteString("  " + failStyle.Render(fmt.Sprintf("failures: %d", m.failures)))
	}
	if m.written > 0 {
		b.WriteString("  " + okStyle.Render(fmt.Sprintf("written: %d", m.written)))
	}
	b.WriteString("\n")
	b.WriteString(m.renderBar())
	return b.String()
}

func (m Model) renderBar() string {
	barWidth := m.width - 8
	if barWidth < 10 {
		barWidth = 10
	}
	filled := 0
	if m.total > 0 {
		filled = barWidth * m.completed / m.total
	}
	return barDoneStyle.Render(strings.Repeat("█", filled)) +
		dimmedStyle.Render(strings.Repeat("░", barWidth-filled))
}

func (m Model) renderOutcomes() string {
	if len(m.recent) == 0 {
		return dimmedStyle.Render("Waiting for results...")
	}

	var b strings.Builder
	for i, line := range m.recent {
		if i > 0 {
			b.WriteString("\n")
		}
		label := fmt.Sprintf("%s #%d", line.Path, line.PromptIndex)
		switch {
		case line.Err != "":
			b.WriteString(failStyle.Render("✗ " + label + "  " + truncate(line.Err, m.width/2)))
		case line.Written:
			b.WriteString(okStyle.Render("✓ " + label + "  " + truncate(line.Summary, m.width/2)))
		default:
			b.WriteString("• " + label + "  " + truncate(line.Summary, m.width/2))
		}
	}
	return b.String()
}

func truncate(s string, max int) string {
	if max < 4 || len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
