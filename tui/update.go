package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
)

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case EventMsg:
		m.apply(orchestrator.Event(msg))
		if m.done {
			return m, tea.Quit
		}
		return m, waitForEvent(m.events)

	case EventsClosedMsg:
		return m, tea.Quit
	}

	return m, nil
}

// apply folds one run event into the model
func (m *Model) apply(ev orchestrator.Event) {
	m.runID = ev.RunID
	m.total = ev.Total
	if ev.Completed > m.completed {
		m.completed = ev.Completed
	}

	switch ev.Type {
	case orchestrator.EventCellFinished:
		line := CellLine{Path: ev.Path, PromptIndex: ev.PromptIndex}
		if ev.Outcome != nil {
			line.Summary = ev.Outcome.Summary
			line.Err = ev.Outcome.Error
			line.Written = ev.Outcome.Written
			if ev.Outcome.Failed() {
				m.failures++
			}
			if ev.Outcome.Written {
				m.written++
			}
		}
		m.recent = append(m.recent, line)
		if len(m.recent) > maxRecent {
			m.recent = m.recent[len(m.recent)-maxRecent:]
		}

	case orchestrator.EventRunFinished:
		m.done = true
	}
}
