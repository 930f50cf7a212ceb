// Package tui renders live run progress as a terminal dashboard.
package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
)

// maxRecent bounds the cell outcome log kept on screen
const maxRecent = 12

// CellLine is one finished cell in the outcome log
type CellLine struct {
	Path        string
	PromptIndex int
	Summary     string
	Err         string
	Written     bool
}

// Model is the TUI application model
type Model struct {
	// Run identity
	descriptor string
	model      string

	// Progress
	runID     string
	total     int
	completed int
	failures  int
	written   int
	recent    []CellLine
	done      bool

	// UI state
	width  int
	height int

	events <-chan orchestrator.Event
}

// NewModel creates a TUI model fed by run events
func NewModel(descriptor, model string, events <-chan orchestrator.Event) Model {
	return Model{
		descriptor: descriptor,
		model:      model,
		events:     events,
	}
}

// Done reports whether the run has finished
func (m Model) Done() bool {
	return m.done
}

// EventMsg wraps one orchestrator event
type EventMsg orchestrator.Event

// EventsClosedMsg signals the event source went away without a run_finished
// event, which happens when the scan aborts before any cell runs. The
// dashboard quits so the fatal error can surface on the terminal.
type EventsClosedMsg struct{}

// Init starts listening for run events
func (m Model) Init() tea.Cmd {
	return waitForEvent(m.events)
}

func waitForEvent(events <-chan orchestrator.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg(ev)
	}
}
