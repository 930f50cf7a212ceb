package tui

import (
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/seclens/vulnfix-orchestrator/internal/domain"
	"github.com/seclens/vulnfix-orchestrator/internal/orchestrator"
)

func TestNewModel(t *testing.T) {
	events := make(chan orchestrator.Event)
	model := NewModel("local:/srv/webapp", "gpt-4o-mini", events)

	if model.descriptor != "local:/srv/webapp" {
		t.Errorf("descriptor = %q", model.descriptor)
	}
	if model.Done() {
		t.Error("new model should not be done")
	}
}

func TestModel_QuitCommands(t *testing.T) {
	model := NewModel("local:/src", "m", nil)
	model.width = 100
	model.height = 40

	_, cmd := model.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	if cmd == nil {
		t.Error("'q' should return a quit command")
	}

	_, cmd = model.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if cmd == nil {
		t.Error("ctrl+c should return a quit command")
	}
}

func TestModel_WindowResize(t *testing.T) {
	model := NewModel("local:/src", "m", nil)

	newModel, _ := model.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	model = newModel.(Model)

	if model.width != 120 {
		t.Errorf("width = %d, want 120", model.width)
	}
	if model.height != 40 {
		t.Errorf("height = %d, want 40", model.height)
	}
}

func TestModel_CellFinishedEvent(t *testing.T) {
	events := make(chan orchestrator.Event, 1)
	model := NewModel("local:/src", "m", events)
	model.width = 100
	model.height = 40

	outcome := &domain.PromptOutcome{
		PromptIndex: 2,
		Summary:     "CWE-95: eval injection",
		Written:     true,
		OutputPath:  "app_prompt_2.js",
	}
	newModel, cmd := model.Update(EventMsg(orchestrator.Event{
		Type: orchestrator.EventCellFinished, RunID: "run-1",
		Path: "app.js", PromptIndex: 2,
		Outcome: outcome, Completed: 1, Total: 4,
	}))
	model = newModel.(Model)

	if model.completed != 1 || model.total != 4 {
		t.Errorf("progress = %d/%d", model.completed, model.total)
	}
	if model.written != 1 || model.failures != 0 {
		t.Errorf("written=%d failures=%d", model.written, model.failures)
	}
	if len(model.recent) != 1 || model.recent[0].Path != "app.js" {
		t.Errorf("recent = %+v", model.recent)
	}
	if cmd == nil {
		t.Error("should keep listening for events")
	}
}

func TestModel_FailureEvent(t *testing.T) {
	model := NewModel("local:/src", "m", nil)

	newModel, _ := model.Update(EventMsg(orchestrator.Event{
		Type: orchestrator.EventCellFinished, RunID: "run-1",
		Path: "app.js", PromptIndex: 1,
		Outcome:   &domain.PromptOutcome{PromptIndex: 1, Error: "network error"},
		Completed: 1, Total: 2,
	}))
	model = newModel.(Model)

	if model.failures != 1 {
		t.Errorf("failures = %d, want 1", model.failures)
	}
}

func TestModel_RunFinishedQuits(t *testing.T) {
	model := NewModel("local:/src", "m", nil)

	newModel, cmd := model.Update(EventMsg(orchestrator.Event{
		Type: orchestrator.EventRunFinished, RunID: "run-1", Completed: 2, Total: 2,
	}))
	model = newModel.(Model)

	if !model.Done() {
		t.Error("model should be done after run_finished")
	}
	if cmd == nil {
		t.Error("run_finished should return the quit command")
	}
}

func TestModel_ClosedEventChannelQuits(t *testing.T) {
	events := make(chan orchestrator.Event)
	close(events)
	model := NewModel("local:/missing", "m", events)

	msg := model.Init()()
	if _, ok := msg.(EventsClosedMsg); !ok {
		t.Fatalf("closed channel should yield EventsClosedMsg, got %T", msg)
	}

	newModel, cmd := model.Update(msg)
	model = newModel.(Model)
	if cmd == nil {
		t.Error("closed event channel should quit the dashboard")
	}
	if model.Done() {
		t.Error("an aborted scan is not a finished run")
	}
}

func TestModel_RecentLogBounded(t *testing.T) {
	model := NewModel("local:/src", "m", nil)

	for i := 0; i < maxRecent+5; i++ {
		newModel, _ := model.Update(EventMsg(orchestrator.Event{
			Type: orchestrator.EventCellFinished,
			Path: "a.js", PromptIndex: i + 1,
			Outcome:   &domain.PromptOutcome{PromptIndex: i + 1, Summary: "ok"},
			Completed: i + 1, Total: maxRecent + 5,
		}))
		model = newModel.(Model)
	}

	if len(model.recent) != maxRecent {
		t.Errorf("recent length = %d, want %d", len(model.recent), maxRecent)
	}
	if model.recent[len(model.recent)-1].PromptIndex != maxRecent+5 {
		t.Errorf("log should keep the newest entries: %+v", model.recent[len(model.recent)-1])
	}
}

func TestModel_View(t *testing.T) {
	model := NewModel("github:acme/webapp@main/src", "gpt-4o-mini", nil)

	if model.View() != "Loading..." {
		t.Errorf("zero-width view = %q", model.View())
	}

	model.width = 100
	model.height = 40
	newModel, _ := model.Update(EventMsg(orchestrator.Event{
		Type: orchestrator.EventCellFinished,
		Path: "app.js", PromptIndex: 1,
		Outcome:   &domain.PromptOutcome{PromptIndex: 1, Error: "network error"},
		Completed: 1, Total: 2,
	}))
	model = newModel.(Model)

	view := model.View()
	if !strings.Contains(view, "acme/webapp") {
		t.Error("view should show the source descriptor")
	}
	if !strings.Contains(view, "app.js") {
		t.Error("view should show the cell outcome")
	}
	if !strings.Contains(view, "1/2") {
		t.Error("view should show progress")
	}
}
