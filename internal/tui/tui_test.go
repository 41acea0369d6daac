package tui

import (
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/ShayCichocki/promptsplit/internal/decompose"
	"github.com/ShayCichocki/promptsplit/pkg/models"
)

// =============================================================================
// ProgressModel Tests
// =============================================================================

func TestNewProgressModel(t *testing.T) {
	m := NewProgressModel(nil, nil)

	if len(m.rows) != len(decompose.Phases()) {
		t.Fatalf("expected %d rows, got %d", len(decompose.Phases()), len(m.rows))
	}
	for _, row := range m.rows {
		if row.state != phasePending {
			t.Errorf("phase %s should start pending", row.phase)
		}
	}
	if m.Canceled() || m.Err() != nil {
		t.Error("new model should be neither canceled nor failed")
	}
}

func TestProgressModel_AppliesEvents(t *testing.T) {
	m := NewProgressModel(nil, nil)

	events := []decompose.Event{
		{Type: decompose.EventStageStarted, Phase: decompose.PhaseSubtasks},
		{Type: decompose.EventStageCompleted, Phase: decompose.PhaseSubtasks, Count: 3},
		{Type: decompose.EventStageStarted, Phase: decompose.PhaseValidation},
		{Type: decompose.EventConstraintResolved, Phase: decompose.PhaseValidation, Constraint: "a"},
		{Type: decompose.EventConstraintResolved, Phase: decompose.PhaseValidation, Constraint: "b"},
		{Type: decompose.EventConstraintUnassigned, Phase: decompose.PhaseAssign, Constraint: "be polite"},
	}
	for _, e := range events {
		m.apply(e)
	}

	if m.rows[0].state != phaseDone || m.rows[0].count != 3 {
		t.Errorf("subtasks row = %+v", m.rows[0])
	}
	if m.resolved != 2 {
		t.Errorf("resolved = %d, want 2", m.resolved)
	}

	view := m.View()
	if !strings.Contains(view, "2 resolved") {
		t.Errorf("view should show resolution progress:\n%s", view)
	}
	if !strings.Contains(view, "unassigned constraint: be polite") {
		t.Errorf("view should warn about unassigned constraints:\n%s", view)
	}
}

func TestProgressModel_QuitsOnRunDone(t *testing.T) {
	m := NewProgressModel(nil, nil)

	_, cmd := m.Update(EventMsg{Event: decompose.Event{Type: decompose.EventRunDone}})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("expected tea.QuitMsg")
	}
	for _, row := range m.rows {
		if row.state != phaseSkipped {
			t.Errorf("phase %s should be skipped, got %v", row.phase, row.state)
		}
	}
}

func TestProgressModel_RunFailed(t *testing.T) {
	m := NewProgressModel(nil, nil)
	m.apply(decompose.Event{Type: decompose.EventStageStarted, Phase: decompose.PhasePrompts})
	m.apply(decompose.Event{Type: decompose.EventRunFailed, Error: errors.New("prompts: tag not found")})

	if m.Err() == nil {
		t.Fatal("expected error to be recorded")
	}
	if m.rows[3].state != phaseFailed {
		t.Errorf("prompts row state = %v, want failed", m.rows[3].state)
	}
	if !strings.Contains(m.View(), "prompts: tag not found") {
		t.Error("view should show the failure")
	}
}

func TestProgressModel_CancelKey(t *testing.T) {
	canceled := false
	m := NewProgressModel(nil, func() { canceled = true })

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !canceled || !m.Canceled() {
		t.Error("ctrl+c should cancel the run")
	}
	if cmd == nil {
		t.Fatal("expected quit command")
	}
}

func TestProgressModel_WaitForEvent(t *testing.T) {
	ch := make(chan decompose.Event, 1)
	m := NewProgressModel(ch, nil)

	ch <- decompose.Event{Type: decompose.EventStageStarted, Phase: decompose.PhaseGraph}
	msg := m.waitForEvent()()
	em, ok := msg.(EventMsg)
	if !ok || em.Event.Phase != decompose.PhaseGraph {
		t.Errorf("unexpected msg %#v", msg)
	}

	close(ch)
	if _, ok := m.waitForEvent()().(eventsClosedMsg); !ok {
		t.Error("expected eventsClosedMsg after close")
	}
}

// =============================================================================
// SummaryView Tests
// =============================================================================

func TestSummaryView_Render(t *testing.T) {
	fn := "def validate_input(s): return True"
	occ := models.ConstraintOccurrence{
		Constraint:    "no uppercase",
		Strategy:      models.StrategyCode,
		ValidatorFn:   &fn,
		ValidatorName: "val_fn_1",
	}
	result := &models.Result{
		OriginalTaskPrompt:    "Write about {{topic}}",
		SubtaskList:           []string{"Research", "Draft"},
		IdentifiedConstraints: []models.ConstraintOccurrence{occ},
		Subtasks: []models.Subtask{
			{Tag: "RESEARCH", Description: "Research", InputVarsRequired: []string{"topic"}, DependsOn: []string{}},
			{Tag: "DRAFT", Description: "Draft", Constraints: []models.ConstraintOccurrence{occ},
				DependsOn: []string{"RESEARCH"}, GeneralInstructions: "- Be concise\n- Be kind"},
		},
	}

	out := NewSummaryView(0).Render(result, [][]string{{"RESEARCH"}, {"DRAFT"}})

	for _, want := range []string{
		"Constraints (1)",
		"val_fn_1",
		"[code]",
		"no uppercase",
		"Subtasks (2)",
		"RESEARCH",
		"topic",
		"- Be concise ...",
		"Execution order",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestSummaryView_NoConstraints(t *testing.T) {
	out := NewSummaryView(40).Render(&models.Result{OriginalTaskPrompt: "Say hi"}, nil)
	if !strings.Contains(out, "none") {
		t.Errorf("summary should say none:\n%s", out)
	}
	if strings.Contains(out, "Execution order") {
		t.Error("execution order should be omitted without levels")
	}
}

func TestSummaryView_RenderOrder(t *testing.T) {
	v := NewSummaryView(0)

	out := v.RenderOrder([]string{"RESEARCH", "OUTLINE", "DRAFT"})
	if !strings.Contains(out, "Sequential order") || !strings.Contains(out, "RESEARCH → OUTLINE → DRAFT") {
		t.Errorf("unexpected order:\n%s", out)
	}
	if out := v.RenderOrder(nil); !strings.Contains(out, "none") {
		t.Errorf("empty order should say none:\n%s", out)
	}
}
