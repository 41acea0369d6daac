// Package tui provides the terminal views of promptsplit.
package tui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/promptsplit/internal/decompose"
)

// phaseState is the display state of one pipeline phase.
type phaseState int

const (
	phasePending phaseState = iota
	phaseRunning
	phaseDone
	phaseFailed
	phaseSkipped
)

type phaseRow struct {
	phase decompose.Phase
	state phaseState
	count int
}

// EventMsg wraps a decomposition event for the bubbletea loop.
type EventMsg struct {
	Event decompose.Event
}

// eventsClosedMsg is sent when the event channel is closed.
type eventsClosedMsg struct{}

// quitKeys cancels a running decomposition.
var quitKeys = key.NewBinding(
	key.WithKeys("ctrl+c", "q", "esc"),
	key.WithHelp("q", "cancel"),
)

// ProgressModel shows pipeline phases while a decomposition runs.
type ProgressModel struct {
	events  <-chan decompose.Event
	cancel  context.CancelFunc
	spinner spinner.Model

	rows       []phaseRow
	resolved   int
	assembled  int
	unassigned []string
	finished   bool
	canceled   bool
	err        error

	doneStyle    lipgloss.Style
	pendingStyle lipgloss.Style
	failedStyle  lipgloss.Style
	labelStyle   lipgloss.Style
	warningStyle lipgloss.Style
}

// NewProgressModel creates a model reading from events.
// cancel is called when the user quits early; it may be nil.
func NewProgressModel(events <-chan decompose.Event, cancel context.CancelFunc) *ProgressModel {
	rows := make([]phaseRow, 0, len(decompose.Phases()))
	for _, p := range decompose.Phases() {
		rows = append(rows, phaseRow{phase: p})
	}

	return &ProgressModel{
		events: events,
		cancel: cancel,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.MiniDot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(lipgloss.Color("205"))),
		),
		rows: rows,

		doneStyle:    lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		pendingStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		failedStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		labelStyle:   lipgloss.NewStyle().Foreground(lipgloss.Color("252")).Width(14),
		warningStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
	}
}

// Init starts the spinner and the event listener.
func (m *ProgressModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.waitForEvent())
}

// waitForEvent reads the next event from the channel.
func (m *ProgressModel) waitForEvent() tea.Cmd {
	return func() tea.Msg {
		e, ok := <-m.events
		if !ok {
			return eventsClosedMsg{}
		}
		return EventMsg{Event: e}
	}
}

// Update handles events, spinner ticks and key presses.
func (m *ProgressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			m.canceled = true
			if m.cancel != nil {
				m.cancel()
			}
			return m, tea.Quit
		}
	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	case EventMsg:
		m.apply(msg.Event)
		if m.finished {
			return m, tea.Quit
		}
		return m, m.waitForEvent()
	case eventsClosedMsg:
		m.finished = true
		return m, tea.Quit
	}
	return m, nil
}

// apply updates the model state from one event.
func (m *ProgressModel) apply(e decompose.Event) {
	switch e.Type {
	case decompose.EventStageStarted:
		m.setState(e.Phase, phaseRunning, 0)
	case decompose.EventStageCompleted:
		m.setState(e.Phase, phaseDone, e.Count)
	case decompose.EventConstraintResolved:
		m.resolved++
	case decompose.EventSubtaskAssembled:
		m.assembled++
	case decompose.EventConstraintUnassigned:
		m.unassigned = append(m.unassigned, e.Constraint)
	case decompose.EventRunDone:
		for i := range m.rows {
			if m.rows[i].state == phasePending {
				m.rows[i].state = phaseSkipped
			}
		}
		m.finished = true
	case decompose.EventRunFailed:
		for i := range m.rows {
			if m.rows[i].state == phaseRunning {
				m.rows[i].state = phaseFailed
			}
		}
		m.err = e.Error
		m.finished = true
	}
}

func (m *ProgressModel) setState(p decompose.Phase, s phaseState, count int) {
	for i := range m.rows {
		if m.rows[i].phase == p {
			m.rows[i].state = s
			m.rows[i].count = count
			return
		}
	}
}

// Canceled reports whether the user quit before the run finished.
func (m *ProgressModel) Canceled() bool {
	return m.canceled
}

// Err returns the failure reported by the run, if any.
func (m *ProgressModel) Err() error {
	return m.err
}

// View renders the phase list.
func (m *ProgressModel) View() string {
	var b strings.Builder

	for _, row := range m.rows {
		var icon string
		switch row.state {
		case phaseRunning:
			icon = m.spinner.View()
		case phaseDone:
			icon = m.doneStyle.Render("✓")
		case phaseFailed:
			icon = m.failedStyle.Render("✗")
		case phaseSkipped:
			icon = m.pendingStyle.Render("-")
		default:
			icon = m.pendingStyle.Render("·")
		}

		b.WriteString(icon)
		b.WriteString(" ")
		b.WriteString(m.labelStyle.Render(string(row.phase)))
		b.WriteString(m.detail(row))
		b.WriteString("\n")
	}

	for _, c := range m.unassigned {
		b.WriteString(m.warningStyle.Render(fmt.Sprintf("! unassigned constraint: %s", c)))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(m.failedStyle.Render(m.err.Error()))
		b.WriteString("\n")
	}
	if !m.finished {
		b.WriteString(m.pendingStyle.Render(quitKeys.Help().Key + " " + quitKeys.Help().Desc))
		b.WriteString("\n")
	}
	return b.String()
}

func (m *ProgressModel) detail(row phaseRow) string {
	switch {
	case row.state == phaseRunning && row.phase == decompose.PhaseValidation:
		return m.pendingStyle.Render(fmt.Sprintf("%d resolved", m.resolved))
	case row.state == phaseRunning && row.phase == decompose.PhaseAssemble:
		return m.pendingStyle.Render(fmt.Sprintf("%d assembled", m.assembled))
	case row.state == phaseDone && row.phase != decompose.PhaseGraph:
		return m.pendingStyle.Render(fmt.Sprintf("%d", row.count))
	}
	return ""
}

// RunProgress shows the progress view on out until the event channel closes
// or the run ends. A nil in disables keyboard input. It returns the final model.
func RunProgress(events <-chan decompose.Event, cancel context.CancelFunc, in io.Reader, out io.Writer) (*ProgressModel, error) {
	model := NewProgressModel(events, cancel)
	p := tea.NewProgram(model, tea.WithOutput(out), tea.WithInput(in))
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("progress view: %w", err)
	}
	return final.(*ProgressModel), nil
}
