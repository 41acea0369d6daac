package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/promptsplit/pkg/models"
)

// SummaryView renders a decomposition result for humans.
type SummaryView struct {
	width int

	headerStyle  lipgloss.Style
	tagStyle     lipgloss.Style
	labelStyle   lipgloss.Style
	valueStyle   lipgloss.Style
	mutedStyle   lipgloss.Style
	codeStyle    lipgloss.Style
	llmStyle     lipgloss.Style
	warningStyle lipgloss.Style
	boxStyle     lipgloss.Style
}

// NewSummaryView creates a SummaryView wrapping text at width (0 = no wrapping).
func NewSummaryView(width int) *SummaryView {
	return &SummaryView{
		width: width,

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")),
		tagStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(12),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),
		mutedStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),
		codeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),
		llmStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")),
		warningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
		boxStyle: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("238")).
			Padding(0, 1),
	}
}

// Render returns the summary of result. levels is the execution order; it may be nil.
func (v *SummaryView) Render(result *models.Result, levels [][]string) string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render("Task"))
	b.WriteString("\n")
	b.WriteString(v.wrap(result.OriginalTaskPrompt))
	b.WriteString("\n\n")

	b.WriteString(v.headerStyle.Render(fmt.Sprintf("Constraints (%d)", len(result.IdentifiedConstraints))))
	b.WriteString("\n")
	if len(result.IdentifiedConstraints) == 0 {
		b.WriteString(v.mutedStyle.Render("none"))
		b.WriteString("\n")
	}
	for _, c := range result.IdentifiedConstraints {
		b.WriteString(v.mutedStyle.Render(c.ValidatorName))
		b.WriteString(" ")
		b.WriteString(v.strategy(c.Strategy))
		b.WriteString(" ")
		b.WriteString(c.Constraint)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	b.WriteString(v.headerStyle.Render(fmt.Sprintf("Subtasks (%d)", len(result.Subtasks))))
	b.WriteString("\n")
	for _, st := range result.Subtasks {
		b.WriteString(v.boxStyle.Render(v.subtask(st)))
		b.WriteString("\n")
	}

	if len(levels) > 0 {
		b.WriteString("\n")
		b.WriteString(v.headerStyle.Render("Execution order"))
		b.WriteString("\n")
		for i, level := range levels {
			b.WriteString(v.mutedStyle.Render(fmt.Sprintf("%d.", i+1)))
			b.WriteString(" ")
			b.WriteString(strings.Join(level, ", "))
			b.WriteString("\n")
		}
	}

	return b.String()
}

// RenderOrder returns a one-line run order, each subtask after its dependencies.
func (v *SummaryView) RenderOrder(order []string) string {
	var b strings.Builder
	b.WriteString(v.headerStyle.Render("Sequential order"))
	b.WriteString("\n")
	if len(order) == 0 {
		b.WriteString(v.mutedStyle.Render("none"))
		return b.String()
	}
	b.WriteString(v.wrap(strings.Join(order, " → ")))
	return b.String()
}

func (v *SummaryView) subtask(st models.Subtask) string {
	var b strings.Builder

	b.WriteString(v.tagStyle.Render(st.Tag))
	b.WriteString(" ")
	b.WriteString(v.valueStyle.Render(st.Description))
	b.WriteString("\n")

	b.WriteString(v.labelStyle.Render("inputs"))
	b.WriteString(v.list(st.InputVarsRequired))
	b.WriteString("\n")
	b.WriteString(v.labelStyle.Render("depends on"))
	b.WriteString(v.list(st.DependsOn))
	b.WriteString("\n")

	names := make([]string, len(st.Constraints))
	for i, c := range st.Constraints {
		names[i] = c.ValidatorName
	}
	b.WriteString(v.labelStyle.Render("validators"))
	b.WriteString(v.list(names))

	if st.GeneralInstructions != "" {
		b.WriteString("\n")
		b.WriteString(v.labelStyle.Render("instructions"))
		b.WriteString(v.mutedStyle.Render(firstLine(st.GeneralInstructions)))
	}
	return b.String()
}

func (v *SummaryView) strategy(s models.ValidationStrategy) string {
	switch s {
	case models.StrategyCode:
		return v.codeStyle.Render("[code]")
	case models.StrategyLLM:
		return v.llmStyle.Render("[llm] ")
	default:
		return v.warningStyle.Render("[?]   ")
	}
}

func (v *SummaryView) list(items []string) string {
	if len(items) == 0 {
		return v.mutedStyle.Render("-")
	}
	return v.valueStyle.Render(strings.Join(items, ", "))
}

func (v *SummaryView) wrap(s string) string {
	if v.width <= 0 {
		return s
	}
	return lipgloss.NewStyle().Width(v.width).Render(s)
}

func firstLine(s string) string {
	line, _, found := strings.Cut(strings.TrimSpace(s), "\n")
	if found {
		return line + " ..."
	}
	return line
}
