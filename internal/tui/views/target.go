package views

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buemura/surface/internal/tui/styles"
	"github.com/buemura/surface/pkg/types"
)

// TargetModel is the view model for target URL input.
type TargetModel struct {
	textInput textinput.Model
	probes    []string
	err       string
}

// NewTargetModel creates a new target input view.
func NewTargetModel() TargetModel {
	ti := textinput.New()
	ti.Placeholder = "e.g. https://example.com or example.com:8080"
	ti.Focus()
	ti.CharLimit = 256
	ti.Width = 50
	ti.PromptStyle = styles.CursorStyle
	ti.TextStyle = styles.SelectedStyle

	return TargetModel{textInput: ti}
}

// SetProbes sets the probes the scan will run. Empty means automatic
// selection.
func (m *TargetModel) SetProbes(names []string) {
	m.probes = names
}

func (m TargetModel) Probes() []string {
	return m.probes
}

func (m TargetModel) scanLabel() string {
	if len(m.probes) == 0 {
		return AutoProbe
	}
	return strings.Join(m.probes, ", ")
}

// Init returns the text input blink command.
func (m TargetModel) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles input events.
func (m TargetModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if _, err := m.ValidatedTarget(); err != nil {
			m.err = err.Error()
			return m, nil
		}
		m.err = ""
		return m, nil
	}

	var cmd tea.Cmd
	m.textInput, cmd = m.textInput.Update(msg)
	m.err = ""
	return m, cmd
}

// View renders the target input form.
func (m TargetModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Surface • Interactive Mode"))
	b.WriteString("\n\n")
	b.WriteString(styles.HeaderStyle.Render(fmt.Sprintf("Scan: %s", m.scanLabel())))
	b.WriteString("\n")
	b.WriteString("Enter target URL:\n\n")
	b.WriteString(m.textInput.View())
	b.WriteString("\n")

	if m.err != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.err))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("enter submit • esc back"))

	return b.String()
}

// ValidatedTarget parses and returns the target, or an error if invalid.
func (m TargetModel) ValidatedTarget() (types.Target, error) {
	value := strings.TrimSpace(m.textInput.Value())
	if value == "" {
		return types.Target{}, fmt.Errorf("target is required")
	}
	return types.ParseTarget(value)
}

// SetValue replaces the input text.
func (m *TargetModel) SetValue(s string) {
	m.textInput.SetValue(s)
}
