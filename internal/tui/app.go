package tui

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/tui/views"
)

// Run starts the interactive TUI. Scans go through engine; probes fills the
// selection menu.
func Run(engine views.Engine, probes []scanner.Probe) error {
	m := NewModel(engine, probes)
	p := tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("TUI error: %w", err)
	}

	return nil
}
