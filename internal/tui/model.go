package tui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/tui/views"
)

// appState represents which view is currently active.
type appState int

const (
	stateMenu    appState = iota // Probe selection menu
	stateTarget                  // Target URL input
	stateScan                    // Scan in progress
	stateResults                 // Results display
)

// Model is the root Bubble Tea model that manages view transitions.
type Model struct {
	state  appState
	engine views.Engine
	width  int
	height int

	menu    views.MenuModel
	target  views.TargetModel
	scan    views.ScanModel
	results views.ResultsModel
}

// NewModel creates a root model. The menu offers an automatic full scan
// followed by every probe on its own.
func NewModel(engine views.Engine, probes []scanner.Probe) Model {
	items := make([]views.ProbeItem, 0, len(probes)+1)
	items = append(items, views.ProbeItem{
		Name:        views.AutoProbe,
		Description: "Reconnaissance, then probes picked from the detected stack",
	})
	for _, p := range probes {
		items = append(items, views.ProbeItem{Name: p.Name(), Description: p.Description()})
	}

	return Model{
		state:  stateMenu,
		engine: engine,
		menu:   views.NewMenuModel(items),
		target: views.NewTargetModel(),
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return m.target.Init()
}

// Update handles messages and manages state transitions.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.state == stateScan && m.scan.ID() != "" {
				_ = m.engine.Cancel(m.scan.ID())
			}
			return m, tea.Quit
		case "esc":
			return m.handleBack()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	}

	switch m.state {
	case stateMenu:
		return m.updateMenu(msg)
	case stateTarget:
		return m.updateTarget(msg)
	case stateScan:
		return m.updateScan(msg)
	case stateResults:
		return m.updateResults(msg)
	}

	return m, nil
}

// View renders the current view.
func (m Model) View() string {
	switch m.state {
	case stateMenu:
		return m.menu.View()
	case stateTarget:
		return m.target.View()
	case stateScan:
		return m.scan.View()
	case stateResults:
		return m.results.View()
	}
	return ""
}

func (m Model) handleBack() (tea.Model, tea.Cmd) {
	switch m.state {
	case stateTarget, stateResults:
		m.state = stateMenu
	}
	return m, nil
}

func (m Model) updateMenu(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if probes, ok := m.menu.Selection(); ok {
			m.target = views.NewTargetModel()
			m.target.SetProbes(probes)
			m.state = stateTarget
			return m, m.target.Init()
		}
	}

	updated, cmd := m.menu.Update(msg)
	m.menu = updated.(views.MenuModel)
	return m, cmd
}

func (m Model) updateTarget(msg tea.Msg) (tea.Model, tea.Cmd) {
	if keyMsg, ok := msg.(tea.KeyMsg); ok && keyMsg.String() == "enter" {
		if target, err := m.target.ValidatedTarget(); err == nil {
			m.scan = views.NewScanModel(m.engine, target, m.target.Probes())
			m.state = stateScan
			return m, m.scan.Init()
		}
	}

	updated, cmd := m.target.Update(msg)
	m.target = updated.(views.TargetModel)
	return m, cmd
}

func (m Model) updateScan(msg tea.Msg) (tea.Model, tea.Cmd) {
	if done, ok := msg.(views.ScanCompleteMsg); ok {
		m.results = views.NewResultsModel(done.Run)
		m.state = stateResults
		return m, nil
	}

	updated, cmd := m.scan.Update(msg)
	m.scan = updated.(views.ScanModel)
	return m, cmd
}

func (m Model) updateResults(msg tea.Msg) (tea.Model, tea.Cmd) {
	updated, cmd := m.results.Update(msg)
	m.results = updated.(views.ResultsModel)
	return m, cmd
}
