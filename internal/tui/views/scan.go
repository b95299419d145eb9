package views

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/buemura/surface/internal/orchestrator"
	"github.com/buemura/surface/internal/tui/styles"
	"github.com/buemura/surface/pkg/types"
)

// maxLogLines is how many recent event lines the scan view keeps.
const maxLogLines = 8

// Engine runs scans for the TUI. *orchestrator.Manager implements it.
type Engine interface {
	StartScan(ctx context.Context, req orchestrator.ScanRequest) (string, error)
	Subscribe(id string) (<-chan types.Event, func(), error)
	GetScanRun(id string) (types.ScanRun, error)
	Cancel(id string) error
}

// ScanCompleteMsg is sent when a scan reaches a terminal state.
type ScanCompleteMsg struct {
	Run types.ScanRun
}

// EventMsg carries one progress event.
type EventMsg struct {
	Event types.Event
}

type scanStartedMsg struct {
	id     string
	events <-chan types.Event
}

type streamClosedMsg struct{}

// scanErrorMsg is sent when a scan cannot be started or read.
type scanErrorMsg struct {
	err error
}

// ScanModel is the view model for a running scan.
type ScanModel struct {
	engine   Engine
	request  orchestrator.ScanRequest
	spinner  spinner.Model
	bar      progress.Model
	id       string
	events   <-chan types.Event
	stage    string
	percent  int
	findings int
	lines    []string
	err      string
}

// NewScanModel creates a scan view for target. A non-empty probes list
// replaces automatic selection.
func NewScanModel(engine Engine, target types.Target, probes []string) ScanModel {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(styles.ColorAccent)

	req := orchestrator.ScanRequest{Target: target, Probes: probes}

	return ScanModel{
		engine:  engine,
		request: req,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(50)),
		stage:   types.StageInitializing,
	}
}

// Init starts the spinner and launches the scan.
func (m ScanModel) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.start())
}

// Update handles scan lifecycle messages and spinner ticks.
func (m ScanModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case scanStartedMsg:
		m.id = msg.id
		m.events = msg.events
		return m, waitForEvent(m.events)

	case EventMsg:
		m.apply(msg.Event)
		return m, waitForEvent(m.events)

	case streamClosedMsg:
		return m, m.finish()

	case scanErrorMsg:
		m.err = msg.err.Error()
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "c" && m.id != "" {
			_ = m.engine.Cancel(m.id)
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m, nil
}

func (m *ScanModel) apply(ev types.Event) {
	if ev.Stage != types.StageConnected && ev.Stage != types.StagePayload {
		m.stage = ev.Stage
	}
	if ev.Progress > m.percent {
		m.percent = ev.Progress
	}
	if n, ok := ev.Data["vuln_count"].(int); ok {
		m.findings = n
	}
	if ev.Log == "" || ev.Stage == types.StagePayload {
		return
	}
	m.lines = append(m.lines, fmt.Sprintf("[%s] %s", ev.Stage, ev.Log))
	if len(m.lines) > maxLogLines {
		m.lines = m.lines[len(m.lines)-maxLogLines:]
	}
}

// View renders the scan progress.
func (m ScanModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Surface • Interactive Mode"))
	b.WriteString("\n\n")

	if m.err != "" {
		b.WriteString(styles.ErrorStyle.Render(fmt.Sprintf("Scan failed: %s", m.err)))
		b.WriteString("\n\n")
		b.WriteString(styles.HelpStyle.Render("esc back • ctrl+c quit"))
		return b.String()
	}

	b.WriteString(fmt.Sprintf("%s %s  %s\n",
		m.spinner.View(),
		styles.SelectedStyle.Render(m.stage),
		styles.HelpStyle.Render(m.request.Target.URL)))
	b.WriteString(m.bar.ViewAs(float64(m.percent) / 100))
	b.WriteString("\n\n")
	if m.findings > 0 {
		b.WriteString(styles.FindingCountStyle.Render(fmt.Sprintf("%d vulnerabilities so far", m.findings)))
		b.WriteString("\n")
	}
	for _, line := range m.lines {
		b.WriteString(styles.HelpStyle.Render(line))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("c cancel scan • ctrl+c quit"))

	return b.String()
}

// ID returns the scan id once the scan has started.
func (m ScanModel) ID() string {
	return m.id
}

// Percent returns the latest progress percentage.
func (m ScanModel) Percent() int {
	return m.percent
}

func (m ScanModel) start() tea.Cmd {
	engine := m.engine
	req := m.request
	return func() tea.Msg {
		id, err := engine.StartScan(context.Background(), req)
		if err != nil {
			return scanErrorMsg{err: err}
		}
		events, _, err := engine.Subscribe(id)
		if err != nil {
			return scanErrorMsg{err: err}
		}
		return scanStartedMsg{id: id, events: events}
	}
}

func (m ScanModel) finish() tea.Cmd {
	engine := m.engine
	id := m.id
	return func() tea.Msg {
		run, err := engine.GetScanRun(id)
		if err != nil {
			return scanErrorMsg{err: err}
		}
		return ScanCompleteMsg{Run: run}
	}
}

func waitForEvent(events <-chan types.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return streamClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}
