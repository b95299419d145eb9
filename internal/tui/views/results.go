package views

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/buemura/surface/internal/tui/styles"
	"github.com/buemura/surface/pkg/types"
)

// ExportFile is where the results view writes its JSON export.
const ExportFile = "surface-results.json"

// ResultsModel is the view model for displaying a finished scan.
type ResultsModel struct {
	run       types.ScanRun
	findings  []types.Finding
	cursor    int
	offset    int
	maxRows   int
	exported  bool
	exportErr string
}

// NewResultsModel creates a results view from a scan run. Findings are
// listed most severe first.
func NewResultsModel(run types.ScanRun) ResultsModel {
	findings := append([]types.Finding(nil), run.Findings...)
	sort.SliceStable(findings, func(i, j int) bool {
		return types.SeverityRank(findings[i].Severity) < types.SeverityRank(findings[j].Severity)
	})
	return ResultsModel{
		run:      run,
		findings: findings,
		maxRows:  20,
	}
}

// Init returns nil (no initial command).
func (m ResultsModel) Init() tea.Cmd {
	return nil
}

// Update handles key events for scrolling and export.
func (m ResultsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
				if m.cursor < m.offset {
					m.offset = m.cursor
				}
			}
		case "down", "j":
			if m.cursor < len(m.findings)-1 {
				m.cursor++
				if m.cursor >= m.offset+m.maxRows {
					m.offset = m.cursor - m.maxRows + 1
				}
			}
		case "e":
			m.exportJSON()
		case "q":
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the surface summary and the findings table.
func (m ResultsModel) View() string {
	var b strings.Builder

	b.WriteString(styles.TitleStyle.Render("Surface • Scan Results"))
	b.WriteString("\n\n")

	status := string(m.run.Status)
	if m.run.Error != "" {
		status += ": " + m.run.Error
	}
	status = styles.StatusStyle(string(m.run.Status)).Render(status)
	b.WriteString(fmt.Sprintf("%s  %s\n", m.run.Target.URL, status))

	s := m.run.Profile.Summary()
	tech := m.run.Profile.Technologies
	b.WriteString(styles.HelpStyle.Render(fmt.Sprintf(
		"%d endpoints • %d subdomains • %d open ports • server %s • backend %s",
		s.TotalEndpoints, s.TotalSubdomains, s.TotalOpenPorts, tech.Server, tech.Backend)))
	b.WriteString("\n\n")

	if len(m.findings) == 0 {
		b.WriteString("No findings discovered.\n")
	} else {
		b.WriteString(m.summaryLine())
		b.WriteString("\n\n")

		header := fmt.Sprintf("  %-10s %-50s %s", "SEVERITY", "NAME", "PROBE")
		b.WriteString(styles.HeaderStyle.Render(header))
		b.WriteString("\n")
		b.WriteString(strings.Repeat("─", 80))
		b.WriteString("\n")

		end := m.offset + m.maxRows
		if end > len(m.findings) {
			end = len(m.findings)
		}

		for i := m.offset; i < end; i++ {
			f := m.findings[i]
			cursor := "  "
			if i == m.cursor {
				cursor = styles.CursorStyle.Render("> ")
			}

			severity := styles.SeverityStyle(string(f.Severity)).Render(fmt.Sprintf("%-10s", f.Severity))
			b.WriteString(fmt.Sprintf("%s%s %-50s %s\n", cursor, severity, truncate(f.Name, 50), styles.HelpStyle.Render(f.Probe)))
		}

		if len(m.findings) > m.maxRows {
			b.WriteString(fmt.Sprintf("\n  Showing %d-%d of %d findings\n",
				m.offset+1, end, len(m.findings)))
		}

		b.WriteString("\n")
		b.WriteString(m.detailView(m.findings[m.cursor]))
	}

	if m.exported {
		b.WriteString("\n")
		b.WriteString(styles.SelectedStyle.Render("Results exported to " + ExportFile))
	}
	if m.exportErr != "" {
		b.WriteString("\n")
		b.WriteString(styles.ErrorStyle.Render(m.exportErr))
	}

	b.WriteString("\n")
	b.WriteString(styles.HelpStyle.Render("↑/↓ scroll • e export JSON • esc back • q quit"))

	return b.String()
}

// Cursor returns the selected finding index.
func (m ResultsModel) Cursor() int {
	return m.cursor
}

func (m ResultsModel) summaryLine() string {
	counts := types.CountBySeverity(m.findings)

	parts := []string{}
	for _, sev := range types.Severities {
		if c := counts[sev]; c > 0 {
			parts = append(parts, styles.SeverityStyle(string(sev)).Render(fmt.Sprintf("%s: %d", sev, c)))
		}
	}

	return fmt.Sprintf("Total: %d findings  [%s]", len(m.findings), strings.Join(parts, "  "))
}

func (m ResultsModel) detailView(f types.Finding) string {
	var b strings.Builder
	b.WriteString(styles.BorderStyle.Render(
		fmt.Sprintf("Name: %s\nSeverity: %s\nURL: %s\nDescription: %s",
			f.Name,
			f.Severity,
			f.URL,
			f.Description,
		),
	))

	if f.Evidence != "" {
		b.WriteString(fmt.Sprintf("\n  Evidence: %s", f.Evidence))
	}
	if f.Remediation != "" {
		b.WriteString(fmt.Sprintf("\n  Remediation: %s", f.Remediation))
	}

	return b.String()
}

func (m *ResultsModel) exportJSON() {
	data, err := json.MarshalIndent(m.run, "", "  ")
	if err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	if err := os.WriteFile(ExportFile, data, 0644); err != nil {
		m.exportErr = fmt.Sprintf("export failed: %v", err)
		return
	}

	m.exported = true
	m.exportErr = ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
