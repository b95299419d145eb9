// Package styles holds the lipgloss styles shared by the TUI views.
package styles

import "github.com/charmbracelet/lipgloss"

// Palette.
var (
	ColorCritical = lipgloss.Color("#FF0000")
	ColorHigh     = lipgloss.Color("#FF6600")
	ColorMedium   = lipgloss.Color("#FFCC00")
	ColorLow      = lipgloss.Color("#00CC00")
	ColorInfo     = lipgloss.Color("#0099FF")
	ColorMuted    = lipgloss.Color("#666666")
	ColorAccent   = lipgloss.Color("#2E86AB")
	ColorSuccess  = lipgloss.Color("#3FB950")
	ColorPending  = lipgloss.Color("#D29922")
)

// Styles used across TUI views.
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(ColorAccent).
			Padding(0, 1)

	HeaderStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent).
			MarginBottom(1)

	BorderStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorAccent).
			Padding(1, 2)

	SelectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorAccent)

	CursorStyle = lipgloss.NewStyle().
			Foreground(ColorAccent)

	HelpStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	ErrorStyle = lipgloss.NewStyle().
			Foreground(ColorCritical).
			Bold(true)

	FindingCountStyle = lipgloss.NewStyle().Bold(true).Foreground(ColorHigh)

	severityStyles = map[string]lipgloss.Style{
		"CRITICAL": lipgloss.NewStyle().Bold(true).Foreground(ColorCritical),
		"HIGH":     lipgloss.NewStyle().Bold(true).Foreground(ColorHigh),
		"MEDIUM":   lipgloss.NewStyle().Bold(true).Foreground(ColorMedium),
		"LOW":      lipgloss.NewStyle().Foreground(ColorLow),
		"INFO":     lipgloss.NewStyle().Foreground(ColorInfo),
	}

	statusStyles = map[string]lipgloss.Style{
		"COMPLETED": lipgloss.NewStyle().Bold(true).Foreground(ColorSuccess),
		"FAILED":    lipgloss.NewStyle().Bold(true).Foreground(ColorCritical),
		"RUNNING":   lipgloss.NewStyle().Foreground(ColorPending),
		"PENDING":   lipgloss.NewStyle().Foreground(ColorMuted),
	}
)

// SeverityStyle returns the style for a severity level. Unknown levels are
// unstyled.
func SeverityStyle(severity string) lipgloss.Style {
	if s, ok := severityStyles[severity]; ok {
		return s
	}
	return lipgloss.NewStyle()
}

// StatusStyle returns the style for a scan status.
func StatusStyle(status string) lipgloss.Style {
	if s, ok := statusStyles[status]; ok {
		return s
	}
	return lipgloss.NewStyle()
}
