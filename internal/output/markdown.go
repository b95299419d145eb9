package output

import (
	"fmt"
	"io"
	"strings"

	"github.com/buemura/surface/pkg/types"
)

// MarkdownFormatter renders a run as Markdown suitable for pasting into
// docs, issues, or pull-request descriptions.
type MarkdownFormatter struct{}

func (f *MarkdownFormatter) Format(w io.Writer, run types.ScanRun) error {
	fmt.Fprintf(w, "# Scan report: %s\n\n", escapeMarkdown(run.Target.URL))
	fmt.Fprintf(w, "- **Scan:** %s\n- **Status:** %s\n- **Duration:** %s\n", run.ID, run.Status, duration(run))
	if run.Error != "" {
		fmt.Fprintf(w, "\n> %s\n", run.Error)
	}

	s := run.Profile.Summary()
	tech := run.Profile.Technologies
	fmt.Fprintln(w, "\n## Attack surface")
	fmt.Fprintf(w, "\n%d endpoints, %d subdomains, %d open ports.\n\n", s.TotalEndpoints, s.TotalSubdomains, s.TotalOpenPorts)
	fmt.Fprintln(w, "| Server | Backend | Database | Frontend | CMS |")
	fmt.Fprintln(w, "|--------|---------|----------|----------|-----|")
	fmt.Fprintf(w, "| %s | %s | %s | %s | %s |\n",
		escapeMarkdown(tech.Server), escapeMarkdown(tech.Backend), escapeMarkdown(tech.Database),
		escapeMarkdown(tech.Frontend), escapeMarkdown(tech.CMS))

	fmt.Fprintln(w, "\n## Findings")
	fmt.Fprintln(w)
	if len(run.Findings) == 0 {
		fmt.Fprintln(w, "_No findings._")
		return nil
	}

	fmt.Fprintln(w, "| Severity | Name | Probe | Description |")
	fmt.Fprintln(w, "|----------|------|-------|-------------|")
	for _, finding := range sortedFindings(run.Findings) {
		fmt.Fprintf(w, "| %s | %s | %s | %s |\n",
			severityBadge(finding.Severity),
			escapeMarkdown(finding.Name),
			finding.Probe,
			escapeMarkdown(finding.Description))
	}

	fmt.Fprintf(w, "\n**Summary:** %s\n", summaryLine(run.Findings))
	return nil
}

// severityBadge returns a bold, uppercased severity label for Markdown.
func severityBadge(s types.Severity) string {
	return fmt.Sprintf("**%s**", string(s))
}

// escapeMarkdown escapes pipe characters that would break Markdown tables.
func escapeMarkdown(s string) string {
	return strings.ReplaceAll(s, "|", "\\|")
}
