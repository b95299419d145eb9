// Package output renders finished scan runs for terminals and reports.
package output

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/buemura/surface/pkg/types"
)

// Formatter renders a scan run to a writer.
type Formatter interface {
	Format(w io.Writer, run types.ScanRun) error
}

// GetFormatter returns the appropriate formatter for the given format string.
func GetFormatter(format string) (Formatter, error) {
	switch format {
	case "table":
		return &TableFormatter{}, nil
	case "json":
		return &JSONFormatter{}, nil
	case "markdown":
		return &MarkdownFormatter{}, nil
	case "html":
		return &HTMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (supported: table, json, markdown, html)", format)
	}
}

// sortedFindings returns a copy ordered most severe first. Equal severities
// keep probe order.
func sortedFindings(findings []types.Finding) []types.Finding {
	out := append([]types.Finding(nil), findings...)
	sort.SliceStable(out, func(i, j int) bool {
		return types.SeverityRank(out[i].Severity) < types.SeverityRank(out[j].Severity)
	})
	return out
}

func summaryLine(findings []types.Finding) string {
	counts := types.CountBySeverity(findings)
	return fmt.Sprintf("%d findings (%d critical, %d high, %d medium, %d low, %d info)",
		len(findings),
		counts[types.SeverityCritical],
		counts[types.SeverityHigh],
		counts[types.SeverityMedium],
		counts[types.SeverityLow],
		counts[types.SeverityInfo],
	)
}

func duration(run types.ScanRun) string {
	if run.StartedAt.IsZero() || run.CompletedAt.IsZero() {
		return "-"
	}
	return run.CompletedAt.Sub(run.StartedAt).Round(100 * time.Millisecond).String()
}

// WriteProfile renders a reconnaissance profile on its own. JSON is emitted
// for "json"; every other format gets the terminal summary.
func WriteProfile(w io.Writer, format string, p types.Profile) error {
	if format == "json" {
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(struct {
			types.Profile
			Summary types.SurfaceSummary `json:"summary"`
		}{p, p.Summary()})
	}
	writeSurface(w, p)
	return nil
}
