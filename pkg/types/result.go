package types

import "strings"

// Severity represents the severity level of a finding.
type Severity string

const (
	SeverityCritical Severity = "CRITICAL"
	SeverityHigh     Severity = "HIGH"
	SeverityMedium   Severity = "MEDIUM"
	SeverityLow      Severity = "LOW"
	SeverityInfo     Severity = "INFO"
)

// Severities lists all levels from most to least severe.
var Severities = []Severity{
	SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo,
}

// SeverityRank returns a numeric rank for sorting (lower = more severe).
func SeverityRank(s Severity) int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	case SeverityInfo:
		return 4
	default:
		return 5
	}
}

// ParseSeverity is case-insensitive and maps unknown values to INFO.
func ParseSeverity(s string) Severity {
	sev := Severity(strings.ToUpper(strings.TrimSpace(s)))
	if SeverityRank(sev) == 5 {
		return SeverityInfo
	}
	return sev
}

// Finding is one concrete vulnerability instance reported by a probe.
// Findings are never modified after creation.
type Finding struct {
	Name        string            `json:"name"`
	Severity    Severity          `json:"severity"`
	Description string            `json:"description"`
	Evidence    string            `json:"evidence,omitempty"`
	URL         string            `json:"url,omitempty"`
	Probe       string            `json:"probe,omitempty"`
	Remediation string            `json:"remediation,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// CountBySeverity tallies findings per severity level.
func CountBySeverity(findings []Finding) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, f := range findings {
		counts[f.Severity]++
	}
	return counts
}
