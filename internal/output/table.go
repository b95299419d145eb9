package output

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"

	"github.com/buemura/surface/pkg/types"
)

// TableFormatter renders a run as colored terminal tables.
type TableFormatter struct{}

func (f *TableFormatter) Format(w io.Writer, run types.ScanRun) error {
	fmt.Fprintf(w, "\nScan %s  %s  [%s]  %s\n", run.ID, run.Target.URL, colorStatus(run.Status), duration(run))
	if run.Error != "" {
		fmt.Fprintf(w, "  Error: %s\n", run.Error)
	}

	writeSurface(w, run.Profile)

	if len(run.Probes) > 0 {
		fmt.Fprintf(w, "\nProbes: %s\n", strings.Join(run.Probes, ", "))
	}

	if len(run.Findings) == 0 {
		fmt.Fprintln(w, "\n  No findings.")
		return nil
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Severity", "Name", "Probe", "URL"})
	table.SetAutoWrapText(false)
	table.SetBorder(false)
	table.SetColumnSeparator("│")
	for _, finding := range sortedFindings(run.Findings) {
		table.Append([]string{colorSeverity(finding.Severity), finding.Name, finding.Probe, finding.URL})
	}
	table.Render()

	fmt.Fprintf(w, "  Summary: %s\n", summaryLine(run.Findings))
	return nil
}

func writeSurface(w io.Writer, p types.Profile) {
	tech := p.Technologies
	fmt.Fprintf(w, "\nAttack surface\n")
	fmt.Fprintf(w, "  Server: %s  Backend: %s  Database: %s  Frontend: %s  CMS: %s\n",
		tech.Server, tech.Backend, tech.Database, tech.Frontend, tech.CMS)

	if len(p.OpenPorts) > 0 {
		ports := make([]string, len(p.OpenPorts))
		for i, op := range p.OpenPorts {
			ports[i] = strconv.Itoa(op.Port) + "/" + op.Service
		}
		fmt.Fprintf(w, "  Open ports: %s\n", strings.Join(ports, ", "))
	}
	if len(p.Subdomains) > 0 {
		fmt.Fprintf(w, "  Subdomains: %s\n", strings.Join(p.Subdomains, ", "))
	}
	if len(p.Paths) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"Path", "Status", "Kind"})
		table.SetBorder(false)
		table.SetColumnSeparator("│")
		for _, dp := range p.Paths {
			table.Append([]string{dp.Path, strconv.Itoa(dp.Status), string(dp.Kind)})
		}
		table.Render()
	}
	s := p.Summary()
	fmt.Fprintf(w, "  %d endpoints, %d subdomains, %d open ports\n", s.TotalEndpoints, s.TotalSubdomains, s.TotalOpenPorts)
}

func colorStatus(s types.ScanStatus) string {
	switch s {
	case types.StatusCompleted:
		return color.GreenString(string(s))
	case types.StatusFailed:
		return color.RedString(string(s))
	default:
		return color.YellowString(string(s))
	}
}

func colorSeverity(s types.Severity) string {
	switch s {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold).Sprint("CRITICAL")
	case types.SeverityHigh:
		return color.RedString("HIGH")
	case types.SeverityMedium:
		return color.YellowString("MEDIUM")
	case types.SeverityLow:
		return color.CyanString("LOW")
	case types.SeverityInfo:
		return color.WhiteString("INFO")
	default:
		return string(s)
	}
}
