package cli

import (
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/scanner/vuln"
)

func newProbesCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "probes",
		Short: "List the available vulnerability probes",
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := scanner.NewRegistry()
			vuln.Register(reg, vuln.Config{Options: scanOptions(a.cfg, a.log)})

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Probe", "Description"})
			table.SetAutoWrapText(false)
			table.SetBorder(false)
			for _, p := range reg.All() {
				table.Append([]string{p.Name(), p.Description()})
			}
			table.Render()
			return nil
		},
	}
}
