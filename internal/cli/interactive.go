package cli

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/tui"
)

func newInteractiveCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Launch interactive TUI mode",
		Long:  "Start an interactive terminal UI for selecting and running scans.",
		RunE: func(cmd *cobra.Command, args []string) error {
			// Log lines would tear the alternate screen.
			quiet := slog.New(slog.DiscardHandler)
			slog.SetDefault(quiet)

			eng, err := newEngine(a.cfg, quiet)
			if err != nil {
				return err
			}
			defer eng.Close()

			return tui.Run(eng.manager, eng.manager.Probes())
		},
	}
	addReconFlags(cmd)
	return cmd
}
