package cli

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/output"
	"github.com/buemura/surface/pkg/types"
)

func newReconCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recon",
		Short: "Map the attack surface without running probes",
		Long:  "Runs only the reconnaissance phases and prints the resulting profile.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if a.cfg.DefaultTarget == "" {
				return fmt.Errorf("--target (-t) is required")
			}
			target, err := types.ParseTarget(a.cfg.DefaultTarget)
			if err != nil {
				return fmt.Errorf("invalid target: %w", err)
			}

			rc, err := newRecon(a.cfg, scanOptions(a.cfg, a.log), nil)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			progressOut := cmd.ErrOrStderr()
			profile := rc.Run(ctx, target, func(stage, log string, progress int, data map[string]any) {
				printEvent(progressOut, types.Event{Stage: stage, Log: log, Progress: progress}, a.verbose)
			})
			return output.WriteProfile(cmd.OutOrStdout(), a.cfg.OutputFormat, profile)
		},
	}
	addReconFlags(cmd)
	return cmd
}
