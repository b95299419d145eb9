package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the effective configuration",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "show",
			Short: "Print the effective configuration as YAML",
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.cfg.WriteYAML(cmd.OutOrStdout())
			},
		},
		&cobra.Command{
			Use:   "path",
			Short: "Print the config file location",
			Run: func(cmd *cobra.Command, args []string) {
				path := a.configPath
				if path == "" {
					path = config.ConfigFilePath()
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
			},
		},
	)
	return cmd
}
