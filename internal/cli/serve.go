package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/web"
)

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the Surface HTTP API",
		Long:  "Serves the scan API under /api/v1, live progress over websockets and Prometheus metrics on /metrics.",
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := newEngine(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer eng.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			s := web.NewServer(a.cfg.Addr, eng.manager, eng.metrics, a.log)
			return s.Start(ctx)
		},
	}

	f := cmd.Flags()
	f.String("addr", ":8080", "listen address (host:port)")
	f.String("store", "memory", "result store: memory or a sqlite file path")
	f.Float64("rate-limit", 0, "max probe requests per second (0 = unlimited)")
	return cmd
}
