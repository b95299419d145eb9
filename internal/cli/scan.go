package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/orchestrator"
	"github.com/buemura/surface/internal/output"
	"github.com/buemura/surface/pkg/types"
)

func newScanCmd(a *app) *cobra.Command {
	var (
		probes  []string
		profile string
	)

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run reconnaissance and vulnerability probes against a target",
		Long: `Runs the full pipeline: port scan, fingerprinting, subdomain enumeration,
path discovery and crawling, then the probes selected for the detected stack
(or the ones named with --probes / --profile). Ctrl+C cancels the scan.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if profile != "" {
				p := a.cfg.GetProfile(profile)
				if p == nil {
					return fmt.Errorf("unknown scan profile %q", profile)
				}
				probes = append(probes, p.Probes...)
			}
			return a.runScan(cmd, probes)
		},
	}

	f := cmd.Flags()
	f.StringSliceVar(&probes, "probes", nil, "probes to run instead of automatic selection (comma-separated)")
	f.StringVar(&profile, "profile", "", "named scan profile from the config file")
	addReconFlags(cmd)
	f.Float64("rate-limit", 0, "max probe requests per second (0 = unlimited)")
	f.String("store", "memory", "result store: memory or a sqlite file path")
	return cmd
}

// addReconFlags registers the flags that shape the reconnaissance phase.
func addReconFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("ports", "common", "ports to scan: single, range (1-1024), comma-separated, or 'common'")
	f.String("wordlist", "", "path wordlist file (default: embedded list)")
	f.Bool("no-subdomains", false, "skip subdomain enumeration")
	f.Bool("no-crawl", false, "skip crawling")
}

func (a *app) runScan(cmd *cobra.Command, probes []string) error {
	if a.cfg.DefaultTarget == "" {
		return fmt.Errorf("--target (-t) is required")
	}
	target, err := types.ParseTarget(a.cfg.DefaultTarget)
	if err != nil {
		return fmt.Errorf("invalid target: %w", err)
	}
	formatter, err := output.GetFormatter(a.cfg.OutputFormat)
	if err != nil {
		return err
	}

	eng, err := newEngine(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer eng.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	id, err := eng.manager.StartScan(ctx, orchestrator.ScanRequest{Target: target, Probes: probes})
	if err != nil {
		return err
	}
	events, unsubscribe, err := eng.manager.Subscribe(id)
	if err != nil {
		return err
	}
	defer unsubscribe()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			a.log.Warn("interrupted, cancelling scan", "scan_id", id)
			_ = eng.manager.Cancel(id)
		case <-done:
		}
	}()

	progressOut := cmd.ErrOrStderr()
	for ev := range events {
		printEvent(progressOut, ev, a.verbose)
	}

	run, err := eng.manager.Wait(context.WithoutCancel(ctx), id)
	if err != nil {
		return err
	}
	if err := formatter.Format(cmd.OutOrStdout(), run); err != nil {
		return err
	}
	if run.Status == types.StatusFailed {
		return fmt.Errorf("scan failed: %s", run.Error)
	}
	return nil
}

// printEvent writes one progress line. Payload events are only shown with
// --verbose.
func printEvent(w io.Writer, ev types.Event, verbose bool) {
	switch ev.Stage {
	case types.StageConnected:
		return
	case types.StagePayload:
		if !verbose {
			return
		}
		fmt.Fprintf(w, "      %s\n", color.HiBlackString(ev.Log))
		return
	}

	stage := color.CyanString(ev.Stage)
	switch ev.Stage {
	case types.StageVulnFound:
		stage = color.New(color.FgRed, color.Bold).Sprint(ev.Stage)
	case types.StageError, types.StageFailed:
		stage = color.RedString(ev.Stage)
	case types.StageCompleted:
		stage = color.GreenString(ev.Stage)
	}
	fmt.Fprintf(w, "[%3d%%] %s: %s\n", ev.Progress, stage, ev.Log)
}
