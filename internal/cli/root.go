package cli

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/buemura/surface/internal/config"
)

var version = "dev"

// app holds the state shared by every command of one invocation. It is
// populated by the root PersistentPreRunE.
type app struct {
	configPath string
	verbose    bool

	cfg *config.Config
	log *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "surface",
		Short: "Surface: attack-surface discovery and vulnerability scanning",
		Long: `Surface maps the attack surface of a web target (open ports, technologies,
subdomains, paths and crawlable URLs) and runs the vulnerability probes that
fit the detected stack.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringP("target", "t", "", "target host, IP, or URL")
	pf.StringP("output", "o", "table", "output format: table, json, markdown, html")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "verbose output")
	pf.IntP("concurrency", "c", 10, "max concurrent operations")
	pf.Duration("timeout", 5*time.Second, "per-request timeout")
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.surface.yaml)")

	root.AddCommand(
		newScanCmd(a),
		newReconCmd(a),
		newProbesCmd(a),
		newServeCmd(a),
		newInteractiveCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() error {
	return newRootCmd().Execute()
}

func (a *app) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.configPath != "" {
		cfg, err = config.LoadFromFile(a.configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	config.ApplyFlags(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	a.cfg = cfg
	a.log = newLogger(cmd.ErrOrStderr(), cfg, a.verbose)
	slog.SetDefault(a.log)
	return nil
}

// newLogger builds the process logger from log_level and log_format.
// --verbose forces debug.
func newLogger(w io.Writer, cfg *config.Config, verbose bool) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
