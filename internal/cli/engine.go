package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/buemura/surface/internal/config"
	"github.com/buemura/surface/internal/metrics"
	"github.com/buemura/surface/internal/orchestrator"
	"github.com/buemura/surface/internal/recon"
	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/scanner/dirs"
	"github.com/buemura/surface/internal/scanner/port"
	"github.com/buemura/surface/internal/scanner/subdomain"
	"github.com/buemura/surface/internal/scanner/vuln"
	"github.com/buemura/surface/internal/store"
)

// engine is everything a command needs to run scans.
type engine struct {
	manager *orchestrator.Manager
	metrics *metrics.Metrics
	store   store.Store
}

func scanOptions(cfg *config.Config, log *slog.Logger) scanner.Options {
	opts := scanner.DefaultOptions()
	opts.Concurrency = cfg.Concurrency
	opts.Timeout = cfg.Timeout
	opts.InsecureTLS = cfg.InsecureTLS
	opts.RateLimit = cfg.RateLimit
	opts.Verbose = log.Enabled(context.Background(), slog.LevelDebug)
	opts.Logger = log
	if cfg.UserAgent != "" {
		opts.UserAgent = cfg.UserAgent
	}
	return opts
}

func newRecon(cfg *config.Config, opts scanner.Options, onPhaseFailed func(string)) (*recon.Coordinator, error) {
	ports, err := port.ParsePortRange(cfg.Ports)
	if err != nil {
		return nil, fmt.Errorf("ports: %w", err)
	}
	paths, err := dirs.LoadWordlist(cfg.WordlistPath)
	if err != nil {
		return nil, err
	}
	labels, err := subdomain.LoadWordlist(cfg.SubdomainWordlistPath)
	if err != nil {
		return nil, err
	}

	return recon.New(recon.Config{
		Scan:            opts,
		Ports:           ports,
		Paths:           paths,
		SubdomainLabels: labels,
		DNSServer:       cfg.DNSServer,
		CrawlMaxDepth:   cfg.CrawlMaxDepth,
		CrawlMaxPages:   cfg.CrawlMaxPages,
		Phases:          cfg.Phases,
		OnPhaseFailed:   onPhaseFailed,
	}), nil
}

func newEngine(cfg *config.Config, log *slog.Logger) (*engine, error) {
	opts := scanOptions(cfg, log)
	m := metrics.New()

	rc, err := newRecon(cfg, opts, m.PhaseFailed)
	if err != nil {
		return nil, err
	}

	st, err := store.Open(cfg.StoreDSN)
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	reg := scanner.NewRegistry()
	vuln.Register(reg, vuln.Config{Options: opts, Logger: log})

	mgr := orchestrator.New(orchestrator.Config{
		Registry:     reg,
		Recon:        rc,
		Store:        st,
		Metrics:      m,
		Logger:       log,
		ProbeTimeout: cfg.ProbeTimeout,
	})

	return &engine{manager: mgr, metrics: m, store: st}, nil
}

// Close cancels running scans, waits for them and closes the store.
func (e *engine) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	return errors.Join(e.manager.Shutdown(ctx), e.store.Close())
}
