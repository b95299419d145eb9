// Package recon runs the reconnaissance phases against a target and merges
// their output into a single attack-surface profile.
package recon

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/buemura/surface/internal/crawler"
	"github.com/buemura/surface/internal/fingerprint"
	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/scanner/dirs"
	"github.com/buemura/surface/internal/scanner/port"
	"github.com/buemura/surface/internal/scanner/subdomain"
	"github.com/buemura/surface/pkg/types"
)

// ReportFunc receives phase progress. data may be nil.
type ReportFunc func(stage, log string, progress int, data map[string]any)

func (fn ReportFunc) send(stage, log string, progress int, data map[string]any) {
	if fn != nil {
		fn(stage, log, progress, data)
	}
}

// Phases toggles individual reconnaissance phases.
type Phases struct {
	Ports       bool `mapstructure:"ports" yaml:"ports"`
	Fingerprint bool `mapstructure:"fingerprint" yaml:"fingerprint"`
	Subdomains  bool `mapstructure:"subdomains" yaml:"subdomains"`
	Paths       bool `mapstructure:"paths" yaml:"paths"`
	Crawl       bool `mapstructure:"crawl" yaml:"crawl"`
}

func (p Phases) any() bool {
	return p.Ports || p.Fingerprint || p.Subdomains || p.Paths || p.Crawl
}

// AllPhases enables every phase.
func AllPhases() Phases {
	return Phases{Ports: true, Fingerprint: true, Subdomains: true, Paths: true, Crawl: true}
}

// Config configures a Coordinator. Zero values take each prober's defaults
// and a zero Phases enables every phase. Workers sizes each prober's pool;
// zero keeps 20 for ports and 30 for subdomains and paths. OnPhaseFailed, if
// set, is told the stage name of every failed phase.
type Config struct {
	Scan            scanner.Options
	Workers         int
	Ports           []int
	Paths           []string
	SubdomainLabels []string
	DNSServer       string
	CrawlMaxDepth   int
	CrawlMaxPages   int
	Phases          Phases
	OnPhaseFailed   func(stage string)
}

type portProber interface {
	Probe(ctx context.Context, host string, ports []int, onFound func(types.OpenPort)) ([]types.OpenPort, error)
}

type techDetector interface {
	Detect(ctx context.Context, target types.Target) types.TechStack
}

type subdomainProber interface {
	Probe(ctx context.Context, host string, labels []string, onFound func(string)) ([]string, error)
}

type pathProber interface {
	Probe(ctx context.Context, baseURL string, paths []string, onFound func(types.DiscoveredPath)) ([]types.DiscoveredPath, error)
}

type urlCrawler interface {
	Crawl(ctx context.Context, start string, onFound func(string)) ([]string, error)
}

// Coordinator runs port, fingerprint, subdomain, path and crawl phases in
// that order. A failing phase never aborts the others.
type Coordinator struct {
	cfg        Config
	log        *slog.Logger
	ports      portProber
	tech       techDetector
	subdomains subdomainProber
	paths      pathProber
	newCrawler func(headers map[string]string) urlCrawler
}

// New builds a Coordinator from cfg.
func New(cfg Config) *Coordinator {
	resolverTimeout := cfg.Scan.Timeout
	if resolverTimeout == 0 || resolverTimeout > 3*time.Second {
		resolverTimeout = 3 * time.Second
	}

	if !cfg.Phases.any() {
		cfg.Phases = AllPhases()
	}

	portOpts := cfg.Scan
	portOpts.Timeout = port.DefaultTimeout
	portOpts.Concurrency = workers(cfg.Workers, 20)

	wordlistOpts := cfg.Scan
	wordlistOpts.Concurrency = workers(cfg.Workers, 30)

	return &Coordinator{
		cfg:        cfg,
		log:        cfg.Scan.Log().With("component", "recon"),
		ports:      port.New(portOpts),
		tech:       fingerprint.New(cfg.Scan),
		subdomains: subdomain.New(wordlistOpts, subdomain.NewResolver(cfg.DNSServer, resolverTimeout)),
		paths:      dirs.New(wordlistOpts),
		newCrawler: func(headers map[string]string) urlCrawler {
			return crawler.New(crawler.Options{
				MaxDepth: cfg.CrawlMaxDepth,
				MaxPages: cfg.CrawlMaxPages,
				Scan:     cfg.Scan,
			}).WithHeaders(headers)
		},
	}
}

// Run executes every enabled phase and returns the merged profile. Disabled
// or failed phases leave their field at its default.
func (c *Coordinator) Run(ctx context.Context, target types.Target, report ReportFunc) types.Profile {
	profile := types.EmptyProfile()
	phases := c.cfg.Phases
	log := c.log.With("target", target.URL)

	// Port Scanning 5-10%
	c.phase(ctx, types.StagePortScan, phases.Ports, 5, 10, report, func() (string, error) {
		open, err := c.ports.Probe(ctx, target.Host, c.cfg.Ports, func(p types.OpenPort) {
			report.send(types.StagePortScan, fmt.Sprintf("Found open port: %d (%s)", p.Port, p.Service), 7,
				map[string]any{"port_found": p})
		})
		if err != nil {
			return "", err
		}
		profile.OpenPorts = open
		return fmt.Sprintf("Port scan complete. Found %d open ports", len(open)), nil
	}, func() { profile.OpenPorts = []types.OpenPort{} })

	// Tech Detection 10-15%
	c.phase(ctx, types.StageTechDetection, phases.Fingerprint, 10, 15, report, func() (string, error) {
		stack := c.tech.Detect(ctx, target)
		profile.Technologies = stack
		report.send(types.StageTechDetection,
			fmt.Sprintf("Technologies detected: Server: %s, Backend: %s", stack.Server, stack.Backend), 14,
			map[string]any{"technologies": stack})
		return "Technology detection complete", nil
	}, func() { profile.Technologies = types.DefaultTechStack() })

	// Subdomain Enum 15-20%
	c.phase(ctx, types.StageSubdomains, phases.Subdomains, 15, 20, report, func() (string, error) {
		subs, err := c.subdomains.Probe(ctx, target.Host, c.cfg.SubdomainLabels, func(name string) {
			report.send(types.StageSubdomains, "Found subdomain: "+name, 17,
				map[string]any{"subdomain_found": name})
		})
		if err != nil {
			return "", err
		}
		profile.Subdomains = subs
		return fmt.Sprintf("Found %d subdomains", len(subs)), nil
	}, func() { profile.Subdomains = []string{} })

	// Directory Discovery 20-25%
	c.phase(ctx, types.StageDirectories, phases.Paths, 20, 25, report, func() (string, error) {
		found, err := c.paths.Probe(ctx, target.BaseURL(), c.cfg.Paths, func(p types.DiscoveredPath) {
			report.send(types.StageDirectories, fmt.Sprintf("Found: %s [%d]", p.Path, p.Status), 22,
				map[string]any{"directory_found": p})
		})
		if err != nil {
			return "", err
		}
		profile.Paths = found
		return fmt.Sprintf("Found %d paths", len(found)), nil
	}, func() { profile.Paths = []types.DiscoveredPath{} })

	// Web Crawling 25-30%
	c.phase(ctx, types.StageCrawl, phases.Crawl, 25, 30, report, func() (string, error) {
		urls, err := c.newCrawler(target.Headers).Crawl(ctx, target.URL, func(u string) {
			report.send(types.StageCrawl, "Found: "+u, 27, map[string]any{"url_found": u})
		})
		if err != nil {
			return "", err
		}
		profile.URLs = urls
		return fmt.Sprintf("Crawler finished. Found %d URLs", len(urls)), nil
	}, func() { profile.URLs = []string{target.URL} })

	log.Info("reconnaissance complete",
		"ports", len(profile.OpenPorts),
		"subdomains", len(profile.Subdomains),
		"paths", len(profile.Paths),
		"urls", len(profile.URLs),
	)
	return profile
}

// phase runs fn between the start and end progress marks. A returned error
// or panic is logged and onFail resets the phase's field.
func (c *Coordinator) phase(ctx context.Context, stage string, enabled bool, start, end int, report ReportFunc, fn func() (string, error), onFail func()) {
	if !enabled {
		report.send(stage, stage+" skipped", end, nil)
		return
	}
	if ctx.Err() != nil {
		onFail()
		return
	}

	report.send(stage, "Starting "+stage, start, nil)

	summary, err := func() (summary string, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return fn()
	}()
	if err != nil {
		c.log.Error("phase failed", "phase", stage, "error", err)
		if c.cfg.OnPhaseFailed != nil {
			c.cfg.OnPhaseFailed(stage)
		}
		onFail()
		report.send(stage, stage+" failed, continuing...", end, nil)
		return
	}

	report.send(stage, summary, end, nil)
}

func workers(n, def int) int {
	if n > 0 {
		return n
	}
	return def
}
