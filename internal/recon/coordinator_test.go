package recon

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type report struct {
	stage    string
	log      string
	progress int
	data     map[string]any
}

type recorder struct {
	mu      sync.Mutex
	reports []report
}

func (r *recorder) fn() ReportFunc {
	return func(stage, log string, progress int, data map[string]any) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.reports = append(r.reports, report{stage, log, progress, data})
	}
}

func (r *recorder) withData(key string) []report {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []report
	for _, rep := range r.reports {
		if _, ok := rep.data[key]; ok {
			out = append(out, rep)
		}
	}
	return out
}

type stubPorts struct {
	open []types.OpenPort
	err  error
}

func (s stubPorts) Probe(_ context.Context, _ string, _ []int, onFound func(types.OpenPort)) ([]types.OpenPort, error) {
	for _, p := range s.open {
		onFound(p)
	}
	return s.open, s.err
}

type stubTech struct{ stack types.TechStack }

func (s stubTech) Detect(context.Context, types.Target) types.TechStack { return s.stack }

type panicTech struct{}

func (panicTech) Detect(context.Context, types.Target) types.TechStack { panic("boom") }

type stubSubdomains struct {
	names []string
	err   error
}

func (s stubSubdomains) Probe(_ context.Context, _ string, _ []string, onFound func(string)) ([]string, error) {
	for _, n := range s.names {
		onFound(n)
	}
	return s.names, s.err
}

type stubPaths struct {
	found []types.DiscoveredPath
	err   error
}

func (s stubPaths) Probe(_ context.Context, _ string, _ []string, onFound func(types.DiscoveredPath)) ([]types.DiscoveredPath, error) {
	for _, p := range s.found {
		onFound(p)
	}
	return s.found, s.err
}

type stubCrawler struct {
	urls []string
	err  error
}

func (s stubCrawler) Crawl(_ context.Context, _ string, onFound func(string)) ([]string, error) {
	for _, u := range s.urls {
		onFound(u)
	}
	return s.urls, s.err
}

func stubbed(cfg Config) *Coordinator {
	c := New(cfg)
	c.ports = stubPorts{open: []types.OpenPort{{Port: 80, Service: "HTTP", State: "open"}}}
	c.tech = stubTech{stack: types.TechStack{Server: "Nginx", Backend: "PHP"}}
	c.subdomains = stubSubdomains{names: []string{"api.example.com"}}
	c.paths = stubPaths{found: []types.DiscoveredPath{{Path: "/admin", Status: 200, Kind: types.PathAdmin}}}
	c.newCrawler = func(map[string]string) urlCrawler {
		return stubCrawler{urls: []string{"https://example.com/a"}}
	}
	return c
}

func testTarget(t *testing.T) types.Target {
	t.Helper()
	target, err := types.ParseTarget("https://example.com")
	require.NoError(t, err)
	return target
}

func TestRun_MergesPhases(t *testing.T) {
	rec := &recorder{}
	profile := stubbed(Config{}).Run(context.Background(), testTarget(t), rec.fn())

	assert.Equal(t, []types.OpenPort{{Port: 80, Service: "HTTP", State: "open"}}, profile.OpenPorts)
	assert.Equal(t, "Nginx", profile.Technologies.Server)
	assert.Equal(t, []string{"api.example.com"}, profile.Subdomains)
	require.Len(t, profile.Paths, 1)
	assert.Equal(t, "/admin", profile.Paths[0].Path)
	assert.Equal(t, []string{"https://example.com/a"}, profile.URLs)

	assert.Len(t, rec.withData("port_found"), 1)
	assert.Len(t, rec.withData("technologies"), 1)
	assert.Len(t, rec.withData("subdomain_found"), 1)
	assert.Len(t, rec.withData("directory_found"), 1)
	assert.Len(t, rec.withData("url_found"), 1)
}

func TestRun_ProgressBandsMonotonic(t *testing.T) {
	rec := &recorder{}
	stubbed(Config{}).Run(context.Background(), testTarget(t), rec.fn())

	bands := map[string][2]int{
		types.StagePortScan:      {5, 10},
		types.StageTechDetection: {10, 15},
		types.StageSubdomains:    {15, 20},
		types.StageDirectories:   {20, 25},
		types.StageCrawl:         {25, 30},
	}

	last := 0
	for _, rep := range rec.reports {
		band, ok := bands[rep.stage]
		require.True(t, ok, "unexpected stage %q", rep.stage)
		assert.GreaterOrEqual(t, rep.progress, band[0], rep.log)
		assert.LessOrEqual(t, rep.progress, band[1], rep.log)
		assert.GreaterOrEqual(t, rep.progress, last, "progress went backwards at %q", rep.log)
		last = rep.progress
	}
	assert.Equal(t, 30, last)
}

func TestRun_FailingPhasesDefault(t *testing.T) {
	var failedStages []string
	c := New(Config{OnPhaseFailed: func(stage string) { failedStages = append(failedStages, stage) }})
	c.ports = stubPorts{err: scanner.ErrUnresolvable}
	c.tech = panicTech{}
	c.subdomains = stubSubdomains{names: []string{"partial.example.com"}, err: errors.New("resolver down")}
	c.paths = stubPaths{err: errors.New("refused")}
	c.newCrawler = func(map[string]string) urlCrawler {
		return stubCrawler{err: errors.New("crawl failed")}
	}

	target := testTarget(t)
	rec := &recorder{}
	profile := c.Run(context.Background(), target, rec.fn())

	assert.Empty(t, profile.OpenPorts)
	assert.NotNil(t, profile.OpenPorts)
	assert.Equal(t, types.DefaultTechStack(), profile.Technologies)
	assert.Empty(t, profile.Subdomains)
	assert.Empty(t, profile.Paths)
	assert.Equal(t, []string{target.URL}, profile.URLs)

	var failed int
	for _, rep := range rec.reports {
		if rep.log == rep.stage+" failed, continuing..." {
			failed++
		}
	}
	assert.Equal(t, 5, failed)
	assert.Equal(t, []string{
		types.StagePortScan, types.StageTechDetection, types.StageSubdomains,
		types.StageDirectories, types.StageCrawl,
	}, failedStages)
}

func TestRun_DisabledPhases(t *testing.T) {
	c := stubbed(Config{Phases: Phases{Fingerprint: true}})
	profile := c.Run(context.Background(), testTarget(t), nil)

	assert.Empty(t, profile.OpenPorts)
	assert.Empty(t, profile.Subdomains)
	assert.Empty(t, profile.Paths)
	assert.Empty(t, profile.URLs)
	assert.Equal(t, "Nginx", profile.Technologies.Server)
}

func TestRun_UnresolvableTargetReturnsDefaults(t *testing.T) {
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)
	deadDNS := pc.LocalAddr().String()
	pc.Close()

	opts := scanner.DefaultOptions()
	opts.Timeout = time.Second

	target, err := types.ParseTarget("http://does-not-exist.invalid")
	require.NoError(t, err)

	profile := New(Config{
		Scan:            opts,
		Ports:           []int{80},
		Paths:           []string{"/admin"},
		SubdomainLabels: []string{"www"},
		DNSServer:       deadDNS,
	}).Run(context.Background(), target, nil)

	assert.Empty(t, profile.OpenPorts)
	assert.Empty(t, profile.Subdomains)
	assert.Empty(t, profile.Paths)
	assert.Equal(t, types.DefaultTechStack(), profile.Technologies)
	assert.Empty(t, profile.URLs, "an unreachable start page is a dead end, not a crawl failure")
}

func TestRun_NginxEmptyBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
		if r.URL.Path != "/" {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	closed := ln.Addr().(*net.TCPAddr).Port
	ln.Close()

	opts := scanner.DefaultOptions()
	opts.Timeout = 2 * time.Second

	target, err := types.ParseTarget(srv.URL)
	require.NoError(t, err)

	profile := New(Config{
		Scan:  opts,
		Ports: []int{closed},
		Paths: []string{"/admin", "/.env", "/backup"},
	}).Run(context.Background(), target, nil)

	assert.Empty(t, profile.OpenPorts)
	assert.Empty(t, profile.Subdomains)
	assert.Empty(t, profile.Paths)
	assert.Empty(t, profile.URLs)

	tech := profile.Technologies
	assert.Equal(t, "Nginx", tech.Server)
	assert.Equal(t, types.Unknown, tech.Backend)
	assert.Equal(t, types.Unknown, tech.Database)
	assert.Equal(t, types.Unknown, tech.Frontend)
	assert.Equal(t, types.Unknown, tech.CMS)
	assert.Equal(t, []string{types.Unknown}, tech.Languages)
	assert.Empty(t, tech.Frameworks)
}

func TestRun_CancelledSkipsPhases(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rec := &recorder{}
	target := testTarget(t)
	profile := stubbed(Config{}).Run(ctx, target, rec.fn())

	assert.Empty(t, profile.OpenPorts)
	assert.Empty(t, profile.Subdomains)
	assert.Empty(t, rec.reports)
}
