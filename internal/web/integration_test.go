package web

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buemura/surface/internal/metrics"
	"github.com/buemura/surface/internal/orchestrator"
	"github.com/buemura/surface/internal/recon"
	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/scanner/vuln"
	"github.com/buemura/surface/internal/store"
	"github.com/buemura/surface/pkg/types"
)

// vulnerableApp reflects the q parameter unescaped and sets no security
// headers.
func vulnerableApp() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Server", "nginx/1.18.0")
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprintf(w, `<html><body><a href="/about">about</a> %s</body></html>`, r.URL.Query().Get("q"))
	})
	mux.HandleFunc("/about", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>about us</body></html>")
	})
	mux.HandleFunc("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	return httptest.NewServer(mux)
}

func newIntegrationServer(t *testing.T, app *httptest.Server) (*Server, *httptest.Server) {
	t.Helper()

	u, err := url.Parse(app.URL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)

	opts := scanner.DefaultOptions()
	opts.Timeout = 2 * time.Second

	reg := scanner.NewRegistry()
	vuln.Register(reg, vuln.Config{Options: opts})

	st, err := store.Open("sqlite://" + t.TempDir() + "/scans.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	m := metrics.New()
	mgr := orchestrator.New(orchestrator.Config{
		Registry: reg,
		Recon: recon.New(recon.Config{
			Scan:          opts,
			Ports:         []int{port},
			Paths:         []string{"/admin", "/missing"},
			CrawlMaxPages: 5,
			Phases:        recon.Phases{Ports: true, Fingerprint: true, Paths: true, Crawl: true},
			OnPhaseFailed: m.PhaseFailed,
		}),
		Store:   st,
		Metrics: m,
	})
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = mgr.Shutdown(ctx)
	})

	srv := NewServer(":0", mgr, m, nil)
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)
	return srv, ts
}

func TestIntegration_ScanAgainstLiveApp(t *testing.T) {
	app := vulnerableApp()
	defer app.Close()
	srv, ts := newIntegrationServer(t, app)

	body := fmt.Sprintf(`{"target": %q, "probes": ["xss", "misconfig"]}`, app.URL+"/")
	resp, err := http.Post(ts.URL+"/api/v1/scans", "application/json", bytes.NewBufferString(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var created map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&created))
	id := created["id"]

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()
	_, err = srv.manager.Wait(ctx, id)
	require.NoError(t, err)

	resp2, err := http.Get(ts.URL + "/api/v1/scans/" + id)
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)

	var run types.ScanRun
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&run))
	assert.Equal(t, types.StatusCompleted, run.Status)
	assert.Equal(t, 100, run.Progress)
	assert.Equal(t, []string{"xss", "misconfig"}, run.Probes)

	require.Len(t, run.Profile.OpenPorts, 1)
	assert.Equal(t, "Nginx", run.Profile.Technologies.Server)
	require.Len(t, run.Profile.Paths, 1)
	assert.Equal(t, "/admin", run.Profile.Paths[0].Path)
	assert.Contains(t, run.Profile.URLs, app.URL+"/about")

	byProbe := map[string]int{}
	for _, f := range run.Findings {
		byProbe[f.Probe]++
	}
	assert.Positive(t, byProbe["xss"])
	assert.Positive(t, byProbe["misconfig"])

	resp3, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp3.Body.Close()
	metricsBody, err := io.ReadAll(resp3.Body)
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), `surface_scans_finished_total{status="COMPLETED"} 1`)
}
