package web

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buemura/surface/internal/metrics"
	"github.com/buemura/surface/internal/orchestrator"
	"github.com/buemura/surface/internal/scanner"
)

func newTestServer(m *metrics.Metrics) *Server {
	mgr := orchestrator.New(orchestrator.Config{Registry: scanner.NewRegistry(), Metrics: m})
	return NewServer(":0", mgr, m, nil)
}

func TestHealthEndpoint(t *testing.T) {
	ts := httptest.NewServer(newTestServer(nil).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "application/json")

	var body map[string]string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
}

func TestMetricsEndpoint(t *testing.T) {
	m := metrics.New()
	m.ScanStarted()
	ts := httptest.NewServer(newTestServer(m).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "surface_scans_started_total 1")
}

func TestMetricsEndpoint_DisabledWithoutMetrics(t *testing.T) {
	ts := httptest.NewServer(newTestServer(nil).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestUnknownRouteReturns404(t *testing.T) {
	ts := httptest.NewServer(newTestServer(nil).Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/nonexistent")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestIDHeaderIsAccepted(t *testing.T) {
	ts := httptest.NewServer(newTestServer(nil).Router())
	defer ts.Close()

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/api/v1/probes", nil)
	require.NoError(t, err)
	req.Header.Set("X-Request-Id", "abc")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
