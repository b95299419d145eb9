package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/buemura/surface/pkg/types"
)

func TestMetrics_ScanLifecycle(t *testing.T) {
	m := New()
	m.ScanStarted()
	m.ScanStarted()
	m.ScanFinished(types.StatusCompleted)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.scansStarted))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansRunning))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.scansFinished.WithLabelValues("COMPLETED")))
}

func TestMetrics_Probes(t *testing.T) {
	m := New()
	m.ProbeRun("xss", time.Second, nil)
	m.ProbeRun("sqli", time.Second, errors.New("boom"))
	m.Finding(types.Finding{Probe: "xss", Severity: types.SeverityHigh})
	m.EventDropped("s1")
	m.PhaseFailed("ports")

	assert.Equal(t, 0.0, testutil.ToFloat64(m.probeErrors.WithLabelValues("xss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.probeErrors.WithLabelValues("sqli")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.findings.WithLabelValues("xss", "HIGH")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.eventsDropped))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.phaseFailures.WithLabelValues("ports")))
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ScanStarted()

	srv := httptest.NewServer(m.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "surface_scans_started_total 1")
	assert.NotContains(t, string(body), "go_goroutines")
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ScanStarted()
		m.ScanFinished(types.StatusFailed)
		m.ProbeRun("x", 0, nil)
		m.Finding(types.Finding{})
		m.PhaseFailed("x")
		m.EventDropped("x")
	})
	assert.Nil(t, m.Registry())
}
