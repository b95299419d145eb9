package vuln

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	opts := scanner.DefaultOptions()
	return Config{Options: opts}
}

func targetFor(t *testing.T, rawURL string) types.Target {
	t.Helper()
	target, err := types.ParseTarget(rawURL)
	require.NoError(t, err)
	return target
}

func names(findings []types.Finding) []string {
	out := make([]string, len(findings))
	for i, f := range findings {
		out[i] = f.Name
	}
	return out
}

func TestRegister_AllProbes(t *testing.T) {
	reg := scanner.NewRegistry()
	Register(reg, testConfig())

	assert.Equal(t, []string{
		AccessControl, BOLA, CMDI, DataExposure, GraphQL, JWT,
		Misconfig, NoSQL, RateLimit, SQLI, SSRF, SSTI, XSS, XXE,
	}, reg.Names())

	for _, p := range reg.All() {
		assert.NotEmpty(t, p.Description(), p.Name())
	}
}

func TestSelect_ResolvesAgainstRegistry(t *testing.T) {
	reg := scanner.NewRegistry()
	Register(reg, testConfig())

	stack := types.DefaultTechStack()
	stack.Backend = "PHP"
	stack.Database = "MySQL"
	stack.Frameworks = []string{"GraphQL"}

	probes, missing := reg.Resolve(Select(stack))
	assert.Empty(t, missing)
	assert.Len(t, probes, len(Select(stack)))
}

func TestWithParam(t *testing.T) {
	assert.Equal(t, "http://x/p?a=1&q=%3Cb%3E", withParam("http://x/p?a=1", "q", "<b>"))
	assert.Equal(t, "http://x/p?id=2", withParam("http://x/p?id=1", "id", "2"))
}

func TestFirstIndicator_IgnoresBaseline(t *testing.T) {
	inds := []string{"root:x:0:0", "uid="}

	_, ok := firstIndicator("uid=0(root)", "uid=33(www-data)", inds)
	assert.False(t, ok)

	ind, ok := firstIndicator("ROOT:X:0:0:root", "", inds)
	require.True(t, ok)
	assert.Equal(t, "root:x:0:0", ind)
}

func TestBase_AppliesTargetHeaders(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, r.Header.Get("X-Api-Key"))
	}))
	defer srv.Close()

	target := targetFor(t, srv.URL)
	target.Headers = map[string]string{"X-Api-Key": "k"}

	b := newBase(testConfig(), "test", "")
	resp, err := b.get(context.Background(), target, srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "k", resp.Body)
}

func TestBase_NoRedirectClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	b := newBase(testConfig(), "test", "")
	target := targetFor(t, srv.URL)

	resp, err := b.do(context.Background(), target, request{URL: srv.URL + "/", NoRedirect: true})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.Status)

	resp, err = b.get(context.Background(), target, srv.URL+"/")
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
}

func TestProbes_CancelledContext(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	for _, p := range []scanner.Probe{NewXSS(testConfig()), NewSQLI(testConfig()), NewSSRF(testConfig())} {
		findings, err := p.Run(ctx, targetFor(t, srv.URL), nil)
		assert.NoError(t, err, p.Name())
		assert.Empty(t, findings, p.Name())
	}
	assert.Zero(t, hits.Load())
}
