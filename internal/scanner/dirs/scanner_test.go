package dirs

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer() *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/admin", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("admin panel"))
	})
	mux.HandleFunc("/secret", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/old-page", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Location", "/new-page")
		w.WriteHeader(http.StatusMovedPermanently)
	})
	mux.HandleFunc("/robots.txt", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("User-agent: *\n"))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	return httptest.NewServer(mux)
}

func testOptions() scanner.Options {
	opts := scanner.DefaultOptions()
	opts.Concurrency = 5
	opts.Timeout = 2 * time.Second
	return opts
}

func TestProbe_DiscoversPaths(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	var mu sync.Mutex
	var streamed []string

	found, err := New(testOptions()).Probe(context.Background(), srv.URL,
		[]string{"/admin", "/secret", "/old-page", "/robots.txt", "/broken", "/nonexistent"},
		func(p types.DiscoveredPath) {
			mu.Lock()
			streamed = append(streamed, p.Path)
			mu.Unlock()
		})
	require.NoError(t, err)
	require.Len(t, found, 4)
	assert.Len(t, streamed, 4)

	byPath := map[string]types.DiscoveredPath{}
	for _, p := range found {
		byPath[p.Path] = p
	}

	assert.Equal(t, http.StatusOK, byPath["/admin"].Status)
	assert.Equal(t, types.PathAdmin, byPath["/admin"].Kind)
	assert.Equal(t, srv.URL+"/admin", byPath["/admin"].URL)
	assert.Equal(t, int64(len("admin panel")), byPath["/admin"].Size)

	assert.Equal(t, types.PathProtected, byPath["/secret"].Kind)
	assert.Equal(t, http.StatusMovedPermanently, byPath["/old-page"].Status)
	assert.Equal(t, types.PathDirectory, byPath["/old-page"].Kind)
	assert.Equal(t, types.PathConfig, byPath["/robots.txt"].Kind)

	_, ok := byPath["/broken"]
	assert.False(t, ok, "500 must not be reported")
}

func TestProbe_SortedByPath(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	found, err := New(testOptions()).Probe(context.Background(), srv.URL+"/",
		[]string{"/secret", "/admin", "/robots.txt"}, nil)
	require.NoError(t, err)
	require.Len(t, found, 3)
	assert.Equal(t, "/admin", found[0].Path)
	assert.Equal(t, "/robots.txt", found[1].Path)
	assert.Equal(t, "/secret", found[2].Path)
}

func TestProbe_DoesNotReport404(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	found, err := New(testOptions()).Probe(context.Background(), srv.URL,
		[]string{"/nonexistent", "/fake", "/missing"}, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestProbe_UnresolvableHostFailsFast(t *testing.T) {
	found, err := New(testOptions()).Probe(context.Background(), "http://does-not-exist.invalid",
		[]string{"/admin"}, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, scanner.ErrUnresolvable)
	assert.Empty(t, found)
}

func TestResolve_BoundedByTimeout(t *testing.T) {
	require.NoError(t, resolve(context.Background(), "127.0.0.1", time.Nanosecond))

	start := time.Now()
	err := resolve(context.Background(), "slow-lookup.invalid", time.Nanosecond)
	assert.ErrorIs(t, err, scanner.ErrUnresolvable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestProbe_ContextCancellation(t *testing.T) {
	srv := newTestServer()
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := New(testOptions()).Probe(ctx, srv.URL, []string{"/admin", "/secret"}, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestClassify(t *testing.T) {
	tests := []struct {
		path   string
		status int
		want   types.PathKind
	}{
		{"/phpinfo.php", 200, types.PathScript},
		{"/admin.php", 200, types.PathScript},
		{"/sitemap.xml", 200, types.PathConfig},
		{"/database.yml", 403, types.PathConfig},
		{"/admin", 200, types.PathAdmin},
		{"/panel", 200, types.PathAdmin},
		{"/api/v1", 200, types.PathAPI},
		{"/graphql", 200, types.PathAPI},
		{"/.git", 200, types.PathSensitive},
		{"/.env", 403, types.PathSensitive},
		{"/private", 401, types.PathProtected},
		{"/uploads", 403, types.PathProtected},
		{"/uploads", 200, types.PathDirectory},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.path, tt.status))
		})
	}
}

func TestLoadWordlist_Default(t *testing.T) {
	paths, err := LoadWordlist("")
	require.NoError(t, err)
	assert.Contains(t, paths, "/admin")
	assert.Contains(t, paths, "/.env")
	assert.Contains(t, paths, "/health")
	for _, p := range paths {
		assert.Equal(t, byte('/'), p[0])
	}
}

func TestLoadWordlist_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "paths.txt")
	require.NoError(t, os.WriteFile(path, []byte("# comment\nadmin\n\n/login\n"), 0o644))

	paths, err := LoadWordlist(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"/admin", "/login"}, paths)
}

func TestLoadWordlist_Missing(t *testing.T) {
	_, err := LoadWordlist(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}
