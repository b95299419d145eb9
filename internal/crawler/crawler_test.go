package crawler

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// site serves a small link graph and records every fetched path.
type site struct {
	mu      sync.Mutex
	fetched []string
	pages   map[string]string
}

func (s *site) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.fetched = append(s.fetched, r.URL.Path)
	s.mu.Unlock()

	body, ok := s.pages[r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, body)
}

func (s *site) fetchCount(path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, p := range s.fetched {
		if p == path {
			n++
		}
	}
	return n
}

func links(hrefs ...string) string {
	var b strings.Builder
	b.WriteString("<html><body>")
	for _, h := range hrefs {
		fmt.Fprintf(&b, `<a href="%s">x</a>`, h)
	}
	b.WriteString("</body></html>")
	return b.String()
}

func newCrawler(depth, pages int) *Crawler {
	opts := scanner.DefaultOptions()
	opts.Timeout = 2 * time.Second
	return New(Options{MaxDepth: depth, MaxPages: pages, Scan: opts})
}

func TestCrawl_SameHostOnly(t *testing.T) {
	s := &site{pages: map[string]string{
		"/":  links("/a", "https://example.com/x", "mailto:me@example.com", "javascript:void(0)"),
		"/a": links("/b#section", "/"),
		"/b": links(),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	found, err := newCrawler(2, 30).Crawl(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/a", srv.URL + "/b"}, found)

	host := strings.TrimPrefix(srv.URL, "http://")
	for _, u := range found {
		parsed, err := url.Parse(u)
		require.NoError(t, err)
		assert.Equal(t, host, parsed.Host)
		assert.Empty(t, parsed.Fragment)
	}
}

func TestCrawl_DoesNotFollowOffHostRedirects(t *testing.T) {
	other := &site{pages: map[string]string{"/landing": links("/deeper")}}
	otherSrv := httptest.NewServer(other)
	defer otherSrv.Close()

	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, links("/away", "/moved"))
	})
	mux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, otherSrv.URL+"/landing", http.StatusFound)
	})
	mux.HandleFunc("/moved", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/final", http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, links("/leaf"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	found, err := newCrawler(2, 30).Crawl(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)

	assert.Zero(t, other.fetchCount("/landing"))
	assert.Zero(t, other.fetchCount("/deeper"))
	assert.Contains(t, found, srv.URL+"/leaf", "same-host redirects are still followed")
	for _, u := range found {
		assert.True(t, strings.HasPrefix(u, srv.URL), u)
	}
}

func TestCrawl_NoRevisits(t *testing.T) {
	s := &site{pages: map[string]string{
		"/":  links("/a", "/b", "/a#top"),
		"/a": links("/b", "/"),
		"/b": links("/a"),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, err := newCrawler(5, 30).Crawl(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)

	for _, p := range []string{"/", "/a", "/b"} {
		assert.Equal(t, 1, s.fetchCount(p), "path %s", p)
	}
}

func TestCrawl_DepthLimit(t *testing.T) {
	s := &site{pages: map[string]string{
		"/":   links("/d1"),
		"/d1": links("/d2"),
		"/d2": links("/d3"),
		"/d3": links("/d4"),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, err := newCrawler(2, 30).Crawl(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)

	assert.Equal(t, 1, s.fetchCount("/d2"))
	assert.Zero(t, s.fetchCount("/d3"), "depth 3 must not be fetched")
}

func TestCrawl_PageLimit(t *testing.T) {
	pages := map[string]string{}
	var hrefs []string
	for i := 0; i < 20; i++ {
		p := fmt.Sprintf("/p%d", i)
		hrefs = append(hrefs, p)
		pages[p] = links()
	}
	pages["/"] = links(hrefs...)

	s := &site{pages: pages}
	srv := httptest.NewServer(s)
	defer srv.Close()

	_, err := newCrawler(2, 5).Crawl(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Len(t, s.fetched, 5)
}

func TestCrawl_CallbackBeforeFetch(t *testing.T) {
	s := &site{pages: map[string]string{
		"/":  links("/a"),
		"/a": links(),
	}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	var fetchedAtCallback int
	found, err := newCrawler(2, 30).Crawl(context.Background(), srv.URL+"/", func(u string) {
		fetchedAtCallback = s.fetchCount("/a")
	})
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Zero(t, fetchedAtCallback)
}

func TestCrawl_DeadEnds(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		fmt.Fprint(w, links("/json", "/missing"))
	})
	mux.HandleFunc("/json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"href":"/hidden"}`)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	found, err := newCrawler(2, 30).Crawl(context.Background(), srv.URL+"/", nil)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{srv.URL + "/json", srv.URL + "/missing"}, found)
}

func TestCrawl_EmptyPage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	found, err := newCrawler(2, 30).Crawl(context.Background(), srv.URL, nil)
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestCrawl_Cancelled(t *testing.T) {
	s := &site{pages: map[string]string{"/": links("/a")}}
	srv := httptest.NewServer(s)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	found, err := newCrawler(2, 30).Crawl(ctx, srv.URL+"/", nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, found)
}

func TestCrawl_InvalidStart(t *testing.T) {
	_, err := newCrawler(2, 30).Crawl(context.Background(), "::not a url", nil)
	assert.Error(t, err)
}
