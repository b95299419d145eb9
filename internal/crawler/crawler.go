// Package crawler walks same-host links depth first from a start URL.
package crawler

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html/charset"

	"github.com/buemura/surface/internal/scanner"
)

// Default limits.
const (
	DefaultMaxDepth = 2
	DefaultMaxPages = 30
)

// Options configures a crawl.
type Options struct {
	MaxDepth int
	MaxPages int
	Scan     scanner.Options
}

// Crawler discovers in-scope URLs by following <a href> links.
type Crawler struct {
	maxDepth int
	maxPages int
	client   *http.Client
	log      *slog.Logger
	headers  map[string]string
}

// New creates a crawler. Non-positive limits take the defaults.
func New(opts Options) *Crawler {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = DefaultMaxDepth
	}
	if opts.MaxPages <= 0 {
		opts.MaxPages = DefaultMaxPages
	}
	client := scanner.NewHTTPClient(opts.Scan, 3)
	sameHost := client.CheckRedirect
	client.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		// Off-host redirects end as a 3xx dead end, so no page is fetched
		// outside the start host.
		if req.URL.Host != via[0].URL.Host {
			return http.ErrUseLastResponse
		}
		return sameHost(req, via)
	}
	return &Crawler{
		maxDepth: opts.MaxDepth,
		maxPages: opts.MaxPages,
		client:   client,
		log:      opts.Scan.Log().With("component", "crawler"),
	}
}

// WithHeaders sets headers sent with every page request.
func (c *Crawler) WithHeaders(h map[string]string) *Crawler {
	c.headers = h
	return c
}

// crawl holds the state of one run.
type crawl struct {
	*Crawler
	host    string
	visited map[string]bool
	seen    map[string]bool
	found   []string
	onFound func(string)
}

// Crawl fetches start and recursively every same-host link it finds, up to
// the depth and page limits. It returns the discovered URLs in discovery
// order, not including start. A cancelled ctx returns what was found so far
// together with the context error.
// onFound fires for each newly discovered URL before it is fetched.
func (c *Crawler) Crawl(ctx context.Context, start string, onFound func(string)) ([]string, error) {
	u, err := url.Parse(start)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid start URL %q", start)
	}
	u.Fragment = ""

	run := &crawl{
		Crawler: c,
		host:    u.Host,
		visited: map[string]bool{},
		seen:    map[string]bool{},
		found:   []string{},
		onFound: onFound,
	}
	run.visit(ctx, u.String(), 0)

	c.log.Info("crawl complete", "start", start, "pages", len(run.visited), "urls", len(run.found))
	return run.found, ctx.Err()
}

func (r *crawl) visit(ctx context.Context, pageURL string, depth int) {
	if ctx.Err() != nil || depth > r.maxDepth || len(r.visited) >= r.maxPages || r.visited[pageURL] {
		return
	}
	r.visited[pageURL] = true

	links, err := r.fetchLinks(ctx, pageURL)
	if err != nil {
		r.log.Debug("dead end", "url", pageURL, "error", err)
		return
	}

	for _, link := range links {
		if ctx.Err() != nil || len(r.visited) >= r.maxPages {
			return
		}
		if r.visited[link] {
			continue
		}
		if !r.seen[link] {
			r.seen[link] = true
			r.found = append(r.found, link)
			if r.onFound != nil {
				r.onFound(link)
			}
		}
		r.visit(ctx, link, depth+1)
	}
}

// fetchLinks returns the cleaned, in-scope links of one page.
func (r *crawl) fetchLinks(ctx context.Context, pageURL string) ([]string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	ct := resp.Header.Get("Content-Type")
	if ct != "" && !strings.Contains(ct, "html") {
		return nil, fmt.Errorf("not HTML: %s", ct)
	}

	body, err := charset.NewReader(io.LimitReader(resp.Body, scanner.MaxBodySize), ct)
	if err != nil {
		return nil, fmt.Errorf("decoding body: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parsing HTML: %w", err)
	}

	base := resp.Request.URL
	var links []string
	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if link, ok := r.resolve(base, href); ok {
			links = append(links, link)
		}
	})
	return links, nil
}

// resolve makes href absolute against base, strips the fragment and reports
// whether it stays on the crawl host.
func (r *crawl) resolve(base *url.URL, href string) (string, bool) {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	if abs.Host != r.host {
		return "", false
	}
	abs.Fragment = ""
	abs.RawFragment = ""
	return abs.String(), true
}
