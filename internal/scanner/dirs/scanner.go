package dirs

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// acceptedStatus lists the status codes that mark a path as present.
var acceptedStatus = map[int]bool{
	http.StatusOK:                true,
	http.StatusCreated:           true,
	http.StatusMovedPermanently:  true,
	http.StatusFound:             true,
	http.StatusTemporaryRedirect: true,
	http.StatusPermanentRedirect: true,
	http.StatusUnauthorized:      true,
	http.StatusForbidden:         true,
}

// Prober performs path enumeration against a base URL.
type Prober struct {
	opts   scanner.Options
	client *http.Client
}

// New creates a path prober. Redirects are never followed.
func New(opts scanner.Options) *Prober {
	if opts.Concurrency < 1 {
		opts.Concurrency = 30
	}
	return &Prober{opts: opts, client: scanner.NewHTTPClient(opts, 0)}
}

// Probe requests baseURL+path for every candidate and returns the paths that
// answered with an accepted status, sorted by path. onFound is called for each
// hit as it is discovered. An empty candidate list means the embedded wordlist.
func (p *Prober) Probe(ctx context.Context, baseURL string, paths []string, onFound func(types.DiscoveredPath)) ([]types.DiscoveredPath, error) {
	baseURL = strings.TrimRight(baseURL, "/")
	log := p.opts.Log().With("prober", "path", "base", baseURL)
	found := []types.DiscoveredPath{}

	u, err := url.Parse(baseURL)
	if err != nil || u.Hostname() == "" {
		return found, fmt.Errorf("invalid base URL %q", baseURL)
	}
	if err := resolve(ctx, u.Hostname(), p.opts.Timeout*3); err != nil {
		log.Warn("path discovery skipped", "error", err)
		return found, err
	}

	if len(paths) == 0 {
		paths = parseLines(defaultWordlist)
	}

	var mu sync.Mutex
	err = scanner.ForEach(ctx, p.opts.Concurrency, paths, func(path string) {
		hit, ok := p.probe(ctx, baseURL, path)
		if !ok {
			return
		}

		mu.Lock()
		found = append(found, hit)
		mu.Unlock()

		log.Debug("path found", "path", hit.Path, "status", hit.Status, "kind", hit.Kind)
		if onFound != nil {
			onFound(hit)
		}
	})
	if err != nil {
		return found, err
	}

	sort.Slice(found, func(i, j int) bool { return found[i].Path < found[j].Path })
	log.Info("path discovery complete", "found", len(found), "probed", len(paths))
	return found, nil
}

// probe sends a GET to baseURL+path and reports whether the status is accepted.
func (p *Prober) probe(ctx context.Context, baseURL, path string) (types.DiscoveredPath, bool) {
	target := baseURL + path

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return types.DiscoveredPath{}, false
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return types.DiscoveredPath{}, false
	}
	defer resp.Body.Close()

	if !acceptedStatus[resp.StatusCode] {
		return types.DiscoveredPath{}, false
	}

	size, _ := io.Copy(io.Discard, io.LimitReader(resp.Body, scanner.MaxBodySize))

	return types.DiscoveredPath{
		Path:   path,
		URL:    target,
		Status: resp.StatusCode,
		Size:   size,
		Kind:   Classify(path, resp.StatusCode),
	}, true
}

// Classify derives the resource kind from the path shape and status code.
// Rules are checked in order and the first match wins.
func Classify(path string, status int) types.PathKind {
	lower := strings.ToLower(path)
	switch {
	case hasAnySuffix(lower, ".php", ".asp", ".jsp", ".do"):
		return types.PathScript
	case hasAnySuffix(lower, ".txt", ".xml", ".json", ".yml", ".yaml"):
		return types.PathConfig
	case strings.Contains(lower, "/admin") || strings.Contains(lower, "/panel"):
		return types.PathAdmin
	case strings.Contains(lower, "/api") || strings.Contains(lower, "/graphql"):
		return types.PathAPI
	case strings.Contains(lower, "/.git") || strings.Contains(lower, "/.svn") || strings.Contains(lower, "/.env"):
		return types.PathSensitive
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.PathProtected
	default:
		return types.PathDirectory
	}
}

func hasAnySuffix(s string, suffixes ...string) bool {
	for _, suf := range suffixes {
		if strings.HasSuffix(s, suf) {
			return true
		}
	}
	return false
}

// resolve fails when host is neither an IP nor resolvable within timeout.
func resolve(ctx context.Context, host string, timeout time.Duration) error {
	if net.ParseIP(host) != nil {
		return nil
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if _, err := net.DefaultResolver.LookupHost(ctx, host); err != nil {
		return fmt.Errorf("%w: %s: %v", scanner.ErrUnresolvable, host, err)
	}
	return nil
}
