// Package vuln holds the vulnerability probes and the selector that picks
// them from a target's technology stack.
package vuln

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// Config carries what every probe needs. A nil Client is built from Options.
type Config struct {
	Client  *http.Client
	Options scanner.Options
	Logger  *slog.Logger
}

// Probe names.
const (
	XSS           = "xss"
	SSRF          = "ssrf"
	CMDI          = "cmdi"
	SQLI          = "sqli"
	NoSQL         = "nosql"
	XXE           = "xxe"
	SSTI          = "ssti"
	GraphQL       = "graphql"
	BOLA          = "bola"
	AccessControl = "access-control"
	JWT           = "jwt"
	Misconfig     = "misconfig"
	DataExposure  = "data-exposure"
	RateLimit     = "rate-limit"
)

// Register adds every probe to reg.
func Register(reg *scanner.Registry, cfg Config) {
	for _, p := range All(cfg) {
		reg.Register(p)
	}
}

// All returns one instance of every probe.
func All(cfg Config) []scanner.Probe {
	return []scanner.Probe{
		NewXSS(cfg),
		NewSSRF(cfg),
		NewCMDI(cfg),
		NewSQLI(cfg),
		NewNoSQL(cfg),
		NewXXE(cfg),
		NewSSTI(cfg),
		NewGraphQL(cfg),
		NewBOLA(cfg),
		NewAccessControl(cfg),
		NewJWT(cfg),
		NewMisconfig(cfg),
		NewDataExposure(cfg),
		NewRateLimit(cfg),
	}
}

// base is embedded by every probe and owns its HTTP clients.
type base struct {
	name       string
	desc       string
	client     *http.Client
	noRedirect *http.Client
	log        *slog.Logger
}

func newBase(cfg Config, name, desc string) base {
	client := cfg.Client
	if client == nil {
		client = scanner.NewHTTPClient(cfg.Options, 3)
	}
	nr := *client
	nr.CheckRedirect = func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}

	log := cfg.Logger
	if log == nil {
		log = cfg.Options.Log()
	}

	return base{
		name:       name,
		desc:       desc,
		client:     client,
		noRedirect: &nr,
		log:        log.With("probe", name),
	}
}

func (b base) Name() string        { return b.name }
func (b base) Description() string { return b.desc }

// response is a fully read HTTP response.
type response struct {
	Status  int
	Header  http.Header
	Body    string
	Elapsed time.Duration
}

// request describes one probe request. Zero Method means GET.
type request struct {
	Method      string
	URL         string
	Body        string
	ContentType string
	Header      map[string]string
	NoRedirect  bool
}

// do sends req with the target's headers applied.
func (b base) do(ctx context.Context, target types.Target, r request) (*response, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	var body io.Reader
	if r.Body != "" {
		body = strings.NewReader(r.Body)
	}

	req, err := http.NewRequestWithContext(ctx, method, r.URL, body)
	if err != nil {
		return nil, err
	}
	target.ApplyHeaders(req)
	if r.ContentType != "" {
		req.Header.Set("Content-Type", r.ContentType)
	}
	for k, v := range r.Header {
		req.Header.Set(k, v)
	}

	client := b.client
	if r.NoRedirect {
		client = b.noRedirect
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := scanner.ReadBody(resp)
	if err != nil {
		return nil, err
	}

	return &response{
		Status:  resp.StatusCode,
		Header:  resp.Header,
		Body:    string(raw),
		Elapsed: time.Since(start),
	}, nil
}

// get is a shorthand for a plain GET.
func (b base) get(ctx context.Context, target types.Target, rawURL string) (*response, error) {
	return b.do(ctx, target, request{URL: rawURL})
}

// skip logs a per-payload failure at debug level.
func (b base) skip(item string, err error) {
	b.log.Debug("request failed", "item", truncate(item, 60), "error", err)
}

// withParam returns rawURL with query parameter key set to value.
func withParam(rawURL, key, value string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	q := u.Query()
	q.Set(key, value)
	u.RawQuery = q.Encode()
	return u.String()
}

// joinPath appends path to the target's base URL.
func joinPath(target types.Target, path string) string {
	return strings.TrimRight(target.BaseURL(), "/") + path
}

// firstIndicator returns the first indicator present in body but absent from
// baseline, comparing case-insensitively.
func firstIndicator(body, baseline string, indicators []string) (string, bool) {
	lb := strings.ToLower(body)
	lbase := strings.ToLower(baseline)
	for _, ind := range indicators {
		li := strings.ToLower(ind)
		if strings.Contains(lb, li) && !strings.Contains(lbase, li) {
			return ind, true
		}
	}
	return "", false
}

// baseline fetches rawURL with param set to a benign value. Failures give an
// empty baseline.
func (b base) baseline(ctx context.Context, target types.Target, rawURL, param string) string {
	if param != "" {
		rawURL = withParam(rawURL, param, "1")
	}
	resp, err := b.get(ctx, target, rawURL)
	if err != nil {
		return ""
	}
	return resp.Body
}

// truncate shortens s to maxLen bytes, appending "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
