package types

import (
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
)

// Target is the endpoint under assessment. It is treated as read-only once a
// scan starts.
type Target struct {
	URL     string            `json:"url"`
	Host    string            `json:"host"`
	Scheme  string            `json:"scheme"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// ParseTarget accepts a host, host:port, or full URL and normalizes it into a Target.
func ParseTarget(raw string) (Target, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Target{}, fmt.Errorf("target cannot be empty")
	}

	// If it looks like a URL (has a scheme), parse as URL.
	if strings.Contains(raw, "://") {
		return parseURL(raw)
	}

	// Try host:port format.
	host, portStr, err := net.SplitHostPort(raw)
	if err == nil {
		port, err := strconv.Atoi(portStr)
		if err != nil {
			return Target{}, fmt.Errorf("invalid port %q: %w", portStr, err)
		}
		if port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("port %d out of range (1-65535)", port)
		}
		return Target{
			URL:    "https://" + net.JoinHostPort(host, portStr),
			Host:   host,
			Scheme: "https",
			Method: http.MethodGet,
		}, nil
	}

	// Plain hostname or IP.
	return Target{
		URL:    "https://" + raw,
		Host:   raw,
		Scheme: "https",
		Method: http.MethodGet,
	}, nil
}

func parseURL(raw string) (Target, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return Target{}, fmt.Errorf("invalid URL %q: %w", raw, err)
	}

	if u.Hostname() == "" {
		return Target{}, fmt.Errorf("URL %q has no hostname", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Target{}, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}

	if u.Port() != "" {
		port, err := strconv.Atoi(u.Port())
		if err != nil {
			return Target{}, fmt.Errorf("invalid port in URL: %w", err)
		}
		if port < 1 || port > 65535 {
			return Target{}, fmt.Errorf("port %d out of range (1-65535)", port)
		}
	}

	return Target{
		URL:    raw,
		Host:   u.Hostname(),
		Scheme: u.Scheme,
		Method: http.MethodGet,
	}, nil
}

// Port returns the explicit port of the target URL, or the scheme default.
func (t Target) Port() int {
	if u, err := url.Parse(t.URL); err == nil && u.Port() != "" {
		if p, err := strconv.Atoi(u.Port()); err == nil {
			return p
		}
	}
	if t.Scheme == "http" {
		return 80
	}
	return 443
}

// BaseURL returns scheme://host[:port] without path, query, or trailing slash.
func (t Target) BaseURL() string {
	u, err := url.Parse(t.URL)
	if err != nil || u.Host == "" {
		scheme := t.Scheme
		if scheme == "" {
			scheme = "https"
		}
		return scheme + "://" + t.Host
	}
	return u.Scheme + "://" + u.Host
}

// WithURL returns a copy of t pointing at another URL on the same target.
// Headers are shared, callers must not mutate them.
func (t Target) WithURL(raw string) Target {
	t.URL = raw
	return t
}

// ApplyHeaders copies the target's configured headers onto req.
func (t Target) ApplyHeaders(req *http.Request) {
	for k, v := range t.Headers {
		req.Header.Set(k, v)
	}
}
