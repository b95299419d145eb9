package vuln

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// burstRequests is the number of back-to-back requests sent to the target.
const burstRequests = 20

var rateLimitHeaderNames = []string{
	"X-RateLimit-Limit",
	"X-RateLimit-Remaining",
	"X-RateLimit-Reset",
	"Retry-After",
	"RateLimit-Limit",
	"RateLimit-Remaining",
	"RateLimit-Reset",
}

type rateLimitProbe struct {
	base
	requests int
}

// NewRateLimit creates the missing rate limiting probe. It is never picked
// by Select and only runs when requested by name.
func NewRateLimit(cfg Config) scanner.Probe {
	return &rateLimitProbe{
		base:     newBase(cfg, RateLimit, "Missing rate limiting on the target URL"),
		requests: burstRequests,
	}
}

func (p *rateLimitProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var (
		ok       int
		limited  bool
		observed map[string]string
	)

	for i := 0; i < p.requests && !limited; i++ {
		if ctx.Err() != nil {
			return nil, nil
		}
		if progress != nil {
			progress(fmt.Sprintf("request %d/%d", i+1, p.requests))
		}

		resp, err := p.get(ctx, target, target.URL)
		if err != nil {
			p.skip(target.URL, err)
			continue
		}

		if h := rateLimitHeaders(resp.Header); len(h) > 0 && observed == nil {
			observed = h
		}
		switch resp.Status {
		case http.StatusTooManyRequests:
			limited = true
		case http.StatusOK:
			ok++
		}
	}

	var findings []types.Finding
	if observed != nil {
		list := formatHeaders(observed)
		findings = append(findings, types.Finding{
			Name:        "Rate Limit Headers Present",
			Severity:    types.SeverityInfo,
			Description: "The endpoint advertises rate limiting: " + list,
			Evidence:    list,
			URL:         target.URL,
			Metadata:    observed,
		})
	}

	// Mostly-successful bursts without a 429 mean nothing is throttling.
	if !limited && ok*10 >= p.requests*9 {
		findings = append(findings, types.Finding{
			Name:        "Missing Rate Limiting",
			Severity:    types.SeverityMedium,
			Description: fmt.Sprintf("No rate limiting detected. %d/%d requests succeeded", ok, p.requests),
			Evidence:    fmt.Sprintf("Sent %d rapid requests without a 429 Too Many Requests response", p.requests),
			URL:         target.URL,
			Remediation: "Throttle clients with a token bucket or sliding window limiter and answer excess requests with 429.",
			Metadata:    map[string]string{"requests_sent": strconv.Itoa(p.requests), "succeeded": strconv.Itoa(ok)},
		})
	}
	return findings, nil
}

// rateLimitHeaders returns the rate limiting headers present in h, keyed in
// lower case.
func rateLimitHeaders(h http.Header) map[string]string {
	found := make(map[string]string)
	for _, name := range rateLimitHeaderNames {
		if val := h.Get(name); val != "" {
			found[strings.ToLower(name)] = val
		}
	}
	return found
}

func formatHeaders(headers map[string]string) string {
	parts := make([]string, 0, len(headers))
	for k, v := range headers {
		parts = append(parts, k+": "+v)
	}
	sort.Strings(parts)
	return strings.Join(parts, ", ")
}
