package vuln

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// similarity is the maximum relative body length difference for two object
// responses to count as the same shape.
const similarity = 0.3

var pathIDPattern = regexp.MustCompile(`/(\d+)(/|$)`)

type bolaProbe struct{ base }

// NewBOLA creates the broken object level authorization probe.
func NewBOLA(cfg Config) scanner.Probe {
	return &bolaProbe{newBase(cfg, BOLA, "Broken object level authorization (IDOR)")}
}

// candidate is a URL with one numeric object id and a way to swap it.
type candidate struct {
	id      int
	where   string
	replace func(id int) string
}

func (p *bolaProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	cands := idCandidates(target.URL)
	if len(cands) == 0 {
		p.log.Debug("no numeric ids in target URL")
		return nil, nil
	}

	method := target.Method
	if method == "" {
		method = http.MethodGet
	}

	base, err := p.do(ctx, target, request{Method: method, URL: target.URL})
	if err != nil {
		p.skip(target.URL, err)
		return nil, nil
	}
	if base.Status != http.StatusOK {
		return nil, nil
	}

	var findings []types.Finding
	for _, c := range cands {
		for _, id := range testIDs(c.id) {
			if ctx.Err() != nil {
				return findings, nil
			}
			testURL := c.replace(id)
			progress.Notify(testURL)

			resp, err := p.do(ctx, target, request{Method: method, URL: testURL})
			if err != nil {
				p.skip(testURL, err)
				continue
			}
			if resp.Status != http.StatusOK || !similar(len(base.Body), len(resp.Body)) {
				continue
			}

			findings = append(findings, types.Finding{
				Name:        "Broken Object Level Authorization (BOLA/IDOR)",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("Object %d in %s can be swapped for %d and the server still returns a full object without an authorization check.", c.id, c.where, id),
				Evidence:    fmt.Sprintf("Original %s (200, %d bytes), test %s (200, %d bytes)", target.URL, len(base.Body), testURL, len(resp.Body)),
				URL:         testURL,
				Remediation: "Enforce per-object authorization on every request and prefer unguessable identifiers.",
				Metadata: map[string]string{
					"original_id": strconv.Itoa(c.id),
					"test_id":     strconv.Itoa(id),
					"location":    c.where,
				},
			})
			p.log.Warn("possible IDOR", "url", testURL)
			break
		}
	}

	return findings, nil
}

// idCandidates finds the first numeric path segment and numeric query values.
func idCandidates(rawURL string) []candidate {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil
	}

	var out []candidate
	if m := pathIDPattern.FindStringSubmatchIndex(u.Path); m != nil {
		id, err := strconv.Atoi(u.Path[m[2]:m[3]])
		if err == nil {
			prefix, suffix := u.Path[:m[2]], u.Path[m[3]:]
			out = append(out, candidate{
				id:    id,
				where: "path",
				replace: func(n int) string {
					c := *u
					c.Path = prefix + strconv.Itoa(n) + suffix
					c.RawPath = ""
					return c.String()
				},
			})
		}
	}

	q := u.Query()
	for key, vals := range q {
		if len(vals) == 0 {
			continue
		}
		id, err := strconv.Atoi(vals[0])
		if err != nil {
			continue
		}
		key := key
		out = append(out, candidate{
			id:    id,
			where: "query parameter " + key,
			replace: func(n int) string {
				return withParam(rawURL, key, strconv.Itoa(n))
			},
		})
	}
	return out
}

func testIDs(id int) []int {
	seen := map[int]bool{id: true}
	var out []int
	for _, n := range []int{id + 1, id - 1, 1, 999999, id * 2} {
		if n < 0 || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}

func similar(a, b int) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) < float64(a)*similarity
}
