package vuln

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

var sstiParams = []string{"name", "input"}

// sstiPayloads pair a template expression with the text it renders to.
var sstiPayloads = []struct {
	payload string
	expect  string
	engine  string
}{
	{"{{7*7}}", "49", "Jinja2/Twig"},
	{"{{7*'7'}}", "7777777", "Jinja2"},
	{"{{config.items()}}", "dict_items", "Jinja2"},
	{"{{self.__init__.__globals__}}", "__builtins__", "Jinja2"},
	{"{{_self}}", "Twig", "Twig"},
	{"${7*7}", "49", "FreeMarker/EL"},
	{"${class.classLoader}", "ClassLoader", "EL"},
	{"#set($x=7*7)$x", "49", "Velocity"},
	{"{$smarty.version}", "Smarty", "Smarty"},
	{"{php}echo `id`;{/php}", "uid=", "Smarty"},
	{"<%= 7*7 %>", "49", "ERB"},
	{"#{7*7}", "49", "Ruby/Slim"},
	{"[[${7*7}]]", "49", "Thymeleaf"},
}

type sstiProbe struct{ base }

// NewSSTI creates the server-side template injection probe.
func NewSSTI(cfg Config) scanner.Probe {
	return &sstiProbe{newBase(cfg, SSTI, "Server-side template injection")}
}

func (p *sstiProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	baseline := p.baseline(ctx, target, target.URL, "name")

	for _, tc := range sstiPayloads {
		if ctx.Err() != nil {
			return nil, nil
		}
		progress.Notify(tc.payload)

		testURL := target.URL
		for _, param := range sstiParams {
			testURL = withParam(testURL, param, tc.payload)
		}

		resp, err := p.get(ctx, target, testURL)
		if err != nil {
			p.skip(tc.payload, err)
			continue
		}

		if !rendered(resp.Body, baseline, tc.payload, tc.expect) {
			continue
		}

		p.log.Warn("template injection", "url", testURL, "engine", tc.engine)
		return []types.Finding{{
			Name:        "Server-Side Template Injection",
			Severity:    types.SeverityCritical,
			Description: "User input is evaluated by the server's template engine, which can lead to remote code execution.",
			Evidence:    fmt.Sprintf("Payload %q rendered as %q", tc.payload, tc.expect),
			URL:         testURL,
			Remediation: "Never build templates from user input. Pass input as template data and enable sandboxing.",
			Metadata: map[string]string{
				"payload": tc.payload,
				"engine":  tc.engine,
			},
		}}, nil
	}

	return nil, nil
}

// rendered reports whether expect shows up in body as the result of
// evaluation rather than plain reflection or existing page content.
func rendered(body, baseline, payload, expect string) bool {
	if !strings.Contains(body, expect) || strings.Contains(baseline, expect) {
		return false
	}
	// A reflected payload that itself contains expect proves nothing.
	stripped := strings.ReplaceAll(body, payload, "")
	stripped = strings.ReplaceAll(stripped, url.QueryEscape(payload), "")
	return strings.Contains(stripped, expect)
}
