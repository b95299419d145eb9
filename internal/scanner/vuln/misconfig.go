package vuln

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// headerRule checks one security response header.
type headerRule struct {
	Name  string
	Check func(h http.Header, isHTTPS bool) *types.Finding
}

func missing(header string, sev types.Severity, desc, fix string) headerRule {
	return headerRule{
		Name: header,
		Check: func(h http.Header, _ bool) *types.Finding {
			if h.Get(header) != "" {
				return nil
			}
			return &types.Finding{
				Name:        "Missing " + header + " header",
				Severity:    sev,
				Description: desc,
				Remediation: fix,
			}
		},
	}
}

var headerRules = []headerRule{
	{
		Name: "Strict-Transport-Security",
		Check: func(h http.Header, isHTTPS bool) *types.Finding {
			if !isHTTPS || h.Get("Strict-Transport-Security") != "" {
				return nil
			}
			return &types.Finding{
				Name:        "Missing Strict-Transport-Security header",
				Severity:    types.SeverityHigh,
				Description: "HSTS is not set. This allows downgrade attacks and cookie hijacking.",
				Remediation: "Add the header: Strict-Transport-Security: max-age=31536000; includeSubDomains",
			}
		},
	},
	missing("Content-Security-Policy", types.SeverityMedium,
		"No Content-Security-Policy is set, which raises the impact of XSS and data injection.",
		"Add a restrictive policy, e.g.: Content-Security-Policy: default-src 'self'"),
	{
		Name: "X-Content-Type-Options",
		Check: func(h http.Header, _ bool) *types.Finding {
			val := h.Get("X-Content-Type-Options")
			switch {
			case val == "":
				return &types.Finding{
					Name:        "Missing X-Content-Type-Options header",
					Severity:    types.SeverityLow,
					Description: "Browsers may MIME-sniff responses.",
					Remediation: "Add the header: X-Content-Type-Options: nosniff",
				}
			case !strings.EqualFold(val, "nosniff"):
				return &types.Finding{
					Name:        "Misconfigured X-Content-Type-Options header",
					Severity:    types.SeverityLow,
					Description: "X-Content-Type-Options is set but not to 'nosniff'. Current value: " + val,
					Remediation: "Set the header value to 'nosniff'.",
				}
			}
			return nil
		},
	},
	missing("X-Frame-Options", types.SeverityLow,
		"The page may be framed by other origins (clickjacking).",
		"Add the header: X-Frame-Options: DENY or SAMEORIGIN"),
	missing("X-XSS-Protection", types.SeverityInfo,
		"X-XSS-Protection is absent. It is deprecated, but its absence often means hardening was skipped.",
		"Set X-XSS-Protection: 0 and rely on Content-Security-Policy."),
	missing("Referrer-Policy", types.SeverityLow,
		"Sensitive URL data may leak through the Referer header.",
		"Add the header: Referrer-Policy: strict-origin-when-cross-origin"),
	missing("Permissions-Policy", types.SeverityLow,
		"Browser features like camera and geolocation are not explicitly restricted.",
		"Add the header: Permissions-Policy: camera=(), microphone=(), geolocation=()"),
}

var debugIndicators = []string{
	"Traceback",
	"DEBUG = True",
	"Stack trace",
	"Exception",
	"at line",
	"syntax error",
	"mysql_",
	"SQLSTATE",
	"Warning:",
	"Fatal error:",
}

var listingDirs = []string{"/uploads/", "/files/", "/static/", "/images/", "/backup/"}

var dangerousMethods = []string{"TRACE", "TRACK", "DELETE", "PUT"}

// evilOrigin is sent to see whether the server echoes arbitrary origins.
const evilOrigin = "https://evil.com"

var corsChecks = []struct {
	origin string
	method string
}{
	{evilOrigin, http.MethodGet},
	{evilOrigin, http.MethodOptions},
	{"null", http.MethodGet},
	{"null", http.MethodOptions},
}

type misconfigProbe struct{ base }

// NewMisconfig creates the security misconfiguration probe.
func NewMisconfig(cfg Config) scanner.Probe {
	return &misconfigProbe{newBase(cfg, Misconfig, "Security headers, CORS, debug output and server hardening")}
}

func (p *misconfigProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	progress.Notify(target.URL)
	resp, err := p.get(ctx, target, target.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", target.URL, err)
	}

	var findings []types.Finding
	findings = append(findings, p.headers(target, resp)...)
	findings = append(findings, p.debug(target, resp)...)
	findings = append(findings, p.serverVersion(target, resp)...)
	findings = append(findings, p.listing(ctx, target, progress)...)
	findings = append(findings, p.methods(ctx, target, progress)...)
	findings = append(findings, p.cors(ctx, target, progress)...)
	return findings, nil
}

func (p *misconfigProbe) headers(target types.Target, resp *response) []types.Finding {
	isHTTPS := strings.HasPrefix(target.URL, "https://")
	var findings []types.Finding
	for _, rule := range headerRules {
		f := rule.Check(resp.Header, isHTTPS)
		if f == nil {
			continue
		}
		f.URL = target.URL
		f.Evidence = fmt.Sprintf("%s not in response headers", rule.Name)
		f.Metadata = map[string]string{"header": rule.Name}
		findings = append(findings, *f)
	}
	return findings
}

func (p *misconfigProbe) debug(target types.Target, resp *response) []types.Finding {
	for _, ind := range debugIndicators {
		if !strings.Contains(resp.Body, ind) {
			continue
		}
		return []types.Finding{{
			Name:        "Debug Mode Enabled",
			Severity:    types.SeverityHigh,
			Description: "The application appears to run in debug mode or expose error details.",
			Evidence:    fmt.Sprintf("Found indicator %q in response", ind),
			URL:         target.URL,
			Remediation: "Disable debug mode and serve generic error pages in production.",
			Metadata:    map[string]string{"indicator": ind},
		}}
	}
	return nil
}

func (p *misconfigProbe) serverVersion(target types.Target, resp *response) []types.Finding {
	server := resp.Header.Get("Server")
	if !strings.ContainsAny(server, "/.") {
		return nil
	}
	return []types.Finding{{
		Name:        "Server Version Disclosure",
		Severity:    types.SeverityLow,
		Description: "The Server header discloses version information.",
		Evidence:    "Server: " + server,
		URL:         target.URL,
		Remediation: "Strip version details from the Server header.",
		Metadata:    map[string]string{"server": server},
	}}
}

func (p *misconfigProbe) listing(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	var findings []types.Finding
	for _, dir := range listingDirs {
		if ctx.Err() != nil {
			return findings
		}
		testURL := joinPath(target, dir)
		progress.Notify(dir)

		resp, err := p.get(ctx, target, testURL)
		if err != nil {
			p.skip(testURL, err)
			continue
		}
		if resp.Status != http.StatusOK || !strings.Contains(resp.Body, "Index of") {
			continue
		}
		findings = append(findings, types.Finding{
			Name:        "Directory Listing Enabled",
			Severity:    types.SeverityMedium,
			Description: fmt.Sprintf("Directory listing is enabled for %s", dir),
			Evidence:    fmt.Sprintf("Found 'Index of' in response from %s", testURL),
			URL:         testURL,
			Remediation: "Disable automatic directory indexes.",
			Metadata:    map[string]string{"path": dir},
		})
	}
	return findings
}

func (p *misconfigProbe) methods(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	progress.Notify("OPTIONS")
	resp, err := p.do(ctx, target, request{Method: http.MethodOptions, URL: target.URL})
	if err != nil {
		p.skip("OPTIONS", err)
		return nil
	}
	allow := strings.ToUpper(resp.Header.Get("Allow"))
	if allow == "" {
		return nil
	}

	var found []string
	for _, m := range dangerousMethods {
		if strings.Contains(allow, m) {
			found = append(found, m)
		}
	}
	if len(found) == 0 {
		return nil
	}
	return []types.Finding{{
		Name:        "Dangerous HTTP Methods Enabled",
		Severity:    types.SeverityMedium,
		Description: fmt.Sprintf("Potentially dangerous HTTP methods are allowed: %s", strings.Join(found, ", ")),
		Evidence:    "Allow: " + resp.Header.Get("Allow"),
		URL:         target.URL,
		Remediation: "Allow only the methods the application needs.",
		Metadata:    map[string]string{"methods": strings.Join(found, ",")},
	}}
}

// cors sends crafted Origin headers and grades the most permissive answer
// per origin.
func (p *misconfigProbe) cors(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	var findings []types.Finding
	reported := map[string]bool{}

	for _, check := range corsChecks {
		if ctx.Err() != nil {
			return findings
		}
		progress.Notify(check.method + " Origin: " + check.origin)

		resp, err := p.do(ctx, target, request{
			Method:     check.method,
			URL:        target.URL,
			Header:     map[string]string{"Origin": check.origin},
			NoRedirect: true,
		})
		if err != nil {
			p.skip(check.origin, err)
			continue
		}

		f := gradeCORS(check.origin, resp.Header)
		if f == nil || reported[f.Name] {
			continue
		}
		reported[f.Name] = true
		f.URL = target.URL
		f.Evidence = fmt.Sprintf("%s %s Origin: %s -> Access-Control-Allow-Origin: %s, Access-Control-Allow-Credentials: %s",
			check.method, target.URL, check.origin,
			resp.Header.Get("Access-Control-Allow-Origin"), resp.Header.Get("Access-Control-Allow-Credentials"))
		f.Metadata = map[string]string{"origin": check.origin, "method": check.method}
		findings = append(findings, *f)
	}
	return findings
}

func gradeCORS(origin string, h http.Header) *types.Finding {
	acao := h.Get("Access-Control-Allow-Origin")
	if acao == "" {
		return nil
	}
	creds := strings.EqualFold(h.Get("Access-Control-Allow-Credentials"), "true")

	switch {
	case creds && (acao == "*" || acao == origin):
		return &types.Finding{
			Name:        "CORS Credentials With Permissive Origin",
			Severity:    types.SeverityCritical,
			Description: "Credentials are allowed together with a wildcard or reflected origin, so any site can make authenticated cross-origin reads.",
			Remediation: "Allow credentials only for an explicit list of trusted origins.",
		}
	case origin == evilOrigin && acao == origin:
		return &types.Finding{
			Name:        "CORS Origin Reflected",
			Severity:    types.SeverityHigh,
			Description: "The server reflects arbitrary Origin values in Access-Control-Allow-Origin.",
			Remediation: "Allow only specific trusted origins instead of echoing the request origin.",
		}
	case origin == "null" && acao == "null":
		return &types.Finding{
			Name:        "CORS Allows Null Origin",
			Severity:    types.SeverityMedium,
			Description: "Sandboxed iframes and data: URIs send a null origin, which this server trusts.",
			Remediation: "Never list null as an allowed origin.",
		}
	case acao == "*":
		return &types.Finding{
			Name:        "CORS Wildcard Origin",
			Severity:    types.SeverityLow,
			Description: "Any origin may read responses from this endpoint.",
			Remediation: "Restrict Access-Control-Allow-Origin unless the resource is truly public.",
		}
	}
	return nil
}
