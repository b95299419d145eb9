package vuln

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

var protectedPaths = []string{
	"/admin",
	"/api/admin",
	"/api/users",
	"/api/user/1",
	"/dashboard",
	"/config",
	"/.env",
	"/api/settings",
}

var sensitiveIndicators = []string{"admin", "user", "password", "token", "config", "apikey"}

var profileIDs = []string{"1", "2", "100", "999"}

var methodBypassPaths = []string{"/api/delete", "/api/admin/users"}

var bypassMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodDelete,
	http.MethodPatch,
}

// bypassPayloads are Authorization header values a broken auth layer may
// accept in place of a real credential.
var bypassPayloads = []struct {
	Name  string
	Value string
}{
	{"empty header", ""},
	{"Bearer null", "Bearer null"},
	{"Bearer undefined", "Bearer undefined"},
	{"Bearer empty", "Bearer "},
	{"Basic empty", "Basic " + base64.StdEncoding.EncodeToString([]byte(":"))},
}

type accessProbe struct{ base }

// NewAccessControl creates the broken access control probe.
func NewAccessControl(cfg Config) scanner.Probe {
	return &accessProbe{newBase(cfg, AccessControl, "Broken access control and auth bypass")}
}

func (p *accessProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	// Every request here is anonymous.
	anon := target
	anon.Headers = nil

	var findings []types.Finding
	findings = append(findings, p.unauthenticated(ctx, anon, progress)...)
	findings = append(findings, p.horizontal(ctx, anon, progress)...)
	findings = append(findings, p.methodBypass(ctx, anon, progress)...)
	return findings, nil
}

// unauthenticated requests protected paths without credentials. Paths that
// do demand credentials are retried with bypass Authorization values.
func (p *accessProbe) unauthenticated(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	var findings []types.Finding
	for _, path := range protectedPaths {
		if ctx.Err() != nil {
			return findings
		}
		testURL := joinPath(target, path)
		progress.Notify(path)

		resp, err := p.do(ctx, target, request{URL: testURL, NoRedirect: true})
		if err != nil {
			p.skip(testURL, err)
			continue
		}

		switch resp.Status {
		case http.StatusOK:
			ind, ok := firstIndicator(resp.Body, "", sensitiveIndicators)
			if !ok {
				continue
			}
			findings = append(findings, types.Finding{
				Name:        "Broken Access Control",
				Severity:    types.SeverityHigh,
				Description: fmt.Sprintf("Unauthenticated access to protected resource: %s", path),
				Evidence:    fmt.Sprintf("GET %s without credentials returned 200 containing %q", testURL, ind),
				URL:         testURL,
				Remediation: "Require authentication and authorization on every sensitive route.",
				Metadata: map[string]string{
					"path":  path,
					"check": "no-auth",
				},
			})
		case http.StatusUnauthorized, http.StatusForbidden:
			findings = append(findings, p.authBypass(ctx, target, testURL, resp.Status)...)
		}
	}
	return findings
}

func (p *accessProbe) authBypass(ctx context.Context, target types.Target, testURL string, status int) []types.Finding {
	var findings []types.Finding
	for _, payload := range bypassPayloads {
		if ctx.Err() != nil {
			return findings
		}
		resp, err := p.do(ctx, target, request{
			URL:        testURL,
			Header:     map[string]string{"Authorization": payload.Value},
			NoRedirect: true,
		})
		if err != nil {
			p.skip(payload.Name, err)
			continue
		}
		if resp.Status != http.StatusOK {
			continue
		}
		findings = append(findings, types.Finding{
			Name:        "Authentication Bypass",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("The endpoint accepted Authorization value %q in place of a valid credential.", payload.Name),
			Evidence:    fmt.Sprintf("GET %s returned %d without credentials and 200 with Authorization: %q", testURL, status, payload.Value),
			URL:         testURL,
			Remediation: "Validate tokens server-side and reject null, empty, or malformed credentials.",
			Metadata: map[string]string{
				"bypass_method": payload.Name,
				"check":         "auth-bypass",
			},
		})
	}
	return findings
}

// horizontal reads other users' profiles by id.
func (p *accessProbe) horizontal(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	for _, uid := range profileIDs {
		if ctx.Err() != nil {
			return nil
		}
		testURL := joinPath(target, "/api/user/"+uid+"/profile")
		progress.Notify(testURL)

		resp, err := p.get(ctx, target, testURL)
		if err != nil {
			p.skip(testURL, err)
			continue
		}
		if resp.Status != http.StatusOK || len(resp.Body) <= 50 {
			continue
		}
		return []types.Finding{{
			Name:        "Horizontal Privilege Escalation",
			Severity:    types.SeverityHigh,
			Description: "Another user's profile can be read without an authorization check.",
			Evidence:    fmt.Sprintf("GET %s without credentials returned 200 (%d bytes)", testURL, len(resp.Body)),
			URL:         testURL,
			Remediation: "Bind object access to the authenticated principal.",
			Metadata: map[string]string{
				"user_id": uid,
				"check":   "horizontal",
			},
		}}
	}
	return nil
}

// methodBypass tries each verb against endpoints that should reject anonymous calls.
func (p *accessProbe) methodBypass(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	var findings []types.Finding
	for _, path := range methodBypassPaths {
		testURL := joinPath(target, path)
		for _, method := range bypassMethods {
			if ctx.Err() != nil {
				return findings
			}
			progress.Notify(method + " " + path)

			resp, err := p.do(ctx, target, request{Method: method, URL: testURL, NoRedirect: true})
			if err != nil {
				p.skip(testURL, err)
				continue
			}
			if resp.Status != http.StatusOK && resp.Status != http.StatusCreated && resp.Status != http.StatusNoContent {
				continue
			}
			findings = append(findings, types.Finding{
				Name:        "HTTP Method Bypass",
				Severity:    types.SeverityMedium,
				Description: fmt.Sprintf("Protected endpoint accessible via %s method", method),
				Evidence:    fmt.Sprintf("%s %s returned %d", method, testURL, resp.Status),
				URL:         testURL,
				Remediation: "Enforce the same authorization rules for every HTTP method on a route.",
				Metadata: map[string]string{
					"method": strings.ToUpper(method),
					"status": strconv.Itoa(resp.Status),
					"check":  "method-bypass",
				},
			})
			break
		}
	}
	return findings
}
