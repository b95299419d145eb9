package vuln

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

var tokenPattern = regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]*`)

var symmetricAlgs = map[string]bool{"HS256": true, "HS384": true, "HS512": true}

type jwtProbe struct{ base }

// NewJWT creates the JWT algorithm probe.
func NewJWT(cfg Config) scanner.Probe {
	return &jwtProbe{newBase(cfg, JWT, "JWT algorithm weaknesses")}
}

// tokenSource is a token and where it was seen.
type tokenSource struct {
	token string
	where string
}

func (p *jwtProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var sources []tokenSource
	if tok, ok := bearer(target.Headers["Authorization"]); ok {
		sources = append(sources, tokenSource{tok, "request Authorization header"})
	}

	resp, err := p.get(ctx, target, target.URL)
	if err != nil {
		p.skip(target.URL, err)
	} else {
		if tok, ok := bearer(resp.Header.Get("Authorization")); ok {
			sources = append(sources, tokenSource{tok, "response Authorization header"})
		}
		for _, c := range resp.Header.Values("Set-Cookie") {
			if tok := tokenPattern.FindString(c); tok != "" {
				sources = append(sources, tokenSource{tok, "Set-Cookie"})
			}
		}
		if tok := tokenPattern.FindString(resp.Body); tok != "" {
			sources = append(sources, tokenSource{tok, "response body"})
		}
	}

	var findings []types.Finding
	reported := map[string]bool{}
	for _, src := range sources {
		progress.Notify(src.where)

		alg, err := tokenAlg(src.token)
		if err != nil {
			p.log.Debug("undecodable token", "where", src.where, "error", err)
			continue
		}

		var f types.Finding
		switch {
		case strings.EqualFold(alg, "none"):
			f = types.Finding{
				Name:        "JWT None Algorithm",
				Severity:    types.SeverityCritical,
				Description: "JWT uses the 'none' algorithm, so signatures are not verified.",
				Remediation: "Reject unsigned tokens and pin the accepted algorithms on the server.",
			}
		case symmetricAlgs[alg]:
			f = types.Finding{
				Name:        "JWT Symmetric Algorithm",
				Severity:    types.SeverityMedium,
				Description: "JWT uses an HMAC algorithm, which may be open to key confusion or offline secret brute forcing.",
				Remediation: "Prefer asymmetric algorithms (RS256, ES256) and use long random secrets for HMAC.",
			}
		default:
			continue
		}
		if reported[f.Name] {
			continue
		}
		reported[f.Name] = true

		f.Evidence = fmt.Sprintf("Algorithm %s in token from %s", alg, src.where)
		f.URL = target.URL
		f.Metadata = map[string]string{"alg": alg, "source": src.where}
		findings = append(findings, f)
	}

	return findings, nil
}

func bearer(v string) (string, bool) {
	const prefix = "Bearer "
	if len(v) <= len(prefix) || !strings.EqualFold(v[:len(prefix)], prefix) {
		return "", false
	}
	return strings.TrimSpace(v[len(prefix):]), true
}

// tokenAlg decodes the header segment of a compact JWT.
func tokenAlg(token string) (string, error) {
	head, _, ok := strings.Cut(token, ".")
	if !ok {
		return "", fmt.Errorf("not a compact token")
	}
	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(head, "="))
	if err != nil {
		return "", fmt.Errorf("decoding header: %w", err)
	}
	var hdr struct {
		Alg string `json:"alg"`
	}
	if err := json.Unmarshal(raw, &hdr); err != nil {
		return "", fmt.Errorf("parsing header: %w", err)
	}
	return hdr.Alg, nil
}
