package vuln

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// secretPattern is one class of sensitive data looked for in bodies.
type secretPattern struct {
	Name     string
	Pattern  *regexp.Regexp
	Severity types.Severity
	// MaxHits skips the class when there are more matches, since long lists
	// of emails or addresses are usually legitimate content.
	MaxHits int
}

var secretPatterns = []secretPattern{
	{"API Key", regexp.MustCompile(`(?i)(api[_-]?key|apikey|api[_-]?secret)["']?\s*[:=]\s*["']?([a-zA-Z0-9_\-]{20,})`), types.SeverityHigh, 0},
	{"AWS Key", regexp.MustCompile(`AKIA[0-9A-Z]{16}`), types.SeverityHigh, 0},
	{"Private Key", regexp.MustCompile(`-----BEGIN (RSA |EC )?PRIVATE KEY-----`), types.SeverityHigh, 0},
	{"Password", regexp.MustCompile(`(?i)(password|passwd|pwd)["']?\s*[:=]\s*["']([^"'\s]{6,})`), types.SeverityHigh, 0},
	{"JWT Token", tokenPattern, types.SeverityMedium, 0},
	{"Database URL", regexp.MustCompile(`(?i)(mysql|postgresql|mongodb)://[^\s<>"]+`), types.SeverityMedium, 0},
	{"Email", regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`), types.SeverityMedium, 10},
	{"IP Address", regexp.MustCompile(`\b(?:[0-9]{1,3}\.){3}[0-9]{1,3}\b`), types.SeverityMedium, 5},
}

var sensitiveFiles = []string{
	"/.env",
	"/config.json",
	"/database.yml",
	"/secrets.yml",
	"/.git/config",
	"/web.config",
	"/WEB-INF/web.xml",
	"/server.xml",
}

type exposureProbe struct {
	base
	timeout time.Duration
}

// NewDataExposure creates the sensitive data exposure probe.
func NewDataExposure(cfg Config) scanner.Probe {
	timeout := cfg.Options.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &exposureProbe{
		base:    newBase(cfg, DataExposure, "Secrets in responses, exposed files and transport security"),
		timeout: timeout,
	}
}

func (p *exposureProbe) Run(ctx context.Context, target types.Target, progress scanner.ProgressFunc) ([]types.Finding, error) {
	var findings []types.Finding

	progress.Notify(target.URL)
	if resp, err := p.get(ctx, target, target.URL); err != nil {
		p.skip(target.URL, err)
	} else {
		findings = append(findings, scanSecrets(target.URL, resp.Body)...)
	}

	findings = append(findings, p.files(ctx, target, progress)...)

	switch target.Scheme {
	case "http":
		findings = append(findings, types.Finding{
			Name:        "Unencrypted Communication",
			Severity:    types.SeverityHigh,
			Description: "The target is served over HTTP, so data travels in cleartext.",
			Evidence:    "URL scheme: http",
			URL:         target.URL,
			Remediation: "Serve the application over HTTPS only and redirect plain HTTP.",
		})
	case "https":
		progress.Notify("tls")
		findings = append(findings, p.transport(ctx, target)...)
	}

	return findings, nil
}

func scanSecrets(pageURL, body string) []types.Finding {
	var findings []types.Finding
	for _, sp := range secretPatterns {
		matches := sp.Pattern.FindAllString(body, -1)
		if len(matches) == 0 || (sp.MaxHits > 0 && len(matches) > sp.MaxHits) {
			continue
		}
		findings = append(findings, types.Finding{
			Name:        "Sensitive Data Exposure: " + sp.Name,
			Severity:    sp.Severity,
			Description: sp.Name + " detected in response",
			Evidence:    fmt.Sprintf("Found %d instance(s). First match: %s", len(matches), truncate(matches[0], 50)),
			URL:         pageURL,
			Remediation: "Remove secrets and personal data from responses and rotate anything already exposed.",
			Metadata: map[string]string{
				"type":    sp.Name,
				"matches": strconv.Itoa(len(matches)),
			},
		})
	}
	return findings
}

func (p *exposureProbe) files(ctx context.Context, target types.Target, progress scanner.ProgressFunc) []types.Finding {
	var findings []types.Finding
	for _, path := range sensitiveFiles {
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
		if resp.Status != http.StatusOK || len(resp.Body) <= 10 {
			continue
		}
		findings = append(findings, types.Finding{
			Name:        "Sensitive File Exposure",
			Severity:    types.SeverityCritical,
			Description: fmt.Sprintf("Sensitive configuration file accessible: %s", path),
			Evidence:    "File contents (first 100 chars): " + truncate(resp.Body, 100),
			URL:         testURL,
			Remediation: "Remove the file from the web root or deny access to it.",
			Metadata:    map[string]string{"path": path},
		})
	}
	return findings
}

// transport inspects the TLS handshake: deprecated protocol support and the
// leaf certificate.
func (p *exposureProbe) transport(ctx context.Context, target types.Target) []types.Finding {
	addr := net.JoinHostPort(target.Host, strconv.Itoa(target.Port()))
	var findings []types.Finding

	if state, err := p.handshake(ctx, addr, tls.VersionTLS10, tls.VersionTLS11); err == nil {
		name := tlsVersionName(state.Version)
		findings = append(findings, types.Finding{
			Name:        "Deprecated TLS Version Supported",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("The server accepts %s, which is deprecated and insecure.", name),
			Evidence:    "Negotiated protocol version: " + name,
			URL:         target.URL,
			Remediation: "Disable TLS 1.0 and 1.1 and require TLS 1.2 or higher.",
			Metadata:    map[string]string{"tls_version": name},
		})
	}

	state, err := p.handshake(ctx, addr, 0, 0)
	if err != nil {
		p.skip(addr, err)
		return findings
	}
	if len(state.PeerCertificates) == 0 {
		return findings
	}
	cert := state.PeerCertificates[0]

	if time.Now().After(cert.NotAfter) {
		findings = append(findings, types.Finding{
			Name:        "Certificate Expired",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("The certificate expired on %s.", cert.NotAfter.Format(time.RFC3339)),
			Evidence:    "NotAfter: " + cert.NotAfter.Format(time.RFC3339),
			URL:         target.URL,
			Remediation: "Renew the certificate immediately.",
			Metadata:    map[string]string{"subject": cert.Subject.String()},
		})
	}
	if err := cert.VerifyHostname(target.Host); err != nil {
		findings = append(findings, types.Finding{
			Name:        "Certificate Hostname Mismatch",
			Severity:    types.SeverityHigh,
			Description: fmt.Sprintf("The certificate does not cover %q.", target.Host),
			Evidence:    fmt.Sprintf("CN: %s, SANs: %v", cert.Subject.CommonName, cert.DNSNames),
			URL:         target.URL,
			Remediation: "Obtain a certificate that covers the target hostname.",
			Metadata:    map[string]string{"hostname": target.Host},
		})
	}
	if selfSigned(cert, state.PeerCertificates) {
		findings = append(findings, types.Finding{
			Name:        "Self-Signed Certificate",
			Severity:    types.SeverityMedium,
			Description: "The certificate is self-signed and will not be trusted by clients.",
			Evidence:    fmt.Sprintf("Issuer: %s, Subject: %s", cert.Issuer, cert.Subject),
			URL:         target.URL,
			Remediation: "Use a certificate issued by a trusted certificate authority.",
		})
	}
	return findings
}

// handshake dials addr with the given version bounds. Zero bounds use the
// library defaults.
func (p *exposureProbe) handshake(ctx context.Context, addr string, minVer, maxVer uint16) (tls.ConnectionState, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	d := tls.Dialer{Config: &tls.Config{
		InsecureSkipVerify: true,
		MinVersion:         minVer,
		MaxVersion:         maxVer,
	}}
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return tls.ConnectionState{}, err
	}
	defer conn.Close()
	return conn.(*tls.Conn).ConnectionState(), nil
}

func selfSigned(cert *x509.Certificate, chain []*x509.Certificate) bool {
	return len(chain) == 1 && cert.Issuer.String() == cert.Subject.String()
}

func tlsVersionName(v uint16) string {
	switch v {
	case tls.VersionTLS10:
		return "TLS 1.0"
	case tls.VersionTLS11:
		return "TLS 1.1"
	case tls.VersionTLS12:
		return "TLS 1.2"
	case tls.VersionTLS13:
		return "TLS 1.3"
	}
	return fmt.Sprintf("unknown (0x%04x)", v)
}
