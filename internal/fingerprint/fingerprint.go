// Package fingerprint derives a target's technology stack from a single
// HTTP response.
package fingerprint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

const maxRedirects = 3

// bodyWindow bounds the body prefix used for backend markers.
const bodyWindow = 1000

// SecurityHeaders are the response headers recorded in every stack.
var SecurityHeaders = []string{
	"X-Frame-Options",
	"X-Content-Type-Options",
	"Strict-Transport-Security",
	"Content-Security-Policy",
	"X-XSS-Protection",
}

var databaseByBackend = map[string]string{
	"Django":     "PostgreSQL/MySQL",
	"Laravel":    "MySQL",
	"PHP":        "MySQL",
	"ASP.NET":    "MSSQL",
	"Express.js": "MongoDB/MySQL",
	"Flask":      "PostgreSQL/SQLite",
}

type frameworkPattern struct {
	name    string
	pattern *regexp.Regexp
}

var frameworkPatterns = []frameworkPattern{
	{"Bootstrap", regexp.MustCompile(`bootstrap`)},
	{"jQuery", regexp.MustCompile(`jquery`)},
	{"Tailwind", regexp.MustCompile(`tailwind`)},
	{"MaterialUI", regexp.MustCompile(`material-ui`)},
	{"GraphQL", regexp.MustCompile(`graphql`)},
}

// Fingerprinter issues one GET against the target and inspects the response.
type Fingerprinter struct {
	opts   scanner.Options
	client *http.Client
}

// New creates a fingerprinter that follows up to three redirects.
func New(opts scanner.Options) *Fingerprinter {
	return &Fingerprinter{opts: opts, client: scanner.NewHTTPClient(opts, maxRedirects)}
}

// Detect returns the technology stack of target. Any request failure yields
// types.DefaultTechStack; Detect never fails.
func (f *Fingerprinter) Detect(ctx context.Context, target types.Target) types.TechStack {
	log := f.opts.Log().With("component", "fingerprint", "url", target.URL)

	stack, err := f.detect(ctx, target)
	if err != nil {
		log.Warn("technology detection failed", "error", err)
		return types.DefaultTechStack()
	}

	log.Info("technology detection complete", "server", stack.Server, "backend", stack.Backend)
	return stack
}

func (f *Fingerprinter) detect(ctx context.Context, target types.Target) (types.TechStack, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return types.TechStack{}, fmt.Errorf("creating request: %w", err)
	}
	target.ApplyHeaders(req)

	resp, err := f.client.Do(req)
	if err != nil {
		return types.TechStack{}, fmt.Errorf("GET %s: %w", target.URL, err)
	}

	raw, err := scanner.ReadBody(resp)
	if err != nil {
		return types.TechStack{}, fmt.Errorf("reading body: %w", err)
	}

	return Analyze(resp.Header, resp.Cookies(), decode(raw, resp.Header.Get("Content-Type"))), nil
}

// Analyze applies the detection rules to a response.
func Analyze(header http.Header, cookies []*http.Cookie, body string) types.TechStack {
	lower := strings.ToLower(body)
	poweredBy := strings.ToLower(header.Get("X-Powered-By"))

	backend := detectBackend(poweredBy, cookies, lower)
	database, ok := databaseByBackend[backend]
	if !ok {
		database = types.Unknown
	}

	return types.TechStack{
		Server:          detectServer(header.Get("Server")),
		Backend:         backend,
		Database:        database,
		Frontend:        detectFrontend(body, lower),
		CMS:             detectCMS(body, lower),
		Languages:       detectLanguages(poweredBy, lower),
		Frameworks:      detectFrameworks(lower),
		SecurityHeaders: securityHeaders(header),
		Cookies:         cookieAttributes(cookies),
	}
}

func detectServer(server string) string {
	if server == "" {
		return types.Unknown
	}
	s := strings.ToLower(server)
	switch {
	case strings.Contains(s, "nginx"):
		return "Nginx"
	case strings.Contains(s, "apache"):
		return "Apache"
	case strings.Contains(s, "iis"), strings.Contains(s, "microsoft"):
		return "IIS"
	case strings.Contains(s, "cloudflare"):
		return "Cloudflare"
	}
	return server
}

func detectBackend(poweredBy string, cookies []*http.Cookie, lower string) string {
	switch {
	case strings.Contains(poweredBy, "php"):
		return "PHP"
	case strings.Contains(poweredBy, "asp.net"):
		return "ASP.NET"
	case strings.Contains(poweredBy, "express"):
		return "Express.js"
	}

	var jar strings.Builder
	for _, c := range cookies {
		jar.WriteString(strings.ToLower(c.Name + "=" + c.Value + ";"))
	}
	names := jar.String()
	switch {
	case strings.Contains(names, "django"), strings.Contains(names, "csrftoken"):
		return "Django"
	case strings.Contains(names, "laravel_session"):
		return "Laravel"
	case strings.Contains(names, "phpsessid"):
		return "PHP"
	case strings.Contains(names, "jsessionid"):
		return "Java/JSP"
	}

	head := lower
	if len(head) > bodyWindow {
		head = head[:bodyWindow]
	}
	switch {
	case strings.Contains(head, "django"):
		return "Django"
	case strings.Contains(head, "laravel"):
		return "Laravel"
	case strings.Contains(head, "flask"):
		return "Flask"
	}
	return types.Unknown
}

func detectFrontend(body, lower string) string {
	switch {
	case strings.Contains(lower, "react"), strings.Contains(body, "_app"):
		return "React"
	case strings.Contains(body, "ng-"), strings.Contains(lower, "angular"):
		return "Angular"
	case strings.Contains(lower, "vue"), strings.Contains(body, "v-"):
		return "Vue.js"
	case strings.Contains(body, "__next"), strings.Contains(body, "__NEXT"):
		return "Next.js"
	}
	return types.Unknown
}

func detectCMS(body, lower string) string {
	switch {
	case strings.Contains(lower, "wp-content"), strings.Contains(lower, "wordpress"):
		return "WordPress"
	case strings.Contains(lower, "joomla"):
		return "Joomla"
	case strings.Contains(lower, "drupal"):
		return "Drupal"
	case strings.Contains(lower, "shopify"):
		return "Shopify"
	}
	if gen := metaGenerator(body); gen != "" {
		return gen
	}
	return types.Unknown
}

// metaGenerator returns the product name from <meta name="generator">.
func metaGenerator(body string) string {
	z := html.NewTokenizer(strings.NewReader(body))
	for {
		switch z.Next() {
		case html.ErrorToken:
			return ""
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.Data == "body" {
				return ""
			}
			if tok.Data != "meta" {
				continue
			}
			var name, content string
			for _, a := range tok.Attr {
				switch strings.ToLower(a.Key) {
				case "name":
					name = strings.ToLower(a.Val)
				case "content":
					content = strings.TrimSpace(a.Val)
				}
			}
			if name == "generator" && content != "" {
				return strings.Fields(content)[0]
			}
		}
	}
}

func detectLanguages(poweredBy, lower string) []string {
	var langs []string
	if strings.Contains(poweredBy, "php") || strings.Contains(lower, ".php") {
		langs = append(langs, "PHP")
	}
	if strings.Contains(lower, "python") || strings.Contains(lower, "django") || strings.Contains(lower, "flask") {
		langs = append(langs, "Python")
	}
	if strings.Contains(poweredBy, "node") || strings.Contains(lower, "express") {
		langs = append(langs, "Node.js")
	}
	if strings.Contains(lower, "java") || strings.Contains(lower, "jsp") {
		langs = append(langs, "Java")
	}
	if strings.Contains(poweredBy, ".net") || strings.Contains(lower, "asp.net") {
		langs = append(langs, "C#/.NET")
	}
	if len(langs) == 0 {
		return []string{types.Unknown}
	}
	return langs
}

func detectFrameworks(lower string) []string {
	found := []string{}
	for _, fp := range frameworkPatterns {
		if fp.pattern.MatchString(lower) {
			found = append(found, fp.name)
		}
	}
	return found
}

func securityHeaders(header http.Header) map[string]string {
	out := make(map[string]string, len(SecurityHeaders))
	for _, name := range SecurityHeaders {
		if v := header.Get(name); v != "" {
			out[name] = v
		} else {
			out[name] = types.Missing
		}
	}
	return out
}

func cookieAttributes(cookies []*http.Cookie) map[string]types.CookieAttributes {
	out := make(map[string]types.CookieAttributes, len(cookies))
	for _, c := range cookies {
		out[c.Name] = types.CookieAttributes{
			Secure:   c.Secure,
			HTTPOnly: c.HttpOnly,
			SameSite: sameSite(c.SameSite),
		}
	}
	return out
}

func sameSite(mode http.SameSite) string {
	switch mode {
	case http.SameSiteLaxMode:
		return "Lax"
	case http.SameSiteStrictMode:
		return "Strict"
	default:
		return "None"
	}
}

// decode converts body to UTF-8 using the declared or sniffed charset.
func decode(raw []byte, contentType string) string {
	r, err := charset.NewReader(bytes.NewReader(raw), contentType)
	if err != nil {
		return string(raw)
	}
	out, err := io.ReadAll(r)
	if err != nil {
		return string(raw)
	}
	return string(out)
}
