package fingerprint

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() scanner.Options {
	opts := scanner.DefaultOptions()
	opts.Timeout = 2 * time.Second
	return opts
}

func detect(t *testing.T, h http.HandlerFunc) types.TechStack {
	t.Helper()
	srv := httptest.NewServer(h)
	defer srv.Close()

	target, err := types.ParseTarget(srv.URL)
	require.NoError(t, err)
	return New(testOptions()).Detect(context.Background(), target)
}

func TestDetect_NginxEmptyBody(t *testing.T) {
	stack := detect(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "nginx")
	})

	assert.Equal(t, "Nginx", stack.Server)
	assert.Equal(t, types.Unknown, stack.Backend)
	assert.Equal(t, types.Unknown, stack.Database)
	assert.Equal(t, types.Unknown, stack.Frontend)
	assert.Equal(t, types.Unknown, stack.CMS)
	assert.Equal(t, []string{types.Unknown}, stack.Languages)
	assert.Empty(t, stack.Frameworks)
	assert.Empty(t, stack.Cookies)
	for _, name := range SecurityHeaders {
		assert.Equal(t, types.Missing, stack.SecurityHeaders[name])
	}
}

func TestDetect_PHPWordPress(t *testing.T) {
	stack := detect(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Server", "Apache/2.4.41 (Ubuntu)")
		w.Header().Set("X-Powered-By", "PHP/7.4.3")
		w.Header().Set("X-Frame-Options", "DENY")
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "abc", HttpOnly: true, SameSite: http.SameSiteLaxMode})
		w.Write([]byte(`<html><head><link href="/wp-content/themes/x/style.css"><script src="jquery.min.js"></script></head><body><a href="/index.php">home</a></body></html>`))
	})

	assert.Equal(t, "Apache", stack.Server)
	assert.Equal(t, "PHP", stack.Backend)
	assert.Equal(t, "MySQL", stack.Database)
	assert.Equal(t, "WordPress", stack.CMS)
	assert.Contains(t, stack.Languages, "PHP")
	assert.Contains(t, stack.Frameworks, "jQuery")
	assert.Equal(t, "DENY", stack.SecurityHeaders["X-Frame-Options"])
	assert.Equal(t, types.Missing, stack.SecurityHeaders["Content-Security-Policy"])

	require.Contains(t, stack.Cookies, "PHPSESSID")
	c := stack.Cookies["PHPSESSID"]
	assert.True(t, c.HTTPOnly)
	assert.False(t, c.Secure)
	assert.Equal(t, "Lax", c.SameSite)
}

func TestDetect_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	target, err := types.ParseTarget(url)
	require.NoError(t, err)

	stack := New(testOptions()).Detect(context.Background(), target)
	assert.Equal(t, types.DefaultTechStack(), stack)
}

func TestAnalyze_Backend(t *testing.T) {
	tests := []struct {
		name      string
		poweredBy string
		cookies   []*http.Cookie
		body      string
		want      string
		database  string
	}{
		{"express header", "Express", nil, "", "Express.js", "MongoDB/MySQL"},
		{"aspnet header", "ASP.NET", nil, "", "ASP.NET", "MSSQL"},
		{"django cookie", "", []*http.Cookie{{Name: "csrftoken", Value: "x"}}, "", "Django", "PostgreSQL/MySQL"},
		{"laravel cookie", "", []*http.Cookie{{Name: "laravel_session", Value: "x"}}, "", "Laravel", "MySQL"},
		{"jsessionid cookie", "", []*http.Cookie{{Name: "JSESSIONID", Value: "x"}}, "", "Java/JSP", types.Unknown},
		{"flask body", "", nil, "<p>Powered by Flask</p>", "Flask", "PostgreSQL/SQLite"},
		{"nothing", "", nil, "<p>hello</p>", types.Unknown, types.Unknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := http.Header{}
			if tt.poweredBy != "" {
				h.Set("X-Powered-By", tt.poweredBy)
			}
			stack := Analyze(h, tt.cookies, tt.body)
			assert.Equal(t, tt.want, stack.Backend)
			assert.Equal(t, tt.database, stack.Database)
		})
	}
}

func TestAnalyze_BodyMarkerOutsideWindow(t *testing.T) {
	body := make([]byte, bodyWindow+10)
	for i := range body {
		body[i] = ' '
	}
	stack := Analyze(http.Header{}, nil, string(body)+"django")
	assert.Equal(t, types.Unknown, stack.Backend)
	assert.Contains(t, stack.Languages, "Python")
}

func TestAnalyze_Frontend(t *testing.T) {
	assert.Equal(t, "React", Analyze(http.Header{}, nil, `<div id="root" data-reactroot></div>`).Frontend)
	assert.Equal(t, "Angular", Analyze(http.Header{}, nil, `<div ng-app="x"></div>`).Frontend)
	assert.Equal(t, "Next.js", Analyze(http.Header{}, nil, `<div id="__NEXT_DATA__"></div>`).Frontend)
}

func TestAnalyze_MetaGenerator(t *testing.T) {
	body := `<html><head><meta name="Generator" content="Ghost 5.2"></head><body></body></html>`
	assert.Equal(t, "Ghost", Analyze(http.Header{}, nil, body).CMS)
}

func TestAnalyze_GraphQLFramework(t *testing.T) {
	stack := Analyze(http.Header{}, nil, `<script>fetch("/graphql")</script>`)
	assert.Equal(t, []string{"GraphQL"}, stack.Frameworks)
}

func TestAnalyze_ServerVerbatim(t *testing.T) {
	assert.Equal(t, "gunicorn", Analyze(http.Header{"Server": {"gunicorn"}}, nil, "").Server)
	assert.Equal(t, "IIS", Analyze(http.Header{"Server": {"Microsoft-IIS/10.0"}}, nil, "").Server)
}

func TestDecode_Latin1(t *testing.T) {
	raw := []byte{'c', 'a', 'f', 0xe9}
	assert.Equal(t, "café", decode(raw, "text/html; charset=iso-8859-1"))
}
