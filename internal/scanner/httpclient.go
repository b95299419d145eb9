package scanner

import (
	"crypto/tls"
	"errors"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 surface/1.0"

// MaxBodySize bounds how much of a response body is read.
const MaxBodySize = 1 << 20 // 1 MB

// NewHTTPClient builds a client from opts. maxRedirects of 0 returns the first
// response without following redirects.
func NewHTTPClient(opts Options, maxRedirects int) *http.Client {
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 5 * time.Second
	}

	base := http.DefaultTransport.(*http.Transport).Clone()
	base.TLSClientConfig = &tls.Config{InsecureSkipVerify: opts.InsecureTLS}
	base.MaxIdleConnsPerHost = 16

	rt := &scanTransport{base: base, userAgent: opts.UserAgent}
	if opts.RateLimit > 0 {
		burst := int(opts.RateLimit)
		if burst < 1 {
			burst = 1
		}
		rt.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return &http.Client{
		Timeout:   timeout,
		Transport: rt,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return http.ErrUseLastResponse
			}
			return nil
		},
	}
}

// scanTransport sets the user agent and paces requests.
type scanTransport struct {
	base      http.RoundTripper
	userAgent string
	limiter   *rate.Limiter
}

func (t *scanTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(req.Context()); err != nil {
			return nil, err
		}
	}
	if req.Header.Get("User-Agent") == "" {
		ua := t.userAgent
		if ua == "" {
			ua = DefaultUserAgent
		}
		req = req.Clone(req.Context())
		req.Header.Set("User-Agent", ua)
	}
	return t.base.RoundTrip(req)
}

// ReadBody reads at most MaxBodySize bytes and closes the body.
func ReadBody(resp *http.Response) ([]byte, error) {
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, MaxBodySize))
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) {
		return body, err
	}
	return body, nil
}
