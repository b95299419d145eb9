package subdomain

import (
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// FallbackServer is used when no resolver is configured or readable.
const FallbackServer = "8.8.8.8:53"

// Resolver answers whether a name has address records.
type Resolver struct {
	client  *dns.Client
	servers []string
}

// NewResolver creates a resolver querying server ("host:port"). An empty
// server means the system resolvers from /etc/resolv.conf, falling back to
// FallbackServer.
func NewResolver(server string, timeout time.Duration) *Resolver {
	if timeout == 0 {
		timeout = 3 * time.Second
	}

	var servers []string
	if server != "" {
		if _, _, err := net.SplitHostPort(server); err != nil {
			server = net.JoinHostPort(server, "53")
		}
		servers = []string{server}
	} else if cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf"); err == nil {
		for _, s := range cfg.Servers {
			servers = append(servers, net.JoinHostPort(s, cfg.Port))
		}
	}
	if len(servers) == 0 {
		servers = []string{FallbackServer}
	}

	return &Resolver{
		client:  &dns.Client{Net: "udp", Timeout: timeout},
		servers: servers,
	}
}

// Exists reports whether name resolves to an A, AAAA, or CNAME record.
// NXDOMAIN and empty answers are (false, nil); transport failures on every
// server return an error.
func (r *Resolver) Exists(ctx context.Context, name string) (bool, error) {
	for _, qtype := range []uint16{dns.TypeA, dns.TypeAAAA} {
		ok, err := r.query(ctx, name, qtype)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

func (r *Resolver) query(ctx context.Context, name string, qtype uint16) (bool, error) {
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), qtype)
	m.RecursionDesired = true

	var lastErr error
	for _, server := range r.servers {
		in, _, err := r.client.ExchangeContext(ctx, m, server)
		if err != nil {
			lastErr = err
			continue
		}
		if in.Rcode != dns.RcodeSuccess {
			return false, nil
		}
		for _, rr := range in.Answer {
			switch rr.(type) {
			case *dns.A, *dns.AAAA, *dns.CNAME:
				return true, nil
			}
		}
		return false, nil
	}
	return false, fmt.Errorf("querying %s: %w", strings.TrimSuffix(name, "."), lastErr)
}
