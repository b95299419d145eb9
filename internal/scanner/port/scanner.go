package port

import (
	"context"
	"fmt"
	"net"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// DefaultTimeout is the per-port connect timeout.
const DefaultTimeout = time.Second

// Prober discovers open TCP ports with connect() probes.
type Prober struct {
	opts     scanner.Options
	services map[int]string
}

// New creates a port prober. A zero opts.Timeout means DefaultTimeout.
func New(opts scanner.Options) *Prober {
	if opts.Timeout == 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 20
	}
	return &Prober{opts: opts, services: ServiceMap}
}

// WithServices replaces the port to service name table.
func (p *Prober) WithServices(services map[int]string) *Prober {
	p.services = services
	return p
}

// Probe connects to every candidate port on host and returns the open ones,
// sorted by port. onFound, if set, is called for each open port as soon as it
// is found. An empty candidate list means CommonPorts.
func (p *Prober) Probe(ctx context.Context, host string, ports []int, onFound func(types.OpenPort)) ([]types.OpenPort, error) {
	log := p.opts.Log().With("prober", "port", "host", host)
	open := []types.OpenPort{}

	if len(ports) == 0 {
		ports = CommonPorts
	}

	if err := resolve(ctx, host, p.opts.Timeout*3); err != nil {
		log.Warn("port scan skipped", "error", err)
		return open, err
	}

	var mu sync.Mutex
	dialer := &net.Dialer{Timeout: p.opts.Timeout}

	err := scanner.ForEach(ctx, p.opts.Concurrency, ports, func(port int) {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		conn, err := dialer.DialContext(ctx, "tcp", addr)
		if err != nil {
			return
		}
		conn.Close()

		hit := types.OpenPort{Port: port, Service: p.serviceName(port), State: "open"}
		log.Debug("open port", "port", port, "service", hit.Service)

		mu.Lock()
		open = append(open, hit)
		mu.Unlock()

		if onFound != nil {
			onFound(hit)
		}
	})
	if err != nil {
		return open, err
	}

	sort.Slice(open, func(i, j int) bool { return open[i].Port < open[j].Port })
	log.Info("port scan complete", "open", len(open), "probed", len(ports))
	return open, nil
}

func (p *Prober) serviceName(port int) string {
	if svc, ok := p.services[port]; ok {
		return svc
	}
	return types.Unknown
}

// resolve fails when host is neither an IP nor resolvable.
func resolve(ctx context.Context, host string, timeout time.Duration) error {
	if host == "" {
		return fmt.Errorf("%w: empty host", scanner.ErrUnresolvable)
	}
	if net.ParseIP(host) != nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupHost(ctx, host)
	if err != nil || len(addrs) == 0 {
		return fmt.Errorf("%w: %s: %v", scanner.ErrUnresolvable, host, err)
	}
	return nil
}
