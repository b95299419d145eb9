package subdomain

import (
	"bufio"
	"context"
	_ "embed"
	"fmt"
	"net"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/buemura/surface/internal/scanner"
	"golang.org/x/net/idna"
)

//go:embed wordlist.txt
var defaultWordlist string

// Prober enumerates subdomains by resolving {label}.{base} candidates.
type Prober struct {
	opts     scanner.Options
	resolver *Resolver
}

// New creates a subdomain prober backed by resolver.
func New(opts scanner.Options, resolver *Resolver) *Prober {
	if opts.Concurrency < 1 {
		opts.Concurrency = 30
	}
	if resolver == nil {
		resolver = NewResolver("", opts.Timeout)
	}
	return &Prober{opts: opts, resolver: resolver}
}

// BaseDomain strips a leading "www." from host and converts it to its ASCII
// form.
func BaseDomain(host string) (string, error) {
	host = strings.TrimSuffix(strings.ToLower(strings.TrimSpace(host)), ".")
	host = strings.TrimPrefix(host, "www.")
	if host == "" {
		return "", fmt.Errorf("empty host")
	}
	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return "", fmt.Errorf("normalizing %q: %w", host, err)
	}
	return ascii, nil
}

// Probe resolves {label}.{base} for every label and returns the names that
// exist, sorted. onFound is called for each hit as it is discovered. An empty
// label list means the embedded wordlist. IP targets have no subdomains.
func (p *Prober) Probe(ctx context.Context, host string, labels []string, onFound func(string)) ([]string, error) {
	log := p.opts.Log().With("prober", "subdomain", "host", host)
	found := []string{}

	if net.ParseIP(host) != nil {
		log.Debug("subdomain enumeration skipped for IP target")
		return found, nil
	}

	base, err := BaseDomain(host)
	if err != nil {
		return found, err
	}

	ok, err := p.resolver.Exists(ctx, host)
	if err != nil || !ok {
		err = fmt.Errorf("%w: %s", scanner.ErrUnresolvable, host)
		log.Warn("subdomain enumeration skipped", "error", err)
		return found, err
	}

	if len(labels) == 0 {
		labels = parseLines(defaultWordlist)
	}

	var mu sync.Mutex
	err = scanner.ForEach(ctx, p.opts.Concurrency, labels, func(label string) {
		name := label + "." + base
		exists, err := p.resolver.Exists(ctx, name)
		if err != nil || !exists {
			return
		}

		mu.Lock()
		found = append(found, name)
		mu.Unlock()

		log.Debug("subdomain found", "name", name)
		if onFound != nil {
			onFound(name)
		}
	})
	if err != nil {
		return found, err
	}

	sort.Strings(found)
	log.Info("subdomain enumeration complete", "found", len(found), "base", base)
	return found, nil
}

// LoadWordlist loads labels from the given file. If path is empty, it falls
// back to the embedded default wordlist.
func LoadWordlist(path string) ([]string, error) {
	if path == "" {
		return parseLines(defaultWordlist), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading subdomain wordlist: %w", err)
	}

	return parseLines(string(data)), nil
}

// parseLines splits text into non-empty, trimmed lines, skipping comments.
func parseLines(text string) []string {
	var lines []string
	sc := bufio.NewScanner(strings.NewReader(text))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}
