package scanner

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/buemura/surface/pkg/types"
)

var (
	// ErrProbeNotFound is returned when a probe name is not registered.
	ErrProbeNotFound = errors.New("probe not found")
	// ErrUnresolvable is returned by probers when the target host has no address.
	ErrUnresolvable = errors.New("host cannot be resolved")
)

// ProgressFunc receives the item a probe is currently testing, usually a
// payload. Implementations must return quickly.
type ProgressFunc func(item string)

// Probe is implemented by every vulnerability check module. Run must not
// panic and only returns an error when the probe cannot start at all;
// per-payload failures are skipped.
type Probe interface {
	Name() string
	Description() string
	Run(ctx context.Context, target types.Target, progress ProgressFunc) ([]types.Finding, error)
}

// Options holds execution parameters shared by probers and probes.
type Options struct {
	Concurrency int
	Timeout     time.Duration
	Verbose     bool
	UserAgent   string
	InsecureTLS bool
	// RateLimit caps outgoing HTTP requests per second. Zero disables it.
	RateLimit float64
	Logger    *slog.Logger
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		Concurrency: 10,
		Timeout:     5 * time.Second,
		UserAgent:   DefaultUserAgent,
		InsecureTLS: true,
	}
}

// Log returns the configured logger or the process default.
func (o Options) Log() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return slog.Default()
}

// Notify calls fn when it is set.
func (fn ProgressFunc) Notify(item string) {
	if fn != nil {
		fn(item)
	}
}
