// Package orchestrator drives a scan from reconnaissance through probe
// execution to a terminal state, publishing progress as it goes.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/buemura/surface/internal/metrics"
	"github.com/buemura/surface/internal/progress"
	"github.com/buemura/surface/internal/recon"
	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/internal/scanner/vuln"
	"github.com/buemura/surface/internal/store"
	"github.com/buemura/surface/pkg/types"
)

var (
	// ErrNotFound is returned for unknown scan ids.
	ErrNotFound = errors.New("scan not found")
	// ErrNotTerminal is returned when deleting a scan that is still active.
	ErrNotTerminal = errors.New("scan has not finished")
)

// errCancelled is the error recorded on a cancelled run.
var errCancelled = errors.New("scan cancelled")

// Recon produces the attack-surface profile of a target.
type Recon interface {
	Run(ctx context.Context, target types.Target, report recon.ReportFunc) types.Profile
}

// Selector picks probe names from a technology stack.
type Selector func(types.TechStack) []string

// Config wires a Manager. Nil Store, Events and Selector fall back to an
// in-memory store, a fresh broadcaster and vuln.Select.
type Config struct {
	Registry *scanner.Registry
	Recon    Recon
	Selector Selector
	Store    store.Store
	Events   *progress.Broadcaster
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// ProbeTimeout bounds a single probe run. Zero means no bound.
	ProbeTimeout time.Duration
}

// ScanRequest describes a scan to start. A non-empty Probes list replaces
// stack-based selection.
type ScanRequest struct {
	Target types.Target
	Probes []string
}

// Manager owns scan runs: it creates them, executes each on its own
// goroutine, and answers queries about them.
type Manager struct {
	mu   sync.RWMutex
	runs map[string]*run

	reg          *scanner.Registry
	recon        Recon
	selector     Selector
	store        store.Store
	events       *progress.Broadcaster
	metrics      *metrics.Metrics
	log          *slog.Logger
	probeTimeout time.Duration

	wg sync.WaitGroup
}

type run struct {
	id     string
	req    ScanRequest
	state  types.ScanRun
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a Manager.
func New(cfg Config) *Manager {
	if cfg.Registry == nil {
		cfg.Registry = scanner.NewRegistry()
	}
	if cfg.Store == nil {
		cfg.Store = store.NewMemory()
	}
	if cfg.Events == nil {
		cfg.Events = progress.New(progress.Options{Logger: cfg.Logger, OnDrop: cfg.Metrics.EventDropped})
	}
	if cfg.Selector == nil {
		cfg.Selector = vuln.Select
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Manager{
		runs:         make(map[string]*run),
		reg:          cfg.Registry,
		recon:        cfg.Recon,
		selector:     cfg.Selector,
		store:        cfg.Store,
		events:       cfg.Events,
		metrics:      cfg.Metrics,
		log:          cfg.Logger.With("component", "orchestrator"),
		probeTimeout: cfg.ProbeTimeout,
	}
}

// Events returns the broadcaster scans publish to.
func (m *Manager) Events() *progress.Broadcaster { return m.events }

// Probes returns every registered probe, sorted by name.
func (m *Manager) Probes() []scanner.Probe { return m.reg.All() }

// StartScan creates a PENDING run and executes it in the background. The
// run outlives ctx; use Cancel to stop it.
func (m *Manager) StartScan(ctx context.Context, req ScanRequest) (string, error) {
	if req.Target.URL == "" || req.Target.Host == "" {
		return "", fmt.Errorf("invalid target: url and host are required")
	}
	if len(req.Probes) > 0 {
		if _, missing := m.reg.Resolve(req.Probes); len(missing) > 0 {
			return "", fmt.Errorf("%w: %s", scanner.ErrProbeNotFound, strings.Join(missing, ", "))
		}
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r := &run{
		id:  uuid.NewString(),
		req: req,
		state: types.ScanRun{
			Target:    req.Target,
			Status:    types.StatusPending,
			CreatedAt: time.Now(),
			Profile:   types.EmptyProfile(),
			Findings:  []types.Finding{},
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	r.state.ID = r.id

	m.mu.Lock()
	m.runs[r.id] = r
	m.mu.Unlock()

	m.wg.Add(1)
	go m.execute(runCtx, r)

	m.log.Info("scan created", "scan_id", r.id, "target", req.Target.URL)
	return r.id, nil
}

// Cancel requests cancellation of a running scan. Cancelling a finished scan
// is a no-op.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	r, ok := m.runs[id]
	m.mu.RUnlock()
	if !ok {
		if _, err := m.store.GetRun(context.Background(), id); err == nil {
			return nil
		}
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	r.cancel()
	return nil
}

// Subscribe streams the progress events of scan id. The channel is closed
// after the terminal event; the returned func unsubscribes early.
func (m *Manager) Subscribe(id string) (<-chan types.Event, func(), error) {
	m.mu.RLock()
	_, live := m.runs[id]
	m.mu.RUnlock()
	if live {
		ch, unsub := m.events.Subscribe(id)
		return ch, unsub, nil
	}

	stored, err := m.store.GetRun(context.Background(), id)
	if err != nil {
		return nil, nil, m.notFound(id, err)
	}
	return replay(stored), func() {}, nil
}

// replay serves a run this process did not execute: connected, then its
// terminal state.
func replay(r types.ScanRun) <-chan types.Event {
	ch := make(chan types.Event, 2)
	now := time.Now()
	ch <- types.Event{ScanID: r.ID, Stage: types.StageConnected, Log: "Connected to scan progress stream.", Progress: r.Progress, Time: now}
	switch r.Status {
	case types.StatusCompleted:
		ch <- types.Event{ScanID: r.ID, Stage: types.StageCompleted, Log: "Scan complete", Progress: 100,
			Data: map[string]any{"summary": r.Summary()}, Time: now}
	case types.StatusFailed:
		ch <- types.Event{ScanID: r.ID, Stage: types.StageFailed, Log: r.Error, Progress: r.Progress, Time: now}
	}
	close(ch)
	return ch
}

// GetScanRun returns a snapshot of scan id.
func (m *Manager) GetScanRun(id string) (types.ScanRun, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	var snap types.ScanRun
	if ok {
		snap = r.state.Clone()
	}
	m.mu.RUnlock()
	if ok {
		return snap, nil
	}

	stored, err := m.store.GetRun(context.Background(), id)
	if err != nil {
		return types.ScanRun{}, m.notFound(id, err)
	}
	return stored, nil
}

// List returns every known run, newest first. Runs of this process win over
// their stored copies.
func (m *Manager) List() ([]types.ScanRun, error) {
	stored, err := m.store.ListRuns(context.Background())
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	byID := make(map[string]types.ScanRun, len(stored))
	for _, r := range stored {
		byID[r.ID] = r
	}
	m.mu.RLock()
	for id, r := range m.runs {
		byID[id] = r.state.Clone()
	}
	m.mu.RUnlock()

	out := make([]types.ScanRun, 0, len(byID))
	for _, r := range byID {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// Delete removes a finished scan.
func (m *Manager) Delete(id string) error {
	m.mu.Lock()
	r, live := m.runs[id]
	if live && !r.state.Status.Terminal() {
		m.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrNotTerminal, id)
	}
	delete(m.runs, id)
	m.mu.Unlock()

	err := m.store.DeleteRun(context.Background(), id)
	if err != nil && !(live && errors.Is(err, store.ErrNotFound)) {
		return m.notFound(id, err)
	}
	m.events.Forget(id)
	return nil
}

// Wait blocks until scan id is terminal or ctx ends, and returns its final
// snapshot.
func (m *Manager) Wait(ctx context.Context, id string) (types.ScanRun, error) {
	m.mu.RLock()
	r, ok := m.runs[id]
	m.mu.RUnlock()
	if ok {
		select {
		case <-r.done:
		case <-ctx.Done():
			return types.ScanRun{}, ctx.Err()
		}
	}
	return m.GetScanRun(id)
}

// Shutdown cancels every active scan and waits for them to finish.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.RLock()
	for _, r := range m.runs {
		r.cancel()
	}
	m.mu.RUnlock()

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (m *Manager) notFound(id string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return err
}
