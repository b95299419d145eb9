package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/buemura/surface/internal/scanner"
	"github.com/buemura/surface/pkg/types"
)

// Progress marks of the scan lifecycle. Recon owns 5-30, probes share 30-85.
const (
	progressInit      = 5
	progressProbes    = 30
	progressProbeSpan = 55
	progressReporting = 85
	progressFlush     = 90
	progressDone      = 100
)

// execute drives r from PENDING to a terminal state.
func (m *Manager) execute(ctx context.Context, r *run) {
	defer m.wg.Done()
	defer close(r.done)
	defer r.cancel()

	log := m.log.With("scan_id", r.id, "target", r.req.Target.URL)

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("scan panicked", "panic", rec)
			m.fail(r, fmt.Errorf("internal error: %v", rec), false)
		}
	}()

	if err := m.store.SaveRun(context.WithoutCancel(ctx), m.snapshot(r)); err != nil {
		log.Error("persisting new scan failed", "error", err)
		m.fail(r, fmt.Errorf("persisting scan: %w", err), false)
		return
	}

	running := m.update(r, func(s *types.ScanRun) {
		s.Status = types.StatusRunning
		s.StartedAt = time.Now()
	})
	m.persist(ctx, running, "running")
	m.metrics.ScanStarted()
	m.emit(r, types.StageInitializing, "Starting scan of "+r.req.Target.URL, progressInit, nil)
	log.Info("scan started")

	profile := types.EmptyProfile()
	if m.recon != nil {
		profile = m.recon.Run(ctx, r.req.Target, func(stage, line string, pct int, data map[string]any) {
			m.emit(r, stage, line, pct, data)
		})
	}
	m.update(r, func(s *types.ScanRun) { s.Profile = profile })
	if ctx.Err() != nil {
		m.cancelled(r)
		return
	}

	names := r.req.Probes
	if len(names) == 0 {
		names = m.selector(profile.Technologies)
	}
	probes, missing := m.reg.Resolve(names)
	for _, name := range missing {
		log.Warn("selected probe is not registered", "probe", name)
	}
	selected := make([]string, len(probes))
	for i, p := range probes {
		selected[i] = p.Name()
	}
	m.persist(ctx, m.update(r, func(s *types.ScanRun) { s.Probes = selected }), "probes selected")
	m.emit(r, types.StageScanning, fmt.Sprintf("Running %d scanners", len(probes)), progressProbes,
		map[string]any{"scanners": selected})

	for i, p := range probes {
		if ctx.Err() != nil {
			m.cancelled(r)
			return
		}
		m.runProbe(ctx, r, p, progressProbes+i*progressProbeSpan/len(probes))
	}
	if ctx.Err() != nil {
		m.cancelled(r)
		return
	}

	m.emit(r, types.StageReporting, "Generating report", progressReporting, nil)
	m.persist(ctx, m.snapshot(r), "results")
	m.emit(r, types.StageReporting, "Results saved", progressFlush, nil)

	final := m.update(r, func(s *types.ScanRun) {
		s.Status = types.StatusCompleted
		s.Progress = progressDone
		s.CompletedAt = time.Now()
	})
	m.persist(ctx, final, "completed")
	summary := final.Summary()
	m.emit(r, types.StageCompleted,
		fmt.Sprintf("Scan complete. Found %d vulnerabilities", summary.TotalVulnerabilities),
		progressDone, map[string]any{"summary": summary})
	m.finish(r, final)
	log.Info("scan completed", "findings", summary.TotalVulnerabilities, "duration", final.CompletedAt.Sub(final.StartedAt))
}

// runProbe executes one probe. Errors and panics become an Error event.
func (m *Manager) runProbe(ctx context.Context, r *run, p scanner.Probe, pct int) {
	name := p.Name()
	m.emit(r, types.StageScanning, "Running "+name, pct, map[string]any{"scanner": name})

	pctx := ctx
	if m.probeTimeout > 0 {
		var cancel context.CancelFunc
		pctx, cancel = context.WithTimeout(ctx, m.probeTimeout)
		defer cancel()
	}

	start := time.Now()
	findings, err := scanner.SafeRun(pctx, p, r.req.Target, func(item string) {
		m.emit(r, types.StagePayload, "Testing: "+item, pct, map[string]any{"scanner": name, "payload": item})
	})
	m.metrics.ProbeRun(name, time.Since(start), err)
	if err != nil {
		m.log.Warn("probe failed", "scan_id", r.id, "probe", name, "error", err)
		m.emit(r, types.StageError, fmt.Sprintf("Scanner %s failed: %v", name, err), pct,
			map[string]any{"scanner": name})
		return
	}

	for _, f := range findings {
		m.update(r, func(s *types.ScanRun) { s.Findings = append(s.Findings, f) })
		if err := m.store.AppendFinding(context.WithoutCancel(ctx), r.id, f); err != nil {
			m.log.Error("persisting finding failed", "scan_id", r.id, "probe", name, "error", err)
		}
		m.metrics.Finding(f)
	}
	if len(findings) > 0 {
		total := len(m.snapshot(r).Findings)
		m.emit(r, types.StageVulnFound,
			fmt.Sprintf("%s found %d vulnerabilities", name, len(findings)), pct,
			map[string]any{"scanner": name, "vuln_count": total})
	}
}

// persist saves a snapshot of the run. A failed write is logged and the
// scan goes on.
func (m *Manager) persist(ctx context.Context, snap types.ScanRun, step string) {
	if err := m.store.SaveRun(context.WithoutCancel(ctx), snap); err != nil {
		m.log.Error("persisting scan failed", "scan_id", snap.ID, "step", step, "error", err)
	}
}

func (m *Manager) cancelled(r *run) {
	m.log.Info("scan cancelled", "scan_id", r.id)
	m.fail(r, errCancelled, true)
}

// fail moves r to FAILED and publishes the terminal event.
func (m *Manager) fail(r *run, err error, cancelled bool) {
	final := m.update(r, func(s *types.ScanRun) {
		s.Status = types.StatusFailed
		s.Error = err.Error()
		s.Cancelled = cancelled
		s.CompletedAt = time.Now()
	})
	if serr := m.store.SaveRun(context.Background(), final); serr != nil {
		m.log.Error("persisting failed scan failed", "scan_id", r.id, "error", serr)
	}
	m.emit(r, types.StageFailed, final.Error, final.Progress, nil)
	m.finish(r, final)
}

func (m *Manager) finish(r *run, final types.ScanRun) {
	m.events.Close(r.id)
	m.metrics.ScanFinished(final.Status)
}

// emit publishes an event and advances the run's progress. Progress never
// moves backwards.
func (m *Manager) emit(r *run, stage, line string, pct int, data map[string]any) {
	snap := m.update(r, func(s *types.ScanRun) {
		if pct > s.Progress {
			s.Progress = pct
		}
	})
	m.events.Publish(types.Event{
		ScanID:   r.id,
		Stage:    stage,
		Log:      line,
		Progress: snap.Progress,
		Data:     data,
	})
}

// update applies fn to the run state under the lock and returns a copy.
func (m *Manager) update(r *run, fn func(*types.ScanRun)) types.ScanRun {
	m.mu.Lock()
	defer m.mu.Unlock()
	fn(&r.state)
	return r.state.Clone()
}

func (m *Manager) snapshot(r *run) types.ScanRun {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return r.state.Clone()
}
