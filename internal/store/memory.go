package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/buemura/surface/pkg/types"
)

// Memory keeps runs in a map. It is the default when no database is set.
type Memory struct {
	mu   sync.RWMutex
	runs map[string]types.ScanRun
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{runs: make(map[string]types.ScanRun)}
}

func (m *Memory) SaveRun(_ context.Context, run types.ScanRun) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c := run.Clone()
	if prev, ok := m.runs[run.ID]; ok {
		c.Findings = prev.Findings
	} else {
		c.Findings = []types.Finding{}
	}
	m.runs[run.ID] = c
	return nil
}

func (m *Memory) AppendFinding(_ context.Context, id string, f types.Finding) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	run, ok := m.runs[id]
	if !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	run.Findings = append(run.Findings, f)
	m.runs[id] = run
	return nil
}

func (m *Memory) GetRun(_ context.Context, id string) (types.ScanRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	run, ok := m.runs[id]
	if !ok {
		return types.ScanRun{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return run.Clone(), nil
}

// ListRuns returns all runs, newest first.
func (m *Memory) ListRuns(_ context.Context) ([]types.ScanRun, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]types.ScanRun, 0, len(m.runs))
	for _, r := range m.runs {
		out = append(out, r.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m *Memory) DeleteRun(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.runs[id]; !ok {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	delete(m.runs, id)
	return nil
}

func (m *Memory) Close() error { return nil }
