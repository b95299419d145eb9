// Package store persists scan runs and their findings.
package store

import (
	"context"
	"errors"
	"strings"

	"github.com/buemura/surface/pkg/types"
)

// ErrNotFound is returned when a run id is unknown to the store.
var ErrNotFound = errors.New("scan run not found")

// Store is the persistence collaborator of the orchestrator. SaveRun
// upserts everything but findings, which only grow through AppendFinding.
type Store interface {
	SaveRun(ctx context.Context, run types.ScanRun) error
	AppendFinding(ctx context.Context, id string, f types.Finding) error
	GetRun(ctx context.Context, id string) (types.ScanRun, error)
	ListRuns(ctx context.Context) ([]types.ScanRun, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

// Open picks a backend from dsn: "" or "memory" is in-process, anything
// else is a SQLite database path (":memory:" and "file:" URIs included).
func Open(dsn string) (Store, error) {
	switch dsn = strings.TrimSpace(dsn); dsn {
	case "", "memory":
		return NewMemory(), nil
	}
	return OpenSQLite(strings.TrimPrefix(dsn, "sqlite://"))
}
