package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/buemura/surface/pkg/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS scan_runs (
	id           TEXT PRIMARY KEY,
	target       TEXT NOT NULL,
	status       TEXT NOT NULL,
	progress     INTEGER NOT NULL DEFAULT 0,
	created_at   TEXT NOT NULL,
	started_at   TEXT NOT NULL DEFAULT '',
	completed_at TEXT NOT NULL DEFAULT '',
	profile      TEXT NOT NULL DEFAULT '{}',
	probes       TEXT NOT NULL DEFAULT '[]',
	error        TEXT NOT NULL DEFAULT '',
	cancelled    INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS findings (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	scan_id     TEXT NOT NULL REFERENCES scan_runs(id) ON DELETE CASCADE,
	name        TEXT NOT NULL,
	severity    TEXT NOT NULL,
	description TEXT NOT NULL DEFAULT '',
	evidence    TEXT NOT NULL DEFAULT '',
	url         TEXT NOT NULL DEFAULT '',
	probe       TEXT NOT NULL DEFAULT '',
	remediation TEXT NOT NULL DEFAULT '',
	metadata    TEXT NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_findings_scan ON findings(scan_id);
`

// SQLite persists runs in a SQLite database through database/sql.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path and applies the
// schema.
func OpenSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite3", path+sqliteParams(path))
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %s: %w", path, err)
	}
	// One connection serializes writers and keeps ":memory:" a single database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func sqliteParams(path string) string {
	const params = "_foreign_keys=on&_busy_timeout=5000"
	if strings.Contains(path, "?") {
		return "&" + params
	}
	return "?" + params
}

func (s *SQLite) SaveRun(ctx context.Context, run types.ScanRun) error {
	target, err := json.Marshal(run.Target)
	if err != nil {
		return fmt.Errorf("encoding target: %w", err)
	}
	profile, err := json.Marshal(run.Profile)
	if err != nil {
		return fmt.Errorf("encoding profile: %w", err)
	}
	probes, err := json.Marshal(run.Probes)
	if err != nil {
		return fmt.Errorf("encoding probes: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO scan_runs (id, target, status, progress, created_at, started_at, completed_at, profile, probes, error, cancelled)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			status = excluded.status,
			progress = excluded.progress,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			profile = excluded.profile,
			probes = excluded.probes,
			error = excluded.error,
			cancelled = excluded.cancelled`,
		run.ID, string(target), string(run.Status), run.Progress,
		formatTime(run.CreatedAt), formatTime(run.StartedAt), formatTime(run.CompletedAt),
		string(profile), string(probes), run.Error, run.Cancelled,
	)
	if err != nil {
		return fmt.Errorf("saving run %s: %w", run.ID, err)
	}
	return nil
}

func (s *SQLite) AppendFinding(ctx context.Context, id string, f types.Finding) error {
	meta, err := json.Marshal(f.Metadata)
	if err != nil {
		return fmt.Errorf("encoding metadata: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO findings (scan_id, name, severity, description, evidence, url, probe, remediation, metadata)
		SELECT id, ?, ?, ?, ?, ?, ?, ?, ? FROM scan_runs WHERE id = ?`,
		f.Name, string(f.Severity), f.Description, f.Evidence, f.URL, f.Probe, f.Remediation, string(meta), id,
	)
	if err != nil {
		return fmt.Errorf("appending finding to %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return nil
}

const selectRun = `SELECT id, target, status, progress, created_at, started_at, completed_at, profile, probes, error, cancelled FROM scan_runs`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (types.ScanRun, error) {
	var (
		run                            types.ScanRun
		status                         string
		target, profile, probes        string
		createdAt, startedAt, complete string
	)
	err := row.Scan(&run.ID, &target, &status, &run.Progress, &createdAt, &startedAt, &complete,
		&profile, &probes, &run.Error, &run.Cancelled)
	if err != nil {
		return run, err
	}
	run.Status = types.ScanStatus(status)
	run.CreatedAt = parseTime(createdAt)
	run.StartedAt = parseTime(startedAt)
	run.CompletedAt = parseTime(complete)

	if err := json.Unmarshal([]byte(target), &run.Target); err != nil {
		return run, fmt.Errorf("decoding target: %w", err)
	}
	if err := json.Unmarshal([]byte(profile), &run.Profile); err != nil {
		return run, fmt.Errorf("decoding profile: %w", err)
	}
	if err := json.Unmarshal([]byte(probes), &run.Probes); err != nil {
		return run, fmt.Errorf("decoding probes: %w", err)
	}
	return run, nil
}

func (s *SQLite) GetRun(ctx context.Context, id string) (types.ScanRun, error) {
	run, err := scanRun(s.db.QueryRowContext(ctx, selectRun+` WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return types.ScanRun{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	if err != nil {
		return types.ScanRun{}, fmt.Errorf("loading run %s: %w", id, err)
	}

	run.Findings, err = s.findings(ctx, id)
	if err != nil {
		return types.ScanRun{}, err
	}
	return run, nil
}

func (s *SQLite) findings(ctx context.Context, id string) ([]types.Finding, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, severity, description, evidence, url, probe, remediation, metadata
		FROM findings WHERE scan_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, fmt.Errorf("loading findings for %s: %w", id, err)
	}
	defer rows.Close()

	out := []types.Finding{}
	for rows.Next() {
		var (
			f        types.Finding
			severity string
			meta     string
		)
		if err := rows.Scan(&f.Name, &severity, &f.Description, &f.Evidence, &f.URL, &f.Probe, &f.Remediation, &meta); err != nil {
			return nil, fmt.Errorf("reading finding: %w", err)
		}
		f.Severity = types.Severity(severity)
		if err := json.Unmarshal([]byte(meta), &f.Metadata); err != nil {
			return nil, fmt.Errorf("decoding finding metadata: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

// ListRuns returns all runs, newest first, with their findings.
func (s *SQLite) ListRuns(ctx context.Context) ([]types.ScanRun, error) {
	rows, err := s.db.QueryContext(ctx, selectRun+` ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	var runs []types.ScanRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("reading run: %w", err)
		}
		runs = append(runs, run)
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return nil, err
	}

	// Findings are loaded after the cursor is closed since the pool holds a
	// single connection.
	for i := range runs {
		if runs[i].Findings, err = s.findings(ctx, runs[i].ID); err != nil {
			return nil, err
		}
	}
	return runs, nil
}

func (s *SQLite) DeleteRun(ctx context.Context, id string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting delete: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM findings WHERE scan_id = ?`, id); err != nil {
		return fmt.Errorf("deleting findings of %s: %w", id, err)
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM scan_runs WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting run %s: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	return tx.Commit()
}

func (s *SQLite) Close() error {
	return s.db.Close()
}

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
