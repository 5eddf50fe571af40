// Package storage persists probe run history in a local SQLite database.
package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
    id          TEXT PRIMARY KEY,
    kind        TEXT NOT NULL CHECK(kind IN ('smoke', 'bench', 'load')),
    target      TEXT NOT NULL,
    started_at  TEXT NOT NULL,
    finished_at TEXT,
    ok          INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS samples (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id      TEXT    NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
    label       TEXT    NOT NULL,
    elapsed_ms  INTEGER NOT NULL,
    size_bytes  INTEGER NOT NULL DEFAULT 0,
    status      INTEGER NOT NULL DEFAULT 0,
    error       TEXT    NOT NULL DEFAULT '',
    recorded_at TEXT    NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at DESC);
CREATE INDEX IF NOT EXISTS idx_samples_run ON samples(run_id);
CREATE INDEX IF NOT EXISTS idx_samples_label ON samples(label, recorded_at DESC);
`

// Run is a stored probe run.
type Run struct {
	ID         string
	Kind       string
	Target     string
	StartedAt  time.Time
	FinishedAt *time.Time
	OK         bool
}

// Sample is one stored measurement belonging to a run.
type Sample struct {
	ID         int64
	RunID      string
	Label      string
	ElapsedMs  int64
	SizeBytes  int64
	Status     int
	Error      string
	RecordedAt time.Time
}

// LabelStats aggregates stored samples for one label.
type LabelStats struct {
	Label    string
	Count    int
	AvgMs    float64
	MaxMs    int64
	Failures int
}

// DB wraps a SQLite database.
type DB struct {
	db *sql.DB
}

// Open opens (or creates) the SQLite database at path and applies the schema.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite at %q: %w", path, err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA cache_size=5000",
		"PRAGMA foreign_keys=ON",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", p, err)
		}
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return &DB{db: db}, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// InsertRun creates a run record and returns its generated ID.
func (d *DB) InsertRun(ctx context.Context, kind, target string, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO runs (id, kind, target, started_at) VALUES (?, ?, ?, ?)`,
		id, kind, target, startedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return "", fmt.Errorf("inserting %s run: %w", kind, err)
	}
	return id, nil
}

// FinishRun marks a run as completed.
func (d *DB) FinishRun(ctx context.Context, id string, finishedAt time.Time, ok bool) error {
	_, err := d.db.ExecContext(ctx,
		`UPDATE runs SET finished_at = ?, ok = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339Nano), boolToInt(ok), id,
	)
	if err != nil {
		return fmt.Errorf("finishing run %q: %w", id, err)
	}
	return nil
}

// InsertSample persists one measurement for a run.
func (d *DB) InsertSample(ctx context.Context, s Sample) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO samples (run_id, label, elapsed_ms, size_bytes, status, error, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		s.RunID, s.Label, s.ElapsedMs, s.SizeBytes, s.Status, s.Error,
		s.RecordedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("inserting sample %q for run %q: %w", s.Label, s.RunID, err)
	}
	return nil
}

// RecentRuns returns paginated runs, newest first, plus the total count.
func (d *DB) RecentRuns(ctx context.Context, limit, offset int) ([]Run, int, error) {
	var total int
	if err := d.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting runs: %w", err)
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT id, kind, target, started_at, finished_at, ok FROM runs
		 ORDER BY started_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("querying recent runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning run row: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterating run rows: %w", err)
	}
	return runs, total, nil
}

// GetRun returns the run with the given ID, or nil if it does not exist.
func (d *DB) GetRun(ctx context.Context, id string) (*Run, error) {
	row := d.db.QueryRowContext(ctx,
		`SELECT id, kind, target, started_at, finished_at, ok FROM runs WHERE id = ?`, id,
	)
	r, err := scanRun(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("querying run %q: %w", id, err)
	}
	return r, nil
}

// RunSamples returns all samples for a run in insertion order.
func (d *DB) RunSamples(ctx context.Context, runID string) ([]Sample, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, run_id, label, elapsed_ms, size_bytes, status, error, recorded_at
		 FROM samples WHERE run_id = ? ORDER BY id`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("querying samples for run %q: %w", runID, err)
	}
	defer rows.Close()

	var samples []Sample
	for rows.Next() {
		var s Sample
		var recordedAt string
		if err := rows.Scan(&s.ID, &s.RunID, &s.Label, &s.ElapsedMs, &s.SizeBytes, &s.Status, &s.Error, &recordedAt); err != nil {
			return nil, fmt.Errorf("scanning sample row: %w", err)
		}
		t, err := parseStoredTime(recordedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing recorded_at %q: %w", recordedAt, err)
		}
		s.RecordedAt = t
		samples = append(samples, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sample rows: %w", err)
	}
	return samples, nil
}

// StatsByLabel aggregates samples per label over the most recent runs of the
// given kind.
func (d *DB) StatsByLabel(ctx context.Context, kind string, lastRuns int) ([]LabelStats, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT label,
		       COUNT(*),
		       AVG(elapsed_ms),
		       MAX(elapsed_ms),
		       SUM(CASE WHEN error != '' OR status >= 400 THEN 1 ELSE 0 END)
		FROM samples
		WHERE run_id IN (
			SELECT id FROM runs WHERE kind = ? ORDER BY started_at DESC LIMIT ?
		)
		GROUP BY label
		ORDER BY label
	`, kind, lastRuns)
	if err != nil {
		return nil, fmt.Errorf("aggregating %s samples: %w", kind, err)
	}
	defer rows.Close()

	var stats []LabelStats
	for rows.Next() {
		var ls LabelStats
		if err := rows.Scan(&ls.Label, &ls.Count, &ls.AvgMs, &ls.MaxMs, &ls.Failures); err != nil {
			return nil, fmt.Errorf("scanning label stats: %w", err)
		}
		stats = append(stats, ls)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating label stats: %w", err)
	}
	return stats, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var startedAt string
	var finishedAt sql.NullString
	var ok int
	if err := row.Scan(&r.ID, &r.Kind, &r.Target, &startedAt, &finishedAt, &ok); err != nil {
		return nil, err
	}

	t, err := parseStoredTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parsing started_at %q: %w", startedAt, err)
	}
	r.StartedAt = t

	if finishedAt.Valid {
		ft, err := parseStoredTime(finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("parsing finished_at %q: %w", finishedAt.String, err)
		}
		r.FinishedAt = &ft
	}
	r.OK = ok != 0
	return &r, nil
}

func parseStoredTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		// Fallback to RFC3339 without sub-second precision.
		return time.Parse(time.RFC3339, s)
	}
	return t, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
