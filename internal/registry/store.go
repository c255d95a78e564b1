// Package registry persists run metadata in SQLite: one row per experiment
// run, the checkpoints it produced, and an append-only event log recording
// why each artifact exists.
package registry

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS runs (
	run_id       TEXT PRIMARY KEY,
	exp_name     TEXT NOT NULL,
	model_fname  TEXT NOT NULL,
	config_json  TEXT NOT NULL,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TEXT NOT NULL,
	finished_at  TEXT
);

CREATE TABLE IF NOT EXISTS checkpoints (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	path         TEXT NOT NULL,
	auc          REAL NOT NULL,
	epoch        INTEGER NOT NULL,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE TABLE IF NOT EXISTS run_events (
	id           INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id       TEXT NOT NULL,
	event        TEXT NOT NULL,
	detail       TEXT,
	created_at   TEXT NOT NULL,
	FOREIGN KEY (run_id) REFERENCES runs(run_id)
);

CREATE INDEX IF NOT EXISTS idx_checkpoints_best
ON checkpoints(run_id, auc, epoch);
`
// #endregion schema

// #region store-struct
// Store manages run metadata in SQLite.
type Store struct {
	db *sql.DB
}
// #endregion store-struct

// #region constructor
// Open opens a SQLite database and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}
// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
// #endregion close

// #region types

// RunRecord is one experiment run's registry row.
type RunRecord struct {
	RunID      string
	ExpName    string
	ModelFname string
	ConfigJSON string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// CheckpointRecord is one persisted checkpoint.
type CheckpointRecord struct {
	RunID     string
	Path      string
	AUC       float64
	Epoch     int
	CreatedAt time.Time
}

// Run status values.
const (
	StatusRunning     = "running"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"
	StatusFailed      = "failed"
)

// #endregion types

// #region create-run

// CreateRun inserts a new run row with a fresh ID and running status.
func (s *Store) CreateRun(expName, modelFname, configJSON string) (RunRecord, error) {
	rec := RunRecord{
		RunID:      uuid.New().String(),
		ExpName:    expName,
		ModelFname: modelFname,
		ConfigJSON: configJSON,
		Status:     StatusRunning,
		StartedAt:  time.Now().UTC(),
	}
	_, err := s.db.Exec(
		`INSERT INTO runs (run_id, exp_name, model_fname, config_json, status, started_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.RunID, rec.ExpName, rec.ModelFname, rec.ConfigJSON,
		rec.Status, rec.StartedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return RunRecord{}, fmt.Errorf("insert run: %w", err)
	}
	return rec, nil
}

// FinishRun stamps a run's terminal status and finish time.
func (s *Store) FinishRun(runID, status string) error {
	_, err := s.db.Exec(
		`UPDATE runs SET status = ?, finished_at = ? WHERE run_id = ?`,
		status, time.Now().UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// #endregion create-run

// #region checkpoints

// RecordCheckpoint registers a persisted checkpoint file.
func (s *Store) RecordCheckpoint(runID, path string, auc float64, epoch int) error {
	_, err := s.db.Exec(
		`INSERT INTO checkpoints (run_id, path, auc, epoch, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		runID, path, auc, epoch, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record checkpoint: %w", err)
	}
	return nil
}

// Checkpoints returns a run's checkpoints ordered by (auc, epoch).
func (s *Store) Checkpoints(runID string) ([]CheckpointRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, path, auc, epoch, created_at FROM checkpoints
		 WHERE run_id = ? ORDER BY auc ASC, epoch ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query checkpoints: %w", err)
	}
	defer rows.Close()
	return scanCheckpoints(rows)
}

// BestCheckpointFor returns the highest-AUC checkpoint across all runs of
// an experiment.
func (s *Store) BestCheckpointFor(expName string) (CheckpointRecord, error) {
	rows, err := s.db.Query(
		`SELECT c.run_id, c.path, c.auc, c.epoch, c.created_at
		 FROM checkpoints c JOIN runs r ON r.run_id = c.run_id
		 WHERE r.exp_name = ? ORDER BY c.auc DESC, c.epoch DESC LIMIT 1`, expName,
	)
	if err != nil {
		return CheckpointRecord{}, fmt.Errorf("query best checkpoint: %w", err)
	}
	defer rows.Close()
	cks, err := scanCheckpoints(rows)
	if err != nil {
		return CheckpointRecord{}, err
	}
	if len(cks) == 0 {
		return CheckpointRecord{}, fmt.Errorf("no checkpoints for experiment %q", expName)
	}
	return cks[0], nil
}

func scanCheckpoints(rows *sql.Rows) ([]CheckpointRecord, error) {
	var out []CheckpointRecord
	for rows.Next() {
		var rec CheckpointRecord
		var createdStr string
		if err := rows.Scan(&rec.RunID, &rec.Path, &rec.AUC, &rec.Epoch, &createdStr); err != nil {
			return nil, fmt.Errorf("scan checkpoint: %w", err)
		}
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// #endregion checkpoints

// #region events

// LogEvent appends an entry to the run's event log.
func (s *Store) LogEvent(runID, event, detail string) error {
	_, err := s.db.Exec(
		`INSERT INTO run_events (run_id, event, detail, created_at) VALUES (?, ?, ?, ?)`,
		runID, event, nullIfEmpty(detail), time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("log event: %w", err)
	}
	return nil
}

// Event is one run-event log entry.
type Event struct {
	RunID     string
	Name      string
	Detail    string
	CreatedAt time.Time
}

// Events returns a run's event log in insertion order.
func (s *Store) Events(runID string) ([]Event, error) {
	rows, err := s.db.Query(
		`SELECT run_id, event, detail, created_at FROM run_events
		 WHERE run_id = ? ORDER BY id ASC`, runID,
	)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		var detail sql.NullString
		var createdStr string
		if err := rows.Scan(&e.RunID, &e.Name, &detail, &createdStr); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if detail.Valid {
			e.Detail = detail.String
		}
		e.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		out = append(out, e)
	}
	return out, rows.Err()
}

// #endregion events

// #region list-runs

// ListRuns returns the most recent runs.
func (s *Store) ListRuns(limit int) ([]RunRecord, error) {
	rows, err := s.db.Query(
		`SELECT run_id, exp_name, model_fname, config_json, status, started_at, finished_at
		 FROM runs ORDER BY started_at DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var rec RunRecord
		var startedStr string
		var finished sql.NullString
		if err := rows.Scan(&rec.RunID, &rec.ExpName, &rec.ModelFname, &rec.ConfigJSON,
			&rec.Status, &startedStr, &finished); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		if finished.Valid {
			rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// GetRun retrieves a single run by ID.
func (s *Store) GetRun(runID string) (RunRecord, error) {
	var rec RunRecord
	var startedStr string
	var finished sql.NullString
	err := s.db.QueryRow(
		`SELECT run_id, exp_name, model_fname, config_json, status, started_at, finished_at
		 FROM runs WHERE run_id = ?`, runID,
	).Scan(&rec.RunID, &rec.ExpName, &rec.ModelFname, &rec.ConfigJSON,
		&rec.Status, &startedStr, &finished)
	if err != nil {
		return RunRecord{}, fmt.Errorf("get run %s: %w", runID, err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	if finished.Valid {
		rec.FinishedAt, _ = time.Parse(time.RFC3339Nano, finished.String)
	}
	return rec, nil
}

// #endregion list-runs

// #region helpers
func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
// #endregion helpers
