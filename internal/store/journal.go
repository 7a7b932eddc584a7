// Package store keeps the run journal: every run, group and outcome the
// automation produced, in a local SQLite database.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"fenixrpa/internal/logging"
)

// ErrRunNotFound is returned when no run matches an id or id prefix.
var ErrRunNotFound = errors.New("run not found")

// Run status values.
const (
	RunActive      = "active"
	RunCompleted   = "completed"
	RunInterrupted = "interrupted"
	RunFailed      = "failed"
)

// Run is one invocation of the submission loop.
type Run struct {
	ID         string
	Source     string
	Mode       string
	Status     string
	StartedAt  time.Time
	FinishedAt time.Time
	Submitted  int
	Skipped    int
	Failed     int
}

// GroupRecord is a group's final state within a run.
type GroupRecord struct {
	RunID      string
	GroupID    string
	Name       string
	Finalized  bool
	Failure    string
	Duration   time.Duration
	FinishedAt time.Time
}

// OutcomeRecord is one journaled outcome. Status is the portal outcome name.
type OutcomeRecord struct {
	RunID    string
	GroupID  string
	RecordID string
	Status   string
	Row      int
	Reason   string
	Partial  []string
	At       time.Time
}

// Store is the journal database.
type Store struct {
	db     *sql.DB
	dbPath string
	mu     sync.RWMutex
	log    *logging.Logger
}

// Open creates or opens the journal at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path, log: logging.Get(logging.CategoryStore)}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	s.log.Debug("journal opened at %s", path)
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.dbPath
}

func (s *Store) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		source TEXT NOT NULL,
		mode TEXT NOT NULL,
		status TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		finished_at DATETIME,
		submitted INTEGER NOT NULL DEFAULT 0,
		skipped INTEGER NOT NULL DEFAULT 0,
		failed INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS run_groups (
		run_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		finalized INTEGER NOT NULL DEFAULT 0,
		failure TEXT,
		finished_at DATETIME NOT NULL,
		PRIMARY KEY (run_id, group_id),
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE TABLE IF NOT EXISTS outcomes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		group_id TEXT NOT NULL,
		record_id TEXT NOT NULL,
		status TEXT NOT NULL,
		row_index INTEGER NOT NULL,
		reason TEXT,
		partial_json TEXT,
		at DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);
	CREATE INDEX IF NOT EXISTS idx_outcomes_run ON outcomes(run_id, group_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// BeginRun records a new active run.
func (s *Store) BeginRun(source, mode string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r := Run{
		ID:        uuid.NewString(),
		Source:    source,
		Mode:      mode,
		Status:    RunActive,
		StartedAt: time.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO runs (id, source, mode, status, started_at)
		VALUES (?, ?, ?, ?, ?)
	`, r.ID, r.Source, r.Mode, r.Status, r.StartedAt)
	if err != nil {
		return Run{}, fmt.Errorf("failed to begin run: %w", err)
	}
	s.log.Info("run %s started (%s)", r.ID, source)
	return r, nil
}

// AppendOutcome journals one outcome as soon as it is produced.
func (s *Store) AppendOutcome(o OutcomeRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if o.At.IsZero() {
		o.At = time.Now()
	}
	var partial []byte
	if len(o.Partial) > 0 {
		partial, _ = json.Marshal(o.Partial)
	}
	_, err := s.db.Exec(`
		INSERT INTO outcomes (run_id, group_id, record_id, status, row_index, reason, partial_json, at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, o.RunID, o.GroupID, o.RecordID, o.Status, o.Row, o.Reason, string(partial), o.At)
	if err != nil {
		return fmt.Errorf("failed to append outcome: %w", err)
	}
	return nil
}

// FinishGroup records whether the group's report was sent. Outcomes of a
// group that was not finalized are never treated as confirmed.
func (s *Store) FinishGroup(g GroupRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g.FinishedAt.IsZero() {
		g.FinishedAt = time.Now()
	}
	_, err := s.db.Exec(`
		INSERT INTO run_groups (run_id, group_id, name, finalized, failure, duration_ms, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, group_id) DO UPDATE SET
			name = excluded.name,
			finalized = excluded.finalized,
			failure = excluded.failure,
			duration_ms = excluded.duration_ms,
			finished_at = excluded.finished_at
	`, g.RunID, g.GroupID, g.Name, g.Finalized, g.Failure, g.Duration.Milliseconds(), g.FinishedAt)
	if err != nil {
		return fmt.Errorf("failed to finish group: %w", err)
	}
	return nil
}

// FinishRun closes a run with its final status and counts.
func (s *Store) FinishRun(runID, status string, submitted, skipped, failed int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.Exec(`
		UPDATE runs SET status = ?, finished_at = ?, submitted = ?, skipped = ?, failed = ?
		WHERE id = ?
	`, status, time.Now(), submitted, skipped, failed, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return nil
}

const runColumns = `id, source, mode, status, started_at, finished_at, submitted, skipped, failed`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(sc scanner) (Run, error) {
	var r Run
	var finished sql.NullTime
	if err := sc.Scan(&r.ID, &r.Source, &r.Mode, &r.Status, &r.StartedAt, &finished,
		&r.Submitted, &r.Skipped, &r.Failed); err != nil {
		return Run{}, err
	}
	if finished.Valid {
		r.FinishedAt = finished.Time
	}
	return r, nil
}

// ListRuns returns the most recent runs first. limit <= 0 means all.
func (s *Store) ListRuns(limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = -1
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// GetRun looks a run up by id or unique id prefix.
func (s *Store) GetRun(id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id = strings.TrimSpace(id)
	if id == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.Query(`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? LIMIT 2`, id, id+"%")
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return Run{}, err
		}
		if r.ID == id {
			return r, nil
		}
		found = append(found, r)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	case 1:
		return found[0], nil
	}
	return Run{}, fmt.Errorf("run prefix %q is ambiguous", id)
}

// Groups returns a run's finished groups in completion order.
func (s *Store) Groups(runID string) ([]GroupRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, group_id, name, finalized, failure, duration_ms, finished_at
		FROM run_groups WHERE run_id = ? ORDER BY finished_at, group_id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list groups: %w", err)
	}
	defer rows.Close()

	var out []GroupRecord
	for rows.Next() {
		var (
			g       GroupRecord
			failure sql.NullString
			ms      int64
		)
		if err := rows.Scan(&g.RunID, &g.GroupID, &g.Name, &g.Finalized, &failure, &ms, &g.FinishedAt); err != nil {
			return nil, err
		}
		g.Failure = failure.String
		g.Duration = time.Duration(ms) * time.Millisecond
		out = append(out, g)
	}
	return out, rows.Err()
}

// Outcomes returns a run's outcomes in the order they were produced.
func (s *Store) Outcomes(runID string) ([]OutcomeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT run_id, group_id, record_id, status, row_index, reason, partial_json, at
		FROM outcomes WHERE run_id = ? ORDER BY id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list outcomes: %w", err)
	}
	defer rows.Close()

	var out []OutcomeRecord
	for rows.Next() {
		var o OutcomeRecord
		var reason, partial sql.NullString
		if err := rows.Scan(&o.RunID, &o.GroupID, &o.RecordID, &o.Status, &o.Row, &reason, &partial, &o.At); err != nil {
			return nil, err
		}
		o.Reason = reason.String
		if partial.Valid && partial.String != "" {
			if err := json.Unmarshal([]byte(partial.String), &o.Partial); err != nil {
				s.log.Warn("outcome %s: bad partial field list: %v", o.RecordID, err)
			}
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// SubmittedIDs returns the record ids confirmed by a run: Submitted
// outcomes whose group was finalized.
func (s *Store) SubmittedIDs(runID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(`
		SELECT o.record_id
		FROM outcomes o
		JOIN run_groups g ON g.run_id = o.run_id AND g.group_id = o.group_id
		WHERE o.run_id = ? AND o.status = 'submitted' AND g.finalized = 1
		ORDER BY o.id
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list submitted ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
