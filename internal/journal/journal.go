// Package journal records rescan runs in a small SQLite database so that
// operators can see when each context was last rebuilt and why a run failed.
package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)
)

// Status of a run.
type Status string

const (
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Run is one rescan of one context.
type Run struct {
	ID         string    `json:"id"`
	ContextID  string    `json:"context_id"`
	Update     bool      `json:"update"`
	FromPath   string    `json:"from_path,omitempty"`
	Status     Status    `json:"status"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
	Discovered int       `json:"discovered"`
	Error      string    `json:"error,omitempty"`
}

// Duration is how long the run took, zero while running.
func (r Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// ErrClosed is returned after Close.
var ErrClosed = errors.New("journal is closed")

// Journal is a SQLite-backed run log.
type Journal struct {
	db  *sql.DB
	now func() time.Time

	mu     sync.RWMutex
	closed bool
}

// Open opens or creates the journal at path. An empty path keeps the
// journal in memory.
func Open(path string) (*Journal, error) {
	dsn := ":memory:"
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create journal directory: %w", err)
		}
		dsn = path
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	// One connection keeps in-memory databases alive and serializes writers.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
	}
	if path != "" {
		pragmas = append(pragmas, "PRAGMA journal_mode = WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	j := &Journal{db: db, now: time.Now}
	if err := j.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rescans (
		id TEXT PRIMARY KEY,
		context_id TEXT NOT NULL,
		update_mode INTEGER NOT NULL DEFAULT 0,
		from_path TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL DEFAULT 0,
		discovered INTEGER NOT NULL DEFAULT 0,
		error TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_rescans_context ON rescans(context_id, started_at DESC);
	`
	if _, err := j.db.Exec(schema); err != nil {
		return fmt.Errorf("create journal schema: %w", err)
	}
	return nil
}

// Start records a running rescan and returns it with its id assigned.
func (j *Journal) Start(ctx context.Context, contextID string, update bool, fromPath string) (Run, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return Run{}, ErrClosed
	}

	run := Run{
		ID:        uuid.NewString(),
		ContextID: contextID,
		Update:    update,
		FromPath:  fromPath,
		Status:    StatusRunning,
		StartedAt: j.now().UTC(),
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO rescans (id, context_id, update_mode, from_path, status, started_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, run.ID, run.ContextID, update, fromPath, string(run.Status), run.StartedAt.UnixNano())
	if err != nil {
		return Run{}, fmt.Errorf("insert rescan: %w", err)
	}
	return run, nil
}

// Finish marks a run as succeeded, or failed when runErr is non-nil.
func (j *Journal) Finish(ctx context.Context, id string, discovered int, runErr error) error {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return ErrClosed
	}

	status, msg := StatusSucceeded, ""
	if runErr != nil {
		status, msg = StatusFailed, runErr.Error()
	}
	res, err := j.db.ExecContext(ctx, `
		UPDATE rescans SET status = ?, finished_at = ?, discovered = ?, error = ?
		WHERE id = ?
	`, string(status), j.now().UTC().UnixNano(), discovered, msg, id)
	if err != nil {
		return fmt.Errorf("update rescan: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rescan %s not found", id)
	}
	return nil
}

// List returns the most recent runs first. An empty contextID lists all
// contexts; limit <= 0 means no limit.
func (j *Journal) List(ctx context.Context, contextID string, limit int) ([]Run, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return nil, ErrClosed
	}
	if limit <= 0 {
		limit = -1
	}

	rows, err := j.db.QueryContext(ctx, `
		SELECT id, context_id, update_mode, from_path, status, started_at, finished_at, discovered, error
		FROM rescans
		WHERE ? = '' OR context_id = ?
		ORDER BY started_at DESC, id
		LIMIT ?
	`, contextID, contextID, limit)
	if err != nil {
		return nil, fmt.Errorf("query rescans: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var (
			r                 Run
			status            string
			started, finished int64
		)
		if err := rows.Scan(&r.ID, &r.ContextID, &r.Update, &r.FromPath, &status,
			&started, &finished, &r.Discovered, &r.Error); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		r.Status = Status(status)
		r.StartedAt = time.Unix(0, started).UTC()
		if finished != 0 {
			r.FinishedAt = time.Unix(0, finished).UTC()
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// Last returns the most recent run of a context.
func (j *Journal) Last(ctx context.Context, contextID string) (Run, bool, error) {
	runs, err := j.List(ctx, contextID, 1)
	if err != nil || len(runs) == 0 {
		return Run{}, false, err
	}
	return runs[0], true, nil
}

// Prune deletes finished runs that started before cutoff.
func (j *Journal) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if j.closed {
		return 0, ErrClosed
	}
	res, err := j.db.ExecContext(ctx, `
		DELETE FROM rescans WHERE status != ? AND started_at < ?
	`, string(StatusRunning), cutoff.UTC().UnixNano())
	if err != nil {
		return 0, fmt.Errorf("prune rescans: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database. Safe to call twice.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.closed {
		return nil
	}
	j.closed = true
	return j.db.Close()
}
