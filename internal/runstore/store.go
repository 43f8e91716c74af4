// Package runstore keeps a SQLite ledger of reframing runs and their latest
// progress notice.
package runstore

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

const schemaVersion = 1

var (
	ErrNotFound       = errors.New("run not found")
	ErrSchemaMismatch = errors.New("schema version mismatch")
)

// Run is one ledger row.
type Run struct {
	ID         string     `json:"id"`
	Input      string     `json:"input"`
	Output     string     `json:"output"`
	Sidecar    string     `json:"sidecar,omitempty"`
	State      string     `json:"state"`
	Message    string     `json:"message,omitempty"`
	Error      string     `json:"error,omitempty"`
	Language   string     `json:"language,omitempty"`
	Color      string     `json:"color,omitempty"`
	Captions   bool       `json:"captions"`
	Frames     int        `json:"frames"`
	Faceless   int        `json:"faceless_frames"`
	Overlays   int        `json:"overlays"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
}

// Outcome is what a finished run reports back.
type Outcome struct {
	State    string
	Output   string
	Sidecar  string
	Frames   int
	Faceless int
	Overlays int
	Err      error
}

// Store manages run persistence backed by SQLite.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Concurrent runs share one connection so writes serialize.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, now: time.Now}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	var exists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if exists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete the state database)",
			ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Create inserts r, assigning an ID when empty, and returns the stored row.
func (s *Store) Create(ctx context.Context, r Run) (Run, error) {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	ts := s.now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (
            id, input_path, output_path, state, message, language, color,
            captions, created_at, updated_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Input, r.Output, r.State,
		nullableString(r.Message), nullableString(r.Language), nullableString(r.Color),
		boolToInt(r.Captions), ts, ts,
	)
	if err != nil {
		return Run{}, fmt.Errorf("insert run: %w", err)
	}
	return s.Get(ctx, r.ID)
}

// UpdateState records the latest progress notice of a run.
func (s *Store) UpdateState(ctx context.Context, id, state, message string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, message = ?, updated_at = ?
         WHERE id = ?`,
		state, nullableString(message), s.now().UTC().Format(time.RFC3339Nano), id,
	)
	if err != nil {
		return fmt.Errorf("update run state: %w", err)
	}
	return requireRow(res, id)
}

// Finish stores the terminal state and counters of a run.
func (s *Store) Finish(ctx context.Context, id string, o Outcome) error {
	ts := s.now().UTC().Format(time.RFC3339Nano)
	var errMsg any
	if o.Err != nil {
		errMsg = o.Err.Error()
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET state = ?, output_path = COALESCE(NULLIF(?, ''), output_path),
            sidecar_path = ?, error_message = ?, frames = ?, faceless = ?, overlays = ?,
            updated_at = ?, finished_at = ?
         WHERE id = ?`,
		o.State, o.Output, nullableString(o.Sidecar), errMsg,
		o.Frames, o.Faceless, o.Overlays, ts, ts, id,
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return requireRow(res, id)
}

// Get returns the run with id or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (Run, error) {
	row := s.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return r, err
}

// List returns up to limit runs, newest first. A non-positive limit lists all.
func (s *Store) List(ctx context.Context, limit int) ([]Run, error) {
	q := selectRun + " ORDER BY created_at DESC, rowid DESC"
	args := []any{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
