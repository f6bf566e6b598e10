package results

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"lecturenotes/internal/notes"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when schema.sql changes incompatibly.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database was created by another schema version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 20 * time.Millisecond
	busyRetryMaxBackoff     = 320 * time.Millisecond
)

// SQLite stores notes in a local database file.
type SQLite struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens (creating if needed) the results database at path.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create results directory: %w", err)
		}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLite{db: db, path: path}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLite) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
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
		return tx.Commit()
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *SQLite) Put(ctx context.Context, jobID, slideKey string, note notes.Note) error {
	payload, err := json.Marshal(note.Normalize())
	if err != nil {
		return fmt.Errorf("encode note: %w", err)
	}
	var number sql.NullInt64
	if n, ok := notes.KeyNumber(slideKey, "slide"); ok {
		number = sql.NullInt64{Int64: int64(n), Valid: true}
	}
	return s.exec(ctx,
		`INSERT INTO slide_notes (job_id, slide_key, slide_number, note_json, updated_at)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(job_id, slide_key) DO UPDATE SET
             note_json = excluded.note_json,
             updated_at = excluded.updated_at`,
		jobID, slideKey, number, string(payload), time.Now().UTC().Format(time.RFC3339Nano),
	)
}

func (s *SQLite) Partial(ctx context.Context, jobID string) (Notes, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slide_key, note_json FROM slide_notes WHERE job_id = ?`, jobID)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	out := Notes{}
	for rows.Next() {
		var key, payload string
		if err := rows.Scan(&key, &payload); err != nil {
			return nil, fmt.Errorf("scan note: %w", err)
		}
		var note notes.Note
		if err := json.Unmarshal([]byte(payload), &note); err != nil {
			return nil, fmt.Errorf("decode note %s: %w", key, err)
		}
		out = append(out, Entry{Key: key, Note: note.Normalize()})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notes: %w", err)
	}
	out.sort()
	return out, nil
}

func (s *SQLite) Finalize(ctx context.Context, jobID string) (Notes, error) {
	if err := s.exec(ctx,
		`INSERT INTO finalized_jobs (job_id, finalized_at) VALUES (?, ?)
         ON CONFLICT(job_id) DO UPDATE SET finalized_at = excluded.finalized_at`,
		jobID, time.Now().UTC().Format(time.RFC3339Nano),
	); err != nil {
		return nil, err
	}
	return s.Partial(ctx, jobID)
}

func (s *SQLite) Delete(ctx context.Context, jobID string) error {
	if err := s.exec(ctx, `DELETE FROM slide_notes WHERE job_id = ?`, jobID); err != nil {
		return err
	}
	return s.exec(ctx, `DELETE FROM finalized_jobs WHERE job_id = ?`, jobID)
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLite) exec(ctx context.Context, query string, args ...any) error {
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
