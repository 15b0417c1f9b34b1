// Package deadletter persists operations that exhausted automated retries.
// Entries are the single source of truth for "what needs a human": one
// growing entry per (source, error type) instead of a flood, resolved
// exactly once, never deleted.
package deadletter

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"menuharvest/internal/logger"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped when the schema changes.
const schemaVersion = 1

var (
	ErrNotFound          = errors.New("dead letter entry not found")
	ErrAlreadyResolved   = errors.New("dead letter entry already resolved")
	ErrInvalidResolution = errors.New("invalid resolution")
	ErrSchemaMismatch    = errors.New("schema version mismatch")
)

// Store manages dead-letter persistence backed by SQLite.
type Store struct {
	db  *sql.DB
	log *logger.Logger
}

// Open initializes or connects to the dead-letter database.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("ensure db directory: %w", err)
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
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	store := &Store{db: db, log: logger.New("DeadLetterStore")}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	var version int
	err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		_, err = s.db.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion)
		if err != nil {
			return fmt.Errorf("record schema version: %w", err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d", ErrSchemaMismatch, version, schemaVersion)
	}
	return nil
}

// RecordFailure merges a failure report into the unresolved entry for the
// same (source, errorType), bumping total_retries and last_attempt_at, or
// creates a new entry if none exists. The read-check-write runs in one
// transaction so concurrent reports for the same key cannot duplicate.
func (s *Store) RecordFailure(ctx context.Context, source string, errType ErrorType, message string, meta AttemptMeta) (*Entry, error) {
	attempts := meta.Attempts
	if attempts <= 0 {
		attempts = 1
	}
	firstAt := meta.FirstAttemptAt
	if firstAt.IsZero() {
		firstAt = time.Now().UTC()
	}
	lastAt := meta.LastAttemptAt
	if lastAt.IsZero() {
		lastAt = firstAt
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	err = tx.QueryRowContext(ctx,
		`SELECT id FROM dead_letters WHERE source = ? AND error_type = ? AND resolution IS NULL`,
		source, string(errType),
	).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		res, insErr := tx.ExecContext(ctx,
			`INSERT INTO dead_letters (source, error_type, message, total_retries, first_attempt_at, last_attempt_at)
             VALUES (?, ?, ?, ?, ?, ?)`,
			source, string(errType), message, attempts,
			firstAt.Format(time.RFC3339Nano), lastAt.Format(time.RFC3339Nano),
		)
		if insErr != nil {
			return nil, fmt.Errorf("insert dead letter: %w", insErr)
		}
		id, insErr = res.LastInsertId()
		if insErr != nil {
			return nil, fmt.Errorf("last insert id: %w", insErr)
		}
	case err != nil:
		return nil, fmt.Errorf("lookup dead letter: %w", err)
	default:
		_, updErr := tx.ExecContext(ctx,
			`UPDATE dead_letters
             SET total_retries = total_retries + ?, last_attempt_at = ?, message = ?
             WHERE id = ?`,
			attempts, lastAt.Format(time.RFC3339Nano), message, id,
		)
		if updErr != nil {
			return nil, fmt.Errorf("merge dead letter: %w", updErr)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	s.log.LogInfof("recorded failure source=%s type=%s attempts=%d", source, errType, attempts)
	return s.GetByID(ctx, id)
}

// Resolve is the terminal transition. An already-resolved entry is
// rejected, never silently re-stamped: resolution is append-only and
// there is no unresolve.
func (s *Store) Resolve(ctx context.Context, id int64, resolution Resolution, resolvedBy, notes string) (*Entry, error) {
	if _, ok := validResolutions[resolution]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE dead_letters
         SET resolution = ?, resolved_at = ?, resolved_by = ?, notes = ?
         WHERE id = ? AND resolution IS NULL`,
		string(resolution), time.Now().UTC().Format(time.RFC3339Nano), resolvedBy, notes, id,
	)
	if err != nil {
		return nil, fmt.Errorf("resolve dead letter: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("rows affected: %w", err)
	}
	if affected == 0 {
		existing, getErr := s.GetByID(ctx, id)
		if getErr != nil {
			return nil, getErr
		}
		return nil, fmt.Errorf("%w: entry %d resolved as %s", ErrAlreadyResolved, id, existing.Resolution)
	}
	return s.GetByID(ctx, id)
}

// GetByID fetches one entry.
func (s *Store) GetByID(ctx context.Context, id int64) (*Entry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, source, error_type, message, total_retries, first_attempt_at, last_attempt_at,
                resolution, resolved_at, resolved_by, notes
         FROM dead_letters WHERE id = ?`, id)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get dead letter: %w", err)
	}
	return entry, nil
}

// ListUnresolved returns the open entries, newest failures first.
func (s *Store) ListUnresolved(ctx context.Context, filter Filter) ([]Entry, error) {
	query := `SELECT id, source, error_type, message, total_retries, first_attempt_at, last_attempt_at,
                     resolution, resolved_at, resolved_by, notes
              FROM dead_letters WHERE resolution IS NULL`
	var args []any
	if filter.Source != "" {
		query += " AND source = ?"
		args = append(args, filter.Source)
	}
	if filter.ErrorType != "" {
		query += " AND error_type = ?"
		args = append(args, string(filter.ErrorType))
	}
	query += " ORDER BY last_attempt_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list unresolved: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dead letter: %w", err)
		}
		entries = append(entries, *entry)
	}
	return entries, rows.Err()
}

// StatsByErrorType counts unresolved entries per error type.
func (s *Store) StatsByErrorType(ctx context.Context) (map[ErrorType]int, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT error_type, COUNT(1) FROM dead_letters WHERE resolution IS NULL GROUP BY error_type`)
	if err != nil {
		return nil, fmt.Errorf("stats by error type: %w", err)
	}
	defer rows.Close()

	stats := make(map[ErrorType]int)
	for rows.Next() {
		var errType string
		var count int
		if err := rows.Scan(&errType, &count); err != nil {
			return nil, fmt.Errorf("scan stats: %w", err)
		}
		stats[ErrorType(errType)] = count
	}
	return stats, rows.Err()
}

// HealthCheck verifies the database answers a trivial query.
func (s *Store) HealthCheck(ctx context.Context) error {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(1) FROM schema_version").Scan(&n); err != nil {
		return fmt.Errorf("dead letter db check: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*Entry, error) {
	var e Entry
	var errType string
	var firstAt, lastAt string
	var resolution, resolvedAt, resolvedBy, notes sql.NullString
	err := row.Scan(&e.ID, &e.Source, &errType, &e.Message, &e.TotalRetries,
		&firstAt, &lastAt, &resolution, &resolvedAt, &resolvedBy, &notes)
	if err != nil {
		return nil, err
	}
	e.ErrorType = ErrorType(errType)
	if t, err := time.Parse(time.RFC3339Nano, firstAt); err == nil {
		e.FirstAttemptAt = t
	}
	if t, err := time.Parse(time.RFC3339Nano, lastAt); err == nil {
		e.LastAttemptAt = t
	}
	if resolution.Valid {
		e.Resolution = Resolution(resolution.String)
	}
	if resolvedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, resolvedAt.String); err == nil {
			e.ResolvedAt = &t
		}
	}
	e.ResolvedBy = resolvedBy.String
	e.Notes = notes.String
	return &e, nil
}
