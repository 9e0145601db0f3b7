package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/themeaningofmeaning/garmin-fit-analyzer/internal/domain/model"
)

// SQLiteStore implements Store on an embedded SQLite database. A
// single open connection serializes writers; each upsert runs in one
// transaction so readers see either the old row set or the new one.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open initializes the database at path, creating directories and the
// schema as needed.
func Open(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// Single connection avoids "database is locked" under concurrent
	// upserts from the worker pool.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS activities (
			fingerprint TEXT PRIMARY KEY,
			path TEXT NOT NULL,
			session_id TEXT NOT NULL,
			imported_at TEXT NOT NULL,
			sport TEXT NOT NULL,
			start_time TEXT NOT NULL,
			zone TEXT NOT NULL,
			summary_json TEXT NOT NULL,
			derived_json TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_path ON activities(path);`,
		`CREATE INDEX IF NOT EXISTS idx_activities_start_time ON activities(start_time);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("init schema: %w", err)
		}
	}
	return nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Has reports whether a fingerprint is stored.
func (s *SQLiteStore) Has(ctx context.Context, fingerprint string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM activities WHERE fingerprint = ?`, fingerprint).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query fingerprint: %w", err)
	}
	return true, nil
}

// Get returns the entry for a fingerprint.
func (s *SQLiteStore) Get(ctx context.Context, fingerprint string) (*model.LibraryEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT fingerprint, path, session_id, imported_at, summary_json, derived_json
		 FROM activities WHERE fingerprint = ?`, fingerprint)
	entry, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Upsert stores the entry, replacing any stale entry at the same path.
func (s *SQLiteStore) Upsert(ctx context.Context, entry *model.LibraryEntry) error {
	summaryJSON, err := json.Marshal(entry.Summary)
	if err != nil {
		return fmt.Errorf("marshal summary: %w", err)
	}
	derivedJSON, err := json.Marshal(entry.Derived)
	if err != nil {
		return fmt.Errorf("marshal derived series: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin upsert: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// A changed file at a known path supersedes the prior entry for
	// that path rather than duplicating it.
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM activities WHERE path = ? AND fingerprint != ?`,
		entry.Path, entry.Fingerprint); err != nil {
		return fmt.Errorf("supersede path: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO activities
		 (fingerprint, path, session_id, imported_at, sport, start_time, zone, summary_json, derived_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.Fingerprint,
		entry.Path,
		entry.SessionID,
		entry.ImportedAt.UTC().Format(time.RFC3339Nano),
		entry.Summary.Sport,
		entry.Summary.StartTime.UTC().Format(time.RFC3339Nano),
		string(entry.Derived.Zone),
		string(summaryJSON),
		string(derivedJSON),
	); err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit upsert: %w", err)
	}
	return nil
}

// Remove deletes the entry for a fingerprint.
func (s *SQLiteStore) Remove(ctx context.Context, fingerprint string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM activities WHERE fingerprint = ?`, fingerprint)
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete activity: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// List returns entries matching the filter, newest first.
func (s *SQLiteStore) List(ctx context.Context, f Filter) ([]model.LibraryEntry, error) {
	query := strings.Builder{}
	query.WriteString(
		`SELECT fingerprint, path, session_id, imported_at, summary_json, derived_json FROM activities`)

	var conds []string
	var args []any
	if !f.From.IsZero() {
		conds = append(conds, "start_time >= ?")
		args = append(args, f.From.UTC().Format(time.RFC3339Nano))
	}
	if !f.To.IsZero() {
		conds = append(conds, "start_time < ?")
		args = append(args, f.To.UTC().Format(time.RFC3339Nano))
	}
	if f.Zone != "" {
		conds = append(conds, "zone = ?")
		args = append(args, string(f.Zone))
	}
	if f.SessionID != "" {
		conds = append(conds, "session_id = ?")
		args = append(args, f.SessionID)
	}
	if len(conds) > 0 {
		query.WriteString(" WHERE " + strings.Join(conds, " AND "))
	}
	query.WriteString(" ORDER BY start_time DESC")

	rows, err := s.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var entries []model.LibraryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	return entries, nil
}

// Count returns the number of stored activities.
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM activities`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return n, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*model.LibraryEntry, error) {
	var entry model.LibraryEntry
	var importedAt, summaryJSON, derivedJSON string
	if err := row.Scan(&entry.Fingerprint, &entry.Path, &entry.SessionID,
		&importedAt, &summaryJSON, &derivedJSON); err != nil {
		return nil, err
	}

	ts, err := time.Parse(time.RFC3339Nano, importedAt)
	if err != nil {
		return nil, fmt.Errorf("parse imported_at: %w", err)
	}
	entry.ImportedAt = ts
	if err := json.Unmarshal([]byte(summaryJSON), &entry.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}
	if err := json.Unmarshal([]byte(derivedJSON), &entry.Derived); err != nil {
		return nil, fmt.Errorf("unmarshal derived series: %w", err)
	}
	return &entry, nil
}
