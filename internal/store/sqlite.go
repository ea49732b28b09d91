package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	key          TEXT PRIMARY KEY,
	title        TEXT NOT NULL,
	html         TEXT NOT NULL,
	content_hash TEXT NOT NULL,
	updated_at   INTEGER NOT NULL
)`

// SQLiteStore keeps documents in a local SQLite file using the pure Go
// modernc.org/sqlite driver.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// A :memory: database exists per connection.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, rec Record) error {
	normalize(&rec)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (key, title, html, content_hash, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			title = excluded.title,
			html = excluded.html,
			content_hash = excluded.content_hash,
			updated_at = excluded.updated_at`,
		rec.Key, rec.Title, rec.HTML, rec.ContentHash, rec.UpdatedAt.UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s: %w", rec.Key, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*Record, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, title, html, content_hash, updated_at FROM documents WHERE key = ?`, key)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return rec, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) List(ctx context.Context, prefix string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = -1
	}
	under := prefix + "/"
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, title, html, content_hash, updated_at FROM documents
		WHERE substr(key, 1, ?) = ?
		ORDER BY key
		LIMIT ?`, len(under), under, limit)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", prefix, err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("list %s: %w", prefix, err)
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(sc scanner) (*Record, error) {
	var rec Record
	var updated int64
	if err := sc.Scan(&rec.Key, &rec.Title, &rec.HTML, &rec.ContentHash, &updated); err != nil {
		return nil, err
	}
	rec.UpdatedAt = time.UnixMilli(updated).UTC()
	return &rec, nil
}
