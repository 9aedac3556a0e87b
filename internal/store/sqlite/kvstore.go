// Package sqlite provides a SQLite-backed key/value store.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/hay-kot/storefront/internal/core/kv"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS kv (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    updated_at INTEGER NOT NULL
);
`

// KVStore persists kv entries in a SQLite database.
type KVStore struct {
	sqlDB *sql.DB
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}

// Open opens (or creates) a SQLite KV store at path.
func Open(path string) (*KVStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.Ping(); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := sqlDB.Exec(schema); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}
	return &KVStore{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *KVStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Get returns an entry by key. Returns kv.ErrKeyNotFound if not found.
func (s *KVStore) Get(ctx context.Context, key string) (kv.Entry, error) {
	if err := ctx.Err(); err != nil {
		return kv.Entry{}, err
	}

	var (
		entry            kv.Entry
		created, updated int64
	)
	row := s.sqlDB.QueryRowContext(ctx,
		`SELECT key, value, created_at, updated_at FROM kv WHERE key = ?`, key)
	if err := row.Scan(&entry.Key, &entry.Value, &created, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return kv.Entry{}, kv.ErrKeyNotFound
		}
		return kv.Entry{}, fmt.Errorf("get %s: %w", key, err)
	}
	entry.CreatedAt = fromMillis(created)
	entry.UpdatedAt = fromMillis(updated)
	return entry, nil
}

// Set creates or updates an entry, preserving created_at on update.
func (s *KVStore) Set(ctx context.Context, key, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	now := toMillis(time.Now())
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO kv (key, value, created_at, updated_at) VALUES (?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, now, now)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes an entry by key. Returns kv.ErrKeyNotFound if not found.
func (s *KVStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	res, err := s.sqlDB.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	if n == 0 {
		return kv.ErrKeyNotFound
	}
	return nil
}

// List returns all entries whose key has the given prefix, ordered by key.
func (s *KVStore) List(ctx context.Context, prefix string) ([]kv.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	rows, err := s.sqlDB.QueryContext(ctx,
		`SELECT key, value, created_at, updated_at FROM kv WHERE substr(key, 1, length(?)) = ? ORDER BY key`,
		prefix, prefix)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var entries []kv.Entry
	for rows.Next() {
		var (
			entry            kv.Entry
			created, updated int64
		)
		if err := rows.Scan(&entry.Key, &entry.Value, &created, &updated); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		entry.CreatedAt = fromMillis(created)
		entry.UpdatedAt = fromMillis(updated)
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}
