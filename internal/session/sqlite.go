// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 SignLogin Contributors

package session

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"

	"github.com/samber/oops"
	// Register the pure-Go sqlite driver.
	_ "modernc.org/sqlite"

	"github.com/VarshithSidhoju/sign-loginfull/internal/xdg"
)

const createSessionTable = `
CREATE TABLE IF NOT EXISTS session (
	key   TEXT PRIMARY KEY,
	value BLOB NOT NULL
)`

// SQLiteStore persists the session in a single-file SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLite opens or creates the database at path, creating its directory
// with owner-only permissions. The path may be ":memory:".
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, oops.Code("SESSION_STORE_OPEN_FAILED").Errorf("session file path is empty")
	}
	if path != ":memory:" {
		if err := xdg.EnsureDir(filepath.Dir(path)); err != nil {
			return nil, oops.Code("SESSION_STORE_OPEN_FAILED").With("path", path).Wrap(err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, oops.Code("SESSION_STORE_OPEN_FAILED").With("path", path).Wrap(err)
	}
	// One connection keeps ":memory:" databases alive and serializes writers.
	db.SetMaxOpenConns(1)

	for _, stmt := range []string{`PRAGMA busy_timeout = 5000`, createSessionTable} {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			_ = db.Close() //nolint:errcheck // open error takes precedence
			return nil, oops.Code("SESSION_STORE_OPEN_FAILED").
				With("path", path).
				With("operation", "prepare schema").
				Wrap(err)
		}
	}
	return &SQLiteStore{db: db, path: path}, nil
}

// Path returns the database file.
func (s *SQLiteStore) Path() string { return s.path }

// Get implements Store.
func (s *SQLiteStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM session WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, oops.Code("SESSION_STORE_READ_FAILED").With("key", key).Wrap(err)
	}
	return value, true, nil
}

// Put implements Store.
func (s *SQLiteStore) Put(ctx context.Context, entries map[string][]byte) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("operation", "begin").Wrap(err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	for key, value := range entries {
		if value == nil {
			value = []byte{}
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO session (key, value) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET value = excluded.value
		`, key, value); err != nil {
			return oops.Code("SESSION_STORE_WRITE_FAILED").With("key", key).Wrap(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

// Delete implements Store.
func (s *SQLiteStore) Delete(ctx context.Context, keys ...string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("operation", "begin").Wrap(err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	for _, key := range keys {
		if _, err := tx.ExecContext(ctx, `DELETE FROM session WHERE key = ?`, key); err != nil {
			return oops.Code("SESSION_STORE_WRITE_FAILED").With("key", key).Wrap(err)
		}
	}
	if err := tx.Commit(); err != nil {
		return oops.Code("SESSION_STORE_WRITE_FAILED").With("operation", "commit").Wrap(err)
	}
	return nil
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return oops.Code("SESSION_STORE_CLOSE_FAILED").With("path", s.path).Wrap(err)
	}
	return nil
}

var _ Store = (*SQLiteStore)(nil)
