package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// LocalStore is a small key-value blob store backed by a SQLite file. It
// holds the client state that must survive restarts: recent searches, the
// temperature-unit preference, and the widget snapshot slot. The file can be
// read by another process, which is what the widget path relies on.
type LocalStore struct {
	db *sql.DB
}

const localSchema = `
CREATE TABLE IF NOT EXISTS local_state (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// OpenLocalStore opens (creating if needed) the SQLite file at path.
func OpenLocalStore(path string) (*LocalStore, error) {
	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	// busy_timeout covers concurrent access from the widget reader.
	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL", path)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("local store open: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("local store ping: %w", err)
	}

	if _, err := db.Exec(localSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("local store schema: %w", err)
	}

	return &LocalStore{db: db}, nil
}

// Get returns the blob under key. The second return value is false when the
// key has never been written.
func (s *LocalStore) Get(key string) ([]byte, bool, error) {
	var value []byte
	err := s.db.QueryRow(`SELECT value FROM local_state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("local store get %q: %w", key, err)
	}
	return value, true, nil
}

// Put overwrites the blob under key.
func (s *LocalStore) Put(key string, value []byte) error {
	_, err := s.db.Exec(
		`INSERT INTO local_state (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("local store put %q: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *LocalStore) Delete(key string) error {
	if _, err := s.db.Exec(`DELETE FROM local_state WHERE key = ?`, key); err != nil {
		return fmt.Errorf("local store delete %q: %w", key, err)
	}
	return nil
}

func (s *LocalStore) Close() error {
	return s.db.Close()
}
