package tetherdb

import (
	"database/sql"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements KeyValueStore on a single SQLite table ordered by key.
// Use ":memory:" for an in-memory database.
type SQLiteStore struct {
	path string
	db   *sql.DB
}

// OpenSQLiteStore opens (or creates) a SQLite-backed key-value store.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA synchronous=NORMAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set synchronous: %w", err)
	}

	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		key   BLOB PRIMARY KEY,
		value BLOB NOT NULL
	) WITHOUT ROWID;`

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &SQLiteStore{path: path, db: db}, nil
}

func (s *SQLiteStore) Get(key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var value []byte
	err := s.db.QueryRow("SELECT value FROM documents WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %q: %w", key, err)
	}
	return value, nil
}

func (s *SQLiteStore) Has(key []byte) (bool, error) {
	if s.db == nil {
		return false, ErrStoreUnavailable
	}
	var one int
	err := s.db.QueryRow("SELECT 1 FROM documents WHERE key = ?", key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has %q: %w", key, err)
	}
	return true, nil
}

func (s *SQLiteStore) Put(key, value []byte) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	_, err := s.db.Exec(`
		INSERT INTO documents (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	if err != nil {
		return fmt.Errorf("put %q: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) Delete(key []byte) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	res, err := s.db.Exec("DELETE FROM documents WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) Ascend(from []byte, fn func(key, value []byte) bool) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}

	var (
		rows *sql.Rows
		err  error
	)
	if from == nil {
		rows, err = s.db.Query("SELECT key, value FROM documents ORDER BY key")
	} else {
		rows, err = s.db.Query("SELECT key, value FROM documents WHERE key >= ? ORDER BY key", from)
	}
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var k, v []byte
		if err := rows.Scan(&k, &v); err != nil {
			return fmt.Errorf("scan row: %w", err)
		}
		if !fn(k, v) {
			break
		}
	}
	return rows.Err()
}

func (s *SQLiteStore) Count() (int, error) {
	if s.db == nil {
		return 0, ErrStoreUnavailable
	}
	var n int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM documents").Scan(&n); err != nil {
		return 0, fmt.Errorf("count: %w", err)
	}
	return n, nil
}

// Flush checkpoints the write-ahead log into the main database file.
func (s *SQLiteStore) Flush() error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	var busy, logFrames, checkpointed int
	err := s.db.QueryRow("PRAGMA wal_checkpoint(TRUNCATE)").Scan(&busy, &logFrames, &checkpointed)
	if err != nil {
		return fmt.Errorf("checkpoint: %w", err)
	}
	return nil
}

// Reset empties the table and shrinks the file. Truncating a WAL database under an
// open handle would corrupt it, so the file is rewritten by VACUUM instead.
func (s *SQLiteStore) Reset() error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	if _, err := s.db.Exec("DELETE FROM documents"); err != nil {
		return fmt.Errorf("reset: %w", err)
	}
	if _, err := s.db.Exec("VACUUM"); err != nil {
		return fmt.Errorf("vacuum: %w", err)
	}
	return s.Flush()
}

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}
