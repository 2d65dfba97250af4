package tetherdb

import (
	"fmt"
	"os"
	"time"

	bolt "go.etcd.io/bbolt"
)

var documentsBucket = []byte("documents")

// BoltStore implements KeyValueStore on a single bbolt B+tree file.
// Commits skip fsync; Flush syncs the file, so durability follows explicit flushes.
type BoltStore struct {
	path     string
	pageSize int
	db       *bolt.DB
}

// OpenBoltStore opens or creates the bolt file at path.
// The parent directory must exist.
func OpenBoltStore(path string, pageSize int) (*BoltStore, error) {
	s := &BoltStore{path: path, pageSize: pageSize}
	if err := s.open(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *BoltStore) open() error {
	db, err := bolt.Open(s.path, DefaultFilePermissions, &bolt.Options{
		Timeout:  time.Second,
		PageSize: s.pageSize,
		NoSync:   true,
	})
	if err != nil {
		return fmt.Errorf("open bolt %q: %w", s.path, err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(documentsBucket)
		return err
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("create bucket: %w", err)
	}

	s.db = db
	return nil
}

func (s *BoltStore) Get(key []byte) ([]byte, error) {
	if s.db == nil {
		return nil, ErrStoreUnavailable
	}
	var value []byte
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(documentsBucket).Get(key)
		if v == nil {
			return ErrNotFound
		}
		value = cloneBytes(v)
		return nil
	})
	return value, err
}

func (s *BoltStore) Has(key []byte) (bool, error) {
	if s.db == nil {
		return false, ErrStoreUnavailable
	}
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		found = tx.Bucket(documentsBucket).Get(key) != nil
		return nil
	})
	return found, err
}

func (s *BoltStore) Put(key, value []byte) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(documentsBucket).Put(key, value)
	})
}

func (s *BoltStore) Delete(key []byte) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(documentsBucket)
		if b.Get(key) == nil {
			return ErrNotFound
		}
		return b.Delete(key)
	})
}

func (s *BoltStore) Ascend(from []byte, fn func(key, value []byte) bool) error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	return s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(documentsBucket).Cursor()

		var k, v []byte
		if from == nil {
			k, v = c.First()
		} else {
			k, v = c.Seek(from)
		}
		for ; k != nil; k, v = c.Next() {
			if !fn(k, v) {
				break
			}
		}
		return nil
	})
}

func (s *BoltStore) Count() (int, error) {
	if s.db == nil {
		return 0, ErrStoreUnavailable
	}
	var n int
	err := s.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(documentsBucket).Stats().KeyN
		return nil
	})
	return n, err
}

func (s *BoltStore) Flush() error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	return s.db.Sync()
}

// Reset closes the file, truncates it and reopens it as an empty database.
func (s *BoltStore) Reset() error {
	if s.db == nil {
		return ErrStoreUnavailable
	}
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close bolt: %w", err)
	}
	s.db = nil

	f, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, DefaultFilePermissions)
	if err != nil {
		return fmt.Errorf("truncate %q: %w", s.path, err)
	}
	if err := f.Close(); err != nil {
		return err
	}

	return s.open()
}

func (s *BoltStore) Close() error {
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	return err
}

// Path returns the backing file path
func (s *BoltStore) Path() string {
	return s.path
}
