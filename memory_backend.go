package tetherdb

import (
	"bytes"

	"github.com/google/btree"
)

const memoryDegree = 32

type memoryItem struct {
	key   []byte
	value []byte
}

func memoryLess(a, b memoryItem) bool {
	return bytes.Compare(a.key, b.key) < 0
}

// MemoryStore implements KeyValueStore on an in-memory B-tree.
// Nothing survives Close; Flush is a no-op.
type MemoryStore struct {
	tree *btree.BTreeG[memoryItem]
}

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tree: btree.NewG(memoryDegree, memoryLess)}
}

func (s *MemoryStore) Get(key []byte) ([]byte, error) {
	if s.tree == nil {
		return nil, ErrStoreUnavailable
	}
	item, ok := s.tree.Get(memoryItem{key: key})
	if !ok {
		return nil, ErrNotFound
	}
	return cloneBytes(item.value), nil
}

func (s *MemoryStore) Has(key []byte) (bool, error) {
	if s.tree == nil {
		return false, ErrStoreUnavailable
	}
	return s.tree.Has(memoryItem{key: key}), nil
}

func (s *MemoryStore) Put(key, value []byte) error {
	if s.tree == nil {
		return ErrStoreUnavailable
	}
	s.tree.ReplaceOrInsert(memoryItem{key: cloneBytes(key), value: cloneBytes(value)})
	return nil
}

func (s *MemoryStore) Delete(key []byte) error {
	if s.tree == nil {
		return ErrStoreUnavailable
	}
	if _, ok := s.tree.Delete(memoryItem{key: key}); !ok {
		return ErrNotFound
	}
	return nil
}

func (s *MemoryStore) Ascend(from []byte, fn func(key, value []byte) bool) error {
	if s.tree == nil {
		return ErrStoreUnavailable
	}
	iter := func(item memoryItem) bool {
		return fn(item.key, item.value)
	}
	if from == nil {
		s.tree.Ascend(iter)
	} else {
		s.tree.AscendGreaterOrEqual(memoryItem{key: from}, iter)
	}
	return nil
}

func (s *MemoryStore) Count() (int, error) {
	if s.tree == nil {
		return 0, ErrStoreUnavailable
	}
	return s.tree.Len(), nil
}

func (s *MemoryStore) Flush() error {
	if s.tree == nil {
		return ErrStoreUnavailable
	}
	return nil
}

func (s *MemoryStore) Reset() error {
	if s.tree == nil {
		return ErrStoreUnavailable
	}
	s.tree.Clear(false)
	return nil
}

func (s *MemoryStore) Close() error {
	s.tree = nil
	return nil
}
