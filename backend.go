package tetherdb

// KeyValueStore is the ordered byte-key to byte-value engine underneath a Store.
// Keys iterate in ascending byte order. Implementations are not required to be
// safe for concurrent use; a Store drives its engine from a single caller.
type KeyValueStore interface {
	// Point operations
	Get(key []byte) ([]byte, error) // ErrNotFound if absent
	Has(key []byte) (bool, error)
	Put(key, value []byte) error
	Delete(key []byte) error // ErrNotFound if absent

	// Ascend calls fn for every entry with key >= from in ascending order, stopping
	// when fn returns false. A nil from starts at the first key. The slices passed to
	// fn are only valid during the call, and fn must not modify the store.
	Ascend(from []byte, fn func(key, value []byte) bool) error

	// Count returns the number of keys physically present.
	Count() (int, error)

	// Flush is a durability barrier: everything written before it survives a crash.
	Flush() error

	// Reset removes every entry, recreating the backing file where there is one.
	Reset() error

	// Close releases the engine. Later calls return ErrStoreUnavailable.
	Close() error
}

// OpenKeyValueStore opens the engine selected by cfg.Engine, wrapped in an
// EncryptedStore when cfg.EncryptionKey is set.
func OpenKeyValueStore(cfg Config) (KeyValueStore, error) {
	kv, err := openBackend(cfg)
	if err != nil || cfg.EncryptionKey == nil {
		return kv, err
	}
	enc, err := NewEncryptedStore(kv, cfg.EncryptionKey)
	if err != nil {
		_ = kv.Close()
		return nil, err
	}
	return enc, nil
}

func openBackend(cfg Config) (KeyValueStore, error) {
	switch cfg.Engine {
	case EngineBolt:
		s, err := OpenBoltStore(cfg.Path, cfg.PageSize)
		if err != nil {
			return nil, err
		}
		return s, nil
	case EngineSQLite:
		s, err := OpenSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case EngineMemory:
		return NewMemoryStore(), nil
	default:
		return nil, WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Engine",
			"value":  cfg.Engine,
			"reason": "unknown engine",
		})
	}
}

func cloneBytes(b []byte) []byte {
	if b == nil {
		return nil
	}
	c := make([]byte, len(b))
	copy(c, b)
	return c
}
