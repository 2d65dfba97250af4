package tetherdb_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"errors"
	"path/filepath"
	"testing"

	"github.com/adrianmcphee/tetherdb"
	"github.com/adrianmcphee/tetherdb/kvtest"
)

func newKey(t *testing.T) []byte {
	t.Helper()
	key := make([]byte, tetherdb.EncryptionKeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("rand.Read failed: %v", err)
	}
	return key
}

func TestEncryptedStore(t *testing.T) {
	kvtest.RunKeyValueStoreTests(t, "Encrypted", func(t *testing.T) tetherdb.KeyValueStore {
		s, err := tetherdb.NewEncryptedStore(tetherdb.NewMemoryStore(), newKey(t))
		if err != nil {
			t.Fatalf("NewEncryptedStore failed: %v", err)
		}
		return s
	})
}

func TestEncryptedStore_InvalidKeyLength(t *testing.T) {
	for _, length := range []int{0, 16, 24, 31, 33, 64} {
		_, err := tetherdb.NewEncryptedStore(tetherdb.NewMemoryStore(), make([]byte, length))
		if !errors.Is(err, tetherdb.ErrInvalidConfig) {
			t.Errorf("key length %d: expected ErrInvalidConfig, got %v", length, err)
		}
	}
}

func TestEncryptedStore_ValuesEncryptedAtRest(t *testing.T) {
	inner := tetherdb.NewMemoryStore()
	enc, err := tetherdb.NewEncryptedStore(inner, newKey(t))
	if err != nil {
		t.Fatalf("NewEncryptedStore failed: %v", err)
	}

	original := []byte(`{"secret":"value"}`)
	if err := enc.Put([]byte("1"), original); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	stored, err := inner.Get([]byte("1"))
	if err != nil {
		t.Fatalf("inner Get failed: %v", err)
	}
	if bytes.Contains(stored, []byte("secret")) {
		t.Error("value stored in plain text")
	}

	got, err := enc.Get([]byte("1"))
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if !bytes.Equal(got, original) {
		t.Errorf("expected %s, got %s", original, got)
	}
}

func TestEncryptedStore_NonceUniqueness(t *testing.T) {
	inner := tetherdb.NewMemoryStore()
	enc, _ := tetherdb.NewEncryptedStore(inner, newKey(t))

	value := []byte("same value")
	enc.Put([]byte("a"), value)
	enc.Put([]byte("b"), value)

	a, _ := inner.Get([]byte("a"))
	b, _ := inner.Get([]byte("b"))
	if bytes.Equal(a, b) {
		t.Error("identical values produced identical ciphertext")
	}
}

func TestEncryptedStore_CorruptedData(t *testing.T) {
	inner := tetherdb.NewMemoryStore()
	enc, _ := tetherdb.NewEncryptedStore(inner, newKey(t))

	inner.Put([]byte("short"), []byte("x"))
	if _, err := enc.Get([]byte("short")); !errors.Is(err, tetherdb.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for short ciphertext, got %v", err)
	}

	inner.Put([]byte("garbage"), bytes.Repeat([]byte("g"), 64))
	if _, err := enc.Get([]byte("garbage")); !errors.Is(err, tetherdb.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData for tampered value, got %v", err)
	}

	err := enc.Ascend(nil, func(key, value []byte) bool { return true })
	if !errors.Is(err, tetherdb.ErrInvalidData) {
		t.Errorf("expected Ascend to surface ErrInvalidData, got %v", err)
	}
}

func TestEncryptedStore_ValueBoundToKey(t *testing.T) {
	inner := tetherdb.NewMemoryStore()
	enc, _ := tetherdb.NewEncryptedStore(inner, newKey(t))

	enc.Put([]byte("1"), []byte("one"))
	sealed, _ := inner.Get([]byte("1"))
	inner.Put([]byte("2"), sealed)

	if _, err := enc.Get([]byte("2")); !errors.Is(err, tetherdb.ErrInvalidData) {
		t.Errorf("expected a value moved to another key to fail, got %v", err)
	}
}

func TestStore_Encrypted(t *testing.T) {
	ctx := context.Background()
	cfg := tetherdb.Config{
		Path:          filepath.Join(t.TempDir(), "tether.db"),
		EncryptionKey: newKey(t),
	}

	s, err := tetherdb.Open(cfg)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	id, err := s.Write(ctx, map[string]any{"name": "Alice"})
	if err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	if !s.Stats().Encrypted {
		t.Error("expected Stats to report encryption")
	}
	s.Close()

	// Same key reads back
	s, err = tetherdb.Open(cfg)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	doc, err := s.Read(ctx, id)
	if err != nil {
		t.Fatalf("Read failed: %v", err)
	}
	if doc["name"] != "Alice" {
		t.Errorf("expected name Alice, got %v", doc["name"])
	}
	s.Close()

	// A different key still counts documents but cannot read them
	cfg.EncryptionKey = newKey(t)
	s, err = tetherdb.Open(cfg)
	if err != nil {
		t.Fatalf("reopen with other key failed: %v", err)
	}
	defer s.Close()
	if s.Len() != 1 {
		t.Errorf("expected 1 document, got %d", s.Len())
	}
	if _, err := s.Read(ctx, id); !errors.Is(err, tetherdb.ErrInvalidData) {
		t.Errorf("expected ErrInvalidData, got %v", err)
	}
}

func TestConfig_EncryptionKeyLength(t *testing.T) {
	cfg := tetherdb.Config{Engine: tetherdb.EngineMemory, EncryptionKey: make([]byte, 16)}
	if err := cfg.WithDefaults().Validate(); !errors.Is(err, tetherdb.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
