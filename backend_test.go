package tetherdb_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/adrianmcphee/tetherdb"
	"github.com/adrianmcphee/tetherdb/kvtest"
)

func TestBoltStore(t *testing.T) {
	kvtest.RunKeyValueStoreTests(t, "Bolt", func(t *testing.T) tetherdb.KeyValueStore {
		s, err := tetherdb.OpenBoltStore(filepath.Join(t.TempDir(), "tether.db"), tetherdb.DefaultPageSize)
		if err != nil {
			t.Fatalf("OpenBoltStore failed: %v", err)
		}
		return s
	})
}

func TestSQLiteStore(t *testing.T) {
	kvtest.RunKeyValueStoreTests(t, "SQLite", func(t *testing.T) tetherdb.KeyValueStore {
		s, err := tetherdb.OpenSQLiteStore(filepath.Join(t.TempDir(), "tether.sqlite"))
		if err != nil {
			t.Fatalf("OpenSQLiteStore failed: %v", err)
		}
		return s
	})
}

func TestSQLiteStoreInMemory(t *testing.T) {
	kvtest.RunKeyValueStoreTests(t, "SQLiteMemory", func(t *testing.T) tetherdb.KeyValueStore {
		s, err := tetherdb.OpenSQLiteStore(":memory:")
		if err != nil {
			t.Fatalf("OpenSQLiteStore failed: %v", err)
		}
		return s
	})
}

func TestMemoryStore(t *testing.T) {
	kvtest.RunKeyValueStoreTests(t, "Memory", func(t *testing.T) tetherdb.KeyValueStore {
		return tetherdb.NewMemoryStore()
	})
}

func TestBoltStore_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.db")

	s, err := tetherdb.OpenBoltStore(path, tetherdb.DefaultPageSize)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	if err := s.Put([]byte("42"), []byte(`{"a":1}`)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := s.Flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	s, err = tetherdb.OpenBoltStore(path, tetherdb.DefaultPageSize)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer s.Close()

	got, err := s.Get([]byte("42"))
	if err != nil {
		t.Fatalf("get after reopen failed: %v", err)
	}
	if string(got) != `{"a":1}` {
		t.Errorf("got %s", got)
	}
}

func TestBoltStore_ResetTruncatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tether.db")
	s, err := tetherdb.OpenBoltStore(path, tetherdb.DefaultPageSize)
	if err != nil {
		t.Fatalf("open failed: %v", err)
	}
	defer s.Close()

	big := make([]byte, 64*1024)
	for i := 0; i < 32; i++ {
		if err := s.Put([]byte{byte(i)}, big); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	before, _ := os.Stat(path)

	if err := s.Reset(); err != nil {
		t.Fatalf("reset failed: %v", err)
	}
	after, _ := os.Stat(path)

	if after.Size() >= before.Size() {
		t.Errorf("file did not shrink: before=%d after=%d", before.Size(), after.Size())
	}
}

func TestOpenKeyValueStore(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name   string
		config tetherdb.Config
	}{
		{"bolt", tetherdb.Config{Engine: tetherdb.EngineBolt, Path: filepath.Join(dir, "a.db"), PageSize: 4096}},
		{"sqlite", tetherdb.Config{Engine: tetherdb.EngineSQLite, Path: filepath.Join(dir, "a.sqlite")}},
		{"memory", tetherdb.Config{Engine: tetherdb.EngineMemory}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kv, err := tetherdb.OpenKeyValueStore(tt.config)
			if err != nil {
				t.Fatalf("OpenKeyValueStore failed: %v", err)
			}
			defer kv.Close()
			if err := kv.Put([]byte("k"), []byte("v")); err != nil {
				t.Fatalf("put failed: %v", err)
			}
		})
	}

	_, err := tetherdb.OpenKeyValueStore(tetherdb.Config{Engine: "rocks"})
	if !errors.Is(err, tetherdb.ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}

func TestOpenBoltStore_MissingParent(t *testing.T) {
	_, err := tetherdb.OpenBoltStore(filepath.Join(t.TempDir(), "missing", "tether.db"), tetherdb.DefaultPageSize)
	if err == nil {
		t.Fatal("expected error for missing parent directory")
	}
}
