package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/adrianmcphee/tetherdb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	s, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, tetherdb.DefaultPath, s.Store.Path)
	assert.Equal(t, tetherdb.EngineBolt, s.Store.Engine)
	assert.Equal(t, tetherdb.DefaultPageSize, s.Store.PageSize)
	assert.Equal(t, tetherdb.DefaultDeviceID(), s.Store.DeviceID)
	assert.Equal(t, tetherdb.DefaultOffsetLabel, s.Store.UTCOffset)
	assert.Zero(t, s.Store.CleanupSeconds)
	assert.Zero(t, s.Store.WriteDelay)
	assert.Equal(t, DefaultLogLevel, s.LogLevel)
	assert.Empty(t, s.Source)
	assert.Empty(t, s.Warnings)
}

func TestLoad_Formats(t *testing.T) {
	dir := t.TempDir()

	files := map[string]string{
		"tether.json": `{"path": "data.db", "engine": "SQLite", "device_id": "pi-zero", "utc_offset": "+02:00", "cleanup_seconds": 3600, "write_delay_ms": 5}`,
		"tether.yaml": "path: data.db\nengine: SQLite\ndevice_id: pi-zero\nutc_offset: \"+02:00\"\ncleanup_seconds: 3600\nwrite_delay_ms: 5\n",
		"tether.toml": "path = \"data.db\"\nengine = \"SQLite\"\ndevice_id = \"pi-zero\"\nutc_offset = \"+02:00\"\ncleanup_seconds = 3600\nwrite_delay_ms = 5\n",
	}

	for name, content := range files {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, dir, name, content)

			s, err := Load(New(), path)
			require.NoError(t, err)

			assert.Equal(t, "data.db", s.Store.Path)
			assert.Equal(t, tetherdb.EngineSQLite, s.Store.Engine)
			assert.Equal(t, "pi-zero", s.Store.DeviceID)
			assert.Equal(t, "+02:00", s.Store.UTCOffset)
			assert.Equal(t, 3600, s.Store.CleanupSeconds)
			assert.Equal(t, 5*time.Millisecond, s.Store.WriteDelay)
			assert.Equal(t, path, s.Source)
		})
	}
}

func TestLoad_CleanupSecondsDegrades(t *testing.T) {
	tests := []struct {
		name    string
		value   string
		want    int
		warning bool
	}{
		{"empty", `""`, 0, false},
		{"not a number", `"soon"`, 0, true},
		{"zero", `0`, 0, true},
		{"negative", `-5`, 0, true},
		{"numeric string", `"120"`, 120, false},
		{"integer", `60`, 60, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "tether.json", `{"cleanup_seconds": `+tt.value+`}`)

			s, err := Load(New(), path)
			require.NoError(t, err)
			assert.Equal(t, tt.want, s.Store.CleanupSeconds)
			assert.Equal(t, tt.warning, len(s.Warnings) > 0, "warnings: %v", s.Warnings)
		})
	}
}

func TestLoad_EmptyDeviceID(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tether.json", `{"device_id": ""}`)

	s, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, tetherdb.DefaultDeviceID(), s.Store.DeviceID)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv("TETHERDB_ENGINE", "memory")
	t.Setenv("TETHERDB_DEVICE_ID", "env-device")
	t.Setenv("TETHERDB_CLEANUP_SECONDS", "90")
	t.Setenv("TETHERDB_LOG_LEVEL", "DEBUG")

	s, err := Load(New(), "")
	require.NoError(t, err)

	assert.Equal(t, tetherdb.EngineMemory, s.Store.Engine)
	assert.Equal(t, "env-device", s.Store.DeviceID)
	assert.Equal(t, 90, s.Store.CleanupSeconds)
	assert.Equal(t, "debug", s.LogLevel)
}

func TestLoad_EnvironmentOverridesFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "tether.yaml", "device_id: from-file\n")
	t.Setenv("TETHERDB_DEVICE_ID", "from-env")

	s, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", s.Store.DeviceID)
}

func TestLoadEnvFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, ".env", "TETHERDB_TEST_DOTENV=base\n")
	writeFile(t, dir, ".env.local", "TETHERDB_TEST_DOTENV=local\nTETHERDB_TEST_DOTENV_LOCAL=yes\n")
	t.Cleanup(func() {
		os.Unsetenv("TETHERDB_TEST_DOTENV")
		os.Unsetenv("TETHERDB_TEST_DOTENV_LOCAL")
	})

	LoadEnvFiles(dir)

	// .env is loaded first and godotenv never overrides
	assert.Equal(t, "base", os.Getenv("TETHERDB_TEST_DOTENV"))
	assert.Equal(t, "yes", os.Getenv("TETHERDB_TEST_DOTENV_LOCAL"))
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(New(), filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)

	path := writeFile(t, t.TempDir(), "tether.json", `{"engine": "rocks"}`)
	_, err = Load(New(), path)
	assert.ErrorIs(t, err, tetherdb.ErrInvalidConfig)

	path = writeFile(t, t.TempDir(), "tether.json", `{"page_size": 100}`)
	_, err = Load(New(), path)
	assert.ErrorIs(t, err, tetherdb.ErrInvalidConfig)
}

func TestLoad_EncryptionKey(t *testing.T) {
	key := strings.Repeat("ab", tetherdb.EncryptionKeySize)
	path := writeFile(t, t.TempDir(), "tether.yaml", "encryption_key: "+key+"\n")

	s, err := Load(New(), path)
	require.NoError(t, err)
	assert.Len(t, s.Store.EncryptionKey, tetherdb.EncryptionKeySize)
	assert.Equal(t, byte(0xab), s.Store.EncryptionKey[0])

	path = writeFile(t, t.TempDir(), "tether.yaml", "encryption_key: not-hex\n")
	_, err = Load(New(), path)
	assert.ErrorIs(t, err, tetherdb.ErrInvalidConfig)

	path = writeFile(t, t.TempDir(), "tether.yaml", "encryption_key: abcd\n")
	_, err = Load(New(), path)
	assert.ErrorIs(t, err, tetherdb.ErrInvalidConfig)
}
