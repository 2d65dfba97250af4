// Package config loads a tetherdb.Config from a config file, environment
// variables and .env files.
package config

import (
	"encoding/hex"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrianmcphee/tetherdb"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by the loader
const EnvPrefix = "tetherdb"

// Configuration keys
const (
	KeyPath           = "path"
	KeyEngine         = "engine"
	KeyPageSize       = "page_size"
	KeyDeviceID       = "device_id"
	KeyUTCOffset      = "utc_offset"
	KeyCleanupSeconds = "cleanup_seconds"
	KeyLogLevel       = "log_level"
	KeyWriteDelayMS   = "write_delay_ms"
	KeyEncryptionKey  = "encryption_key"
)

// DefaultLogLevel is used when log_level is not set
const DefaultLogLevel = "info"

// Settings is the result of loading configuration
type Settings struct {
	Store    tetherdb.Config
	LogLevel string

	// Source is the config file that was read, empty when none was.
	Source string

	// Warnings lists values that were ignored.
	Warnings []string
}

// LoadEnvFiles loads .env and .env.local from dir into the process environment.
// Missing files are ignored and existing variables are not overridden.
func LoadEnvFiles(dir string) {
	_ = godotenv.Load(filepath.Join(dir, ".env"))
	_ = godotenv.Load(filepath.Join(dir, ".env.local"))
}

// New returns a viper instance with defaults and TETHERDB_* environment binding.
func New() *viper.Viper {
	v := viper.New()

	v.SetDefault(KeyPath, tetherdb.DefaultPath)
	v.SetDefault(KeyEngine, tetherdb.DefaultEngine)
	v.SetDefault(KeyPageSize, tetherdb.DefaultPageSize)
	v.SetDefault(KeyDeviceID, "")
	v.SetDefault(KeyUTCOffset, tetherdb.DefaultOffsetLabel)
	v.SetDefault(KeyCleanupSeconds, "")
	v.SetDefault(KeyLogLevel, DefaultLogLevel)
	v.SetDefault(KeyWriteDelayMS, 0)
	v.SetDefault(KeyEncryptionKey, "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()

	return v
}

// Load reads file (JSON, YAML or TOML, by extension) when it is not empty and
// builds the settings from v. An empty device_id becomes the platform default;
// a cleanup_seconds that is not a positive integer is left unset.
func Load(v *viper.Viper, file string) (*Settings, error) {
	s := &Settings{}

	if file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", file, err)
		}
		s.Source = v.ConfigFileUsed()
	}

	cfg := tetherdb.Config{
		Path:      v.GetString(KeyPath),
		Engine:    strings.ToLower(v.GetString(KeyEngine)),
		PageSize:  v.GetInt(KeyPageSize),
		DeviceID:  v.GetString(KeyDeviceID),
		UTCOffset: v.GetString(KeyUTCOffset),
	}

	if cfg.DeviceID == "" {
		cfg.DeviceID = tetherdb.DefaultDeviceID()
	}

	seconds, ok := parseCleanupSeconds(v.GetString(KeyCleanupSeconds))
	if ok {
		cfg.CleanupSeconds = seconds
	} else if raw := v.GetString(KeyCleanupSeconds); raw != "" {
		s.Warnings = append(s.Warnings, fmt.Sprintf("ignoring %s=%q: not a positive integer", KeyCleanupSeconds, raw))
	}

	delay := v.GetInt(KeyWriteDelayMS)
	if delay < 0 {
		s.Warnings = append(s.Warnings, fmt.Sprintf("ignoring %s=%d: negative", KeyWriteDelayMS, delay))
		delay = 0
	}
	cfg.WriteDelay = time.Duration(delay) * time.Millisecond

	if raw := strings.TrimSpace(v.GetString(KeyEncryptionKey)); raw != "" {
		key, err := hex.DecodeString(raw)
		if err != nil {
			return nil, tetherdb.WithContext(tetherdb.ErrInvalidConfig, map[string]interface{}{
				"field":  KeyEncryptionKey,
				"reason": "must be hex encoded",
			})
		}
		cfg.EncryptionKey = key
	}

	s.Store = cfg.WithDefaults()
	if err := s.Store.Validate(); err != nil {
		return nil, err
	}

	s.LogLevel = strings.ToLower(v.GetString(KeyLogLevel))
	if s.LogLevel == "" {
		s.LogLevel = DefaultLogLevel
	}

	return s, nil
}

func parseCleanupSeconds(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n <= 0 {
		return 0, false
	}
	return n, true
}
