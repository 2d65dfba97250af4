package tetherdb

import (
	"fmt"
	"runtime"
	"strings"
	"time"
)

// Configuration constants for TetherDB operations
const (
	// Engine names
	EngineBolt   = "bolt"
	EngineSQLite = "sqlite"
	EngineMemory = "memory"

	// Storage defaults
	DefaultPath     = "tether.db"
	DefaultEngine   = EngineBolt
	DefaultPageSize = 1024
	MinPageSize     = 512

	// Id generation
	IDBits               = 24
	IDSpace              = 1 << IDBits
	DefaultMaxIDAttempts = 64

	// Scanning
	DefaultScanPageSize = 64

	// Display time
	DefaultOffsetLabel = "+00:00"

	// File permissions
	DefaultFilePermissions = 0644
)

// Config is the explicit configuration of a Store. It replaces any process-wide settings:
// every value the store needs is passed in here.
type Config struct {
	// Path of the backing file. Its parent directory must already exist.
	// Ignored by the memory engine.
	Path string

	// Engine selects the ordered key-value engine: "bolt", "sqlite" or "memory".
	Engine string

	// PageSize is handed to engines that take one (bolt). 0 means DefaultPageSize.
	PageSize int

	// DeviceID tags written documents. Empty means DefaultDeviceID().
	DeviceID string

	// UTCOffset is the label appended to display timestamps. It is decoration only
	// and does not shift the time value. Empty means DefaultOffsetLabel.
	UTCOffset string

	// CleanupSeconds is the default TTL used by Cleanup. 0 means unset.
	CleanupSeconds int

	// WriteDelay is slept after every write. Id generation is collision-safe so
	// the default is 0; it remains for callers that relied on rate limiting writes.
	WriteDelay time.Duration

	// MaxIDAttempts bounds the random draws per generated id. 0 means DefaultMaxIDAttempts.
	MaxIDAttempts int

	// ScanPageSize is the number of entries read per engine round trip while
	// iterating. 0 means DefaultScanPageSize.
	ScanPageSize int

	// EncryptionKey, when set, encrypts every stored value with AES-256-GCM.
	// It must be EncryptionKeySize bytes.
	EncryptionKey []byte
}

// DefaultDeviceID returns the device tag used when none is configured.
func DefaultDeviceID() string {
	return runtime.GOOS + "-device"
}

// DefaultConfig returns the default configuration for a bolt file at DefaultPath
func DefaultConfig() Config {
	return Config{
		Path:          DefaultPath,
		Engine:        DefaultEngine,
		PageSize:      DefaultPageSize,
		DeviceID:      DefaultDeviceID(),
		UTCOffset:     DefaultOffsetLabel,
		MaxIDAttempts: DefaultMaxIDAttempts,
		ScanPageSize:  DefaultScanPageSize,
	}
}

// WithDefaults returns a copy of c with every zero value replaced by its default.
func (c Config) WithDefaults() Config {
	if c.Engine == "" {
		c.Engine = DefaultEngine
	}
	c.Engine = strings.ToLower(c.Engine)
	if c.Path == "" && c.Engine != EngineMemory {
		c.Path = DefaultPath
	}
	if c.PageSize == 0 {
		c.PageSize = DefaultPageSize
	}
	if c.DeviceID == "" {
		c.DeviceID = DefaultDeviceID()
	}
	if c.UTCOffset == "" {
		c.UTCOffset = DefaultOffsetLabel
	}
	if c.MaxIDAttempts == 0 {
		c.MaxIDAttempts = DefaultMaxIDAttempts
	}
	if c.ScanPageSize == 0 {
		c.ScanPageSize = DefaultScanPageSize
	}
	return c
}

// Validate checks if the Config is valid
func (c Config) Validate() error {
	switch c.Engine {
	case EngineBolt, EngineSQLite:
		if c.Path == "" {
			return WithContext(ErrInvalidConfig, map[string]interface{}{
				"field":  "Path",
				"reason": fmt.Sprintf("engine %q requires a file path", c.Engine),
			})
		}
	case EngineMemory:
	default:
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "Engine",
			"value":  c.Engine,
			"reason": "unknown engine",
		})
	}
	if c.PageSize != 0 && c.PageSize < MinPageSize {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "PageSize",
			"value":  c.PageSize,
			"reason": fmt.Sprintf("must be 0 or >= %d", MinPageSize),
		})
	}
	if c.CleanupSeconds < 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "CleanupSeconds",
			"value":  c.CleanupSeconds,
			"reason": "must be non-negative",
		})
	}
	if c.WriteDelay < 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "WriteDelay",
			"value":  c.WriteDelay,
			"reason": "must be non-negative",
		})
	}
	if c.MaxIDAttempts < 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "MaxIDAttempts",
			"value":  c.MaxIDAttempts,
			"reason": "must be non-negative",
		})
	}
	if c.EncryptionKey != nil && len(c.EncryptionKey) != EncryptionKeySize {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "EncryptionKey",
			"value":  len(c.EncryptionKey),
			"reason": fmt.Sprintf("must be %d bytes", EncryptionKeySize),
		})
	}
	if c.ScanPageSize < 0 {
		return WithContext(ErrInvalidConfig, map[string]interface{}{
			"field":  "ScanPageSize",
			"value":  c.ScanPageSize,
			"reason": "must be non-negative",
		})
	}
	return nil
}
