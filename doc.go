// Package tetherdb is a small embedded document store for devices that need to
// keep JSON records locally: sensor readings, event logs, queued uploads.
//
// # Overview
//
// A Store keeps documents in a single file on top of an ordered key-value
// engine. Every document is a JSON object stored under a random decimal id. It
// provides:
//
//   - Collision-free random ids from a fixed 24-bit space
//   - Write timestamps (epoch seconds) and a device tag on every document
//   - Display timestamps in ISO 8601 form with a configurable offset label
//   - Filters on flattened fields with anchored wildcard patterns
//   - A fluent Query with sorting and pagination
//   - Age-based cleanup of expired documents
//   - Batch operations and typed decoding helpers
//   - Optional AES-256-GCM encryption of stored values
//   - Observability through structured logging and Prometheus metrics
//
// # Quick Start
//
//	store, err := tetherdb.Open(tetherdb.Config{Path: "readings.db"})
//	if err != nil {
//	    return err
//	}
//	defer store.Close()
//	ctx := context.Background()
//
//	// Write returns the new id
//	id, err := store.Write(ctx, map[string]any{"sensor": "t1", "value": 21.5})
//
//	// Read adds "_id" and a display timestamp
//	doc, err := store.Read(ctx, id)
//
//	// Every predicate must hold; "*" marks a prefix pattern
//	docs, err := store.Filter(ctx, tetherdb.Predicates{"sensor": "t*"})
//
//	// Remove readings older than a day
//	n, err := store.CleanupAfter(ctx, 86400)
//
// # Engines
//
// Config.Engine selects the engine under the store:
//
//   - "bolt" (default): a bbolt file, flushed with fsync after every mutation
//   - "sqlite": a SQLite database in WAL mode, checkpointed on flush
//   - "memory": an in-process B-tree, for tests and scratch data
//
// Any KeyValueStore can be passed with WithKeyValueStore. The kvtest package
// holds the conformance suite every engine passes.
//
// # Documents
//
// Documents are mappings with string keys. Any map[string]T is accepted on
// write; anything else fails with ErrTypeMismatch. Write replaces "_id" with
// a fresh id and sets "timestamp" and, unless WithoutDeviceID is given,
// "device_id".
//
// Nested fields are addressed in filters by joining keys with "__":
//
//	store.Filter(ctx, tetherdb.Predicates{"location__room": "kitchen"})
//
// Lists are compared by their compact JSON form, so ["a","b"] matches the
// predicate value `["a","b"]`.
//
// # Querying
//
// Query adds sorting, pagination and arbitrary tests on top of predicates:
//
//	recent, err := store.Query().
//	    Where("sensor", "t1").
//	    SortByField("timestamp", false).
//	    Limit(10).
//	    All(ctx)
//
// Results decode into your own types with Decode, ReadAs and QueryAs:
//
//	readings, err := tetherdb.QueryAs[Reading](ctx, store.Query().Raw())
//
// # Tethering Functions
//
// Tether writes the result of a function as a document each time it runs:
//
//	sample := tetherdb.Tether(store, func(ctx context.Context) (map[string]any, error) {
//	    return map[string]any{"value": readSensor()}, nil
//	})
//	id, err := sample(ctx)
//
// # Error Handling
//
// Errors wrap sentinel values, so use errors.Is:
//
//	doc, err := store.Read(ctx, id)
//	if errors.Is(err, tetherdb.ErrNotFound) {
//	    // unknown id
//	}
//
// IsNotFound, IsUnavailable and IsCallerError group related sentinels.
// Methods on a Store that failed to open, or was closed, return
// ErrStoreUnavailable instead of panicking.
//
// # Observability
//
// Pass a Logger and Metrics implementation when opening:
//
//	logger, _ := tetherdb.NewProductionZapLogger()
//	metrics := tetherdb.NewPrometheusMetrics(nil) // serve metrics.GetRegistry() over HTTP
//	store, err := tetherdb.Open(cfg, tetherdb.WithLogger(logger), tetherdb.WithMetrics(metrics))
//
// # Concurrency
//
// A Store is meant for a single caller, like the devices it targets. Guard it
// with a mutex if several goroutines share one.
package tetherdb
