package tetherdb

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"math/rand/v2"
	"os"
	"path/filepath"
	"runtime"
	"time"
)

// Store is a document store over an ordered key-value engine.
// Each document is a JSON value keyed by its decimal id.
//
// A Store is meant for a single caller. Methods on a nil or closed Store
// return ErrStoreUnavailable.
type Store struct {
	cfg     Config
	kv      KeyValueStore
	count   int
	ids     *IDGenerator
	clock   *TimeAnnotator
	logger  Logger
	metrics Metrics
}

// Option configures a Store at Open
type Option func(*Store)

// WithLogger sets the logger for a store
func WithLogger(logger Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector for a store
func WithMetrics(metrics Metrics) Option {
	return func(s *Store) {
		if metrics != nil {
			s.metrics = metrics
		}
	}
}

// WithClock replaces the wall clock used for timestamps and cleanup ages.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.clock.Now = now
	}
}

// WithLocation sets the location display timestamps are rendered in.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) {
		s.clock.Location = loc
	}
}

// WithRand sets the random source for id generation.
func WithRand(rng *rand.Rand) Option {
	return func(s *Store) {
		s.ids = NewIDGenerator(s.cfg.MaxIDAttempts, rng)
	}
}

// WithKeyValueStore runs the store on an already open engine instead of
// opening one from Config. The store takes ownership of kv.
func WithKeyValueStore(kv KeyValueStore) Option {
	return func(s *Store) {
		s.kv = kv
	}
}

// Open opens the store described by cfg, creating the backing file when it
// does not exist yet. The parent directory must exist; if it does not, Open
// logs the problem and returns ErrStoreUnavailable.
func Open(cfg Config, opts ...Option) (*Store, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	s := &Store{
		cfg:     cfg,
		ids:     NewIDGenerator(cfg.MaxIDAttempts, nil),
		clock:   NewTimeAnnotator(),
		logger:  &NoOpLogger{},
		metrics: &NoOpMetrics{},
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.kv == nil {
		kv, err := s.openEngine()
		if err != nil {
			return nil, err
		}
		s.kv = kv
	}

	n, err := s.kv.Count()
	if err != nil {
		s.kv.Close()
		return nil, fmt.Errorf("count documents: %w", err)
	}
	s.count = n
	s.metrics.Gauge(MetricDocuments, float64(n))

	return s, nil
}

func (s *Store) openEngine() (KeyValueStore, error) {
	if s.cfg.Engine == EngineMemory {
		s.logger.Info("opening in-memory store")
		return OpenKeyValueStore(s.cfg)
	}

	path := s.cfg.Path
	dir, name := filepath.Split(path)
	if dir == "" {
		dir = "."
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		s.logger.Error("store directory unavailable", "path", path, "error", err)
		return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}

	exists := false
	for _, e := range entries {
		if e.Name() == name {
			exists = true
			break
		}
	}
	if exists {
		s.logger.Info("opening store", "path", path, "engine", s.cfg.Engine)
	} else {
		s.logger.Info("creating store", "path", path, "engine", s.cfg.Engine)
	}

	kv, err := OpenKeyValueStore(s.cfg)
	if err != nil {
		s.logger.Error("failed to open store", "path", path, "error", err)
		return nil, WithContext(ErrStoreUnavailable, map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}
	return kv, nil
}

func (s *Store) ready() error {
	if s == nil || s.kv == nil {
		return ErrStoreUnavailable
	}
	return nil
}

// observe records the outcome of one operation
func (s *Store) observe(op string, start time.Time, err error) {
	s.metrics.Timing(MetricOperationDuration, time.Since(start), "operation", op)
	s.metrics.Increment(MetricOperations, "operation", op)
	if err != nil {
		s.metrics.Increment(MetricOperationErrors, "operation", op)
	}
}

// Config returns the effective configuration of the store
func (s *Store) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.cfg
}

type writeOptions struct {
	withDeviceID bool
}

// WriteOption adjusts a single Write
type WriteOption func(*writeOptions)

// WithoutDeviceID leaves device_id out of the written document.
func WithoutDeviceID() WriteOption {
	return func(o *writeOptions) {
		o.withDeviceID = false
	}
}

// Write stores doc under a fresh id and returns the id.
//
// doc must be a map with string keys; anything else is ErrTypeMismatch and
// nothing is written. The caller's map is not modified. The stored copy drops
// any IDField and gets the current timestamp and, unless WithoutDeviceID is
// given, the configured device id.
func (s *Store) Write(ctx context.Context, doc any, opts ...WriteOption) (id string, err error) {
	if err := s.ready(); err != nil {
		return "", err
	}
	start := time.Now()
	defer func() { s.observe(OpWrite, start, err) }()

	if err := ctx.Err(); err != nil {
		return "", err
	}

	o := writeOptions{withDeviceID: true}
	for _, opt := range opts {
		opt(&o)
	}

	record, err := toDocument(doc)
	if err != nil {
		return "", err
	}
	delete(record, IDField)

	id, attempts, err := s.ids.generate(func(id string) (bool, error) {
		return s.kv.Has([]byte(id))
	})
	s.metrics.Histogram(MetricIDAttempts, float64(attempts))
	if err != nil {
		s.logger.Error("id generation failed", "attempts", attempts, "error", err)
		return "", err
	}

	s.clock.Annotate(record)
	if o.withDeviceID {
		record[DeviceIDField] = s.cfg.DeviceID
	}

	data, err := encodeDocument(record)
	if err != nil {
		return "", err
	}
	if err := s.kv.Put([]byte(id), data); err != nil {
		return "", fmt.Errorf("put %s: %w", id, err)
	}
	s.count++
	s.metrics.Gauge(MetricDocuments, float64(s.count))

	// The document is stored and counted, so the id goes back with the error
	if err := s.kv.Flush(); err != nil {
		return id, fmt.Errorf("flush: %w", err)
	}

	if s.cfg.WriteDelay > 0 {
		timer := time.NewTimer(s.cfg.WriteDelay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
		}
	}

	return id, nil
}

type readOptions struct {
	raw bool
}

// ReadOption adjusts how documents are returned
type ReadOption func(*readOptions)

// WithRawTimestamp returns timestamps as stored epoch seconds instead of display strings.
func WithRawTimestamp() ReadOption {
	return func(o *readOptions) {
		o.raw = true
	}
}

func newReadOptions(opts []ReadOption) readOptions {
	var o readOptions
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// present prepares a stored document for a caller
func (s *Store) present(id string, doc Document, raw bool) Document {
	doc[IDField] = id
	if !raw {
		s.clock.DisplayDocument(doc, s.cfg.UTCOffset)
	}
	return doc
}

// Read returns the document stored under id with IDField set.
// An unknown id is ErrNotFound; an empty id is ErrSelectorRequired.
func (s *Store) Read(ctx context.Context, id string, opts ...ReadOption) (doc Document, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { s.observe(OpRead, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, ErrSelectorRequired
	}

	data, err := s.kv.Get([]byte(id))
	if errors.Is(err, ErrNotFound) {
		return nil, WithContext(ErrNotFound, map[string]interface{}{"id": id})
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}

	doc, err = decodeDocument(id, data)
	if err != nil {
		return nil, err
	}
	return s.present(id, doc, newReadOptions(opts).raw), nil
}

// ReadAll returns a lazy sequence of every document in ascending key order.
// Each call starts a new pass. The store may be modified between iterations;
// a decode error is yielded and ends the sequence.
func (s *Store) ReadAll(ctx context.Context, opts ...ReadOption) iter.Seq2[Document, error] {
	o := newReadOptions(opts)
	return func(yield func(Document, error) bool) {
		if err := s.ready(); err != nil {
			yield(nil, err)
			return
		}
		start := time.Now()

		var decodeErr error
		stopped := false
		err := s.scan(ctx, func(id string, data []byte) bool {
			doc, err := decodeDocument(id, data)
			if err != nil {
				decodeErr = err
				return false
			}
			if !yield(s.present(id, doc, o.raw), nil) {
				stopped = true
				return false
			}
			return true
		})
		if err == nil {
			err = decodeErr
		}
		s.observe(OpScan, start, err)
		if err != nil && !stopped {
			yield(nil, err)
		}
	}
}

// ReadRequest selects documents for Find. Exactly one of ID and All must be set.
type ReadRequest struct {
	ID  string
	All bool
	Raw bool
}

// Find reads one document by id or all of them, as selected by req.
func (s *Store) Find(ctx context.Context, req ReadRequest) (iter.Seq2[Document, error], error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if req.All == (req.ID != "") {
		return nil, ErrSelectorRequired
	}

	var opts []ReadOption
	if req.Raw {
		opts = append(opts, WithRawTimestamp())
	}

	if req.All {
		return s.ReadAll(ctx, opts...), nil
	}

	doc, err := s.Read(ctx, req.ID, opts...)
	if err != nil {
		return nil, err
	}
	return func(yield func(Document, error) bool) {
		yield(doc, nil)
	}, nil
}

// Delete removes the document stored under id and returns 1.
// An unknown id is ErrNotFound and changes nothing.
func (s *Store) Delete(ctx context.Context, id string) (n int, err error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { s.observe(OpDelete, start, err) }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if id == "" {
		return 0, ErrSelectorRequired
	}

	err = s.kv.Delete([]byte(id))
	if errors.Is(err, ErrNotFound) {
		return 0, WithContext(ErrNotFound, map[string]interface{}{"id": id})
	}
	if err != nil {
		return 0, fmt.Errorf("delete %s: %w", id, err)
	}
	s.count--
	s.metrics.Gauge(MetricDocuments, float64(s.count))

	if err := s.kv.Flush(); err != nil {
		return 1, fmt.Errorf("flush: %w", err)
	}
	return 1, nil
}

// DropAll removes every document, recreating the backing file, and returns
// how many documents there were.
func (s *Store) DropAll(ctx context.Context) (n int, err error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	start := time.Now()
	defer func() { s.observe(OpDropAll, start, err) }()

	if err := ctx.Err(); err != nil {
		return 0, err
	}

	n = s.count
	s.count = 0
	if err := s.kv.Reset(); err != nil {
		s.logger.Error("drop all failed", "path", s.cfg.Path, "error", err)
		if recount, cerr := s.kv.Count(); cerr == nil {
			s.count = recount
		}
		return 0, fmt.Errorf("reset: %w", err)
	}
	s.metrics.Gauge(MetricDocuments, 0)
	s.logger.Info("dropped all documents", "path", s.cfg.Path, "count", n)

	return n, nil
}

// DeleteRequest selects documents for Remove. Exactly one of ID and All must be set.
type DeleteRequest struct {
	ID  string
	All bool
}

// Remove deletes one document by id or all of them, as selected by req.
func (s *Store) Remove(ctx context.Context, req DeleteRequest) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if req.All == (req.ID != "") {
		return 0, ErrSelectorRequired
	}
	if req.All {
		return s.DropAll(ctx)
	}
	return s.Delete(ctx, req.ID)
}

// Filter returns every document whose flattened view matches all predicates,
// in ascending key order. Documents are matched as a read would return them:
// with IDField set and the timestamp in display form. No match is ErrNoDocuments.
func (s *Store) Filter(ctx context.Context, predicates Predicates) (docs []Document, err error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer func() { s.observe(OpFilter, start, err) }()

	matcher, err := CompilePredicates(predicates)
	if err != nil {
		return nil, err
	}

	var decodeErr error
	err = s.scan(ctx, func(id string, data []byte) bool {
		doc, err := decodeDocument(id, data)
		if err != nil {
			decodeErr = err
			return false
		}
		doc = s.present(id, doc, false)
		if matcher.MatchDocument(doc) {
			docs = append(docs, doc)
		}
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return nil, err
	}

	s.metrics.Histogram(MetricFilterResults, float64(len(docs)))
	if len(docs) == 0 {
		return nil, WithContext(ErrNoDocuments, map[string]interface{}{
			"predicates": matcher.Len(),
		})
	}
	return docs, nil
}

// Cleanup deletes documents older than Config.CleanupSeconds.
// Without a configured threshold it returns ErrConfigurationMissing.
func (s *Store) Cleanup(ctx context.Context) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if s.cfg.CleanupSeconds <= 0 {
		return 0, ErrConfigurationMissing
	}
	return s.cleanup(ctx, s.cfg.CleanupSeconds)
}

// CleanupAfter deletes documents whose age in seconds is at least seconds,
// regardless of the configured default. Zero deletes every timestamped document.
func (s *Store) CleanupAfter(ctx context.Context, seconds int) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	if seconds < 0 {
		return 0, WithContext(ErrInvalidArgument, map[string]interface{}{
			"seconds": seconds,
			"reason":  "must be non-negative",
		})
	}
	return s.cleanup(ctx, seconds)
}

func (s *Store) cleanup(ctx context.Context, seconds int) (deleted int, err error) {
	start := time.Now()
	defer func() { s.observe(OpCleanup, start, err) }()

	now := s.clock.Epoch()
	threshold := float64(seconds)

	// Collect first, delete after: the engine is never modified mid-scan.
	var expired []string
	var decodeErr error
	err = s.scan(ctx, func(id string, data []byte) bool {
		doc, err := decodeDocument(id, data)
		if err != nil {
			decodeErr = err
			return false
		}
		ts, ok := Timestamp(doc)
		if ok && now-ts >= threshold {
			expired = append(expired, id)
		}
		return true
	})
	if err == nil {
		err = decodeErr
	}
	if err != nil {
		return 0, err
	}

	for _, id := range expired {
		if err := ctx.Err(); err != nil {
			return deleted, s.finishCleanup(deleted, seconds, err)
		}
		err := s.kv.Delete([]byte(id))
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return deleted, s.finishCleanup(deleted, seconds, fmt.Errorf("delete %s: %w", id, err))
		}
		deleted++
		s.count--
	}

	return deleted, s.finishCleanup(deleted, seconds, nil)
}

// finishCleanup flushes whatever a cleanup pass deleted and records it.
func (s *Store) finishCleanup(deleted, seconds int, cause error) error {
	s.metrics.Gauge(MetricDocuments, float64(s.count))
	s.metrics.Histogram(MetricCleanupDeleted, float64(deleted))

	if deleted > 0 {
		if err := s.kv.Flush(); err != nil && cause == nil {
			cause = fmt.Errorf("flush: %w", err)
		}
	}
	if cause != nil {
		s.logger.Error("cleanup interrupted", "deleted", deleted, "seconds", seconds, "error", cause)
		return cause
	}
	s.logger.Info("cleanup finished", "deleted", deleted, "seconds", seconds)
	return nil
}

// scan walks every entry in key order, one page at a time. Each page is
// copied out of the engine before fn sees it, so fn may modify the store.
func (s *Store) scan(ctx context.Context, fn func(id string, data []byte) bool) error {
	type entry struct {
		key   []byte
		value []byte
	}

	pageSize := s.cfg.ScanPageSize
	if pageSize <= 0 {
		pageSize = DefaultScanPageSize
	}

	var from []byte
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.kv == nil {
			return ErrStoreUnavailable
		}

		page := make([]entry, 0, pageSize)
		err := s.kv.Ascend(from, func(key, value []byte) bool {
			page = append(page, entry{key: cloneBytes(key), value: cloneBytes(value)})
			return len(page) < pageSize
		})
		if err != nil {
			return fmt.Errorf("scan: %w", err)
		}

		for _, e := range page {
			if err := ctx.Err(); err != nil {
				return err
			}
			if !fn(string(e.key), e.value) {
				return nil
			}
		}

		if len(page) < pageSize {
			return nil
		}
		// next page starts just after the last key
		last := page[len(page)-1].key
		from = append(last[:len(last):len(last)], 0)
	}
}

// Len returns the number of documents in the store. It is 0 for an unavailable store.
func (s *Store) Len() int {
	if s.ready() != nil {
		return 0
	}
	return s.count
}

// Stats describes an open store
type Stats struct {
	Path           string
	Engine         string
	Documents      int
	DeviceID       string
	UTCOffset      string
	CleanupSeconds int
	Encrypted      bool

	// Platform is GOOS/GOARCH and GoVersion the runtime version of the process.
	Platform  string
	GoVersion string
}

// Stats returns a snapshot of the store's configuration and size
func (s *Store) Stats() Stats {
	if s.ready() != nil {
		return Stats{}
	}
	_, encrypted := s.kv.(*EncryptedStore)
	return Stats{
		Path:           s.cfg.Path,
		Engine:         s.cfg.Engine,
		Documents:      s.count,
		DeviceID:       s.cfg.DeviceID,
		UTCOffset:      s.cfg.UTCOffset,
		CleanupSeconds: s.cfg.CleanupSeconds,
		Encrypted:      encrypted,
		Platform:       runtime.GOOS + "/" + runtime.GOARCH,
		GoVersion:      runtime.Version(),
	}
}

func (s *Store) String() string {
	if s.ready() != nil {
		return "TetherDB(unavailable)"
	}
	st := s.Stats()
	cleanup := "unset"
	if st.CleanupSeconds > 0 {
		cleanup = fmt.Sprintf("%ds", st.CleanupSeconds)
	}
	return fmt.Sprintf("TetherDB(path=%q, engine=%s, documents=%d, device_id=%q, utc_offset=%q, cleanup=%s)",
		st.Path, st.Engine, st.Documents, st.DeviceID, st.UTCOffset, cleanup)
}

// Close releases the engine. Later calls return ErrStoreUnavailable.
func (s *Store) Close() error {
	if s.ready() != nil {
		return nil
	}
	err := s.kv.Close()
	s.kv = nil
	s.logger.Info("closed store", "path", s.cfg.Path)
	return err
}
