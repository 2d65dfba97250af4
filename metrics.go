package tetherdb

import "time"

// Metrics provides observability for TetherDB operations
type Metrics interface {
	// Increment increases a counter by 1
	Increment(name string, tags ...string)

	// Gauge sets an absolute value
	Gauge(name string, value float64, tags ...string)

	// Histogram records a value distribution (latency, size, etc)
	Histogram(name string, value float64, tags ...string)

	// Timing records a duration
	Timing(name string, duration time.Duration, tags ...string)
}

// NoOpMetrics is a metrics collector that does nothing
type NoOpMetrics struct{}

func (m *NoOpMetrics) Increment(name string, tags ...string)                      {}
func (m *NoOpMetrics) Gauge(name string, value float64, tags ...string)           {}
func (m *NoOpMetrics) Histogram(name string, value float64, tags ...string)       {}
func (m *NoOpMetrics) Timing(name string, duration time.Duration, tags ...string) {}

// InMemoryMetrics stores metrics in memory for testing.
// Tags are folded into the key as name{k=v,...} so per-operation series stay apart.
type InMemoryMetrics struct {
	Counters   map[string]int
	Gauges     map[string]float64
	Histograms map[string][]float64
	Timings    map[string][]time.Duration
}

func NewInMemoryMetrics() *InMemoryMetrics {
	return &InMemoryMetrics{
		Counters:   make(map[string]int),
		Gauges:     make(map[string]float64),
		Histograms: make(map[string][]float64),
		Timings:    make(map[string][]time.Duration),
	}
}

func (m *InMemoryMetrics) Increment(name string, tags ...string) {
	m.Counters[seriesKey(name, tags)]++
}

func (m *InMemoryMetrics) Gauge(name string, value float64, tags ...string) {
	m.Gauges[seriesKey(name, tags)] = value
}

func (m *InMemoryMetrics) Histogram(name string, value float64, tags ...string) {
	key := seriesKey(name, tags)
	m.Histograms[key] = append(m.Histograms[key], value)
}

func (m *InMemoryMetrics) Timing(name string, duration time.Duration, tags ...string) {
	key := seriesKey(name, tags)
	m.Timings[key] = append(m.Timings[key], duration)
}

func seriesKey(name string, tags []string) string {
	if len(tags) < 2 {
		return name
	}
	key := name + "{"
	for i := 0; i+1 < len(tags); i += 2 {
		if i > 0 {
			key += ","
		}
		key += tags[i] + "=" + tags[i+1]
	}
	return key + "}"
}

// Common metric names
const (
	MetricOperations        = "tetherdb.operations"         // tags: operation
	MetricOperationErrors   = "tetherdb.operation.errors"   // tags: operation
	MetricOperationDuration = "tetherdb.operation.duration" // tags: operation
	MetricDocuments         = "tetherdb.documents"
	MetricFilterResults     = "tetherdb.filter.results"
	MetricCleanupDeleted    = "tetherdb.cleanup.deleted"
	MetricIDAttempts        = "tetherdb.id.attempts"
	MetricQueryResults      = "tetherdb.query.results"
	MetricBatchSize         = "tetherdb.batch.size" // tags: operation
)

// Operation tag values
const (
	OpWrite   = "write"
	OpRead    = "read"
	OpScan    = "scan"
	OpDelete  = "delete"
	OpDropAll = "drop_all"
	OpFilter  = "filter"
	OpCleanup = "cleanup"
	OpQuery   = "query"
	OpBatch   = "batch"
)
