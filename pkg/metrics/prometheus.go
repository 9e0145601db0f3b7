// Package metrics provides Prometheus metrics for the ingestion engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus instruments for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Pipeline metrics.
	filesObserved  prometheus.Counter
	ingestOutcomes *prometheus.CounterVec
	decodeErrors   *prometheus.CounterVec
	ingestLatency  prometheus.Histogram
	readRetries    prometheus.Counter

	// Queue metrics.
	queueDepth    prometheus.Gauge
	queueCapacity prometheus.Gauge
	queueDrops    *prometheus.CounterVec

	// Worker and library metrics.
	workerCount prometheus.Gauge
	librarySize prometheus.Gauge
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid the default Go collectors.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // singleton registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithRegistry(customRegistry))
}

// Registry exposes the registry backing the global manager, for the
// /metrics handler.
func Registry() *prometheus.Registry {
	return customRegistry
}

// NewManager creates a metrics manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "ultrastate",
		subsystem:        "ingest",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	factory := promauto.With(m.registry)

	m.filesObserved = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "files_observed_total",
		Help: "FIT files observed by the directory watcher.",
	})
	m.ingestOutcomes = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "outcomes_total",
		Help: "Ingestion outcomes by kind (accepted, skipped, failed).",
	}, []string{"outcome"})
	m.decodeErrors = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "decode_errors_total",
		Help: "Decode failures by error kind.",
	}, []string{"kind"})
	m.ingestLatency = factory.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "latency_seconds",
		Help:    "End-to-end latency of one file ingestion.",
		Buckets: m.histogramBuckets,
	})
	m.readRetries = factory.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "read_retries_total",
		Help: "Transient file-read retries before decoding.",
	})

	m.queueDepth = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_depth",
		Help: "Events currently buffered in the ingestion queue.",
	})
	m.queueCapacity = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_capacity",
		Help: "Configured capacity of the ingestion queue.",
	})
	m.queueDrops = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "queue_drops_total",
		Help: "Events the queue refused, by reason.",
	}, []string{"reason"})

	m.workerCount = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "worker_count",
		Help: "Size of the ingestion worker pool.",
	})
	m.librarySize = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "library_size",
		Help: "Activities currently stored in the library.",
	})
}

// Package-level recording helpers over the global manager.

func RecordFileObserved() {
	if globalManager.enabled {
		globalManager.filesObserved.Inc()
	}
}

func RecordIngestOutcome(outcome string) {
	if globalManager.enabled {
		globalManager.ingestOutcomes.WithLabelValues(outcome).Inc()
	}
}

func RecordDecodeError(kind string) {
	if globalManager.enabled {
		globalManager.decodeErrors.WithLabelValues(kind).Inc()
	}
}

func RecordIngestLatency(seconds float64) {
	if globalManager.enabled {
		globalManager.ingestLatency.Observe(seconds)
	}
}

func RecordReadRetry() {
	if globalManager.enabled {
		globalManager.readRetries.Inc()
	}
}

func UpdateQueueDepth(n int) {
	if globalManager.enabled {
		globalManager.queueDepth.Set(float64(n))
	}
}

func UpdateQueueCapacity(n int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(n))
	}
}

func RecordQueueDrop(reason string) {
	if globalManager.enabled {
		globalManager.queueDrops.WithLabelValues(reason).Inc()
	}
}

func UpdateWorkerCount(n int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(n))
	}
}

func UpdateLibrarySize(n int) {
	if globalManager.enabled {
		globalManager.librarySize.Set(float64(n))
	}
}
