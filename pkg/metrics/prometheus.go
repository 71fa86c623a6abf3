// Package metrics provides Prometheus metrics for the scout matching service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Default metrics configuration constants.
const (
	defaultRefreshInterval = 10 * time.Second
)

// Manager manages all Prometheus metrics for the scout service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	postingsReceived  prometheus.Counter
	postingsDuplicate prometheus.Counter
	postingsFlagged   prometheus.Counter
	postingsMalformed prometheus.Counter

	// Ranking
	rankLatency   prometheus.Histogram
	rankBatches   prometheus.Counter
	rankedResults prometheus.Counter
	rankRollbacks prometheus.Counter

	// Feedback and model state
	decisions         *prometheus.CounterVec
	decisionsNotFound prometheus.Counter
	modelDecisions    prometheus.Gauge
	modelFeatures     *prometheus.GaugeVec
	inboxSize         prometheus.Gauge

	// Storage
	storageErrors  *prometheus.CounterVec
	storageLatency *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrorRate         prometheus.Counter

	// Scheduler
	discoveryRuns   *prometheus.CounterVec
	discoveryLastTS prometheus.Gauge

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "scout",
		subsystem:        "engine",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		metricPrefix:     "",
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	})
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.postingsReceived = m.counter("postings_received_total", "Total number of candidate postings submitted for ranking")
	m.postingsDuplicate = m.counter("postings_duplicate_total", "Total number of candidate postings dropped as duplicates")
	m.postingsFlagged = m.counter("postings_flagged_total", "Postings whose identity normalized to nothing and need manual review")
	m.postingsMalformed = m.counter("postings_malformed_total", "Postings with missing required fields (extraction degraded)")

	m.rankLatency = m.histogram("rank_latency_milliseconds", "Histogram of ranking pass latency in milliseconds")
	m.rankBatches = m.counter("rank_batches_total", "Total number of ranking passes")
	m.rankedResults = m.counter("ranked_results_total", "Total number of results emitted by ranking passes")
	m.rankRollbacks = m.counter("rank_rollbacks_total", "Ranking passes aborted and rolled back on storage failure")

	m.decisions = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("decisions_total"),
		Help: "Total number of decisions recorded by verdict",
	}, []string{"verdict", "redecision"})

	m.decisionsNotFound = m.counter("decisions_not_found_total", "Decisions rejected because the fingerprint is unknown")
	m.modelDecisions = m.gauge("model_decisions", "Number of distinct postings the model has learned from")

	m.modelFeatures = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("model_features"),
		Help: "Number of learned features per group",
	}, []string{"group"})

	m.inboxSize = m.gauge("inbox_size", "Recommendations awaiting a decision")

	m.storageErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("storage_errors_total"),
		Help: "Persistence failures by operation",
	}, []string{"backend", "op"})

	m.storageLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name:    m.name("storage_latency_milliseconds"),
		Help:    "Persistence call latency in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"backend", "op"})

	m.queueSize = m.gauge("queue_size", "Current size of the batch queue")
	m.queueCapacity = m.gauge("queue_capacity", "Maximum capacity of the batch queue")
	m.queueUtilization = m.gauge("queue_utilization_ratio", "Queue utilization ratio (size / capacity)")
	m.queueEnqueueRate = m.counter("queue_enqueue_total", "Total number of batches enqueued")
	m.queueDequeueRate = m.counter("queue_dequeue_total", "Total number of batches dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Total number of rejected enqueues")

	m.workerCount = m.gauge("worker_count", "Configured number of ranking workers")
	m.workerActiveCount = m.gauge("worker_active_count", "Workers currently ranking a batch")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Batch processing latency in milliseconds")
	m.workerErrorRate = m.counter("worker_errors_total", "Total number of batch processing errors")

	m.discoveryRuns = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("discovery_runs_total"),
		Help: "Scheduled discovery runs by outcome",
	}, []string{"source", "outcome"})
	m.discoveryLastTS = m.gauge("discovery_last_run_unix", "Unix time of the last discovery run")

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("http_requests_total"),
		Help: "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name:    m.name("http_request_duration_milliseconds"),
		Help:    "HTTP request duration in milliseconds",
		Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("errors_by_component_total"),
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, ConstLabels: m.customLabels,
		Name: m.name("errors_by_endpoint_total"),
		Help: "HTTP errors by endpoint, method and type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Ingestion.

func RecordPostingsReceived(n int) {
	if globalManager.enabled {
		globalManager.postingsReceived.Add(float64(n))
	}
}

func RecordPostingDuplicate() {
	if globalManager.enabled {
		globalManager.postingsDuplicate.Inc()
	}
}

func RecordPostingFlagged() {
	if globalManager.enabled {
		globalManager.postingsFlagged.Inc()
	}
}

func RecordPostingMalformed() {
	if globalManager.enabled {
		globalManager.postingsMalformed.Inc()
	}
}

// Ranking.

func RecordRank(latencyMs float64, results int) {
	if globalManager.enabled {
		globalManager.rankBatches.Inc()
		globalManager.rankLatency.Observe(latencyMs)
		globalManager.rankedResults.Add(float64(results))
	}
}

func RecordRankRollback() {
	if globalManager.enabled {
		globalManager.rankRollbacks.Inc()
	}
}

// Feedback and model.

func RecordDecision(verdict string, redecision bool) {
	if globalManager.enabled {
		r := "false"
		if redecision {
			r = "true"
		}
		globalManager.decisions.WithLabelValues(verdict, r).Inc()
	}
}

func RecordDecisionNotFound() {
	if globalManager.enabled {
		globalManager.decisionsNotFound.Inc()
	}
}

func UpdateModelDecisions(count int) {
	if globalManager.enabled {
		globalManager.modelDecisions.Set(float64(count))
	}
}

func UpdateModelFeatures(group string, count int) {
	if globalManager.enabled {
		globalManager.modelFeatures.WithLabelValues(group).Set(float64(count))
	}
}

func UpdateInboxSize(size int) {
	if globalManager.enabled {
		globalManager.inboxSize.Set(float64(size))
	}
}

// Storage.

func RecordStorageError(backend, op string) {
	if globalManager.enabled {
		globalManager.storageErrors.WithLabelValues(backend, op).Inc()
		globalManager.errorRateByComponent.WithLabelValues("storage", op).Inc()
	}
}

func RecordStorageLatency(backend, op string, latencyMs float64) {
	if globalManager.enabled {
		globalManager.storageLatency.WithLabelValues(backend, op).Observe(latencyMs)
	}
}

// Queue.

func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

func UpdateQueueUtilization(utilization float64) {
	if globalManager.enabled {
		globalManager.queueUtilization.Set(utilization)
	}
}

func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueueRate.Inc()
	}
}

func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeueRate.Inc()
	}
}

func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// Workers.

func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

func UpdateWorkerActiveCount(count int) {
	if globalManager.enabled {
		globalManager.workerActiveCount.Set(float64(count))
	}
}

func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrorRate.Inc()
	}
}

// Scheduler.

func RecordDiscoveryRun(source, outcome string) {
	if globalManager.enabled {
		globalManager.discoveryRuns.WithLabelValues(source, outcome).Inc()
		globalManager.discoveryLastTS.Set(float64(time.Now().Unix()))
	}
}

// HTTP.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// Errors.

func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
	}
}

func RecordErrorByEndpoint(endpoint, method, errorType string) {
	if globalManager.enabled {
		globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
	}
}

// System.

func UpdateSystemMemoryUsage(bytes uint64) {
	if globalManager.enabled {
		globalManager.systemMemoryUsage.Set(float64(bytes))
	}
}

func UpdateSystemGoroutineCount(count int) {
	if globalManager.enabled {
		globalManager.systemGoroutineCount.Set(float64(count))
	}
}

func RecordSystemGCPauseTime(pauseMs float64) {
	if globalManager.enabled {
		globalManager.systemGCPauseTime.Observe(pauseMs)
	}
}

// Configure applies runtime options to the global manager. Metric names are
// fixed at registration, so only WithMetricsEnabled and WithRefreshInterval
// have an effect here. Call it before recording starts.
func Configure(opts ...Option) {
	cur := Manager{enabled: globalManager.enabled, refreshInterval: globalManager.refreshInterval}
	for _, opt := range opts {
		opt(&cur)
	}
	globalManager.enabled = cur.enabled
	globalManager.refreshInterval = cur.refreshInterval
}

// Enabled reports whether the global manager records metrics.
func Enabled() bool { return globalManager.enabled }

// RefreshInterval returns how often gauges should be refreshed.
func RefreshInterval() time.Duration { return globalManager.refreshInterval }

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
