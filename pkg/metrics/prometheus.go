// Package metrics provides Prometheus metrics for the gradestats service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Grades
	gradeUpdates     *prometheus.CounterVec
	recomputeLatency prometheus.Histogram

	// Snapshots
	snapshotRebuilds        *prometheus.CounterVec
	snapshotRebuildDuration prometheus.Histogram
	snapshotLastUnix        prometheus.Gauge

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter
	queueCoalesced     prometheus.Counter

	// Workers
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Cache and notifications
	cacheRequests *prometheus.CounterVec
	notifications *prometheus.CounterVec

	errorsByComponent *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "gradestats",
		subsystem:        "engine",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000},
		enabled:          true,
		constLabels:      map[string]string{},
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registry).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registry).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels,
		Buckets: m.histogramBuckets,
	})
}

func (m *Manager) initializeMetrics() {
	m.gradeUpdates = m.counterVec("grade_updates_total", "Grade updates by outcome", "result")
	m.recomputeLatency = m.histogram("recompute_latency_milliseconds", "Time spent recomputing a semester record")

	m.snapshotRebuilds = m.counterVec("snapshot_rebuilds_total", "Snapshot rebuilds by scope and action", "scope", "action")
	m.snapshotRebuildDuration = m.histogram("snapshot_rebuild_duration_milliseconds", "Snapshot rebuild duration")
	m.snapshotLastUnix = m.gauge("snapshot_last_unix", "Unix time of the last persisted snapshot")

	m.queueSize = m.gauge("queue_size", "Rebuild jobs waiting in the queue")
	m.queueCapacity = m.gauge("queue_capacity", "Rebuild queue capacity")
	m.queueEnqueued = m.counter("queue_enqueued_total", "Rebuild jobs enqueued")
	m.queueDequeued = m.counter("queue_dequeued_total", "Rebuild jobs dequeued")
	m.queueEnqueueErrors = m.counter("queue_enqueue_errors_total", "Rebuild jobs rejected by the queue")
	m.queueCoalesced = m.counter("queue_coalesced_total", "Rebuild requests merged into a pending job")

	m.workerCount = m.gauge("worker_count", "Running rebuild workers")
	m.workerProcessingLatency = m.histogram("worker_processing_latency_milliseconds", "Rebuild job processing latency")
	m.workerErrors = m.counter("worker_errors_total", "Rebuild jobs that failed")

	m.httpRequests = m.counterVec("http_requests_total", "HTTP requests by endpoint, method and status", "endpoint", "method", "status_code")
	m.httpRequestDuration = promauto.With(m.registry).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: "http_request_duration_milliseconds",
		Help: "HTTP request duration", ConstLabels: m.constLabels, Buckets: m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.cacheRequests = m.counterVec("cache_requests_total", "Snapshot cache lookups by result", "result")
	m.notifications = m.counterVec("notifications_total", "Grade notifications by result", "result")

	m.errorsByComponent = m.counterVec("errors_total", "Errors by component and type", "component", "type")
}

// RecordGradeUpdate counts a grade update with its outcome.
func RecordGradeUpdate(result string) {
	if globalManager.enabled {
		globalManager.gradeUpdates.WithLabelValues(result).Inc()
	}
}

// RecordRecomputeLatency records how long a record recompute took.
func RecordRecomputeLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.recomputeLatency.Observe(latencyMs)
	}
}

// RecordSnapshotRebuild counts a rebuild; action is insert, update, empty or error.
func RecordSnapshotRebuild(scope, action string, durationMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.snapshotRebuilds.WithLabelValues(scope, action).Inc()
	globalManager.snapshotRebuildDuration.Observe(durationMs)
}

// UpdateSnapshotLastUnix sets the time of the last persisted snapshot.
func UpdateSnapshotLastUnix(unix int64) {
	if globalManager.enabled {
		globalManager.snapshotLastUnix.Set(float64(unix))
	}
}

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	if globalManager.enabled {
		globalManager.queueSize.Set(float64(size))
	}
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	if globalManager.enabled {
		globalManager.queueCapacity.Set(float64(capacity))
	}
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	if globalManager.enabled {
		globalManager.queueEnqueued.Inc()
	}
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	if globalManager.enabled {
		globalManager.queueDequeued.Inc()
	}
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	if globalManager.enabled {
		globalManager.queueEnqueueErrors.Inc()
	}
}

// RecordQueueCoalesced counts a request merged into an already pending job.
func RecordQueueCoalesced() {
	if globalManager.enabled {
		globalManager.queueCoalesced.Inc()
	}
}

// UpdateWorkerCount sets the current worker count.
func UpdateWorkerCount(count int) {
	if globalManager.enabled {
		globalManager.workerCount.Set(float64(count))
	}
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	if globalManager.enabled {
		globalManager.workerProcessingLatency.Observe(latencyMs)
	}
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	if globalManager.enabled {
		globalManager.workerErrors.Inc()
	}
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if globalManager.enabled {
		globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
	}
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if globalManager.enabled {
		globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
	}
}

// RecordCacheResult counts a cache lookup: hit, miss, stale, corrupt or error.
func RecordCacheResult(result string) {
	if globalManager.enabled {
		globalManager.cacheRequests.WithLabelValues(result).Inc()
	}
}

// RecordNotification counts a notification attempt: sent, rate_limited or failed.
func RecordNotification(result string) {
	if globalManager.enabled {
		globalManager.notifications.WithLabelValues(result).Inc()
	}
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	if globalManager.enabled {
		globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
	}
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
