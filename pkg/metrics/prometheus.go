// Package metrics provides Prometheus metrics for the vouch admission service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the vouch service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	registry         prometheus.Registerer

	// Admission metrics - sessions and votes drive the whole service
	sessionsOpened    prometheus.Counter
	sessionsFinalized *prometheus.CounterVec
	openSessions      prometheus.Gauge
	votesRecorded     prometheus.Counter
	votesDuplicate    prometheus.Counter
	panelSize         prometheus.Histogram

	// Trust pipeline metrics
	clicksRecorded         prometheus.Counter
	scoreRecomputeDuration prometheus.Histogram

	// Realtime gateway metrics
	connectedClients  prometheus.Gauge
	eventsDelivered   prometheus.Counter
	deliveriesSkipped prometheus.Counter

	// Store metrics
	storeReadLatency  prometheus.Histogram
	storeWriteLatency prometheus.Histogram
	storeErrors       prometheus.Counter

	// Queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Worker metrics
	workerCount             prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Error tracking
	errorsByComponent *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
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
		namespace:        "vouch",
		subsystem:        "admission",
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

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // metric registration is one long block on purpose
	auto := promauto.With(m.registry)

	m.sessionsOpened = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_opened_total",
		Help:      "Total number of verification sessions opened",
	})
	m.sessionsFinalized = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sessions_finalized_total",
		Help:      "Total number of verification sessions finalized, by decision",
	}, []string{"decision"})
	m.openSessions = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "open_sessions",
		Help:      "Number of verification sessions currently open",
	})
	m.votesRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "votes_recorded_total",
		Help:      "Total number of validator votes recorded",
	})
	m.votesDuplicate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "votes_duplicate_total",
		Help:      "Total number of duplicate votes discarded",
	})
	m.panelSize = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "panel_size",
		Help:      "Size of validator panels assigned to sessions",
		Buckets:   []float64{0, 1, 2, 3, 5, 10},
	})

	m.clicksRecorded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "trust",
		Name:      "clicks_recorded_total",
		Help:      "Total number of interaction events recorded",
	})
	m.scoreRecomputeDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "trust",
		Name:      "score_recompute_duration_ms",
		Help:      "Latency of full pair/personal score recomputation in milliseconds",
		Buckets:   m.histogramBuckets,
	})

	m.connectedClients = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "connected_clients",
		Help:      "Number of currently connected websocket clients",
	})
	m.eventsDelivered = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "events_delivered_total",
		Help:      "Total number of realtime events delivered to clients",
	})
	m.deliveriesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "gateway",
		Name:      "deliveries_skipped_total",
		Help:      "Total number of deliveries skipped because the target was offline",
	})

	m.storeReadLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "read_latency_ms",
		Help:      "Latency of sheet reads in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeWriteLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "write_latency_ms",
		Help:      "Latency of sheet writes in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.storeErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "errors_total",
		Help:      "Total number of store errors",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "size",
		Help:      "Current number of queued interaction events",
	})
	m.queueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "capacity",
		Help:      "Maximum capacity of the interaction event queue",
	})
	m.queueUtilization = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "utilization",
		Help:      "Queue utilization ratio (0.0 to 1.0)",
	})
	m.queueEnqueueRate = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "enqueue_total",
		Help:      "Total number of events enqueued",
	})
	m.queueEnqueueErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "queue",
		Name:      "enqueue_errors_total",
		Help:      "Total number of enqueue failures",
	})

	m.workerCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "worker",
		Name:      "count",
		Help:      "Number of recorder workers",
	})
	m.workerProcessingLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "worker",
		Name:      "processing_latency_ms",
		Help:      "Latency of recording one interaction event in milliseconds",
		Buckets:   m.histogramBuckets,
	})
	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "worker",
		Name:      "errors_total",
		Help:      "Total number of worker processing errors",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_ms",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "errors",
		Name:      "by_component_total",
		Help:      "Total number of errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_bytes",
		Help:      "Current memory usage in bytes",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Current number of goroutines",
	})
}

// Admission helpers.

func RecordSessionOpened() {
	globalManager.sessionsOpened.Inc()
}

func RecordSessionFinalized(approved bool) {
	decision := "rejected"
	if approved {
		decision = "approved"
	}
	globalManager.sessionsFinalized.WithLabelValues(decision).Inc()
}

func UpdateOpenSessions(count int) {
	globalManager.openSessions.Set(float64(count))
}

func RecordVote() {
	globalManager.votesRecorded.Inc()
}

func RecordDuplicateVote() {
	globalManager.votesDuplicate.Inc()
}

func RecordPanelSize(size int) {
	globalManager.panelSize.Observe(float64(size))
}

// Trust pipeline helpers.

func RecordClickRecorded() {
	globalManager.clicksRecorded.Inc()
}

func RecordScoreRecomputeDuration(latencyMs float64) {
	globalManager.scoreRecomputeDuration.Observe(latencyMs)
}

// Gateway helpers.

func UpdateConnectedClients(count int) {
	globalManager.connectedClients.Set(float64(count))
}

func RecordEventDelivered() {
	globalManager.eventsDelivered.Inc()
}

func RecordDeliverySkipped() {
	globalManager.deliveriesSkipped.Inc()
}

// Store helpers.

func RecordStoreReadLatency(latencyMs float64) {
	globalManager.storeReadLatency.Observe(latencyMs)
}

func RecordStoreWriteLatency(latencyMs float64) {
	globalManager.storeWriteLatency.Observe(latencyMs)
}

func RecordStoreError() {
	globalManager.storeErrors.Inc()
}

// Queue helpers.

func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

func UpdateQueueUtilization(utilization float64) {
	globalManager.queueUtilization.Set(utilization)
}

func RecordQueueEnqueue() {
	globalManager.queueEnqueueRate.Inc()
}

func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker helpers.

func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP helpers.

func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Error helpers.

func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System helpers.

func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// GetRegistry returns the custom registry served at /metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
