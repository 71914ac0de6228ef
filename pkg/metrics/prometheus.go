// Package metrics provides Prometheus metrics for the gamestr leaderboard service.
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

// Manager manages all Prometheus metrics for the gamestr service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	refreshInterval  time.Duration
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Relay publish metrics
	publishAttempts *prometheus.CounterVec
	publishResults  *prometheus.CounterVec
	publishLatency  *prometheus.HistogramVec

	// Relay subscription metrics
	subscriptionEvents      *prometheus.CounterVec
	subscriptionCompletions *prometheus.CounterVec
	subscriptionLatency     *prometheus.HistogramVec
	protocolViolations      *prometheus.CounterVec

	// Leaderboard metrics
	leaderboardBuilds       *prometheus.CounterVec
	leaderboardEntries      prometheus.Gauge
	leaderboardBuildLatency prometheus.Histogram
	leaderboardLastBuild    prometheus.Gauge
	duplicateEvents         prometheus.Counter
	profileResolutions      *prometheus.CounterVec

	// Signing metrics
	signingRequests *prometheus.CounterVec
	signingLatency  prometheus.Histogram

	// Refresh queue metrics
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueEnqueued      prometheus.Counter
	queueDequeued      prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Refresh worker metrics
	workerCount             prometheus.Gauge
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec

	// System metrics
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
		namespace:        "gamestr",
		subsystem:        "leaderboard",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		refreshInterval:  defaultRefreshInterval,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// Enabled reports whether collection is switched on.
func (m *Manager) Enabled() bool { return m.enabled }

// RefreshInterval is how often gauge updaters should run.
func (m *Manager) RefreshInterval() time.Duration { return m.refreshInterval }

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		ConstLabels: m.customLabels,
	}
}

func (m *Manager) histogramOpts(name, help string) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name(name),
		Help:        help,
		Buckets:     m.histogramBuckets,
		ConstLabels: m.customLabels,
	}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	// Relay publish metrics
	m.publishAttempts = auto.NewCounterVec(
		m.counterOpts("relay_publish_attempts_total", "Per-relay publish outcomes"),
		[]string{"relay", "outcome"},
	)
	m.publishResults = auto.NewCounterVec(
		m.counterOpts("publish_results_total", "Aggregated publish results (success when at least one relay accepted)"),
		[]string{"result"},
	)
	m.publishLatency = auto.NewHistogramVec(
		m.histogramOpts("relay_publish_latency_milliseconds", "Time from dial to terminal acknowledgement per relay"),
		[]string{"relay", "outcome"},
	)

	// Relay subscription metrics
	m.subscriptionEvents = auto.NewCounterVec(
		m.counterOpts("relay_subscription_events_total", "Events received on subscriptions"),
		[]string{"relay"},
	)
	m.subscriptionCompletions = auto.NewCounterVec(
		m.counterOpts("relay_subscription_completions_total", "Subscription terminations by cause"),
		[]string{"relay", "termination"},
	)
	m.subscriptionLatency = auto.NewHistogramVec(
		m.histogramOpts("relay_subscription_latency_milliseconds", "Subscription duration until termination"),
		[]string{"relay", "termination"},
	)
	m.protocolViolations = auto.NewCounterVec(
		m.counterOpts("relay_protocol_violations_total", "Frames that could not be decoded"),
		[]string{"relay"},
	)

	// Leaderboard metrics
	m.leaderboardBuilds = auto.NewCounterVec(
		m.counterOpts("builds_total", "Leaderboard builds by final status"),
		[]string{"status"},
	)
	m.leaderboardEntries = auto.NewGauge(m.gaugeOpts("entries", "Entries on the most recently built leaderboard"))
	m.leaderboardBuildLatency = auto.NewHistogram(m.histogramOpts("build_latency_milliseconds", "Leaderboard build latency"))
	m.leaderboardLastBuild = auto.NewGauge(m.gaugeOpts("last_build_unix", "Unix timestamp of the last published leaderboard"))
	m.duplicateEvents = auto.NewCounter(m.counterOpts("duplicate_events_total", "Score events dropped as duplicates"))
	m.profileResolutions = auto.NewCounterVec(
		m.counterOpts("profile_resolutions_total", "Profile enrichment results"),
		[]string{"result"},
	)

	// Signing metrics
	m.signingRequests = auto.NewCounterVec(
		m.counterOpts("signing_requests_total", "Signing requests by signer and result"),
		[]string{"signer", "result"},
	)
	m.signingLatency = auto.NewHistogram(m.histogramOpts("signing_latency_milliseconds", "Remote signing latency"))

	// Refresh queue metrics
	m.queueSize = auto.NewGauge(m.gaugeOpts("refresh_queue_size", "Pending refresh requests"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("refresh_queue_capacity", "Refresh queue capacity"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("refresh_queue_enqueue_total", "Refresh requests enqueued"))
	m.queueDequeued = auto.NewCounter(m.counterOpts("refresh_queue_dequeue_total", "Refresh requests dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("refresh_queue_enqueue_errors_total", "Refresh requests dropped"))

	// Refresh worker metrics
	m.workerCount = auto.NewGauge(m.gaugeOpts("refresh_worker_count", "Configured refresh workers"))
	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("refresh_worker_active_count", "Refresh workers currently building"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("refresh_worker_latency_milliseconds", "Refresh processing latency"))
	m.workerErrors = auto.NewCounter(m.counterOpts("refresh_worker_errors_total", "Refresh worker errors"))

	// HTTP metrics
	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "Total number of HTTP requests by endpoint and method"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.errorsByEndpoint = auto.NewCounterVec(
		m.counterOpts("errors_by_endpoint_total", "Total number of errors by endpoint"),
		[]string{"endpoint", "method", "error_type"},
	)

	// System metrics
	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "System memory usage in bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        m.name("system_gc_pause_time_milliseconds"),
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.customLabels,
	})
}

// Relay metrics functions.

// RecordPublishAttempt records one relay's terminal outcome and its latency.
func RecordPublishAttempt(relay, outcome string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.publishAttempts.WithLabelValues(relay, outcome).Inc()
	globalManager.publishLatency.WithLabelValues(relay, outcome).Observe(latencyMs)
}

// RecordPublishResult records the aggregated publish result.
func RecordPublishResult(success bool) {
	if !globalManager.enabled {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	globalManager.publishResults.WithLabelValues(result).Inc()
}

// RecordSubscriptionEvent increments the events received counter for a relay.
func RecordSubscriptionEvent(relay string) {
	if !globalManager.enabled {
		return
	}
	globalManager.subscriptionEvents.WithLabelValues(relay).Inc()
}

// RecordSubscriptionCompletion records how a subscription ended.
func RecordSubscriptionCompletion(relay, termination string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.subscriptionCompletions.WithLabelValues(relay, termination).Inc()
	globalManager.subscriptionLatency.WithLabelValues(relay, termination).Observe(latencyMs)
}

// RecordProtocolViolation counts an undecodable frame from a relay.
func RecordProtocolViolation(relay string) {
	if !globalManager.enabled {
		return
	}
	globalManager.protocolViolations.WithLabelValues(relay).Inc()
}

// Leaderboard metrics functions.

// RecordLeaderboardBuild records a finished build.
func RecordLeaderboardBuild(status string, entries int, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.leaderboardBuilds.WithLabelValues(status).Inc()
	globalManager.leaderboardEntries.Set(float64(entries))
	globalManager.leaderboardBuildLatency.Observe(latencyMs)
}

// RecordLeaderboardPublished stamps the time the store took a new board.
func RecordLeaderboardPublished(at time.Time) {
	if !globalManager.enabled {
		return
	}
	globalManager.leaderboardLastBuild.Set(float64(at.Unix()))
}

// RecordDuplicateEvent increments the duplicate score events counter.
func RecordDuplicateEvent() {
	if !globalManager.enabled {
		return
	}
	globalManager.duplicateEvents.Inc()
}

// RecordProfileResolution records a resolved, unresolved or malformed profile.
func RecordProfileResolution(result string, n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.profileResolutions.WithLabelValues(result).Add(float64(n))
}

// Signing metrics functions.

// RecordSigning records one signing request.
func RecordSigning(signer string, success bool, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	result := "failure"
	if success {
		result = "success"
	}
	globalManager.signingRequests.WithLabelValues(signer, result).Inc()
	globalManager.signingLatency.Observe(latencyMs)
}

// Queue metrics functions.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) {
	globalManager.queueCapacity.Set(float64(capacity))
}

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() {
	globalManager.queueDequeued.Inc()
}

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() {
	globalManager.queueEnqueueErrors.Inc()
}

// Worker metrics functions.

// UpdateWorkerCount sets the configured worker count.
func UpdateWorkerCount(count int) {
	globalManager.workerCount.Set(float64(count))
}

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) {
	globalManager.workerActiveCount.Set(float64(count))
}

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// HTTP metrics functions.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System metrics functions.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
