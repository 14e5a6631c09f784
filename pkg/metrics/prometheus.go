// Package metrics provides Prometheus metrics for the vauva heart service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector used by the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Heart traffic
	heartsLoaded     prometheus.Counter
	heartWrites      *prometheus.CounterVec
	saveBatches      *prometheus.CounterVec
	saveDuplicates   prometheus.Counter
	totalHearts      prometheus.Gauge
	storeLatency     *prometheus.HistogramVec
	storeErrors      *prometheus.CounterVec
	resultsRequested *prometheus.CounterVec

	// Sessions
	logins         *prometheus.CounterVec
	loginThrottled prometheus.Counter
	logouts        prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "vauva",
		subsystem:        "hearts",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)

	m.heartsLoaded = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "loaded_total",
		Help:      "Total number of heart records returned by load requests",
	})
	m.heartWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "writes_total",
		Help:      "Heart record writes applied to the store by operation",
	}, []string{"op"})
	m.saveBatches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "save_batches_total",
		Help:      "Save batches by outcome",
	}, []string{"outcome"})
	m.saveDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "save_duplicates_total",
		Help:      "Save batches skipped because their idempotency key was already applied",
	})
	m.totalHearts = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "records",
		Help:      "Number of heart records held by the store",
	})
	m.storeLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_latency_milliseconds",
		Help:      "Store operation latency in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"driver", "operation"})
	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store operation failures",
	}, []string{"driver", "operation"})
	m.resultsRequested = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "results_total",
		Help:      "Result views computed by kind",
	}, []string{"kind"})

	m.logins = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "sessions",
		Name:      "logins_total",
		Help:      "Login attempts by result",
	}, []string{"result"})
	m.loginThrottled = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "sessions",
		Name:      "login_throttled_total",
		Help:      "Login attempts rejected by the rate limiter",
	})
	m.logouts = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "sessions",
		Name:      "logouts_total",
		Help:      "Sessions destroyed by logout",
	})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests by endpoint and method",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_milliseconds",
		Help:      "HTTP request duration in milliseconds",
		Buckets:   m.histogramBuckets,
	}, []string{"endpoint", "method", "status_code"})
	m.errorRateByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "errors_total",
		Help:      "HTTP error responses by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_bytes",
		Help:      "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutines",
		Help:      "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_milliseconds",
		Help:      "Average GC pause in milliseconds",
		Buckets:   m.histogramBuckets,
	})
}

// RecordHeartsLoaded adds n to the loaded records counter.
func RecordHeartsLoaded(n int) {
	globalManager.heartsLoaded.Add(float64(n))
}

// RecordHeartWrites records applied writes for one operation kind.
func RecordHeartWrites(op string, n int) {
	if n <= 0 {
		return
	}
	globalManager.heartWrites.WithLabelValues(op).Add(float64(n))
}

// RecordSaveBatch records the outcome of a save batch: "applied", "duplicate" or "failed".
func RecordSaveBatch(outcome string) {
	globalManager.saveBatches.WithLabelValues(outcome).Inc()
}

// RecordSaveDuplicate counts a replayed save batch.
func RecordSaveDuplicate() {
	globalManager.saveDuplicates.Inc()
}

// UpdateTotalHearts sets the number of stored heart records.
func UpdateTotalHearts(count int) {
	globalManager.totalHearts.Set(float64(count))
}

// RecordStoreLatency observes a store call.
func RecordStoreLatency(driver, operation string, latencyMs float64) {
	globalManager.storeLatency.WithLabelValues(driver, operation).Observe(latencyMs)
}

// RecordStoreError counts a failed store call.
func RecordStoreError(driver, operation string) {
	globalManager.storeErrors.WithLabelValues(driver, operation).Inc()
}

// RecordResults counts a computed result view ("base" or "round").
func RecordResults(kind string) {
	globalManager.resultsRequested.WithLabelValues(kind).Inc()
}

// RecordLogin counts a login attempt by result ("ok" or "denied").
func RecordLogin(result string) {
	globalManager.logins.WithLabelValues(result).Inc()
}

// RecordLoginThrottled counts a rate-limited login attempt.
func RecordLoginThrottled() {
	globalManager.loginThrottled.Inc()
}

// RecordLogout counts a logout.
func RecordLogout() {
	globalManager.logouts.Inc()
}

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration observes HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error response.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
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
