// Package metrics provides Prometheus metrics for the health score service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace   string
	subsystem   string
	prefix      string
	buckets     []float64
	constLabels prometheus.Labels
	registerer  prometheus.Registerer

	// Scoring
	scoresComputed  prometheus.Counter
	scoreCacheHits  prometheus.Counter
	scoreCacheMiss  prometheus.Counter
	rosterSize      prometheus.Gauge
	analysesByKind  *prometheus.CounterVec
	analysisLatency *prometheus.HistogramVec

	// Series cache and upstream queries
	seriesCacheHits     prometheus.Counter
	seriesCacheMiss     prometheus.Counter
	upstreamLatency     prometheus.Histogram
	upstreamFailures    *prometheus.CounterVec
	fallbackActivations prometheus.Counter
	fallbackFailures    prometheus.Counter
	staleDiscarded      prometheus.Counter

	// Repository
	repositoryQueryLatency prometheus.Histogram

	// Snapshot commit pipeline
	commitQueueSize     prometheus.Gauge
	commitQueueCapacity prometheus.Gauge
	commitEnqueueErrors *prometheus.CounterVec
	commitJobs          *prometheus.CounterVec
	commitRecords       prometheus.Counter
	commitLatency       prometheus.Histogram

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Enhanced Error Metrics - Detailed error tracking
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec
	errorLatency         *prometheus.HistogramVec

	// System Performance Metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

// Initialize global metrics.
func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithRegisterer(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:   "healthscore",
		subsystem:   "analytics",
		buckets:     defaultLatencyBuckets,
		constLabels: prometheus.Labels{},
		registerer:  prometheus.DefaultRegisterer,
	}

	// Apply all options
	for _, opt := range opts {
		opt(m)
	}

	// Initialize metrics
	m.initializeMetrics()

	return m
}

func (m *Manager) name(n string) string {
	if m.prefix != "" {
		return m.prefix + "_" + n
	}
	return n
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registerer).NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registerer).NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	})
}

func (m *Manager) histogram(name, help string) prometheus.Histogram {
	return promauto.With(m.registerer).NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
		Buckets: m.buckets,
	})
}

func (m *Manager) counterVec(name, help string, labels ...string) *prometheus.CounterVec {
	return promauto.With(m.registerer).NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
	}, labels)
}

func (m *Manager) histogramVec(name, help string, labels ...string) *prometheus.HistogramVec {
	return promauto.With(m.registerer).NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: m.constLabels,
		Buckets: m.buckets,
	}, labels)
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() {
	m.scoresComputed = m.counter("scores_computed_total", "Total number of client scores computed by the engine")
	m.scoreCacheHits = m.counter("score_cache_hits_total", "Score lookups served from the memo cache")
	m.scoreCacheMiss = m.counter("score_cache_misses_total", "Score lookups that had to run the engine")
	m.rosterSize = m.gauge("roster_size", "Number of clients in the most recently loaded roster")
	m.analysesByKind = m.counterVec("analyses_total", "Analyses served by kind", "kind")
	m.analysisLatency = m.histogramVec("analysis_latency_milliseconds", "End-to-end analysis latency in milliseconds", "kind")

	m.seriesCacheHits = m.counter("series_cache_hits_total", "Series requests served from cache")
	m.seriesCacheMiss = m.counter("series_cache_misses_total", "Series requests that queried the store")
	m.upstreamLatency = m.histogram("upstream_query_latency_milliseconds", "Latency of primary history range queries in milliseconds")
	m.upstreamFailures = m.counterVec("upstream_failures_total", "Failed primary history queries by reason", "reason")
	m.fallbackActivations = m.counter("fallback_activations_total", "Times the paginated scan fallback was used")
	m.fallbackFailures = m.counter("fallback_failures_total", "Times both the primary query and the fallback failed")
	m.staleDiscarded = m.counter("stale_responses_discarded_total", "Responses dropped because a newer request superseded them")

	m.repositoryQueryLatency = m.histogram("repository_query_latency_milliseconds", "Store query latency in milliseconds")

	m.commitQueueSize = m.gauge("commit_queue_size", "Pending snapshot commit jobs")
	m.commitQueueCapacity = m.gauge("commit_queue_capacity", "Capacity of the snapshot commit queue")
	m.commitEnqueueErrors = m.counterVec("commit_enqueue_errors_total", "Rejected snapshot commit jobs by reason", "reason")
	m.commitJobs = m.counterVec("commit_jobs_total", "Processed snapshot commit jobs by result", "result")
	m.commitRecords = m.counter("commit_records_total", "History records appended by snapshot commits")
	m.commitLatency = m.histogram("commit_latency_milliseconds", "Snapshot commit latency in milliseconds")

	m.httpRequests = m.counterVec("http_requests_total", "Total number of HTTP requests by endpoint and method",
		"endpoint", "method", "status_code")
	m.httpRequestDuration = m.histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds",
		"endpoint", "method", "status_code")

	m.errorRateByComponent = m.counterVec("errors_by_component_total", "Errors by component and type", "component", "error_type")
	m.errorRateByType = m.counterVec("errors_by_type_total", "Errors by type and severity", "error_type", "severity")
	m.errorRateByEndpoint = m.counterVec("errors_by_endpoint_total", "Errors by endpoint", "endpoint", "method", "error_type")
	m.errorLatency = m.histogramVec("error_latency_milliseconds", "Latency of operations that ended in error", "component", "error_type")

	m.systemMemoryUsage = m.gauge("system_memory_bytes", "Allocated heap memory in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutines", "Number of goroutines")
	m.systemGCPauseTime = m.histogram("system_gc_pause_milliseconds", "Average GC pause in milliseconds")
}

// Scoring Metrics Functions.

// RecordScoreComputed increments the engine computation counter.
func RecordScoreComputed() {
	globalManager.scoresComputed.Inc()
}

// RecordScoreCacheHit increments the memo hit counter.
func RecordScoreCacheHit() {
	globalManager.scoreCacheHits.Inc()
}

// RecordScoreCacheMiss increments the memo miss counter.
func RecordScoreCacheMiss() {
	globalManager.scoreCacheMiss.Inc()
}

// UpdateRosterSize sets the roster size gauge.
func UpdateRosterSize(count int) {
	globalManager.rosterSize.Set(float64(count))
}

// RecordAnalysis counts one analysis of kind and its latency.
func RecordAnalysis(kind string, latencyMs float64) {
	globalManager.analysesByKind.WithLabelValues(kind).Inc()
	globalManager.analysisLatency.WithLabelValues(kind).Observe(latencyMs)
}

// Series Metrics Functions.

// RecordSeriesCacheHit increments the series cache hit counter.
func RecordSeriesCacheHit() {
	globalManager.seriesCacheHits.Inc()
}

// RecordSeriesCacheMiss increments the series cache miss counter.
func RecordSeriesCacheMiss() {
	globalManager.seriesCacheMiss.Inc()
}

// RecordUpstreamLatency records a primary query latency.
func RecordUpstreamLatency(latencyMs float64) {
	globalManager.upstreamLatency.Observe(latencyMs)
}

// RecordUpstreamFailure counts a failed primary query (reason: timeout|error).
func RecordUpstreamFailure(reason string) {
	globalManager.upstreamFailures.WithLabelValues(reason).Inc()
}

// RecordFallbackActivation counts a fallback scan.
func RecordFallbackActivation() {
	globalManager.fallbackActivations.Inc()
}

// RecordFallbackFailure counts a double failure.
func RecordFallbackFailure() {
	globalManager.fallbackFailures.Inc()
}

// RecordStaleDiscarded counts a superseded response.
func RecordStaleDiscarded() {
	globalManager.staleDiscarded.Inc()
}

// Repository Metrics Functions.

// RecordRepositoryQueryLatency records store query latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// Commit Pipeline Metrics Functions.

// UpdateCommitQueue sets the commit queue size and capacity gauges.
func UpdateCommitQueue(size, capacity int) {
	globalManager.commitQueueSize.Set(float64(size))
	globalManager.commitQueueCapacity.Set(float64(capacity))
}

// RecordCommitEnqueueError counts a rejected commit job (reason: closed|full|context_cancelled).
func RecordCommitEnqueueError(reason string) {
	globalManager.commitEnqueueErrors.WithLabelValues(reason).Inc()
}

// RecordCommit counts a processed commit job (result: ok|error) with its record count and latency.
func RecordCommit(result string, records int, latencyMs float64) {
	globalManager.commitJobs.WithLabelValues(result).Inc()
	globalManager.commitRecords.Add(float64(records))
	globalManager.commitLatency.Observe(latencyMs)
}

// HTTP Metrics Functions.

// RecordHTTPRequest increments the HTTP request counter.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Enhanced Error Metrics Functions.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorLatency records the latency of an operation that resulted in an error.
func RecordErrorLatency(component, errorType string, latencyMs float64) {
	globalManager.errorLatency.WithLabelValues(component, errorType).Observe(latencyMs)
}

// System Performance Metrics Functions.

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
