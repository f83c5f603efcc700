// Package metrics provides Prometheus metrics for the loftrank scoring service.
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
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Import pipeline
	importBatches    *prometheus.CounterVec
	entriesImported  prometheus.Counter
	entriesSkipped   prometheus.Counter
	dataQualityNotes *prometheus.CounterVec
	importLatency    prometheus.Histogram
	storageFailures  prometheus.Counter

	// Season reports
	reportsServed prometheus.Counter
	reportLatency prometheus.Histogram
	cohortSize    *prometheus.GaugeVec
	emptyCohorts  prometheus.Counter

	// Import jobs and queue
	jobsByStatus      *prometheus.CounterVec
	duplicateRequests prometheus.Counter
	queueSize         prometheus.Gauge
	queueCapacity     prometheus.Gauge
	queueUtilization  prometheus.Gauge
	queueEnqueue      prometheus.Counter
	queueDequeue      prometheus.Counter
	queueEnqueueError prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByType      *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

	// Repository
	repositoryEntriesTotal  prometheus.Gauge
	repositoryUpdateLatency prometheus.Histogram
	repositoryQueryLatency  prometheus.Histogram

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "loftrank",
		subsystem:        "scoring",
		histogramBuckets: []float64{0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, ConstLabels: m.constLabels}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: name, Help: help, Buckets: buckets, ConstLabels: m.constLabels}
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.importBatches = auto.NewCounterVec(m.counterOpts("import_batches_total", "Import batches processed, by mode (sync, async)"), []string{"mode"})
	m.entriesImported = auto.NewCounter(m.counterOpts("entries_imported_total", "Entries normalized, scored and upserted"))
	m.entriesSkipped = auto.NewCounter(m.counterOpts("entries_skipped_total", "Entries skipped because their raw shape could not be normalized"))
	m.dataQualityNotes = auto.NewCounterVec(m.counterOpts("data_quality_notes_total", "Non-fatal data quality notes raised during normalization"), []string{"reason"})
	m.importLatency = auto.NewHistogram(m.histogramOpts("import_latency_milliseconds", "Import batch latency in milliseconds", m.histogramBuckets))
	m.storageFailures = auto.NewCounter(m.counterOpts("storage_failures_total", "Storage failures surfaced to callers"))

	m.reportsServed = auto.NewCounter(m.counterOpts("reports_served_total", "Season reports assembled"))
	m.reportLatency = auto.NewHistogram(m.histogramOpts("report_latency_milliseconds", "Season report assembly latency in milliseconds", m.histogramBuckets))
	m.cohortSize = auto.NewGaugeVec(m.gaugeOpts("cohort_size", "Entries in the cohort at the last report, by season"), []string{"season"})
	m.emptyCohorts = auto.NewCounter(m.counterOpts("empty_cohorts_total", "Reports requested for seasons with no entries"))

	m.jobsByStatus = auto.NewCounterVec(m.counterOpts("import_jobs_total", "Import job transitions, by status"), []string{"status"})
	m.duplicateRequests = auto.NewCounter(m.counterOpts("duplicate_import_requests_total", "Async import requests recognised as duplicates"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Import jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Maximum import queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Import queue utilization (0-1)"))
	m.queueEnqueue = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Import jobs enqueued"))
	m.queueDequeue = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Import jobs dequeued"))
	m.queueEnqueueError = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Import jobs rejected by the queue"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Import workers running"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Time a worker spends on one import job", m.histogramBuckets))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Import jobs that ended in failure"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests, by endpoint, method and status"), []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration in milliseconds", m.histogramBuckets), []string{"endpoint", "method", "status_code"})

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByType = auto.NewCounterVec(m.counterOpts("errors_by_type_total", "Errors by type and severity"), []string{"error_type", "severity"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "Errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	m.repositoryEntriesTotal = auto.NewGauge(m.gaugeOpts("repository_entries_total", "Entries stored across all seasons"))
	m.repositoryUpdateLatency = auto.NewHistogram(m.histogramOpts("repository_update_latency_milliseconds", "Repository write latency in milliseconds", m.histogramBuckets))
	m.repositoryQueryLatency = auto.NewHistogram(m.histogramOpts("repository_query_latency_milliseconds", "Repository read latency in milliseconds", m.histogramBuckets))

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause in milliseconds",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Import pipeline.

// RecordImportBatch counts a processed import batch.
func RecordImportBatch(mode string) { globalManager.importBatches.WithLabelValues(mode).Inc() }

// RecordEntriesImported adds n to the imported entries counter.
func RecordEntriesImported(n int) { globalManager.entriesImported.Add(float64(n)) }

// RecordEntriesSkipped adds n to the skipped entries counter.
func RecordEntriesSkipped(n int) { globalManager.entriesSkipped.Add(float64(n)) }

// RecordDataQualityNote counts a normalization note by reason.
func RecordDataQualityNote(reason string) {
	globalManager.dataQualityNotes.WithLabelValues(reason).Inc()
}

// RecordImportLatency records import batch latency in milliseconds.
func RecordImportLatency(latencyMs float64) { globalManager.importLatency.Observe(latencyMs) }

// RecordStorageFailure counts a storage failure surfaced to a caller.
func RecordStorageFailure() { globalManager.storageFailures.Inc() }

// Season reports.

// RecordReportServed counts an assembled report.
func RecordReportServed() { globalManager.reportsServed.Inc() }

// RecordReportLatency records report assembly latency in milliseconds.
func RecordReportLatency(latencyMs float64) { globalManager.reportLatency.Observe(latencyMs) }

// UpdateCohortSize sets the cohort size for a season.
func UpdateCohortSize(season string, size int) {
	globalManager.cohortSize.WithLabelValues(season).Set(float64(size))
}

// RecordEmptyCohort counts a report over an empty season.
func RecordEmptyCohort() { globalManager.emptyCohorts.Inc() }

// Import jobs and queue.

// RecordJobStatus counts an import job reaching status.
func RecordJobStatus(status string) { globalManager.jobsByStatus.WithLabelValues(status).Inc() }

// RecordDuplicateRequest counts a deduplicated async import request.
func RecordDuplicateRequest() { globalManager.duplicateRequests.Inc() }

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueue.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeue.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueError.Inc() }

// Workers.

// UpdateWorkerActiveCount sets the number of running workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records how long a worker spent on a job.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError counts a failed job.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Errors.

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

// Repository.

// UpdateRepositoryEntriesTotal sets the number of stored entries.
func UpdateRepositoryEntriesTotal(count int) {
	globalManager.repositoryEntriesTotal.Set(float64(count))
}

// RecordRepositoryUpdateLatency records repository write latency.
func RecordRepositoryUpdateLatency(latencyMs float64) {
	globalManager.repositoryUpdateLatency.Observe(latencyMs)
}

// RecordRepositoryQueryLatency records repository read latency.
func RecordRepositoryQueryLatency(latencyMs float64) {
	globalManager.repositoryQueryLatency.Observe(latencyMs)
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
