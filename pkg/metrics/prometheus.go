// Package metrics provides Prometheus metrics for the corpus pipeline and the
// retrieval service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every collector the service exposes.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	customLabels     prometheus.Labels
	metricPrefix     string
	registry         prometheus.Registerer

	// Ingestion
	ingestRecordsRead    *prometheus.CounterVec
	ingestRecordsSkipped *prometheus.CounterVec
	ingestAccepted       prometheus.Counter
	ingestRetained       prometheus.Counter

	// Labeling
	labelOutcomes *prometheus.CounterVec

	// Embedding
	embedBatches      prometheus.Counter
	embedErrors       prometheus.Counter
	embedLatency      prometheus.Histogram
	embedCacheHits    prometheus.Counter
	embedCacheMisses  prometheus.Counter
	embedVectorsTotal prometheus.Counter

	// Index
	indexDocuments     prometheus.Gauge
	indexBuildDuration prometheus.Histogram
	indexLastBuildUnix prometheus.Gauge
	indexSwaps         prometheus.Counter

	// Retrieval
	retrievalRequests    *prometheus.CounterVec
	retrievalBranchTime  *prometheus.HistogramVec
	retrievalBranchError *prometheus.CounterVec
	retrievalCandidates  prometheus.Histogram
	retrievalPrecedents  prometheus.Histogram

	// Consensus classifier and judge
	classifierLatency prometheus.Histogram
	classifierErrors  prometheus.Counter
	judgeLatency      prometheus.Histogram
	judgeErrors       prometheus.Counter

	// Rate limiting
	rateLimited prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Queue
	queueSize          prometheus.Gauge
	queueCapacity      prometheus.Gauge
	queueUtilization   prometheus.Gauge
	queueEnqueueRate   prometheus.Counter
	queueDequeueRate   prometheus.Counter
	queueEnqueueErrors prometheus.Counter

	// Workers
	workerActiveCount       prometheus.Gauge
	workerProcessingLatency prometheus.Histogram
	workerErrors            prometheus.Counter

	// Errors
	errorRateByComponent *prometheus.CounterVec
	errorRateByEndpoint  *prometheus.CounterVec

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
		namespace:        "court",
		subsystem:        "",
		histogramBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		customLabels:     prometheus.Labels{},
		registry:         prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix != "" {
		return m.metricPrefix + "_" + n
	}
	return n
}

func (m *Manager) counterOpts(n, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) gaugeOpts(n, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, ConstLabels: m.customLabels}
}

func (m *Manager) histogramOpts(n, help string, buckets []float64) prometheus.HistogramOpts {
	if buckets == nil {
		buckets = m.histogramBuckets
	}
	return prometheus.HistogramOpts{Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(n), Help: help, Buckets: buckets, ConstLabels: m.customLabels}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.ingestRecordsRead = auto.NewCounterVec(m.counterOpts("ingest_records_read_total", "Raw corpus records read by kind"), []string{"kind"})
	m.ingestRecordsSkipped = auto.NewCounterVec(m.counterOpts("ingest_records_skipped_total", "Raw corpus records rejected by kind and reason"), []string{"kind", "reason"})
	m.ingestAccepted = auto.NewCounter(m.counterOpts("ingest_submissions_accepted_total", "Submissions that passed the quality filters"))
	m.ingestRetained = auto.NewCounter(m.counterOpts("ingest_comments_retained_total", "Comments kept after top-N retention"))

	m.labelOutcomes = auto.NewCounterVec(m.counterOpts("label_outcomes_total", "Labeler outcomes by status and label"), []string{"status", "label"})

	m.embedBatches = auto.NewCounter(m.counterOpts("embed_batches_total", "Embedding batches encoded"))
	m.embedErrors = auto.NewCounter(m.counterOpts("embed_errors_total", "Embedding batches that failed"))
	m.embedLatency = auto.NewHistogram(m.histogramOpts("embed_latency_milliseconds", "Embedding provider latency", nil))
	m.embedCacheHits = auto.NewCounter(m.counterOpts("embed_cache_hits_total", "Query embedding cache hits"))
	m.embedCacheMisses = auto.NewCounter(m.counterOpts("embed_cache_misses_total", "Query embedding cache misses"))
	m.embedVectorsTotal = auto.NewCounter(m.counterOpts("embed_vectors_written_total", "Vectors written to the corpus"))

	m.indexDocuments = auto.NewGauge(m.gaugeOpts("index_documents", "Documents in the live index"))
	m.indexBuildDuration = auto.NewHistogram(m.histogramOpts("index_build_duration_milliseconds", "Index build duration",
		[]float64{10, 50, 100, 500, 1000, 5000, 10000, 30000, 60000, 300000}))
	m.indexLastBuildUnix = auto.NewGauge(m.gaugeOpts("index_last_build_unix", "Unix time of the last index swap"))
	m.indexSwaps = auto.NewCounter(m.counterOpts("index_swaps_total", "Index generations published"))

	m.retrievalRequests = auto.NewCounterVec(m.counterOpts("retrieval_requests_total", "Retrieval requests by status"), []string{"status"})
	m.retrievalBranchTime = auto.NewHistogramVec(m.histogramOpts("retrieval_branch_latency_milliseconds", "Latency of each fan-out branch", nil), []string{"branch"})
	m.retrievalBranchError = auto.NewCounterVec(m.counterOpts("retrieval_branch_errors_total", "Fan-out branch failures"), []string{"branch", "kind"})
	m.retrievalCandidates = auto.NewHistogram(m.histogramOpts("retrieval_fused_candidates", "Distinct candidates after fusion", []float64{0, 1, 5, 10, 20, 30, 40}))
	m.retrievalPrecedents = auto.NewHistogram(m.histogramOpts("retrieval_precedents_returned", "Precedents returned per request", []float64{0, 1, 2, 3, 5, 10}))

	m.classifierLatency = auto.NewHistogram(m.histogramOpts("classifier_latency_milliseconds", "Consensus classifier latency", nil))
	m.classifierErrors = auto.NewCounter(m.counterOpts("classifier_errors_total", "Consensus classifier failures"))
	m.judgeLatency = auto.NewHistogram(m.histogramOpts("judge_latency_milliseconds", "Judge deliberation latency",
		[]float64{100, 500, 1000, 2500, 5000, 10000, 20000, 30000, 60000}))
	m.judgeErrors = auto.NewCounter(m.counterOpts("judge_errors_total", "Judge failures"))

	m.rateLimited = auto.NewCounter(m.counterOpts("rate_limited_total", "Requests rejected by the rate limiter"))

	m.httpRequests = auto.NewCounterVec(m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", nil),
		[]string{"endpoint", "method", "status_code"})

	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Embedding jobs waiting in the queue"))
	m.queueCapacity = auto.NewGauge(m.gaugeOpts("queue_capacity", "Embedding queue capacity"))
	m.queueUtilization = auto.NewGauge(m.gaugeOpts("queue_utilization_ratio", "Embedding queue utilization"))
	m.queueEnqueueRate = auto.NewCounter(m.counterOpts("queue_enqueue_total", "Jobs enqueued"))
	m.queueDequeueRate = auto.NewCounter(m.counterOpts("queue_dequeue_total", "Jobs dequeued"))
	m.queueEnqueueErrors = auto.NewCounter(m.counterOpts("queue_enqueue_errors_total", "Rejected enqueue attempts"))

	m.workerActiveCount = auto.NewGauge(m.gaugeOpts("worker_active_count", "Embedding workers running"))
	m.workerProcessingLatency = auto.NewHistogram(m.histogramOpts("worker_processing_latency_milliseconds", "Time a worker spends on one job", nil))
	m.workerErrors = auto.NewCounter(m.counterOpts("worker_errors_total", "Jobs a worker failed to complete"))

	m.errorRateByComponent = auto.NewCounterVec(m.counterOpts("errors_by_component_total", "Errors by component and type"), []string{"component", "error_type"})
	m.errorRateByEndpoint = auto.NewCounterVec(m.counterOpts("errors_by_endpoint_total", "HTTP errors by endpoint, method and type"), []string{"endpoint", "method", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Heap bytes allocated"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
	m.systemGCPauseTime = auto.NewHistogram(m.histogramOpts("system_gc_pause_time_milliseconds", "Average GC pause",
		[]float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}))
}

// Ingestion.

// RecordIngestRead counts a raw record of the given kind.
func RecordIngestRead(kind string) { globalManager.ingestRecordsRead.WithLabelValues(kind).Inc() }

// RecordIngestSkipped counts a rejected raw record.
func RecordIngestSkipped(kind, reason string) {
	globalManager.ingestRecordsSkipped.WithLabelValues(kind, reason).Inc()
}

// RecordIngestAccepted counts accepted submissions.
func RecordIngestAccepted(n int) { globalManager.ingestAccepted.Add(float64(n)) }

// RecordIngestRetained counts retained comments.
func RecordIngestRetained(n int) { globalManager.ingestRetained.Add(float64(n)) }

// Labeling.

// RecordLabelOutcome counts one labeler decision.
func RecordLabelOutcome(status, label string) {
	globalManager.labelOutcomes.WithLabelValues(status, label).Inc()
}

// Embedding.

// RecordEmbedBatch records one provider call and its latency.
func RecordEmbedBatch(latencyMs float64) {
	globalManager.embedBatches.Inc()
	globalManager.embedLatency.Observe(latencyMs)
}

// RecordEmbedError counts a failed embedding batch.
func RecordEmbedError() { globalManager.embedErrors.Inc() }

// RecordEmbedCache counts a query cache lookup.
func RecordEmbedCache(hit bool) {
	if hit {
		globalManager.embedCacheHits.Inc()
		return
	}
	globalManager.embedCacheMisses.Inc()
}

// RecordVectorsWritten counts vectors persisted by the embed stage.
func RecordVectorsWritten(n int) { globalManager.embedVectorsTotal.Add(float64(n)) }

// Index.

// RecordIndexSwap records a published index generation.
func RecordIndexSwap(documents int, buildMs float64) {
	globalManager.indexDocuments.Set(float64(documents))
	globalManager.indexBuildDuration.Observe(buildMs)
	globalManager.indexLastBuildUnix.Set(float64(time.Now().Unix()))
	globalManager.indexSwaps.Inc()
}

// UpdateIndexDocuments sets the live index size.
func UpdateIndexDocuments(documents int) { globalManager.indexDocuments.Set(float64(documents)) }

// Retrieval.

// RecordRetrieval counts a finished retrieval by status ("ok", "partial", "error").
func RecordRetrieval(status string, candidates, precedents int) {
	globalManager.retrievalRequests.WithLabelValues(status).Inc()
	globalManager.retrievalCandidates.Observe(float64(candidates))
	globalManager.retrievalPrecedents.Observe(float64(precedents))
}

// RecordBranchLatency observes one fan-out branch.
func RecordBranchLatency(branch string, latencyMs float64) {
	globalManager.retrievalBranchTime.WithLabelValues(branch).Observe(latencyMs)
}

// RecordBranchError counts a failed fan-out branch.
func RecordBranchError(branch, kind string) {
	globalManager.retrievalBranchError.WithLabelValues(branch, kind).Inc()
}

// Classifier and judge.

// RecordClassifierCall observes classifier latency and failure.
func RecordClassifierCall(latencyMs float64, err error) {
	globalManager.classifierLatency.Observe(latencyMs)
	if err != nil {
		globalManager.classifierErrors.Inc()
	}
}

// RecordJudgeCall observes judge latency and failure.
func RecordJudgeCall(latencyMs float64, err error) {
	globalManager.judgeLatency.Observe(latencyMs)
	if err != nil {
		globalManager.judgeErrors.Inc()
	}
}

// RecordRateLimited counts a throttled request.
func RecordRateLimited() { globalManager.rateLimited.Inc() }

// HTTP.

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// Queue.

// UpdateQueueSize sets the current queue size.
func UpdateQueueSize(size int) { globalManager.queueSize.Set(float64(size)) }

// UpdateQueueCapacity sets the maximum queue capacity.
func UpdateQueueCapacity(capacity int) { globalManager.queueCapacity.Set(float64(capacity)) }

// UpdateQueueUtilization sets the queue utilization ratio.
func UpdateQueueUtilization(utilization float64) { globalManager.queueUtilization.Set(utilization) }

// RecordQueueEnqueue increments the enqueue counter.
func RecordQueueEnqueue() { globalManager.queueEnqueueRate.Inc() }

// RecordQueueDequeue increments the dequeue counter.
func RecordQueueDequeue() { globalManager.queueDequeueRate.Inc() }

// RecordQueueEnqueueError increments the enqueue error counter.
func RecordQueueEnqueueError() { globalManager.queueEnqueueErrors.Inc() }

// Workers.

// UpdateWorkerActiveCount sets the number of active workers.
func UpdateWorkerActiveCount(count int) { globalManager.workerActiveCount.Set(float64(count)) }

// RecordWorkerProcessingLatency records worker processing latency.
func RecordWorkerProcessingLatency(latencyMs float64) {
	globalManager.workerProcessingLatency.Observe(latencyMs)
}

// RecordWorkerError increments the worker error counter.
func RecordWorkerError() { globalManager.workerErrors.Inc() }

// Errors.

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorRateByComponent.WithLabelValues(component, errorType).Inc()
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// System.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) { globalManager.systemMemoryUsage.Set(float64(bytes)) }

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) { globalManager.systemGoroutineCount.Set(float64(count)) }

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) { globalManager.systemGCPauseTime.Observe(pauseMs) }

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
