// Package metrics provides Prometheus metrics for the tradelink recommendation service.
package metrics

import (
	"fmt"
	"slices"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values for the direction of a recommendation call.
const (
	DirectionWorkers  = "workers"
	DirectionRequests = "requests"
)

// Label values for the outcome of a recommendation call.
const (
	OutcomeOK       = "ok"
	OutcomeEmpty    = "empty"
	OutcomeError    = "error"
	OutcomeFallback = "fallback"
)

// Label values for repair runs.
const (
	RepairRepaired = "repaired"
	RepairSkipped  = "skipped"
	RepairFailed   = "failed"
)

// Label values for one audited provider.
const (
	AuditConsistent = "consistent"
	AuditViolation  = "violation"
	AuditError      = "error"
)

// Manager manages all Prometheus metrics for the tradelink service.
type Manager struct {
	namespace      string
	subsystem      string
	latencyBuckets []float64
	resultBuckets  []float64
	registry       prometheus.Registerer

	// Recommendation metrics
	recommendations       *prometheus.CounterVec
	recommendationLatency *prometheus.HistogramVec
	candidatesScored      *prometheus.CounterVec
	recommendationResults *prometheus.HistogramVec

	// Skill consistency metrics
	consistencyViolations *prometheus.CounterVec
	consistencyAudits     prometheus.Counter
	skillRepairs          *prometheus.CounterVec
	skillCacheLookups     *prometheus.CounterVec

	// Audit pipeline metrics
	auditQueueDepth      prometheus.Gauge
	auditQueueCapacity   prometheus.Gauge
	auditEnqueueRejected *prometheus.CounterVec
	auditChecks          *prometheus.CounterVec
	auditCheckLatency    prometheus.Histogram
	auditWorkers         prometheus.Gauge

	// Storage metrics
	storageErrors *prometheus.CounterVec

	// HTTP Performance Metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

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
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:      "tradelink",
		subsystem:      "recommend",
		latencyBuckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		resultBuckets:  []float64{0, 1, 2, 5, 10, 20, 50, 100},
		registry:       prometheus.DefaultRegisterer,
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()

	return m
}

// initializeMetrics creates all the Prometheus metrics.
func (m *Manager) initializeMetrics() { //nolint:funlen // long function required for comprehensive metrics initialization
	auto := promauto.With(m.registry)

	m.recommendations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "calls_total",
			Help:      "Total number of recommendation calls by direction and outcome",
		},
		[]string{"direction", "outcome"},
	)

	m.recommendationLatency = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "latency_milliseconds",
			Help:      "Recommendation call latency in milliseconds",
			Buckets:   m.latencyBuckets,
		},
		[]string{"direction"},
	)

	m.candidatesScored = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "candidates_scored_total",
			Help:      "Total number of candidates scored",
		},
		[]string{"direction"},
	)

	m.recommendationResults = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "results",
			Help:      "Number of candidates returned per call",
			Buckets:   m.resultBuckets,
		},
		[]string{"direction"},
	)

	m.consistencyViolations = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "skills",
			Name:      "consistency_violations_total",
			Help:      "Skill consistency violations by rule",
		},
		[]string{"rule"},
	)

	m.consistencyAudits = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "skills",
		Name:      "consistency_audits_total",
		Help:      "Completed skill consistency audit runs",
	})

	m.skillRepairs = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "skills",
			Name:      "repairs_total",
			Help:      "Skill repair attempts by outcome",
		},
		[]string{"outcome"},
	)

	m.skillCacheLookups = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "skills",
			Name:      "cache_lookups_total",
			Help:      "Skill catalog cache lookups by result (hit, miss, coalesced, bypass, error)",
		},
		[]string{"result"},
	)

	m.storageErrors = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Storage collaborator failures by operation",
		},
		[]string{"operation"},
	)

	m.auditQueueDepth = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "audit",
		Name:      "queue_depth",
		Help:      "Provider checks waiting in the audit queue",
	})

	m.auditQueueCapacity = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "audit",
		Name:      "queue_capacity",
		Help:      "Maximum number of queued provider checks",
	})

	m.auditEnqueueRejected = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "audit",
			Name:      "enqueue_rejected_total",
			Help:      "Provider checks dropped at enqueue by reason",
		},
		[]string{"reason"},
	)

	m.auditChecks = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "audit",
			Name:      "checks_total",
			Help:      "Audited providers by outcome",
		},
		[]string{"outcome"},
	)

	m.auditCheckLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "audit",
		Name:      "check_duration_milliseconds",
		Help:      "Time to resolve and validate one provider",
		Buckets:   m.latencyBuckets,
	})

	m.auditWorkers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "audit",
		Name:      "workers",
		Help:      "Running audit workers",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: "http",
			Name:      "request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.latencyBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "memory_usage_bytes",
		Help:      "System memory usage in bytes",
	})

	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "goroutine_count",
		Help:      "Number of goroutines",
	})

	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "system",
		Name:      "gc_pause_time_milliseconds",
		Help:      "GC pause time in milliseconds",
		Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordRecommendation counts one call and observes its latency.
func (m *Manager) RecordRecommendation(direction, outcome string, latencyMs float64) {
	m.recommendations.WithLabelValues(direction, outcome).Inc()
	m.recommendationLatency.WithLabelValues(direction).Observe(latencyMs)
}

// RecordCandidates records how many candidates were scored and returned.
func (m *Manager) RecordCandidates(direction string, scored, returned int) {
	m.candidatesScored.WithLabelValues(direction).Add(float64(scored))
	m.recommendationResults.WithLabelValues(direction).Observe(float64(returned))
}

// RecordRepair counts a repair attempt. outcome must be one of the Repair* values.
func (m *Manager) RecordRepair(outcome string) error {
	if !slices.Contains([]string{RepairRepaired, RepairSkipped, RepairFailed}, outcome) {
		return fmt.Errorf("%w: repair outcome %q", ErrUnknownLabel, outcome)
	}
	m.skillRepairs.WithLabelValues(outcome).Inc()
	return nil
}

// RecordRecommendation records on the global manager.
func RecordRecommendation(direction, outcome string, latencyMs float64) {
	globalManager.RecordRecommendation(direction, outcome, latencyMs)
}

// RecordCandidates records on the global manager.
func RecordCandidates(direction string, scored, returned int) {
	globalManager.RecordCandidates(direction, scored, returned)
}

// RecordConsistencyViolation increments the violation counter for rule.
func RecordConsistencyViolation(rule string) {
	globalManager.consistencyViolations.WithLabelValues(rule).Inc()
}

// RecordConsistencyAudit increments the completed audit counter.
func RecordConsistencyAudit() {
	globalManager.consistencyAudits.Inc()
}

// RecordRepair records on the global manager.
func RecordRepair(outcome string) error {
	return globalManager.RecordRepair(outcome)
}

// UpdateAuditQueue sets the audit queue depth and capacity gauges.
func UpdateAuditQueue(depth, capacity int) {
	globalManager.auditQueueDepth.Set(float64(depth))
	globalManager.auditQueueCapacity.Set(float64(capacity))
}

// RecordAuditEnqueueRejected counts a dropped provider check.
func RecordAuditEnqueueRejected(reason string) {
	globalManager.auditEnqueueRejected.WithLabelValues(reason).Inc()
}

// RecordAuditCheck counts one audited provider and observes the check time.
func RecordAuditCheck(outcome string, latencyMs float64) {
	globalManager.auditChecks.WithLabelValues(outcome).Inc()
	globalManager.auditCheckLatency.Observe(latencyMs)
}

// UpdateAuditWorkers sets the number of running audit workers.
func UpdateAuditWorkers(n int) {
	globalManager.auditWorkers.Set(float64(n))
}

// RecordSkillCacheLookup counts cache results: hit, miss or error.
func RecordSkillCacheLookup(result string, n int) {
	globalManager.skillCacheLookups.WithLabelValues(result).Add(float64(n))
}

// RecordStorageError increments the storage error counter for operation.
func RecordStorageError(operation string) {
	globalManager.storageErrors.WithLabelValues(operation).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
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
