package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the research report service.
// Metrics are organized by subsystem: threads, steps, collaborators (LLM and
// search), streaming, and the archive. All collectors are registered via
// promauto with the default Prometheus registry.
//
// Record methods are safe to call on a nil *Metrics.
type Metrics struct {
	// ThreadsStarted counts threads created, labeled by kind ("new", "followup").
	ThreadsStarted *prometheus.CounterVec

	// ThreadsFinished counts threads that reached the terminal state.
	ThreadsFinished prometheus.Counter

	// ThreadsAwaitingHuman counts arrivals at the human review barrier.
	ThreadsAwaitingHuman prometheus.Counter

	// StepsExecuted counts committed step executions, labeled by step.
	StepsExecuted *prometheus.CounterVec

	// StepDuration observes step body duration in seconds, labeled by step.
	StepDuration *prometheus.HistogramVec

	// StepFallbacks counts degrade-to-default outcomes, labeled by step and reason.
	StepFallbacks *prometheus.CounterVec

	// DecisionsRecorded counts human decisions, labeled by action.
	DecisionsRecorded *prometheus.CounterVec

	// LeaseRejected counts advance calls refused because the thread was busy.
	LeaseRejected prometheus.Counter

	// PersistenceFailures counts checkpoint commits that failed.
	PersistenceFailures prometheus.Counter

	// LLMRequestsTotal counts completion calls, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed completion calls, labeled by operation, model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes completion latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// SearchRequestsTotal counts search calls, labeled by provider.
	SearchRequestsTotal *prometheus.CounterVec

	// SearchRequestsFailed counts failed search calls, labeled by provider.
	SearchRequestsFailed *prometheus.CounterVec

	// SearchDuration observes search latency in seconds, labeled by provider.
	SearchDuration *prometheus.HistogramVec

	// SearchResults observes results returned per search, labeled by provider.
	SearchResults *prometheus.HistogramVec

	// ActiveStreams tracks open SSE streams.
	ActiveStreams prometheus.Gauge

	// ReportsArchived counts archive upserts.
	ReportsArchived prometheus.Counter
}

// NewMetrics creates a new Metrics instance with all metrics initialized.
// The namespace is used as a prefix for all metric names.
func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		// Threads
		ThreadsStarted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_started_total",
			Help:      "Total number of workflow threads created by kind",
		}, []string{"kind"}),
		ThreadsFinished: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_finished_total",
			Help:      "Total number of workflow threads that reached the terminal state",
		}),
		ThreadsAwaitingHuman: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_awaiting_human_total",
			Help:      "Total number of arrivals at the human review barrier",
		}),

		// Steps
		StepsExecuted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "steps_executed_total",
			Help:      "Total number of committed step executions by step",
		}, []string{"step"}),
		StepDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "step_duration_seconds",
			Help:      "Duration of step bodies in seconds by step",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120, 300},
		}, []string{"step"}),
		StepFallbacks: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "step_fallbacks_total",
			Help:      "Total number of step fallbacks by step and reason",
		}, []string{"step", "reason"}),
		DecisionsRecorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decisions_recorded_total",
			Help:      "Total number of human decisions by action",
		}, []string{"action"}),
		LeaseRejected: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "lease_rejected_total",
			Help:      "Total number of executions refused because the thread was busy",
		}),
		PersistenceFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persistence_failures_total",
			Help:      "Total number of failed checkpoint commits",
		}),

		// LLM
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "Total number of completion requests by operation and model",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_failed_total",
			Help:      "Total number of failed completion requests",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of completion requests in seconds",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		}, []string{"operation", "model"}),

		// Search
		SearchRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_total",
			Help:      "Total number of search requests by provider",
		}, []string{"provider"}),
		SearchRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "search_requests_failed_total",
			Help:      "Total number of failed search requests by provider",
		}, []string{"provider"}),
		SearchDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_duration_seconds",
			Help:      "Duration of search requests in seconds by provider",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		}, []string{"provider"}),
		SearchResults: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "search_results",
			Help:      "Number of results returned per search by provider",
			Buckets:   []float64{0, 1, 2, 4, 6, 10, 20},
		}, []string{"provider"}),

		// Streaming
		ActiveStreams: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_streams",
			Help:      "Number of open step event streams",
		}),

		// Archive
		ReportsArchived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reports_archived_total",
			Help:      "Total number of reports archived",
		}),
	}
}

// RecordThreadStarted records a new thread of the given kind.
func (m *Metrics) RecordThreadStarted(kind string) {
	if m == nil {
		return
	}
	m.ThreadsStarted.WithLabelValues(kind).Inc()
}

// RecordThreadFinished records a thread reaching the terminal state.
func (m *Metrics) RecordThreadFinished() {
	if m == nil {
		return
	}
	m.ThreadsFinished.Inc()
}

// RecordAwaitingHuman records a thread parking at the barrier.
func (m *Metrics) RecordAwaitingHuman() {
	if m == nil {
		return
	}
	m.ThreadsAwaitingHuman.Inc()
}

// RecordStep records a committed step execution.
func (m *Metrics) RecordStep(step string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.StepsExecuted.WithLabelValues(step).Inc()
	m.StepDuration.WithLabelValues(step).Observe(durationSeconds)
}

// RecordStepFallback records a step degrading to its default value.
func (m *Metrics) RecordStepFallback(step, reason string) {
	if m == nil {
		return
	}
	m.StepFallbacks.WithLabelValues(step, reason).Inc()
}

// RecordDecision records a human decision.
func (m *Metrics) RecordDecision(action string) {
	if m == nil {
		return
	}
	m.DecisionsRecorded.WithLabelValues(action).Inc()
}

// RecordLeaseRejected records a busy-thread rejection.
func (m *Metrics) RecordLeaseRejected() {
	if m == nil {
		return
	}
	m.LeaseRejected.Inc()
}

// RecordPersistenceFailure records a failed checkpoint commit.
func (m *Metrics) RecordPersistenceFailure() {
	if m == nil {
		return
	}
	m.PersistenceFailures.Inc()
}

// RecordLLMRequest records a completion request.
func (m *Metrics) RecordLLMRequest(operation, model string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(operation, model).Inc()
	m.LLMRequestDuration.WithLabelValues(operation, model).Observe(durationSeconds)
}

// RecordLLMRequestFailed records a failed completion request.
func (m *Metrics) RecordLLMRequestFailed(operation, model, errorType string) {
	if m == nil {
		return
	}
	m.LLMRequestsFailed.WithLabelValues(operation, model, errorType).Inc()
}

// RecordSearch records a completed search request.
func (m *Metrics) RecordSearch(provider string, resultCount int, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(provider).Inc()
	m.SearchDuration.WithLabelValues(provider).Observe(durationSeconds)
	m.SearchResults.WithLabelValues(provider).Observe(float64(resultCount))
}

// RecordSearchFailed records a failed search request.
func (m *Metrics) RecordSearchFailed(provider string, durationSeconds float64) {
	if m == nil {
		return
	}
	m.SearchRequestsTotal.WithLabelValues(provider).Inc()
	m.SearchRequestsFailed.WithLabelValues(provider).Inc()
	m.SearchDuration.WithLabelValues(provider).Observe(durationSeconds)
}

// StreamOpened increments the open stream gauge.
func (m *Metrics) StreamOpened() {
	if m == nil {
		return
	}
	m.ActiveStreams.Inc()
}

// StreamClosed decrements the open stream gauge.
func (m *Metrics) StreamClosed() {
	if m == nil {
		return
	}
	m.ActiveStreams.Dec()
}

// RecordReportArchived records an archive upsert.
func (m *Metrics) RecordReportArchived() {
	if m == nil {
		return
	}
	m.ReportsArchived.Inc()
}
