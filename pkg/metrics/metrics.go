// Package metrics defines the Prometheus instrumentation surface
// (SPEC_FULL.md §A.5): counters and histograms for adapter calls, retry
// attempts, circuit-breaker transitions, discussion rounds, and
// consensus outcomes. Metric names keep the teacher's agentpipe_*
// naming convention, renamed to the concord_ prefix; server.go's HTTP
// exposition shell is unchanged apart from that rename.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector registered against one Prometheus
// registry. Call sites record through the package-level functions below,
// which operate on a lazily-initialized default instance so that
// pkg/coordinator, pkg/retry, and pkg/discussion never need to thread a
// *Metrics value through their call chains.
type Metrics struct {
	AdapterRequestsTotal   *prometheus.CounterVec
	AdapterRequestDuration *prometheus.HistogramVec
	AdapterTokensTotal     *prometheus.CounterVec
	AdapterErrorsTotal     *prometheus.CounterVec

	ActiveDiscussions    prometheus.Gauge
	DiscussionRounds     *prometheus.CounterVec
	ConsensusReached     *prometheus.CounterVec
	MessageSizeBytes     *prometheus.HistogramVec

	RetryAttemptsTotal       *prometheus.CounterVec
	CircuitBreakerState      *prometheus.GaugeVec
	CircuitBreakerTransitions *prometheus.CounterVec
}

// NewMetrics registers every collector against registry and returns the
// bound instance.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		AdapterRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_adapter_requests_total",
			Help: "Total adapter requests by adapter name and outcome status.",
		}, []string{"adapter", "status"}),

		AdapterRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_adapter_request_duration_seconds",
			Help:    "Adapter request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"adapter"}),

		AdapterTokensTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_adapter_tokens_total",
			Help: "Total tokens consumed, by adapter.",
		}, []string{"adapter"}),

		AdapterErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_adapter_errors_total",
			Help: "Total adapter errors by adapter name and error kind.",
		}, []string{"adapter", "kind"}),

		ActiveDiscussions: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "concord_active_discussions",
			Help: "Current number of in-flight discussions.",
		}),

		DiscussionRounds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_discussion_rounds_total",
			Help: "Total discussion rounds run, by task kind.",
		}, []string{"task_kind"}),

		ConsensusReached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_consensus_outcomes_total",
			Help: "Total discussion outcomes by whether consensus was reached.",
		}, []string{"reached"}),

		MessageSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "concord_message_size_bytes",
			Help:    "Message size distribution in bytes.",
			Buckets: prometheus.ExponentialBuckets(64, 4, 8),
		}, []string{"adapter"}),

		RetryAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_retry_attempts_total",
			Help: "Total retry attempts by adapter.",
		}, []string{"adapter"}),

		CircuitBreakerState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "concord_circuit_breaker_state",
			Help: "Circuit breaker state by adapter (0=closed, 1=half_open, 2=open).",
		}, []string{"adapter"}),

		CircuitBreakerTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "concord_circuit_breaker_transitions_total",
			Help: "Total circuit breaker state transitions by adapter and destination state.",
		}, []string{"adapter", "state"}),
	}

	registry.MustRegister(
		m.AdapterRequestsTotal,
		m.AdapterRequestDuration,
		m.AdapterTokensTotal,
		m.AdapterErrorsTotal,
		m.ActiveDiscussions,
		m.DiscussionRounds,
		m.ConsensusReached,
		m.MessageSizeBytes,
		m.RetryAttemptsTotal,
		m.CircuitBreakerState,
		m.CircuitBreakerTransitions,
	)

	return m
}

var (
	mu      sync.RWMutex
	current *Metrics
)

// Default lazily builds (on first use) and returns a process-wide
// Metrics instance registered against a fresh private registry (until
// SetDefault replaces it), so call sites in pkg/coordinator, pkg/retry,
// and pkg/discussion can record
// without depending on a *Server having been constructed.
func Default() *Metrics {
	mu.RLock()
	if current != nil {
		defer mu.RUnlock()
		return current
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if current == nil {
		reg := prometheus.NewRegistry()
		current = NewMetrics(reg)
	}
	return current
}

// SetDefault installs m (typically a Server's own instance, sharing its
// registry) as the target of the package-level Record* helpers.
func SetDefault(m *Metrics) {
	mu.Lock()
	defer mu.Unlock()
	current = m
}

// RecordAdapterRequest records one completed adapter call.
func RecordAdapterRequest(adapterName, status string, seconds float64, tokens int) {
	m := Default()
	m.AdapterRequestsTotal.WithLabelValues(adapterName, status).Inc()
	m.AdapterRequestDuration.WithLabelValues(adapterName).Observe(seconds)
	if tokens > 0 {
		m.AdapterTokensTotal.WithLabelValues(adapterName).Add(float64(tokens))
	}
}

// RecordAdapterError records an adapter call that failed with kind.
func RecordAdapterError(adapterName, kind string) {
	Default().AdapterErrorsTotal.WithLabelValues(adapterName, kind).Inc()
}

// RecordMessageSize observes a message's byte length for adapterName.
func RecordMessageSize(adapterName string, bytes int) {
	Default().MessageSizeBytes.WithLabelValues(adapterName).Observe(float64(bytes))
}

// RecordRetryAttempt records one retry attempt (not the initial try) for
// adapterName.
func RecordRetryAttempt(adapterName string) {
	Default().RetryAttemptsTotal.WithLabelValues(adapterName).Inc()
}

// RecordCircuitBreakerTransition records a circuit breaker moving to
// state for adapterName, and reflects the destination in the state gauge.
func RecordCircuitBreakerTransition(adapterName, state string) {
	m := Default()
	m.CircuitBreakerTransitions.WithLabelValues(adapterName, state).Inc()

	var v float64
	switch state {
	case "half_open":
		v = 1
	case "open":
		v = 2
	}
	m.CircuitBreakerState.WithLabelValues(adapterName).Set(v)
}

// DiscussionStarted increments the active-discussion gauge; the returned
// func decrements it, meant to be deferred.
func DiscussionStarted() func() {
	m := Default()
	m.ActiveDiscussions.Inc()
	return m.ActiveDiscussions.Dec
}

// RecordDiscussionRound records one completed round for taskKind.
func RecordDiscussionRound(taskKind string) {
	Default().DiscussionRounds.WithLabelValues(taskKind).Inc()
}

// RecordConsensusOutcome records whether a discussion ended in consensus.
func RecordConsensusOutcome(reached bool) {
	label := "false"
	if reached {
		label = "true"
	}
	Default().ConsensusReached.WithLabelValues(label).Inc()
}
