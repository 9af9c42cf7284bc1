package metrics

import (
	"sync"

	"github.com/arloliu/streamgroup/types"
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements types.MetricsCollector backed by Prometheus.
//
// Collectors are created and registered lazily on first use so constructing a
// PrometheusCollector never panics on duplicate registration.
type PrometheusCollector struct {
	reg       prometheus.Registerer
	namespace string
	once      sync.Once

	stateTransitions *prometheus.CounterVec
	closeOutcomes    *prometheus.CounterVec
	closeDuration    *prometheus.HistogramVec
	unitsProcessed   *prometheus.CounterVec
	threadsStopped   *prometheus.CounterVec
	heartbeats       *prometheus.CounterVec
	departures       *prometheus.CounterVec
	departureDepth   prometheus.Gauge
}

// Compile-time assertion that PrometheusCollector implements MetricsCollector.
var _ types.MetricsCollector = (*PrometheusCollector)(nil)

// NewPrometheus creates a new Prometheus-backed metrics collector.
//
// Parameters:
//   - reg: Prometheus registerer (prometheus.DefaultRegisterer if nil)
//   - namespace: Metrics namespace ("streamgroup" if empty)
//
// Returns:
//   - *PrometheusCollector: A MetricsCollector implementation using Prometheus
func NewPrometheus(reg prometheus.Registerer, namespace string) *PrometheusCollector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if namespace == "" {
		namespace = "streamgroup"
	}

	return &PrometheusCollector{reg: reg, namespace: namespace}
}

func (p *PrometheusCollector) ensureRegistered() {
	p.once.Do(func() {
		p.stateTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "state_transitions_total",
			Help:      "Total client state transitions by from/to state.",
		}, []string{"from", "to"})

		p.closeOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "close_total",
			Help:      "Total close calls by outcome (clean, timed-out, already-closed).",
		}, []string{"outcome"})

		p.closeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: p.namespace,
			Subsystem: "client",
			Name:      "close_duration_seconds",
			Help:      "Time close callers were blocked, in seconds.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
		}, []string{"outcome"})

		p.unitsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "thread",
			Name:      "units_processed_total",
			Help:      "Total processing units by thread and result (success, failure).",
		}, []string{"thread", "result"})

		p.threadsStopped = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "thread",
			Name:      "stopped_total",
			Help:      "Total threads that reached Stopped, by teardown result.",
		}, []string{"teardown"})

		p.heartbeats = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "membership",
			Name:      "heartbeats_total",
			Help:      "Total session keep-alive attempts by result.",
		}, []string{"result"})

		p.departures = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: p.namespace,
			Subsystem: "membership",
			Name:      "departures_total",
			Help:      "Total departure requests by result.",
		}, []string{"result"})

		p.departureDepth = prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: p.namespace,
			Subsystem: "membership",
			Name:      "departure_queue_depth",
			Help:      "Pending departure requests in the bounded queue.",
		})

		p.reg.MustRegister(
			p.stateTransitions,
			p.closeOutcomes,
			p.closeDuration,
			p.unitsProcessed,
			p.threadsStopped,
			p.heartbeats,
			p.departures,
			p.departureDepth,
		)
	})
}

func result(success bool) string {
	if success {
		return "success"
	}

	return "failure"
}

// RecordStateTransition increments the transition counter.
func (p *PrometheusCollector) RecordStateTransition(from, to types.ClientState, _ /* duration */ float64) {
	p.ensureRegistered()
	p.stateTransitions.WithLabelValues(from.String(), to.String()).Inc()
}

// RecordCloseOutcome counts the outcome and observes how long the caller was blocked.
func (p *PrometheusCollector) RecordCloseOutcome(outcome types.CloseOutcome, duration float64) {
	p.ensureRegistered()
	p.closeOutcomes.WithLabelValues(outcome.String()).Inc()
	p.closeDuration.WithLabelValues(outcome.String()).Observe(duration)
}

// RecordUnitProcessed counts a processing unit.
func (p *PrometheusCollector) RecordUnitProcessed(thread string, success bool) {
	p.ensureRegistered()
	p.unitsProcessed.WithLabelValues(thread, result(success)).Inc()
}

// RecordThreadStopped counts a thread reaching Stopped.
func (p *PrometheusCollector) RecordThreadStopped(_ /* thread */ string, teardownFailed bool) {
	p.ensureRegistered()
	p.threadsStopped.WithLabelValues(result(!teardownFailed)).Inc()
}

// RecordHeartbeat counts a session keep-alive attempt. Member IDs are not used
// as labels; they are unbounded.
func (p *PrometheusCollector) RecordHeartbeat(_ /* memberID */ string, success bool) {
	p.ensureRegistered()
	p.heartbeats.WithLabelValues(result(success)).Inc()
}

// RecordDeparture counts a departure result.
func (p *PrometheusCollector) RecordDeparture(_ /* memberID */ string, success bool) {
	p.ensureRegistered()
	p.departures.WithLabelValues(result(success)).Inc()
}

// RecordDepartureQueueDepth sets the departure queue gauge.
func (p *PrometheusCollector) RecordDepartureQueueDepth(depth int) {
	p.ensureRegistered()
	p.departureDepth.Set(float64(depth))
}
