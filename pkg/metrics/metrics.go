// Package metrics registers the runtime's prometheus instrumentation.
// All metrics are optional: a nil *Metrics makes every recording method
// a no-op, so components do not need to branch on whether metrics were
// configured.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// State names mirrored as gauge label values; kept here rather than
// importing pkg/supervisor to avoid a dependency cycle (supervisor
// imports metrics, not the reverse).
const (
	StateInit     = "INIT"
	StateRegister = "REGISTER"
	StateSelect   = "SELECT"
	StateServe    = "SERVE"
)

var allStates = []string{StateInit, StateRegister, StateSelect, StateServe}

// Metrics bundles the runtime's prometheus collectors.
type Metrics struct {
	queueDepth       prometheus.Gauge
	uploadsTotal     prometheus.Counter
	latencyProbeMS   prometheus.Histogram
	supervisorState  *prometheus.GaugeVec
	transitionsTotal *prometheus.CounterVec
}

// New registers the runtime's collectors against reg and returns a
// Metrics ready to record against. Pass prometheus.NewRegistry() (or
// prometheus.DefaultRegisterer) at process startup.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "cognit_call_queue_depth",
			Help: "Current number of calls waiting in the call queue.",
		}),
		uploadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "cognit_function_uploads_total",
			Help: "Total number of function bodies uploaded to the fabric (cache misses only).",
		}),
		latencyProbeMS: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "cognit_latency_probe_ms",
			Help:    "Round-trip latency samples to the active cluster, in milliseconds.",
			Buckets: prometheus.ExponentialBuckets(1, 2, 14),
		}),
		supervisorState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "cognit_supervisor_state",
			Help: "1 for the supervisor's current state, 0 for all others.",
		}, []string{"state"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "cognit_supervisor_transitions_total",
			Help: "Total number of supervisor state machine transitions.",
		}, []string{"from", "to"}),
	}

	reg.MustRegister(m.queueDepth, m.uploadsTotal, m.latencyProbeMS, m.supervisorState, m.transitionsTotal)

	for _, s := range allStates {
		m.supervisorState.WithLabelValues(s).Set(0)
	}
	return m
}

// SetQueueDepth records the call queue's current length.
func (m *Metrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

// IncUploads records one function upload (cache miss).
func (m *Metrics) IncUploads() {
	if m == nil {
		return
	}
	m.uploadsTotal.Inc()
}

// ObserveLatencyMS records one latency probe sample.
func (m *Metrics) ObserveLatencyMS(ms float64) {
	if m == nil {
		return
	}
	m.latencyProbeMS.Observe(ms)
}

// SetState marks state as current and every other known state as
// inactive, and increments the from→to transition counter.
func (m *Metrics) SetState(from, to string) {
	if m == nil {
		return
	}
	for _, s := range allStates {
		if s == to {
			m.supervisorState.WithLabelValues(s).Set(1)
		} else {
			m.supervisorState.WithLabelValues(s).Set(0)
		}
	}
	m.transitionsTotal.WithLabelValues(from, to).Inc()
}
