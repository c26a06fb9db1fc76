package query

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/dashboard-engine/generic"
)

// Metrics counts cache activity per entity type. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	requests      *prometheus.CounterVec
	coalescedReqs *prometheus.CounterVec
	droppedFills  *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them on reg (if non-nil).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard", Subsystem: "query_cache", Name: "requests_total",
			Help: "Cache lookups by result (hit or miss).",
		}, []string{"type", "result"}),
		coalescedReqs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard", Subsystem: "query_cache", Name: "coalesced_total",
			Help: "Callers that shared another caller's in-flight fetch.",
		}, []string{"type"}),
		droppedFills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard", Subsystem: "query_cache", Name: "dropped_results_total",
			Help: "Fetch results discarded because a newer request was issued.",
		}, []string{"type"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "dashboard", Subsystem: "query_cache", Name: "invalidations_total",
			Help: "Type-wide invalidations after mutations.",
		}, []string{"type"}),
	}
	if reg != nil {
		reg.MustRegister(m.requests, m.coalescedReqs, m.droppedFills, m.invalidations)
	}
	return m
}

// Requests returns the hit/miss counter for tests.
func (m *Metrics) Requests() *prometheus.CounterVec { return m.requests }

func (m *Metrics) hit(t generic.EntityType) {
	if m != nil {
		m.requests.WithLabelValues(string(t), "hit").Inc()
	}
}

func (m *Metrics) miss(t generic.EntityType) {
	if m != nil {
		m.requests.WithLabelValues(string(t), "miss").Inc()
	}
}

func (m *Metrics) coalesced(t generic.EntityType) {
	if m != nil {
		m.coalescedReqs.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) dropped(t generic.EntityType) {
	if m != nil {
		m.droppedFills.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) invalidated(t generic.EntityType) {
	if m != nil {
		m.invalidations.WithLabelValues(string(t)).Inc()
	}
}
