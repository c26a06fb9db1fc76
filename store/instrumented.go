package store

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/warp/dashboard-engine/generic"
)

// =============================================================================
// INSTRUMENTED STORE - Prometheus latency and outcome per operation
// =============================================================================

// Instrumented wraps a CollectionStore and records
// dashboard_store_operation_seconds{op,type,outcome}.
type Instrumented struct {
	inner    generic.CollectionStore
	duration *prometheus.HistogramVec
}

// NewInstrumented registers the histogram on reg. A nil reg skips
// registration, which keeps tests free of global state.
func NewInstrumented(inner generic.CollectionStore, reg prometheus.Registerer) *Instrumented {
	h := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dashboard",
		Subsystem: "store",
		Name:      "operation_seconds",
		Help:      "Latency of collection store operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op", "type", "outcome"})
	if reg != nil {
		reg.MustRegister(h)
	}
	return &Instrumented{inner: inner, duration: h}
}

// Collector exposes the histogram for tests and custom registries.
func (s *Instrumented) Collector() prometheus.Collector { return s.duration }

func (s *Instrumented) observe(op string, t generic.EntityType, start time.Time, err error) {
	s.duration.WithLabelValues(op, string(t), outcome(err)).Observe(time.Since(start).Seconds())
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, generic.ErrCorruptCollection):
		return "corrupt"
	case errors.Is(err, generic.ErrStorageUnavailable):
		return "unavailable"
	default:
		return "error"
	}
}

func (s *Instrumented) ReadCollection(ctx context.Context, t generic.EntityType) (generic.Collection, error) {
	start := time.Now()
	coll, err := s.inner.ReadCollection(ctx, t)
	s.observe("read", t, start, err)
	return coll, err
}

func (s *Instrumented) WriteCollection(ctx context.Context, t generic.EntityType, c generic.Collection) error {
	start := time.Now()
	err := s.inner.WriteCollection(ctx, t, c)
	s.observe("write", t, start, err)
	return err
}

// QueryCollection uses the inner pushdown when there is one.
func (s *Instrumented) QueryCollection(ctx context.Context, t generic.EntityType, params generic.Params) (generic.Collection, error) {
	start := time.Now()
	var (
		coll generic.Collection
		err  error
	)
	if q, ok := s.inner.(generic.QueryableStore); ok {
		coll, err = q.QueryCollection(ctx, t, params)
	} else {
		coll, err = s.inner.ReadCollection(ctx, t)
		if err == nil {
			coll = generic.FilterCollection(coll, params)
		}
	}
	s.observe("query", t, start, err)
	return coll, err
}
