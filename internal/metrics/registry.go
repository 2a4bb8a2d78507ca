// Package metrics implements C8: a namespaced Prometheus registry plus a
// per-component health machine, exposed read-only through internal/api.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Component names every pipeline stage the registry tracks per-component
// counters/histograms for (spec §4.8: "Every component exposes ...").
type Component string

const (
	ComponentIngest   Component = "ingest"
	ComponentState    Component = "state"
	ComponentScorer   Component = "scorer"
	ComponentStrategy Component = "strategy"
	ComponentRisk     Component = "risk"
	ComponentWallet   Component = "wallet"
	ComponentBundle   Component = "bundle"
)

var allComponents = []Component{
	ComponentIngest, ComponentState, ComponentScorer, ComponentStrategy,
	ComponentRisk, ComponentWallet, ComponentBundle,
}

// Registry wraps a prometheus.Registry with per-component counters,
// histograms, and health state, grounded on
// VladislavFirsov-solana-token-lab's observability.Metrics (namespaced
// promauto construction) and teacher internal/workers.PoolMetrics'
// p50/p95/p99 latency tracking generalized from one pool to every
// pipeline component.
type Registry struct {
	namespace string
	registry  *prometheus.Registry

	processed *prometheus.CounterVec
	approved  *prometheus.CounterVec
	submitted *prometheus.CounterVec
	confirmed *prometheus.CounterVec
	failed    *prometheus.CounterVec
	errors    *prometheus.CounterVec
	latency   *prometheus.HistogramVec

	health *healthTracker
}

// NewRegistry constructs a Registry with every metric pre-registered for
// every known Component, so /metrics never needs a first observation to
// expose a series.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "kineticshield"
	}
	reg := prometheus.NewRegistry()

	r := &Registry{
		namespace: namespace,
		registry:  reg,
		processed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_processed_total",
			Help:      "Total items processed by component.",
		}, []string{"component"}),
		approved: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_approved_total",
			Help:      "Total items approved by component.",
		}, []string{"component"}),
		submitted: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_submitted_total",
			Help:      "Total items submitted by component.",
		}, []string{"component"}),
		confirmed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_confirmed_total",
			Help:      "Total items confirmed by component.",
		}, []string{"component"}),
		failed: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_failed_total",
			Help:      "Total items failed by component.",
		}, []string{"component"}),
		errors: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "component_errors_total",
			Help:      "Total errors observed by component.",
		}, []string{"component"}),
		latency: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "component_latency_seconds",
			Help:      "Per-item processing latency by component.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"component"}),
		health: newHealthTracker(),
	}

	for _, c := range allComponents {
		r.processed.WithLabelValues(string(c))
		r.approved.WithLabelValues(string(c))
		r.submitted.WithLabelValues(string(c))
		r.confirmed.WithLabelValues(string(c))
		r.failed.WithLabelValues(string(c))
		r.errors.WithLabelValues(string(c))
		r.health.ensure(c)
	}
	return r
}

// Prometheus exposes the underlying registry for promhttp.HandlerFor.
func (r *Registry) Prometheus() *prometheus.Registry { return r.registry }

// RecordProcessed increments the processed counter for a component.
func (r *Registry) RecordProcessed(c Component) { r.processed.WithLabelValues(string(c)).Inc() }

// RecordApproved increments the approved counter for a component.
func (r *Registry) RecordApproved(c Component) { r.approved.WithLabelValues(string(c)).Inc() }

// RecordSubmitted increments the submitted counter for a component.
func (r *Registry) RecordSubmitted(c Component) { r.submitted.WithLabelValues(string(c)).Inc() }

// RecordConfirmed increments the confirmed counter for a component.
func (r *Registry) RecordConfirmed(c Component) { r.confirmed.WithLabelValues(string(c)).Inc() }

// RecordFailed increments the failed counter for a component.
func (r *Registry) RecordFailed(c Component) { r.failed.WithLabelValues(string(c)).Inc() }

// RecordError increments the error counter and feeds the health tracker
// for a component, per spec §4.8's "error rate" health input.
func (r *Registry) RecordError(c Component) {
	r.errors.WithLabelValues(string(c)).Inc()
	r.health.recordError(c)
}

// RecordLatency observes a processing latency sample for a component and
// feeds the health tracker, which compares this latest sample against its
// degraded/unhealthy latency thresholds.
func (r *Registry) RecordLatency(c Component, seconds float64) {
	r.latency.WithLabelValues(string(c)).Observe(seconds)
	r.health.recordLatency(c, seconds)
}

// RecordSuccess feeds the health tracker a successful observation,
// resetting its consecutive-error streak.
func (r *Registry) RecordSuccess(c Component) {
	r.health.recordSuccess(c)
}

// Health returns the per-component and system-level health snapshot.
func (r *Registry) Health() HealthReport {
	return r.health.report()
}
