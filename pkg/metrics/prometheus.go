// Package metrics provides Prometheus metrics for the rating engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager manages all Prometheus metrics for the rating engine.
type Manager struct {
	namespace string
	subsystem string
	buckets   []float64
	registry  *prometheus.Registry

	// Match processing
	matchesProcessed *prometheus.CounterVec
	matchesRejected  *prometheus.CounterVec
	matchesReversed  prometheus.Counter
	ratingDelta      prometheus.Histogram
	scoreFactor      prometheus.Histogram

	// Inactivity sweep
	inactivityAdjusted prometheus.Counter
	sweepDuration      prometheus.Histogram

	// Store health
	ratingsTracked prometheus.Gauge
	storeErrors    *prometheus.CounterVec
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager()
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "rallyrank",
		subsystem: "rating",
		buckets:   []float64{1, 5, 10, 25, 50, 100, 200},
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.matchesProcessed = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_processed_total",
		Help:      "Matches whose ratings were applied, by game type",
	}, []string{"game_type"})

	m.matchesRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_rejected_total",
		Help:      "Matches rejected before persistence, by reason",
	}, []string{"reason"})

	m.matchesReversed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "matches_reversed_total",
		Help:      "Matches whose rating effects were rolled back",
	})

	m.ratingDelta = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "rating_delta_points",
		Help:      "Absolute per-player rating movement per match",
		Buckets:   m.buckets,
	})

	m.scoreFactor = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "score_factor",
		Help:      "Margin-of-victory multiplier per processed match",
		Buckets:   []float64{1.0, 1.1, 1.2, 1.3, 1.5, 1.75, 2.0},
	})

	m.inactivityAdjusted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "inactivity_adjusted_total",
		Help:      "Rating rows whose deviation was widened by the sweep",
	})

	m.sweepDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sweep_duration_seconds",
		Help:      "Inactivity sweep wall time",
		Buckets:   prometheus.DefBuckets,
	})

	m.ratingsTracked = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "ratings_tracked",
		Help:      "Rating rows currently tracked by the store",
	})

	m.storeErrors = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "store_errors_total",
		Help:      "Store failures by operation",
	}, []string{"operation"})
}

// Handler returns an HTTP handler exposing the manager's registry.
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Package-level helpers against the global manager.

// RecordMatchProcessed counts one applied match.
func RecordMatchProcessed(gameType string) {
	globalManager.matchesProcessed.WithLabelValues(gameType).Inc()
}

// RecordMatchRejected counts a match rejected before persistence.
func RecordMatchRejected(reason string) {
	globalManager.matchesRejected.WithLabelValues(reason).Inc()
}

// RecordMatchReversed counts one reversed match.
func RecordMatchReversed() {
	globalManager.matchesReversed.Inc()
}

// RecordRatingDelta observes one player's absolute rating movement.
func RecordRatingDelta(delta float64) {
	if delta < 0 {
		delta = -delta
	}
	globalManager.ratingDelta.Observe(delta)
}

// RecordScoreFactor observes a processed match's margin multiplier.
func RecordScoreFactor(factor float64) {
	globalManager.scoreFactor.Observe(factor)
}

// RecordInactivityAdjusted counts rows widened by the sweep.
func RecordInactivityAdjusted(n int) {
	globalManager.inactivityAdjusted.Add(float64(n))
}

// RecordSweepDuration observes one sweep's wall time in seconds.
func RecordSweepDuration(seconds float64) {
	globalManager.sweepDuration.Observe(seconds)
}

// UpdateRatingsTracked sets the tracked-rows gauge.
func UpdateRatingsTracked(n int) {
	globalManager.ratingsTracked.Set(float64(n))
}

// RecordStoreError counts a store failure for an operation.
func RecordStoreError(operation string) {
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// Handler returns the global manager's HTTP handler.
func Handler() http.Handler {
	return globalManager.Handler()
}
