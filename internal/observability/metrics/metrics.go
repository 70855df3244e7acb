package metrics

import "github.com/prometheus/client_golang/prometheus"

// SchedulingMetrics exposes counters/histograms for the availability cache
// and booking coordination flows.
type SchedulingMetrics struct {
	cacheHits         *prometheus.CounterVec
	cacheMisses       *prometheus.CounterVec
	invalidations     *prometheus.CounterVec
	evictions         prometheus.Counter
	fetchLatency      *prometheus.HistogramVec
	bookingTotal      *prometheus.CounterVec
	optimisticApplies prometheus.Counter
	rollbacks         prometheus.Counter
	refreshRuns       prometheus.Counter
}

func NewSchedulingMetrics(reg prometheus.Registerer) *SchedulingMetrics {
	m := &SchedulingMetrics{
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "cache",
			Name:      "hits_total",
			Help:      "Cache lookups served from a fresh entry",
		}, []string{"family"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "cache",
			Name:      "misses_total",
			Help:      "Cache lookups that required a fetch",
		}, []string{"family"}),
		invalidations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "cache",
			Name:      "invalidations_total",
			Help:      "Entries marked stale by the invalidation engine",
		}, []string{"family"}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "cache",
			Name:      "evictions_total",
			Help:      "Entries removed by the janitor sweep",
		}),
		fetchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clinicsched",
			Subsystem: "api",
			Name:      "fetch_latency_seconds",
			Help:      "Latency of scheduling backend calls",
			Buckets:   prometheus.DefBuckets,
		}, []string{"endpoint"}),
		bookingTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "booking",
			Name:      "mutations_total",
			Help:      "Booking mutations by outcome",
		}, []string{"outcome"}),
		optimisticApplies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "booking",
			Name:      "optimistic_applies_total",
			Help:      "Optimistic slot removals applied before remote confirmation",
		}),
		rollbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "booking",
			Name:      "rollbacks_total",
			Help:      "Optimistic writes rolled back after a failed mutation",
		}),
		refreshRuns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "clinicsched",
			Subsystem: "cache",
			Name:      "refresh_runs_total",
			Help:      "Background slot refresh sweeps",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.cacheHits, m.cacheMisses, m.invalidations, m.evictions,
		m.fetchLatency, m.bookingTotal, m.optimisticApplies, m.rollbacks,
		m.refreshRuns,
	)
	return m
}

func (m *SchedulingMetrics) ObserveCacheHit(family string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(family).Inc()
}

func (m *SchedulingMetrics) ObserveCacheMiss(family string) {
	if m == nil {
		return
	}
	m.cacheMisses.WithLabelValues(family).Inc()
}

func (m *SchedulingMetrics) ObserveInvalidation(family string, count int) {
	if m == nil || count <= 0 {
		return
	}
	m.invalidations.WithLabelValues(family).Add(float64(count))
}

func (m *SchedulingMetrics) ObserveEvictions(count int) {
	if m == nil || count <= 0 {
		return
	}
	m.evictions.Add(float64(count))
}

func (m *SchedulingMetrics) ObserveFetchLatency(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.fetchLatency.WithLabelValues(endpoint).Observe(seconds)
}

func (m *SchedulingMetrics) ObserveBooking(outcome string) {
	if m == nil {
		return
	}
	m.bookingTotal.WithLabelValues(outcome).Inc()
}

func (m *SchedulingMetrics) ObserveOptimisticApply() {
	if m == nil {
		return
	}
	m.optimisticApplies.Inc()
}

func (m *SchedulingMetrics) ObserveRollback() {
	if m == nil {
		return
	}
	m.rollbacks.Inc()
}

func (m *SchedulingMetrics) ObserveRefreshRun() {
	if m == nil {
		return
	}
	m.refreshRuns.Inc()
}
