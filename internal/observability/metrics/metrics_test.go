package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestSchedulingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)
	m.ObserveCacheHit("slots")
	m.ObserveCacheMiss("slots")
	m.ObserveInvalidation("calendar", 3)
	m.ObserveEvictions(2)
	m.ObserveFetchLatency("slots", 0.15)
	m.ObserveBooking("committed")
	m.ObserveOptimisticApply()
	m.ObserveRollback()
	m.ObserveRefreshRun()
}

func TestSchedulingMetricsZeroCountsIgnored(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewSchedulingMetrics(reg)
	m.ObserveInvalidation("slots", 0)
	m.ObserveEvictions(-1)
}

func TestSchedulingMetricsNilSafe(t *testing.T) {
	var m *SchedulingMetrics
	m.ObserveCacheHit("slots")
	m.ObserveCacheMiss("slots")
	m.ObserveInvalidation("slots", 1)
	m.ObserveEvictions(1)
	m.ObserveFetchLatency("slots", 0.1)
	m.ObserveBooking("rolled_back")
	m.ObserveOptimisticApply()
	m.ObserveRollback()
	m.ObserveRefreshRun()
}
