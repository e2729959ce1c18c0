package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEngineMetricsObserve(t *testing.T) {
	m := NewEngineMetrics(nil)
	m.ObserveSlotQuery("ok", 16, 0.012)
	m.ObserveBooking("committed", 0.004)
	m.ObserveCache("hit")
}

func TestEngineMetricsCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewEngineMetrics(reg)
	m.ObserveBooking("slot_unavailable", 0.001)

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestEngineMetricsNilSafe(t *testing.T) {
	var m *EngineMetrics
	m.ObserveSlotQuery("ok", 0, 0.1)
	m.ObserveBooking("error", 0)
	m.ObserveCache("miss")
}
