package metrics

import "github.com/prometheus/client_golang/prometheus"

// EngineMetrics exposes counters/histograms for slot resolution and booking
// flows. All observe methods are nil-receiver safe so callers can run
// without metrics wired.
type EngineMetrics struct {
	slotQueriesTotal *prometheus.CounterVec
	slotsReturned    prometheus.Histogram
	resolveLatency   prometheus.Histogram
	bookingsTotal    *prometheus.CounterVec
	lockWaitSeconds  prometheus.Histogram
	cacheTotal       *prometheus.CounterVec
}

func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	m := &EngineMetrics{
		slotQueriesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellfront",
			Subsystem: "scheduling",
			Name:      "slot_queries_total",
			Help:      "Total slot resolution queries",
		}, []string{"status"}),
		slotsReturned: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellfront",
			Subsystem: "scheduling",
			Name:      "slots_returned",
			Help:      "Open slots returned per query",
			Buckets:   []float64{0, 1, 5, 10, 25, 50, 100, 250},
		}),
		resolveLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellfront",
			Subsystem: "scheduling",
			Name:      "resolve_latency_seconds",
			Help:      "Latency of slot resolution including store reads",
			Buckets:   prometheus.DefBuckets,
		}),
		bookingsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellfront",
			Subsystem: "scheduling",
			Name:      "bookings_total",
			Help:      "Booking attempts by outcome",
		}, []string{"result"}),
		lockWaitSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "wellfront",
			Subsystem: "scheduling",
			Name:      "booking_lock_wait_seconds",
			Help:      "Time spent acquiring the per-provider booking lock",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1, 2.5, 5},
		}),
		cacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wellfront",
			Subsystem: "scheduling",
			Name:      "slot_cache_total",
			Help:      "Slot cache lookups by outcome",
		}, []string{"outcome"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.slotQueriesTotal, m.slotsReturned, m.resolveLatency,
		m.bookingsTotal, m.lockWaitSeconds, m.cacheTotal)
	return m
}

func (m *EngineMetrics) ObserveSlotQuery(status string, slots int, seconds float64) {
	if m == nil {
		return
	}
	m.slotQueriesTotal.WithLabelValues(status).Inc()
	if status == "ok" {
		m.slotsReturned.Observe(float64(slots))
	}
	m.resolveLatency.Observe(seconds)
}

func (m *EngineMetrics) ObserveBooking(result string, lockWaitSeconds float64) {
	if m == nil {
		return
	}
	m.bookingsTotal.WithLabelValues(result).Inc()
	m.lockWaitSeconds.Observe(lockWaitSeconds)
}

func (m *EngineMetrics) ObserveCache(outcome string) {
	if m == nil {
		return
	}
	m.cacheTotal.WithLabelValues(outcome).Inc()
}
