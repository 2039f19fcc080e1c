package metrics

import "github.com/prometheus/client_golang/prometheus"

// BookingMetrics exposes counters/histograms for the booking commit pipeline.
type BookingMetrics struct {
	commitTotal       *prometheus.CounterVec
	commitLatency     *prometheus.HistogramVec
	orphanedLocations prometheus.Counter
	promotionDegraded *prometheus.CounterVec
	outboxDelivered   *prometheus.CounterVec
}

func NewBookingMetrics(reg prometheus.Registerer) *BookingMetrics {
	m := &BookingMetrics{
		commitTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "booking",
			Name:      "commit_total",
			Help:      "Booking commit attempts by outcome",
		}, []string{"outcome"}),
		commitLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "marketplace",
			Subsystem: "booking",
			Name:      "commit_latency_seconds",
			Help:      "Latency of booking commits",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		orphanedLocations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "booking",
			Name:      "orphaned_locations_total",
			Help:      "Customer locations saved without a booking referencing them",
		}),
		promotionDegraded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "promotions",
			Name:      "degraded_total",
			Help:      "Referenced promotions dropped to no discount, by reason",
		}, []string{"reason"}),
		outboxDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "marketplace",
			Subsystem: "outbox",
			Name:      "delivered_total",
			Help:      "Outbox entries handed to the delivery handler",
		}, []string{"type", "status"}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.commitTotal, m.commitLatency, m.orphanedLocations, m.promotionDegraded, m.outboxDelivered)
	return m
}

func (m *BookingMetrics) ObserveCommit(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.commitTotal.WithLabelValues(outcome).Inc()
	m.commitLatency.WithLabelValues(outcome).Observe(seconds)
}

func (m *BookingMetrics) ObserveOrphanedLocation() {
	if m == nil {
		return
	}
	m.orphanedLocations.Inc()
}

func (m *BookingMetrics) ObservePromotionDegraded(reason string) {
	if m == nil {
		return
	}
	m.promotionDegraded.WithLabelValues(reason).Inc()
}

func (m *BookingMetrics) ObserveOutboxDelivery(eventType string, delivered bool) {
	if m == nil {
		return
	}
	status := "failed"
	if delivered {
		status = "delivered"
	}
	m.outboxDelivered.WithLabelValues(eventType, status).Inc()
}
