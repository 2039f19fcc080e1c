package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func counterValue(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelsMatch(metric, labels) {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func labelsMatch(metric *dto.Metric, want map[string]string) bool {
	if len(metric.GetLabel()) != len(want) {
		return false
	}
	for _, pair := range metric.GetLabel() {
		if want[pair.GetName()] != pair.GetValue() {
			return false
		}
	}
	return true
}

func TestBookingMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBookingMetrics(reg)

	m.ObserveCommit("success", 0.2)
	m.ObserveCommit("success", 0.1)
	m.ObserveCommit("booking_write_failed", 0.3)
	m.ObserveOrphanedLocation()
	m.ObservePromotionDegraded("expired")
	m.ObserveOutboxDelivery("booking.commit.v1", true)

	if got := counterValue(t, reg, "marketplace_booking_commit_total", map[string]string{"outcome": "success"}); got != 2 {
		t.Fatalf("expected 2 successful commits, got %v", got)
	}
	if got := counterValue(t, reg, "marketplace_booking_orphaned_locations_total", nil); got != 1 {
		t.Fatalf("expected 1 orphaned location, got %v", got)
	}
	if got := counterValue(t, reg, "marketplace_promotions_degraded_total", map[string]string{"reason": "expired"}); got != 1 {
		t.Fatalf("expected 1 degraded promotion, got %v", got)
	}
	if got := counterValue(t, reg, "marketplace_outbox_delivered_total", map[string]string{"type": "booking.commit.v1", "status": "delivered"}); got != 1 {
		t.Fatalf("expected 1 delivered entry, got %v", got)
	}
}

func TestBookingMetricsDefaultRegistry(t *testing.T) {
	defer func(prev prometheus.Registerer) { prometheus.DefaultRegisterer = prev }(prometheus.DefaultRegisterer)
	prometheus.DefaultRegisterer = prometheus.NewRegistry()

	m := NewBookingMetrics(nil)
	m.ObserveCommit("validation_failed", 0)
}

func TestBookingMetricsNilSafe(t *testing.T) {
	var m *BookingMetrics
	m.ObserveCommit("success", 0.1)
	m.ObserveOrphanedLocation()
	m.ObservePromotionDegraded("expired")
	m.ObserveOutboxDelivery("booking.commit.v1", false)
}
