package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestNewOrderMetricsRegistersCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()

	m := newOrderMetricsWithRegisterer(registry)
	if m == nil {
		t.Fatal("expected metrics instance")
	}

	m.OrderCreated(25 * time.Millisecond)
	m.ValidationFailed()
	m.OrderNotFound()
	m.StatusTransition("PAID")
	m.TransitionDenied()

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather failed: %v", err)
	}
	if len(families) == 0 {
		t.Fatal("expected registered metric families")
	}
}

func TestNewOrderMetricsDoubleRegistration(t *testing.T) {
	registry := prometheus.NewRegistry()

	first := newOrderMetricsWithRegisterer(registry)
	// Повторная регистрация должна вернуть существующие коллекторы, а не паниковать.
	second := newOrderMetricsWithRegisterer(registry)

	if first == nil || second == nil {
		t.Fatal("expected both instances")
	}

	second.StatusTransition("CANCELLED")
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *OrderMetrics
	m.OrderCreated(time.Second)
	m.ValidationFailed()
	m.OrderNotFound()
	m.StatusTransition("PAID")
	m.TransitionDenied()
}
