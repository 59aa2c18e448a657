package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// OrderMetrics содержит метрики ядра заказов.
type OrderMetrics struct {
	// Счётчики операций
	ordersCreated      prometheus.Counter
	validationFailures prometheus.Counter
	notFoundTotal      prometheus.Counter

	// Переходы статусов по целевому статусу
	statusTransitions *prometheus.CounterVec
	transitionsDenied prometheus.Counter

	// Гистограмма времени создания заказа
	createDuration prometheus.Histogram
}

// NewOrderMetrics создаёт метрики ядра заказов в default-регистраторе.
func NewOrderMetrics() *OrderMetrics {
	return newOrderMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

func newOrderMetricsWithRegisterer(registerer prometheus.Registerer) *OrderMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	return &OrderMetrics{
		ordersCreated: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_created_total",
			Help: "Total number of orders created",
		}),
		validationFailures: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_product_validation_failures_total",
			Help: "Total number of order creations rejected by product validation",
		}),
		notFoundTotal: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_not_found_total",
			Help: "Total number of lookups for missing orders",
		}),
		statusTransitions: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orders_status_transitions_total",
			Help: "Total number of applied status transitions grouped by target status",
		}, []string{"status"}),
		transitionsDenied: registerCounter(registerer, prometheus.CounterOpts{
			Name: "orders_status_transitions_denied_total",
			Help: "Total number of rejected status transitions",
		}),
		createDuration: registerHistogram(registerer, prometheus.HistogramOpts{
			Name:    "orders_create_duration_seconds",
			Help:    "Duration of the order creation flow in seconds",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// OrderCreated фиксирует успешно созданный заказ и длительность создания.
func (m *OrderMetrics) OrderCreated(duration time.Duration) {
	if m == nil {
		return
	}
	m.ordersCreated.Inc()
	m.createDuration.Observe(duration.Seconds())
}

// ValidationFailed фиксирует отказ валидации товаров.
func (m *OrderMetrics) ValidationFailed() {
	if m == nil {
		return
	}
	m.validationFailures.Inc()
}

// OrderNotFound фиксирует обращение к несуществующему заказу.
func (m *OrderMetrics) OrderNotFound() {
	if m == nil {
		return
	}
	m.notFoundTotal.Inc()
}

// StatusTransition фиксирует применённый переход в целевой статус.
func (m *OrderMetrics) StatusTransition(status string) {
	if m == nil {
		return
	}
	m.statusTransitions.WithLabelValues(status).Inc()
}

// TransitionDenied фиксирует запрещённый переход статуса.
func (m *OrderMetrics) TransitionDenied() {
	if m == nil {
		return
	}
	m.transitionsDenied.Inc()
}

func registerCounter(registerer prometheus.Registerer, opts prometheus.CounterOpts) prometheus.Counter {
	collector := prometheus.NewCounter(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Counter)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter %q: %v", opts.Name, err))
	}
	return collector
}

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogram(registerer prometheus.Registerer, opts prometheus.HistogramOpts) prometheus.Histogram {
	collector := prometheus.NewHistogram(opts)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(prometheus.Histogram)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram %q: %v", opts.Name, err))
	}
	return collector
}
