package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the Prometheus instruments for the order engine.
type Collector struct {
	registry *prometheus.Registry

	ordersCreated     *prometheus.CounterVec
	tendersApplied    *prometheus.CounterVec
	statusTransitions *prometheus.CounterVec
	activeOrders      prometheus.Gauge
	wsSessions        prometheus.Gauge
	completionTime    *prometheus.HistogramVec
}

// NewCollector creates and registers all instruments on a fresh
// registry.
func NewCollector() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		ordersCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comanda_orders_created_total",
				Help: "Orders created, by sales channel",
			},
			[]string{"channel"},
		),
		tendersApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comanda_tenders_applied_total",
				Help: "Tenders applied, by resulting payment method",
			},
			[]string{"method"},
		),
		statusTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comanda_order_status_transitions_total",
				Help: "Order status transitions, by target status",
			},
			[]string{"to"},
		),
		activeOrders: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "comanda_orders_active",
				Help: "Orders currently in a non-terminal status",
			},
		),
		wsSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "comanda_ws_sessions",
				Help: "Connected websocket sessions",
			},
		),
		completionTime: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "comanda_order_completion_seconds",
				Help:    "Time from creation to completion",
				Buckets: prometheus.LinearBuckets(0, 300, 12), // 5-minute buckets
			},
			[]string{"channel"},
		),
	}

	c.registry.MustRegister(
		c.ordersCreated,
		c.tendersApplied,
		c.statusTransitions,
		c.activeOrders,
		c.wsSessions,
		c.completionTime,
	)
	return c
}

// Registry exposes the underlying registry for the /metrics handler.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// OrderCreated records a new order on a channel.
func (c *Collector) OrderCreated(channel string) {
	c.ordersCreated.WithLabelValues(channel).Inc()
	c.activeOrders.Inc()
}

// TenderApplied records an applied tender by resulting method.
func (c *Collector) TenderApplied(method string) {
	c.tendersApplied.WithLabelValues(method).Inc()
}

// StatusChanged records a transition; terminal transitions decrement
// the active-orders gauge.
func (c *Collector) StatusChanged(to string, terminal bool) {
	c.statusTransitions.WithLabelValues(to).Inc()
	if terminal {
		c.activeOrders.Dec()
	}
}

// OrderCompleted records the creation-to-completion duration.
func (c *Collector) OrderCompleted(channel string, seconds float64) {
	c.completionTime.WithLabelValues(channel).Observe(seconds)
}

// SessionConnected tracks a websocket connect.
func (c *Collector) SessionConnected() { c.wsSessions.Inc() }

// SessionClosed tracks a websocket disconnect or eviction.
func (c *Collector) SessionClosed() { c.wsSessions.Dec() }
