// Package monitoring exposes Prometheus metrics for the order pipeline and
// the realtime layer. Metrics live in their own registry so independent
// instances (one per test, one per process) never collide.
package monitoring

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	OrdersPlaced     prometheus.Counter
	Transitions      *prometheus.CounterVec
	ConnectedClients prometheus.Gauge
	DroppedMessages  prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		OrdersPlaced: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canteen",
			Name:      "orders_placed_total",
			Help:      "Total number of orders placed.",
		}),
		Transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "canteen",
			Name:      "order_transitions_total",
			Help:      "Total number of successful order status transitions.",
		}, []string{"to_status"}),
		ConnectedClients: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "canteen",
			Name:      "websocket_connected_clients",
			Help:      "Number of currently connected websocket clients.",
		}),
		DroppedMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "canteen",
			Name:      "broadcast_dropped_messages_total",
			Help:      "Messages dropped because a client send buffer was full.",
		}),
	}
	m.registry.MustRegister(m.OrdersPlaced, m.Transitions, m.ConnectedClients, m.DroppedMessages)
	return m
}

// Handler serves this instance's metrics in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
