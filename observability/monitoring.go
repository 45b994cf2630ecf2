package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	OutcomeSent    = "sent"
	OutcomeDropped = "dropped"
)

// Metrics holds the hub counters. Every instance owns its registry so that
// several hubs (tests, e2e) can live in the same process.
type Metrics struct {
	registry *prometheus.Registry

	Connections     prometheus.Gauge
	RegisteredUsers prometheus.Gauge
	InboundEvents   *prometheus.CounterVec
	RejectedEvents  *prometheus.CounterVec
	Deliveries      *prometheus.CounterVec
	ProcessRSSBytes prometheus.Gauge
	ProcessCPU      prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Connections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_connections",
			Help:      "Live transport connections attached to the hub",
		}),
		RegisteredUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_registered_users",
			Help:      "Users reachable for unicast delivery",
		}),
		InboundEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_inbound_events_total",
			Help:      "Domain events received from connections",
		}, []string{"kind"}),
		RejectedEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_rejected_events_total",
			Help:      "Domain events refused because their payload was invalid",
		}, []string{"kind"}),
		Deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "hub_deliveries_total",
			Help:      "Outbound deliveries attempted, by outcome",
		}, []string{"kind", "outcome"}),
		ProcessRSSBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_process_rss_bytes",
			Help:      "Resident memory of the hub process",
		}),
		ProcessCPU: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "hub_process_cpu_percent",
			Help:      "CPU usage of the hub process",
		}),
	}
	m.registry.MustRegister(
		m.Connections, m.RegisteredUsers, m.InboundEvents, m.RejectedEvents,
		m.Deliveries, m.ProcessRSSBytes, m.ProcessCPU,
	)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
