package realtime

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Clients prometheus.Gauge
	Rooms   prometheus.Gauge
	Events  *prometheus.CounterVec
	Dropped *prometheus.CounterVec
}

// NewMetrics registers the realtime collectors on reg. A nil reg gets a private registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		Clients: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Subsystem: "realtime",
			Name:      "clients",
			Help:      "Connected websocket clients.",
		}),
		Rooms: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatsync",
			Subsystem: "realtime",
			Name:      "rooms",
			Help:      "Rooms with at least one registered client.",
		}),
		Events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "realtime",
			Name:      "events_broadcast_total",
			Help:      "Room broadcasts by event.",
		}, []string{"event"}),
		Dropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatsync",
			Subsystem: "realtime",
			Name:      "deliveries_dropped_total",
			Help:      "Deliveries not made, by reason.",
		}, []string{"reason"}),
	}
}
