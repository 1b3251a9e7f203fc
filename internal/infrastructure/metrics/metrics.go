package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "interchange"

// Outcome labels for relayed messages.
const (
	OutcomePublished = "published"
	OutcomeInvalid   = "invalid"
	OutcomeNoRoom    = "no_room"
	OutcomeFailed    = "failed"
	OutcomeRemote    = "remote"
)

type Metrics struct {
	registry *prometheus.Registry

	ActiveConnections prometheus.Gauge
	AuthRejected      *prometheus.CounterVec
	Messages          *prometheus.CounterVec
	RoomEvents        *prometheus.CounterVec
	LocalRooms        prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	m := &Metrics{
		registry: reg,
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Sockets currently attached to this node.",
		}),
		AuthRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_rejected_total",
			Help:      "Handshakes refused by the authorization gate.",
		}, []string{"reason"}),
		Messages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_total",
			Help:      "entireMsg events handled, by outcome.",
		}, []string{"outcome"}),
		RoomEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "room_events_total",
			Help:      "Room lifecycle events observed, by kind and origin.",
		}, []string{"kind", "origin"}),
		LocalRooms: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "local_rooms",
			Help:      "Rooms with at least one socket on this node.",
		}),
	}

	reg.MustRegister(m.ActiveConnections, m.AuthRejected, m.Messages, m.RoomEvents, m.LocalRooms)
	return m
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
