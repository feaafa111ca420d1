// Package metrics exposes the server's prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	ActiveConnections prometheus.Gauge
	MessagesIn        prometheus.Counter
	MessagesOut       prometheus.Counter
	MessagesRejected  prometheus.Counter
	GamesCompleted    *prometheus.CounterVec
}

// New registers the collectors with the given registerer.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "onenight_active_connections",
			Help: "Currently open websocket sessions.",
		}),
		MessagesIn: factory.NewCounter(prometheus.CounterOpts{
			Name: "onenight_messages_in_total",
			Help: "Client messages accepted by the gateway.",
		}),
		MessagesOut: factory.NewCounter(prometheus.CounterOpts{
			Name: "onenight_messages_out_total",
			Help: "Server messages written to clients.",
		}),
		MessagesRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "onenight_messages_rejected_total",
			Help: "Client messages dropped by rate limiting or validation.",
		}),
		GamesCompleted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "onenight_games_completed_total",
			Help: "Games that reached resolution, by winning team.",
		}, []string{"winner"}),
	}
}

// RegisterRoomGauge exposes the live room count pulled from the directory.
func RegisterRoomGauge(reg prometheus.Registerer, count func() int) {
	reg.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "onenight_active_rooms",
		Help: "Rooms currently in the directory.",
	}, func() float64 { return float64(count()) }))
}
