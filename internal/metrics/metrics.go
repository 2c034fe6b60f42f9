package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ConnectionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_connections_active",
		Help: "Currently open client connections",
	})

	UsersOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "pulse_users_online",
		Help: "Users with at least one active connection",
	})

	MessagesPersisted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_messages_persisted_total",
		Help: "Messages durably stored, by target type",
	}, []string{"target_type"})

	MessageErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_message_errors_total",
		Help: "Message submissions rejected or failed to persist",
	})

	FanoutDeliveries = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_fanout_deliveries_total",
		Help: "Realtime events queued to client connections, by event",
	}, []string{"event"})

	PresenceTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "pulse_presence_transitions_total",
		Help: "Presence transitions observed, by kind",
	}, []string{"kind"})

	DroppedSends = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pulse_dropped_sends_total",
		Help: "Events dropped because a client send buffer was full",
	})
)
