/*
Package metrics defines the Prometheus collectors of the realtime core.

Usage:

	m := metrics.New(prometheus.DefaultRegisterer)
	m.EventRouted("session_activity")
	m.Connections.Set(float64(n))

A nil *Metrics is valid and records nothing, so components constructed in
tests can skip metrics entirely.
*/
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the realtime collectors.
type Metrics struct {
	// Connections is the number of admitted live websocket connections.
	Connections prometheus.Gauge

	// OnlineUsers is the number of distinct users with at least one connection.
	OnlineUsers prometheus.Gauge

	// Rooms is the number of non-empty session rooms.
	Rooms prometheus.Gauge

	// EventsRouted counts inbound events that were stamped and dispatched.
	// Labels: event
	EventsRouted *prometheus.CounterVec

	// EventsDropped counts inbound events that were discarded.
	// Labels: reason (malformed|unknown_event|rate_limited|slow_consumer)
	EventsDropped *prometheus.CounterVec

	// AdmissionsRejected counts refused websocket handshakes.
	// Labels: reason (missing_token|invalid_token|verification_error|rate_limited)
	AdmissionsRejected *prometheus.CounterVec

	// PresenceBroadcasts counts presence notifications fanned out.
	// Labels: status
	PresenceBroadcasts *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Connections: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mentormatch_realtime_connections",
			Help: "Current number of live websocket connections",
		}),
		OnlineUsers: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mentormatch_realtime_online_users",
			Help: "Current number of users with at least one live connection",
		}),
		Rooms: factory.NewGauge(prometheus.GaugeOpts{
			Name: "mentormatch_realtime_rooms",
			Help: "Current number of non-empty session rooms",
		}),
		EventsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentormatch_realtime_events_routed_total",
			Help: "Inbound realtime events dispatched by event name",
		}, []string{"event"}),
		EventsDropped: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentormatch_realtime_events_dropped_total",
			Help: "Inbound realtime events discarded by reason",
		}, []string{"reason"}),
		AdmissionsRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentormatch_realtime_admissions_rejected_total",
			Help: "Refused websocket handshakes by reason",
		}, []string{"reason"}),
		PresenceBroadcasts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "mentormatch_realtime_presence_broadcasts_total",
			Help: "Presence notifications broadcast by status",
		}, []string{"status"}),
	}
}

// EventRouted increments the routed counter for event.
func (m *Metrics) EventRouted(event string) {
	if m == nil {
		return
	}
	m.EventsRouted.WithLabelValues(event).Inc()
}

// EventDropped increments the dropped counter for reason.
func (m *Metrics) EventDropped(reason string) {
	if m == nil {
		return
	}
	m.EventsDropped.WithLabelValues(reason).Inc()
}

// AdmissionRejected increments the rejected-handshake counter for reason.
func (m *Metrics) AdmissionRejected(reason string) {
	if m == nil {
		return
	}
	m.AdmissionsRejected.WithLabelValues(reason).Inc()
}

// PresenceBroadcast increments the presence counter for status.
func (m *Metrics) PresenceBroadcast(status string) {
	if m == nil {
		return
	}
	m.PresenceBroadcasts.WithLabelValues(status).Inc()
}

// SetGauges records the current registry sizes.
func (m *Metrics) SetGauges(connections, onlineUsers, rooms int) {
	if m == nil {
		return
	}
	m.Connections.Set(float64(connections))
	m.OnlineUsers.Set(float64(onlineUsers))
	m.Rooms.Set(float64(rooms))
}
