// Package metrics exposes prometheus instrumentation for the
// classroom core and the presence broadcaster.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// SessionsStarted counts successful class starts.
	SessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_sessions_started_total",
		Help: "Number of classroom sessions started.",
	})

	// SessionsEnded counts successful class ends.
	SessionsEnded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_sessions_ended_total",
		Help: "Number of classroom sessions ended.",
	})

	// ParticipantsJoined counts successful joins.
	ParticipantsJoined = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_participants_joined_total",
		Help: "Number of participants joined across all sessions.",
	})

	// ParticipantsLeft counts successful leaves.
	ParticipantsLeft = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_participants_left_total",
		Help: "Number of participants left across all sessions.",
	})

	// EventsPublished counts events accepted onto classroom channels,
	// labeled by event name.
	EventsPublished = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "classroom_events_published_total",
		Help: "Number of events published to classroom channels.",
	}, []string{"event"})

	// DeliveryFailures counts subscriber deliveries that failed.
	DeliveryFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "classroom_event_delivery_failures_total",
		Help: "Number of failed event deliveries to individual subscribers.",
	})

	// Subscribers tracks the current number of channel subscriptions.
	Subscribers = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "classroom_channel_subscribers",
		Help: "Current number of classroom channel subscriptions.",
	})
)

// Handler returns the HTTP handler serving the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
