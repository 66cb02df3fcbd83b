package bus

import "github.com/prometheus/client_golang/prometheus"

var (
	busSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_chat_ws_sessions",
			Help: "Current number of registered websocket sessions.",
		},
	)
	busRooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_chat_ws_rooms",
			Help: "Current number of conversation rooms with at least one session.",
		},
	)
	busDelivered = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_chat_ws_events_delivered_total",
			Help: "Events enqueued to session send queues.",
		},
	)
	busDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_chat_ws_events_dropped_total",
			Help: "Events dropped because a session send queue was full.",
		},
	)
)

func init() {
	prometheus.MustRegister(busSessions, busRooms, busDelivered, busDropped)
}

func setSessions(count int) {
	busSessions.Set(float64(count))
}

func setRooms(count int) {
	busRooms.Set(float64(count))
}

func addDelivered(count int) {
	if count > 0 {
		busDelivered.Add(float64(count))
	}
}

func addDropped(count int) {
	if count > 0 {
		busDropped.Add(float64(count))
	}
}
