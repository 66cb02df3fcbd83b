package websocket

import "github.com/prometheus/client_golang/prometheus"

var (
	wsConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "storefront_chat_ws_connections",
			Help: "Current number of open websocket connections.",
		},
	)
	wsCommands = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "storefront_chat_ws_commands_total",
			Help: "Client commands received, by type and result.",
		},
		[]string{"type", "result"},
	)
	wsFramesWritten = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "storefront_chat_ws_frames_written_total",
			Help: "Total event frames written to client sockets.",
		},
	)
)

func init() {
	prometheus.MustRegister(wsConnections, wsCommands, wsFramesWritten)
}

func incConnections() {
	wsConnections.Inc()
}

func decConnections() {
	wsConnections.Dec()
}

func countCommand(t CommandType, result string) {
	wsCommands.WithLabelValues(string(t), result).Inc()
}

func addFramesWritten(count int) {
	wsFramesWritten.Add(float64(count))
}
