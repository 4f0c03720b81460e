package chat

import "github.com/prometheus/client_golang/prometheus"

var (
	ConnectedSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "roomcast_joined_sessions",
		Help: "Number of currently joined sessions",
	})

	RoomSessions = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "roomcast_room_sessions",
		Help: "Joined sessions per room",
	}, []string{"room"})

	CommandsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "roomcast_commands_total",
		Help: "Client lines processed by verb",
	}, []string{"verb"})

	CommandDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roomcast_command_processing_seconds",
		Help:    "Time to process each verb",
		Buckets: prometheus.DefBuckets,
	}, []string{"verb"})

	DroppedLines = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "roomcast_dropped_lines_total",
		Help: "Outbound lines dropped because a client buffer was full",
	})
)

func init() {
	prometheus.MustRegister(ConnectedSessions)
	prometheus.MustRegister(RoomSessions)
	prometheus.MustRegister(CommandsTotal)
	prometheus.MustRegister(CommandDuration)
	prometheus.MustRegister(DroppedLines)
}
