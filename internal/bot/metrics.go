package bot

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics exported by the bot.
type Metrics struct {
	MessagesProcessed     prometheus.Counter
	CommandsProcessed     prometheus.Counter
	CommandDuration       *prometheus.HistogramVec
	ReservationsCommitted prometheus.Counter
	ErrorsTotal           prometheus.Counter
	ActiveSessions        prometheus.Gauge
}

func NewMetrics() *Metrics {
	return &Metrics{
		MessagesProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calenbot_messages_processed_total",
			Help: "Total number of processed messages",
		}),

		CommandsProcessed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calenbot_commands_processed_total",
			Help: "Total number of processed commands",
		}),

		CommandDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "calenbot_command_duration_seconds",
			Help:    "Duration of command processing",
			Buckets: prometheus.DefBuckets,
		}, []string{"command"}),

		ReservationsCommitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calenbot_reservations_committed_total",
			Help: "Total number of committed reservations",
		}),

		ErrorsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Name: "calenbot_errors_total",
			Help: "Total number of errors",
		}),

		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "calenbot_active_sessions",
			Help: "Number of interactive sessions currently open",
		}),
	}
}
