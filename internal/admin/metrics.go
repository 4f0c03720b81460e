package admin

import "github.com/prometheus/client_golang/prometheus"

var (
	ActionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_actions_total",
		Help: "Admin actions handled by type and outcome",
	}, []string{"type", "outcome"})

	QueuePending = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "admin_queue_pending",
		Help: "Unexecuted actions seen on the last poll",
	})

	QueueErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "admin_queue_errors_total",
		Help: "Queue and ledger failures by operation",
	}, []string{"op"})
)

func init() {
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(QueuePending)
	prometheus.MustRegister(QueueErrors)
}
