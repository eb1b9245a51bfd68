package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registration metrics
	Registered = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_registered",
			Help: "Whether the agent is registered with a master (1 = registered)",
		},
	)

	Registrations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_registrations_total",
			Help: "Total number of completed master (re-)registrations",
		},
	)

	// Inventory metrics
	FrameworksTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_frameworks_total",
			Help: "Number of frameworks with state on this agent",
		},
	)

	ExecutorsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_executors_total",
			Help: "Number of executors tracked by this agent",
		},
	)

	TasksTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "burrow_tasks_total",
			Help: "Number of launched tasks by state",
		},
		[]string{"state"},
	)

	// Task lifecycle metrics
	TasksStarted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_tasks_started_total",
			Help: "Total number of tasks handed to an executor",
		},
	)

	TasksFinished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "burrow_tasks_finished_total",
			Help: "Total number of tasks reaching a terminal state, by state",
		},
		[]string{"state"},
	)

	// Status-update pipeline metrics
	ValidStatusUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_status_updates_valid_total",
			Help: "Total number of status updates accepted from executors",
		},
	)

	InvalidStatusUpdates = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_status_updates_invalid_total",
			Help: "Total number of status updates dropped for unknown frameworks or tasks",
		},
	)

	StatusUpdateRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_status_update_retries_total",
			Help: "Total number of status updates re-sent after an acknowledgement timeout",
		},
	)

	PendingStatusUpdates = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "burrow_status_updates_pending",
			Help: "Number of status updates awaiting master acknowledgement",
		},
	)

	// Framework message metrics
	ValidFrameworkMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_framework_messages_valid_total",
			Help: "Total number of framework messages relayed",
		},
	)

	InvalidFrameworkMessages = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_framework_messages_invalid_total",
			Help: "Total number of framework messages dropped for unknown destinations",
		},
	)

	// Executor exit metrics
	ExecutorsExited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "burrow_executors_exited_total",
			Help: "Total number of executor processes reaped",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(Registered)
	prometheus.MustRegister(Registrations)
	prometheus.MustRegister(FrameworksTotal)
	prometheus.MustRegister(ExecutorsTotal)
	prometheus.MustRegister(TasksTotal)
	prometheus.MustRegister(TasksStarted)
	prometheus.MustRegister(TasksFinished)
	prometheus.MustRegister(ValidStatusUpdates)
	prometheus.MustRegister(InvalidStatusUpdates)
	prometheus.MustRegister(StatusUpdateRetries)
	prometheus.MustRegister(PendingStatusUpdates)
	prometheus.MustRegister(ValidFrameworkMessages)
	prometheus.MustRegister(InvalidFrameworkMessages)
	prometheus.MustRegister(ExecutorsExited)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
