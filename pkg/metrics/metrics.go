package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Control-plane client metrics
	ControlPlaneCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_controlplane_calls_total",
			Help: "Control-plane call attempts by operation and outcome",
		},
		[]string{"operation", "outcome"},
	)

	// Credentials metrics
	CredentialRefreshes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_credential_refreshes_total",
			Help: "Worker credential refresh attempts by outcome",
		},
		[]string{"outcome"},
	)

	JobUserCacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_job_user_cache_lookups_total",
			Help: "Job-user credential cache lookups by result (hit, miss, stale)",
		},
		[]string{"result"},
	)

	// Session metrics
	SessionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_sessions_total",
			Help: "Sessions finished by terminal status",
		},
		[]string{"status"},
	)

	ActionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "drover_actions_total",
			Help: "Actions finished by kind and terminal status",
		},
		[]string{"kind", "status"},
	)

	ActionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "drover_action_duration_seconds",
			Help:    "Action execution duration in seconds by kind",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	SessionsRunning = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "drover_sessions_running",
			Help: "Number of sessions currently running on this worker",
		},
	)

	// Heartbeat metrics
	HeartbeatDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "drover_heartbeat_duration_seconds",
			Help:    "UpdateWorkerSchedule round-trip duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(ControlPlaneCalls)
	prometheus.MustRegister(CredentialRefreshes)
	prometheus.MustRegister(JobUserCacheLookups)
	prometheus.MustRegister(SessionsTotal)
	prometheus.MustRegister(ActionsTotal)
	prometheus.MustRegister(ActionDuration)
	prometheus.MustRegister(SessionsRunning)
	prometheus.MustRegister(HeartbeatDuration)
}

// Handler returns the prometheus scrape handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// StartServer starts the metrics and health HTTP server on the given
// address. Blocks; run in a goroutine.
func StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", HealthHandler())
	mux.HandleFunc("/ready", ReadyHandler())
	return http.ListenAndServe(addr, mux)
}
