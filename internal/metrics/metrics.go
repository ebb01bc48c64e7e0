package metrics

import (
	"net/http"

	"github.com/cronicorn/scheduler/internal/health"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Scheduler loop metrics

	ClaimLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "endpoint_claim_latency_seconds",
		Help:      "Time from an endpoint's nextRunAt to the moment it was claimed.",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	})

	RunExecutionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "run_execution_duration_seconds",
		Help:      "Duration of a dispatcher HTTP execution.",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"status"})

	RunsInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "worker_runs_in_flight",
		Help:      "Number of runs currently being executed by this scheduler worker.",
	})

	RunsCompletedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "runs_completed_total",
		Help:      "Total runs finished, by outcome.",
	}, []string{"outcome", "source"})

	// Reaper metrics

	ReaperCanceledTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "reaper_canceled_runs_total",
		Help:      "Total zombie runs transitioned to canceled by the reaper.",
	})

	ReaperCycleDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "reaper_cycle_duration_seconds",
		Help:      "Time taken for one reaper sweep.",
		Buckets:   prometheus.DefBuckets,
	})

	// AI planner worker metrics

	AIPlannerInvocationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "ai_planner_invocations_total",
		Help:      "Total AI planner analysis passes, by outcome.",
	}, []string{"outcome"})

	AIPlannerTokensTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "ai_planner_tokens_total",
		Help:      "Total tokens recorded via QuotaGuard.RecordUsage.",
	}, []string{"direction"})

	AIPlannerToolCallsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "ai_planner_tool_calls_total",
		Help:      "Total AI planner tool invocations, by tool and outcome.",
	}, []string{"tool", "outcome"})

	// Worker lifecycle

	WorkerStartTime = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "scheduler",
		Name:      "worker_start_time_seconds",
		Help:      "Unix timestamp when the worker started.",
	})

	WorkerShutdownsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "worker_shutdowns_total",
		Help:      "Number of times the worker has shut down.",
	})

	// HTTP metrics (operator surface)

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "scheduler",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "scheduler",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests.",
	}, []string{"method", "path", "status"})
)

func Register() {
	prometheus.MustRegister(
		ClaimLatency,
		RunExecutionDuration,
		RunsInFlight,
		RunsCompletedTotal,
		ReaperCanceledTotal,
		ReaperCycleDuration,
		AIPlannerInvocationsTotal,
		AIPlannerTokensTotal,
		AIPlannerToolCallsTotal,
		WorkerStartTime,
		WorkerShutdownsTotal,
		HTTPRequestDuration,
		HTTPRequestsTotal,
	)
}

// NewServer builds the dedicated metrics HTTP server: /metrics plus the
// /healthz (liveness) and /readyz (readiness) pair from internal/health.
func NewServer(addr string, checker *health.Checker) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		health.WriteJSON(w, checker.Liveness(r.Context()))
	})
	mux.HandleFunc("/readyz", func(w http.ResponseWriter, r *http.Request) {
		result := checker.Readiness(r.Context())
		status := http.StatusOK
		if result.Status != "up" {
			status = http.StatusServiceUnavailable
		}
		health.WriteJSON(w, result, status)
	})
	return &http.Server{Addr: addr, Handler: mux}
}
