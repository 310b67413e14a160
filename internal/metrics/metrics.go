package metrics

import (
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	IngestRuns = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reputest_ingest_runs_total",
		Help: "Total ingestion passes",
	})
	IngestErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "reputest_ingest_errors_total",
		Help: "Total ingestion passes aborted by an error",
	})
	IngestDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "reputest_ingest_duration_seconds",
		Help:    "Ingestion pass duration seconds",
		Buckets: prometheus.DefBuckets,
	})
	TokenRefreshes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_token_refreshes_total",
		Help: "Access token refresh attempts by result",
	}, []string{"result"})
	PagesFetched = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_pages_fetched_total",
		Help: "Result pages fetched by source",
	}, []string{"source"})
	Intents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_intents_total",
		Help: "Messages classified by extracted intent",
	}, []string{"kind"})
	Outcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_outcomes_total",
		Help: "Per-message processing outcomes",
	}, []string{"outcome"})
	Replies = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_replies_total",
		Help: "Acknowledgement replies by result",
	}, []string{"result"})
	CommandRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_command_runs_total",
		Help: "CLI command invocations",
	}, []string{"cmd"})
	CommandErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "reputest_command_errors_total",
		Help: "CLI command failures",
	}, []string{"cmd"})
)

func init() {
	prometheus.MustRegister(IngestRuns, IngestErrors, IngestDuration, TokenRefreshes,
		PagesFetched, Intents, Outcomes, Replies, CommandRuns, CommandErrors)
}

// StartServer starts a metrics HTTP server on addr (e.g., ":9090").
func StartServer(addr string) {
	if addr == "" {
		addr = os.Getenv("METRICS_ADDR")
	}
	if addr == "" {
		return
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) })
	go func() { _ = http.ListenAndServe(addr, mux) }()
}

// ObserveIngestDuration records a run duration
func ObserveIngestDuration(start time.Time) {
	IngestDuration.Observe(time.Since(start).Seconds())
}

func IncTokenRefresh(result string) { TokenRefreshes.WithLabelValues(result).Inc() }
func IncPage(source string)         { PagesFetched.WithLabelValues(source).Inc() }
func IncIntent(kind string)         { Intents.WithLabelValues(kind).Inc() }
func IncOutcome(outcome string)     { Outcomes.WithLabelValues(outcome).Inc() }
func IncReply(result string)        { Replies.WithLabelValues(result).Inc() }
func IncCommandRun(cmd string)      { CommandRuns.WithLabelValues(cmd).Inc() }
func IncCommandError(cmd string)    { CommandErrors.WithLabelValues(cmd).Inc() }
