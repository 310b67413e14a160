package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func TestMetricsExposure(t *testing.T) {
	IngestRuns.Inc()
	IngestErrors.Inc()
	IncTokenRefresh("ok")
	IncPage("search")
	IncIntent("vibe")
	IncOutcome("recorded")
	IncReply("sent")
	IncCommandRun("once")
	IncCommandError("once")
	ObserveIngestDuration(time.Now().Add(-1500 * time.Millisecond))

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	promhttp.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rec.Code)
	}
	body := rec.Body.String()
	for _, m := range []string{
		"reputest_ingest_runs_total",
		"reputest_ingest_errors_total",
		"reputest_ingest_duration_seconds",
		"reputest_token_refreshes_total",
		"reputest_pages_fetched_total",
		"reputest_intents_total",
		"reputest_outcomes_total",
		"reputest_replies_total",
		"reputest_command_runs_total",
		"reputest_command_errors_total",
	} {
		if !strings.Contains(body, m) {
			t.Fatalf("expected metric %s in body", m)
		}
	}
}
