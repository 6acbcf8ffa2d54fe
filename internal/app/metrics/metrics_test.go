package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func scrape(t *testing.T) string {
	t.Helper()
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("scrape status = %d", rec.Code)
	}
	body, err := io.ReadAll(rec.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(body)
}

func TestHandlerExposesHTTPMetrics(t *testing.T) {
	done := RequestStarted()
	RecordHTTPRequest("get", "/api/users", http.StatusOK, 5*time.Millisecond)
	done()

	out := scrape(t)
	for _, want := range []string{
		`peed_http_requests_total{method="GET",path="/api/users",status="200"}`,
		`peed_http_inflight_requests 0`,
		`peed_http_request_duration_seconds_count{method="GET",path="/api/users"}`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}

func TestDomainCounters(t *testing.T) {
	RecordTraining("advanced", 300)
	RecordRegistration()
	RecordUnlocks(0)
	RecordUnlocks(2)
	RecordRefresh(0, true)

	out := scrape(t)
	for _, want := range []string{
		`peed_training_records_total{difficulty="advanced"}`,
		`peed_training_duration_seconds_total`,
		`peed_users_registrations_total`,
		`peed_achievements_unlocked_total`,
		`peed_achievements_refresh_runs_total{success="true"}`,
		`peed_achievements_refresh_duration_seconds_count`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("metrics output missing %q", want)
		}
	}
}
