package middleware

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/PEED-Project/peed_backend/internal/app/auth"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

func ok(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusOK) }

func TestCORSMiddleware(t *testing.T) {
	m := NewCORSMiddleware([]string{"http://localhost:3000", "http://localhost:3001/"})
	h := m.Handler(http.HandlerFunc(ok))

	req := httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "http://localhost:3001")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3001" {
		t.Fatalf("allow origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodGet, "/api/users", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("unexpected allow origin %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/users", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("preflight status = %d", rec.Code)
	}
}

func TestCORSMiddleware_AllowAll(t *testing.T) {
	h := NewCORSMiddleware([]string{"*"}).Handler(http.HandlerFunc(ok))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://app.example")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example" {
		t.Fatalf("allow origin = %q", got)
	}
}

func TestRateLimiter(t *testing.T) {
	rl := NewRateLimiter(1, 2, logger.NewNop())
	h := rl.Handler(http.HandlerFunc(ok))

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Fatalf("unexpected codes %v", codes)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.2:5555"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("second client throttled: %d", rec.Code)
	}
}

func TestRateLimiter_KeysByUser(t *testing.T) {
	tokens := auth.NewTokens("secret", time.Hour)
	a := NewAuthMiddleware(tokens, false, logger.NewNop())
	rl := NewRateLimiter(1, 1, logger.NewNop())
	h := a.Handler(rl.Handler(http.HandlerFunc(ok)))

	send := func(userID int64) int {
		token, _ := tokens.Issue(userID, "u")
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = "10.0.0.1:5555"
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec.Code
	}
	if send(1) != http.StatusOK || send(2) != http.StatusOK {
		t.Fatalf("distinct users behind one address must not share a limiter")
	}
	if send(1) != http.StatusTooManyRequests {
		t.Fatalf("expected user 1 to be throttled")
	}
}

func TestRateLimiter_DisabledAndCleanup(t *testing.T) {
	next := http.HandlerFunc(ok)
	rl := NewRateLimiter(0, 0, nil)
	rl.Handler(next).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	if len(rl.limiters) != 0 {
		t.Fatalf("disabled limiter must not track clients")
	}

	now := time.Date(2024, 5, 10, 0, 0, 0, 0, time.UTC)
	rl = NewRateLimiter(5, 5, nil)
	rl.now = func() time.Time { return now }
	rl.getLimiter("old")
	now = now.Add(time.Hour)
	rl.getLimiter("fresh")
	if removed := rl.Cleanup(); removed != 1 {
		t.Fatalf("removed = %d, want 1", removed)
	}
	if _, ok := rl.limiters["fresh"]; !ok {
		t.Fatalf("fresh limiter was removed")
	}
}

func TestLoggingMiddlewareTraceID(t *testing.T) {
	var buf bytes.Buffer
	log := logger.NewNop()
	log.SetOutput(&buf)
	log.SetLevel(logrus.DebugLevel)

	var seen string
	r := mux.NewRouter()
	r.Use(LoggingMiddleware(log))
	r.HandleFunc("/x", func(w http.ResponseWriter, r *http.Request) {
		seen = TraceID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/x", nil)
	req.Header.Set(TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	if seen != "trace-123" || rec.Header().Get(TraceHeader) != "trace-123" {
		t.Fatalf("trace id not propagated: ctx=%q header=%q", seen, rec.Header().Get(TraceHeader))
	}
	if !strings.Contains(buf.String(), "trace-123") {
		t.Fatalf("request log missing trace id: %s", buf.String())
	}

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/x", nil))
	if len(rec.Header().Get(TraceHeader)) != 36 {
		t.Fatalf("expected generated uuid trace id, got %q", rec.Header().Get(TraceHeader))
	}
}

func TestRecoverMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.Use(RecoverMiddleware(logger.NewNop()))
	r.HandleFunc("/boom", func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Internal server error") {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestMetricsMiddleware(t *testing.T) {
	r := mux.NewRouter()
	r.Use(MetricsMiddleware())
	r.HandleFunc("/users/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/users/5", nil))
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d", rec.Code)
	}
}
