package httpapi

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	app "github.com/PEED-Project/peed_backend/internal/app"
	"github.com/PEED-Project/peed_backend/internal/app/metrics"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/internal/middleware"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

// Version is reported by /health and /api/info.
const Version = "1.0.0"

// maxBodyBytes bounds request bodies; avatars are the largest payload.
const maxBodyBytes = 8 << 20

// Config carries the HTTP-level settings of the handler.
type Config struct {
	CORSOrigins  []string
	StaticDir    string
	AuthRequired bool
	RateLimitRPS float64
	RateBurst    int
	// Limiter overrides RateLimitRPS and RateBurst when set, letting the
	// caller run its cleanup loop.
	Limiter *middleware.RateLimiter
	// DatabaseKind is reported by the health and info endpoints.
	DatabaseKind string
}

type handler struct {
	app  *app.Application
	cfg  Config
	auth *middleware.AuthMiddleware
	log  *logger.Logger
	now  func() time.Time
}

// NewHandler returns an http.Handler exposing the PEED API, health, metrics
// and the static front-end.
func NewHandler(application *app.Application, cfg Config, log *logger.Logger) http.Handler {
	if log == nil {
		log = logger.NewDefault("http")
	}
	if cfg.DatabaseKind == "" {
		cfg.DatabaseKind = "Memory"
	}
	h := &handler{
		app:  application,
		cfg:  cfg,
		auth: middleware.NewAuthMiddleware(application.Tokens, cfg.AuthRequired, log),
		log:  log,
		now:  time.Now,
	}

	limiter := cfg.Limiter
	if limiter == nil {
		limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateBurst, log)
	}

	r := mux.NewRouter()
	r.Use(middleware.MetricsMiddleware(), h.auth.Handler, limiter.Handler)

	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/info", h.info).Methods(http.MethodGet)
	h.userRoutes(api)
	h.trainingRoutes(api.PathPrefix("/tigang").Subrouter())
	api.PathPrefix("/").HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "Not found")
	})

	r.PathPrefix("/").Handler(staticHandler(cfg.StaticDir))

	var out http.Handler = r
	out = middleware.NewCORSMiddleware(cfg.CORSOrigins).Handler(out)
	out = middleware.LoggingMiddleware(log)(out)
	out = middleware.RecoverMiddleware(log)(out)
	return out
}

// owner wraps a per-user route that requires the caller to own {user_id}.
func (h *handler) owner(next http.HandlerFunc) http.HandlerFunc {
	return h.auth.RequireOwner("user_id", next)
}

// pathUserID parses {user_id}. On failure it writes a 404 and returns false.
func pathUserID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["user_id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusNotFound, "User not found")
		return 0, false
	}
	return id, true
}

// queryInt parses an integer query parameter, returning def when absent or
// malformed.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return def
	}
	return v
}

// fail maps a service error onto a status code and writes it.
func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusBadRequest:
		var v *services.ValidationError
		if errors.As(err, &v) {
			writeError(w, status, v.Message)
			return
		}
		writeError(w, status, "Resource already exists")
	case http.StatusNotFound:
		writeError(w, status, "User not found")
	default:
		h.log.WithError(err).
			WithField("trace_id", middleware.TraceID(r.Context())).
			WithField("path", r.URL.Path).
			Error("request failed")
		writeError(w, status, "Internal server error")
	}
}

func statusFor(err error) int {
	switch {
	case services.IsValidation(err):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, storage.ErrConflict):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a JSON body. An empty body decodes to the zero value and
// reports false.
func decodeJSON(r *http.Request, dst interface{}) (bool, error) {
	defer r.Body.Close()
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeMessage(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"message": msg})
}
