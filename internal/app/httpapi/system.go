package httpapi

import (
	"context"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
)

const healthTimeout = 5 * time.Second

type healthStats struct {
	TotalUsers           int `json:"total_users"`
	TotalTrainingRecords int `json:"total_training_records"`
	TotalAchievements    int `json:"total_achievements"`
}

func (h *handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	timestamp := h.now().UTC().Format("2006-01-02T15:04:05.000000")
	stats, err := h.healthStats(ctx)
	if err != nil {
		h.log.WithError(err).Warn("health check failed")
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"status":    "unhealthy",
			"service":   "PEED Backend",
			"database":  h.cfg.DatabaseKind + " - connection failed",
			"error":     err.Error(),
			"timestamp": timestamp,
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "PEED Backend",
		"version":   Version,
		"database":  h.cfg.DatabaseKind + " - connected",
		"stats":     stats,
		"timestamp": timestamp,
	})
}

func (h *handler) healthStats(ctx context.Context) (healthStats, error) {
	store := h.app.Store
	if err := store.Ping(ctx); err != nil {
		return healthStats{}, err
	}
	users, err := store.CountUsers(ctx)
	if err != nil {
		return healthStats{}, err
	}
	totals, err := store.Totals(ctx, 0, training.Date{})
	if err != nil {
		return healthStats{}, err
	}
	achievements, err := store.CountAchievements(ctx)
	if err != nil {
		return healthStats{}, err
	}
	return healthStats{
		TotalUsers:           users,
		TotalTrainingRecords: totals.Sessions,
		TotalAchievements:    achievements,
	}, nil
}

func (h *handler) info(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"service":     "PEED API",
		"version":     Version,
		"description": "PEED健康训练系统API",
		"database":    h.cfg.DatabaseKind,
		"endpoints": map[string]string{
			"auth":         "/api/auth/*",
			"profile":      "/api/profile/*",
			"wallet":       "/api/wallet/*",
			"stats":        "/api/stats/*",
			"training":     "/api/tigang/training/*",
			"achievements": "/api/tigang/achievements/*",
			"leaderboard":  "/api/tigang/training/leaderboard",
		},
	})
}

// staticHandler serves files from dir, falling back to index.html so the
// single-page front-end can own its routes.
func staticHandler(dir string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if dir == "" {
			http.Error(w, "Static folder not configured", http.StatusNotFound)
			return
		}
		name := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if name != "" && serveFile(w, r, filepath.Join(dir, filepath.FromSlash(name))) {
			return
		}
		if !serveFile(w, r, filepath.Join(dir, "index.html")) {
			http.Error(w, "index.html not found", http.StatusNotFound)
		}
	})
}

func serveFile(w http.ResponseWriter, r *http.Request, name string) bool {
	f, err := os.Open(name)
	if err != nil {
		return false
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
