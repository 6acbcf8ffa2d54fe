package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/PEED-Project/peed_backend/internal/app/services/stats"
	"github.com/PEED-Project/peed_backend/internal/app/services/training"
)

func (h *handler) trainingRoutes(r *mux.Router) {
	r.HandleFunc("/training/record", h.recordTraining).Methods(http.MethodPost)
	r.HandleFunc("/training/history/{user_id:[0-9]+}", h.trainingHistory).Methods(http.MethodGet)
	r.HandleFunc("/training/stats/{user_id:[0-9]+}", h.trainingStats).Methods(http.MethodGet)
	r.HandleFunc("/training/leaderboard", h.leaderboard).Methods(http.MethodGet)
	r.HandleFunc("/training/config", h.trainingConfig).Methods(http.MethodGet)

	r.HandleFunc("/achievements", h.achievements).Methods(http.MethodGet)
	r.HandleFunc("/achievements/{user_id:[0-9]+}", h.userAchievements).Methods(http.MethodGet)
	r.HandleFunc("/achievements/check/{user_id:[0-9]+}", h.owner(h.checkAchievements)).Methods(http.MethodPost)

	r.HandleFunc("/stats/global", h.globalStats).Methods(http.MethodGet)
	r.HandleFunc("/init-achievements", h.initAchievements).Methods(http.MethodPost)
}

func (h *handler) recordTraining(w http.ResponseWriter, r *http.Request) {
	var body struct {
		UserID        *int64  `json:"user_id"`
		Difficulty    *string `json:"difficulty"`
		SetsCompleted *int    `json:"sets_completed"`
		RepsCompleted *int    `json:"reps_completed"`
		TotalDuration *int    `json:"total_duration"`
		ContractTime  *int    `json:"contract_time"`
		RelaxTime     *int    `json:"relax_time"`
	}
	if _, err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing required fields")
		return
	}
	if body.UserID != nil {
		switch h.auth.Authorize(r, *body.UserID) {
		case http.StatusUnauthorized:
			writeError(w, http.StatusUnauthorized, "Authentication required")
			return
		case http.StatusForbidden:
			writeError(w, http.StatusForbidden, "Forbidden")
			return
		}
	}

	rec, err := h.app.Training.Record(r.Context(), training.RecordInput{
		UserID:        body.UserID,
		Difficulty:    body.Difficulty,
		SetsCompleted: body.SetsCompleted,
		RepsCompleted: body.RepsCompleted,
		TotalDuration: body.TotalDuration,
		ContractTime:  body.ContractTime,
		RelaxTime:     body.RelaxTime,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newRecordView(rec))
}

func (h *handler) trainingHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	page, err := h.app.Training.History(r.Context(), training.HistoryQuery{
		UserID:     id,
		Page:       queryInt(r, "page", 1),
		PerPage:    queryInt(r, "per_page", 20),
		StartDate:  q.Get("start_date"),
		EndDate:    q.Get("end_date"),
		Difficulty: q.Get("difficulty"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"training_records": newRecordViews(page.Records),
		"total":            page.Total,
		"page":             page.Page,
		"per_page":         page.PerPage,
		"pages":            page.Pages,
	})
}

func (h *handler) trainingStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	s, err := h.app.Training.Stats(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (h *handler) leaderboard(w http.ResponseWriter, r *http.Request) {
	period := r.URL.Query().Get("period")
	if period == "" {
		period = stats.PeriodWeek
	}
	board, err := h.app.Stats.Leaderboard(r.Context(), period, queryInt(r, "limit", 10))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, board)
}

func (h *handler) trainingConfig(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, h.app.Training.Presets())
}

func (h *handler) achievements(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Achievements.Catalog(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, achievementList(list))
}

func (h *handler) userAchievements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	progress, err := h.app.Achievements.ForUser(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newProgressViews(progress))
}

func (h *handler) checkAchievements(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if _, err := h.app.Users.Get(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	unlocked, err := h.app.Achievements.Recompute(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	unlocked = achievementList(unlocked)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":              "Achievements updated",
		"updated_count":        len(unlocked),
		"updated_achievements": unlocked,
	})
}

func (h *handler) globalStats(w http.ResponseWriter, r *http.Request) {
	g, err := h.app.Stats.Global(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, g)
}

func (h *handler) initAchievements(w http.ResponseWriter, r *http.Request) {
	if _, err := h.app.Achievements.Seed(r.Context()); err != nil {
		h.log.WithError(err).Error("initialize achievements")
		writeError(w, http.StatusInternalServerError, "Failed to initialize achievements")
		return
	}
	writeMessage(w, http.StatusOK, "Achievements initialized successfully")
}
