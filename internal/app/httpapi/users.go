package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
	"github.com/PEED-Project/peed_backend/internal/app/services/users"
)

const recentTrainingLimit = 10

func (h *handler) userRoutes(r *mux.Router) {
	r.HandleFunc("/auth/register", h.register).Methods(http.MethodPost)
	r.HandleFunc("/auth/login", h.login).Methods(http.MethodPost)

	r.HandleFunc("/profile/{user_id:[0-9]+}", h.profile).Methods(http.MethodGet)
	r.HandleFunc("/profile/{user_id:[0-9]+}", h.owner(h.updateProfile)).Methods(http.MethodPut)
	r.HandleFunc("/profile/{user_id:[0-9]+}/avatar", h.owner(h.uploadAvatar)).Methods(http.MethodPost)

	r.HandleFunc("/wallet/{user_id:[0-9]+}", h.owner(h.connectWallet)).Methods(http.MethodPost)
	r.HandleFunc("/wallet/{user_id:[0-9]+}", h.owner(h.disconnectWallet)).Methods(http.MethodDelete)

	r.HandleFunc("/stats/{user_id:[0-9]+}", h.userStats).Methods(http.MethodGet)
	r.HandleFunc("/users", h.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{user_id:[0-9]+}", h.owner(h.deleteUser)).Methods(http.MethodDelete)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Nickname string `json:"nickname"`
		Bio      string `json:"bio"`
	}
	if _, err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing username")
		return
	}
	u, err := h.app.Users.Register(r.Context(), users.RegisterInput{
		Username: body.Username,
		Email:    body.Email,
		Nickname: body.Nickname,
		Bio:      body.Bio,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, newUserView(u))
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
	}
	if _, err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing username")
		return
	}
	u, token, err := h.app.Users.Login(r.Context(), body.Username)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		ownerView
		Token string `json:"token,omitempty"`
	}{ownerView: newOwnerView(u), Token: token})
}

func (h *handler) profile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	ctx := r.Context()
	u, err := h.app.Users.Get(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	stats, err := h.app.Stats.UserStats(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	recent, err := h.app.Training.Recent(ctx, id, recentTrainingLimit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	progress, err := h.app.Achievements.ForUser(ctx, id)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, struct {
		ownerView
		Stats          interface{}    `json:"stats"`
		RecentTraining []recordView   `json:"recent_training"`
		Achievements   []progressView `json:"achievements"`
	}{
		ownerView:      newOwnerView(u),
		Stats:          stats,
		RecentTraining: newRecordViews(recent),
		Achievements:   newProgressViews(progress),
	})
}

func (h *handler) updateProfile(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if _, err := h.app.Users.Get(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}

	// A key mapped to null clears the field; an absent key leaves it alone.
	var body map[string]*string
	present, err := decodeJSON(r, &body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid JSON body")
		return
	}
	if !present || len(body) == 0 {
		writeError(w, http.StatusBadRequest, "No data provided")
		return
	}

	field := func(name string) *string {
		v, ok := body[name]
		if !ok {
			return nil
		}
		if v == nil {
			empty := ""
			return &empty
		}
		return v
	}
	patch := user.Patch{
		Username:  field("username"),
		Nickname:  field("nickname"),
		Bio:       field("bio"),
		AvatarURL: field("avatar_url"),
		Email:     field("email"),
	}

	u, err := h.app.Users.UpdateProfile(r.Context(), id, patch)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserView(u))
}

func (h *handler) uploadAvatar(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	var body struct {
		AvatarData string `json:"avatar_data"`
	}
	if _, err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing avatar data")
		return
	}
	u, err := h.app.Users.UploadAvatar(r.Context(), id, body.AvatarData)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{"avatar_url": u.AvatarURL})
}

func (h *handler) connectWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	var body struct {
		WalletAddress string `json:"wallet_address"`
		WalletType    string `json:"wallet_type"`
	}
	if _, err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "Missing wallet information")
		return
	}
	u, err := h.app.Users.ConnectWallet(r.Context(), id, body.WalletAddress, body.WalletType)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]*string{
		"wallet_address": u.WalletAddress,
		"wallet_type":    u.WalletType,
	})
}

func (h *handler) disconnectWallet(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if _, err := h.app.Users.DisconnectWallet(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "Wallet disconnected successfully")
}

func (h *handler) userStats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	stats, err := h.app.Stats.UserStats(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (h *handler) listUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.app.Users.List(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, newUserViews(list))
}

func (h *handler) deleteUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUserID(w, r)
	if !ok {
		return
	}
	if err := h.app.Users.Delete(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	writeMessage(w, http.StatusOK, "User deleted successfully")
}
