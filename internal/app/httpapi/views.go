package httpapi

import (
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/achievement"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
)

type userView struct {
	ID        int64      `json:"id"`
	Username  string     `json:"username"`
	Email     *string    `json:"email"`
	Nickname  *string    `json:"nickname"`
	Bio       *string    `json:"bio"`
	AvatarURL *string    `json:"avatar_url"`
	CreatedAt time.Time  `json:"created_at"`
	UpdatedAt time.Time  `json:"updated_at"`
	LastLogin *time.Time `json:"last_login"`
}

// ownerView is the user as seen by the account owner, wallet included.
type ownerView struct {
	userView
	WalletAddress *string `json:"wallet_address"`
	WalletType    *string `json:"wallet_type"`
}

func newUserView(u user.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		Nickname:  u.Nickname,
		Bio:       u.Bio,
		AvatarURL: u.AvatarURL,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
		LastLogin: u.LastLogin,
	}
}

func newOwnerView(u user.User) ownerView {
	return ownerView{userView: newUserView(u), WalletAddress: u.WalletAddress, WalletType: u.WalletType}
}

func newUserViews(list []user.User) []userView {
	out := make([]userView, 0, len(list))
	for _, u := range list {
		out = append(out, newUserView(u))
	}
	return out
}

type recordView struct {
	ID            int64               `json:"id"`
	UserID        int64               `json:"user_id"`
	Difficulty    training.Difficulty `json:"difficulty"`
	SetsCompleted int                 `json:"sets_completed"`
	RepsCompleted int                 `json:"reps_completed"`
	TotalDuration int                 `json:"total_duration"`
	ContractTime  int                 `json:"contract_time"`
	RelaxTime     int                 `json:"relax_time"`
	SessionDate   training.Date       `json:"session_date"`
	CreatedAt     time.Time           `json:"created_at"`
}

func newRecordView(rec training.Record) recordView {
	return recordView{
		ID:            rec.ID,
		UserID:        rec.UserID,
		Difficulty:    rec.Difficulty,
		SetsCompleted: rec.SetsCompleted,
		RepsCompleted: rec.RepsCompleted,
		TotalDuration: rec.TotalDuration,
		ContractTime:  rec.ContractTime,
		RelaxTime:     rec.RelaxTime,
		SessionDate:   rec.SessionDate,
		CreatedAt:     rec.CreatedAt,
	}
}

func newRecordViews(list []training.Record) []recordView {
	out := make([]recordView, 0, len(list))
	for _, rec := range list {
		out = append(out, newRecordView(rec))
	}
	return out
}

type progressView struct {
	ID            int64                    `json:"id"`
	UserID        int64                    `json:"user_id"`
	AchievementID int64                    `json:"achievement_id"`
	Progress      int                      `json:"progress"`
	Unlocked      bool                     `json:"unlocked"`
	UnlockedAt    *time.Time               `json:"unlocked_at"`
	Achievement   *achievement.Achievement `json:"achievement"`
}

func newProgressViews(list []achievement.Progress) []progressView {
	out := make([]progressView, 0, len(list))
	for _, p := range list {
		out = append(out, progressView{
			ID:            p.ID,
			UserID:        p.UserID,
			AchievementID: p.AchievementID,
			Progress:      p.Progress,
			Unlocked:      p.Unlocked,
			UnlockedAt:    p.UnlockedAt,
			Achievement:   p.Achievement,
		})
	}
	return out
}

func achievementList(list []achievement.Achievement) []achievement.Achievement {
	if list == nil {
		return []achievement.Achievement{}
	}
	return list
}
