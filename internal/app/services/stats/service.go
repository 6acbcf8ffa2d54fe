// Package stats computes per-user summaries, leaderboards and global totals.
package stats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/cache"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

const (
	// WeeklyGoal is the number of sessions a user is encouraged to do per week.
	WeeklyGoal = 21

	PeriodWeek  = "week"
	PeriodMonth = "month"

	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
	defaultTTL              = time.Minute
)

// UserStats is the summary shown on a user's profile.
type UserStats struct {
	TotalExercises      int                            `json:"total_exercises"`
	CurrentStreak       int                            `json:"current_streak"`
	TotalTimeHours      float64                        `json:"total_time_hours"`
	WeeklyProgress      int                            `json:"weekly_progress"`
	WeeklyGoal          int                            `json:"weekly_goal"`
	DifficultyBreakdown map[training.Difficulty]Bucket `json:"difficulty_breakdown"`
	LastTraining        *training.Date                 `json:"last_training"`
}

// Bucket counts the sessions of one difficulty. TotalDuration is in seconds.
type Bucket struct {
	Count         int   `json:"count"`
	TotalDuration int64 `json:"total_duration"`
}

// LeaderboardEntry is one ranked user.
type LeaderboardEntry struct {
	Rank             int     `json:"rank"`
	UserID           int64   `json:"user_id"`
	Username         string  `json:"username"`
	Nickname         *string `json:"nickname"`
	AvatarURL        *string `json:"avatar_url"`
	SessionCount     int     `json:"session_count"`
	TotalTimeMinutes float64 `json:"total_time_minutes"`
	TotalSets        int64   `json:"total_sets"`
	TotalReps        int64   `json:"total_reps"`
}

// Leaderboard is a ranking for a period.
type Leaderboard struct {
	Period  string             `json:"period"`
	Entries []LeaderboardEntry `json:"leaderboard"`
}

// Global summarises activity across all users.
type Global struct {
	TotalUsers            int     `json:"total_users"`
	TotalTrainingSessions int     `json:"total_training_sessions"`
	TotalDurationHours    float64 `json:"total_duration_hours"`
	TodayActiveUsers      int     `json:"today_active_users"`
	WeeklySessions        int     `json:"weekly_sessions"`
}

// Service answers statistics queries. Leaderboard and global results are
// cached until the TTL passes or a write invalidates them.
type Service struct {
	store storage.Store
	cache cache.Cache
	ttl   time.Duration
	log   *logger.Logger
	now   services.Clock
	loc   *time.Location
}

// New constructs a stats service. A nil cache disables caching.
func New(store storage.Store, c cache.Cache, ttl time.Duration, log *logger.Logger) *Service {
	if c == nil {
		c = cache.Nop{}
	}
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if log == nil {
		log = logger.NewDefault("stats")
	}
	return &Service{store: store, cache: c, ttl: ttl, log: log, now: services.SystemClock, loc: time.Local}
}

// WithClock overrides the clock and the timezone that decides "today".
func (s *Service) WithClock(now services.Clock, loc *time.Location) {
	if now != nil {
		s.now = now
	}
	if loc != nil {
		s.loc = loc
	}
}

// UserStats summarises one user's training.
func (s *Service) UserStats(ctx context.Context, userID int64) (UserStats, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return UserStats{}, err
	}
	today := services.Today(s.now, s.loc)

	all, err := s.store.Totals(ctx, userID, training.Date{})
	if err != nil {
		return UserStats{}, err
	}
	week, err := s.store.Totals(ctx, userID, today.WeekStart())
	if err != nil {
		return UserStats{}, err
	}
	streak, err := services.StreakFor(ctx, s.store, userID, today)
	if err != nil {
		return UserStats{}, err
	}
	byDifficulty, err := s.store.DifficultyTotals(ctx, userID)
	if err != nil {
		return UserStats{}, err
	}
	breakdown := make(map[training.Difficulty]Bucket, len(byDifficulty))
	for _, d := range byDifficulty {
		breakdown[d.Difficulty] = Bucket{Count: d.Sessions, TotalDuration: d.TotalDuration}
	}

	var last *training.Date
	latest, err := s.store.LatestRecord(ctx, userID)
	switch {
	case err == nil:
		last = &latest.SessionDate
	case !errors.Is(err, storage.ErrNotFound):
		return UserStats{}, err
	}

	return UserStats{
		TotalExercises:      all.Sessions,
		CurrentStreak:       streak,
		TotalTimeHours:      services.Hours(all.TotalDuration),
		WeeklyProgress:      week.Sessions,
		WeeklyGoal:          WeeklyGoal,
		DifficultyBreakdown: breakdown,
		LastTraining:        last,
	}, nil
}

// Leaderboard ranks users by sessions within period. "week" starts on Monday,
// "month" on the 1st, and any other value covers all time.
func (s *Service) Leaderboard(ctx context.Context, period string, limit int) (Leaderboard, error) {
	if limit < 1 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	today := services.Today(s.now, s.loc)
	var since training.Date
	switch period {
	case PeriodWeek:
		since = today.WeekStart()
	case PeriodMonth:
		since = today.MonthStart()
	}

	key := fmt.Sprintf("%sleaderboard:%s:%s:%d", cache.StatsPrefix, period, since, limit)
	var board Leaderboard
	if s.cached(ctx, key, &board) {
		return board, nil
	}

	rows, err := s.store.Leaderboard(ctx, since, limit)
	if err != nil {
		return Leaderboard{}, err
	}
	board = Leaderboard{Period: period, Entries: make([]LeaderboardEntry, 0, len(rows))}
	for i, row := range rows {
		board.Entries = append(board.Entries, LeaderboardEntry{
			Rank:             i + 1,
			UserID:           row.UserID,
			Username:         row.Username,
			Nickname:         row.Nickname,
			AvatarURL:        row.AvatarURL,
			SessionCount:     row.Sessions,
			TotalTimeMinutes: services.Minutes(row.TotalDuration),
			TotalSets:        row.TotalSets,
			TotalReps:        row.TotalReps,
		})
	}
	s.remember(ctx, key, board)
	return board, nil
}

// Global summarises activity across every user.
func (s *Service) Global(ctx context.Context) (Global, error) {
	today := services.Today(s.now, s.loc)
	key := fmt.Sprintf("%sglobal:%s", cache.StatsPrefix, today)
	var g Global
	if s.cached(ctx, key, &g) {
		return g, nil
	}

	users, err := s.store.CountUsers(ctx)
	if err != nil {
		return Global{}, err
	}
	all, err := s.store.Totals(ctx, 0, training.Date{})
	if err != nil {
		return Global{}, err
	}
	active, err := s.store.CountActiveUsers(ctx, today)
	if err != nil {
		return Global{}, err
	}
	week, err := s.store.Totals(ctx, 0, today.WeekStart())
	if err != nil {
		return Global{}, err
	}

	g = Global{
		TotalUsers:            users,
		TotalTrainingSessions: all.Sessions,
		TotalDurationHours:    services.Hours(all.TotalDuration),
		TodayActiveUsers:      active,
		WeeklySessions:        week.Sessions,
	}
	s.remember(ctx, key, g)
	return g, nil
}

// cached loads key into dest. Cache failures are logged and treated as misses.
func (s *Service) cached(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.WithError(err).WithField("key", key).Warn("stats cache read failed")
		return false
	}
	return hit
}

func (s *Service) remember(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.ttl); err != nil {
		s.log.WithError(err).WithField("key", key).Warn("stats cache write failed")
	}
}
