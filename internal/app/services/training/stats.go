package training

import (
	"context"

	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/services"
)

// Stats summarises one user's training.
type Stats struct {
	TotalSessions        int                 `json:"total_sessions"`
	TotalDurationMinutes float64             `json:"total_duration_minutes"`
	StreakDays           int                 `json:"streak_days"`
	WeeklySessions       int                 `json:"weekly_sessions"`
	MonthlySessions      int                 `json:"monthly_sessions"`
	DifficultyBreakdown  []DifficultySummary `json:"difficulty_breakdown"`
	DailyStats           []DailySummary      `json:"daily_stats"`
}

// DifficultySummary aggregates the sessions of one difficulty.
type DifficultySummary struct {
	Difficulty       training.Difficulty `json:"difficulty"`
	SessionCount     int                 `json:"session_count"`
	TotalSets        int64               `json:"total_sets"`
	TotalReps        int64               `json:"total_reps"`
	TotalTimeMinutes float64             `json:"total_time_minutes"`
}

// DailySummary aggregates the sessions of one day.
type DailySummary struct {
	Date             training.Date `json:"date"`
	SessionCount     int           `json:"session_count"`
	TotalTimeMinutes float64       `json:"total_time_minutes"`
}

// Stats computes totals, streak, week and month counts, a per-difficulty
// breakdown and the last 30 days of activity.
func (s *Service) Stats(ctx context.Context, userID int64) (Stats, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return Stats{}, err
	}
	today := s.today()

	all, err := s.store.Totals(ctx, userID, training.Date{})
	if err != nil {
		return Stats{}, err
	}
	week, err := s.store.Totals(ctx, userID, today.WeekStart())
	if err != nil {
		return Stats{}, err
	}
	month, err := s.store.Totals(ctx, userID, today.MonthStart())
	if err != nil {
		return Stats{}, err
	}
	streak, err := services.StreakFor(ctx, s.store, userID, today)
	if err != nil {
		return Stats{}, err
	}

	byDifficulty, err := s.store.DifficultyTotals(ctx, userID)
	if err != nil {
		return Stats{}, err
	}
	breakdown := make([]DifficultySummary, 0, len(byDifficulty))
	for _, d := range byDifficulty {
		breakdown = append(breakdown, DifficultySummary{
			Difficulty:       d.Difficulty,
			SessionCount:     d.Sessions,
			TotalSets:        d.TotalSets,
			TotalReps:        d.TotalReps,
			TotalTimeMinutes: services.Minutes(d.TotalDuration),
		})
	}

	days, err := s.store.DailyTotals(ctx, userID, today.AddDays(-dailyStatsDays))
	if err != nil {
		return Stats{}, err
	}
	daily := make([]DailySummary, 0, len(days))
	for _, d := range days {
		daily = append(daily, DailySummary{
			Date:             d.Date,
			SessionCount:     d.Sessions,
			TotalTimeMinutes: services.Minutes(d.TotalDuration),
		})
	}

	return Stats{
		TotalSessions:        all.Sessions,
		TotalDurationMinutes: services.Minutes(all.TotalDuration),
		StreakDays:           streak,
		WeeklySessions:       week.Sessions,
		MonthlySessions:      month.Sessions,
		DifficultyBreakdown:  breakdown,
		DailyStats:           daily,
	}, nil
}
