package services

import (
	"context"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
)

// Today is the calendar date of now in loc.
func Today(now Clock, loc *time.Location) training.Date {
	if now == nil {
		now = SystemClock
	}
	if loc == nil {
		loc = time.Local
	}
	return training.DateOf(now().In(loc))
}

// StreakFor computes the user's current streak ending on today.
func StreakFor(ctx context.Context, store storage.TrainingStore, userID int64, today training.Date) (int, error) {
	dates, err := store.SessionDates(ctx, userID)
	if err != nil {
		return 0, err
	}
	return training.Streak(dates, today), nil
}
