package achievements

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/achievement"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/metrics"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

// Service manages the achievement catalog and per-user progress.
type Service struct {
	store storage.Store
	log   *logger.Logger
	now   services.Clock
	loc   *time.Location
}

// New constructs an achievement service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("achievements")
	}
	return &Service{store: store, log: log, now: services.SystemClock, loc: time.Local}
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

// Catalog lists every achievement.
func (s *Service) Catalog(ctx context.Context) ([]achievement.Achievement, error) {
	return s.store.ListAchievements(ctx)
}

// Seed inserts the built-in catalog entries that are missing and gives every
// existing user a progress row for each achievement. It returns the number of
// achievements created.
func (s *Service) Seed(ctx context.Context) (int, error) {
	created := 0
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		created = 0
		for _, a := range achievement.Catalog() {
			_, err := tx.GetAchievementByName(ctx, a.Name)
			if err == nil {
				continue
			}
			if !errors.Is(err, storage.ErrNotFound) {
				return err
			}
			if _, err := tx.CreateAchievement(ctx, a); err != nil {
				return err
			}
			created++
		}

		users, err := tx.ListUsers(ctx)
		if err != nil {
			return err
		}
		for _, u := range users {
			if err := InitProgress(ctx, tx, u.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("seed achievements: %w", err)
	}
	if created > 0 {
		s.log.WithField("created", created).Info("achievement catalog seeded")
	}
	return created, nil
}

// InitProgress creates a zeroed progress row for every achievement the user
// does not track yet.
func InitProgress(ctx context.Context, store storage.AchievementStore, userID int64) error {
	catalog, err := store.ListAchievements(ctx)
	if err != nil {
		return err
	}
	existing, err := store.ListProgress(ctx, userID)
	if err != nil {
		return err
	}
	tracked := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		tracked[p.AchievementID] = struct{}{}
	}

	for _, a := range catalog {
		if _, ok := tracked[a.ID]; ok {
			continue
		}
		if _, err := store.CreateProgress(ctx, achievement.Progress{UserID: userID, AchievementID: a.ID}); err != nil {
			return fmt.Errorf("init progress of user %d: %w", userID, err)
		}
	}
	return nil
}

// ForUser returns the user's progress rows with their achievements, unlocked
// ones first.
func (s *Service) ForUser(ctx context.Context, userID int64) ([]achievement.Progress, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, err
	}
	return s.store.ListProgress(ctx, userID)
}

// Recompute re-evaluates every achievement of the user in its own transaction
// and returns the achievements unlocked by this call.
func (s *Service) Recompute(ctx context.Context, userID int64) ([]achievement.Achievement, error) {
	var unlocked []achievement.Achievement
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		unlocked, err = s.RecomputeIn(ctx, tx, userID)
		return err
	})
	if err != nil {
		return nil, err
	}
	metrics.RecordUnlocks(len(unlocked))
	return unlocked, nil
}

// RecomputeIn is Recompute running inside the caller's transaction.
func (s *Service) RecomputeIn(ctx context.Context, tx storage.Store, userID int64) ([]achievement.Achievement, error) {
	if _, err := tx.GetUser(ctx, userID); err != nil {
		return nil, err
	}

	snap, err := s.snapshot(ctx, tx, userID)
	if err != nil {
		return nil, fmt.Errorf("achievement snapshot of user %d: %w", userID, err)
	}

	rows, err := tx.ListProgress(ctx, userID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	unlocked := make([]achievement.Achievement, 0)
	for i := range rows {
		row := &rows[i]
		if row.Achievement == nil {
			continue
		}
		changed, justUnlocked := achievement.Evaluate(row, *row.Achievement, snap, now)
		if !changed {
			continue
		}
		if _, err := tx.UpdateProgress(ctx, *row); err != nil {
			return nil, err
		}
		if justUnlocked {
			unlocked = append(unlocked, *row.Achievement)
		}
	}

	if len(unlocked) > 0 {
		s.log.WithField("user_id", userID).
			WithField("unlocked", len(unlocked)).
			Info("achievements unlocked")
	}
	return unlocked, nil
}

func (s *Service) snapshot(ctx context.Context, store storage.Store, userID int64) (achievement.Snapshot, error) {
	totals, err := store.Totals(ctx, userID, training.Date{})
	if err != nil {
		return achievement.Snapshot{}, err
	}
	streak, err := services.StreakFor(ctx, store, userID, services.Today(s.now, s.loc))
	if err != nil {
		return achievement.Snapshot{}, err
	}
	return achievement.Snapshot{
		Sessions:      totals.Sessions,
		TotalDuration: totals.TotalDuration,
		StreakDays:    streak,
	}, nil
}

// RefreshAll recomputes achievements for every user and returns how many
// achievements were unlocked. Failures for one user do not stop the others.
func (s *Service) RefreshAll(ctx context.Context) (int, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		unlocked, err := s.Recompute(ctx, u.ID)
		if err != nil {
			s.log.WithError(err).WithField("user_id", u.ID).Warn("achievement refresh failed")
			continue
		}
		total += len(unlocked)
	}
	return total, nil
}
