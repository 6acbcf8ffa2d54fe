// Package seed bootstraps an empty database with demo accounts.
package seed

import (
	"context"
	"fmt"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/services/achievements"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

type demoUser struct {
	username string
	nickname string
	bio      string
	email    string
	records  []demoRecord
}

type demoRecord struct {
	daysAgo    int
	difficulty training.Difficulty
	sets       int
	reps       int
	duration   int
	contract   int
	relax      int
}

var demoUsers = []demoUser{
	{
		username: "demo_user",
		nickname: "PEED演示用户",
		bio:      "欢迎使用PEED健康训练系统！",
		email:    "demo@peed.com",
		records: []demoRecord{
			{daysAgo: 2, difficulty: training.DifficultyBeginner, sets: 2, reps: 16, duration: 160, contract: 5, relax: 5},
			{daysAgo: 1, difficulty: training.DifficultyIntermediate, sets: 3, reps: 36, duration: 576, contract: 8, relax: 8},
			{daysAgo: 0, difficulty: training.DifficultyBeginner, sets: 2, reps: 16, duration: 160, contract: 5, relax: 5},
		},
	},
	{
		username: "trainer_pro",
		nickname: "专业训练师",
		bio:      "健康生活从提肛训练开始",
		email:    "trainer@peed.com",
	},
}

// Seeder creates demo data.
type Seeder struct {
	store storage.Store
	log   *logger.Logger
	now   services.Clock
	loc   *time.Location
}

// New constructs a seeder.
func New(store storage.Store, log *logger.Logger) *Seeder {
	if log == nil {
		log = logger.NewDefault("seed")
	}
	return &Seeder{store: store, log: log, now: services.SystemClock, loc: time.Local}
}

// WithClock overrides the clock and the timezone that decides "today".
func (s *Seeder) WithClock(now services.Clock, loc *time.Location) {
	if now != nil {
		s.now = now
	}
	if loc != nil {
		s.loc = loc
	}
}

// DemoUsers creates the demo accounts when no user exists yet. Progress rows
// are created for the achievements already in the catalog, so the catalog
// should be seeded first. It reports whether anything was written.
func (s *Seeder) DemoUsers(ctx context.Context) (bool, error) {
	count, err := s.store.CountUsers(ctx)
	if err != nil {
		return false, fmt.Errorf("count users: %w", err)
	}
	if count > 0 {
		return false, nil
	}

	now := s.now()
	today := services.Today(func() time.Time { return now }, s.loc)
	err = s.store.WithTx(ctx, func(tx storage.Store) error {
		for _, d := range demoUsers {
			u, err := tx.CreateUser(ctx, user.User{
				Username:  d.username,
				Email:     user.Optional(d.email),
				Nickname:  user.Optional(d.nickname),
				Bio:       user.Optional(d.bio),
				CreatedAt: now.UTC(),
				UpdatedAt: now.UTC(),
			})
			if err != nil {
				return fmt.Errorf("create %s: %w", d.username, err)
			}
			if err := achievements.InitProgress(ctx, tx, u.ID); err != nil {
				return err
			}
			for _, r := range d.records {
				_, err := tx.CreateRecord(ctx, training.Record{
					UserID:        u.ID,
					Difficulty:    r.difficulty,
					SetsCompleted: r.sets,
					RepsCompleted: r.reps,
					TotalDuration: r.duration,
					ContractTime:  r.contract,
					RelaxTime:     r.relax,
					SessionDate:   today.AddDays(-r.daysAgo),
					CreatedAt:     now.UTC(),
				})
				if err != nil {
					return fmt.Errorf("create demo record for %s: %w", d.username, err)
				}
			}
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("seed demo users: %w", err)
	}
	s.log.WithField("users", len(demoUsers)).Info("demo users created")
	return true, nil
}
