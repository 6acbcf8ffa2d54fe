package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/PEED-Project/peed_backend/internal/app/domain/achievement"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
)

var (
	// ErrNotFound is returned when a looked-up row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a write violates a uniqueness constraint.
	ErrConflict = errors.New("conflict")

	// Conflicts on a specific user column. Each one matches ErrConflict.
	ErrUsernameTaken = fmt.Errorf("username %w", ErrConflict)
	ErrEmailTaken    = fmt.Errorf("email %w", ErrConflict)
	ErrWalletTaken   = fmt.Errorf("wallet %w", ErrConflict)
)

// UserStore persists user accounts.
type UserStore interface {
	CreateUser(ctx context.Context, u user.User) (user.User, error)
	UpdateUser(ctx context.Context, u user.User) (user.User, error)
	GetUser(ctx context.Context, id int64) (user.User, error)
	GetUserByUsername(ctx context.Context, username string) (user.User, error)
	GetUserByEmail(ctx context.Context, email string) (user.User, error)
	GetUserByWallet(ctx context.Context, address string) (user.User, error)
	ListUsers(ctx context.Context) ([]user.User, error)
	CountUsers(ctx context.Context) (int, error)
	// DeleteUser removes the user together with its records and progress.
	DeleteUser(ctx context.Context, id int64) error
}

// TrainingStore persists training records and answers aggregate queries.
type TrainingStore interface {
	CreateRecord(ctx context.Context, rec training.Record) (training.Record, error)
	// ListRecords returns one page of matching records, newest first, and the
	// total number of matches.
	ListRecords(ctx context.Context, filter training.Filter) ([]training.Record, int, error)
	LatestRecord(ctx context.Context, userID int64) (training.Record, error)
	// SessionDates returns the distinct session dates of a user, newest first.
	SessionDates(ctx context.Context, userID int64) ([]training.Date, error)
	// Totals aggregates records on or after since. userID 0 means all users,
	// a zero since means all time.
	Totals(ctx context.Context, userID int64, since training.Date) (training.Totals, error)
	DifficultyTotals(ctx context.Context, userID int64) ([]training.DifficultyTotals, error)
	// DailyTotals groups a user's records on or after since by day, ascending.
	DailyTotals(ctx context.Context, userID int64, since training.Date) ([]training.DailyTotals, error)
	// Leaderboard ranks users with records on or after since by session count.
	Leaderboard(ctx context.Context, since training.Date, limit int) ([]training.LeaderboardRow, error)
	CountActiveUsers(ctx context.Context, day training.Date) (int, error)
}

// AchievementStore persists the catalog and per-user progress.
type AchievementStore interface {
	CreateAchievement(ctx context.Context, a achievement.Achievement) (achievement.Achievement, error)
	GetAchievementByName(ctx context.Context, name string) (achievement.Achievement, error)
	ListAchievements(ctx context.Context) ([]achievement.Achievement, error)
	CountAchievements(ctx context.Context) (int, error)

	CreateProgress(ctx context.Context, p achievement.Progress) (achievement.Progress, error)
	UpdateProgress(ctx context.Context, p achievement.Progress) (achievement.Progress, error)
	// ListProgress returns a user's progress rows with Achievement populated,
	// unlocked first, then by target value.
	ListProgress(ctx context.Context, userID int64) ([]achievement.Progress, error)
}

// Store bundles every repository and transactional execution.
type Store interface {
	UserStore
	TrainingStore
	AchievementStore

	// WithTx runs fn against a transactional view of the store. fn's writes
	// are committed when it returns nil and discarded otherwise.
	WithTx(ctx context.Context, fn func(tx Store) error) error
	Ping(ctx context.Context) error
}
