package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PEED-Project/peed_backend/internal/app/domain/achievement"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
)

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice", Email: user.Optional("a@example.com")})
	require.NoError(t, err)
	assert.NotZero(t, alice.ID)
	assert.False(t, alice.CreatedAt.IsZero())

	_, err = s.CreateUser(ctx, user.User{Username: "alice"})
	assert.ErrorIs(t, err, storage.ErrConflict)

	_, err = s.CreateUser(ctx, user.User{Username: "bob", Email: user.Optional("a@example.com")})
	assert.ErrorIs(t, err, storage.ErrConflict)

	bob, err := s.CreateUser(ctx, user.User{Username: "bob"})
	require.NoError(t, err)

	bob.WalletAddress = user.Optional("wallet-1")
	_, err = s.UpdateUser(ctx, bob)
	require.NoError(t, err)

	alice.WalletAddress = user.Optional("wallet-1")
	_, err = s.UpdateUser(ctx, alice)
	assert.ErrorIs(t, err, storage.ErrConflict)

	got, err := s.GetUserByWallet(ctx, "wallet-1")
	require.NoError(t, err)
	assert.Equal(t, bob.ID, got.ID)

	_, err = s.GetUser(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReturnedUsersAreCopies(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, user.User{Username: "alice", Nickname: user.Optional("Al")})
	require.NoError(t, err)
	*u.Nickname = "mutated"

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "Al", *got.Nickname)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)
	a, err := s.CreateAchievement(ctx, achievement.Achievement{Name: "first", Category: achievement.CategorySessionCount, TargetValue: 1})
	require.NoError(t, err)
	_, err = s.CreateProgress(ctx, achievement.Progress{UserID: u.ID, AchievementID: a.ID})
	require.NoError(t, err)
	_, err = s.CreateRecord(ctx, training.Record{UserID: u.ID, Difficulty: training.DifficultyBeginner, SessionDate: training.MustParseDate("2024-05-01")})
	require.NoError(t, err)

	require.NoError(t, s.DeleteUser(ctx, u.ID))

	recs, total, err := s.ListRecords(ctx, training.Filter{UserID: u.ID})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, total)

	progress, err := s.ListProgress(ctx, u.ID)
	require.NoError(t, err)
	assert.Empty(t, progress)

	assert.ErrorIs(t, s.DeleteUser(ctx, u.ID), storage.ErrNotFound)
}

func TestWithTxRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	s := New()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx storage.Store) error {
		if _, err := tx.CreateUser(ctx, user.User{Username: "ghost"}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	err = s.WithTx(ctx, func(tx storage.Store) error {
		_, err := tx.CreateUser(ctx, user.User{Username: "kept"})
		return err
	})
	require.NoError(t, err)

	_, err = s.GetUserByUsername(ctx, "kept")
	assert.NoError(t, err)
}

func TestWithTxKeepsWritesMadeOutsideIt(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, user.User{Username: "bob"})
	require.NoError(t, err)

	var carolID int64
	err = s.WithTx(ctx, func(tx storage.Store) error {
		carol, err := tx.CreateUser(ctx, user.User{Username: "carol"})
		if err != nil {
			return err
		}
		carolID = carol.ID

		// writes that bypass the transaction while it is open
		if err := s.DeleteUser(ctx, alice.ID); err != nil {
			return err
		}
		bob.Nickname = user.Optional("Bobby")
		if _, err := s.UpdateUser(ctx, bob); err != nil {
			return err
		}
		dave, err := s.CreateUser(ctx, user.User{Username: "dave"})
		if err != nil {
			return err
		}
		assert.NotEqual(t, carolID, dave.ID)
		return nil
	})
	require.NoError(t, err)

	_, err = s.GetUser(ctx, alice.ID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	got, err := s.GetUser(ctx, bob.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Nickname)
	assert.Equal(t, "Bobby", *got.Nickname)

	_, err = s.GetUser(ctx, carolID)
	assert.NoError(t, err)
	_, err = s.GetUserByUsername(ctx, "dave")
	assert.NoError(t, err)

	n, err := s.CountUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestWithTxCommitRechecksConstraints(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx storage.Store) error {
		if _, err := tx.CreateUser(ctx, user.User{Username: "erin"}); err != nil {
			return err
		}
		_, err := s.CreateUser(ctx, user.User{Username: "erin"})
		return err
	})
	assert.ErrorIs(t, err, storage.ErrConflict)

	err = s.WithTx(ctx, func(tx storage.Store) error {
		if _, err := tx.CreateRecord(ctx, training.Record{UserID: alice.ID, SessionDate: training.MustParseDate("2024-05-01")}); err != nil {
			return err
		}
		return s.DeleteUser(ctx, alice.ID)
	})
	assert.ErrorIs(t, err, storage.ErrNotFound)

	recs, total, err := s.ListRecords(ctx, training.Filter{})
	require.NoError(t, err)
	assert.Empty(t, recs)
	assert.Zero(t, total)
}

func TestWithTxDeleteCascadesToRowsWrittenOutside(t *testing.T) {
	ctx := context.Background()
	s := New()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)

	err = s.WithTx(ctx, func(tx storage.Store) error {
		if err := tx.DeleteUser(ctx, alice.ID); err != nil {
			return err
		}
		_, err := s.CreateRecord(ctx, training.Record{UserID: alice.ID, SessionDate: training.MustParseDate("2024-05-01")})
		return err
	})
	require.NoError(t, err)

	_, total, err := s.ListRecords(ctx, training.Filter{UserID: alice.ID})
	require.NoError(t, err)
	assert.Zero(t, total)
}

func seedRecords(t *testing.T, s *Store) (int64, int64) {
	t.Helper()
	ctx := context.Background()

	alice, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)
	bob, err := s.CreateUser(ctx, user.User{Username: "bob"})
	require.NoError(t, err)

	base := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	add := func(uid int64, day string, diff training.Difficulty, dur int, offset time.Duration) {
		_, err := s.CreateRecord(ctx, training.Record{
			UserID:        uid,
			Difficulty:    diff,
			SetsCompleted: 3,
			RepsCompleted: 10,
			TotalDuration: dur,
			SessionDate:   training.MustParseDate(day),
			CreatedAt:     base.Add(offset),
		})
		require.NoError(t, err)
	}

	add(alice.ID, "2024-05-01", training.DifficultyBeginner, 600, 0)
	add(alice.ID, "2024-05-02", training.DifficultyIntermediate, 900, time.Hour)
	add(alice.ID, "2024-05-02", training.DifficultyBeginner, 300, 2*time.Hour)
	add(bob.ID, "2024-05-02", training.DifficultyAdvanced, 1800, 3*time.Hour)
	add(bob.ID, "2024-04-20", training.DifficultyAdvanced, 1200, -24*time.Hour)
	return alice.ID, bob.ID
}

func TestListRecordsFiltersAndPages(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, _ := seedRecords(t, s)

	recs, total, err := s.ListRecords(ctx, training.Filter{UserID: alice, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 2)
	assert.Equal(t, 300, recs[0].TotalDuration)
	assert.Equal(t, 900, recs[1].TotalDuration)

	recs, total, err = s.ListRecords(ctx, training.Filter{UserID: alice, Offset: 2, Limit: 2})
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	require.Len(t, recs, 1)

	recs, total, err = s.ListRecords(ctx, training.Filter{
		UserID:     alice,
		From:       training.MustParseDate("2024-05-02"),
		To:         training.MustParseDate("2024-05-02"),
		Difficulty: training.DifficultyBeginner,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, recs, 1)
	assert.Equal(t, 300, recs[0].TotalDuration)
}

func TestAggregates(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, bob := seedRecords(t, s)

	totals, err := s.Totals(ctx, alice, training.Date{})
	require.NoError(t, err)
	assert.Equal(t, training.Totals{Sessions: 3, TotalDuration: 1800, TotalSets: 9, TotalReps: 30}, totals)

	all, err := s.Totals(ctx, 0, training.MustParseDate("2024-05-01"))
	require.NoError(t, err)
	assert.Equal(t, 4, all.Sessions)

	dates, err := s.SessionDates(ctx, alice)
	require.NoError(t, err)
	assert.Equal(t, []training.Date{training.MustParseDate("2024-05-02"), training.MustParseDate("2024-05-01")}, dates)

	breakdown, err := s.DifficultyTotals(ctx, alice)
	require.NoError(t, err)
	require.Len(t, breakdown, 2)
	assert.Equal(t, training.DifficultyBeginner, breakdown[0].Difficulty)
	assert.Equal(t, 2, breakdown[0].Sessions)
	assert.EqualValues(t, 900, breakdown[0].TotalDuration)

	daily, err := s.DailyTotals(ctx, alice, training.MustParseDate("2024-05-02"))
	require.NoError(t, err)
	require.Len(t, daily, 1)
	assert.Equal(t, 2, daily[0].Sessions)

	latest, err := s.LatestRecord(ctx, bob)
	require.NoError(t, err)
	assert.Equal(t, training.MustParseDate("2024-05-02"), latest.SessionDate)

	_, err = s.LatestRecord(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	active, err := s.CountActiveUsers(ctx, training.MustParseDate("2024-05-02"))
	require.NoError(t, err)
	assert.Equal(t, 2, active)
}

func TestLeaderboardOrdering(t *testing.T) {
	ctx := context.Background()
	s := New()
	alice, bob := seedRecords(t, s)

	rows, err := s.Leaderboard(ctx, training.Date{}, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, alice, rows[0].UserID)
	assert.Equal(t, "alice", rows[0].Username)
	assert.Equal(t, 3, rows[0].Sessions)

	rows, err = s.Leaderboard(ctx, training.MustParseDate("2024-05-02"), 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 2, rows[0].Sessions)
	assert.Equal(t, bob, rows[1].UserID)

	rows, err = s.Leaderboard(ctx, training.Date{}, 1)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestProgressOrderingAndUniqueness(t *testing.T) {
	ctx := context.Background()
	s := New()

	u, err := s.CreateUser(ctx, user.User{Username: "alice"})
	require.NoError(t, err)

	var ids []int64
	for _, a := range achievement.Catalog() {
		created, err := s.CreateAchievement(ctx, a)
		require.NoError(t, err)
		ids = append(ids, created.ID)
		_, err = s.CreateProgress(ctx, achievement.Progress{UserID: u.ID, AchievementID: created.ID})
		require.NoError(t, err)
	}

	_, err = s.CreateAchievement(ctx, achievement.Catalog()[0])
	assert.ErrorIs(t, err, storage.ErrConflict)
	_, err = s.CreateProgress(ctx, achievement.Progress{UserID: u.ID, AchievementID: ids[0]})
	assert.ErrorIs(t, err, storage.ErrConflict)

	rows, err := s.ListProgress(ctx, u.ID)
	require.NoError(t, err)
	require.Len(t, rows, len(ids))

	// Unlock the largest target; it must come first.
	last := rows[len(rows)-1]
	now := time.Now()
	last.Unlocked = true
	last.UnlockedAt = &now
	_, err = s.UpdateProgress(ctx, last)
	require.NoError(t, err)

	rows, err = s.ListProgress(ctx, u.ID)
	require.NoError(t, err)
	assert.True(t, rows[0].Unlocked)
	assert.Equal(t, last.AchievementID, rows[0].AchievementID)
	for i := 2; i < len(rows); i++ {
		assert.LessOrEqual(t, rows[i-1].Achievement.TargetValue, rows[i].Achievement.TargetValue)
	}
}

func TestLeaderboardTieBreaks(t *testing.T) {
	ctx := context.Background()
	s := New()

	day := training.MustParseDate("2024-05-02")
	var users []int64
	for _, name := range []string{"carol", "dave", "erin"} {
		u, err := s.CreateUser(ctx, user.User{Username: name})
		require.NoError(t, err)
		users = append(users, u.ID)
	}
	for i, dur := range []int{600, 900, 600} {
		_, err := s.CreateRecord(ctx, training.Record{UserID: users[i], Difficulty: training.DifficultyBeginner, TotalDuration: dur, SessionDate: day})
		require.NoError(t, err)
	}

	rows, err := s.Leaderboard(ctx, day, 10)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, []int64{users[1], users[0], users[2]}, []int64{rows[0].UserID, rows[1].UserID, rows[2].UserID})
}
