package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
)

const recordColumns = `id, user_id, difficulty, sets_completed, reps_completed, total_duration,
	contract_time, relax_time, session_date, created_at`

const totalsColumns = `COUNT(*) AS sessions,
	COALESCE(SUM(total_duration), 0) AS total_duration,
	COALESCE(SUM(sets_completed), 0) AS total_sets,
	COALESCE(SUM(reps_completed), 0) AS total_reps`

func (s *Store) CreateRecord(ctx context.Context, rec training.Record) (training.Record, error) {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	id, err := s.insert(ctx, `
		INSERT INTO training_records (user_id, difficulty, sets_completed, reps_completed, total_duration,
			contract_time, relax_time, session_date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.UserID, rec.Difficulty, rec.SetsCompleted, rec.RepsCompleted, rec.TotalDuration,
		rec.ContractTime, rec.RelaxTime, rec.SessionDate, rec.CreatedAt)
	if err != nil {
		return training.Record{}, wrap(err, "create record for user %d", rec.UserID)
	}
	rec.ID = id
	return rec, nil
}

func filterClause(f training.Filter) (string, []interface{}) {
	var (
		conds []string
		args  []interface{}
	)
	if f.UserID != 0 {
		conds = append(conds, "user_id = ?")
		args = append(args, f.UserID)
	}
	if !f.From.IsZero() {
		conds = append(conds, "session_date >= ?")
		args = append(args, f.From)
	}
	if !f.To.IsZero() {
		conds = append(conds, "session_date <= ?")
		args = append(args, f.To)
	}
	if f.Difficulty != "" {
		conds = append(conds, "difficulty = ?")
		args = append(args, f.Difficulty)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func (s *Store) ListRecords(ctx context.Context, f training.Filter) ([]training.Record, int, error) {
	where, args := filterClause(f)

	var total int
	if err := s.get(ctx, &total, `SELECT COUNT(*) FROM training_records`+where, args...); err != nil {
		return nil, 0, wrap(err, "count records")
	}

	query := `SELECT ` + recordColumns + ` FROM training_records` + where + ` ORDER BY created_at DESC, id DESC`
	if f.Limit > 0 {
		query += ` LIMIT ? OFFSET ?`
		args = append(args, f.Limit, f.Offset)
	}

	var records []training.Record
	if err := s.selectAll(ctx, &records, query, args...); err != nil {
		return nil, 0, wrap(err, "list records")
	}
	return records, total, nil
}

func (s *Store) LatestRecord(ctx context.Context, userID int64) (training.Record, error) {
	var rec training.Record
	err := s.get(ctx, &rec, `
		SELECT `+recordColumns+` FROM training_records
		WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT 1`, userID)
	return rec, wrap(err, "latest record of user %d", userID)
}

func (s *Store) SessionDates(ctx context.Context, userID int64) ([]training.Date, error) {
	var dates []training.Date
	err := s.selectAll(ctx, &dates, `
		SELECT DISTINCT session_date FROM training_records
		WHERE user_id = ?
		ORDER BY session_date DESC`, userID)
	if err != nil {
		return nil, wrap(err, "session dates of user %d", userID)
	}
	return dates, nil
}

func (s *Store) Totals(ctx context.Context, userID int64, since training.Date) (training.Totals, error) {
	where, args := filterClause(training.Filter{UserID: userID, From: since})

	var t training.Totals
	err := s.get(ctx, &t, `SELECT `+totalsColumns+` FROM training_records`+where, args...)
	return t, wrap(err, "totals")
}

func (s *Store) DifficultyTotals(ctx context.Context, userID int64) ([]training.DifficultyTotals, error) {
	var out []training.DifficultyTotals
	err := s.selectAll(ctx, &out, `
		SELECT difficulty, `+totalsColumns+`
		FROM training_records
		WHERE user_id = ?
		GROUP BY difficulty
		ORDER BY difficulty`, userID)
	if err != nil {
		return nil, wrap(err, "difficulty totals of user %d", userID)
	}
	return out, nil
}

func (s *Store) DailyTotals(ctx context.Context, userID int64, since training.Date) ([]training.DailyTotals, error) {
	where, args := filterClause(training.Filter{UserID: userID, From: since})

	var out []training.DailyTotals
	err := s.selectAll(ctx, &out, `
		SELECT session_date, `+totalsColumns+`
		FROM training_records`+where+`
		GROUP BY session_date
		ORDER BY session_date`, args...)
	if err != nil {
		return nil, wrap(err, "daily totals of user %d", userID)
	}
	return out, nil
}

func (s *Store) Leaderboard(ctx context.Context, since training.Date, limit int) ([]training.LeaderboardRow, error) {
	var args []interface{}
	where := ""
	if !since.IsZero() {
		where = " WHERE r.session_date >= ?"
		args = append(args, since)
	}
	query := `
		SELECT u.id AS user_id, u.username, u.nickname, u.avatar_url,
			COUNT(r.id) AS sessions,
			COALESCE(SUM(r.total_duration), 0) AS total_duration,
			COALESCE(SUM(r.sets_completed), 0) AS total_sets,
			COALESCE(SUM(r.reps_completed), 0) AS total_reps
		FROM users u
		JOIN training_records r ON r.user_id = u.id` + where + `
		GROUP BY u.id, u.username, u.nickname, u.avatar_url
		ORDER BY sessions DESC, total_duration DESC, u.id ASC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var rows []training.LeaderboardRow
	if err := s.selectAll(ctx, &rows, query, args...); err != nil {
		return nil, wrap(err, "leaderboard")
	}
	return rows, nil
}

func (s *Store) CountActiveUsers(ctx context.Context, day training.Date) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(DISTINCT user_id) FROM training_records WHERE session_date = ?`, day)
	return n, wrap(err, "active users on %s", day)
}
