package training

import "time"

// Difficulty names a training preset.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// Record is one completed training session.
type Record struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	Difficulty    Difficulty `db:"difficulty"`
	SetsCompleted int        `db:"sets_completed"`
	RepsCompleted int        `db:"reps_completed"`
	TotalDuration int        `db:"total_duration"` // seconds
	ContractTime  int        `db:"contract_time"`  // seconds
	RelaxTime     int        `db:"relax_time"`     // seconds
	SessionDate   Date       `db:"session_date"`
	CreatedAt     time.Time  `db:"created_at"`
}

// Filter narrows a record listing. Zero values mean "no constraint".
type Filter struct {
	UserID     int64
	From       Date
	To         Date
	Difficulty Difficulty
	Offset     int
	Limit      int
}

// Totals aggregates a set of records.
type Totals struct {
	Sessions      int   `db:"sessions"`
	TotalDuration int64 `db:"total_duration"`
	TotalSets     int64 `db:"total_sets"`
	TotalReps     int64 `db:"total_reps"`
}

// DifficultyTotals is Totals grouped by difficulty.
type DifficultyTotals struct {
	Difficulty Difficulty `db:"difficulty"`
	Totals
}

// DailyTotals is Totals grouped by session date.
type DailyTotals struct {
	Date Date `db:"session_date"`
	Totals
}

// LeaderboardRow aggregates one user's sessions within a period.
type LeaderboardRow struct {
	UserID    int64   `db:"user_id"`
	Username  string  `db:"username"`
	Nickname  *string `db:"nickname"`
	AvatarURL *string `db:"avatar_url"`
	Totals
}
