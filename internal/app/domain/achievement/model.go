package achievement

import "time"

// Category selects which statistic drives an achievement's progress.
type Category string

const (
	CategorySessionCount Category = "session_count"
	CategoryTrainingTime Category = "training_time" // target in whole hours
	CategoryStreakDays   Category = "streak_days"
)

// Achievement is an entry of the achievement catalog.
type Achievement struct {
	ID            int64     `db:"id" json:"id"`
	Name          string    `db:"name" json:"name"`
	NameEn        string    `db:"name_en" json:"name_en"`
	Description   string    `db:"description" json:"description"`
	DescriptionEn string    `db:"description_en" json:"description_en"`
	Icon          string    `db:"icon" json:"icon"`
	Category      Category  `db:"category" json:"category"`
	TargetValue   int       `db:"target_value" json:"target_value"`
	CreatedAt     time.Time `db:"created_at" json:"created_at"`
}

// Progress tracks one user's progress towards one achievement.
type Progress struct {
	ID            int64      `db:"id"`
	UserID        int64      `db:"user_id"`
	AchievementID int64      `db:"achievement_id"`
	Progress      int        `db:"progress"`
	Unlocked      bool       `db:"unlocked"`
	UnlockedAt    *time.Time `db:"unlocked_at"`

	Achievement *Achievement `db:"-"`
}

// Snapshot is the set of statistics achievements are evaluated against.
type Snapshot struct {
	Sessions      int
	TotalDuration int64 // seconds
	StreakDays    int
}

// Value returns the statistic for category c.
func (s Snapshot) Value(c Category) (int, bool) {
	switch c {
	case CategorySessionCount:
		return s.Sessions, true
	case CategoryTrainingTime:
		return int(s.TotalDuration / 3600), true
	case CategoryStreakDays:
		return s.StreakDays, true
	default:
		return 0, false
	}
}

// Evaluate recomputes p against a. Progress is capped at the target, an
// unlocked achievement stays unlocked. changed reports whether p needs to be
// persisted, unlocked whether this call unlocked it.
func Evaluate(p *Progress, a Achievement, snap Snapshot, now time.Time) (changed, unlocked bool) {
	value, ok := snap.Value(a.Category)
	if !ok {
		return false, false
	}
	if value > a.TargetValue {
		value = a.TargetValue
	}

	oldProgress, oldUnlocked := p.Progress, p.Unlocked
	p.Progress = value

	if !p.Unlocked && p.Progress >= a.TargetValue {
		p.Unlocked = true
		at := now.UTC()
		p.UnlockedAt = &at
		unlocked = true
	}

	return p.Progress != oldProgress || p.Unlocked != oldUnlocked, unlocked
}
