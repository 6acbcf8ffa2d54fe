package sqlstore

import (
	"context"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/achievement"
)

const achievementColumns = `id, name, name_en, description, description_en, icon, category, target_value, created_at`

func (s *Store) CreateAchievement(ctx context.Context, a achievement.Achievement) (achievement.Achievement, error) {
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	id, err := s.insert(ctx, `
		INSERT INTO achievements (name, name_en, description, description_en, icon, category, target_value, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.Name, a.NameEn, a.Description, a.DescriptionEn, a.Icon, a.Category, a.TargetValue, a.CreatedAt)
	if err != nil {
		return achievement.Achievement{}, wrap(err, "create achievement %q", a.Name)
	}
	a.ID = id
	return a, nil
}

func (s *Store) GetAchievementByName(ctx context.Context, name string) (achievement.Achievement, error) {
	var a achievement.Achievement
	err := s.get(ctx, &a, `SELECT `+achievementColumns+` FROM achievements WHERE name = ?`, name)
	return a, wrap(err, "achievement %q", name)
}

func (s *Store) ListAchievements(ctx context.Context) ([]achievement.Achievement, error) {
	var out []achievement.Achievement
	if err := s.selectAll(ctx, &out, `SELECT `+achievementColumns+` FROM achievements ORDER BY id`); err != nil {
		return nil, wrap(err, "list achievements")
	}
	return out, nil
}

func (s *Store) CountAchievements(ctx context.Context) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM achievements`)
	return n, wrap(err, "count achievements")
}

func (s *Store) CreateProgress(ctx context.Context, p achievement.Progress) (achievement.Progress, error) {
	id, err := s.insert(ctx, `
		INSERT INTO user_achievements (user_id, achievement_id, progress, unlocked, unlocked_at)
		VALUES (?, ?, ?, ?, ?)`,
		p.UserID, p.AchievementID, p.Progress, p.Unlocked, p.UnlockedAt)
	if err != nil {
		return achievement.Progress{}, wrap(err, "create progress of user %d on achievement %d", p.UserID, p.AchievementID)
	}
	p.ID = id
	return p, nil
}

func (s *Store) UpdateProgress(ctx context.Context, p achievement.Progress) (achievement.Progress, error) {
	affected, err := s.exec(ctx, `
		UPDATE user_achievements
		SET progress = ?, unlocked = ?, unlocked_at = ?
		WHERE id = ?`,
		p.Progress, p.Unlocked, p.UnlockedAt, p.ID)
	if err != nil {
		return achievement.Progress{}, wrap(err, "update progress %d", p.ID)
	}
	if err := notFoundIfNone(affected, "progress %d", p.ID); err != nil {
		return achievement.Progress{}, err
	}
	return p, nil
}

type progressRow struct {
	achievement.Progress
	A achievement.Achievement `db:"a"`
}

// ListProgress returns the user's progress rows with their achievement,
// unlocked ones first and then by ascending target.
func (s *Store) ListProgress(ctx context.Context, userID int64) ([]achievement.Progress, error) {
	var rows []progressRow
	err := s.selectAll(ctx, &rows, `
		SELECT ua.id, ua.user_id, ua.achievement_id, ua.progress, ua.unlocked, ua.unlocked_at,
			a.id AS "a.id", a.name AS "a.name", a.name_en AS "a.name_en",
			a.description AS "a.description", a.description_en AS "a.description_en",
			a.icon AS "a.icon", a.category AS "a.category",
			a.target_value AS "a.target_value", a.created_at AS "a.created_at"
		FROM user_achievements ua
		JOIN achievements a ON a.id = ua.achievement_id
		WHERE ua.user_id = ?
		ORDER BY ua.unlocked DESC, a.target_value ASC, ua.achievement_id ASC`, userID)
	if err != nil {
		return nil, wrap(err, "progress of user %d", userID)
	}

	out := make([]achievement.Progress, 0, len(rows))
	for _, row := range rows {
		p := row.Progress
		a := row.A
		p.Achievement = &a
		out = append(out, p)
	}
	return out, nil
}
