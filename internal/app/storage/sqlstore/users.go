package sqlstore

import (
	"context"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
)

const userColumns = `id, username, email, nickname, bio, avatar_url, wallet_address, wallet_type,
	created_at, updated_at, last_login`

func (s *Store) CreateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.UpdatedAt = u.CreatedAt

	id, err := s.insert(ctx, `
		INSERT INTO users (username, email, nickname, bio, avatar_url, wallet_address, wallet_type,
			created_at, updated_at, last_login)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		u.Username, u.Email, u.Nickname, u.Bio, u.AvatarURL, u.WalletAddress, u.WalletType,
		u.CreatedAt, u.UpdatedAt, u.LastLogin)
	if err != nil {
		return user.User{}, wrap(err, "create user %q", u.Username)
	}
	u.ID = id
	return u, nil
}

func (s *Store) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	if u.UpdatedAt.IsZero() {
		u.UpdatedAt = time.Now().UTC()
	}

	affected, err := s.exec(ctx, `
		UPDATE users
		SET username = ?, email = ?, nickname = ?, bio = ?, avatar_url = ?,
			wallet_address = ?, wallet_type = ?, updated_at = ?, last_login = ?
		WHERE id = ?`,
		u.Username, u.Email, u.Nickname, u.Bio, u.AvatarURL,
		u.WalletAddress, u.WalletType, u.UpdatedAt, u.LastLogin, u.ID)
	if err != nil {
		return user.User{}, wrap(err, "update user %d", u.ID)
	}
	if err := notFoundIfNone(affected, "user %d", u.ID); err != nil {
		return user.User{}, err
	}
	return s.GetUser(ctx, u.ID)
}

func (s *Store) GetUser(ctx context.Context, id int64) (user.User, error) {
	var u user.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	return u, wrap(err, "user %d", id)
}

func (s *Store) GetUserByUsername(ctx context.Context, username string) (user.User, error) {
	var u user.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
	return u, wrap(err, "user with username %s", username)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (user.User, error) {
	var u user.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
	return u, wrap(err, "user with email %s", email)
}

func (s *Store) GetUserByWallet(ctx context.Context, address string) (user.User, error) {
	var u user.User
	err := s.get(ctx, &u, `SELECT `+userColumns+` FROM users WHERE wallet_address = ?`, address)
	return u, wrap(err, "user with wallet %s", address)
}

func (s *Store) ListUsers(ctx context.Context) ([]user.User, error) {
	var users []user.User
	if err := s.selectAll(ctx, &users, `SELECT `+userColumns+` FROM users ORDER BY id`); err != nil {
		return nil, wrap(err, "list users")
	}
	return users, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	err := s.get(ctx, &n, `SELECT COUNT(*) FROM users`)
	return n, wrap(err, "count users")
}

// DeleteUser removes the user together with their records and achievement
// progress.
func (s *Store) DeleteUser(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *Store) error {
		if _, err := tx.exec(ctx, `DELETE FROM user_achievements WHERE user_id = ?`, id); err != nil {
			return wrap(err, "delete achievements of user %d", id)
		}
		if _, err := tx.exec(ctx, `DELETE FROM training_records WHERE user_id = ?`, id); err != nil {
			return wrap(err, "delete records of user %d", id)
		}
		affected, err := tx.exec(ctx, `DELETE FROM users WHERE id = ?`, id)
		if err != nil {
			return wrap(err, "delete user %d", id)
		}
		return notFoundIfNone(affected, "user %d", id)
	})
}
