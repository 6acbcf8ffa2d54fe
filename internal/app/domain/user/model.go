package user

import "time"

// User is a registered PEED account.
type User struct {
	ID            int64      `db:"id"`
	Username      string     `db:"username"`
	Email         *string    `db:"email"`
	Nickname      *string    `db:"nickname"`
	Bio           *string    `db:"bio"`
	AvatarURL     *string    `db:"avatar_url"`
	WalletAddress *string    `db:"wallet_address"`
	WalletType    *string    `db:"wallet_type"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
	LastLogin     *time.Time `db:"last_login"`
}

// Patch lists profile fields a user may change. A nil field is left as is; a
// pointer to "" clears the field.
type Patch struct {
	Username  *string
	Nickname  *string
	Bio       *string
	AvatarURL *string
	Email     *string
}

// Empty reports whether the patch carries no changes.
func (p Patch) Empty() bool {
	return p.Username == nil && p.Nickname == nil && p.Bio == nil && p.AvatarURL == nil && p.Email == nil
}

// Optional converts a possibly blank string into a nullable column value.
func Optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// Value dereferences a nullable column value.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
