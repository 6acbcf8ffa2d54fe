package users

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/PEED-Project/peed_backend/internal/app/cache"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
	"github.com/PEED-Project/peed_backend/internal/app/metrics"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/services/achievements"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

// DefaultAvatarMaxBytes bounds the decoded size of an uploaded avatar.
const DefaultAvatarMaxBytes = 2 << 20

// TokenIssuer signs session tokens for logged-in users.
type TokenIssuer interface {
	Issue(userID int64, username string) (string, error)
}

// Service manages user accounts, profiles and wallet bindings.
type Service struct {
	store          storage.Store
	log            *logger.Logger
	now            services.Clock
	tokens         TokenIssuer
	cache          cache.Cache
	avatarMaxBytes int
}

// New constructs a user service.
func New(store storage.Store, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("users")
	}
	return &Service{
		store:          store,
		log:            log,
		now:            services.SystemClock,
		cache:          cache.Nop{},
		avatarMaxBytes: DefaultAvatarMaxBytes,
	}
}

// WithClock overrides the clock used for timestamps.
func (s *Service) WithClock(now services.Clock) {
	if now != nil {
		s.now = now
	}
}

// WithTokens attaches the session token issuer used by Login.
func (s *Service) WithTokens(tokens TokenIssuer) {
	s.tokens = tokens
}

// WithCache attaches the aggregate cache invalidated on account deletion.
func (s *Service) WithCache(c cache.Cache) {
	if c != nil {
		s.cache = c
	}
}

// WithAvatarLimit sets the maximum decoded avatar size in bytes.
func (s *Service) WithAvatarLimit(maxBytes int) {
	if maxBytes > 0 {
		s.avatarMaxBytes = maxBytes
	}
}

// RegisterInput carries the fields accepted at registration.
type RegisterInput struct {
	Username string
	Email    string
	Nickname string
	Bio      string
}

// Register creates an account together with zeroed progress for every
// achievement.
func (s *Service) Register(ctx context.Context, in RegisterInput) (user.User, error) {
	username := strings.TrimSpace(in.Username)
	if username == "" {
		return user.User{}, services.Invalid("Missing username")
	}
	email := strings.TrimSpace(in.Email)

	if err := s.ensureUsernameFree(ctx, username, 0); err != nil {
		return user.User{}, err
	}
	if email != "" {
		if err := s.ensureEmailFree(ctx, email, 0); err != nil {
			return user.User{}, err
		}
	}

	now := s.now().UTC()
	var created user.User
	err := s.store.WithTx(ctx, func(tx storage.Store) error {
		var err error
		created, err = tx.CreateUser(ctx, user.User{
			Username:  username,
			Email:     user.Optional(email),
			Nickname:  user.Optional(in.Nickname),
			Bio:       user.Optional(in.Bio),
			CreatedAt: now,
		})
		if err != nil {
			return err
		}
		return achievements.InitProgress(ctx, tx, created.ID)
	})
	if err != nil {
		if errors.Is(err, storage.ErrConflict) {
			return user.User{}, conflictError(err)
		}
		return user.User{}, fmt.Errorf("register %q: %w", username, err)
	}

	metrics.RecordRegistration()
	s.log.WithField("user_id", created.ID).
		WithField("username", created.Username).
		Info("user registered")
	return created, nil
}

// Login stamps the user's last login and issues a session token. The token is
// empty when no issuer is attached.
func (s *Service) Login(ctx context.Context, username string) (user.User, string, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return user.User{}, "", services.Invalid("Missing username")
	}

	u, err := s.store.GetUserByUsername(ctx, username)
	if err != nil {
		return user.User{}, "", err
	}

	now := s.now().UTC()
	u.LastLogin = &now
	u.UpdatedAt = now
	if u, err = s.store.UpdateUser(ctx, u); err != nil {
		return user.User{}, "", err
	}

	var token string
	if s.tokens != nil {
		if token, err = s.tokens.Issue(u.ID, u.Username); err != nil {
			return user.User{}, "", err
		}
	}

	s.log.WithField("user_id", u.ID).Info("user logged in")
	return u, token, nil
}

// Get returns one user.
func (s *Service) Get(ctx context.Context, id int64) (user.User, error) {
	return s.store.GetUser(ctx, id)
}

// List returns every user ordered by id.
func (s *Service) List(ctx context.Context) ([]user.User, error) {
	return s.store.ListUsers(ctx)
}

// Delete removes a user with all their records and achievement progress.
func (s *Service) Delete(ctx context.Context, id int64) error {
	if err := s.store.DeleteUser(ctx, id); err != nil {
		return err
	}
	if err := s.cache.Invalidate(ctx, cache.StatsPrefix); err != nil {
		s.log.WithError(err).Warn("invalidate stats cache")
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

// UpdateProfile applies a profile patch. A blank username is rejected; a blank
// email or other field clears it.
func (s *Service) UpdateProfile(ctx context.Context, id int64, patch user.Patch) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	if patch.Username != nil {
		username := strings.TrimSpace(*patch.Username)
		if username == "" {
			return user.User{}, services.Invalid("Username cannot be empty")
		}
		if err := s.ensureUsernameFree(ctx, username, id); err != nil {
			return user.User{}, err
		}
		u.Username = username
	}
	if patch.Email != nil {
		email := strings.TrimSpace(*patch.Email)
		if email != "" {
			if err := s.ensureEmailFree(ctx, email, id); err != nil {
				return user.User{}, err
			}
		}
		u.Email = user.Optional(email)
	}
	if patch.Nickname != nil {
		u.Nickname = user.Optional(*patch.Nickname)
	}
	if patch.Bio != nil {
		u.Bio = user.Optional(*patch.Bio)
	}
	if patch.AvatarURL != nil {
		u.AvatarURL = user.Optional(*patch.AvatarURL)
	}

	return s.save(ctx, u)
}

// UploadAvatar validates a base64 data URL and stores it as the avatar.
func (s *Service) UploadAvatar(ctx context.Context, id int64, data string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	data = strings.TrimSpace(data)
	if data == "" {
		return user.User{}, services.Invalid("Missing avatar data")
	}
	if err := s.validateAvatar(data); err != nil {
		return user.User{}, err
	}

	u.AvatarURL = &data
	return s.save(ctx, u)
}

func (s *Service) validateAvatar(data string) error {
	if !strings.HasPrefix(data, "data:image/") {
		return services.Invalid("Invalid image format")
	}
	comma := strings.IndexByte(data, ',')
	if comma < 0 || !strings.HasSuffix(data[:comma], ";base64") {
		return services.Invalid("Invalid image format")
	}
	payload := data[comma+1:]
	if base64.StdEncoding.DecodedLen(len(payload)) > s.avatarMaxBytes+2 {
		return services.Invalidf("Avatar exceeds %d bytes", s.avatarMaxBytes)
	}
	decoded, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return services.Invalid("Invalid image format")
	}
	if len(decoded) > s.avatarMaxBytes {
		return services.Invalidf("Avatar exceeds %d bytes", s.avatarMaxBytes)
	}
	return nil
}

// ConnectWallet binds a wallet address to the user.
func (s *Service) ConnectWallet(ctx context.Context, id int64, address, walletType string) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}

	address = strings.TrimSpace(address)
	walletType = strings.TrimSpace(walletType)
	if address == "" || walletType == "" {
		return user.User{}, services.Invalid("Missing wallet information")
	}
	if err := user.ValidateWalletAddress(address, walletType); err != nil {
		return user.User{}, services.Invalid(err.Error())
	}

	owner, err := s.store.GetUserByWallet(ctx, address)
	switch {
	case err == nil && owner.ID != id:
		return user.User{}, services.Invalid("Wallet already connected to another account")
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return user.User{}, err
	}

	u.WalletAddress = &address
	u.WalletType = &walletType
	u, err = s.save(ctx, u)
	if err != nil {
		return user.User{}, err
	}
	s.log.WithField("user_id", id).WithField("wallet_type", walletType).Info("wallet connected")
	return u, nil
}

// DisconnectWallet clears the user's wallet binding.
func (s *Service) DisconnectWallet(ctx context.Context, id int64) (user.User, error) {
	u, err := s.store.GetUser(ctx, id)
	if err != nil {
		return user.User{}, err
	}
	u.WalletAddress = nil
	u.WalletType = nil
	return s.save(ctx, u)
}

func (s *Service) save(ctx context.Context, u user.User) (user.User, error) {
	u.UpdatedAt = s.now().UTC()
	updated, err := s.store.UpdateUser(ctx, u)
	if errors.Is(err, storage.ErrConflict) {
		return user.User{}, conflictError(err)
	}
	if err != nil {
		return user.User{}, err
	}
	// nicknames and avatars appear in the leaderboard
	if err := s.cache.Invalidate(ctx, cache.StatsPrefix); err != nil {
		s.log.WithError(err).Warn("invalidate stats cache")
	}
	return updated, nil
}

// conflictError maps a store uniqueness conflict to the message for the
// column that collided.
func conflictError(err error) error {
	switch {
	case errors.Is(err, storage.ErrEmailTaken):
		return services.Invalid("Email already exists")
	case errors.Is(err, storage.ErrWalletTaken):
		return services.Invalid("Wallet already connected to another account")
	default:
		return services.Invalid("Username already exists")
	}
}

func (s *Service) ensureUsernameFree(ctx context.Context, username string, self int64) error {
	existing, err := s.store.GetUserByUsername(ctx, username)
	switch {
	case err == nil && existing.ID != self:
		return services.Invalid("Username already exists")
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return err
	}
	return nil
}

func (s *Service) ensureEmailFree(ctx context.Context, email string, self int64) error {
	existing, err := s.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil && existing.ID != self:
		return services.Invalid("Email already exists")
	case err != nil && !errors.Is(err, storage.ErrNotFound):
		return err
	}
	return nil
}
