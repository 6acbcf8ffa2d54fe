package users

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/cache"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/domain/user"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/services/achievements"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/internal/app/storage/memory"
	"github.com/PEED-Project/peed_backend/pkg/logger"
	"github.com/PEED-Project/peed_backend/pkg/testutil"
)

const (
	walletA = "11111111111111111111111111111111"
	walletB = "So11111111111111111111111111111111111111112"
)

var fixedNow = time.Date(2024, 5, 10, 9, 30, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	if _, err := achievements.New(store, logger.NewNop()).Seed(context.Background()); err != nil {
		t.Fatalf("seed achievements: %v", err)
	}
	svc := New(store, logger.NewNop())
	svc.WithClock(func() time.Time { return fixedNow })
	svc.WithTokens(testutil.StubTokens{})
	return svc, store
}

func expectValidation(t *testing.T, err error, msg string) {
	t.Helper()
	var v *services.ValidationError
	if !errors.As(err, &v) {
		t.Fatalf("expected validation error %q, got %v", msg, err)
	}
	if v.Message != msg {
		t.Fatalf("validation message = %q, want %q", v.Message, msg)
	}
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	u, err := svc.Register(ctx, RegisterInput{Username: " alice ", Email: "a@example.com", Nickname: "Al"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Username != "alice" || user.Value(u.Email) != "a@example.com" || u.Bio != nil {
		t.Fatalf("unexpected user: %#v", u)
	}
	if !u.CreatedAt.Equal(fixedNow) {
		t.Fatalf("created_at = %v", u.CreatedAt)
	}

	progress, err := store.ListProgress(ctx, u.ID)
	if err != nil {
		t.Fatalf("list progress: %v", err)
	}
	if len(progress) != 6 {
		t.Fatalf("expected 6 zeroed progress rows, got %d", len(progress))
	}

	_, err = svc.Register(ctx, RegisterInput{Username: "  "})
	expectValidation(t, err, "Missing username")

	_, err = svc.Register(ctx, RegisterInput{Username: "alice"})
	expectValidation(t, err, "Username already exists")

	_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "a@example.com"})
	expectValidation(t, err, "Email already exists")
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	if _, err := svc.Register(ctx, RegisterInput{Username: "alice"}); err != nil {
		t.Fatalf("register: %v", err)
	}

	u, token, err := svc.Login(ctx, "alice")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if token != "token-alice" {
		t.Fatalf("token = %q", token)
	}
	if u.LastLogin == nil || !u.LastLogin.Equal(fixedNow) {
		t.Fatalf("last_login not stamped: %v", u.LastLogin)
	}

	if _, _, err := svc.Login(ctx, "nobody"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateProfile(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	alice, _ := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@example.com"})
	bob, _ := svc.Register(ctx, RegisterInput{Username: "bob", Email: "b@example.com"})

	nick, bio := "Bobby", "likes training"
	updated, err := svc.UpdateProfile(ctx, bob.ID, user.Patch{Nickname: &nick, Bio: &bio})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if user.Value(updated.Nickname) != nick || user.Value(updated.Bio) != bio {
		t.Fatalf("patch not applied: %#v", updated)
	}

	taken := "alice"
	_, err = svc.UpdateProfile(ctx, bob.ID, user.Patch{Username: &taken})
	expectValidation(t, err, "Username already exists")

	email := "a@example.com"
	_, err = svc.UpdateProfile(ctx, bob.ID, user.Patch{Email: &email})
	expectValidation(t, err, "Email already exists")

	// Keeping one's own username is fine.
	same := "alice"
	if _, err := svc.UpdateProfile(ctx, alice.ID, user.Patch{Username: &same}); err != nil {
		t.Fatalf("self update: %v", err)
	}

	blank := ""
	cleared, err := svc.UpdateProfile(ctx, bob.ID, user.Patch{Email: &blank})
	if err != nil {
		t.Fatalf("clear email: %v", err)
	}
	if cleared.Email != nil {
		t.Fatalf("email not cleared: %v", *cleared.Email)
	}

	if _, err := svc.UpdateProfile(ctx, 999, user.Patch{Bio: &bio}); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUploadAvatar(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	svc.WithAvatarLimit(16)
	u, _ := svc.Register(ctx, RegisterInput{Username: "alice"})

	small := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("tiny png"))
	updated, err := svc.UploadAvatar(ctx, u.ID, small)
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if user.Value(updated.AvatarURL) != small {
		t.Fatalf("avatar not stored")
	}

	_, err = svc.UploadAvatar(ctx, u.ID, "")
	expectValidation(t, err, "Missing avatar data")

	_, err = svc.UploadAvatar(ctx, u.ID, "https://example.com/a.png")
	expectValidation(t, err, "Invalid image format")

	_, err = svc.UploadAvatar(ctx, u.ID, "data:image/png;base64,!!!notbase64")
	expectValidation(t, err, "Invalid image format")

	big := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte(strings.Repeat("x", 64)))
	_, err = svc.UploadAvatar(ctx, u.ID, big)
	if !services.IsValidation(err) {
		t.Fatalf("expected size validation error, got %v", err)
	}
}

func TestWallets(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	alice, _ := svc.Register(ctx, RegisterInput{Username: "alice"})
	bob, _ := svc.Register(ctx, RegisterInput{Username: "bob"})

	u, err := svc.ConnectWallet(ctx, alice.ID, walletA, "phantom")
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	if user.Value(u.WalletAddress) != walletA || user.Value(u.WalletType) != "phantom" {
		t.Fatalf("wallet not stored: %#v", u)
	}

	// Reconnecting the same wallet to the same account is allowed.
	if _, err := svc.ConnectWallet(ctx, alice.ID, walletA, "phantom"); err != nil {
		t.Fatalf("reconnect: %v", err)
	}

	_, err = svc.ConnectWallet(ctx, bob.ID, walletA, "phantom")
	expectValidation(t, err, "Wallet already connected to another account")

	_, err = svc.ConnectWallet(ctx, bob.ID, "", "phantom")
	expectValidation(t, err, "Missing wallet information")

	if _, err := svc.ConnectWallet(ctx, bob.ID, "0OIl-not-base58", "solflare"); !services.IsValidation(err) {
		t.Fatalf("expected invalid address, got %v", err)
	}
	if _, err := svc.ConnectWallet(ctx, bob.ID, "0xabc", "metamask"); err != nil {
		t.Fatalf("non-solana wallets are not format checked: %v", err)
	}

	u, err = svc.DisconnectWallet(ctx, alice.ID)
	if err != nil {
		t.Fatalf("disconnect: %v", err)
	}
	if u.WalletAddress != nil || u.WalletType != nil {
		t.Fatalf("wallet not cleared: %#v", u)
	}
	if _, err := svc.ConnectWallet(ctx, bob.ID, walletB, "backpack"); err != nil {
		t.Fatalf("connect second wallet: %v", err)
	}
}

func TestDeleteInvalidatesStatsCache(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	c := cache.NewMemory()
	svc.WithCache(c)

	u, _ := svc.Register(ctx, RegisterInput{Username: "alice"})
	if _, err := store.CreateRecord(ctx, training.Record{UserID: u.ID, Difficulty: training.DifficultyBeginner, SessionDate: training.DateOf(fixedNow)}); err != nil {
		t.Fatalf("create record: %v", err)
	}
	if err := c.Set(ctx, cache.StatsPrefix+"global", 1, time.Minute); err != nil {
		t.Fatalf("cache set: %v", err)
	}

	if err := svc.Delete(ctx, u.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	var v int
	if ok, _ := c.Get(ctx, cache.StatsPrefix+"global", &v); ok {
		t.Fatalf("stats cache not invalidated")
	}
	if err := svc.Delete(ctx, u.ID); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

// racingStore simulates a competing writer that claims a unique column
// between the service's lookup and its write.
type racingStore struct {
	*memory.Store
	err error
}

func (s racingStore) UpdateUser(ctx context.Context, u user.User) (user.User, error) {
	return user.User{}, s.err
}

func (s racingStore) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.err
}

func TestStoreConflictsNameTheColumn(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	alice, err := store.CreateUser(ctx, user.User{Username: "alice"})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}

	cases := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("update user: %w", storage.ErrUsernameTaken), "Username already exists"},
		{fmt.Errorf("update user: %w", storage.ErrEmailTaken), "Email already exists"},
		{fmt.Errorf("update user: %w", storage.ErrWalletTaken), "Wallet already connected to another account"},
		{fmt.Errorf("update user: %w", storage.ErrConflict), "Username already exists"},
	}
	for _, tc := range cases {
		svc := New(racingStore{Store: store, err: tc.err}, logger.NewNop())

		email := "new@example.com"
		_, err := svc.UpdateProfile(ctx, alice.ID, user.Patch{Email: &email})
		expectValidation(t, err, tc.want)

		_, err = svc.ConnectWallet(ctx, alice.ID, walletA, "phantom")
		expectValidation(t, err, tc.want)

		_, err = svc.Register(ctx, RegisterInput{Username: "bob", Email: "b@example.com"})
		expectValidation(t, err, tc.want)
	}
}

func TestMemoryStoreConflictsNameTheColumn(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	alice, _ := svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@example.com"})
	bob, _ := svc.Register(ctx, RegisterInput{Username: "bob"})
	if _, err := svc.ConnectWallet(ctx, alice.ID, walletA, "phantom"); err != nil {
		t.Fatalf("connect: %v", err)
	}

	// bypass the service lookups so only the store constraint fires
	bob.Email = user.Optional("a@example.com")
	if _, err := store.UpdateUser(ctx, bob); !errors.Is(err, storage.ErrEmailTaken) {
		t.Fatalf("expected email conflict, got %v", err)
	}
	bob.Email = nil
	bob.WalletAddress = user.Optional(walletA)
	if _, err := store.UpdateUser(ctx, bob); !errors.Is(err, storage.ErrWalletTaken) {
		t.Fatalf("expected wallet conflict, got %v", err)
	}
}

func TestProfileWritesInvalidateStatsCache(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	c := cache.NewMemory()
	svc.WithCache(c)
	u, _ := svc.Register(ctx, RegisterInput{Username: "alice"})

	avatar := "data:image/png;base64," + base64.StdEncoding.EncodeToString([]byte("tiny png"))
	nick := "Al"
	writes := map[string]func() error{
		"profile": func() error {
			_, err := svc.UpdateProfile(ctx, u.ID, user.Patch{Nickname: &nick})
			return err
		},
		"avatar": func() error {
			_, err := svc.UploadAvatar(ctx, u.ID, avatar)
			return err
		},
		"connect wallet": func() error {
			_, err := svc.ConnectWallet(ctx, u.ID, walletA, "phantom")
			return err
		},
		"disconnect wallet": func() error {
			_, err := svc.DisconnectWallet(ctx, u.ID)
			return err
		},
	}
	for name, write := range writes {
		if err := c.Set(ctx, cache.StatsPrefix+"leaderboard", 1, time.Minute); err != nil {
			t.Fatalf("cache set: %v", err)
		}
		if err := write(); err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		var v int
		if ok, _ := c.Get(ctx, cache.StatsPrefix+"leaderboard", &v); ok {
			t.Fatalf("%s did not invalidate the stats cache", name)
		}
	}
}
