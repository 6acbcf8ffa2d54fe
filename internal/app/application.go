package app

import (
	"context"
	"fmt"
	"time"

	"github.com/PEED-Project/peed_backend/internal/app/auth"
	"github.com/PEED-Project/peed_backend/internal/app/cache"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/services"
	"github.com/PEED-Project/peed_backend/internal/app/services/achievements"
	"github.com/PEED-Project/peed_backend/internal/app/services/seed"
	statssvc "github.com/PEED-Project/peed_backend/internal/app/services/stats"
	trainingsvc "github.com/PEED-Project/peed_backend/internal/app/services/training"
	"github.com/PEED-Project/peed_backend/internal/app/services/users"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/internal/app/storage/memory"
	"github.com/PEED-Project/peed_backend/internal/app/system"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

// Options carries the dependencies and settings of an Application. Zero
// values select in-memory defaults.
type Options struct {
	Store    storage.Store
	Cache    cache.Cache
	CacheTTL time.Duration
	Tokens   *auth.Tokens
	Presets  training.Presets

	Clock    services.Clock
	Location *time.Location

	AvatarMaxBytes int
	// RefreshSchedule is the cron spec of the achievement refresher. Empty
	// disables it.
	RefreshSchedule string
}

// Application ties domain services together and manages their lifecycle.
type Application struct {
	manager *system.Manager
	log     *logger.Logger

	Store  storage.Store
	Tokens *auth.Tokens

	Users        *users.Service
	Training     *trainingsvc.Service
	Achievements *achievements.Service
	Stats        *statssvc.Service
	Seeder       *seed.Seeder
}

// New builds a fully initialised application.
func New(opts Options, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = logger.NewDefault("app")
	}
	if opts.Store == nil {
		opts.Store = memory.New()
	}
	if opts.Cache == nil {
		opts.Cache = cache.NewMemory()
	}
	if opts.Clock == nil {
		opts.Clock = services.SystemClock
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}

	achievementService := achievements.New(opts.Store, log.Named("achievements"))
	achievementService.WithClock(opts.Clock, opts.Location)

	userService := users.New(opts.Store, log.Named("users"))
	userService.WithClock(opts.Clock)
	userService.WithCache(opts.Cache)
	if opts.Tokens != nil {
		userService.WithTokens(opts.Tokens)
	}
	if opts.AvatarMaxBytes > 0 {
		userService.WithAvatarLimit(opts.AvatarMaxBytes)
	}

	trainingService := trainingsvc.New(opts.Store, achievementService, opts.Presets, log.Named("training"))
	trainingService.WithClock(opts.Clock, opts.Location)
	trainingService.WithCache(opts.Cache)

	statsService := statssvc.New(opts.Store, opts.Cache, opts.CacheTTL, log.Named("stats"))
	statsService.WithClock(opts.Clock, opts.Location)

	seeder := seed.New(opts.Store, log.Named("seed"))
	seeder.WithClock(opts.Clock, opts.Location)

	refresher := achievements.NewRefresher(achievementService, opts.RefreshSchedule, log.Named("achievements"))
	if err := refresher.Validate(); err != nil {
		return nil, err
	}

	manager := system.NewManager()
	if err := manager.Register(refresher); err != nil {
		return nil, fmt.Errorf("register %s: %w", refresher.Name(), err)
	}

	return &Application{
		manager:      manager,
		log:          log,
		Store:        opts.Store,
		Tokens:       opts.Tokens,
		Users:        userService,
		Training:     trainingService,
		Achievements: achievementService,
		Stats:        statsService,
		Seeder:       seeder,
	}, nil
}

// Bootstrap seeds the achievement catalog and, when demo is set, the demo
// accounts of an empty database.
func (a *Application) Bootstrap(ctx context.Context, demo bool) error {
	if _, err := a.Achievements.Seed(ctx); err != nil {
		return err
	}
	if !demo {
		return nil
	}
	if _, err := a.Seeder.DemoUsers(ctx); err != nil {
		return err
	}
	return nil
}

// Services lists the names of the managed services in start order.
func (a *Application) Services() []string {
	return a.manager.Names()
}

// Start begins all registered services.
func (a *Application) Start(ctx context.Context) error {
	return a.manager.Start(ctx)
}

// Stop stops all services.
func (a *Application) Stop(ctx context.Context) error {
	return a.manager.Stop(ctx)
}
