// Package runtime assembles the PEED server from configuration: storage,
// cache, domain services and the HTTP listener.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	app "github.com/PEED-Project/peed_backend/internal/app"
	"github.com/PEED-Project/peed_backend/internal/app/auth"
	"github.com/PEED-Project/peed_backend/internal/app/cache"
	"github.com/PEED-Project/peed_backend/internal/app/domain/training"
	"github.com/PEED-Project/peed_backend/internal/app/httpapi"
	"github.com/PEED-Project/peed_backend/internal/app/storage"
	"github.com/PEED-Project/peed_backend/internal/app/storage/sqlstore"
	"github.com/PEED-Project/peed_backend/internal/config"
	"github.com/PEED-Project/peed_backend/internal/middleware"
	"github.com/PEED-Project/peed_backend/internal/platform/database"
	"github.com/PEED-Project/peed_backend/internal/platform/migrations"
	"github.com/PEED-Project/peed_backend/pkg/logger"
)

const limiterCleanupInterval = time.Minute

// Application wires core dependencies and manages the HTTP server lifecycle.
type Application struct {
	cfg     *config.Config
	log     *logger.Logger
	app     *app.Application
	server  *http.Server
	limiter *middleware.RateLimiter
	db      *sqlx.DB
	redis   *cache.Redis

	mu       sync.Mutex
	listener net.Listener
	ready    chan struct{}
}

// NewLogger builds the process logger from configuration.
func NewLogger(cfg *config.Config) *logger.Logger {
	return logger.New(logger.LoggingConfig{
		Level:      cfg.Logging.Level,
		Format:     cfg.LogFormat(),
		Output:     cfg.Logging.Output,
		FilePrefix: cfg.Logging.FilePrefix,
	})
}

// OpenDatabase connects to the configured database and applies migrations.
func OpenDatabase(ctx context.Context, cfg config.DatabaseConfig, log *logger.Logger) (*sqlx.DB, error) {
	db, err := database.Open(ctx, cfg)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(ctx, db.DB, cfg.Driver(), log); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// BuildCore constructs the domain application on top of db. The returned
// Redis cache, when non-nil, must be closed by the caller.
func BuildCore(ctx context.Context, cfg *config.Config, db *sqlx.DB, log *logger.Logger) (*app.Application, *cache.Redis, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, nil, err
	}

	var presets training.Presets
	if cfg.Training.PresetsFile != "" {
		if presets, err = training.LoadPresets(cfg.Training.PresetsFile); err != nil {
			return nil, nil, fmt.Errorf("load presets: %w", err)
		}
	}

	var (
		aggregateCache cache.Cache = cache.NewMemory()
		redisCache     *cache.Redis
	)
	if cfg.Cache.RedisURL != "" {
		redisCache, err = cache.NewRedis(ctx, cfg.Cache.RedisURL, "peed")
		if err != nil {
			log.WithError(err).Warn("redis unavailable, using in-process cache")
		} else {
			aggregateCache = redisCache
		}
	}

	var store storage.Store
	if db != nil {
		store = sqlstore.New(db)
	}

	core, err := app.New(app.Options{
		Store:           store,
		Cache:           aggregateCache,
		CacheTTL:        cfg.Cache.TTL,
		Tokens:          auth.NewTokens(cfg.Auth.SecretKey, cfg.Auth.TokenTTL),
		Presets:         presets,
		Location:        loc,
		AvatarMaxBytes:  cfg.Training.AvatarMaxBytes,
		RefreshSchedule: cfg.Jobs.AchievementRefreshCron,
	}, log)
	if err != nil {
		if redisCache != nil {
			_ = redisCache.Close()
		}
		return nil, nil, err
	}
	return core, redisCache, nil
}

// NewApplication opens storage, bootstraps the catalog and builds the HTTP
// server described by cfg.
func NewApplication(ctx context.Context, cfg *config.Config, log *logger.Logger) (*Application, error) {
	if log == nil {
		log = NewLogger(cfg)
	}

	db, err := OpenDatabase(ctx, cfg.Database, log.Named("database"))
	if err != nil {
		return nil, fmt.Errorf("configure database: %w", err)
	}

	core, redisCache, err := BuildCore(ctx, cfg, db, log)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := core.Bootstrap(ctx, cfg.Jobs.SeedDemoData); err != nil {
		_ = db.Close()
		if redisCache != nil {
			_ = redisCache.Close()
		}
		return nil, fmt.Errorf("bootstrap: %w", err)
	}

	limiter := middleware.NewRateLimiter(float64(cfg.RateLimit.RPS), cfg.RateLimit.Burst, log.Named("ratelimit"))
	handler := httpapi.NewHandler(core, httpapi.Config{
		CORSOrigins:  cfg.CORSOriginList(),
		StaticDir:    cfg.Server.StaticDir,
		AuthRequired: cfg.Auth.Required,
		Limiter:      limiter,
		DatabaseKind: cfg.Database.Kind(),
	}, log.Named("http"))

	return &Application{
		cfg:     cfg,
		log:     log,
		app:     core,
		limiter: limiter,
		db:      db,
		redis:   redisCache,
		ready:   make(chan struct{}),
		server: &http.Server{
			Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
			Handler:      handler,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
		},
	}, nil
}

// Core exposes the domain application.
func (a *Application) Core() *app.Application {
	return a.app
}

// Ready is closed once the listener accepts connections.
func (a *Application) Ready() <-chan struct{} {
	return a.ready
}

// Addr returns the bound listener address, or "" before Run has listened.
func (a *Application) Addr() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return ""
	}
	return a.listener.Addr().String()
}

// Run starts background services and the HTTP server and blocks until the
// context is cancelled or the server fails.
func (a *Application) Run(ctx context.Context) error {
	if err := a.app.Start(ctx); err != nil {
		return fmt.Errorf("start services: %w", err)
	}

	ln, err := net.Listen("tcp", a.server.Addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.server.Addr, err)
	}
	a.mu.Lock()
	a.listener = ln
	a.mu.Unlock()
	close(a.ready)

	a.limiter.StartCleanup(ctx, limiterCleanupInterval)

	errCh := make(chan error, 1)
	go func() {
		a.log.WithField("addr", ln.Addr().String()).
			WithField("database", a.cfg.Database.Kind()).
			Info("PEED backend listening")
		if err := a.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

// Shutdown gracefully stops the HTTP server, background services and
// connections.
func (a *Application) Shutdown(ctx context.Context) error {
	timeout := a.cfg.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var errs []error
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("http shutdown: %w", err))
	}
	if err := a.app.Stop(shutdownCtx); err != nil {
		errs = append(errs, fmt.Errorf("stop services: %w", err))
	}
	if a.redis != nil {
		if err := a.redis.Close(); err != nil {
			a.log.WithError(err).Warn("error closing redis connection")
		}
	}
	if a.db != nil {
		if err := a.db.Close(); err != nil {
			a.log.WithError(err).Warn("error closing database connection")
		}
	}
	return errors.Join(errs...)
}
