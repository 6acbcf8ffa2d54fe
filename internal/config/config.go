// Package config loads runtime configuration from the environment.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/joeshaw/envdecode"
	"github.com/joho/godotenv"
)

// Config is the complete runtime configuration.
type Config struct {
	Server      ServerConfig
	Database    DatabaseConfig
	Logging     LoggingConfig
	Auth        AuthConfig
	RateLimit   RateLimitConfig
	Cache       CacheConfig
	Jobs        JobsConfig
	Training    TrainingConfig
	Environment string `env:"APP_ENV"`
	FlaskEnv    string `env:"FLASK_ENV"`
}

// ServerConfig controls the HTTP listener and static assets.
type ServerConfig struct {
	Host            string        `env:"HOST,default=0.0.0.0"`
	Port            int           `env:"PORT,default=5000"`
	CORSOrigins     string        `env:"CORS_ORIGINS"`
	StaticDir       string        `env:"STATIC_DIR,default=src/static"`
	ReadTimeout     time.Duration `env:"HTTP_READ_TIMEOUT,default=15s"`
	WriteTimeout    time.Duration `env:"HTTP_WRITE_TIMEOUT,default=30s"`
	ShutdownTimeout time.Duration `env:"HTTP_SHUTDOWN_TIMEOUT,default=10s"`
}

// DatabaseConfig selects and configures the relational store.
type DatabaseConfig struct {
	UsePostgres bool   `env:"USE_POSTGRES,default=false"`
	URL         string `env:"DATABASE_URL"`
	Host        string `env:"DB_HOST,default=localhost"`
	Port        int    `env:"DB_PORT,default=5432"`
	Name        string `env:"DB_NAME,default=peed_db"`
	User        string `env:"DB_USER,default=postgres"`
	Password    string `env:"DB_PASSWORD,default=postgres"`
	SSLMode     string `env:"DB_SSLMODE,default=disable"`
	Path        string `env:"DB_PATH,default=database/peed.db"`

	MaxOpenConns    int           `env:"DB_MAX_OPEN_CONNS,default=30"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS,default=10"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME,default=300s"`
	PingTimeout     time.Duration `env:"DB_PING_TIMEOUT,default=20s"`
}

// LoggingConfig mirrors logger.LoggingConfig.
type LoggingConfig struct {
	Level      string `env:"LOG_LEVEL,default=info"`
	Format     string `env:"LOG_FORMAT"`
	Output     string `env:"LOG_OUTPUT,default=stdout"`
	FilePrefix string `env:"LOG_FILE_PREFIX,default=peed"`
}

// DefaultSecretKey is the development signing key used when SECRET_KEY is
// unset. It must not be used when tokens are enforced.
const DefaultSecretKey = "peed_secret_key_2024_postgresql"

// AuthConfig controls session token issuing and enforcement.
type AuthConfig struct {
	SecretKey string        `env:"SECRET_KEY,default=peed_secret_key_2024_postgresql"`
	Required  bool          `env:"AUTH_REQUIRED,default=false"`
	TokenTTL  time.Duration `env:"AUTH_TOKEN_TTL,default=720h"`
}

// RateLimitConfig configures per-client request limiting. RPS <= 0 disables it.
type RateLimitConfig struct {
	RPS   int `env:"RATE_LIMIT_RPS,default=20"`
	Burst int `env:"RATE_LIMIT_BURST,default=40"`
}

// CacheConfig selects the aggregate cache. An empty RedisURL uses memory.
type CacheConfig struct {
	RedisURL string        `env:"REDIS_URL"`
	TTL      time.Duration `env:"CACHE_TTL,default=30s"`
}

// JobsConfig controls background jobs and bootstrap data.
type JobsConfig struct {
	AchievementRefreshCron string `env:"ACHIEVEMENT_REFRESH_CRON,default=@daily"`
	SeedDemoData           bool   `env:"SEED_DEMO_DATA,default=true"`
}

// TrainingConfig carries training domain settings.
type TrainingConfig struct {
	Timezone       string `env:"TIMEZONE,default=Local"`
	PresetsFile    string `env:"TRAINING_PRESETS_FILE"`
	AvatarMaxBytes int    `env:"AVATAR_MAX_BYTES,default=2097152"`
}

// Load reads an optional .env file and decodes the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return FromEnv()
}

// LoadFile reads the given env file before decoding the environment.
func LoadFile(path string) (*Config, error) {
	if err := godotenv.Load(path); err != nil {
		return nil, fmt.Errorf("load env (%s): %w", path, err)
	}
	return FromEnv()
}

// FromEnv decodes the process environment without reading any file.
func FromEnv() (*Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return nil, fmt.Errorf("decode environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values that decoding alone cannot.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if !c.Database.UsePostgres && strings.TrimSpace(c.Database.Path) == "" {
		return fmt.Errorf("DB_PATH is required when USE_POSTGRES is false")
	}
	if c.Training.AvatarMaxBytes <= 0 {
		return fmt.Errorf("AVATAR_MAX_BYTES must be positive")
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	if c.Auth.Required {
		key := strings.TrimSpace(c.Auth.SecretKey)
		if key == "" || key == DefaultSecretKey {
			return fmt.Errorf("SECRET_KEY must be set to a non-default value when AUTH_REQUIRED is true")
		}
	}
	return nil
}

// LogFormat returns LOG_FORMAT, defaulting to json in production and text
// otherwise.
func (c *Config) LogFormat() string {
	if f := strings.TrimSpace(c.Logging.Format); f != "" {
		return f
	}
	if c.Production() {
		return "json"
	}
	return "text"
}

// Production reports whether the service runs in production mode.
func (c *Config) Production() bool {
	env := c.Environment
	if env == "" {
		env = c.FlaskEnv
	}
	return strings.EqualFold(strings.TrimSpace(env), "production")
}

// Location resolves the timezone used to decide what "today" is.
func (c *Config) Location() (*time.Location, error) {
	name := strings.TrimSpace(c.Training.Timezone)
	if name == "" || strings.EqualFold(name, "local") {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// DefaultCORSOrigins is used when CORS_ORIGINS is unset.
const DefaultCORSOrigins = "http://localhost:3000,http://localhost:3001,http://localhost:3002"

// CORSOriginList splits CORS_ORIGINS on commas.
func (c *Config) CORSOriginList() []string {
	raw := c.Server.CORSOrigins
	if strings.TrimSpace(raw) == "" {
		raw = DefaultCORSOrigins
	}
	var out []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

// Driver returns the database/sql driver name for the configured database.
func (d DatabaseConfig) Driver() string {
	if d.UsePostgres {
		return "postgres"
	}
	return "sqlite"
}

// Kind is the human-readable database type reported by health checks.
func (d DatabaseConfig) Kind() string {
	if d.UsePostgres {
		return "PostgreSQL"
	}
	return "SQLite"
}

// DSN builds the connection string for the configured driver.
func (d DatabaseConfig) DSN() string {
	if !d.UsePostgres {
		return "file:" + d.Path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}
	if d.URL != "" {
		return d.URL
	}
	u := url.URL{
		Scheme: "postgresql",
		User:   url.UserPassword(d.User, d.Password),
		Host:   fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:   "/" + d.Name,
	}
	if d.SSLMode != "" {
		u.RawQuery = "sslmode=" + url.QueryEscape(d.SSLMode)
	}
	return u.String()
}
