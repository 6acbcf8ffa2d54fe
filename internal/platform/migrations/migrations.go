// Package migrations applies the embedded schema migrations with golang-migrate.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/PEED-Project/peed_backend/pkg/logger"
)

//go:embed sql/postgres/*.sql sql/sqlite/*.sql
var files embed.FS

// Dialects understood by Up and Version. They match the database/sql driver names.
const (
	DialectPostgres = "postgres"
	DialectSQLite   = "sqlite"
)

// Up applies all pending migrations. Running it on an up-to-date schema is a
// no-op.
func Up(ctx context.Context, db *sql.DB, dialect string, log *logger.Logger) error {
	return run(ctx, db, dialect, log, func(m *migrate.Migrate) error {
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		return nil
	})
}

// Version reports the current schema version. A fresh database reports 0.
func Version(ctx context.Context, db *sql.DB, dialect string) (uint, bool, error) {
	var (
		version uint
		dirty   bool
	)
	err := run(ctx, db, dialect, nil, func(m *migrate.Migrate) error {
		v, d, err := m.Version()
		if errors.Is(err, migrate.ErrNilVersion) {
			return nil
		}
		version, dirty = v, d
		return err
	})
	return version, dirty, err
}

func run(ctx context.Context, db *sql.DB, dialect string, log *logger.Logger, fn func(*migrate.Migrate) error) error {
	src, err := iofs.New(files, "sql/"+dialect)
	if err != nil {
		return fmt.Errorf("migrations source %q: %w", dialect, err)
	}
	defer src.Close()

	driver, release, err := databaseDriver(ctx, db, dialect)
	if err != nil {
		return fmt.Errorf("migrations driver %q: %w", dialect, err)
	}
	defer release()

	m, err := migrate.NewWithInstance("iofs", src, dialect, driver)
	if err != nil {
		return fmt.Errorf("init migrations: %w", err)
	}
	if log != nil {
		m.Log = migrateLogger{log: log.Named("migrations")}
	}

	if err := fn(m); err != nil {
		return fmt.Errorf("migrate %s: %w", dialect, err)
	}
	return nil
}

// databaseDriver wraps db without taking ownership of it: release frees what
// the driver holds but leaves db open.
func databaseDriver(ctx context.Context, db *sql.DB, dialect string) (database.Driver, func(), error) {
	switch dialect {
	case DialectPostgres:
		conn, err := db.Conn(ctx)
		if err != nil {
			return nil, nil, err
		}
		driver, err := postgres.WithConnection(ctx, conn, &postgres.Config{})
		if err != nil {
			_ = conn.Close()
			return nil, nil, err
		}
		return driver, func() { _ = conn.Close() }, nil
	case DialectSQLite:
		driver, err := sqlite.WithInstance(db, &sqlite.Config{})
		if err != nil {
			return nil, nil, err
		}
		return driver, func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unsupported dialect %q", dialect)
	}
}

type migrateLogger struct {
	log *logger.Logger
}

func (l migrateLogger) Printf(format string, v ...interface{}) {
	l.log.WithFields(nil).Info(strings.TrimSpace(fmt.Sprintf(format, v...)))
}

func (l migrateLogger) Verbose() bool {
	return false
}
