// Package sqlstore implements the storage interfaces on database/sql through
// sqlx. Queries use '?' placeholders and are rebound for the active driver, so
// the same store serves PostgreSQL and SQLite.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/PEED-Project/peed_backend/internal/app/storage"
)

// Store implements storage.Store backed by a SQL database.
type Store struct {
	db   *sqlx.DB
	ext  sqlx.ExtContext
	inTx bool
}

var _ storage.Store = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, ext: db}
}

// WithTx runs fn in a database transaction. Calls made on a transactional
// store join the outer transaction.
func (s *Store) WithTx(ctx context.Context, fn func(tx storage.Store) error) error {
	return s.withTx(ctx, func(tx *Store) error { return fn(tx) })
}

func (s *Store) withTx(ctx context.Context, fn func(tx *Store) error) (err error) {
	if s.inTx {
		return fn(s)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(&Store{db: s.db, ext: tx, inTx: true}); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return fmt.Errorf("%w (rollback: %v)", err, rbErr)
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) get(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.GetContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

func (s *Store) selectAll(ctx context.Context, dest interface{}, query string, args ...interface{}) error {
	return sqlx.SelectContext(ctx, s.ext, dest, s.ext.Rebind(query), args...)
}

func (s *Store) exec(ctx context.Context, query string, args ...interface{}) (int64, error) {
	result, err := s.ext.ExecContext(ctx, s.ext.Rebind(query), args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// insert runs an INSERT and returns the generated id.
func (s *Store) insert(ctx context.Context, query string, args ...interface{}) (int64, error) {
	var id int64
	err := s.ext.QueryRowxContext(ctx, s.ext.Rebind(query+" RETURNING id"), args...).Scan(&id)
	return id, err
}

// wrap maps driver errors onto the storage sentinels.
func wrap(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	what := fmt.Sprintf(format, args...)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return fmt.Errorf("%s: %w", what, storage.ErrNotFound)
	case isUniqueViolation(err):
		return fmt.Errorf("%s: %w: %v", what, conflictOf(err), err)
	default:
		return fmt.Errorf("%s: %w", what, err)
	}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// conflictOf narrows a unique violation to the user column it hit.
func conflictOf(err error) error {
	text := err.Error()
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		text = pqErr.Constraint + " " + pqErr.Detail
	}
	switch {
	case strings.Contains(text, "wallet_address"):
		return storage.ErrWalletTaken
	case strings.Contains(text, "users.email"), strings.Contains(text, "users_email"), strings.Contains(text, "(email)"):
		return storage.ErrEmailTaken
	case strings.Contains(text, "users.username"), strings.Contains(text, "users_username"), strings.Contains(text, "(username)"):
		return storage.ErrUsernameTaken
	default:
		return storage.ErrConflict
	}
}

func notFoundIfNone(affected int64, format string, args ...interface{}) error {
	if affected == 0 {
		return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), storage.ErrNotFound)
	}
	return nil
}
