// Package postgres implements the item, transaction and settings stores on
// PostgreSQL through pgx.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/noah-isme/toko-pos/internal/store"
)

// DB is the subset of *pgxpool.Pool used by the stores.
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store groups the PostgreSQL-backed stores over one pool.
type Store struct {
	db DB
}

// New constructs a Store.
func New(db DB) *Store {
	return &Store{db: db}
}

// Settings returns the settings.Store view of s.
func (s *Store) Settings() *Settings {
	return &Settings{db: s.db}
}

// SQLSTATE codes that map onto store sentinels.
const (
	codeUniqueViolation      = "23505"
	codeUndefinedColumn      = "42703"
	codeUndefinedTable       = "42P01"
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeAdminShutdown        = "57P01"
	codeCannotConnectNow     = "57P03"
	codeTooManyConnections   = "53300"
)

// classify translates driver errors into the store sentinels. A write whose
// outcome is unknown is not reported as unavailable, so callers never retry
// a change that may already have been applied.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return store.ErrNotFound
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == codeUniqueViolation:
			return fmt.Errorf("%w: %s: %s", store.ErrDuplicate, op, pgErr.ConstraintName)
		case pgErr.Code == codeUndefinedColumn || pgErr.Code == codeUndefinedTable:
			return fmt.Errorf("%w: %s: %s", store.ErrSchemaMismatch, op, pgErr.Message)
		case strings.HasPrefix(pgErr.Code, "08"),
			pgErr.Code == codeSerializationFailure,
			pgErr.Code == codeDeadlockDetected,
			pgErr.Code == codeAdminShutdown,
			pgErr.Code == codeCannotConnectNow,
			pgErr.Code == codeTooManyConnections:
			return fmt.Errorf("%w: %s: %s (%s)", store.ErrUnavailable, op, pgErr.Message, pgErr.Code)
		}
		return fmt.Errorf("postgres %s: %w", op, err)
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) || pgconn.SafeToRetry(err) {
		return fmt.Errorf("%w: %s: %v", store.ErrUnavailable, op, err)
	}
	return fmt.Errorf("postgres %s: %w", op, err)
}
