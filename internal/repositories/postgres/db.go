// Package postgres implements the repositories on PostgreSQL through database/sql and the
// pgx driver. Orders keep their nested items, address and payment details as JSON columns;
// stock lives in a per-size table so decrements are a single conditional UPDATE.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/hanko-field/commerce-api/internal/repositories"
)

// Settings controls the connection pool.
type Settings struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxIdleTime time.Duration
	ConnMaxLifetime time.Duration
}

// Open connects and verifies the database is reachable.
func Open(ctx context.Context, settings Settings) (*sql.DB, error) {
	dsn := strings.TrimSpace(settings.DSN)
	if dsn == "" {
		return nil, errors.New("postgres: dsn is required")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(positiveOr(settings.MaxOpenConns, 30))
	db.SetMaxIdleConns(positiveOr(settings.MaxIdleConns, 10))
	db.SetConnMaxIdleTime(durationOr(settings.ConnMaxIdleTime, 5*time.Minute))
	db.SetConnMaxLifetime(durationOr(settings.ConnMaxLifetime, 30*time.Minute))

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the tables and indexes when missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS products (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			price NUMERIC(18,2) NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS product_sizes (
			product_id TEXT NOT NULL REFERENCES products(id) ON DELETE CASCADE,
			size TEXT NOT NULL,
			position INT NOT NULL DEFAULT 0,
			stock INT NOT NULL CHECK (stock >= 0),
			PRIMARY KEY (product_id, size)
		)`,
		`CREATE TABLE IF NOT EXISTS carts (
			user_id TEXT PRIMARY KEY,
			items_json TEXT NOT NULL DEFAULT '[]',
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS orders (
			id TEXT PRIMARY KEY,
			user_id TEXT NOT NULL,
			total_amount NUMERIC(18,2) NOT NULL,
			payment_method TEXT NOT NULL CHECK (payment_method IN ('cod','card','regional')),
			payment_status TEXT NOT NULL,
			order_status TEXT NOT NULL,
			payment_id TEXT,
			items_json TEXT NOT NULL,
			shipping_json TEXT NOT NULL,
			payment_json TEXT NOT NULL,
			version BIGINT NOT NULL DEFAULT 1,
			stock_released BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		)`,
		`ALTER TABLE orders ADD COLUMN IF NOT EXISTS stock_released BOOLEAN NOT NULL DEFAULT FALSE`,
		`CREATE INDEX IF NOT EXISTS idx_orders_user_created ON orders (user_id, created_at DESC, id DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_orders_created ON orders (created_at DESC, id DESC)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_orders_payment_id ON orders (payment_id) WHERE payment_id IS NOT NULL`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres: ensure schema: %w", err)
		}
	}
	return nil
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

func withTx(ctx context.Context, tx *sql.Tx) context.Context {
	return context.WithValue(ctx, txKey{}, tx)
}

func txFromContext(ctx context.Context) (*sql.Tx, bool) {
	tx, ok := ctx.Value(txKey{}).(*sql.Tx)
	return tx, ok && tx != nil
}

// conn returns the transaction carried by ctx, falling back to the pool.
func conn(ctx context.Context, db *sql.DB) querier {
	if tx, ok := txFromContext(ctx); ok {
		return tx
	}
	return db
}

// runInTx joins the transaction on ctx or opens a new one around fn.
func runInTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context) error) (err error) {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return wrapError("tx.begin", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if err = fn(withTx(ctx, tx)); err != nil {
		return err
	}
	if err = tx.Commit(); err != nil {
		return wrapError("tx.commit", err)
	}
	return nil
}

const (
	pgUniqueViolation      = "23505"
	pgCheckViolation       = "23514"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
	pgConnectionClass      = "08"
)

// wrapError classifies driver errors into repository errors. Context errors pass through.
func wrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return repositories.NewError(op, repositories.ErrorKindNotFound, "", err)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch {
		case pgErr.Code == pgUniqueViolation, pgErr.Code == pgSerializationFailure, pgErr.Code == pgDeadlockDetected:
			return repositories.NewError(op, repositories.ErrorKindConflict, pgErr.Message, err)
		case pgErr.Code == pgCheckViolation:
			return repositories.NewError(op, repositories.ErrorKindConflict, pgErr.Message, err)
		case strings.HasPrefix(pgErr.Code, pgConnectionClass):
			return repositories.NewError(op, repositories.ErrorKindUnavailable, pgErr.Message, err)
		}
	}
	if errors.Is(err, sql.ErrConnDone) {
		return repositories.NewError(op, repositories.ErrorKindUnavailable, "", err)
	}
	return repositories.NewError(op, repositories.ErrorKindUnknown, "", err)
}

func positiveOr(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

func durationOr(v, fallback time.Duration) time.Duration {
	if v > 0 {
		return v
	}
	return fallback
}
