package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/andresuchdata/opsdash/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/semaphore"
)

const defaultMaxWriters = 10

// DB wraps the pool with a semaphore that caps concurrent write transactions.
type DB struct {
	*sqlx.DB
	sem *semaphore.Weighted
}

// NewDB opens a lib/pq pool for the server processes.
func NewDB(cfg *config.DatabaseConfig) (*DB, error) {
	db, err := sqlx.Connect("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return Wrap(db.DB, "postgres", cfg.MaxWriters), nil
}

// Wrap adapts an already opened *sql.DB, e.g. one from the pgx stdlib driver.
func Wrap(db *sql.DB, driverName string, maxWriters int64) *DB {
	if maxWriters <= 0 {
		maxWriters = defaultMaxWriters
	}
	return &DB{
		DB:  sqlx.NewDb(db, driverName),
		sem: semaphore.NewWeighted(maxWriters),
	}
}

// WithTx executes a function within a transaction
func (db *DB) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			log.Error().Err(rbErr).Msg("postgres: could not rollback transaction")
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("could not commit transaction: %w", err)
	}

	return nil
}

// execGated runs a single write statement under the write gate.
func (db *DB) execGated(ctx context.Context, query string, args ...any) error {
	if err := db.sem.Acquire(ctx, 1); err != nil {
		return fmt.Errorf("could not acquire semaphore: %w", err)
	}
	defer db.sem.Release(1)

	_, err := db.ExecContext(ctx, query, args...)
	return err
}

const schema = `
CREATE TABLE IF NOT EXISTS products (
	id         TEXT PRIMARY KEY,
	doc        JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS orders (
	id           TEXT PRIMARY KEY,
	order_number TEXT NOT NULL,
	location     TEXT NOT NULL,
	store        TEXT NOT NULL DEFAULT '',
	time_stamp   BIGINT NOT NULL,
	shipped      BOOLEAN NOT NULL DEFAULT FALSE,
	priority     INT NOT NULL DEFAULT 0,
	items        JSONB NOT NULL DEFAULT '[]'
);
CREATE INDEX IF NOT EXISTS orders_time_stamp_idx ON orders (time_stamp DESC);
CREATE INDEX IF NOT EXISTS orders_order_number_idx ON orders (order_number);
`

// EnsureSchema creates the document tables when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
