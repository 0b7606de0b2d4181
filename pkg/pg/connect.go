package pg

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

var (
	ErrBadConfig    = errors.New("pg: invalid connection config")
	ErrUnavailable  = errors.New("pg: database unavailable")
	ErrUnhealthy    = errors.New("pg: healthcheck failed")
	ErrMigrate      = errors.New("pg: migrations failed")
	ErrNoMigrations = errors.New("pg: no migrations filesystem")
)

// Connect opens a pool sized by cfg and waits until it answers a ping.
// Attempt n sleeps n*RetryInterval before the next one.
func Connect(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	pc.MaxConns = cfg.MaxOpenConns
	pc.MinConns = cfg.MaxIdleConns
	pc.HealthCheckPeriod = cfg.HealthCheckPeriod
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadConfig, err)
	}
	attempts := max(cfg.RetryAttempts, 1)
	for n := 1; ; n++ {
		if err = pool.Ping(ctx); err == nil {
			return pool, nil
		}
		if n == attempts {
			break
		}
		select {
		case <-ctx.Done():
			pool.Close()
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, ctx.Err())
		case <-time.After(time.Duration(n) * cfg.RetryInterval):
		}
	}
	pool.Close()
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrUnavailable, attempts, err)
}

// OpenDB exposes pool through database/sql for goose and the ledger's SQL
// store. Closing the returned DB leaves the pool open.
func OpenDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// Healthcheck pings through a pooled connection.
func Healthcheck(pool *pgxpool.Pool) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := pool.Ping(ctx); err != nil {
			return fmt.Errorf("%w: %w", ErrUnhealthy, err)
		}
		return nil
	}
}
