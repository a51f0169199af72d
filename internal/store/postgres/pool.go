package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config carries the connection settings for the task store.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	// PoolSize bounds concurrent connections. Zero means DefaultPoolSize.
	PoolSize int
}

// DefaultPoolSize matches the connection budget of a single worker fleet.
const DefaultPoolSize = 16

// DSN renders the config as a pgx connection string.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s", c.Host, c.Port, c.User, c.Password, c.Database)
}

// OpenPool builds the shared connection pool. The pool is the only
// in-process shared mutable resource; it is constructed once here and
// injected into the engine, never held as a package singleton.
func OpenPool(ctx context.Context, cfg Config) (*pgxpool.Pool, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}
	size := cfg.PoolSize
	if size <= 0 {
		size = DefaultPoolSize
	}
	pc.MaxConns = int32(size)
	pool, err := pgxpool.NewWithConfig(ctx, pc)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	return pool, nil
}

// Migrate creates the task table and its indexes.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply task schema: %w", err)
	}
	return nil
}
