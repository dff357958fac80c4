// Package storage provides the ledger stores, the series cache and database connections.
package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/etf-dashboard/internal/config"
)

// connectTimeout bounds pool creation and the first ping
const connectTimeout = 10 * time.Second

// PostgresDB is the connection pool behind the Postgres ledger store.
// The ledger is a handful of small rows read and written per request,
// so the pool stays small and recycles idle connections quickly.
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB connects to the database described by cfg and verifies it answers
func NewPostgresDB(cfg *config.PostgresConfig) (*PostgresDB, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL())
	if err != nil {
		return nil, fmt.Errorf("invalid postgres config for %s:%s: %w", cfg.Host, cfg.Port, err)
	}
	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}
	poolConfig.MaxConnIdleTime = 5 * time.Minute
	poolConfig.HealthCheckPeriod = time.Minute

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger database pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ledger database %s unreachable: %w", cfg.Database, err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Close releases every pooled connection
func (db *PostgresDB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Pool returns the underlying connection pool
func (db *PostgresDB) Pool() *pgxpool.Pool {
	return db.pool
}

// Ping checks the database answers within ctx
func (db *PostgresDB) Ping(ctx context.Context) error {
	return db.pool.Ping(ctx)
}
