package storage

import (
	"errors"
	"fmt"

	"github.com/etf-dashboard/internal/adapter"
	"github.com/etf-dashboard/internal/config"
	"github.com/etf-dashboard/internal/logging"
)

// Connections holds the database handles the configuration asks for.
// Redis is opened for the redis ledger backend or the series cache.
// Postgres is opened only for the postgres ledger backend.
type Connections struct {
	cfg      *config.Config
	Redis    *RedisCache
	Postgres *PostgresDB
	ledger   KVStore
}

// Open connects to the stores selected by cfg
func Open(cfg *config.Config) (*Connections, error) {
	c := &Connections{cfg: cfg}
	logger := logging.GetGlobalLogger().WithComponent("storage")

	if cfg.Ledger.Backend == config.LedgerBackendRedis || cfg.Cache.Enabled {
		redis, err := NewRedisCache(&cfg.Database.Redis)
		if err != nil {
			if cfg.Ledger.Backend == config.LedgerBackendRedis {
				return nil, err
			}
			// The cache alone is optional
			logger.WithError(err).Warn("Redis unavailable, series cache disabled")
		} else {
			c.Redis = redis
		}
	}

	switch cfg.Ledger.Backend {
	case config.LedgerBackendRedis:
		c.ledger = c.Redis
	case config.LedgerBackendPostgres:
		pg, err := NewPostgresDB(&cfg.Database.Postgres)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		c.Postgres = pg
		if err := RunMigrations(cfg.Database.Postgres.URL(), cfg.Database.Postgres.MigrationsPath); err != nil {
			_ = c.Close()
			return nil, err
		}
		c.ledger = NewPostgresKV(pg)
	case config.LedgerBackendMemory:
		c.ledger = NewMemoryKV()
	default:
		_ = c.Close()
		return nil, fmt.Errorf("unknown ledger backend %q", cfg.Ledger.Backend)
	}

	logger.WithFields(map[string]interface{}{
		"ledgerBackend": cfg.Ledger.Backend,
		"seriesCache":   c.Redis != nil && cfg.Cache.Enabled,
	}).Info("Storage initialized")

	return c, nil
}

// LedgerStore returns the key-value store for the holdings ledger
func (c *Connections) LedgerStore() KVStore {
	return c.ledger
}

// WrapProvider puts the Redis series cache in front of p when it is enabled and reachable
func (c *Connections) WrapProvider(p adapter.MarketDataProvider) adapter.MarketDataProvider {
	if c.Redis == nil || !c.cfg.Cache.Enabled {
		return p
	}
	return NewCachedProvider(p, c.Redis, c.cfg.Cache.TTL)
}

// Close closes every open connection
func (c *Connections) Close() error {
	var errs []error
	if c.Redis != nil {
		errs = append(errs, c.Redis.Close())
	}
	if c.Postgres != nil {
		c.Postgres.Close()
	}
	return errors.Join(errs...)
}
