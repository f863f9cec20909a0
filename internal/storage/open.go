package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/p-n-ai/prep-tracker/internal/platform/cache"
	"github.com/p-n-ai/prep-tracker/internal/platform/config"
	"github.com/p-n-ai/prep-tracker/internal/platform/database"
)

// Backend is an opened DocumentStore plus whatever connections it owns.
type Backend struct {
	Store DocumentStore
	// DB is set for the postgres backend so other components can share the pool.
	DB    *database.DB
	Cache *cache.Cache
}

// Close releases the backend's connections.
func (b *Backend) Close() {
	if b.DB != nil {
		b.DB.Close()
	}
	if b.Cache != nil {
		if err := b.Cache.Close(); err != nil {
			slog.Warn("closing cache", "error", err)
		}
	}
}

// HealthCheck pings the backend's network connections, if any.
func (b *Backend) HealthCheck(ctx context.Context) error {
	if b.DB != nil {
		if err := b.DB.HealthCheck(ctx); err != nil {
			return fmt.Errorf("database: %w", err)
		}
	}
	if b.Cache != nil {
		if err := b.Cache.HealthCheck(ctx); err != nil {
			return fmt.Errorf("cache: %w", err)
		}
	}
	return nil
}

// Open builds the document store named by cfg.Store.Backend.
func Open(ctx context.Context, cfg *config.Config) (*Backend, error) {
	switch cfg.Store.Backend {
	case config.BackendMemory:
		return &Backend{Store: NewMemoryStore()}, nil

	case config.BackendFile:
		fs, err := NewFileStore(cfg.Store.Dir)
		if err != nil {
			return nil, err
		}
		return &Backend{Store: fs}, nil

	case config.BackendRedis:
		c, err := cache.New(ctx, cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("connecting to cache: %w", err)
		}
		rs, err := NewRedisStore(c.Client, c.Prefix)
		if err != nil {
			_ = c.Close()
			return nil, err
		}
		return &Backend{Store: rs, Cache: c}, nil

	case config.BackendPostgres:
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		ps, err := NewPostgresStore(ctx, db.Pool)
		if err != nil {
			db.Close()
			return nil, err
		}
		return &Backend{Store: ps, DB: db}, nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Store.Backend)
	}
}
