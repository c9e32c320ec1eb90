// Package platform opens the shared resources both binaries start from: the
// blob store selected by configuration and the catalog built on top of it.
package platform

import (
	"context"
	"fmt"

	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/db"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"github.com/laglue/storefront/pkg/migrate"
	"github.com/laglue/storefront/pkg/redis"
)

// Backend is the opened blob store. Redis is set only for the redis backend
// so callers can reuse its rate limiter.
type Backend struct {
	Store kv.Backend
	Redis *redis.Client
}

// OpenBackend connects the configured store. For the SQL backend the
// embedded migrations run first when auto-migrate applies.
func OpenBackend(ctx context.Context, cfg *config.Config, logg *logger.Logger) (*Backend, error) {
	ctx = logg.WithField(ctx, "store_backend", cfg.Store.Backend)

	switch cfg.Store.Backend {
	case config.StoreBackendMemory, "":
		logg.Warn(ctx, "using in-memory store, state is lost on restart")
		return &Backend{Store: kv.NewMemoryStore()}, nil

	case config.StoreBackendRedis:
		client, err := redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap redis: %w", err)
		}
		return &Backend{Store: client, Redis: client}, nil

	case config.StoreBackendSQL:
		client, err := db.New(ctx, cfg.DB, logg)
		if err != nil {
			return nil, fmt.Errorf("bootstrap database: %w", err)
		}
		if err := migrate.MaybeRun(ctx, cfg, logg, client); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
		return &Backend{Store: kv.NewSQLStore(client)}, nil

	default:
		return nil, fmt.Errorf("unsupported store backend %q", cfg.Store.Backend)
	}
}

func (b *Backend) Close() error {
	if b == nil || b.Store == nil {
		return nil
	}
	return b.Store.Close()
}
