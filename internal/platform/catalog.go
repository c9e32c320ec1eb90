package platform

import (
	"context"

	"github.com/laglue/storefront/internal/catalog"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

// LoadCatalog runs the one-time legacy key migration when enabled, then
// loads the catalog into a holder. A failed load is not fatal: the holder
// starts from whatever could be read, and the unreadable keys in its
// snapshot make the sync poller reload once the store answers.
func LoadCatalog(ctx context.Context, cfg config.SyncConfig, store kv.Store, logg *logger.Logger) (*catalog.Holder, *catalog.Loader, error) {
	loader, err := catalog.NewLoader(store, logg)
	if err != nil {
		return nil, nil, err
	}

	if cfg.MigrateCatalog {
		migrator, err := catalog.NewMigrator(store, loader, logg)
		if err != nil {
			return nil, nil, err
		}
		if _, err := migrator.Run(ctx); err != nil {
			logg.Error(ctx, "catalog.migrate.failed", err)
		}
	}

	loaded, err := loader.Load(ctx)
	if err != nil {
		logg.Error(ctx, "catalog.initial_load_failed", err)
		return catalog.NewHolder(loaded), loader, nil
	}
	logg.Info(logg.WithFields(ctx, map[string]any{
		"products":          len(loaded.Products),
		"products_source":   loaded.ProductsSource,
		"categories_source": loaded.CategoriesSource,
	}), "catalog.loaded")
	return catalog.NewHolder(loaded), loader, nil
}
