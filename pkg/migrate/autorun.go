package migrate

import (
	"context"
	"fmt"

	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/db"
	"github.com/laglue/storefront/pkg/logger"
)

// MaybeRun applies the embedded migrations when the SQL store is selected and
// either auto-migrate is enabled or the database is a local sqlite file.
func MaybeRun(ctx context.Context, cfg *config.Config, logg *logger.Logger, client *db.Client) error {
	if cfg.Store.Backend != config.StoreBackendSQL || client == nil {
		return nil
	}
	if !cfg.FeatureFlags.AutoMigrate && !cfg.DB.IsSQLite() {
		return nil
	}

	sqlDB, err := client.SQL()
	if err != nil {
		return fmt.Errorf("extracting sql.DB: %w", err)
	}

	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "dialect": client.Dialect()})
	logg.Info(ctx, "running goose migrations (auto-run)")

	if err := Up(ctx, sqlDB, client.Dialect()); err != nil {
		return fmt.Errorf("running goose up: %w", err)
	}

	logg.Info(ctx, "goose migrations completed")
	return nil
}
