package catalog

import (
	"context"
	"strings"
	"time"

	pkgerrors "github.com/laglue/storefront/pkg/errors"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
	"go.uber.org/multierr"
)

const migrationLockTTL = 2 * time.Minute

// MigrationResult describes what a migration run did.
type MigrationResult struct {
	AlreadyCurrent   bool   `json:"already_current"`
	Skipped          bool   `json:"skipped"`
	ProductsCopied   int    `json:"products_copied"`
	CategoriesCopied int    `json:"categories_copied"`
	ProductsSource   string `json:"products_source,omitempty"`
	CategoriesSource string `json:"categories_source,omitempty"`
}

// Migrator folds the legacy catalog keys into the primary ones exactly once
// and stamps the schema version. Replicas racing at startup coordinate
// through a store lock; the loser skips.
type Migrator struct {
	store   kv.Store
	loader  *Loader
	logg    *logger.Logger
	newLock func() (kv.Lock, error)
}

func NewMigrator(store kv.Store, loader *Loader, logg *logger.Logger) (*Migrator, error) {
	if store == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "store is required")
	}
	if loader == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "loader is required")
	}
	if logg == nil {
		logg = logger.Nop()
	}
	return &Migrator{
		store:  store,
		loader: loader,
		logg:   logg,
		newLock: func() (kv.Lock, error) {
			return kv.NewStoreLock(store, kv.KeyMigrationLock, migrationLockTTL)
		},
	}, nil
}

// Run performs the migration if the schema version is not stamped yet.
func (m *Migrator) Run(ctx context.Context) (result MigrationResult, err error) {
	ctx = m.logg.WithField(ctx, "event", "catalog.migrate")

	current, err := m.isCurrent(ctx)
	if err != nil || current {
		return MigrationResult{AlreadyCurrent: current}, err
	}

	lock, err := m.newLock()
	if err != nil {
		return MigrationResult{}, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build migration lock")
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		return MigrationResult{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire migration lock")
	}
	if !locked {
		m.logg.Info(ctx, "another instance is migrating the catalog; skipping")
		return MigrationResult{Skipped: true}, nil
	}
	defer func() {
		if relErr := lock.Release(ctx); relErr != nil {
			err = multierr.Append(err, pkgerrors.Wrap(pkgerrors.CodeDependency, relErr, "release migration lock"))
		}
	}()

	// a replica may have finished between the first check and the lock
	if current, err = m.isCurrent(ctx); err != nil || current {
		return MigrationResult{AlreadyCurrent: current}, err
	}

	catalog, err := m.loader.Load(ctx)
	if err != nil {
		return MigrationResult{}, err
	}
	result.ProductsSource = catalog.ProductsSource
	result.CategoriesSource = catalog.CategoriesSource

	if isLegacySource(catalog.ProductsSource) && len(catalog.Products) > 0 {
		if err := kv.SetJSON(ctx, m.store, kv.KeyProducts, catalog.Products); err != nil {
			return result, err
		}
		result.ProductsCopied = len(catalog.Products)
	}
	if isLegacySource(catalog.CategoriesSource) && len(catalog.Categories) > 0 {
		if err := kv.SetJSON(ctx, m.store, kv.KeyCategories, catalog.Categories); err != nil {
			return result, err
		}
		result.CategoriesCopied = len(catalog.Categories)
	}
	if err := m.store.Set(ctx, kv.KeySchemaVersion, SchemaVersion); err != nil {
		return result, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "stamp schema version")
	}

	m.logg.Info(m.logg.WithFields(ctx, map[string]any{
		"products_copied":   result.ProductsCopied,
		"products_source":   result.ProductsSource,
		"categories_copied": result.CategoriesCopied,
		"categories_source": result.CategoriesSource,
	}), "catalog migrated")
	return result, nil
}

func (m *Migrator) isCurrent(ctx context.Context) (bool, error) {
	value, found, err := m.store.Get(ctx, kv.KeySchemaVersion)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read schema version")
	}
	return found && strings.Trim(strings.TrimSpace(value), `"`) == SchemaVersion, nil
}

func isLegacySource(source string) bool {
	return source == SourceLegacy || strings.HasPrefix(source, SourceScan+":")
}
