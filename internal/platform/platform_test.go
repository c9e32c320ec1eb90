package platform

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/logger"
)

func TestOpenBackendMemory(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: config.StoreBackendMemory}}
	backend, err := OpenBackend(context.Background(), cfg, logger.Nop())
	require.NoError(t, err)
	require.Nil(t, backend.Redis)
	require.NoError(t, backend.Store.Ping(context.Background()))
	require.NoError(t, backend.Close())
}

func TestOpenBackendSQLite(t *testing.T) {
	cfg := &config.Config{
		Store: config.StoreConfig{Backend: config.StoreBackendSQL},
		DB:    config.DBConfig{Driver: "sqlite", DSN: "file:platform_test?mode=memory&cache=shared"},
	}
	ctx := context.Background()
	backend, err := OpenBackend(ctx, cfg, logger.Nop())
	require.NoError(t, err)
	defer backend.Close()

	require.NoError(t, backend.Store.Set(ctx, kv.KeyProducts, `[]`))
	value, found, err := backend.Store.Get(ctx, kv.KeyProducts)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, `[]`, value)
}

func TestOpenBackendRejectsUnknown(t *testing.T) {
	cfg := &config.Config{Store: config.StoreConfig{Backend: "etcd"}}
	_, err := OpenBackend(context.Background(), cfg, logger.Nop())
	require.Error(t, err)
}

func TestLoadCatalogMigratesLegacyKeys(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, kv.KeyMainData, `{"products":[{"id":1,"name":"Casque","price":15000}]}`))

	holder, loader, err := LoadCatalog(ctx, config.SyncConfig{MigrateCatalog: true}, store, logger.Nop())
	require.NoError(t, err)
	require.NotNil(t, loader)
	require.Len(t, holder.Current().Products, 1)

	_, found, err := store.Get(ctx, kv.KeySchemaVersion)
	require.NoError(t, err)
	require.True(t, found, "schema version must be stamped")
}

func TestLoadCatalogEmptyStore(t *testing.T) {
	holder, _, err := LoadCatalog(context.Background(), config.SyncConfig{}, kv.NewMemoryStore(), logger.Nop())
	require.NoError(t, err)
	require.True(t, holder.Current().Empty)
	require.NotEmpty(t, holder.Current().Categories)
}

type unreachableStore struct {
	*kv.MemoryStore
}

func (unreachableStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("dial tcp: connection refused")
}

func TestLoadCatalogKeepsDegradedCatalogWhenStoreFails(t *testing.T) {
	store := unreachableStore{kv.NewMemoryStore()}
	holder, _, err := LoadCatalog(context.Background(), config.SyncConfig{}, store, logger.Nop())
	require.NoError(t, err)

	current := holder.Current()
	require.True(t, current.Empty)
	require.Len(t, current.Categories, 13)
	require.True(t, current.Snapshot.Stale(), "unreadable keys must be flagged for the poller")
	require.Contains(t, current.Snapshot, kv.KeyProducts)
}
