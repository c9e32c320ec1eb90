package storefront

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/laglue/storefront/internal/catalog"
	"github.com/laglue/storefront/pkg/config"
	"github.com/laglue/storefront/pkg/kv"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testConfig() config.StorefrontConfig {
	return config.StorefrontConfig{
		FreeDeliveryThreshold: decimal.NewFromInt(50000),
		DeliveryFee:           decimal.NewFromInt(1500),
		MaxItemQuantity:       10,
		OrderHistoryLimit:     50,
		SessionTTL:            30 * 24 * time.Hour,
	}
}

func testHolder() *catalog.Holder {
	return catalog.NewHolder(&catalog.Catalog{
		Products: []catalog.Product{{ID: 1, Name: "Casque", Price: decimal.NewFromInt(15000)}},
	})
}

type clock struct{ now time.Time }

func (c *clock) Now() time.Time { return c.now }

func TestSessionsAreScopedPerDevice(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	registry, err := NewRegistry(RegistryParams{Store: store, Catalog: testHolder(), Storefront: testConfig()})
	require.NoError(t, err)

	a, err := registry.Session(ctx, "device-a")
	require.NoError(t, err)
	b, err := registry.Session(ctx, "device-b")
	require.NoError(t, err)

	_, err = a.Cart.Add(ctx, 1)
	require.NoError(t, err)
	require.Len(t, a.Cart.Snapshot().Items, 1)
	require.Empty(t, b.Cart.Snapshot().Items)

	_, found, err := store.Get(ctx, "device:device-a:laglue_cart")
	require.NoError(t, err)
	require.True(t, found)

	again, err := registry.Session(ctx, "device-a")
	require.NoError(t, err)
	require.Same(t, a, again)
	require.Equal(t, 2, registry.Len())
}

func TestSessionRestoresPersistedState(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	now := time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Set(ctx, kv.DeviceKey("d1", kv.KeyCart), `[{"id":1,"name":"Casque","price":15000,"quantity":2}]`))
	marker, err := json.Marshal(map[string]any{"whatsapp": "237655912990", "timestamp": now.Add(-24 * time.Hour).UnixMilli()})
	require.NoError(t, err)
	require.NoError(t, store.Set(ctx, kv.DeviceKey("d1", kv.KeyAuth), string(marker)))

	registry, err := NewRegistry(RegistryParams{
		Store:      store,
		Catalog:    testHolder(),
		Storefront: testConfig(),
		Now:        func() time.Time { return now },
	})
	require.NoError(t, err)

	session, err := registry.Session(ctx, "d1")
	require.NoError(t, err)
	require.Equal(t, 2, session.Cart.Totals().Count)
	require.Equal(t, "237655912990", session.Auth.Phone())
}

func TestCorruptCartDegradesToEmpty(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	require.NoError(t, store.Set(ctx, kv.DeviceKey("d1", kv.KeyCart), `{{`))
	registry, err := NewRegistry(RegistryParams{Store: store, Catalog: testHolder(), Storefront: testConfig()})
	require.NoError(t, err)

	session, err := registry.Session(ctx, "d1")
	require.NoError(t, err)
	require.Empty(t, session.Cart.Snapshot().Items)
}

func TestIdleSessionsAreSwept(t *testing.T) {
	ctx := context.Background()
	c := &clock{now: time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)}
	registry, err := NewRegistry(RegistryParams{
		Store:      kv.NewMemoryStore(),
		Catalog:    testHolder(),
		Storefront: testConfig(),
		IdleTTL:    time.Minute,
		Now:        c.Now,
	})
	require.NoError(t, err)

	_, err = registry.Session(ctx, "old")
	require.NoError(t, err)
	c.now = c.now.Add(2 * time.Minute)
	_, err = registry.Session(ctx, "fresh")
	require.NoError(t, err)

	require.Equal(t, 1, registry.Len())
	require.Zero(t, registry.Sweep())
}

func TestSessionRequiresDeviceID(t *testing.T) {
	registry, err := NewRegistry(RegistryParams{Store: kv.NewMemoryStore(), Catalog: testHolder(), Storefront: testConfig()})
	require.NoError(t, err)
	_, err = registry.Session(context.Background(), " ")
	require.Error(t, err)
}

func TestRegistriesSharingAStoreKeepEachOthersWrites(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	newRegistry := func() *Registry {
		registry, err := NewRegistry(RegistryParams{Store: store, Catalog: twoProductHolder(), Storefront: testConfig()})
		require.NoError(t, err)
		return registry
	}
	first, second := newRegistry(), newRegistry()

	a, err := first.Session(ctx, "shared")
	require.NoError(t, err)
	_, err = a.Cart.Add(ctx, 1)
	require.NoError(t, err)

	b, err := second.Session(ctx, "shared")
	require.NoError(t, err)
	_, err = b.Cart.Add(ctx, 2)
	require.NoError(t, err)

	a, err = first.Session(ctx, "shared")
	require.NoError(t, err)
	_, err = a.Cart.Add(ctx, 1)
	require.NoError(t, err)

	var stored []struct {
		ID       int `json:"id"`
		Quantity int `json:"quantity"`
	}
	found, err := kv.GetJSON(ctx, store, kv.DeviceKey("shared", kv.KeyCart), &stored)
	require.NoError(t, err)
	require.True(t, found)
	quantities := map[int]int{}
	for _, line := range stored {
		quantities[line.ID] = line.Quantity
	}
	require.Equal(t, map[int]int{1: 2, 2: 1}, quantities)

	b, err = second.Session(ctx, "shared")
	require.NoError(t, err)
	require.Len(t, b.Cart.Snapshot().Items, 2)
}

func TestRegistriesShareLogin(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()
	first, err := NewRegistry(RegistryParams{Store: store, Catalog: testHolder(), Storefront: testConfig()})
	require.NoError(t, err)
	second, err := NewRegistry(RegistryParams{Store: store, Catalog: testHolder(), Storefront: testConfig()})
	require.NoError(t, err)

	a, err := first.Session(ctx, "shared")
	require.NoError(t, err)
	b, err := second.Session(ctx, "shared")
	require.NoError(t, err)
	require.Empty(t, b.Auth.Phone())

	_, err = a.Auth.Authenticate(ctx, "655912990")
	require.NoError(t, err)
	b, err = second.Session(ctx, "shared")
	require.NoError(t, err)
	require.Equal(t, "237655912990", b.Auth.Phone())

	require.NoError(t, b.Auth.Logout(ctx))
	a, err = first.Session(ctx, "shared")
	require.NoError(t, err)
	require.Empty(t, a.Auth.Phone())
}

func twoProductHolder() *catalog.Holder {
	return catalog.NewHolder(&catalog.Catalog{
		Products: []catalog.Product{
			{ID: 1, Name: "Casque", Price: decimal.NewFromInt(15000)},
			{ID: 2, Name: "Chargeur", Price: decimal.NewFromInt(5000)},
		},
	})
}
