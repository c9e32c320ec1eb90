package kv_test

import (
	"context"
	"testing"
	"time"

	"github.com/laglue/storefront/pkg/kv"
	"github.com/laglue/storefront/pkg/kv/kvtest"
)

func TestMemoryStore(t *testing.T) {
	kvtest.RunStoreSuite(t, func(t *testing.T) kv.Store {
		return kv.NewMemoryStore()
	})
}

func TestMemoryStoreNotifiesSubscribers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	store := kv.NewMemoryStore()
	changes, err := store.Subscribe(ctx)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	if err := store.Set(ctx, kv.KeyProducts, "[]"); err != nil {
		t.Fatalf("set: %v", err)
	}
	got := kvtest.RequireChange(t, changes, time.Second)
	if got.Key != kv.KeyProducts || got.Op != kv.OpSet {
		t.Fatalf("unexpected change %+v", got)
	}

	if err := store.Delete(ctx, kv.KeyProducts); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got = kvtest.RequireChange(t, changes, time.Second)
	if got.Op != kv.OpDelete {
		t.Fatalf("expected delete op, got %+v", got)
	}

	cancel()
	select {
	case _, ok := <-changes:
		if ok {
			t.Fatalf("expected channel to be closed after cancel")
		}
	case <-time.After(time.Second):
		t.Fatalf("subscription not closed after cancel")
	}
}

func TestStoreLock(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	first, err := kv.NewStoreLock(store, kv.KeyMigrationLock, time.Minute)
	if err != nil {
		t.Fatalf("new lock: %v", err)
	}
	second, _ := kv.NewStoreLock(store, kv.KeyMigrationLock, time.Minute)

	if ok, err := first.Acquire(ctx); err != nil || !ok {
		t.Fatalf("first acquire ok=%v err=%v", ok, err)
	}
	if ok, err := second.Acquire(ctx); err != nil || ok {
		t.Fatalf("second acquire should fail, ok=%v err=%v", ok, err)
	}

	// releasing a lock we never held leaves the owner's lock intact
	if err := second.Release(ctx); err != nil {
		t.Fatalf("second release: %v", err)
	}
	if _, found, _ := store.Get(ctx, kv.KeyMigrationLock); !found {
		t.Fatalf("lock should still be held by first")
	}

	if err := first.Release(ctx); err != nil {
		t.Fatalf("first release: %v", err)
	}
	if ok, err := second.Acquire(ctx); err != nil || !ok {
		t.Fatalf("acquire after release ok=%v err=%v", ok, err)
	}

	if _, err := kv.NewStoreLock(nil, "k", 0); err == nil {
		t.Fatalf("expected nil store to fail")
	}
}

func TestJSONHelpers(t *testing.T) {
	ctx := context.Background()
	store := kv.NewMemoryStore()

	var dest []int
	found, err := kv.GetJSON(ctx, store, kv.KeyCart, &dest)
	if err != nil || found {
		t.Fatalf("missing key: found=%v err=%v", found, err)
	}

	if err := kv.SetJSON(ctx, store, kv.KeyCart, []int{1, 2}); err != nil {
		t.Fatalf("set json: %v", err)
	}
	found, err = kv.GetJSON(ctx, store, kv.KeyCart, &dest)
	if err != nil || !found || len(dest) != 2 {
		t.Fatalf("round trip failed: found=%v err=%v dest=%v", found, err, dest)
	}

	_ = store.Set(ctx, kv.KeyCart, "{not json")
	if _, err := kv.GetJSON(ctx, store, kv.KeyCart, &dest); err == nil {
		t.Fatalf("expected corrupt blob to error")
	}
}

func TestIsCatalogKey(t *testing.T) {
	cases := map[string]bool{
		kv.KeyProducts:                          true,
		kv.KeyCategories:                        true,
		kv.KeyMainData:                          true,
		"laglue_products_backup":                true,
		"laglue_categories_v2":                  true,
		kv.KeyCart:                              false,
		kv.KeyAdminOrders:                       false,
		kv.DeviceKey("dev", "laglue_products"):  false,
		kv.InstanceKey("api-1", kv.KeyLastSync): false,
		kv.KeyLastSync:                          false,
	}
	for key, want := range cases {
		if got := kv.IsCatalogKey(key); got != want {
			t.Fatalf("IsCatalogKey(%q)=%v want %v", key, got, want)
		}
	}
}

func TestScopedKeys(t *testing.T) {
	if got := kv.DeviceKey("abc", kv.KeyCart); got != "device:abc:laglue_cart" {
		t.Fatalf("unexpected device key %s", got)
	}
	if got := kv.InstanceKey("api-1", kv.KeyLastSync); got != "instance:api-1:laglue_last_sync" {
		t.Fatalf("unexpected instance key %s", got)
	}
	if got := kv.InstanceKey(" ", kv.KeyLastSync); got != kv.KeyLastSync {
		t.Fatalf("blank instance must leave the key alone, got %s", got)
	}
}
