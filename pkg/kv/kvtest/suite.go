// Package kvtest holds the behaviour every kv.Store implementation must share.
package kvtest

import (
	"context"
	"testing"
	"time"

	"github.com/laglue/storefront/pkg/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunStoreSuite exercises a fresh store returned by newStore for each case.
func RunStoreSuite(t *testing.T, newStore func(t *testing.T) kv.Store) {
	t.Helper()

	t.Run("get missing key", func(t *testing.T) {
		store := newStore(t)
		value, found, err := store.Get(context.Background(), "laglue_missing")
		require.NoError(t, err)
		assert.False(t, found)
		assert.Empty(t, value)
	})

	t.Run("set get overwrite delete", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		require.NoError(t, store.Set(ctx, kv.KeyCart, `[{"id":1}]`))
		value, found, err := store.Get(ctx, kv.KeyCart)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, `[{"id":1}]`, value)

		require.NoError(t, store.Set(ctx, kv.KeyCart, `[]`))
		value, _, err = store.Get(ctx, kv.KeyCart)
		require.NoError(t, err)
		assert.Equal(t, `[]`, value)

		require.NoError(t, store.Delete(ctx, kv.KeyCart))
		_, found, err = store.Get(ctx, kv.KeyCart)
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, store.Delete(ctx, kv.KeyCart), "deleting an absent key is not an error")
	})

	t.Run("keys lists every live key", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)
		require.NoError(t, store.Set(ctx, kv.KeyProducts, `[]`))
		require.NoError(t, store.Set(ctx, kv.DeviceKey("dev-1", kv.KeyCart), `[]`))

		keys, err := store.Keys(ctx)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{kv.KeyProducts, "device:dev-1:laglue_cart"}, keys)
	})

	t.Run("setnx only once", func(t *testing.T) {
		ctx := context.Background()
		store := newStore(t)

		ok, err := store.SetNX(ctx, kv.KeyMigrationLock, "owner-a", time.Minute)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = store.SetNX(ctx, kv.KeyMigrationLock, "owner-b", time.Minute)
		require.NoError(t, err)
		assert.False(t, ok)

		value, found, err := store.Get(ctx, kv.KeyMigrationLock)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, "owner-a", value)
	})
}

// RequireChange waits for the next change on ch or fails the test.
func RequireChange(t *testing.T, ch <-chan kv.Change, timeout time.Duration) kv.Change {
	t.Helper()
	select {
	case change, ok := <-ch:
		require.True(t, ok, "subscription closed")
		return change
	case <-time.After(timeout):
		t.Fatalf("no change received within %v", timeout)
	}
	return kv.Change{}
}
