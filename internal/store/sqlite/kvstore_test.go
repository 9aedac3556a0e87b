package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/hay-kot/storefront/internal/core/kv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *KVStore {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "storage.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open("  ")
	require.Error(t, err)
}

func TestKVStore_SetGetDelete(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, kv.KeyCart, `[{"id":1,"quantity":2}]`))

	entry, err := store.Get(ctx, kv.KeyCart)
	require.NoError(t, err)
	assert.Equal(t, kv.KeyCart, entry.Key)
	assert.Equal(t, `[{"id":1,"quantity":2}]`, entry.Value)
	assert.False(t, entry.CreatedAt.IsZero())

	require.NoError(t, store.Delete(ctx, kv.KeyCart))

	_, err = store.Get(ctx, kv.KeyCart)
	require.ErrorIs(t, err, kv.ErrKeyNotFound)
	require.ErrorIs(t, store.Delete(ctx, kv.KeyCart), kv.ErrKeyNotFound)
}

func TestKVStore_UpdatePreservesCreatedAt(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "k", "v1"))
	first, err := store.Get(ctx, "k")
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, store.Set(ctx, "k", "v2"))
	second, err := store.Get(ctx, "k")
	require.NoError(t, err)

	assert.Equal(t, "v2", second.Value)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestKVStore_ListPrefix(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Set(ctx, "cart:b", "2"))
	require.NoError(t, store.Set(ctx, "cart:a", "1"))
	require.NoError(t, store.Set(ctx, "user", "x"))

	entries, err := store.List(ctx, "cart:")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "cart:a", entries[0].Key)
	assert.Equal(t, "cart:b", entries[1].Key)

	all, err := store.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestKVStore_CanceledContext(t *testing.T) {
	store := openTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.Get(ctx, "k")
	require.ErrorIs(t, err, context.Canceled)
}
