package counterstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", "1", time.Minute))

	val, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1", val)

	_, found, err = store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreLazyExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "a", "1", time.Minute))

	// Still fresh just before the deadline
	now = now.Add(59 * time.Second)
	_, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)

	// Evicted on read once past the deadline
	now = now.Add(2 * time.Second)
	_, found, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreZeroTTLNeverExpires(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "a", "1", 0))

	now = now.Add(24 * time.Hour)
	_, found, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestMemoryStoreDelete(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "a", "1", time.Minute))

	existed, err := store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.True(t, existed)

	existed, err = store.Delete(ctx, "a")
	require.NoError(t, err)
	assert.False(t, existed)
}

func TestMemoryStoreListByPrefix(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "auth:1.2.3.4", "1", time.Minute))
	require.NoError(t, store.Put(ctx, "auth:5.6.7.8", "1", time.Minute))
	require.NoError(t, store.Put(ctx, "enhancer:1.2.3.4", "1", time.Minute))
	require.NoError(t, store.Put(ctx, "auth:expired", "1", time.Second))

	now = now.Add(30 * time.Second)

	keys, err := store.ListByPrefix(ctx, "auth:", 0)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"auth:1.2.3.4", "auth:5.6.7.8"}, keys)
}

func TestMemoryStoreListByPrefixLimit(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	for _, key := range []string{"p:a", "p:b", "p:c"} {
		require.NoError(t, store.Put(ctx, key, "1", time.Minute))
	}

	keys, err := store.ListByPrefix(ctx, "p:", 2)
	require.NoError(t, err)
	assert.Len(t, keys, 2)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	now := time.Now()
	store.now = func() time.Time { return now }

	require.NoError(t, store.Put(ctx, "old", "1", time.Second))
	now = now.Add(time.Minute)

	// Sweep runs when the map crosses the threshold; force it directly
	store.mu.Lock()
	store.sweep()
	store.mu.Unlock()

	store.mu.Lock()
	_, stillThere := store.entries["old"]
	store.mu.Unlock()
	assert.False(t, stillThere)
}
