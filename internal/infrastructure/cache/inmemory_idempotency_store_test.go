package cache

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) *InMemoryIdempotencyStore {
	t.Helper()
	store := NewInMemoryIdempotencyStore()
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestInMemoryIdempotencyStore_FirstMarkWins(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	again, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.False(t, again)
}

func TestInMemoryIdempotencyStore_DistinctKeysIndependent(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	first, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	other, err := store.MarkProcessed(ctx, "evt-2", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)

	assert.Equal(t, 2, store.Size())
}

func TestInMemoryIdempotencyStore_IsProcessed(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	seen, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	_, err = store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)

	seen, err = store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.True(t, seen)
}

func TestInMemoryIdempotencyStore_ExpiredKeyReusable(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	_, err := store.MarkProcessed(ctx, "evt-1", time.Millisecond)
	require.NoError(t, err)

	time.Sleep(10 * time.Millisecond)

	seen, err := store.IsProcessed(ctx, "evt-1")
	require.NoError(t, err)
	assert.False(t, seen)

	// After expiry the key can be claimed again.
	first, err := store.MarkProcessed(ctx, "evt-1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
}

func TestInMemoryIdempotencyStore_ConcurrentClaims(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for range 100 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			first, err := store.MarkProcessed(ctx, "contested", time.Hour)
			assert.NoError(t, err)
			if first {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestInMemoryIdempotencyStore_CloseIdempotent(t *testing.T) {
	store := NewInMemoryIdempotencyStore()

	require.NoError(t, store.Close())
	require.NoError(t, store.Close())
}

func TestInMemoryIdempotencyStore_Size(t *testing.T) {
	store := newStore(t)
	ctx := context.Background()

	assert.Zero(t, store.Size())
	for i := range 5 {
		_, err := store.MarkProcessed(ctx, fmt.Sprintf("evt-%d", i), time.Hour)
		require.NoError(t, err)
	}
	assert.Equal(t, 5, store.Size())
}
