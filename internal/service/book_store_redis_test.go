package service

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Industry-Academic-SW-Capstone/Backend-sub000/internal/models"
)

func newTestBookStore(t *testing.T) (*RedisBookStore, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisBookStore(client, zap.NewNop()), client
}

func bookOrder(id string) *models.Order {
	return &models.Order{
		ID: id, AccountID: "acct-1", StockCode: "005930",
		Side: models.Buy, Price: dec("100"), Quantity: 10,
		Status: models.Pending, CreatedAt: time.Now(),
	}
}

func TestBookStoreRemoveOrderIdempotent(t *testing.T) {
	store, _ := newTestBookStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddOrder(ctx, bookOrder("ord-1")))

	require.NoError(t, store.RemoveOrder(ctx, "ord-1", "005930", models.Buy))
	require.NoError(t, store.RemoveOrder(ctx, "ord-1", "005930", models.Buy))

	present, err := store.Contains(ctx, "ord-1", "005930", models.Buy)
	require.NoError(t, err)
	assert.False(t, present)

	// Removing an order that never existed is a no-op too.
	require.NoError(t, store.RemoveOrder(ctx, "ord-never", "005930", models.Buy))
}

func TestBookStoreContainsRequiresIndexMembership(t *testing.T) {
	store, client := newTestBookStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddOrder(ctx, bookOrder("ord-1")))

	present, err := store.Contains(ctx, "ord-1", "005930", models.Buy)
	require.NoError(t, err)
	require.True(t, present)

	// Lose only the index member, the way a partial two-key write would.
	require.NoError(t, client.ZRem(ctx, bookIndexKey("005930", models.Buy), "ord-1").Err())

	entries, err := store.FetchMatchingEntries(ctx, "005930", models.Sell, dec("100"), 100)
	require.NoError(t, err)
	require.Empty(t, entries, "an index-less order is unmatchable")

	present, err = store.Contains(ctx, "ord-1", "005930", models.Buy)
	require.NoError(t, err)
	assert.False(t, present, "an unmatchable order must read as absent so recovery re-inserts it")

	// Re-insert restores both halves and the order matches again.
	require.NoError(t, store.AddOrder(ctx, bookOrder("ord-1")))
	entries, err = store.FetchMatchingEntries(ctx, "005930", models.Sell, dec("100"), 100)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestBookStoreFetchPurgesCorruptEntry(t *testing.T) {
	store, client := newTestBookStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddOrder(ctx, bookOrder("ord-1")))
	require.NoError(t, client.HSet(ctx, bookValueKey("ord-1"), "price", "garbage").Err())

	entries, err := store.FetchMatchingEntries(ctx, "005930", models.Sell, dec("100"), 100)
	require.NoError(t, err)
	assert.Empty(t, entries)

	present, err := store.Contains(ctx, "ord-1", "005930", models.Buy)
	require.NoError(t, err)
	assert.False(t, present, "corrupt entry purged, never surfaced")
}

func TestBookStoreUpdateRemainingRemovesAtZero(t *testing.T) {
	store, _ := newTestBookStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddOrder(ctx, bookOrder("ord-1")))

	require.NoError(t, store.UpdateRemaining(ctx, "ord-1", "005930", models.Buy, 4))
	entries, err := store.FetchMatchingEntries(ctx, "005930", models.Sell, dec("100"), 100)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.EqualValues(t, 4, entries[0].Remaining)

	require.NoError(t, store.UpdateRemaining(ctx, "ord-1", "005930", models.Buy, 0))
	present, err := store.Contains(ctx, "ord-1", "005930", models.Buy)
	require.NoError(t, err)
	assert.False(t, present)
}
