package redis

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/gopolar/pkg/billing"
)

// setupTestRedis creates a Redis client for testing
// Requires Redis running on localhost:6379
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}

	return client
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	client := setupTestRedis(t)
	t.Cleanup(func() { _ = client.Close() })

	store, err := New(client, Config{KeyPrefix: "gopolar_test:"})
	require.NoError(t, err)
	return store
}

func TestNew_RequiresClient(t *testing.T) {
	_, err := New(nil, Config{})
	assert.Error(t, err)
}

func TestStore_CheckoutSessionLifecycle(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	session := &billing.CheckoutSession{
		CheckoutID:    "chk_1",
		ProductID:     "prod_1",
		CustomerEmail: "a@b.com",
		Status:        "open",
		CreatedAt:     time.Now().UTC(),
	}
	require.NoError(t, store.CreateCheckoutSession(ctx, session))

	got, err := store.GetCheckoutSession(ctx, "chk_1")
	require.NoError(t, err)
	assert.Equal(t, "open", got.Status)
	assert.Equal(t, "a@b.com", got.CustomerEmail)

	require.NoError(t, store.UpdateCheckoutStatus(ctx, "chk_1", "completed"))

	got, err = store.GetCheckoutSession(ctx, "chk_1")
	require.NoError(t, err)
	assert.Equal(t, "completed", got.Status)
	assert.NotNil(t, got.UpdatedAt, "UpdatedAt should be set after update")
}

func TestStore_GetOrder_NotFound(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.GetOrder(context.Background(), "ord_missing")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestStore_UpdateOrderStatus_NotFound(t *testing.T) {
	store := setupTestStore(t)

	err := store.UpdateOrderStatus(context.Background(), "ord_missing", "refunded")
	assert.ErrorIs(t, err, billing.ErrNotFound)
}

func TestStore_ListOrders_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		err := store.CreateOrder(ctx, &billing.Order{
			OrderID:   fmt.Sprintf("ord_%d", i),
			Currency:  "usd",
			Status:    "paid",
			CreatedAt: time.Now().UTC(),
		})
		require.NoError(t, err)
		time.Sleep(time.Millisecond) // distinct recency scores
	}

	orders, err := store.ListOrders(ctx, 3)
	require.NoError(t, err)
	require.Len(t, orders, 3)
	assert.Equal(t, "ord_4", orders[0].OrderID)
	assert.Equal(t, "ord_3", orders[1].OrderID)
}

func TestStore_ListOrdersByCustomer(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for _, o := range []*billing.Order{
		{OrderID: "ord_a1", CustomerID: "cus_a", Currency: "usd", Status: "paid", CreatedAt: time.Now().UTC()},
		{OrderID: "ord_b1", CustomerID: "cus_b", Currency: "usd", Status: "paid", CreatedAt: time.Now().UTC()},
		{OrderID: "ord_a2", CustomerID: "cus_a", Currency: "usd", Status: "paid", CreatedAt: time.Now().UTC()},
	} {
		require.NoError(t, store.CreateOrder(ctx, o))
	}

	orders, err := store.ListOrdersByCustomer(ctx, "cus_a", 10)
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	for _, o := range orders {
		assert.Equal(t, "cus_a", o.CustomerID)
	}
}

func TestStore_SubscriptionUpdate_PreservesBounds(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	start := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	end := start.AddDate(0, 1, 0)
	require.NoError(t, store.CreateSubscription(ctx, &billing.Subscription{
		SubscriptionID:     "sub_1",
		CustomerID:         "cus_1",
		Status:             "active",
		CurrentPeriodStart: &start,
		CurrentPeriodEnd:   &end,
		CreatedAt:          time.Now().UTC(),
	}))

	// Status-only update must keep the stored period bounds.
	require.NoError(t, store.UpdateSubscription(ctx, billing.SubscriptionUpdate{
		SubscriptionID: "sub_1",
		Status:         "canceled",
	}))

	sub, err := store.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	assert.Equal(t, "canceled", sub.Status)
	require.NotNil(t, sub.CurrentPeriodStart)
	assert.True(t, sub.CurrentPeriodStart.Equal(start))
	require.NotNil(t, sub.CurrentPeriodEnd)
	assert.True(t, sub.CurrentPeriodEnd.Equal(end))
}

func TestStore_SetSubscriptionCancellation(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.CreateSubscription(ctx, &billing.Subscription{
		SubscriptionID: "sub_1", Status: "active", CreatedAt: time.Now().UTC(),
	}))

	require.NoError(t, store.SetSubscriptionCancellation(ctx, "sub_1", true))
	sub, err := store.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, sub.CancelAtPeriodEnd)
	assert.True(t, *sub.CancelAtPeriodEnd)

	require.NoError(t, store.SetSubscriptionCancellation(ctx, "sub_1", false))
	sub, err = store.GetSubscription(ctx, "sub_1")
	require.NoError(t, err)
	require.NotNil(t, sub.CancelAtPeriodEnd)
	assert.False(t, *sub.CancelAtPeriodEnd)

	err = store.SetSubscriptionCancellation(ctx, "sub_missing", true)
	assert.ErrorIs(t, err, billing.ErrNotFound)
}
