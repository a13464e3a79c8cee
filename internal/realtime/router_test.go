package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/swiftdrop/delivery-gateway/pkg/redis"
)

func setupTestRouter(t *testing.T) *Router {
	t.Helper()

	mr := miniredis.RunT(t)
	adapter, err := redis.NewRedisAdapter(t.Name()+"-"+mr.Addr(), "", &goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	})
	require.NoError(t, err)

	return NewRouter(adapter)
}

func TestGroupForUser(t *testing.T) {
	assert.Equal(t, "user_1_notifications", GroupForUser(1))
	assert.Equal(t, "user_42_notifications", GroupForUser(42))
}

func TestNewEnvelope(t *testing.T) {
	createdAt := time.Date(2026, 3, 14, 15, 9, 26, 0, time.FixedZone("IRST", 3*3600+1800))

	env := NewEnvelope("Order Confirmed", "Your order #123456 has been confirmed",
		map[string]any{"order_id": "123456"}, createdAt)

	assert.Equal(t, EnvelopeType, env.Type)
	assert.Equal(t, "Order Confirmed", env.Title)
	assert.Equal(t, "123456", env.Data["order_id"])
	// Timestamps normalize to UTC on the wire
	assert.Equal(t, "2026-03-14T11:39:26Z", env.CreatedAt)
}

func TestRouter_PublishWithoutSubscribers(t *testing.T) {
	router := setupTestRouter(t)

	env := NewEnvelope("Order Placed", "Your order #123456 has been placed", nil, time.Now())

	// Nobody connected is a no-op, not an error
	n, err := router.PublishToUser(context.Background(), 1, env)
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestRouter_PublishSubscribeRoundTrip(t *testing.T) {
	router := setupTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	envelopes, closeSub := router.Subscribe(ctx, GroupForUser(1))
	defer closeSub()

	// Let the subscriber attach before publishing
	time.Sleep(50 * time.Millisecond)

	sent := NewEnvelope("Order Delivered", "Your order #123456 has been delivered",
		map[string]any{"order_id": "123456", "status": "delivered"}, time.Now())

	n, err := router.PublishToUser(context.Background(), 1, sent)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	select {
	case got := <-envelopes:
		assert.Equal(t, EnvelopeType, got.Type)
		assert.Equal(t, sent.Title, got.Title)
		assert.Equal(t, sent.Message, got.Message)
		assert.Equal(t, "delivered", got.Data["status"])
		assert.Equal(t, sent.CreatedAt, got.CreatedAt)
	case <-time.After(2 * time.Second):
		t.Fatal("envelope not received")
	}
}

func TestRouter_GroupsAreIsolated(t *testing.T) {
	router := setupTestRouter(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	user1, close1 := router.Subscribe(ctx, GroupForUser(1))
	defer close1()
	user2, close2 := router.Subscribe(ctx, GroupForUser(2))
	defer close2()

	time.Sleep(50 * time.Millisecond)

	env := NewEnvelope("New Rating", "You received a 5.0 star rating", nil, time.Now())
	_, err := router.PublishToUser(context.Background(), 1, env)
	require.NoError(t, err)

	select {
	case got := <-user1:
		assert.Equal(t, "New Rating", got.Title)
	case <-time.After(2 * time.Second):
		t.Fatal("user 1 did not receive the envelope")
	}

	select {
	case <-user2:
		t.Fatal("user 2 must not receive user 1's envelope")
	case <-time.After(150 * time.Millisecond):
	}
}
