package ledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/pulse/pkg/ledger"
	"github.com/dmitrymomot/pulse/pkg/notifications"
)

func TestRedisCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	c := ledger.NewRedisCache(client, "pulse:")
	ctx := context.Background()

	_, ok, err := c.Get(ctx, "delivery:n1:c1")
	require.NoError(t, err)
	assert.False(t, ok)

	rec := ledger.Record{ID: "r1", NotificationID: "n1", ConnectionID: "c1", Channel: notifications.ChannelWeb, Status: notifications.StatusSent}
	require.NoError(t, c.Set(ctx, "delivery:n1:c1", rec, time.Minute))
	assert.True(t, mr.Exists("pulse:delivery:n1:c1"))

	got, ok, err := c.Get(ctx, "delivery:n1:c1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, rec.Status, got.Status)

	mr.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, "delivery:n1:c1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, "delivery:n1:c1", rec, time.Minute))
	require.NoError(t, c.Delete(ctx, "delivery:n1:c1"))
	assert.False(t, mr.Exists("pulse:delivery:n1:c1"))
}

func TestLedger_WithRedisCache(t *testing.T) {
	t.Parallel()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, _, _ := newLedger(t, ledger.NewMemoryStore(),
		ledger.WithCache(ledger.NewRedisCache(client, "")),
		ledger.WithCacheTTL(time.Minute),
	)
	ctx := context.Background()

	_, err := l.Record(ctx, delivery("n1", "c1", notifications.ChannelWeb, notifications.StatusSent))
	require.NoError(t, err)
	assert.True(t, mr.Exists("delivery:n1:c1"))
	assert.Equal(t, time.Minute, mr.TTL("delivery:n1:c1"))

	r, err := l.UpdateStatus(ctx, "n1", "c1", notifications.StatusDelivered, nil)
	require.NoError(t, err)
	assert.Equal(t, notifications.StatusDelivered, r.Status)
}
