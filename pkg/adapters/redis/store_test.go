package redis_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	backend "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/redis"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

func newClient(t *testing.T) (*miniredis.Miniredis, *backend.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := backend.NewClient(&backend.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisStore_Contract(t *testing.T) {
	_, client := newClient(t)
	ports.RunStoreContract(t, redis.NewFromClient(client))
}

func TestRedisStore_KeyLayout(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r1", AppID: "app"}))
	require.NoError(t, store.PushEvents(ctx, []*domain.EventRecord{{ID: "e1", RunID: "r1", Sequence: 1}}))

	assert.True(t, mr.Exists("exec:run:r1"))
	assert.True(t, mr.Exists("exec:app:runs:app"))
	assert.True(t, mr.Exists("exec:event:e1"))
	assert.True(t, mr.Exists("exec:run:events:r1"))
	assert.Equal(t, redis.DefaultTTL, mr.TTL("exec:run:r1"))
}

func TestRedisStore_TTL_Expiration(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithTTL(time.Minute))
	ctx := context.Background()

	soon := time.Now().UTC().Add(10 * time.Second)
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "short", AppID: "app", ExpiresAt: &soon}))
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "default", AppID: "app"}))

	mr.FastForward(30 * time.Second)
	_, err := store.GetRun(ctx, "short")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = store.GetRun(ctx, "default")
	require.NoError(t, err)

	// Expired records drop out of listings even before the index expires.
	runs, err := store.ListRunsForApp(ctx, "app", 10, "")
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "default", runs[0].ID)

	mr.FastForward(time.Minute)
	_, err = store.GetRun(ctx, "default")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
}

func TestRedisStore_DeliveredKeepsTTL(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client)
	ctx := context.Background()

	expires := time.Now().UTC().Add(time.Hour)
	require.NoError(t, store.PushEvents(ctx, []*domain.EventRecord{{ID: "e1", RunID: "r", Sequence: 1, ExpiresAt: expires}}))
	before := mr.TTL("exec:event:e1")
	require.NoError(t, store.MarkEventsDelivered(ctx, []string{"e1", "missing"}))

	assert.Equal(t, before, mr.TTL("exec:event:e1"))
	events, err := store.GetEvents(ctx, domain.EventQuery{RunID: "r"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.True(t, events[0].Delivered)
}

func TestRedisStore_Prefix(t *testing.T) {
	mr, client := newClient(t)
	store := redis.NewFromClient(client, redis.WithPrefix("custom:"))

	require.NoError(t, store.CreateRun(context.Background(), &domain.RunRecord{ID: "r1", AppID: "app"}))
	assert.True(t, mr.Exists("custom:run:r1"), "Expected key with custom prefix to exist")
	assert.True(t, mr.Exists("custom:app:runs:app"), "Expected index with custom prefix to exist")
}
