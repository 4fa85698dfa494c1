package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

func TestMemoryStore_Contract(t *testing.T) {
	ports.RunStoreContract(t, memory.NewStore())
}

func TestMemoryLogStore_Contract(t *testing.T) {
	ports.LogStoreContract(t, memory.NewLogStore())
}

func TestMemoryLoader_Contract(t *testing.T) {
	loader, err := memory.NewFromBoards(domain.NewBoard("hello", "Hello"), domain.NewBoard("bye", "Bye"))
	require.NoError(t, err)
	ports.BoardLoaderContract(t, loader, []string{"bye", "hello"})
}

func TestMemoryLoader_ReturnsCopies(t *testing.T) {
	loader, err := memory.NewFromBoards(domain.NewBoard("b", "Board"))
	require.NoError(t, err)

	first, err := loader.GetBoard(context.Background(), "b")
	require.NoError(t, err)
	first.Name = "mutated"

	second, err := loader.GetBoard(context.Background(), "b")
	require.NoError(t, err)
	assert.Equal(t, "Board", second.Name)
}

func TestMemoryStore_DeleteExpired(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	past := time.Now().UTC().Add(-time.Minute)

	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "old", AppID: "app", ExpiresAt: &past}))
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "forever", AppID: "app"}))
	require.NoError(t, store.PushEvents(ctx, []*domain.EventRecord{
		{ID: "e1", RunID: "old", Sequence: 1, ExpiresAt: past},
		{ID: "e2", RunID: "old", Sequence: 2, ExpiresAt: past.Add(time.Hour)},
	}))

	n, err := store.DeleteExpiredRuns(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	_, err = store.GetRun(ctx, "old")
	assert.ErrorIs(t, err, domain.ErrRunNotFound)
	_, err = store.GetRun(ctx, "forever")
	assert.NoError(t, err)

	n, err = store.DeleteExpiredEvents(ctx, time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
	events, err := store.GetEvents(ctx, domain.EventQuery{RunID: "old"})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "e2", events[0].ID)
}

func TestMemoryStore_CreateDuplicate(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r"}))
	assert.Error(t, store.CreateRun(ctx, &domain.RunRecord{ID: "r"}))
}
