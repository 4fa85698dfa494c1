package runs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/adapters/memory"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/ports"
)

type countingLocker struct {
	mu       sync.Mutex
	locked   map[string]int
	unlocked map[string]int
	fail     error
}

func (l *countingLocker) Lock(_ context.Context, key string, _ time.Duration) (ports.UnlockFunc, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return nil, l.fail
	}
	l.locked[key]++
	return func(context.Context) error {
		l.mu.Lock()
		defer l.mu.Unlock()
		l.unlocked[key]++
		return nil
	}, nil
}

func newTestManager(opts ...Option) *Manager {
	loader, _ := memory.NewFromBoards()
	return NewManager(loader, memory.NewStore(), nodes.NewRegistry(), opts...)
}

func TestManager_LockLifecycle(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()
	count := 10000

	// 1. Lock many runs
	for i := 0; i < count; i++ {
		_ = mgr.WithLock(ctx, fmt.Sprintf("run-%d", i), func(context.Context) error { return nil })
	}

	// 2. Nothing may stay behind
	assert.Equal(t, 0, mgr.locks.len())
}

func TestManager_LockSerializes(t *testing.T) {
	mgr := newTestManager()
	ctx := context.Background()

	var (
		wg      sync.WaitGroup
		inside  int
		maxSeen int
		mu      sync.Mutex
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = mgr.WithLock(ctx, "run-1", func(context.Context) error {
				mu.Lock()
				inside++
				maxSeen = max(maxSeen, inside)
				mu.Unlock()

				time.Sleep(time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 0, mgr.locks.len())
}

func TestManager_DistributedLock(t *testing.T) {
	locker := &countingLocker{locked: map[string]int{}, unlocked: map[string]int{}}
	mgr := newTestManager(WithLocker(locker))
	ctx := context.Background()

	err := mgr.WithLock(ctx, "run-1", func(context.Context) error { return errors.New("inner") })
	require.EqualError(t, err, "inner")
	assert.Equal(t, 1, locker.locked["run-1"])
	assert.Equal(t, 1, locker.unlocked["run-1"], "released even when fn fails")

	locker.fail = errors.New("busy")
	called := false
	err = mgr.WithLock(ctx, "run-1", func(context.Context) error { called = true; return nil })
	require.ErrorContains(t, err, "failed to acquire distributed lock")
	assert.False(t, called)
	assert.Equal(t, 0, mgr.locks.len())
}
