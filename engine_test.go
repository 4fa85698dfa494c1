package flowlike_test

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	flowlike "github.com/TM9657/flow-like-sub010"
	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
)

func greetBoard(t *testing.T, reg *registry.Registry) *domain.Board {
	t.Helper()
	b := dsl.New("greet", "Greet", reg)
	b.Add("start", "events_simple").Go("print")
	b.Add("print", "log_print").Set("message", "hello")
	board, err := b.Build()
	require.NoError(t, err)
	return board
}

func TestEngine_Execute(t *testing.T) {
	var mu sync.Mutex
	var events []intercom.Event
	var ended []string

	eng := flowlike.New(
		flowlike.WithStreamCapacity(1),
		flowlike.WithEventHandler(func(_ context.Context, batch []intercom.Event) error {
			mu.Lock()
			defer mu.Unlock()
			events = append(events, batch...)
			return nil
		}),
		flowlike.WithHooks(domain.LifecycleHooks{
			OnNodeEnd: func(_ context.Context, e *domain.NodeEvent) {
				mu.Lock()
				defer mu.Unlock()
				ended = append(ended, e.NodeID)
			},
		}),
	)

	run, meta, err := eng.Execute(context.Background(), greetBoard(t, eng.Registry()), nil)
	require.NoError(t, err)
	assert.Equal(t, domain.RunStatusSuccess, meta.Status)
	assert.Equal(t, "start", meta.NodeID, "first start node is picked")
	assert.Same(t, meta, run.Meta())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 1)
	assert.Equal(t, nodes.EventLog, events[0].Type)
	assert.Equal(t, "hello", events[0].Payload.(nodes.LogEvent).Message)
	assert.Equal(t, []string{"start", "print"}, ended)
}

func TestEngine_ExecuteErrors(t *testing.T) {
	eng := flowlike.New()

	headless := domain.NewBoard("headless", "Headless")
	_, _, err := eng.Execute(context.Background(), headless, nil)
	require.ErrorIs(t, err, domain.ErrNoStartNode)

	_, _, err = eng.Execute(context.Background(), greetBoard(t, eng.Registry()), &domain.RunPayload{ID: "ghost"})
	require.ErrorIs(t, err, domain.ErrNodeNotFound)

	b := dsl.New("broken", "Broken", eng.Registry())
	b.Add("start", "events_simple").Go("lua")
	b.Add("lua", "script_lua").Set("script", `error("boom")`)
	board, err := b.Build()
	require.NoError(t, err)

	run, meta, err := eng.Execute(context.Background(), board, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
	assert.Equal(t, domain.RunStatusFailed, meta.Status)
	assert.Len(t, run.UnhandledErrors(), 1)
}

func TestEngine_ExecLimitAndOverrides(t *testing.T) {
	eng := flowlike.New(flowlike.WithExecLimit(1), flowlike.WithConcurrency(2), flowlike.WithRegistry(nodes.NewRegistry()))

	var runIDs []string
	hook := flow.WithHooks(domain.LifecycleHooks{
		OnRunEnd: func(_ context.Context, m *domain.LogMeta) { runIDs = append(runIDs, m.RunID) },
	})
	_, meta, err := eng.Execute(context.Background(), greetBoard(t, eng.Registry()), nil, flow.WithRunID("fixed"), hook)
	require.NoError(t, err)
	assert.Equal(t, "fixed", meta.RunID)
	assert.Equal(t, []string{"fixed"}, runIDs)
}

func TestEngine_Cancelled(t *testing.T) {
	eng := flowlike.New()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, meta, err := eng.Execute(ctx, greetBoard(t, eng.Registry()), nil)
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, domain.RunStatusStopped, meta.Status)
}
