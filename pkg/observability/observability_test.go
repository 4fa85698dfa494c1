package observability_test

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/observability"
)

func runBoard(t *testing.T, hooks domain.LifecycleHooks, script string) *domain.LogMeta {
	t.Helper()
	reg := nodes.NewRegistry()
	b := dsl.New("b1", "metrics", reg)
	b.Add("start", "events_simple").Go("print")
	b.Add("print", "log_print").Go("lua")
	b.Add("lua", "script_lua").Set("script", script)
	board, err := b.Build()
	require.NoError(t, err)

	r, err := flow.NewRun(board, reg, &domain.RunPayload{ID: "start"},
		flow.WithHooks(hooks),
		flow.WithSender(&intercom.Recorder{}),
	)
	require.NoError(t, err)
	meta, _ := r.Execute(context.Background())
	return meta
}

func TestMetrics_RecordsRunsAndNodes(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	m := observability.NewMetrics(reg)

	runBoard(t, m.Hooks(), `return 1`)
	runBoard(t, m.Hooks(), `error("boom")`)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal(domain.RunStatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RunsTotal(domain.RunStatusFailed)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.NodeExecutions("log_print", domain.NodeStateSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NodeExecutions("script_lua", domain.NodeStateError)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.StreamEvents(nodes.EventLog)))

	count, err := testutil.GatherAndCount(reg, "flowlike_node_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 3, count, "one series per node kind")
}

func TestTracker_DropsFinishedRuns(t *testing.T) {
	tracker := observability.NewTracker()

	var seen []observability.Snapshot
	observer := domain.LifecycleHooks{
		OnNodeStart: func(_ context.Context, e *domain.NodeEvent) {
			if s, ok := tracker.Snapshot(e.RunID); ok {
				seen = append(seen, s)
			}
		},
	}

	meta := runBoard(t, tracker.Hooks().Merge(observer), `return 1`)

	require.Len(t, seen, 3)
	assert.Equal(t, []string{"start"}, seen[0].ActiveNodes)
	assert.Equal(t, []string{"lua"}, seen[2].ActiveNodes)
	assert.Equal(t, 2, seen[2].Executed)
	assert.Equal(t, "b1", seen[2].BoardID)

	_, ok := tracker.Snapshot(meta.RunID)
	assert.False(t, ok)
	assert.Empty(t, tracker.Snapshots())
}
