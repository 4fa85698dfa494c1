package dsl_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/dsl"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
)

func TestBuilder_SimpleFlow(t *testing.T) {
	reg := nodes.NewRegistry()

	// 1. Build the board using DSL
	b := dsl.New("hello", "Hello", reg).Version(1, 0, 0)
	b.Add("start", "events_simple").Go("first")
	b.Add("first", "log_print").Set("message", "one").Go("second")
	b.Add("second", "log_print").Set("message", "two").At(10, 20)

	board, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, "start", b.StartID())
	assert.Len(t, board.Nodes, 3)
	assert.Equal(t, []domain.Connection{
		{From: "first/exec_out", To: "second/exec_in"},
		{From: "start/exec_out", To: "first/exec_in"},
	}, board.Connections())
	assert.Equal(t, &domain.Coordinates{X: 10, Y: 20}, board.Nodes["second"].Coordinates)

	// 2. Execute it
	rec := &intercom.Recorder{}
	r, err := flow.NewRun(board, reg, &domain.RunPayload{ID: b.StartID()}, flow.WithSender(rec))
	require.NoError(t, err)
	_, err = r.Execute(context.Background())
	require.NoError(t, err)

	lines := rec.OfType(nodes.EventLog)
	require.Len(t, lines, 2)
	assert.Equal(t, "one", lines[0].Payload.(nodes.LogEvent).Message)
	assert.Equal(t, "two", lines[1].Payload.(nodes.LogEvent).Message)
}

func TestBuilder_OnError(t *testing.T) {
	reg := nodes.NewRegistry()

	b := dsl.New("errors", "Errors", reg)
	b.Add("start", "events_simple").Go("bad")
	b.Add("bad", "log_print").Set("level", "nonsense").OnError("report", "message")
	b.Add("report", "log_print").Set("level", "error")

	board, err := b.Build()
	require.NoError(t, err)

	rec := &intercom.Recorder{}
	r, err := flow.NewRun(board, reg, &domain.RunPayload{ID: "start"}, flow.WithSender(rec))
	require.NoError(t, err)
	meta, err := r.Execute(context.Background())
	require.NoError(t, err, "the failure is handled")
	assert.Equal(t, domain.RunStatusSuccess, meta.Status)

	lines := rec.OfType(nodes.EventLog)
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0].Payload.(nodes.LogEvent).Message, "unknown log level")
}

func TestBuilder_Errors(t *testing.T) {
	reg := registry.NewRegistry()
	nodes.RegisterAll(reg)

	t.Run("unknown kind", func(t *testing.T) {
		b := dsl.New("b", "b", reg)
		b.Add("x", "does_not_exist")
		_, err := b.Build()
		require.ErrorIs(t, err, registry.ErrUnknownNode)
	})

	t.Run("unknown pin", func(t *testing.T) {
		b := dsl.New("b", "b", reg)
		b.Add("start", "events_simple").Pipe("nope", "p", "message")
		b.Add("p", "log_print")
		_, err := b.Build()
		require.ErrorIs(t, err, domain.ErrPinNotFound)
	})

	t.Run("unknown target", func(t *testing.T) {
		b := dsl.New("b", "b", reg)
		b.Add("start", "events_simple").Go("ghost")
		_, err := b.Build()
		require.ErrorIs(t, err, domain.ErrNodeNotFound)
	})

	t.Run("type mismatch", func(t *testing.T) {
		b := dsl.New("b", "b", reg)
		b.Add("start", "events_simple").Pipe("exec_out", "p", "message")
		b.Add("p", "log_print")
		_, err := b.Build()
		require.ErrorIs(t, err, domain.ErrInvalidConnection)
	})
}

func TestBuilder_RetypesVariablePins(t *testing.T) {
	reg := nodes.NewRegistry()
	counter := domain.NewVariable("counter", domain.VariableTypeInteger, domain.ValueTypeNormal).WithDefault(1)
	label := domain.NewVariable("label", domain.VariableTypeString, domain.ValueTypeNormal)

	b := dsl.New("vars", "Vars", reg).Variable(counter).Variable(label)
	b.Add("start", "events_simple").Go("set")
	b.Add("set", "variable_set").Set("variable", "counter")
	b.Add("get", "variable_get").Set("variable", label.ID)
	b.Add("missing", "variable_get").Set("variable", "nope")

	board, err := b.Build()
	require.NoError(t, err)

	dataType := func(node, pin string) domain.VariableType {
		p, ok := board.Nodes[node].PinByName(pin)
		require.True(t, ok)
		return p.DataType
	}
	assert.Equal(t, domain.VariableTypeInteger, dataType("set", "value"))
	assert.Equal(t, domain.VariableTypeInteger, dataType("set", "new_value"))
	assert.Equal(t, domain.VariableTypeString, dataType("get", "value"))
	assert.Equal(t, domain.VariableTypeGeneric, dataType("missing", "value"))

	// A dangling reference falls back to Generic.
	p, _ := board.Nodes["set"].PinByName("variable")
	p.WithDefault("nope")
	require.NoError(t, flow.UpdateBoard(board, reg))
	assert.Equal(t, domain.VariableTypeGeneric, dataType("set", "value"))
}
