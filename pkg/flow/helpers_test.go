package flow

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
)

// testLogic is a NodeLogic backed by a closure.
type testLogic struct {
	node *domain.Node
	run  func(ctx context.Context, ec *ExecutionContext) error
}

func (l *testLogic) GetNode() *domain.Node { return l.node }

func (l *testLogic) Run(ctx context.Context, ec *ExecutionContext) error {
	if l.run == nil {
		return nil
	}
	return l.run(ctx, ec)
}

// testCatalog instantiates nodes by name from closures.
type testCatalog map[string]func(ctx context.Context, ec *ExecutionContext) error

func (c testCatalog) Instantiate(n *domain.Node) (NodeLogic, error) {
	fn, ok := c[n.Name]
	if !ok {
		return nil, fmt.Errorf("unknown node %q", n.Name)
	}
	return &testLogic{node: n, run: fn}, nil
}

// execNode builds an impure template with exec_in and exec_out.
func execNode(name string) *domain.Node {
	n := domain.NewNode(name, name, "", "Test")
	n.AddInputPin("exec_in", "In", "", domain.VariableTypeExecution)
	n.AddOutputPin("exec_out", "Out", "", domain.VariableTypeExecution)
	return n
}

func startNode(name string) *domain.Node {
	n := domain.NewNode(name, name, "", "Events")
	n.Start = true
	n.AddOutputPin("exec_out", "Out", "", domain.VariableTypeExecution)
	return n
}

func place(t *testing.T, b *domain.Board, id string, tmpl *domain.Node) *domain.Node {
	t.Helper()
	n := tmpl.Instance(id)
	require.NoError(t, b.AddNode(n))
	return n
}

func connect(t *testing.T, b *domain.Board, from, to string) {
	t.Helper()
	require.NoError(t, b.Connect(from, to))
}

// fire activates exec_out.
func fire(_ context.Context, ec *ExecutionContext) error {
	return ec.ActivateExecPin("exec_out")
}

// counter counts invocations and fires exec_out.
func counter(n *atomic.Int64) func(ctx context.Context, ec *ExecutionContext) error {
	return func(ctx context.Context, ec *ExecutionContext) error {
		n.Add(1)
		return fire(ctx, ec)
	}
}

func newTestRun(t *testing.T, b *domain.Board, cat testCatalog, startID string, opts ...RunOption) *Run {
	t.Helper()
	r, err := NewRun(b, cat, &domain.RunPayload{ID: startID}, opts...)
	require.NoError(t, err)
	return r
}
