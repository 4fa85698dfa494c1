package nodes_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
	"github.com/TM9657/flow-like-sub010/pkg/intercom"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
)

// tap records every invocation in order.
type tap struct {
	mu    sync.Mutex
	calls []string
}

func (p *tap) record(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, id)
}

func (p *tap) Calls() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.calls...)
}

type tapNode struct{ p *tap }

func (n *tapNode) GetNode() *domain.Node {
	node := domain.NewNode("test_tap", "Tap", "", "Test")
	node.AddInputPin(nodes.PinExecIn, "In", "", domain.VariableTypeExecution)
	node.AddInputPin("value", "Value", "", domain.VariableTypeGeneric)
	node.AddOutputPin(nodes.PinExecOut, "Out", "", domain.VariableTypeExecution)
	return node
}

func (n *tapNode) Run(_ context.Context, ec *flow.ExecutionContext) error {
	n.p.record(ec.NodeID())
	return ec.ActivateExecPin(nodes.PinExecOut)
}

// callNode invokes the start node named by its target pin with arguments,
// the way a tool call reuses a board function.
type callNode struct{}

func (n *callNode) GetNode() *domain.Node {
	node := domain.NewNode("test_call", "Call", "", "Test")
	node.AddInputPin(nodes.PinExecIn, "In", "", domain.VariableTypeExecution)
	node.AddInputPin("target", "Target", "", domain.VariableTypeString)
	node.AddInputPin("args", "Arguments", "", domain.VariableTypeGeneric)
	node.AddOutputPin(nodes.PinExecOut, "Out", "", domain.VariableTypeExecution)
	return node
}

func (n *callNode) Run(ctx context.Context, ec *flow.ExecutionContext) error {
	target, err := flow.EvaluatePinAs[string](ec, "target")
	if err != nil {
		return err
	}
	args, err := ec.EvaluatePin("args")
	if err != nil {
		return err
	}
	fn, ok := ec.LookupNode(target)
	if !ok {
		return domain.ErrNodeNotFound
	}
	payload, err := fn.PinByName("payload")
	if err != nil {
		return err
	}
	ec.SetPinRefValue(payload, args)
	if err := ec.ExecuteDelegated(ctx, fn); err != nil {
		return err
	}
	return ec.ActivateExecPin(nodes.PinExecOut)
}

type harness struct {
	t     *testing.T
	reg   *registry.Registry
	board *domain.Board
	tap   *tap
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{t: t, reg: nodes.NewRegistry(), board: domain.NewBoard("b1", "test"), tap: &tap{}}
	h.reg.Register(func() flow.NodeLogic { return &tapNode{p: h.tap} })
	h.reg.Register(func() flow.NodeLogic { return &callNode{} })
	h.add("start", "events_simple")
	return h
}

func (h *harness) add(id, kind string) *domain.Node {
	h.t.Helper()
	tmpl, err := h.reg.Template(kind)
	require.NoError(h.t, err)
	n := tmpl.Instance(id)
	require.NoError(h.t, h.board.AddNode(n))
	return n
}

func (h *harness) connect(from, to string) {
	h.t.Helper()
	require.NoError(h.t, h.board.Connect(from, to))
}

func (h *harness) setDefault(pinID string, v any) {
	h.t.Helper()
	pin, _, ok := h.board.PinByID(pinID)
	require.True(h.t, ok, pinID)
	pin.WithDefault(v)
}

func (h *harness) run(payload any, opts ...flow.RunOption) (*flow.Run, *domain.LogMeta) {
	h.t.Helper()
	r, err := flow.NewRun(h.board, h.reg, &domain.RunPayload{ID: "start", Payload: payload}, opts...)
	require.NoError(h.t, err)
	meta, err := r.Execute(context.Background())
	require.NoError(h.t, err)
	return r, meta
}

// sequence places a sequence node with n outputs fed by the start node.
func (h *harness) sequence(n int) {
	h.t.Helper()
	seq := h.add("seq", "control_sequence")
	for len(seq.Pins) < n+1 {
		nodes.AddSequenceOutput(seq)
	}
	h.connect("start/exec_out", "seq/exec_in")
}

func storedValue(t *testing.T, r *flow.Run, nodeID, pin string) any {
	t.Helper()
	n, ok := r.Node(nodeID)
	require.True(t, ok)
	p, err := n.PinByName(pin)
	require.NoError(t, err)
	v, _ := p.Value()
	return v
}

func TestRegisterAll(t *testing.T) {
	reg := nodes.NewRegistry()
	assert.Equal(t, []string{
		"control_branch", "control_do_once", "control_flip_flop", "control_gate", "control_sequence",
		"events_simple", "json_path", "json_validate", "log_print", "math_add_int", "script_lua",
		"variable_get", "variable_set",
	}, reg.Names())

	for _, tmpl := range reg.Catalog() {
		assert.NotEmpty(t, tmpl.Category, tmpl.Name)
	}
}

func TestSequence_RunsBranchesInOrder(t *testing.T) {
	h := newHarness(t)
	h.sequence(3)
	h.add("p0", "test_tap")
	h.add("p1", "test_tap")
	h.add("p1b", "test_tap")
	h.add("p2", "test_tap")
	h.connect("seq/exec_out_0", "p0/exec_in")
	h.connect("seq/exec_out_1", "p1/exec_in")
	h.connect("p1/exec_out", "p1b/exec_in")
	h.connect("seq/exec_out_2", "p2/exec_in")

	h.run(nil)
	assert.Equal(t, []string{"p0", "p1", "p1b", "p2"}, h.tap.Calls())
}

func TestDoOnce(t *testing.T) {
	h := newHarness(t)
	h.sequence(4)
	h.add("once", "control_do_once")
	h.add("out", "test_tap")
	h.connect("seq/exec_out_0", "once/exec_in")
	h.connect("seq/exec_out_1", "once/exec_in")
	h.connect("seq/exec_out_2", "once/reset")
	h.connect("seq/exec_out_3", "once/exec_in")
	h.connect("once/then", "out/exec_in")

	r, _ := h.run(nil)
	assert.Equal(t, []string{"out", "out"}, h.tap.Calls(), "fires, blocks, resets, fires again")
	assert.Equal(t, true, storedValue(t, r, "once", "has_fired"))
}

func TestDoOnce_StartClosed(t *testing.T) {
	h := newHarness(t)
	h.sequence(3)
	h.add("once", "control_do_once")
	h.add("out", "test_tap")
	h.setDefault("once/start_closed", true)
	h.connect("seq/exec_out_0", "once/exec_in")
	h.connect("seq/exec_out_1", "once/reset")
	h.connect("seq/exec_out_2", "once/exec_in")
	h.connect("once/then", "out/exec_in")

	h.run(nil)
	assert.Equal(t, []string{"out"}, h.tap.Calls(), "only fires after the reset")
}

func TestFlipFlop(t *testing.T) {
	h := newHarness(t)
	h.sequence(3)
	h.add("ff", "control_flip_flop")
	h.add("on_a", "test_tap")
	h.add("on_b", "test_tap")
	for i := range 3 {
		h.connect(fmt.Sprintf("seq/exec_out_%d", i), "ff/exec_in")
	}
	h.connect("ff/a", "on_a/exec_in")
	h.connect("ff/b", "on_b/exec_in")

	r, _ := h.run(nil)
	assert.Equal(t, []string{"on_a", "on_b", "on_a"}, h.tap.Calls())
	assert.Equal(t, int64(3), storedValue(t, r, "ff", "tick"))
	assert.Equal(t, true, storedValue(t, r, "ff", "is_a"))
}

func TestFlipFlop_StartOnB(t *testing.T) {
	h := newHarness(t)
	h.sequence(2)
	h.add("ff", "control_flip_flop")
	h.add("on_a", "test_tap")
	h.add("on_b", "test_tap")
	h.setDefault("ff/start_on_a", false)
	h.connect("seq/exec_out_0", "ff/exec_in")
	h.connect("seq/exec_out_1", "ff/exec_in")
	h.connect("ff/a", "on_a/exec_in")
	h.connect("ff/b", "on_b/exec_in")

	h.run(nil)
	assert.Equal(t, []string{"on_b", "on_a"}, h.tap.Calls())
}

func TestGate(t *testing.T) {
	h := newHarness(t)
	h.sequence(5)
	h.add("gate", "control_gate")
	h.add("out", "test_tap")
	h.connect("seq/exec_out_0", "gate/exec_in") // open: passes
	h.connect("seq/exec_out_1", "gate/close")
	h.connect("seq/exec_out_2", "gate/exec_in") // closed: blocked
	h.connect("seq/exec_out_3", "gate/toggle")
	h.connect("seq/exec_out_4", "gate/exec_in") // open again: passes
	h.connect("gate/exec_out", "out/exec_in")

	h.run(nil)
	assert.Len(t, h.tap.Calls(), 2)
}

func TestBranch(t *testing.T) {
	for _, cond := range []bool{true, false} {
		h := newHarness(t)
		h.add("branch", "control_branch")
		h.add("yes", "test_tap")
		h.add("no", "test_tap")
		h.setDefault("branch/condition", cond)
		h.connect("start/exec_out", "branch/exec_in")
		h.connect("branch/true", "yes/exec_in")
		h.connect("branch/false", "no/exec_in")

		h.run(nil)
		want := "no"
		if cond {
			want = "yes"
		}
		assert.Equal(t, []string{want}, h.tap.Calls())
	}
}

func TestVariables(t *testing.T) {
	h := newHarness(t)
	v := domain.NewVariable("counter", domain.VariableTypeInteger, domain.ValueTypeNormal).WithDefault(1)
	h.board.AddVariable(v)

	h.add("set", "variable_set")
	h.add("get", "variable_get")
	h.add("add", "math_add_int")
	h.add("again", "variable_set")
	h.setDefault("set/variable", "counter")
	h.setDefault("set/value", 41)
	h.setDefault("get/variable", v.ID)
	h.setDefault("again/variable", "counter")
	h.setDefault("add/b", 1)

	h.connect("start/exec_out", "set/exec_in")
	h.connect("set/exec_out", "again/exec_in")
	h.connect("get/value", "add/a")
	h.connect("add/sum", "again/value")

	r, _ := h.run(nil)
	assert.Equal(t, int64(42), r.Variables()[v.ID])
}

func TestPrint_StreamsLogLine(t *testing.T) {
	h := newHarness(t)
	h.add("print", "log_print")
	h.setDefault("print/message", "hi there")
	h.setDefault("print/level", "warn")
	h.connect("start/exec_out", "print/exec_in")

	rec := &intercom.Recorder{}
	_, meta := h.run(nil, flow.WithSender(rec))

	events := rec.OfType(nodes.EventLog)
	require.Len(t, events, 1)
	line, ok := events[0].Payload.(nodes.LogEvent)
	require.True(t, ok)
	assert.Equal(t, "hi there", line.Message)
	assert.Equal(t, domain.LogLevelWarn, line.Level)
	assert.Equal(t, domain.LogLevelWarn, meta.LogLevel)
}

func TestSimpleEvent_ForwardsPayload(t *testing.T) {
	h := newHarness(t)
	h.add("path", "json_path")
	h.add("out", "test_tap")
	h.setDefault("path/path", "$.user.name")
	h.connect("start/payload", "path/value")
	h.connect("start/exec_out", "out/exec_in")
	h.connect("path/result", "out/value")

	r, _ := h.run(map[string]any{"user": map[string]any{"name": "ada"}})
	assert.Equal(t, "ada", storedValue(t, r, "path", "result"))
	assert.Equal(t, true, storedValue(t, r, "path", "found"))
}

func TestSimpleEvent_DelegatedForwardsActivationOnly(t *testing.T) {
	h := newHarness(t)
	h.add("call", "test_call")
	h.add("fn", "events_simple")
	h.add("path", "json_path")
	h.add("out", "test_tap")
	h.setDefault("call/target", "fn")
	h.setDefault("call/args", map[string]any{"user": map[string]any{"name": "grace"}})
	h.setDefault("path/path", "$.user.name")
	h.connect("start/exec_out", "call/exec_in")
	h.connect("fn/exec_out", "out/exec_in")
	h.connect("fn/payload", "path/value")
	h.connect("path/result", "out/value")

	r, _ := h.run(map[string]any{"user": map[string]any{"name": "ada"}})
	assert.Equal(t, []string{"out"}, h.tap.Calls())
	assert.Equal(t, "grace", storedValue(t, r, "path", "result"), "the delegated event keeps the caller's arguments")
	assert.Equal(t, map[string]any{"user": map[string]any{"name": "ada"}}, storedValue(t, r, "start", "payload"))
}
