package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/nodes"
	"github.com/TM9657/flow-like-sub010/pkg/registry"
)

type boardFixture struct {
	t     *testing.T
	reg   *registry.Registry
	board *domain.Board
}

func newBoard(t *testing.T) *boardFixture {
	f := &boardFixture{t: t, reg: nodes.NewRegistry(), board: domain.NewBoard("b1", "validate")}
	f.add("start", "events_simple")
	return f
}

func (f *boardFixture) add(id, kind string) *domain.Node {
	f.t.Helper()
	tmpl, err := f.reg.Template(kind)
	require.NoError(f.t, err)
	n := tmpl.Instance(id)
	require.NoError(f.t, f.board.AddNode(n))
	return n
}

func (f *boardFixture) connect(from, to string) {
	f.t.Helper()
	require.NoError(f.t, f.board.Connect(from, to))
}

func (f *boardFixture) pin(id string) *domain.Pin {
	f.t.Helper()
	p, _, ok := f.board.PinByID(id)
	require.True(f.t, ok, id)
	return p
}

func kinds(issues []Issue) []Kind {
	out := make([]Kind, len(issues))
	for i, issue := range issues {
		out[i] = issue.Kind
	}
	return out
}

func TestValidate_ValidBoard(t *testing.T) {
	f := newBoard(t)
	f.add("lua", "script_lua")
	f.add("add", "math_add_int")
	f.connect("start/exec_out", "lua/exec_in")
	f.connect("add/sum", "lua/input")

	report := Validate(f.board, WithCatalog(f.reg))
	assert.Empty(t, report.Issues, "pure upstream nodes count as reached")
	assert.NoError(t, ValidateBoard(f.board))
}

func TestValidate_BrokenLinks(t *testing.T) {
	f := newBoard(t)
	f.add("print", "log_print")
	f.connect("start/exec_out", "print/exec_in")

	f.pin("print/exec_in").DependsOn = nil
	f.pin("print/message").DependsOn = []string{"ghost/out"}

	report := Validate(f.board)
	assert.Equal(t, []Kind{KindDanglingPin, KindAsymmetricEdge}, kinds(report.Errors()))

	err := ValidateBoard(f.board)
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Len(t, verr.Issues, 2)
	assert.Contains(t, err.Error(), "board b1: found 2 errors")
	assert.Contains(t, err.Error(), "ghost/out")
}

func TestValidate_TypeAndDirection(t *testing.T) {
	f := newBoard(t)
	f.add("add", "math_add_int")
	f.add("print", "log_print")
	f.connect("start/exec_out", "print/exec_in")

	// Wired by hand to bypass Connect's checks.
	f.pin("add/sum").ConnectedTo = []string{"print/message"}
	f.pin("print/message").DependsOn = []string{"add/sum"}
	f.pin("print/exec_out").ConnectedTo = []string{"start/exec_out"}
	f.pin("start/exec_out").DependsOn = []string{"print/exec_out"}

	report := Validate(f.board)
	assert.ElementsMatch(t, []Kind{KindTypeMismatch, KindDirection}, kinds(report.Errors()))
}

func TestValidate_DataCycle(t *testing.T) {
	f := newBoard(t)
	f.add("a", "math_add_int")
	f.add("b", "math_add_int")
	f.add("lua", "script_lua")
	f.connect("start/exec_out", "lua/exec_in")
	f.connect("a/sum", "b/a")
	f.connect("b/sum", "a/a")
	f.connect("b/sum", "lua/input")

	report := Validate(f.board)
	errs := report.Errors()
	require.Len(t, errs, 1, "a cycle is reported once")
	assert.Equal(t, KindDataCycle, errs[0].Kind)
	assert.Contains(t, errs[0].Message, "a/sum")
	assert.Contains(t, errs[0].Message, "b/sum")
}

func TestValidate_ImpureNodesBreakCycles(t *testing.T) {
	f := newBoard(t)
	f.add("one", "script_lua")
	f.add("two", "script_lua")
	f.connect("start/exec_out", "one/exec_in")
	f.connect("one/exec_out", "two/exec_in")
	f.connect("one/result", "two/input")
	f.connect("two/result", "one/input")

	assert.Empty(t, Validate(f.board).Errors())
}

func TestValidate_Reachability(t *testing.T) {
	f := newBoard(t)
	f.add("print", "log_print")
	f.add("orphan", "log_print")
	f.connect("start/exec_out", "print/exec_in")

	report := Validate(f.board)
	require.Len(t, report.Warnings(), 1)
	assert.Equal(t, KindUnreachable, report.Warnings()[0].Kind)
	assert.Equal(t, "orphan", report.Warnings()[0].NodeID)
	assert.NoError(t, report.Err(), "warnings do not fail validation")

	headless := domain.NewBoard("b2", "headless")
	tmpl, err := f.reg.Template("log_print")
	require.NoError(t, err)
	require.NoError(t, headless.AddNode(tmpl.Instance("print")))
	assert.Equal(t, []Kind{KindNoStart}, kinds(Validate(headless).Warnings()))
}

func TestValidate_LayerRelayPins(t *testing.T) {
	f := newBoard(t)
	f.add("print", "log_print")
	f.board.Layers["l1"] = &domain.Layer{
		ID:   "l1",
		Name: "Group",
		Pins: map[string]*domain.Pin{
			"l1/in": {ID: "l1/in", Name: "in", PinType: domain.PinTypeInput, DataType: domain.VariableTypeExecution},
		},
	}
	f.connect("start/exec_out", "l1/in")
	f.connect("l1/in", "print/exec_in")

	report := Validate(f.board)
	assert.Empty(t, report.Issues)
}

func TestValidate_Schemas(t *testing.T) {
	f := newBoard(t)
	printer := f.add("print", "log_print")
	f.connect("start/exec_out", "print/exec_in")

	f.pin("print/level").WithSchema(`{"enum": ["debug", "info", "warn", "error", "fatal"]}`).WithDefault("loud")
	v := domain.NewVariable("count", domain.VariableTypeInteger, domain.ValueTypeNormal).WithDefault("x")
	v.Schema = `{"type": "integer"}`
	f.board.AddVariable(v)
	bad := domain.NewVariable("broken", domain.VariableTypeString, domain.ValueTypeNormal).WithDefault("x")
	bad.Schema = `{"type": 12}`
	f.board.AddVariable(bad)

	errs := Validate(f.board).Errors()
	require.Len(t, errs, 3)
	assert.Equal(t, printer.ID, errs[0].NodeID)
	assert.Contains(t, errs[0].Message, "print/level")
	var messages []string
	for _, e := range errs[1:] {
		messages = append(messages, e.Message)
	}
	assert.Contains(t, messages[0]+messages[1], "count")
	assert.Contains(t, messages[0]+messages[1], "invalid JSON schema")
}

func TestValidate_UnknownKind(t *testing.T) {
	f := newBoard(t)
	n := f.add("print", "log_print")
	n.Name = "log_print_v2"
	f.connect("start/exec_out", "print/exec_in")

	report := Validate(f.board, WithCatalog(f.reg))
	assert.Equal(t, []Kind{KindUnknownNode}, kinds(report.Errors()))
}
