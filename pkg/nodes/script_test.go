package nodes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

func TestLuaScript(t *testing.T) {
	tests := []struct {
		name   string
		script string
		input  any
		want   any
	}{
		{
			name:   "exec function",
			script: `function exec(input) return input.a + input.b end`,
			input:  map[string]any{"a": 2, "b": 3},
			want:   float64(5),
		},
		{
			name:   "top level return",
			script: `return string.upper(input)`,
			input:  "shout",
			want:   "SHOUT",
		},
		{
			name:   "tables become slices and maps",
			script: `function exec(input) return { names = { "a", "b" }, count = #input } end`,
			input:  []any{1, 2, 3},
			want:   map[string]any{"names": []any{"a", "b"}, "count": float64(3)},
		},
		{
			name:   "json helpers",
			script: `return json_decode(json_encode(input)).k`,
			input:  map[string]any{"k": "v"},
			want:   "v",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.add("lua", "script_lua")
			h.setDefault("lua/script", tt.script)
			h.setDefault("lua/input", tt.input)
			h.connect("start/exec_out", "lua/exec_in")

			r, _ := h.run(nil)
			assert.Equal(t, tt.want, storedValue(t, r, "lua", "result"))
		})
	}
}

func TestLuaScript_StatePersistsWithinRun(t *testing.T) {
	h := newHarness(t)
	h.sequence(3)
	h.add("lua", "script_lua")
	h.setDefault("lua/script", `
calls = 0
function exec(input)
  calls = calls + 1
  log("call " .. calls, "warn")
  return calls
end`)
	for _, out := range []string{"seq/exec_out_0", "seq/exec_out_1", "seq/exec_out_2"} {
		h.connect(out, "lua/exec_in")
	}

	r, meta := h.run(nil)
	assert.Equal(t, float64(3), storedValue(t, r, "lua", "result"))
	assert.Equal(t, domain.LogLevelWarn, meta.LogLevel)
	assert.Equal(t, 1, r.Cache().Len(), "one compiled script per source")
}

func TestLuaScript_Sandboxed(t *testing.T) {
	for _, script := range []string{
		`os.execute("true")`,
		`dofile("/etc/passwd")`,
		`require("io")`,
	} {
		h := newHarness(t)
		h.add("lua", "script_lua")
		h.setDefault("lua/script", script)
		h.connect("start/exec_out", "lua/exec_in")

		r, err := flow.NewRun(h.board, h.reg, &domain.RunPayload{ID: "start"})
		require.NoError(t, err)
		_, err = r.Execute(context.Background())
		require.Error(t, err, script)
	}
}

func TestJSONPath(t *testing.T) {
	doc := `{"items":[{"name":"a","n":1},{"name":"b","n":2}]}`
	tests := []struct {
		name     string
		path     string
		multiple bool
		want     any
		found    bool
	}{
		{name: "single", path: "$.items[1].name", want: "b", found: true},
		{name: "multiple", path: "$.items[*].name", multiple: true, want: []any{"a", "b"}, found: true},
		{name: "missing", path: "$.nope", want: nil, found: false},
		{name: "missing multiple", path: "$.nope", multiple: true, want: []any{}, found: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.add("q", "json_path")
			h.add("out", "test_tap")
			h.setDefault("q/value", doc)
			h.setDefault("q/path", tt.path)
			h.setDefault("q/multiple", tt.multiple)
			h.connect("start/exec_out", "out/exec_in")
			h.connect("q/result", "out/value")

			r, _ := h.run(nil)
			assert.Equal(t, tt.want, storedValue(t, r, "q", "result"))
			assert.Equal(t, tt.found, storedValue(t, r, "q", "found"))
		})
	}
}

func TestJSONValidate(t *testing.T) {
	schema := `{"type":"object","required":["id"],"properties":{"id":{"type":"integer"}}}`

	for _, tc := range []struct {
		value any
		want  string
	}{
		{value: map[string]any{"id": 1}, want: "ok"},
		{value: map[string]any{"id": "x"}, want: "bad"},
		{value: `{"other":true}`, want: "bad"},
	} {
		h := newHarness(t)
		h.add("check", "json_validate")
		h.add("ok", "test_tap")
		h.add("bad", "test_tap")
		h.setDefault("check/schema", schema)
		h.setDefault("check/value", tc.value)
		h.connect("start/exec_out", "check/exec_in")
		h.connect("check/valid", "ok/exec_in")
		h.connect("check/invalid", "bad/exec_in")

		r, _ := h.run(nil)
		assert.Equal(t, []string{tc.want}, h.tap.Calls())

		errs, ok := storedValue(t, r, "check", "errors").([]string)
		require.True(t, ok)
		assert.Equal(t, tc.want == "bad", len(errs) > 0)
	}
}

func TestJSONValidate_InvalidSchemaFails(t *testing.T) {
	h := newHarness(t)
	h.add("check", "json_validate")
	h.setDefault("check/schema", `{"type": 12}`)
	h.setDefault("check/value", map[string]any{})
	h.connect("start/exec_out", "check/exec_in")

	r, err := flow.NewRun(h.board, h.reg, &domain.RunPayload{ID: "start"})
	require.NoError(t, err)
	_, err = r.Execute(context.Background())
	require.ErrorContains(t, err, "invalid JSON schema")
}
