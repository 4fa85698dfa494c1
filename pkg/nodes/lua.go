package nodes

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Shopify/go-lua"
	"github.com/cespare/xxhash/v2"

	"github.com/TM9657/flow-like-sub010/pkg/domain"
	"github.com/TM9657/flow-like-sub010/pkg/flow"
)

const cacheKindLua = "lua"

// LuaScript runs a sandboxed Lua script. A script either defines
// exec(input) or returns a value from its top level; input is also available
// as a global. log(message[, level]) writes into the node trace.
//
// The compiled script is kept in the run cache. Once a script has defined
// exec, later invocations only call exec, so its globals persist for the run.
type LuaScript struct{}

func (n *LuaScript) GetNode() *domain.Node {
	node := domain.NewNode("script_lua", "Lua Script", "Runs a sandboxed Lua script", CategoryScript)
	addExecIn(node)
	node.AddInputPin("script", "Script", "Lua source", domain.VariableTypeString)
	node.AddInputPin("input", "Input", "Passed to exec", domain.VariableTypeGeneric)
	addExecOut(node)
	node.AddOutputPin("result", "Result", "", domain.VariableTypeGeneric)
	return node
}

func (n *LuaScript) Run(_ context.Context, ec *flow.ExecutionContext) error {
	if err := ec.DeactivateExecPin(PinExecOut); err != nil {
		return err
	}
	source, err := flow.EvaluatePinAs[string](ec, "script")
	if err != nil {
		return err
	}
	input, err := ec.EvaluatePin("input")
	if err != nil {
		input = nil
	}

	state, err := loadScript(ec, source)
	if err != nil {
		return err
	}

	var result any
	var runErr error
	state.With(func(s **luaScript) {
		result, runErr = (*s).call(ec, input)
	})
	if runErr != nil {
		return runErr
	}

	if err := ec.SetPinValue("result", result); err != nil {
		return err
	}
	return ec.ActivateExecPin(PinExecOut)
}

type luaScript struct {
	l       *lua.State
	hasExec bool
}

const luaMainChunk = "__main"

func loadScript(ec *flow.ExecutionContext, source string) (*flow.Shared[*luaScript], error) {
	key := cacheKindLua + ":" + strconv.FormatUint(xxhash.Sum64String(source), 16)
	if cached, ok := flow.CacheAs[*flow.Shared[*luaScript]](ec.Cache(), key); ok {
		return cached, nil
	}

	l := lua.NewState()
	setupSandbox(l)
	if err := lua.LoadString(l, source); err != nil {
		return nil, fmt.Errorf("script error: %w", err)
	}
	l.SetGlobal(luaMainChunk)

	shared := flow.NewShared(cacheKindLua, &luaScript{l: l})
	ec.SetCache(key, shared)
	return shared, nil
}

func (s *luaScript) call(ec *flow.ExecutionContext, input any) (any, error) {
	l := s.l
	defer l.SetTop(0)

	l.Register("log", func(l *lua.State) int {
		msg := lua.CheckString(l, 1)
		level := domain.LogLevelInfo
		if l.Top() >= 2 {
			if parsed, err := domain.ParseLogLevel(lua.CheckString(l, 2)); err == nil {
				level = parsed
			}
		}
		ec.LogMessage(msg, level)
		return 0
	})
	pushValue(l, input)
	l.SetGlobal("input")

	// Scripts without exec run their top level on every call.
	if !s.hasExec {
		l.SetTop(0)
		l.Global(luaMainChunk)
		if err := l.ProtectedCall(0, lua.MultipleReturns, 0); err != nil {
			return nil, fmt.Errorf("script error: %w", err)
		}
		returned := l.Top()

		l.Global("exec")
		if l.TypeOf(-1) != lua.TypeFunction {
			l.Pop(1)
			if returned > 0 {
				return pullValue(l, 1), nil
			}
			return input, nil
		}
		l.Pop(1)
		s.hasExec = true
	}

	l.SetTop(0)
	l.Global("exec")
	pushValue(l, input)
	if err := l.ProtectedCall(1, 1, 0); err != nil {
		return nil, fmt.Errorf("exec error: %w", err)
	}
	return pullValue(l, -1), nil
}
