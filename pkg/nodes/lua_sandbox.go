package nodes

import (
	"encoding/json"
	"maps"
	"slices"

	"github.com/Shopify/go-lua"
)

// setupSandbox opens the safe standard libraries and removes anything that
// touches the filesystem, the process or dynamic code loading.
func setupSandbox(l *lua.State) {
	for _, lib := range []struct {
		name string
		open lua.Function
	}{
		{"_G", lua.BaseOpen},
		{"string", lua.StringOpen},
		{"table", lua.TableOpen},
		{"math", lua.MathOpen},
		{"os", lua.OSOpen},
	} {
		lua.Require(l, lib.name, lib.open, true)
		l.Pop(1)
	}

	l.Global("os")
	for _, fn := range []string{"execute", "exit", "getenv", "remove", "rename", "setlocale", "tmpname"} {
		l.PushNil()
		l.SetField(-2, fn)
	}
	l.Pop(1)

	for _, fn := range []string{"dofile", "loadfile", "load", "loadstring", "require"} {
		l.PushNil()
		l.SetGlobal(fn)
	}

	l.Register("json_encode", luaJSONEncode)
	l.Register("json_decode", luaJSONDecode)
}

// pushValue converts a JSON-like Go value to Lua.
func pushValue(l *lua.State, v any) {
	switch val := v.(type) {
	case nil:
		l.PushNil()
	case bool:
		l.PushBoolean(val)
	case int:
		l.PushInteger(val)
	case int64:
		l.PushInteger(int(val))
	case float64:
		l.PushNumber(val)
	case string:
		l.PushString(val)
	case []any:
		l.NewTable()
		for i, item := range val {
			l.PushInteger(i + 1)
			pushValue(l, item)
			l.SetTable(-3)
		}
	case []string:
		l.NewTable()
		for i, item := range val {
			l.PushInteger(i + 1)
			l.PushString(item)
			l.SetTable(-3)
		}
	case map[string]any:
		l.NewTable()
		for _, k := range slices.Sorted(maps.Keys(val)) {
			l.PushString(k)
			pushValue(l, val[k])
			l.SetTable(-3)
		}
	default:
		// Round-trip anything else through JSON.
		data, err := json.Marshal(val)
		if err != nil {
			l.PushNil()
			return
		}
		var generic any
		if err := json.Unmarshal(data, &generic); err != nil {
			l.PushNil()
			return
		}
		pushValue(l, generic)
	}
}

// pullValue converts the Lua value at idx to Go. Tables with keys 1..n become
// slices, other tables become maps. Numbers are float64, as with JSON.
func pullValue(l *lua.State, idx int) any {
	switch l.TypeOf(idx) {
	case lua.TypeBoolean:
		return l.ToBoolean(idx)
	case lua.TypeNumber:
		n, _ := l.ToNumber(idx)
		return n
	case lua.TypeString:
		s, _ := l.ToString(idx)
		return s
	case lua.TypeTable:
		return pullTable(l, idx)
	default:
		return nil
	}
}

func pullTable(l *lua.State, idx int) any {
	l.PushValue(idx)
	defer l.Pop(1)

	isArray := true
	maxIndex := 0
	count := 0
	l.PushNil()
	for l.Next(-2) {
		count++
		if l.TypeOf(-2) != lua.TypeNumber {
			isArray = false
		} else if n, _ := l.ToNumber(-2); int(n) > maxIndex {
			maxIndex = int(n)
		}
		l.Pop(1)
	}

	if isArray && maxIndex == count && count > 0 {
		arr := make([]any, maxIndex)
		for i := 1; i <= maxIndex; i++ {
			l.PushInteger(i)
			l.Table(-2)
			arr[i-1] = pullValue(l, -1)
			l.Pop(1)
		}
		return arr
	}

	obj := make(map[string]any, count)
	l.PushNil()
	for l.Next(-2) {
		// ToString on a number key would convert it in place and confuse Next.
		l.PushValue(-2)
		key, _ := l.ToString(-1)
		l.Pop(1)
		obj[key] = pullValue(l, -1)
		l.Pop(1)
	}
	return obj
}

func luaJSONEncode(l *lua.State) int {
	data, err := json.Marshal(pullValue(l, 1))
	if err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	l.PushString(string(data))
	return 1
}

func luaJSONDecode(l *lua.State) int {
	var value any
	if err := json.Unmarshal([]byte(lua.CheckString(l, 1)), &value); err != nil {
		l.PushNil()
		l.PushString(err.Error())
		return 2
	}
	pushValue(l, value)
	return 1
}
