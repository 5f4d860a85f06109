package script

import (
	"encoding/json"

	lua "github.com/yuin/gopher-lua"
)

// installTool installs the Tool capability table (spec.md §4.D): Tool.call
// invokes the bound tools.Invoker, journalling and eventing exactly as a
// native Go caller would. called/last_call/calls_of answer queries against
// the invocation's own call history rather than the event log.
func (b *Bridge) installTool() {
	t := b.L.NewTable()
	t.RawSetString("call", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		var args json.RawMessage
		if v := L.Get(2); v != lua.LNil {
			raw, err := luaValueToJSON(v)
			if err != nil {
				L.Push(lua.LNil)
				L.Push(errToLua(L, err))
				return 2
			}
			args = raw
		} else {
			args = json.RawMessage(`{}`)
		}
		result, err := b.registry.Invoke(b.ctx, name, args)
		b.recordToolCall(name, args, result, err)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(goToLuaJSON(L, result))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("called", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(lua.LBool(b.callsOf(name) > 0))
		return 1
	}))
	t.RawSetString("calls_of", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		L.Push(lua.LNumber(b.callsOf(name)))
		return 1
	}))
	t.RawSetString("last_call", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		rec, ok := b.lastToolCall(name)
		if !ok {
			L.Push(lua.LNil)
			return 1
		}
		out := L.NewTable()
		out.RawSetString("args", goToLuaJSON(L, rec.Args))
		out.RawSetString("result", goToLuaJSON(L, rec.Result))
		if rec.Err != nil {
			out.RawSetString("error", errToLua(L, rec.Err))
		}
		L.Push(out)
		return 1
	}))
	b.L.SetGlobal("Tool", t)
}

// recordToolCall appends name's call to the invocation's tool-call history so
// called/last_call/calls_of can answer without consulting the event log.
func (b *Bridge) recordToolCall(name string, args, result json.RawMessage, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.toolCalls[name] = append(b.toolCalls[name], toolCallRecord{Args: args, Result: result, Err: err})
}

func (b *Bridge) callsOf(name string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.toolCalls[name])
}

func (b *Bridge) lastToolCall(name string) (toolCallRecord, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	calls := b.toolCalls[name]
	if len(calls) == 0 {
		return toolCallRecord{}, false
	}
	return calls[len(calls)-1], true
}
