package script

import (
	"encoding/json"
	"time"

	lua "github.com/yuin/gopher-lua"
)

// installHuman installs the Human capability table over the bound
// hitl.Gateway (spec.md §4.G). Every call takes an optional trailing
// options table with context, timeout (seconds), and default fields.
func (b *Bridge) installHuman() {
	t := b.L.NewTable()
	t.RawSetString("approve", b.L.NewFunction(func(L *lua.LState) int {
		message := L.CheckString(1)
		reqCtx, timeout, def := humanOpts(L, 2)
		var defBool *bool
		if def != nil {
			var v bool
			if err := json.Unmarshal(def, &v); err == nil {
				defBool = &v
			}
		}
		b.setWaitingForHuman(true)
		ok, err := b.gateway.Approve(b.ctx, message, reqCtx, timeout, defBool)
		b.setWaitingForHuman(false)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(lua.LBool(ok))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("input", b.L.NewFunction(func(L *lua.LState) int {
		message := L.CheckString(1)
		reqCtx, timeout, def := humanOpts(L, 2)
		var defStr *string
		if def != nil {
			var v string
			if err := json.Unmarshal(def, &v); err == nil {
				defStr = &v
			}
		}
		b.setWaitingForHuman(true)
		v, err := b.gateway.Input(b.ctx, message, reqCtx, timeout, defStr)
		b.setWaitingForHuman(false)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(lua.LString(v))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("review", b.L.NewFunction(func(L *lua.LState) int {
		message := L.CheckString(1)
		reqCtx, timeout, def := humanOpts(L, 2)
		var dest any
		b.setWaitingForHuman(true)
		err := b.gateway.Review(b.ctx, message, reqCtx, timeout, def, &dest)
		b.setWaitingForHuman(false)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(goToLua(L, dest))
		L.Push(lua.LNil)
		return 2
	}))
	b.L.SetGlobal("Human", t)
}

// setWaitingForHuman flips the invocation's waiting_human status around a
// Gateway dispatch. Top-level dry runs have no InvocationContext.
func (b *Bridge) setWaitingForHuman(waiting bool) {
	if b.ic == nil {
		return
	}
	b.ic.SetWaitingForHuman(waiting)
}

// humanOpts reads the optional options table at position n: {context,
// timeout (seconds), default}.
func humanOpts(L *lua.LState, n int) (reqCtx json.RawMessage, timeout time.Duration, def json.RawMessage) {
	v := L.Get(n)
	tbl, ok := v.(*lua.LTable)
	if !ok {
		return nil, 0, nil
	}
	if c := tbl.RawGetString("context"); c != lua.LNil {
		reqCtx, _ = luaValueToJSON(c)
	}
	if ts := tbl.RawGetString("timeout"); ts != lua.LNil {
		if n, ok := ts.(lua.LNumber); ok {
			timeout = time.Duration(float64(n) * float64(time.Second))
		}
	}
	if d := tbl.RawGetString("default"); d != lua.LNil {
		def, _ = luaValueToJSON(d)
	}
	return reqCtx, timeout, def
}
