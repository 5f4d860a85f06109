package script

import (
	lua "github.com/yuin/gopher-lua"

	"github.com/AnthusAI/Tactus/eventlog"
)

// installState installs the State capability table (spec.md §4.B).
func (b *Bridge) installState() {
	t := b.L.NewTable()
	t.RawSetString("get", b.L.NewFunction(func(L *lua.LState) int {
		L.Push(goToLua(L, b.store.Get(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("has", b.L.NewFunction(func(L *lua.LState) int {
		L.Push(lua.LBool(b.store.Has(L.CheckString(1))))
		return 1
	}))
	t.RawSetString("set", b.L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		val := luaToGo(L.Get(2))
		if err := b.store.Set(b.ctx, key, val); err != nil {
			L.Push(errToLua(L, err))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))
	t.RawSetString("incr", b.L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		delta := 1.0
		if L.GetTop() >= 2 {
			delta = float64(L.CheckNumber(2))
		}
		next, err := b.store.Incr(b.ctx, key, delta)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(lua.LNumber(next))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("clear", b.L.NewFunction(func(L *lua.LState) int {
		if err := b.store.Clear(b.ctx); err != nil {
			L.Push(errToLua(L, err))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))
	t.RawSetString("dump", b.L.NewFunction(func(L *lua.LState) int {
		L.Push(goToLua(L, map[string]any(b.store.Dump())))
		return 1
	}))
	b.L.SetGlobal("State", t)
}

// installStage installs the Stage capability table. Stage.set(name) records
// a transition from the previous stage to name, emitting exactly one
// stage_change event per call (spec.md §3's S2 example).
func (b *Bridge) installStage() {
	t := b.L.NewTable()
	t.RawSetString("set", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		b.mu.Lock()
		from := b.stage
		b.stage = name
		b.mu.Unlock()
		if b.log != nil {
			_, _ = b.log.Append(b.ctx, eventlog.Event{
				Type:    eventlog.TypeStageChange,
				Payload: map[string]any{"from": from, "to": name},
			})
		}
		return 0
	}))
	t.RawSetString("current", b.L.NewFunction(func(L *lua.LState) int {
		b.mu.Lock()
		defer b.mu.Unlock()
		L.Push(lua.LString(b.stage))
		return 1
	}))
	b.L.SetGlobal("Stage", t)
}
