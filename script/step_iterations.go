package script

import (
	"context"
	"encoding/json"

	lua "github.com/yuin/gopher-lua"

	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/tactuserr"
)

// installStep installs the Step capability table. Step.run(name, fn) wraps
// an arbitrary scripted computation in the journal (spec.md §4.C): the
// first execution of a given name calls fn and journals its return value;
// every subsequent call (on replay) returns the journalled value without
// calling fn again.
func (b *Bridge) installStep() {
	t := b.L.NewTable()
	t.RawSetString("run", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		fn, ok := L.Get(2).(*lua.LFunction)
		if !ok {
			L.Push(lua.LNil)
			L.Push(errToLua(L, tactuserr.New(tactuserr.KindValidation, "script: Step.run expects a function")))
			return 2
		}
		step := checkpoint.New("step:"+name, 0)
		raw, err := b.journal.ReadThrough(b.ctx, step, "user_step", func(ctx context.Context) (json.RawMessage, error) {
			if err := L.CallByParam(lua.P{Fn: fn, NRet: 1, Protect: true}); err != nil {
				return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "script: Step.run function failed")
			}
			ret := L.Get(-1)
			L.Pop(1)
			return luaValueToJSON(ret)
		})
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(goToLuaJSON(L, raw))
		L.Push(lua.LNil)
		return 2
	}))
	b.L.SetGlobal("Step", t)
}

// installIterations installs the Iterations capability table over the
// invocation's shared iteration counter (spec.md §4.E "Turn budget").
func (b *Bridge) installIterations() {
	t := b.L.NewTable()
	t.RawSetString("current", b.L.NewFunction(func(L *lua.LState) int {
		if b.ic == nil {
			L.Push(lua.LNumber(0))
			return 1
		}
		L.Push(lua.LNumber(b.ic.Iterations().Current()))
		return 1
	}))
	t.RawSetString("exceeded", b.L.NewFunction(func(L *lua.LState) int {
		n := int(L.CheckNumber(1))
		if b.ic == nil {
			L.Push(lua.LBool(false))
			return 1
		}
		L.Push(lua.LBool(b.ic.Iterations().Exceeded(n)))
		return 1
	}))
	b.L.SetGlobal("Iterations", t)
}
