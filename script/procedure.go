package script

import (
	"time"

	lua "github.com/yuin/gopher-lua"

	"github.com/AnthusAI/Tactus/scheduler"
	"github.com/AnthusAI/Tactus/tactuserr"
)

const handleField = "__handle"

// installProcedure installs the Procedure capability table (spec.md §4.H).
// Handles are represented to scripts as opaque tables carrying a private
// integer id that indexes into the bridge's own handle table, so a script
// can pass a handle around, into Procedure.wait_all, without being able to
// fabricate or inspect it.
func (b *Bridge) installProcedure() {
	t := b.L.NewTable()
	t.RawSetString("run", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		params := paramsArg(L, 2)
		result, err := b.requireScheduler(func(s *scheduler.Scheduler) (any, error) {
			return s.Run(b.ctx, b.ic, name, params)
		})
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(goToLua(L, result))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("spawn", b.L.NewFunction(func(L *lua.LState) int {
		name := L.CheckString(1)
		params := paramsArg(L, 2)
		if b.sched == nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, tactuserr.New(tactuserr.KindInternal, "script: no scheduler bound")))
			return 2
		}
		h, err := b.sched.Spawn(b.ctx, b.ic, name, params)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(b.handleTable(h))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("status", b.L.NewFunction(func(L *lua.LState) int {
		h, err := b.handleArg(L, 1)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		info := b.sched.Status(h)
		out := L.NewTable()
		out.RawSetString("status", lua.LString(info.Status))
		out.RawSetString("waiting_for_human", lua.LBool(info.WaitingForHuman))
		out.RawSetString("iterations", lua.LNumber(info.Iterations))
		L.Push(out)
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("wait", b.L.NewFunction(func(L *lua.LState) int {
		h, err := b.handleArg(L, 1)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		var timeout time.Duration
		if opts, ok := L.Get(2).(*lua.LTable); ok {
			if ts, ok := opts.RawGetString("timeout").(lua.LNumber); ok {
				timeout = time.Duration(float64(ts) * float64(time.Second))
			}
		}
		result, err := b.sched.Wait(b.ctx, h, timeout)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(goToLua(L, result))
		L.Push(lua.LNil)
		return 2
	}))
	t.RawSetString("wait_all", b.L.NewFunction(func(L *lua.LState) int {
		tbl, ok := L.Get(1).(*lua.LTable)
		if !ok {
			L.Push(errToLua(L, tactuserr.New(tactuserr.KindValidation, "script: wait_all expects a list of handles")))
			return 1
		}
		var handles []*scheduler.Handle
		n := tbl.Len()
		for i := 1; i <= n; i++ {
			ht, ok := tbl.RawGetInt(i).(*lua.LTable)
			if !ok {
				continue
			}
			id := int(ht.RawGetString(handleField).(lua.LNumber))
			if h, ok := b.lookupHandle(id); ok {
				handles = append(handles, h)
			}
		}
		if err := b.sched.WaitAll(b.ctx, handles); err != nil {
			L.Push(errToLua(L, err))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))
	t.RawSetString("result", b.L.NewFunction(func(L *lua.LState) int {
		h, err := b.handleArg(L, 1)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		result, err := b.sched.Result(b.ctx, h)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		L.Push(goToLua(L, result))
		L.Push(lua.LNil)
		return 2
	}))
	b.L.SetGlobal("Procedure", t)
}

func (b *Bridge) requireScheduler(fn func(*scheduler.Scheduler) (any, error)) (any, error) {
	if b.sched == nil {
		return nil, tactuserr.New(tactuserr.KindInternal, "script: no scheduler bound")
	}
	return fn(b.sched)
}

func (b *Bridge) handleTable(h *scheduler.Handle) *lua.LTable {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.handles[id] = h
	b.mu.Unlock()
	t := b.L.NewTable()
	t.RawSetString(handleField, lua.LNumber(id))
	return t
}

func (b *Bridge) lookupHandle(id int) (*scheduler.Handle, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h, ok := b.handles[id]
	return h, ok
}

func (b *Bridge) handleArg(L *lua.LState, n int) (*scheduler.Handle, error) {
	if b.sched == nil {
		return nil, tactuserr.New(tactuserr.KindInternal, "script: no scheduler bound")
	}
	ht, ok := L.Get(n).(*lua.LTable)
	if !ok {
		return nil, tactuserr.New(tactuserr.KindValidation, "script: expected a procedure handle")
	}
	idVal, ok := ht.RawGetString(handleField).(lua.LNumber)
	if !ok {
		return nil, tactuserr.New(tactuserr.KindValidation, "script: not a procedure handle")
	}
	h, ok := b.lookupHandle(int(idVal))
	if !ok {
		return nil, tactuserr.New(tactuserr.KindInternal, "script: unknown procedure handle")
	}
	return h, nil
}
