package script

import (
	"context"

	lua "github.com/yuin/gopher-lua"

	"github.com/AnthusAI/Tactus/session"
	"github.com/AnthusAI/Tactus/state"
)

// Session adapts a session.Session and its owning state.Store to the
// script-visible Session.* operations of spec.md §4.F: history(), clear(),
// inject_system(text), save_to(key), load_from(key).
type Session struct {
	ctx   context.Context
	sess  *session.Session
	store *state.Store
}

// NewSession constructs a script-visible Session wrapper.
func NewSession(ctx context.Context, sess *session.Session, store *state.Store) *Session {
	return &Session{ctx: ctx, sess: sess, store: store}
}

func (s *Session) table(L *lua.LState) *lua.LTable {
	t := L.NewTable()
	t.RawSetString("history", L.NewFunction(func(L *lua.LState) int {
		history := s.sess.History()
		out := L.NewTable()
		for i, msg := range history {
			row := L.NewTable()
			row.RawSetString("role", lua.LString(msg.Role))
			row.RawSetString("text", lua.LString(msg.Text()))
			out.RawSetInt(i+1, row)
		}
		L.Push(out)
		return 1
	}))
	t.RawSetString("clear", L.NewFunction(func(L *lua.LState) int {
		s.sess.Clear()
		return 0
	}))
	t.RawSetString("inject_system", L.NewFunction(func(L *lua.LState) int {
		s.sess.InjectSystem(L.CheckString(1))
		return 0
	}))
	t.RawSetString("save_to", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		if err := s.sess.SaveTo(s.ctx, s.store, key); err != nil {
			L.Push(errToLua(L, err))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))
	t.RawSetString("load_from", L.NewFunction(func(L *lua.LState) int {
		key := L.CheckString(1)
		if err := s.sess.LoadFrom(s.store, key); err != nil {
			L.Push(errToLua(L, err))
			return 1
		}
		L.Push(lua.LNil)
		return 1
	}))
	return t
}
