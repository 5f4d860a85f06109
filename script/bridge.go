// Package script implements the script bridge described in spec.md §4.I:
// it exposes the host primitives (agents, tools, state, stage, HITL,
// procedure, step, iterations, session, params) to the embedded
// orchestration language as capability tables, translating values in both
// directions and surfacing host errors as catchable, kind-tagged Lua
// tables rather than raw Lua panics. No example repo in the retrieval pack
// embeds Lua directly; the table/LGFunction wiring below follows
// github.com/yuin/gopher-lua's own documented idioms rather than a pack
// file, and is noted as such in the grounding ledger.
package script

import (
	"context"
	"encoding/json"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/AnthusAI/Tactus/agentrt"
	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/hitl"
	"github.com/AnthusAI/Tactus/scheduler"
	"github.com/AnthusAI/Tactus/state"
	"github.com/AnthusAI/Tactus/tactuserr"
	"github.com/AnthusAI/Tactus/tools"
)

// Bridge owns one Lua state for the lifetime of one procedure invocation's
// script execution and wires every host primitive into it as a global
// capability table.
type Bridge struct {
	L *lua.LState

	ctx      context.Context
	ic       *scheduler.InvocationContext
	sched    *scheduler.Scheduler
	registry tools.Invoker
	gateway  *hitl.Gateway
	store    *state.Store
	log      eventlog.Log
	journal  checkpoint.Journal

	mu        sync.Mutex
	stage     string
	handles   map[int]*scheduler.Handle
	nextID    int
	toolCalls map[string][]toolCallRecord
}

// toolCallRecord captures one Tool.call invocation for Tool.called,
// Tool.last_call, and Tool.calls_of.
type toolCallRecord struct {
	Args   json.RawMessage
	Result json.RawMessage
	Err    error
}

// New constructs a Bridge and installs every built-in capability table.
// ic and sched may be nil when the script is run outside a scheduled
// invocation (e.g. top-level dry runs); Procedure.* calls then fail with a
// KindInternal error instead of panicking.
func New(ctx context.Context, ic *scheduler.InvocationContext, sched *scheduler.Scheduler, registry tools.Invoker, gateway *hitl.Gateway, store *state.Store, log eventlog.Log, journal checkpoint.Journal) *Bridge {
	b := &Bridge{
		L:         lua.NewState(),
		ctx:       ctx,
		ic:        ic,
		sched:     sched,
		registry:  registry,
		gateway:   gateway,
		store:     store,
		log:       log,
		journal:   journal,
		handles:   make(map[int]*scheduler.Handle),
		toolCalls: make(map[string][]toolCallRecord),
	}
	b.installTool()
	b.installState()
	b.installStage()
	b.installLog()
	b.installHuman()
	b.installProcedure()
	b.installStep()
	b.installIterations()
	return b
}

// Close releases the underlying Lua state.
func (b *Bridge) Close() { b.L.Close() }

// SetParams installs the invocation's resolved parameters as the global
// Params table.
func (b *Bridge) SetParams(params map[string]any) {
	t := b.L.NewTable()
	for k, v := range params {
		t.RawSetString(k, goToLua(b.L, v))
	}
	b.L.SetGlobal("Params", t)
}

// RegisterAgent installs a per-agent capability table under name, exposing
// turn() and the agent's own Session.* operations (spec.md §4.I).
func (b *Bridge) RegisterAgent(name string, agent *agentrt.Agent, sess *Session) {
	t := b.L.NewTable()
	t.RawSetString("turn", b.L.NewFunction(func(L *lua.LState) int {
		params := paramsArg(L, 1)
		out, err := agent.Turn(b.ctx, params, b.store)
		if err != nil {
			L.Push(lua.LNil)
			L.Push(errToLua(L, err))
			return 2
		}
		result := L.NewTable()
		result.RawSetString("text", lua.LString(out.Text))
		result.RawSetString("finish_reason", lua.LString(out.FinishReason))
		result.RawSetString("cost", lua.LNumber(out.Cost))
		calls := L.NewTable()
		for i, tc := range out.ToolCalls {
			ct := L.NewTable()
			ct.RawSetString("id", lua.LString(tc.ID))
			ct.RawSetString("name", lua.LString(tc.Name))
			calls.RawSetInt(i+1, ct)
		}
		result.RawSetString("tool_calls", calls)
		L.Push(result)
		L.Push(lua.LNil)
		return 2
	}))
	if sess != nil {
		t.RawSetString("session", sess.table(b.L))
	}
	b.L.SetGlobal(name, t)
}

// DoString executes source against the bridge's Lua state and returns the
// first returned value translated to Go, or an error if execution failed.
func (b *Bridge) DoString(source string) (any, error) {
	if err := b.L.DoString(source); err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "script: execution failed")
	}
	top := b.L.GetTop()
	if top == 0 {
		return nil, nil
	}
	v := b.L.Get(-1)
	b.L.Pop(1)
	return luaToGo(v), nil
}

// errToLua converts a Go error into the catchable {kind, message} table
// shape scripts test against, per spec.md §4.I "Errors raised by the host
// cross into the script as catchable errors tagged with their kind."
func errToLua(L *lua.LState, err error) lua.LValue {
	if err == nil {
		return lua.LNil
	}
	t := L.NewTable()
	t.RawSetString("kind", lua.LString(string(tactuserr.KindOf(err))))
	t.RawSetString("message", lua.LString(err.Error()))
	return t
}

// paramsArg reads the n-th argument as a table and converts it to a Go map,
// treating a missing or nil argument as an empty call.
func paramsArg(L *lua.LState, n int) map[string]any {
	v := L.Get(n)
	t, ok := v.(*lua.LTable)
	if !ok {
		return nil
	}
	m, _ := tableToGo(t).(map[string]any)
	return m
}
