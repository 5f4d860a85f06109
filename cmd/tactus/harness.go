package main

import (
	"context"
	"sort"

	"github.com/AnthusAI/Tactus/bdd"
	"github.com/AnthusAI/Tactus/eventlog"
	engineinmem "github.com/AnthusAI/Tactus/engine/inmem"
	"github.com/AnthusAI/Tactus/procedure"
	"github.com/AnthusAI/Tactus/scheduler"
)

// procedureRunFunc builds the bdd.RunFunc that drives def's real
// interpreter in mock mode: a fresh engine/scheduler pair per call (so
// concurrent Evaluate repetitions never share mutable scheduler state),
// mocks.Tools/mocks.Human wired as the invocation's tool invoker and HITL
// responder, and the resulting invocation's event log reduced into a
// bdd.Outcome — the event log is the single source of truth for what a run
// did (spec.md §4.B), so replaying it is how the harness learns the tool
// calls, stage transitions, and final state a scenario's assertions check.
func procedureRunFunc(def *procedure.Definition) bdd.RunFunc {
	return func(mocks *bdd.Mocks) (*bdd.Outcome, error) {
		ctx := context.Background()
		eng := engineinmem.New()
		sched := scheduler.New(eng, "tactus-bdd")
		deps, logs := baseDeps(sched)
		deps.ToolInvoker = mocks.Tools
		deps.HITLResponder = mocks.Human

		if err := sched.Register(ctx, def.Name, procedure.Interpreter(def, deps)); err != nil {
			return nil, err
		}
		h, err := sched.Spawn(ctx, nil, def.Name, mocks.Params)
		if err != nil {
			return nil, err
		}
		result, runErr := sched.Result(ctx, h)

		out := &bdd.Outcome{Result: result, Err: runErr}
		if runErr != nil {
			out.Status = "failed"
		} else {
			out.Status = "completed"
		}
		out.Iterations = sched.Status(h).Iterations

		if log, ok := logs.get(h.ID); ok {
			reduceLog(ctx, log, out)
		}
		return out, nil
	}
}

// reduceLog replays an invocation's event log into the tool-call counts,
// stage history, and final state snapshot a bdd.Outcome reports.
func reduceLog(ctx context.Context, log eventlog.Log, out *bdd.Outcome) {
	events, err := log.Snapshot(ctx)
	if err != nil {
		return
	}

	calls := map[string]int{}
	state := map[string]any{}

	for _, e := range events {
		switch e.Type {
		case eventlog.TypeToolCall:
			payload, ok := e.Payload.(map[string]any)
			if !ok {
				continue
			}
			name, _ := payload["tool"].(string)
			if name != "" {
				calls[name]++
			}
		case eventlog.TypeStageChange:
			payload, ok := e.Payload.(map[string]any)
			if !ok {
				continue
			}
			to, _ := payload["to"].(string)
			if to != "" {
				out.Stages = append(out.Stages, to)
				out.FinalStage = to
			}
		case eventlog.TypeAgentTurn:
			payload, ok := e.Payload.(map[string]any)
			if !ok {
				continue
			}
			if reason, _ := payload["finish_reason"].(string); reason != "" {
				out.FinishReason = reason
			}
		case eventlog.TypeLog:
			payload, ok := e.Payload.(map[string]any)
			if !ok || payload["scope"] != "state" {
				continue
			}
			op, _ := payload["op"].(string)
			key, _ := payload["key"].(string)
			switch op {
			case "set", "incr":
				state[key] = payload["value"]
			case "clear":
				state = map[string]any{}
			}
		}
	}

	names := make([]string, 0, len(calls))
	for name := range calls {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		out.ToolCalls = append(out.ToolCalls, bdd.ToolCallRecord{Name: name, Count: calls[name]})
	}
	out.State = state
}
