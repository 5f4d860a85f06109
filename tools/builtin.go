package tools

import (
	"context"
	"encoding/json"
)

// registerBuiltins installs the two built-in tools named in spec.md §4.D:
// done, which marks the agent's intent to exit its turn loop, and todo, an
// open-ended queue manipulation tool kept optional for scripts that want a
// scratch task list without rolling their own state-store convention.
func registerBuiltins(r *Registry) {
	r.Register(Spec{
		Name:        "done",
		Description: "Signal that the agent has finished its task and the turn loop should exit.",
		ArgSchema:   json.RawMessage(`{"type":"object","properties":{"summary":{"type":"string"}}}`),
	}, doneInvoke)

	r.Register(Spec{
		Name:        "todo",
		Description: "Append, complete, or list items on an open-ended scratch task queue.",
		ArgSchema:   json.RawMessage(`{"type":"object","properties":{"action":{"type":"string","enum":["add","complete","list"]},"item":{"type":"string"}}}`),
	}, newTodoInvoke())
}

func doneInvoke(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
	var parsed struct {
		Summary string `json:"summary"`
	}
	if len(args) > 0 {
		_ = json.Unmarshal(args, &parsed)
	}
	return json.Marshal(map[string]any{"done": true, "summary": parsed.Summary})
}

// newTodoInvoke returns an Invoke closure over a private in-memory queue.
// The queue is intentionally not journalled separately from the tool call
// itself: the registry's read-through wrapping over this Invoke already
// makes each add/complete/list call replay-safe.
func newTodoInvoke() Invoke {
	var items []string
	return func(_ context.Context, args json.RawMessage) (json.RawMessage, error) {
		var parsed struct {
			Action string `json:"action"`
			Item   string `json:"item"`
		}
		if len(args) > 0 {
			if err := json.Unmarshal(args, &parsed); err != nil {
				return nil, err
			}
		}
		switch parsed.Action {
		case "add":
			items = append(items, parsed.Item)
		case "complete":
			for i, it := range items {
				if it == parsed.Item {
					items = append(items[:i], items[i+1:]...)
					break
				}
			}
		}
		out := make([]string, len(items))
		copy(out, items)
		return json.Marshal(map[string]any{"items": out})
	}
}
