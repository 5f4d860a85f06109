// Package tools implements the tool registry described in spec.md §4.D: user
// tools registered as native functions or nested procedures, invoked by the
// agent primitive, journalled so replay never re-runs an external effect,
// and logged through the owning invocation's event log. Metadata types
// mirror the teacher's runtime/agent/tools.ToolSpec/JSONCodec shape.
package tools

import (
	"context"
	"encoding/json"

	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type (
	// JSONCodec serializes and deserializes a tool's argument or result type.
	JSONCodec struct {
		ToJSON   func(any) ([]byte, error)
		FromJSON func([]byte) (any, error)
	}

	// Spec describes one registered tool's identity and schema.
	Spec struct {
		Name        string
		Description string
		ArgSchema   json.RawMessage
		// IsSubProcedure marks a tool implemented by spawning a nested
		// procedure invocation rather than calling a native function.
		IsSubProcedure bool
		// ProcedureName names the nested procedure when IsSubProcedure is
		// set.
		ProcedureName string
	}

	// Invoke is the native function backing a registered tool.
	Invoke func(ctx context.Context, args json.RawMessage) (json.RawMessage, error)

	// Invoker is the interface the agent primitive calls into; Registry and
	// MockRegistry both satisfy it so tests and production runs share one
	// call shape.
	Invoker interface {
		Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error)
		Spec(name string) (Spec, bool)
	}

	registration struct {
		spec   Spec
		invoke Invoke
	}

	// Registry is the production tool registry. Every Invoke call is
	// journalled through a checkpoint.Journal (so replay never re-runs a
	// real external effect) and recorded as a tool_call event.
	Registry struct {
		journal  checkpoint.Journal
		log      eventlog.Log
		tools    map[string]registration
		ordinals map[string]int
	}
)

// NewRegistry constructs an empty Registry backed by journal and log, and
// seeds it with the built-in tools defined in builtin.go.
func NewRegistry(journal checkpoint.Journal, log eventlog.Log) *Registry {
	r := &Registry{
		journal:  journal,
		log:      log,
		tools:    make(map[string]registration),
		ordinals: make(map[string]int),
	}
	registerBuiltins(r)
	return r
}

// Register adds a native-function tool to the registry.
func (r *Registry) Register(spec Spec, invoke Invoke) {
	r.tools[spec.Name] = registration{spec: spec, invoke: invoke}
}

// RegisterSubProcedure adds a tool backed by a nested procedure invocation.
// invoke is expected to spawn and await the child invocation, constructed by
// the scheduler package which owns invocation lifecycle.
func (r *Registry) RegisterSubProcedure(spec Spec, invoke Invoke) {
	spec.IsSubProcedure = true
	r.Register(spec, invoke)
}

// Spec returns the registered Spec for name.
func (r *Registry) Spec(name string) (Spec, bool) {
	reg, ok := r.tools[name]
	return reg.spec, ok
}

// Invoke calls the named tool, journalling the call under a deterministic
// StepID so replay returns the prior result without re-invoking the
// underlying function, and emitting a tool_call event either way.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	reg, ok := r.tools[name]
	if !ok {
		return nil, tactuserr.Newf(tactuserr.KindTool, "unknown tool %q", name)
	}

	ordinal := r.ordinals[name]
	r.ordinals[name] = ordinal + 1
	step := checkpoint.New("tool:"+name, ordinal)

	result, err := r.journal.ReadThrough(ctx, step, "tool_result", func(ctx context.Context) (json.RawMessage, error) {
		return reg.invoke(ctx, args)
	})

	r.emit(ctx, name, args, result, err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (r *Registry) emit(ctx context.Context, name string, args, result json.RawMessage, invokeErr error) {
	if r.log == nil {
		return
	}
	status := "ok"
	var errMsg string
	if invokeErr != nil {
		status = "error"
		errMsg = invokeErr.Error()
	}
	_, _ = r.log.Append(ctx, eventlog.Event{
		Type: eventlog.TypeToolCall,
		Payload: map[string]any{
			"tool":   name,
			"args":   json.RawMessage(args),
			"result": json.RawMessage(result),
			"status": status,
			"error":  errMsg,
		},
	})
}

var _ Invoker = (*Registry)(nil)
