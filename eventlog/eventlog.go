// Package eventlog implements the append-only typed event stream described
// in spec.md §3/§4.A. Every component of the runtime writes through a Log;
// the BDD harness and external subscribers read from it. The event set is
// closed and small, so unlike the teacher's hooks.Event type-switch
// hierarchy (dozens of concrete event structs), Tactus models one Event
// struct with a Type discriminant and an opaque JSON-compatible Payload.
package eventlog

import (
	"context"
	"time"
)

// Type enumerates the closed set of event kinds defined in spec.md §3.
type Type string

const (
	TypeLog              Type = "log"
	TypeExecution        Type = "execution"
	TypeExecutionSummary Type = "execution_summary"
	TypeAgentTurn        Type = "agent_turn"
	TypeToolCall         Type = "tool_call"
	TypeCost             Type = "cost"
	TypeValidation       Type = "validation"
	TypeOutput           Type = "output"
	TypeHITLRequest      Type = "hitl_request"
	TypeHITLResolved     Type = "hitl_resolved"
	TypeStageChange      Type = "stage_change"
	TypeCheckpointWrite  Type = "checkpoint_written"
	TypeTestScenario     Type = "test_scenario"
	TypeEvaluation       Type = "evaluation"
)

type (
	// Event is a single append-only record in an invocation's event log.
	// Payload is restricted to JSON-compatible shapes (spec.md §3) so events
	// can be serialized to the wire format used by external subscribers
	// (spec.md §6) without a bespoke marshaler per event type.
	Event struct {
		Type         Type
		Seq          uint64
		InvocationID string
		At           time.Time
		Payload      any
	}

	// Log is the append-only event stream owned by one procedure invocation.
	// Implementations must enforce invariant 1 from spec.md §3: sequence
	// numbers are strictly increasing and dense, starting at 1.
	Log interface {
		// Append adds event to the log, assigning it the next sequence
		// number, and returns that number. Appends after the invocation has
		// reached a terminal status are rejected with ErrClosed (a non-fatal,
		// internal condition per spec.md §4.A).
		Append(ctx context.Context, event Event) (uint64, error)
		// Since returns every event with Seq > since, in order.
		Since(ctx context.Context, since uint64) ([]Event, error)
		// Snapshot returns every event recorded so far, in order.
		Snapshot(ctx context.Context) ([]Event, error)
		// Close marks the log closed; subsequent Append calls fail.
		Close(ctx context.Context) error
	}
)

// ErrClosed is returned by Append once the owning invocation has reached a
// terminal status and the log has been closed.
type ErrClosed struct{ InvocationID string }

func (e *ErrClosed) Error() string {
	return "eventlog: invocation " + e.InvocationID + " is closed"
}
