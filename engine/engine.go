// Package engine defines the durable-execution abstraction the procedure
// scheduler runs on (spec.md §4.H, §5). It is grounded on the teacher's
// runtime/agent/engine package: the same Engine/WorkflowContext/Future/
// SignalChannel shapes let Tactus target either the in-memory cooperative
// scheduler (engine/inmem, always available) or a durable Temporal-backed
// adapter (engine/temporal) without the scheduler package knowing which.
package engine

import (
	"context"
	"time"

	"github.com/AnthusAI/Tactus/telemetry"
)

// SignalCancel is the well-known signal name used to propagate cooperative
// cancellation down an invocation's child tree (spec.md §4.H).
const SignalCancel = "tactus.cancel"

type (
	// Engine abstracts workflow registration and execution so adapters can
	// be swapped without touching the scheduler package.
	Engine interface {
		RegisterWorkflow(ctx context.Context, def WorkflowDefinition) error
		RegisterActivity(ctx context.Context, def ActivityDefinition) error
		StartWorkflow(ctx context.Context, req WorkflowStartRequest) (WorkflowHandle, error)
	}

	// WorkflowDefinition binds a workflow handler to a logical name. One
	// procedure definition maps to one WorkflowDefinition.
	WorkflowDefinition struct {
		Name     string
		Queue    string
		Handler  WorkflowFunc
	}

	// WorkflowFunc is the invocation entry point. It must be deterministic:
	// given the same inputs and activity/signal results, it must produce the
	// same sequence of engine calls, since durable adapters replay it.
	WorkflowFunc func(ctx WorkflowContext, input any) (any, error)

	// WorkflowContext exposes engine operations to a running invocation.
	// Implementations must keep ExecuteActivity/SignalChannel deterministic
	// under replay; callers must not read wall-clock time or randomness
	// directly and should use Now() instead.
	WorkflowContext interface {
		Context() context.Context
		WorkflowID() string
		RunID() string
		ExecuteActivity(ctx context.Context, req ActivityRequest, result any) error
		ExecuteActivityAsync(ctx context.Context, req ActivityRequest) (Future, error)
		SignalChannel(name string) SignalChannel
		Logger() telemetry.Logger
		Metrics() telemetry.Metrics
		Tracer() telemetry.Tracer
		Now() time.Time
	}

	// Future represents a pending activity result.
	Future interface {
		Get(ctx context.Context, result any) error
		IsReady() bool
	}

	// ActivityDefinition registers an activity handler. Activities may
	// perform real side effects; workflows may not.
	ActivityDefinition struct {
		Name    string
		Handler ActivityFunc
		Options ActivityOptions
	}

	// ActivityFunc handles one activity invocation.
	ActivityFunc func(ctx context.Context, input any) (any, error)

	// ActivityOptions configures retry/timeout behavior for an activity.
	ActivityOptions struct {
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowStartRequest describes how to launch an invocation.
	WorkflowStartRequest struct {
		ID          string
		Workflow    string
		Queue       string
		Input       any
		RetryPolicy RetryPolicy
	}

	// ActivityRequest contains the info needed to schedule an activity.
	ActivityRequest struct {
		Name        string
		Input       any
		Queue       string
		RetryPolicy RetryPolicy
		Timeout     time.Duration
	}

	// WorkflowHandle lets callers interact with a running invocation.
	WorkflowHandle interface {
		Wait(ctx context.Context, result any) error
		Signal(ctx context.Context, name string, payload any) error
		Cancel(ctx context.Context) error
	}

	// RetryPolicy defines retry semantics shared by workflows and
	// activities. Zero-valued fields mean the engine uses its defaults.
	RetryPolicy struct {
		MaxAttempts        int
		InitialInterval    time.Duration
		BackoffCoefficient float64
	}

	// SignalChannel exposes signal delivery in an engine-agnostic way, used
	// by the HITL gateway and cooperative cancellation.
	SignalChannel interface {
		Receive(ctx context.Context, dest any) error
		ReceiveAsync(dest any) bool
	}
)
