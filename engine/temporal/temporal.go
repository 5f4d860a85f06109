// Package temporal is the durable engine.Engine adapter backed by
// go.temporal.io/sdk, grounded on the teacher's
// runtime/agent/engine/temporal package. It is the engine a production
// deployment of Tactus would configure for invocations that must survive a
// process restart; engine/inmem remains the always-available default used
// by tests and the BDD harness.
package temporal

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.temporal.io/sdk/client"
	temporalsdk "go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/worker"
	"go.temporal.io/sdk/workflow"

	"github.com/AnthusAI/Tactus/engine"
	"github.com/AnthusAI/Tactus/telemetry"
)

// Options configures the Temporal engine adapter.
type Options struct {
	// Client is a pre-configured Temporal client. If nil, New constructs one
	// from ClientOptions.
	Client client.Client
	// ClientOptions configures a lazily constructed client when Client is nil.
	ClientOptions client.Options
	// TaskQueue is the queue the worker polls, and the default queue used
	// when a WorkflowStartRequest omits one.
	TaskQueue string
	// WorkerOptions is forwarded to worker.New.
	WorkerOptions worker.Options
	Logger        telemetry.Logger
}

// Engine implements engine.Engine on top of a Temporal client and worker.
type Engine struct {
	client      client.Client
	closeClient bool
	taskQueue   string
	workerOpts  worker.Options
	logger      telemetry.Logger

	mu      sync.Mutex
	worker  worker.Worker
	started bool
}

// New constructs a Temporal-backed Engine.
func New(opts Options) (*Engine, error) {
	if opts.TaskQueue == "" {
		return nil, fmt.Errorf("temporal engine: task queue is required")
	}
	c := opts.Client
	closeClient := false
	if c == nil {
		var err error
		c, err = client.Dial(opts.ClientOptions)
		if err != nil {
			return nil, fmt.Errorf("temporal engine: dial client: %w", err)
		}
		closeClient = true
	}
	logger := opts.Logger
	if logger == nil {
		logger = telemetry.NewNoopLogger()
	}
	e := &Engine{
		client:      c,
		closeClient: closeClient,
		taskQueue:   opts.TaskQueue,
		workerOpts:  opts.WorkerOptions,
		logger:      logger,
	}
	e.worker = worker.New(c, opts.TaskQueue, opts.WorkerOptions)
	return e, nil
}

// Close stops the worker and, if New constructed the client, closes it.
func (e *Engine) Close() {
	e.worker.Stop()
	if e.closeClient {
		e.client.Close()
	}
}

func (e *Engine) RegisterWorkflow(_ context.Context, def engine.WorkflowDefinition) error {
	if def.Handler == nil || def.Name == "" {
		return fmt.Errorf("temporal engine: invalid workflow definition")
	}
	e.worker.RegisterWorkflowWithOptions(wrapWorkflow(def.Handler), workflow.RegisterOptions{Name: def.Name})
	return nil
}

func (e *Engine) RegisterActivity(_ context.Context, def engine.ActivityDefinition) error {
	if def.Handler == nil || def.Name == "" {
		return fmt.Errorf("temporal engine: invalid activity definition")
	}
	e.worker.RegisterActivityWithOptions(wrapActivity(def.Handler), worker.RegisterOptions{Name: def.Name})
	return nil
}

// StartWorkflow starts the worker (once, lazily) and then starts req as a
// Temporal workflow execution.
func (e *Engine) StartWorkflow(ctx context.Context, req engine.WorkflowStartRequest) (engine.WorkflowHandle, error) {
	if err := e.ensureStarted(); err != nil {
		return nil, err
	}
	queue := req.Queue
	if queue == "" {
		queue = e.taskQueue
	}
	run, err := e.client.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        req.ID,
		TaskQueue: queue,
	}, req.Workflow, req.Input)
	if err != nil {
		return nil, fmt.Errorf("temporal engine: start workflow %q: %w", req.Workflow, err)
	}
	return &handle{client: e.client, run: run}, nil
}

func (e *Engine) ensureStarted() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.started {
		return nil
	}
	if err := e.worker.Start(); err != nil {
		return fmt.Errorf("temporal engine: start worker: %w", err)
	}
	e.started = true
	return nil
}

type handle struct {
	client client.Client
	run    client.WorkflowRun
}

func (h *handle) Wait(ctx context.Context, result any) error {
	return h.run.Get(ctx, result)
}

func (h *handle) Signal(ctx context.Context, name string, payload any) error {
	return h.client.SignalWorkflow(ctx, h.run.GetID(), h.run.GetRunID(), name, payload)
}

func (h *handle) Cancel(ctx context.Context) error {
	return h.client.CancelWorkflow(ctx, h.run.GetID(), h.run.GetRunID())
}

// wrapWorkflow adapts an engine.WorkflowFunc to a Temporal workflow entry
// point by wrapping workflow.Context in wfContext.
func wrapWorkflow(fn engine.WorkflowFunc) any {
	return func(ctx workflow.Context, input any) (any, error) {
		return fn(&wfContext{ctx: ctx}, input)
	}
}

// wrapActivity adapts an engine.ActivityFunc to a plain Temporal activity
// function; activities run with a standard Go context and may perform real
// side effects.
func wrapActivity(fn engine.ActivityFunc) any {
	return func(ctx context.Context, input any) (any, error) {
		return fn(ctx, input)
	}
}

// wfContext implements engine.WorkflowContext on top of workflow.Context.
type wfContext struct {
	ctx workflow.Context
}

// Context returns context.Background() rather than a live cancellation
// context: workflow code must stay deterministic, so cancellation and
// deadlines flow through ExecuteActivity/SignalChannel instead of through
// ctx.Done(). Callers that only need a context.Context to satisfy a generic
// signature (e.g. a checkpoint.Journal built for the in-memory path) are
// fine with this; nothing in the workflow path should block on it.
func (w *wfContext) Context() context.Context { return context.Background() }
func (w *wfContext) WorkflowID() string       { return workflow.GetInfo(w.ctx).WorkflowExecution.ID }
func (w *wfContext) RunID() string            { return workflow.GetInfo(w.ctx).WorkflowExecution.RunID }
func (w *wfContext) Logger() telemetry.Logger { return telemetry.NewNoopLogger() }
func (w *wfContext) Metrics() telemetry.Metrics { return telemetry.NewNoopMetrics() }
func (w *wfContext) Tracer() telemetry.Tracer   { return telemetry.NewNoopTracer() }
func (w *wfContext) Now() time.Time             { return workflow.Now(w.ctx) }

func (w *wfContext) ExecuteActivity(_ context.Context, req engine.ActivityRequest, result any) error {
	opts := workflow.ActivityOptions{
		TaskQueue:           req.Queue,
		StartToCloseTimeout: req.Timeout,
	}
	if req.RetryPolicy.MaxAttempts > 0 {
		opts.RetryPolicy = toRetryPolicy(req.RetryPolicy)
	}
	actCtx := workflow.WithActivityOptions(w.ctx, opts)
	return workflow.ExecuteActivity(actCtx, req.Name, req.Input).Get(actCtx, result)
}

func (w *wfContext) ExecuteActivityAsync(_ context.Context, req engine.ActivityRequest) (engine.Future, error) {
	opts := workflow.ActivityOptions{
		TaskQueue:           req.Queue,
		StartToCloseTimeout: req.Timeout,
	}
	actCtx := workflow.WithActivityOptions(w.ctx, opts)
	return &future{ctx: actCtx, future: workflow.ExecuteActivity(actCtx, req.Name, req.Input)}, nil
}

func (w *wfContext) SignalChannel(name string) engine.SignalChannel {
	return &signalChannel{ctx: w.ctx, ch: workflow.GetSignalChannel(w.ctx, name)}
}

type future struct {
	ctx    workflow.Context
	future workflow.Future
}

func (f *future) Get(_ context.Context, result any) error { return f.future.Get(f.ctx, result) }
func (f *future) IsReady() bool                            { return f.future.IsReady() }

type signalChannel struct {
	ctx workflow.Context
	ch  workflow.ReceiveChannel
}

func (s *signalChannel) Receive(_ context.Context, dest any) error {
	s.ch.Receive(s.ctx, dest)
	return nil
}

func (s *signalChannel) ReceiveAsync(dest any) bool {
	return s.ch.ReceiveAsync(dest)
}

// toRetryPolicy translates the engine-agnostic RetryPolicy into the SDK's
// temporal.RetryPolicy.
func toRetryPolicy(p engine.RetryPolicy) *temporalsdk.RetryPolicy {
	coeff := p.BackoffCoefficient
	if coeff < 1 {
		coeff = 1
	}
	return &temporalsdk.RetryPolicy{
		InitialInterval:    p.InitialInterval,
		BackoffCoefficient: coeff,
		MaximumAttempts:    int32(p.MaxAttempts),
	}
}
