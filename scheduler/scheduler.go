// Package scheduler owns invocation lifecycle (spec.md §4.H): starting a
// procedure as an engine.Engine workflow, tracking its status, propagating
// cooperative cancellation down the child tree, and exposing the
// Procedure.run/spawn/status/wait/wait_all/result primitives the script
// bridge surfaces to procedure scripts. It is grounded on the teacher's
// runtime/agent/runtime package (Runtime.startRun/PauseRun/ResumeRun
// lifecycle, run_id.go's ID generation, child_tracker.go's discovered-child
// bookkeeping) generalized from goa-ai's single top-level agent run to
// Tactus's recursive parent/child invocation tree.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AnthusAI/Tactus/engine"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type (
	// Status is an invocation's lifecycle state (spec.md §3).
	Status string

	// Procedure is a registered workflow body: the interpreter loop that
	// drives one procedure definition's script. Params is the JSON-decoded
	// parameter map; the returned value becomes the invocation's result.
	Procedure func(ctx *InvocationContext, params map[string]any) (any, error)

	// InvocationContext is handed to a running Procedure. It exposes the
	// primitives that need engine access (spawning children, checking for
	// cancellation) without leaking the engine.WorkflowContext type into
	// every package that implements a primitive.
	InvocationContext struct {
		ID        string
		ParentID  string
		wf        engine.WorkflowContext
		scheduler *Scheduler
		tracker   *tracker

		mu       sync.Mutex
		children []*Handle
	}

	// Handle is an opaque reference to a running or terminal invocation,
	// returned by Spawn and accepted by Status/Wait/Result.
	Handle struct {
		ID         string
		procedure  string
		wfHandle   engine.WorkflowHandle
		tracker    *tracker
	}

	// Info is the observable snapshot returned by Status.
	Info struct {
		Status          Status
		WaitingForHuman bool
		Iterations      int
	}

	// Scheduler owns one engine.Engine and the registry of procedure
	// workflows started on it. One Scheduler instance exists per process,
	// matching spec.md §4.H ("one scheduler instance per process").
	Scheduler struct {
		eng   engine.Engine
		queue string

		mu       sync.Mutex
		procs    map[string]Procedure
		trackers map[string]*tracker
	}

	tracker struct {
		mu              sync.Mutex
		status          Status
		waitingForHuman bool
		iterations      int
	}

	// IterationCounter is the Iterations.current/exceeded(n) script
	// primitive's backing store: the number of agent turns taken across one
	// invocation.
	IterationCounter struct {
		t *tracker
	}
)

const (
	StatusRunning      Status = "running"
	StatusWaitingHuman Status = "waiting_human"
	StatusWaitingChild Status = "waiting_child"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"

	workflowName = "tactus.procedure"
)

func isTerminal(s Status) bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// New constructs a Scheduler that starts every invocation as a workflow of
// name "tactus.procedure" on eng, queued on queue.
func New(eng engine.Engine, queue string) *Scheduler {
	return &Scheduler{
		eng:      eng,
		queue:    queue,
		procs:    make(map[string]Procedure),
		trackers: make(map[string]*tracker),
	}
}

// Register binds a procedure definition's interpreter loop to name, so
// Run/Spawn can start invocations of it. Must be called before any
// Run/Spawn call for that name. The first Register call on a Scheduler
// also registers the shared workflow with the engine, so tests can
// construct a Scheduler before they have every procedure definition loaded.
func (s *Scheduler) Register(ctx context.Context, name string, proc Procedure) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.procs[name]; dup {
		return fmt.Errorf("scheduler: procedure %q already registered", name)
	}
	s.procs[name] = proc
	if len(s.procs) == 1 {
		if err := s.eng.RegisterWorkflow(ctx, engine.WorkflowDefinition{
			Name:    workflowName,
			Queue:   s.queue,
			Handler: s.runWorkflow,
		}); err != nil {
			delete(s.procs, name)
			return fmt.Errorf("scheduler: register workflow: %w", err)
		}
	}
	return nil
}

// workflowInput is the payload engine.WorkflowStartRequest carries; it must
// be plain data so durable engines can serialize it across a replay.
type workflowInput struct {
	Procedure string
	ParentID  string
	Params    map[string]any
}

// workflowResult is what runWorkflow returns: either a successful value or
// an error recorded as a string, since engine.Future/WorkflowHandle plumb
// `any` through a serialization boundary that may not preserve error types.
type workflowResult struct {
	Value    any
	ErrKind  string
	ErrMsg   string
}

func (s *Scheduler) runWorkflow(wf engine.WorkflowContext, input any) (any, error) {
	in, ok := input.(workflowInput)
	if !ok {
		return nil, tactuserr.Newf(tactuserr.KindInternal, "scheduler: unexpected workflow input type %T", input)
	}
	s.mu.Lock()
	proc, ok := s.procs[in.Procedure]
	s.mu.Unlock()
	if !ok {
		return nil, tactuserr.Newf(tactuserr.KindInternal, "scheduler: procedure %q not registered", in.Procedure)
	}

	s.mu.Lock()
	t, ok := s.trackers[wf.WorkflowID()]
	if !ok {
		t = &tracker{status: StatusRunning}
		s.trackers[wf.WorkflowID()] = t
	}
	s.mu.Unlock()

	ic := &InvocationContext{
		ID:        wf.WorkflowID(),
		ParentID:  in.ParentID,
		wf:        wf,
		scheduler: s,
		tracker:   t,
	}

	value, err := proc(ic, in.Params)
	if err != nil {
		// The failure is carried on workflowResult rather than as the
		// handler's own error return, so a durable engine's replay sees a
		// normal completed workflow and Wait's caller decides how to
		// surface a child failure (spec.md §4.H: "re-raises the child's
		// failure").
		return workflowResult{ErrKind: string(tactuserr.KindOf(err)), ErrMsg: err.Error()}, nil
	}
	return workflowResult{Value: value}, nil
}

// Run starts a synchronous child invocation of procedure with params and
// blocks until it terminates, returning its result. It is Spawn followed
// immediately by Wait with no timeout.
func (s *Scheduler) Run(ctx context.Context, ic *InvocationContext, procedure string, params map[string]any) (any, error) {
	h, err := s.Spawn(ctx, ic, procedure, params)
	if err != nil {
		return nil, err
	}
	return s.Result(ctx, h)
}

// Spawn starts an asynchronous child invocation and returns immediately
// with a Handle. The child is registered with ic so a later Cancel of ic's
// invocation also cancels every still-running child.
func (s *Scheduler) Spawn(ctx context.Context, ic *InvocationContext, procedure string, params map[string]any) (*Handle, error) {
	id := childInvocationID(procedure)
	t := &tracker{status: StatusRunning}
	s.mu.Lock()
	s.trackers[id] = t
	s.mu.Unlock()

	var parentID string
	if ic != nil {
		parentID = ic.ID
	}

	wfHandle, err := s.eng.StartWorkflow(ctx, engine.WorkflowStartRequest{
		ID:       id,
		Workflow: workflowName,
		Queue:    s.queue,
		Input: workflowInput{
			Procedure: procedure,
			ParentID:  parentID,
			Params:    params,
		},
	})
	if err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "scheduler: spawn "+procedure)
	}

	h := &Handle{
		ID:        id,
		procedure: procedure,
		wfHandle:  wfHandle,
		tracker:   t,
	}
	if ic != nil {
		ic.mu.Lock()
		ic.children = append(ic.children, h)
		ic.mu.Unlock()
	}
	return h, nil
}

// Status returns a snapshot of a Handle's lifecycle state. It does not
// block; a non-terminal invocation simply reports its last known status.
func (s *Scheduler) Status(h *Handle) Info {
	h.tracker.mu.Lock()
	defer h.tracker.mu.Unlock()
	return Info{
		Status:          h.tracker.status,
		WaitingForHuman: h.tracker.waitingForHuman,
		Iterations:      h.tracker.iterations,
	}
}

// Wait blocks at the call site until h is terminal or timeout elapses,
// whichever comes first. A zero timeout waits indefinitely. On timeout it
// returns (nil, nil) — the null sentinel spec.md §4.H describes for
// Procedure.wait.
func (s *Scheduler) Wait(ctx context.Context, h *Handle, timeout time.Duration) (any, error) {
	waitCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var res workflowResult
	err := h.wfHandle.Wait(waitCtx, &res)
	if err != nil {
		if waitCtx.Err() != nil && ctx.Err() == nil {
			// Only our local timeout fired, not the caller's own context.
			return nil, nil
		}
		return nil, tactuserr.Wrap(tactuserr.KindInternal, err, "scheduler: wait "+h.procedure)
	}

	h.tracker.mu.Lock()
	if res.ErrKind != "" {
		h.tracker.status = StatusFailed
		if res.ErrKind == string(tactuserr.KindCancelled) {
			h.tracker.status = StatusCancelled
		}
	} else {
		h.tracker.status = StatusCompleted
	}
	h.tracker.mu.Unlock()

	if res.ErrKind != "" {
		return nil, tactuserr.Newf(tactuserr.Kind(res.ErrKind), "%s", res.ErrMsg)
	}
	return res.Value, nil
}

// WaitAll blocks until every handle is terminal. A child's failure does not
// stop WaitAll from waiting on the rest; callers that need to know which
// children failed should inspect Status or call Result on each handle
// afterward.
func (s *Scheduler) WaitAll(ctx context.Context, handles []*Handle) error {
	for _, h := range handles {
		if _, err := s.Wait(ctx, h, 0); err != nil {
			if ctx.Err() != nil {
				return err
			}
		}
	}
	return nil
}

// Result returns h's final value, blocking if necessary, or re-raises the
// child's failure with its original error kind.
func (s *Scheduler) Result(ctx context.Context, h *Handle) (any, error) {
	return s.Wait(ctx, h, 0)
}

// Cancel calls Cancel on the workflow handle of every child spawned through
// ic whose status is not yet terminal. On engine/inmem that delivers
// engine.SignalCancel, which each child observes at its next suspension
// point (spec.md §4.H, §5). ic's own invocation is not cancelled, and the
// children's recorded status is not changed here.
func (ic *InvocationContext) Cancel(ctx context.Context) error {
	ic.mu.Lock()
	children := append([]*Handle(nil), ic.children...)
	ic.mu.Unlock()

	for _, child := range children {
		status := ic.scheduler.Status(child)
		if isTerminal(status.Status) {
			continue
		}
		if err := child.wfHandle.Cancel(ctx); err != nil {
			return tactuserr.Wrap(tactuserr.KindInternal, err, "scheduler: cancel child "+child.procedure)
		}
	}
	return nil
}

// Cancelled reports whether ic's invocation has received a cancellation
// signal since the last call; primitives call this at every suspension
// point to raise tactuserr.Cancelled promptly.
func (ic *InvocationContext) Cancelled() bool {
	var v any
	return ic.wf.SignalChannel(engine.SignalCancel).ReceiveAsync(&v)
}

// SetWaitingForHuman updates the invocation's status so a parent's
// Procedure.status(handle) reports waiting_human while a hitl.Gateway
// request is outstanding. The hitl package doesn't know about the
// scheduler, so the script bridge's Human.* primitives wrap every
// Gateway dispatch with this call.
func (ic *InvocationContext) SetWaitingForHuman(waiting bool) {
	ic.tracker.mu.Lock()
	defer ic.tracker.mu.Unlock()
	ic.tracker.waitingForHuman = waiting
	if waiting {
		ic.tracker.status = StatusWaitingHuman
	} else if ic.tracker.status == StatusWaitingHuman {
		ic.tracker.status = StatusRunning
	}
}

// Iterations exposes the Iterations.current/exceeded(n) script primitive:
// the count of agent turns taken across this invocation.
func (ic *InvocationContext) Iterations() *IterationCounter { return &IterationCounter{t: ic.tracker} }

// Increment records one more agent turn. Called by agentrt.Turn at the
// start of each turn, before the journal lookup, so replayed turns count
// too.
func (c *IterationCounter) Increment() {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	c.t.iterations++
}

// Current returns the number of agent turns taken so far.
func (c *IterationCounter) Current() int {
	c.t.mu.Lock()
	defer c.t.mu.Unlock()
	return c.t.iterations
}

// Exceeded reports whether Current() > n.
func (c *IterationCounter) Exceeded(n int) bool {
	return c.Current() > n
}

func childInvocationID(procedure string) string {
	normalized := strings.ReplaceAll(procedure, ".", "-")
	return fmt.Sprintf("%s-%s", normalized, uuid.NewString())
}
