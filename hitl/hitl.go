// Package hitl implements the human-in-the-loop gateway described in
// spec.md §4.G: approve/input/review requests each append a hitl_request
// event, suspend the invocation, and await a resolution that is journalled
// under a step id built from the request kind and the gateway's call
// ordinal, so replay never re-prompts a human. It is grounded on the
// teacher's runtime/agent/interrupt.Controller, generalized from the
// teacher's two workflow signals (pause/resume) to three request kinds
// delivered over one shared signal channel, each resolution naming the
// request id it answers.
package hitl

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/engine"
	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type (
	// Kind distinguishes the three request shapes a procedure can raise.
	Kind string

	// Request describes one pending human interaction.
	Request struct {
		ID      string          `json:"id"`
		Kind    Kind            `json:"kind"`
		Message string          `json:"message"`
		Context json.RawMessage `json:"context,omitempty"`
		Timeout time.Duration   `json:"timeout,omitempty"`
		Default json.RawMessage `json:"default,omitempty"`
	}

	// Outcome is how a Request terminated.
	Outcome string

	// Resolution is the value delivered for a request, however it terminated.
	Resolution struct {
		Outcome Outcome         `json:"outcome"`
		Value   json.RawMessage `json:"value,omitempty"`
	}

	// Responder delivers a Resolution for a Request. The production
	// implementation is SignalResponder (below), backed by an
	// engine.WorkflowContext signal channel; hitl/mock supplies
	// deterministic responders for tests and the BDD harness.
	Responder interface {
		Respond(ctx context.Context, req Request) (Resolution, error)
	}

	// Gateway is the primitive agents and procedure scripts call through.
	// Every call is journalled under a request-scoped StepID so a resumed
	// invocation returns the prior Resolution instead of re-prompting.
	Gateway struct {
		journal   checkpoint.Journal
		log       eventlog.Log
		responder Responder
		ordinal   int
	}
)

const (
	KindApprove Kind = "approve"
	KindInput   Kind = "input"
	KindReview  Kind = "review"

	OutcomeResolved  Outcome = "resolved"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeCancelled Outcome = "cancelled"
)

// New constructs a Gateway that journals through journal, logs through log,
// and delivers requests to responder.
func New(journal checkpoint.Journal, log eventlog.Log, responder Responder) *Gateway {
	return &Gateway{journal: journal, log: log, responder: responder}
}

// Approve raises a yes/no request and returns the boolean answer.
func (g *Gateway) Approve(ctx context.Context, message string, reqCtx json.RawMessage, timeout time.Duration, def *bool) (bool, error) {
	var defRaw json.RawMessage
	if def != nil {
		defRaw, _ = json.Marshal(*def)
	}
	res, err := g.request(ctx, KindApprove, message, reqCtx, timeout, defRaw)
	if err != nil {
		return false, err
	}
	var v bool
	if len(res) > 0 {
		if err := json.Unmarshal(res, &v); err != nil {
			return false, tactuserr.Wrap(tactuserr.KindInternal, err, "hitl: decode approve result")
		}
	}
	return v, nil
}

// Input raises a free-text request and returns the human's answer.
func (g *Gateway) Input(ctx context.Context, message string, reqCtx json.RawMessage, timeout time.Duration, def *string) (string, error) {
	var defRaw json.RawMessage
	if def != nil {
		defRaw, _ = json.Marshal(*def)
	}
	res, err := g.request(ctx, KindInput, message, reqCtx, timeout, defRaw)
	if err != nil {
		return "", err
	}
	var v string
	if len(res) > 0 {
		if err := json.Unmarshal(res, &v); err != nil {
			return "", tactuserr.Wrap(tactuserr.KindInternal, err, "hitl: decode input result")
		}
	}
	return v, nil
}

// Review raises a structured request and returns the arbitrary JSON answer
// the human (or a mock) provided, decoded into dest.
func (g *Gateway) Review(ctx context.Context, message string, reqCtx json.RawMessage, timeout time.Duration, def json.RawMessage, dest any) error {
	res, err := g.request(ctx, KindReview, message, reqCtx, timeout, def)
	if err != nil {
		return err
	}
	if dest == nil || len(res) == 0 {
		return nil
	}
	if err := json.Unmarshal(res, dest); err != nil {
		return tactuserr.Wrap(tactuserr.KindInternal, err, "hitl: decode review result")
	}
	return nil
}

// request is the shared path for Approve/Input/Review: it journals the
// full round trip (request dispatch through resolution) under one StepID so
// a resumed invocation with an already-journalled request never re-raises
// the hitl_request event or re-blocks on a human.
func (g *Gateway) request(ctx context.Context, kind Kind, message string, reqCtx json.RawMessage, timeout time.Duration, def json.RawMessage) (json.RawMessage, error) {
	g.ordinal++
	step := checkpoint.New("hitl:"+string(kind), g.ordinal)

	raw, err := g.journal.ReadThrough(ctx, step, "hitl_resolution", func(ctx context.Context) (json.RawMessage, error) {
		req := Request{
			ID:      uuid.NewString(),
			Kind:    kind,
			Message: message,
			Context: reqCtx,
			Timeout: timeout,
			Default: def,
		}
		g.emitRequest(ctx, req)

		res, err := g.responder.Respond(ctx, req)
		if err != nil {
			return nil, err
		}

		g.emitResolved(ctx, req, res)

		switch res.Outcome {
		case OutcomeResolved:
			return res.Value, nil
		case OutcomeTimedOut:
			if len(req.Default) == 0 {
				return nil, tactuserr.Newf(tactuserr.KindTimeout, "hitl %s request timed out with no default", kind)
			}
			return req.Default, nil
		case OutcomeCancelled:
			return nil, tactuserr.Cancelled("hitl " + string(kind))
		default:
			return nil, tactuserr.Newf(tactuserr.KindInternal, "hitl: unknown outcome %q", res.Outcome)
		}
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (g *Gateway) emitRequest(ctx context.Context, req Request) {
	if g.log == nil {
		return
	}
	_, _ = g.log.Append(ctx, eventlog.Event{
		Type: eventlog.TypeHITLRequest,
		Payload: map[string]any{
			"id":      req.ID,
			"kind":    req.Kind,
			"message": req.Message,
			"context": req.Context,
			"timeout": req.Timeout.String(),
			"default": req.Default,
		},
	})
}

func (g *Gateway) emitResolved(ctx context.Context, req Request, res Resolution) {
	if g.log == nil {
		return
	}
	_, _ = g.log.Append(ctx, eventlog.Event{
		Type: eventlog.TypeHITLResolved,
		Payload: map[string]any{
			"id":      req.ID,
			"outcome": res.Outcome,
			"value":   res.Value,
		},
	})
}

// SignalResponder implements Responder over an engine.WorkflowContext signal
// channel, the durable-execution path: a caller outside the invocation
// (the CLI or IDE) resolves a request by signalling the invocation's
// workflow with the request id and a Resolution payload. If timeout is
// positive and elapses first, SignalResponder synthesizes an
// OutcomeTimedOut resolution itself rather than blocking forever.
type SignalResponder struct {
	wfCtx engine.WorkflowContext
}

// NewSignalResponder builds a Responder that waits on wfCtx's signal
// channel for hitl resolutions.
func NewSignalResponder(wfCtx engine.WorkflowContext) *SignalResponder {
	return &SignalResponder{wfCtx: wfCtx}
}

const signalHITLResolve = "tactus.hitl.resolve"

// signalPayload is what a resolver delivers over the signal channel; it
// must carry the request id because one invocation may have several
// outstanding requests sharing the channel name.
type signalPayload struct {
	RequestID string          `json:"request_id"`
	Outcome   Outcome         `json:"outcome"`
	Value     json.RawMessage `json:"value,omitempty"`
}

func (r *SignalResponder) Respond(ctx context.Context, req Request) (Resolution, error) {
	ch := r.wfCtx.SignalChannel(signalHITLResolve)
	cancelCh := r.wfCtx.SignalChannel(engine.SignalCancel)

	cancelled := make(chan struct{}, 1)
	go func() {
		var v any
		if cancelCh.Receive(ctx, &v) == nil {
			cancelled <- struct{}{}
		}
	}()

	resolved := make(chan signalPayload, 1)
	failed := make(chan error, 1)
	go func() {
		for {
			var payload signalPayload
			if err := ch.Receive(ctx, &payload); err != nil {
				failed <- err
				return
			}
			if payload.RequestID != req.ID {
				// A resolution for a different outstanding request sharing
				// this channel; keep waiting for ours.
				continue
			}
			resolved <- payload
			return
		}
	}()

	var deadline <-chan time.Time
	if req.Timeout > 0 {
		timer := time.NewTimer(req.Timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case payload := <-resolved:
		return Resolution{Outcome: payload.Outcome, Value: payload.Value}, nil
	case err := <-failed:
		return Resolution{}, err
	case <-cancelled:
		return Resolution{Outcome: OutcomeCancelled}, nil
	case <-deadline:
		return Resolution{Outcome: OutcomeTimedOut}, nil
	case <-ctx.Done():
		return Resolution{}, ctx.Err()
	}
}
