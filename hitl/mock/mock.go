// Package mock provides deterministic hitl.Responder implementations for
// tests and the BDD evaluation harness: procedures run unattended, but every
// human request still appends its hitl_request/hitl_resolved events, so
// scenario assertions and journal replay behave identically to the signal
// responder's path (spec.md §4.J's "mock HITL").
package mock

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/AnthusAI/Tactus/hitl"
)

// Responder resolves every hitl.Request from a small, explicit policy:
// exact match by request message, then a per-kind default, then a global
// fallback. This mirrors tools.MockRegistry's exact/default/fallback
// resolution order so the two mocking surfaces read the same way.
type Responder struct {
	mu        sync.Mutex
	byMessage map[string]hitl.Resolution
	byKind    map[hitl.Kind]hitl.Resolution
	fallback  hitl.Resolution
}

// NewResponder constructs a Responder whose fallback resolution is used
// whenever no message- or kind-specific answer has been configured.
func NewResponder(fallback hitl.Resolution) *Responder {
	return &Responder{
		byMessage: make(map[string]hitl.Resolution),
		byKind:    make(map[hitl.Kind]hitl.Resolution),
		fallback:  fallback,
	}
}

// AutoApprove returns a Responder that resolves every request as approved
// with a boolean true value, the common case for "let the procedure run
// to completion without touching a human" scenarios.
func AutoApprove() *Responder {
	v, _ := json.Marshal(true)
	return NewResponder(hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: v})
}

// AutoReject returns a Responder that resolves every request as rejected.
func AutoReject() *Responder {
	v, _ := json.Marshal(false)
	return NewResponder(hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: v})
}

// OnMessage configures the resolution returned for requests whose Message
// matches exactly.
func (r *Responder) OnMessage(message string, res hitl.Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byMessage[message] = res
}

// OnKind configures the resolution returned for every request of a given
// Kind that has no message-specific override.
func (r *Responder) OnKind(kind hitl.Kind, res hitl.Resolution) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byKind[kind] = res
}

// Respond implements hitl.Responder.
func (r *Responder) Respond(_ context.Context, req hitl.Request) (hitl.Resolution, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if res, ok := r.byMessage[req.Message]; ok {
		return res, nil
	}
	if res, ok := r.byKind[req.Kind]; ok {
		return res, nil
	}
	return r.fallback, nil
}

var _ hitl.Responder = (*Responder)(nil)
