package tools

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/AnthusAI/Tactus/eventlog"
)

type (
	// MockResponse is a canned reply for a given (tool, argument-fingerprint)
	// pair, or an error to return instead.
	MockResponse struct {
		Result json.RawMessage
		Err    error
	}

	// MockRegistry implements Invoker by looking up a response in a static
	// mapping keyed on an exact-match fingerprint of (tool name, arguments),
	// falling back to a per-tool default and finally a global default.
	// Records tool_call events with Registry's fields plus "mocked": true,
	// so event assertions see the same shape; it writes nothing to a
	// checkpoint journal.
	MockRegistry struct {
		log      eventlog.Log
		specs    map[string]Spec
		byCall   map[string]MockResponse
		defaults map[string]MockResponse
		fallback MockResponse
	}
)

// NewMockRegistry constructs an empty MockRegistry that falls back to
// fallback when no exact or default match is found.
func NewMockRegistry(log eventlog.Log, fallback MockResponse) *MockRegistry {
	return &MockRegistry{
		log:      log,
		specs:    make(map[string]Spec),
		byCall:   make(map[string]MockResponse),
		defaults: make(map[string]MockResponse),
		fallback: fallback,
	}
}

// RegisterSpec records tool metadata so Spec lookups succeed against mocked
// tools exactly as they would against the real registry.
func (m *MockRegistry) RegisterSpec(spec Spec) {
	m.specs[spec.Name] = spec
}

// OnCall maps an exact (tool, args) fingerprint to a canned response.
func (m *MockRegistry) OnCall(tool string, args json.RawMessage, resp MockResponse) {
	m.byCall[fingerprint(tool, args)] = resp
}

// OnDefault sets the response returned for any call to tool that does not
// match an exact fingerprint registered via OnCall.
func (m *MockRegistry) OnDefault(tool string, resp MockResponse) {
	m.defaults[tool] = resp
}

// Spec returns the registered Spec for name.
func (m *MockRegistry) Spec(name string) (Spec, bool) {
	spec, ok := m.specs[name]
	return spec, ok
}

// Invoke resolves a canned response for (name, args), preferring an exact
// match, then a per-tool default, then the global fallback.
func (m *MockRegistry) Invoke(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	resp, ok := m.byCall[fingerprint(name, args)]
	if !ok {
		resp, ok = m.defaults[name]
	}
	if !ok {
		resp = m.fallback
	}

	status := "ok"
	errMsg := ""
	if resp.Err != nil {
		status = "error"
		errMsg = resp.Err.Error()
	}
	if m.log != nil {
		_, _ = m.log.Append(ctx, eventlog.Event{
			Type: eventlog.TypeToolCall,
			Payload: map[string]any{
				"tool":   name,
				"args":   json.RawMessage(args),
				"result": resp.Result,
				"status": status,
				"error":  errMsg,
				"mocked": true,
			},
		})
	}
	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.Result, nil
}

var _ Invoker = (*MockRegistry)(nil)

// fingerprint produces a stable exact-match key for a (tool, args) pair.
func fingerprint(tool string, args json.RawMessage) string {
	h := sha256.Sum256(append([]byte(tool+"\x00"), args...))
	return hex.EncodeToString(h[:])
}
