package provider

import (
	"context"

	"github.com/AnthusAI/Tactus/model"
)

// MockAdapter returns canned Responses from a scripted queue. The agentrt
// and procedure tests use it, and cmd/tactus's resolveProvider returns it
// for an empty or unrecognized provider name, to exercise the agent
// primitive deterministically without a real provider.
type MockAdapter struct {
	responses []model.Response
	pos       int
	fallback  model.Response
}

// NewMockAdapter constructs a MockAdapter that returns responses in order,
// then repeats fallback once exhausted.
func NewMockAdapter(fallback model.Response, responses ...model.Response) *MockAdapter {
	return &MockAdapter{responses: responses, fallback: fallback}
}

func (m *MockAdapter) Complete(context.Context, Config, model.Request) (*model.Response, error) {
	if m.pos < len(m.responses) {
		resp := m.responses[m.pos]
		m.pos++
		return &resp, nil
	}
	resp := m.fallback
	return &resp, nil
}

var _ Adapter = (*MockAdapter)(nil)
