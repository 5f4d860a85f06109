// Package provider defines the LLM provider boundary (spec.md §6): a single
// Adapter interface every concrete backend implements, so the agent
// primitive never branches on provider identity. Concrete adapters are
// deliberately thin reference implementations; spec.md §1 scopes production
// streaming provider adapters out of this module's core.
package provider

import (
	"context"

	"github.com/AnthusAI/Tactus/model"
)

// Config carries the per-agent model configuration declared in the
// procedure definition (spec.md §4.E): provider, model id, temperature, max
// tokens, and provider-specific extras.
type Config struct {
	Provider    string
	Model       string
	Temperature float32
	MaxTokens   int
	Extra       map[string]any
}

// Adapter is the provider boundary every backend implements. Complete
// performs one non-streaming round-trip; the agent primitive is responsible
// for accumulating any provider-side streaming into the returned Response
// before Complete returns, and for discarding partial output on failure
// (spec.md §4.E).
type Adapter interface {
	Complete(ctx context.Context, cfg Config, req model.Request) (*model.Response, error)
}

// AdapterFunc adapts a function to the Adapter interface.
type AdapterFunc func(ctx context.Context, cfg Config, req model.Request) (*model.Response, error)

func (f AdapterFunc) Complete(ctx context.Context, cfg Config, req model.Request) (*model.Response, error) {
	return f(ctx, cfg, req)
}
