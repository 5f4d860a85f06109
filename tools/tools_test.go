package tools_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/checkpoint/inmem"
	eventinmem "github.com/AnthusAI/Tactus/eventlog/inmem"
	"github.com/AnthusAI/Tactus/tools"
)

func TestBuiltinDoneTool(t *testing.T) {
	ctx := context.Background()
	r := tools.NewRegistry(inmem.New(), eventinmem.New("inv-1"))

	result, err := r.Invoke(ctx, "done", json.RawMessage(`{"summary":"finished"}`))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(result, &decoded))
	assert.Equal(t, true, decoded["done"])
	assert.Equal(t, "finished", decoded["summary"])
}

func TestInvokeJournalsAndDoesNotRepeatEffect(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	r := tools.NewRegistry(journal, eventinmem.New("inv-1"))

	calls := 0
	counter := func(context.Context, json.RawMessage) (json.RawMessage, error) {
		calls++
		return json.Marshal(calls)
	}
	r.Register(tools.Spec{Name: "counter"}, counter)

	first, err := r.Invoke(ctx, "counter", nil)
	require.NoError(t, err)

	// A resumed invocation builds a fresh Registry over the same journal, so
	// its first call to counter maps to the same step id as the original one.
	resumed := tools.NewRegistry(journal, eventinmem.New("inv-1"))
	resumed.Register(tools.Spec{Name: "counter"}, counter)
	second, err := resumed.Invoke(ctx, "counter", nil)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)
}

func TestUnknownToolReturnsToolError(t *testing.T) {
	ctx := context.Background()
	r := tools.NewRegistry(inmem.New(), eventinmem.New("inv-1"))

	_, err := r.Invoke(ctx, "nope", nil)
	assert.Error(t, err)
}

func TestMockRegistryExactMatchAndFallback(t *testing.T) {
	ctx := context.Background()
	log := eventinmem.New("inv-1")
	m := tools.NewMockRegistry(log, tools.MockResponse{Result: json.RawMessage(`{"ok":true}`)})

	m.OnCall("search", json.RawMessage(`{"q":"cats"}`), tools.MockResponse{Result: json.RawMessage(`{"hits":3}`)})

	result, err := m.Invoke(ctx, "search", json.RawMessage(`{"q":"cats"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"hits":3}`, string(result))

	result, err = m.Invoke(ctx, "search", json.RawMessage(`{"q":"dogs"}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(result))
}

func TestMockRegistryDefaultErrorPropagates(t *testing.T) {
	ctx := context.Background()
	m := tools.NewMockRegistry(eventinmem.New("inv-1"), tools.MockResponse{})
	m.OnDefault("flaky", tools.MockResponse{Err: errors.New("boom")})

	_, err := m.Invoke(ctx, "flaky", nil)
	assert.ErrorContains(t, err, "boom")
}
