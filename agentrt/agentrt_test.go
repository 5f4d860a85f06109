package agentrt_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/agentrt"
	"github.com/AnthusAI/Tactus/checkpoint/inmem"
	"github.com/AnthusAI/Tactus/eventlog"
	eventloginmem "github.com/AnthusAI/Tactus/eventlog/inmem"
	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/session"
	"github.com/AnthusAI/Tactus/tactuserr"
	"github.com/AnthusAI/Tactus/tools"
)

func newAgent(t *testing.T, adapter provider.Adapter, registry tools.Invoker, log eventlog.Log) (*agentrt.Agent, *session.Session) {
	t.Helper()
	sess := session.New(log)
	a, err := agentrt.New(agentrt.Config{
		Name:                 "assistant",
		Model:                provider.Config{Model: "mock-model"},
		SystemPromptTemplate: "You are helping with {{.params.task}}.",
		AllowedTools:         []string{"done"},
	}, adapter, registry, sess, nil, inmem.New(), log, nil)
	require.NoError(t, err)
	return a, sess
}

func TestTurnCallsProviderAndAppendsAssistantMessage(t *testing.T) {
	ctx := context.Background()
	log := eventloginmem.New("inv-1")
	registry := tools.NewRegistry(inmem.New(), log)
	adapter := provider.NewMockAdapter(model.Response{Text: "fallback"}, model.Response{Text: "hello there", FinishReason: "stop"})

	a, sess := newAgent(t, adapter, registry, log)

	out, err := a.Turn(ctx, map[string]any{"task": "shipping"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "hello there", out.Text)
	assert.Equal(t, "stop", out.FinishReason)

	history := sess.History()
	require.Len(t, history, 1)
	assert.Equal(t, model.RoleAssistant, history[0].Role)
	assert.Equal(t, "hello there", history[0].Text())
}

func TestTurnExecutesRequestedToolAndRecordsResult(t *testing.T) {
	ctx := context.Background()
	log := eventloginmem.New("inv-1")
	registry := tools.NewRegistry(inmem.New(), log)
	registry.Register(tools.Spec{Name: "lookup"}, func(ctx context.Context, args json.RawMessage) (json.RawMessage, error) {
		return json.Marshal(map[string]string{"found": "yes"})
	})

	resp := model.Response{
		Text:         "checking",
		ToolCalls:    []model.ToolCall{{ID: "call-1", Name: "lookup", Payload: json.RawMessage(`{}`)}},
		FinishReason: "tool_use",
	}
	adapter := provider.NewMockAdapter(model.Response{}, resp)

	sess := session.New(log)
	a, err := agentrt.New(agentrt.Config{
		Name:                 "assistant",
		Model:                provider.Config{Model: "mock-model"},
		SystemPromptTemplate: "prompt",
		AllowedTools:         []string{"lookup"},
	}, adapter, registry, sess, nil, inmem.New(), log, nil)
	require.NoError(t, err)

	_, err = a.Turn(ctx, nil, nil)
	require.NoError(t, err)

	history := sess.History()
	require.Len(t, history, 2)
	assert.Equal(t, model.RoleAssistant, history[0].Role)
	assert.Equal(t, model.RoleTool, history[1].Role)
	toolResult, ok := history[1].Parts[0].(model.ToolResultPart)
	require.True(t, ok)
	assert.Equal(t, "call-1", toolResult.ToolUseID)
	assert.False(t, toolResult.IsError)
}

func TestTurnReplaysJournalledResultWithoutReinvokingProvider(t *testing.T) {
	ctx := context.Background()
	log := eventloginmem.New("inv-1")
	registry := tools.NewRegistry(inmem.New(), log)
	calls := 0
	adapter := provider.AdapterFunc(func(ctx context.Context, cfg provider.Config, req model.Request) (*model.Response, error) {
		calls++
		return &model.Response{Text: "first"}, nil
	})

	journal := inmem.New()
	sess := session.New(log)
	a, err := agentrt.New(agentrt.Config{
		Name:                 "assistant",
		Model:                provider.Config{Model: "mock-model"},
		SystemPromptTemplate: "prompt",
	}, adapter, registry, sess, nil, journal, log, nil)
	require.NoError(t, err)

	_, err = a.Turn(ctx, nil, nil)
	require.NoError(t, err)

	// A second Agent sharing the same journal replays the first turn's
	// result rather than calling the provider again.
	sess2 := session.New(log)
	a2, err := agentrt.New(agentrt.Config{
		Name:                 "assistant",
		Model:                provider.Config{Model: "mock-model"},
		SystemPromptTemplate: "prompt",
	}, adapter, registry, sess2, nil, journal, log, nil)
	require.NoError(t, err)

	out, err := a2.Turn(ctx, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", out.Text)
	assert.Equal(t, 1, calls, "replayed turn should not call the provider again")
}

func TestProviderFatalErrorBubblesWithoutRetry(t *testing.T) {
	ctx := context.Background()
	log := eventloginmem.New("inv-1")
	registry := tools.NewRegistry(inmem.New(), log)
	calls := 0
	adapter := provider.AdapterFunc(func(ctx context.Context, cfg provider.Config, req model.Request) (*model.Response, error) {
		calls++
		return nil, tactuserr.New(tactuserr.KindProviderFatal, "bad api key")
	})

	a, _ := newAgent(t, adapter, registry, log)
	_, err := a.Turn(ctx, map[string]any{"task": "x"}, nil)
	require.Error(t, err)
	assert.Equal(t, tactuserr.KindProviderFatal, tactuserr.KindOf(err))
	assert.Equal(t, 1, calls)
}

func TestRetryableProviderErrorExhaustsBudgetAsProviderFatal(t *testing.T) {
	ctx := context.Background()
	log := eventloginmem.New("inv-1")
	registry := tools.NewRegistry(inmem.New(), log)
	calls := 0
	adapter := provider.AdapterFunc(func(ctx context.Context, cfg provider.Config, req model.Request) (*model.Response, error) {
		calls++
		return nil, tactuserr.New(tactuserr.KindProviderRetryable, "rate limited")
	})

	sess := session.New(log)
	a, err := agentrt.New(agentrt.Config{
		Name:                 "assistant",
		Model:                provider.Config{Model: "mock-model"},
		SystemPromptTemplate: "prompt",
		MaxRetries:           2,
		InitialBackoff:       time.Millisecond,
		BackoffCoefficient:   1,
	}, adapter, registry, sess, nil, inmem.New(), log, nil)
	require.NoError(t, err)

	_, err = a.Turn(ctx, nil, nil)
	require.Error(t, err)
	assert.Equal(t, tactuserr.KindProviderFatal, tactuserr.KindOf(err))
	assert.Equal(t, 3, calls, "expected initial attempt plus two retries")
}
