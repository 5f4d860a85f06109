// Package agentrt implements the agent primitive described in spec.md §4.E:
// one Agent per declared agent binds a model config, a system prompt
// template, and the subset of tools it may call, and exposes a single
// turn() operation. It is grounded on the teacher's
// runtime/agent/runtime/workflow_turn.go (the tool-turn loop: candidate
// calls, tool execution, appending results to the message log) and
// model_wrapper.go (wrapping a provider client for one call), generalized
// from goa-ai's planner-driven multi-tool-call turn to Tactus's simpler
// single round-trip: render prompt, filter session, call provider, execute
// every requested tool through the already-journalling tools.Invoker, and
// journal the whole turn as one replay unit.
package agentrt

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"text/template"
	"time"

	"github.com/AnthusAI/Tactus/checkpoint"
	"github.com/AnthusAI/Tactus/eventlog"
	"github.com/AnthusAI/Tactus/internal/retry"
	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/scheduler"
	"github.com/AnthusAI/Tactus/session"
	"github.com/AnthusAI/Tactus/state"
	"github.com/AnthusAI/Tactus/tactuserr"
	"github.com/AnthusAI/Tactus/tools"
)

// Config is the per-agent declaration the procedure definition supplies
// (spec.md §4.E): model config, system prompt template, initial message,
// and the subset of tool names the agent may call. Only the tools named in
// AllowedTools have their definitions sent to the provider; an empty list
// sends none.
type Config struct {
	Name                 string
	Model                provider.Config
	SystemPromptTemplate string
	InitialMessage       string
	AllowedTools         []string
	// MaxRetries bounds retries of a KindProviderRetryable failure before it
	// is surfaced to the script as a KindProviderFatal error (spec.md §4.E
	// "Failure semantics").
	MaxRetries int
	// InitialBackoff and BackoffCoefficient parameterize the exponential
	// backoff applied between retries.
	InitialBackoff     time.Duration
	BackoffCoefficient float64
}

// TurnResult is the journalled outcome of one turn, per spec.md §4.E step 5.
type TurnResult struct {
	Text         string           `json:"text"`
	ToolCalls    []model.ToolCall `json:"tool_calls"`
	FinishReason string           `json:"finish_reason"`
	Cost         float64          `json:"cost"`
}

// Agent is one configured instance of the primitive described in spec.md
// §4.E. It owns no invocation-lifetime state beyond its own call counter;
// the session, journal, and event log it is constructed with are owned by
// the invocation.
type Agent struct {
	cfg      Config
	adapter  provider.Adapter
	registry tools.Invoker
	sess     *session.Session
	filter   session.Filter
	journal  checkpoint.Journal
	log      eventlog.Log
	ic       *scheduler.InvocationContext

	mu      sync.Mutex
	ordinal int
	tmpl    *template.Template
}

// New constructs an Agent. filter may be nil, meaning the full session
// history is visible every turn. ic may be nil for an agent run outside a
// scheduled invocation (e.g. a unit test), in which case the turn budget
// and cooperative-cancellation checks are skipped.
func New(cfg Config, adapter provider.Adapter, registry tools.Invoker, sess *session.Session, filter session.Filter, journal checkpoint.Journal, log eventlog.Log, ic *scheduler.InvocationContext) (*Agent, error) {
	tmpl, err := template.New(cfg.Name + ".system").Parse(cfg.SystemPromptTemplate)
	if err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "agentrt: invalid system prompt template")
	}
	a := &Agent{
		cfg:      cfg,
		adapter:  adapter,
		registry: registry,
		sess:     sess,
		filter:   filter,
		journal:  journal,
		log:      log,
		ic:       ic,
		tmpl:     tmpl,
	}
	if cfg.InitialMessage != "" {
		sess.Append(model.Message{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: cfg.InitialMessage}}})
	}
	return a, nil
}

// Turn performs one round-trip with the LLM, implementing the five steps of
// spec.md §4.E. params and st feed the system prompt template; st may be
// nil if the procedure has no declared state.
func (a *Agent) Turn(ctx context.Context, params map[string]any, st *state.Store) (*TurnResult, error) {
	if a.ic != nil && a.ic.Cancelled() {
		return nil, tactuserr.Cancelled("agent turn")
	}

	a.mu.Lock()
	ordinal := a.ordinal
	a.ordinal++
	a.mu.Unlock()

	if a.ic != nil {
		a.ic.Iterations().Increment()
	}

	step := checkpoint.New("agent:"+a.cfg.Name+":turn", ordinal)
	raw, err := a.journal.ReadThrough(ctx, step, "turn_result", func(ctx context.Context) (json.RawMessage, error) {
		result, err := a.runTurn(ctx, params, st)
		if err != nil {
			return nil, err
		}
		return json.Marshal(result)
	})
	if err != nil {
		return nil, err
	}
	var out TurnResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindCheckpointConflict, err, "agentrt: journalled turn result does not match TurnResult")
	}
	return &out, nil
}

// runTurn performs the actual provider round-trip and tool execution. It
// only runs on a journal miss; replay short-circuits to the journalled
// TurnResult without calling the provider or any tool again.
func (a *Agent) runTurn(ctx context.Context, params map[string]any, st *state.Store) (*TurnResult, error) {
	systemPrompt, err := a.renderSystemPrompt(params, st)
	if err != nil {
		return nil, err
	}

	history := a.sess.History()
	visible := history
	if a.filter != nil {
		visible = a.filter.Apply(history)
	}
	messages := append([]model.Message{{Role: model.RoleSystem, Parts: []model.Part{model.TextPart{Text: systemPrompt}}}}, visible...)

	req := model.Request{
		Model:       a.cfg.Model.Model,
		Messages:    messages,
		Tools:       a.toolDefinitions(),
		Temperature: a.cfg.Model.Temperature,
		MaxTokens:   a.cfg.Model.MaxTokens,
	}

	resp, err := a.complete(ctx, req)
	if err != nil {
		// Partial streamed output before a failure is discarded, never
		// journalled (spec.md §4.E "Failure semantics").
		return nil, err
	}

	a.emitAgentTurn(ctx, resp.Text, resp.FinishReason)

	assistantMsg := model.Message{Role: model.RoleAssistant}
	if resp.Text != "" {
		assistantMsg.Parts = append(assistantMsg.Parts, model.TextPart{Text: resp.Text})
	}
	for _, tc := range resp.ToolCalls {
		assistantMsg.Parts = append(assistantMsg.Parts, model.ToolUsePart{ID: tc.ID, Name: tc.Name, Input: tc.Payload})
	}
	a.sess.Append(assistantMsg)

	for _, tc := range resp.ToolCalls {
		if a.ic != nil && a.ic.Cancelled() {
			return nil, tactuserr.Cancelled("agent turn tool execution")
		}
		result, invokeErr := a.registry.Invoke(ctx, tc.Name, tc.Payload)
		isError := invokeErr != nil
		content := result
		if isError {
			content, _ = json.Marshal(map[string]string{"error": invokeErr.Error()})
		}
		a.sess.Append(model.Message{
			Role:  model.RoleTool,
			Parts: []model.Part{model.ToolResultPart{ToolUseID: tc.ID, Content: content, IsError: isError}},
		})
	}

	return &TurnResult{
		Text:         resp.Text,
		ToolCalls:    resp.ToolCalls,
		FinishReason: resp.FinishReason,
		Cost:         estimateCost(resp.Usage, a.cfg.Model.Model),
	}, nil
}

// complete calls the provider adapter, retrying KindProviderRetryable
// failures through internal/retry's exponential-backoff loop up to
// cfg.MaxRetries. A KindProviderFatal failure, or a retryable failure that
// exhausts the budget, bubbles as the script-visible error from turn()
// (spec.md §4.E).
func (a *Agent) complete(ctx context.Context, req model.Request) (*model.Response, error) {
	policy := retry.DefaultPolicy()
	if a.cfg.MaxRetries > 0 {
		policy.MaxAttempts = a.cfg.MaxRetries + 1
	}
	if a.cfg.InitialBackoff > 0 {
		policy.InitialBackoff = a.cfg.InitialBackoff
	}
	if a.cfg.BackoffCoefficient > 0 {
		policy.BackoffMultiplier = a.cfg.BackoffCoefficient
	}

	var resp *model.Response
	err := retry.Do(ctx, policy, func(ctx context.Context, attempt int) error {
		r, err := a.adapter.Complete(ctx, a.cfg.Model, req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})
	if err != nil {
		var exhausted *retry.ExhaustedError
		if errors.As(err, &exhausted) {
			return nil, tactuserr.Wrap(tactuserr.KindProviderFatal, exhausted.LastErr, "agentrt: retry budget exhausted")
		}
		return nil, err
	}
	return resp, nil
}

func (a *Agent) toolDefinitions() []model.ToolDefinition {
	names := a.cfg.AllowedTools
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		spec, ok := a.registry.Spec(name)
		if !ok {
			continue
		}
		defs = append(defs, model.ToolDefinition{Name: spec.Name, Description: spec.Description, InputSchema: spec.ArgSchema})
	}
	return defs
}

func (a *Agent) renderSystemPrompt(params map[string]any, st *state.Store) (string, error) {
	data := map[string]any{"params": params}
	if st != nil {
		data["state"] = st.Dump()
	}
	var buf bytes.Buffer
	if err := a.tmpl.Execute(&buf, data); err != nil {
		return "", tactuserr.Wrap(tactuserr.KindInternal, err, "agentrt: system prompt render failed")
	}
	return buf.String(), nil
}

func (a *Agent) emitAgentTurn(ctx context.Context, text, finishReason string) {
	if a.log == nil {
		return
	}
	_, _ = a.log.Append(ctx, eventlog.Event{
		Type: eventlog.TypeAgentTurn,
		Payload: map[string]any{
			"agent":         a.cfg.Name,
			"stage":         "responded",
			"text":          text,
			"finish_reason": finishReason,
		},
	})
}

// estimateCost is a placeholder pricing function: it applies one flat rate
// per thousand total tokens, whatever the model id.
func estimateCost(usage model.TokenUsage, modelID string) float64 {
	const perThousand = 0.002
	return float64(usage.TotalTokens) / 1000 * perThousand
}
