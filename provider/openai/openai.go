// Package openai is a thin reference provider.Adapter backed by
// github.com/openai/openai-go, the official Chat Completions client.
// Grounded on the teacher's features/model/openai client shape but ported
// to the official SDK, which is the OpenAI dependency actually present in
// the example pack's go.mod files.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/tactuserr"
)

// ChatClient captures the subset of the SDK used by the adapter.
type ChatClient interface {
	New(ctx context.Context, body sdk.ChatCompletionNewParams, opts ...option.RequestOption) (*sdk.ChatCompletion, error)
}

// Adapter implements provider.Adapter on top of OpenAI Chat Completions.
type Adapter struct {
	chat ChatClient
}

// New builds an Adapter from an existing chat completions client.
func New(chat ChatClient) *Adapter {
	return &Adapter{chat: chat}
}

// NewFromAPIKey constructs an Adapter using the default OpenAI HTTP client.
func NewFromAPIKey(apiKey string) *Adapter {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Chat.Completions)
}

// Complete issues one Chat Completions request and translates the response.
func (a *Adapter) Complete(ctx context.Context, cfg provider.Config, req model.Request) (*model.Response, error) {
	params, err := buildParams(cfg, req)
	if err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "build openai request")
	}
	resp, err := a.chat.New(ctx, *params)
	if err != nil {
		if isRetryable(err) {
			return nil, tactuserr.Wrap(tactuserr.KindProviderRetryable, err, "openai chat completion")
		}
		return nil, tactuserr.Wrap(tactuserr.KindProviderFatal, err, "openai chat completion")
	}
	return translate(resp), nil
}

var _ provider.Adapter = (*Adapter)(nil)

func buildParams(cfg provider.Config, req model.Request) (*sdk.ChatCompletionNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("openai: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = cfg.Model
	}
	if modelID == "" {
		return nil, errors.New("openai: model identifier is required")
	}

	messages := make([]sdk.ChatCompletionMessageParamUnion, 0, len(req.Messages))
	for _, m := range req.Messages {
		switch m.Role {
		case model.RoleSystem:
			messages = append(messages, sdk.SystemMessage(m.Text()))
		case model.RoleAssistant:
			messages = append(messages, sdk.AssistantMessage(m.Text()))
		case model.RoleTool:
			for _, p := range m.Parts {
				if tr, ok := p.(model.ToolResultPart); ok {
					messages = append(messages, sdk.ToolMessage(string(tr.Content), tr.ToolUseID))
				}
			}
		default:
			messages = append(messages, sdk.UserMessage(m.Text()))
		}
	}

	params := &sdk.ChatCompletionNewParams{
		Model:    modelID,
		Messages: messages,
	}
	if maxTokens := firstPositive(req.MaxTokens, cfg.MaxTokens); maxTokens > 0 {
		params.MaxTokens = sdk.Int(int64(maxTokens))
	}
	if temp := req.Temperature; temp == 0 {
		temp = cfg.Temperature
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	return params, nil
}

func encodeTools(defs []model.ToolDefinition) []sdk.ChatCompletionToolParam {
	out := make([]sdk.ChatCompletionToolParam, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		_ = json.Unmarshal(d.InputSchema, &schema)
		out = append(out, sdk.ChatCompletionToolParam{
			Function: shared.FunctionDefinitionParam{
				Name:        d.Name,
				Description: sdk.String(d.Description),
				Parameters:  schema,
			},
		})
	}
	return out
}

func translate(resp *sdk.ChatCompletion) *model.Response {
	out := &model.Response{
		Usage: model.TokenUsage{
			InputTokens:  int(resp.Usage.PromptTokens),
			OutputTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:  int(resp.Usage.TotalTokens),
		},
	}
	if len(resp.Choices) == 0 {
		return out
	}
	choice := resp.Choices[0]
	out.FinishReason = string(choice.FinishReason)
	out.Text = choice.Message.Content
	for _, call := range choice.Message.ToolCalls {
		out.ToolCalls = append(out.ToolCalls, model.ToolCall{
			ID:      call.ID,
			Name:    call.Function.Name,
			Payload: json.RawMessage(call.Function.Arguments),
		})
	}
	return out
}

func isRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

func firstPositive(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}
