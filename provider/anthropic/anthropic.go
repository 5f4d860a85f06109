// Package anthropic is a thin reference provider.Adapter backed by
// github.com/anthropics/anthropic-sdk-go. It is grounded on the teacher's
// features/model/anthropic client, trimmed to the plain request/response
// shape Tactus needs: production streaming and prompt-caching concerns are
// an out-of-core external collaborator per spec.md §1.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/tactuserr"
)

// MessagesClient captures the subset of the SDK used by the adapter, so
// tests can substitute a fake.
type MessagesClient interface {
	New(ctx context.Context, body sdk.MessageNewParams, opts ...option.RequestOption) (*sdk.Message, error)
}

// Adapter implements provider.Adapter on top of Anthropic's Messages API.
type Adapter struct {
	msg MessagesClient
}

// New builds an Adapter from an existing Messages client.
func New(msg MessagesClient) *Adapter {
	return &Adapter{msg: msg}
}

// NewFromAPIKey constructs an Adapter using the default Anthropic HTTP
// client, authenticated with apiKey via option.WithAPIKey.
func NewFromAPIKey(apiKey string) *Adapter {
	client := sdk.NewClient(option.WithAPIKey(apiKey))
	return New(&client.Messages)
}

// Complete issues one non-streaming Messages.New call and translates the
// response back into model.Response.
func (a *Adapter) Complete(ctx context.Context, cfg provider.Config, req model.Request) (*model.Response, error) {
	params, err := buildParams(cfg, req)
	if err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "build anthropic request")
	}

	msg, err := a.msg.New(ctx, *params)
	if err != nil {
		if isRetryable(err) {
			return nil, tactuserr.Wrap(tactuserr.KindProviderRetryable, err, "anthropic messages.new")
		}
		return nil, tactuserr.Wrap(tactuserr.KindProviderFatal, err, "anthropic messages.new")
	}
	return translate(msg), nil
}

var _ provider.Adapter = (*Adapter)(nil)

func buildParams(cfg provider.Config, req model.Request) (*sdk.MessageNewParams, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("anthropic: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = cfg.Model
	}
	if modelID == "" {
		return nil, errors.New("anthropic: model identifier is required")
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}
	if maxTokens <= 0 {
		return nil, errors.New("anthropic: max_tokens must be positive")
	}

	var system []sdk.TextBlockParam
	var messages []sdk.MessageParam
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			system = append(system, sdk.TextBlockParam{Text: m.Text()})
			continue
		}
		messages = append(messages, encodeMessage(m))
	}

	params := &sdk.MessageNewParams{
		Model:     sdk.Model(modelID),
		MaxTokens: int64(maxTokens),
		Messages:  messages,
	}
	if len(system) > 0 {
		params.System = system
	}
	temp := req.Temperature
	if temp == 0 {
		temp = cfg.Temperature
	}
	if temp > 0 {
		params.Temperature = sdk.Float(float64(temp))
	}
	if len(req.Tools) > 0 {
		params.Tools = encodeTools(req.Tools)
	}
	return params, nil
}

func encodeMessage(m model.Message) sdk.MessageParam {
	role := sdk.MessageParamRoleUser
	if m.Role == model.RoleAssistant {
		role = sdk.MessageParamRoleAssistant
	}
	var blocks []sdk.ContentBlockParamUnion
	for _, p := range m.Parts {
		switch part := p.(type) {
		case model.TextPart:
			blocks = append(blocks, sdk.NewTextBlock(part.Text))
		case model.ToolUsePart:
			var input any
			_ = json.Unmarshal(part.Input, &input)
			blocks = append(blocks, sdk.NewToolUseBlock(part.ID, input, part.Name))
		case model.ToolResultPart:
			blocks = append(blocks, sdk.NewToolResultBlock(part.ToolUseID, string(part.Content), part.IsError))
		}
	}
	return sdk.MessageParam{Role: role, Content: blocks}
}

func encodeTools(defs []model.ToolDefinition) []sdk.ToolUnionParam {
	out := make([]sdk.ToolUnionParam, 0, len(defs))
	for _, d := range defs {
		var schema any
		_ = json.Unmarshal(d.InputSchema, &schema)
		out = append(out, sdk.ToolUnionParam{
			OfTool: &sdk.ToolParam{
				Name:        d.Name,
				Description: sdk.String(d.Description),
				InputSchema: sdk.ToolInputSchemaParam{Properties: schema},
			},
		})
	}
	return out
}

func translate(msg *sdk.Message) *model.Response {
	resp := &model.Response{
		Usage: model.TokenUsage{
			InputTokens:  int(msg.Usage.InputTokens),
			OutputTokens: int(msg.Usage.OutputTokens),
			TotalTokens:  int(msg.Usage.InputTokens + msg.Usage.OutputTokens),
		},
		FinishReason: string(msg.StopReason),
	}
	for _, block := range msg.Content {
		switch variant := block.AsAny().(type) {
		case sdk.TextBlock:
			resp.Text += variant.Text
		case sdk.ToolUseBlock:
			payload, _ := json.Marshal(variant.Input)
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{ID: variant.ID, Name: variant.Name, Payload: payload})
		}
	}
	return resp
}

func isRetryable(err error) bool {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}
