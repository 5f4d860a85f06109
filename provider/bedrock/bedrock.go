// Package bedrock is a thin reference provider.Adapter backed by AWS
// Bedrock's Converse API, grounded on the teacher's features/model/bedrock
// client. Trimmed to a single non-streaming Converse call; the teacher's
// caching, thinking, and streaming machinery is out of scope per spec.md §1.
package bedrock

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
	"github.com/aws/smithy-go/document"

	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/tactuserr"
)

// RuntimeClient captures the subset of the Bedrock runtime client used by
// the adapter, so tests can substitute a fake.
type RuntimeClient interface {
	Converse(ctx context.Context, params *bedrockruntime.ConverseInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error)
}

// Adapter implements provider.Adapter on top of Bedrock Converse.
type Adapter struct {
	runtime RuntimeClient
}

// New builds an Adapter from an existing Bedrock runtime client.
func New(runtime RuntimeClient) *Adapter {
	return &Adapter{runtime: runtime}
}

// Complete issues one Converse call and translates the response.
func (a *Adapter) Complete(ctx context.Context, cfg provider.Config, req model.Request) (*model.Response, error) {
	input, err := buildInput(cfg, req)
	if err != nil {
		return nil, tactuserr.Wrap(tactuserr.KindValidation, err, "build bedrock request")
	}
	out, err := a.runtime.Converse(ctx, input)
	if err != nil {
		if isRetryable(err) {
			return nil, tactuserr.Wrap(tactuserr.KindProviderRetryable, err, "bedrock converse")
		}
		return nil, tactuserr.Wrap(tactuserr.KindProviderFatal, err, "bedrock converse")
	}
	return translate(out), nil
}

var _ provider.Adapter = (*Adapter)(nil)

func buildInput(cfg provider.Config, req model.Request) (*bedrockruntime.ConverseInput, error) {
	if len(req.Messages) == 0 {
		return nil, errors.New("bedrock: at least one message is required")
	}
	modelID := req.Model
	if modelID == "" {
		modelID = cfg.Model
	}
	if modelID == "" {
		return nil, errors.New("bedrock: model identifier is required")
	}

	var system []brtypes.SystemContentBlock
	var messages []brtypes.Message
	for _, m := range req.Messages {
		if m.Role == model.RoleSystem {
			system = append(system, &brtypes.SystemContentBlockMemberText{Value: m.Text()})
			continue
		}
		messages = append(messages, encodeMessage(m))
	}

	input := &bedrockruntime.ConverseInput{
		ModelId:  aws.String(modelID),
		Messages: messages,
		System:   system,
	}
	if len(req.Tools) > 0 {
		input.ToolConfig = encodeTools(req.Tools)
	}
	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = cfg.MaxTokens
	}
	temp := req.Temperature
	if temp == 0 {
		temp = cfg.Temperature
	}
	if maxTokens > 0 || temp > 0 {
		cfgParams := &brtypes.InferenceConfiguration{}
		if maxTokens > 0 {
			cfgParams.MaxTokens = aws.Int32(int32(maxTokens))
		}
		if temp > 0 {
			cfgParams.Temperature = aws.Float32(temp)
		}
		input.InferenceConfig = cfgParams
	}
	return input, nil
}

func encodeMessage(m model.Message) brtypes.Message {
	role := brtypes.ConversationRoleUser
	if m.Role == model.RoleAssistant {
		role = brtypes.ConversationRoleAssistant
	}
	var blocks []brtypes.ContentBlock
	for _, p := range m.Parts {
		switch part := p.(type) {
		case model.TextPart:
			blocks = append(blocks, &brtypes.ContentBlockMemberText{Value: part.Text})
		case model.ToolUsePart:
			var input document.Interface
			var decoded map[string]any
			_ = json.Unmarshal(part.Input, &decoded)
			input = document.NewLazyDocument(decoded)
			blocks = append(blocks, &brtypes.ContentBlockMemberToolUse{
				Value: brtypes.ToolUseBlock{ToolUseId: aws.String(part.ID), Name: aws.String(part.Name), Input: input},
			})
		case model.ToolResultPart:
			status := brtypes.ToolResultStatusSuccess
			if part.IsError {
				status = brtypes.ToolResultStatusError
			}
			blocks = append(blocks, &brtypes.ContentBlockMemberToolResult{
				Value: brtypes.ToolResultBlock{
					ToolUseId: aws.String(part.ToolUseID),
					Status:    status,
					Content:   []brtypes.ToolResultContentBlock{&brtypes.ToolResultContentBlockMemberText{Value: string(part.Content)}},
				},
			})
		}
	}
	return brtypes.Message{Role: role, Content: blocks}
}

func encodeTools(defs []model.ToolDefinition) *brtypes.ToolConfiguration {
	tools := make([]brtypes.Tool, 0, len(defs))
	for _, d := range defs {
		var schema map[string]any
		_ = json.Unmarshal(d.InputSchema, &schema)
		tools = append(tools, &brtypes.ToolMemberToolSpec{
			Value: brtypes.ToolSpecification{
				Name:        aws.String(d.Name),
				Description: aws.String(d.Description),
				InputSchema: &brtypes.ToolInputSchemaMemberJson{Value: document.NewLazyDocument(schema)},
			},
		})
	}
	return &brtypes.ToolConfiguration{Tools: tools}
}

func translate(out *bedrockruntime.ConverseOutput) *model.Response {
	resp := &model.Response{}
	if out.Usage != nil {
		resp.Usage = model.TokenUsage{
			InputTokens:  int(aws.ToInt32(out.Usage.InputTokens)),
			OutputTokens: int(aws.ToInt32(out.Usage.OutputTokens)),
			TotalTokens:  int(aws.ToInt32(out.Usage.TotalTokens)),
		}
	}
	resp.FinishReason = string(out.StopReason)
	member, ok := out.Output.(*brtypes.ConverseOutputMemberMessage)
	if !ok {
		return resp
	}
	for _, block := range member.Value.Content {
		switch v := block.(type) {
		case *brtypes.ContentBlockMemberText:
			resp.Text += v.Value
		case *brtypes.ContentBlockMemberToolUse:
			var decoded map[string]any
			_ = v.Value.Input.UnmarshalSmithyDocument(&decoded)
			payload, _ := json.Marshal(decoded)
			resp.ToolCalls = append(resp.ToolCalls, model.ToolCall{
				ID:      aws.ToString(v.Value.ToolUseId),
				Name:    aws.ToString(v.Value.Name),
				Payload: payload,
			})
		}
	}
	return resp
}

func isRetryable(err error) bool {
	var throttle *brtypes.ThrottlingException
	var serviceErr *brtypes.InternalServerException
	return errors.As(err, &throttle) || errors.As(err, &serviceErr)
}
