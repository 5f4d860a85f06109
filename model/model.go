// Package model defines the provider-agnostic message and request/response
// types shared by the session, agent primitive, and provider adapters.
// Trimmed from the teacher's runtime/agent/model package: Tactus's provider
// boundary (spec.md §6) is non-streaming at the adapter interface, so the
// Streamer/Chunk/ToolCallDelta machinery is dropped; the agent primitive
// itself may still accumulate a streamed reply internally per spec.md §4.E.
package model

import "encoding/json"

// Role identifies the speaker for a Message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type (
	// Part is a marker interface implemented by every message content block.
	Part interface{ isPart() }

	// TextPart is plain assistant- or user-visible text.
	TextPart struct{ Text string }

	// ToolUsePart declares a tool invocation requested by the assistant.
	ToolUsePart struct {
		ID    string
		Name  string
		Input json.RawMessage
	}

	// ToolResultPart carries a tool result back to the model, correlated to
	// a prior ToolUsePart by ToolUseID.
	ToolResultPart struct {
		ToolUseID string
		Content   json.RawMessage
		IsError   bool
	}

	// Message is a single entry in a session's ordered message log.
	Message struct {
		Role  Role
		Parts []Part
		// Class tags the message's visibility class for HideClass filters
		// (spec.md §4.F). Empty means the default, always-visible class.
		Class string
	}

	// ToolDefinition describes a tool exposed to the model for one turn.
	ToolDefinition struct {
		Name        string
		Description string
		InputSchema json.RawMessage
	}

	// ToolCall is a tool invocation requested by the model in a Response.
	ToolCall struct {
		ID      string
		Name    string
		Payload json.RawMessage
	}

	// TokenUsage reports token consumption for one model call.
	TokenUsage struct {
		InputTokens  int
		OutputTokens int
		TotalTokens  int
	}

	// Request captures the inputs for one provider Complete call.
	Request struct {
		Model       string
		Messages    []Message
		Tools       []ToolDefinition
		Temperature float32
		MaxTokens   int
	}

	// Response is the result of a provider Complete call.
	Response struct {
		Text         string
		ToolCalls    []ToolCall
		Usage        TokenUsage
		FinishReason string
	}
)

func (TextPart) isPart()       {}
func (ToolUsePart) isPart()    {}
func (ToolResultPart) isPart() {}

// Text returns the concatenation of every TextPart in the message, ignoring
// tool-use and tool-result parts.
func (m Message) Text() string {
	out := ""
	for _, p := range m.Parts {
		if t, ok := p.(TextPart); ok {
			out += t.Text
		}
	}
	return out
}
