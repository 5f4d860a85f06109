package session_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/session"
	"github.com/AnthusAI/Tactus/state"
)

func textMsg(role model.Role, text string) model.Message {
	return model.Message{Role: role, Parts: []model.Part{model.TextPart{Text: text}}}
}

func TestLimitToolResultsKeepsOnlyLastK(t *testing.T) {
	messages := []model.Message{
		textMsg(model.RoleUser, "hi"),
		{Role: model.RoleTool, Parts: []model.Part{model.ToolResultPart{ToolUseID: "1"}}},
		{Role: model.RoleTool, Parts: []model.Part{model.ToolResultPart{ToolUseID: "2"}}},
		{Role: model.RoleTool, Parts: []model.Part{model.ToolResultPart{ToolUseID: "3"}}},
	}

	out := session.LimitToolResults(1).Apply(messages)

	toolCount := 0
	for _, m := range out {
		if m.Role == model.RoleTool {
			toolCount++
		}
	}
	assert.Equal(t, 1, toolCount)
	assert.Len(t, out, 2)
}

func TestHideClassDropsMatchingMessages(t *testing.T) {
	messages := []model.Message{
		textMsg(model.RoleUser, "visible"),
		{Role: model.RoleUser, Class: "debug", Parts: []model.Part{model.TextPart{Text: "hidden"}}},
	}

	out := session.HideClass("debug").Apply(messages)
	assert.Len(t, out, 1)
	assert.Equal(t, "visible", out[0].Text())
}

func TestComposedAppliesInOrder(t *testing.T) {
	messages := []model.Message{
		textMsg(model.RoleUser, "visible"),
		{Role: model.RoleUser, Class: "debug", Parts: []model.Part{model.TextPart{Text: "hidden"}}},
		{Role: model.RoleTool, Parts: []model.Part{model.ToolResultPart{ToolUseID: "1"}}},
		{Role: model.RoleTool, Parts: []model.Part{model.ToolResultPart{ToolUseID: "2"}}},
	}

	out := session.Composed(session.HideClass("debug"), session.LimitToolResults(1)).Apply(messages)
	assert.Len(t, out, 2)
}

func TestSessionHistoryAndClear(t *testing.T) {
	s := session.New(nil)
	s.Append(textMsg(model.RoleUser, "a"))
	s.Append(textMsg(model.RoleAssistant, "b"))
	assert.Len(t, s.History(), 2)

	s.Clear()
	assert.Empty(t, s.History())
}

func TestSaveToLoadFromRoundTripsMessagesWithToolParts(t *testing.T) {
	st := state.New(nil)
	s := session.New(nil)
	s.Append(textMsg(model.RoleUser, "what's the weather?"))
	s.Append(model.Message{
		Role: model.RoleAssistant,
		Parts: []model.Part{
			model.TextPart{Text: "checking"},
			model.ToolUsePart{ID: "1", Name: "weather", Input: []byte(`{"city":"nyc"}`)},
		},
	})
	s.Append(model.Message{
		Role:  model.RoleTool,
		Parts: []model.Part{model.ToolResultPart{ToolUseID: "1", Content: []byte(`{"f":55}`)}},
	})

	ctx := context.Background()
	require.NoError(t, s.SaveTo(ctx, st, "session:weather"))

	restored := session.New(nil)
	require.NoError(t, restored.LoadFrom(st, "session:weather"))

	assert.Equal(t, s.History(), restored.History())
}
