package model_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AnthusAI/Tactus/model"
)

func TestMessageTextConcatenatesOnlyTextParts(t *testing.T) {
	msg := model.Message{
		Role: model.RoleAssistant,
		Parts: []model.Part{
			model.TextPart{Text: "hello, "},
			model.ToolUsePart{ID: "1", Name: "shout"},
			model.TextPart{Text: "world"},
		},
	}

	assert.Equal(t, "hello, world", msg.Text())
}

func TestMessageTextEmptyWithNoTextParts(t *testing.T) {
	msg := model.Message{Role: model.RoleTool, Parts: []model.Part{
		model.ToolResultPart{ToolUseID: "1", Content: []byte(`"ok"`)},
	}}

	assert.Equal(t, "", msg.Text())
}
