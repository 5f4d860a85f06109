package openai_test

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/provider/openai"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type fakeChatClient struct {
	resp *sdk.ChatCompletion
	err  error
}

func (f *fakeChatClient) New(context.Context, sdk.ChatCompletionNewParams, ...option.RequestOption) (*sdk.ChatCompletion, error) {
	return f.resp, f.err
}

func req() model.Request {
	return model.Request{
		Model: "gpt-test",
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
		},
	}
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeChatClient{resp: &sdk.ChatCompletion{
		Choices: []sdk.ChatCompletionChoice{
			{
				FinishReason: "stop",
				Message:      sdk.ChatCompletionMessage{Content: "hello there"},
			},
		},
	}}
	a := openai.New(fake)

	resp, err := a.Complete(context.Background(), provider.Config{}, req())
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, "stop", resp.FinishReason)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	a := openai.New(&fakeChatClient{})
	_, err := a.Complete(context.Background(), provider.Config{}, model.Request{Model: "gpt-test"})

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindValidation, tErr.Kind)
}

func TestCompleteMapsServerErrorToRetryable(t *testing.T) {
	fake := &fakeChatClient{err: &sdk.Error{StatusCode: 500}}
	a := openai.New(fake)

	_, err := a.Complete(context.Background(), provider.Config{}, req())

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindProviderRetryable, tErr.Kind)
}

func TestCompleteMapsOtherErrorsToFatal(t *testing.T) {
	fake := &fakeChatClient{err: errors.New("boom")}
	a := openai.New(fake)

	_, err := a.Complete(context.Background(), provider.Config{}, req())

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindProviderFatal, tErr.Kind)
}
