package anthropic_test

import (
	"context"
	"errors"
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/model"
	"github.com/AnthusAI/Tactus/provider"
	"github.com/AnthusAI/Tactus/provider/anthropic"
	"github.com/AnthusAI/Tactus/tactuserr"
)

type fakeMessagesClient struct {
	resp *sdk.Message
	err  error
}

func (f *fakeMessagesClient) New(context.Context, sdk.MessageNewParams, ...option.RequestOption) (*sdk.Message, error) {
	return f.resp, f.err
}

func req() model.Request {
	return model.Request{
		Model:     "claude-test",
		MaxTokens: 256,
		Messages: []model.Message{
			{Role: model.RoleUser, Parts: []model.Part{model.TextPart{Text: "hi"}}},
		},
	}
}

func TestCompleteTranslatesTextResponse(t *testing.T) {
	fake := &fakeMessagesClient{resp: &sdk.Message{
		Content: []sdk.ContentBlockUnion{
			{Type: "text", Text: "hello there"},
		},
		StopReason: sdk.StopReasonEndTurn,
	}}
	a := anthropic.New(fake)

	resp, err := a.Complete(context.Background(), provider.Config{}, req())
	require.NoError(t, err)
	assert.Equal(t, "hello there", resp.Text)
	assert.Equal(t, string(sdk.StopReasonEndTurn), resp.FinishReason)
}

func TestCompleteRejectsEmptyMessages(t *testing.T) {
	a := anthropic.New(&fakeMessagesClient{})
	_, err := a.Complete(context.Background(), provider.Config{}, model.Request{Model: "claude-test", MaxTokens: 1})

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindValidation, tErr.Kind)
}

func TestCompleteMapsServerErrorToRetryable(t *testing.T) {
	fake := &fakeMessagesClient{err: &sdk.Error{StatusCode: 503}}
	a := anthropic.New(fake)

	_, err := a.Complete(context.Background(), provider.Config{}, req())

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindProviderRetryable, tErr.Kind)
}

func TestCompleteMapsOtherErrorsToFatal(t *testing.T) {
	fake := &fakeMessagesClient{err: errors.New("boom")}
	a := anthropic.New(fake)

	_, err := a.Complete(context.Background(), provider.Config{}, req())

	var tErr *tactuserr.Error
	require.ErrorAs(t, err, &tErr)
	assert.Equal(t, tactuserr.KindProviderFatal, tErr.Kind)
}
