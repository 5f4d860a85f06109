package bdd_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/bdd"
	"github.com/AnthusAI/Tactus/hitl"
	hitlmock "github.com/AnthusAI/Tactus/hitl/mock"
	"github.com/AnthusAI/Tactus/tools"
)

func newContext(outcome *bdd.Outcome) *bdd.StepContext {
	return &bdd.StepContext{
		Mocks: &bdd.Mocks{
			Tools:  tools.NewMockRegistry(nil, tools.MockResponse{}),
			Human:  hitlmock.NewResponder(hitl.Resolution{}),
			Params: map[string]any{},
		},
	}
}

func TestBuiltinToolReturnsConfiguresMock(t *testing.T) {
	lib := bdd.NewStepLibrary()
	c := newContext(nil)
	require.NoError(t, lib.Run(c, `the "lookup" tool returns {"ok": true}`))
	result, err := c.Mocks.Tools.Invoke(context.Background(), "lookup", []byte(`{}`))
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok": true}`, string(result))
}

func TestBuiltinHumanApproveConfiguresMock(t *testing.T) {
	lib := bdd.NewStepLibrary()
	c := newContext(nil)
	require.NoError(t, lib.Run(c, `Human.approve will return true`))
	res, err := c.Mocks.Human.Respond(context.Background(), hitl.Request{Kind: hitl.KindApprove, Message: "ship it?"})
	require.NoError(t, err)
	assert.Equal(t, hitl.OutcomeResolved, res.Outcome)
	assert.JSONEq(t, "true", string(res.Value))
}

func TestBuiltinParameterAssertion(t *testing.T) {
	lib := bdd.NewStepLibrary()
	c := newContext(nil)
	c.Mocks.Params["amount"] = float64(10)
	assert.NoError(t, lib.Run(c, `the parameter "amount" equals 10`))
	assert.Error(t, lib.Run(c, `the parameter "amount" equals 11`))
}

func withRun(out *bdd.Outcome, err error) *bdd.StepContext {
	c := newContext(nil)
	c.Run = func() (*bdd.Outcome, error) { return out, err }
	return c
}

func TestBuiltinCompletionAssertion(t *testing.T) {
	lib := bdd.NewStepLibrary()
	c := withRun(&bdd.Outcome{Status: "completed"}, nil)
	assert.NoError(t, lib.Run(c, "the procedure completes successfully"))

	c2 := withRun(&bdd.Outcome{Status: "failed"}, nil)
	assert.Error(t, lib.Run(c2, "the procedure completes successfully"))
}

func TestBuiltinToolCallAssertion(t *testing.T) {
	lib := bdd.NewStepLibrary()
	out := &bdd.Outcome{ToolCalls: []bdd.ToolCallRecord{{Name: "refund", Count: 2}}}
	c := withRun(out, nil)
	assert.NoError(t, lib.Run(c, `the "refund" tool was called`))
	assert.NoError(t, lib.Run(c, `the "refund" tool was called at least 2 times`))
	assert.Error(t, lib.Run(c, `the "refund" tool was called at least 3 times`))
	assert.Error(t, lib.Run(c, `the "charge" tool was called`))
}

func TestBuiltinStageAssertions(t *testing.T) {
	lib := bdd.NewStepLibrary()
	out := &bdd.Outcome{Stages: []string{"intake", "review", "done"}, FinalStage: "done"}
	c := withRun(out, nil)
	assert.NoError(t, lib.Run(c, `the stage is "done"`))
	assert.NoError(t, lib.Run(c, `the stage transitions from "intake" to "review"`))
	assert.Error(t, lib.Run(c, `the stage transitions from "review" to "intake"`))
}

func TestBuiltinStateAssertions(t *testing.T) {
	lib := bdd.NewStepLibrary()
	out := &bdd.Outcome{State: map[string]any{"retries": float64(2)}}
	c := withRun(out, nil)
	assert.NoError(t, lib.Run(c, `the state "retries" exists`))
	assert.NoError(t, lib.Run(c, `the state "retries" equals 2`))
	assert.Error(t, lib.Run(c, `the state "retries" equals 3`))
	assert.Error(t, lib.Run(c, `the state "missing" exists`))
}

func TestBuiltinIterationAssertions(t *testing.T) {
	lib := bdd.NewStepLibrary()
	out := &bdd.Outcome{Iterations: 3}
	c := withRun(out, nil)
	assert.NoError(t, lib.Run(c, "the procedure takes exactly 3 iterations"))
	assert.NoError(t, lib.Run(c, "the procedure takes between 1 and 5 iterations"))
	assert.Error(t, lib.Run(c, "the procedure takes between 4 and 5 iterations"))
	assert.NoError(t, lib.Run(c, "iterations should be less than 4"))
	assert.Error(t, lib.Run(c, "iterations should be less than 3"))
}

func TestBuiltinStopReasonAssertion(t *testing.T) {
	lib := bdd.NewStepLibrary()
	out := &bdd.Outcome{FinishReason: "tool_use"}
	c := withRun(out, nil)
	assert.NoError(t, lib.Run(c, `stop reason should contain "tool_use"`))
	assert.Error(t, lib.Run(c, `stop reason should contain "end_turn"`))
}

func TestRegisterCustomStepTakesPrecedence(t *testing.T) {
	lib := bdd.NewStepLibrary()
	called := false
	require.NoError(t, lib.Register(`the procedure completes successfully`, func(c *bdd.StepContext, args []string) error {
		called = true
		return nil
	}))
	c := withRun(&bdd.Outcome{Status: "failed"}, nil)
	assert.NoError(t, lib.Run(c, "the procedure completes successfully"))
	assert.True(t, called)
}
