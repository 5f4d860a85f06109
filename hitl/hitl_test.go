package hitl_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/checkpoint/inmem"
	"github.com/AnthusAI/Tactus/eventlog"
	eventloginmem "github.com/AnthusAI/Tactus/eventlog/inmem"
	"github.com/AnthusAI/Tactus/hitl"
	hitlmock "github.com/AnthusAI/Tactus/hitl/mock"
	"github.com/AnthusAI/Tactus/tactuserr"
)

func TestApproveResolved(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	log := eventloginmem.New("inv-1")
	gw := hitl.New(journal, log, hitlmock.AutoApprove())

	ok, err := gw.Approve(ctx, "deploy to prod?", nil, 0, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	events, err := log.Snapshot(ctx)
	require.NoError(t, err)
	var sawRequest, sawResolved bool
	for _, e := range events {
		switch e.Type {
		case eventlog.TypeHITLRequest:
			sawRequest = true
		case eventlog.TypeHITLResolved:
			sawResolved = true
		}
	}
	assert.True(t, sawRequest)
	assert.True(t, sawResolved)
}

func TestApproveReplaysWithoutReprompting(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	log := eventloginmem.New("inv-1")
	calls := 0
	responder := hitlmock.NewResponder(hitl.Resolution{})
	responder.OnKind(hitl.KindApprove, hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: mustJSON(true)})
	counting := countingResponder{inner: responder, calls: &calls}
	gw := hitl.New(journal, log, counting)

	_, err := gw.Approve(ctx, "ship it?", nil, 0, nil)
	require.NoError(t, err)

	// A resumed invocation builds a fresh Gateway over the same journal, so
	// its first Approve call maps to the same step id as the original one.
	resumed := hitl.New(journal, log, counting)
	_, err = resumed.Approve(ctx, "ship it?", nil, 0, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, calls, "the resumed Approve call should replay the journalled resolution, not re-prompt")
}

func TestTimeoutWithoutDefaultRaisesTimeoutKind(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	log := eventloginmem.New("inv-1")
	responder := hitlmock.NewResponder(hitl.Resolution{Outcome: hitl.OutcomeTimedOut})
	gw := hitl.New(journal, log, responder)

	_, err := gw.Approve(ctx, "confirm?", nil, 0, nil)
	require.Error(t, err)
	assert.Equal(t, tactuserr.KindTimeout, tactuserr.KindOf(err))
}

func TestTimeoutWithDefaultReturnsDefault(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	log := eventloginmem.New("inv-1")
	responder := hitlmock.NewResponder(hitl.Resolution{Outcome: hitl.OutcomeTimedOut})
	gw := hitl.New(journal, log, responder)

	def := true
	ok, err := gw.Approve(ctx, "confirm?", nil, 0, &def)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestCancelledRaisesCancelledKind(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	log := eventloginmem.New("inv-1")
	responder := hitlmock.NewResponder(hitl.Resolution{Outcome: hitl.OutcomeCancelled})
	gw := hitl.New(journal, log, responder)

	_, err := gw.Approve(ctx, "confirm?", nil, 0, nil)
	require.Error(t, err)
	assert.Equal(t, tactuserr.KindCancelled, tactuserr.KindOf(err))
}

func TestReviewDecodesArbitraryJSON(t *testing.T) {
	ctx := context.Background()
	journal := inmem.New()
	log := eventloginmem.New("inv-1")
	val, _ := json.Marshal(map[string]any{"score": 9})
	responder := hitlmock.NewResponder(hitl.Resolution{Outcome: hitl.OutcomeResolved, Value: val})
	gw := hitl.New(journal, log, responder)

	var out struct {
		Score int `json:"score"`
	}
	require.NoError(t, gw.Review(ctx, "rate this", nil, 0, nil, &out))
	assert.Equal(t, 9, out.Score)
}

func mustJSON(v any) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

type countingResponder struct {
	inner hitl.Responder
	calls *int
}

func (c countingResponder) Respond(ctx context.Context, req hitl.Request) (hitl.Resolution, error) {
	*c.calls++
	return c.inner.Respond(ctx, req)
}
