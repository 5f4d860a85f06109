package script_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	checkpointinmem "github.com/AnthusAI/Tactus/checkpoint/inmem"
	engineinmem "github.com/AnthusAI/Tactus/engine/inmem"
	"github.com/AnthusAI/Tactus/eventlog"
	eventloginmem "github.com/AnthusAI/Tactus/eventlog/inmem"
	"github.com/AnthusAI/Tactus/hitl"
	hitlmock "github.com/AnthusAI/Tactus/hitl/mock"
	"github.com/AnthusAI/Tactus/scheduler"
	"github.com/AnthusAI/Tactus/script"
	"github.com/AnthusAI/Tactus/state"
	"github.com/AnthusAI/Tactus/tools"
)

func newBridge(t *testing.T) *script.Bridge {
	t.Helper()
	log := eventloginmem.New("inv-1")
	journal := checkpointinmem.New()
	registry := tools.NewRegistry(journal, log)
	gw := hitl.New(journal, log, hitlmock.AutoApprove())
	st := state.New(log)
	b := script.New(context.Background(), nil, nil, registry, gw, st, log, journal)
	t.Cleanup(b.Close)
	return b
}

func TestToolCallReturnsResult(t *testing.T) {
	b := newBridge(t)
	_, err := b.DoString(`
		local result, err = Tool.call("done", {summary="ok"})
		assert(err == nil)
		assert(result.done == true)
	`)
	require.NoError(t, err)
}

func TestToolQueryPrimitives(t *testing.T) {
	b := newBridge(t)
	_, err := b.DoString(`
		assert(Tool.called("done") == false)
		assert(Tool.calls_of("done") == 0)
		assert(Tool.last_call("done") == nil)

		Tool.call("done", {summary="first"})
		Tool.call("done", {summary="second"})

		assert(Tool.called("done") == true)
		assert(Tool.calls_of("done") == 2)
		local last = Tool.last_call("done")
		assert(last.result.summary == "second")
	`)
	require.NoError(t, err)
}

func TestStateRoundTrip(t *testing.T) {
	b := newBridge(t)
	_, err := b.DoString(`
		State.set("n", 0)
		State.incr("n")
		State.incr("n")
		assert(State.get("n") == 2)
	`)
	require.NoError(t, err)
}

func TestStageSetEmitsStageChange(t *testing.T) {
	log := eventloginmem.New("inv-1")
	journal := checkpointinmem.New()
	registry := tools.NewRegistry(journal, log)
	gw := hitl.New(journal, log, hitlmock.AutoApprove())
	st := state.New(log)
	b := script.New(context.Background(), nil, nil, registry, gw, st, log, journal)
	defer b.Close()

	_, err := b.DoString(`Stage.set("start"); Stage.set("done")`)
	require.NoError(t, err)

	events, err := log.Snapshot(context.Background())
	require.NoError(t, err)
	count := 0
	for _, e := range events {
		if e.Type == eventlog.TypeStageChange {
			count++
		}
	}
	assert.Equal(t, 2, count)
}

func TestStepRunJournalsAndReplays(t *testing.T) {
	log := eventloginmem.New("inv-1")
	journal := checkpointinmem.New()
	registry := tools.NewRegistry(journal, log)
	gw := hitl.New(journal, log, hitlmock.AutoApprove())
	st := state.New(log)

	b1 := script.New(context.Background(), nil, nil, registry, gw, st, log, journal)
	out, err := b1.DoString(`
		local calls = calls or 0
		local v, err = Step.run("expensive", function() return 42 end)
		return v
	`)
	require.NoError(t, err)
	assert.Equal(t, float64(42), out)
	b1.Close()

	b2 := script.New(context.Background(), nil, nil, registry, gw, st, log, journal)
	defer b2.Close()
	out2, err := b2.DoString(`
		local v, err = Step.run("expensive", function() return 99 end)
		return v
	`)
	require.NoError(t, err)
	assert.Equal(t, float64(42), out2, "replay should return the journalled value, not re-run the function")
}

func TestStepRunCallsFnOnceAcrossRepeatedCallsInOneInvocation(t *testing.T) {
	log := eventloginmem.New("inv-2")
	journal := checkpointinmem.New()
	registry := tools.NewRegistry(journal, log)
	gw := hitl.New(journal, log, hitlmock.AutoApprove())
	st := state.New(log)

	b := script.New(context.Background(), nil, nil, registry, gw, st, log, journal)
	defer b.Close()

	out, err := b.DoString(`
		local calls = 0
		local function increment() calls = calls + 1; return calls end
		local first = Step.run("counter", increment)
		local second = Step.run("counter", increment)
		return first == second
	`)
	require.NoError(t, err)
	assert.Equal(t, true, out, "repeated Step.run calls with the same name in one invocation must call fn exactly once")
}

func TestHumanApproveViaMockResponder(t *testing.T) {
	b := newBridge(t)
	out, err := b.DoString(`
		local ok, err = Human.approve("ship it?")
		assert(err == nil)
		return ok
	`)
	require.NoError(t, err)
	assert.Equal(t, true, out)
}

func TestProcedureRunSpawnsAndReturnsChildResult(t *testing.T) {
	ctx := context.Background()
	eng := engineinmem.New()
	sched := scheduler.New(eng, "test-queue")
	require.NoError(t, sched.Register(ctx, "double", func(ic *scheduler.InvocationContext, params map[string]any) (any, error) {
		n := params["n"].(float64)
		return n * 2, nil
	}))
	require.NoError(t, sched.Register(ctx, "root", func(ic *scheduler.InvocationContext, params map[string]any) (any, error) {
		log := eventloginmem.New(ic.ID)
		journal := checkpointinmem.New()
		registry := tools.NewRegistry(journal, log)
		gw := hitl.New(journal, log, hitlmock.AutoApprove())
		st := state.New(log)
		b := script.New(ctx, ic, sched, registry, gw, st, log, journal)
		defer b.Close()
		return b.DoString(`
			local result, err = Procedure.run("double", {n=21})
			assert(err == nil)
			return result
		`)
	}))

	h, err := sched.Spawn(ctx, nil, "root", nil)
	require.NoError(t, err)
	result, err := sched.Result(ctx, h)
	require.NoError(t, err)
	assert.Equal(t, float64(42), result)
}
