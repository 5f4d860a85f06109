package bdd_test

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/bdd"
)

const evalFeature = `
Feature: refunds

  Scenario: small refund auto-approves
    Given the "charge_lookup" tool returns {"amount": 10}
    Then the procedure completes successfully
    And the "refund" tool was called

  Scenario: missing target fails
    Then the procedure completes successfully
`

func TestEvaluatorTestRunsEachScenarioOnce(t *testing.T) {
	features, err := bdd.Parse(evalFeature)
	require.NoError(t, err)

	targets := map[string]bdd.Target{
		"small refund auto-approves": {
			Run: func(m *bdd.Mocks) (*bdd.Outcome, error) {
				return &bdd.Outcome{
					Status:    "completed",
					ToolCalls: []bdd.ToolCallRecord{{Name: "refund", Count: 1}},
				}, nil
			},
		},
	}

	ev := bdd.NewEvaluator()
	results := ev.Test(context.Background(), features, targets)
	require.Len(t, results, 2)

	byName := map[string]bdd.ScenarioResult{}
	for _, r := range results {
		byName[r.Name] = r
	}
	assert.True(t, byName["small refund auto-approves"].Passed)
	assert.False(t, byName["missing target fails"].Passed)
	assert.Error(t, byName["missing target fails"].Error)
}

func TestEvaluatorEvaluateComputesSuccessRateAndConsistency(t *testing.T) {
	features, err := bdd.Parse(`
Feature: flaky
  Scenario: sometimes fails
    Then the procedure completes successfully
`)
	require.NoError(t, err)

	var calls int64
	targets := map[string]bdd.Target{
		"sometimes fails": {
			Run: func(m *bdd.Mocks) (*bdd.Outcome, error) {
				n := atomic.AddInt64(&calls, 1)
				status := "completed"
				if n%3 == 0 {
					status = "failed"
				}
				return &bdd.Outcome{Status: status}, nil
			},
		},
	}

	ev := bdd.NewEvaluator()
	ev.Workers = 2
	results := ev.Evaluate(context.Background(), features, targets, 9)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, 9, r.Runs)
	assert.Equal(t, 6, r.Passed)
	assert.Equal(t, 3, r.Failed)
	assert.InDelta(t, 6.0/9.0, r.SuccessRate, 0.0001)
	// two thirds of runs share the "completed" fingerprint.
	assert.InDelta(t, 6.0/9.0, r.ConsistencyScore, 0.0001)
}

func TestEvaluatorRunFuncErrorFailsScenario(t *testing.T) {
	features, err := bdd.Parse(`
Feature: broken
  Scenario: blows up
    Then the procedure completes successfully
`)
	require.NoError(t, err)

	targets := map[string]bdd.Target{
		"blows up": {
			Run: func(m *bdd.Mocks) (*bdd.Outcome, error) {
				return nil, fmt.Errorf("boom")
			},
		},
	}

	ev := bdd.NewEvaluator()
	results := ev.Test(context.Background(), features, targets)
	require.Len(t, results, 1)
	assert.False(t, results[0].Passed)
}

func TestEvaluatorArrangeStepsConfigureMocksBeforeRun(t *testing.T) {
	features, err := bdd.Parse(`
Feature: refunds
  Scenario: uses configured tool
    Given the "charge_lookup" tool returns {"amount": 42}
    Then the procedure completes successfully
`)
	require.NoError(t, err)

	var seenAmount float64
	targets := map[string]bdd.Target{
		"uses configured tool": {
			Run: func(m *bdd.Mocks) (*bdd.Outcome, error) {
				raw, err := m.Tools.Invoke(context.Background(), "charge_lookup", []byte(`{}`))
				require.NoError(t, err)
				var v struct {
					Amount float64 `json:"amount"`
				}
				require.NoError(t, json.Unmarshal(raw, &v))
				seenAmount = v.Amount
				return &bdd.Outcome{Status: "completed"}, nil
			},
		},
	}

	ev := bdd.NewEvaluator()
	results := ev.Test(context.Background(), features, targets)
	require.True(t, results[0].Passed)
	assert.Equal(t, float64(42), seenAmount)
}
