package bdd_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/bdd"
)

const sampleFeature = `
Feature: refund approval

  # comment lines and blank lines are skipped
  Scenario: small refunds auto-approve
    Given the "charge_lookup" tool returns {"amount": 10}
    When the procedure runs
    Then the procedure completes successfully
    And the "refund" tool was called

  Scenario: large refunds need a human
    Given the "charge_lookup" tool returns {"amount": 500}
    And Human.approve will return true
    Then the procedure completes successfully
`

func TestParseFeatureWithMultipleScenarios(t *testing.T) {
	features, err := bdd.Parse(sampleFeature)
	require.NoError(t, err)
	require.Len(t, features, 1)
	assert.Equal(t, "refund approval", features[0].Name)
	require.Len(t, features[0].Scenarios, 2)

	first := features[0].Scenarios[0]
	assert.Equal(t, "small refunds auto-approve", first.Name)
	require.Len(t, first.Steps, 4)
	assert.Equal(t, "Given", first.Steps[0].Keyword)
	assert.Equal(t, `the "charge_lookup" tool returns {"amount": 10}`, first.Steps[0].Text)
	assert.Equal(t, "And", first.Steps[3].Keyword)
}

func TestParseRejectsScenarioOutsideFeature(t *testing.T) {
	_, err := bdd.Parse("Scenario: orphan\n  Given something\n")
	assert.Error(t, err)
}

func TestParseRejectsStepOutsideScenario(t *testing.T) {
	_, err := bdd.Parse("Feature: f\n  Given something\n")
	assert.Error(t, err)
}

func TestParseMultipleFeatures(t *testing.T) {
	src := "Feature: a\n  Scenario: s1\n    Given x\nFeature: b\n  Scenario: s2\n    Given y\n"
	features, err := bdd.Parse(src)
	require.NoError(t, err)
	require.Len(t, features, 2)
	assert.Equal(t, "a", features[0].Name)
	assert.Equal(t, "b", features[1].Name)
}
