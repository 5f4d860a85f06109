package procedure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/procedure"
)

func TestLoadRejectsMissingName(t *testing.T) {
	_, err := procedure.Load(procedure.Source{Script: "return 1"})
	assert.Error(t, err)
}

func TestLoadRejectsEmptyScript(t *testing.T) {
	_, err := procedure.Load(procedure.Source{Name: "p"})
	assert.Error(t, err)
}

func TestLoadRejectsResourceProcedureWithoutTarget(t *testing.T) {
	_, err := procedure.Load(procedure.Source{
		Name:      "p",
		Script:    "return 1",
		Resources: []procedure.ResourceDecl{{Name: "child", Kind: procedure.ResourceProcedure}},
	})
	assert.Error(t, err)
}

func TestValidateParamsAppliesDefaultsAndSchema(t *testing.T) {
	def, err := procedure.Load(procedure.Source{
		Name:          "greet",
		Script:        "return 1",
		ParamDefaults: map[string]any{"loudness": float64(1)},
		ParamSchema: []byte(`{
			"type": "object",
			"properties": {
				"name": {"type": "string"},
				"loudness": {"type": "number"}
			},
			"required": ["name"]
		}`),
	})
	require.NoError(t, err)

	merged, err := def.ValidateParams(map[string]any{"name": "world"})
	require.NoError(t, err)
	assert.Equal(t, "world", merged["name"])
	assert.Equal(t, float64(1), merged["loudness"])

	_, err = def.ValidateParams(map[string]any{})
	assert.Error(t, err, "missing required field should fail schema validation")
}

func TestValidateParamsWithoutSchemaPassesThrough(t *testing.T) {
	def, err := procedure.Load(procedure.Source{Name: "p", Script: "return 1"})
	require.NoError(t, err)
	merged, err := def.ValidateParams(map[string]any{"anything": "goes"})
	require.NoError(t, err)
	assert.Equal(t, "goes", merged["anything"])
}

func TestCallsToListsSubProcedureResources(t *testing.T) {
	def, err := procedure.Load(procedure.Source{
		Name:   "parent",
		Script: "return 1",
		Resources: []procedure.ResourceDecl{
			{Name: "native", Kind: procedure.ResourceTool},
			{Name: "child", Kind: procedure.ResourceProcedure, Procedure: "childproc"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"childproc"}, def.CallsTo())
}
