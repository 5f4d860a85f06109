package procedure_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AnthusAI/Tactus/procedure"
)

func mustLoad(t *testing.T, src procedure.Source) *procedure.Definition {
	t.Helper()
	def, err := procedure.Load(src)
	require.NoError(t, err)
	return def
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	r := procedure.NewRegistry()
	def := mustLoad(t, procedure.Source{Name: "a", Script: "return 1"})
	require.NoError(t, r.Add(def))
	assert.Error(t, r.Add(def))
}

func TestRegistryCheckCyclesPassesOnAcyclicGraph(t *testing.T) {
	r := procedure.NewRegistry()
	child := mustLoad(t, procedure.Source{Name: "child", Script: "return 1"})
	parent := mustLoad(t, procedure.Source{
		Name:   "parent",
		Script: "return 1",
		Resources: []procedure.ResourceDecl{
			{Name: "c", Kind: procedure.ResourceProcedure, Procedure: "child"},
		},
	})
	require.NoError(t, r.Add(child))
	require.NoError(t, r.Add(parent))
	assert.NoError(t, r.CheckCycles())
}

func TestRegistryCheckCyclesDetectsDirectCycle(t *testing.T) {
	r := procedure.NewRegistry()
	a := mustLoad(t, procedure.Source{
		Name:   "a",
		Script: "return 1",
		Resources: []procedure.ResourceDecl{
			{Name: "b", Kind: procedure.ResourceProcedure, Procedure: "b"},
		},
	})
	b := mustLoad(t, procedure.Source{
		Name:   "b",
		Script: "return 1",
		Resources: []procedure.ResourceDecl{
			{Name: "a", Kind: procedure.ResourceProcedure, Procedure: "a"},
		},
	})
	require.NoError(t, r.Add(a))
	require.NoError(t, r.Add(b))
	assert.Error(t, r.CheckCycles())
}

func TestRegistryCheckCyclesDetectsSelfLoop(t *testing.T) {
	r := procedure.NewRegistry()
	a := mustLoad(t, procedure.Source{
		Name:   "a",
		Script: "return 1",
		Resources: []procedure.ResourceDecl{
			{Name: "self", Kind: procedure.ResourceProcedure, Procedure: "a"},
		},
	})
	require.NoError(t, r.Add(a))
	assert.Error(t, r.CheckCycles())
}

func TestRegistryCheckCyclesDetectsDanglingReference(t *testing.T) {
	r := procedure.NewRegistry()
	a := mustLoad(t, procedure.Source{
		Name:   "a",
		Script: "return 1",
		Resources: []procedure.ResourceDecl{
			{Name: "missing", Kind: procedure.ResourceProcedure, Procedure: "does-not-exist"},
		},
	})
	require.NoError(t, r.Add(a))
	assert.Error(t, r.CheckCycles())
}
