package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncanvas/flowengine/internal/domain"
)

func buildLinearGraph(t *testing.T, nodes []domain.NodeJSON, edges []domain.EdgeJSON) *domain.Graph {
	t.Helper()
	g, err := domain.BuildGraph(domain.GraphJSON{Nodes: nodes, Edges: edges})
	require.NoError(t, err)
	return g
}

func TestGatherInputs_PropagatesPlainResult(t *testing.T) {
	g := buildLinearGraph(t,
		[]domain.NodeJSON{{ID: "a", Type: string(domain.KindInput)}, {ID: "b", Type: string(domain.KindOutput)}},
		[]domain.EdgeJSON{{ID: "e1", Source: "a", Target: "b"}},
	)
	state := NewRunState()
	state.SetResult("a", domain.NewPlainResult("hello"))

	inputs, dead := gatherInputs(g, state, "b")
	assert.False(t, dead)
	require.Len(t, inputs, 1)
	assert.Equal(t, "hello", inputs[0].Value)
}

func TestGatherInputs_SuppressesMismatchedHandle(t *testing.T) {
	g := buildLinearGraph(t,
		[]domain.NodeJSON{{ID: "cond", Type: string(domain.KindCondition)}, {ID: "next", Type: string(domain.KindOutput)}},
		[]domain.EdgeJSON{{ID: "e1", Source: "cond", Target: "next", SourceHandle: "true"}},
	)
	state := NewRunState()
	state.SetResult("cond", domain.NewTaggedResult("false", "payload", nil))

	inputs, dead := gatherInputs(g, state, "next")
	assert.True(t, dead, "the only incoming edge requires signal=true but the result signal is false")
	assert.Empty(t, inputs)
}

func TestGatherInputs_DeadBranchOnlyWhenAllEdgesSuppressed(t *testing.T) {
	g := buildLinearGraph(t,
		[]domain.NodeJSON{
			{ID: "cond", Type: string(domain.KindCondition)},
			{ID: "other", Type: string(domain.KindInput)},
			{ID: "next", Type: string(domain.KindOutput)},
		},
		[]domain.EdgeJSON{
			{ID: "e1", Source: "cond", Target: "next", SourceHandle: "true"},
			{ID: "e2", Source: "other", Target: "next"},
		},
	)
	state := NewRunState()
	state.SetResult("cond", domain.NewTaggedResult("false", "payload", nil))
	state.SetResult("other", domain.NewPlainResult("still here"))

	inputs, dead := gatherInputs(g, state, "next")
	assert.False(t, dead)
	require.Len(t, inputs, 1)
	assert.Equal(t, "still here", inputs[0].Value)
}

func TestGatherInputs_NoParentsIsNeverDead(t *testing.T) {
	g := buildLinearGraph(t, []domain.NodeJSON{{ID: "a", Type: string(domain.KindInput)}}, nil)
	inputs, dead := gatherInputs(g, NewRunState(), "a")
	assert.False(t, dead)
	assert.Nil(t, inputs)
}
