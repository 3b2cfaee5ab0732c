package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildGraph_Valid(t *testing.T) {
	wire := GraphJSON{
		Nodes: []NodeJSON{
			{ID: "in", Type: string(KindInput), Data: NodeData{InputValue: "hello"}},
			{ID: "out", Type: string(KindOutput)},
		},
		Edges: []EdgeJSON{
			{ID: "e1", Source: "in", Target: "out"},
		},
	}

	g, err := BuildGraph(wire)
	require.NoError(t, err)
	assert.Len(t, g.Nodes, 2)
	assert.Equal(t, "hello", g.Nodes["in"].Config["inputValue"])
	assert.Len(t, g.Children("in"), 1)
	assert.Len(t, g.Parents("out"), 1)
	assert.Len(t, g.RootNodes(), 1)
	assert.Equal(t, "in", g.RootNodes()[0].ID)
}

func TestBuildGraph_DuplicateNodeID(t *testing.T) {
	wire := GraphJSON{
		Nodes: []NodeJSON{
			{ID: "a", Type: string(KindInput)},
			{ID: "a", Type: string(KindOutput)},
		},
	}
	_, err := BuildGraph(wire)
	assert.Error(t, err)
}

func TestBuildGraph_UnknownKind(t *testing.T) {
	wire := GraphJSON{
		Nodes: []NodeJSON{{ID: "a", Type: "not-a-real-kind"}},
	}
	_, err := BuildGraph(wire)
	assert.Error(t, err)
}

func TestBuildGraph_UnknownEdgeEndpoint(t *testing.T) {
	wire := GraphJSON{
		Nodes: []NodeJSON{{ID: "a", Type: string(KindInput)}},
		Edges: []EdgeJSON{{ID: "e1", Source: "a", Target: "missing"}},
	}
	_, err := BuildGraph(wire)
	assert.Error(t, err)
}

func TestBuildGraph_NoRootNodes(t *testing.T) {
	// a -> b -> a forms a cycle with no node of in-degree zero.
	wire := GraphJSON{
		Nodes: []NodeJSON{
			{ID: "a", Type: string(KindInput)},
			{ID: "b", Type: string(KindOutput)},
		},
		Edges: []EdgeJSON{
			{ID: "e1", Source: "a", Target: "b"},
			{ID: "e2", Source: "b", Target: "a"},
		},
	}
	_, err := BuildGraph(wire)
	assert.ErrorIs(t, err, ErrEmptyOrCyclicGraph)
}

func TestBuildGraph_EmptyGraphIsValid(t *testing.T) {
	g, err := BuildGraph(GraphJSON{})
	require.NoError(t, err)
	assert.Empty(t, g.Nodes)
}

func TestBuildGraph_MarksLoopFeedbackEdgeAsBackEdge(t *testing.T) {
	// a -> l -> body -> l forms a cycle, but a is a root so the graph is
	// still valid. The edge closing the cycle (body -> l) must be the one
	// flagged, never the forward edge (l -> body), regardless of map
	// iteration order.
	wire := GraphJSON{
		Nodes: []NodeJSON{
			{ID: "a", Type: string(KindInput)},
			{ID: "l", Type: string(KindLoop)},
			{ID: "body", Type: string(KindOutput)},
		},
		Edges: []EdgeJSON{
			{ID: "e1", Source: "a", Target: "l"},
			{ID: "e2", Source: "l", Target: "body", SourceHandle: "loop"},
			{ID: "e3", Source: "body", Target: "l"},
		},
	}

	for i := 0; i < 20; i++ {
		g, err := BuildGraph(wire)
		require.NoError(t, err)

		var forward, back *Edge
		for _, e := range g.Edges {
			switch e.ID {
			case "e2":
				forward = e
			case "e3":
				back = e
			}
		}
		assert.False(t, forward.IsBackEdge, "l -> body is the forward edge")
		assert.True(t, back.IsBackEdge, "body -> l closes the cycle")
	}
}
