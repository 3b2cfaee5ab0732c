// Package workflow provides a fluent builder for assembling graphs in
// tests and example code, without hand-writing GraphJSON literals.
package workflow

import (
	"github.com/ncanvas/flowengine/internal/domain"
)

// GraphBuilder accumulates nodes and edges and produces a built
// domain.Graph in one call, running the same validation BuildGraph
// applies to a client-submitted graph.
type GraphBuilder struct {
	nodes  []domain.NodeJSON
	edges  []domain.EdgeJSON
	apiKey string
}

func NewGraphBuilder() *GraphBuilder { return &GraphBuilder{} }

func (b *GraphBuilder) APIKey(key string) *GraphBuilder {
	b.apiKey = key
	return b
}

func (b *GraphBuilder) AddNode(n *NodeBuilder) *GraphBuilder {
	b.nodes = append(b.nodes, n.build())
	return b
}

func (b *GraphBuilder) AddEdge(e *EdgeBuilder) *GraphBuilder {
	b.edges = append(b.edges, e.e)
	return b
}

// Build validates the accumulated nodes and edges and returns a runtime
// Graph, or the same error BuildGraph would return for a malformed
// client submission.
func (b *GraphBuilder) Build() (*domain.Graph, error) {
	return domain.BuildGraph(domain.GraphJSON{Nodes: b.nodes, Edges: b.edges, APIKey: b.apiKey})
}

// NodeBuilder assembles one node's wire representation.
type NodeBuilder struct {
	n domain.NodeJSON
}

func NewNode(id string, kind domain.Kind) *NodeBuilder {
	return &NodeBuilder{n: domain.NodeJSON{ID: id, Type: string(kind)}}
}

func (b *NodeBuilder) Label(label string) *NodeBuilder {
	b.n.Data.Label = label
	return b
}

func (b *NodeBuilder) InputValue(v string) *NodeBuilder {
	b.n.Data.InputValue = v
	return b
}

func (b *NodeBuilder) Config(key string, value any) *NodeBuilder {
	if b.n.Data.NodeConfig == nil {
		b.n.Data.NodeConfig = map[string]any{}
	}
	b.n.Data.NodeConfig[key] = value
	return b
}

func (b *NodeBuilder) Position(x, y float64) *NodeBuilder {
	b.n.Position = domain.Position{X: x, Y: y}
	return b
}

func (b *NodeBuilder) build() domain.NodeJSON { return b.n }

// EdgeBuilder assembles one edge's wire representation.
type EdgeBuilder struct {
	e domain.EdgeJSON
}

func NewEdge(id, source, target string) *EdgeBuilder {
	return &EdgeBuilder{e: domain.EdgeJSON{ID: id, Source: source, Target: target}}
}

func (b *EdgeBuilder) SourceHandle(handle string) *EdgeBuilder {
	b.e.SourceHandle = handle
	return b
}

func (b *EdgeBuilder) TargetHandle(handle string) *EdgeBuilder {
	b.e.TargetHandle = handle
	return b
}
