package engine

import (
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
)

// GatheredInput is one parent's contribution to a node's execution,
// labeled by the source node id so llm handlers can build per-parent
// labeled turns.
type GatheredInput struct {
	SourceNodeID string
	Value        string
	// Chunks carries a splitter result's chunk list verbatim, when the
	// source node produced one, so reduce can extend its working list
	// without re-splitting the concatenated Value.
	Chunks []string
}

// gatherInputs implements §4.2: for each incoming edge, resolve the
// source's result against the edge's sourceHandle, suppressing edges whose
// handle doesn't match the source's active signal. It returns the
// propagated inputs and whether N is a dead branch (at least one incoming
// edge, all of them suppressed).
func gatherInputs(g *domain.Graph, state *RunState, nodeID string) (inputs []GatheredInput, deadBranch bool) {
	parents := g.Parents(nodeID)
	if len(parents) == 0 {
		return nil, false
	}

	suppressedCount := 0
	for _, edge := range parents {
		result, ok := state.Result(edge.Source)
		if !ok {
			// Source has no result yet. For an ordinary parent this
			// shouldn't happen once the node is ready (readiness requires
			// all non-back-edge parents completed); for a back-edge
			// parent (a loop body feeding back into its loop node) it is
			// expected on the loop's first dispatch, since the edge
			// closing the cycle is deliberately excluded from readiness.
			// Either way, treat it as suppressed rather than panicking.
			suppressedCount++
			continue
		}

		if result.IsTagged() {
			if edge.SourceHandle != "" && edge.SourceHandle != result.Signal {
				suppressedCount++
				continue
			}
			in := GatheredInput{SourceNodeID: edge.Source, Value: result.Data}
			if chunks, ok := result.Extras["chunks"].([]string); ok {
				in.Chunks = chunks
			}
			inputs = append(inputs, in)
			continue
		}

		inputs = append(inputs, GatheredInput{SourceNodeID: edge.Source, Value: result.Plain})
	}

	if suppressedCount == len(parents) {
		return nil, true
	}
	return inputs, false
}

// ConcatInputs joins input values with "\n", the plain concatenation used
// by most node kinds (condition, loop, splitter, self-consistency, search,
// moa-proposer, debate, voting).
func ConcatInputs(inputs []GatheredInput) string {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = in.Value
	}
	return strings.Join(parts, "\n")
}

// LabeledConcat joins input values prefixed by their source node id, the
// shape the llm node appends as its user turn.
func LabeledConcat(inputs []GatheredInput) string {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = "From " + in.SourceNodeID + ": " + in.Value
	}
	return strings.Join(parts, "\n")
}
