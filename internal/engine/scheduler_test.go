package engine

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/events"
)

// runScheduler drives one run to completion and returns every event it
// emitted plus the terminal stats, using only non-LLM node kinds so the
// run never reaches the network.
func runScheduler(t *testing.T, g *domain.Graph, maxConcurrent int) ([]events.Event, events.Stats) {
	t.Helper()

	out := make(chan events.Event, 256)
	sink := events.NewSink(out, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go sink.Run(ctx)

	rc := &RunContext{
		Graph: g,
		Sink:  sink,
		State: NewRunState(),
		Log:   zerolog.Nop(),
	}
	NewScheduler(rc, maxConcurrent).Run(ctx)

	var collected []events.Event
	var stats events.Stats
	for {
		select {
		case ev := <-out:
			collected = append(collected, ev)
			if ev.Type == events.TypeExecutionComplete {
				stats = *ev.Stats
				return collected, stats
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for execution_complete")
		}
	}
}

func countEvents(evs []events.Event, typ events.Type, nodeID string) int {
	n := 0
	for _, ev := range evs {
		if ev.Type == typ && ev.NodeID == nodeID {
			n++
		}
	}
	return n
}

func TestScheduler_LinearRunCompletes(t *testing.T) {
	g, err := domain.BuildGraph(domain.GraphJSON{
		Nodes: []domain.NodeJSON{
			{ID: "a", Type: string(domain.KindInput), Data: domain.NodeData{InputValue: "hello"}},
			{ID: "b", Type: string(domain.KindOutput)},
		},
		Edges: []domain.EdgeJSON{{ID: "e1", Source: "a", Target: "b"}},
	})
	require.NoError(t, err)

	evs, stats := runScheduler(t, g, 5)

	assert.Equal(t, 2, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, countEvents(evs, events.TypeNodeFinish, "a"))
	assert.Equal(t, 1, countEvents(evs, events.TypeNodeFinish, "b"))
}

func TestScheduler_DeadBranchSkipsDescendant(t *testing.T) {
	g, err := domain.BuildGraph(domain.GraphJSON{
		Nodes: []domain.NodeJSON{
			{ID: "a", Type: string(domain.KindInput), Data: domain.NodeData{InputValue: "no match here"}},
			{ID: "c", Type: string(domain.KindCondition), Data: domain.NodeData{NodeConfig: map[string]any{
				"conditionType": "contains",
				"targetValue":   "yes",
			}}},
			{ID: "next", Type: string(domain.KindOutput)},
		},
		Edges: []domain.EdgeJSON{
			{ID: "e1", Source: "a", Target: "c"},
			{ID: "e2", Source: "c", Target: "next", SourceHandle: "true"},
		},
	})
	require.NoError(t, err)

	evs, stats := runScheduler(t, g, 5)

	assert.Equal(t, 2, stats.Completed, "a and c complete")
	assert.Equal(t, 1, stats.Failed, "next is dead-branched")
	assert.Equal(t, 3, stats.Total)
	assert.Equal(t, 1, countEvents(evs, events.TypeNodeSkipped, "next"))
	assert.Equal(t, 0, countEvents(evs, events.TypeNodeStart, "next"), "a skipped node's handler never runs")
}

func TestScheduler_LoopReentryRunsBodyAcrossIterations(t *testing.T) {
	g, err := domain.BuildGraph(domain.GraphJSON{
		Nodes: []domain.NodeJSON{
			{ID: "a", Type: string(domain.KindInput), Data: domain.NodeData{InputValue: "start"}},
			{ID: "l", Type: string(domain.KindLoop), Data: domain.NodeData{NodeConfig: map[string]any{
				"max_iterations": float64(2),
			}}},
			{ID: "body", Type: string(domain.KindOutput)},
			{ID: "final", Type: string(domain.KindOutput)},
		},
		Edges: []domain.EdgeJSON{
			{ID: "e1", Source: "a", Target: "l"},
			{ID: "e2", Source: "l", Target: "body", SourceHandle: "loop"},
			{ID: "e3", Source: "body", Target: "l"},
			{ID: "e4", Source: "l", Target: "final", SourceHandle: "done"},
		},
	})
	require.NoError(t, err)
	require.True(t, findEdge(g, "body", "l").IsBackEdge, "body->l must be detected as the loop's feedback edge")

	evs, stats := runScheduler(t, g, 5)

	assert.Equal(t, 4, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
	assert.Equal(t, 3, countEvents(evs, events.TypeNodeStart, "l"), "loop runs once per iteration plus the terminating dispatch")
	assert.Equal(t, 2, countEvents(evs, events.TypeNodeStart, "body"), "body re-executes once per \"loop\" signal")
	assert.Equal(t, 1, countEvents(evs, events.TypeNodeStart, "final"), "the done-handle successor runs exactly once")
}

func TestScheduler_ReadyBacklogExceedingConcurrencyDoesNotDoubleDispatch(t *testing.T) {
	nodes := make([]domain.NodeJSON, 0, 6)
	for i := 0; i < 6; i++ {
		nodes = append(nodes, domain.NodeJSON{
			ID:   fmt.Sprintf("n%d", i),
			Type: string(domain.KindInput),
			Data: domain.NodeData{InputValue: fmt.Sprintf("v%d", i)},
		})
	}
	g, err := domain.BuildGraph(domain.GraphJSON{Nodes: nodes})
	require.NoError(t, err)

	evs, stats := runScheduler(t, g, 5)

	assert.Equal(t, 6, stats.Completed)
	assert.Equal(t, 0, stats.Failed)
	for i := 0; i < 6; i++ {
		id := fmt.Sprintf("n%d", i)
		assert.Equal(t, 1, countEvents(evs, events.TypeNodeStart, id), "node %s must start exactly once", id)
		assert.Equal(t, 1, countEvents(evs, events.TypeNodeFinish, id), "node %s must finish exactly once", id)
	}
}

func findEdge(g *domain.Graph, source, target string) *domain.Edge {
	for _, e := range g.Children(source) {
		if e.Target == target {
			return e
		}
	}
	return nil
}

func TestScheduler_FailedParentBlocksDescendant(t *testing.T) {
	original := HandlerFor(domain.KindInput)
	registry[domain.KindInput] = func(_ context.Context, _ *RunContext, _ *domain.Node, _ []GatheredInput) (domain.Result, error) {
		return domain.Result{}, fmt.Errorf("forced failure")
	}
	defer func() { registry[domain.KindInput] = original }()

	g, err := domain.BuildGraph(domain.GraphJSON{
		Nodes: []domain.NodeJSON{
			{ID: "a", Type: string(domain.KindInput)},
			{ID: "b", Type: string(domain.KindOutput)},
		},
		Edges: []domain.EdgeJSON{{ID: "e1", Source: "a", Target: "b"}},
	})
	require.NoError(t, err)

	evs, stats := runScheduler(t, g, 5)

	assert.Equal(t, 0, stats.Completed)
	assert.Equal(t, 1, stats.Failed, "only a, the node that actually errored")
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, countEvents(evs, events.TypeNodeError, "a"))
	assert.Equal(t, 0, countEvents(evs, events.TypeNodeStart, "b"), "b never becomes ready once its only parent fails")
	assert.Equal(t, 0, countEvents(evs, events.TypeNodeSkipped, "b"), "blocked is distinct from dead-branch skipped")
}
