package engine

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/events"
)

// tracer emits one span per run (parent) and one child span per node
// dispatch. No exporter is wired by this package; callers that want spans
// shipped somewhere register a TracerProvider via otel.SetTracerProvider
// in cmd/server's bootstrap. With the default no-op provider these calls
// are free.
var tracer = otel.Tracer("github.com/ncanvas/flowengine/internal/engine")

// maxDispatches is the global safety step counter: when tripped the
// scheduler stops admitting further work and ends the run normally
// rather than looping forever on a misbehaving cyclic graph.
const maxDispatches = 100

const defaultMaxConcurrent = 5

// Scheduler drives one run of a graph to completion: it tracks which
// nodes are ready, running, completed or failed, dispatches ready nodes
// up to a concurrency bound, and reacts to loop re-entry signals.
//
// All set mutation happens on the single goroutine running Run; node
// handlers run on their own goroutines and report back over taskDone, so
// the sets themselves need no locking.
type Scheduler struct {
	rc            *RunContext
	maxConcurrent int

	completed map[string]bool
	failed    map[string]bool
	running   map[string]bool
	queued    map[string]bool
}

// NewScheduler creates a Scheduler for one run. maxConcurrent <= 0 uses
// the default bound of 5.
func NewScheduler(rc *RunContext, maxConcurrent int) *Scheduler {
	if maxConcurrent <= 0 {
		maxConcurrent = defaultMaxConcurrent
	}
	return &Scheduler{
		rc:            rc,
		maxConcurrent: maxConcurrent,
		completed:     make(map[string]bool),
		failed:        make(map[string]bool),
		running:       make(map[string]bool),
		queued:        make(map[string]bool),
	}
}

type taskResult struct {
	nodeID string
	result domain.Result
	err    error
	span   trace.Span
}

// Run executes the graph to completion: no tasks running and no nodes
// ready, or the dispatch counter tripped, or ctx is cancelled. It emits
// execution_start before the first dispatch and execution_complete (or
// execution_error, if the scheduler goroutine itself panics) when the run
// ends.
// Run assumes its graph already passed domain.BuildGraph's validation
// (start-node presence included); rejecting a malformed or start-node-
// free graph happens earlier, before a Scheduler is ever constructed.
func (s *Scheduler) Run(ctx context.Context) {
	ctx, runSpan := tracer.Start(ctx, "workflow.run", trace.WithAttributes(
		attribute.Int("node_count", len(s.rc.Graph.Nodes)),
	))
	defer runSpan.End()
	defer func() {
		if r := recover(); r != nil {
			s.rc.Sink.ExecutionError(fmt.Errorf("scheduler panic: %v", r))
		}
	}()

	s.rc.Sink.ExecutionStart()

	done := make(chan taskResult, s.maxConcurrent)
	dispatches := 0

	ready := s.enqueueReady(s.computeReady())

	tripped := false
	for {
		if ctx.Err() != nil {
			return
		}

		for len(ready) > 0 && len(s.running) < s.maxConcurrent {
			if dispatches >= maxDispatches {
				tripped = true
				break
			}
			nodeID := ready[0]
			ready = ready[1:]
			delete(s.queued, nodeID)
			s.dispatch(ctx, nodeID, done)
			dispatches++
		}

		if tripped || (len(ready) == 0 && len(s.running) == 0) {
			if tripped {
				s.rc.Log.Warn().Msg("step counter tripped, ending run")
			}
			break
		}

		select {
		case tr := <-done:
			delete(s.running, tr.nodeID)
			s.finish(tr)
			ready = append(ready, s.enqueueReady(s.computeReady())...)
		case <-ctx.Done():
			return
		}
	}

	// Drain any tasks still in flight when the step counter tripped so
	// their results land in state even though no further dispatch happens.
	for len(s.running) > 0 {
		select {
		case tr := <-done:
			delete(s.running, tr.nodeID)
			s.finish(tr)
		case <-ctx.Done():
			return
		}
	}

	stats := events.Stats{
		Completed: len(s.completed),
		Failed:    len(s.failed),
		Total:     len(s.rc.Graph.Nodes),
	}
	s.rc.Sink.ExecutionComplete(stats)
}

// dispatch gathers nodeID's inputs, handles the dead-branch and
// unregistered-kind cases inline, and otherwise launches the node's
// handler on its own goroutine, reporting back over done.
func (s *Scheduler) dispatch(ctx context.Context, nodeID string, done chan<- taskResult) {
	node := s.rc.Graph.Nodes[nodeID]

	inputs, deadBranch := gatherInputs(s.rc.Graph, s.rc.State, nodeID)
	if deadBranch {
		s.rc.Sink.NodeSkipped(nodeID)
		s.failed[nodeID] = true
		return
	}

	handler := HandlerFor(node.Kind)
	if handler == nil {
		s.rc.Sink.NodeError(nodeID, fmt.Errorf("no handler registered for node kind %q", node.Kind))
		s.failed[nodeID] = true
		return
	}

	s.running[nodeID] = true
	s.rc.Sink.NodeStart(nodeID)
	s.rc.Log.Debug().Str("node_id", nodeID).Str("node_kind", string(node.Kind)).Msg("dispatching node")

	nodeCtx, span := tracer.Start(ctx, "workflow.node", trace.WithAttributes(
		attribute.String("node.id", nodeID),
		attribute.String("node.kind", string(node.Kind)),
	))

	go func() {
		result, err := handler(nodeCtx, s.rc, node, inputs)
		done <- taskResult{nodeID: nodeID, result: result, err: err, span: span}
	}()
}

// finish records a completed task's outcome and emits its terminal
// event. It runs only on the scheduler goroutine.
func (s *Scheduler) finish(tr taskResult) {
	if tr.span != nil {
		defer tr.span.End()
	}

	if tr.err != nil {
		if tr.span != nil {
			tr.span.RecordError(tr.err)
		}
		s.rc.Sink.NodeError(tr.nodeID, tr.err)
		s.failed[tr.nodeID] = true
		return
	}

	s.rc.State.SetResult(tr.nodeID, tr.result)
	s.completed[tr.nodeID] = true
	s.rc.Sink.NodeFinish(tr.nodeID, tr.result.UIProjection())

	// Any node that just fed a loop node's feedback edge re-opens that
	// loop node for another iteration, regardless of the feeding node's
	// own kind (llm, reduce, another loop, ...).
	s.maybeReopenLoopParents(tr.nodeID)

	if tr.result.IsTagged() && tr.result.Signal == "loop" {
		s.reopenLoopSuccessors(tr.nodeID)
	}
}

// maybeReopenLoopParents clears a loop node from completed when nodeID
// has just produced the data traveling along the loop's own back-edge
// (the edge markBackEdges flagged closing the cycle). Without this, a
// loop node that already ran once would stay in completed forever and
// never be reconsidered by computeReady, even after its body produced a
// fresh result for the next iteration.
func (s *Scheduler) maybeReopenLoopParents(nodeID string) {
	for _, edge := range s.rc.Graph.Children(nodeID) {
		if !edge.IsBackEdge {
			continue
		}
		target := s.rc.Graph.Nodes[edge.Target]
		if target.Kind == domain.KindLoop && s.completed[edge.Target] {
			delete(s.completed, edge.Target)
		}
	}
}

// reopenLoopSuccessors implements the loop re-entry mechanism: direct
// loop-handle successors of a looping node are cleared from completed so
// the next readiness pass can re-admit them.
func (s *Scheduler) reopenLoopSuccessors(loopNodeID string) {
	for _, edge := range s.rc.Graph.Children(loopNodeID) {
		if edge.SourceHandle != "" && edge.SourceHandle != "loop" {
			continue
		}
		delete(s.completed, edge.Target)
		delete(s.failed, edge.Target)
	}
}

// computeReady scans every node not yet queued, running, completed, or
// failed and returns those whose parents are all completed. The queued
// exclusion is what keeps a node from being re-admitted to ready while it
// is still sitting in the dispatch queue from a previous pass: without
// it, a node that outlives one maxConcurrent-bounded dispatch round would
// be picked up again by the next computeReady call and end up in ready
// twice, leading dispatch to launch its handler twice for one execution
// instance. Order is not stable (graph node iteration is randomized, so
// callers must not depend on FIFO fairness beyond "eventually dispatched").
func (s *Scheduler) computeReady() []string {
	var ready []string
	for nodeID := range s.rc.Graph.Nodes {
		if s.queued[nodeID] || s.running[nodeID] || s.completed[nodeID] || s.failed[nodeID] {
			continue
		}
		if s.allParentsCompleted(nodeID) {
			ready = append(ready, nodeID)
		}
	}
	return ready
}

// enqueueReady marks every id in ids as queued and returns ids unchanged,
// so every caller that appends computeReady's output onto the pending
// ready slice also records that those ids must not be re-selected by a
// later computeReady call until they are actually popped and dispatched.
func (s *Scheduler) enqueueReady(ids []string) []string {
	for _, id := range ids {
		s.queued[id] = true
	}
	return ids
}

// allParentsCompleted requires every non-back-edge parent to be in
// completed specifically: a failed parent blocks the node from ever
// becoming ready, so its descendants are left dangling (never
// dispatched) rather than skipped, per §4.1's "a node in failed blocks
// its descendants (they never become ready)".
//
// A loop parent whose latest signal is "loop" has not settled yet, so an
// edge from it on any other handle (e.g. "done") keeps the node waiting
// instead of letting it be dispatched and dead-branch skipped mid-loop.
//
// Back-edge parents (a loop body feeding back into its loop node) are
// excluded from this check entirely: requiring them would make the loop
// node un-dispatchable on its very first pass, since the body that
// closes the cycle cannot have produced a result before the loop node
// has ever run. gatherInputs still picks up the back-edge's value once
// it exists; readiness just never waits on it.
func (s *Scheduler) allParentsCompleted(nodeID string) bool {
	for _, edge := range s.rc.Graph.Parents(nodeID) {
		if edge.IsBackEdge {
			continue
		}
		if !s.completed[edge.Source] {
			return false
		}
		if s.rc.Graph.Nodes[edge.Source].Kind == domain.KindLoop && edge.SourceHandle != "" && edge.SourceHandle != "loop" {
			if r, ok := s.rc.State.Result(edge.Source); ok && r.IsTagged() && r.Signal == "loop" {
				return false
			}
		}
	}
	return true
}
