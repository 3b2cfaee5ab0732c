package engine

import (
	"context"
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/events"
)

func init() {
	register(domain.KindLoop, executeLoop)
}

// executeLoop maintains a monotone iteration counter in the run's loop
// state and decides, per §4.3, whether to emit "loop" (re-queue the
// loop-handle successors) or "done" (terminate this loop's cycle).
func executeLoop(_ context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	data := ConcatInputs(inputs)
	maxIterations := node.ConfigInt("max_iterations", 3)
	target := node.ConfigString("targetValue", "")

	shouldTerminate := target != "" && strings.Contains(strings.ToLower(data), strings.ToLower(target))

	iteration := rc.State.NextLoopIteration(node.ID)
	rc.Sink.Emit(events.Event{
		Type:    events.TypeNodeUsage,
		NodeID:  node.ID,
		Current: iteration,
		Total:   maxIterations,
	})

	if !shouldTerminate && iteration <= maxIterations {
		return domain.NewTaggedResult("loop", data, map[string]any{"iteration": iteration}), nil
	}
	return domain.NewTaggedResult("done", data, map[string]any{"iteration": iteration}), nil
}
