package engine

import (
	"context"
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
)

func init() {
	register(domain.KindCondition, executeCondition)
}

// executeCondition evaluates config.conditionType against the concatenated
// inputs, case-insensitively. Its result is always tagged: the signal
// selects which outgoing edges (by sourceHandle "true"/"false") propagate.
func executeCondition(_ context.Context, _ *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	data := ConcatInputs(inputs)
	conditionType := node.ConfigString("conditionType", "contains")
	target := node.ConfigString("targetValue", "")

	haystack := strings.ToLower(data)
	needle := strings.ToLower(target)

	var matched bool
	switch conditionType {
	case "equals":
		matched = strings.TrimSpace(haystack) == strings.TrimSpace(needle)
	case "not_contains":
		matched = !strings.Contains(haystack, needle)
	default: // "contains"
		matched = strings.Contains(haystack, needle)
	}

	signal := "false"
	if matched {
		signal = "true"
	}
	return domain.NewTaggedResult(signal, data, nil), nil
}
