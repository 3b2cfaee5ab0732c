package engine

import (
	"context"
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
)

func init() {
	register(domain.KindInput, executeInput)
	register(domain.KindOutput, executeOutput)
}

// executeInput emits config.inputValue verbatim; it makes no external
// calls and has no parents to gather from.
func executeInput(_ context.Context, _ *RunContext, node *domain.Node, _ []GatheredInput) (domain.Result, error) {
	return domain.NewPlainResult(node.ConfigString("inputValue", "Empty Input")), nil
}

// executeOutput concatenates every input with "\n".
func executeOutput(_ context.Context, _ *RunContext, _ *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	parts := make([]string, len(inputs))
	for i, in := range inputs {
		parts[i] = in.Value
	}
	return domain.NewPlainResult(strings.Join(parts, "\n")), nil
}
