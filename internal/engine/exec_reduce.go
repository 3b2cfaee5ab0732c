package engine

import (
	"context"
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/llm"
)

func init() {
	register(domain.KindReduce, executeReduce)
}

// executeReduce collects chunks from its inputs (extending the working
// list with any splitter chunk lists it finds, else treating an input as
// a single chunk) and reduces them to one string, issuing real LM calls
// per §4.3. It is best-effort: an exhausted LM call produces a
// human-readable error-shaped string for that batch rather than failing
// the node, matching the other aggregator kinds' degrade-to-data policy.
func executeReduce(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	strategy := node.ConfigString("strategy", "hierarchical")
	chunks := collectChunks(inputs)
	if len(chunks) == 0 {
		return domain.NewPlainResult(""), nil
	}

	switch strategy {
	case "concatenate":
		prompt := node.ConfigString("prompt", "Summarize the following:")
		model := node.ConfigString("model", "openai/gpt-3.5-turbo")
		temperature := node.ConfigFloat("temperature", 0.7)
		maxRetries := node.ConfigInt("max_retries", 3)
		combined := strings.Join(chunks, "\n\n---\n\n")
		text := reduceCall(ctx, rc, node.ID, prompt, combined, model, temperature, maxRetries, true)
		return domain.NewPlainResult(text), nil
	case "hierarchical":
		prompt := node.ConfigString("prompt", "Summarize the following:")
		model := node.ConfigString("model", "openai/gpt-3.5-turbo")
		temperature := node.ConfigFloat("temperature", 0.7)
		maxRetries := node.ConfigInt("max_retries", 3)
		return domain.NewPlainResult(reduceHierarchical(ctx, rc, node.ID, prompt, model, temperature, maxRetries, chunks)), nil
	default:
		return domain.NewPlainResult(strings.Join(chunks, "\n\n")), nil
	}
}

// collectChunks flattens every input's chunk list (from a tagged
// splitter result) or, for an input with no chunk list, treats its
// value as a single chunk.
func collectChunks(inputs []GatheredInput) []string {
	var out []string
	for _, in := range inputs {
		if len(in.Chunks) > 0 {
			out = append(out, in.Chunks...)
			continue
		}
		if in.Value != "" {
			out = append(out, in.Value)
		}
	}
	return out
}

// reduceHierarchical merges chunks three at a time into LM-summarized
// batches, repeating on the merged layer until one element remains.
// Tokens stream to the client only for the final layer's calls.
func reduceHierarchical(ctx context.Context, rc *RunContext, nodeID, prompt, model string, temperature float64, maxRetries int, chunks []string) string {
	level := chunks
	for len(level) > 1 {
		var next []string
		finalLayer := len(level) <= 3
		for i := 0; i < len(level); i += 3 {
			end := i + 3
			if end > len(level) {
				end = len(level)
			}
			batch := strings.Join(level[i:end], "\n\n---\n\n")
			next = append(next, reduceCall(ctx, rc, nodeID, prompt, batch, model, temperature, maxRetries, finalLayer))
		}
		level = next
	}
	return level[0]
}

// reduceCall issues one LM turn over combined text, streaming tokens to
// the client only when stream is true.
func reduceCall(ctx context.Context, rc *RunContext, nodeID, prompt, combined, model string, temperature float64, maxRetries int, stream bool) string {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt + "\n\n" + combined}}

	var answer strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, messages, model, temperature, maxRetries, rc.Sink, nodeID,
		func(delta, modelUsed string, isFallback bool) error {
			answer.WriteString(delta)
			if stream {
				rc.Sink.TokenStream(nodeID, delta, modelUsed, isFallback)
			}
			return nil
		})
	if err != nil {
		return "[Error: reduce failed: " + err.Error() + "]"
	}
	return answer.String()
}
