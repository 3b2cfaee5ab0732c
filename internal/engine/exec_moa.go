package engine

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/llm"
)

func init() {
	register(domain.KindMOAProposer, executeMOAProposer)
	register(domain.KindMOAAggregator, executeMOAAggregator)
}

// executeMOAProposer launches one streaming completion per configured
// model concurrently against the same prompt and collects whichever
// succeed; a call that returns an error is dropped from proposer_outputs
// and models_used rather than failing the node. An exhausted fallback
// chain does not return an error: StreamWithFallback delivers its error
// text as that model's output, which is kept.
func executeMOAProposer(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	prompt := ConcatInputs(inputs)
	models := node.ConfigStringSlice("models", []string{"openai/gpt-3.5-turbo", "anthropic/claude-3-sonnet"})
	temperature := node.ConfigFloat("temperature", 0.7)
	maxRetries := node.ConfigInt("max_retries", 3)

	type proposal struct {
		model string
		text  string
		ok    bool
	}
	proposals := make([]proposal, len(models))

	var wg sync.WaitGroup
	for i, model := range models {
		rc.Sink.NodeProgress(node.ID, i, len(models), fmt.Sprintf("proposing via %s", model))
		wg.Add(1)
		go func(i int, model string) {
			defer wg.Done()
			text, ok := moaPropose(ctx, rc, node.ID, prompt, model, temperature, maxRetries)
			proposals[i] = proposal{model: model, text: text, ok: ok}
		}(i, model)
	}
	wg.Wait()

	var outputs []string
	var used []string
	successes := 0
	for _, p := range proposals {
		if !p.ok {
			continue
		}
		successes++
		outputs = append(outputs, p.text)
		used = append(used, p.model)
	}

	successRate := 0.0
	if len(models) > 0 {
		successRate = float64(successes) / float64(len(models))
	}

	return domain.NewTaggedResult("proposals", strings.Join(outputs, "\n\n---\n\n"), map[string]any{
		"proposer_outputs": outputs,
		"models_used":      used,
		"success_rate":     successRate,
	}), nil
}

func moaPropose(ctx context.Context, rc *RunContext, nodeID, prompt, model string, temperature float64, maxRetries int) (string, bool) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
	var out strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, messages, model, temperature, maxRetries, nil, nodeID,
		func(delta, modelUsed string, isFallback bool) error {
			out.WriteString(delta)
			return nil
		})
	if err != nil {
		return "[Error: proposer failed: " + err.Error() + "]", false
	}
	return out.String(), true
}

// executeMOAAggregator takes every non-empty input value as proposer
// output and synthesizes them into one LM call, streaming directly to the
// client. It does not check whether an input came from a moa-proposer
// node. With no non-empty inputs, it is a no-op: a human-readable string
// result.
func executeMOAAggregator(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	var proposerOutputs []string
	for _, in := range inputs {
		if in.Value != "" {
			proposerOutputs = append(proposerOutputs, in.Value)
		}
	}

	if len(proposerOutputs) == 0 {
		return domain.NewPlainResult("[moa-aggregator: no proposer inputs to synthesize]"), nil
	}

	strategy := node.ConfigString("strategy", "synthesis")
	model := node.ConfigString("model", "anthropic/claude-3-opus")
	temperature := node.ConfigFloat("temperature", 0.7)
	maxRetries := node.ConfigInt("max_retries", 3)

	prompt := aggregatorPrompt(strategy, proposerOutputs)

	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
	var answer strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, messages, model, temperature, maxRetries, rc.Sink, node.ID,
		func(delta, modelUsed string, isFallback bool) error {
			answer.WriteString(delta)
			rc.Sink.TokenStream(node.ID, delta, modelUsed, isFallback)
			return nil
		})
	if err != nil {
		return domain.NewPlainResult("[Error: moa-aggregator failed: " + err.Error() + "]"), nil
	}

	return domain.NewPlainResult(answer.String()), nil
}

func aggregatorPrompt(strategy string, outputs []string) string {
	joined := strings.Join(outputs, "\n\n---\n\n")
	switch strategy {
	case "critique":
		return "Critique the strengths and weaknesses of each of the following responses, then recommend the best one:\n\n" + joined
	case "best":
		return "From the following candidate responses, select and return the single best one verbatim:\n\n" + joined
	default: // "synthesis"
		return "Synthesize the following independent responses into one comprehensive answer:\n\n" + joined
	}
}
