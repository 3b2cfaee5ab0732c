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
	register(domain.KindSelfConsistency, executeSelfConsistency)
}

// executeSelfConsistency generates config.samples independent completions
// of the same prompt at rising temperatures, then resolves them to one
// answer under config.voting. It is best-effort: a sample that fails
// after its own fallback chain contributes an error-shaped string rather
// than aborting the whole node.
func executeSelfConsistency(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	prompt := ConcatInputs(inputs)
	samples := node.ConfigInt("samples", 5)
	if samples <= 0 {
		samples = 5
	}
	model := node.ConfigString("model", "openai/gpt-3.5-turbo")
	baseTemp := node.ConfigFloat("temperature", 0.7)
	votingMethod := node.ConfigString("voting", "majority")
	maxRetries := node.ConfigInt("max_retries", 3)

	responses := make([]string, samples)
	var wg sync.WaitGroup
	for i := 0; i < samples; i++ {
		rc.Sink.NodeProgress(node.ID, i, samples, fmt.Sprintf("sampling %d/%d", i+1, samples))
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			temp := baseTemp + 0.1*float64(i)
			if temp > 2.0 {
				temp = 2.0
			}
			responses[i] = sampleOnce(ctx, rc, node.ID, prompt, model, temp, maxRetries)
		}(i)
	}
	wg.Wait()

	answer, confidence := voteResponses(responses, votingMethod)

	rc.Sink.TokenStream(node.ID, formatConsensus(answer, confidence, votingMethod, len(responses)), model, false)

	return domain.NewTaggedResult(votingMethod, answer, map[string]any{
		"answer":        answer,
		"confidence":    confidence,
		"all_responses": responses,
		"voting_method": votingMethod,
	}), nil
}

func sampleOnce(ctx context.Context, rc *RunContext, nodeID, prompt, model string, temperature float64, maxRetries int) string {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
	var out strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, messages, model, temperature, maxRetries, nil, nodeID,
		func(delta, modelUsed string, isFallback bool) error {
			out.WriteString(delta)
			return nil
		})
	if err != nil {
		return "[Error: sample failed: " + err.Error() + "]"
	}
	return out.String()
}

// voteResponses resolves samples to one winner and a confidence score
// under the given method; unrecognized methods fall back to majority.
func voteResponses(responses []string, method string) (string, float64) {
	n := len(responses)
	if n == 0 {
		return "", 0
	}

	switch method {
	case "first":
		return responses[0], 1.0 / float64(n)
	case "longest":
		winner := responses[0]
		totalLen := 0
		for _, r := range responses {
			totalLen += len(r)
			if len(r) > len(winner) {
				winner = r
			}
		}
		if totalLen == 0 {
			return winner, 0
		}
		return winner, float64(len(winner)) / float64(totalLen)
	default: // "majority"
		counts := make(map[string]int)
		for _, r := range responses {
			counts[r]++
		}
		var winner string
		best := 0
		for _, r := range responses {
			if counts[r] > best {
				best = counts[r]
				winner = r
			}
		}
		return winner, float64(best) / float64(n)
	}
}

func formatConsensus(answer string, confidence float64, method string, samples int) string {
	return fmt.Sprintf("[Consensus via %s over %d samples, confidence %.2f]\n%s", method, samples, confidence, answer)
}
