package engine

import (
	"context"
	"strings"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/events"
	"github.com/ncanvas/flowengine/internal/llm"
)

func init() {
	register(domain.KindLLM, executeLLM)
}

// executeLLM is the only hard-fail node kind that also calls out to a
// third party: a failed call re-raises so the scheduler marks the node
// failed and its descendants blocked, and the node's memory rolls back
// the turn that didn't get an answer.
func executeLLM(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	model := node.ConfigString("model", "openai/gpt-3.5-turbo")
	temperature := node.ConfigFloat("temperature", 0.7)
	systemPrompt := node.ConfigString("systemPrompt", "You are a helpful AI assistant.")
	maxRetries := node.ConfigInt("max_retries", 3)

	if len(rc.State.Memory(node.ID)) == 0 {
		rc.State.SeedMemory(node.ID, []llm.Message{{Role: llm.RoleSystem, Content: systemPrompt}})
	}

	userTurn := LabeledConcat(inputs)
	rc.State.AppendMemory(node.ID, llm.Message{Role: llm.RoleUser, Content: userTurn})

	memory := rc.State.Memory(node.ID)

	var answer strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, memory, model, temperature, maxRetries, rc.Sink, node.ID,
		func(delta, modelUsed string, fallback bool) error {
			answer.WriteString(delta)
			rc.Sink.TokenStream(node.ID, delta, modelUsed, fallback)
			return nil
		})
	if err != nil {
		rc.State.RollbackLastMemoryTurn(node.ID)
		return domain.Result{}, err
	}

	rc.State.AppendMemory(node.ID, llm.Message{Role: llm.RoleAssistant, Content: answer.String()})

	inputChars := len(userTurn)
	outputChars := answer.Len()
	rc.Sink.NodeUsage(node.ID, events.Usage{
		InputTokens:  inputChars / 4,
		OutputTokens: outputChars / 4,
		TotalTokens:  (inputChars + outputChars) / 4,
	})

	return domain.NewPlainResult(answer.String()), nil
}
