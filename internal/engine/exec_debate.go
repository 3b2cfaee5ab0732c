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
	register(domain.KindDebate, executeDebate)
	register(domain.KindVoting, executeVoting)
}

var debatePositions = []string{"Pro", "Con", "Neutral", "Perspective 4", "Perspective 5", "Perspective 6"}

type debateTurn struct {
	Round    int    `json:"round"`
	Debater  int    `json:"debater"`
	Position string `json:"position"`
	Text     string `json:"text"`
}

// executeDebate runs rounds*debaters LM calls: within a round every
// debater argues concurrently from a fixed position, seeing the topic
// plus every prior round's full transcript; rounds run sequentially so
// each round can see the last.
func executeDebate(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	topic := ConcatInputs(inputs)
	rounds := node.ConfigInt("rounds", 2)
	debaters := node.ConfigInt("debaters", 2)
	model := node.ConfigString("model", "openai/gpt-3.5-turbo")
	temperature := node.ConfigFloat("temperature", 0.7)
	maxRetries := node.ConfigInt("max_retries", 3)

	var history []debateTurn

	for round := 0; round < rounds; round++ {
		rc.Sink.NodeProgress(node.ID, round, rounds, fmt.Sprintf("debate round %d/%d", round+1, rounds))

		turns := make([]debateTurn, debaters)
		var wg sync.WaitGroup
		for d := 0; d < debaters; d++ {
			wg.Add(1)
			go func(d int) {
				defer wg.Done()
				position := debatePositions[d%len(debatePositions)]
				prompt := debatePrompt(topic, position, history)
				text := debateCall(ctx, rc, node.ID, prompt, model, temperature, maxRetries)
				turns[d] = debateTurn{Round: round, Debater: d, Position: position, Text: text}
			}(d)
		}
		wg.Wait()
		history = append(history, turns...)
	}

	return domain.NewTaggedResult("debate", formatDebateHistory(history), map[string]any{
		"debate_history": history,
		"question":       topic,
		"num_debaters":   debaters,
		"num_rounds":     rounds,
	}), nil
}

func debatePrompt(topic, position string, history []debateTurn) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Topic: %s\nYour position: %s\n", topic, position))
	if len(history) > 0 {
		b.WriteString("\nPrevious rounds:\n")
		b.WriteString(formatDebateHistory(history))
		b.WriteString("\n")
	}
	b.WriteString("\nArgue your position, responding to prior rounds where relevant.")
	return b.String()
}

func formatDebateHistory(history []debateTurn) string {
	parts := make([]string, len(history))
	for i, t := range history {
		parts[i] = fmt.Sprintf("[Round %d - %s]\n%s", t.Round+1, t.Position, t.Text)
	}
	return strings.Join(parts, "\n\n")
}

func debateCall(ctx context.Context, rc *RunContext, nodeID, prompt, model string, temperature float64, maxRetries int) string {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
	var out strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, messages, model, temperature, maxRetries, nil, nodeID,
		func(delta, modelUsed string, isFallback bool) error {
			out.WriteString(delta)
			return nil
		})
	if err != nil {
		return "[Error: debater failed: " + err.Error() + "]"
	}
	return out.String()
}

// executeVoting resolves a debate (or a set of independent opinions) to
// a verdict under config.method.
func executeVoting(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	method := node.ConfigString("method", "judge")

	var debateText string
	hasDebateHistory := false
	for _, in := range inputs {
		if len(in.Chunks) == 0 && in.Value != "" {
			debateText = in.Value
			hasDebateHistory = true
		}
	}

	model := node.ConfigString("model", "anthropic/claude-3-opus")
	temperature := node.ConfigFloat("temperature", 0.3)
	maxRetries := node.ConfigInt("max_retries", 3)

	switch method {
	case "judge":
		if !hasDebateHistory {
			return domain.NewPlainResult("[voting: no debate history to judge]"), nil
		}
		prompt := "You are an impartial judge. Review the following debate and declare a winner with justification:\n\n" + debateText
		return streamVotingCall(ctx, rc, node.ID, prompt, model, temperature, maxRetries)
	case "consensus":
		opinions := ConcatInputs(inputs)
		prompt := "Find the common ground across the following opinions and summarize it:\n\n" + opinions
		return streamVotingCall(ctx, rc, node.ID, prompt, model, temperature, maxRetries)
	default: // "count"
		return domain.NewPlainResult(fmt.Sprintf("[voting: %d opinions tallied]", len(inputs))), nil
	}
}

func streamVotingCall(ctx context.Context, rc *RunContext, nodeID, prompt, model string, temperature float64, maxRetries int) (domain.Result, error) {
	messages := []llm.Message{{Role: llm.RoleUser, Content: prompt}}
	var answer strings.Builder
	err := rc.LLM.StreamWithFallback(ctx, rc.APIKey, messages, model, temperature, maxRetries, rc.Sink, nodeID,
		func(delta, modelUsed string, isFallback bool) error {
			answer.WriteString(delta)
			rc.Sink.TokenStream(nodeID, delta, modelUsed, isFallback)
			return nil
		})
	if err != nil {
		return domain.NewPlainResult("[Error: voting failed: " + err.Error() + "]"), nil
	}
	return domain.NewPlainResult(answer.String()), nil
}
