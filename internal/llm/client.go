// Package llm wraps an OpenAI-compatible chat-completion endpoint with two
// operations: a thin streaming pass-through, and a tiered-fallback
// streaming call that retries across equivalent models with exponential
// backoff before giving up.
package llm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"
	openai "github.com/sashabaranov/go-openai"

	"github.com/ncanvas/flowengine/internal/events"
)

// Message is one turn of conversation memory.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Client issues streaming chat completions against a configurable
// OpenAI-compatible base URL, authenticated with a per-call bearer token
// (the graph's apiKey) or a process-wide default.
type Client struct {
	baseURL       string
	defaultAPIKey string
	log           zerolog.Logger

	// backoff is overridable in tests so StreamWithFallback doesn't sleep
	// real wall-clock seconds during a test run.
	backoff func(attempt int) time.Duration
}

// NewClient creates a Client pointed at baseURL, using apiKey as the
// process-wide default credential when a call carries no override.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		baseURL:       baseURL,
		defaultAPIKey: apiKey,
		log:           log,
		backoff:       func(attempt int) time.Duration { return time.Duration(1<<uint(attempt)) * time.Second },
	}
}

func (c *Client) newOpenAIClient(apiKeyOverride string) *openai.Client {
	key := c.defaultAPIKey
	if apiKeyOverride != "" {
		key = apiKeyOverride
	}
	cfg := openai.DefaultConfig(key)
	if c.baseURL != "" {
		cfg.BaseURL = c.baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

func toOpenAIMessages(messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, len(messages))
	for i, m := range messages {
		out[i] = openai.ChatCompletionMessage{Role: m.Role, Content: m.Content}
	}
	return out
}

// Stream is the thin pass-through operation: it calls model directly and
// forwards every text delta to onDelta, stopping at the first error (from
// the provider or from onDelta itself).
func (c *Client) Stream(ctx context.Context, apiKey string, messages []Message, model string, temperature float64, onDelta func(delta string) error) error {
	client := c.newOpenAIClient(apiKey)
	req := openai.ChatCompletionRequest{
		Model:       model,
		Temperature: float32(temperature),
		Messages:    toOpenAIMessages(messages),
		Stream:      true,
	}

	stream, err := client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return fmt.Errorf("create stream: %w", err)
	}
	defer stream.Close()

	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream recv: %w", err)
		}
		if len(resp.Choices) == 0 {
			continue
		}
		delta := resp.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		if err := onDelta(delta); err != nil {
			return err
		}
	}
}

// StreamWithFallback retries model across its fallback tier on transient
// failure, waiting 2^attempt seconds between attempts and emitting
// model_fallback on every retry. onDelta is invoked with the model that
// actually produced each delta and whether it is a fallback model.
//
// If every attempt fails, StreamWithFallback does not return an error: it
// instead delivers one final delta containing a human-readable error
// string and returns nil, per §4.4's "not a node failure unless it also
// exceptions out" contract.
func (c *Client) StreamWithFallback(
	ctx context.Context,
	apiKey string,
	messages []Message,
	model string,
	temperature float64,
	maxRetries int,
	sink *events.Sink,
	nodeID string,
	onDelta func(delta, modelUsed string, isFallback bool) error,
) error {
	candidates := fallbackList(model, maxRetries)

	var lastErr error
	for attempt, candidate := range candidates {
		if attempt > 0 {
			// attempt is 0-based (candidates[0] is the original model); the
			// emitted event is 1-indexed, so the first fallback reports
			// attempt=2 here, one more than the loop's candidate index.
			if sink != nil {
				sink.ModelFallback(nodeID, model, candidate, attempt+1, errString(lastErr))
			}
			select {
			case <-time.After(c.backoff(attempt)):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		isFallback := attempt > 0
		err := c.Stream(ctx, apiKey, messages, candidate, temperature, func(delta string) error {
			return onDelta(delta, candidate, isFallback)
		})
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.log.Debug().Str("node_id", nodeID).Str("model", candidate).Err(err).Msg("llm attempt failed")
		lastErr = err
	}

	message := fmt.Sprintf("[Error: language model unavailable after %d attempt(s): %s]", len(candidates), errString(lastErr))
	return onDelta(message, model, len(candidates) > 1)
}

func errString(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
