// Package events defines the JSON event schema streamed to clients over
// the session connection and the single-writer sink that serializes
// concurrent handler emissions onto it.
package events

// Type tags every event record so the client can dispatch on it without
// guessing from payload shape.
type Type string

const (
	TypeExecutionStart    Type = "execution_start"
	TypeExecutionComplete Type = "execution_complete"
	TypeExecutionError    Type = "execution_error"
	TypeError             Type = "error"
	TypeNodeStart         Type = "node_start"
	TypeNodeFinish        Type = "node_finish"
	TypeNodeError         Type = "node_error"
	TypeNodeSkipped       Type = "node_skipped"
	TypeTokenStream       Type = "token_stream"
	TypeNodeUsage         Type = "node_usage"
	TypeNodeProgress      Type = "node_progress"
	TypeModelFallback     Type = "model_fallback"
)

// Usage is the node_usage payload's token accounting.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// Stats is the optional execution_complete payload.
type Stats struct {
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Event is the single wire shape for every event type. Fields unused by a
// given type are omitted from the JSON encoding (omitempty), which is what
// lets one struct serve every row of the §6 event schema table without a
// union type.
type Event struct {
	Type Type `json:"type"`

	NodeID string `json:"node_id,omitempty"`
	Result any    `json:"result,omitempty"`
	Error  string `json:"error,omitempty"`
	Token  string `json:"token,omitempty"`

	ModelUsed  string `json:"model_used,omitempty"`
	IsFallback bool   `json:"is_fallback,omitempty"`

	Usage *Usage `json:"usage,omitempty"`

	Current int    `json:"current,omitempty"`
	Total   int    `json:"total,omitempty"`
	Message string `json:"message,omitempty"`

	OriginalModel string `json:"original_model,omitempty"`
	FallbackModel string `json:"fallback_model,omitempty"`
	Attempt       int    `json:"attempt,omitempty"`
	Reason        string `json:"reason,omitempty"`

	Stats *Stats `json:"stats,omitempty"`
}
