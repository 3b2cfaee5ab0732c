package engine

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/events"
	"github.com/ncanvas/flowengine/internal/llm"
	"github.com/ncanvas/flowengine/internal/search"
)

// RunContext is the set of collaborators every node handler is built
// against: the LM and search clients, the event sink, and the run's
// shared mutable state. It is constructed once per run.
type RunContext struct {
	Graph  *domain.Graph
	Sink   *events.Sink
	LLM    *llm.Client
	Search search.Client
	State  *RunState
	APIKey string
	Log    zerolog.Logger
}

// Handler executes one node kind. It receives the gathered inputs for the
// node (already resolved against branch-kill rules) and returns the
// result to store, or an error to mark the node failed.
type Handler func(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error)

// registry maps each node kind to its handler. Populated by init funcs in
// the exec_*.go files so each handler lives next to its own concerns.
var registry = map[domain.Kind]Handler{}

func register(kind domain.Kind, h Handler) {
	registry[kind] = h
}

// HandlerFor returns the handler for kind, or nil if kind is unregistered
// (which BuildGraph already prevents for any node actually in a graph).
func HandlerFor(kind domain.Kind) Handler {
	return registry[kind]
}
