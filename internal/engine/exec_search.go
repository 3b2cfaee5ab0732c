package engine

import (
	"context"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/search"
)

func init() {
	register(domain.KindSearch, executeSearch)
}

// executeSearch is best-effort: a failing search client produces a plain,
// human-readable error string as the node's result rather than a failed
// node, since downstream nodes (usually an llm node) can still proceed
// with degraded context.
func executeSearch(ctx context.Context, rc *RunContext, node *domain.Node, inputs []GatheredInput) (domain.Result, error) {
	query := node.ConfigString("searchQuery", "")
	if query == "" {
		query = ConcatInputs(inputs)
	}
	maxResults := node.ConfigInt("max_results", 3)
	if maxResults <= 0 || maxResults > 3 {
		maxResults = 3
	}

	if rc.Search == nil {
		return domain.NewPlainResult("[Error: search unavailable: no search client configured]"), nil
	}

	results, err := rc.Search.Search(ctx, query, maxResults)
	if err != nil {
		return domain.NewPlainResult("[Error: search failed: " + err.Error() + "]"), nil
	}
	return domain.NewPlainResult(search.FormatResults(results)), nil
}
