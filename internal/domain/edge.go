package domain

// Edge connects two nodes. SourceHandle, when set, names the logical output
// port of the source node (e.g. "true", "loop") that must match the
// source's active signal for data to propagate along this edge.
type Edge struct {
	ID           string
	Source       string
	Target       string
	SourceHandle string
	TargetHandle string

	// IsBackEdge marks an edge discovered closing a cycle during the DFS
	// run at graph construction (its target is an ancestor of its source
	// on some path from a root). Loop bodies feed back into their loop
	// node along exactly this kind of edge; the scheduler excludes
	// back-edge parents from readiness so the loop node is dispatchable
	// before its own body has ever produced a result.
	IsBackEdge bool
}
