package domain

// Result is the value a node handler stores for its node id. It is a
// closed variant: either a Plain text value, or a Tagged record carrying a
// control Signal plus a Data payload (the shape conditional and loop nodes
// produce). Gather-time branching pattern-matches on Tagged rather than
// probing an open map, per the tagged-result design in §9.
type Result struct {
	tagged bool

	Plain string

	Signal string
	Data   string
	Extras map[string]any
}

// NewPlainResult wraps a plain text value.
func NewPlainResult(text string) Result {
	return Result{Plain: text}
}

// NewTaggedResult wraps a signal/data pair, with optional extra fields
// (e.g. loop's "iteration") folded into Extras for UI projection.
func NewTaggedResult(signal, data string, extras map[string]any) Result {
	return Result{tagged: true, Signal: signal, Data: data, Extras: extras}
}

// IsTagged reports whether this result carries a control signal.
func (r Result) IsTagged() bool { return r.tagged }

// Text returns the value to propagate as a plain input to a downstream
// node: the Data payload for a tagged result, or Plain otherwise.
func (r Result) Text() string {
	if r.tagged {
		return r.Data
	}
	return r.Plain
}

// UIProjection returns the scalar sent to clients in node_finish: the
// signal alone for a tagged result (per §4.3), the text otherwise.
func (r Result) UIProjection() any {
	if r.tagged {
		return r.Signal
	}
	return r.Plain
}
