package events

import (
	"context"

	"github.com/rs/zerolog"
)

// Sink is the single serialization point over a client channel. Every
// handler-originated event funnels through Emit; a single internal writer
// goroutine drains the queue, so concurrent handlers never interleave
// within a single event and never block on a slow network write for long.
type Sink struct {
	out    chan<- Event
	queue  chan Event
	log    zerolog.Logger
	done   chan struct{}
}

// NewSink creates a Sink that forwards every emitted event to out. Run
// must be started in its own goroutine before Emit is called.
func NewSink(out chan<- Event, log zerolog.Logger) *Sink {
	return &Sink{
		out:   out,
		queue: make(chan Event, 256),
		log:   log,
		done:  make(chan struct{}),
	}
}

// Run drains the internal queue into out until ctx is cancelled or Close
// is called. It is the sink's single writer task.
func (s *Sink) Run(ctx context.Context) {
	for {
		select {
		case ev := <-s.queue:
			select {
			case s.out <- ev:
			case <-ctx.Done():
				return
			}
		case <-s.done:
			return
		case <-ctx.Done():
			return
		}
	}
}

// Close stops Run after any already-queued events have been flushed is not
// guaranteed; callers should stop emitting before calling Close.
func (s *Sink) Close() {
	close(s.done)
}

// Emit queues ev for delivery on a best-effort basis: if the internal
// queue is full (a slow consumer, not a slow network write, since Run
// drains it independently of the network), the event is dropped and
// logged rather than blocking the caller. Reserved for events whose loss
// doesn't break a §8 invariant: token_stream, node_usage, node_progress
// and model_fallback.
func (s *Sink) Emit(ev Event) {
	select {
	case s.queue <- ev:
	default:
		s.log.Warn().Str("type", string(ev.Type)).Str("node_id", ev.NodeID).
			Msg("event sink queue full, dropping event")
	}
}

// emitBlocking queues ev, waiting for room in the queue rather than
// dropping it. Used for lifecycle and terminal events (node_start,
// node_finish, node_error, node_skipped, execution_*) where the §8
// invariant "for every node_start, exactly one terminal event follows"
// must hold even under backpressure; it only gives up once the sink
// itself is closed, so a run can still end instead of hanging forever.
func (s *Sink) emitBlocking(ev Event) {
	select {
	case s.queue <- ev:
	case <-s.done:
		s.log.Warn().Str("type", string(ev.Type)).Str("node_id", ev.NodeID).
			Msg("event sink closed, dropping event")
	}
}

func (s *Sink) ExecutionStart() { s.emitBlocking(Event{Type: TypeExecutionStart}) }

func (s *Sink) ExecutionComplete(stats Stats) {
	s.emitBlocking(Event{Type: TypeExecutionComplete, Stats: &stats})
}

func (s *Sink) ExecutionError(err error) {
	s.emitBlocking(Event{Type: TypeExecutionError, NodeID: "system", Error: err.Error()})
}

func (s *Sink) ValidationError(message string) {
	s.emitBlocking(Event{Type: TypeError, Message: message})
}

func (s *Sink) NodeStart(nodeID string) {
	s.emitBlocking(Event{Type: TypeNodeStart, NodeID: nodeID})
}

func (s *Sink) NodeFinish(nodeID string, result any) {
	s.emitBlocking(Event{Type: TypeNodeFinish, NodeID: nodeID, Result: result})
}

func (s *Sink) NodeError(nodeID string, err error) {
	s.emitBlocking(Event{Type: TypeNodeError, NodeID: nodeID, Error: err.Error()})
}

func (s *Sink) NodeSkipped(nodeID string) {
	s.emitBlocking(Event{Type: TypeNodeSkipped, NodeID: nodeID})
}

func (s *Sink) TokenStream(nodeID, token, modelUsed string, isFallback bool) {
	s.Emit(Event{Type: TypeTokenStream, NodeID: nodeID, Token: token, ModelUsed: modelUsed, IsFallback: isFallback})
}

func (s *Sink) NodeUsage(nodeID string, usage Usage) {
	s.Emit(Event{Type: TypeNodeUsage, NodeID: nodeID, Usage: &usage})
}

func (s *Sink) NodeProgress(nodeID string, current, total int, message string) {
	s.Emit(Event{Type: TypeNodeProgress, NodeID: nodeID, Current: current, Total: total, Message: message})
}

func (s *Sink) ModelFallback(nodeID, original, fallback string, attempt int, reason string) {
	s.Emit(Event{
		Type:          TypeModelFallback,
		NodeID:        nodeID,
		OriginalModel: original,
		FallbackModel: fallback,
		Attempt:       attempt,
		Reason:        reason,
	})
}
