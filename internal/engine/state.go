package engine

import (
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ncanvas/flowengine/internal/domain"
	"github.com/ncanvas/flowengine/internal/llm"
)

// loopSlot is the per-loop-node iteration counter, monotone within a run.
type loopSlot struct {
	iteration int
}

// RunState is the mutable aggregate a single run owns: results, per-node
// loop counters, and per-node LM conversation memory. It is created fresh
// per run and dropped at run end; nothing here ever crosses run
// boundaries. Concurrent handlers hit these maps from different
// goroutines, so they are backed by lock-striped concurrent maps rather
// than a single mutex guarding the whole aggregate.
type RunState struct {
	results *xsync.MapOf[string, domain.Result]
	loops   *xsync.MapOf[string, *loopSlot]
	memory  *xsync.MapOf[string, []llm.Message]
}

// NewRunState creates an empty RunState for one run.
func NewRunState() *RunState {
	return &RunState{
		results: xsync.NewMapOf[string, domain.Result](),
		loops:   xsync.NewMapOf[string, *loopSlot](),
		memory:  xsync.NewMapOf[string, []llm.Message](),
	}
}

// Result returns the stored result for nodeID, if any.
func (s *RunState) Result(nodeID string) (domain.Result, bool) {
	return s.results.Load(nodeID)
}

// SetResult overwrites the stored result for nodeID.
func (s *RunState) SetResult(nodeID string, result domain.Result) {
	s.results.Store(nodeID, result)
}

// NextLoopIteration increments and returns the loop node's iteration
// counter, creating it at 0 on first call.
func (s *RunState) NextLoopIteration(nodeID string) int {
	slot, _ := s.loops.LoadOrStore(nodeID, &loopSlot{})
	slot.iteration++
	return slot.iteration
}

// Memory returns a copy of nodeID's conversation memory, or nil if the
// node has never executed.
func (s *RunState) Memory(nodeID string) []llm.Message {
	if mem, ok := s.memory.Load(nodeID); ok {
		out := make([]llm.Message, len(mem))
		copy(out, mem)
		return out
	}
	return nil
}

// SeedMemory sets nodeID's conversation memory to exactly msgs. Used once,
// on a node's first execution, to seed the system turn.
func (s *RunState) SeedMemory(nodeID string, msgs []llm.Message) {
	s.memory.Store(nodeID, msgs)
}

// AppendMemory appends msg to nodeID's conversation memory.
func (s *RunState) AppendMemory(nodeID string, msg llm.Message) {
	mem, _ := s.memory.Load(nodeID)
	mem = append(mem, msg)
	s.memory.Store(nodeID, mem)
}

// RollbackLastMemoryTurn drops the most recently appended turn, used to
// keep memory clean after a failed llm call so a retry starts fresh.
func (s *RunState) RollbackLastMemoryTurn(nodeID string) {
	mem, ok := s.memory.Load(nodeID)
	if !ok || len(mem) == 0 {
		return
	}
	s.memory.Store(nodeID, mem[:len(mem)-1])
}
