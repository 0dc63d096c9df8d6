package engine

import (
	"sync/atomic"

	"github.com/dcshock/planpipe/plan"
)

// StatusStore holds the latest published run snapshot. Writes come only from
// the engine's run goroutine; any number of readers may load concurrently.
// Snapshots are deep copies, so a torn or mid-stage state is never visible.
type StatusStore struct {
	cur atomic.Pointer[plan.RunState]
}

// NewStatusStore returns an empty store.
func NewStatusStore() *StatusStore {
	return &StatusStore{}
}

// Publish stores a snapshot of state as the latest visible run state.
func (s *StatusStore) Publish(state *plan.RunState) {
	s.cur.Store(state.Clone())
}

// Load returns a copy of the latest snapshot, or nil when nothing has been
// published. The copy is the caller's to keep; mutating it never affects the
// store or the running pipeline.
func (s *StatusStore) Load() *plan.RunState {
	return s.cur.Load().Clone()
}
