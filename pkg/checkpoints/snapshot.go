package checkpoints

import (
	"time"

	"github.com/avi3tal/flowgraph/pkg/state"
)

// Snapshot is a durable, immutable record of a thread's state at the end
// of a completed super-step. One snapshot exists per (thread, step).
type Snapshot struct {
	// ThreadID identifies the execution lineage the snapshot belongs to.
	ThreadID string `json:"thread_id"`

	// Step is the 1-based number of the completed super-step.
	Step int `json:"step"`

	// State is the merged state after the step.
	State state.State `json:"state"`

	// Frontier lists the node names scheduled for the next step. An
	// empty frontier marks a finished run.
	Frontier []string `json:"frontier"`

	// CreatedAt is when the snapshot was taken.
	CreatedAt time.Time `json:"created_at"`
}

// Clone copies the snapshot so stores can hand out values without
// aliasing their internal records.
func (s Snapshot) Clone() Snapshot {
	cloned := s
	cloned.State = s.State.Clone()
	cloned.Frontier = append([]string(nil), s.Frontier...)
	return cloned
}
