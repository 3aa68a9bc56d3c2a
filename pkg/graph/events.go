package graph

import (
	"time"

	"github.com/avi3tal/flowgraph/pkg/state"
)

// StreamMode selects what a Stream call emits. Multiple modes may be
// requested for one invocation; events preserve step order across modes.
type StreamMode string

const (
	// StreamValues emits one event per completed super-step carrying the
	// full merged state.
	StreamValues StreamMode = "values"

	// StreamUpdates emits one event per node completion carrying only
	// that node's partial update.
	StreamUpdates StreamMode = "updates"

	// StreamMessages emits token/message fragments pushed by node bodies
	// through EmitMessage.
	StreamMessages StreamMode = "messages"

	// StreamDebug emits one event per completed super-step with frontier
	// and timing metadata.
	StreamDebug StreamMode = "debug"

	// StreamError tags the terminal event of a failed run. It cannot be
	// requested or filtered out: a failed stream always ends with one.
	StreamError StreamMode = "error"
)

// MessageFragment is an incremental piece of node output, typically an
// LLM token or partial message.
type MessageFragment struct {
	Node    string
	Content string
}

// DebugInfo carries per-step metadata for StreamDebug events.
type DebugInfo struct {
	// Frontier is the node set scheduled for the next super-step.
	Frontier []string
	// Elapsed is the wall-clock duration of the completed step.
	Elapsed time.Duration
}

// Event is a single item of a streamed execution. Exactly one payload
// field is set, according to Mode; events are never mutated after
// emission. A non-nil Err signals a failed run: it is the final event of
// the sequence.
type Event struct {
	Mode StreamMode

	// Step is the 1-based super-step the event belongs to.
	Step int

	// Node is the originating node for updates and messages events.
	Node string

	// Namespace is the subgraph path ("parent/child") for events
	// forwarded out of nested graphs; empty for the root graph.
	Namespace string

	State   state.State      // StreamValues
	Update  state.State      // StreamUpdates
	Message *MessageFragment // StreamMessages
	Debug   *DebugInfo       // StreamDebug

	Err error
}
