package graph

import (
	"errors"
	"fmt"

	"github.com/avi3tal/flowgraph/pkg/state"
)

var (
	// ErrDuplicateNode is returned when a node name is registered twice.
	ErrDuplicateNode = errors.New("duplicate node name")

	// ErrDuplicateRouter is returned when a second conditional edge is
	// registered for the same source node.
	ErrDuplicateRouter = errors.New("conditional edge already set for node")

	// ErrDanglingEdge is returned when an edge references an undefined node.
	ErrDanglingEdge = errors.New("edge references undefined node")

	// ErrNilNodeFunc is returned when a node is registered without a body.
	ErrNilNodeFunc = errors.New("node function is nil")

	// ErrNoEntryPoint is returned when compiling a graph with no entry point.
	ErrNoEntryPoint = errors.New("no entry point set")

	// ErrUnreachableNode is returned when a node cannot be reached from
	// any entry point.
	ErrUnreachableNode = errors.New("node unreachable from entry points")

	// ErrUndefinedRoute is returned when a router or routing directive
	// names a node that does not exist.
	ErrUndefinedRoute = errors.New("route to undefined node")

	// ErrMaxSteps is returned when a run exceeds the configured step limit.
	ErrMaxSteps = errors.New("max super-steps reached")

	// ErrAlreadyCompiled is returned when mutating a builder after Compile.
	ErrAlreadyCompiled = errors.New("graph is already compiled")
)

// DefinitionError reports a structural fault found at compile time. It is
// always fatal to compilation and never recovered.
type DefinitionError struct {
	// Op is the validation that failed.
	Op string
	// Node is the node or edge endpoint involved, if any.
	Node string
	// Err is one of the definition sentinels above.
	Err error
}

func (e *DefinitionError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph definition: %s: node %q: %v", e.Op, e.Node, e.Err)
	}
	return fmt.Sprintf("graph definition: %s: %v", e.Op, e.Err)
}

func (e *DefinitionError) Unwrap() error {
	return e.Err
}

func newDefinitionError(op, node string, err error) error {
	return &DefinitionError{Op: op, Node: node, Err: err}
}

// ExecutionError reports a failed run. The last successfully merged state
// is attached so callers can inspect partial progress; the last persisted
// snapshot, if any, remains a valid resume point.
type ExecutionError struct {
	// Node is the node whose body or routing failed, if attributable.
	Node string
	// Step is the super-step in which the failure occurred (1-based).
	Step int
	// State is the last successfully merged state.
	State state.State
	// Err is the underlying cause.
	Err error
}

func (e *ExecutionError) Error() string {
	if e.Node != "" {
		return fmt.Sprintf("graph execution: step %d: node %q: %v", e.Step, e.Node, e.Err)
	}
	return fmt.Sprintf("graph execution: step %d: %v", e.Step, e.Err)
}

func (e *ExecutionError) Unwrap() error {
	return e.Err
}

func newExecutionError(node string, step int, st state.State, err error) error {
	return &ExecutionError{Node: node, Step: step, State: st, Err: err}
}
