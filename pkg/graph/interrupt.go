package graph

import (
	"context"
	"errors"
	"fmt"

	"github.com/avi3tal/flowgraph/pkg/state"
)

// ErrInterrupted is the sentinel under every interrupt raised by a node.
var ErrInterrupted = errors.New("execution interrupted")

// Interrupt pauses the run from inside a node body, surfacing the payload
// to the caller. The step the node belongs to is abandoned: no update is
// merged and nothing new is persisted, so the last completed snapshot is
// the resume point and the whole step re-runs on the next invocation.
// Nodes typically pair it with ResumeValue:
//
//	if answer, ok := graph.ResumeValue(ctx); ok {
//		return approve(answer)
//	}
//	return nil, graph.Interrupt("needs human approval")
func Interrupt(payload any) error {
	return &interruptSignal{payload: payload}
}

type interruptSignal struct {
	payload any
}

func (s *interruptSignal) Error() string {
	return fmt.Sprintf("interrupt requested: %v", s.payload)
}

func (s *interruptSignal) Unwrap() error {
	return ErrInterrupted
}

// InterruptError is returned by Invoke when a node paused the run. The
// thread can be resumed by invoking again, usually with WithResumeValue
// to answer the interrupt.
type InterruptError struct {
	// Node is the node that raised the interrupt.
	Node string
	// Step is the abandoned super-step (1-based).
	Step int
	// Payload is the value passed to Interrupt.
	Payload any
	// State is the merged state the interrupted step started from.
	State state.State
}

func (e *InterruptError) Error() string {
	return fmt.Sprintf("graph execution: step %d: node %q: %v", e.Step, e.Node, ErrInterrupted)
}

func (e *InterruptError) Unwrap() error {
	return ErrInterrupted
}

type resumeValueKey struct{}

func withResumeValue(ctx context.Context, v any) context.Context {
	return context.WithValue(ctx, resumeValueKey{}, v)
}

// ResumeValue reports the value supplied with WithResumeValue, if this is
// the first super-step of a resumed run. It returns false otherwise, so a
// node can distinguish a fresh visit from an answered interrupt.
func ResumeValue(ctx context.Context) (any, bool) {
	v := ctx.Value(resumeValueKey{})
	return v, v != nil
}
