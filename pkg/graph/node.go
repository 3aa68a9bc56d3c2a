package graph

import (
	"context"
	"time"

	"github.com/avi3tal/flowgraph/pkg/state"
)

// NodeFunc is the computation a node performs. It receives its own clone
// of the merged pre-step state and returns a partial update, optionally
// with an explicit routing directive. It must not retain or mutate the
// received state beyond the call.
type NodeFunc func(ctx context.Context, s state.State) (*NodeResult, error)

// RouterFunc maps the merged post-step state to the next node names for
// a conditional edge. Returning zero names (or only END) prunes the
// branch for this frontier.
type RouterFunc func(ctx context.Context, s state.State) []string

// NodeResult is what a node hands back to the super-step barrier.
type NodeResult struct {
	// Update is the partial state update, merged through the schema
	// reducers. May be nil for a pure routing node.
	Update state.State

	// Route optionally overrides the graph's static and conditional
	// edges for this node in this step.
	Route *Route
}

// Route is an explicit routing directive issued by a node.
type Route struct {
	targets []string
	finish  bool
}

// Goto directs execution to the named nodes in the next super-step,
// overriding the node's static and conditional edges for this step. The
// targets must be nodes the graph declares reachable through some edge or
// router: Compile rejects graphs with nodes reachable no other way.
func Goto(targets ...string) *Route {
	return &Route{targets: targets}
}

// Finish directs the run to terminate after this step as far as this
// node's branch is concerned.
func Finish() *Route {
	return &Route{finish: true}
}

// nodeSpec is the compiled, immutable form of a registered node.
type nodeSpec struct {
	name    string
	fn      NodeFunc
	order   int // registration order, the merge tie-breaker
	binding *SubgraphBinding
}

// WithNodeRetry wraps a node function with a fixed-attempt retry loop.
// Retry policy is a node-body concern: the engine itself never retries.
func WithNodeRetry(fn NodeFunc, attempts int, delay time.Duration) NodeFunc {
	if attempts < 1 {
		attempts = 1
	}
	return func(ctx context.Context, s state.State) (*NodeResult, error) {
		var lastErr error
		for attempt := 0; attempt < attempts; attempt++ {
			if attempt > 0 {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				case <-time.After(delay):
				}
			}
			res, err := fn(ctx, s.Clone())
			if err == nil {
				return res, nil
			}
			lastErr = err
		}
		return nil, lastErr
	}
}
