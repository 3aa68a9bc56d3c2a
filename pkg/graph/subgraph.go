package graph

import (
	"context"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// TransformIn converts the parent's merged state into the child graph's
// input state.
type TransformIn func(parent state.State) (state.State, error)

// TransformOut converts the child graph's final state into the partial
// update returned to the parent's super-step.
type TransformOut func(child state.State) (state.State, error)

// SubgraphBinding pairs a node of the parent graph with a compiled child
// graph and the two state-shape transforms applied at the boundary. The
// parent owns the binding; the child graph is shared and never mutated.
type SubgraphBinding struct {
	child *CompiledGraph
	in    TransformIn
	out   TransformOut

	// store is the effective persistence backend for this binding: the
	// child's own checkpointer when it has one, otherwise the parent's,
	// inherited at compile time.
	store checkpoints.Store
}

// run executes the child graph as the body of a parent node. The child
// runs to completion on a thread identifier derived from the parent's
// (parent thread + node name), so each binding owns an independent
// persisted lineage. Child failure is the parent node's failure.
func (b *SubgraphBinding) run(ctx context.Context, parent *execution, nodeName string, parentState state.State) (state.State, error) {
	childInput, err := b.in(parentState)
	if err != nil {
		return nil, err
	}

	childExec := &execution{
		g:        b.child,
		threadID: parent.threadID + "/" + nodeName,
		store:    b.store,
		emitter:  parent.emitter.namespaced(nodeName),
		logger:   b.child.logger.With().Str("thread", parent.threadID+"/"+nodeName).Logger(),

		// A node on a cycle visits its child repeatedly; each visit is a
		// full run, not a resume of the previous one. Only a child
		// interrupted mid-flight picks up where it left off.
		restartFinished: true,
	}

	final, err := childExec.run(ctx, childInput)
	if err != nil {
		return nil, err
	}
	return b.out(final)
}
