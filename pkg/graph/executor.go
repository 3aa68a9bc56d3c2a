package graph

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// execution is the per-run state of one graph invocation: one thread, one
// optional stream, one checkpoint lineage. Subgraph bindings spawn child
// executions that share the emitter and derive their thread identifier.
type execution struct {
	g          *CompiledGraph
	threadID   string
	store      checkpoints.Store
	resumeStep int
	emitter    *emitter
	logger     zerolog.Logger

	// resumeValue answers a pending interrupt; it is visible to nodes of
	// the first super-step only.
	resumeValue any

	// restartFinished makes restore treat a completed lineage as a fresh
	// run. Subgraph bindings set it so a nested graph re-runs on every
	// visit while an interrupted one still resumes mid-flight.
	restartFinished bool
}

// stepOutcome pairs one frontier node with what its body produced.
type stepOutcome struct {
	node   string
	result *NodeResult
	err    error
}

// run drives the super-step loop to completion and returns the final
// merged state. A failure is an *ExecutionError carrying the last
// successfully merged state; a node pausing the run yields an
// *InterruptError instead.
func (e *execution) run(ctx context.Context, input state.State) (state.State, error) {
	current, frontier, step, err := e.restore(ctx, input)
	if err != nil {
		return nil, newExecutionError("", step, nil, err)
	}
	firstStep := step + 1

	for len(frontier) > 0 {
		step++
		if step > e.g.maxSteps {
			return current, newExecutionError("", step, current, ErrMaxSteps)
		}
		if err := ctx.Err(); err != nil {
			return current, newExecutionError("", step, current, err)
		}

		started := time.Now()
		e.logger.Debug().Int("step", step).Strs("frontier", frontier).Msg("super-step start")

		stepCtx := ctx
		if step == firstStep && e.resumeValue != nil {
			stepCtx = withResumeValue(ctx, e.resumeValue)
		}
		outcomes := e.runFrontier(stepCtx, step, frontier, current)

		// First failure in registration order wins; the merged state of
		// the previous step is what the error carries. An interrupt
		// abandons the step the same way, leaving the last completed
		// snapshot as the resume point.
		for _, oc := range outcomes {
			if oc.err == nil {
				continue
			}
			var sig *interruptSignal
			if errors.As(oc.err, &sig) {
				return current, &InterruptError{
					Node:    oc.node,
					Step:    step,
					Payload: sig.payload,
					State:   current,
				}
			}
			return current, newExecutionError(oc.node, step, current, oc.err)
		}

		for _, oc := range outcomes {
			if oc.result == nil || len(oc.result.Update) == 0 {
				continue
			}
			current = e.g.schema.Apply(current, oc.result.Update)
			e.emitter.emitUpdate(ctx, step, oc.node, oc.result.Update)
		}

		next, err := e.route(ctx, outcomes, current)
		if err != nil {
			return current, newExecutionError("", step, current, err)
		}

		e.emitter.emitValues(ctx, step, current.Clone())
		e.emitter.emitDebug(ctx, step, next, time.Since(started))

		if e.store != nil {
			snap := checkpoints.Snapshot{
				ThreadID:  e.threadID,
				Step:      step,
				State:     current.Clone(),
				Frontier:  append([]string(nil), next...),
				CreatedAt: time.Now().UTC(),
			}
			if err := e.store.Save(ctx, snap); err != nil {
				return current, newExecutionError("", step, current, err)
			}
		}

		frontier = next
	}

	return current, nil
}

// restore produces the starting state, frontier, and completed-step count
// for a run: a fresh thread starts from the schema defaults and the entry
// points; a resumed thread starts from its chosen snapshot with the new
// input folded in through the reducers.
func (e *execution) restore(ctx context.Context, input state.State) (state.State, []string, int, error) {
	if e.store == nil {
		return e.g.schema.Init(input), append([]string(nil), e.g.entryPoints...), 0, nil
	}

	var (
		snap *checkpoints.Snapshot
		err  error
	)
	if e.resumeStep > 0 {
		snap, err = e.store.Get(ctx, e.threadID, e.resumeStep)
	} else {
		snap, err = e.store.Latest(ctx, e.threadID)
	}
	if err != nil {
		return nil, nil, 0, err
	}
	if snap == nil {
		return e.g.schema.Init(input), append([]string(nil), e.g.entryPoints...), 0, nil
	}

	if len(snap.Frontier) == 0 {
		// The lineage already ran to completion. A nested run starts
		// over from step one, overwriting the previous pass; a top-level
		// thread stays finished, and its stored state is returned
		// untouched (amendments go through UpdateState).
		if e.restartFinished {
			return e.g.schema.Init(input), append([]string(nil), e.g.entryPoints...), 0, nil
		}
		return snap.State.Clone(), nil, snap.Step, nil
	}

	current := snap.State.Clone()
	if len(input) > 0 {
		current = e.g.schema.Apply(current, input)
	}
	return current, append([]string(nil), snap.Frontier...), snap.Step, nil
}

// runFrontier executes every frontier node concurrently against its own
// clone of the pre-step state and waits for all of them. Outcomes are
// returned in frontier (registration) order, independent of completion
// order.
func (e *execution) runFrontier(ctx context.Context, step int, frontier []string, current state.State) []stepOutcome {
	outcomes := make([]stepOutcome, len(frontier))

	var wg sync.WaitGroup
	for i, name := range frontier {
		wg.Add(1)
		go func(i int, name string) {
			defer wg.Done()
			result, err := e.invokeNode(ctx, step, name, current.Clone())
			outcomes[i] = stepOutcome{node: name, result: result, err: err}
		}(i, name)
	}
	wg.Wait()

	return outcomes
}

func (e *execution) invokeNode(ctx context.Context, step int, name string, snapshot state.State) (*NodeResult, error) {
	spec := e.g.nodes[name]

	if spec.binding != nil {
		update, err := spec.binding.run(ctx, e, name, snapshot)
		if err != nil {
			return nil, err
		}
		return &NodeResult{Update: update}, nil
	}

	nodeCtx := withMessageSink(ctx, &messageSink{emitter: e.emitter, step: step, node: name})
	return spec.fn(nodeCtx, snapshot)
}

// route computes the next frontier from the merged post-step state. An
// explicit directive returned by the node wins; otherwise the node's
// router, invoked exactly once, decides; otherwise the static edges do.
// Finish points and END prune their branch. The result is deduplicated
// and ordered by node registration.
func (e *execution) route(ctx context.Context, outcomes []stepOutcome, merged state.State) ([]string, error) {
	seen := make(map[string]bool)
	var next []string

	add := func(source string, targets []string) error {
		for _, target := range targets {
			if target == END {
				continue
			}
			if _, ok := e.g.nodes[target]; !ok {
				return errors.Wrapf(ErrUndefinedRoute, "node %q routed to %q", source, target)
			}
			if !seen[target] {
				seen[target] = true
				next = append(next, target)
			}
		}
		return nil
	}

	for _, oc := range outcomes {
		if oc.result != nil && oc.result.Route != nil {
			if oc.result.Route.finish {
				continue
			}
			if err := add(oc.node, oc.result.Route.targets); err != nil {
				return nil, err
			}
			continue
		}
		if e.g.finishPoints[oc.node] {
			continue
		}
		if ce, ok := e.g.routers[oc.node]; ok {
			if err := add(oc.node, ce.router(ctx, merged)); err != nil {
				return nil, err
			}
			continue
		}
		if err := add(oc.node, e.g.adjacency[oc.node]); err != nil {
			return nil, err
		}
	}

	sort.Slice(next, func(i, j int) bool {
		return e.g.nodes[next[i]].order < e.g.nodes[next[j]].order
	})
	return next, nil
}
