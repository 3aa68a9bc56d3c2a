package graph

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// streamBuffer bounds the event channel so slow consumers apply
// backpressure instead of growing memory.
const streamBuffer = 64

// CompiledGraph is the immutable, executable form of a Graph. It is safe
// for concurrent use: every invocation runs on its own execution state,
// and node bodies only ever see clones of the shared state.
type CompiledGraph struct {
	graphID string
	name    string
	schema  *state.Schema

	nodes     map[string]*nodeSpec
	order     []string
	adjacency map[string][]string
	routers   map[string]*conditionalEdge

	entryPoints  []string
	finishPoints map[string]bool

	checkpointer checkpoints.Store
	maxSteps     int
	logger       zerolog.Logger
}

// Name returns the graph's name.
func (cg *CompiledGraph) Name() string { return cg.name }

// ID returns the graph's unique identifier.
func (cg *CompiledGraph) ID() string { return cg.graphID }

// Invoke runs the graph to completion and returns the final merged state.
// On failure the returned error is an *ExecutionError carrying the last
// successfully merged state; the last persisted snapshot, if any, remains
// a valid resume point. A node pausing the run yields an *InterruptError,
// answered by invoking the same thread again with WithResumeValue.
func (cg *CompiledGraph) Invoke(ctx context.Context, input state.State, opts ...InvokeOption) (state.State, error) {
	cfg := newInvokeConfig(opts...)
	exec := cg.newExecution(cfg, nil)
	return exec.run(ctx, input)
}

// Stream runs the graph in a goroutine and returns a Stream of events for
// the requested modes (values by default). The event channel is closed
// once the run finishes; a failed run delivers a final event with Err set
// regardless of the requested modes.
func (cg *CompiledGraph) Stream(ctx context.Context, input state.State, opts ...InvokeOption) *Stream {
	cfg := newInvokeConfig(opts...)
	if len(cfg.modes) == 0 {
		cfg.modes = []StreamMode{StreamValues}
	}

	ctx, cancel := context.WithCancel(ctx)
	events := make(chan Event, streamBuffer)
	exec := cg.newExecution(cfg, newEmitter(cfg.modes, events))

	go func() {
		defer close(events)
		defer cancel()
		if _, err := exec.run(ctx, input); err != nil {
			select {
			case events <- Event{Mode: StreamError, Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return &Stream{events: events, cancel: cancel}
}

// StateHistory returns every persisted snapshot of a thread in ascending
// step order. It requires a checkpointer.
func (cg *CompiledGraph) StateHistory(ctx context.Context, threadID string) ([]checkpoints.Snapshot, error) {
	if cg.checkpointer == nil {
		return nil, errors.New("graph compiled without a checkpointer")
	}
	return cg.checkpointer.List(ctx, threadID)
}

// UpdateState folds an out-of-band update into a thread's latest snapshot
// through the schema reducers and persists the result as a new step, as
// if a node had produced it. The thread's frontier is preserved, so a
// subsequent resumed run continues where it left off with the amended
// state.
func (cg *CompiledGraph) UpdateState(ctx context.Context, threadID string, update state.State) (*checkpoints.Snapshot, error) {
	if cg.checkpointer == nil {
		return nil, errors.New("graph compiled without a checkpointer")
	}

	latest, err := cg.checkpointer.Latest(ctx, threadID)
	if err != nil {
		return nil, err
	}

	snap := checkpoints.Snapshot{
		ThreadID:  threadID,
		CreatedAt: time.Now().UTC(),
	}
	if latest == nil {
		snap.Step = 1
		snap.State = cg.schema.Init(update)
		snap.Frontier = append([]string(nil), cg.entryPoints...)
	} else {
		snap.Step = latest.Step + 1
		snap.State = cg.schema.Apply(latest.State, update)
		snap.Frontier = append([]string(nil), latest.Frontier...)
	}

	if err := cg.checkpointer.Save(ctx, snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

func (cg *CompiledGraph) newExecution(cfg invokeConfig, em *emitter) *execution {
	return &execution{
		g:           cg,
		threadID:    cfg.threadID,
		store:       cg.checkpointer,
		resumeStep:  cfg.resumeStep,
		resumeValue: cfg.resumeValue,
		emitter:     em,
		logger:      cg.logger.With().Str("thread", cfg.threadID).Logger(),
	}
}
