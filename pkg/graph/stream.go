package graph

import (
	"context"
	"sync"
	"time"

	"github.com/avi3tal/flowgraph/pkg/state"
)

// Stream is the consumer handle for a streamed invocation. Events are
// delivered on the channel returned by Events until the run finishes or
// the consumer calls Close.
type Stream struct {
	events chan Event

	cancel    context.CancelFunc
	closeOnce sync.Once
}

// Events returns the receive channel of the stream. The channel is closed
// after the final event; when the run fails the last event carries Err.
func (s *Stream) Events() <-chan Event {
	return s.events
}

// Close cancels the underlying execution and releases the stream. It is
// safe to call Close concurrently with draining Events.
func (s *Stream) Close() {
	s.closeOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
	})
}

// emitter fans execution events into a stream channel, filtered by the
// requested modes. A nil emitter discards everything, which lets the
// executor emit unconditionally for both Invoke and Stream paths.
type emitter struct {
	modes     map[StreamMode]bool
	ch        chan<- Event
	namespace string
}

func newEmitter(modes []StreamMode, ch chan<- Event) *emitter {
	set := make(map[StreamMode]bool, len(modes))
	for _, m := range modes {
		set[m] = true
	}
	return &emitter{modes: set, ch: ch}
}

func (e *emitter) wants(mode StreamMode) bool {
	return e != nil && e.modes[mode]
}

// namespaced derives an emitter for a subgraph. Events produced by the
// child appear on the parent stream with a path-style namespace.
func (e *emitter) namespaced(node string) *emitter {
	if e == nil {
		return nil
	}
	ns := node
	if e.namespace != "" {
		ns = e.namespace + "/" + node
	}
	return &emitter{modes: e.modes, ch: e.ch, namespace: ns}
}

// emit delivers a single event, honoring context cancellation so a
// deserted consumer never wedges the executor.
func (e *emitter) emit(ctx context.Context, ev Event) {
	if e == nil {
		return
	}
	ev.Namespace = e.namespace
	select {
	case e.ch <- ev:
	case <-ctx.Done():
	}
}

func (e *emitter) emitValues(ctx context.Context, step int, st state.State) {
	if !e.wants(StreamValues) {
		return
	}
	e.emit(ctx, Event{Mode: StreamValues, Step: step, State: st})
}

func (e *emitter) emitUpdate(ctx context.Context, step int, node string, update state.State) {
	if !e.wants(StreamUpdates) || len(update) == 0 {
		return
	}
	e.emit(ctx, Event{Mode: StreamUpdates, Step: step, Node: node, Update: update})
}

func (e *emitter) emitDebug(ctx context.Context, step int, frontier []string, elapsed time.Duration) {
	if !e.wants(StreamDebug) {
		return
	}
	next := make([]string, len(frontier))
	copy(next, frontier)
	e.emit(ctx, Event{Mode: StreamDebug, Step: step, Debug: &DebugInfo{Frontier: next, Elapsed: elapsed}})
}

func (e *emitter) emitMessage(ctx context.Context, step int, node, content string) {
	if !e.wants(StreamMessages) {
		return
	}
	e.emit(ctx, Event{
		Mode:    StreamMessages,
		Step:    step,
		Node:    node,
		Message: &MessageFragment{Node: node, Content: content},
	})
}

// messageSinkKey carries the per-node message sink through node contexts.
type messageSinkKey struct{}

type messageSink struct {
	emitter *emitter
	step    int
	node    string
}

func withMessageSink(ctx context.Context, sink *messageSink) context.Context {
	return context.WithValue(ctx, messageSinkKey{}, sink)
}

// EmitMessage publishes an incremental message fragment from inside a node
// body. It is a no-op unless the graph was started with Stream and the
// messages mode was requested, so node code can call it unconditionally.
func EmitMessage(ctx context.Context, content string) {
	sink, ok := ctx.Value(messageSinkKey{}).(*messageSink)
	if !ok || sink == nil {
		return
	}
	sink.emitter.emitMessage(ctx, sink.step, sink.node, content)
}
