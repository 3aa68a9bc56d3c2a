package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

// gate pauses until an invocation answers it with a resume value.
func gate(key string) NodeFunc {
	return func(ctx context.Context, _ state.State) (*NodeResult, error) {
		answer, ok := ResumeValue(ctx)
		if !ok {
			return nil, Interrupt("awaiting " + key)
		}
		return &NodeResult{Update: state.State{key: answer}}, nil
	}
}

func TestInterruptSurfacesPayloadAndState(t *testing.T) {
	t.Parallel()

	g := New("approval", WithSchema(counterSchema())).
		AddNode("prepare", incrementNode("prepare")).
		AddNode("approve", gate("approved")).
		AddEdge("prepare", "approve").
		AddEdge("approve", END).
		SetEntryPoint("prepare")

	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Invoke(context.Background(), nil)
	require.ErrorIs(t, err, ErrInterrupted)

	var ierr *InterruptError
	require.ErrorAs(t, err, &ierr)
	require.Equal(t, "approve", ierr.Node)
	require.Equal(t, 2, ierr.Step)
	require.Equal(t, "awaiting approved", ierr.Payload)
	require.Equal(t, 1, ierr.State["count"])
}

func TestInterruptResumeWithValue(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := checkpoints.NewMemoryStore()
	g := New("approval", WithSchema(counterSchema())).
		AddNode("prepare", incrementNode("prepare")).
		AddNode("approve", gate("approved")).
		AddNode("finish", incrementNode("finish")).
		AddEdge("prepare", "approve").
		AddEdge("approve", "finish").
		AddEdge("finish", END).
		SetEntryPoint("prepare")

	cg, err := g.Compile(WithCheckpointer(store))
	require.NoError(t, err)

	_, err = cg.Invoke(ctx, nil, WithThreadID("ticket-1"))
	require.ErrorIs(t, err, ErrInterrupted)

	// Only the completed step is persisted; the interrupted one is not.
	history, err := cg.StateHistory(ctx, "ticket-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, []string{"approve"}, history[0].Frontier)

	final, err := cg.Invoke(ctx, nil, WithThreadID("ticket-1"), WithResumeValue(true))
	require.NoError(t, err)
	require.Equal(t, true, final["approved"])
	require.Equal(t, 2, final["count"])
	require.Equal(t, []string{"prepare", "finish"}, final["log"])
}

func TestInterruptReraisedWithoutAnswer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := checkpoints.NewMemoryStore()
	g := New("approval").
		AddNode("approve", gate("approved")).
		AddEdge("approve", END).
		SetEntryPoint("approve")

	cg, err := g.Compile(WithCheckpointer(store))
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		_, err = cg.Invoke(ctx, nil, WithThreadID("ticket-2"))
		require.ErrorIs(t, err, ErrInterrupted)
	}

	final, err := cg.Invoke(ctx, nil, WithThreadID("ticket-2"), WithResumeValue("yes"))
	require.NoError(t, err)
	require.Equal(t, "yes", final["approved"])
}

func TestResumeValueVisibleOnlyToFirstStep(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	observe := func(name string) NodeFunc {
		return func(ctx context.Context, _ state.State) (*NodeResult, error) {
			_, ok := ResumeValue(ctx)
			seen[name] = ok
			return &NodeResult{}, nil
		}
	}

	g := New("visibility").
		AddNode("a", observe("a")).
		AddNode("b", observe("b")).
		AddEdge("a", "b").
		AddEdge("b", END).
		SetEntryPoint("a")

	cg, err := g.Compile()
	require.NoError(t, err)

	_, err = cg.Invoke(context.Background(), nil, WithResumeValue("answer"))
	require.NoError(t, err)
	require.True(t, seen["a"])
	require.False(t, seen["b"])
}

func TestInterruptStreamEndsWithErrorEvent(t *testing.T) {
	t.Parallel()

	g := New("approval").
		AddNode("approve", gate("approved")).
		AddEdge("approve", END).
		SetEntryPoint("approve")

	cg, err := g.Compile()
	require.NoError(t, err)

	events := drain(t, cg.Stream(context.Background(), nil, WithStreamModes(StreamValues)))
	require.NotEmpty(t, events)

	last := events[len(events)-1]
	require.Equal(t, StreamError, last.Mode)
	require.ErrorIs(t, last.Err, ErrInterrupted)
}
