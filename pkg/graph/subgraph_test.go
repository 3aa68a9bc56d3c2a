package graph

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

func childGraph(t *testing.T, opts ...CompileOption) *CompiledGraph {
	t.Helper()

	g := New("child").
		AddNode("double", func(_ context.Context, s state.State) (*NodeResult, error) {
			n, _ := s["n"].(int)
			return &NodeResult{Update: state.State{"n": n * 2}}, nil
		}).
		AddEdge("double", END).
		SetEntryPoint("double")

	cg, err := g.Compile(opts...)
	require.NoError(t, err)
	return cg
}

func identityIn(parent state.State) (state.State, error) {
	return parent.Clone(), nil
}

func identityOut(child state.State) (state.State, error) {
	return child.Clone(), nil
}

func TestSubgraphComposition(t *testing.T) {
	t.Parallel()

	child := childGraph(t)

	// Parent maps its "value" field into the child's "n" and back, so
	// the run composes out(child(in(state))).
	parent := New("parent").
		AddNode("prep", setNode("value", 21)).
		AddSubgraph("doubler", child,
			func(parent state.State) (state.State, error) {
				return state.State{"n": parent["value"]}, nil
			},
			func(child state.State) (state.State, error) {
				return state.State{"value": child["n"]}, nil
			}).
		AddEdge("prep", "doubler").
		AddEdge("doubler", END).
		SetEntryPoint("prep")

	cg, err := parent.Compile()
	require.NoError(t, err)

	final, err := cg.Invoke(context.Background(), nil)
	require.NoError(t, err)
	require.Equal(t, 42, final["value"])
}

func TestSubgraphThreadIDDerivation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	store := checkpoints.NewMemoryStore()
	child := childGraph(t)

	parent := New("parent").
		AddSubgraph("inner", child, identityIn, identityOut).
		AddEdge("inner", END).
		SetEntryPoint("inner")

	cg, err := parent.Compile(WithCheckpointer(store))
	require.NoError(t, err)

	_, err = cg.Invoke(ctx, state.State{"n": 1}, WithThreadID("job"))
	require.NoError(t, err)

	// Parent and child each persist their own lineage; the child's
	// thread id is derived from the parent's.
	parentHistory, err := store.List(ctx, "job")
	require.NoError(t, err)
	require.NotEmpty(t, parentHistory)

	childHistory, err := store.List(ctx, "job/inner")
	require.NoError(t, err)
	require.NotEmpty(t, childHistory)
	require.Equal(t, 2, childHistory[len(childHistory)-1].State["n"])
}

func TestSubgraphKeepsOwnCheckpointer(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	childStore := checkpoints.NewMemoryStore()
	parentStore := checkpoints.NewMemoryStore()
	child := childGraph(t, WithCheckpointer(childStore))

	parent := New("parent").
		AddSubgraph("inner", child, identityIn, identityOut).
		AddEdge("inner", END).
		SetEntryPoint("inner")

	cg, err := parent.Compile(WithCheckpointer(parentStore))
	require.NoError(t, err)

	_, err = cg.Invoke(ctx, state.State{"n": 1}, WithThreadID("job"))
	require.NoError(t, err)

	childHistory, err := childStore.List(ctx, "job/inner")
	require.NoError(t, err)
	require.NotEmpty(t, childHistory)

	// The parent store holds only the parent lineage.
	misplaced, err := parentStore.List(ctx, "job/inner")
	require.NoError(t, err)
	require.Empty(t, misplaced)
}

func TestSubgraphFailureIsParentNodeFailure(t *testing.T) {
	t.Parallel()

	boom := errors.New("child boom")
	childBuilder := New("child").
		AddNode("explode", func(_ context.Context, _ state.State) (*NodeResult, error) {
			return nil, boom
		}).
		SetEntryPoint("explode").
		SetFinishPoint("explode")

	child, err := childBuilder.Compile()
	require.NoError(t, err)

	parent := New("parent").
		AddSubgraph("inner", child, identityIn, identityOut).
		AddEdge("inner", END).
		SetEntryPoint("inner")

	cg, err := parent.Compile()
	require.NoError(t, err)

	_, err = cg.Invoke(context.Background(), nil)
	require.ErrorIs(t, err, boom)

	var eerr *ExecutionError
	require.ErrorAs(t, err, &eerr)
	require.Equal(t, "inner", eerr.Node)
}

func TestSubgraphTransformErrors(t *testing.T) {
	t.Parallel()

	child := childGraph(t)
	badIn := errors.New("bad input shape")

	parent := New("parent").
		AddSubgraph("inner", child,
			func(state.State) (state.State, error) { return nil, badIn },
			identityOut).
		AddEdge("inner", END).
		SetEntryPoint("inner")

	cg, err := parent.Compile()
	require.NoError(t, err)

	_, err = cg.Invoke(context.Background(), nil)
	require.ErrorIs(t, err, badIn)
}

func TestSubgraphStreamNamespace(t *testing.T) {
	t.Parallel()

	child := childGraph(t)
	parent := New("parent").
		AddSubgraph("inner", child, identityIn, identityOut).
		AddEdge("inner", END).
		SetEntryPoint("inner")

	cg, err := parent.Compile()
	require.NoError(t, err)

	events := drain(t, cg.Stream(context.Background(), state.State{"n": 1},
		WithStreamModes(StreamUpdates)))

	var namespaces []string
	for _, ev := range events {
		namespaces = append(namespaces, ev.Namespace)
	}
	require.Contains(t, namespaces, "inner") // child node updates
	require.Contains(t, namespaces, "")      // parent merge of the binding's result
}

func TestSubgraphOnCycleRerunsChildEachVisit(t *testing.T) {
	t.Parallel()

	// A subgraph node inside a loop runs its child to completion on
	// every visit. The child's lineage records a finished pass after the
	// first visit; later visits must start a fresh child run instead of
	// returning that pass's final state.
	build := func() (*Graph, *checkpoints.MemoryStore) {
		child := childGraph(t)
		g := New("grower").
			AddSubgraph("double", child, identityIn, identityOut).
			AddConditionalEdge("double", []string{"double", END},
				func(_ context.Context, s state.State) []string {
					if n, _ := s["n"].(int); n < 3 {
						return []string{"double"}
					}
					return []string{END}
				})
		return g.SetEntryPoint("double"), checkpoints.NewMemoryStore()
	}

	t.Run("without persistence", func(t *testing.T) {
		t.Parallel()
		g, _ := build()
		cg, err := g.Compile()
		require.NoError(t, err)

		final, err := cg.Invoke(context.Background(), state.State{"n": 1})
		require.NoError(t, err)
		require.Equal(t, 4, final["n"])
	})

	t.Run("with persistence", func(t *testing.T) {
		t.Parallel()
		ctx := context.Background()
		g, store := build()
		cg, err := g.Compile(WithCheckpointer(store))
		require.NoError(t, err)

		final, err := cg.Invoke(ctx, state.State{"n": 1}, WithThreadID("job"))
		require.NoError(t, err)
		require.Equal(t, 4, final["n"])

		// The child lineage holds the latest pass, renumbered from one.
		childHistory, err := store.List(ctx, "job/double")
		require.NoError(t, err)
		require.NotEmpty(t, childHistory)
		require.Equal(t, 1, childHistory[0].Step)
		require.Equal(t, 4, childHistory[len(childHistory)-1].State["n"])
	})
}

func TestSubgraphSharedChildCompiledOnce(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	child := childGraph(t)

	build := func(name string) *CompiledGraph {
		g := New(name).
			AddSubgraph("inner", child, identityIn, identityOut).
			AddEdge("inner", END).
			SetEntryPoint("inner")
		cg, err := g.Compile()
		require.NoError(t, err)
		return cg
	}

	p1 := build("p1")
	p2 := build("p2")

	r1, err := p1.Invoke(ctx, state.State{"n": 3})
	require.NoError(t, err)
	r2, err := p2.Invoke(ctx, state.State{"n": 5})
	require.NoError(t, err)

	require.Equal(t, 6, r1["n"])
	require.Equal(t, 10, r2["n"])
}
