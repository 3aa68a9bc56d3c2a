package checkpoints

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/avi3tal/flowgraph/pkg/state"
)

func snapshotAt(threadID string, step int, value int) Snapshot {
	return Snapshot{
		ThreadID:  threadID,
		Step:      step,
		State:     state.State{"value": value},
		Frontier:  []string{"next"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestMemoryStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 2, 20)))

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 2, latest.Step)
	require.Equal(t, 20, latest.State["value"])

	first, err := store.Get(ctx, "t1", 1)
	require.NoError(t, err)
	require.Equal(t, 10, first.State["value"])
	require.Equal(t, []string{"next"}, first.Frontier)
}

func TestMemoryStoreEmptyThread(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	latest, err := store.Latest(ctx, "missing")
	require.NoError(t, err)
	require.Nil(t, latest)

	_, err = store.Get(ctx, "missing", 1)
	require.ErrorIs(t, err, ErrNotFound)

	var perr *PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "missing", perr.ThreadID)

	list, err := store.List(ctx, "missing")
	require.NoError(t, err)
	require.Empty(t, list)
}

func TestMemoryStoreListAscending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	// Out-of-order saves still list in step order.
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 3, 30)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 2, 20)))

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	for i, snap := range list {
		require.Equal(t, i+1, snap.Step)
		require.Equal(t, (i+1)*10, snap.State["value"])
	}
}

func TestMemoryStoreOverwriteOnReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 99)))

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, 99, list[0].State["value"])
}

func TestMemoryStoreThreadIsolation(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, snapshotAt("a", 1, 1)))
	require.NoError(t, store.Save(ctx, snapshotAt("b", 1, 2)))

	latestA, err := store.Latest(ctx, "a")
	require.NoError(t, err)
	require.Equal(t, 1, latestA.State["value"])

	latestB, err := store.Latest(ctx, "b")
	require.NoError(t, err)
	require.Equal(t, 2, latestB.State["value"])
}

func TestMemoryStoreReadsDoNotAlias(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewMemoryStore()

	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	latest.State["value"] = -1
	latest.Frontier[0] = "mutated"

	again, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Equal(t, 10, again.State["value"])
	require.Equal(t, []string{"next"}, again.Frontier)
}
