package sqlitestore

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	store, err := New(db)
	require.NoError(t, err)
	return store
}

func snapshotAt(threadID string, step int, value float64) checkpoints.Snapshot {
	return checkpoints.Snapshot{
		ThreadID:  threadID,
		Step:      step,
		State:     state.State{"value": value},
		Frontier:  []string{"next"},
		CreatedAt: time.Now().UTC(),
	}
}

func TestSQLiteStoreRoundTrip(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	want := snapshotAt("t1", 1, 10)
	require.NoError(t, store.Save(ctx, want))

	got, err := store.Get(ctx, "t1", 1)
	require.NoError(t, err)
	require.Equal(t, 1, got.Step)
	require.Equal(t, float64(10), got.State["value"])
	require.Equal(t, []string{"next"}, got.Frontier)
	require.Equal(t, want.CreatedAt.UnixNano(), got.CreatedAt.UnixNano())
}

func TestSQLiteStoreLatest(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	latest, err := store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.Nil(t, latest)

	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 2, 20)))

	latest, err = store.Latest(ctx, "t1")
	require.NoError(t, err)
	require.NotNil(t, latest)
	require.Equal(t, 2, latest.Step)
}

func TestSQLiteStoreGetNotFound(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	_, err := store.Get(ctx, "t1", 5)
	require.ErrorIs(t, err, checkpoints.ErrNotFound)

	var perr *checkpoints.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "get", perr.Op)
}

func TestSQLiteStoreListAscending(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, snapshotAt("t1", 2, 20)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))
	require.NoError(t, store.Save(ctx, snapshotAt("t2", 1, 111)))

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, 1, list[0].Step)
	require.Equal(t, 2, list[1].Step)
}

func TestSQLiteStoreOverwriteOnReplay(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 10)))
	require.NoError(t, store.Save(ctx, snapshotAt("t1", 1, 99)))

	list, err := store.List(ctx, "t1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, float64(99), list[0].State["value"])
}

func TestSQLiteStoreNilDB(t *testing.T) {
	t.Parallel()
	_, err := New(nil)
	require.Error(t, err)
}
