// Package sqlitestore provides a SQL-backed checkpoint store on top of
// database/sql. The caller supplies an initialized *sql.DB with a SQLite
// driver registered; the store creates its schema on construction and
// keeps one row per (thread_id, step).
package sqlitestore

import (
	"context"
	"database/sql"
	"time"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/avi3tal/flowgraph/pkg/checkpoints"
	"github.com/avi3tal/flowgraph/pkg/state"
)

const (
	createCheckpoints = "CREATE TABLE IF NOT EXISTS graph_checkpoints (" +
		"thread_id TEXT NOT NULL, " +
		"step INTEGER NOT NULL, " +
		"state BLOB NOT NULL, " +
		"frontier BLOB NOT NULL, " +
		"created_at INTEGER NOT NULL, " +
		"PRIMARY KEY (thread_id, step)" +
		")"

	insertCheckpoint = "INSERT OR REPLACE INTO graph_checkpoints (" +
		"thread_id, step, state, frontier, created_at) VALUES (?, ?, ?, ?, ?)"

	selectLatest = "SELECT step, state, frontier, created_at FROM graph_checkpoints " +
		"WHERE thread_id = ? ORDER BY step DESC LIMIT 1"

	selectByStep = "SELECT step, state, frontier, created_at FROM graph_checkpoints " +
		"WHERE thread_id = ? AND step = ? LIMIT 1"

	selectAsc = "SELECT step, state, frontier, created_at FROM graph_checkpoints " +
		"WHERE thread_id = ? ORDER BY step ASC"
)

// Store persists snapshots in a SQL database, one row per (thread, step).
type Store struct {
	db *sql.DB
}

// New creates the schema if needed and returns a Store using the given DB.
func New(db *sql.DB) (*Store, error) {
	if db == nil {
		return nil, errors.New("sqlitestore: db is nil")
	}
	if _, err := db.Exec(createCheckpoints); err != nil {
		return nil, checkpoints.NewPersistenceError("init", "",
			errors.Wrap(checkpoints.ErrBackendUnavailable, err.Error()))
	}
	return &Store{db: db}, nil
}

func (s *Store) Save(ctx context.Context, snap checkpoints.Snapshot) error {
	stateBlob, err := sonic.Marshal(snap.State)
	if err != nil {
		return checkpoints.NewPersistenceError("save", snap.ThreadID,
			errors.Wrap(checkpoints.ErrSerialization, err.Error()))
	}
	frontierBlob, err := sonic.Marshal(snap.Frontier)
	if err != nil {
		return checkpoints.NewPersistenceError("save", snap.ThreadID,
			errors.Wrap(checkpoints.ErrSerialization, err.Error()))
	}

	_, err = s.db.ExecContext(ctx, insertCheckpoint,
		snap.ThreadID, snap.Step, stateBlob, frontierBlob, snap.CreatedAt.UnixNano())
	if err != nil {
		return checkpoints.NewPersistenceError("save", snap.ThreadID,
			errors.Wrap(checkpoints.ErrBackendUnavailable, err.Error()))
	}
	return nil
}

func (s *Store) Latest(ctx context.Context, threadID string) (*checkpoints.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, selectLatest, threadID)
	snap, err := scanSnapshot(row, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, checkpoints.NewPersistenceError("latest", threadID, err)
	}
	return snap, nil
}

func (s *Store) Get(ctx context.Context, threadID string, step int) (*checkpoints.Snapshot, error) {
	row := s.db.QueryRowContext(ctx, selectByStep, threadID, step)
	snap, err := scanSnapshot(row, threadID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, checkpoints.NewPersistenceError("get", threadID, checkpoints.ErrNotFound)
		}
		return nil, checkpoints.NewPersistenceError("get", threadID, err)
	}
	return snap, nil
}

func (s *Store) List(ctx context.Context, threadID string) ([]checkpoints.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx, selectAsc, threadID)
	if err != nil {
		return nil, checkpoints.NewPersistenceError("list", threadID,
			errors.Wrap(checkpoints.ErrBackendUnavailable, err.Error()))
	}
	defer rows.Close()

	var snaps []checkpoints.Snapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows, threadID)
		if err != nil {
			return nil, checkpoints.NewPersistenceError("list", threadID, err)
		}
		snaps = append(snaps, *snap)
	}
	if err := rows.Err(); err != nil {
		return nil, checkpoints.NewPersistenceError("list", threadID,
			errors.Wrap(checkpoints.ErrBackendUnavailable, err.Error()))
	}
	return snaps, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row rowScanner, threadID string) (*checkpoints.Snapshot, error) {
	var (
		step         int
		stateBlob    []byte
		frontierBlob []byte
		createdAt    int64
	)
	if err := row.Scan(&step, &stateBlob, &frontierBlob, &createdAt); err != nil {
		return nil, err
	}

	var st state.State
	if err := sonic.Unmarshal(stateBlob, &st); err != nil {
		return nil, errors.Wrap(checkpoints.ErrSerialization, err.Error())
	}
	var frontier []string
	if err := sonic.Unmarshal(frontierBlob, &frontier); err != nil {
		return nil, errors.Wrap(checkpoints.ErrSerialization, err.Error())
	}

	return &checkpoints.Snapshot{
		ThreadID:  threadID,
		Step:      step,
		State:     st,
		Frontier:  frontier,
		CreatedAt: time.Unix(0, createdAt),
	}, nil
}

var _ checkpoints.Store = (*Store)(nil)
