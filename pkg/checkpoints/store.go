package checkpoints

import (
	"context"
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a requested snapshot does not exist.
	ErrNotFound = errors.New("checkpoint not found")

	// ErrSerialization is returned when a state cannot be represented in
	// the store's encoding.
	ErrSerialization = errors.New("checkpoint serialization failed")

	// ErrBackendUnavailable is returned on storage or I/O failure.
	ErrBackendUnavailable = errors.New("checkpoint backend unavailable")
)

// PersistenceError wraps a checkpoint store failure with the operation
// and thread it occurred on.
type PersistenceError struct {
	Op       string
	ThreadID string
	Err      error
}

func (e *PersistenceError) Error() string {
	if e.ThreadID != "" {
		return fmt.Sprintf("checkpoint %s failed: thread %q: %v", e.Op, e.ThreadID, e.Err)
	}
	return fmt.Sprintf("checkpoint %s failed: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

// NewPersistenceError creates a PersistenceError.
func NewPersistenceError(op, threadID string, err error) error {
	return &PersistenceError{Op: op, ThreadID: threadID, Err: err}
}

// Store is the persistence contract of the engine. Snapshots for a given
// thread form an append-only log ordered by step: they are never
// reordered or mutated after save. Replaying a thread from a historical
// step may save the same (thread, step) again, which deterministically
// overwrites the superseded record; nothing else is ever rewritten.
//
// Any conforming backend is interchangeable from the engine's point of
// view.
type Store interface {
	// Save persists a snapshot.
	Save(ctx context.Context, snap Snapshot) error

	// Latest returns the snapshot with the highest step for the thread,
	// or nil when the thread has none.
	Latest(ctx context.Context, threadID string) (*Snapshot, error)

	// Get returns the snapshot at an exact step, wrapping ErrNotFound
	// when it does not exist.
	Get(ctx context.Context, threadID string, step int) (*Snapshot, error)

	// List returns all snapshots of a thread ordered by step ascending.
	List(ctx context.Context, threadID string) ([]Snapshot, error)
}
