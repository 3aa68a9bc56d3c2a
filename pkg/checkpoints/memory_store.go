package checkpoints

import (
	"context"
	"sort"
	"sync"
)

// MemoryStore keeps snapshots in process memory. Useful for development
// and tests; everything is lost when the process exits.
type MemoryStore struct {
	mu      sync.RWMutex
	threads map[string][]Snapshot // ordered by step ascending
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		threads: make(map[string][]Snapshot),
	}
}

func (m *MemoryStore) Save(_ context.Context, snap Snapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snaps := m.threads[snap.ThreadID]

	// Replays overwrite the superseded record for the same step.
	idx := sort.Search(len(snaps), func(i int) bool { return snaps[i].Step >= snap.Step })
	if idx < len(snaps) && snaps[idx].Step == snap.Step {
		snaps[idx] = snap.Clone()
	} else {
		snaps = append(snaps, Snapshot{})
		copy(snaps[idx+1:], snaps[idx:])
		snaps[idx] = snap.Clone()
	}

	m.threads[snap.ThreadID] = snaps
	return nil
}

func (m *MemoryStore) Latest(_ context.Context, threadID string) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := m.threads[threadID]
	if len(snaps) == 0 {
		return nil, nil
	}
	latest := snaps[len(snaps)-1].Clone()
	return &latest, nil
}

func (m *MemoryStore) Get(_ context.Context, threadID string, step int) (*Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := m.threads[threadID]
	idx := sort.Search(len(snaps), func(i int) bool { return snaps[i].Step >= step })
	if idx >= len(snaps) || snaps[idx].Step != step {
		return nil, NewPersistenceError("get", threadID, ErrNotFound)
	}
	snap := snaps[idx].Clone()
	return &snap, nil
}

func (m *MemoryStore) List(_ context.Context, threadID string) ([]Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	snaps := m.threads[threadID]
	out := make([]Snapshot, 0, len(snaps))
	for _, s := range snaps {
		out = append(out, s.Clone())
	}
	return out, nil
}

var _ Store = (*MemoryStore)(nil)
