package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
)

// MemoryRepository keeps snapshots in process memory. It backs the
// zero-config profile and most tests. Blobs go through JSON like the real
// backends so serialization bugs surface here too.
type MemoryRepository struct {
	mu    sync.RWMutex
	blobs map[string][]byte
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{blobs: make(map[string][]byte)}
}

func (r *MemoryRepository) Load(ctx context.Context, name string) (*domain.Snapshot, error) {
	r.mu.RLock()
	data, ok := r.blobs[name]
	r.mu.RUnlock()
	if !ok {
		return nil, ErrSnapshotNotFound
	}

	var snap domain.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return &snap, nil
}

func (r *MemoryRepository) Save(ctx context.Context, name string, snap domain.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	r.mu.Lock()
	r.blobs[name] = data
	r.mu.Unlock()
	return nil
}

func (r *MemoryRepository) Delete(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.blobs[name]; !ok {
		return ErrSnapshotNotFound
	}
	delete(r.blobs, name)
	return nil
}
