package repository

import (
	"context"
	"errors"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
)

var ErrSnapshotNotFound = errors.New("snapshot not found")

// SnapshotRepository persists cart snapshots under their slot name.
// Consumers define this contract, the storage backends implement it.
// Snapshots are stored as opaque JSON blobs so every backend round-trips
// exactly the same bytes.
type SnapshotRepository interface {
	Load(ctx context.Context, name string) (*domain.Snapshot, error)
	Save(ctx context.Context, name string, snap domain.Snapshot) error
	Delete(ctx context.Context, name string) error
}
