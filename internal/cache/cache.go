package cache

import (
	"context"
	"errors"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
)

var ErrCacheMiss = errors.New("cache miss")

// SnapshotCache is a read-through cache in front of the snapshot
// repository. Entries are keyed by slot name and expire on their own, so a
// miss is the normal case, not an error.
type SnapshotCache interface {
	Get(ctx context.Context, name string) (*domain.Snapshot, error)
	Set(ctx context.Context, name string, snap domain.Snapshot) error
	Delete(ctx context.Context, name string) error
}
