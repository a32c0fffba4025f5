package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/LeMinhLong2000/cart-store/internal/cache"
	"github.com/LeMinhLong2000/cart-store/internal/domain"
	"github.com/LeMinhLong2000/cart-store/internal/metrics"
	"github.com/LeMinhLong2000/cart-store/internal/pricing"
	"github.com/LeMinhLong2000/cart-store/internal/repository"
)

// StoreName returns the persistence slot for an owner's cart.
func StoreName(owner string) string {
	return fmt.Sprintf("cart-store:%s", owner)
}

// Manager hands out one Store per cart owner and keeps them hydrated from
// the repository through the cache. Stores live for the life of the process
// once created.
type Manager struct {
	quoter  pricing.Quoter
	repo    repository.SnapshotRepository
	cache   cache.SnapshotCache   // optional
	metrics *metrics.StoreMetrics // optional
	log     *logrus.Logger

	sfg    singleflight.Group // Prevents duplicate loads for the same owner
	mu     sync.RWMutex
	stores map[string]*Store
}

func NewManager(quoter pricing.Quoter, repo repository.SnapshotRepository, snapCache cache.SnapshotCache, storeMetrics *metrics.StoreMetrics, log *logrus.Logger) *Manager {
	return &Manager{
		quoter:  quoter,
		repo:    repo,
		cache:   snapCache,
		metrics: storeMetrics,
		log:     log,
		stores:  make(map[string]*Store),
	}
}

// Store returns the owner's cart store, loading its snapshot on first use.
// Concurrent first touches for the same owner share one load.
func (m *Manager) Store(ctx context.Context, owner string) (*Store, error) {
	m.mu.RLock()
	st, ok := m.stores[owner]
	m.mu.RUnlock()
	if ok {
		return st, nil
	}

	v, err, _ := m.sfg.Do(owner, func() (interface{}, error) {
		// Another flight may have registered the store already
		m.mu.RLock()
		st, ok := m.stores[owner]
		m.mu.RUnlock()
		if ok {
			return st, nil
		}

		snap, errLoad := m.load(ctx, owner)
		if errLoad != nil {
			return nil, errLoad
		}

		st = &Store{owner: owner, name: StoreName(owner), snap: *snap, m: m}
		m.mu.Lock()
		m.stores[owner] = st
		m.mu.Unlock()
		return st, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Store), nil
}

// Reset empties the owner's cart and removes its persisted copy.
func (m *Manager) Reset(ctx context.Context, owner string) error {
	st, err := m.Store(ctx, owner)
	if err != nil {
		return err
	}
	return st.Reset(ctx)
}

func (m *Manager) load(ctx context.Context, owner string) (*domain.Snapshot, error) {
	name := StoreName(owner)

	if m.cache != nil {
		snap, err := m.cache.Get(ctx, name)
		if err == nil {
			return snap, nil
		}
		if !errors.Is(err, cache.ErrCacheMiss) {
			m.log.Warnf("cache get error: %v", err) // log cache error but continue
		}
	}

	snap, errGet := m.repo.Load(ctx, name)
	if errGet != nil {
		if errors.Is(errGet, repository.ErrSnapshotNotFound) { // nothing persisted yet, start empty
			empty := domain.EmptySnapshot()
			return &empty, nil
		}
		return nil, errGet
	}

	if m.cache != nil {
		// set cache
		go func() {
			errSet := m.cache.Set(context.Background(), name, *snap)
			if errSet != nil {
				m.log.Warnf("cache set error: %v", errSet)
			}
		}()
	}

	return snap, nil
}

func invalidateCache(m *Manager, name string) {
	if m.cache == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	errInvalidate := m.cache.Delete(ctx, name)
	if errInvalidate != nil {
		m.log.Warnf("cache invalidate error: %v", errInvalidate)
	}
}
