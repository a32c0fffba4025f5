package store

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/LeMinhLong2000/cart-store/internal/cache"
	"github.com/LeMinhLong2000/cart-store/internal/domain"
	"github.com/LeMinhLong2000/cart-store/internal/metrics"
	"github.com/LeMinhLong2000/cart-store/internal/pricing"
	"github.com/LeMinhLong2000/cart-store/internal/repository"
)

// mockQuoter prices deterministically: items total is the plain sum, a flat
// shipping of 5 and 10% tax appear once an address is set.
type mockQuoter struct {
	m         sync.Mutex
	calls     int
	delay     time.Duration
	err       error
	lastItems []domain.LineItem
	lastAddr  *domain.ShippingAddress
	lastIndex *int
}

func (q *mockQuoter) Quote(_ context.Context, items []domain.LineItem, addr *domain.ShippingAddress, index *int) (*domain.PriceQuote, error) {
	q.m.Lock()
	q.calls++
	q.lastItems = append([]domain.LineItem(nil), items...)
	q.lastAddr = addr
	q.lastIndex = index
	err := q.err
	delay := q.delay
	q.m.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	itemsPrice := decimal.Zero
	for _, it := range items {
		itemsPrice = itemsPrice.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}

	idx := 2
	if index != nil {
		idx = *index
	}

	quote := &domain.PriceQuote{
		ItemsPrice:        itemsPrice,
		TotalPrice:        itemsPrice,
		DeliveryDateIndex: &idx,
	}
	if addr != nil {
		shipping := decimal.NewFromInt(5)
		tax := itemsPrice.Mul(decimal.NewFromFloat(0.1)).Round(2)
		quote.ShippingPrice = &shipping
		quote.TaxPrice = &tax
		quote.TotalPrice = itemsPrice.Add(shipping).Add(tax)
	}
	return quote, nil
}

func (q *mockQuoter) callCount() int {
	q.m.Lock()
	defer q.m.Unlock()
	return q.calls
}

func (q *mockQuoter) lastQuotedIndex() *int {
	q.m.Lock()
	defer q.m.Unlock()
	return q.lastIndex
}

func (q *mockQuoter) setErr(err error) {
	q.m.Lock()
	defer q.m.Unlock()
	q.err = err
}

type mockRepository struct {
	m     sync.RWMutex
	snaps map[string]domain.Snapshot
	err   error
	loads int
	delay time.Duration
}

func newMockRepository() *mockRepository {
	return &mockRepository{snaps: make(map[string]domain.Snapshot)}
}

func (m *mockRepository) Load(_ context.Context, name string) (*domain.Snapshot, error) {
	m.m.Lock()
	m.loads++
	err := m.err
	delay := m.delay
	m.m.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	if err != nil {
		return nil, err
	}

	m.m.RLock()
	defer m.m.RUnlock()
	snap, ok := m.snaps[name]
	if !ok {
		return nil, repository.ErrSnapshotNotFound
	}
	clone := snap.Clone()
	return &clone, nil
}

func (m *mockRepository) Save(_ context.Context, name string, snap domain.Snapshot) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	m.snaps[name] = snap.Clone()
	return nil
}

func (m *mockRepository) Delete(_ context.Context, name string) error {
	m.m.Lock()
	defer m.m.Unlock()
	if m.err != nil {
		return m.err
	}
	if _, ok := m.snaps[name]; !ok {
		return repository.ErrSnapshotNotFound
	}
	delete(m.snaps, name)
	return nil
}

func (m *mockRepository) getSnap(name string) (domain.Snapshot, bool) {
	m.m.RLock()
	defer m.m.RUnlock()
	snap, ok := m.snaps[name]
	return snap, ok
}

func (m *mockRepository) loadCount() int {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.loads
}

type mockCache struct {
	m    sync.RWMutex
	snap *domain.Snapshot
	err  error
}

func (m *mockCache) Get(context.Context, string) (*domain.Snapshot, error) {
	m.m.RLock()
	defer m.m.RUnlock()
	if m.err != nil {
		return nil, m.err
	}
	if m.snap == nil {
		return nil, cache.ErrCacheMiss
	}
	return m.snap, nil
}

func (m *mockCache) Set(_ context.Context, _ string, snap domain.Snapshot) error {
	m.m.Lock()
	defer m.m.Unlock()
	clone := snap.Clone()
	m.snap = &clone
	return m.err
}

func (m *mockCache) Delete(context.Context, string) error {
	m.m.Lock()
	defer m.m.Unlock()
	m.snap = nil
	return m.err
}

func (m *mockCache) getSnap() *domain.Snapshot {
	m.m.RLock()
	defer m.m.RUnlock()
	return m.snap
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestManager(q pricing.Quoter, repo repository.SnapshotRepository, c cache.SnapshotCache) *Manager {
	return NewManager(q, repo, c, nil, testLogger())
}

func newTestManagerWithMetrics(q pricing.Quoter, repo repository.SnapshotRepository, m *metrics.StoreMetrics) *Manager {
	return NewManager(q, repo, nil, m, testLogger())
}
