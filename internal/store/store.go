package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
	"github.com/LeMinhLong2000/cart-store/internal/repository"
)

// ErrOutOfStock is the only domain error a mutation can produce; everything
// else that goes wrong is infrastructure.
var ErrOutOfStock = errors.New("not enough items in stock")

const persistTimeout = 3 * time.Second

// Store holds one owner's cart snapshot. Every mutation runs the full
// read-quote-commit cycle under the store mutex, so overlapping calls
// serialize instead of trampling each other's commits. Reads copy under the
// same mutex.
type Store struct {
	mu    sync.Mutex
	owner string
	name  string
	snap  domain.Snapshot
	m     *Manager
}

func (s *Store) Owner() string {
	return s.owner
}

// Snapshot returns a deep copy of the current cart state.
func (s *Store) Snapshot() domain.Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snap.Clone()
}

// AddItem puts qty units of item into the cart and returns the client id of
// the affected line. A line matching on (product, color, size) absorbs the
// quantity; otherwise the item is appended as a new line, minting a client
// id if the payload carries none.
func (s *Store) AddItem(ctx context.Context, item domain.LineItem, qty int) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		items    []domain.LineItem
		clientID string
	)

	idx := s.snap.FindItem(item)
	if idx >= 0 {
		existing := s.snap.Items[idx]
		if existing.CountInStock < qty+existing.Quantity {
			s.count("add_item", "out_of_stock")
			return "", ErrOutOfStock
		}
		items = cloneItems(s.snap.Items)
		items[idx].Quantity = existing.Quantity + qty
		clientID = existing.ClientID
	} else {
		// The gate for a brand-new line compares against the payload's own
		// quantity field, not the qty argument
		if item.CountInStock < item.Quantity {
			s.count("add_item", "out_of_stock")
			return "", ErrOutOfStock
		}
		added := item
		added.Quantity = qty
		if added.ClientID == "" {
			added.ClientID = uuid.NewString()
		}
		items = append(cloneItems(s.snap.Items), added)
		clientID = added.ClientID
	}

	quote, err := s.quote(ctx, items, s.snap.ShippingAddress, s.snap.DeliveryDateIndex)
	if err != nil {
		s.count("add_item", "error")
		return "", err
	}

	next := s.snap.Clone()
	next.Items = items
	next.ApplyQuote(*quote)
	s.commit(next)
	s.count("add_item", "ok")
	return clientID, nil
}

// UpdateItem sets the matched line's quantity to exactly qty. Unmatched
// payload fields never overwrite the stored line. Silently returns when no
// line matches.
func (s *Store) UpdateItem(ctx context.Context, item domain.LineItem, qty int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.snap.FindItem(item)
	if idx < 0 {
		return nil
	}

	items := cloneItems(s.snap.Items)
	items[idx].Quantity = qty

	quote, err := s.quote(ctx, items, s.snap.ShippingAddress, s.snap.DeliveryDateIndex)
	if err != nil {
		s.count("update_item", "error")
		return err
	}

	next := s.snap.Clone()
	next.Items = items
	next.ApplyQuote(*quote)
	s.commit(next)
	s.count("update_item", "ok")
	return nil
}

// RemoveItem drops the line matching item. The reduced list is re-quoted
// and committed even when nothing matched.
func (s *Store) RemoveItem(ctx context.Context, item domain.LineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := make([]domain.LineItem, 0, len(s.snap.Items))
	for _, it := range s.snap.Items {
		if !it.Matches(item) {
			items = append(items, it)
		}
	}

	quote, err := s.quote(ctx, items, s.snap.ShippingAddress, s.snap.DeliveryDateIndex)
	if err != nil {
		s.count("remove_item", "error")
		return err
	}

	next := s.snap.Clone()
	next.Items = items
	next.ApplyQuote(*quote)
	s.commit(next)
	s.count("remove_item", "ok")
	return nil
}

// Clear empties the item list without re-quoting. Price fields keep their
// pre-clear values; Reset is the operation that zeroes the whole snapshot.
func (s *Store) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	next.Items = []domain.LineItem{}
	s.commit(next)
	s.count("clear", "ok")
	return nil
}

// SetShippingAddress stores the address and re-quotes, which is the moment
// shipping and tax prices first appear.
func (s *Store) SetShippingAddress(ctx context.Context, addr domain.ShippingAddress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quote, err := s.quote(ctx, s.snap.Items, &addr, s.snap.DeliveryDateIndex)
	if err != nil {
		s.count("set_shipping_address", "error")
		return err
	}

	next := s.snap.Clone()
	next.ShippingAddress = &addr
	next.ApplyQuote(*quote)
	s.commit(next)
	s.count("set_shipping_address", "ok")
	return nil
}

// SetPaymentMethod is a pure field write, no pricing involved.
func (s *Store) SetPaymentMethod(ctx context.Context, method string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.snap.Clone()
	next.PaymentMethod = method
	s.commit(next)
	s.count("set_payment_method", "ok")
	return nil
}

// SetDeliveryDateIndex picks a delivery option and re-quotes with it. The
// index is written to the snapshot directly as well, so it sticks even if
// the quoter does not echo it back.
func (s *Store) SetDeliveryDateIndex(ctx context.Context, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	quote, err := s.quote(ctx, s.snap.Items, s.snap.ShippingAddress, &index)
	if err != nil {
		s.count("set_delivery_date_index", "error")
		return err
	}

	next := s.snap.Clone()
	next.DeliveryDateIndex = &index
	next.ApplyQuote(*quote)
	s.commit(next)
	s.count("set_delivery_date_index", "ok")
	return nil
}

// Reset returns the cart to its pristine empty state and deletes the
// persisted copy.
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snap = domain.EmptySnapshot()

	pctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := s.m.repo.Delete(pctx, s.name); err != nil && !errors.Is(err, repository.ErrSnapshotNotFound) {
		s.m.log.Errorf("delete snapshot %s: %v", s.name, err)
	}
	invalidateCache(s.m, s.name)
	s.count("reset", "ok")
	return nil
}

func (s *Store) quote(ctx context.Context, items []domain.LineItem, addr *domain.ShippingAddress, index *int) (*domain.PriceQuote, error) {
	start := time.Now()
	quote, err := s.m.quoter.Quote(ctx, items, addr, index)
	if s.m.metrics != nil {
		s.m.metrics.QuoteDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		return nil, fmt.Errorf("failed to quote cart: %w", err)
	}
	return quote, nil
}

// commit makes next the current snapshot, then writes it through to the
// repository and drops the cache entry. Persistence errors are logged, not
// returned: the in-memory state is already committed and the cart must keep
// working through storage blips.
func (s *Store) commit(next domain.Snapshot) {
	next.UpdatedAt = time.Now()
	s.snap = next

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if errSave := s.m.repo.Save(ctx, s.name, next); errSave != nil {
		s.m.log.Errorf("save snapshot %s: %v", s.name, errSave)
	}
	invalidateCache(s.m, s.name)
}

func (s *Store) count(op, result string) {
	if s.m.metrics != nil {
		s.m.metrics.Mutations.WithLabelValues(op, result).Inc()
	}
}

func cloneItems(items []domain.LineItem) []domain.LineItem {
	return append([]domain.LineItem(nil), items...)
}
