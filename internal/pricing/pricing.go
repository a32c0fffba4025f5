package pricing

import (
	"context"
	"errors"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
)

// ErrNoDeliveryOption is returned when a requested delivery index points
// outside the option table.
var ErrNoDeliveryOption = errors.New("no delivery option at index")

// Quoter prices a prospective cart state. Implementations must not mutate
// items and must return either a quote or an error, never both. A nil
// deliveryDateIndex means the caller made no explicit choice and the
// implementation picks its default option.
type Quoter interface {
	Quote(ctx context.Context, items []domain.LineItem, addr *domain.ShippingAddress, deliveryDateIndex *int) (*domain.PriceQuote, error)
}
