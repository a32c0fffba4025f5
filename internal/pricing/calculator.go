package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
)

// DefaultTaxRate is applied once a shipping address is known.
var DefaultTaxRate = decimal.NewFromFloat(0.15)

// DefaultDeliveryOptions returns the built-in delivery table, ordered
// fastest first. The last row doubles as the default choice.
func DefaultDeliveryOptions() []domain.DeliveryOption {
	return []domain.DeliveryOption{
		{Name: "Tomorrow", DaysToDeliver: 1, ShippingPrice: decimal.NewFromFloat(12.9), FreeShippingMinPrice: decimal.Zero},
		{Name: "Next 3 Days", DaysToDeliver: 3, ShippingPrice: decimal.NewFromFloat(6.9), FreeShippingMinPrice: decimal.Zero},
		{Name: "Next 5 Days", DaysToDeliver: 5, ShippingPrice: decimal.NewFromFloat(4.9), FreeShippingMinPrice: decimal.NewFromInt(35)},
	}
}

// Calculator prices carts in process from a fixed delivery table. It is the
// quoter used when no external pricing service is configured.
type Calculator struct {
	options []domain.DeliveryOption
	taxRate decimal.Decimal
}

func NewCalculator(options []domain.DeliveryOption, taxRate decimal.Decimal) *Calculator {
	return &Calculator{options: options, taxRate: taxRate}
}

func (c *Calculator) Quote(ctx context.Context, items []domain.LineItem, addr *domain.ShippingAddress, deliveryDateIndex *int) (*domain.PriceQuote, error) {
	itemsPrice := decimal.Zero
	for _, it := range items {
		itemsPrice = itemsPrice.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
	}
	itemsPrice = itemsPrice.Round(2)

	idx := len(c.options) - 1 // no explicit choice gets the slowest, cheapest option
	if deliveryDateIndex != nil {
		idx = *deliveryDateIndex
	}
	if idx < 0 || idx >= len(c.options) {
		return nil, fmt.Errorf("%w: %d of %d", ErrNoDeliveryOption, idx, len(c.options))
	}
	option := c.options[idx]

	quote := &domain.PriceQuote{
		ItemsPrice:        itemsPrice,
		DeliveryDateIndex: &idx,
		DeliveryOptions:   append([]domain.DeliveryOption(nil), c.options...),
	}

	if addr != nil {
		shipping := option.ShippingPrice
		if option.FreeShippingMinPrice.IsPositive() && itemsPrice.GreaterThanOrEqual(option.FreeShippingMinPrice) {
			shipping = decimal.Zero
		}
		shipping = shipping.Round(2)
		tax := itemsPrice.Mul(c.taxRate).Round(2)
		quote.ShippingPrice = &shipping
		quote.TaxPrice = &tax
	}

	total := itemsPrice
	if quote.ShippingPrice != nil {
		total = total.Add(*quote.ShippingPrice)
	}
	if quote.TaxPrice != nil {
		total = total.Add(*quote.TaxPrice)
	}
	quote.TotalPrice = total.Round(2)

	eta := time.Now().AddDate(0, 0, option.DaysToDeliver)
	quote.ExpectedDeliveryDate = &eta

	return quote, nil
}
