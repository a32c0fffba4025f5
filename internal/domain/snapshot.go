package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LineItem is a single product variant inside a cart. The carried product
// fields (name, image, price, stock) are denormalized at add time so the
// cart stays renderable without a catalog lookup.
type LineItem struct {
	ClientID     string          `json:"client_id"`
	ProductID    string          `json:"product_id"`
	Name         string          `json:"name,omitempty"`
	Slug         string          `json:"slug,omitempty"`
	Category     string          `json:"category,omitempty"`
	Image        string          `json:"image,omitempty"`
	Color        string          `json:"color"`
	Size         string          `json:"size"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
	CountInStock int             `json:"count_in_stock"`
}

// Matches reports whether both items refer to the same product variant.
// Identity is (product, color, size); ClientID is a UI handle and does not
// participate.
func (i LineItem) Matches(other LineItem) bool {
	return i.ProductID == other.ProductID && i.Color == other.Color && i.Size == other.Size
}

type ShippingAddress struct {
	FullName   string `json:"full_name"`
	Street     string `json:"street"`
	City       string `json:"city"`
	Province   string `json:"province,omitempty"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
	Phone      string `json:"phone,omitempty"`
}

// DeliveryOption is one row of the delivery table offered at checkout.
// FreeShippingMinPrice of zero means the option never ships free.
type DeliveryOption struct {
	Name                 string          `json:"name"`
	DaysToDeliver        int             `json:"days_to_deliver"`
	ShippingPrice        decimal.Decimal `json:"shipping_price"`
	FreeShippingMinPrice decimal.Decimal `json:"free_shipping_min_price"`
}

// PriceQuote is the pricing engine's answer for one cart state. Shipping and
// tax stay nil until a shipping address is known. DeliveryDateIndex echoes
// the resolved option index, which may differ from the requested one when no
// explicit choice was made.
type PriceQuote struct {
	ItemsPrice           decimal.Decimal  `json:"items_price"`
	ShippingPrice        *decimal.Decimal `json:"shipping_price,omitempty"`
	TaxPrice             *decimal.Decimal `json:"tax_price,omitempty"`
	TotalPrice           decimal.Decimal  `json:"total_price"`
	DeliveryDateIndex    *int             `json:"delivery_date_index,omitempty"`
	DeliveryOptions      []DeliveryOption `json:"delivery_options,omitempty"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date,omitempty"`
}

// Snapshot is the full state of one cart. Price fields are pointers because
// a cart that was never priced has no prices at all, which is distinct from
// a priced total of zero.
type Snapshot struct {
	Items                []LineItem       `json:"items"`
	ItemsPrice           *decimal.Decimal `json:"items_price,omitempty"`
	ShippingPrice        *decimal.Decimal `json:"shipping_price,omitempty"`
	TaxPrice             *decimal.Decimal `json:"tax_price,omitempty"`
	TotalPrice           *decimal.Decimal `json:"total_price,omitempty"`
	PaymentMethod        string           `json:"payment_method,omitempty"`
	ShippingAddress      *ShippingAddress `json:"shipping_address,omitempty"`
	DeliveryDateIndex    *int             `json:"delivery_date_index,omitempty"`
	DeliveryOptions      []DeliveryOption `json:"delivery_options,omitempty"`
	ExpectedDeliveryDate *time.Time       `json:"expected_delivery_date,omitempty"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// EmptySnapshot returns the state of a cart nobody has touched yet.
func EmptySnapshot() Snapshot {
	return Snapshot{Items: []LineItem{}}
}

// FindItem returns the index of the line matching item, or -1.
func (s Snapshot) FindItem(item LineItem) int {
	for i, it := range s.Items {
		if it.Matches(item) {
			return i
		}
	}
	return -1
}

// Clone returns a deep copy. Callers may hand the copy across goroutine
// boundaries without further locking.
func (s Snapshot) Clone() Snapshot {
	out := s
	out.Items = make([]LineItem, len(s.Items))
	copy(out.Items, s.Items)
	out.ItemsPrice = copyDecimal(s.ItemsPrice)
	out.ShippingPrice = copyDecimal(s.ShippingPrice)
	out.TaxPrice = copyDecimal(s.TaxPrice)
	out.TotalPrice = copyDecimal(s.TotalPrice)
	if s.ShippingAddress != nil {
		addr := *s.ShippingAddress
		out.ShippingAddress = &addr
	}
	out.DeliveryDateIndex = copyInt(s.DeliveryDateIndex)
	out.DeliveryOptions = append([]DeliveryOption(nil), s.DeliveryOptions...)
	out.ExpectedDeliveryDate = copyTime(s.ExpectedDeliveryDate)
	return out
}

// ApplyQuote merges a quote into the snapshot. ItemsPrice, TotalPrice,
// ShippingPrice and TaxPrice are taken verbatim, nils included, because the
// engine owns them completely. Delivery metadata is merged only when the
// quote carries it, so an engine that omits it cannot erase a chosen
// delivery window.
func (s *Snapshot) ApplyQuote(q PriceQuote) {
	items := q.ItemsPrice
	total := q.TotalPrice
	s.ItemsPrice = &items
	s.TotalPrice = &total
	s.ShippingPrice = copyDecimal(q.ShippingPrice)
	s.TaxPrice = copyDecimal(q.TaxPrice)
	if q.DeliveryDateIndex != nil {
		s.DeliveryDateIndex = copyInt(q.DeliveryDateIndex)
	}
	if q.DeliveryOptions != nil {
		s.DeliveryOptions = append([]DeliveryOption(nil), q.DeliveryOptions...)
	}
	if q.ExpectedDeliveryDate != nil {
		s.ExpectedDeliveryDate = copyTime(q.ExpectedDeliveryDate)
	}
}

func copyDecimal(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	v := *d
	return &v
}

func copyInt(i *int) *int {
	if i == nil {
		return nil
	}
	v := *i
	return &v
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
