package pricing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker/v2"

	"github.com/LeMinhLong2000/cart-store/internal/domain"
)

type quoteRequest struct {
	Items             []domain.LineItem       `json:"items"`
	ShippingAddress   *domain.ShippingAddress `json:"shipping_address,omitempty"`
	DeliveryDateIndex *int                    `json:"delivery_date_index,omitempty"`
}

// Remote asks an external pricing service for quotes over HTTP. Calls go
// through a circuit breaker so a dead pricing service fails fast instead of
// stalling every cart mutation.
type Remote struct {
	url    string
	client *http.Client
	cb     *gobreaker.CircuitBreaker[*domain.PriceQuote]
	log    *logrus.Logger
}

func NewRemote(url string, log *logrus.Logger) *Remote {
	settings := gobreaker.Settings{
		Name:        "pricing",
		MaxRequests: 1,
		Interval:    10 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.5
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warnf("circuit breaker %s: %s -> %s", name, from, to)
		},
	}

	return &Remote{
		url:    url,
		client: &http.Client{Timeout: 10 * time.Second},
		cb:     gobreaker.NewCircuitBreaker[*domain.PriceQuote](settings),
		log:    log,
	}
}

func (r *Remote) Quote(ctx context.Context, items []domain.LineItem, addr *domain.ShippingAddress, deliveryDateIndex *int) (*domain.PriceQuote, error) {
	req := quoteRequest{Items: items, ShippingAddress: addr, DeliveryDateIndex: deliveryDateIndex}
	return r.cb.Execute(func() (*domain.PriceQuote, error) {
		return r.post(ctx, req)
	})
}

func (r *Remote) post(ctx context.Context, req quoteRequest) (*domain.PriceQuote, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal quote request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build quote request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("pricing service unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pricing service returned %d", resp.StatusCode)
	}

	var quote domain.PriceQuote
	if err := json.NewDecoder(resp.Body).Decode(&quote); err != nil {
		return nil, fmt.Errorf("failed to decode quote: %w", err)
	}
	return &quote, nil
}
