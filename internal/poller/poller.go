package poller

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"github.com/LeMinhLong2000/cart-store/internal/store"
)

// CheckoutCompletedEvent is the slice of the checkout outbox payload the
// cart cares about. Remaining fields are ignored on decode.
type CheckoutCompletedEvent struct {
	CheckoutID  string    `json:"checkout_id"`
	UserID      string    `json:"user_id"`
	CompletedAt time.Time `json:"completed_at"`
}

// Poller drains the checkout outbox topic and resets the cart of every
// owner whose checkout completed.
type Poller struct {
	manager *store.Manager
	reader  *kafka.Reader
	log     *logrus.Logger
}

func NewPoller(manager *store.Manager, log *logrus.Logger, brokers ...string) *Poller {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  brokers,
		Topic:    "checkout-outbox",
		GroupID:  "cart-store-consumer",
		MaxBytes: 10e6, // 10MB
	})
	return &Poller{manager, reader, log}
}

func (p *Poller) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		p.processMessage(ctx)
	}
}

func (p *Poller) Close() {
	if err := p.reader.Close(); err != nil {
		p.log.Errorf("error closing reader: %v", err)
	}
}

func (p *Poller) processMessage(ctx context.Context) {
	m, err := p.reader.ReadMessage(ctx)
	if err != nil {
		if ctx.Err() == nil {
			p.log.Errorf("error reading message: %v", err)
		}
		return
	}

	var event CheckoutCompletedEvent
	if errUnmarshal := json.Unmarshal(m.Value, &event); errUnmarshal != nil {
		p.log.Warnf("skipping malformed checkout event: %v", errUnmarshal)
		return
	}
	if event.UserID == "" {
		p.log.Warnf("skipping checkout event %q: missing user_id", event.CheckoutID)
		return
	}

	if errReset := p.manager.Reset(ctx, event.UserID); errReset != nil {
		p.log.Errorf("failed to reset cart for %s after checkout %s: %v", event.UserID, event.CheckoutID, errReset)
		return
	}
	p.log.Infof("cart reset for %s after checkout %s", event.UserID, event.CheckoutID)
}
