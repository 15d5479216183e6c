package events

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	TypeOrderCreated   = "order.created"
	TypeStatusChanged  = "order.status_changed"
	TypePaymentUpdated = "order.payment_updated"
)

// Event is the payload published for order lifecycle changes. The subject
// (NATS) or message key (Kafka) is derived from Type and OrderID.
type Event struct {
	Type          string          `json:"type"`
	OrderID       string          `json:"order_id"`
	UserID        string          `json:"user_id"`
	Status        string          `json:"status,omitempty"`
	PreviousState string          `json:"previous_status,omitempty"`
	PaymentStatus string          `json:"payment_status,omitempty"`
	TotalAmount   decimal.Decimal `json:"total_amount"`
	OccurredAt    time.Time       `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, ev Event) error
	Close() error
}

// Noop drops every event. Used when EVENT_BROKER=none.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
