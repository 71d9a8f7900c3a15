// Package events publishes order domain events to a message broker. Delivery is
// at-least-once from the broker's point of view and best-effort from the caller's:
// publish failures are reported but never roll back the state change that produced them.
package events

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

// Order event types.
const (
	TypeOrderCreated                = "order.created"
	TypeOrderPaid                   = "order.paid"
	TypeOrderPaymentFailed          = "order.payment_failed"
	TypeOrderStatusChanged          = "order.status_changed"
	TypeOrderRefunded               = "order.refunded"
	TypeOrderReconciliationRequired = "order.reconciliation_required"
)

// Event is the envelope published for every order state change.
type Event struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	OrderID    string         `json:"orderId"`
	UserID     string         `json:"userId,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
	Data       map[string]any `json:"data,omitempty"`
}

// Publisher delivers events to a broker.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}

// Noop discards events. Selected when no broker is configured.
type Noop struct{}

// Publish implements Publisher.
func (Noop) Publish(context.Context, Event) error { return nil }

// Close implements Publisher.
func (Noop) Close() error { return nil }

func encode(event Event) ([]byte, error) {
	return json.Marshal(event)
}

func attributes(event Event) map[string]string {
	attrs := make(map[string]string, 3)
	setAttr(attrs, "eventType", event.Type)
	setAttr(attrs, "orderId", event.OrderID)
	setAttr(attrs, "eventId", event.ID)
	return attrs
}

func setAttr(attrs map[string]string, key string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		attrs[key] = v
	}
}
