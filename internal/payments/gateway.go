// Package payments holds the payment gateways an order can settle through. Each gateway
// owns one payment method: it starts a payment, verifies client-side confirmations and
// signed provider callbacks, and issues refunds.
package payments

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

var (
	// ErrUnsupportedMethod is returned when no gateway is registered for a payment method.
	ErrUnsupportedMethod = errors.New("payments: unsupported payment method")
	// ErrUnsupportedOperation is returned when a gateway has no notion of the requested step.
	ErrUnsupportedOperation = errors.New("payments: operation not supported by payment method")
	// ErrCodLimitExceeded is returned when a cash-on-delivery order exceeds the ceiling.
	ErrCodLimitExceeded = errors.New("payments: order total exceeds cash on delivery limit")
	// ErrSignature is returned when a confirmation or callback signature does not verify.
	ErrSignature = errors.New("payments: invalid signature")
	// ErrPaymentNotCompleted is returned when the provider does not report the payment as settled.
	ErrPaymentNotCompleted = errors.New("payments: payment not completed")
	// ErrPaymentMismatch is returned when provider references do not belong to the order.
	ErrPaymentMismatch = errors.New("payments: payment does not match order")
)

// Logger receives structured gateway events.
type Logger func(ctx context.Context, event string, fields map[string]any)

func noopLogger(context.Context, string, map[string]any) {}

// ProviderError wraps a failed call to an external payment provider.
type ProviderError struct {
	Provider  string
	Op        string
	Status    int
	retryable bool
	Err       error
}

// Error implements error.
func (e *ProviderError) Error() string {
	if e == nil {
		return ""
	}
	if e.Status != 0 {
		return fmt.Sprintf("payments: %s %s failed (status %d): %v", e.Provider, e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("payments: %s %s failed: %v", e.Provider, e.Op, e.Err)
}

// Unwrap exposes the provider cause.
func (e *ProviderError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Retryable reports whether repeating the call later may succeed (network failures,
// timeouts, 429 and 5xx responses).
func (e *ProviderError) Retryable() bool {
	return e != nil && e.retryable
}

// NewProviderError classifies a failed provider call. Transport failures (status 0), 429 and 5xx
// responses are retryable.
func NewProviderError(provider, op string, status int, err error) *ProviderError {
	retryable := status == 0 || status == http.StatusTooManyRequests || status >= http.StatusInternalServerError
	return &ProviderError{Provider: provider, Op: op, Status: status, retryable: retryable, Err: err}
}

// InitiateRequest starts a payment for an order total in major units.
type InitiateRequest struct {
	OrderID string
	UserID  string
	Amount  float64
}

// Handle is what the client needs to complete the payment with the provider.
type Handle struct {
	Provider     string `json:"provider"`
	PaymentID    string `json:"paymentId"`
	ClientSecret string `json:"clientSecret,omitempty"`
	KeyID        string `json:"keyId,omitempty"`
	Amount       int64  `json:"amount"`
	Currency     string `json:"currency"`
}

// ClientConfirmation carries the fields a client submits after completing payment.
type ClientConfirmation struct {
	PaymentID         string
	ProviderOrderID   string
	ProviderPaymentID string
	Signature         string
}

// Confirmation is a verified settlement.
type Confirmation struct {
	PaymentID     string
	TransactionID string
	Signature     string
	Amount        int64
	Currency      string
}

// WebhookKind classifies a verified provider callback.
type WebhookKind int

const (
	// WebhookIgnored is a verified event the order workflow does not act on.
	WebhookIgnored WebhookKind = iota
	// WebhookConfirmed reports a settled payment.
	WebhookConfirmed
	// WebhookFailed reports a failed payment attempt.
	WebhookFailed
)

// WebhookEvent is a verified provider callback. OrderID comes from metadata the gateway
// attached at initiation and may be empty; PaymentID is the provider reference stored on
// the order and is always set for Confirmed and Failed events.
type WebhookEvent struct {
	Kind          WebhookKind
	Type          string
	EventID       string
	OrderID       string
	PaymentID     string
	TransactionID string
	Amount        int64
	Currency      string
	FailureReason string
}

// RefundResult describes a refund accepted by the provider.
type RefundResult struct {
	RefundID string
	Status   string
}

// Gateway is implemented once per payment method.
type Gateway interface {
	Method() domain.PaymentMethod
	Initiate(ctx context.Context, req InitiateRequest) (Handle, error)
	VerifyClientConfirmation(ctx context.Context, order domain.Order, confirmation ClientConfirmation) (Confirmation, error)
	VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (WebhookEvent, error)
	Refund(ctx context.Context, order domain.Order, reason string) (RefundResult, error)
}

func withTimeout(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, timeout)
}
