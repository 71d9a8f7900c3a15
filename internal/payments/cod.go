package payments

import (
	"context"
	"fmt"
	"net/http"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

// DefaultCODLimit is the cash-on-delivery ceiling in major units.
const DefaultCODLimit = 1000

// CODGateway settles on delivery. It never talks to a provider; it only enforces the
// order ceiling.
type CODGateway struct {
	limit float64
}

// NewCODGateway returns a gateway rejecting totals above limit. limit <= 0 selects the default.
func NewCODGateway(limit float64) *CODGateway {
	if limit <= 0 {
		limit = DefaultCODLimit
	}
	return &CODGateway{limit: limit}
}

// Method implements Gateway.
func (g *CODGateway) Method() domain.PaymentMethod { return domain.PaymentMethodCOD }

// Limit returns the configured ceiling.
func (g *CODGateway) Limit() float64 { return g.limit }

// Initiate implements Gateway. The returned handle is empty.
func (g *CODGateway) Initiate(_ context.Context, req InitiateRequest) (Handle, error) {
	if req.Amount > g.limit {
		return Handle{}, fmt.Errorf("%w: total %.2f, limit %.2f", ErrCodLimitExceeded, req.Amount, g.limit)
	}
	return Handle{}, nil
}

// VerifyClientConfirmation implements Gateway.
func (g *CODGateway) VerifyClientConfirmation(context.Context, domain.Order, ClientConfirmation) (Confirmation, error) {
	return Confirmation{}, ErrUnsupportedOperation
}

// VerifyWebhook implements Gateway.
func (g *CODGateway) VerifyWebhook(context.Context, []byte, http.Header) (WebhookEvent, error) {
	return WebhookEvent{}, ErrUnsupportedOperation
}

// Refund implements Gateway.
func (g *CODGateway) Refund(context.Context, domain.Order, string) (RefundResult, error) {
	return RefundResult{}, ErrUnsupportedOperation
}

var _ Gateway = (*CODGateway)(nil)
