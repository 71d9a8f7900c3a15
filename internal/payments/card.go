package payments

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/client"
	"github.com/stripe/stripe-go/v78/webhook"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

const (
	cardProvider           = "stripe"
	stripeSignatureHeader  = "Stripe-Signature"
	defaultCardCurrency    = "usd"
	defaultProviderTimeout = 10 * time.Second
)

type stripeIntentAPI interface {
	New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
	Get(id string, params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error)
}

type stripeRefundAPI interface {
	New(params *stripe.RefundParams) (*stripe.Refund, error)
}

// CardConfig configures the card gateway.
type CardConfig struct {
	APIKey        string
	WebhookSecret string
	Currency      string
	Timeout       time.Duration
	Logger        Logger

	intents stripeIntentAPI
	refunds stripeRefundAPI
}

// CardGateway settles card payments through Stripe PaymentIntents.
type CardGateway struct {
	intents       stripeIntentAPI
	refunds       stripeRefundAPI
	webhookSecret string
	currency      string
	timeout       time.Duration
	logger        Logger
}

// NewCardGateway constructs a Stripe-backed gateway. Automatic network retries are
// disabled; a failed call is surfaced to the caller as a retryable ProviderError.
func NewCardGateway(cfg CardConfig) (*CardGateway, error) {
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("payments: stripe webhook secret is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}

	intents, refunds := cfg.intents, cfg.refunds
	if intents == nil || refunds == nil {
		apiKey := strings.TrimSpace(cfg.APIKey)
		if apiKey == "" {
			return nil, errors.New("payments: stripe api key is required")
		}
		backendCfg := &stripe.BackendConfig{
			HTTPClient:        &http.Client{Timeout: timeout},
			MaxNetworkRetries: stripe.Int64(0),
		}
		sc := client.New(apiKey, &stripe.Backends{
			API:     stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Connect: stripe.GetBackendWithConfig(stripe.ConnectBackend, backendCfg),
			Uploads: stripe.GetBackendWithConfig(stripe.UploadsBackend, backendCfg),
		})
		intents, refunds = sc.PaymentIntents, sc.Refunds
	}

	currency := strings.ToLower(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultCardCurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}

	return &CardGateway{
		intents:       intents,
		refunds:       refunds,
		webhookSecret: cfg.WebhookSecret,
		currency:      currency,
		timeout:       timeout,
		logger:        logger,
	}, nil
}

// Method implements Gateway.
func (g *CardGateway) Method() domain.PaymentMethod { return domain.PaymentMethodCard }

// Initiate creates a PaymentIntent for the order total. The order id doubles as the
// idempotency key so a retried checkout cannot create a second intent.
func (g *CardGateway) Initiate(ctx context.Context, req InitiateRequest) (Handle, error) {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	amount := domain.MinorUnits(req.Amount)
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amount),
		Currency: stripe.String(g.currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
		Metadata: map[string]string{"orderId": req.OrderID, "userId": req.UserID},
	}
	params.Context = ctx
	params.SetIdempotencyKey("order:" + req.OrderID)

	intent, err := g.intents.New(params)
	if err != nil {
		return Handle{}, stripeProviderError("create_intent", err)
	}
	g.logger(ctx, "payments.card.intent_created", map[string]any{
		"orderId":       req.OrderID,
		"paymentIntent": intent.ID,
		"amount":        amount,
	})

	return Handle{
		Provider:     cardProvider,
		PaymentID:    intent.ID,
		ClientSecret: intent.ClientSecret,
		Amount:       amount,
		Currency:     g.currency,
	}, nil
}

// VerifyClientConfirmation re-reads the intent from Stripe; the client's word is never
// trusted on its own.
func (g *CardGateway) VerifyClientConfirmation(ctx context.Context, order domain.Order, confirmation ClientConfirmation) (Confirmation, error) {
	paymentID := strings.TrimSpace(confirmation.PaymentID)
	if paymentID == "" || paymentID != order.PaymentDetails.PaymentID {
		return Confirmation{}, ErrPaymentMismatch
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	intent, err := g.intents.Get(paymentID, params)
	if err != nil {
		return Confirmation{}, stripeProviderError("get_intent", err)
	}
	if owner := intent.Metadata["orderId"]; owner != "" && owner != order.ID {
		return Confirmation{}, ErrPaymentMismatch
	}
	if intent.Status != stripe.PaymentIntentStatusSucceeded {
		return Confirmation{}, fmt.Errorf("%w: intent status %s", ErrPaymentNotCompleted, intent.Status)
	}
	return intentConfirmation(intent), nil
}

// VerifyWebhook checks the Stripe-Signature header and maps payment intent events.
func (g *CardGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (WebhookEvent, error) {
	event, err := webhook.ConstructEventWithOptions(payload, headers.Get(stripeSignatureHeader), g.webhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		return WebhookEvent{}, fmt.Errorf("%w: %v", ErrSignature, err)
	}

	out := WebhookEvent{Type: string(event.Type), EventID: event.ID}
	switch event.Type {
	case "payment_intent.succeeded":
		out.Kind = WebhookConfirmed
	case "payment_intent.payment_failed":
		out.Kind = WebhookFailed
	default:
		return out, nil
	}

	if event.Data == nil {
		return WebhookEvent{}, fmt.Errorf("payments: stripe event %s has no data", event.ID)
	}
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return WebhookEvent{}, fmt.Errorf("payments: decode stripe payment intent: %w", err)
	}
	if intent.ID == "" {
		return WebhookEvent{}, fmt.Errorf("payments: stripe event %s has no payment intent id", event.ID)
	}

	confirmation := intentConfirmation(&intent)
	out.OrderID = intent.Metadata["orderId"]
	out.PaymentID = intent.ID
	out.TransactionID = confirmation.TransactionID
	out.Amount = confirmation.Amount
	out.Currency = confirmation.Currency
	if out.Kind == WebhookFailed && intent.LastPaymentError != nil {
		out.FailureReason = intent.LastPaymentError.Msg
	}
	g.logger(ctx, "payments.card.webhook_verified", map[string]any{
		"eventId":       event.ID,
		"type":          out.Type,
		"paymentIntent": intent.ID,
	})
	return out, nil
}

// Refund refunds the whole intent stored on the order.
func (g *CardGateway) Refund(ctx context.Context, order domain.Order, reason string) (RefundResult, error) {
	intentID := strings.TrimSpace(order.PaymentDetails.PaymentID)
	if intentID == "" {
		return RefundResult{}, ErrPaymentMismatch
	}

	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(intentID),
		Metadata:      map[string]string{"orderId": order.ID},
	}
	if mapped := stripeRefundReason(reason); mapped != "" {
		params.Reason = stripe.String(mapped)
	}
	if note := strings.TrimSpace(reason); note != "" {
		params.Metadata["reason"] = truncate(note, 500)
	}
	params.Context = ctx
	params.SetIdempotencyKey("refund:" + order.ID)

	refund, err := g.refunds.New(params)
	if err != nil {
		return RefundResult{}, stripeProviderError("refund", err)
	}
	g.logger(ctx, "payments.card.refund_created", map[string]any{
		"orderId":  order.ID,
		"refundId": refund.ID,
		"status":   refund.Status,
	})
	return RefundResult{RefundID: refund.ID, Status: string(refund.Status)}, nil
}

func intentConfirmation(intent *stripe.PaymentIntent) Confirmation {
	out := Confirmation{
		PaymentID: intent.ID,
		Amount:    intent.AmountReceived,
		Currency:  strings.ToLower(string(intent.Currency)),
	}
	if out.Amount == 0 {
		out.Amount = intent.Amount
	}
	if intent.LatestCharge != nil {
		out.TransactionID = intent.LatestCharge.ID
	}
	return out
}

func stripeProviderError(op string, err error) error {
	var stripeErr *stripe.Error
	if errors.As(err, &stripeErr) {
		return NewProviderError(cardProvider, op, stripeErr.HTTPStatusCode, err)
	}
	return NewProviderError(cardProvider, op, 0, err)
}

func stripeRefundReason(reason string) string {
	switch strings.ToLower(strings.TrimSpace(reason)) {
	case string(stripe.RefundReasonDuplicate):
		return string(stripe.RefundReasonDuplicate)
	case string(stripe.RefundReasonFraudulent):
		return string(stripe.RefundReasonFraudulent)
	case string(stripe.RefundReasonRequestedByCustomer):
		return string(stripe.RefundReasonRequestedByCustomer)
	default:
		return ""
	}
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit]
}

var _ Gateway = (*CardGateway)(nil)
