package payments

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stripe/stripe-go/v78"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

const testStripeWebhookSecret = "whsec_test"

type fakeIntents struct {
	created *stripe.PaymentIntentParams
	intent  *stripe.PaymentIntent
	err     error
}

func (f *fakeIntents) New(params *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	f.created = params
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

func (f *fakeIntents) Get(string, *stripe.PaymentIntentParams) (*stripe.PaymentIntent, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.intent, nil
}

type fakeRefunds struct {
	params *stripe.RefundParams
	refund *stripe.Refund
}

func (f *fakeRefunds) New(params *stripe.RefundParams) (*stripe.Refund, error) {
	f.params = params
	return f.refund, nil
}

func newTestCardGateway(t *testing.T, intents *fakeIntents, refunds *fakeRefunds) *CardGateway {
	t.Helper()
	gw, err := NewCardGateway(CardConfig{
		WebhookSecret: testStripeWebhookSecret,
		intents:       intents,
		refunds:       refunds,
	})
	require.NoError(t, err)
	return gw
}

func signStripePayload(payload []byte, secret string, at time.Time) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", at.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", at.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestCardGatewayInitiate(t *testing.T) {
	intents := &fakeIntents{intent: &stripe.PaymentIntent{ID: "pi_123", ClientSecret: "pi_123_secret"}}
	gw := newTestCardGateway(t, intents, &fakeRefunds{})

	handle, err := gw.Initiate(context.Background(), InitiateRequest{OrderID: "ord_1", UserID: "user-1", Amount: 59.99})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", handle.PaymentID)
	assert.Equal(t, "pi_123_secret", handle.ClientSecret)
	assert.Equal(t, int64(5999), handle.Amount)
	assert.Equal(t, "usd", handle.Currency)
	require.NotNil(t, intents.created)
	assert.Equal(t, int64(5999), *intents.created.Amount)
	assert.Equal(t, "ord_1", intents.created.Metadata["orderId"])
	require.NotNil(t, intents.created.IdempotencyKey)
	assert.Equal(t, "order:ord_1", *intents.created.IdempotencyKey)
}

func TestCardGatewayInitiateProviderFailure(t *testing.T) {
	intents := &fakeIntents{err: &stripe.Error{HTTPStatusCode: http.StatusServiceUnavailable, Msg: "unavailable"}}
	gw := newTestCardGateway(t, intents, &fakeRefunds{})

	_, err := gw.Initiate(context.Background(), InitiateRequest{OrderID: "ord_1", Amount: 10})
	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusServiceUnavailable, providerErr.Status)
	assert.True(t, providerErr.Retryable())
}

func TestCardGatewayVerifyClientConfirmation(t *testing.T) {
	order := domain.Order{
		ID:             "ord_1",
		PaymentMethod:  domain.PaymentMethodCard,
		PaymentDetails: domain.PaymentDetails{PaymentID: "pi_123"},
	}

	t.Run("succeeded", func(t *testing.T) {
		intents := &fakeIntents{intent: &stripe.PaymentIntent{
			ID:             "pi_123",
			Status:         stripe.PaymentIntentStatusSucceeded,
			AmountReceived: 5999,
			Currency:       stripe.CurrencyUSD,
			Metadata:       map[string]string{"orderId": "ord_1"},
			LatestCharge:   &stripe.Charge{ID: "ch_1"},
		}}
		gw := newTestCardGateway(t, intents, &fakeRefunds{})

		conf, err := gw.VerifyClientConfirmation(context.Background(), order, ClientConfirmation{PaymentID: "pi_123"})
		require.NoError(t, err)
		assert.Equal(t, "ch_1", conf.TransactionID)
		assert.Equal(t, int64(5999), conf.Amount)
		assert.Equal(t, "usd", conf.Currency)
	})

	t.Run("foreign intent", func(t *testing.T) {
		gw := newTestCardGateway(t, &fakeIntents{}, &fakeRefunds{})
		_, err := gw.VerifyClientConfirmation(context.Background(), order, ClientConfirmation{PaymentID: "pi_other"})
		require.ErrorIs(t, err, ErrPaymentMismatch)
	})

	t.Run("not settled", func(t *testing.T) {
		intents := &fakeIntents{intent: &stripe.PaymentIntent{
			ID:       "pi_123",
			Status:   stripe.PaymentIntentStatusRequiresPaymentMethod,
			Metadata: map[string]string{"orderId": "ord_1"},
		}}
		gw := newTestCardGateway(t, intents, &fakeRefunds{})
		_, err := gw.VerifyClientConfirmation(context.Background(), order, ClientConfirmation{PaymentID: "pi_123"})
		require.ErrorIs(t, err, ErrPaymentNotCompleted)
	})
}

func TestCardGatewayVerifyWebhook(t *testing.T) {
	gw := newTestCardGateway(t, &fakeIntents{}, &fakeRefunds{})
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123","object":"payment_intent","amount":5999,"amount_received":5999,"currency":"usd","status":"succeeded","latest_charge":"ch_1","metadata":{"orderId":"ord_1"}}}}`)

	headers := http.Header{}
	headers.Set(stripeSignatureHeader, signStripePayload(payload, testStripeWebhookSecret, time.Now()))

	event, err := gw.VerifyWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, WebhookConfirmed, event.Kind)
	assert.Equal(t, "evt_1", event.EventID)
	assert.Equal(t, "ord_1", event.OrderID)
	assert.Equal(t, "pi_123", event.PaymentID)
	assert.Equal(t, "ch_1", event.TransactionID)
	assert.Equal(t, int64(5999), event.Amount)
}

func TestCardGatewayVerifyWebhookFailedPayment(t *testing.T) {
	gw := newTestCardGateway(t, &fakeIntents{}, &fakeRefunds{})
	payload := []byte(`{"id":"evt_2","object":"event","type":"payment_intent.payment_failed","data":{"object":{"id":"pi_123","object":"payment_intent","amount":5999,"currency":"usd","status":"requires_payment_method","last_payment_error":{"message":"card declined"},"metadata":{"orderId":"ord_1"}}}}`)

	headers := http.Header{}
	headers.Set(stripeSignatureHeader, signStripePayload(payload, testStripeWebhookSecret, time.Now()))

	event, err := gw.VerifyWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, WebhookFailed, event.Kind)
	assert.Equal(t, "card declined", event.FailureReason)
}

func TestCardGatewayVerifyWebhookRejectsBadSignature(t *testing.T) {
	gw := newTestCardGateway(t, &fakeIntents{}, &fakeRefunds{})
	payload := []byte(`{"id":"evt_1","object":"event","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)

	headers := http.Header{}
	headers.Set(stripeSignatureHeader, signStripePayload(payload, "whsec_other", time.Now()))

	_, err := gw.VerifyWebhook(context.Background(), payload, headers)
	require.True(t, errors.Is(err, ErrSignature), "expected ErrSignature, got %v", err)
}

func TestCardGatewayVerifyWebhookIgnoresOtherEvents(t *testing.T) {
	gw := newTestCardGateway(t, &fakeIntents{}, &fakeRefunds{})
	payload := []byte(`{"id":"evt_3","object":"event","type":"charge.updated","data":{"object":{"id":"ch_1","object":"charge"}}}`)

	headers := http.Header{}
	headers.Set(stripeSignatureHeader, signStripePayload(payload, testStripeWebhookSecret, time.Now()))

	event, err := gw.VerifyWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, WebhookIgnored, event.Kind)
}

func TestCardGatewayRefund(t *testing.T) {
	refunds := &fakeRefunds{refund: &stripe.Refund{ID: "re_1", Status: stripe.RefundStatusSucceeded}}
	gw := newTestCardGateway(t, &fakeIntents{}, refunds)
	order := domain.Order{ID: "ord_1", PaymentDetails: domain.PaymentDetails{PaymentID: "pi_123"}}

	result, err := gw.Refund(context.Background(), order, "requested_by_customer")
	require.NoError(t, err)
	assert.Equal(t, "re_1", result.RefundID)
	assert.Equal(t, "succeeded", result.Status)
	require.NotNil(t, refunds.params)
	assert.Equal(t, "pi_123", *refunds.params.PaymentIntent)
	assert.Equal(t, "requested_by_customer", *refunds.params.Reason)
	assert.Equal(t, "refund:ord_1", *refunds.params.IdempotencyKey)
}
