package payments

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/platform/auth"
)

func newTestRegionalGateway(t *testing.T, baseURL string) *RegionalGateway {
	t.Helper()
	gw, err := NewRegionalGateway(RegionalConfig{
		KeyID:         "rzp_key",
		KeySecret:     "rzp_secret",
		WebhookSecret: "rzp_webhook",
		BaseURL:       baseURL,
	})
	require.NoError(t, err)
	return gw
}

func TestRegionalGatewayInitiate(t *testing.T) {
	var received regionalOrderRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/orders", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "rzp_key", user)
		assert.Equal(t, "rzp_secret", pass)
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		_, _ = w.Write([]byte(`{"id":"order_P1","amount":250050,"currency":"INR","status":"created"}`))
	}))
	defer srv.Close()

	gw := newTestRegionalGateway(t, srv.URL)
	handle, err := gw.Initiate(context.Background(), InitiateRequest{OrderID: "ord_1", UserID: "user-1", Amount: 2500.5})
	require.NoError(t, err)

	assert.Equal(t, "order_P1", handle.PaymentID)
	assert.Equal(t, "rzp_key", handle.KeyID)
	assert.Equal(t, int64(250050), handle.Amount)
	assert.Equal(t, "INR", handle.Currency)
	assert.Equal(t, int64(250050), received.Amount)
	assert.Equal(t, "ord_1", received.Notes["orderId"])
}

func TestRegionalGatewayInitiateProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`))
	}))
	defer srv.Close()

	gw := newTestRegionalGateway(t, srv.URL)
	_, err := gw.Initiate(context.Background(), InitiateRequest{OrderID: "ord_1", Amount: 0.5})

	var providerErr *ProviderError
	require.ErrorAs(t, err, &providerErr)
	assert.Equal(t, http.StatusBadRequest, providerErr.Status)
	assert.False(t, providerErr.Retryable())
	assert.Contains(t, providerErr.Error(), "amount too small")
}

func TestRegionalGatewayVerifyClientConfirmation(t *testing.T) {
	gw := newTestRegionalGateway(t, "http://unused.invalid")
	order := domain.Order{
		ID:             "ord_1",
		PaymentMethod:  domain.PaymentMethodRegional,
		PaymentDetails: domain.PaymentDetails{PaymentID: "order_P1", Amount: 250050, Currency: "INR"},
	}
	signature := auth.ComputeHMACSHA256([]byte("rzp_secret"), []byte("order_P1|pay_9"))

	conf, err := gw.VerifyClientConfirmation(context.Background(), order, ClientConfirmation{
		ProviderOrderID:   "order_P1",
		ProviderPaymentID: "pay_9",
		Signature:         signature,
	})
	require.NoError(t, err)
	assert.Equal(t, "pay_9", conf.TransactionID)
	assert.Equal(t, signature, conf.Signature)

	_, err = gw.VerifyClientConfirmation(context.Background(), order, ClientConfirmation{
		ProviderOrderID:   "order_P1",
		ProviderPaymentID: "pay_9",
		Signature:         "deadbeef",
	})
	require.ErrorIs(t, err, ErrSignature)

	_, err = gw.VerifyClientConfirmation(context.Background(), order, ClientConfirmation{
		ProviderOrderID:   "order_other",
		ProviderPaymentID: "pay_9",
		Signature:         signature,
	})
	require.ErrorIs(t, err, ErrPaymentMismatch)
}

func TestRegionalGatewayVerifyWebhook(t *testing.T) {
	gw := newTestRegionalGateway(t, "http://unused.invalid")
	payload := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_9","order_id":"order_P1","amount":250050,"currency":"INR","status":"captured","notes":{"orderId":"ord_1"}}}}}`)

	headers := http.Header{}
	headers.Set(regionalSignatureHeader, auth.ComputeHMACSHA256([]byte("rzp_webhook"), payload))
	headers.Set(regionalEventIDHeader, "evt_77")

	event, err := gw.VerifyWebhook(context.Background(), payload, headers)
	require.NoError(t, err)
	assert.Equal(t, WebhookConfirmed, event.Kind)
	assert.Equal(t, "evt_77", event.EventID)
	assert.Equal(t, "order_P1", event.PaymentID)
	assert.Equal(t, "pay_9", event.TransactionID)
	assert.Equal(t, "ord_1", event.OrderID)

	headers.Set(regionalSignatureHeader, auth.ComputeHMACSHA256([]byte("wrong"), payload))
	_, err = gw.VerifyWebhook(context.Background(), payload, headers)
	require.ErrorIs(t, err, ErrSignature)
}

func TestRegionalGatewayRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/pay_9/refund", r.URL.Path)
		var body regionalRefundRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "refund:ord_1", body.Receipt)
		assert.Equal(t, int64(250050), body.Amount)
		_, _ = w.Write([]byte(`{"id":"rfnd_1","status":"processed"}`))
	}))
	defer srv.Close()

	gw := newTestRegionalGateway(t, srv.URL)
	order := domain.Order{ID: "ord_1", PaymentDetails: domain.PaymentDetails{PaymentID: "order_P1", TransactionID: "pay_9", Amount: 250050}}

	result, err := gw.Refund(context.Background(), order, "customer request")
	require.NoError(t, err)
	assert.Equal(t, "rfnd_1", result.RefundID)
	assert.Equal(t, "processed", result.Status)
}
