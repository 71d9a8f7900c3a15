package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/platform/auth"
)

const (
	regionalProvider        = "razorpay"
	regionalSignatureHeader = "X-Razorpay-Signature"
	regionalEventIDHeader   = "X-Razorpay-Event-Id"
	defaultRegionalBaseURL  = "https://api.razorpay.com/v1"
	defaultRegionalCurrency = "INR"
	maxProviderResponse     = 1 << 20
)

// RegionalConfig configures the regional gateway.
type RegionalConfig struct {
	KeyID         string
	KeySecret     string
	WebhookSecret string
	BaseURL       string
	Currency      string
	Timeout       time.Duration
	HTTPClient    *http.Client
	Logger        Logger
}

// RegionalGateway settles through a Razorpay-style orders API: the server creates a
// provider order, the client pays against it and returns an HMAC signature over
// "providerOrderId|paymentId" keyed with the API secret.
type RegionalGateway struct {
	keyID         string
	keySecret     string
	webhookSecret string
	baseURL       string
	currency      string
	timeout       time.Duration
	client        *http.Client
	logger        Logger
}

// NewRegionalGateway validates cfg and returns a gateway.
func NewRegionalGateway(cfg RegionalConfig) (*RegionalGateway, error) {
	if strings.TrimSpace(cfg.KeyID) == "" || strings.TrimSpace(cfg.KeySecret) == "" {
		return nil, errors.New("payments: regional key id and secret are required")
	}
	if strings.TrimSpace(cfg.WebhookSecret) == "" {
		return nil, errors.New("payments: regional webhook secret is required")
	}
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = defaultRegionalBaseURL
	}
	if _, err := url.Parse(baseURL); err != nil {
		return nil, fmt.Errorf("payments: regional base url: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultProviderTimeout
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: timeout}
	}
	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = defaultRegionalCurrency
	}
	logger := cfg.Logger
	if logger == nil {
		logger = noopLogger
	}
	return &RegionalGateway{
		keyID:         strings.TrimSpace(cfg.KeyID),
		keySecret:     cfg.KeySecret,
		webhookSecret: cfg.WebhookSecret,
		baseURL:       baseURL,
		currency:      currency,
		timeout:       timeout,
		client:        client,
		logger:        logger,
	}, nil
}

// Method implements Gateway.
func (g *RegionalGateway) Method() domain.PaymentMethod { return domain.PaymentMethodRegional }

type regionalOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type regionalOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

// Initiate creates a provider order for the total.
func (g *RegionalGateway) Initiate(ctx context.Context, req InitiateRequest) (Handle, error) {
	amount := domain.MinorUnits(req.Amount)
	body := regionalOrderRequest{
		Amount:   amount,
		Currency: g.currency,
		Receipt:  truncate(req.OrderID, 40),
		Notes:    map[string]string{"orderId": req.OrderID, "userId": req.UserID},
	}
	var resp regionalOrderResponse
	if err := g.call(ctx, "create_order", http.MethodPost, "/orders", body, &resp); err != nil {
		return Handle{}, err
	}
	if resp.ID == "" {
		return Handle{}, NewProviderError(regionalProvider, "create_order", http.StatusBadGateway, errors.New("response without order id"))
	}
	currency := resp.Currency
	if currency == "" {
		currency = g.currency
	}
	if resp.Amount != 0 {
		amount = resp.Amount
	}
	g.logger(ctx, "payments.regional.order_created", map[string]any{
		"orderId":         req.OrderID,
		"providerOrderId": resp.ID,
		"amount":          amount,
	})
	return Handle{
		Provider:  regionalProvider,
		PaymentID: resp.ID,
		KeyID:     g.keyID,
		Amount:    amount,
		Currency:  currency,
	}, nil
}

// VerifyClientConfirmation checks the checkout signature locally; no provider call is made.
func (g *RegionalGateway) VerifyClientConfirmation(_ context.Context, order domain.Order, confirmation ClientConfirmation) (Confirmation, error) {
	providerOrderID := strings.TrimSpace(confirmation.ProviderOrderID)
	paymentID := strings.TrimSpace(confirmation.ProviderPaymentID)
	if providerOrderID == "" || paymentID == "" {
		return Confirmation{}, ErrPaymentMismatch
	}
	if providerOrderID != order.PaymentDetails.PaymentID {
		return Confirmation{}, ErrPaymentMismatch
	}
	message := []byte(providerOrderID + "|" + paymentID)
	if !auth.VerifyHMACSHA256([]byte(g.keySecret), message, strings.TrimSpace(confirmation.Signature)) {
		return Confirmation{}, ErrSignature
	}
	return Confirmation{
		PaymentID:     providerOrderID,
		TransactionID: paymentID,
		Signature:     strings.TrimSpace(confirmation.Signature),
		Amount:        order.PaymentDetails.Amount,
		Currency:      order.PaymentDetails.Currency,
	}, nil
}

type regionalWebhook struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity regionalPayment `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

type regionalPayment struct {
	ID               string            `json:"id"`
	OrderID          string            `json:"order_id"`
	Amount           int64             `json:"amount"`
	Currency         string            `json:"currency"`
	Status           string            `json:"status"`
	Notes            map[string]string `json:"notes"`
	ErrorDescription string            `json:"error_description"`
}

// VerifyWebhook authenticates the raw body against the webhook secret and maps payment events.
func (g *RegionalGateway) VerifyWebhook(ctx context.Context, payload []byte, headers http.Header) (WebhookEvent, error) {
	signature := strings.TrimSpace(headers.Get(regionalSignatureHeader))
	if signature == "" || !auth.VerifyHMACSHA256([]byte(g.webhookSecret), payload, signature) {
		return WebhookEvent{}, ErrSignature
	}

	var body regionalWebhook
	if err := json.Unmarshal(payload, &body); err != nil {
		return WebhookEvent{}, fmt.Errorf("payments: decode regional webhook: %w", err)
	}

	out := WebhookEvent{Type: body.Event, EventID: strings.TrimSpace(headers.Get(regionalEventIDHeader))}
	switch body.Event {
	case "payment.captured", "order.paid":
		out.Kind = WebhookConfirmed
	case "payment.failed":
		out.Kind = WebhookFailed
	default:
		return out, nil
	}

	entity := body.Payload.Payment.Entity
	if entity.OrderID == "" {
		return WebhookEvent{}, fmt.Errorf("payments: regional %s event without order reference", body.Event)
	}
	out.PaymentID = entity.OrderID
	out.TransactionID = entity.ID
	out.OrderID = entity.Notes["orderId"]
	out.Amount = entity.Amount
	out.Currency = entity.Currency
	if out.Kind == WebhookFailed {
		out.FailureReason = entity.ErrorDescription
	}
	g.logger(ctx, "payments.regional.webhook_verified", map[string]any{
		"eventId":         out.EventID,
		"type":            out.Type,
		"providerOrderId": entity.OrderID,
	})
	return out, nil
}

type regionalRefundRequest struct {
	Amount  int64             `json:"amount,omitempty"`
	Receipt string            `json:"receipt,omitempty"`
	Notes   map[string]string `json:"notes,omitempty"`
}

type regionalRefundResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// Refund refunds the captured payment recorded on the order.
func (g *RegionalGateway) Refund(ctx context.Context, order domain.Order, reason string) (RefundResult, error) {
	paymentID := strings.TrimSpace(order.PaymentDetails.TransactionID)
	if paymentID == "" {
		return RefundResult{}, ErrPaymentMismatch
	}
	body := regionalRefundRequest{
		Amount:  order.PaymentDetails.Amount,
		Receipt: truncate("refund:"+order.ID, 40),
		Notes:   map[string]string{"orderId": order.ID},
	}
	if note := strings.TrimSpace(reason); note != "" {
		body.Notes["reason"] = truncate(note, 250)
	}
	var resp regionalRefundResponse
	if err := g.call(ctx, "refund", http.MethodPost, "/payments/"+url.PathEscape(paymentID)+"/refund", body, &resp); err != nil {
		return RefundResult{}, err
	}
	g.logger(ctx, "payments.regional.refund_created", map[string]any{
		"orderId":  order.ID,
		"refundId": resp.ID,
		"status":   resp.Status,
	})
	return RefundResult{RefundID: resp.ID, Status: resp.Status}, nil
}

func (g *RegionalGateway) call(ctx context.Context, op, method, path string, in, out any) error {
	ctx, cancel := withTimeout(ctx, g.timeout)
	defer cancel()

	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("payments: encode regional %s request: %w", op, err)
	}
	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("payments: build regional %s request: %w", op, err)
	}
	req.SetBasicAuth(g.keyID, g.keySecret)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return NewProviderError(regionalProvider, op, 0, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxProviderResponse))
	if err != nil {
		return NewProviderError(regionalProvider, op, 0, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return NewProviderError(regionalProvider, op, resp.StatusCode, errors.New(regionalErrorMessage(raw)))
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return NewProviderError(regionalProvider, op, http.StatusBadGateway, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func regionalErrorMessage(raw []byte) string {
	var body struct {
		Error struct {
			Code        string `json:"code"`
			Description string `json:"description"`
		} `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Error.Description != "" {
		if body.Error.Code != "" {
			return body.Error.Code + ": " + body.Error.Description
		}
		return body.Error.Description
	}
	text := strings.TrimSpace(string(raw))
	if text == "" {
		return "empty response"
	}
	return truncate(text, 200)
}

var _ Gateway = (*RegionalGateway)(nil)
