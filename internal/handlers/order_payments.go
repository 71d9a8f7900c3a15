package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/platform/httpx"
	"github.com/hanko-field/commerce-api/internal/platform/requestctx"
	"github.com/hanko-field/commerce-api/internal/services"
)

type verifyCardRequest struct {
	OrderID   string `json:"orderId"`
	PaymentID string `json:"paymentId"`
}

type verifyRegionalRequest struct {
	OrderID           string `json:"orderId"`
	ProviderOrderID   string `json:"providerOrderId"`
	ProviderPaymentID string `json:"providerPaymentId"`
	Signature         string `json:"signature"`
}

func (h *OrderHandlers) confirmCod(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.ConfirmCodPayment(ctx, services.ConfirmCodCommand{
		OrderID: orderID,
		ActorID: identity.UserID,
		IsAdmin: identity.IsAdmin(),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) verifyCard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req verifyCardRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	req.OrderID = strings.TrimSpace(req.OrderID)
	req.PaymentID = strings.TrimSpace(req.PaymentID)
	if req.OrderID == "" || req.PaymentID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId and paymentId are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.VerifyPayment(ctx, services.VerifyPaymentCommand{
		Method:  domain.PaymentMethodCard,
		OrderID: req.OrderID,
		UserID:  identity.UserID,
		IsAdmin: identity.IsAdmin(),
		Fields:  payments.ClientConfirmation{PaymentID: req.PaymentID},
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) verifyRegional(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req verifyRegionalRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	fields := payments.ClientConfirmation{
		ProviderOrderID:   strings.TrimSpace(req.ProviderOrderID),
		ProviderPaymentID: strings.TrimSpace(req.ProviderPaymentID),
		Signature:         strings.TrimSpace(req.Signature),
	}
	orderID := strings.TrimSpace(req.OrderID)
	if orderID == "" || fields.ProviderOrderID == "" || fields.ProviderPaymentID == "" || fields.Signature == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderId, providerOrderId, providerPaymentId and signature are required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.VerifyPayment(ctx, services.VerifyPaymentCommand{
		Method:  domain.PaymentMethodRegional,
		OrderID: orderID,
		UserID:  identity.UserID,
		IsAdmin: identity.IsAdmin(),
		Fields:  fields,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// webhook accepts a signed provider callback. Unknown orders answer 404 so the provider
// redelivers once the order is persisted.
func (h *OrderHandlers) webhook(method domain.PaymentMethod) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if !h.available(w, r) {
			return
		}

		payload, err := readLimitedBody(r, maxWebhookBodySize)
		if err == nil && len(payload) == 0 {
			err = errEmptyBody
		}
		if err != nil {
			writeBodyError(ctx, w, err)
			return
		}

		result, err := h.orders.HandleWebhook(ctx, method, payload, r.Header)
		if err != nil {
			if errors.Is(err, payments.ErrSignature) {
				requestctx.Logger(ctx).Warn("webhook signature rejected", zap.String("method", string(method)))
			}
			writeServiceError(ctx, w, err)
			return
		}

		httpx.WriteJSON(w, http.StatusOK, webhookResponse{
			Received: true,
			Event:    result.EventType,
			OrderID:  result.OrderID,
			Applied:  result.Applied,
		})
	}
}
