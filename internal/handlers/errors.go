package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/platform/httpx"
	"github.com/hanko-field/commerce-api/internal/platform/requestctx"
	"github.com/hanko-field/commerce-api/internal/services"
)

const providerRetryAfter = 5 * time.Second

// writeServiceError maps order, cart and catalog errors onto the JSON error envelope.
// Anything unclassified is logged and surfaced as internal_error.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var stockErr *services.InsufficientStockError
	var partialErr *services.PartialFulfillmentError
	var providerErr *payments.ProviderError

	switch {
	case errors.As(err, &partialErr):
		requestctx.Logger(ctx).Error("order requires manual reconciliation",
			zap.String("orderId", partialErr.OrderID),
			zap.String("paymentId", partialErr.PaymentID),
			zap.String("productId", partialErr.ProductID),
			zap.String("size", partialErr.Size),
		)
		httpx.WriteError(ctx, w, httpx.NewError("partial_fulfillment", "payment was started but stock could not be reserved; the payment will be reconciled", http.StatusConflict).
			WithDetails(map[string]any{"orderId": partialErr.OrderID, "productId": partialErr.ProductID, "size": partialErr.Size}))
	case errors.As(err, &stockErr):
		httpx.WriteError(ctx, w, httpx.NewError("insufficient_stock", stockErr.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"productId": stockErr.ProductID, "size": stockErr.Size}))
	case errors.As(err, &providerErr):
		requestctx.Logger(ctx).Warn("payment provider call failed", zap.Error(err))
		apiErr := httpx.NewError("payment_provider_unavailable", "payment provider unavailable; retry later", http.StatusBadGateway)
		if providerErr.Retryable() {
			apiErr = apiErr.WithRetryAfter(providerRetryAfter)
		}
		httpx.WriteError(ctx, w, apiErr)
	case errors.Is(err, payments.ErrSignature):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_signature", "signature verification failed", http.StatusBadRequest))
	case errors.Is(err, payments.ErrCodLimitExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("cod_limit_exceeded", err.Error(), http.StatusBadRequest))
	case errors.Is(err, payments.ErrUnsupportedMethod):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_payment_method", "payment method is not available", http.StatusBadRequest))
	case errors.Is(err, payments.ErrUnsupportedOperation):
		httpx.WriteError(ctx, w, httpx.NewError("unsupported_operation", err.Error(), http.StatusBadRequest))
	case errors.Is(err, payments.ErrPaymentNotCompleted):
		httpx.WriteError(ctx, w, httpx.NewError("payment_not_completed", "payment has not completed", http.StatusConflict))
	case errors.Is(err, payments.ErrPaymentMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("payment_mismatch", "payment does not match order", http.StatusConflict))
	case errors.Is(err, services.ErrEmptyCart):
		httpx.WriteError(ctx, w, httpx.NewError("empty_cart", "cart is empty", http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput),
		errors.Is(err, services.ErrCartInvalidInput),
		errors.Is(err, services.ErrProductInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("order_not_found", "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrProductNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("product_not_found", "product not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCartItemNotFound):
		httpx.WriteError(ctx, w, httpx.NewError("cart_item_not_found", "item not found in cart", http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError("order_conflict", err.Error(), http.StatusConflict))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError("timeout", "request timed out", http.StatusGatewayTimeout))
	default:
		requestctx.Logger(ctx).Error("unhandled service error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError("internal_error", "internal server error", http.StatusInternalServerError))
	}
}
