package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/platform/events"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

func (s *orderService) ConfirmCodPayment(ctx context.Context, cmd ConfirmCodCommand) (Order, error) {
	order, err := s.loadOwnedOrder(ctx, cmd.OrderID, cmd.ActorID, cmd.IsAdmin)
	if err != nil {
		return Order{}, err
	}

	changed := false
	saved, err := s.updateWithRetry(ctx, order, func(current *Order) error {
		if current.PaymentMethod != domain.PaymentMethodCOD {
			return fmt.Errorf("%w: order is not cash on delivery", ErrOrderConflict)
		}
		if current.PaymentStatus == domain.PaymentStatusPaid {
			return errNoChange
		}
		if current.OrderStatus != domain.OrderStatusDelivered {
			return fmt.Errorf("%w: cash on delivery is collected only after delivery", ErrOrderConflict)
		}
		paidAt := s.now()
		current.PaymentStatus = domain.PaymentStatusPaid
		current.PaymentDetails.PaidAt = &paidAt
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	if changed {
		s.logger(ctx, "order.paid", map[string]any{
			"orderId": saved.ID,
			"method":  string(saved.PaymentMethod),
			"source":  "cod_confirmation",
			"actorId": cmd.ActorID,
		})
		s.publishEvent(ctx, events.TypeOrderPaid, saved, map[string]any{
			"paymentMethod": string(saved.PaymentMethod),
			"source":        "cod_confirmation",
		})
	}
	return saved, nil
}

func (s *orderService) VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (Order, error) {
	if cmd.Method != domain.PaymentMethodCard && cmd.Method != domain.PaymentMethodRegional {
		return Order{}, fmt.Errorf("%w: %q payments are not verified by the client", ErrOrderInvalidInput, cmd.Method)
	}
	order, err := s.loadOwnedOrder(ctx, cmd.OrderID, cmd.UserID, cmd.IsAdmin)
	if err != nil {
		return Order{}, err
	}
	if order.PaymentMethod != cmd.Method {
		return Order{}, fmt.Errorf("%w: order %s is paid by %s", ErrOrderConflict, order.ID, order.PaymentMethod)
	}

	// redelivery on a paid order is acknowledged without asking the provider again
	switch order.PaymentStatus {
	case domain.PaymentStatusPaid:
		return order, nil
	case domain.PaymentStatusRefunded:
		return Order{}, fmt.Errorf("%w: order %s was refunded", ErrOrderConflict, order.ID)
	}

	confirmation, err := s.payments.VerifyClientConfirmation(ctx, order, cmd.Fields)
	if err != nil {
		s.logger(ctx, "order.verify.rejected", map[string]any{
			"orderId": order.ID,
			"method":  string(order.PaymentMethod),
			"error":   err,
		})
		return Order{}, err
	}

	saved, _, err := s.markPaid(ctx, order, confirmation, "client_verification")
	return saved, err
}

func (s *orderService) HandleWebhook(ctx context.Context, method domain.PaymentMethod, payload []byte, headers http.Header) (WebhookResult, error) {
	event, err := s.payments.VerifyWebhook(ctx, method, payload, headers)
	if err != nil {
		s.logger(ctx, "order.webhook.rejected", map[string]any{
			"method": string(method),
			"error":  err,
		})
		return WebhookResult{}, err
	}

	result := WebhookResult{EventType: event.Type}
	if event.Kind == payments.WebhookIgnored {
		return result, nil
	}

	order, err := s.findWebhookOrder(ctx, event)
	if err != nil {
		s.logger(ctx, "order.webhook.unmatched", map[string]any{
			"method":    string(method),
			"eventId":   event.EventID,
			"orderId":   event.OrderID,
			"paymentId": event.PaymentID,
			"error":     err,
		})
		return WebhookResult{}, err
	}
	result.OrderID = order.ID
	if order.PaymentMethod != method {
		return WebhookResult{}, fmt.Errorf("%w: order %s is paid by %s", ErrOrderConflict, order.ID, order.PaymentMethod)
	}

	switch event.Kind {
	case payments.WebhookConfirmed:
		_, applied, err := s.markPaid(ctx, order, payments.Confirmation{
			PaymentID:     event.PaymentID,
			TransactionID: event.TransactionID,
			Amount:        event.Amount,
			Currency:      event.Currency,
		}, "webhook")
		if err != nil {
			return WebhookResult{}, err
		}
		result.Applied = applied
	case payments.WebhookFailed:
		applied, err := s.markFailed(ctx, order, event.FailureReason)
		if err != nil {
			return WebhookResult{}, err
		}
		result.Applied = applied
	}
	return result, nil
}

// RefundOrder claims the refund on the order before calling the provider, so concurrent
// requests cannot both move money. A claim older than refundClaimTTL is treated as
// abandoned.
func (s *orderService) RefundOrder(ctx context.Context, cmd RefundCommand) (Order, error) {
	order, err := s.loadOwnedOrder(ctx, cmd.OrderID, cmd.ActorID, cmd.IsAdmin)
	if err != nil {
		return Order{}, err
	}
	if err := refundable(order); err != nil {
		return Order{}, err
	}

	claimed, err := s.updateWithRetry(ctx, order, func(current *Order) error {
		if err := refundable(*current); err != nil {
			return err
		}
		now := s.now()
		if at := current.PaymentDetails.RefundRequestedAt; at != nil && now.Sub(*at) < refundClaimTTL {
			return fmt.Errorf("%w: refund for order %s is already in progress", ErrOrderConflict, current.ID)
		}
		current.PaymentDetails.RefundRequestedAt = &now
		return nil
	})
	if err != nil {
		return Order{}, err
	}

	reason := strings.TrimSpace(cmd.Reason)
	refund, err := s.payments.Refund(ctx, claimed, reason)
	if err != nil {
		s.logger(ctx, "order.refund.failed", map[string]any{
			"orderId": claimed.ID,
			"method":  string(claimed.PaymentMethod),
			"error":   err,
		})
		s.releaseRefundClaim(ctx, claimed)
		return Order{}, err
	}

	saved, err := s.updateWithRetry(ctx, claimed, func(current *Order) error {
		if err := refundable(*current); err != nil {
			return err
		}
		refundedAt := s.now()
		current.PaymentStatus = domain.PaymentStatusRefunded
		current.PaymentDetails.RefundID = refund.RefundID
		current.PaymentDetails.RefundStatus = refund.Status
		current.PaymentDetails.RefundReason = reason
		current.PaymentDetails.RefundedAt = &refundedAt
		current.PaymentDetails.RefundRequestedAt = nil
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.refund.unrecorded", map[string]any{
			"level":    "error",
			"orderId":  claimed.ID,
			"refundId": refund.RefundID,
			"error":    err,
		})
		return Order{}, err
	}

	s.logger(ctx, "order.refunded", map[string]any{
		"orderId":  saved.ID,
		"refundId": refund.RefundID,
		"status":   refund.Status,
		"actorId":  cmd.ActorID,
	})
	s.publishEvent(ctx, events.TypeOrderRefunded, saved, map[string]any{
		"refundId":     refund.RefundID,
		"refundStatus": refund.Status,
		"reason":       reason,
	})
	return saved, nil
}

// releaseRefundClaim clears the in-flight marker after a failed provider call so the refund
// can be retried at once.
func (s *orderService) releaseRefundClaim(ctx context.Context, order Order) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stockRestoreTimeout)
	defer cancel()
	_, err := s.updateWithRetry(ctx, order, func(current *Order) error {
		if current.PaymentDetails.RefundRequestedAt == nil {
			return errNoChange
		}
		current.PaymentDetails.RefundRequestedAt = nil
		return nil
	})
	if err != nil {
		s.logger(ctx, "order.refund.claim_release_failed", map[string]any{
			"orderId": order.ID,
			"error":   err,
		})
	}
}

// markPaid applies a verified confirmation. The first confirmation to persist wins; later
// ones for the same order are acknowledged without changes. Money captured for a cancelled
// order is recorded as paid, the order stays cancelled and is flagged for reconciliation.
func (s *orderService) markPaid(ctx context.Context, order Order, confirmation payments.Confirmation, source string) (Order, bool, error) {
	if expected := order.PaymentDetails.PaymentID; expected != "" && confirmation.PaymentID != "" && confirmation.PaymentID != expected {
		return Order{}, false, fmt.Errorf("%w: %w", ErrOrderConflict, payments.ErrPaymentMismatch)
	}
	if expected := order.PaymentDetails.Amount; expected != 0 && confirmation.Amount != 0 && confirmation.Amount != expected {
		s.logger(ctx, "order.payment.amount_mismatch", map[string]any{
			"level":    "error",
			"orderId":  order.ID,
			"expected": expected,
			"received": confirmation.Amount,
			"source":   source,
		})
		return Order{}, false, fmt.Errorf("%w: %w", ErrOrderConflict, payments.ErrPaymentMismatch)
	}

	changed, cancelled := false, false
	saved, err := s.updateWithRetry(ctx, order, func(current *Order) error {
		switch current.PaymentStatus {
		case domain.PaymentStatusPaid:
			return errNoChange
		case domain.PaymentStatusRefunded:
			return fmt.Errorf("%w: order %s was refunded", ErrOrderConflict, current.ID)
		}

		paidAt := s.now()
		current.PaymentStatus = domain.PaymentStatusPaid
		cancelled = current.OrderStatus == domain.OrderStatusCancelled
		if current.OrderStatus == domain.OrderStatusPending {
			current.OrderStatus = domain.OrderStatusProcessing
		}
		details := &current.PaymentDetails
		if confirmation.PaymentID != "" {
			details.PaymentID = confirmation.PaymentID
		}
		if confirmation.TransactionID != "" {
			details.TransactionID = confirmation.TransactionID
		}
		if confirmation.Signature != "" {
			details.Signature = confirmation.Signature
		}
		if confirmation.Currency != "" {
			details.Currency = confirmation.Currency
		}
		if confirmation.Amount != 0 {
			details.Amount = confirmation.Amount
		}
		details.PaidAt = &paidAt
		details.FailedAt = nil
		details.FailureReason = ""
		changed = true
		return nil
	})
	if err != nil {
		return Order{}, false, err
	}
	if !changed {
		return saved, false, nil
	}

	if cancelled {
		s.logger(ctx, "order.payment.reconciliation_required", map[string]any{
			"level":         "error",
			"orderId":       saved.ID,
			"userId":        saved.UserID,
			"method":        string(saved.PaymentMethod),
			"source":        source,
			"paymentId":     saved.PaymentDetails.PaymentID,
			"transactionId": saved.PaymentDetails.TransactionID,
			"amount":        saved.PaymentDetails.Amount,
		})
		s.publishEvent(ctx, events.TypeOrderReconciliationRequired, saved, map[string]any{
			"reason":        "paid_after_cancel",
			"paymentId":     saved.PaymentDetails.PaymentID,
			"transactionId": saved.PaymentDetails.TransactionID,
			"provider":      saved.PaymentDetails.Provider,
			"amount":        saved.PaymentDetails.Amount,
			"currency":      saved.PaymentDetails.Currency,
		})
		return saved, true, nil
	}

	s.logger(ctx, "order.paid", map[string]any{
		"orderId":       saved.ID,
		"method":        string(saved.PaymentMethod),
		"source":        source,
		"transactionId": saved.PaymentDetails.TransactionID,
	})
	s.publishEvent(ctx, events.TypeOrderPaid, saved, map[string]any{
		"paymentMethod": string(saved.PaymentMethod),
		"source":        source,
		"transactionId": saved.PaymentDetails.TransactionID,
		"amount":        saved.PaymentDetails.Amount,
		"currency":      saved.PaymentDetails.Currency,
	})
	return saved, true, nil
}

// markFailed records a failed attempt on an unsettled order. Failures reported after the
// order settled are ignored.
func (s *orderService) markFailed(ctx context.Context, order Order, reason string) (bool, error) {
	changed := false
	saved, err := s.updateWithRetry(ctx, order, func(current *Order) error {
		if current.PaymentStatus != domain.PaymentStatusPending {
			return errNoChange
		}
		failedAt := s.now()
		current.PaymentStatus = domain.PaymentStatusFailed
		current.PaymentDetails.FailedAt = &failedAt
		current.PaymentDetails.FailureReason = reason
		changed = true
		return nil
	})
	if err != nil {
		return false, err
	}

	if changed {
		s.logger(ctx, "order.payment_failed", map[string]any{
			"level":   "warn",
			"orderId": saved.ID,
			"reason":  reason,
		})
		s.publishEvent(ctx, events.TypeOrderPaymentFailed, saved, map[string]any{
			"paymentMethod": string(saved.PaymentMethod),
			"reason":        reason,
		})
	}
	return changed, nil
}

// findWebhookOrder prefers the order id carried in provider metadata and falls back to the
// provider payment reference.
func (s *orderService) findWebhookOrder(ctx context.Context, event payments.WebhookEvent) (Order, error) {
	if orderID := strings.TrimSpace(event.OrderID); orderID != "" {
		order, err := s.orders.FindByID(ctx, orderID)
		if err == nil {
			if stored := order.PaymentDetails.PaymentID; stored != "" && event.PaymentID != "" && stored != event.PaymentID {
				return Order{}, fmt.Errorf("%w: %w", ErrOrderConflict, payments.ErrPaymentMismatch)
			}
			return order, nil
		}
		if !repositories.IsNotFound(err) {
			return Order{}, mapOrderRepositoryError(err)
		}
	}
	if strings.TrimSpace(event.PaymentID) == "" {
		return Order{}, fmt.Errorf("%w: event carries no order reference", ErrOrderNotFound)
	}
	order, err := s.orders.FindByPaymentID(ctx, event.PaymentID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	return order, nil
}

func refundable(order Order) error {
	if order.PaymentMethod != domain.PaymentMethodCard && order.PaymentMethod != domain.PaymentMethodRegional {
		return fmt.Errorf("%w: %s orders are not refunded through a provider", ErrOrderConflict, order.PaymentMethod)
	}
	switch order.PaymentStatus {
	case domain.PaymentStatusPaid:
		return nil
	case domain.PaymentStatusRefunded:
		return fmt.Errorf("%w: order %s was already refunded", ErrOrderConflict, order.ID)
	default:
		return fmt.Errorf("%w: order %s is not paid", ErrOrderConflict, order.ID)
	}
}
