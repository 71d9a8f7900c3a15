package services

import (
	"errors"
	"fmt"

	"github.com/hanko-field/commerce-api/internal/repositories"
)

var (
	// ErrOrderInvalidInput signals the caller provided invalid data.
	ErrOrderInvalidInput = errors.New("order: invalid input")
	// ErrOrderNotFound indicates the order could not be located (or belongs to someone else).
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderConflict indicates a disallowed transition or a lost optimistic update.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrEmptyCart is returned when an order is requested from a cart without items.
	ErrEmptyCart = errors.New("order: cart is empty")

	// ErrCartInvalidInput signals a malformed cart command.
	ErrCartInvalidInput = errors.New("cart: invalid input")
	// ErrCartItemNotFound indicates the (product, size) line is not in the cart.
	ErrCartItemNotFound = errors.New("cart: item not found")

	// ErrProductInvalidInput signals a malformed product.
	ErrProductInvalidInput = errors.New("product: invalid input")
	// ErrProductNotFound indicates the product could not be located.
	ErrProductNotFound = errors.New("product: not found")
)

// InsufficientStockError names the first line that failed an availability check.
type InsufficientStockError struct {
	ProductID string
	Size      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for product %s size %s: requested %d, available %d",
		e.ProductID, e.Size, e.Requested, e.Available)
}

// PartialFulfillmentError reports that a payment was dispatched to the provider but stock
// could not be decreased afterwards. The order was not persisted and the provider payment
// needs manual reconciliation.
type PartialFulfillmentError struct {
	OrderID   string
	PaymentID string
	ProductID string
	Size      string
}

func (e *PartialFulfillmentError) Error() string {
	return fmt.Sprintf("order %s: payment %s dispatched but stock for product %s size %s could not be reserved",
		e.OrderID, e.PaymentID, e.ProductID, e.Size)
}

func mapOrderRepositoryError(err error) error {
	if err == nil {
		return nil
	}

	var repoErr repositories.RepositoryError
	if errors.As(err, &repoErr) {
		switch {
		case repoErr.IsNotFound():
			return fmt.Errorf("%w: %v", ErrOrderNotFound, err)
		case repoErr.IsConflict():
			return fmt.Errorf("%w: %v", ErrOrderConflict, err)
		case repoErr.IsUnavailable():
			return fmt.Errorf("order: repository unavailable: %w", err)
		}
	}
	return err
}

func mapProductRepositoryError(err error) error {
	if err == nil {
		return nil
	}
	if repositories.IsNotFound(err) {
		return fmt.Errorf("%w: %v", ErrProductNotFound, err)
	}
	return err
}
