package repositories

import (
	"context"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

// Registry exposes the repositories wired for the selected persistence drivers.
type Registry interface {
	Products() ProductRepository
	Carts() CartRepository
	Orders() OrderRepository
	UnitOfWork
	Close(ctx context.Context) error
}

// RepositoryError wraps low-level persistence failures with categorisation used by services.
type RepositoryError interface {
	error
	IsNotFound() bool
	IsConflict() bool
	IsUnavailable() bool
}

// UnitOfWork allows grouping repository operations in a transactional boundary when supported.
type UnitOfWork interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// ProductRepository is the catalog collaborator plus the persisted inventory ledger.
type ProductRepository interface {
	Get(ctx context.Context, productID string) (domain.Product, error)
	Save(ctx context.Context, product domain.Product) (domain.Product, error)
	// DecreaseStock atomically subtracts qty when stock >= qty. It returns false without
	// mutating anything when stock is insufficient or the size is absent.
	DecreaseStock(ctx context.Context, productID, size string, qty int) (bool, error)
	// RestoreStock adds qty back. A missing product or size yields a not-found RepositoryError.
	RestoreStock(ctx context.Context, productID, size string, qty int) error
}

// CartRepository persists the single cart owned by each user.
type CartRepository interface {
	// GetCart returns an empty cart when the user has none yet.
	GetCart(ctx context.Context, userID string) (domain.Cart, error)
	SaveCart(ctx context.Context, cart domain.Cart) (domain.Cart, error)
	ClearCart(ctx context.Context, userID string) error
}

// OrderRepository persists orders. Update is optimistic: the stored version must equal
// order.Version, and the persisted version is incremented.
type OrderRepository interface {
	Insert(ctx context.Context, order domain.Order) error
	Update(ctx context.Context, order domain.Order) (domain.Order, error)
	FindByID(ctx context.Context, orderID string) (domain.Order, error)
	FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error)
	List(ctx context.Context, filter OrderListFilter) (domain.Page[domain.Order], error)
}

// OrderListFilter narrows order listings. Results are always sorted newest first.
type OrderListFilter struct {
	UserID        string
	OrderStatus   domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	PaymentMethod domain.PaymentMethod
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	// Offset and Limit select a page; Limit <= 0 returns everything after Offset.
	Offset int
	Limit  int
}

// Matches reports whether the order satisfies every populated filter field.
func (f OrderListFilter) Matches(order domain.Order) bool {
	if f.UserID != "" && order.UserID != f.UserID {
		return false
	}
	if f.OrderStatus != "" && order.OrderStatus != f.OrderStatus {
		return false
	}
	if f.PaymentStatus != "" && order.PaymentStatus != f.PaymentStatus {
		return false
	}
	if f.PaymentMethod != "" && order.PaymentMethod != f.PaymentMethod {
		return false
	}
	if f.CreatedFrom != nil && order.CreatedAt.Before(*f.CreatedFrom) {
		return false
	}
	if f.CreatedTo != nil && order.CreatedAt.After(*f.CreatedTo) {
		return false
	}
	return true
}
