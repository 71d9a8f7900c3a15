package services

import (
	"context"
	"net/http"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/platform/pagination"
)

// Type aliases expose domain models to the services package without reversing dependency direction.
type (
	Order           = domain.Order
	OrderItem       = domain.OrderItem
	Cart            = domain.Cart
	CartItem        = domain.CartItem
	Product         = domain.Product
	ShippingAddress = domain.ShippingAddress
)

// OrderService converts carts into orders and reconciles their settlement.
type OrderService interface {
	CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error)
	GetOrder(ctx context.Context, orderID, actorID string, isAdmin bool) (Order, error)
	ListUserOrders(ctx context.Context, query OrderListQuery) (OrderPage, error)
	ListAllOrders(ctx context.Context, query OrderListQuery) (OrderPage, error)
	UpdateOrderStatus(ctx context.Context, cmd UpdateStatusCommand) (Order, error)
	ConfirmCodPayment(ctx context.Context, cmd ConfirmCodCommand) (Order, error)
	VerifyPayment(ctx context.Context, cmd VerifyPaymentCommand) (Order, error)
	HandleWebhook(ctx context.Context, method domain.PaymentMethod, payload []byte, headers http.Header) (WebhookResult, error)
	RefundOrder(ctx context.Context, cmd RefundCommand) (Order, error)
}

// CartService manages the single cart owned by each user.
type CartService interface {
	GetCart(ctx context.Context, userID string) (Cart, error)
	AddItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
	UpdateItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
	RemoveItem(ctx context.Context, cmd CartItemCommand) (Cart, error)
}

// CatalogService is the product collaborator used by ordering.
type CatalogService interface {
	GetProduct(ctx context.Context, productID string) (Product, error)
	SaveProduct(ctx context.Context, product Product) (Product, error)
}

// PaymentGateways is the slice of payments.Manager the order service depends on.
type PaymentGateways interface {
	Initiate(ctx context.Context, method domain.PaymentMethod, req payments.InitiateRequest) (payments.Handle, error)
	VerifyClientConfirmation(ctx context.Context, order domain.Order, confirmation payments.ClientConfirmation) (payments.Confirmation, error)
	VerifyWebhook(ctx context.Context, method domain.PaymentMethod, payload []byte, headers http.Header) (payments.WebhookEvent, error)
	Refund(ctx context.Context, order domain.Order, reason string) (payments.RefundResult, error)
}

// CreateOrderCommand places an order from the user's current cart.
type CreateOrderCommand struct {
	UserID          string
	ShippingAddress ShippingAddress
	PaymentMethod   domain.PaymentMethod
}

// CreateOrderResult carries the persisted order and, for provider-backed methods, the
// handle the client completes payment with. Payment is nil for cash on delivery.
type CreateOrderResult struct {
	Order   Order
	Payment *payments.Handle
}

// OrderListQuery filters an order listing. UserID is forced for user listings.
type OrderListQuery struct {
	UserID        string
	OrderStatus   domain.OrderStatus
	PaymentStatus domain.PaymentStatus
	PaymentMethod domain.PaymentMethod
	CreatedFrom   *time.Time
	CreatedTo     *time.Time
	Page          pagination.Page
}

// OrderPage is a numbered page of orders, newest first.
type OrderPage struct {
	Orders      []Order
	CurrentPage int
	TotalPages  int
	TotalOrders int
}

// UpdateStatusCommand is an admin fulfilment status change.
type UpdateStatusCommand struct {
	OrderID string
	Status  domain.OrderStatus
	ActorID string
}

// ConfirmCodCommand marks a delivered cash-on-delivery order as paid.
type ConfirmCodCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
}

// VerifyPaymentCommand carries a client-side payment confirmation.
type VerifyPaymentCommand struct {
	Method  domain.PaymentMethod
	OrderID string
	UserID  string
	IsAdmin bool
	Fields  payments.ClientConfirmation
}

// WebhookResult describes how a verified provider callback was applied.
type WebhookResult struct {
	EventType string
	OrderID   string
	Applied   bool
}

// RefundCommand requests a full refund of a paid order.
type RefundCommand struct {
	OrderID string
	ActorID string
	IsAdmin bool
	Reason  string
}

// CartItemCommand addresses one (product, size) line of the actor's cart.
type CartItemCommand struct {
	UserID    string
	ProductID string
	Size      string
	Quantity  int
}
