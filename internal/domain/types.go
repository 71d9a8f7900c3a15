package domain

import (
	"math"
	"strings"
	"time"
)

// PaymentMethod identifies the settlement channel selected at checkout.
type PaymentMethod string

const (
	PaymentMethodCOD      PaymentMethod = "cod"
	PaymentMethodCard     PaymentMethod = "card"
	PaymentMethodRegional PaymentMethod = "regional"
)

// PaymentStatus tracks settlement progress for an order.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

// OrderStatus tracks fulfilment progress for an order.
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

// ParsePaymentMethod normalises user input into a known payment method.
func ParsePaymentMethod(value string) (PaymentMethod, bool) {
	switch PaymentMethod(strings.ToLower(strings.TrimSpace(value))) {
	case PaymentMethodCOD:
		return PaymentMethodCOD, true
	case PaymentMethodCard:
		return PaymentMethodCard, true
	case PaymentMethodRegional:
		return PaymentMethodRegional, true
	}
	return "", false
}

// ParsePaymentStatus normalises user input into a known payment status.
func ParsePaymentStatus(value string) (PaymentStatus, bool) {
	switch PaymentStatus(strings.ToLower(strings.TrimSpace(value))) {
	case PaymentStatusPending:
		return PaymentStatusPending, true
	case PaymentStatusPaid:
		return PaymentStatusPaid, true
	case PaymentStatusFailed:
		return PaymentStatusFailed, true
	case PaymentStatusRefunded:
		return PaymentStatusRefunded, true
	}
	return "", false
}

// ParseOrderStatus normalises user input into a known order status.
func ParseOrderStatus(value string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToLower(strings.TrimSpace(value))) {
	case OrderStatusPending:
		return OrderStatusPending, true
	case OrderStatusProcessing:
		return OrderStatusProcessing, true
	case OrderStatusShipped:
		return OrderStatusShipped, true
	case OrderStatusDelivered:
		return OrderStatusDelivered, true
	case OrderStatusCancelled:
		return OrderStatusCancelled, true
	}
	return "", false
}

// Product is the catalog view consumed by ordering: price plus per-size stock.
type Product struct {
	ID        string
	Name      string
	Price     float64
	SizeStock []SizeStock
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SizeStock is the stock counter for one size of a product.
type SizeStock struct {
	Size  string
	Stock int
}

// CartItem is a (product, size) line with the price captured when it was added.
type CartItem struct {
	ProductID string
	Size      string
	Quantity  int
	UnitPrice float64
}

// Subtotal returns quantity multiplied by the captured unit price.
func (i CartItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// Cart is owned by exactly one user.
type Cart struct {
	UserID    string
	Items     []CartItem
	UpdatedAt time.Time
}

// ShippingAddress is the delivery destination captured on the order.
type ShippingAddress struct {
	Name        string
	PhoneNumber string
	Street      string
	City        string
	State       string
	PostalCode  string
}

// OrderItem is an immutable snapshot of a cart line at order creation.
type OrderItem struct {
	ProductID string
	Size      string
	Quantity  int
	UnitPrice float64
}

// Subtotal returns quantity multiplied by the unit price.
func (i OrderItem) Subtotal() float64 {
	return float64(i.Quantity) * i.UnitPrice
}

// PaymentDetails collects provider references populated as settlement progresses.
type PaymentDetails struct {
	Provider      string
	PaymentID     string
	TransactionID string
	Signature     string
	Currency      string
	Amount        int64
	PaidAt        *time.Time
	FailedAt      *time.Time
	FailureReason string
	RefundID      string
	RefundStatus  string
	RefundReason  string
	RefundedAt    *time.Time

	// RefundRequestedAt is set while a provider refund is in flight.
	RefundRequestedAt *time.Time
}

// Order is the durable record created from a cart. Orders are never deleted.
type Order struct {
	ID              string
	UserID          string
	Items           []OrderItem
	TotalAmount     float64
	ShippingAddress ShippingAddress
	PaymentMethod   PaymentMethod
	PaymentStatus   PaymentStatus
	OrderStatus     OrderStatus
	PaymentDetails  PaymentDetails
	// StockReleased is true while the order's quantities are back in stock (cancelled cod).
	StockReleased   bool
	Version         int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// InitialStatuses returns the payment/order status pair a new order starts in.
func InitialStatuses(method PaymentMethod) (PaymentStatus, OrderStatus) {
	if method == PaymentMethodCOD {
		// goods ship before the cash is collected
		return PaymentStatusPending, OrderStatusProcessing
	}
	return PaymentStatusPending, OrderStatusPending
}

// RoundAmount rounds a major-unit amount to two decimals.
func RoundAmount(amount float64) float64 {
	return math.Round(amount*100) / 100
}

// MinorUnits converts a major-unit amount into provider minor units.
func MinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// Clone returns a deep copy of the order.
func (o Order) Clone() Order {
	dup := o
	if o.Items != nil {
		dup.Items = make([]OrderItem, len(o.Items))
		copy(dup.Items, o.Items)
	}
	dup.PaymentDetails.PaidAt = cloneTime(o.PaymentDetails.PaidAt)
	dup.PaymentDetails.FailedAt = cloneTime(o.PaymentDetails.FailedAt)
	dup.PaymentDetails.RefundedAt = cloneTime(o.PaymentDetails.RefundedAt)
	dup.PaymentDetails.RefundRequestedAt = cloneTime(o.PaymentDetails.RefundRequestedAt)
	return dup
}

// Clone returns a deep copy of the product.
func (p Product) Clone() Product {
	dup := p
	if p.SizeStock != nil {
		dup.SizeStock = make([]SizeStock, len(p.SizeStock))
		copy(dup.SizeStock, p.SizeStock)
	}
	return dup
}

// Clone returns a deep copy of the cart.
func (c Cart) Clone() Cart {
	dup := c
	if c.Items != nil {
		dup.Items = make([]CartItem, len(c.Items))
		copy(dup.Items, c.Items)
	}
	return dup
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// Page is an offset page of results with the total count across all pages.
type Page[T any] struct {
	Items []T
	Total int
}
