package postgres

import (
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
)

type lineRecord struct {
	ProductID string  `json:"productId"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"price"`
}

type addressRecord struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
}

type paymentRecord struct {
	Provider      string     `json:"provider,omitempty"`
	PaymentID     string     `json:"paymentId,omitempty"`
	TransactionID string     `json:"transactionId,omitempty"`
	Signature     string     `json:"signature,omitempty"`
	Currency      string     `json:"currency,omitempty"`
	Amount        int64      `json:"amount,omitempty"`
	PaidAt        *time.Time `json:"paidAt,omitempty"`
	FailedAt      *time.Time `json:"failedAt,omitempty"`
	FailureReason string     `json:"failureReason,omitempty"`
	RefundID      string     `json:"refundId,omitempty"`
	RefundStatus  string     `json:"refundStatus,omitempty"`
	RefundReason  string     `json:"refundReason,omitempty"`
	RefundedAt    *time.Time `json:"refundedAt,omitempty"`

	// RefundRequestedAt marks a provider refund in flight.
	RefundRequestedAt *time.Time `json:"refundRequestedAt,omitempty"`
}

func cartLines(items []domain.CartItem) []lineRecord {
	out := make([]lineRecord, 0, len(items))
	for _, item := range items {
		out = append(out, lineRecord{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return out
}

func orderLines(items []domain.OrderItem) []lineRecord {
	out := make([]lineRecord, 0, len(items))
	for _, item := range items {
		out = append(out, lineRecord{ProductID: item.ProductID, Size: item.Size, Quantity: item.Quantity, UnitPrice: item.UnitPrice})
	}
	return out
}

func toCartItems(lines []lineRecord) []domain.CartItem {
	out := make([]domain.CartItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.CartItem{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

func toOrderItems(lines []lineRecord) []domain.OrderItem {
	out := make([]domain.OrderItem, 0, len(lines))
	for _, l := range lines {
		out = append(out, domain.OrderItem{ProductID: l.ProductID, Size: l.Size, Quantity: l.Quantity, UnitPrice: l.UnitPrice})
	}
	return out
}

func newAddressRecord(a domain.ShippingAddress) addressRecord {
	return addressRecord(a)
}

func (a addressRecord) toDomain() domain.ShippingAddress {
	return domain.ShippingAddress(a)
}

func newPaymentRecord(p domain.PaymentDetails) paymentRecord {
	return paymentRecord(p)
}

func (p paymentRecord) toDomain() domain.PaymentDetails {
	return domain.PaymentDetails(p)
}
