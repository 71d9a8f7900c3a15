package firestore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	pfirestore "github.com/hanko-field/commerce-api/internal/platform/firestore"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const orderCollection = "orders"

// OrderRepository persists orders as top-level documents. Listing relies on composite
// indexes over (userId, createdAt desc) plus each filter field.
type OrderRepository struct {
	provider *pfirestore.Provider
	orders   *pfirestore.Collection[orderDocument]
}

// NewOrderRepository constructs a Firestore-backed order repository.
func NewOrderRepository(provider *pfirestore.Provider) (*OrderRepository, error) {
	if provider == nil {
		return nil, errors.New("order repository requires firestore provider")
	}
	return &OrderRepository{
		provider: provider,
		orders:   pfirestore.NewCollection[orderDocument](provider, orderCollection),
	}, nil
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	if order.Version == 0 {
		order.Version = 1
	}
	return r.orders.Create(ctx, order.ID, newOrderDocument(order))
}

func (r *OrderRepository) Update(ctx context.Context, order domain.Order) (domain.Order, error) {
	var saved domain.Order
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		current, err := r.orders.Get(ctx, order.ID)
		if err != nil {
			return err
		}
		if current.Version != order.Version {
			return pfirestore.WrapError("orders.update",
				fmt.Errorf("order %s at version %d, update expected %d: %w", order.ID, current.Version, order.Version, pfirestore.ErrVersionMismatch))
		}
		next := order.Clone()
		next.Version++
		if err := r.orders.Set(ctx, order.ID, newOrderDocument(next)); err != nil {
			return err
		}
		saved = next
		return nil
	})
	if err != nil {
		return domain.Order{}, err
	}
	return saved, nil
}

func (r *OrderRepository) FindByID(ctx context.Context, orderID string) (domain.Order, error) {
	doc, err := r.orders.Get(ctx, orderID)
	if err != nil {
		return domain.Order{}, err
	}
	return doc.toDomain(), nil
}

func (r *OrderRepository) FindByPaymentID(ctx context.Context, paymentID string) (domain.Order, error) {
	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		return q.Where("paymentDetails.paymentId", "==", paymentID).Limit(1)
	})
	if err != nil {
		return domain.Order{}, err
	}
	if len(docs) == 0 {
		return domain.Order{}, pfirestore.NotFound("orders.get_by_payment", "no order for payment "+paymentID)
	}
	return docs[0].toDomain(), nil
}

func (r *OrderRepository) List(ctx context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	build := func(q firestore.Query) firestore.Query {
		if filter.UserID != "" {
			q = q.Where("userId", "==", filter.UserID)
		}
		if filter.OrderStatus != "" {
			q = q.Where("orderStatus", "==", string(filter.OrderStatus))
		}
		if filter.PaymentStatus != "" {
			q = q.Where("paymentStatus", "==", string(filter.PaymentStatus))
		}
		if filter.PaymentMethod != "" {
			q = q.Where("paymentMethod", "==", string(filter.PaymentMethod))
		}
		if filter.CreatedFrom != nil {
			q = q.Where("createdAt", ">=", filter.CreatedFrom.UTC())
		}
		if filter.CreatedTo != nil {
			q = q.Where("createdAt", "<=", filter.CreatedTo.UTC())
		}
		return q
	}

	coll, err := r.orders.Ref(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}
	countQuery := build(coll.Query)
	countResult, err := countQuery.NewAggregationQuery().WithCount("total").Get(ctx)
	if err != nil {
		return domain.Page[domain.Order]{}, pfirestore.WrapError("orders.count", err)
	}
	total, err := aggregateCount(countResult)
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	docs, err := r.orders.Query(ctx, func(q firestore.Query) firestore.Query {
		q = build(q).OrderBy("createdAt", firestore.Desc)
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
		if filter.Limit > 0 {
			q = q.Limit(filter.Limit)
		}
		return q
	})
	if err != nil {
		return domain.Page[domain.Order]{}, err
	}

	items := make([]domain.Order, 0, len(docs))
	for _, doc := range docs {
		items = append(items, doc.toDomain())
	}
	return domain.Page[domain.Order]{Items: items, Total: total}, nil
}

func aggregateCount(result firestore.AggregationResult) (int, error) {
	raw, ok := result["total"]
	if !ok {
		return 0, errors.New("orders.count: missing aggregation result")
	}
	switch v := raw.(type) {
	case int64:
		return int(v), nil
	case interface{ GetIntegerValue() int64 }:
		return int(v.GetIntegerValue()), nil
	}
	return 0, fmt.Errorf("orders.count: unexpected aggregation type %T", raw)
}

type orderDocument struct {
	ID              string                 `firestore:"id"`
	UserID          string                 `firestore:"userId"`
	Items           []orderItemDocument    `firestore:"items"`
	TotalAmount     float64                `firestore:"totalAmount"`
	ShippingAddress shippingAddressDoc     `firestore:"shippingAddress"`
	PaymentMethod   string                 `firestore:"paymentMethod"`
	PaymentStatus   string                 `firestore:"paymentStatus"`
	OrderStatus     string                 `firestore:"orderStatus"`
	PaymentDetails  paymentDetailsDocument `firestore:"paymentDetails"`
	StockReleased   bool                   `firestore:"stockReleased"`
	Version         int64                  `firestore:"version"`
	CreatedAt       time.Time              `firestore:"createdAt"`
	UpdatedAt       time.Time              `firestore:"updatedAt"`
}

type orderItemDocument struct {
	ProductID string  `firestore:"productId"`
	Size      string  `firestore:"size"`
	Quantity  int     `firestore:"quantity"`
	UnitPrice float64 `firestore:"price"`
}

type shippingAddressDoc struct {
	Name        string `firestore:"name"`
	PhoneNumber string `firestore:"phoneNumber"`
	Street      string `firestore:"street"`
	City        string `firestore:"city"`
	State       string `firestore:"state"`
	PostalCode  string `firestore:"postalCode"`
}

type paymentDetailsDocument struct {
	Provider      string     `firestore:"provider,omitempty"`
	PaymentID     string     `firestore:"paymentId,omitempty"`
	TransactionID string     `firestore:"transactionId,omitempty"`
	Signature     string     `firestore:"signature,omitempty"`
	Currency      string     `firestore:"currency,omitempty"`
	Amount        int64      `firestore:"amount,omitempty"`
	PaidAt        *time.Time `firestore:"paidAt,omitempty"`
	FailedAt      *time.Time `firestore:"failedAt,omitempty"`
	FailureReason string     `firestore:"failureReason,omitempty"`
	RefundID      string     `firestore:"refundId,omitempty"`
	RefundStatus  string     `firestore:"refundStatus,omitempty"`
	RefundReason  string     `firestore:"refundReason,omitempty"`
	RefundedAt    *time.Time `firestore:"refundedAt,omitempty"`

	RefundRequestedAt *time.Time `firestore:"refundRequestedAt,omitempty"`
}

func newOrderDocument(order domain.Order) orderDocument {
	doc := orderDocument{
		ID:          order.ID,
		UserID:      order.UserID,
		Items:       make([]orderItemDocument, 0, len(order.Items)),
		TotalAmount: order.TotalAmount,
		ShippingAddress: shippingAddressDoc{
			Name:        order.ShippingAddress.Name,
			PhoneNumber: order.ShippingAddress.PhoneNumber,
			Street:      order.ShippingAddress.Street,
			City:        order.ShippingAddress.City,
			State:       order.ShippingAddress.State,
			PostalCode:  order.ShippingAddress.PostalCode,
		},
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
		PaymentDetails: paymentDetailsDocument{
			Provider:      order.PaymentDetails.Provider,
			PaymentID:     order.PaymentDetails.PaymentID,
			TransactionID: order.PaymentDetails.TransactionID,
			Signature:     order.PaymentDetails.Signature,
			Currency:      order.PaymentDetails.Currency,
			Amount:        order.PaymentDetails.Amount,
			PaidAt:        order.PaymentDetails.PaidAt,
			FailedAt:      order.PaymentDetails.FailedAt,
			FailureReason: order.PaymentDetails.FailureReason,
			RefundID:      order.PaymentDetails.RefundID,
			RefundStatus:  order.PaymentDetails.RefundStatus,
			RefundReason:  order.PaymentDetails.RefundReason,
			RefundedAt:    order.PaymentDetails.RefundedAt,

			RefundRequestedAt: order.PaymentDetails.RefundRequestedAt,
		},
		StockReleased: order.StockReleased,
		Version:       order.Version,
		CreatedAt:     order.CreatedAt.UTC(),
		UpdatedAt:     order.UpdatedAt.UTC(),
	}
	for _, item := range order.Items {
		doc.Items = append(doc.Items, orderItemDocument{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return doc
}

func (d orderDocument) toDomain() domain.Order {
	order := domain.Order{
		ID:          d.ID,
		UserID:      d.UserID,
		Items:       make([]domain.OrderItem, 0, len(d.Items)),
		TotalAmount: d.TotalAmount,
		ShippingAddress: domain.ShippingAddress{
			Name:        d.ShippingAddress.Name,
			PhoneNumber: d.ShippingAddress.PhoneNumber,
			Street:      d.ShippingAddress.Street,
			City:        d.ShippingAddress.City,
			State:       d.ShippingAddress.State,
			PostalCode:  d.ShippingAddress.PostalCode,
		},
		PaymentMethod: domain.PaymentMethod(d.PaymentMethod),
		PaymentStatus: domain.PaymentStatus(d.PaymentStatus),
		OrderStatus:   domain.OrderStatus(d.OrderStatus),
		PaymentDetails: domain.PaymentDetails{
			Provider:      d.PaymentDetails.Provider,
			PaymentID:     d.PaymentDetails.PaymentID,
			TransactionID: d.PaymentDetails.TransactionID,
			Signature:     d.PaymentDetails.Signature,
			Currency:      d.PaymentDetails.Currency,
			Amount:        d.PaymentDetails.Amount,
			PaidAt:        d.PaymentDetails.PaidAt,
			FailedAt:      d.PaymentDetails.FailedAt,
			FailureReason: d.PaymentDetails.FailureReason,
			RefundID:      d.PaymentDetails.RefundID,
			RefundStatus:  d.PaymentDetails.RefundStatus,
			RefundReason:  d.PaymentDetails.RefundReason,
			RefundedAt:    d.PaymentDetails.RefundedAt,

			RefundRequestedAt: d.PaymentDetails.RefundRequestedAt,
		},
		StockReleased: d.StockReleased,
		Version:       d.Version,
		CreatedAt:     d.CreatedAt,
		UpdatedAt:     d.UpdatedAt,
	}
	for _, item := range d.Items {
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return order
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
