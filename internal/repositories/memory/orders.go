package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// OrderRepository stores orders in memory with optimistic version checks on update.
type OrderRepository struct {
	mu     sync.RWMutex
	orders map[string]domain.Order
}

func NewOrderRepository() *OrderRepository {
	return &OrderRepository{orders: make(map[string]domain.Order)}
}

func (r *OrderRepository) Insert(_ context.Context, order domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.orders[order.ID]; exists {
		return repositories.NewConflict("orders.insert", "order "+order.ID+" already exists")
	}
	if order.Version == 0 {
		order.Version = 1
	}
	r.orders[order.ID] = order.Clone()
	return nil
}

func (r *OrderRepository) Update(_ context.Context, order domain.Order) (domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	current, ok := r.orders[order.ID]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("orders.update", "order "+order.ID+" not found")
	}
	if current.Version != order.Version {
		return domain.Order{}, repositories.NewConflict("orders.update",
			fmt.Sprintf("order %s version %d does not match stored version %d", order.ID, order.Version, current.Version))
	}
	order.Version++
	r.orders[order.ID] = order.Clone()
	return order.Clone(), nil
}

func (r *OrderRepository) FindByID(_ context.Context, orderID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	order, ok := r.orders[orderID]
	if !ok {
		return domain.Order{}, repositories.NewNotFound("orders.get", "order "+orderID+" not found")
	}
	return order.Clone(), nil
}

func (r *OrderRepository) FindByPaymentID(_ context.Context, paymentID string) (domain.Order, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, order := range r.orders {
		if paymentID != "" && order.PaymentDetails.PaymentID == paymentID {
			return order.Clone(), nil
		}
	}
	return domain.Order{}, repositories.NewNotFound("orders.get_by_payment", "no order for payment "+paymentID)
}

func (r *OrderRepository) List(_ context.Context, filter repositories.OrderListFilter) (domain.Page[domain.Order], error) {
	r.mu.RLock()
	matched := make([]domain.Order, 0, len(r.orders))
	for _, order := range r.orders {
		if filter.Matches(order) {
			matched = append(matched, order.Clone())
		}
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	start := filter.Offset
	if start < 0 {
		start = 0
	}
	if start > total {
		start = total
	}
	end := total
	if filter.Limit > 0 && start+filter.Limit < end {
		end = start + filter.Limit
	}
	return domain.Page[domain.Order]{Items: matched[start:end], Total: total}, nil
}

var _ repositories.OrderRepository = (*OrderRepository)(nil)
