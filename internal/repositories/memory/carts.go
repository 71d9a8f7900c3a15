package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// CartRepository keeps one cart per user in memory.
type CartRepository struct {
	mu    sync.Mutex
	carts map[string]domain.Cart
	now   func() time.Time
}

func NewCartRepository() *CartRepository {
	return &CartRepository{carts: make(map[string]domain.Cart), now: time.Now}
}

func (r *CartRepository) GetCart(_ context.Context, userID string) (domain.Cart, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cart, ok := r.carts[strings.TrimSpace(userID)]
	if !ok {
		return domain.Cart{UserID: userID, Items: []domain.CartItem{}}, nil
	}
	return cart.Clone(), nil
}

func (r *CartRepository) SaveCart(_ context.Context, cart domain.Cart) (domain.Cart, error) {
	if strings.TrimSpace(cart.UserID) == "" {
		return domain.Cart{}, repositories.NewError("carts.save", repositories.ErrorKindUnknown, "user id is required", nil)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cart.UpdatedAt = r.now().UTC()
	r.carts[cart.UserID] = cart.Clone()
	return cart.Clone(), nil
}

func (r *CartRepository) ClearCart(_ context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.carts[userID] = domain.Cart{UserID: userID, Items: []domain.CartItem{}, UpdatedAt: r.now().UTC()}
	return nil
}

var _ repositories.CartRepository = (*CartRepository)(nil)
