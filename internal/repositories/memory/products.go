package memory

import (
	"context"
	"strings"
	"sync"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// ProductRepository keeps products in process memory. Stock mutations run under a single
// mutex, which makes DecreaseStock a true compare-and-subtract.
type ProductRepository struct {
	mu       sync.Mutex
	products map[string]domain.Product
	now      func() time.Time
}

// NewProductRepository seeds the repository with the provided products.
func NewProductRepository(seed ...domain.Product) *ProductRepository {
	repo := &ProductRepository{products: make(map[string]domain.Product), now: time.Now}
	for _, product := range seed {
		repo.products[product.ID] = product.Clone()
	}
	return repo
}

func (r *ProductRepository) Get(_ context.Context, productID string) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[strings.TrimSpace(productID)]
	if !ok {
		return domain.Product{}, repositories.NewNotFound("products.get", "product "+productID+" not found")
	}
	return product.Clone(), nil
}

func (r *ProductRepository) Save(_ context.Context, product domain.Product) (domain.Product, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.now().UTC()
	if existing, ok := r.products[product.ID]; ok {
		product.CreatedAt = existing.CreatedAt
	} else if product.CreatedAt.IsZero() {
		product.CreatedAt = now
	}
	product.UpdatedAt = now
	r.products[product.ID] = product.Clone()
	return product.Clone(), nil
}

func (r *ProductRepository) DecreaseStock(_ context.Context, productID, size string, qty int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return false, nil
	}
	if !domain.Decrease(&product, size, qty) {
		return false, nil
	}
	product.UpdatedAt = r.now().UTC()
	r.products[productID] = product
	return true, nil
}

func (r *ProductRepository) RestoreStock(_ context.Context, productID, size string, qty int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	product, ok := r.products[productID]
	if !ok {
		return repositories.NewNotFound("products.restore", "product "+productID+" not found")
	}
	if err := domain.Restore(&product, size, qty); err != nil {
		return repositories.NewError("products.restore", repositories.ErrorKindNotFound, "size "+size+" not found", err)
	}
	product.UpdatedAt = r.now().UTC()
	r.products[productID] = product
	return nil
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
