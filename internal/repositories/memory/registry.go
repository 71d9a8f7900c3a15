// Package memory provides process-local repositories for local development and tests.
package memory

import (
	"context"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// Registry bundles the in-memory repositories.
type Registry struct {
	products *ProductRepository
	carts    *CartRepository
	orders   *OrderRepository
}

// NewRegistry builds an empty registry, optionally seeding products.
func NewRegistry(seed ...domain.Product) *Registry {
	return &Registry{
		products: NewProductRepository(seed...),
		carts:    NewCartRepository(),
		orders:   NewOrderRepository(),
	}
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }

// RunInTx runs fn directly; each repository call is individually atomic.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (r *Registry) Close(context.Context) error { return nil }

var _ repositories.Registry = (*Registry)(nil)
