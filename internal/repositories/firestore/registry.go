// Package firestore implements the repositories on Cloud Firestore. Products, carts and
// orders live in top-level collections; transactions are carried through the context so a
// unit of work spans every repository touched inside it.
package firestore

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"

	pfirestore "github.com/hanko-field/commerce-api/internal/platform/firestore"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

// Registry bundles Firestore repositories sharing one provider.
type Registry struct {
	provider *pfirestore.Provider
	products *ProductRepository
	carts    *CartRepository
	orders   *OrderRepository
}

// NewRegistry wires every repository against provider.
func NewRegistry(provider *pfirestore.Provider) (*Registry, error) {
	if provider == nil {
		return nil, errors.New("firestore registry: provider is required")
	}
	products, err := NewProductRepository(provider)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(provider)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(provider)
	if err != nil {
		return nil, err
	}
	return &Registry{provider: provider, products: products, carts: carts, orders: orders}, nil
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }

// RunInTx runs fn inside one Firestore transaction. fn may be retried on contention, so
// it must not carry side effects outside the repositories.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		return fn(ctx)
	})
}

// Ping checks connectivity for readiness probes.
func (r *Registry) Ping(ctx context.Context) error {
	return r.provider.Ping(ctx)
}

func (r *Registry) Close(ctx context.Context) error {
	return r.provider.Close(ctx)
}

var _ repositories.Registry = (*Registry)(nil)
