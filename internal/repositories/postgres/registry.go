package postgres

import (
	"context"
	"database/sql"
	"errors"

	"github.com/hanko-field/commerce-api/internal/repositories"
)

// Registry bundles the PostgreSQL repositories over one pool.
type Registry struct {
	db       *sql.DB
	products *ProductRepository
	carts    *CartRepository
	orders   *OrderRepository
}

// NewRegistry wires every repository against db.
func NewRegistry(db *sql.DB) (*Registry, error) {
	if db == nil {
		return nil, errors.New("postgres registry: database is required")
	}
	products, err := NewProductRepository(db)
	if err != nil {
		return nil, err
	}
	carts, err := NewCartRepository(db)
	if err != nil {
		return nil, err
	}
	orders, err := NewOrderRepository(db)
	if err != nil {
		return nil, err
	}
	return &Registry{db: db, products: products, carts: carts, orders: orders}, nil
}

func (r *Registry) Products() repositories.ProductRepository { return r.products }
func (r *Registry) Carts() repositories.CartRepository       { return r.carts }
func (r *Registry) Orders() repositories.OrderRepository     { return r.orders }

// RunInTx runs fn in a database transaction that every repository call inside joins.
func (r *Registry) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return runInTx(ctx, r.db, fn)
}

// Ping checks connectivity for readiness probes.
func (r *Registry) Ping(ctx context.Context) error {
	return wrapError("ping", r.db.PingContext(ctx))
}

func (r *Registry) Close(context.Context) error {
	return r.db.Close()
}

var _ repositories.Registry = (*Registry)(nil)
