package firestore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	pfirestore "github.com/hanko-field/commerce-api/internal/platform/firestore"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const productCollection = "products"

// ProductRepository stores products with their per-size stock array in a single document,
// so every ledger mutation is one transactional read-compare-write.
type ProductRepository struct {
	provider *pfirestore.Provider
	products *pfirestore.Collection[productDocument]
	now      func() time.Time
}

// NewProductRepository constructs a Firestore-backed product repository.
func NewProductRepository(provider *pfirestore.Provider) (*ProductRepository, error) {
	if provider == nil {
		return nil, errors.New("product repository requires firestore provider")
	}
	return &ProductRepository{
		provider: provider,
		products: pfirestore.NewCollection[productDocument](provider, productCollection),
		now:      time.Now,
	}, nil
}

func (r *ProductRepository) Get(ctx context.Context, productID string) (domain.Product, error) {
	doc, err := r.products.Get(ctx, strings.TrimSpace(productID))
	if err != nil {
		return domain.Product{}, err
	}
	return doc.toDomain(), nil
}

func (r *ProductRepository) Save(ctx context.Context, product domain.Product) (domain.Product, error) {
	now := r.now().UTC()
	var saved domain.Product
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		existing, err := r.products.Get(ctx, product.ID)
		switch {
		case err == nil:
			product.CreatedAt = existing.CreatedAt
		case repositories.IsNotFound(err):
			if product.CreatedAt.IsZero() {
				product.CreatedAt = now
			}
		default:
			return err
		}
		product.UpdatedAt = now
		saved = product.Clone()
		return r.products.Set(ctx, product.ID, newProductDocument(product))
	})
	if err != nil {
		return domain.Product{}, err
	}
	return saved, nil
}

func (r *ProductRepository) DecreaseStock(ctx context.Context, productID, size string, qty int) (bool, error) {
	applied := false
	err := r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		applied = false
		doc, err := r.products.Get(ctx, productID)
		if err != nil {
			if repositories.IsNotFound(err) {
				return nil
			}
			return err
		}
		product := doc.toDomain()
		if !domain.Decrease(&product, size, qty) {
			return nil
		}
		product.UpdatedAt = r.now().UTC()
		applied = true
		return r.products.Set(ctx, productID, newProductDocument(product))
	})
	if err != nil {
		return false, err
	}
	return applied, nil
}

func (r *ProductRepository) RestoreStock(ctx context.Context, productID, size string, qty int) error {
	return r.provider.RunTransaction(ctx, func(ctx context.Context, _ *firestore.Transaction) error {
		doc, err := r.products.Get(ctx, productID)
		if err != nil {
			return err
		}
		product := doc.toDomain()
		if err := domain.Restore(&product, size, qty); err != nil {
			return pfirestore.NotFound("products.restore", fmt.Sprintf("product %s has no size %s", productID, size))
		}
		product.UpdatedAt = r.now().UTC()
		return r.products.Set(ctx, productID, newProductDocument(product))
	})
}

type productDocument struct {
	ID        string              `firestore:"id"`
	Name      string              `firestore:"name"`
	Price     float64             `firestore:"price"`
	SizeStock []sizeStockDocument `firestore:"sizeStock"`
	CreatedAt time.Time           `firestore:"createdAt"`
	UpdatedAt time.Time           `firestore:"updatedAt"`
}

type sizeStockDocument struct {
	Size  string `firestore:"size"`
	Stock int    `firestore:"stock"`
}

func newProductDocument(product domain.Product) productDocument {
	doc := productDocument{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price,
		SizeStock: make([]sizeStockDocument, 0, len(product.SizeStock)),
		CreatedAt: product.CreatedAt.UTC(),
		UpdatedAt: product.UpdatedAt.UTC(),
	}
	for _, entry := range product.SizeStock {
		doc.SizeStock = append(doc.SizeStock, sizeStockDocument{Size: entry.Size, Stock: entry.Stock})
	}
	return doc
}

func (d productDocument) toDomain() domain.Product {
	product := domain.Product{
		ID:        d.ID,
		Name:      d.Name,
		Price:     d.Price,
		SizeStock: make([]domain.SizeStock, 0, len(d.SizeStock)),
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	for _, entry := range d.SizeStock {
		product.SizeStock = append(product.SizeStock, domain.SizeStock{Size: entry.Size, Stock: entry.Stock})
	}
	return product
}

var _ repositories.ProductRepository = (*ProductRepository)(nil)
