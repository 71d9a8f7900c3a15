package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/oklog/ulid/v2"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const productIDPrefix = "prd_"

// CatalogServiceDeps bundles constructor inputs for the catalog service.
type CatalogServiceDeps struct {
	Products    repositories.ProductRepository
	IDGenerator func() string
	Logger      func(context.Context, string, map[string]any)
}

type catalogService struct {
	products repositories.ProductRepository
	newID    func() string
	logger   func(context.Context, string, map[string]any)
}

// NewCatalogService constructs the catalog service with the supplied dependencies.
func NewCatalogService(deps CatalogServiceDeps) (CatalogService, error) {
	if deps.Products == nil {
		return nil, errors.New("catalog service: product repository is required")
	}
	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string { return ulid.Make().String() }
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &catalogService{products: deps.Products, newID: idGen, logger: logger}, nil
}

func (s *catalogService) GetProduct(ctx context.Context, productID string) (Product, error) {
	productID = strings.TrimSpace(productID)
	if productID == "" {
		return Product{}, fmt.Errorf("%w: product id is required", ErrProductInvalidInput)
	}
	product, err := s.products.Get(ctx, productID)
	if err != nil {
		return Product{}, mapProductRepositoryError(err)
	}
	return product, nil
}

// SaveProduct upserts a product. A product without id is created with a generated one.
func (s *catalogService) SaveProduct(ctx context.Context, product Product) (Product, error) {
	product.ID = strings.TrimSpace(product.ID)
	product.Name = strings.TrimSpace(product.Name)
	if product.Name == "" {
		return Product{}, fmt.Errorf("%w: name is required", ErrProductInvalidInput)
	}
	if product.Price < 0 || math.IsNaN(product.Price) || math.IsInf(product.Price, 0) {
		return Product{}, fmt.Errorf("%w: price must be a non-negative amount", ErrProductInvalidInput)
	}
	product.Price = domain.RoundAmount(product.Price)

	sizes := make([]domain.SizeStock, 0, len(product.SizeStock))
	for _, entry := range product.SizeStock {
		sizes = append(sizes, domain.SizeStock{Size: strings.TrimSpace(entry.Size), Stock: entry.Stock})
	}
	if err := domain.ValidateSizeStock(sizes); err != nil {
		return Product{}, fmt.Errorf("%w: %v", ErrProductInvalidInput, err)
	}
	product.SizeStock = sizes

	if product.ID == "" {
		product.ID = productIDPrefix + strings.ToUpper(s.newID())
	}

	saved, err := s.products.Save(ctx, product)
	if err != nil {
		return Product{}, fmt.Errorf("product: save: %w", err)
	}
	s.logger(ctx, "product.saved", map[string]any{
		"productId": saved.ID,
		"sizes":     len(saved.SizeStock),
	})
	return saved, nil
}
