package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

var errCartRepositoryRequired = errors.New("cart service: repository is required")

// CartServiceDeps wires the repositories used for cart operations.
type CartServiceDeps struct {
	Carts    repositories.CartRepository
	Products repositories.ProductRepository
	Clock    func() time.Time
	Logger   func(context.Context, string, map[string]any)
}

type cartService struct {
	carts    repositories.CartRepository
	products repositories.ProductRepository
	now      func() time.Time
	logger   func(context.Context, string, map[string]any)
}

// NewCartService constructs a CartService enforcing dependency validation.
func NewCartService(deps CartServiceDeps) (CartService, error) {
	if deps.Carts == nil || deps.Products == nil {
		return nil, errCartRepositoryRequired
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}
	return &cartService{
		carts:    deps.Carts,
		products: deps.Products,
		now: func() time.Time {
			return clock().UTC()
		},
		logger: logger,
	}, nil
}

func (s *cartService) GetCart(ctx context.Context, userID string) (Cart, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return Cart{}, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	}
	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return Cart{}, fmt.Errorf("cart: load: %w", err)
	}
	if cart.Items == nil {
		cart.Items = []CartItem{}
	}
	return cart, nil
}

// AddItem merges the line into the cart. Stock is checked against the merged quantity and
// the unit price is captured from the catalog when the line is first added.
func (s *cartService) AddItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	cmd, err := normalizeCartCommand(cmd)
	if err != nil {
		return Cart{}, err
	}
	if cmd.Quantity < 1 {
		return Cart{}, fmt.Errorf("%w: quantity must be at least 1", ErrCartInvalidInput)
	}

	product, err := s.products.Get(ctx, cmd.ProductID)
	if err != nil {
		return Cart{}, mapProductRepositoryError(err)
	}
	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}

	requested := cmd.Quantity
	if idx := cart.Find(cmd.ProductID, cmd.Size); idx >= 0 {
		requested += cart.Items[idx].Quantity
	}
	if !domain.CheckAvailability(product, cmd.Size, requested) {
		return Cart{}, &InsufficientStockError{
			ProductID: cmd.ProductID,
			Size:      cmd.Size,
			Requested: requested,
			Available: domain.StockFor(product, cmd.Size),
		}
	}

	cart.Merge(CartItem{
		ProductID: cmd.ProductID,
		Size:      cmd.Size,
		Quantity:  cmd.Quantity,
		UnitPrice: product.Price,
	})
	return s.save(ctx, cart, "cart.item_added", cmd)
}

// UpdateItem replaces the quantity of an existing line; a quantity <= 0 removes it.
func (s *cartService) UpdateItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	cmd, err := normalizeCartCommand(cmd)
	if err != nil {
		return Cart{}, err
	}
	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}
	if cart.Find(cmd.ProductID, cmd.Size) < 0 {
		return Cart{}, fmt.Errorf("%w: product %s size %s", ErrCartItemNotFound, cmd.ProductID, cmd.Size)
	}

	if cmd.Quantity > 0 {
		product, err := s.products.Get(ctx, cmd.ProductID)
		if err != nil {
			return Cart{}, mapProductRepositoryError(err)
		}
		if !domain.CheckAvailability(product, cmd.Size, cmd.Quantity) {
			return Cart{}, &InsufficientStockError{
				ProductID: cmd.ProductID,
				Size:      cmd.Size,
				Requested: cmd.Quantity,
				Available: domain.StockFor(product, cmd.Size),
			}
		}
	}

	cart.SetQuantity(cmd.ProductID, cmd.Size, cmd.Quantity)
	return s.save(ctx, cart, "cart.item_updated", cmd)
}

// RemoveItem drops a line from the cart.
func (s *cartService) RemoveItem(ctx context.Context, cmd CartItemCommand) (Cart, error) {
	cmd, err := normalizeCartCommand(cmd)
	if err != nil {
		return Cart{}, err
	}
	cart, err := s.GetCart(ctx, cmd.UserID)
	if err != nil {
		return Cart{}, err
	}
	if !cart.Remove(cmd.ProductID, cmd.Size) {
		return Cart{}, fmt.Errorf("%w: product %s size %s", ErrCartItemNotFound, cmd.ProductID, cmd.Size)
	}
	return s.save(ctx, cart, "cart.item_removed", cmd)
}

func (s *cartService) save(ctx context.Context, cart Cart, event string, cmd CartItemCommand) (Cart, error) {
	cart.UpdatedAt = s.now()
	saved, err := s.carts.SaveCart(ctx, cart)
	if err != nil {
		return Cart{}, fmt.Errorf("cart: save: %w", err)
	}
	if saved.Items == nil {
		saved.Items = []CartItem{}
	}
	s.logger(ctx, event, map[string]any{
		"userId":    cart.UserID,
		"productId": cmd.ProductID,
		"size":      cmd.Size,
		"quantity":  cmd.Quantity,
		"lines":     len(saved.Items),
	})
	return saved, nil
}

func normalizeCartCommand(cmd CartItemCommand) (CartItemCommand, error) {
	cmd.UserID = strings.TrimSpace(cmd.UserID)
	cmd.ProductID = strings.TrimSpace(cmd.ProductID)
	cmd.Size = strings.TrimSpace(cmd.Size)
	switch {
	case cmd.UserID == "":
		return cmd, fmt.Errorf("%w: user id is required", ErrCartInvalidInput)
	case cmd.ProductID == "":
		return cmd, fmt.Errorf("%w: productId is required", ErrCartInvalidInput)
	case cmd.Size == "":
		return cmd, fmt.Errorf("%w: size is required", ErrCartInvalidInput)
	}
	return cmd, nil
}
