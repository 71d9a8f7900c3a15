package services

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories/memory"
)

func newTestCartService(t *testing.T, seed ...domain.Product) (CartService, *memory.Registry) {
	t.Helper()
	registry := memory.NewRegistry(seed...)
	svc, err := NewCartService(CartServiceDeps{
		Carts:    registry.Carts(),
		Products: registry.Products(),
		Clock:    func() time.Time { return testNow },
	})
	if err != nil {
		t.Fatalf("NewCartService: %v", err)
	}
	return svc, registry
}

func TestCartAddItemMergesAndChecksMergedQuantity(t *testing.T) {
	svc, _ := newTestCartService(t, tee())
	ctx := context.Background()

	cart, err := svc.AddItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 3})
	if err != nil {
		t.Fatalf("AddItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].UnitPrice != 25 {
		t.Fatalf("unexpected cart %+v", cart)
	}

	cart, err = svc.AddItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 2})
	if err != nil {
		t.Fatalf("second AddItem: %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 5 {
		t.Fatalf("expected merged quantity 5, got %+v", cart.Items)
	}
	if cart.Total() != 125 {
		t.Fatalf("expected total 125, got %v", cart.Total())
	}

	_, err = svc.AddItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 1})
	var stockErr *InsufficientStockError
	if !errors.As(err, &stockErr) || stockErr.Requested != 6 {
		t.Fatalf("expected InsufficientStockError for merged quantity, got %v", err)
	}
}

func TestCartAddItemValidation(t *testing.T) {
	svc, _ := newTestCartService(t, tee())
	ctx := context.Background()

	cases := []struct {
		name string
		cmd  CartItemCommand
		want error
	}{
		{name: "missing product", cmd: CartItemCommand{UserID: "user-1", Size: "M", Quantity: 1}, want: ErrCartInvalidInput},
		{name: "missing size", cmd: CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Quantity: 1}, want: ErrCartInvalidInput},
		{name: "zero quantity", cmd: CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M"}, want: ErrCartInvalidInput},
		{name: "unknown product", cmd: CartItemCommand{UserID: "user-1", ProductID: "prd_none", Size: "M", Quantity: 1}, want: ErrProductNotFound},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.AddItem(ctx, tc.cmd); !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestCartUpdateAndRemove(t *testing.T) {
	svc, _ := newTestCartService(t, tee())
	ctx := context.Background()
	if _, err := svc.AddItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 1}); err != nil {
		t.Fatalf("AddItem: %v", err)
	}

	cart, err := svc.UpdateItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 4})
	if err != nil {
		t.Fatalf("UpdateItem: %v", err)
	}
	if cart.Items[0].Quantity != 4 {
		t.Fatalf("expected quantity 4, got %d", cart.Items[0].Quantity)
	}

	if _, err := svc.UpdateItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 9}); err == nil {
		t.Fatalf("expected stock error")
	}
	if _, err := svc.UpdateItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "L", Quantity: 1}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}

	cart, err = svc.UpdateItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M", Quantity: 0})
	if err != nil {
		t.Fatalf("UpdateItem to zero: %v", err)
	}
	if len(cart.Items) != 0 {
		t.Fatalf("expected zero quantity to remove the line, got %+v", cart.Items)
	}

	if _, err := svc.RemoveItem(ctx, CartItemCommand{UserID: "user-1", ProductID: "prd_tee", Size: "M"}); !errors.Is(err, ErrCartItemNotFound) {
		t.Fatalf("expected ErrCartItemNotFound, got %v", err)
	}
}

func TestCartGetEmpty(t *testing.T) {
	svc, _ := newTestCartService(t)
	cart, err := svc.GetCart(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("GetCart: %v", err)
	}
	if cart.Items == nil || len(cart.Items) != 0 {
		t.Fatalf("expected empty non-nil items, got %#v", cart.Items)
	}
}
