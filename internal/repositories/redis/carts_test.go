package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

var fixedNow = time.Date(2024, 6, 1, 9, 30, 0, 0, time.UTC)

func newTestRepository(t *testing.T) (*CartRepository, redismock.ClientMock) {
	t.Helper()
	db, mock := redismock.NewClientMock()
	repo, err := NewCartRepository(db, WithClock(func() time.Time { return fixedNow }), WithTTL(time.Hour))
	if err != nil {
		t.Fatalf("new repository: %v", err)
	}
	return repo, mock
}

func TestGetCartMissingReturnsEmpty(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectGet("cart:user-1").RedisNil()

	cart, err := repo.GetCart(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cart.UserID != "user-1" || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %+v", cart)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestSaveCartWritesJSONWithTTL(t *testing.T) {
	repo, mock := newTestRepository(t)
	payload := `{"items":[{"productId":"p1","size":"M","quantity":2,"price":19.99}],"updatedAt":"2024-06-01T09:30:00Z"}`
	mock.ExpectSet("cart:user-1", []byte(payload), time.Hour).SetVal("OK")

	saved, err := repo.SaveCart(context.Background(), domain.Cart{
		UserID: "user-1",
		Items:  []domain.CartItem{{ProductID: "p1", Size: "M", Quantity: 2, UnitPrice: 19.99}},
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if !saved.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("expected updatedAt %v, got %v", fixedNow, saved.UpdatedAt)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestGetCartDecodesStoredPayload(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectGet("cart:user-2").SetVal(`{"items":[{"productId":"p9","size":"L","quantity":1,"price":5}],"updatedAt":"2024-06-01T09:30:00Z"}`)

	cart, err := repo.GetCart(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(cart.Items) != 1 || cart.Items[0].ProductID != "p9" || cart.Items[0].UnitPrice != 5 {
		t.Fatalf("unexpected cart %+v", cart)
	}
}

func TestClearCartDeletesKey(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectDel("cart:user-1").SetVal(1)

	if err := repo.ClearCart(context.Background(), "user-1"); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestBackendFailureIsUnavailable(t *testing.T) {
	repo, mock := newTestRepository(t)
	mock.ExpectGet("cart:user-1").SetErr(errors.New("connection refused"))

	_, err := repo.GetCart(context.Background(), "user-1")
	var repoErr repositories.RepositoryError
	if !errors.As(err, &repoErr) || !repoErr.IsUnavailable() {
		t.Fatalf("expected unavailable repository error, got %v", err)
	}
}
