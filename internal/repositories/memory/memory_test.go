package memory

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

func TestProductRepositoryConcurrentDecreaseNeverOversells(t *testing.T) {
	repo := NewProductRepository(domain.Product{ID: "p1", SizeStock: []domain.SizeStock{{Size: "M", Stock: 7}}})
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		succeeded atomic.Int32
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.DecreaseStock(ctx, "p1", "M", 1)
			if err == nil && ok {
				succeeded.Add(1)
			}
		}()
	}
	wg.Wait()

	product, err := repo.Get(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, int32(7), succeeded.Load())
	assert.Equal(t, 0, domain.StockFor(product, "M"))
}

func TestProductRepositoryRestoreMissingSize(t *testing.T) {
	repo := NewProductRepository(domain.Product{ID: "p1", SizeStock: []domain.SizeStock{{Size: "M", Stock: 1}}})
	err := repo.RestoreStock(context.Background(), "p1", "XL", 1)
	require.Error(t, err)
	assert.True(t, repositories.IsNotFound(err))
}

func TestOrderRepositoryOptimisticUpdate(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	require.NoError(t, repo.Insert(ctx, domain.Order{ID: "ord_1", UserID: "u1"}))

	first, err := repo.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	stale := first

	first.PaymentStatus = domain.PaymentStatusPaid
	updated, err := repo.Update(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, int64(2), updated.Version)

	stale.PaymentStatus = domain.PaymentStatusFailed
	_, err = repo.Update(ctx, stale)
	require.Error(t, err)
	assert.True(t, repositories.IsConflict(err))

	stored, err := repo.FindByID(ctx, "ord_1")
	require.NoError(t, err)
	assert.Equal(t, domain.PaymentStatusPaid, stored.PaymentStatus)
}

func TestOrderRepositoryListNewestFirstWithPaging(t *testing.T) {
	repo := NewOrderRepository()
	ctx := context.Background()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i, id := range []string{"ord_a", "ord_b", "ord_c"} {
		require.NoError(t, repo.Insert(ctx, domain.Order{ID: id, UserID: "u1", CreatedAt: base.Add(time.Duration(i) * time.Hour)}))
	}
	require.NoError(t, repo.Insert(ctx, domain.Order{ID: "ord_x", UserID: "u2", CreatedAt: base}))

	page, err := repo.List(ctx, repositories.OrderListFilter{UserID: "u1", Offset: 1, Limit: 1})
	require.NoError(t, err)
	assert.Equal(t, 3, page.Total)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "ord_b", page.Items[0].ID)

	all, err := repo.List(ctx, repositories.OrderListFilter{})
	require.NoError(t, err)
	require.Len(t, all.Items, 4)
	assert.Equal(t, "ord_c", all.Items[0].ID)
}

func TestCartRepositoryReturnsEmptyCartForNewUser(t *testing.T) {
	repo := NewCartRepository()
	cart, err := repo.GetCart(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "u1", cart.UserID)
	assert.True(t, cart.IsEmpty())
}
