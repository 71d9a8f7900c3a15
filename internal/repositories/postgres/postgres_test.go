package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

func TestBuildOrderFilter(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	where, args := buildOrderFilter(repositories.OrderListFilter{})
	assert.Empty(t, where)
	assert.Empty(t, args)

	where, args = buildOrderFilter(repositories.OrderListFilter{
		UserID:        "u1",
		PaymentStatus: domain.PaymentStatusPaid,
		CreatedFrom:   &from,
	})
	assert.Equal(t, " WHERE user_id = $1 AND payment_status = $2 AND created_at >= $3", where)
	require.Len(t, args, 3)
	assert.Equal(t, "u1", args[0])
	assert.Equal(t, "paid", args[1])
	assert.Equal(t, from, args[2])
}

func TestWrapErrorClassification(t *testing.T) {
	cases := []struct {
		name        string
		err         error
		notFound    bool
		conflict    bool
		unavailable bool
	}{
		{name: "no rows", err: sql.ErrNoRows, notFound: true},
		{name: "unique", err: &pgconn.PgError{Code: "23505", Message: "duplicate key"}, conflict: true},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, conflict: true},
		{name: "connection", err: &pgconn.PgError{Code: "08006"}, unavailable: true},
		{name: "conn done", err: sql.ErrConnDone, unavailable: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := wrapError("op", tc.err)
			var repoErr repositories.RepositoryError
			require.True(t, errors.As(err, &repoErr))
			assert.Equal(t, tc.notFound, repoErr.IsNotFound())
			assert.Equal(t, tc.conflict, repoErr.IsConflict())
			assert.Equal(t, tc.unavailable, repoErr.IsUnavailable())
		})
	}

	assert.NoError(t, wrapError("op", nil))
	assert.ErrorIs(t, wrapError("op", context.Canceled), context.Canceled)
}

func TestRecordConversionsRoundTrip(t *testing.T) {
	paidAt := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	details := domain.PaymentDetails{Provider: "stripe", PaymentID: "pi_1", Amount: 2000, PaidAt: &paidAt}
	assert.Equal(t, details, newPaymentRecord(details).toDomain())

	address := domain.ShippingAddress{Name: "A", City: "Pune", PostalCode: "411001"}
	assert.Equal(t, address, newAddressRecord(address).toDomain())

	items := []domain.CartItem{{ProductID: "p1", Size: "M", Quantity: 2, UnitPrice: 19.99}}
	assert.Equal(t, items, toCartItems(cartLines(items)))
}
