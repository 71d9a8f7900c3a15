//go:build integration

package idempotency

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pfirestore "github.com/hanko-field/commerce-api/internal/platform/firestore"
)

func TestFirestoreStoreLifecycle(t *testing.T) {
	host := os.Getenv("FIRESTORE_EMULATOR_HOST")
	if host == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	provider := pfirestore.NewProvider(pfirestore.Settings{ProjectID: "commerce-test", EmulatorHost: host})
	t.Cleanup(func() { _ = provider.Close(context.Background()) })
	client, err := provider.Client(ctx)
	require.NoError(t, err)

	store, err := NewFirestoreStore(client, WithCollection("idempotencyTest"))
	require.NoError(t, err)

	key := "user-1|" + time.Now().Format("150405.000000")
	now := time.Now().UTC().Truncate(time.Millisecond)

	res, err := store.Reserve(ctx, key, "fp", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)

	res, err = store.Reserve(ctx, key, "fp", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStatePending, res.State)

	_, err = store.Reserve(ctx, key, "other", now, time.Hour)
	assert.ErrorIs(t, err, ErrFingerprintMismatch)

	require.NoError(t, store.SaveResponse(ctx, key, "fp", Response{Status: 201, Body: []byte(`{}`)}, now, time.Hour))
	res, err = store.Reserve(ctx, key, "fp", now, time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateCompleted, res.State)
	assert.Equal(t, 201, res.Record.ResponseStatus)

	require.NoError(t, store.Release(ctx, key, "fp"))
	res, err = store.Reserve(ctx, key, "fp", now.Add(2*time.Hour), time.Hour)
	require.NoError(t, err)
	assert.Equal(t, ReservationStateNew, res.State)
}
