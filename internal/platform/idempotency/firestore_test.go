package idempotency

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFirestoreStoreRequiresClient(t *testing.T) {
	_, err := NewFirestoreStore(nil)
	require.Error(t, err)
}

func TestFirestoreRecordKeepsResponse(t *testing.T) {
	pending := pendingRecord("user-1|k1", "fp", fixedTime, 0)
	record := completeRecord(pending, Response{Status: 201, Body: []byte(`{"id":"ord_1"}`)}, fixedTime, DefaultTTL)

	got := toDocument(record).toRecord()
	assert.Equal(t, StatusCompleted, got.Status)
	assert.Equal(t, 201, got.ResponseStatus)
	assert.JSONEq(t, `{"id":"ord_1"}`, string(got.ResponseBody))
	assert.Equal(t, fixedTime.Add(DefaultTTL), got.ExpiresAt)
}
