package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := context.WithValue(context.Background(), middleware.RequestIDKey, "req-1")
	rr := httptest.NewRecorder()

	err := NewError("insufficient_stock", "not enough\nstock", http.StatusBadRequest).
		WithDetails(map[string]any{"productId": "prd_1", "status": 999})
	WriteError(ctx, rr, err)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") != "" {
		t.Fatalf("unexpected Retry-After header")
	}
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "insufficient_stock" || body["message"] != "not enough stock" {
		t.Fatalf("unexpected envelope: %v", body)
	}
	if body["status"] != float64(http.StatusBadRequest) {
		t.Fatalf("details must not override status, got %v", body["status"])
	}
	if body["productId"] != "prd_1" || body["request_id"] != "req-1" {
		t.Fatalf("expected details and request id, got %v", body)
	}
}

func TestWriteErrorRetryAfter(t *testing.T) {
	rr := httptest.NewRecorder()
	WriteError(context.Background(), rr, NewError("payment_provider_unavailable", "retry", http.StatusBadGateway).
		WithRetryAfter(1500*time.Millisecond))

	if got := rr.Header().Get("Retry-After"); got != "2" {
		t.Fatalf("expected Retry-After 2, got %q", got)
	}
}

func TestNewErrorDefaultsStatus(t *testing.T) {
	if got := NewError("x", "y", 0).Status; got != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", got)
	}
}
