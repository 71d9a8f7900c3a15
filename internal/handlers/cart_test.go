package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/repositories/memory"
	"github.com/hanko-field/commerce-api/internal/services"
)

func newCartRouter(t *testing.T) chi.Router {
	t.Helper()
	registry := memory.NewRegistry(domain.Product{
		ID:    "prd_tee",
		Name:  "Tee",
		Price: 25,
		SizeStock: []domain.SizeStock{
			{Size: "M", Stock: 3},
			{Size: "L", Stock: 1},
		},
	})
	svc, err := services.NewCartService(services.CartServiceDeps{
		Carts:    registry.Carts(),
		Products: registry.Products(),
	})
	if err != nil {
		t.Fatalf("new cart service: %v", err)
	}
	router := chi.NewRouter()
	router.Route("/cart", NewCartHandlers(nil, svc).Routes)
	return router
}

func serveCart(t *testing.T, router chi.Router, method, path, body string) (*httptest.ResponseRecorder, cartPayload) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, withIdentity(req, "user-1"))

	var resp cartResponse
	if rr.Code == http.StatusOK {
		if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode cart: %v", err)
		}
	}
	return rr, resp.Cart
}

func TestCartHandlersAddMergesAndTotals(t *testing.T) {
	router := newCartRouter(t)

	rr, cart := serveCart(t, router, http.MethodGet, "/cart", "")
	if rr.Code != http.StatusOK || len(cart.Items) != 0 {
		t.Fatalf("expected empty cart, got %d %#v", rr.Code, cart)
	}

	if rr, _ = serveCart(t, router, http.MethodPost, "/cart/add", `{"productId":"prd_tee","size":"M","quantity":1}`); rr.Code != http.StatusOK {
		t.Fatalf("add failed: %d %s", rr.Code, rr.Body.String())
	}
	rr, cart = serveCart(t, router, http.MethodPost, "/cart/add", `{"productId":"prd_tee","size":"M","quantity":2}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("second add failed: %d %s", rr.Code, rr.Body.String())
	}
	if len(cart.Items) != 1 || cart.Items[0].Quantity != 3 {
		t.Fatalf("expected merged line of 3, got %#v", cart.Items)
	}
	if cart.Total != 75 || cart.Items[0].Subtotal != 75 {
		t.Fatalf("expected total 75, got %v", cart.Total)
	}
	if rr.Header().Get("ETag") == "" {
		t.Fatalf("expected ETag header")
	}
}

func TestCartHandlersAddChecksMergedStock(t *testing.T) {
	router := newCartRouter(t)

	if rr, _ := serveCart(t, router, http.MethodPost, "/cart/add", `{"productId":"prd_tee","size":"L","quantity":1}`); rr.Code != http.StatusOK {
		t.Fatalf("add failed: %d", rr.Code)
	}
	rr, _ := serveCart(t, router, http.MethodPost, "/cart/add", `{"productId":"prd_tee","size":"L","quantity":1}`)
	if rr.Code != http.StatusBadRequest || decodeErrorCode(t, rr) != "insufficient_stock" {
		t.Fatalf("expected insufficient_stock, got %d %s", rr.Code, rr.Body.String())
	}

	rr, _ = serveCart(t, router, http.MethodPost, "/cart/add", `{"productId":"prd_missing","size":"L","quantity":1}`)
	if rr.Code != http.StatusNotFound || decodeErrorCode(t, rr) != "product_not_found" {
		t.Fatalf("expected product_not_found, got %d", rr.Code)
	}
}

func TestCartHandlersUpdateAndRemove(t *testing.T) {
	router := newCartRouter(t)

	if rr, _ := serveCart(t, router, http.MethodPost, "/cart/add", `{"productId":"prd_tee","size":"M","quantity":1}`); rr.Code != http.StatusOK {
		t.Fatalf("add failed: %d", rr.Code)
	}

	rr, cart := serveCart(t, router, http.MethodPut, "/cart/update", `{"productId":"prd_tee","size":"M","quantity":2}`)
	if rr.Code != http.StatusOK || cart.Items[0].Quantity != 2 {
		t.Fatalf("expected quantity 2, got %d %#v", rr.Code, cart.Items)
	}

	rr, _ = serveCart(t, router, http.MethodPut, "/cart/update", `{"productId":"prd_tee","size":"M","quantity":9}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected stock rejection, got %d", rr.Code)
	}

	rr, cart = serveCart(t, router, http.MethodPut, "/cart/update", `{"productId":"prd_tee","size":"M","quantity":0}`)
	if rr.Code != http.StatusOK || len(cart.Items) != 0 {
		t.Fatalf("expected zero quantity to remove the line, got %d %#v", rr.Code, cart.Items)
	}

	rr, _ = serveCart(t, router, http.MethodDelete, "/cart/remove", `{"productId":"prd_tee","size":"M"}`)
	if rr.Code != http.StatusNotFound || decodeErrorCode(t, rr) != "cart_item_not_found" {
		t.Fatalf("expected cart_item_not_found, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestCartHandlersValidation(t *testing.T) {
	router := newCartRouter(t)

	cases := []struct {
		name   string
		method string
		path   string
		body   string
	}{
		{name: "missing quantity", method: http.MethodPost, path: "/cart/add", body: `{"productId":"prd_tee","size":"M"}`},
		{name: "zero add", method: http.MethodPost, path: "/cart/add", body: `{"productId":"prd_tee","size":"M","quantity":0}`},
		{name: "missing size", method: http.MethodDelete, path: "/cart/remove", body: `{"productId":"prd_tee"}`},
		{name: "no body", method: http.MethodPut, path: "/cart/update", body: ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rr, _ := serveCart(t, router, tc.method, tc.path, tc.body)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestCartHandlersRequireIdentity(t *testing.T) {
	router := newCartRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/cart", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
