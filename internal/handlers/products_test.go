package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce-api/internal/platform/auth"
	"github.com/hanko-field/commerce-api/internal/repositories/memory"
	"github.com/hanko-field/commerce-api/internal/services"
)

func newProductRouter(t *testing.T) chi.Router {
	t.Helper()
	catalog, err := services.NewCatalogService(services.CatalogServiceDeps{
		Products:    memory.NewProductRepository(),
		IDGenerator: func() string { return "01hx" },
	})
	if err != nil {
		t.Fatalf("new catalog service: %v", err)
	}
	router := chi.NewRouter()
	router.Route("/product", NewProductHandlers(nil, catalog).Routes)
	return router
}

func TestProductHandlersSaveAndGet(t *testing.T) {
	router := newProductRouter(t)

	body := `{"name":" Hoodie ","price":60.499,"sizeStock":[{"size":"M","stock":3},{"size":"L","stock":0}]}`
	req := withIdentity(httptest.NewRequest(http.MethodPost, "/product/add", strings.NewReader(body)), "admin-1", auth.RoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var saved productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &saved); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if saved.Product.ID != "prd_01HX" || saved.Product.Name != "Hoodie" || saved.Product.Price != 60.5 {
		t.Fatalf("unexpected product: %#v", saved.Product)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/product/prd_01HX", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected public read, got %d", rr.Code)
	}
	var fetched productResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &fetched); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(fetched.Product.SizeStock) != 2 || fetched.Product.SizeStock[0].Stock != 3 {
		t.Fatalf("unexpected stock: %#v", fetched.Product.SizeStock)
	}
}

func TestProductHandlersSaveRejectsInvalidStock(t *testing.T) {
	router := newProductRouter(t)

	cases := map[string]string{
		"duplicate size": `{"name":"Tee","price":10,"sizeStock":[{"size":"M","stock":1},{"size":"M","stock":2}]}`,
		"negative stock": `{"name":"Tee","price":10,"sizeStock":[{"size":"M","stock":-1}]}`,
		"missing price":  `{"name":"Tee","sizeStock":[{"size":"M","stock":1}]}`,
		"missing name":   `{"price":10,"sizeStock":[{"size":"M","stock":1}]}`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			req := withIdentity(httptest.NewRequest(http.MethodPost, "/product/add", strings.NewReader(body)), "admin-1", auth.RoleAdmin)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)
			if rr.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d: %s", rr.Code, rr.Body.String())
			}
		})
	}
}

func TestProductHandlersSaveRequiresAdmin(t *testing.T) {
	router := newProductRouter(t)

	req := withIdentity(httptest.NewRequest(http.MethodPost, "/product/add", strings.NewReader(`{"name":"Tee","price":10}`)), "user-1")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestProductHandlersGetMissing(t *testing.T) {
	router := newProductRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/product/prd_nope", nil))
	if rr.Code != http.StatusNotFound || decodeErrorCode(t, rr) != "product_not_found" {
		t.Fatalf("expected 404 product_not_found, got %d", rr.Code)
	}
}
