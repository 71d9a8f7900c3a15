package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/platform/auth"
	"github.com/hanko-field/commerce-api/internal/platform/httpx"
	"github.com/hanko-field/commerce-api/internal/platform/observability"
	"github.com/hanko-field/commerce-api/internal/services"
)

const maxProductBodySize = 32 * 1024

type saveProductRequest struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Price     *float64           `json:"price"`
	SizeStock []sizeStockPayload `json:"sizeStock"`
}

// ProductHandlers serves product reads to anyone and product upserts to admins.
type ProductHandlers struct {
	authn   *auth.Authenticator
	catalog services.CatalogService
}

// NewProductHandlers constructs a new ProductHandlers instance.
func NewProductHandlers(authn *auth.Authenticator, catalog services.CatalogService) *ProductHandlers {
	return &ProductHandlers{authn: authn, catalog: catalog}
}

// Routes registers the /product endpoints.
func (h *ProductHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/{productID}", h.getProduct)
	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin), observability.IdentityLogFields)
		}
		admin.Post("/add", h.saveProduct)
	})
}

func (h *ProductHandlers) getProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	productID := strings.TrimSpace(chi.URLParam(r, "productID"))
	if productID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "product id is required", http.StatusBadRequest))
		return
	}

	product, err := h.catalog.GetProduct(ctx, productID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, productResponse{Product: buildProductPayload(product)})
}

func (h *ProductHandlers) saveProduct(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	var req saveProductRequest
	if !decodeJSONBody(w, r, maxProductBodySize, &req) {
		return
	}
	if req.Price == nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "price is required", http.StatusBadRequest))
		return
	}

	product := services.Product{
		ID:        strings.TrimSpace(req.ID),
		Name:      req.Name,
		Price:     *req.Price,
		SizeStock: make([]domain.SizeStock, 0, len(req.SizeStock)),
	}
	for _, entry := range req.SizeStock {
		product.SizeStock = append(product.SizeStock, domain.SizeStock{Size: entry.Size, Stock: entry.Stock})
	}

	saved, err := h.catalog.SaveProduct(ctx, product)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusCreated, productResponse{Product: buildProductPayload(saved)})
}
