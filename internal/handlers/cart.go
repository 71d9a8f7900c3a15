package handlers

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/hanko-field/commerce-api/internal/platform/auth"
	"github.com/hanko-field/commerce-api/internal/platform/httpx"
	"github.com/hanko-field/commerce-api/internal/platform/observability"
	"github.com/hanko-field/commerce-api/internal/services"
)

const maxCartBodySize = 16 * 1024

type cartItemRequest struct {
	ProductID string `json:"productId"`
	Size      string `json:"size"`
	Quantity  *int   `json:"quantity"`
}

// CartHandlers exposes the authenticated caller's cart.
type CartHandlers struct {
	authn *auth.Authenticator
	carts services.CartService
}

// NewCartHandlers constructs handlers enforcing authentication before invoking the cart service.
func NewCartHandlers(authn *auth.Authenticator, carts services.CartService) *CartHandlers {
	return &CartHandlers{
		authn: authn,
		carts: carts,
	}
}

// Routes wires the /cart endpoints onto the provided router.
func (h *CartHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth(), observability.IdentityLogFields)
	}
	r.Get("/", h.getCart)
	r.Post("/add", h.addItem)
	r.Put("/update", h.updateItem)
	r.Delete("/remove", h.removeItem)
}

func (h *CartHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.carts == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("cart_service_unavailable", "cart service is unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *CartHandlers) getCart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	cart, err := h.carts.GetCart(ctx, identity.UserID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCartResponse(w, cart)
}

func (h *CartHandlers) addItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, true, services.CartService.AddItem)
}

func (h *CartHandlers) updateItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, true, services.CartService.UpdateItem)
}

func (h *CartHandlers) removeItem(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, false, services.CartService.RemoveItem)
}

type cartMutation func(services.CartService, context.Context, services.CartItemCommand) (services.Cart, error)

func (h *CartHandlers) mutate(w http.ResponseWriter, r *http.Request, needsQuantity bool, apply cartMutation) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req cartItemRequest
	if !decodeJSONBody(w, r, maxCartBodySize, &req) {
		return
	}
	cmd := services.CartItemCommand{
		UserID:    identity.UserID,
		ProductID: strings.TrimSpace(req.ProductID),
		Size:      strings.TrimSpace(req.Size),
	}
	if cmd.ProductID == "" || cmd.Size == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "productId and size are required", http.StatusBadRequest))
		return
	}
	if needsQuantity {
		if req.Quantity == nil {
			httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "quantity is required", http.StatusBadRequest))
			return
		}
		cmd.Quantity = *req.Quantity
	}

	cart, err := apply(h.carts, ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeCartResponse(w, cart)
}

func writeCartResponse(w http.ResponseWriter, cart services.Cart) {
	w.Header().Set("Cache-Control", "no-store, no-cache, max-age=0, must-revalidate")
	if !cart.UpdatedAt.IsZero() {
		w.Header().Set("Last-Modified", cart.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if etag := buildCartETag(cart); etag != "" {
		w.Header().Set("ETag", etag)
	}
	httpx.WriteJSON(w, http.StatusOK, cartResponse{Cart: buildCartPayload(cart)})
}

func buildCartETag(cart services.Cart) string {
	if strings.TrimSpace(cart.UserID) == "" || cart.UpdatedAt.IsZero() {
		return ""
	}
	input := fmt.Sprintf("%s:%d:%d", strings.TrimSpace(cart.UserID), cart.UpdatedAt.UTC().UnixNano(), len(cart.Items))
	sum := sha256.Sum256([]byte(input))
	return fmt.Sprintf(`W/"%s"`, hex.EncodeToString(sum[:8]))
}
