package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/platform/auth"
	"github.com/hanko-field/commerce-api/internal/platform/httpx"
	"github.com/hanko-field/commerce-api/internal/platform/observability"
	"github.com/hanko-field/commerce-api/internal/platform/pagination"
	"github.com/hanko-field/commerce-api/internal/services"
)

const (
	maxOrderBodySize   = 16 * 1024
	maxWebhookBodySize = 1 << 20
	maxOrderPageSize   = 100
)

type createOrderRequest struct {
	ShippingAddress shippingAddressPayload `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
}

type updateStatusRequest struct {
	OrderStatus string `json:"orderStatus"`
}

type refundRequest struct {
	Reason string `json:"reason"`
}

// OrderHandlers exposes order placement, listing, status and settlement endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
}

// OrderHandlersOption customises OrderHandlers.
type OrderHandlersOption func(*OrderHandlers)

// WithOrderIdempotency guards order creation with the given middleware. It runs after
// authentication so that keys are scoped to the caller.
func WithOrderIdempotency(mw func(http.Handler) http.Handler) OrderHandlersOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlersOption) *OrderHandlers {
	h := &OrderHandlers{
		authn:  authn,
		orders: orders,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /order endpoints. Provider webhooks are unauthenticated and rely on
// the gateway signature checks.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}

	r.Post("/webhook/card", h.webhook(domain.PaymentMethodCard))
	r.Post("/webhook/regional", h.webhook(domain.PaymentMethodRegional))

	r.Group(func(user chi.Router) {
		if h.authn != nil {
			user.Use(h.authn.RequireAuth(), observability.IdentityLogFields)
		}
		if h.idempotency != nil {
			user.With(h.idempotency).Post("/create", h.createOrder)
		} else {
			user.Post("/create", h.createOrder)
		}
		user.Get("/user-orders", h.listUserOrders)
		user.Post("/confirm-cod/{orderID}", h.confirmCod)
		user.Post("/verify/card", h.verifyCard)
		user.Post("/verify/regional", h.verifyRegional)
		user.Post("/refund/{orderID}", h.refundOrder)
		user.Get("/{orderID}", h.getOrder)
	})

	r.Group(func(admin chi.Router) {
		if h.authn != nil {
			admin.Use(h.authn.RequireAuth(auth.RoleAdmin), observability.IdentityLogFields)
		}
		admin.Get("/list", h.listAllOrders)
		admin.Put("/status/{orderID}", h.updateStatus)
	})
}

func (h *OrderHandlers) available(w http.ResponseWriter, r *http.Request) bool {
	if h.orders == nil {
		httpx.WriteError(r.Context(), w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return false
	}
	return true
}

func (h *OrderHandlers) createOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	var req createOrderRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}

	result, err := h.orders.CreateOrder(ctx, services.CreateOrderCommand{
		UserID: identity.UserID,
		ShippingAddress: services.ShippingAddress{
			Name:        req.ShippingAddress.Name,
			PhoneNumber: req.ShippingAddress.PhoneNumber,
			Street:      req.ShippingAddress.Street,
			City:        req.ShippingAddress.City,
			State:       req.ShippingAddress.State,
			PostalCode:  req.ShippingAddress.PostalCode,
		},
		PaymentMethod: domain.PaymentMethod(req.PaymentMethod),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	httpx.WriteJSON(w, http.StatusCreated, createOrderResponse{
		Order:          buildOrderPayload(result.Order),
		PaymentDetails: result.Payment,
	})
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	order, err := h.orders.GetOrder(ctx, orderID, identity.UserID, identity.IsAdmin())
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) listUserOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	query, ok := parseOrderListQuery(w, r)
	if !ok {
		return
	}
	query.UserID = identity.UserID

	page, err := h.orders.ListUserOrders(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderList(page))
}

func (h *OrderHandlers) listAllOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	if !requireAdmin(w, r) {
		return
	}

	query, ok := parseOrderListQuery(w, r)
	if !ok {
		return
	}
	query.UserID = strings.TrimSpace(r.URL.Query().Get("userId"))

	page, err := h.orders.ListAllOrders(ctx, query)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, buildOrderList(page))
}

func (h *OrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}
	if !identity.IsAdmin() {
		httpx.WriteError(ctx, w, httpx.NewError("forbidden", "admin role required", http.StatusForbidden))
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req updateStatusRequest
	if !decodeJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}
	status, ok := domain.ParseOrderStatus(req.OrderStatus)
	if !ok {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "orderStatus is invalid", http.StatusBadRequest))
		return
	}

	order, err := h.orders.UpdateOrderStatus(ctx, services.UpdateStatusCommand{
		OrderID: orderID,
		Status:  status,
		ActorID: identity.UserID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

func (h *OrderHandlers) refundOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if !h.available(w, r) {
		return
	}
	identity, ok := requireIdentity(w, r)
	if !ok {
		return
	}

	orderID := strings.TrimSpace(chi.URLParam(r, "orderID"))
	if orderID == "" {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "order id is required", http.StatusBadRequest))
		return
	}

	var req refundRequest
	if !decodeOptionalJSONBody(w, r, maxOrderBodySize, &req) {
		return
	}

	order, err := h.orders.RefundOrder(ctx, services.RefundCommand{
		OrderID: orderID,
		ActorID: identity.UserID,
		IsAdmin: identity.IsAdmin(),
		Reason:  strings.TrimSpace(req.Reason),
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, orderResponse{Order: buildOrderPayload(order)})
}

// requireAdmin re-checks the admin role for routes mounted without an authenticator.
func requireAdmin(w http.ResponseWriter, r *http.Request) bool {
	identity, ok := requireIdentity(w, r)
	if !ok {
		return false
	}
	if !identity.IsAdmin() {
		httpx.WriteError(r.Context(), w, httpx.NewError("forbidden", "admin role required", http.StatusForbidden))
		return false
	}
	return true
}

func parseOrderListQuery(w http.ResponseWriter, r *http.Request) (services.OrderListQuery, bool) {
	ctx := r.Context()
	values := r.URL.Query()

	page, err := pagination.ParsePage(values, pagination.Options{MaxLimit: maxOrderPageSize})
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "page and limit must be positive integers", http.StatusBadRequest))
		return services.OrderListQuery{}, false
	}
	dates, err := pagination.ParseDateRange(values, "startDate", "endDate")
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError("invalid_request", "startDate and endDate must be YYYY-MM-DD or RFC3339 and ordered", http.StatusBadRequest))
		return services.OrderListQuery{}, false
	}

	query := services.OrderListQuery{
		Page:        page,
		CreatedFrom: dates.From,
		CreatedTo:   dates.To,
	}
	if !parseEnumFilter(w, r, values, "status", domain.ParseOrderStatus, &query.OrderStatus) {
		return services.OrderListQuery{}, false
	}
	if !parseEnumFilter(w, r, values, "paymentStatus", domain.ParsePaymentStatus, &query.PaymentStatus) {
		return services.OrderListQuery{}, false
	}
	if !parseEnumFilter(w, r, values, "paymentMethod", domain.ParsePaymentMethod, &query.PaymentMethod) {
		return services.OrderListQuery{}, false
	}
	return query, true
}

func parseEnumFilter[T ~string](w http.ResponseWriter, r *http.Request, values url.Values, key string, parse func(string) (T, bool), dst *T) bool {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return true
	}
	parsed, ok := parse(raw)
	if !ok {
		httpx.WriteError(r.Context(), w, httpx.NewError("invalid_request", key+" filter is invalid", http.StatusBadRequest))
		return false
	}
	*dst = parsed
	return true
}
