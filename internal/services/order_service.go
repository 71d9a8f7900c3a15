package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/sync/errgroup"

	domain "github.com/hanko-field/commerce-api/internal/domain"
	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/platform/events"
	"github.com/hanko-field/commerce-api/internal/platform/pagination"
	"github.com/hanko-field/commerce-api/internal/repositories"
)

const (
	orderIDPrefix = "ord_"
	eventIDPrefix = "evt_"

	// maxAvailabilityLookups bounds concurrent product reads during the availability pass.
	maxAvailabilityLookups = 8
	// maxUpdateAttempts bounds re-reads after an optimistic version conflict.
	maxUpdateAttempts = 3
	// stockRestoreTimeout bounds compensating stock restores detached from the request.
	stockRestoreTimeout = 10 * time.Second
	// refundClaimTTL outlives any provider refund call; older claims are abandoned.
	refundClaimTTL = 2 * time.Minute
)

// OrderServiceDeps bundles collaborators required to construct the order service.
type OrderServiceDeps struct {
	Orders      repositories.OrderRepository
	Products    repositories.ProductRepository
	Carts       repositories.CartRepository
	UnitOfWork  repositories.UnitOfWork
	Payments    PaymentGateways
	Events      events.Publisher
	Clock       func() time.Time
	IDGenerator func() string
	Logger      func(ctx context.Context, event string, fields map[string]any)
}

type orderService struct {
	orders     repositories.OrderRepository
	products   repositories.ProductRepository
	carts      repositories.CartRepository
	unitOfWork repositories.UnitOfWork
	payments   PaymentGateways
	events     events.Publisher
	clock      func() time.Time
	newID      func() string
	logger     func(context.Context, string, map[string]any)
}

// NewOrderService wires dependencies into a concrete OrderService implementation.
func NewOrderService(deps OrderServiceDeps) (OrderService, error) {
	if deps.Orders == nil {
		return nil, errors.New("order service: order repository is required")
	}
	if deps.Products == nil {
		return nil, errors.New("order service: product repository is required")
	}
	if deps.Carts == nil {
		return nil, errors.New("order service: cart repository is required")
	}
	if deps.Payments == nil {
		return nil, errors.New("order service: payment gateways are required")
	}

	unit := deps.UnitOfWork
	if unit == nil {
		unit = noopUnitOfWork{}
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	idGen := deps.IDGenerator
	if idGen == nil {
		idGen = func() string {
			return ulid.Make().String()
		}
	}

	publisher := deps.Events
	if publisher == nil {
		publisher = events.Noop{}
	}

	logger := deps.Logger
	if logger == nil {
		logger = func(context.Context, string, map[string]any) {}
	}

	return &orderService{
		orders:     deps.Orders,
		products:   deps.Products,
		carts:      deps.Carts,
		unitOfWork: unit,
		payments:   deps.Payments,
		events:     publisher,
		clock: func() time.Time {
			return clock().UTC()
		},
		newID:  idGen,
		logger: logger,
	}, nil
}

func (s *orderService) CreateOrder(ctx context.Context, cmd CreateOrderCommand) (CreateOrderResult, error) {
	userID := strings.TrimSpace(cmd.UserID)
	if userID == "" {
		return CreateOrderResult{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	method, ok := domain.ParsePaymentMethod(string(cmd.PaymentMethod))
	if !ok {
		return CreateOrderResult{}, fmt.Errorf("%w: unsupported payment method %q", ErrOrderInvalidInput, cmd.PaymentMethod)
	}
	address, err := normalizeShippingAddress(cmd.ShippingAddress)
	if err != nil {
		return CreateOrderResult{}, err
	}

	cart, err := s.carts.GetCart(ctx, userID)
	if err != nil {
		return CreateOrderResult{}, fmt.Errorf("order: load cart: %w", err)
	}
	if cart.IsEmpty() {
		return CreateOrderResult{}, ErrEmptyCart
	}

	if err := s.checkAvailability(ctx, cart.Items); err != nil {
		return CreateOrderResult{}, err
	}

	now := s.now()
	paymentStatus, orderStatus := domain.InitialStatuses(method)
	order := Order{
		ID:              s.nextOrderID(),
		UserID:          userID,
		Items:           snapshotItems(cart.Items),
		TotalAmount:     cart.Total(),
		ShippingAddress: address,
		PaymentMethod:   method,
		PaymentStatus:   paymentStatus,
		OrderStatus:     orderStatus,
		Version:         1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	// cod only enforces its ceiling here; nothing has been mutated yet
	handle, err := s.payments.Initiate(ctx, method, payments.InitiateRequest{
		OrderID: order.ID,
		UserID:  userID,
		Amount:  order.TotalAmount,
	})
	if err != nil {
		s.logger(ctx, "order.create.dispatch_failed", map[string]any{
			"orderId": order.ID,
			"method":  string(method),
			"error":   err,
		})
		return CreateOrderResult{}, err
	}

	var payment *payments.Handle
	if method != domain.PaymentMethodCOD {
		order.PaymentDetails = domain.PaymentDetails{
			Provider:  handle.Provider,
			PaymentID: handle.PaymentID,
			Amount:    handle.Amount,
			Currency:  handle.Currency,
		}
		payment = &handle
	}

	if err := s.reserveStock(ctx, order); err != nil {
		return CreateOrderResult{}, err
	}

	err = s.runInTx(ctx, func(txCtx context.Context) error {
		if err := s.orders.Insert(txCtx, order); err != nil {
			return err
		}
		return s.carts.ClearCart(txCtx, userID)
	})
	if err != nil {
		s.releaseStock(ctx, order.ID, order.Items)
		return CreateOrderResult{}, mapOrderRepositoryError(err)
	}

	s.logger(ctx, "order.created", map[string]any{
		"orderId": order.ID,
		"userId":  userID,
		"method":  string(method),
		"total":   order.TotalAmount,
	})
	s.publishEvent(ctx, events.TypeOrderCreated, order, map[string]any{
		"paymentMethod": string(order.PaymentMethod),
		"totalAmount":   order.TotalAmount,
		"itemCount":     len(order.Items),
	})

	return CreateOrderResult{Order: order, Payment: payment}, nil
}

func (s *orderService) GetOrder(ctx context.Context, orderID, actorID string, isAdmin bool) (Order, error) {
	return s.loadOwnedOrder(ctx, orderID, actorID, isAdmin)
}

func (s *orderService) ListUserOrders(ctx context.Context, query OrderListQuery) (OrderPage, error) {
	if strings.TrimSpace(query.UserID) == "" {
		return OrderPage{}, fmt.Errorf("%w: user id is required", ErrOrderInvalidInput)
	}
	return s.listOrders(ctx, query)
}

func (s *orderService) ListAllOrders(ctx context.Context, query OrderListQuery) (OrderPage, error) {
	return s.listOrders(ctx, query)
}

func (s *orderService) listOrders(ctx context.Context, query OrderListQuery) (OrderPage, error) {
	if query.CreatedFrom != nil && query.CreatedTo != nil && query.CreatedTo.Before(*query.CreatedFrom) {
		return OrderPage{}, fmt.Errorf("%w: end date precedes start date", ErrOrderInvalidInput)
	}

	page := query.Page
	if page.Number < 1 {
		page.Number = 1
	}
	if page.Limit < 1 {
		page.Limit = pagination.DefaultLimit
	}

	result, err := s.orders.List(ctx, repositories.OrderListFilter{
		UserID:        strings.TrimSpace(query.UserID),
		OrderStatus:   query.OrderStatus,
		PaymentStatus: query.PaymentStatus,
		PaymentMethod: query.PaymentMethod,
		CreatedFrom:   query.CreatedFrom,
		CreatedTo:     query.CreatedTo,
		Offset:        page.Offset(),
		Limit:         page.Limit,
	})
	if err != nil {
		return OrderPage{}, mapOrderRepositoryError(err)
	}

	orders := result.Items
	if orders == nil {
		orders = []Order{}
	}
	return OrderPage{
		Orders:      orders,
		CurrentPage: page.Number,
		TotalPages:  page.TotalPages(result.Total),
		TotalOrders: result.Total,
	}, nil
}

func (s *orderService) UpdateOrderStatus(ctx context.Context, cmd UpdateStatusCommand) (Order, error) {
	orderID := strings.TrimSpace(cmd.OrderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	status, ok := domain.ParseOrderStatus(string(cmd.Status))
	if !ok {
		return Order{}, fmt.Errorf("%w: unknown order status %q", ErrOrderInvalidInput, cmd.Status)
	}

	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}

	// a cancelled cod order gave its quantities back; reopening it takes them again first
	reopen := order.PaymentMethod == domain.PaymentMethodCOD && order.StockReleased &&
		status != domain.OrderStatusCancelled
	if reopen {
		if err := s.reserveStock(ctx, order); err != nil {
			return Order{}, err
		}
	}

	var previous domain.OrderStatus
	var released, reacquired bool
	saved, err := s.updateWithRetry(ctx, order, func(current *Order) error {
		released, reacquired = false, false
		if current.PaymentMethod == domain.PaymentMethodCOD && current.OrderStatus == domain.OrderStatusDelivered {
			return fmt.Errorf("%w: delivered cash on delivery orders are final", ErrOrderConflict)
		}
		previous = current.OrderStatus
		current.OrderStatus = status
		if current.PaymentMethod != domain.PaymentMethodCOD {
			return nil
		}
		switch {
		case status == domain.OrderStatusCancelled && !current.StockReleased:
			current.StockReleased = true
			released = true
		case status != domain.OrderStatusCancelled && current.StockReleased:
			if !reopen {
				return fmt.Errorf("%w: order %s was cancelled concurrently", ErrOrderConflict, current.ID)
			}
			current.StockReleased = false
			reacquired = true
		}
		return nil
	})
	if reopen && (err != nil || !reacquired) {
		// the stock taken for the reopen was not claimed by the saved order
		s.releaseStock(ctx, order.ID, order.Items)
	}
	if err != nil {
		return Order{}, err
	}
	if released {
		s.releaseStock(ctx, saved.ID, saved.Items)
	}

	s.logger(ctx, "order.status_changed", map[string]any{
		"orderId": saved.ID,
		"from":    string(previous),
		"to":      string(status),
		"actorId": cmd.ActorID,
	})
	s.publishEvent(ctx, events.TypeOrderStatusChanged, saved, map[string]any{
		"previousStatus": string(previous),
		"currentStatus":  string(status),
		"actorId":        cmd.ActorID,
	})
	return saved, nil
}

// checkAvailability loads every product concurrently, then checks lines in cart order so
// the reported failure is deterministic.
func (s *orderService) checkAvailability(ctx context.Context, items []CartItem) error {
	products := make([]Product, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(maxAvailabilityLookups)
	for i, item := range items {
		group.Go(func() error {
			product, err := s.products.Get(groupCtx, item.ProductID)
			if err != nil {
				return mapProductRepositoryError(err)
			}
			products[i] = product
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, item := range items {
		if !domain.CheckAvailability(products[i], item.Size, item.Quantity) {
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Size:      item.Size,
				Requested: item.Quantity,
				Available: domain.StockFor(products[i], item.Size),
			}
		}
	}
	return nil
}

// reserveStock decreases stock line by line. On the first failure every decrement already
// applied for this order is restored. A failure after a provider dispatch cannot be undone
// here and is reported for manual reconciliation.
func (s *orderService) reserveStock(ctx context.Context, order Order) error {
	applied := make([]OrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		ok, err := s.products.DecreaseStock(ctx, item.ProductID, item.Size, item.Quantity)
		if err == nil && ok {
			applied = append(applied, item)
			continue
		}

		s.releaseStock(ctx, order.ID, applied)

		if order.PaymentMethod == domain.PaymentMethodCOD {
			if err != nil {
				return fmt.Errorf("order: decrease stock: %w", mapProductRepositoryError(err))
			}
			available := 0
			if product, getErr := s.products.Get(ctx, item.ProductID); getErr == nil {
				available = domain.StockFor(product, item.Size)
			}
			return &InsufficientStockError{
				ProductID: item.ProductID,
				Size:      item.Size,
				Requested: item.Quantity,
				Available: available,
			}
		}

		partial := &PartialFulfillmentError{
			OrderID:   order.ID,
			PaymentID: order.PaymentDetails.PaymentID,
			ProductID: item.ProductID,
			Size:      item.Size,
		}
		fields := map[string]any{
			"level":     "error",
			"orderId":   order.ID,
			"userId":    order.UserID,
			"paymentId": order.PaymentDetails.PaymentID,
			"provider":  order.PaymentDetails.Provider,
			"productId": item.ProductID,
			"size":      item.Size,
		}
		if err != nil {
			fields["error"] = err
		}
		s.logger(ctx, "order.create.reconciliation_required", fields)
		s.publishEvent(ctx, events.TypeOrderReconciliationRequired, order, map[string]any{
			"paymentId": order.PaymentDetails.PaymentID,
			"provider":  order.PaymentDetails.Provider,
			"amount":    order.PaymentDetails.Amount,
			"productId": item.ProductID,
			"size":      item.Size,
		})
		return partial
	}
	return nil
}

// releaseStock adds quantities back. Failures are logged and skipped; a size removed from
// the catalog since the order was placed cannot be restored.
func (s *orderService) releaseStock(ctx context.Context, orderID string, items []OrderItem) {
	if len(items) == 0 {
		return
	}
	// compensation must outlive a cancelled request or an expired deadline
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stockRestoreTimeout)
	defer cancel()
	for _, item := range items {
		if err := s.products.RestoreStock(ctx, item.ProductID, item.Size, item.Quantity); err != nil {
			s.logger(ctx, "order.stock.restore_failed", map[string]any{
				"orderId":   orderID,
				"productId": item.ProductID,
				"size":      item.Size,
				"quantity":  item.Quantity,
				"error":     err,
			})
		}
	}
}

// loadOwnedOrder hides orders owned by someone else behind ErrOrderNotFound.
func (s *orderService) loadOwnedOrder(ctx context.Context, orderID, actorID string, isAdmin bool) (Order, error) {
	orderID = strings.TrimSpace(orderID)
	if orderID == "" {
		return Order{}, fmt.Errorf("%w: order id is required", ErrOrderInvalidInput)
	}
	order, err := s.orders.FindByID(ctx, orderID)
	if err != nil {
		return Order{}, mapOrderRepositoryError(err)
	}
	if !isAdmin && order.UserID != strings.TrimSpace(actorID) {
		return Order{}, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	}
	return order, nil
}

// updateWithRetry applies mutate to the latest copy of the order and persists it with an
// optimistic version check, re-reading on conflict. mutate may return an error to abort,
// or errNoChange to return the current order untouched.
func (s *orderService) updateWithRetry(ctx context.Context, order Order, mutate func(*Order) error) (Order, error) {
	current := order
	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		next := current.Clone()
		if err := mutate(&next); err != nil {
			if errors.Is(err, errNoChange) {
				return current, nil
			}
			return Order{}, err
		}
		next.UpdatedAt = s.now()

		saved, err := s.orders.Update(ctx, next)
		if err == nil {
			return saved, nil
		}
		if !repositories.IsConflict(err) {
			return Order{}, mapOrderRepositoryError(err)
		}

		current, err = s.orders.FindByID(ctx, order.ID)
		if err != nil {
			return Order{}, mapOrderRepositoryError(err)
		}
	}
	return Order{}, fmt.Errorf("%w: order %s was modified concurrently", ErrOrderConflict, order.ID)
}

var errNoChange = errors.New("order: no change")

func (s *orderService) publishEvent(ctx context.Context, eventType string, order Order, data map[string]any) {
	event := events.Event{
		ID:         eventIDPrefix + s.newID(),
		Type:       eventType,
		OrderID:    order.ID,
		UserID:     order.UserID,
		OccurredAt: s.now(),
		Data:       data,
	}
	if err := s.events.Publish(ctx, event); err != nil {
		s.logger(ctx, "order.event.publish.failed", map[string]any{
			"type":  eventType,
			"order": order.ID,
			"error": err.Error(),
		})
	}
}

func (s *orderService) runInTx(ctx context.Context, fn func(context.Context) error) error {
	return s.unitOfWork.RunInTx(ctx, fn)
}

func (s *orderService) nextOrderID() string {
	return orderIDPrefix + strings.ToUpper(s.newID())
}

func (s *orderService) now() time.Time {
	return s.clock()
}

type noopUnitOfWork struct{}

func (noopUnitOfWork) RunInTx(ctx context.Context, fn func(context.Context) error) error {
	return fn(ctx)
}

func snapshotItems(items []CartItem) []OrderItem {
	out := make([]OrderItem, 0, len(items))
	for _, item := range items {
		out = append(out, OrderItem{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}
	return out
}

func normalizeShippingAddress(addr ShippingAddress) (ShippingAddress, error) {
	out := ShippingAddress{
		Name:        strings.TrimSpace(addr.Name),
		PhoneNumber: strings.TrimSpace(addr.PhoneNumber),
		Street:      strings.TrimSpace(addr.Street),
		City:        strings.TrimSpace(addr.City),
		State:       strings.TrimSpace(addr.State),
		PostalCode:  strings.TrimSpace(addr.PostalCode),
	}
	var missing []string
	if out.Name == "" {
		missing = append(missing, "name")
	}
	if out.Street == "" {
		missing = append(missing, "street")
	}
	if out.City == "" {
		missing = append(missing, "city")
	}
	if out.PostalCode == "" {
		missing = append(missing, "postalCode")
	}
	if len(missing) > 0 {
		return ShippingAddress{}, fmt.Errorf("%w: shipping address requires %s", ErrOrderInvalidInput, strings.Join(missing, ", "))
	}
	return out, nil
}
