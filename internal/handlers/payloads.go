package handlers

import (
	"github.com/hanko-field/commerce-api/internal/payments"
	"github.com/hanko-field/commerce-api/internal/services"
)

type orderItemPayload struct {
	ProductID string  `json:"productId"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
}

type shippingAddressPayload struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state,omitempty"`
	PostalCode  string `json:"postalCode"`
}

type paymentDetailsPayload struct {
	Provider      string `json:"provider,omitempty"`
	PaymentID     string `json:"paymentId,omitempty"`
	TransactionID string `json:"transactionId,omitempty"`
	Currency      string `json:"currency,omitempty"`
	Amount        int64  `json:"amount,omitempty"`
	PaidAt        string `json:"paidAt,omitempty"`
	FailedAt      string `json:"failedAt,omitempty"`
	FailureReason string `json:"failureReason,omitempty"`
	RefundID      string `json:"refundId,omitempty"`
	RefundStatus  string `json:"refundStatus,omitempty"`
	RefundReason  string `json:"refundReason,omitempty"`
	RefundedAt    string `json:"refundedAt,omitempty"`
}

type orderPayload struct {
	ID              string                 `json:"id"`
	UserID          string                 `json:"userId"`
	Items           []orderItemPayload     `json:"items"`
	TotalAmount     float64                `json:"totalAmount"`
	ShippingAddress shippingAddressPayload `json:"shippingAddress"`
	PaymentMethod   string                 `json:"paymentMethod"`
	PaymentStatus   string                 `json:"paymentStatus"`
	OrderStatus     string                 `json:"orderStatus"`
	PaymentDetails  paymentDetailsPayload  `json:"paymentDetails"`
	CreatedAt       string                 `json:"createdAt"`
	UpdatedAt       string                 `json:"updatedAt,omitempty"`
}

type orderResponse struct {
	Order orderPayload `json:"order"`
}

type createOrderResponse struct {
	Order          orderPayload     `json:"order"`
	PaymentDetails *payments.Handle `json:"paymentDetails,omitempty"`
}

type orderListResponse struct {
	Orders      []orderPayload `json:"orders"`
	CurrentPage int            `json:"currentPage"`
	TotalPages  int            `json:"totalPages"`
	TotalOrders int            `json:"totalOrders"`
}

type webhookResponse struct {
	Received bool   `json:"received"`
	Event    string `json:"event,omitempty"`
	OrderID  string `json:"orderId,omitempty"`
	Applied  bool   `json:"applied"`
}

type cartItemPayload struct {
	ProductID string  `json:"productId"`
	Size      string  `json:"size"`
	Quantity  int     `json:"quantity"`
	UnitPrice float64 `json:"unitPrice"`
	Subtotal  float64 `json:"subtotal"`
}

type cartPayload struct {
	UserID    string            `json:"userId"`
	Items     []cartItemPayload `json:"items"`
	Total     float64           `json:"total"`
	UpdatedAt string            `json:"updatedAt,omitempty"`
}

type cartResponse struct {
	Cart cartPayload `json:"cart"`
}

type sizeStockPayload struct {
	Size  string `json:"size"`
	Stock int    `json:"stock"`
}

type productPayload struct {
	ID        string             `json:"id"`
	Name      string             `json:"name"`
	Price     float64            `json:"price"`
	SizeStock []sizeStockPayload `json:"sizeStock"`
	CreatedAt string             `json:"createdAt,omitempty"`
	UpdatedAt string             `json:"updatedAt,omitempty"`
}

type productResponse struct {
	Product productPayload `json:"product"`
}

func buildOrderPayload(order services.Order) orderPayload {
	items := make([]orderItemPayload, 0, len(order.Items))
	for _, item := range order.Items {
		items = append(items, orderItemPayload{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
		})
	}

	details := order.PaymentDetails
	return orderPayload{
		ID:          order.ID,
		UserID:      order.UserID,
		Items:       items,
		TotalAmount: order.TotalAmount,
		ShippingAddress: shippingAddressPayload{
			Name:        order.ShippingAddress.Name,
			PhoneNumber: order.ShippingAddress.PhoneNumber,
			Street:      order.ShippingAddress.Street,
			City:        order.ShippingAddress.City,
			State:       order.ShippingAddress.State,
			PostalCode:  order.ShippingAddress.PostalCode,
		},
		PaymentMethod: string(order.PaymentMethod),
		PaymentStatus: string(order.PaymentStatus),
		OrderStatus:   string(order.OrderStatus),
		PaymentDetails: paymentDetailsPayload{
			Provider:      details.Provider,
			PaymentID:     details.PaymentID,
			TransactionID: details.TransactionID,
			Currency:      details.Currency,
			Amount:        details.Amount,
			PaidAt:        formatTimePtr(details.PaidAt),
			FailedAt:      formatTimePtr(details.FailedAt),
			FailureReason: details.FailureReason,
			RefundID:      details.RefundID,
			RefundStatus:  details.RefundStatus,
			RefundReason:  details.RefundReason,
			RefundedAt:    formatTimePtr(details.RefundedAt),
		},
		CreatedAt: formatTime(order.CreatedAt),
		UpdatedAt: formatTime(order.UpdatedAt),
	}
}

func buildOrderList(page services.OrderPage) orderListResponse {
	orders := make([]orderPayload, 0, len(page.Orders))
	for _, order := range page.Orders {
		orders = append(orders, buildOrderPayload(order))
	}
	return orderListResponse{
		Orders:      orders,
		CurrentPage: page.CurrentPage,
		TotalPages:  page.TotalPages,
		TotalOrders: page.TotalOrders,
	}
}

func buildCartPayload(cart services.Cart) cartPayload {
	items := make([]cartItemPayload, 0, len(cart.Items))
	for _, item := range cart.Items {
		items = append(items, cartItemPayload{
			ProductID: item.ProductID,
			Size:      item.Size,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Subtotal:  item.Subtotal(),
		})
	}
	return cartPayload{
		UserID:    cart.UserID,
		Items:     items,
		Total:     cart.Total(),
		UpdatedAt: formatTime(cart.UpdatedAt),
	}
}

func buildProductPayload(product services.Product) productPayload {
	sizes := make([]sizeStockPayload, 0, len(product.SizeStock))
	for _, entry := range product.SizeStock {
		sizes = append(sizes, sizeStockPayload{Size: entry.Size, Stock: entry.Stock})
	}
	return productPayload{
		ID:        product.ID,
		Name:      product.Name,
		Price:     product.Price,
		SizeStock: sizes,
		CreatedAt: formatTime(product.CreatedAt),
		UpdatedAt: formatTime(product.UpdatedAt),
	}
}
