package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/platform/auth"
	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/platform/pagination"
	"github.com/crumbhouse/bakery-api/internal/services"
)

const (
	maxCheckoutBodySize     = 32 * 1024
	maxStatusUpdateBodySize = 4 * 1024
)

// OrderHandlers exposes the merchandise order endpoints.
type OrderHandlers struct {
	authn       *auth.Authenticator
	orders      services.OrderService
	idempotency func(http.Handler) http.Handler
	paging      pagination.Options
}

// OrderHandlerOption customises OrderHandlers.
type OrderHandlerOption func(*OrderHandlers)

// WithCheckoutIdempotency wraps POST /orders with the idempotency middleware.
func WithCheckoutIdempotency(mw func(http.Handler) http.Handler) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.idempotency = mw
	}
}

// WithOrderPagination overrides the default and maximum page sizes of the list endpoint.
func WithOrderPagination(opts pagination.Options) OrderHandlerOption {
	return func(h *OrderHandlers) {
		h.paging = opts
	}
}

// NewOrderHandlers constructs a new OrderHandlers instance.
func NewOrderHandlers(authn *auth.Authenticator, orders services.OrderService, opts ...OrderHandlerOption) *OrderHandlers {
	h := &OrderHandlers{authn: authn, orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /orders endpoints. Every route requires a signed-in caller.
func (h *OrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	if h.authn != nil {
		r.Use(h.authn.RequireAuth())
	}
	checkout := http.Handler(http.HandlerFunc(h.checkout))
	if h.idempotency != nil {
		checkout = h.idempotency(checkout)
	}
	r.Method(http.MethodPost, "/", checkout)
	r.Get("/", h.listOrders)
	r.Get("/{orderID}", h.getOrder)
	r.Put("/{orderID}/status", h.advanceStatus)
	r.Post("/{orderID}/status:rollback", h.rollbackStatus)
	r.Delete("/{orderID}", h.deleteOrder)
}

type checkoutRequest struct {
	Items                []checkoutItemRequest `json:"items"`
	DiscountCode         string                `json:"discountCode"`
	Governorate          string                `json:"governorate"`
	PaymentMethod        string                `json:"paymentMethod"`
	PaymentTransactionID string                `json:"paymentTransactionId"`
}

// checkoutItemRequest carries the price the customer saw. The order is priced from the
// catalogue and a mismatch is rejected.
type checkoutItemRequest struct {
	ProductID string           `json:"productId"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
	Size      string           `json:"size"`
	Color     string           `json:"color"`
}

// orderStatusRequest is the body of the admin status endpoints. Version is mandatory so every
// transition is conditioned on the order the caller last read.
type orderStatusRequest struct {
	Status  string `json:"status"`
	Version *int64 `json:"version"`
	Reason  string `json:"reason"`
}

func (h *OrderHandlers) checkout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w, auth.RoleCustomer)
	if !ok {
		return
	}

	var req checkoutRequest
	if err := decodeJSONBody(r, maxCheckoutBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	cmd := services.CheckoutCommand{
		CustomerID:           identity.UID,
		DiscountCode:         req.DiscountCode,
		Governorate:          req.Governorate,
		PaymentMethod:        req.PaymentMethod,
		PaymentTransactionID: strings.TrimSpace(req.PaymentTransactionID),
		Items:                make([]services.CheckoutItem, 0, len(req.Items)),
	}
	for _, item := range req.Items {
		cmd.Items = append(cmd.Items, services.CheckoutItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			UnitPrice: item.UnitPrice,
			Size:      item.Size,
			Color:     item.Color,
		})
	}

	order, err := h.orders.Checkout(ctx, cmd)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, buildOrderPayload(order))
}

func (h *OrderHandlers) listOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	params, err := pagination.FromRequest(r, h.paging)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), http.StatusBadRequest))
		return
	}

	filter := services.OrderListFilter{PageNumber: params.PageNumber, PageSize: params.PageSize}
	for _, status := range params.Statuses {
		filter.Status = append(filter.Status, domain.OrderStatus(status))
	}
	if !identity.IsBackOffice() {
		filter.CustomerID = identity.UID
	}

	page, err := h.orders.ListOrders(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPagePayload(page, buildOrderPayload))
}

func (h *OrderHandlers) getOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w)
	if !ok {
		return
	}

	order, err := h.orders.GetOrder(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	// other customers' orders are reported as missing rather than forbidden
	if !identity.IsBackOffice() && order.CustomerID != identity.UID {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNotFound, "order not found", http.StatusNotFound))
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) advanceStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w, auth.RoleStaff, auth.RoleAdmin)
	if !ok {
		return
	}

	var req orderStatusRequest
	if err := decodeJSONBody(r, maxStatusUpdateBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if strings.TrimSpace(req.Status) == "" {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "status is required", http.StatusBadRequest))
		return
	}
	if !requireVersion(ctx, w, req.Version) {
		return
	}

	order, err := h.orders.AdvanceStatus(ctx, services.AdvanceOrderStatusCommand{
		OrderID:         chi.URLParam(r, "orderID"),
		TargetStatus:    req.Status,
		ExpectedVersion: req.Version,
		ActorID:         identity.UID,
		Reason:          req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) rollbackStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w, auth.RoleStaff, auth.RoleAdmin)
	if !ok {
		return
	}

	var req orderStatusRequest
	if err := decodeJSONBody(r, maxStatusUpdateBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}
	if !requireVersion(ctx, w, req.Version) {
		return
	}

	order, err := h.orders.RollbackStatus(ctx, services.RollbackOrderStatusCommand{
		OrderID:         chi.URLParam(r, "orderID"),
		ExpectedVersion: req.Version,
		ActorID:         identity.UID,
		Reason:          req.Reason,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildOrderPayload(order))
}

func (h *OrderHandlers) deleteOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w, auth.RoleAdmin); !ok {
		return
	}
	if err := h.orders.DeleteOrder(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type orderPayload struct {
	ID                   string                `json:"id"`
	OrderNumber          string                `json:"orderNumber"`
	CustomerID           string                `json:"customerId"`
	Status               string                `json:"status"`
	Items                []orderItemPayload    `json:"items"`
	Subtotal             json.Number           `json:"subtotal"`
	DiscountCode         string                `json:"discountCode,omitempty"`
	DiscountAmount       json.Number           `json:"discountAmount"`
	Total                json.Number           `json:"total"`
	Governorate          string                `json:"governorate"`
	ShippingFee          json.Number           `json:"shippingFee"`
	PaymentMethod        string                `json:"paymentMethod"`
	PaymentTransactionID string                `json:"paymentTransactionId,omitempty"`
	StatusHistory        []statusChangePayload `json:"statusHistory,omitempty"`
	Version              int64                 `json:"version"`
	CreatedAt            string                `json:"createdAt"`
	UpdatedAt            string                `json:"updatedAt,omitempty"`
}

type orderItemPayload struct {
	ProductID   string      `json:"productId"`
	ProductName string      `json:"productName"`
	Quantity    int         `json:"quantity"`
	UnitPrice   json.Number `json:"unitPrice"`
	LineTotal   json.Number `json:"lineTotal"`
	Size        string      `json:"size,omitempty"`
	Color       string      `json:"color,omitempty"`
}

func buildOrderPayload(order services.Order) orderPayload {
	payload := orderPayload{
		ID:                   order.ID,
		OrderNumber:          order.OrderNumber,
		CustomerID:           order.CustomerID,
		Status:               string(order.Status),
		Items:                make([]orderItemPayload, 0, len(order.Items)),
		Subtotal:             money(order.Subtotal),
		DiscountCode:         order.DiscountCode,
		DiscountAmount:       money(order.DiscountAmount),
		Total:                money(order.Total),
		Governorate:          order.Governorate,
		ShippingFee:          money(order.ShippingFee),
		PaymentMethod:        string(order.PaymentMethod),
		PaymentTransactionID: order.PaymentTransactionID,
		StatusHistory:        buildStatusHistory(order.StatusHistory),
		Version:              order.Version,
		CreatedAt:            formatTime(order.CreatedAt),
		UpdatedAt:            formatTime(order.UpdatedAt),
	}
	for _, item := range order.Items {
		payload.Items = append(payload.Items, orderItemPayload{
			ProductID:   item.ProductID,
			ProductName: item.ProductName,
			Quantity:    item.Quantity,
			UnitPrice:   money(item.UnitPrice),
			LineTotal:   money(item.LineTotal()),
			Size:        item.Size,
			Color:       item.Color,
		})
	}
	return payload
}

func requireVersion(ctx context.Context, w http.ResponseWriter, version *int64) bool {
	if version == nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "version is required", http.StatusBadRequest))
		return false
	}
	if *version < 1 {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "version must be at least 1", http.StatusBadRequest))
		return false
	}
	return true
}
