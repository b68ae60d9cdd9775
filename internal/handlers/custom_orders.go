package handlers

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/platform/auth"
	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/platform/pagination"
	"github.com/crumbhouse/bakery-api/internal/services"
)

const maxCustomOrderBodySize = 16 * 1024

// CustomOrderHandlers exposes the custom cake order endpoints. Submitting an order is public;
// everything else is back-office only.
type CustomOrderHandlers struct {
	authn     *auth.Authenticator
	orders    services.CustomOrderService
	rateLimit func(http.Handler) http.Handler
	paging    pagination.Options
}

// CustomOrderHandlerOption customises CustomOrderHandlers.
type CustomOrderHandlerOption func(*CustomOrderHandlers)

// WithCustomOrderRateLimit throttles the public submission endpoint.
func WithCustomOrderRateLimit(mw func(http.Handler) http.Handler) CustomOrderHandlerOption {
	return func(h *CustomOrderHandlers) {
		h.rateLimit = mw
	}
}

// WithCustomOrderPagination overrides the default and maximum page sizes of the list endpoint.
func WithCustomOrderPagination(opts pagination.Options) CustomOrderHandlerOption {
	return func(h *CustomOrderHandlers) {
		h.paging = opts
	}
}

// NewCustomOrderHandlers constructs the custom order handlers.
func NewCustomOrderHandlers(authn *auth.Authenticator, orders services.CustomOrderService, opts ...CustomOrderHandlerOption) *CustomOrderHandlers {
	h := &CustomOrderHandlers{authn: authn, orders: orders}
	for _, opt := range opts {
		if opt != nil {
			opt(h)
		}
	}
	return h
}

// Routes registers the /custom-orders endpoints.
func (h *CustomOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	create := http.Handler(http.HandlerFunc(h.create))
	if h.rateLimit != nil {
		create = h.rateLimit(create)
	}
	r.Method(http.MethodPost, "/", create)

	r.Group(func(staff chi.Router) {
		if h.authn != nil {
			staff.Use(h.authn.RequireAuth(auth.RoleStaff, auth.RoleAdmin))
		}
		staff.Get("/", h.list)
		staff.Get("/{orderID}", h.get)
		staff.Put("/{orderID}/status", h.updateStatus)
		staff.Delete("/{orderID}", h.delete)
	})
}

type createCustomOrderRequest struct {
	CustomerName   string    `json:"customerName"`
	CustomerPhone  string    `json:"customerPhone"`
	OccasionID     string    `json:"occasionId"`
	SizeID         string    `json:"sizeId"`
	FlavorID       string    `json:"flavorId"`
	Customization  string    `json:"customization"`
	DesignImageRef string    `json:"designImageRef"`
	PickupAt       time.Time `json:"pickupAt"`
	CustomerNotes  string    `json:"customerNotes"`
	PaymentMethod  string    `json:"paymentMethod"`
}

type updateCustomOrderStatusRequest struct {
	Status     string           `json:"status"`
	FinalPrice *decimal.Decimal `json:"finalPrice"`
	AdminNotes *string          `json:"adminNotes"`
	Version    *int64           `json:"version"`
}

func (h *CustomOrderHandlers) create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("custom_order_service_unavailable", "custom order service unavailable", http.StatusServiceUnavailable))
		return
	}

	var req createCustomOrderRequest
	if err := decodeJSONBody(r, maxCustomOrderBodySize, &req); err != nil {
		writeBodyError(ctx, w, err)
		return
	}

	// the endpoint is public; a signed-in caller is linked to the order when the gateway passed one through
	var customerID string
	if identity, ok := auth.IdentityFromContext(ctx); ok {
		customerID = identity.UID
	}

	order, err := h.orders.Create(ctx, services.CreateCustomOrderCommand{
		CustomerID:     customerID,
		CustomerName:   req.CustomerName,
		CustomerPhone:  req.CustomerPhone,
		OccasionID:     req.OccasionID,
		SizeID:         req.SizeID,
		FlavorID:       req.FlavorID,
		Customization:  req.Customization,
		DesignImageRef: req.DesignImageRef,
		PickupAt:       req.PickupAt,
		CustomerNotes:  req.CustomerNotes,
		PaymentMethod:  req.PaymentMethod,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.Header().Set("Location", "/custom-orders/"+order.ID)
	writeJSONResponse(w, http.StatusCreated, buildCustomOrderPayload(order))
}

func (h *CustomOrderHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("custom_order_service_unavailable", "custom order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w, auth.RoleStaff, auth.RoleAdmin); !ok {
		return
	}

	params, err := pagination.FromRequest(r, h.paging)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), http.StatusBadRequest))
		return
	}
	filter := services.CustomOrderListFilter{PageNumber: params.PageNumber, PageSize: params.PageSize}
	for _, status := range params.Statuses {
		filter.Status = append(filter.Status, domain.CustomOrderStatus(status))
	}

	page, err := h.orders.List(ctx, filter)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildPagePayload(page, buildCustomOrderPayload))
}

func (h *CustomOrderHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("custom_order_service_unavailable", "custom order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w, auth.RoleStaff, auth.RoleAdmin); !ok {
		return
	}
	order, err := h.orders.Get(ctx, chi.URLParam(r, "orderID"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomOrderPayload(order))
}

func (h *CustomOrderHandlers) updateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("custom_order_service_unavailable", "custom order service unavailable", http.StatusServiceUnavailable))
		return
	}
	identity, ok := requireIdentity(ctx, w, auth.RoleStaff, auth.RoleAdmin)
	if !ok {
		return
	}

	var req updateCustomOrderStatusRequest
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

	order, err := h.orders.UpdateStatus(ctx, services.UpdateCustomOrderStatusCommand{
		OrderID:         chi.URLParam(r, "orderID"),
		TargetStatus:    req.Status,
		FinalPrice:      req.FinalPrice,
		AdminNotes:      req.AdminNotes,
		ExpectedVersion: req.Version,
		ActorID:         identity.UID,
	})
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildCustomOrderPayload(order))
}

func (h *CustomOrderHandlers) delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("custom_order_service_unavailable", "custom order service unavailable", http.StatusServiceUnavailable))
		return
	}
	if _, ok := requireIdentity(ctx, w, auth.RoleAdmin); !ok {
		return
	}
	if err := h.orders.Delete(ctx, chi.URLParam(r, "orderID")); err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type customOrderPayload struct {
	ID             string                `json:"id"`
	OrderNumber    string                `json:"orderNumber"`
	CustomerName   string                `json:"customerName"`
	CustomerPhone  string                `json:"customerPhone"`
	OccasionID     string                `json:"occasionId"`
	SizeID         string                `json:"sizeId"`
	FlavorID       string                `json:"flavorId"`
	Customization  string                `json:"customization,omitempty"`
	DesignImageRef string                `json:"designImageRef,omitempty"`
	PickupAt       string                `json:"pickupAt"`
	CustomerNotes  string                `json:"customerNotes,omitempty"`
	PaymentMethod  string                `json:"paymentMethod"`
	Status         string                `json:"status"`
	EstimatedPrice json.Number           `json:"estimatedPrice"`
	FinalPrice     *json.Number          `json:"finalPrice,omitempty"`
	Price          json.Number           `json:"price"`
	AdminNotes     string                `json:"adminNotes,omitempty"`
	StatusHistory  []statusChangePayload `json:"statusHistory,omitempty"`
	Version        int64                 `json:"version"`
	CreatedAt      string                `json:"createdAt"`
	UpdatedAt      string                `json:"updatedAt,omitempty"`
}

func buildCustomOrderPayload(order services.CustomOrder) customOrderPayload {
	return customOrderPayload{
		ID:             order.ID,
		OrderNumber:    order.OrderNumber,
		CustomerName:   order.CustomerName,
		CustomerPhone:  order.CustomerPhone,
		OccasionID:     order.OccasionID,
		SizeID:         order.SizeID,
		FlavorID:       order.FlavorID,
		Customization:  order.Customization,
		DesignImageRef: order.DesignImageRef,
		PickupAt:       formatTime(order.PickupAt),
		CustomerNotes:  order.CustomerNotes,
		PaymentMethod:  string(order.PaymentMethod),
		Status:         string(order.Status),
		EstimatedPrice: money(order.EstimatedPrice),
		FinalPrice:     moneyPtr(order.FinalPrice),
		Price:          money(order.EffectivePrice()),
		AdminNotes:     order.AdminNotes,
		StatusHistory:  buildStatusHistory(order.StatusHistory),
		Version:        order.Version,
		CreatedAt:      formatTime(order.CreatedAt),
		UpdatedAt:      formatTime(order.UpdatedAt),
	}
}
