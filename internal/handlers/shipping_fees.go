package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/services"
)

// ShippingFeeHandlers exposes the public delivery fee table.
type ShippingFeeHandlers struct {
	fees services.ShippingFeeService
}

func NewShippingFeeHandlers(fees services.ShippingFeeService) *ShippingFeeHandlers {
	return &ShippingFeeHandlers{fees: fees}
}

// Routes registers the /shipping-fees endpoints.
func (h *ShippingFeeHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.list)
	r.Get("/{governorate}", h.get)
}

type shippingFeePayload struct {
	Governorate       string      `json:"governorate"`
	Name              string      `json:"name"`
	Fee               json.Number `json:"fee"`
	EstimatedDelivery string      `json:"estimatedDelivery,omitempty"`
}

func buildShippingFeePayload(fee services.ShippingFee) shippingFeePayload {
	return shippingFeePayload{
		Governorate:       fee.Governorate,
		Name:              fee.Name,
		Fee:               money(fee.Fee),
		EstimatedDelivery: fee.EstimatedDelivery,
	}
}

func (h *ShippingFeeHandlers) list(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_fee_service_unavailable", "shipping fee service unavailable", http.StatusServiceUnavailable))
		return
	}
	fees, err := h.fees.ListActive(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	items := make([]shippingFeePayload, 0, len(fees))
	for _, fee := range fees {
		items = append(items, buildShippingFeePayload(fee))
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{"items": items})
}

func (h *ShippingFeeHandlers) get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.fees == nil {
		httpx.WriteError(ctx, w, httpx.NewError("shipping_fee_service_unavailable", "shipping fee service unavailable", http.StatusServiceUnavailable))
		return
	}
	fee, err := h.fees.Lookup(ctx, chi.URLParam(r, "governorate"))
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, buildShippingFeePayload(fee))
}
