package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/services"
)

// CakeConfigurationHandlers serves the public data behind the custom cake wizard.
type CakeConfigurationHandlers struct {
	catalog services.CatalogService
	pricing services.PricingService
}

func NewCakeConfigurationHandlers(catalog services.CatalogService, pricing services.PricingService) *CakeConfigurationHandlers {
	return &CakeConfigurationHandlers{catalog: catalog, pricing: pricing}
}

// Routes registers the /cake-configuration endpoints.
func (h *CakeConfigurationHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.Get("/", h.configuration)
	r.Get("/price", h.price)
}

type occasionSizePricePayload struct {
	SizeID string      `json:"sizeId"`
	Price  json.Number `json:"price"`
}

type occasionPayload struct {
	ID         string                     `json:"id"`
	Name       string                     `json:"name"`
	Icon       string                     `json:"icon,omitempty"`
	SizePrices []occasionSizePricePayload `json:"sizePrices,omitempty"`
}

type sizePayload struct {
	ID           string      `json:"id"`
	Name         string      `json:"name"`
	Description  string      `json:"description,omitempty"`
	DefaultPrice json.Number `json:"defaultPrice"`
}

type flavorPayload struct {
	ID              string      `json:"id"`
	Name            string      `json:"name"`
	Color           string      `json:"color,omitempty"`
	AdditionalPrice json.Number `json:"additionalPrice"`
}

type cakeConfigurationPayload struct {
	Occasions []occasionPayload `json:"occasions"`
	Sizes     []sizePayload     `json:"sizes"`
	Flavors   []flavorPayload   `json:"flavors"`
}

func (h *CakeConfigurationHandlers) configuration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.catalog == nil {
		httpx.WriteError(ctx, w, httpx.NewError("catalog_service_unavailable", "catalog service unavailable", http.StatusServiceUnavailable))
		return
	}

	cfg, err := h.catalog.Configuration(ctx)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}

	payload := cakeConfigurationPayload{
		Occasions: make([]occasionPayload, 0, len(cfg.Occasions)),
		Sizes:     make([]sizePayload, 0, len(cfg.Sizes)),
		Flavors:   make([]flavorPayload, 0, len(cfg.Flavors)),
	}
	for _, occasion := range cfg.Occasions {
		item := occasionPayload{ID: occasion.ID, Name: occasion.Name, Icon: occasion.Icon}
		for _, override := range occasion.SizePrices {
			item.SizePrices = append(item.SizePrices, occasionSizePricePayload{SizeID: override.SizeID, Price: money(override.Price)})
		}
		payload.Occasions = append(payload.Occasions, item)
	}
	for _, size := range cfg.Sizes {
		payload.Sizes = append(payload.Sizes, sizePayload{
			ID:           size.ID,
			Name:         size.Name,
			Description:  size.Description,
			DefaultPrice: money(size.DefaultPrice),
		})
	}
	for _, flavor := range cfg.Flavors {
		payload.Flavors = append(payload.Flavors, flavorPayload{
			ID:              flavor.ID,
			Name:            flavor.Name,
			Color:           flavor.Color,
			AdditionalPrice: money(flavor.AdditionalPrice),
		})
	}
	writeJSONResponse(w, http.StatusOK, payload)
}

func (h *CakeConfigurationHandlers) price(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pricing == nil {
		httpx.WriteError(ctx, w, httpx.NewError("pricing_service_unavailable", "pricing service unavailable", http.StatusServiceUnavailable))
		return
	}

	query := r.URL.Query()
	occasionID := strings.TrimSpace(query.Get("occasionId"))
	sizeID := strings.TrimSpace(query.Get("sizeId"))
	flavorID := strings.TrimSpace(query.Get("flavorId"))
	if occasionID == "" || sizeID == "" || flavorID == "" {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "occasionId, sizeId and flavorId are required", http.StatusBadRequest))
		return
	}

	price, err := h.pricing.Resolve(ctx, occasionID, sizeID, flavorID)
	if err != nil {
		writeServiceError(ctx, w, err)
		return
	}
	writeJSONResponse(w, http.StatusOK, map[string]any{
		"occasionId": occasionID,
		"sizeId":     sizeID,
		"flavorId":   flavorID,
		"price":      money(price),
	})
}
