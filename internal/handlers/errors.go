package handlers

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
	"github.com/crumbhouse/bakery-api/internal/platform/auth"
	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/platform/observability"
	"github.com/crumbhouse/bakery-api/internal/services"
)

// writeServiceError translates service errors into the API error envelope.
func writeServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	var rejected *services.DiscountRejectedError
	var transition *domain.TransitionError
	switch {
	case errors.As(err, &rejected):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeDiscountRejected, rejected.Reason.Message(), http.StatusBadRequest).
			WithDetails(map[string]any{"reason": string(rejected.Reason)}))
	case errors.As(err, &transition):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidTransition, transition.Error(), http.StatusBadRequest).
			WithDetails(map[string]any{"from": string(transition.From), "to": string(transition.To)}))
	case errors.Is(err, domain.ErrInvalidTransition):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidTransition, err.Error(), http.StatusBadRequest))
	case errors.Is(err, domain.ErrNoPreviousStatus):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNoPreviousStatus, "order is already in its initial status", http.StatusBadRequest))
	case errors.Is(err, domain.ErrInvalidStatus):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidStatus, err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderInvalidInput), errors.Is(err, services.ErrCustomOrderInvalidInput):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), http.StatusBadRequest))
	case errors.Is(err, services.ErrOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNotFound, "order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrCustomOrderNotFound):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNotFound, "custom order not found", http.StatusNotFound))
	case errors.Is(err, services.ErrUnknownEntity):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeNotFound, err.Error(), http.StatusNotFound))
	case errors.Is(err, services.ErrOrderConflict), errors.Is(err, services.ErrCustomOrderConflict):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeConflict, "the record changed since it was read; reload and retry", http.StatusConflict))
	case errors.Is(err, services.ErrOrderReferenced):
		httpx.WriteError(ctx, w, httpx.NewError("order_referenced", err.Error(), http.StatusConflict))
	case errors.Is(err, services.ErrUnavailable):
		observability.FromContext(ctx).Warn("backing store unavailable", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, "service temporarily unavailable", http.StatusServiceUnavailable))
	case errors.Is(err, context.DeadlineExceeded):
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, "request timed out", http.StatusServiceUnavailable))
	default:
		observability.FromContext(ctx).Error("request failed", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInternal, "failed to process request", http.StatusInternalServerError))
	}
}

func writeBodyError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, errBodyTooLarge):
		httpx.WriteError(ctx, w, httpx.NewError("payload_too_large", "request body exceeds allowed size", http.StatusRequestEntityTooLarge))
	default:
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, err.Error(), http.StatusBadRequest))
	}
}

// requireIdentity returns the caller's identity, writing 401 when there is none and 403 when
// roles are given and the identity holds none of them.
func requireIdentity(ctx context.Context, w http.ResponseWriter, roles ...string) (*auth.Identity, bool) {
	identity, ok := auth.IdentityFromContext(ctx)
	if !ok || identity.UID == "" {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnauthenticated, "authentication required", http.StatusUnauthorized))
		return nil, false
	}
	if len(roles) > 0 && !identity.HasAnyRole(roles...) {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeForbidden, "identity does not have required role", http.StatusForbidden))
		return nil, false
	}
	return identity, true
}
