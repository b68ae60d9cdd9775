package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5/middleware"

	"github.com/crumbhouse/bakery-api/internal/platform/requestctx"
)

// Machine readable error codes shared by every handler.
const (
	CodeInvalidRequest    = "invalid_request"
	CodeInvalidStatus     = "invalid_status"
	CodeInvalidTransition = "invalid_transition"
	CodeNoPreviousStatus  = "no_previous_status"
	CodeDiscountRejected  = "discount_rejected"
	CodeNotFound          = "not_found"
	CodeConflict          = "conflict"
	CodeUnauthenticated   = "unauthenticated"
	CodeForbidden         = "forbidden"
	CodeRateLimited       = "rate_limited"
	CodeUnavailable       = "service_unavailable"
	CodeInternal          = "internal_error"
)

// Error is the JSON error envelope returned by the API.
type Error struct {
	Code    string
	Message string
	Status  int
	Details map[string]any
}

// NewError builds an Error, defaulting the status to 500.
func NewError(code, message string, status int) Error {
	if status == 0 {
		status = http.StatusInternalServerError
	}
	return Error{
		Code:    truncate(code, 80),
		Message: truncate(message, 512),
		Status:  status,
	}
}

// WithDetails attaches extra top-level fields to the envelope.
func (e Error) WithDetails(details map[string]any) Error {
	if len(details) == 0 {
		return e
	}
	merged := make(map[string]any, len(e.Details)+len(details))
	for k, v := range e.Details {
		merged[k] = v
	}
	for k, v := range details {
		merged[k] = v
	}
	e.Details = merged
	return e
}

// Error implements the error interface so handlers can pass envelopes around as errors.
func (e Error) Error() string {
	return e.Code + ": " + e.Message
}

// WriteError renders err together with the request and trace identifiers found on ctx.
func WriteError(ctx context.Context, w http.ResponseWriter, err Error) {
	status := err.Status
	if status == 0 {
		status = http.StatusInternalServerError
	}
	payload := map[string]any{
		"error":   err.Code,
		"message": err.Message,
		"status":  status,
	}
	if id := truncate(middleware.GetReqID(ctx), 80); id != "" {
		payload["request_id"] = id
	}
	if id := truncate(requestctx.TraceID(ctx), 64); id != "" {
		payload["trace_id"] = id
	}
	for k, v := range err.Details {
		if _, reserved := payload[k]; !reserved {
			payload[k] = v
		}
	}
	WriteJSON(w, status, payload)
}

// WriteJSON encodes payload with the given status code.
func WriteJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if payload == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(payload)
}

func truncate(value string, limit int) string {
	value = strings.TrimSpace(strings.NewReplacer("\n", " ", "\r", " ").Replace(value))
	if len(value) > limit {
		value = value[:limit]
	}
	return value
}
