package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	domain "github.com/crumbhouse/bakery-api/internal/domain"
)

const defaultMaxBodySize = 64 * 1024

var (
	errEmptyBody    = errors.New("request body is required")
	errBodyTooLarge = errors.New("request body too large")
)

func readLimitedBody(r *http.Request, limit int64) ([]byte, error) {
	if r == nil || r.Body == nil {
		return nil, errEmptyBody
	}
	if limit <= 0 {
		limit = defaultMaxBodySize
	}
	reader := io.LimitReader(r.Body, limit+1)
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}
	if len(strings.TrimSpace(string(data))) == 0 {
		return nil, errEmptyBody
	}
	if int64(len(data)) > limit {
		return nil, errBodyTooLarge
	}
	return data, nil
}

// decodeJSONBody reads a bounded, non-empty JSON body into dst.
func decodeJSONBody(r *http.Request, limit int64, dst any) error {
	body, err := readLimitedBody(r, limit)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return nil
}

func writeJSONResponse(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// money renders an amount as a JSON number rather than a quoted string.
func money(value decimal.Decimal) json.Number {
	return json.Number(value.String())
}

func moneyPtr(value *decimal.Decimal) *json.Number {
	if value == nil {
		return nil
	}
	n := money(*value)
	return &n
}

type pagePayload[T any] struct {
	Items      []T `json:"items"`
	TotalItems int `json:"totalItems"`
	PageNumber int `json:"pageNumber"`
	PageSize   int `json:"pageSize"`
	TotalPages int `json:"totalPages"`
}

func buildPagePayload[S, T any](page domain.Page[S], build func(S) T) pagePayload[T] {
	items := make([]T, 0, len(page.Items))
	for _, item := range page.Items {
		items = append(items, build(item))
	}
	return pagePayload[T]{
		Items:      items,
		TotalItems: page.TotalItems,
		PageNumber: page.PageNumber,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
	}
}

type statusChangePayload struct {
	From    string `json:"from"`
	To      string `json:"to"`
	ActorID string `json:"actorId,omitempty"`
	Reason  string `json:"reason,omitempty"`
	At      string `json:"at"`
}

func buildStatusHistory(history []domain.StatusChange) []statusChangePayload {
	if len(history) == 0 {
		return nil
	}
	out := make([]statusChangePayload, 0, len(history))
	for _, change := range history {
		out = append(out, statusChangePayload{
			From:    change.From,
			To:      change.To,
			ActorID: change.ActorID,
			Reason:  change.Reason,
			At:      formatTime(change.At),
		})
	}
	return out
}
