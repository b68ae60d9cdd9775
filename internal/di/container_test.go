package di

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/crumbhouse/bakery-api/internal/platform/config"
	"github.com/crumbhouse/bakery-api/internal/services"
)

type stubVerifier struct {
	tokens map[string]*firebaseauth.Token
}

func (s stubVerifier) VerifyIDToken(_ context.Context, token string) (*firebaseauth.Token, error) {
	if t, ok := s.tokens[token]; ok {
		return t, nil
	}
	return nil, errors.New("invalid token")
}

type recordingPublisher struct {
	orders       []services.OrderEvent
	customOrders []services.CustomOrderEvent
}

func (p *recordingPublisher) PublishOrderEvent(_ context.Context, event services.OrderEvent) error {
	p.orders = append(p.orders, event)
	return nil
}

func (p *recordingPublisher) PublishCustomOrderEvent(_ context.Context, event services.CustomOrderEvent) error {
	p.customOrders = append(p.customOrders, event)
	return nil
}

func memoryConfig() config.Config {
	return config.Config{
		Firebase:   config.FirebaseConfig{ProjectID: "bakery-test", RoleClaim: "role"},
		Repository: config.RepositoryConfig{Driver: "memory"},
		Idempotency: config.IdempotencyConfig{
			Driver: "memory",
			Header: "Idempotency-Key",
			TTL:    time.Hour,
		},
		RateLimits: config.RateLimitConfig{Public: "1000-M", Checkout: "1000-M"},
		Orders: config.OrderConfig{
			CustomOrderMinLeadTime: 48 * time.Hour,
			DefaultPageSize:        20,
			MaxPageSize:            100,
		},
	}
}

func newTestContainer(t *testing.T, now time.Time, publisher EventPublisher) http.Handler {
	t.Helper()
	verifier := stubVerifier{tokens: map[string]*firebaseauth.Token{
		"customer-token": {UID: "cust-1", Claims: map[string]interface{}{}},
		"staff-token":    {UID: "staff-1", Claims: map[string]interface{}{"role": "staff"}},
	}}
	container, err := NewContainer(context.Background(), memoryConfig(),
		WithTokenVerifier(verifier),
		WithEventPublisher(publisher),
		WithClock(func() time.Time { return now }),
		WithBuildInfo(services.BuildInfo{Version: "test", Environment: "local"}),
	)
	if err != nil {
		t.Fatalf("NewContainer: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Close(context.Background()); err != nil {
			t.Errorf("Close: %v", err)
		}
	})

	router, err := container.Router()
	if err != nil {
		t.Fatalf("Router: %v", err)
	}
	return router
}

func serve(router http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestContainerServesPublicCatalogue(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	router := newTestContainer(t, now, &recordingPublisher{})

	rr := serve(router, http.MethodGet, "/api/v1/shipping-fees", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var fees struct {
		Items []struct {
			Governorate string `json:"governorate"`
		} `json:"items"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &fees); err != nil {
		t.Fatalf("decode fees: %v", err)
	}
	if len(fees.Items) != 3 {
		t.Fatalf("expected 3 active governorates, got %+v", fees.Items)
	}

	rr = serve(router, http.MethodGet, "/api/v1/cake-configuration/price?occasionId=wedding&sizeId=large&flavorId=chocolate", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var quote struct {
		Price json.Number `json:"price"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &quote); err != nil {
		t.Fatalf("decode quote: %v", err)
	}
	if quote.Price != "780" {
		t.Fatalf("expected occasion override plus flavor surcharge 780, got %s", quote.Price)
	}

	rr = serve(router, http.MethodGet, "/readyz", nil, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected readyz 200, got %d", rr.Code)
	}
}

func TestContainerCheckoutWithDiscountAndReplay(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	publisher := &recordingPublisher{}
	router := newTestContainer(t, now, publisher)

	body := map[string]any{
		"items": []map[string]any{{
			"productId": "croissant-box",
			"quantity":  2,
			"unitPrice": 150,
		}},
		"discountCode":  "welcome10",
		"governorate":   "Cairo",
		"paymentMethod": "cash_on_delivery",
	}
	headers := map[string]string{
		"Authorization":   "Bearer customer-token",
		"Idempotency-Key": "checkout-1",
	}

	first := serve(router, http.MethodPost, "/api/v1/orders", body, headers)
	if first.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", first.Code, first.Body.String())
	}
	var order struct {
		OrderNumber    string      `json:"orderNumber"`
		DiscountAmount json.Number `json:"discountAmount"`
		Total          json.Number `json:"total"`
	}
	if err := json.Unmarshal(first.Body.Bytes(), &order); err != nil {
		t.Fatalf("decode order: %v", err)
	}
	if order.OrderNumber != "BK-2025-000001" || order.DiscountAmount != "30" || order.Total != "270" {
		t.Fatalf("unexpected order %+v", order)
	}

	replay := serve(router, http.MethodPost, "/api/v1/orders", body, headers)
	if replay.Code != http.StatusCreated || replay.Header().Get("X-Idempotent-Replay") != "true" {
		t.Fatalf("expected replayed 201, got %d (replay header %q)", replay.Code, replay.Header().Get("X-Idempotent-Replay"))
	}
	if !bytes.Equal(replay.Body.Bytes(), first.Body.Bytes()) {
		t.Fatalf("expected identical replay body")
	}
	if len(publisher.orders) != 1 {
		t.Fatalf("expected one order event, got %d", len(publisher.orders))
	}

	if rr := serve(router, http.MethodGet, "/api/v1/orders", nil, nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
}

func TestContainerCustomOrderIntake(t *testing.T) {
	now := time.Date(2025, 5, 1, 10, 0, 0, 0, time.UTC)
	publisher := &recordingPublisher{}
	router := newTestContainer(t, now, publisher)

	body := map[string]any{
		"customerName":  "Mona",
		"customerPhone": "+20 100 123 4567",
		"occasionId":    "birthday",
		"sizeId":        "medium",
		"flavorId":      "red-velvet",
		"customization": "Happy birthday Omar",
		"pickupAt":      now.Add(72 * time.Hour).Format(time.RFC3339),
		"paymentMethod": "cash",
	}
	rr := serve(router, http.MethodPost, "/api/v1/custom-orders", body, nil)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected status 201, got %d: %s", rr.Code, rr.Body.String())
	}
	var created struct {
		ID             string      `json:"id"`
		Status         string      `json:"status"`
		EstimatedPrice json.Number `json:"estimatedPrice"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &created); err != nil {
		t.Fatalf("decode custom order: %v", err)
	}
	if created.Status != "pending" || created.EstimatedPrice != "385.5" {
		t.Fatalf("unexpected custom order %+v", created)
	}
	if len(publisher.customOrders) != 1 {
		t.Fatalf("expected one custom order event, got %d", len(publisher.customOrders))
	}

	customer := map[string]string{"Authorization": "Bearer customer-token"}
	if rr := serve(router, http.MethodGet, "/api/v1/custom-orders", nil, customer); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for customer listing, got %d", rr.Code)
	}

	staff := map[string]string{"Authorization": "Bearer staff-token"}
	rr = serve(router, http.MethodGet, "/api/v1/custom-orders/"+created.ID, nil, staff)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected staff read 200, got %d: %s", rr.Code, rr.Body.String())
	}

	tooSoon := map[string]any{}
	for key, value := range body {
		tooSoon[key] = value
	}
	tooSoon["pickupAt"] = now.Add(time.Hour).Format(time.RFC3339)
	if rr := serve(router, http.MethodPost, "/api/v1/custom-orders", tooSoon, nil); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for short lead time, got %d", rr.Code)
	}
}

func TestNewContainerRejectsUnknownDriver(t *testing.T) {
	cfg := memoryConfig()
	cfg.Repository.Driver = "sqlite"
	_, err := NewContainer(context.Background(), cfg, WithTokenVerifier(stubVerifier{}))
	if err == nil {
		t.Fatalf("expected error for unsupported driver")
	}
}
