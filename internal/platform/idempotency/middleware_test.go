package idempotency

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/crumbhouse/bakery-api/internal/platform/auth"
)

var fixedTime = time.Date(2025, time.April, 10, 12, 0, 0, 0, time.UTC)

func newCheckoutRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func TestMiddleware_MissingHeaderPassesThrough(t *testing.T) {
	middleware := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))

	calls := 0
	handler := middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))
	for i := 0; i < 2; i++ {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newCheckoutRequest("", `{"items":[]}`))
		if rr.Code != http.StatusCreated {
			t.Fatalf("unexpected status %d", rr.Code)
		}
	}
	if calls != 2 {
		t.Fatalf("expected requests without key to reach the handler, got %d calls", calls)
	}
}

func TestMiddleware_RequiredKey(t *testing.T) {
	middleware := Middleware(NewMemoryStore(), WithRequiredKey(true))
	handler := middleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler should not be invoked when header is missing")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCheckoutRequest("", `{}`))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_key_required")
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	store := NewMemoryStore()
	var calls int
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"orderNumber":"BK-2025-000001"}`))
		}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newCheckoutRequest("abc-123", `{"items":[1]}`))
	rr2 := httptest.NewRecorder()
	rr2.Header().Set("X-Request-Id", "second")
	handler.ServeHTTP(rr2, newCheckoutRequest("abc-123", `{"items":[1]}`))

	if calls != 1 {
		t.Fatalf("expected handler to be called once, got %d", calls)
	}
	if rr1.Code != http.StatusCreated || rr2.Code != http.StatusCreated {
		t.Fatalf("unexpected statuses %d/%d", rr1.Code, rr2.Code)
	}
	if rr2.Header().Get(replayHeaderName) != "true" {
		t.Fatalf("expected replay header to be present")
	}
	if rr2.Header().Get("X-Request-Id") != "second" {
		t.Fatalf("replay must keep headers of the current request")
	}
	if got := rr2.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("expected content-type json, got %s", got)
	}
	if rr2.Body.String() != rr1.Body.String() {
		t.Fatalf("expected response body %s, got %s", rr1.Body.String(), rr2.Body.String())
	}
}

func TestMiddleware_KeysAreScopedPerCaller(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusCreated)
	}))

	for _, uid := range []string{"cust-1", "cust-2"} {
		req := newCheckoutRequest("shared-key", `{}`)
		req = req.WithContext(auth.WithIdentity(req.Context(), &auth.Identity{UID: uid, Roles: []string{auth.RoleCustomer}}))
		handler.ServeHTTP(httptest.NewRecorder(), req)
	}
	if calls != 2 {
		t.Fatalf("expected separate callers to own separate keys, got %d calls", calls)
	}
}

func TestMiddleware_ConflictingFingerprintReturnsConflict(t *testing.T) {
	handler := Middleware(NewMemoryStore(), WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newCheckoutRequest("same-key", `{"foo":"bar"}`))
	if rr1.Code != http.StatusOK {
		t.Fatalf("expected first request success, got %d", rr1.Code)
	}

	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newCheckoutRequest("same-key", `{"foo":"baz"}`))
	if rr2.Code != http.StatusConflict {
		t.Fatalf("expected conflict status, got %d", rr2.Code)
	}
	assertErrorResponse(t, rr2.Body.Bytes(), "idempotency_key_conflict")
}

func TestMiddleware_PendingReservationReturnsConflict(t *testing.T) {
	store := NewMemoryStore()
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			t.Fatal("handler should not be invoked when reservation pending")
		}))

	req := newCheckoutRequest("pending-key", `{"foo":"bar"}`)
	body, err := bufferBody(req)
	if err != nil {
		t.Fatalf("failed to read body: %v", err)
	}
	identity := callerOf(req.Context())
	if _, err := store.Reserve(req.Context(), scopedKey("pending-key", identity), requestFingerprint(req, body, identity), fixedTime, time.Hour); err != nil {
		t.Fatalf("failed to seed reservation: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for pending reservation, got %d", rr.Code)
	}
	assertErrorResponse(t, rr.Body.Bytes(), "idempotency_in_progress")
}

func TestMiddleware_ServerErrorsAreNotStored(t *testing.T) {
	store := NewMemoryStore()
	calls := 0
	handler := Middleware(store)(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	rr1 := httptest.NewRecorder()
	handler.ServeHTTP(rr1, newCheckoutRequest("retry-key", `{}`))
	rr2 := httptest.NewRecorder()
	handler.ServeHTTP(rr2, newCheckoutRequest("retry-key", `{}`))

	if rr1.Code != http.StatusServiceUnavailable || rr2.Code != http.StatusCreated || calls != 2 {
		t.Fatalf("expected retry after server error, got %d/%d with %d calls", rr1.Code, rr2.Code, calls)
	}
}

func TestMiddleware_SaveFailureReleasesReservation(t *testing.T) {
	store := &stubStore{failSave: true}
	handler := Middleware(store, WithClock(func() time.Time { return fixedTime }))(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte("ok"))
		}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCheckoutRequest("fail-key", `{"foo":"bar"}`))

	if rr.Code != http.StatusCreated || rr.Body.String() != "ok" {
		t.Fatalf("expected handler response to be delivered, got %d %q", rr.Code, rr.Body.String())
	}
	if !store.released {
		t.Fatalf("expected reservation to be released on failure")
	}
}

func TestMiddleware_StoreErrorIsUnavailable(t *testing.T) {
	store := &stubStore{failReserve: true}
	handler := Middleware(store)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		t.Fatal("handler must not run when the store is down")
	}))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newCheckoutRequest("k", `{}`))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestMemoryStoreExpiry(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "k", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	res, err := store.Reserve(ctx, "k", "other", fixedTime.Add(2*time.Minute), time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expired key must be reusable, got %v %v", res.State, err)
	}
	if removed := store.Sweep(fixedTime.Add(time.Hour)); removed != 1 {
		t.Fatalf("expected one swept record, got %d", removed)
	}
}

type stubStore struct {
	failReserve bool
	failSave    bool
	released    bool
}

func (s *stubStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	if s.failReserve {
		return Reservation{}, errors.New("store down")
	}
	return Reservation{State: ReservationStateNew}, nil
}

func (s *stubStore) SaveResponse(context.Context, string, string, Response, time.Time, time.Duration) error {
	if s.failSave {
		return errors.New("save failed")
	}
	return nil
}

func (s *stubStore) Release(context.Context, string) error {
	s.released = true
	return nil
}

func assertErrorResponse(t *testing.T, payload []byte, expected string) {
	t.Helper()

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(payload, &body); err != nil {
		t.Fatalf("failed to decode error payload: %v", err)
	}
	if body.Error != expected {
		t.Fatalf("expected error code %s, got %s", expected, body.Error)
	}
}

func TestCompletedRecordDropsPerRequestHeaders(t *testing.T) {
	record := pendingRecord("k", "fp", fixedTime, time.Hour)
	resp := Response{
		Status: http.StatusCreated,
		Headers: http.Header{
			"Content-Type":          {"application/json"},
			"X-Request-Id":          {"req-1"},
			"X-Cloud-Trace-Context": {"abc/1;o=1"},
			"Content-Length":        {"42"},
		},
		Body: []byte(`{}`),
	}

	done := record.completed(resp, fixedTime.Add(time.Minute), 2*time.Hour)
	if done.Status != StatusCompleted || done.ResponseStatus != http.StatusCreated {
		t.Fatalf("unexpected record %+v", done)
	}
	if len(done.ResponseHeaders) != 1 || done.ResponseHeaders["Content-Type"][0] != "application/json" {
		t.Fatalf("expected only content-type to be kept, got %v", done.ResponseHeaders)
	}
	if !done.CreatedAt.Equal(fixedTime) || !done.ExpiresAt.Equal(fixedTime.Add(time.Minute+2*time.Hour)) {
		t.Fatalf("unexpected timestamps created=%v expires=%v", done.CreatedAt, done.ExpiresAt)
	}
}
