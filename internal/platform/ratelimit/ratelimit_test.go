package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddlewareRejectsAfterLimit(t *testing.T) {
	mw, err := Middleware("2-M")
	require.NoError(t, err)

	calls := 0
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusOK)
	}))

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/cake-configuration/price", nil)
		req.RemoteAddr = ip + ":5555"
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		return rr
	}

	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)
	assert.Equal(t, http.StatusOK, send("10.0.0.1").Code)

	limited := send("10.0.0.1")
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Contains(t, limited.Body.String(), `"rate_limited"`)
	assert.NotEmpty(t, limited.Header().Get("Retry-After"))
	assert.Equal(t, "0", limited.Header().Get("X-RateLimit-Remaining"))

	assert.Equal(t, http.StatusOK, send("10.0.0.2").Code, "other clients keep their own budget")
	assert.Equal(t, 3, calls)
}

func TestMiddlewareTrustsForwardHeader(t *testing.T) {
	mw, err := Middleware("1-H", WithTrustForwardHeader())
	require.NoError(t, err)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	for i, forwarded := range []string{"203.0.113.7", "203.0.113.8"} {
		req := httptest.NewRequest(http.MethodPost, "/custom-orders", nil)
		req.RemoteAddr = "10.1.1.1:443"
		req.Header.Set("X-Forwarded-For", forwarded)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusNoContent, rr.Code, "request %d", i)
	}
}

func TestMiddlewareRejectsInvalidRate(t *testing.T) {
	_, err := Middleware("lots")
	assert.Error(t, err)
}
