// Package ratelimit throttles anonymous endpoints per client IP.
package ratelimit

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"
	"go.uber.org/zap"

	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/platform/observability"
)

const storePrefix = "bakery-ratelimit"

type options struct {
	trustForwardHeader bool
	store              limiter.Store
}

// Option customises the limiter middleware.
type Option func(*options)

// WithTrustForwardHeader keys clients by X-Forwarded-For / X-Real-IP, as set by the load balancer.
func WithTrustForwardHeader() Option {
	return func(o *options) {
		o.trustForwardHeader = true
	}
}

// WithStore replaces the in-process store.
func WithStore(store limiter.Store) Option {
	return func(o *options) {
		if store != nil {
			o.store = store
		}
	}
}

// Middleware builds a per-IP limiter from a formatted rate such as "60-M" (60 per minute).
// Rejected requests receive a 429 with a Retry-After header.
func Middleware(formatted string, opts ...Option) (func(http.Handler) http.Handler, error) {
	rate, err := limiter.NewRateFromFormatted(strings.TrimSpace(formatted))
	if err != nil {
		return nil, fmt.Errorf("ratelimit: invalid rate %q: %w", formatted, err)
	}

	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.store == nil {
		cfg.store = memory.NewStoreWithOptions(limiter.StoreOptions{Prefix: storePrefix})
	}

	instance := limiter.New(cfg.store, rate, limiter.WithTrustForwardHeader(cfg.trustForwardHeader))
	mw := stdlib.NewMiddleware(instance,
		stdlib.WithLimitReachedHandler(func(w http.ResponseWriter, r *http.Request) {
			if reset := w.Header().Get("X-RateLimit-Reset"); reset != "" {
				if at, err := strconv.ParseInt(reset, 10, 64); err == nil {
					w.Header().Set("Retry-After", strconv.FormatInt(max(at-time.Now().Unix(), 1), 10))
				}
			}
			httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeRateLimited, "too many requests", http.StatusTooManyRequests))
		}),
		stdlib.WithErrorHandler(func(w http.ResponseWriter, r *http.Request, err error) {
			observability.FromContext(r.Context()).Error("ratelimit: store failure", zap.Error(err))
			httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeInternal, "rate limiter unavailable", http.StatusInternalServerError))
		}),
	)
	return mw.Handler, nil
}
