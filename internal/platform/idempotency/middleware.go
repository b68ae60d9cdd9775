package idempotency

import (
	"bytes"
	"context"
	"errors"
	"io"
	"maps"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crumbhouse/bakery-api/internal/platform/auth"
	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
	"github.com/crumbhouse/bakery-api/internal/platform/requestctx"
)

const (
	replayHeaderName = "X-Idempotent-Replay"
	maxKeyLength     = 255
	anonymousCaller  = "anonymous"
)

type guard struct {
	store      Store
	next       http.Handler
	header     string
	ttl        time.Duration
	methods    map[string]bool
	requireKey bool
	clock      func() time.Time
	logger     *zap.Logger
}

type MiddlewareOption func(*guard)

// WithHeader sets the request header carrying the key. Defaults to Idempotency-Key.
func WithHeader(name string) MiddlewareOption {
	return func(g *guard) {
		if name = strings.TrimSpace(name); name != "" {
			g.header = name
		}
	}
}

func WithTTL(ttl time.Duration) MiddlewareOption {
	return func(g *guard) {
		if ttl > 0 {
			g.ttl = ttl
		}
	}
}

// WithMethods limits the guarded methods. Defaults to POST, PUT, PATCH and DELETE.
func WithMethods(methods ...string) MiddlewareOption {
	return func(g *guard) {
		guarded := make(map[string]bool, len(methods))
		for _, m := range methods {
			if m = strings.ToUpper(strings.TrimSpace(m)); m != "" {
				guarded[m] = true
			}
		}
		if len(guarded) > 0 {
			g.methods = guarded
		}
	}
}

// WithRequiredKey makes a missing key a 400 instead of an unguarded pass-through.
func WithRequiredKey(required bool) MiddlewareOption {
	return func(g *guard) { g.requireKey = required }
}

// WithLogger is used when the request context has no logger.
func WithLogger(logger *zap.Logger) MiddlewareOption {
	return func(g *guard) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func WithClock(clock func() time.Time) MiddlewareOption {
	return func(g *guard) {
		if clock != nil {
			g.clock = clock
		}
	}
}

// Middleware makes guarded requests safe to retry. The first request with a key runs the handler
// and its response is stored; retries with the same key and request get that response back with
// X-Idempotent-Replay set. Keys are scoped to the authenticated caller. 5xx responses are not
// stored so a retry runs the handler again.
func Middleware(store Store, opts ...MiddlewareOption) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if store == nil {
			return next
		}
		g := &guard{
			store:  store,
			next:   next,
			header: "Idempotency-Key",
			ttl:    DefaultTTL,
			methods: map[string]bool{
				http.MethodPost: true, http.MethodPut: true, http.MethodPatch: true, http.MethodDelete: true,
			},
			clock:  time.Now,
			logger: zap.NewNop(),
		}
		for _, opt := range opts {
			if opt != nil {
				opt(g)
			}
		}
		return g
	}
}

func (g *guard) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !g.methods[r.Method] {
		g.next.ServeHTTP(w, r)
		return
	}
	ctx := r.Context()

	key := strings.TrimSpace(r.Header.Get(g.header))
	switch {
	case key == "" && g.requireKey:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_required", "missing idempotency key header", http.StatusBadRequest))
		return
	case key == "":
		g.next.ServeHTTP(w, r)
		return
	case len(key) > maxKeyLength:
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "idempotency key is too long", http.StatusBadRequest))
		return
	}

	body, err := bufferBody(r)
	if err != nil {
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeInvalidRequest, "unable to read request body", http.StatusBadRequest))
		return
	}
	caller := callerOf(ctx)
	scoped := scopedKey(key, caller)
	fingerprint := requestFingerprint(r, body, caller)
	logger := requestctx.LoggerOr(ctx, g.logger)

	reservation, err := g.store.Reserve(ctx, scoped, fingerprint, g.clock().UTC(), g.ttl)
	switch {
	case errors.Is(err, ErrFingerprintMismatch):
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_key_conflict", "idempotency key already used for a different request", http.StatusConflict))
		return
	case err != nil:
		logger.Error("idempotency: store error", zap.Error(err))
		httpx.WriteError(ctx, w, httpx.NewError(httpx.CodeUnavailable, "unable to process idempotency key", http.StatusServiceUnavailable))
		return
	case reservation.State == ReservationStateCompleted:
		replay(w, reservation.Record)
		return
	case reservation.State == ReservationStatePending:
		httpx.WriteError(ctx, w, httpx.NewError("idempotency_in_progress", "another request is processing this idempotency key", http.StatusConflict))
		return
	}

	buffered := &bufferedResponse{header: make(http.Header)}
	g.next.ServeHTTP(buffered, r)
	g.settle(ctx, logger, scoped, fingerprint, buffered)

	if err := buffered.flushTo(w); err != nil {
		logger.Debug("idempotency: flush response failed", zap.Error(err))
	}
}

// settle stores the response, or gives the key back when it should not be replayed.
func (g *guard) settle(ctx context.Context, logger *zap.Logger, key, fingerprint string, resp *bufferedResponse) {
	if resp.code() >= http.StatusInternalServerError {
		if err := g.store.Release(ctx, key); err != nil {
			logger.Warn("idempotency: release after server error failed", zap.Error(err))
		}
		return
	}
	stored := Response{Status: resp.code(), Headers: resp.header.Clone(), Body: resp.body.Bytes()}
	if err := g.store.SaveResponse(ctx, key, fingerprint, stored, g.clock().UTC(), g.ttl); err != nil {
		logger.Error("idempotency: persist response failed", zap.Error(err))
		if err := g.store.Release(ctx, key); err != nil {
			logger.Warn("idempotency: release after save failure failed", zap.Error(err))
		}
	}
}

func bufferBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(data))
	return data, nil
}

func callerOf(ctx context.Context) string {
	if identity, ok := auth.IdentityFromContext(ctx); ok && identity != nil && identity.UID != "" {
		return identity.UID
	}
	return anonymousCaller
}

func scopedKey(key, caller string) string {
	if caller = strings.TrimSpace(caller); caller == "" {
		caller = anonymousCaller
	}
	return strings.TrimSpace(key) + "|" + caller
}

// requestFingerprint identifies the request a key was first used for. A retry must match it.
func requestFingerprint(r *http.Request, body []byte, caller string) string {
	bodyDigest := ""
	if len(body) > 0 {
		bodyDigest = digest(body)
	}
	parts := []string{
		strings.ToUpper(r.Method), r.URL.Path, r.URL.RawQuery, r.Host,
		r.Header.Get("Content-Type"), caller, bodyDigest,
	}
	return digest([]byte(strings.Join(parts, "|")))
}

func replay(w http.ResponseWriter, record Record) {
	for name, values := range record.ResponseHeaders {
		w.Header()[name] = append([]string(nil), values...)
	}
	w.Header().Set(replayHeaderName, "true")
	w.WriteHeader(max(record.ResponseStatus, http.StatusOK))
	if len(record.ResponseBody) > 0 {
		_, _ = w.Write(record.ResponseBody)
	}
}

// bufferedResponse holds the handler's response until it has been stored.
type bufferedResponse struct {
	header http.Header
	status int
	body   bytes.Buffer
}

func (b *bufferedResponse) Header() http.Header { return b.header }

func (b *bufferedResponse) WriteHeader(status int) {
	if b.status == 0 && status > 0 {
		b.status = status
	}
}

func (b *bufferedResponse) Write(p []byte) (int, error) {
	b.WriteHeader(http.StatusOK)
	return b.body.Write(p)
}

func (b *bufferedResponse) code() int {
	if b.status == 0 {
		return http.StatusOK
	}
	return b.status
}

func (b *bufferedResponse) flushTo(w http.ResponseWriter) error {
	maps.Copy(w.Header(), b.header)
	w.WriteHeader(b.code())
	if b.body.Len() == 0 {
		return nil
	}
	_, err := w.Write(b.body.Bytes())
	return err
}
