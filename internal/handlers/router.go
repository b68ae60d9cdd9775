package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
)

const (
	apiPrefix      = "/api/v1"
	requestTimeout = 60 * time.Second
)

// RouteRegistrar attaches one resource's routes to its group.
type RouteRegistrar func(r chi.Router)

type middlewareFunc = func(http.Handler) http.Handler

// routeGroup is one resource mounted under the API prefix. Public groups are the unauthenticated
// catalogue reads and get the public middleware stack.
type routeGroup struct {
	path      string
	public    bool
	registrar RouteRegistrar
}

type routerConfig struct {
	middlewares []middlewareFunc
	public      []middlewareFunc
	health      *HealthHandlers
	groups      map[string]RouteRegistrar
}

type Option func(*routerConfig)

// NewRouter builds the HTTP surface: health endpoints at the root and the resource groups under /api/v1.
// A group without a registrar answers 501 so clients can tell a missing deployment from a typo.
func NewRouter(opts ...Option) chi.Router {
	cfg := routerConfig{
		middlewares: []middlewareFunc{middleware.RequestID, middleware.RealIP, middleware.Timeout(requestTimeout)},
		groups:      map[string]RouteRegistrar{},
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.health == nil {
		cfg.health = NewHealthHandlers()
	}

	r := chi.NewRouter()
	use(r, cfg.middlewares)
	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("route_not_found", fmt.Sprintf("no route for %s", req.URL.Path), http.StatusNotFound))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("method_not_allowed", fmt.Sprintf("method %s not allowed on %s", req.Method, req.URL.Path), http.StatusMethodNotAllowed))
	})

	r.Get("/healthz", cfg.health.Healthz)
	r.Get("/readyz", cfg.health.Readyz)

	groups := []routeGroup{
		{path: "/orders"},
		{path: "/custom-orders"},
		{path: "/cake-configuration", public: true},
		{path: "/shipping-fees", public: true},
	}
	r.Route(apiPrefix, func(api chi.Router) {
		for _, g := range groups {
			g.registrar = cfg.groups[g.path]
			api.Route(g.path, func(group chi.Router) {
				if g.public {
					use(group, cfg.public)
				}
				if g.registrar == nil {
					group.HandleFunc("/", notImplemented(g.path))
					group.HandleFunc("/*", notImplemented(g.path))
					return
				}
				g.registrar(group)
			})
		}
	})
	return r
}

func use(r chi.Router, mws []middlewareFunc) {
	for _, mw := range mws {
		if mw != nil {
			r.Use(mw)
		}
	}
}

func notImplemented(path string) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		httpx.WriteError(req.Context(), w, httpx.NewError("not_implemented", fmt.Sprintf("%s is not served by this deployment", apiPrefix+path), http.StatusNotImplemented))
	}
}

func withGroup(path string, reg RouteRegistrar) Option {
	return func(cfg *routerConfig) { cfg.groups[path] = reg }
}

// WithMiddlewares appends router-wide middleware after the request id, real ip and timeout ones.
func WithMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.middlewares = append(cfg.middlewares, mw...) }
}

// WithPublicMiddlewares applies mw to the catalogue groups only.
func WithPublicMiddlewares(mw ...func(http.Handler) http.Handler) Option {
	return func(cfg *routerConfig) { cfg.public = append(cfg.public, mw...) }
}

func WithHealthHandlers(h *HealthHandlers) Option {
	return func(cfg *routerConfig) { cfg.health = h }
}

func WithOrderRoutes(reg RouteRegistrar) Option             { return withGroup("/orders", reg) }
func WithCustomOrderRoutes(reg RouteRegistrar) Option       { return withGroup("/custom-orders", reg) }
func WithShippingFeeRoutes(reg RouteRegistrar) Option       { return withGroup("/shipping-fees", reg) }
func WithCakeConfigurationRoutes(reg RouteRegistrar) Option { return withGroup("/cake-configuration", reg) }
