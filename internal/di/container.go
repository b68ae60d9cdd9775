package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-redis/redis/v8"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/crumbhouse/bakery-api/internal/handlers"
	"github.com/crumbhouse/bakery-api/internal/platform/auth"
	"github.com/crumbhouse/bakery-api/internal/platform/config"
	pfirestore "github.com/crumbhouse/bakery-api/internal/platform/firestore"
	"github.com/crumbhouse/bakery-api/internal/platform/idempotency"
	"github.com/crumbhouse/bakery-api/internal/platform/jobs"
	"github.com/crumbhouse/bakery-api/internal/platform/observability"
	"github.com/crumbhouse/bakery-api/internal/platform/pagination"
	"github.com/crumbhouse/bakery-api/internal/platform/ratelimit"
	"github.com/crumbhouse/bakery-api/internal/repositories"
	firestoreRepo "github.com/crumbhouse/bakery-api/internal/repositories/firestore"
	"github.com/crumbhouse/bakery-api/internal/repositories/memory"
	"github.com/crumbhouse/bakery-api/internal/services"
)

const (
	serviceMeterName       = "github.com/crumbhouse/bakery-api/internal/services"
	dependencyCheckTimeout = 2 * time.Second
	idempotencySweepEvery  = 10 * time.Minute
	firebaseVerifyTimeout  = 3 * time.Second
	firestoreDialTimeout   = 10 * time.Second
	healthReportCacheTTL   = 5 * time.Second
)

// Services bundles the service-layer contracts that handlers rely upon. Concrete implementations
// are assembled via dependency injection in NewContainer.
type Services struct {
	Orders       services.OrderService
	CustomOrders services.CustomOrderService
	Pricing      services.PricingService
	Discounts    services.DiscountLedger
	ShippingFees services.ShippingFeeService
	Catalog      services.CatalogService
	System       services.SystemService
}

// EventPublisher receives lifecycle events for both kinds of order.
type EventPublisher interface {
	services.OrderEventPublisher
	services.CustomOrderEventPublisher
}

// Container wires repositories, services, and background infrastructure for runtime use.
type Container struct {
	Config        config.Config
	Logger        *zap.Logger
	Repositories  repositories.Registry
	Services      Services
	Authenticator *auth.Authenticator
	Idempotency   idempotency.Store

	build   services.BuildInfo
	clock   func() time.Time
	closers []func(context.Context) error
}

// Option customises NewContainer.
type Option func(*containerOptions)

type containerOptions struct {
	registry    repositories.Registry
	logger      *zap.Logger
	build       services.BuildInfo
	verifier    auth.TokenVerifier
	events      EventPublisher
	idempotency idempotency.Store
	meter       metric.Meter
	clock       func() time.Time
}

// WithRegistry supplies the repositories instead of building them from Repository.Driver.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *containerOptions) {
		o.registry = reg
	}
}

// WithLogger sets the logger used for service events and the idempotency middleware.
func WithLogger(logger *zap.Logger) Option {
	return func(o *containerOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithBuildInfo sets the version details reported by the health endpoints.
func WithBuildInfo(info services.BuildInfo) Option {
	return func(o *containerOptions) {
		o.build = info
	}
}

// WithTokenVerifier replaces the Firebase ID token verifier.
func WithTokenVerifier(verifier auth.TokenVerifier) Option {
	return func(o *containerOptions) {
		o.verifier = verifier
	}
}

// WithEventPublisher replaces the Pub/Sub notification publisher.
func WithEventPublisher(publisher EventPublisher) Option {
	return func(o *containerOptions) {
		o.events = publisher
	}
}

// WithIdempotencyStore replaces the store selected by Idempotency.Driver.
func WithIdempotencyStore(store idempotency.Store) Option {
	return func(o *containerOptions) {
		o.idempotency = store
	}
}

// WithMeter sets the meter used for service metrics.
func WithMeter(meter metric.Meter) Option {
	return func(o *containerOptions) {
		if meter != nil {
			o.meter = meter
		}
	}
}

// WithClock overrides the clock shared by repositories, services and middleware.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer constructs the runtime dependencies for cfg. Resources acquired before a failure
// are released before the error is returned.
func NewContainer(ctx context.Context, cfg config.Config, opts ...Option) (container *Container, err error) {
	options := containerOptions{
		logger: zap.NewNop(),
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	if options.meter == nil {
		options.meter = otel.Meter(serviceMeterName)
	}
	if options.build.StartedAt.IsZero() {
		options.build.StartedAt = options.clock().UTC()
	}

	c := &Container{
		Config: cfg,
		Logger: options.logger,
		build:  options.build,
		clock:  options.clock,
	}
	defer func() {
		if err != nil {
			_ = c.Close(context.WithoutCancel(ctx))
		}
	}()

	w := wiring{container: c, cfg: cfg, options: options}
	if err := w.infrastructure(ctx); err != nil {
		return nil, err
	}
	if err := w.registry(); err != nil {
		return nil, err
	}
	if err := w.idempotencyStore(); err != nil {
		return nil, err
	}
	if c.Services, err = buildServices(c.Repositories, cfg, options, w.events); err != nil {
		return nil, err
	}
	if err := w.authenticator(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// wiring carries the clients shared between the construction steps of NewContainer.
type wiring struct {
	container *Container
	cfg       config.Config
	options   containerOptions

	provider *pfirestore.Provider
	redis    *redis.Client
	events   EventPublisher
	checks   []repositories.DependencyCheck
}

// clientOptions carries the service account shared by the Google Cloud clients.
func (w *wiring) clientOptions() []option.ClientOption {
	if path := strings.TrimSpace(w.cfg.Firebase.CredentialsFile); path != "" {
		return []option.ClientOption{option.WithCredentialsFile(path)}
	}
	return nil
}

func (w *wiring) firestoreProvider() *pfirestore.Provider {
	if w.provider == nil {
		w.provider = pfirestore.NewProvider(w.cfg.Firestore,
			pfirestore.WithDialTimeout(firestoreDialTimeout),
			pfirestore.WithClientOptions(w.clientOptions()...),
		)
		w.container.addCloser(w.provider.Close)
	}
	return w.provider
}

// infrastructure opens the Redis and Pub/Sub clients the configuration asks for. Both are
// reported as non-critical readiness checks.
func (w *wiring) infrastructure(ctx context.Context) error {
	if w.options.idempotency == nil && w.cfg.Idempotency.Driver == "redis" {
		client := redis.NewClient(&redis.Options{
			Addr:     w.cfg.Redis.Addr,
			Password: w.cfg.Redis.Password,
			DB:       w.cfg.Redis.DB,
		})
		w.redis = client
		w.container.addCloser(func(context.Context) error { return client.Close() })
		w.checks = append(w.checks, repositories.DependencyCheck{
			Name:    "redis",
			Timeout: dependencyCheckTimeout,
			Check: func(ctx context.Context) error {
				return client.Ping(ctx).Err()
			},
		})
	}

	w.events = w.options.events
	if w.events != nil || w.options.registry != nil || w.cfg.Repository.Driver != "firestore" {
		return nil
	}
	projectID := strings.TrimSpace(w.cfg.Notifications.ProjectID)
	topicName := strings.TrimSpace(w.cfg.Notifications.Topic)
	if projectID == "" || topicName == "" {
		w.container.Logger.Warn("notifications disabled: pubsub project or topic not configured")
		return nil
	}

	client, err := pubsub.NewClient(ctx, projectID, w.clientOptions()...)
	if err != nil {
		return fmt.Errorf("build pubsub client: %w", err)
	}
	w.container.addCloser(func(context.Context) error { return client.Close() })
	topic := client.Topic(topicName)
	w.container.addCloser(func(context.Context) error {
		topic.Stop()
		return nil
	})

	publisher, err := jobs.NewNotificationPublisher(topic,
		jobs.WithSigningSecret(w.cfg.Notifications.SigningSecret),
		jobs.WithSignatureTTL(w.cfg.Notifications.SignatureTTL),
		jobs.WithNotificationClock(w.options.clock),
	)
	if err != nil {
		return fmt.Errorf("build notification publisher: %w", err)
	}
	w.events = publisher
	w.checks = append(w.checks, repositories.DependencyCheck{
		Name:    "pubsub",
		Timeout: dependencyCheckTimeout,
		Check: func(ctx context.Context) error {
			ok, err := topic.Exists(ctx)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("topic %s does not exist", topicName)
			}
			return nil
		},
	})
	return nil
}

func (w *wiring) registry() error {
	c := w.container
	if w.options.registry != nil {
		c.Repositories = w.options.registry
		c.addCloser(w.options.registry.Close)
		return nil
	}

	switch w.cfg.Repository.Driver {
	case "memory":
		c.Repositories = memory.NewRegistry(DemoReferenceData(w.options.clock()), memory.WithClock(w.options.clock))
	case "firestore":
		reg, err := firestoreRepo.NewRegistry(w.firestoreProvider(),
			firestoreRepo.WithClock(w.options.clock),
			firestoreRepo.WithDependencyChecks(w.checks...),
		)
		if err != nil {
			return fmt.Errorf("build firestore registry: %w", err)
		}
		c.Repositories = reg
	default:
		return fmt.Errorf("unsupported repository driver %q", w.cfg.Repository.Driver)
	}
	c.addCloser(c.Repositories.Close)
	return nil
}

func (w *wiring) idempotencyStore() error {
	c := w.container
	if w.options.idempotency != nil {
		c.Idempotency = w.options.idempotency
		return nil
	}

	switch w.cfg.Idempotency.Driver {
	case "redis":
		store, err := idempotency.NewRedisStore(w.redis)
		if err != nil {
			return fmt.Errorf("build redis idempotency store: %w", err)
		}
		c.Idempotency = store
	case "memory":
		store := idempotency.NewMemoryStore()
		c.addCloser(startSweeper(store, idempotencySweepEvery, w.options.clock, c.Logger))
		c.Idempotency = store
	case "firestore":
		store, err := idempotency.NewFirestoreStore(w.firestoreProvider())
		if err != nil {
			return fmt.Errorf("build firestore idempotency store: %w", err)
		}
		c.Idempotency = store
	default:
		return fmt.Errorf("unsupported idempotency driver %q", w.cfg.Idempotency.Driver)
	}
	return nil
}

func (w *wiring) authenticator(ctx context.Context) error {
	verifier := w.options.verifier
	if verifier == nil {
		firebase, err := auth.NewFirebaseVerifier(ctx, w.cfg.Firebase, auth.WithFirebaseTimeout(firebaseVerifyTimeout))
		if err != nil {
			return fmt.Errorf("build firebase verifier: %w", err)
		}
		verifier = firebase
	}
	w.container.Authenticator = auth.NewAuthenticator(verifier, auth.WithRoleClaim(w.cfg.Firebase.RoleClaim))
	return nil
}

// startSweeper drops expired records from the in-process idempotency store until the returned
// closer runs.
func startSweeper(store *idempotency.MemoryStore, every time.Duration, clock func() time.Time, logger *zap.Logger) func(context.Context) error {
	ticker := time.NewTicker(every)
	done := make(chan struct{})
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		for {
			select {
			case <-ticker.C:
				if removed := store.Sweep(clock()); removed > 0 {
					logger.Debug("idempotency sweep removed records", zap.Int("count", removed))
				}
			case <-done:
				return
			}
		}
	}()
	return func(context.Context) error {
		ticker.Stop()
		close(done)
		<-stopped
		return nil
	}
}

func buildServices(reg repositories.Registry, cfg config.Config, options containerOptions, events EventPublisher) (Services, error) {
	var svc Services
	if reg == nil {
		return svc, errors.New("repositories registry is required")
	}
	eventLogger := observability.EventLogger(options.logger.Named("services"))

	shippingSvc, err := services.NewShippingFeeService(services.ShippingFeeServiceDeps{
		ShippingFees: reg.ShippingFees(),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build shipping fee service: %w", err)
	}
	svc.ShippingFees = shippingSvc

	catalogSvc, err := services.NewCatalogService(services.CatalogServiceDeps{Catalog: reg.Catalog()})
	if err != nil {
		return Services{}, fmt.Errorf("build catalog service: %w", err)
	}
	svc.Catalog = catalogSvc

	pricingSvc, err := services.NewPricingService(services.PricingServiceDeps{Catalog: reg.Catalog()})
	if err != nil {
		return Services{}, fmt.Errorf("build pricing service: %w", err)
	}
	svc.Pricing = pricingSvc

	ledger, err := services.NewDiscountLedger(services.DiscountLedgerDeps{
		Discounts: reg.Discounts(),
		Meter:     options.meter,
		Clock:     options.clock,
		Logger:    eventLogger,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build discount ledger: %w", err)
	}
	svc.Discounts = ledger

	orderDeps := services.OrderServiceDeps{
		Orders:       reg.Orders(),
		Counters:     reg.Counters(),
		Products:     reg.Products(),
		Discounts:    ledger,
		ShippingFees: shippingSvc,
		UnitOfWork:   reg,
		Clock:        options.clock,
		Logger:       eventLogger,
	}
	customDeps := services.CustomOrderServiceDeps{
		CustomOrders: reg.CustomOrders(),
		Counters:     reg.Counters(),
		Pricing:      pricingSvc,
		UnitOfWork:   reg,
		MinLeadTime:  cfg.Orders.CustomOrderMinLeadTime,
		Clock:        options.clock,
		Logger:       eventLogger,
	}
	if events != nil {
		orderDeps.Events = events
		customDeps.Events = events
	}

	orderSvc, err := services.NewOrderService(orderDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}
	svc.Orders = orderSvc

	customSvc, err := services.NewCustomOrderService(customDeps)
	if err != nil {
		return Services{}, fmt.Errorf("build custom order service: %w", err)
	}
	svc.CustomOrders = customSvc

	systemSvc, err := services.NewSystemService(services.SystemServiceDeps{
		HealthRepository: reg.Health(),
		Clock:            options.clock,
		Build:            options.build,
		ReportCacheTTL:   healthReportCacheTTL,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build system service: %w", err)
	}
	svc.System = systemSvc

	return svc, nil
}

// Router assembles the HTTP handlers on top of the container's services. middlewares run
// before routing, outermost first.
func (c *Container) Router(middlewares ...func(http.Handler) http.Handler) (http.Handler, error) {
	cfg := c.Config
	publicLimit, err := ratelimit.Middleware(cfg.RateLimits.Public, ratelimit.WithTrustForwardHeader())
	if err != nil {
		return nil, fmt.Errorf("build public rate limit: %w", err)
	}
	checkoutLimit, err := ratelimit.Middleware(cfg.RateLimits.Checkout, ratelimit.WithTrustForwardHeader())
	if err != nil {
		return nil, fmt.Errorf("build checkout rate limit: %w", err)
	}
	customOrderLimit, err := ratelimit.Middleware(cfg.RateLimits.Checkout, ratelimit.WithTrustForwardHeader())
	if err != nil {
		return nil, fmt.Errorf("build custom order rate limit: %w", err)
	}

	checkout := checkoutLimit
	if c.Idempotency != nil {
		replay := idempotency.Middleware(c.Idempotency,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithMethods(http.MethodPost),
			idempotency.WithRequiredKey(cfg.Idempotency.RequireKey),
			idempotency.WithLogger(c.Logger.Named("idempotency")),
			idempotency.WithClock(c.clock),
		)
		checkout = func(next http.Handler) http.Handler {
			return checkoutLimit(replay(next))
		}
	}

	pageOpts := pagination.Options{
		DefaultPageSize: cfg.Orders.DefaultPageSize,
		MaxPageSize:     cfg.Orders.MaxPageSize,
	}
	orders := handlers.NewOrderHandlers(c.Authenticator, c.Services.Orders,
		handlers.WithCheckoutIdempotency(checkout),
		handlers.WithOrderPagination(pageOpts),
	)
	customOrders := handlers.NewCustomOrderHandlers(c.Authenticator, c.Services.CustomOrders,
		handlers.WithCustomOrderRateLimit(customOrderLimit),
		handlers.WithCustomOrderPagination(pageOpts),
	)
	cakeConfiguration := handlers.NewCakeConfigurationHandlers(c.Services.Catalog, c.Services.Pricing)
	shippingFees := handlers.NewShippingFeeHandlers(c.Services.ShippingFees)
	health := handlers.NewHealthHandlers(
		handlers.WithHealthSystemService(c.Services.System),
		handlers.WithHealthBuildInfo(c.build),
		handlers.WithHealthClock(c.clock),
	)

	return handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(health),
		handlers.WithPublicMiddlewares(publicLimit),
		handlers.WithOrderRoutes(orders.Routes),
		handlers.WithCustomOrderRoutes(customOrders.Routes),
		handlers.WithCakeConfigurationRoutes(cakeConfiguration.Routes),
		handlers.WithShippingFeeRoutes(shippingFees.Routes),
	), nil
}

func (c *Container) addCloser(fn func(context.Context) error) {
	if fn != nil {
		c.closers = append(c.closers, fn)
	}
}

// Close releases resources in reverse acquisition order and reports every failure.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
