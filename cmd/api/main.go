package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"
	"google.golang.org/api/option"

	"github.com/crumbhouse/bakery-api/internal/di"
	"github.com/crumbhouse/bakery-api/internal/platform/config"
	"github.com/crumbhouse/bakery-api/internal/platform/observability"
	"github.com/crumbhouse/bakery-api/internal/platform/secrets"
	"github.com/crumbhouse/bakery-api/internal/services"
)

func main() {
	logger, err := observability.NewLogger()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialise logger: %v\n", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err = run(ctx, logger.Named("api"))
	stop()
	if err != nil {
		logger.Error("bakery api stopped", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	_ = logger.Sync()
}

// run serves until ctx is cancelled, then drains in-flight requests and closes dependencies.
func run(ctx context.Context, logger *zap.Logger) error {
	startedAt := time.Now().UTC()
	ctx = observability.WithLogger(ctx, logger)

	envValues, err := config.EnvironmentValues()
	if err != nil {
		return fmt.Errorf("read environment: %w", err)
	}
	fetcher, err := newSecretFetcher(ctx, logger, envValues)
	if err != nil {
		return fmt.Errorf("initialise secret fetcher: %w", err)
	}
	defer func() {
		if err := fetcher.Close(); err != nil {
			logger.Warn("secret fetcher close error", zap.Error(err))
		}
	}()

	cfg, err := config.Load(ctx, config.WithSecretResolver(fetcher))
	if err != nil {
		var invalid *config.ValidationError
		if errors.As(err, &invalid) {
			logger.Error("invalid configuration", zap.Strings("fields", invalid.Fields()))
		}
		return fmt.Errorf("load configuration: %w", err)
	}

	build := buildInfoFromEnv(envValues, startedAt)
	container, err := di.NewContainer(ctx, cfg, di.WithLogger(logger), di.WithBuildInfo(build))
	if err != nil {
		return fmt.Errorf("initialise dependencies: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := container.Close(closeCtx); err != nil {
			logger.Warn("dependency close error", zap.Error(err))
		}
	}()

	httpLogger := logger.Named("http")
	router, err := container.Router(
		observability.InjectLoggerMiddleware(httpLogger),
		observability.TraceMiddleware(traceProjectID(cfg)),
		observability.RecoveryMiddleware(httpLogger),
		observability.RequestLoggerMiddleware(),
	)
	if err != nil {
		return fmt.Errorf("build router: %w", err)
	}

	server := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}
	serveErr := make(chan error, 1)
	go func() {
		httpLogger.Info("bakery api listening",
			zap.String("addr", server.Addr),
			zap.String("repositoryDriver", cfg.Repository.Driver),
			zap.String("version", build.Version),
		)
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}
	logger.Info("shutdown signal received; draining requests")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("graceful shutdown: %w", err)
	}
	return nil
}

func buildInfoFromEnv(env map[string]string, started time.Time) services.BuildInfo {
	version := strings.TrimSpace(env["BAKERY_BUILD_VERSION"])
	if version == "" {
		version = "dev"
	}
	environment := strings.ToLower(strings.TrimSpace(env["BAKERY_ENVIRONMENT"]))
	if environment == "" {
		environment = "local"
	}
	return services.BuildInfo{
		Version:     version,
		Environment: environment,
		StartedAt:   started,
	}
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}

func newSecretFetcher(ctx context.Context, logger *zap.Logger, env map[string]string) (*secrets.Fetcher, error) {
	lookup := func(key string) string {
		return strings.TrimSpace(env[key])
	}

	defaultProject := lookup("BAKERY_SECRET_DEFAULT_PROJECT_ID")
	if defaultProject == "" {
		defaultProject = lookup("BAKERY_FIREBASE_PROJECT_ID")
	}
	fallbackPath := lookup("BAKERY_SECRET_FALLBACK_FILE")
	if fallbackPath == "" {
		fallbackPath = ".secrets.local"
	}

	opts := []secrets.Option{
		secrets.WithLogger(logger.Named("secrets")),
		secrets.WithFallbackFile(fallbackPath),
	}
	if defaultProject != "" {
		opts = append(opts, secrets.WithDefaultProject(defaultProject))
	}
	if raw := lookup("BAKERY_SECRET_CACHE_TTL"); raw != "" {
		ttl, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("parse BAKERY_SECRET_CACHE_TTL: %w", err)
		}
		opts = append(opts, secrets.WithCacheTTL(ttl))
	}
	if credentialsFile := lookup("BAKERY_FIREBASE_CREDENTIALS_FILE"); credentialsFile != "" {
		opts = append(opts, secrets.WithClientOptions(option.WithCredentialsFile(credentialsFile)))
	}

	return secrets.NewFetcher(ctx, opts...)
}
