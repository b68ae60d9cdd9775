package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultEnvFile             = ".env"
	defaultPort                = "8080"
	defaultReadTimeout         = 15 * time.Second
	defaultWriteTimeout        = 30 * time.Second
	defaultIdleTimeout         = 120 * time.Second
	defaultRepositoryDriver    = "firestore"
	defaultNotificationTopic   = "bakery-notifications"
	defaultSignatureTTL        = 10 * time.Minute
	defaultIdempotencyDriver   = "firestore"
	defaultIdempotencyHeader   = "Idempotency-Key"
	defaultIdempotencyTTL      = 24 * time.Hour
	defaultRedisAddr           = "localhost:6379"
	defaultPublicRateLimit     = "60-M"
	defaultCheckoutRateLimit   = "20-M"
	defaultCustomOrderLeadTime = 48 * time.Hour
	defaultPageSize            = 20
	defaultMaxPageSize         = 100
	defaultRoleClaim           = "role"
)

// Config captures all runtime configuration organised by concern.
type Config struct {
	Server        ServerConfig
	Firebase      FirebaseConfig
	Firestore     FirestoreConfig
	Repository    RepositoryConfig
	Notifications NotificationConfig
	Idempotency   IdempotencyConfig
	Redis         RedisConfig
	RateLimits    RateLimitConfig
	Orders        OrderConfig
}

// ServerConfig configures HTTP server parameters.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// FirebaseConfig stores Firebase project settings used for ID token verification.
type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	RoleClaim       string
	// AuthEmulatorHost points token verification at the Firebase Auth emulator.
	AuthEmulatorHost string
	// CheckRevoked makes every verification consult Firebase for revoked sessions.
	CheckRevoked bool
}

// FirestoreConfig stores database parameters.
type FirestoreConfig struct {
	ProjectID    string
	EmulatorHost string
}

// RepositoryConfig selects the persistence backend. "memory" is meant for local development.
type RepositoryConfig struct {
	Driver string
}

// NotificationConfig controls publication of order events for the notification service.
type NotificationConfig struct {
	ProjectID     string
	Topic         string
	SigningSecret string
	SignatureTTL  time.Duration
}

// IdempotencyConfig controls idempotency middleware behaviour.
type IdempotencyConfig struct {
	Driver string
	Header string
	TTL    time.Duration
	// RequireKey rejects checkouts sent without the header instead of processing them unguarded.
	RequireKey bool
}

// RedisConfig is used when the idempotency store runs on Redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
}

// RateLimitConfig holds limiter formatted rates such as "60-M".
type RateLimitConfig struct {
	Public   string
	Checkout string
}

// OrderConfig groups order intake rules.
type OrderConfig struct {
	CustomOrderMinLeadTime time.Duration
	DefaultPageSize        int
	MaxPageSize            int
}

// SecretResolver resolves references to external secrets (e.g. Secret Manager URIs).
type SecretResolver interface {
	ResolveSecret(ctx context.Context, ref string) (string, error)
}

// SecretResolverFunc adapts ordinary functions to SecretResolver.
type SecretResolverFunc func(context.Context, string) (string, error)

// ResolveSecret resolves the secret using the wrapped function.
func (f SecretResolverFunc) ResolveSecret(ctx context.Context, ref string) (string, error) {
	return f(ctx, ref)
}

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing/invalid field list.
func (e *ValidationError) Fields() []string {
	out := make([]string, len(e.fields))
	copy(out, e.fields)
	return out
}

// SecretError describes failures while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// Option customises Load behaviour.
type Option func(*loaderOptions)

type loaderOptions struct {
	envFile      string
	envMap       map[string]string
	useSystemEnv bool
	secret       SecretResolver
}

// WithEnvFile overrides the .env file path used for local overrides. An empty path disables it.
func WithEnvFile(path string) Option {
	return func(o *loaderOptions) {
		o.envFile = path
	}
}

// WithEnvMap injects an explicit key/value map for environment lookups. Values in the map
// take precedence over system environment variables.
func WithEnvMap(values map[string]string) Option {
	return func(o *loaderOptions) {
		o.envMap = values
	}
}

// WithoutSystemEnv disables reading from the process environment.
func WithoutSystemEnv() Option {
	return func(o *loaderOptions) {
		o.useSystemEnv = false
	}
}

// WithSecretResolver sets the resolver used for secret:// references.
func WithSecretResolver(resolver SecretResolver) Option {
	return func(o *loaderOptions) {
		o.secret = resolver
	}
}

// EnvironmentValues returns the effective environment after applying the same precedence
// rules as Load (dotenv < OS env < explicit env map). main uses it to configure the secret
// fetcher before calling Load.
func EnvironmentValues(opts ...Option) (map[string]string, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return nil, err
	}
	values := make(map[string]string)
	for _, key := range options.keys() {
		if value, ok := lookup(key); ok {
			values[key] = value
		}
	}
	return values, nil
}

// Load assembles the application configuration by combining defaults, .env overrides,
// environment variables, and secret manager lookups.
func Load(ctx context.Context, opts ...Option) (Config, error) {
	options := newLoaderOptions(opts)
	lookup, err := options.lookup()
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		Server: ServerConfig{
			Port:         stringWithDefault(lookup, "BAKERY_SERVER_PORT", defaultPort),
			ReadTimeout:  durationWithDefault(lookup, "BAKERY_SERVER_READ_TIMEOUT", defaultReadTimeout),
			WriteTimeout: durationWithDefault(lookup, "BAKERY_SERVER_WRITE_TIMEOUT", defaultWriteTimeout),
			IdleTimeout:  durationWithDefault(lookup, "BAKERY_SERVER_IDLE_TIMEOUT", defaultIdleTimeout),
		},
		Firebase: FirebaseConfig{
			ProjectID:        stringWithDefault(lookup, "BAKERY_FIREBASE_PROJECT_ID", ""),
			CredentialsFile:  stringWithDefault(lookup, "BAKERY_FIREBASE_CREDENTIALS_FILE", ""),
			RoleClaim:        stringWithDefault(lookup, "BAKERY_FIREBASE_ROLE_CLAIM", defaultRoleClaim),
			AuthEmulatorHost: stringWithDefault(lookup, "BAKERY_FIREBASE_AUTH_EMULATOR_HOST", ""),
			CheckRevoked:     boolWithDefault(lookup, "BAKERY_FIREBASE_CHECK_REVOKED", false),
		},
		Firestore: FirestoreConfig{
			ProjectID:    stringWithDefault(lookup, "BAKERY_FIRESTORE_PROJECT_ID", ""),
			EmulatorHost: stringWithDefault(lookup, "BAKERY_FIRESTORE_EMULATOR_HOST", ""),
		},
		Repository: RepositoryConfig{
			Driver: strings.ToLower(stringWithDefault(lookup, "BAKERY_REPOSITORY_DRIVER", defaultRepositoryDriver)),
		},
		Notifications: NotificationConfig{
			ProjectID:     stringWithDefault(lookup, "BAKERY_PUBSUB_PROJECT_ID", ""),
			Topic:         stringWithDefault(lookup, "BAKERY_NOTIFICATIONS_TOPIC", defaultNotificationTopic),
			SigningSecret: stringWithDefault(lookup, "BAKERY_NOTIFICATIONS_SIGNING_SECRET", ""),
			SignatureTTL:  durationWithDefault(lookup, "BAKERY_NOTIFICATIONS_SIGNATURE_TTL", defaultSignatureTTL),
		},
		Idempotency: IdempotencyConfig{
			Driver:     strings.ToLower(stringWithDefault(lookup, "BAKERY_IDEMPOTENCY_DRIVER", defaultIdempotencyDriver)),
			Header:     stringWithDefault(lookup, "BAKERY_IDEMPOTENCY_HEADER", defaultIdempotencyHeader),
			TTL:        durationWithDefault(lookup, "BAKERY_IDEMPOTENCY_TTL", defaultIdempotencyTTL),
			RequireKey: boolWithDefault(lookup, "BAKERY_IDEMPOTENCY_REQUIRE_KEY", false),
		},
		Redis: RedisConfig{
			Addr:     stringWithDefault(lookup, "BAKERY_REDIS_ADDR", defaultRedisAddr),
			Password: stringWithDefault(lookup, "BAKERY_REDIS_PASSWORD", ""),
			DB:       intWithDefault(lookup, "BAKERY_REDIS_DB", 0),
		},
		RateLimits: RateLimitConfig{
			Public:   stringWithDefault(lookup, "BAKERY_RATELIMIT_PUBLIC", defaultPublicRateLimit),
			Checkout: stringWithDefault(lookup, "BAKERY_RATELIMIT_CHECKOUT", defaultCheckoutRateLimit),
		},
		Orders: OrderConfig{
			CustomOrderMinLeadTime: durationWithDefault(lookup, "BAKERY_CUSTOM_ORDER_MIN_LEAD_TIME", defaultCustomOrderLeadTime),
			DefaultPageSize:        intWithDefault(lookup, "BAKERY_PAGE_SIZE_DEFAULT", defaultPageSize),
			MaxPageSize:            intWithDefault(lookup, "BAKERY_PAGE_SIZE_MAX", defaultMaxPageSize),
		},
	}

	// Firestore and Pub/Sub default to the Firebase project.
	if cfg.Firestore.ProjectID == "" {
		cfg.Firestore.ProjectID = cfg.Firebase.ProjectID
	}
	if cfg.Notifications.ProjectID == "" {
		cfg.Notifications.ProjectID = cfg.Firebase.ProjectID
	}

	secretFields := []*string{
		&cfg.Notifications.SigningSecret,
		&cfg.Redis.Password,
	}
	for _, field := range secretFields {
		resolved, err := resolveSecret(ctx, *field, options.secret)
		if err != nil {
			return Config{}, err
		}
		*field = resolved
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func newLoaderOptions(opts []Option) loaderOptions {
	options := loaderOptions{
		envFile:      defaultEnvFile,
		useSystemEnv: true,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}
	return options
}

func (o loaderOptions) lookup() (func(string) (string, bool), error) {
	dotEnvValues, err := loadDotEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	return func(key string) (string, bool) {
		if value, ok := o.envMap[key]; ok {
			return value, true
		}
		if o.useSystemEnv {
			if value, ok := os.LookupEnv(key); ok {
				return value, true
			}
		}
		value, ok := dotEnvValues[key]
		return value, ok
	}, nil
}

func (o loaderOptions) keys() []string {
	seen := make(map[string]struct{})
	var keys []string
	add := func(key string) {
		if _, ok := seen[key]; ok || key == "" {
			return
		}
		seen[key] = struct{}{}
		keys = append(keys, key)
	}
	if dotEnv, err := loadDotEnv(o.envFile); err == nil {
		for key := range dotEnv {
			add(key)
		}
	}
	if o.useSystemEnv {
		for _, entry := range os.Environ() {
			key, _, _ := strings.Cut(entry, "=")
			add(strings.TrimSpace(key))
		}
	}
	for key := range o.envMap {
		add(key)
	}
	return keys
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	normalized := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: normalized, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, normalized)
	if err != nil {
		return "", &SecretError{Ref: normalized, Err: err}
	}
	return secret, nil
}

func validateConfig(cfg Config) error {
	var invalid []string

	if cfg.Server.Port == "" {
		invalid = append(invalid, "Server.Port")
	}
	switch cfg.Repository.Driver {
	case "firestore":
		if cfg.Firestore.ProjectID == "" {
			invalid = append(invalid, "Firestore.ProjectID")
		}
	case "memory":
	default:
		invalid = append(invalid, "Repository.Driver")
	}
	if cfg.Firebase.ProjectID == "" {
		invalid = append(invalid, "Firebase.ProjectID")
	}
	switch cfg.Idempotency.Driver {
	case "firestore", "memory":
	case "redis":
		if strings.TrimSpace(cfg.Redis.Addr) == "" {
			invalid = append(invalid, "Redis.Addr")
		}
	default:
		invalid = append(invalid, "Idempotency.Driver")
	}
	if strings.TrimSpace(cfg.Idempotency.Header) == "" {
		invalid = append(invalid, "Idempotency.Header")
	}
	if cfg.Idempotency.TTL <= 0 {
		invalid = append(invalid, "Idempotency.TTL")
	}
	if cfg.Orders.CustomOrderMinLeadTime < 0 {
		invalid = append(invalid, "Orders.CustomOrderMinLeadTime")
	}
	if cfg.Orders.DefaultPageSize <= 0 || cfg.Orders.MaxPageSize < cfg.Orders.DefaultPageSize {
		invalid = append(invalid, "Orders.DefaultPageSize")
	}

	if len(invalid) > 0 {
		return &ValidationError{fields: invalid}
	}
	return nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if strings.HasPrefix(trimmed, "sm://") {
		return "secret://" + strings.TrimPrefix(trimmed, "sm://")
	}
	return trimmed
}

func loadDotEnv(path string) (map[string]string, error) {
	if path == "" {
		return nil, nil
	}
	values, err := godotenv.Read(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("config: unable to read %s: %w", path, err)
	}
	return values, nil
}

func stringWithDefault(lookup func(string) (string, bool), key, fallback string) string {
	if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func durationWithDefault(lookup func(string) (string, bool), key string, fallback time.Duration) time.Duration {
	if value, ok := lookup(key); ok && value != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(value)); err == nil {
			return d
		}
	}
	return fallback
}

func intWithDefault(lookup func(string) (string, bool), key string, fallback int) int {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}

func boolWithDefault(lookup func(string) (string, bool), key string, fallback bool) bool {
	if value, ok := lookup(key); ok && value != "" {
		if parsed, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return parsed
		}
	}
	return fallback
}
