package firestore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/crumbhouse/bakery-api/internal/platform/config"
)

const (
	envEmulatorHost = "FIRESTORE_EMULATOR_HOST"
	envProjectID    = "GOOGLE_CLOUD_PROJECT"

	// pingDocument is read by health checks; it does not need to exist.
	pingDocument = "_health/ping"
)

var ErrProviderClosed = errors.New("firestore: provider is closed")

// Provider owns the single Firestore client behind every repository of a process. The client is
// dialled on first use; a failed dial is retried by the next caller.
type Provider struct {
	projectID   string
	emulator    string
	dialTimeout time.Duration
	clientOpts  []option.ClientOption

	mu     sync.Mutex
	client *firestore.Client
	closed bool
}

type ProviderOption func(*Provider)

// WithDialTimeout bounds client creation. Zero leaves it to the caller's context.
func WithDialTimeout(timeout time.Duration) ProviderOption {
	return func(p *Provider) {
		p.dialTimeout = max(timeout, 0)
	}
}

// WithClientOptions adds Cloud client options, typically credentials.
func WithClientOptions(opts ...option.ClientOption) ProviderOption {
	return func(p *Provider) {
		p.clientOpts = append(p.clientOpts, opts...)
	}
}

// NewProvider resolves the project and emulator from cfg, falling back to GOOGLE_CLOUD_PROJECT
// and FIRESTORE_EMULATOR_HOST.
func NewProvider(cfg config.FirestoreConfig, opts ...ProviderOption) *Provider {
	p := &Provider{
		projectID:   firstNonEmpty(cfg.ProjectID, os.Getenv(envProjectID)),
		emulator:    firstNonEmpty(cfg.EmulatorHost, os.Getenv(envEmulatorHost)),
		dialTimeout: 10 * time.Second,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(p)
		}
	}
	return p
}

// Client returns the shared client, dialling it if needed.
func (p *Provider) Client(ctx context.Context) (*firestore.Client, error) {
	if p == nil {
		return nil, errors.New("firestore: provider is nil")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	switch {
	case p.closed:
		return nil, ErrProviderClosed
	case p.client != nil:
		return p.client, nil
	}

	client, err := p.dial(ctx)
	if err != nil {
		return nil, err
	}
	p.client = client
	return client, nil
}

func (p *Provider) dial(ctx context.Context) (*firestore.Client, error) {
	if p.projectID == "" {
		return nil, errors.New("firestore: project id is required")
	}
	if p.dialTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.dialTimeout)
		defer cancel()
	}

	opts := p.clientOpts
	if p.emulator != "" {
		// the emulator accepts neither TLS nor credentials
		opts = []option.ClientOption{
			option.WithEndpoint(p.emulator),
			option.WithoutAuthentication(),
			option.WithGRPCDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
		}
	}

	client, err := firestore.NewClient(ctx, p.projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("firestore: create client for %s: %w", p.projectID, err)
	}
	return client, nil
}

// Close releases the client. Further calls to Client fail with ErrProviderClosed.
func (p *Provider) Close(context.Context) error {
	if p == nil {
		return nil
	}
	p.mu.Lock()
	client := p.client
	p.client, p.closed = nil, true
	p.mu.Unlock()

	if client == nil {
		return nil
	}
	return client.Close()
}

// Ping reports whether Firestore answers reads.
func (p *Provider) Ping(ctx context.Context) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	_, err = client.Doc(pingDocument).Get(ctx)
	if err = WrapError("health.ping", err); err != nil {
		var repoErr *Error
		if errors.As(err, &repoErr) && repoErr.IsNotFound() {
			return nil
		}
	}
	return err
}

// RunTransaction runs fn in a transaction on the shared client.
func (p *Provider) RunTransaction(ctx context.Context, fn TxFunc, opts ...TxOption) error {
	client, err := p.Client(ctx)
	if err != nil {
		return err
	}
	return RunTransaction(ctx, client, fn, opts...)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
