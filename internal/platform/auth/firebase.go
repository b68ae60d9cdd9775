package auth

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	firebase "firebase.google.com/go/v4"
	firebaseauth "firebase.google.com/go/v4/auth"
	"google.golang.org/api/option"

	"github.com/crumbhouse/bakery-api/internal/platform/config"
)

const authEmulatorEnv = "FIREBASE_AUTH_EMULATOR_HOST"

var errVerifierNotReady = errors.New("firebase verifier not initialised")

// firebaseTokenClient is the subset of *firebaseauth.Client used for verification.
type firebaseTokenClient interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
	VerifyIDTokenAndCheckRevoked(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// FirebaseVerifier checks staff and customer ID tokens with the Firebase Admin SDK.
type FirebaseVerifier struct {
	client       firebaseTokenClient
	timeout      time.Duration
	checkRevoked bool
}

type FirebaseOption func(*FirebaseVerifier)

// WithFirebaseTimeout bounds each Admin SDK call.
func WithFirebaseTimeout(d time.Duration) FirebaseOption {
	return func(v *FirebaseVerifier) {
		if d > 0 {
			v.timeout = d
		}
	}
}

// WithRevocationCheck makes every verification consult Firebase for revoked sessions. It costs
// one extra round trip per request.
func WithRevocationCheck(enabled bool) FirebaseOption {
	return func(v *FirebaseVerifier) {
		v.checkRevoked = enabled
	}
}

// NewFirebaseVerifier initialises the Admin SDK for cfg.ProjectID. When cfg.AuthEmulatorHost is
// set and the process has no emulator override of its own, tokens are checked against the local
// emulator instead of production.
func NewFirebaseVerifier(ctx context.Context, cfg config.FirebaseConfig, opts ...FirebaseOption) (*FirebaseVerifier, error) {
	projectID := strings.TrimSpace(cfg.ProjectID)
	if projectID == "" {
		return nil, errors.New("firebase project id is required")
	}

	if host := strings.TrimSpace(cfg.AuthEmulatorHost); host != "" && os.Getenv(authEmulatorEnv) == "" {
		if err := os.Setenv(authEmulatorEnv, host); err != nil {
			return nil, fmt.Errorf("configure firebase auth emulator: %w", err)
		}
	}

	var clientOpts []option.ClientOption
	if path := strings.TrimSpace(cfg.CredentialsFile); path != "" {
		clientOpts = append(clientOpts, option.WithCredentialsFile(path))
	}

	app, err := firebase.NewApp(ctx, &firebase.Config{ProjectID: projectID}, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase app: %w", err)
	}
	client, err := app.Auth(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialise firebase auth client: %w", err)
	}

	opts = append([]FirebaseOption{WithRevocationCheck(cfg.CheckRevoked)}, opts...)
	return newFirebaseVerifier(client, opts...), nil
}

func newFirebaseVerifier(client firebaseTokenClient, opts ...FirebaseOption) *FirebaseVerifier {
	verifier := &FirebaseVerifier{client: client, timeout: defaultVerifyTimeout}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

// VerifyIDToken validates idToken, optionally rejecting revoked sessions.
func (v *FirebaseVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	if v == nil || v.client == nil {
		return nil, errVerifierNotReady
	}
	if v.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}
	if v.checkRevoked {
		return v.client.VerifyIDTokenAndCheckRevoked(ctx, idToken)
	}
	return v.client.VerifyIDToken(ctx, idToken)
}
