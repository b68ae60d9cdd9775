package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	firebaseauth "firebase.google.com/go/v4/auth"

	"github.com/crumbhouse/bakery-api/internal/platform/httpx"
)

const (
	defaultRoleClaim     = "role"
	defaultVerifyTimeout = 5 * time.Second
)

var (
	// ErrTokenExpired signals that the provided Firebase ID token has expired.
	ErrTokenExpired = errors.New("auth: firebase id token expired")
	// ErrTokenInvalid signals that the provided Firebase ID token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: firebase id token invalid")
)

// TokenVerifier verifies Firebase ID tokens.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error)
}

// Authenticator wires Firebase token verification into HTTP middleware.
type Authenticator struct {
	verifier  TokenVerifier
	roleClaim string
	timeout   time.Duration
}

// Option customises Authenticator behaviour.
type Option func(*Authenticator)

// WithRoleClaim overrides the custom claim used for role extraction.
func WithRoleClaim(claim string) Option {
	return func(a *Authenticator) {
		if claim = strings.TrimSpace(claim); claim != "" {
			a.roleClaim = claim
		}
	}
}

// WithVerificationTimeout bounds each token verification call.
func WithVerificationTimeout(d time.Duration) Option {
	return func(a *Authenticator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

// NewAuthenticator constructs an Authenticator around verifier.
func NewAuthenticator(verifier TokenVerifier, opts ...Option) *Authenticator {
	a := &Authenticator{
		verifier:  verifier,
		roleClaim: defaultRoleClaim,
		timeout:   defaultVerifyTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}
	return a
}

// RequireAuth rejects requests without a valid bearer token (401) and, when roles are given,
// requests whose identity holds none of them (403). Tokens without a role claim are treated
// as customers.
func (a *Authenticator) RequireAuth(roles ...string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(roles))
	for _, role := range roles {
		if role = normaliseRole(role); role != "" {
			allowed[role] = struct{}{}
		}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, authErr := a.authenticate(r)
			if authErr != nil {
				httpx.WriteError(r.Context(), w, *authErr)
				return
			}
			if len(allowed) > 0 && !hasAllowedRole(identity.Roles, allowed) {
				httpx.WriteError(r.Context(), w, httpx.NewError(httpx.CodeForbidden, "identity does not have required role", http.StatusForbidden))
				return
			}
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), identity)))
		})
	}
}

func (a *Authenticator) authenticate(r *http.Request) (*Identity, *httpx.Error) {
	tokenStr, ok := extractBearerToken(r.Header.Get("Authorization"))
	if !ok {
		err := httpx.NewError(httpx.CodeUnauthenticated, "authorization header missing or invalid", http.StatusUnauthorized)
		return nil, &err
	}
	if a == nil || a.verifier == nil {
		err := httpx.NewError(httpx.CodeUnauthenticated, "authorization service unavailable", http.StatusUnauthorized)
		return nil, &err
	}

	ctx := r.Context()
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	token, err := a.verifier.VerifyIDToken(ctx, tokenStr)
	if err != nil {
		verr := verificationError(err)
		return nil, &verr
	}

	roles := rolesFromClaims(token.Claims, a.roleClaim)
	if len(roles) == 0 {
		roles = []string{RoleCustomer}
	}
	email, _ := token.Claims["email"].(string)
	return &Identity{UID: token.UID, Email: strings.TrimSpace(email), Roles: roles}, nil
}

func hasAllowedRole(identityRoles []string, allowed map[string]struct{}) bool {
	for _, role := range identityRoles {
		if _, ok := allowed[normaliseRole(role)]; ok {
			return true
		}
	}
	return false
}

func rolesFromClaims(claims map[string]interface{}, key string) []string {
	var candidates []string
	switch v := claims[key].(type) {
	case string:
		candidates = []string{v}
	case []string:
		candidates = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				candidates = append(candidates, s)
			}
		}
	case map[string]interface{}:
		for role, enabled := range v {
			if b, ok := enabled.(bool); ok && b {
				candidates = append(candidates, role)
			}
		}
	}

	out := make([]string, 0, len(candidates))
	seen := make(map[string]struct{}, len(candidates))
	for _, c := range candidates {
		role := normaliseRole(c)
		if role == "" {
			continue
		}
		if _, dup := seen[role]; dup {
			continue
		}
		seen[role] = struct{}{}
		out = append(out, role)
	}
	return out
}

func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func verificationError(err error) httpx.Error {
	switch {
	case errors.Is(err, ErrTokenExpired), firebaseauth.IsIDTokenExpired(err):
		return httpx.NewError("token_expired", "firebase id token expired", http.StatusUnauthorized)
	case errors.Is(err, ErrTokenInvalid), firebaseauth.IsIDTokenInvalid(err):
		return httpx.NewError("invalid_token", "firebase id token invalid", http.StatusUnauthorized)
	default:
		return httpx.NewError("invalid_token", "firebase id token verification failed", http.StatusUnauthorized)
	}
}
