package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubTokenVerifier struct {
	token    *firebaseauth.Token
	err      error
	received string
}

func (s *stubTokenVerifier) VerifyIDToken(ctx context.Context, idToken string) (*firebaseauth.Token, error) {
	s.received = idToken
	if s.err != nil {
		return nil, s.err
	}
	return s.token, nil
}

func serve(t *testing.T, handler http.Handler, header string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/orders", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decodeError(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestRequireAuth_AllowsValidToken(t *testing.T) {
	verifier := &stubTokenVerifier{
		token: &firebaseauth.Token{
			UID: "uid-123",
			Claims: map[string]interface{}{
				"role":  []interface{}{"Staff", "admin", "staff"},
				"email": "baker@example.com",
			},
		},
	}
	authn := NewAuthenticator(verifier)

	called := false
	handler := authn.RequireAuth(RoleStaff)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
		identity, ok := IdentityFromContext(r.Context())
		if !ok {
			t.Fatalf("expected identity in context")
		}
		if identity.UID != "uid-123" || identity.Email != "baker@example.com" {
			t.Fatalf("unexpected identity %+v", identity)
		}
		if len(identity.Roles) != 2 || !identity.IsBackOffice() {
			t.Fatalf("unexpected roles %v", identity.Roles)
		}
		w.WriteHeader(http.StatusNoContent)
	}))

	rr := serve(t, handler, "Bearer token-value")
	if rr.Code != http.StatusNoContent || !called {
		t.Fatalf("expected handler to run, got %d", rr.Code)
	}
	if verifier.received != "token-value" {
		t.Fatalf("expected verifier to receive token-value, got %s", verifier.received)
	}
}

func TestRequireAuth_DefaultsToCustomer(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-1", Claims: map[string]interface{}{}}}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireAuth(RoleCustomer, RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		identity, _ := IdentityFromContext(r.Context())
		if !identity.HasRole(RoleCustomer) || identity.IsBackOffice() {
			t.Fatalf("expected plain customer, got %v", identity.Roles)
		}
		w.WriteHeader(http.StatusOK)
	}))

	if rr := serve(t, handler, "bearer abc"); rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
}

func TestRequireAuth_InsufficientRoleIsForbidden(t *testing.T) {
	verifier := &stubTokenVerifier{token: &firebaseauth.Token{UID: "uid-1", Claims: map[string]interface{}{"role": "customer"}}}
	authn := NewAuthenticator(verifier)

	handler := authn.RequireAuth(RoleAdmin)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatalf("handler should not run")
	}))

	rr := serve(t, handler, "Bearer abc")
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
	if code := decodeError(t, rr); code != "forbidden" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestRequireAuth_RejectsBadTokens(t *testing.T) {
	cases := []struct {
		name   string
		header string
		err    error
		code   string
	}{
		{name: "missing header", header: "", code: "unauthenticated"},
		{name: "wrong scheme", header: "Basic abc", code: "unauthenticated"},
		{name: "empty bearer", header: "Bearer   ", code: "unauthenticated"},
		{name: "expired", header: "Bearer abc", err: ErrTokenExpired, code: "token_expired"},
		{name: "invalid", header: "Bearer abc", err: ErrTokenInvalid, code: "invalid_token"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			authn := NewAuthenticator(&stubTokenVerifier{err: tc.err, token: &firebaseauth.Token{UID: "u"}})
			handler := authn.RequireAuth()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				t.Fatalf("handler should not run")
			}))
			rr := serve(t, handler, tc.header)
			if rr.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401, got %d", rr.Code)
			}
			if code := decodeError(t, rr); code != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, code)
			}
		})
	}
}

func TestRolesFromClaims_MapForm(t *testing.T) {
	roles := rolesFromClaims(map[string]interface{}{
		"bakery_roles": map[string]interface{}{"admin": true, "staff": false},
	}, "bakery_roles")
	if len(roles) != 1 || roles[0] != RoleAdmin {
		t.Fatalf("unexpected roles %v", roles)
	}
}
