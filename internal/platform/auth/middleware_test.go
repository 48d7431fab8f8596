package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	firebaseauth "firebase.google.com/go/v4/auth"
)

type stubVerifier struct {
	token *firebaseauth.Token
	err   error
}

func (s *stubVerifier) VerifyIDToken(_ context.Context, _ string) (*firebaseauth.Token, error) {
	return s.token, s.err
}

func okHandler(captured **Identity) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if identity, ok := IdentityFromContext(r.Context()); ok {
			*captured = identity
		}
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestRequireAuthMissingHeader(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{})
	var captured *Identity

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	authn.RequireAuth()(okHandler(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if captured != nil {
		t.Fatal("handler should not run without a bearer token")
	}

	var payload map[string]any
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if payload["error"] != "unauthenticated" {
		t.Fatalf("unexpected error code %v", payload["error"])
	}
}

func TestRequireAuthVerificationFailure(t *testing.T) {
	authn := NewAuthenticator(&stubVerifier{err: errors.New("boom")})
	var captured *Identity

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer bad-token")
	authn.RequireAuth()(okHandler(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if captured != nil {
		t.Fatal("handler should not run when verification fails")
	}
}

func TestRequireAuthPopulatesIdentity(t *testing.T) {
	token := &firebaseauth.Token{
		UID: "user-123",
		Claims: map[string]any{
			"email": "shopper@example.com",
			"role":  "staff",
		},
	}
	authn := NewAuthenticator(&stubVerifier{token: token})
	var captured *Identity

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	authn.RequireAuth()(okHandler(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	if captured == nil {
		t.Fatal("identity missing from context")
	}
	if captured.UID != "user-123" || captured.Email != "shopper@example.com" {
		t.Fatalf("unexpected identity %+v", captured)
	}
	if !captured.HasRole("STAFF") {
		t.Fatal("expected case-insensitive role match")
	}
}

func TestRequireAuthFallbackRole(t *testing.T) {
	token := &firebaseauth.Token{UID: "user-9", Claims: map[string]any{}}
	authn := NewAuthenticator(&stubVerifier{token: token})
	var captured *Identity

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/cart", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	authn.RequireAuth(RoleUser)(okHandler(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected fallback role to satisfy requirement, got %d", rec.Code)
	}
}

func TestRequireAuthInsufficientRole(t *testing.T) {
	token := &firebaseauth.Token{UID: "user-9", Claims: map[string]any{"role": "user"}}
	authn := NewAuthenticator(&stubVerifier{token: token})
	var captured *Identity

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/orders", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	authn.RequireAuth(RoleAdmin)(okHandler(&captured)).ServeHTTP(rec, req)

	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if captured != nil {
		t.Fatal("handler should not run for insufficient role")
	}
}
