package api

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

func signHS256(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		t.Fatalf("failed to sign token: %v", err)
	}
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub": "user-123",
		"aud": "api://aud",
		"iss": "https://issuer/",
		"exp": time.Now().Add(5 * time.Minute).Unix(),
		"nbf": time.Now().Add(-time.Minute).Unix(),
		"iat": time.Now().Add(-time.Minute).Unix(),
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		name    string
		header  string
		want    string
		wantErr error
	}{
		{name: "ok", header: "  Bearer header.payload.signature ", want: "header.payload.signature"},
		{name: "missing", header: " ", wantErr: errMissingAuthorization},
		{name: "wrong scheme", header: "Basic a.b.c", wantErr: errBadAuthorization},
		{name: "many periods", header: "Bearer " + strings.Repeat(".", 1000), wantErr: errBadAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := bearerToken(tt.header)
			if err != tt.wantErr || got != tt.want {
				t.Fatalf("bearerToken(%q) = %q, %v; want %q, %v", tt.header, got, err, tt.want, tt.wantErr)
			}
		})
	}
}

func TestNewAuthLocalMode(t *testing.T) {
	t.Setenv(envLocalAuthMode, "HS256")
	t.Setenv(envLocalAuthSecret, "local-secret")
	auth := NewAuth(nil, "api://aud", "https://issuer/")
	if !auth.TestMode {
		t.Fatalf("expected shared secret mode")
	}

	userID, err := auth.UserIDFromAuthHeader("Bearer " + signHS256(t, "local-secret", validClaims()))
	if err != nil || userID != "user-123" {
		t.Fatalf("unexpected result %q, %v", userID, err)
	}
	if _, err := auth.UserIDFromAuthHeader("Bearer " + signHS256(t, "other", validClaims())); err == nil {
		t.Fatalf("expected signature failure")
	}
}

func TestNewAuthPanicsWithoutSecret(t *testing.T) {
	t.Setenv(envLocalAuthMode, "")
	t.Setenv(envAuth0TestMode, "1")
	t.Setenv(envTestJWTSecret, "")
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewAuth(nil, "", "")
}

func TestUserIDFromBearerRejectsBadClaims(t *testing.T) {
	auth := &Auth{
		Audience:   "api://aud",
		Issuer:     "https://issuer/",
		TestMode:   true,
		TestSecret: []byte("test-secret"),
		parser:     jwt.NewParser(jwt.WithValidMethods([]string{"HS256"})),
	}
	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
	}{
		{name: "expired", mutate: func(c jwt.MapClaims) { c["exp"] = time.Now().Add(-time.Hour).Unix() }},
		{name: "no expiry", mutate: func(c jwt.MapClaims) { delete(c, "exp") }},
		{name: "audience", mutate: func(c jwt.MapClaims) { c["aud"] = "api://other" }},
		{name: "issuer", mutate: func(c jwt.MapClaims) { c["iss"] = "https://evil/" }},
		{name: "subject", mutate: func(c jwt.MapClaims) { delete(c, "sub") }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims()
			tt.mutate(claims)
			if _, err := auth.UserIDFromBearer(signHS256(t, "test-secret", claims)); err == nil {
				t.Fatalf("expected rejection")
			}
		})
	}

	userID, err := auth.UserIDFromBearer(signHS256(t, "test-secret", validClaims()))
	if err != nil || userID != "user-123" {
		t.Fatalf("unexpected result %q, %v", userID, err)
	}
}

func TestKeyForWithoutJWKS(t *testing.T) {
	auth := &Auth{parser: jwt.NewParser(jwt.WithValidMethods([]string{"RS256"}))}
	if _, err := auth.keyFor(&jwt.Token{Header: map[string]any{"kid": "k"}}); err == nil {
		t.Fatalf("expected error without jwks")
	}
}

func TestSignTestTokenRoundTrip(t *testing.T) {
	t.Setenv(envLocalAuthMode, "hs256")
	t.Setenv(envLocalAuthSecret, "shared")
	auth := NewAuth(nil, "", "")
	token, err := SignTestToken([]byte("shared"), "dev-user", time.Hour)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	if userID, err := auth.UserIDFromBearer(token); err != nil || userID != "dev-user" {
		t.Fatalf("unexpected result %q, %v", userID, err)
	}
	expired, _ := SignTestToken([]byte("shared"), "dev-user", -2*time.Minute)
	if _, err := auth.UserIDFromBearer(expired); err == nil {
		t.Fatalf("expected expired token to be rejected")
	}
}
